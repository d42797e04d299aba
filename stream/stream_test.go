package stream

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"strings"
	"testing"
)

func isEven(n int) bool {
	return n%2 == 0
}

func TestFilterCollect(t *testing.T) {
	ctx := context.Background()
	result := Collect(ctx, Filter(ctx, isEven, Slice(ctx, []int{1, 2, 3, 4, 5, 6})))
	if !slices.Equal([]int{2, 4, 6}, result) {
		t.Errorf("Expected [2, 4, 6], got %v", result)
	}
}

func TestTransformErr(t *testing.T) {
	ctx := context.Background()
	var dropped []error
	in := Slice(ctx, []string{"1", "two", "3"})
	out := TransformErr(ctx, strconv.Atoi, func(err error) {
		dropped = append(dropped, err)
	}, in)
	result := Collect(ctx, out)
	if !slices.Equal([]int{1, 3}, result) {
		t.Errorf("Expected [1, 3], got %v", result)
	}
	if len(dropped) != 1 {
		t.Errorf("Expected 1 dropped element, got %d", len(dropped))
	}
}

func TestNDJSON(t *testing.T) {
	ctx := context.Background()
	type kv struct {
		K string `json:"k"`
	}
	r := strings.NewReader(`{"k":"a"}
{"k":"b"}
{"k":"c"}
`)
	items, errs := NDJSON[kv](ctx, r)
	result := Collect(ctx, items)
	if err := <-errs; err != nil {
		t.Fatal(err)
	}
	if len(result) != 3 || result[2].K != "c" {
		t.Errorf("unexpected result: %v", result)
	}
}

func TestNDJSON_Malformed(t *testing.T) {
	ctx := context.Background()
	items, errs := NDJSON[map[string]any](ctx, strings.NewReader(`{"k":"a"} {nope`))
	result := Collect(ctx, items)
	if len(result) != 1 {
		t.Errorf("Expected 1 item before the malformed one, got %d", len(result))
	}
	if err := <-errs; err == nil {
		t.Error("Expected a decode error")
	}
}

func TestCollect_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	never := make(chan int)
	cancel()
	result := Collect(ctx, never)
	if len(result) != 0 {
		t.Errorf("Expected nothing, got %v", result)
	}
	if !errors.Is(ctx.Err(), context.Canceled) {
		t.Fatal("context should be canceled")
	}
}

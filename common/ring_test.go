package common

import (
	"slices"
	"sync"
	"testing"
)

func filled(size int, vals ...int) *RingBuffer[int] {
	rb := NewRingBuffer[int](size)
	for _, v := range vals {
		rb.Add(v)
	}
	return rb
}

func TestRingBuffer_Get(t *testing.T) {
	cases := []struct {
		name string
		rb   *RingBuffer[int]
		want []int
	}{
		{"empty", filled(3), []int{}},
		{"partial", filled(3, 1, 2), []int{1, 2}},
		{"exactly full", filled(3, 1, 2, 3), []int{1, 2, 3}},
		{"wrapped", filled(3, 1, 2, 3, 4, 5), []int{3, 4, 5}},
		{"wrapped twice", filled(2, 1, 2, 3, 4, 5, 6, 7), []int{6, 7}},
		{"size zero", filled(0, 1, 2), []int{2}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.rb.Get(); !slices.Equal(got, c.want) {
				t.Errorf("got %v, want %v", got, c.want)
			}
			if c.rb.Len() != len(c.want) {
				t.Errorf("Len %d, want %d", c.rb.Len(), len(c.want))
			}
		})
	}
}

func TestRingBuffer_Tail(t *testing.T) {
	rb := filled(4, 1, 2, 3, 4, 5, 6)
	cases := []struct {
		n    int
		want []int
	}{
		{0, []int{}},
		{1, []int{6}},
		{3, []int{4, 5, 6}},
		{4, []int{3, 4, 5, 6}},
		{10, []int{3, 4, 5, 6}},
		{-1, []int{3, 4, 5, 6}},
	}
	for _, c := range cases {
		if got := rb.Tail(c.n); !slices.Equal(got, c.want) {
			t.Errorf("Tail(%d) = %v, want %v", c.n, got, c.want)
		}
	}
}

func TestRingBuffer_GetIsCopy(t *testing.T) {
	rb := filled(2, 1, 2)
	got := rb.Get()
	got[0] = 99
	if rb.Get()[0] != 1 {
		t.Error("Get exposed the backing slice")
	}
}

func TestRingBuffer_Concurrent(t *testing.T) {
	rb := NewRingBuffer[int](50)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				rb.Add(i)
				_ = rb.Tail(5)
			}
		}()
	}
	wg.Wait()
	if rb.Len() != 50 {
		t.Errorf("expected full buffer, got %d", rb.Len())
	}
}

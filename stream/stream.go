package stream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
)

// Pipeline helpers in the style of
// https://betterprogramming.pub/writing-a-stream-api-in-go-afbc3c4350e2
// Every stage closes its output when its input closes or ctx is done.

// Slice emits the elements of in, in order.
func Slice[T any](ctx context.Context, in []T) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		for _, el := range in {
			select {
			case <-ctx.Done():
				return
			case out <- el:
			}
		}
	}()
	return out
}

// NDJSON decodes a stream of JSON values from r.
// Malformed values end the stream; the decode error is sent on errs (buffered, 1)
// and errs is closed when decoding stops. io.EOF is not an error.
func NDJSON[T any](ctx context.Context, r io.Reader) (<-chan T, <-chan error) {
	out := make(chan T)
	errs := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errs)
		dec := json.NewDecoder(r)
		for {
			var el T
			if err := dec.Decode(&el); err != nil {
				if !errors.Is(err, io.EOF) {
					errs <- err
				}
				return
			}
			select {
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			case out <- el:
			}
		}
	}()
	return out, errs
}

// Filter passes along the elements for which predicate is true.
func Filter[T any](ctx context.Context, predicate func(T) bool, in <-chan T) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		for el := range in {
			if !predicate(el) {
				continue
			}
			select {
			case <-ctx.Done():
				return
			case out <- el:
			}
		}
	}()
	return out
}

// TransformErr maps in to out, dropping elements the transformer fails on.
// onErr, if not nil, sees every dropped element's error.
func TransformErr[I any, O any](ctx context.Context, transformer func(I) (O, error), onErr func(error), in <-chan I) <-chan O {
	out := make(chan O)
	go func() {
		defer close(out)
		for el := range in {
			o, err := transformer(el)
			if err != nil {
				if onErr != nil {
					onErr(err)
				}
				continue
			}
			select {
			case <-ctx.Done():
				return
			case out <- o:
			}
		}
	}()
	return out
}

// Collect drains in into a slice. It returns early, with what it has, if ctx is done.
func Collect[T any](ctx context.Context, in <-chan T) []T {
	out := make([]T, 0)
	for {
		select {
		case <-ctx.Done():
			return out
		case el, ok := <-in:
			if !ok {
				return out
			}
			out = append(out, el)
		}
	}
}

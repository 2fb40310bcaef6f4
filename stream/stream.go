// Package stream holds small generic channel pipeline stages.
// Every stage closes its output when its input closes or ctx is done.
package stream

import (
	"context"
	"slices"
)

func Slice[T any](ctx context.Context, in []T) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		for _, element := range in {
			select {
			case <-ctx.Done():
				return
			case out <- element:
			}
		}
	}()
	return out
}

func Filter[T any](ctx context.Context, predicate func(T) bool, in <-chan T) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		for element := range in {
			if !predicate(element) {
				continue
			}
			select {
			case <-ctx.Done():
				return
			case out <- element:
			}
		}
	}()
	return out
}

// Collect blocks until in closes or ctx is done.
func Collect[T any](ctx context.Context, in <-chan T) []T {
	out := make([]T, 0)
	for {
		select {
		case <-ctx.Done():
			return out
		case element, ok := <-in:
			if !ok {
				return out
			}
			out = append(out, element)
		}
	}
}

// BatchSort sorts elements within consecutive batches of size.
// A nil cmp passes batches through unsorted.
func BatchSort[T any](ctx context.Context, size int, cmp func(a, b T) int, in <-chan T) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		batch := make([]T, 0, size)
		flush := func() bool {
			if cmp != nil {
				slices.SortStableFunc(batch, cmp)
			}
			for _, element := range batch {
				select {
				case <-ctx.Done():
					return false
				case out <- element:
				}
			}
			batch = batch[:0]
			return true
		}
		for element := range in {
			batch = append(batch, element)
			if len(batch) >= size {
				if !flush() {
					return
				}
			}
		}
		flush()
	}()
	return out
}

// Package sink consumes tracker events: logs, notifications, stores and remote forwarding.
package sink

import (
	"context"
	"io"
	"log/slog"

	"github.com/ethereum/go-ethereum/event"
	"github.com/rotblauer/motiond/events"
)

// Sink receives reportable events. Emit errors are logged by Attach and
// never stop the stream.
type Sink interface {
	Emit(ctx context.Context, ev events.Event) error
}

// Func adapts a func to a Sink.
type Func func(ctx context.Context, ev events.Event) error

func (f Func) Emit(ctx context.Context, ev events.Event) error {
	return f(ctx, ev)
}

// Attach subscribes s to feed with a buffer and drains it until ctx is done.
// The returned channel is closed once the sink has stopped; if s is an io.Closer it is closed first.
func Attach(ctx context.Context, feed *events.Feed, s Sink, buffer int) <-chan struct{} {
	return AttachFunc(ctx, feed, s.Emit, buffer, closerOf(s))
}

func closerOf(v any) io.Closer {
	if c, ok := v.(io.Closer); ok {
		return c
	}
	return nil
}

// AttachFunc is Attach for any feed element type.
func AttachFunc[T any](ctx context.Context, feed *event.FeedOf[T], emit func(context.Context, T) error, buffer int, closer io.Closer) <-chan struct{} {
	ch := make(chan T, buffer)
	sub := feed.Subscribe(ch)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			if closer == nil {
				return
			}
			if err := closer.Close(); err != nil {
				slog.Error("Failed to close sink", "error", err)
			}
		}()
		defer sub.Unsubscribe()
		for {
			select {
			case <-ctx.Done():
				// Flush what was already sent.
				for {
					select {
					case v := <-ch:
						if err := emit(context.WithoutCancel(ctx), v); err != nil {
							slog.Warn("Sink failed", "error", err)
						}
					default:
						return
					}
				}
			case err := <-sub.Err():
				if err != nil {
					slog.Error("Sink subscription failed", "error", err)
				}
				return
			case v := <-ch:
				if err := emit(ctx, v); err != nil {
					slog.Warn("Sink failed", "error", err)
				}
			}
		}
	}()
	return done
}

// Kinds passes only events of the given kinds to s.
func Kinds(s Sink, kinds ...events.Kind) Sink {
	return Func(func(ctx context.Context, ev events.Event) error {
		for _, k := range kinds {
			if ev.Kind == k {
				return s.Emit(ctx, ev)
			}
		}
		return nil
	})
}

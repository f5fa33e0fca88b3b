// Package play expands a macro back into raw events and injects them
// through a virtual input device.
package play

import (
	"context"

	"golang.org/x/sync/errgroup"

	"kafji.net/rekam/inputevent"
	"kafji.net/rekam/inputsink"
	"kafji.net/rekam/logging"
	"kafji.net/rekam/macro"
)

var slog = logging.NewLogger("rekam/play")

// Run plays the state sequence repeat times. Repeats below one play once.
func Run(ctx context.Context, states []macro.State, repeat int) error {
	if repeat < 1 {
		repeat = 1
	}

	events := macro.StatesToEvents(states)
	slog.Info("playing", "states", len(states), "events", len(events), "repeat", repeat)

	source := make(chan inputevent.RawEvent)
	done := inputsink.Start(ctx, source)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(source)
		offset := uint64(0)
		for i := 0; i < repeat; i++ {
			for _, event := range events {
				event.TimestampUS += offset
				select {
				case <-ctx.Done():
					return ctx.Err()
				case source <- event:
				}
			}
			// Keep the virtual clock moving across repeats so pacing does
			// not collapse at the seam.
			if len(events) > 0 {
				offset += events[len(events)-1].TimestampUS
			}
		}
		return nil
	})

	g.Go(func() error {
		return <-done
	})

	return g.Wait()
}

// Package record captures events from an input device and compresses them
// into a macro.
package record

import (
	"context"
	"errors"
	"fmt"

	"kafji.net/rekam/inputevent"
	"kafji.net/rekam/inputsource"
	"kafji.net/rekam/keymap"
	"kafji.net/rekam/logging"
	"kafji.net/rekam/macro"
	"kafji.net/rekam/macrofile"
	"kafji.net/rekam/rekam/config"
)

var slog = logging.NewLogger("rekam/record")

const defaultStopKey = "ESC"

// Run records until the stop key is released or the context is canceled,
// and returns the captured macro. The stop key's own press and release are
// not part of the macro.
func Run(ctx context.Context, cfg *config.Config, name string) (*macrofile.File, error) {
	stopKeyName := cfg.Record.StopKey
	if stopKeyName == "" {
		stopKeyName = defaultStopKey
	}
	stopKey, ok := keymap.NameToKeycode(stopKeyName)
	if !ok {
		return nil, fmt.Errorf("unknown stop key %q", stopKeyName)
	}

	if cfg.Record.Device == "" {
		return nil, fmt.Errorf("record.device is not configured")
	}

	source := inputsource.Start(ctx, &inputsource.Config{
		DevicePath: cfg.Record.Device,
		Grab:       cfg.Record.Grab,
	})

	slog.Info("recording", "device", cfg.Record.Device, "stop_key", stopKeyName)

	events, err := collect(ctx, source, stopKey)
	if err != nil {
		return nil, err
	}

	states := macro.EventsToStates(events)
	slog.Info("recording finished", "events", len(events), "states", len(states))

	return macrofile.New(name, states), nil
}

// collect buffers events until the stop key comes back up. Everything from
// the stop key's press onward is discarded.
func collect(ctx context.Context, source *inputsource.Handle, stopKey uint16) ([]inputevent.RawEvent, error) {
	events := make([]inputevent.RawEvent, 0)
	stopPressedAt := -1

	for {
		select {
		case <-ctx.Done():
			return events, nil

		case event, ok := <-source.Events():
			if !ok {
				err := source.Err()
				if err != nil && !errors.Is(err, context.Canceled) {
					return nil, err
				}
				return events, nil
			}

			if event.Kind == inputevent.KindKey && event.Code == stopKey {
				switch event.Value {
				case inputevent.KeyDown:
					stopPressedAt = len(events)
				case inputevent.KeyUp:
					if stopPressedAt >= 0 {
						events = events[:stopPressedAt]
					}
					return events, nil
				}
				continue
			}

			events = append(events, event)
		}
	}
}

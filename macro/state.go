// Package macro converts raw input event streams into a compact sequence of
// hold states and back. A state tells which keys are held, and how much the
// pointer and scroll wheel moved, over a duration. The representation is what
// gets persisted and edited; expansion back to raw events drives playback.
package macro

import (
	"maps"
	"slices"

	"kafji.net/rekam/inputevent"
)

// JitterThreshold is the minimum Manhattan distance (|x|+|y|) a state's
// mouse delta must reach to survive the jitter filter.
const JitterThreshold = 5

// State is one interval of the recorded timeline. States are contiguous and
// non-overlapping: state i begins exactly when state i-1 ends.
//
// DurationMS == 0 marks the unflushed terminal snapshot at the end of a
// recording, never an intermediate wait.
type State struct {
	DurationMS  uint64
	KeysPressed map[uint16]struct{}
	MouseDelta  [2]int32
	ScrollDelta [2]int32
}

func NewState(durationMS uint64) State {
	return State{DurationMS: durationMS, KeysPressed: make(map[uint16]struct{})}
}

// IsEmpty reports whether the state holds no keys and no motion.
func (s State) IsEmpty() bool {
	return len(s.KeysPressed) == 0 && s.MouseDelta == [2]int32{} && s.ScrollDelta == [2]int32{}
}

// Keys returns the held key codes as a sorted slice.
func (s State) Keys() []uint16 {
	return slices.Sorted(maps.Keys(s.KeysPressed))
}

// EventsToStates compresses an ordered, non-decreasing-by-timestamp event
// stream into hold states. Durations are truncated to whole milliseconds;
// the final sub-millisecond remainder is dropped. An out-of-order timestamp
// clamps elapsed time to zero: the event still mutates the accumulators but
// no state is flushed for it. Key repeats and unrecognized kinds or axis
// codes are ignored.
//
// If keys are still held, or motion is still accumulated, when the stream
// ends, a terminal state with zero duration captures them. Releasing those
// keys is playback's job, not the builder's.
func EventsToStates(events []inputevent.RawEvent) []State {
	if len(events) == 0 {
		return nil
	}

	states := make([]State, 0)
	heldKeys := make(map[uint16]struct{})
	lastTimestampUS := uint64(0)
	var mouseAcc, scrollAcc [2]int32

	for _, event := range events {
		elapsedUS := uint64(0)
		if event.TimestampUS > lastTimestampUS {
			elapsedUS = event.TimestampUS - lastTimestampUS
		}

		// Time has passed, snapshot the current hold. An empty snapshot is
		// a wait.
		if durationMS := elapsedUS / 1000; durationMS > 0 {
			state := NewState(durationMS)
			maps.Copy(state.KeysPressed, heldKeys)
			state.MouseDelta = mouseAcc
			state.ScrollDelta = scrollAcc
			states = append(states, state)

			// Motion does not carry over into the next interval. Held keys
			// do.
			mouseAcc = [2]int32{}
			scrollAcc = [2]int32{}
		}

		switch event.Kind {
		case inputevent.KindKey:
			switch event.Value {
			case inputevent.KeyDown:
				heldKeys[event.Code] = struct{}{}
			case inputevent.KeyUp:
				delete(heldKeys, event.Code)
			default:
				// Repeats do not change what is held.
			}

		case inputevent.KindRelativeAxis:
			switch event.Code {
			case inputevent.RelX:
				mouseAcc[0] += event.Value
			case inputevent.RelY:
				mouseAcc[1] += event.Value
			case inputevent.RelWheel:
				scrollAcc[0] += event.Value
			case inputevent.RelHWheel:
				scrollAcc[1] += event.Value
			}

		default:
			// Synchronization and unknown kinds carry no hold information.
		}

		lastTimestampUS = event.TimestampUS
	}

	if len(heldKeys) > 0 || mouseAcc != [2]int32{} || scrollAcc != [2]int32{} {
		state := NewState(0)
		state.KeysPressed = heldKeys
		state.MouseDelta = mouseAcc
		state.ScrollDelta = scrollAcc
		states = append(states, state)
	}

	for i := range states {
		states[i].filterJitter()
	}

	return MergeStates(states)
}

func (s *State) filterJitter() {
	distance := abs32(s.MouseDelta[0]) + abs32(s.MouseDelta[1])
	if distance < JitterThreshold {
		s.MouseDelta = [2]int32{}
	}
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

// MergeStates run-length merges adjacent states that hold the same keys and
// have no motion in either, summing their durations. Merging its own output
// again changes nothing.
func MergeStates(states []State) []State {
	if len(states) == 0 {
		return states
	}

	merged := make([]State, 0, len(states))
	current := states[0]

	for _, state := range states[1:] {
		if maps.Equal(current.KeysPressed, state.KeysPressed) &&
			current.MouseDelta == [2]int32{} && state.MouseDelta == [2]int32{} &&
			current.ScrollDelta == [2]int32{} && state.ScrollDelta == [2]int32{} {
			current.DurationMS += state.DurationMS
			continue
		}
		merged = append(merged, current)
		current = state
	}

	return append(merged, current)
}

// StatesToEvents expands hold states back into a raw event stream suitable
// for device injection, on a synthetic clock starting at zero. Key
// transitions are diffed between consecutive states; releases are emitted
// before presses so a key toggling within the same instant never overlaps
// itself. Every key transition and every motion burst is followed by a
// synchronization event. Keys still held after the last state are released
// at the final clock value.
func StatesToEvents(states []State) []inputevent.RawEvent {
	events := make([]inputevent.RawEvent, 0)
	currentKeys := make(map[uint16]struct{})
	clockUS := uint64(0)

	for _, state := range states {
		var toRelease, toPress []uint16
		for _, k := range slices.Sorted(maps.Keys(currentKeys)) {
			if _, ok := state.KeysPressed[k]; !ok {
				toRelease = append(toRelease, k)
			}
		}
		for _, k := range state.Keys() {
			if _, ok := currentKeys[k]; !ok {
				toPress = append(toPress, k)
			}
		}

		for _, k := range toRelease {
			events = append(events,
				inputevent.KeyEvent(clockUS, k, inputevent.KeyUp),
				inputevent.SyncEvent(clockUS))
		}
		for _, k := range toPress {
			events = append(events,
				inputevent.KeyEvent(clockUS, k, inputevent.KeyDown),
				inputevent.SyncEvent(clockUS))
		}

		if state.MouseDelta != [2]int32{} {
			if state.MouseDelta[0] != 0 {
				events = append(events, inputevent.RelEvent(clockUS, inputevent.RelX, state.MouseDelta[0]))
			}
			if state.MouseDelta[1] != 0 {
				events = append(events, inputevent.RelEvent(clockUS, inputevent.RelY, state.MouseDelta[1]))
			}
			events = append(events, inputevent.SyncEvent(clockUS))
		}

		if state.ScrollDelta != [2]int32{} {
			if state.ScrollDelta[0] != 0 {
				events = append(events, inputevent.RelEvent(clockUS, inputevent.RelWheel, state.ScrollDelta[0]))
			}
			if state.ScrollDelta[1] != 0 {
				events = append(events, inputevent.RelEvent(clockUS, inputevent.RelHWheel, state.ScrollDelta[1]))
			}
			events = append(events, inputevent.SyncEvent(clockUS))
		}

		currentKeys = make(map[uint16]struct{}, len(state.KeysPressed))
		maps.Copy(currentKeys, state.KeysPressed)

		clockUS += state.DurationMS * 1000
	}

	for _, k := range slices.Sorted(maps.Keys(currentKeys)) {
		events = append(events,
			inputevent.KeyEvent(clockUS, k, inputevent.KeyUp),
			inputevent.SyncEvent(clockUS))
	}

	return events
}

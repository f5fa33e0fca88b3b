package macro

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kafji.net/rekam/inputevent"
)

func keySet(codes ...uint16) map[uint16]struct{} {
	set := make(map[uint16]struct{}, len(codes))
	for _, c := range codes {
		set[c] = struct{}{}
	}
	return set
}

func TestEmptyEvents(t *testing.T) {
	assert.Empty(t, EventsToStates(nil))
	assert.Empty(t, EventsToStates([]inputevent.RawEvent{}))
}

func TestSingleKeyHold(t *testing.T) {
	events := []inputevent.RawEvent{
		inputevent.KeyEvent(0, 17, inputevent.KeyDown),
		inputevent.KeyEvent(100_000, 17, inputevent.KeyUp),
	}

	states := EventsToStates(events)
	require.Len(t, states, 1)
	assert.Equal(t, uint64(100), states[0].DurationMS)
	assert.Equal(t, keySet(17), states[0].KeysPressed)
	assert.Equal(t, [2]int32{}, states[0].MouseDelta)
	assert.Equal(t, [2]int32{}, states[0].ScrollDelta)
}

func TestWaitGapBetweenKeys(t *testing.T) {
	// W held 100ms, idle 6s, A held 100ms.
	events := []inputevent.RawEvent{
		inputevent.KeyEvent(0, 17, inputevent.KeyDown),
		inputevent.KeyEvent(100_000, 17, inputevent.KeyUp),
		inputevent.KeyEvent(6_100_000, 30, inputevent.KeyDown),
		inputevent.KeyEvent(6_200_000, 30, inputevent.KeyUp),
	}

	states := EventsToStates(events)
	require.Len(t, states, 3)

	assert.Equal(t, uint64(100), states[0].DurationMS)
	assert.Equal(t, keySet(17), states[0].KeysPressed)

	assert.Equal(t, uint64(6000), states[1].DurationMS)
	assert.Empty(t, states[1].KeysPressed)

	assert.Equal(t, uint64(100), states[2].DurationMS)
	assert.Equal(t, keySet(30), states[2].KeysPressed)
}

func TestTerminalStateForHeldKey(t *testing.T) {
	events := []inputevent.RawEvent{
		inputevent.KeyEvent(0, 42, inputevent.KeyDown),
		inputevent.KeyEvent(50_000, 17, inputevent.KeyDown),
	}

	states := EventsToStates(events)
	require.Len(t, states, 2)
	assert.Equal(t, uint64(50), states[0].DurationMS)
	assert.Equal(t, keySet(42), states[0].KeysPressed)
	assert.Equal(t, uint64(0), states[1].DurationMS)
	assert.Equal(t, keySet(42, 17), states[1].KeysPressed)
}

func TestKeyRepeatIsNoOp(t *testing.T) {
	events := []inputevent.RawEvent{
		inputevent.KeyEvent(0, 17, inputevent.KeyDown),
		inputevent.KeyEvent(30_000, 17, inputevent.KeyRepeat),
		inputevent.KeyEvent(60_000, 17, inputevent.KeyRepeat),
		inputevent.KeyEvent(100_000, 17, inputevent.KeyUp),
	}

	states := EventsToStates(events)
	require.Len(t, states, 1)
	assert.Equal(t, uint64(100), states[0].DurationMS)
	assert.Equal(t, keySet(17), states[0].KeysPressed)
}

func TestUnrecognizedKindsAndAxesIgnored(t *testing.T) {
	events := []inputevent.RawEvent{
		inputevent.KeyEvent(0, 17, inputevent.KeyDown),
		inputevent.SyncEvent(10_000),
		{TimestampUS: 20_000, Kind: inputevent.KindOther, Code: 99, Value: 7},
		inputevent.RelEvent(30_000, 11, 3), // REL_MISC, untracked axis
		inputevent.KeyEvent(100_000, 17, inputevent.KeyUp),
	}

	states := EventsToStates(events)
	require.Len(t, states, 1)
	assert.Equal(t, uint64(100), states[0].DurationMS)
	assert.Equal(t, keySet(17), states[0].KeysPressed)
}

func TestOutOfOrderTimestampClampsElapsed(t *testing.T) {
	events := []inputevent.RawEvent{
		inputevent.KeyEvent(0, 17, inputevent.KeyDown),
		inputevent.KeyEvent(100_000, 30, inputevent.KeyDown),
		// Clock went backwards. The release still registers, no state flush.
		inputevent.KeyEvent(40_000, 17, inputevent.KeyUp),
		inputevent.KeyEvent(140_000, 30, inputevent.KeyUp),
	}

	states := EventsToStates(events)
	require.Len(t, states, 2)
	assert.Equal(t, uint64(100), states[0].DurationMS)
	assert.Equal(t, keySet(17), states[0].KeysPressed)
	assert.Equal(t, uint64(100), states[1].DurationMS)
	assert.Equal(t, keySet(30), states[1].KeysPressed)
}

func TestSubMillisecondRemainderDropped(t *testing.T) {
	events := []inputevent.RawEvent{
		inputevent.KeyEvent(0, 17, inputevent.KeyDown),
		inputevent.KeyEvent(100_999, 17, inputevent.KeyUp),
	}

	states := EventsToStates(events)
	require.Len(t, states, 1)
	assert.Equal(t, uint64(100), states[0].DurationMS)
}

func TestMouseJitterFiltered(t *testing.T) {
	events := []inputevent.RawEvent{
		inputevent.RelEvent(0, inputevent.RelX, 2),
		inputevent.RelEvent(5_000, inputevent.RelY, -2),
		inputevent.KeyEvent(10_000, 17, inputevent.KeyDown),
		inputevent.KeyEvent(110_000, 17, inputevent.KeyUp),
	}

	states := EventsToStates(events)
	for _, s := range states {
		distance := abs32(s.MouseDelta[0]) + abs32(s.MouseDelta[1])
		assert.True(t, distance == 0 || distance >= JitterThreshold,
			"mouse delta %v below jitter threshold", s.MouseDelta)
	}
}

func TestMouseMotionSurvivesThreshold(t *testing.T) {
	events := []inputevent.RawEvent{
		inputevent.RelEvent(0, inputevent.RelX, 3),
		inputevent.RelEvent(500, inputevent.RelX, 4),
		inputevent.RelEvent(900, inputevent.RelY, -6),
		inputevent.KeyEvent(10_000, 17, inputevent.KeyDown),
		inputevent.KeyEvent(110_000, 17, inputevent.KeyUp),
	}

	states := EventsToStates(events)
	require.NotEmpty(t, states)

	var total [2]int32
	for _, s := range states {
		total[0] += s.MouseDelta[0]
		total[1] += s.MouseDelta[1]
	}
	assert.Equal(t, [2]int32{7, -6}, total)
}

func TestScrollAccumulates(t *testing.T) {
	events := []inputevent.RawEvent{
		inputevent.RelEvent(0, inputevent.RelWheel, 1),
		inputevent.RelEvent(100, inputevent.RelWheel, 1),
		inputevent.RelEvent(200, inputevent.RelHWheel, -1),
		inputevent.KeyEvent(10_000, 17, inputevent.KeyDown),
		inputevent.KeyEvent(110_000, 17, inputevent.KeyUp),
	}

	states := EventsToStates(events)
	require.NotEmpty(t, states)

	var total [2]int32
	for _, s := range states {
		total[0] += s.ScrollDelta[0]
		total[1] += s.ScrollDelta[1]
	}
	assert.Equal(t, [2]int32{2, -1}, total)
}

func TestMergeSumsDurations(t *testing.T) {
	states := []State{
		{DurationMS: 10, KeysPressed: keySet(17)},
		{DurationMS: 20, KeysPressed: keySet(17)},
	}

	merged := MergeStates(states)
	require.Len(t, merged, 1)
	assert.Equal(t, uint64(30), merged[0].DurationMS)
	assert.Equal(t, keySet(17), merged[0].KeysPressed)
}

func TestMergeKeepsMotionBoundaries(t *testing.T) {
	states := []State{
		{DurationMS: 10, KeysPressed: keySet(17), MouseDelta: [2]int32{8, 0}},
		{DurationMS: 20, KeysPressed: keySet(17)},
	}

	merged := MergeStates(states)
	assert.Len(t, merged, 2)
}

func TestMergeIdempotent(t *testing.T) {
	states := []State{
		{DurationMS: 5, KeysPressed: keySet()},
		{DurationMS: 5, KeysPressed: keySet()},
		{DurationMS: 10, KeysPressed: keySet(17)},
		{DurationMS: 3, KeysPressed: keySet(17), ScrollDelta: [2]int32{1, 0}},
		{DurationMS: 3, KeysPressed: keySet(17)},
	}

	once := MergeStates(states)
	twice := MergeStates(once)
	assert.Equal(t, once, twice)
}

func TestNoAdjacentIdenticalSignatures(t *testing.T) {
	events := []inputevent.RawEvent{
		inputevent.KeyEvent(0, 17, inputevent.KeyDown),
		inputevent.KeyEvent(50_000, 17, inputevent.KeyRepeat),
		inputevent.KeyEvent(150_000, 17, inputevent.KeyRepeat),
		inputevent.KeyEvent(250_000, 17, inputevent.KeyUp),
		inputevent.KeyEvent(300_000, 30, inputevent.KeyDown),
		inputevent.KeyEvent(400_000, 30, inputevent.KeyUp),
	}

	states := EventsToStates(events)
	for i := 1; i < len(states); i++ {
		prev, cur := states[i-1], states[i]
		mergeable := assert.ObjectsAreEqual(prev.KeysPressed, cur.KeysPressed) &&
			prev.MouseDelta == [2]int32{} && cur.MouseDelta == [2]int32{} &&
			prev.ScrollDelta == [2]int32{} && cur.ScrollDelta == [2]int32{}
		assert.False(t, mergeable, "states %d and %d should have been merged", i-1, i)
	}
}

func TestDurationAccounting(t *testing.T) {
	events := []inputevent.RawEvent{
		inputevent.KeyEvent(1_234, 17, inputevent.KeyDown),
		inputevent.RelEvent(400_777, inputevent.RelX, 12),
		inputevent.KeyEvent(900_001, 17, inputevent.KeyUp),
		inputevent.KeyEvent(2_500_600, 30, inputevent.KeyDown),
		inputevent.KeyEvent(2_600_600, 30, inputevent.KeyUp),
	}

	states := EventsToStates(events)
	require.NotEmpty(t, states)

	total := uint64(0)
	for i, s := range states {
		if i == len(states)-1 && s.DurationMS == 0 {
			continue
		}
		total += s.DurationMS
	}
	want := (events[len(events)-1].TimestampUS - events[0].TimestampUS) / 1000
	assert.Equal(t, want, total)
}

// heldKeysAt replays an event stream and reports which keys are down at the
// given virtual time.
func heldKeysAt(events []inputevent.RawEvent, atUS uint64) map[uint16]struct{} {
	held := make(map[uint16]struct{})
	for _, e := range events {
		if e.TimestampUS > atUS {
			break
		}
		if e.Kind != inputevent.KindKey {
			continue
		}
		switch e.Value {
		case inputevent.KeyDown:
			held[e.Code] = struct{}{}
		case inputevent.KeyUp:
			delete(held, e.Code)
		}
	}
	return held
}

func TestRoundTripHeldKeys(t *testing.T) {
	events := []inputevent.RawEvent{
		inputevent.KeyEvent(0, 17, inputevent.KeyDown),
		inputevent.KeyEvent(100_000, 17, inputevent.KeyUp),
		inputevent.KeyEvent(6_100_000, 30, inputevent.KeyDown),
		inputevent.KeyEvent(6_200_000, 30, inputevent.KeyUp),
	}

	replayed := StatesToEvents(EventsToStates(events))

	samples := []struct {
		atUS uint64
		want map[uint16]struct{}
	}{
		{50_000, keySet(17)},
		{99_999, keySet(17)},
		{100_000, keySet()},
		{3_000_000, keySet()},
		{6_150_000, keySet(30)},
		{6_200_000, keySet()},
	}
	for _, sample := range samples {
		assert.Equal(t, sample.want, heldKeysAt(replayed, sample.atUS),
			"held keys at %dus", sample.atUS)
	}
}

func TestPlayerReleasesBeforePresses(t *testing.T) {
	states := []State{
		{DurationMS: 100, KeysPressed: keySet(17)},
		{DurationMS: 100, KeysPressed: keySet(30)},
	}

	events := StatesToEvents(states)

	// At the 100ms boundary the release of 17 must precede the press of 30.
	var boundary []inputevent.RawEvent
	for _, e := range events {
		if e.TimestampUS == 100_000 && e.Kind == inputevent.KindKey {
			boundary = append(boundary, e)
		}
	}
	require.Len(t, boundary, 2)
	assert.Equal(t, inputevent.KeyEvent(100_000, 17, inputevent.KeyUp), boundary[0])
	assert.Equal(t, inputevent.KeyEvent(100_000, 30, inputevent.KeyDown), boundary[1])
}

func TestPlayerReleasesTrailingKeys(t *testing.T) {
	states := []State{
		{DurationMS: 40, KeysPressed: keySet(17, 30)},
	}

	events := StatesToEvents(states)
	require.NotEmpty(t, events)

	last := events[len(events)-1]
	assert.Equal(t, uint64(40_000), last.TimestampUS)
	assert.Empty(t, heldKeysAt(events, 40_000))
}

func TestPlayerEmitsSyncAfterTransitions(t *testing.T) {
	states := []State{
		{DurationMS: 10, KeysPressed: keySet(17), MouseDelta: [2]int32{5, -3}, ScrollDelta: [2]int32{1, 0}},
	}

	events := StatesToEvents(states)

	for i, e := range events {
		if e.Kind == inputevent.KindKey {
			require.Greater(t, len(events), i+1)
			assert.Equal(t, inputevent.KindSynchronization, events[i+1].Kind)
		}
	}
	// Motion bursts share one trailing sync per burst.
	assert.Equal(t, inputevent.KindRelativeAxis, events[2].Kind)
	assert.Equal(t, inputevent.KindRelativeAxis, events[3].Kind)
	assert.Equal(t, inputevent.KindSynchronization, events[4].Kind)
}

func TestMotionRoundTripsAsSingleBurst(t *testing.T) {
	states := []State{
		{DurationMS: 50, KeysPressed: keySet(), MouseDelta: [2]int32{40, -10}, ScrollDelta: [2]int32{-2, 0}},
	}

	rebuilt := EventsToStates(StatesToEvents(states))
	require.Len(t, rebuilt, 1)
	assert.Equal(t, [2]int32{40, -10}, rebuilt[0].MouseDelta)
	assert.Equal(t, [2]int32{-2, 0}, rebuilt[0].ScrollDelta)
}

package inputevent

// EventKind mirrors the Linux input event type the raw event was captured
// as. Kinds this package does not model map to KindOther instead of failing,
// so device layers may forward anything they read.
type EventKind uint8

const (
	KindKey EventKind = iota + 1
	KindRelativeAxis
	KindSynchronization
	KindOther
)

// Relative axis codes, by evdev convention.
const (
	RelX      uint16 = 0
	RelY      uint16 = 1
	RelHWheel uint16 = 6
	RelWheel  uint16 = 8
)

// Key event values.
const (
	KeyUp     int32 = 0
	KeyDown   int32 = 1
	KeyRepeat int32 = 2
)

// RawEvent is a single timestamped hardware-level input signal.
//
// TimestampUS is a monotonically non-decreasing microsecond timestamp
// relative to an arbitrary origin. For KindKey, Code is the key code and
// Value is one of KeyUp, KeyDown, KeyRepeat. For KindRelativeAxis, Code is
// the axis and Value the signed delta.
type RawEvent struct {
	TimestampUS uint64    `json:"timestamp_us"`
	Kind        EventKind `json:"kind"`
	Code        uint16    `json:"code"`
	Value       int32     `json:"value"`
}

func KeyEvent(timestampUS uint64, code uint16, value int32) RawEvent {
	return RawEvent{TimestampUS: timestampUS, Kind: KindKey, Code: code, Value: value}
}

func RelEvent(timestampUS uint64, axis uint16, delta int32) RawEvent {
	return RawEvent{TimestampUS: timestampUS, Kind: KindRelativeAxis, Code: axis, Value: delta}
}

func SyncEvent(timestampUS uint64) RawEvent {
	return RawEvent{TimestampUS: timestampUS, Kind: KindSynchronization}
}

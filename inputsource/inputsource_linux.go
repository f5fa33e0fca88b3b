// Package inputsource reads raw input events from an evdev character
// device. Which device to read is the caller's problem; pass the path of a
// node under /dev/input.
package inputsource

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"

	"kafji.net/rekam/inputevent"
	"kafji.net/rekam/logging"
)

// https://www.kernel.org/doc/html/latest/input/input.html

var slog = logging.NewLogger("rekam/inputsource")

// input_event as read from the device on 64-bit kernels.
type rawInputEvent struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

const rawInputEventSize = int(unsafe.Sizeof(rawInputEvent{}))

// Linux input event types.
const (
	evSyn uint16 = 0x00
	evKey uint16 = 0x01
	evRel uint16 = 0x02
)

// EVIOCGRAB = _IOW('E', 0x90, int)
const eviocgrab = (1 << 30) | (uint('E') << 8) | 0x90 | (4 << 16)

type Config struct {
	DevicePath string
	// Grab takes the device exclusively so recorded strokes do not also
	// reach the rest of the system.
	Grab bool
}

type Handle struct {
	events chan inputevent.RawEvent
	err    error
}

func (h *Handle) Events() <-chan inputevent.RawEvent {
	return h.events
}

func (h *Handle) Err() error {
	return h.err
}

func Start(ctx context.Context, cfg *Config) *Handle {
	h := &Handle{events: make(chan inputevent.RawEvent)}
	go func() {
		defer close(h.events)
		h.err = run(ctx, cfg, h.events)
	}()
	return h
}

func run(ctx context.Context, cfg *Config, events chan<- inputevent.RawEvent) error {
	file, err := os.OpenFile(cfg.DevicePath, os.O_RDONLY, 0)
	if err != nil {
		return fmt.Errorf("failed to open device: %v", err)
	}
	defer file.Close()

	if cfg.Grab {
		err := ioctl(file.Fd(), eviocgrab, 1)
		if err != nil {
			return fmt.Errorf("failed to grab device: %v", err)
		}
		defer ioctl(file.Fd(), eviocgrab, 0)
	}

	// Reads block with no deadline support, closing the file is the only
	// way to interrupt them.
	stop := context.AfterFunc(ctx, func() {
		file.Close()
	})
	defer stop()

	slog.Info("reading events", "device", cfg.DevicePath)

	buf := make([]byte, rawInputEventSize*64)
	for {
		n, err := file.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("failed to read device: %v", err)
		}

		for off := 0; off+rawInputEventSize <= n; off += rawInputEventSize {
			event := parseEvent(buf[off : off+rawInputEventSize])
			select {
			case <-ctx.Done():
				return ctx.Err()
			case events <- event:
			}
		}
	}
}

func parseEvent(b []byte) inputevent.RawEvent {
	sec := int64(binary.LittleEndian.Uint64(b[0:8]))
	usec := int64(binary.LittleEndian.Uint64(b[8:16]))
	type_ := binary.LittleEndian.Uint16(b[16:18])
	code := binary.LittleEndian.Uint16(b[18:20])
	value := int32(binary.LittleEndian.Uint32(b[20:24]))

	kind := inputevent.KindOther
	switch type_ {
	case evKey:
		kind = inputevent.KindKey
	case evRel:
		kind = inputevent.KindRelativeAxis
	case evSyn:
		kind = inputevent.KindSynchronization
	}

	return inputevent.RawEvent{
		TimestampUS: uint64(sec)*1_000_000 + uint64(usec),
		Kind:        kind,
		Code:        code,
		Value:       value,
	}
}

func ioctl(fd uintptr, req uint, arg uintptr) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, uintptr(req), arg)
	if errno != 0 {
		name := unix.ErrnoName(syscall.Errno(errno))
		return fmt.Errorf("%s %d", name, errno)
	}
	return nil
}

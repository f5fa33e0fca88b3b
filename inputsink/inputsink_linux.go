// Package inputsink injects raw input events into the system through a
// uinput virtual device. Events are written in order, paced by the gaps
// between their timestamps.
package inputsink

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"syscall"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"kafji.net/rekam/inputevent"
	"kafji.net/rekam/logging"
)

// https://www.kernel.org/doc/html/latest/input/uinput.html

var slog = logging.NewLogger("rekam/inputsink")

const devicePath = "/dev/uinput"

// Linux input event types.
const (
	evSyn uint16 = 0x00
	evKey uint16 = 0x01
	evRel uint16 = 0x02
)

const synReport uint16 = 0x00

// uinput ioctls. _IOW('U', nr, int) for the bit setters, _IO('U', nr) for
// create/destroy, _IOW('U', 3, struct uinput_setup) for setup.
const (
	uiDevCreate  = (uint('U') << 8) | 1
	uiDevDestroy = (uint('U') << 8) | 2
	uiDevSetup   = (1 << 30) | (uint(unsafe.Sizeof(uinputSetup{})) << 16) | (uint('U') << 8) | 3
	uiSetEvBit   = (1 << 30) | (4 << 16) | (uint('U') << 8) | 100
	uiSetKeyBit  = (1 << 30) | (4 << 16) | (uint('U') << 8) | 101
	uiSetRelBit  = (1 << 30) | (4 << 16) | (uint('U') << 8) | 102
)

const busVirtual = 0x06

type inputID struct {
	Bustype uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

type uinputSetup struct {
	ID           inputID
	Name         [80]byte
	FFEffectsMax uint32
}

// Highest key code the virtual device announces. Covers the keyboard range
// and the mouse button block (BTN_LEFT..BTN_TASK).
const maxKeyCode = 0x2ff

func Start(ctx context.Context, source <-chan inputevent.RawEvent) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- run(ctx, source)
	}()
	return done
}

func run(ctx context.Context, source <-chan inputevent.RawEvent) error {
	file, err := os.OpenFile(devicePath, os.O_WRONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return fmt.Errorf("failed to open uinput: %v", err)
	}
	defer file.Close()

	err = createDevice(file)
	if err != nil {
		return fmt.Errorf("failed to create uinput device: %v", err)
	}
	defer ioctl(file.Fd(), uiDevDestroy, 0)

	// Give userspace a moment to pick the new device up before events flow.
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(200 * time.Millisecond):
	}

	lastTimestampUS := uint64(0)
	first := true

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-source:
			if !ok {
				return nil
			}

			if !first && event.TimestampUS > lastTimestampUS {
				wait := time.Duration(event.TimestampUS-lastTimestampUS) * time.Microsecond
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(wait):
				}
			}
			first = false
			lastTimestampUS = event.TimestampUS

			err := writeEvent(file, event)
			if err != nil {
				return err
			}
		}
	}
}

func createDevice(file *os.File) error {
	fd := file.Fd()

	if err := ioctl(fd, uiSetEvBit, uintptr(evSyn)); err != nil {
		return err
	}
	if err := ioctl(fd, uiSetEvBit, uintptr(evKey)); err != nil {
		return err
	}
	if err := ioctl(fd, uiSetEvBit, uintptr(evRel)); err != nil {
		return err
	}

	for code := uintptr(1); code <= maxKeyCode; code++ {
		if err := ioctl(fd, uiSetKeyBit, code); err != nil {
			return err
		}
	}

	for _, axis := range []uint16{
		inputevent.RelX, inputevent.RelY, inputevent.RelWheel, inputevent.RelHWheel,
	} {
		if err := ioctl(fd, uiSetRelBit, uintptr(axis)); err != nil {
			return err
		}
	}

	setup := uinputSetup{ID: inputID{Bustype: busVirtual}}
	copy(setup.Name[:], "Rekam Virtual Input Device")
	if err := ioctl(fd, uiDevSetup, uintptr(unsafe.Pointer(&setup))); err != nil {
		return err
	}

	if err := ioctl(fd, uiDevCreate, 0); err != nil {
		return err
	}

	slog.Info("uinput device created")
	return nil
}

func writeEvent(file *os.File, event inputevent.RawEvent) error {
	type_ := evSyn
	code := event.Code
	switch event.Kind {
	case inputevent.KindKey:
		type_ = evKey
	case inputevent.KindRelativeAxis:
		type_ = evRel
	case inputevent.KindSynchronization:
		type_ = evSyn
		code = synReport
	default:
		slog.Debug("skipping event of unknown kind", "event", event)
		return nil
	}

	// input_event with a zero timestamp, the kernel fills it in.
	buf := make([]byte, 24)
	binary.LittleEndian.PutUint16(buf[16:18], type_)
	binary.LittleEndian.PutUint16(buf[18:20], code)
	binary.LittleEndian.PutUint32(buf[20:24], uint32(event.Value))

	_, err := file.Write(buf)
	if err != nil {
		return fmt.Errorf("failed to write event: %v", err)
	}
	return nil
}

func ioctl(fd uintptr, req uint, arg uintptr) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, uintptr(req), arg)
	if errno != 0 {
		name := unix.ErrnoName(syscall.Errno(errno))
		return fmt.Errorf("%s %d", name, errno)
	}
	return nil
}

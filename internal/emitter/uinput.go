package emitter

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"stenotap/internal/linux"
	"stenotap/internal/util"
)

// DeviceName is the identity of the synthetic device. The device filter
// excludes it so re-emitted events never feed back into the capture loop.
const DeviceName = "stenotap-output"

type inputID struct {
	Bustype uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

const absCnt = 0x3f + 1

type uinputUserDev struct {
	Name         [linux.UinputMaxNameSize]byte
	ID           inputID
	FFEffectsMax int32
	Absmax       [absCnt]int32
	Absmin       [absCnt]int32
	Absfuzz      [absCnt]int32
	Absflat      [absCnt]int32
}

// UInput is a virtual keyboard backed by /dev/uinput, registered with every
// key code available so it can replay anything a physical keyboard produces.
type UInput struct {
	fd     int
	closed bool
}

func OpenUInput() (*UInput, error) {
	fd, err := unix.Open("/dev/uinput", unix.O_WRONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open /dev/uinput: %w", err)
	}
	if err := configure(fd); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return &UInput{fd: fd}, nil
}

func configure(fd int) error {
	if err := linux.IoctlSetInt(fd, linux.UISetEvbit, linux.EvSyn); err != nil {
		return fmt.Errorf("UI_SET_EVBIT(EV_SYN): %w", err)
	}
	if err := linux.IoctlSetInt(fd, linux.UISetEvbit, linux.EvKey); err != nil {
		return fmt.Errorf("UI_SET_EVBIT(EV_KEY): %w", err)
	}
	for code := 0; code <= linux.KeyMax; code++ {
		_ = linux.IoctlSetInt(fd, linux.UISetKeybit, code)
	}

	var setup uinputUserDev
	copy(setup.Name[:], []byte(DeviceName))
	setup.ID.Bustype = linux.BusUSB
	setup.ID.Vendor = 0x1
	setup.ID.Product = 0x1
	setup.ID.Version = 1

	size := unsafe.Sizeof(setup)
	buf := unsafe.Slice((*byte)(unsafe.Pointer(&setup)), int(size))
	if _, err := unix.Write(fd, buf); err != nil {
		return fmt.Errorf("write uinput setup: %w", err)
	}

	if err := linux.IoctlSetInt(fd, linux.UIDevCreate, 0); err != nil {
		return fmt.Errorf("UI_DEV_CREATE: %w", err)
	}
	return nil
}

func (u *UInput) Close() error {
	if u.closed {
		return nil
	}
	u.closed = true
	_ = linux.IoctlSetInt(u.fd, linux.UIDevDestroy, 0)
	return unix.Close(u.fd)
}

// WriteEvent replays one event verbatim, without a trailing barrier. The
// capture loop forwards whole reports, so the device's own SYN_REPORT events
// travel through the same path.
func (u *UInput) WriteEvent(ev *util.InputEvent) error {
	if ev == nil {
		return nil
	}
	if _, err := unix.Write(u.fd, ev.Bytes()); err != nil {
		return fmt.Errorf("forward event: %w", err)
	}
	return nil
}

// SendKeyState emits a single key transition followed by a synchronization
// barrier, so the OS input stack observes it as one complete report.
func (u *UInput) SendKeyState(code uint16, pressed bool) error {
	value := int32(linux.KeyReleased)
	if pressed {
		value = linux.KeyPressed
	}
	ev := util.InputEvent{Type: linux.EvKey, Code: code, Value: value}
	if _, err := unix.Write(u.fd, ev.Bytes()); err != nil {
		return fmt.Errorf("write key %d: %w", code, err)
	}
	return u.Syn()
}

func (u *UInput) TapKey(code uint16) error {
	if err := u.SendKeyState(code, true); err != nil {
		return err
	}
	return u.SendKeyState(code, false)
}

func (u *UInput) Syn() error {
	syn := util.InputEvent{Type: linux.EvSyn, Code: linux.SynReport, Value: 0}
	if _, err := unix.Write(u.fd, syn.Bytes()); err != nil {
		return fmt.Errorf("write syn: %w", err)
	}
	return nil
}

package util

import (
	"unsafe"

	"golang.org/x/sys/unix"

	"stenotap/internal/linux"
)

// InputEvent mirrors struct input_event from <linux/input.h>. It is read and
// written verbatim: captured events are forwarded byte-for-byte so the
// synthetic device replays exactly what the hardware produced.
type InputEvent struct {
	Time  unix.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

func InputEventSize() int {
	return int(unsafe.Sizeof(InputEvent{}))
}

func (ev *InputEvent) Bytes() []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(ev)), InputEventSize())
}

func (ev *InputEvent) IsPress() bool {
	return ev.Type == linux.EvKey && ev.Value == linux.KeyPressed
}

func (ev *InputEvent) IsRelease() bool {
	return ev.Type == linux.EvKey && ev.Value == linux.KeyReleased
}

func (ev *InputEvent) IsRepeat() bool {
	return ev.Type == linux.EvKey && ev.Value == linux.KeyRepeated
}

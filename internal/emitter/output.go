package emitter

import "stenotap/internal/util"

// Output represents the operations the emulator and the capture loop need
// from the synthetic device. It is satisfied by UInput and enables tests to
// substitute lightweight fakes.
type Output interface {
	Close() error
	WriteEvent(*util.InputEvent) error
	SendKeyState(code uint16, pressed bool) error
	TapKey(code uint16) error
	Syn() error
}

var _ Output = (*UInput)(nil)

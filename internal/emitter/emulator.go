package emitter

import (
	"fmt"
	"log/slog"
	"strconv"

	"stenotap/internal/layout"
)

// ComboStep is one explicit key transition produced by the combo parser.
// The parser controls pairing; the emulator never adds a matching release.
type ComboStep struct {
	Key     string
	Pressed bool
}

// ComboParser turns a key-combination expression like "ctrl_l(shift(u))"
// into an ordered sequence of transitions. Parsing is owned by the steno
// engine; the emulator only resolves and emits.
type ComboParser interface {
	Parse(combo string) ([]ComboStep, error)
}

// Emulator types text through the synthetic device: layout-resolved
// keystrokes with modifier bracketing where possible, the IME Unicode
// escape where not. The pacing function is injected; the emulator only
// decides where the pauses go.
type Emulator struct {
	out    Output
	table  *layout.Table
	parser ComboParser
	delay  func()
	log    *slog.Logger
}

func NewEmulator(out Output, table *layout.Table, parser ComboParser, delay func(), log *slog.Logger) *Emulator {
	if delay == nil {
		delay = func() {}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Emulator{out: out, table: table, parser: parser, delay: delay, log: log}
}

// SendString types each character of text in order, pacing between
// characters.
func (e *Emulator) SendString(text string) error {
	first := true
	for _, r := range text {
		if !first {
			e.delay()
		}
		first = false
		if err := e.sendChar(r); err != nil {
			return err
		}
	}
	return nil
}

// SendBackspaces erases count characters via the backspace key.
func (e *Emulator) SendBackspaces(count int) error {
	for i := 0; i < count; i++ {
		if i > 0 {
			e.delay()
		}
		if err := e.sendChar('\b'); err != nil {
			return err
		}
	}
	return nil
}

// SendKeyCombination parses a combo expression and emits each transition as
// a single key event. Key names the layout cannot resolve are logged and
// dropped rather than failing the whole combination.
func (e *Emulator) SendKeyCombination(combo string) error {
	if e.parser == nil {
		return fmt.Errorf("no combo parser configured")
	}
	steps, err := e.parser.Parse(combo)
	if err != nil {
		return fmt.Errorf("parse combo %q: %w", combo, err)
	}
	for i, step := range steps {
		if i > 0 {
			e.delay()
		}
		info, ok := e.table.Resolve(step.Key)
		if !ok {
			e.log.Warn("combo key not in layout, dropping", "key", step.Key)
			continue
		}
		if err := e.out.SendKeyState(info.Code, step.Pressed); err != nil {
			return err
		}
	}
	return nil
}

func (e *Emulator) sendChar(r rune) error {
	info, ok := e.table.Resolve(string(r))
	if !ok {
		return e.sendUnicode(r)
	}
	for _, mod := range info.Modifiers {
		if err := e.out.SendKeyState(mod, true); err != nil {
			return err
		}
	}
	e.delay()
	if err := e.out.TapKey(info.Code); err != nil {
		return err
	}
	for i := len(info.Modifiers) - 1; i >= 0; i-- {
		if err := e.out.SendKeyState(info.Modifiers[i], false); err != nil {
			return err
		}
	}
	return nil
}

// sendUnicode types an arbitrary code point through the desktop IME escape:
// ctrl-shift-u, the code point in lowercase hex, then enter. iBus and fcitx5
// both bind this by default. It is best effort; a consumer that cannot keep
// up with unthrottled emission will corrupt the output, and only a longer
// configured delay helps.
func (e *Emulator) sendUnicode(r rune) error {
	ctrl, ok := e.table.Resolve("ctrl_l")
	if !ok {
		return fmt.Errorf("layout %s has no ctrl_l", e.table.Name())
	}
	shift, ok := e.table.Resolve("shift_l")
	if !ok {
		return fmt.Errorf("layout %s has no shift_l", e.table.Name())
	}
	trigger, ok := e.table.Resolve("u")
	if !ok {
		return fmt.Errorf("layout %s has no u", e.table.Name())
	}

	if err := e.out.SendKeyState(ctrl.Code, true); err != nil {
		return err
	}
	if err := e.out.SendKeyState(shift.Code, true); err != nil {
		return err
	}
	if err := e.out.TapKey(trigger.Code); err != nil {
		return err
	}
	if err := e.out.SendKeyState(shift.Code, false); err != nil {
		return err
	}
	if err := e.out.SendKeyState(ctrl.Code, false); err != nil {
		return err
	}

	e.delay()
	if err := e.SendString(strconv.FormatInt(int64(r), 16)); err != nil {
		return err
	}
	e.delay()
	return e.sendChar('\n')
}

package emitter

import (
	"fmt"
	"strings"
)

// ParserFunc adapts a plain function to the ComboParser interface.
type ParserFunc func(combo string) ([]ComboStep, error)

func (f ParserFunc) Parse(combo string) ([]ComboStep, error) { return f(combo) }

// ParseCombo parses a key combination expression into explicit transitions.
// A bare name is a press and release. A name followed by a parenthesized
// group is held around the group: "ctrl_l(shift(u)) a" presses ctrl_l, then
// shift, taps u, releases shift and ctrl_l, then taps a.
func ParseCombo(combo string) ([]ComboStep, error) {
	var steps []ComboStep
	var held []string
	i := 0
	for i < len(combo) {
		switch c := combo[i]; {
		case c == ' ' || c == '\t':
			i++
		case c == ')':
			if len(held) == 0 {
				return nil, fmt.Errorf("unbalanced ')' at offset %d", i)
			}
			key := held[len(held)-1]
			held = held[:len(held)-1]
			steps = append(steps, ComboStep{Key: key, Pressed: false})
			i++
		case c == '(':
			return nil, fmt.Errorf("'(' without a key name at offset %d", i)
		default:
			start := i
			for i < len(combo) && !strings.ContainsRune(" \t()", rune(combo[i])) {
				i++
			}
			key := strings.ToLower(combo[start:i])
			if i < len(combo) && combo[i] == '(' {
				steps = append(steps, ComboStep{Key: key, Pressed: true})
				held = append(held, key)
				i++
			} else {
				steps = append(steps,
					ComboStep{Key: key, Pressed: true},
					ComboStep{Key: key, Pressed: false})
			}
		}
	}
	if len(held) > 0 {
		return nil, fmt.Errorf("unclosed '(' after %q", held[len(held)-1])
	}
	return steps, nil
}

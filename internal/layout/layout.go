// Package layout maps logical key names to physical scan codes for a set of
// bundled keyboard layouts. Tables are built once at load time and are
// immutable afterwards; a Table is handed to the emitter and the capture loop
// rather than consulted through package state.
//
// The reverse mapping (scan code to unshifted name) is always derived from
// the qwerty table regardless of the active layout: scan codes identify
// physical key positions, so classification of captured events must not
// follow the logical layout chosen for emission.
package layout

import (
	"fmt"
	"log/slog"
	"sort"

	"stenotap/internal/linux"
)

// KeyCodeInfo describes how to produce one logical key: the base scan code
// plus any modifier codes that must be held. Modifiers are pressed in slice
// order and released in reverse.
type KeyCodeInfo struct {
	Code      uint16
	Modifiers []uint16
}

// DefaultName is the layout used when an unknown name is requested.
const DefaultName = "qwerty"

type entry struct {
	name string
	info KeyCodeInfo
}

func plain(code uint16) KeyCodeInfo {
	return KeyCodeInfo{Code: code}
}

func shifted(code uint16) KeyCodeInfo {
	return KeyCodeInfo{Code: code, Modifiers: []uint16{linux.KeyLeftShift}}
}

func altgr(code uint16) KeyCodeInfo {
	return KeyCodeInfo{Code: code, Modifiers: []uint16{linux.KeyRightAlt}}
}

var modifierCodes = map[uint16]struct{}{
	linux.KeyLeftShift:  {},
	linux.KeyRightShift: {},
	linux.KeyLeftCtrl:   {},
	linux.KeyRightCtrl:  {},
	linux.KeyLeftAlt:    {},
	linux.KeyRightAlt:   {},
	linux.KeyLeftMeta:   {},
	linux.KeyRightMeta:  {},
}

// IsModifier reports whether code belongs to the fixed modifier set. The set
// never changes with the active layout.
func IsModifier(code uint16) bool {
	_, ok := modifierCodes[code]
	return ok
}

// baseEntries are shared between all layouts: modifiers, the number row,
// whitespace, navigation, function, keypad and media keys.
var baseEntries = []entry{
	{"alt_l", plain(linux.KeyLeftAlt)},
	{"alt_r", plain(linux.KeyRightAlt)},
	{"alt", plain(linux.KeyLeftAlt)},
	{"ctrl_l", plain(linux.KeyLeftCtrl)},
	{"ctrl_r", plain(linux.KeyRightCtrl)},
	{"ctrl", plain(linux.KeyLeftCtrl)},
	{"control_l", plain(linux.KeyLeftCtrl)},
	{"control_r", plain(linux.KeyRightCtrl)},
	{"control", plain(linux.KeyLeftCtrl)},
	{"shift_l", plain(linux.KeyLeftShift)},
	{"shift_r", plain(linux.KeyRightShift)},
	{"shift", plain(linux.KeyLeftShift)},
	{"super_l", plain(linux.KeyLeftMeta)},
	{"super_r", plain(linux.KeyRightMeta)},
	{"super", plain(linux.KeyLeftMeta)},

	{"`", plain(linux.KeyGrave)},
	{"~", shifted(linux.KeyGrave)},
	{"1", plain(linux.Key1)},
	{"!", shifted(linux.Key1)},
	{"2", plain(linux.Key2)},
	{"@", shifted(linux.Key2)},
	{"3", plain(linux.Key3)},
	{"#", shifted(linux.Key3)},
	{"4", plain(linux.Key4)},
	{"$", shifted(linux.Key4)},
	{"5", plain(linux.Key5)},
	{"%", shifted(linux.Key5)},
	{"6", plain(linux.Key6)},
	{"^", shifted(linux.Key6)},
	{"7", plain(linux.Key7)},
	{"&", shifted(linux.Key7)},
	{"8", plain(linux.Key8)},
	{"*", shifted(linux.Key8)},
	{"9", plain(linux.Key9)},
	{"(", shifted(linux.Key9)},
	{"0", plain(linux.Key0)},
	{")", shifted(linux.Key0)},
	{"-", plain(linux.KeyMinus)},
	{"_", shifted(linux.KeyMinus)},
	{"=", plain(linux.KeyEqual)},
	{"+", shifted(linux.KeyEqual)},
	{"\b", plain(linux.KeyBackspace)},

	{" ", plain(linux.KeySpace)},
	{"\n", plain(linux.KeyEnter)},
	{"return", plain(linux.KeyEnter)},
	{"tab", plain(linux.KeyTab)},
	{"backspace", plain(linux.KeyBackspace)},
	{"delete", plain(linux.KeyDelete)},
	{"escape", plain(linux.KeyEsc)},
	{"clear", plain(linux.KeyClear)},

	{"up", plain(linux.KeyUp)},
	{"down", plain(linux.KeyDown)},
	{"left", plain(linux.KeyLeft)},
	{"right", plain(linux.KeyRight)},
	{"page_up", plain(linux.KeyPageUp)},
	{"page_down", plain(linux.KeyPageDown)},
	{"home", plain(linux.KeyHome)},
	{"insert", plain(linux.KeyInsert)},
	{"end", plain(linux.KeyEnd)},
	{"space", plain(linux.KeySpace)},
	{"print", plain(linux.KeyPrint)},

	{"fn", plain(linux.KeyFn)},
	{"f1", plain(linux.KeyF1)},
	{"f2", plain(linux.KeyF2)},
	{"f3", plain(linux.KeyF3)},
	{"f4", plain(linux.KeyF4)},
	{"f5", plain(linux.KeyF5)},
	{"f6", plain(linux.KeyF6)},
	{"f7", plain(linux.KeyF7)},
	{"f8", plain(linux.KeyF8)},
	{"f9", plain(linux.KeyF9)},
	{"f10", plain(linux.KeyF10)},
	{"f11", plain(linux.KeyF11)},
	{"f12", plain(linux.KeyF12)},
	{"f13", plain(linux.KeyF13)},
	{"f14", plain(linux.KeyF14)},
	{"f15", plain(linux.KeyF15)},
	{"f16", plain(linux.KeyF16)},
	{"f17", plain(linux.KeyF17)},
	{"f18", plain(linux.KeyF18)},
	{"f19", plain(linux.KeyF19)},
	{"f20", plain(linux.KeyF20)},
	{"f21", plain(linux.KeyF21)},
	{"f22", plain(linux.KeyF22)},
	{"f23", plain(linux.KeyF23)},
	{"f24", plain(linux.KeyF24)},

	{"kp_1", plain(linux.KeyKP1)},
	{"kp_2", plain(linux.KeyKP2)},
	{"kp_3", plain(linux.KeyKP3)},
	{"kp_4", plain(linux.KeyKP4)},
	{"kp_5", plain(linux.KeyKP5)},
	{"kp_6", plain(linux.KeyKP6)},
	{"kp_7", plain(linux.KeyKP7)},
	{"kp_8", plain(linux.KeyKP8)},
	{"kp_9", plain(linux.KeyKP9)},
	{"kp_0", plain(linux.KeyKP0)},
	{"kp_add", plain(linux.KeyKPPlus)},
	{"kp_decimal", plain(linux.KeyKPDot)},
	// There is no dedicated keypad delete code.
	{"kp_delete", plain(linux.KeyDelete)},
	{"kp_divide", plain(linux.KeyKPSlash)},
	{"kp_enter", plain(linux.KeyKPEnter)},
	{"kp_equal", plain(linux.KeyKPEqual)},
	{"kp_multiply", plain(linux.KeyKPAsterisk)},
	{"kp_subtract", plain(linux.KeyKPMinus)},

	{"audioraisevolume", plain(linux.KeyVolumeUp)},
	{"audiolowervolume", plain(linux.KeyVolumeDown)},
	{"monbrightnessup", plain(linux.KeyBrightnessUp)},
	{"monbrightnessdown", plain(linux.KeyBrightnessDown)},
	{"audiomute", plain(linux.KeyMute)},
	{"num_lock", plain(linux.KeyNumLock)},
	{"eject", plain(linux.KeyEjectCD)},
	{"audiopause", plain(linux.KeyPause)},
	{"audionext", plain(linux.KeyNextSong)},
	{"audioplay", plain(linux.KeyPlay)},
	{"audiorewind", plain(linux.KeyRewind)},
	{"kbdbrightnessup", plain(linux.KeyKbdIllumUp)},
	{"kbdbrightnessdown", plain(linux.KeyKbdIllumDown)},
}

var qwertyEntries = []entry{
	{"q", plain(linux.KeyQ)},
	{"Q", shifted(linux.KeyQ)},
	{"w", plain(linux.KeyW)},
	{"W", shifted(linux.KeyW)},
	{"e", plain(linux.KeyE)},
	{"E", shifted(linux.KeyE)},
	{"r", plain(linux.KeyR)},
	{"R", shifted(linux.KeyR)},
	{"t", plain(linux.KeyT)},
	{"T", shifted(linux.KeyT)},
	{"y", plain(linux.KeyY)},
	{"Y", shifted(linux.KeyY)},
	{"u", plain(linux.KeyU)},
	{"U", shifted(linux.KeyU)},
	{"i", plain(linux.KeyI)},
	{"I", shifted(linux.KeyI)},
	{"o", plain(linux.KeyO)},
	{"O", shifted(linux.KeyO)},
	{"p", plain(linux.KeyP)},
	{"P", shifted(linux.KeyP)},
	{"[", plain(linux.KeyLeftBrace)},
	{"{", shifted(linux.KeyLeftBrace)},
	{"]", plain(linux.KeyRightBrace)},
	{"}", shifted(linux.KeyRightBrace)},
	{"\\", plain(linux.KeyBackslash)},
	{"|", shifted(linux.KeyBackslash)},
	{"a", plain(linux.KeyA)},
	{"A", shifted(linux.KeyA)},
	{"s", plain(linux.KeyS)},
	{"S", shifted(linux.KeyS)},
	{"d", plain(linux.KeyD)},
	{"D", shifted(linux.KeyD)},
	{"f", plain(linux.KeyF)},
	{"F", shifted(linux.KeyF)},
	{"g", plain(linux.KeyG)},
	{"G", shifted(linux.KeyG)},
	{"h", plain(linux.KeyH)},
	{"H", shifted(linux.KeyH)},
	{"j", plain(linux.KeyJ)},
	{"J", shifted(linux.KeyJ)},
	{"k", plain(linux.KeyK)},
	{"K", shifted(linux.KeyK)},
	{"l", plain(linux.KeyL)},
	{"L", shifted(linux.KeyL)},
	{";", plain(linux.KeySemicolon)},
	{":", shifted(linux.KeySemicolon)},
	{"'", plain(linux.KeyApostrophe)},
	{"\"", shifted(linux.KeyApostrophe)},
	{"z", plain(linux.KeyZ)},
	{"Z", shifted(linux.KeyZ)},
	{"x", plain(linux.KeyX)},
	{"X", shifted(linux.KeyX)},
	{"c", plain(linux.KeyC)},
	{"C", shifted(linux.KeyC)},
	{"v", plain(linux.KeyV)},
	{"V", shifted(linux.KeyV)},
	{"b", plain(linux.KeyB)},
	{"B", shifted(linux.KeyB)},
	{"n", plain(linux.KeyN)},
	{"N", shifted(linux.KeyN)},
	{"m", plain(linux.KeyM)},
	{"M", shifted(linux.KeyM)},
	{",", plain(linux.KeyComma)},
	{"<", shifted(linux.KeyComma)},
	{".", plain(linux.KeyDot)},
	{">", shifted(linux.KeyDot)},
	{"/", plain(linux.KeySlash)},
	{"?", shifted(linux.KeySlash)},
}

var qwertzEntries = []entry{
	{"°", shifted(linux.KeyGrave)},
	{"!", shifted(linux.Key1)},
	{"\"", shifted(linux.Key2)},
	{"§", shifted(linux.Key3)},
	{"$", shifted(linux.Key4)},
	{"%", shifted(linux.Key5)},
	{"&", shifted(linux.Key6)},
	{"/", shifted(linux.Key7)},
	{"{", altgr(linux.Key7)},
	{"(", shifted(linux.Key8)},
	{"[", altgr(linux.Key8)},
	{")", shifted(linux.Key9)},
	{"]", altgr(linux.Key9)},
	{"=", shifted(linux.Key0)},
	{"}", altgr(linux.Key0)},
	{"ß", plain(linux.KeyMinus)},
	{"?", shifted(linux.KeyMinus)},
	{"\\", altgr(linux.KeyMinus)},
	{"`", shifted(linux.KeyEqual)},
	{"q", plain(linux.KeyQ)},
	{"Q", shifted(linux.KeyQ)},
	{"@", altgr(linux.KeyQ)},
	{"w", plain(linux.KeyW)},
	{"W", shifted(linux.KeyW)},
	{"e", plain(linux.KeyE)},
	{"E", shifted(linux.KeyE)},
	{"r", plain(linux.KeyR)},
	{"R", shifted(linux.KeyR)},
	{"t", plain(linux.KeyT)},
	{"T", shifted(linux.KeyT)},
	{"z", plain(linux.KeyY)},
	{"Z", shifted(linux.KeyY)},
	{"u", plain(linux.KeyU)},
	{"U", shifted(linux.KeyU)},
	{"i", plain(linux.KeyI)},
	{"I", shifted(linux.KeyI)},
	{"o", plain(linux.KeyO)},
	{"O", shifted(linux.KeyO)},
	{"p", plain(linux.KeyP)},
	{"P", shifted(linux.KeyP)},
	{"ü", plain(linux.KeyLeftBrace)},
	{"Ü", shifted(linux.KeyLeftBrace)},
	{"+", plain(linux.KeyRightBrace)},
	{"*", shifted(linux.KeyRightBrace)},
	{"~", altgr(linux.KeyRightBrace)},
	{"#", plain(linux.KeyBackslash)},
	{"'", shifted(linux.KeyBackslash)},
	{"a", plain(linux.KeyA)},
	{"A", shifted(linux.KeyA)},
	{"s", plain(linux.KeyS)},
	{"S", shifted(linux.KeyS)},
	{"d", plain(linux.KeyD)},
	{"D", shifted(linux.KeyD)},
	{"f", plain(linux.KeyF)},
	{"F", shifted(linux.KeyF)},
	{"g", plain(linux.KeyG)},
	{"G", shifted(linux.KeyG)},
	{"h", plain(linux.KeyH)},
	{"H", shifted(linux.KeyH)},
	{"j", plain(linux.KeyJ)},
	{"J", shifted(linux.KeyJ)},
	{"k", plain(linux.KeyK)},
	{"K", shifted(linux.KeyK)},
	{"l", plain(linux.KeyL)},
	{"L", shifted(linux.KeyL)},
	{"ö", plain(linux.KeySemicolon)},
	{"Ö", shifted(linux.KeySemicolon)},
	{"ä", plain(linux.KeyApostrophe)},
	{"Ä", shifted(linux.KeyApostrophe)},
	{"^", plain(linux.KeyGrave)},
	{"y", plain(linux.KeyZ)},
	{"Y", shifted(linux.KeyZ)},
	{"x", plain(linux.KeyX)},
	{"X", shifted(linux.KeyX)},
	{"c", plain(linux.KeyC)},
	{"C", shifted(linux.KeyC)},
	{"v", plain(linux.KeyV)},
	{"V", shifted(linux.KeyV)},
	{"b", plain(linux.KeyB)},
	{"B", shifted(linux.KeyB)},
	{"n", plain(linux.KeyN)},
	{"N", shifted(linux.KeyN)},
	{"m", plain(linux.KeyM)},
	{"M", shifted(linux.KeyM)},
	{",", plain(linux.KeyComma)},
	{";", shifted(linux.KeyComma)},
	{"<", plain(linux.Key102nd)},
	{">", shifted(linux.Key102nd)},
	{"|", altgr(linux.Key102nd)},
	{".", plain(linux.KeyDot)},
	{":", shifted(linux.KeyDot)},
	{"-", plain(linux.KeySlash)},
	{"_", shifted(linux.KeySlash)},
}

var colemakEntries = []entry{
	{"q", plain(linux.KeyQ)},
	{"Q", shifted(linux.KeyQ)},
	{"w", plain(linux.KeyW)},
	{"W", shifted(linux.KeyW)},
	{"f", plain(linux.KeyE)},
	{"F", shifted(linux.KeyE)},
	{"p", plain(linux.KeyR)},
	{"P", shifted(linux.KeyR)},
	{"g", plain(linux.KeyT)},
	{"G", shifted(linux.KeyT)},
	{"j", plain(linux.KeyY)},
	{"J", shifted(linux.KeyY)},
	{"l", plain(linux.KeyU)},
	{"L", shifted(linux.KeyU)},
	{"u", plain(linux.KeyI)},
	{"U", shifted(linux.KeyI)},
	{"y", plain(linux.KeyO)},
	{"Y", shifted(linux.KeyO)},
	{";", plain(linux.KeyP)},
	{":", shifted(linux.KeyP)},
	{"[", plain(linux.KeyLeftBrace)},
	{"{", shifted(linux.KeyLeftBrace)},
	{"]", plain(linux.KeyRightBrace)},
	{"}", shifted(linux.KeyRightBrace)},
	{"\\", plain(linux.KeyBackslash)},
	{"|", shifted(linux.KeyBackslash)},
	{"a", plain(linux.KeyA)},
	{"A", shifted(linux.KeyA)},
	{"r", plain(linux.KeyS)},
	{"R", shifted(linux.KeyS)},
	{"s", plain(linux.KeyD)},
	{"S", shifted(linux.KeyD)},
	{"t", plain(linux.KeyF)},
	{"T", shifted(linux.KeyF)},
	{"d", plain(linux.KeyG)},
	{"D", shifted(linux.KeyG)},
	{"h", plain(linux.KeyH)},
	{"H", shifted(linux.KeyH)},
	{"n", plain(linux.KeyJ)},
	{"N", shifted(linux.KeyJ)},
	{"e", plain(linux.KeyK)},
	{"E", shifted(linux.KeyK)},
	{"i", plain(linux.KeyL)},
	{"I", shifted(linux.KeyL)},
	{"o", plain(linux.KeySemicolon)},
	{"O", shifted(linux.KeySemicolon)},
	{"'", plain(linux.KeyApostrophe)},
	{"\"", shifted(linux.KeyApostrophe)},
	{"z", plain(linux.KeyZ)},
	{"Z", shifted(linux.KeyZ)},
	{"x", plain(linux.KeyX)},
	{"X", shifted(linux.KeyX)},
	{"c", plain(linux.KeyC)},
	{"C", shifted(linux.KeyC)},
	{"v", plain(linux.KeyV)},
	{"V", shifted(linux.KeyV)},
	{"b", plain(linux.KeyB)},
	{"B", shifted(linux.KeyB)},
	{"k", plain(linux.KeyN)},
	{"K", shifted(linux.KeyN)},
	{"m", plain(linux.KeyM)},
	{"M", shifted(linux.KeyM)},
	{",", plain(linux.KeyComma)},
	{"<", shifted(linux.KeyComma)},
	{".", plain(linux.KeyDot)},
	{">", shifted(linux.KeyDot)},
	{"/", plain(linux.KeySlash)},
	{"?", shifted(linux.KeySlash)},
}

var colemakDHEntries = []entry{
	{"q", plain(linux.KeyQ)},
	{"Q", shifted(linux.KeyQ)},
	{"w", plain(linux.KeyW)},
	{"W", shifted(linux.KeyW)},
	{"f", plain(linux.KeyE)},
	{"F", shifted(linux.KeyE)},
	{"p", plain(linux.KeyR)},
	{"P", shifted(linux.KeyR)},
	{"b", plain(linux.KeyT)},
	{"B", shifted(linux.KeyT)},
	{"j", plain(linux.KeyY)},
	{"J", shifted(linux.KeyY)},
	{"l", plain(linux.KeyU)},
	{"L", shifted(linux.KeyU)},
	{"u", plain(linux.KeyI)},
	{"U", shifted(linux.KeyI)},
	{"y", plain(linux.KeyO)},
	{"Y", shifted(linux.KeyO)},
	{";", plain(linux.KeyP)},
	{":", shifted(linux.KeyP)},
	{"[", plain(linux.KeyLeftBrace)},
	{"{", shifted(linux.KeyLeftBrace)},
	{"]", plain(linux.KeyRightBrace)},
	{"}", shifted(linux.KeyRightBrace)},
	{"\\", plain(linux.KeyBackslash)},
	{"|", shifted(linux.KeyBackslash)},
	{"a", plain(linux.KeyA)},
	{"A", shifted(linux.KeyA)},
	{"r", plain(linux.KeyS)},
	{"R", shifted(linux.KeyS)},
	{"s", plain(linux.KeyD)},
	{"S", shifted(linux.KeyD)},
	{"t", plain(linux.KeyF)},
	{"T", shifted(linux.KeyF)},
	{"g", plain(linux.KeyG)},
	{"G", shifted(linux.KeyG)},
	{"m", plain(linux.KeyH)},
	{"M", shifted(linux.KeyH)},
	{"n", plain(linux.KeyJ)},
	{"N", shifted(linux.KeyJ)},
	{"e", plain(linux.KeyK)},
	{"E", shifted(linux.KeyK)},
	{"i", plain(linux.KeyL)},
	{"I", shifted(linux.KeyL)},
	{"o", plain(linux.KeySemicolon)},
	{"O", shifted(linux.KeySemicolon)},
	{"'", plain(linux.KeyApostrophe)},
	{"\"", shifted(linux.KeyApostrophe)},
	{"x", plain(linux.KeyZ)},
	{"X", shifted(linux.KeyZ)},
	{"c", plain(linux.KeyX)},
	{"C", shifted(linux.KeyX)},
	{"d", plain(linux.KeyC)},
	{"D", shifted(linux.KeyC)},
	{"v", plain(linux.KeyV)},
	{"V", shifted(linux.KeyV)},
	{"z", plain(linux.KeyB)},
	{"Z", shifted(linux.KeyB)},
	{"k", plain(linux.KeyN)},
	{"K", shifted(linux.KeyN)},
	{"h", plain(linux.KeyM)},
	{"H", shifted(linux.KeyM)},
	{",", plain(linux.KeyComma)},
	{"<", shifted(linux.KeyComma)},
	{".", plain(linux.KeyDot)},
	{">", shifted(linux.KeyDot)},
	{"/", plain(linux.KeySlash)},
	{"?", shifted(linux.KeySlash)},
}

var overlays = map[string][]entry{
	"qwerty":     qwertyEntries,
	"qwertz":     qwertzEntries,
	"colemak":    colemakEntries,
	"colemak-dh": colemakDHEntries,
}

var (
	layouts    map[string]map[string]KeyCodeInfo
	reverseMap map[uint16]string
)

func init() {
	layouts = make(map[string]map[string]KeyCodeInfo, len(overlays))
	for name, overlay := range overlays {
		keys := make(map[string]KeyCodeInfo, len(baseEntries)+len(overlay))
		for _, e := range baseEntries {
			keys[e.name] = e.info
		}
		for _, e := range overlay {
			keys[e.name] = e.info
		}
		verifyPrintableCoverage(name, keys)
		layouts[name] = keys
	}

	// Classification always uses the physical (qwerty) positions. Only
	// unshifted entries participate; when two names share a scan code the
	// later table entry wins.
	reverseMap = make(map[uint16]string)
	for _, e := range append(append([]entry(nil), baseEntries...), qwertyEntries...) {
		if len(e.info.Modifiers) == 0 {
			reverseMap[e.info.Code] = e.name
		}
	}
}

// verifyPrintableCoverage panics when a bundled layout cannot type some
// printable ASCII character. This is a build-data bug, caught before any
// device is opened.
func verifyPrintableCoverage(name string, keys map[string]KeyCodeInfo) {
	for c := rune(0x20); c <= 0x7e; c++ {
		if _, ok := keys[string(c)]; !ok {
			panic(fmt.Sprintf("layout %s: no mapping for printable character %q", name, c))
		}
	}
}

// Table binds an emission layout to the fixed reverse classification map.
type Table struct {
	name string
	keys map[string]KeyCodeInfo
}

// Load returns the table for the named layout. Unknown names are not an
// error: a warning is logged and the default layout is used, so a typo in a
// config file never leaves the user without a working keyboard.
func Load(name string, log *slog.Logger) *Table {
	if log == nil {
		log = slog.Default()
	}
	keys, ok := layouts[name]
	if !ok {
		log.Warn("unknown keyboard layout, falling back",
			"layout", name, "fallback", DefaultName)
		name = DefaultName
		keys = layouts[name]
	}
	return &Table{name: name, keys: keys}
}

func (t *Table) Name() string {
	return t.name
}

// Resolve returns the scan code and modifier sequence for a logical key name
// under the active layout.
func (t *Table) Resolve(name string) (KeyCodeInfo, bool) {
	info, ok := t.keys[name]
	return info, ok
}

// ReverseResolve maps a captured scan code to its unshifted logical name on
// the physical layout. The active layout is deliberately not consulted.
func (t *Table) ReverseResolve(code uint16) (string, bool) {
	name, ok := reverseMap[code]
	return name, ok
}

// Names lists the bundled layouts in sorted order.
func Names() []string {
	names := make([]string, 0, len(layouts))
	for name := range layouts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

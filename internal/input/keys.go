package input

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/xkilldash9x/deskpilot/api/schemas"
)

// Virtual key codes of the modifiers.
const (
	vkShift uint16 = 0x10
	vkCtrl  uint16 = 0x11
	vkAlt   uint16 = 0x12
	vkWin   uint16 = 0x5B
)

var modifierNames = map[string]uint16{
	"ctrl":  vkCtrl,
	"alt":   vkAlt,
	"shift": vkShift,
	"win":   vkWin,
	"super": vkWin,
	"meta":  vkWin,
	"cmd":   vkWin,
}

var namedKeys = map[string]uint16{
	"enter":     0x0D,
	"return":    0x0D,
	"tab":       0x09,
	"esc":       0x1B,
	"escape":    0x1B,
	"space":     0x20,
	"backspace": 0x08,
	"delete":    0x2E,
	"left":      0x25,
	"up":        0x26,
	"right":     0x27,
	"down":      0x28,
	"home":      0x24,
	"end":       0x23,
	"pageup":    0x21,
	"pagedown":  0x22,
}

func isModifier(name string) bool {
	_, ok := modifierNames[strings.ToLower(name)]
	return ok
}

// KeyToVK maps a key name to its virtual key code.
// Letters map to their uppercase code, digits to their ASCII code, f1..f24 to 0x70..0x87.
func KeyToVK(name string) (uint16, error) {
	key := strings.ToLower(name)
	if key == " " {
		return 0x20, nil
	}
	if vk, ok := modifierNames[key]; ok {
		return vk, nil
	}
	if vk, ok := namedKeys[key]; ok {
		return vk, nil
	}
	if len(key) == 1 {
		c := key[0]
		switch {
		case c >= 'a' && c <= 'z':
			return uint16(c - 'a' + 'A'), nil
		case c >= '0' && c <= '9':
			return uint16(c), nil
		}
	}
	if strings.HasPrefix(key, "f") {
		if n, err := strconv.Atoi(key[1:]); err == nil && n >= 1 && n <= 24 {
			return 0x70 + uint16(n-1), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKey, name)
}

// ParseKeys expands a keys action into the full event sequence without
// emitting anything, so an unknown key rejects the whole action up front.
//
// Two shapes are accepted. When every entry but the last is a modifier, the
// list is one chord, e.g. ["ctrl", "shift", "esc"]. Otherwise each entry is
// pressed in turn and may itself be a chord written with pluses, e.g.
// ["ctrl+l", "tab"].
func ParseKeys(keys []string) ([]schemas.KeyEventData, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: keys", ErrMissingParameters)
	}

	var events []schemas.KeyEventData
	if len(keys) >= 2 && allModifiers(keys[:len(keys)-1]) {
		return appendChord(events, keys[:len(keys)-1], keys[len(keys)-1])
	}

	for _, item := range keys {
		if item == " " {
			events = appendText(events, item)
			continue
		}
		if strings.TrimSpace(item) == "" {
			continue
		}
		parts := splitChord(item)
		var err error
		if len(parts) >= 2 && allModifiers(parts[:len(parts)-1]) {
			events, err = appendChord(events, parts[:len(parts)-1], parts[len(parts)-1])
		} else {
			events, err = appendPress(events, strings.TrimSpace(item))
		}
		if err != nil {
			return nil, err
		}
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("%w: no usable keys in %q", ErrMissingParameters, keys)
	}
	return events, nil
}

func splitChord(item string) []string {
	var parts []string
	for _, p := range strings.Split(item, "+") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

func allModifiers(names []string) bool {
	for _, n := range names {
		if !isModifier(n) {
			return false
		}
	}
	return true
}

// appendChord holds the modifiers, presses main, then releases the modifiers in reverse.
func appendChord(events []schemas.KeyEventData, mods []string, main string) ([]schemas.KeyEventData, error) {
	vks := make([]uint16, len(mods))
	for i, m := range mods {
		vk, err := KeyToVK(m)
		if err != nil {
			return nil, err
		}
		vks[i] = vk
	}
	for _, vk := range vks {
		events = append(events, schemas.KeyEventData{Type: schemas.KeyDown, VK: vk})
	}
	events, err := appendPress(events, main)
	if err != nil {
		return nil, err
	}
	for _, vk := range slices.Backward(vks) {
		events = append(events, schemas.KeyEventData{Type: schemas.KeyUp, VK: vk})
	}
	return events, nil
}

// appendPress adds one key press. Space and single non-alphanumeric
// characters go out as Unicode text so they survive any keyboard layout.
func appendPress(events []schemas.KeyEventData, key string) ([]schemas.KeyEventData, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: empty key", ErrMissingParameters)
	}
	if key == " " || strings.EqualFold(key, "space") {
		return appendText(events, " "), nil
	}
	if utf8.RuneCountInString(key) == 1 {
		r, _ := utf8.DecodeRuneInString(key)
		if !isASCIIAlnum(r) {
			return appendText(events, key), nil
		}
	}
	vk, err := KeyToVK(key)
	if err != nil {
		return nil, err
	}
	return append(events,
		schemas.KeyEventData{Type: schemas.KeyDown, VK: vk},
		schemas.KeyEventData{Type: schemas.KeyUp, VK: vk},
	), nil
}

func isASCIIAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// appendText emits a Unicode down/up pair per rune.
func appendText(events []schemas.KeyEventData, text string) []schemas.KeyEventData {
	for _, r := range text {
		events = append(events,
			schemas.KeyEventData{Type: schemas.KeyDown, Char: r, Unicode: true},
			schemas.KeyEventData{Type: schemas.KeyUp, Char: r, Unicode: true},
		)
	}
	return events
}

package input

import (
	"testing"

	fuzz "github.com/AdaLogics/go-fuzz-headers"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/deskpilot/api/schemas"
)

func TestKeyToVK(t *testing.T) {
	testCases := map[string]uint16{
		"ctrl": 0x11, "ALT": 0x12, "shift": 0x10, "win": 0x5B, "super": 0x5B, "meta": 0x5B, "cmd": 0x5B,
		"enter": 0x0D, "return": 0x0D, "tab": 0x09, "esc": 0x1B, "Escape": 0x1B, "space": 0x20, " ": 0x20,
		"backspace": 0x08, "delete": 0x2E, "left": 0x25, "up": 0x26, "right": 0x27, "down": 0x28,
		"home": 0x24, "end": 0x23, "pageup": 0x21, "pagedown": 0x22,
		"a": 'A', "L": 'L', "0": '0', "9": '9',
		"f1": 0x70, "F5": 0x74, "f24": 0x87,
	}
	for name, want := range testCases {
		got, err := KeyToVK(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	for _, bad := range []string{"f0", "f25", "fx", "hyper", "", "ab"} {
		_, err := KeyToVK(bad)
		assert.ErrorIs(t, err, ErrUnknownKey, bad)
	}
}

func TestParseKeys(t *testing.T) {
	chord := func(mods []uint16, main []schemas.KeyEventData) []schemas.KeyEventData {
		var out []schemas.KeyEventData
		for _, m := range mods {
			out = append(out, vkDown(m))
		}
		out = append(out, main...)
		for i := len(mods) - 1; i >= 0; i-- {
			out = append(out, vkUp(mods[i]))
		}
		return out
	}
	press := func(vk uint16) []schemas.KeyEventData {
		return []schemas.KeyEventData{vkDown(vk), vkUp(vk)}
	}
	concat := func(parts ...[]schemas.KeyEventData) []schemas.KeyEventData {
		var out []schemas.KeyEventData
		for _, p := range parts {
			out = append(out, p...)
		}
		return out
	}

	testCases := []struct {
		name string
		keys []string
		want []schemas.KeyEventData
	}{
		{"legacy list chord", []string{"ctrl", "shift", "esc"}, chord([]uint16{vkCtrl, vkShift}, press(0x1B))},
		{"plus chord", []string{"ctrl+l"}, chord([]uint16{vkCtrl}, press('L'))},
		{"plus chord with spaces", []string{" ctrl + shift + t "}, chord([]uint16{vkCtrl, vkShift}, press('T'))},
		{"sequence", []string{"ctrl+l", "tab", "f5"}, concat(chord([]uint16{vkCtrl}, press('L')), press(0x09), press(0x74))},
		{"blank entries skipped", []string{"", "  ", "enter"}, press(0x0D)},
		{"win alias", []string{"super+r"}, chord([]uint16{vkWin}, press('R'))},
		{"space is unicode", []string{"space"}, uniPress(' ')},
		{"bare space is unicode", []string{" "}, uniPress(' ')},
		{"bare space among blanks", []string{" ", "  "}, uniPress(' ')},
		{"punctuation is unicode", []string{"ctrl", "/"}, chord([]uint16{vkCtrl}, uniPress('/'))},
		{"non ascii letter is unicode", []string{"ß"}, uniPress('ß')},
		{"single modifier is a press", []string{"alt"}, press(vkAlt)},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseKeys(tc.keys)
			require.NoError(t, err)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("ParseKeys(%q) mismatch (-want +got):\n%s", tc.keys, diff)
			}
		})
	}
}

func TestParseKeys_Errors(t *testing.T) {
	_, err := ParseKeys(nil)
	assert.ErrorIs(t, err, ErrMissingParameters)

	_, err = ParseKeys([]string{"tab", "hyperspace"})
	assert.ErrorIs(t, err, ErrUnknownKey, "an unknown key rejects the whole sequence")

	_, err = ParseKeys([]string{"a+b"})
	assert.ErrorIs(t, err, ErrUnknownKey, "a non-modifier chord is read as one key name")

	_, err = ParseKeys([]string{"ctrl", ""})
	assert.ErrorIs(t, err, ErrMissingParameters)

	_, err = ParseKeys([]string{"", "   "})
	assert.ErrorIs(t, err, ErrMissingParameters, "a list of blanks has nothing to press")
}

// FuzzParseKeys checks that parsing never panics and every emitted sequence is balanced.
func FuzzParseKeys(f *testing.F) {
	f.Add([]byte("ctrl+l"))
	f.Add([]byte("\x02\x04ctrl\x03tab"))
	f.Fuzz(func(t *testing.T, data []byte) {
		var input struct{ Keys []string }
		consumer := fuzz.NewConsumer(data)
		if err := consumer.GenerateStruct(&input); err != nil {
			return
		}
		keys := input.Keys
		events, err := ParseKeys(keys)
		if err != nil {
			return
		}
		held := map[uint16]int{}
		for _, ev := range events {
			if ev.Unicode {
				continue
			}
			if ev.Type == schemas.KeyDown {
				held[ev.VK]++
			} else {
				held[ev.VK]--
			}
		}
		for vk, n := range held {
			if n != 0 {
				t.Fatalf("virtual key 0x%X left unbalanced (%d) for %q", vk, n, keys)
			}
		}
	})
}

// Package keymap translates between Linux key codes and human-readable key
// names so persisted macros can be read and edited by hand. Only the QWERTY
// layout is mapped; codes without a name stay valid opaque values everywhere
// else in the program.
package keymap

import "strings"

// KeycodeToName returns the QWERTY name for a key code.
func KeycodeToName(code uint16) (string, bool) {
	name, ok := qwertyNames[code]
	return name, ok
}

// NameToKeycode returns the key code for a QWERTY name. Lookup is
// case-insensitive.
func NameToKeycode(name string) (uint16, bool) {
	code, ok := qwertyCodes[strings.ToUpper(name)]
	return code, ok
}

var qwertyNames = map[uint16]string{
	// Letters
	16: "Q", 17: "W", 18: "E", 19: "R", 20: "T", 21: "Y", 22: "U", 23: "I",
	24: "O", 25: "P",
	30: "A", 31: "S", 32: "D", 33: "F", 34: "G", 35: "H", 36: "J", 37: "K",
	38: "L",
	44: "Z", 45: "X", 46: "C", 47: "V", 48: "B", 49: "N", 50: "M",

	// Number row
	2: "1", 3: "2", 4: "3", 5: "4", 6: "5", 7: "6", 8: "7", 9: "8",
	10: "9", 11: "0", 12: "MINUS", 13: "EQUAL",

	// Function keys
	59: "F1", 60: "F2", 61: "F3", 62: "F4", 63: "F5", 64: "F6",
	65: "F7", 66: "F8", 67: "F9", 68: "F10", 87: "F11", 88: "F12",

	// Specials
	1: "ESC", 14: "BACKSPACE", 15: "TAB", 28: "ENTER", 29: "CTRL",
	42: "SHIFT", 54: "RIGHTSHIFT", 56: "ALT", 57: "SPACE", 58: "CAPSLOCK",
	97: "RIGHTCTRL", 100: "RIGHTALT",

	// Navigation
	102: "HOME", 103: "UP", 104: "PAGEUP", 105: "LEFT", 106: "RIGHT",
	107: "END", 108: "DOWN", 109: "PAGEDOWN", 110: "INSERT", 111: "DELETE",

	// Punctuation
	26: "LEFTBRACE", 27: "RIGHTBRACE", 39: "SEMICOLON", 40: "APOSTROPHE",
	41: "GRAVE", 43: "BACKSLASH", 51: "COMMA", 52: "DOT", 53: "SLASH",

	// Keypad
	55: "KPASTERISK", 71: "KP7", 72: "KP8", 73: "KP9", 74: "KPMINUS",
	75: "KP4", 76: "KP5", 77: "KP6", 78: "KPPLUS", 79: "KP1", 80: "KP2",
	81: "KP3", 82: "KP0", 83: "KPDOT", 96: "KPENTER", 98: "KPSLASH",

	// Mouse buttons
	272: "BTN_LEFT", 273: "BTN_RIGHT", 274: "BTN_MIDDLE",
}

var qwertyCodes = func() map[string]uint16 {
	codes := make(map[string]uint16, len(qwertyNames))
	for code, name := range qwertyNames {
		codes[name] = code
	}
	return codes
}()

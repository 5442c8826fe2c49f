package platform

import (
	"fmt"
	"strconv"
	"strings"

	"markestedt/keyroute/rules"
)

// keyNames are the logical key names accepted in bindings. Native codes
// of every backend map onto these.
var keyNames = func() map[string]bool {
	names := map[string]bool{
		"space": true, "enter": true, "esc": true, "tab": true, "backspace": true,
		"capslock": true, "pause": true, "scrolllock": true, "printscreen": true,
		"insert": true, "delete": true, "home": true, "end": true,
		"pageup": true, "pagedown": true, "left": true, "right": true,
		"up": true, "down": true, "numlock": true, "menu": true,
		"lwin": true, "rwin": true, "apps": true,
	}
	for i := 1; i <= 24; i++ {
		names[fmt.Sprintf("f%d", i)] = true
	}
	for c := 'a'; c <= 'z'; c++ {
		names[string(c)] = true
	}
	for c := '0'; c <= '9'; c++ {
		names[string(c)] = true
	}
	return names
}()

var keyAliases = map[string]string{
	"escape":      "esc",
	"return":      "enter",
	"del":         "delete",
	"ins":         "insert",
	"pgup":        "pageup",
	"pgdn":        "pagedown",
	"prtsc":       "printscreen",
	"print":       "printscreen",
	"caps":        "capslock",
	"scroll":      "scrolllock",
	"contextmenu": "menu",
}

// ParseKey resolves a key specifier from a config file into a KeyID.
// Accepted forms are a key name ("f16", "KEY_F16", "escape"), a hex code
// ("0x7F") or a decimal code ("127"). Codes are native to the running
// backend and resolve to the same KeyID the input hook reports.
func ParseKey(spec string) (rules.KeyID, error) {
	s := strings.ToLower(strings.TrimSpace(spec))
	if s == "" {
		return "", fmt.Errorf("empty key")
	}

	if hex, ok := strings.CutPrefix(s, "0x"); ok {
		code, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return "", fmt.Errorf("invalid key code %q", spec)
		}
		return KeyForCode(uint32(code)), nil
	}
	if isDigits(s) && len(s) > 1 {
		code, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return "", fmt.Errorf("invalid key code %q", spec)
		}
		return KeyForCode(uint32(code)), nil
	}

	s = strings.TrimPrefix(s, "key_")
	if alias, ok := keyAliases[s]; ok {
		s = alias
	}
	if !keyNames[s] {
		return "", fmt.Errorf("unknown key %q", spec)
	}
	return rules.KeyID(s), nil
}

// KeyForCode maps a native key code of the running backend to its
// KeyID, falling back to the canonical hex form.
func KeyForCode(code uint32) rules.KeyID {
	if name, ok := nativeKeyNames[code]; ok {
		return rules.KeyID(name)
	}
	return rules.KeyID(fmt.Sprintf("0x%02x", code))
}

// CodeForKey is the inverse of KeyForCode.
func CodeForKey(key rules.KeyID) (uint32, bool) {
	for code, name := range nativeKeyNames {
		if rules.KeyID(name) == key {
			return code, true
		}
	}
	if hex, ok := strings.CutPrefix(string(key), "0x"); ok {
		code, err := strconv.ParseUint(hex, 16, 32)
		return uint32(code), err == nil
	}
	return 0, false
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

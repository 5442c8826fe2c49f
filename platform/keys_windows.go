//go:build windows

package platform

import "fmt"

// nativeKeyNames maps Windows virtual-key codes to key names.
var nativeKeyNames = func() map[uint32]string {
	m := map[uint32]string{
		0x08: "backspace",
		0x09: "tab",
		0x0D: "enter",
		0x13: "pause",
		0x14: "capslock",
		0x1B: "esc",
		0x20: "space",
		0x21: "pageup",
		0x22: "pagedown",
		0x23: "end",
		0x24: "home",
		0x25: "left",
		0x26: "up",
		0x27: "right",
		0x28: "down",
		0x2C: "printscreen",
		0x2D: "insert",
		0x2E: "delete",
		0x5B: "lwin",
		0x5C: "rwin",
		0x5D: "apps",
		0x90: "numlock",
		0x91: "scrolllock",
	}
	for c := uint32('A'); c <= 'Z'; c++ {
		m[c] = string(rune(c + 'a' - 'A'))
	}
	for c := uint32('0'); c <= '9'; c++ {
		m[c] = string(rune(c))
	}
	// VK_F1 .. VK_F24
	for i := uint32(0); i < 24; i++ {
		m[0x70+i] = fmt.Sprintf("f%d", i+1)
	}
	return m
}()

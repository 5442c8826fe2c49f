//go:build linux

package platform

// nativeKeyNames maps evdev KEY_* codes (linux/input-event-codes.h) to
// key names.
var nativeKeyNames = map[uint32]string{
	1:   "esc",
	2:   "1",
	3:   "2",
	4:   "3",
	5:   "4",
	6:   "5",
	7:   "6",
	8:   "7",
	9:   "8",
	10:  "9",
	11:  "0",
	14:  "backspace",
	15:  "tab",
	16:  "q",
	17:  "w",
	18:  "e",
	19:  "r",
	20:  "t",
	21:  "y",
	22:  "u",
	23:  "i",
	24:  "o",
	25:  "p",
	28:  "enter",
	30:  "a",
	31:  "s",
	32:  "d",
	33:  "f",
	34:  "g",
	35:  "h",
	36:  "j",
	37:  "k",
	38:  "l",
	44:  "z",
	45:  "x",
	46:  "c",
	47:  "v",
	48:  "b",
	49:  "n",
	50:  "m",
	57:  "space",
	58:  "capslock",
	59:  "f1",
	60:  "f2",
	61:  "f3",
	62:  "f4",
	63:  "f5",
	64:  "f6",
	65:  "f7",
	66:  "f8",
	67:  "f9",
	68:  "f10",
	69:  "numlock",
	70:  "scrolllock",
	87:  "f11",
	88:  "f12",
	99:  "printscreen",
	102: "home",
	103: "up",
	104: "pageup",
	105: "left",
	106: "right",
	107: "end",
	108: "down",
	109: "pagedown",
	110: "insert",
	111: "delete",
	119: "pause",
	125: "lwin",
	126: "rwin",
	127: "menu",
	183: "f13",
	184: "f14",
	185: "f15",
	186: "f16",
	187: "f17",
	188: "f18",
	189: "f19",
	190: "f20",
	191: "f21",
	192: "f22",
	193: "f23",
	194: "f24",
}

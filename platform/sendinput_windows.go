//go:build windows

package platform

import (
	"context"
	"fmt"
	"unsafe"

	"markestedt/keyroute/rules"
)

var (
	sendInput      = user32.NewProc("SendInput")
	mapVirtualKeyW = user32.NewProc("MapVirtualKeyW")
)

const (
	inputKeyboard        = 1
	keyeventfExtendedkey = 0x0001
	keyeventfKeyup       = 0x0002
	mapvkVkToVsc         = 0
)

// virtual keys for synthetic actions
var actionKeys = map[rules.Action]uint16{
	rules.BrowserBack:    0xA6,
	rules.BrowserForward: 0xA7,
	rules.VolumeMute:     0xAD,
	rules.VolumeDown:     0xAE,
	rules.VolumeUp:       0xAF,
	rules.MediaNext:      0xB0,
	rules.MediaPrev:      0xB1,
	rules.MediaStop:      0xB2,
	rules.MediaPlayPause: 0xB3,
}

type keyboardInput struct {
	wVk         uint16
	wScan       uint16
	dwFlags     uint32
	time        uint32
	dwExtraInfo uintptr
}

type input struct {
	inputType uint32
	ki        keyboardInput
	padding   [8]byte // Padding to match C struct size
}

// WindowsOutput injects media and browser keys with SendInput.
type WindowsOutput struct{}

// NewOutput creates the Windows SendInput output.
func NewOutput() Output {
	return &WindowsOutput{}
}

// Emit presses and releases the virtual key bound to a.
func (o *WindowsOutput) Emit(_ context.Context, a rules.Action) error {
	if !a.Synthetic() {
		return nil
	}
	vk, ok := actionKeys[a]
	if !ok {
		return fmt.Errorf("%s: %w", a, ErrUnsupported)
	}

	scan, _, _ := mapVirtualKeyW.Call(uintptr(vk), mapvkVkToVsc)
	inputs := []input{
		{
			inputType: inputKeyboard,
			ki: keyboardInput{
				wVk:     vk,
				wScan:   uint16(scan),
				dwFlags: keyeventfExtendedkey,
			},
		},
		{
			inputType: inputKeyboard,
			ki: keyboardInput{
				wVk:     vk,
				wScan:   uint16(scan),
				dwFlags: keyeventfExtendedkey | keyeventfKeyup,
			},
		},
	}

	// Send both at once so nothing interleaves
	ret, _, err := sendInput.Call(
		uintptr(len(inputs)),
		uintptr(unsafe.Pointer(&inputs[0])),
		unsafe.Sizeof(inputs[0]),
	)
	if ret == 0 {
		return fmt.Errorf("SendInput failed: %w", err)
	}
	return nil
}

//go:build windows

package platform

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"

	"markestedt/keyroute/rules"
)

var (
	setWindowsHookEx    = user32.NewProc("SetWindowsHookExW")
	callNextHookEx      = user32.NewProc("CallNextHookEx")
	unhookWindowsHookEx = user32.NewProc("UnhookWindowsHookEx")
	getMessage          = user32.NewProc("GetMessageW")
	postThreadMessage   = user32.NewProc("PostThreadMessageW")
)

const (
	whKeyboardLL = 13
	whMouseLL    = 14
	wmKeydown    = 0x0100
	wmKeyup      = 0x0101
	wmSyskeydown = 0x0104
	wmSyskeyup   = 0x0105
	wmMousewheel = 0x020A
	wmQuit       = 0x0012

	// set on events produced by SendInput, including our own
	llkhfInjected = 0x10
	llmhfInjected = 0x01
)

type kbdllhookstruct struct {
	vkCode      uint32
	scanCode    uint32
	flags       uint32
	time        uint32
	dwExtraInfo uintptr
}

type msllhookstruct struct {
	pt          struct{ x, y int32 }
	mouseData   uint32
	flags       uint32
	time        uint32
	dwExtraInfo uintptr
}

// msg mirrors the Win32 MSG struct.
type msg struct {
	hwnd     uintptr
	message  uint32
	wParam   uintptr
	lParam   uintptr
	time     uint32
	pt       struct{ x, y int32 }
	lPrivate uint32
}

type loopReady struct {
	threadID uint32
	err      error
}

// WindowsHook pairs a WH_KEYBOARD_LL hook with a WH_MOUSE_LL hook for
// wheel notches. Events are handed to the handler on the hook thread,
// so the verdict can block the key or notch.
type WindowsHook struct{}

// NewInputHook creates the Windows low-level input hooks.
func NewInputHook(Options) InputHook {
	return &WindowsHook{}
}

// CanSuppress is always true: returning non-zero from the hook
// procedure stops the key.
func (h *WindowsHook) CanSuppress() bool { return true }

// Run installs the hook and pumps messages until ctx is cancelled.
func (h *WindowsHook) Run(ctx context.Context, handler Handler) error {
	ready := make(chan loopReady, 1)
	done := make(chan error, 1)
	go h.loop(handler, ready, done)

	r := <-ready
	if r.err != nil {
		return r.err
	}

	select {
	case <-ctx.Done():
		postThreadMessage.Call(uintptr(r.threadID), wmQuit, 0, 0)
		return <-done
	case err := <-done:
		return err
	}
}

func (h *WindowsHook) loop(handler Handler, ready chan<- loopReady, done chan<- error) {
	// The hook is bound to the installing thread, which must also run
	// the message loop.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	keyboardProc := func(nCode uintptr, wParam uintptr, lParam uintptr) uintptr {
		if int32(nCode) >= 0 {
			kbInfo := (*kbdllhookstruct)(unsafe.Pointer(lParam))
			if ev, ok := translate(wParam, kbInfo); ok && handler(ev) == Drop {
				return 1
			}
		}
		r, _, _ := callNextHookEx.Call(0, nCode, wParam, lParam)
		return r
	}

	mouseProc := func(nCode uintptr, wParam uintptr, lParam uintptr) uintptr {
		if int32(nCode) >= 0 && wParam == wmMousewheel {
			msInfo := (*msllhookstruct)(unsafe.Pointer(lParam))
			if ev, ok := translateWheel(msInfo); ok && handler(ev) == Drop {
				return 1
			}
		}
		r, _, _ := callNextHookEx.Call(0, nCode, wParam, lParam)
		return r
	}

	keyboard, _, err := setWindowsHookEx.Call(
		whKeyboardLL,
		windows.NewCallback(keyboardProc),
		0,
		0,
	)
	if keyboard == 0 {
		ready <- loopReady{err: fmt.Errorf("SetWindowsHookEx failed: %w", err)}
		return
	}

	mouse, _, err := setWindowsHookEx.Call(
		whMouseLL,
		windows.NewCallback(mouseProc),
		0,
		0,
	)
	if mouse == 0 {
		// keys still work, wheel diverts do not
		slog.Warn("Mouse hook unavailable", "error", err)
	}

	ready <- loopReady{threadID: windows.GetCurrentThreadId()}
	slog.Info("Input hooks installed", "wheel", mouse != 0)

	var m msg
	var loopErr error
	for {
		r, _, err := getMessage.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0)
		if int32(r) == -1 {
			loopErr = fmt.Errorf("GetMessage failed: %w", err)
			break
		}
		if r == 0 {
			break
		}
	}

	if mouse != 0 {
		unhookWindowsHookEx.Call(mouse)
	}
	unhookWindowsHookEx.Call(keyboard)
	slog.Info("Input hooks removed")
	done <- loopErr
}

func translate(wParam uintptr, kbInfo *kbdllhookstruct) (Event, bool) {
	if kbInfo.flags&llkhfInjected != 0 {
		return Event{}, false
	}
	var t Transition
	switch wParam {
	case wmKeydown, wmSyskeydown:
		t = Down
	case wmKeyup, wmSyskeyup:
		t = Up
	default:
		return Event{}, false
	}
	return Event{
		Key:        KeyForCode(kbInfo.vkCode),
		Transition: t,
		Time:       time.Now(),
	}, true
}

func translateWheel(msInfo *msllhookstruct) (Event, bool) {
	if msInfo.flags&llmhfInjected != 0 {
		return Event{}, false
	}
	// the high word is the signed wheel delta, positive away from the user
	delta := int16(msInfo.mouseData >> 16)
	var dir rules.Scroll
	switch {
	case delta > 0:
		dir = rules.ScrollUp
	case delta < 0:
		dir = rules.ScrollDown
	default:
		return Event{}, false
	}
	return Event{Scroll: dir, Time: time.Now()}, true
}

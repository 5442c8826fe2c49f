//go:build windows

package platform

import (
	"fmt"
	"path/filepath"
	"unsafe"

	"golang.org/x/sys/windows"

	"markestedt/keyroute/rules"
)

var (
	user32 = windows.NewLazySystemDLL("user32.dll")

	getForegroundWindow = user32.NewProc("GetForegroundWindow")
	getWindowText       = user32.NewProc("GetWindowTextW")
	getClassName        = user32.NewProc("GetClassNameW")
)

const maxTitle = 512

// WindowsInspector queries the foreground window.
type WindowsInspector struct{}

// NewWindowInspector creates the Windows foreground window inspector.
func NewWindowInspector() WindowInspector {
	return &WindowsInspector{}
}

// ActiveWindow returns title, class and executable name of the
// foreground window. With no foreground window every field is absent.
func (w *WindowsInspector) ActiveWindow() (rules.Context, error) {
	hwnd, _, _ := getForegroundWindow.Call()
	if hwnd == 0 {
		return rules.Context{}, nil
	}

	var ctx rules.Context
	buf := make([]uint16, maxTitle)

	n, _, _ := getWindowText.Call(hwnd, uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	ctx.Title = rules.Some(windows.UTF16ToString(buf[:n]))

	n, _, _ = getClassName.Call(hwnd, uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	if n > 0 {
		ctx.Class = rules.Some(windows.UTF16ToString(buf[:n]))
	}

	bin, err := processImage(windows.HWND(hwnd))
	if err != nil {
		// elevated or protected processes deny the query
		return ctx, nil
	}
	ctx.Binary = rules.Some(bin)
	return ctx, nil
}

func processImage(hwnd windows.HWND) (string, error) {
	var pid uint32
	if _, err := windows.GetWindowThreadProcessId(hwnd, &pid); err != nil {
		return "", fmt.Errorf("GetWindowThreadProcessId failed: %w", err)
	}

	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, pid)
	if err != nil {
		return "", fmt.Errorf("OpenProcess failed: %w", err)
	}
	defer windows.CloseHandle(h)

	buf := make([]uint16, windows.MAX_PATH)
	size := uint32(len(buf))
	if err := windows.QueryFullProcessImageName(h, 0, &buf[0], &size); err != nil {
		return "", fmt.Errorf("QueryFullProcessImageName failed: %w", err)
	}
	return filepath.Base(windows.UTF16ToString(buf[:size])), nil
}

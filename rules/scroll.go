package rules

import (
	"fmt"
	"strings"
)

// Scroll is the direction of one mouse wheel notch. NoScroll marks an
// event that is not a wheel notch.
type Scroll int

const (
	NoScroll Scroll = iota
	ScrollUp
	ScrollDown
)

func (s Scroll) String() string {
	switch s {
	case ScrollUp:
		return "scroll_up"
	case ScrollDown:
		return "scroll_down"
	default:
		return ""
	}
}

// ScrollNames lists the wheel event names a divert table accepts.
func ScrollNames() []string {
	return []string{ScrollUp.String(), ScrollDown.String()}
}

// ParseScroll decodes a wheel event name, ignoring case.
func ParseScroll(s string) (Scroll, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "scroll_up":
		return ScrollUp, nil
	case "scroll_down":
		return ScrollDown, nil
	}
	return NoScroll, fmt.Errorf("unknown wheel event %q", s)
}

package platform

import (
	"context"
	"errors"
	"time"

	"markestedt/keyroute/rules"
)

// ErrUnsupported is returned by backends that cannot provide a feature
// on the running OS.
var ErrUnsupported = errors.New("not supported on this platform")

// Transition is the direction of a raw key event.
type Transition int

const (
	Down Transition = iota
	Up
)

func (t Transition) String() string {
	if t == Up {
		return "up"
	}
	return "down"
}

// Event is one raw key transition from the input hook, or one mouse
// wheel notch when Scroll is set. Key and Transition are unused for
// wheel notches.
type Event struct {
	Key        rules.KeyID
	Transition Transition
	Scroll     rules.Scroll
	Time       time.Time
}

// Verdict tells the input hook what to do with the original event.
type Verdict int

const (
	// Forward lets the original event reach applications.
	Forward Verdict = iota
	// Drop swallows the original event.
	Drop
)

func (v Verdict) String() string {
	if v == Drop {
		return "drop"
	}
	return "forward"
}

// Handler decides the fate of one raw event. The hook calls it
// synchronously and in arrival order.
type Handler func(Event) Verdict

// InputHook captures key events system-wide.
type InputHook interface {
	// Run installs the hook and feeds events to h until ctx is done.
	// The hook resource is released before Run returns.
	Run(ctx context.Context, h Handler) error
	// CanSuppress reports whether a Drop verdict actually stops the
	// original event.
	CanSuppress() bool
}

// WindowInspector reports the focused window. Fields the backend
// cannot determine are left absent.
type WindowInspector interface {
	ActiveWindow() (rules.Context, error)
}

// Output synthesizes the signal for an action.
type Output interface {
	Emit(ctx context.Context, a rules.Action) error
}

// Options tunes backend construction.
type Options struct {
	// Devices lists evdev device paths to read on Linux. Empty means
	// every keyboard and mouse under /dev/input/by-path.
	Devices []string
}

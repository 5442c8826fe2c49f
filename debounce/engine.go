// Package debounce filters noisy key transitions into clean activations.
//
// Each key moves through three phases. The first transition after idle
// is accepted and arms InitialHold; further transitions are bounce
// until InitialHold has elapsed since the last accepted one. The next
// accepted transition enters Repeating, where everything within the
// repeat window is forwarded. A gap longer than the repeat window sends
// the key back to idle. There is no timer: phases decay lazily when the
// next transition is observed.
package debounce

import (
	"fmt"
	"time"

	"markestedt/keyroute/rules"
)

// Profile holds the timing of one named debounce profile. Diverts maps
// a wheel direction to the action that replaces the notch while a key
// using the profile is held down.
type Profile struct {
	InitialHold  time.Duration
	RepeatWindow time.Duration
	Diverts      map[rules.Scroll]rules.Action
}

// Validate rejects negative durations. A repeat window shorter than the
// initial hold is allowed: the key then never reaches Repeating and
// every press after an idle gap counts.
func (p Profile) Validate() error {
	if p.InitialHold < 0 {
		return fmt.Errorf("initial hold must not be negative")
	}
	if p.RepeatWindow < 0 {
		return fmt.Errorf("repeat window must not be negative")
	}
	return nil
}

// Divert returns the action replacing a wheel notch in direction s.
func (p Profile) Divert(s rules.Scroll) (rules.Action, bool) {
	a, ok := p.Diverts[s]
	return a, ok
}

// Phase is the debounce state of a key.
type Phase int

const (
	Idle Phase = iota
	InitialHold
	Repeating
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case InitialHold:
		return "initial_hold"
	case Repeating:
		return "repeating"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Decision is the outcome of observing one transition.
type Decision int

const (
	Suppress Decision = iota
	Accept
)

func (d Decision) String() string {
	if d == Accept {
		return "accept"
	}
	return "suppress"
}

type keyState struct {
	phase      Phase
	lastAccept time.Time
	entered    time.Time
	profile    string
}

// State is a read-only copy of one key's debounce state.
type State struct {
	Phase      Phase
	LastAccept time.Time
	Entered    time.Time
	Profile    string
}

// Engine keeps per-key debounce state. It is not safe for concurrent
// use; the dispatch pipeline owns it and calls it from a single
// goroutine.
type Engine struct {
	keys map[rules.KeyID]*keyState
}

// NewEngine returns an engine with no key state.
func NewEngine() *Engine {
	return &Engine{keys: make(map[rules.KeyID]*keyState)}
}

// Observe feeds one transition for key at time at and returns whether
// it should be forwarded. State for key is created on first use.
func (e *Engine) Observe(key rules.KeyID, profileName string, p Profile, at time.Time) Decision {
	st, ok := e.keys[key]
	if !ok {
		st = &keyState{}
		e.keys[key] = st
	}
	st.profile = profileName

	if st.phase == Idle {
		st.enter(InitialHold, at)
		return Accept
	}

	delta := at.Sub(st.lastAccept)
	if delta < 0 {
		delta = 0
	}
	if delta > p.RepeatWindow {
		st.enter(InitialHold, at)
		return Accept
	}

	switch st.phase {
	case InitialHold:
		if delta < p.InitialHold {
			return Suppress
		}
		st.enter(Repeating, at)
		return Accept
	default:
		st.lastAccept = at
		return Accept
	}
}

func (s *keyState) enter(p Phase, at time.Time) {
	s.phase = p
	s.lastAccept = at
	s.entered = at
}

// State returns the current state of key. Unknown keys report Idle.
func (e *Engine) State(key rules.KeyID) State {
	st, ok := e.keys[key]
	if !ok {
		return State{Phase: Idle}
	}
	return State{Phase: st.phase, LastAccept: st.lastAccept, Entered: st.entered, Profile: st.profile}
}

// Reset forgets the state of key.
func (e *Engine) Reset(key rules.KeyID) {
	delete(e.keys, key)
}

// Retain drops the state of every key for which keep returns false and
// returns the keys that were dropped.
func (e *Engine) Retain(keep func(key rules.KeyID, profile string) bool) []rules.KeyID {
	var dropped []rules.KeyID
	for k, st := range e.keys {
		if !keep(k, st.profile) {
			delete(e.keys, k)
			dropped = append(dropped, k)
		}
	}
	return dropped
}

// Len returns the number of keys with state.
func (e *Engine) Len() int {
	return len(e.keys)
}

// Package dispatch turns raw key events into verdicts and synthetic
// actions. One event passes binding lookup, debouncing, window context
// capture and rule resolution against a single config snapshot.
package dispatch

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"sync/atomic"
	"time"

	"markestedt/keyroute/config"
	"markestedt/keyroute/debounce"
	"markestedt/keyroute/platform"
	"markestedt/keyroute/rules"
)

// Outcome is what happened to one dispatched key press.
type Outcome string

const (
	Forwarded  Outcome = "forwarded"
	Blocked    Outcome = "blocked"
	Emitted    Outcome = "emitted"
	Suppressed Outcome = "suppressed"
	Diverted   Outcome = "diverted"
)

// Record describes one dispatched key press of a bound key, or one
// wheel notch diverted while that key was held. Unbound keys and wheel
// notches that pass through never produce a Record.
type Record struct {
	Time            time.Time
	Key             rules.KeyID
	Action          rules.Action
	Rule            int // matched rule index, -1 for none
	Outcome         Outcome
	Context         rules.Context
	ContextTimedOut bool
	Latency         time.Duration
	Err             error
}

// Pipeline dispatches events from a single input stream. Handle must
// not be called concurrently; Swap may be called from any goroutine.
type Pipeline struct {
	snap      atomic.Pointer[config.Snapshot]
	applied   *config.Snapshot
	engine    *debounce.Engine
	inspector platform.WindowInspector
	output    platform.Output
	observer  func(Record)

	// keys with a forwarded press and no release yet; only their
	// release follows
	downForwarded map[rules.KeyID]bool
	// debounced keys that are down, true once a wheel notch was diverted
	held          map[rules.KeyID]bool
	// window query abandoned by an earlier timeout and still running
	pending       chan windowResult
}

type windowResult struct {
	ctx rules.Context
	err error
}

// New creates a pipeline starting from snap.
func New(snap *config.Snapshot, inspector platform.WindowInspector, output platform.Output) *Pipeline {
	p := &Pipeline{
		engine:        debounce.NewEngine(),
		inspector:     inspector,
		output:        output,
		downForwarded: make(map[rules.KeyID]bool),
		held:          make(map[rules.KeyID]bool),
	}
	p.snap.Store(snap)
	p.applied = snap
	return p
}

// OnRecord registers fn to receive a Record per handled press. fn runs
// on the input goroutine and must not block. Call before the hook runs.
func (p *Pipeline) OnRecord(fn func(Record)) {
	p.observer = fn
}

// Swap installs a new snapshot. It takes effect with the next event.
func (p *Pipeline) Swap(snap *config.Snapshot) {
	if snap != nil {
		p.snap.Store(snap)
	}
}

// Snapshot returns the active snapshot.
func (p *Pipeline) Snapshot() *config.Snapshot {
	return p.snap.Load()
}

// Handle dispatches one event and returns what the hook should do with
// the original.
func (p *Pipeline) Handle(ctx context.Context, ev platform.Event) platform.Verdict {
	start := time.Now()
	snap := p.snap.Load()
	if snap != p.applied {
		p.reconcile(snap)
	}

	if ev.Scroll != rules.NoScroll {
		return p.handleScroll(ctx, snap, ev, start)
	}

	b, bound := snap.Binding(ev.Key)
	if !bound {
		return platform.Forward
	}

	if ev.Transition == platform.Up {
		delete(p.held, ev.Key)
		if p.downForwarded[ev.Key] {
			delete(p.downForwarded, ev.Key)
			return platform.Forward
		}
		return platform.Drop
	}

	rec := Record{Time: ev.Time, Key: ev.Key, Rule: -1}
	defer func() {
		rec.Latency = time.Since(start)
		if p.observer != nil {
			p.observer(rec)
		}
	}()

	if b.Debounce != "" {
		if p.held[ev.Key] {
			slog.Debug("Suppressed repeat of diverted key", "key", ev.Key)
			rec.Outcome = Suppressed
			return platform.Drop
		}
		if _, down := p.held[ev.Key]; !down {
			p.held[ev.Key] = false
		}
		if prof, ok := snap.Profile(b.Debounce); ok {
			if p.engine.Observe(ev.Key, b.Debounce, prof, ev.Time) == debounce.Suppress {
				slog.Debug("Suppressed bounce", "key", ev.Key, "profile", b.Debounce)
				rec.Outcome = Suppressed
				return platform.Drop
			}
		}
	}

	var wctx rules.Context
	if b.Conditional() {
		wctx, rec.ContextTimedOut = p.activeWindow(ctx, snap.ContextTimeout())
		rec.Context = wctx
	}
	rec.Action, rec.Rule = rules.ResolveIndex(b, wctx)

	verdict := p.apply(ctx, &rec)
	if rec.Outcome == Forwarded {
		p.downForwarded[ev.Key] = true
	}
	return verdict
}

// apply carries out rec.Action and sets the outcome.
func (p *Pipeline) apply(ctx context.Context, rec *Record) platform.Verdict {
	switch rec.Action {
	case rules.Passthrough:
		rec.Outcome = Forwarded
		return platform.Forward
	case rules.Block:
		rec.Outcome = Blocked
		return platform.Drop
	default:
		rec.Outcome = Emitted
		if err := p.output.Emit(ctx, rec.Action); err != nil {
			slog.Warn("Failed to emit action", "key", rec.Key, "action", rec.Action, "error", err)
			rec.Err = err
		}
		return platform.Drop
	}
}

// handleScroll replaces a wheel notch with the divert action of a held
// key's debounce profile. Every held key sharing that profile is then
// diverted: its repeats are dropped until it is released. Without a
// held key or a divert for the direction the notch passes through.
func (p *Pipeline) handleScroll(ctx context.Context, snap *config.Snapshot, ev platform.Event, start time.Time) platform.Verdict {
	key, profile, action, ok := p.divert(snap, ev.Scroll)
	if !ok || action == rules.Passthrough {
		return platform.Forward
	}

	for k := range p.held {
		if b, bound := snap.Binding(k); bound && b.Debounce == profile {
			p.held[k] = true
		}
	}

	rec := Record{Time: ev.Time, Key: key, Action: action, Rule: -1}
	verdict := p.apply(ctx, &rec)
	rec.Outcome = Diverted
	slog.Debug("Diverted wheel notch", "scroll", ev.Scroll, "key", key, "profile", profile, "action", action)

	rec.Latency = time.Since(start)
	if p.observer != nil {
		p.observer(rec)
	}
	return verdict
}

// divert finds the first held key, in key order, whose profile diverts
// direction s.
func (p *Pipeline) divert(snap *config.Snapshot, s rules.Scroll) (rules.KeyID, string, rules.Action, bool) {
	for _, k := range slices.Sorted(maps.Keys(p.held)) {
		b, ok := snap.Binding(k)
		if !ok || b.Debounce == "" {
			continue
		}
		prof, ok := snap.Profile(b.Debounce)
		if !ok {
			continue
		}
		if a, ok := prof.Divert(s); ok {
			return k, b.Debounce, a, true
		}
	}
	return "", "", rules.Passthrough, false
}

// reconcile adopts snap and drops debounce state of keys whose binding
// no longer references the same, still defined profile.
func (p *Pipeline) reconcile(snap *config.Snapshot) {
	p.applied = snap
	dropped := p.engine.Retain(func(key rules.KeyID, profile string) bool {
		b, ok := snap.Binding(key)
		if !ok || b.Debounce != profile {
			return false
		}
		_, ok = snap.Profile(profile)
		return ok
	})
	if len(dropped) > 0 {
		slog.Debug("Reset debounce state after reload", "keys", dropped)
	}
	for k := range p.held {
		if b, ok := snap.Binding(k); !ok || b.Debounce == "" {
			delete(p.held, k)
		}
	}
}

// activeWindow queries the focused window, giving up after timeout.
// A failed or late query yields the empty Context, and the bool reports
// a timeout. At most one query runs at a time: a query abandoned by an
// earlier timeout is waited for first and its stale result discarded.
func (p *Pipeline) activeWindow(ctx context.Context, timeout time.Duration) (rules.Context, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		fresh := p.pending == nil
		if fresh {
			ch := make(chan windowResult, 1)
			go func() {
				c, err := p.inspector.ActiveWindow()
				ch <- windowResult{c, err}
			}()
			p.pending = ch
		}

		select {
		case r := <-p.pending:
			p.pending = nil
			if !fresh {
				continue
			}
			if r.err != nil {
				slog.Debug("Window query failed", "error", r.err)
				return rules.Context{}, false
			}
			return r.ctx, false
		case <-timer.C:
			slog.Debug("Window query timed out", "timeout", timeout, "stale", !fresh)
			return rules.Context{}, true
		case <-ctx.Done():
			return rules.Context{}, false
		}
	}
}

package config

import (
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/samber/lo"

	"markestedt/keyroute/debounce"
	"markestedt/keyroute/rules"
)

// Snapshot is a validated, immutable configuration. Reloading produces
// a new Snapshot; an existing one is never modified.
type Snapshot struct {
	source   string
	daemon   DaemonConfig
	bindings map[rules.KeyID]rules.Binding
	profiles map[string]debounce.Profile
	loadedAt time.Time
}

// NewSnapshot builds a Snapshot from already decoded parts. The maps are
// copied. Profiles and debounce references are validated.
func NewSnapshot(source string, d DaemonConfig, bindings map[rules.KeyID]rules.Binding, profiles map[string]debounce.Profile) (*Snapshot, error) {
	var iss issues
	for _, name := range slices.Sorted(maps.Keys(profiles)) {
		if err := profiles[name].Validate(); err != nil {
			iss.add("debounce."+name, "%v", err)
		}
	}
	for _, key := range slices.Sorted(maps.Keys(bindings)) {
		ref := bindings[key].Debounce
		if ref == "" {
			continue
		}
		if _, ok := profiles[ref]; !ok {
			iss.add("bindings."+string(key)+".debounce", "undefined debounce profile %q%s", ref, definedHint(profiles))
		}
	}
	if err := iss.err(source); err != nil {
		return nil, err
	}

	d.Devices = slices.Clone(d.Devices)
	return &Snapshot{
		source:   source,
		daemon:   d,
		bindings: maps.Clone(bindings),
		profiles: maps.Clone(profiles),
		loadedAt: time.Now(),
	}, nil
}

// Source names the file the snapshot was loaded from.
func (s *Snapshot) Source() string { return s.source }

// LoadedAt is when the snapshot was built.
func (s *Snapshot) LoadedAt() time.Time { return s.loadedAt }

// Daemon returns a copy of the daemon settings.
func (s *Snapshot) Daemon() DaemonConfig {
	d := s.daemon
	d.Devices = slices.Clone(d.Devices)
	return d
}

// Binding returns the binding for key.
func (s *Snapshot) Binding(key rules.KeyID) (rules.Binding, bool) {
	b, ok := s.bindings[key]
	return b, ok
}

// Profile returns the named debounce profile.
func (s *Snapshot) Profile(name string) (debounce.Profile, bool) {
	p, ok := s.profiles[name]
	return p, ok
}

// Keys returns the bound keys in sorted order.
func (s *Snapshot) Keys() []rules.KeyID {
	keys := lo.Keys(s.bindings)
	slices.Sort(keys)
	return keys
}

// ProfileNames returns the debounce profile names in sorted order.
func (s *Snapshot) ProfileNames() []string {
	names := lo.Keys(s.profiles)
	slices.Sort(names)
	return names
}

// ContextTimeout bounds the active window query.
func (s *Snapshot) ContextTimeout() time.Duration {
	return time.Duration(s.daemon.ContextTimeoutMs) * time.Millisecond
}

// Level returns the configured log level, info when unset.
func (s *Snapshot) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s.daemon.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func definedHint(profiles map[string]debounce.Profile) string {
	if len(profiles) == 0 {
		return " (no debounce profiles are defined)"
	}
	names := lo.Keys(profiles)
	slices.Sort(names)
	return " (defined: " + joinQuoted(names) + ")"
}

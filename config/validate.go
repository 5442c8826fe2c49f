package config

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"markestedt/keyroute/debounce"
	"markestedt/keyroute/platform"
	"markestedt/keyroute/rules"
)

// Issue is one problem found while validating a configuration.
type Issue struct {
	Path    string
	Message string
}

func (i Issue) String() string {
	if i.Path == "" {
		return i.Message
	}
	return i.Path + ": " + i.Message
}

// ValidationError lists every problem in a configuration. A config with
// any issue is rejected as a whole.
type ValidationError struct {
	Source string
	Issues []Issue
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: configuration has %d error(s)", e.Source, len(e.Issues))
	for _, i := range e.Issues {
		b.WriteString("\n  ")
		b.WriteString(i.String())
	}
	return b.String()
}

type issues []Issue

func (is *issues) add(path, format string, args ...any) {
	*is = append(*is, Issue{Path: path, Message: fmt.Sprintf(format, args...)})
}

func (is issues) err(source string) error {
	if len(is) == 0 {
		return nil
	}
	sorted := slices.Clone(is)
	slices.SortStableFunc(sorted, func(a, b Issue) int {
		return strings.Compare(a.Path, b.Path)
	})
	return &ValidationError{Source: source, Issues: sorted}
}

// conditionFields are the criteria a rule condition may set.
var conditionFields = []string{"title", "not_title", "class", "not_class", "binary", "not_binary"}

func build(source string, doc document, unknown []string) (*Snapshot, error) {
	var iss issues

	for _, k := range unknown {
		iss.add(k, "unknown field")
	}

	validateDaemon(&iss, doc.Daemon)

	profiles := make(map[string]debounce.Profile, len(doc.Debounce))
	for _, name := range slices.Sorted(maps.Keys(doc.Debounce)) {
		raw := doc.Debounce[name]
		path := "debounce." + name
		ok := true
		if raw.InitialHoldMs == nil {
			iss.add(path, "missing required field initial_hold_ms")
			ok = false
		}
		if raw.RepeatWindowMs == nil {
			iss.add(path, "missing required field repeat_window_ms")
			ok = false
		}
		diverts, valid := decodeDiverts(&iss, path+".diverts", raw.Diverts)
		if !ok || !valid {
			continue
		}
		p := debounce.Profile{
			InitialHold:  time.Duration(*raw.InitialHoldMs) * time.Millisecond,
			RepeatWindow: time.Duration(*raw.RepeatWindowMs) * time.Millisecond,
			Diverts:      diverts,
		}
		if err := p.Validate(); err != nil {
			iss.add(path, "%v", err)
			continue
		}
		profiles[name] = p
	}

	bindings := make(map[rules.KeyID]rules.Binding, len(doc.Bindings))
	specs := make(map[rules.KeyID]string, len(doc.Bindings))
	for _, spec := range slices.Sorted(maps.Keys(doc.Bindings)) {
		raw := doc.Bindings[spec]
		path := "bindings." + spec

		key, err := platform.ParseKey(spec)
		if err != nil {
			iss.add(path, "%v", err)
			continue
		}
		if prev, dup := specs[key]; dup {
			iss.add(path, "duplicate binding for key %s (also bound as %q)", key, prev)
			continue
		}
		specs[key] = spec

		b, ok := decodeAction(&iss, path+".action", raw.Action)
		if !ok {
			continue
		}
		if raw.Debounce != "" {
			if _, defined := doc.Debounce[raw.Debounce]; !defined {
				iss.add(path+".debounce", "undefined debounce profile %q%s", raw.Debounce, definedHint(profiles))
				continue
			}
			b = b.WithDebounce(raw.Debounce)
		}
		bindings[key] = b
	}

	if err := iss.err(source); err != nil {
		return nil, err
	}
	return NewSnapshot(source, doc.Daemon, bindings, profiles)
}

// decodeDiverts maps wheel event names to actions. An empty table
// yields a nil map.
func decodeDiverts(iss *issues, path string, raw map[string]string) (map[rules.Scroll]rules.Action, bool) {
	if len(raw) == 0 {
		return nil, true
	}
	out := make(map[rules.Scroll]rules.Action, len(raw))
	ok := true
	for _, name := range slices.Sorted(maps.Keys(raw)) {
		p := path + "." + name
		dir, err := rules.ParseScroll(name)
		if err != nil {
			iss.add(p, "%v (expected %s)", err, strings.Join(rules.ScrollNames(), " or "))
			ok = false
			continue
		}
		if _, dup := out[dir]; dup {
			iss.add(p, "wheel event set more than once")
			ok = false
			continue
		}
		act, err := rules.ParseAction(raw[name])
		if err != nil {
			iss.add(p, "%v", err)
			ok = false
			continue
		}
		out[dir] = act
	}
	return out, ok
}

func validateDaemon(iss *issues, d DaemonConfig) {
	if d.ContextTimeoutMs <= 0 {
		iss.add("daemon.context_timeout_ms", "must be positive, got %d", d.ContextTimeoutMs)
	}
	if d.WebPort < 0 || d.WebPort > 65535 {
		iss.add("daemon.web_port", "must be between 0 and 65535, got %d", d.WebPort)
	}
	if d.HistoryDays < 0 {
		iss.add("daemon.history_days", "must not be negative, got %d", d.HistoryDays)
	}
	if d.LogLevel != "" {
		var l slog.Level
		if err := l.UnmarshalText([]byte(d.LogLevel)); err != nil {
			iss.add("daemon.log_level", "unknown level %q (expected debug, info, warn or error)", d.LogLevel)
		}
	}
}

// decodeAction turns the undecoded action value into a Binding. Both
// decoders produce strings, []any or []map[string]any for it.
func decodeAction(iss *issues, path string, v any) (rules.Binding, bool) {
	switch a := v.(type) {
	case nil:
		iss.add(path, "missing required field")
	case string:
		act, err := rules.ParseAction(a)
		if err != nil {
			iss.add(path, "%v", err)
			return rules.Binding{}, false
		}
		return rules.Always(act), true
	case []map[string]any:
		entries := make([]any, len(a))
		for i, m := range a {
			entries[i] = m
		}
		return decodeRules(iss, path, entries)
	case []any:
		return decodeRules(iss, path, a)
	default:
		iss.add(path, "must be an action name or a list of rules, got %T", v)
	}
	return rules.Binding{}, false
}

func decodeRules(iss *issues, path string, entries []any) (rules.Binding, bool) {
	if len(entries) == 0 {
		iss.add(path, "rule list is empty")
		return rules.Binding{}, false
	}

	out := make([]rules.ConditionalAction, 0, len(entries))
	ok := true
	for i, e := range entries {
		p := fmt.Sprintf("%s[%d]", path, i)
		m, isMap := e.(map[string]any)
		if !isMap {
			iss.add(p, "rule must be a table with condition and action, got %T", e)
			ok = false
			continue
		}
		ca, valid := decodeRule(iss, p, m)
		if !valid {
			ok = false
			continue
		}
		out = append(out, ca)
	}
	if !ok {
		return rules.Binding{}, false
	}
	return rules.FirstMatch(out...), true
}

func decodeRule(iss *issues, path string, m map[string]any) (rules.ConditionalAction, bool) {
	var ca rules.ConditionalAction
	ok := true

	for _, k := range slices.Sorted(maps.Keys(m)) {
		if k != "condition" && k != "action" {
			iss.add(path+"."+k, "unknown field")
			ok = false
		}
	}

	switch a := m["action"].(type) {
	case nil:
		iss.add(path+".action", "missing required field")
		ok = false
	case string:
		act, err := rules.ParseAction(a)
		if err != nil {
			iss.add(path+".action", "%v", err)
			ok = false
		}
		ca.Action = act
	default:
		iss.add(path+".action", "must be an action name, got %T", a)
		ok = false
	}

	if raw, present := m["condition"]; present {
		c, valid := decodeCondition(iss, path+".condition", raw)
		ok = ok && valid
		ca.Condition = c
	}
	return ca, ok
}

// decodeCondition reads the criteria of one rule. Criteria may also be
// nested in a window table.
func decodeCondition(iss *issues, path string, raw any) (rules.Condition, bool) {
	var c rules.Condition
	m, isMap := raw.(map[string]any)
	if !isMap {
		iss.add(path, "must be a table, got %T", raw)
		return c, false
	}

	ok := true
	set := func(p, field string, v any) {
		s, isString := v.(string)
		if !isString {
			iss.add(p, "must be a string glob, got %T", v)
			ok = false
			return
		}
		if !utf8.ValidString(s) || strings.ContainsRune(s, 0) {
			iss.add(p, "malformed glob %q", s)
			ok = false
			return
		}
		dst := conditionField(&c, field)
		if dst.Present() {
			iss.add(p, "criterion set more than once")
			ok = false
			return
		}
		*dst = rules.Some(s)
	}

	for _, k := range slices.Sorted(maps.Keys(m)) {
		v := m[k]
		switch {
		case k == "window":
			w, isTable := v.(map[string]any)
			if !isTable {
				iss.add(path+".window", "must be a table, got %T", v)
				ok = false
				continue
			}
			for _, wk := range slices.Sorted(maps.Keys(w)) {
				if !slices.Contains(conditionFields, wk) {
					iss.add(path+".window."+wk, "unknown criterion (expected %s)", strings.Join(conditionFields, ", "))
					ok = false
					continue
				}
				set(path+".window."+wk, wk, w[wk])
			}
		case slices.Contains(conditionFields, k):
			set(path+"."+k, k, v)
		default:
			iss.add(path+"."+k, "unknown criterion (expected %s)", strings.Join(conditionFields, ", "))
			ok = false
		}
	}
	return c, ok
}

func conditionField(c *rules.Condition, name string) *rules.Optional {
	switch name {
	case "title":
		return &c.Title
	case "not_title":
		return &c.NotTitle
	case "class":
		return &c.Class
	case "not_class":
		return &c.NotClass
	case "binary":
		return &c.Binary
	default:
		return &c.NotBinary
	}
}

func joinQuoted(names []string) string {
	q := make([]string, len(names))
	for i, n := range names {
		q[i] = fmt.Sprintf("%q", n)
	}
	return strings.Join(q, ", ")
}

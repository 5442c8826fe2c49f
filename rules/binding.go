package rules

// ConditionalAction pairs a Condition with the Action it selects.
type ConditionalAction struct {
	Condition Condition
	Action    Action
}

// Binding is the rule attached to one key: either a single action or
// an ordered list evaluated first-match-wins.
type Binding struct {
	action Action
	rules  []ConditionalAction

	// Debounce names the profile filtering this key, empty for none.
	Debounce string
}

// Always returns a Binding that resolves to a regardless of context.
func Always(a Action) Binding {
	return Binding{action: a}
}

// FirstMatch returns a Binding that picks the first entry whose
// condition matches, or Passthrough when none does. The slice is
// copied.
func FirstMatch(entries ...ConditionalAction) Binding {
	return Binding{rules: append(make([]ConditionalAction, 0, len(entries)), entries...)}
}

// WithDebounce returns a copy of b referencing the named profile.
func (b Binding) WithDebounce(profile string) Binding {
	b.Debounce = profile
	return b
}

// Conditional reports whether b is a rule list.
func (b Binding) Conditional() bool {
	return b.rules != nil
}

// Rules returns a copy of the conditional entries, nil for a single
// action binding.
func (b Binding) Rules() []ConditionalAction {
	if b.rules == nil {
		return nil
	}
	return append([]ConditionalAction(nil), b.rules...)
}

// Action returns the unconditional action of a single action binding.
func (b Binding) Action() (Action, bool) {
	return b.action, b.rules == nil
}

// Resolve picks the action for b in ctx. Entries are tried strictly in
// declaration order.
func Resolve(b Binding, ctx Context) Action {
	if b.rules == nil {
		return b.action
	}
	for _, r := range b.rules {
		if Evaluate(r.Condition, ctx) {
			return r.Action
		}
	}
	return Passthrough
}

// ResolveIndex is Resolve that also reports which entry matched:
// -1 for a single action binding or when the default applied.
func ResolveIndex(b Binding, ctx Context) (Action, int) {
	if b.rules == nil {
		return b.action, -1
	}
	for i, r := range b.rules {
		if Evaluate(r.Condition, ctx) {
			return r.Action, i
		}
	}
	return Passthrough, -1
}

package rules

// Condition holds up to six glob criteria against the focused window.
// Present criteria are ANDed; a Condition with nothing set matches
// every Context.
type Condition struct {
	Title     Optional
	NotTitle  Optional
	Class     Optional
	NotClass  Optional
	Binary    Optional
	NotBinary Optional
}

// IsEmpty reports whether no criterion is set.
func (c Condition) IsEmpty() bool {
	return c == Condition{}
}

// Matches is shorthand for Evaluate(c, ctx).
func (c Condition) Matches(ctx Context) bool {
	return Evaluate(c, ctx)
}

// Evaluate checks a Condition against a Context.
//
// A positive pattern needs the field present and matching. A negated
// pattern is satisfied when the field is absent or does not match, so a
// rule with only NotTitle still fires when no window title is known.
func Evaluate(c Condition, ctx Context) bool {
	return positive(c.Title, ctx.Title) &&
		positive(c.Class, ctx.Class) &&
		positive(c.Binary, ctx.Binary) &&
		negative(c.NotTitle, ctx.Title) &&
		negative(c.NotClass, ctx.Class) &&
		negative(c.NotBinary, ctx.Binary)
}

func positive(pattern, field Optional) bool {
	p, ok := pattern.Get()
	if !ok {
		return true
	}
	v, ok := field.Get()
	return ok && Match(p, v)
}

func negative(pattern, field Optional) bool {
	p, ok := pattern.Get()
	if !ok {
		return true
	}
	v, ok := field.Get()
	return !ok || !Match(p, v)
}

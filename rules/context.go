package rules

import "fmt"

// KeyID identifies a physical key by its platform-independent name,
// e.g. "f16" or "0x7c" for codes without a known name.
type KeyID string

// Optional is a string that may be absent. An absent Optional is
// different from a present empty string.
type Optional struct {
	value   string
	present bool
}

// Some returns a present Optional holding v.
func Some(v string) Optional {
	return Optional{value: v, present: true}
}

// None is the absent Optional.
var None = Optional{}

// Get returns the value and whether it is present.
func (o Optional) Get() (string, bool) {
	return o.value, o.present
}

// Present reports whether a value is set.
func (o Optional) Present() bool {
	return o.present
}

func (o Optional) String() string {
	if !o.present {
		return "<none>"
	}
	return fmt.Sprintf("%q", o.value)
}

// Context is a snapshot of the focused window at event time.
type Context struct {
	Title  Optional
	Class  Optional
	Binary Optional
}

// Empty reports whether no field is present, which is what a failed or
// timed-out window query produces.
func (c Context) Empty() bool {
	return !c.Title.present && !c.Class.present && !c.Binary.present
}

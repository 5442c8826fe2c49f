package rules

import (
	"fmt"
	"strings"
)

// Action is what a key resolves to. The set is closed; config strings
// are decoded into it once, during validation.
type Action int

const (
	Passthrough Action = iota
	Block
	MediaPlayPause
	MediaNext
	MediaPrev
	MediaStop
	BrowserBack
	BrowserForward
	VolumeUp
	VolumeDown
	VolumeMute
)

var actionNames = [...]string{
	Passthrough:    "passthrough",
	Block:          "block",
	MediaPlayPause: "media_play_pause",
	MediaNext:      "media_next",
	MediaPrev:      "media_previous",
	MediaStop:      "media_stop",
	BrowserBack:    "browser_back",
	BrowserForward: "browser_forward",
	VolumeUp:       "volume_up",
	VolumeDown:     "volume_down",
	VolumeMute:     "volume_mute",
}

// accepted spellings that are not the canonical name
var actionAliases = map[string]Action{
	"media_prev": MediaPrev,
	"pass":       Passthrough,
}

func (a Action) String() string {
	if a < 0 || int(a) >= len(actionNames) {
		return fmt.Sprintf("action(%d)", int(a))
	}
	return actionNames[a]
}

// Synthetic reports whether the action produces an output signal,
// i.e. it is neither Passthrough nor Block.
func (a Action) Synthetic() bool {
	return a != Passthrough && a != Block
}

// ActionNames lists the canonical action names in declaration order.
func ActionNames() []string {
	return append([]string(nil), actionNames[:]...)
}

// ParseAction decodes an action name. Matching ignores case and treats
// '-' like '_'.
func ParseAction(s string) (Action, error) {
	name := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for i, n := range actionNames {
		if n == name {
			return Action(i), nil
		}
	}
	if a, ok := actionAliases[name]; ok {
		return a, nil
	}
	return Passthrough, fmt.Errorf("unknown action %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

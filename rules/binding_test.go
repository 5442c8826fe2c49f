package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func browserBackBinding() Binding {
	return FirstMatch(
		ConditionalAction{Condition: Condition{Title: Some("*Vivaldi*")}, Action: BrowserBack},
		ConditionalAction{Condition: Condition{Title: Some("*Firefox*")}, Action: BrowserBack},
	)
}

func TestResolve_SingleAction(t *testing.T) {
	b := Always(MediaNext)
	assert.Equal(t, MediaNext, Resolve(b, Context{}))
	assert.Equal(t, MediaNext, Resolve(b, Context{Title: Some("anything")}))

	a, ok := b.Action()
	assert.True(t, ok)
	assert.Equal(t, MediaNext, a)
	assert.False(t, b.Conditional())
}

func TestResolve_BrowserScenario(t *testing.T) {
	b := browserBackBinding()
	assert.Equal(t, BrowserBack, Resolve(b, Context{Title: Some("Inbox - Vivaldi")}))
	assert.Equal(t, BrowserBack, Resolve(b, Context{Title: Some("Mozilla Firefox")}))
	assert.Equal(t, Passthrough, Resolve(b, Context{Title: Some("Notes")}))
	assert.Equal(t, Passthrough, Resolve(b, Context{}))
}

func TestResolve_FirstMatchWins(t *testing.T) {
	b := FirstMatch(
		ConditionalAction{Condition: Condition{Title: Some("*Vivaldi*")}, Action: MediaPlayPause},
		ConditionalAction{Condition: Condition{Binary: Some("vivaldi.exe")}, Action: Block},
		ConditionalAction{Action: MediaStop},
	)
	ctx := Context{Title: Some("Inbox - Vivaldi"), Binary: Some("vivaldi.exe")}

	for i := 0; i < 10; i++ {
		a, idx := ResolveIndex(b, ctx)
		require.Equal(t, MediaPlayPause, a)
		require.Equal(t, 0, idx)
	}

	a, idx := ResolveIndex(b, Context{Binary: Some("vivaldi.exe")})
	assert.Equal(t, Block, a)
	assert.Equal(t, 1, idx)

	// trailing empty condition acts as a catch-all
	a, idx = ResolveIndex(b, Context{})
	assert.Equal(t, MediaStop, a)
	assert.Equal(t, 2, idx)
}

func TestResolve_NegatedFallback(t *testing.T) {
	b := FirstMatch(
		ConditionalAction{Condition: Condition{NotTitle: Some("*Game*")}, Action: MediaPlayPause},
	)
	assert.Equal(t, MediaPlayPause, Resolve(b, Context{}))
	assert.Equal(t, MediaPlayPause, Resolve(b, Context{Title: Some("Editor")}))
	assert.Equal(t, Passthrough, Resolve(b, Context{Title: Some("Big Game")}))
}

func TestResolve_DefaultIndex(t *testing.T) {
	a, idx := ResolveIndex(browserBackBinding(), Context{Title: Some("Notes")})
	assert.Equal(t, Passthrough, a)
	assert.Equal(t, -1, idx)
}

func TestFirstMatch_CopiesEntries(t *testing.T) {
	entries := []ConditionalAction{{Action: MediaNext}}
	b := FirstMatch(entries...)
	entries[0].Action = Block

	assert.Equal(t, MediaNext, Resolve(b, Context{}))
	rules := b.Rules()
	rules[0].Action = Block
	assert.Equal(t, MediaNext, Resolve(b, Context{}))
}

func TestWithDebounce(t *testing.T) {
	b := Always(MediaNext).WithDebounce("scroll")
	assert.Equal(t, "scroll", b.Debounce)
	assert.Equal(t, MediaNext, Resolve(b, Context{}))
}

func TestParseAction(t *testing.T) {
	for _, name := range ActionNames() {
		a, err := ParseAction(name)
		require.NoError(t, err)
		assert.Equal(t, name, a.String())
	}

	a, err := ParseAction("Media-Next")
	require.NoError(t, err)
	assert.Equal(t, MediaNext, a)

	a, err = ParseAction("media_prev")
	require.NoError(t, err)
	assert.Equal(t, MediaPrev, a)

	_, err = ParseAction("launch_rocket")
	assert.Error(t, err)
}

func TestAction_Synthetic(t *testing.T) {
	assert.False(t, Passthrough.Synthetic())
	assert.False(t, Block.Synthetic())
	assert.True(t, MediaNext.Synthetic())
	assert.True(t, BrowserForward.Synthetic())
}

package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"markestedt/keyroute/rules"
)

func wheelData(delta int16) uint32 {
	return uint32(uint16(delta)) << 16
}

func TestTranslateWheel(t *testing.T) {
	ev, ok := translateWheel(&msllhookstruct{mouseData: wheelData(120)})
	require.True(t, ok)
	assert.Equal(t, rules.ScrollUp, ev.Scroll)
	assert.Empty(t, ev.Key)

	ev, ok = translateWheel(&msllhookstruct{mouseData: wheelData(-240)})
	require.True(t, ok)
	assert.Equal(t, rules.ScrollDown, ev.Scroll)

	_, ok = translateWheel(&msllhookstruct{mouseData: wheelData(120), flags: llmhfInjected})
	assert.False(t, ok, "injected notches are ignored")

	_, ok = translateWheel(&msllhookstruct{})
	assert.False(t, ok)
}

func TestTranslate(t *testing.T) {
	code, ok := CodeForKey("f16")
	require.True(t, ok)

	ev, ok := translate(wmKeydown, &kbdllhookstruct{vkCode: code})
	require.True(t, ok)
	assert.Equal(t, Event{Key: "f16", Transition: Down, Time: ev.Time}, ev)

	ev, ok = translate(wmSyskeyup, &kbdllhookstruct{vkCode: code})
	require.True(t, ok)
	assert.Equal(t, Up, ev.Transition)

	_, ok = translate(wmKeydown, &kbdllhookstruct{vkCode: code, flags: llkhfInjected})
	assert.False(t, ok)
}

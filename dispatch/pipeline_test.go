package dispatch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"markestedt/keyroute/config"
	"markestedt/keyroute/debounce"
	"markestedt/keyroute/platform"
	"markestedt/keyroute/rules"
)

const testConfig = `
[daemon]
context_timeout_ms = 20

[debounce.scroll]
initial_hold_ms = 110
repeat_window_ms = 2000

[debounce.scroll.diverts]
scroll_up = "volume_up"
scroll_down = "volume_down"

[bindings.f13]
action = "media_play_pause"

[bindings.f14]
action = "block"

[bindings.f16]
action = "media_next"
debounce = "scroll"

[bindings.f17]
action = [
  { condition = { title = "*Vivaldi*" }, action = "browser_back" },
  { condition = { title = "*Firefox*" }, action = "browser_back" },
]
`

type fakeInspector struct {
	ctx   rules.Context
	err   error
	delay time.Duration
	gate  chan struct{} // when set, queries block until it is closed
	calls atomic.Int32
}

func (f *fakeInspector) ActiveWindow() (rules.Context, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.ctx, f.err
}

type fakeOutput struct {
	mu      sync.Mutex
	emitted []rules.Action
	err     error
}

func (f *fakeOutput) Emit(_ context.Context, a rules.Action) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emitted = append(f.emitted, a)
	return f.err
}

func mustParse(t *testing.T, data string) *config.Snapshot {
	t.Helper()
	snap, err := config.Parse("test.toml", []byte(data))
	require.NoError(t, err)
	return snap
}

type harness struct {
	pipe    *Pipeline
	window  *fakeInspector
	out     *fakeOutput
	records []Record
	base    time.Time
}

func newHarness(t *testing.T) *harness {
	h := &harness{
		window: &fakeInspector{},
		out:    &fakeOutput{},
		base:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	h.pipe = New(mustParse(t, testConfig), h.window, h.out)
	h.pipe.OnRecord(func(r Record) { h.records = append(h.records, r) })
	return h
}

func (h *harness) press(key rules.KeyID, ms int) platform.Verdict {
	return h.send(key, platform.Down, ms)
}

func (h *harness) release(key rules.KeyID, ms int) platform.Verdict {
	return h.send(key, platform.Up, ms)
}

func (h *harness) scroll(dir rules.Scroll, ms int) platform.Verdict {
	at := h.base.Add(time.Duration(ms) * time.Millisecond)
	return h.pipe.Handle(context.Background(), platform.Event{Scroll: dir, Time: at})
}

func (h *harness) outcomes() []Outcome {
	var out []Outcome
	for _, r := range h.records {
		out = append(out, r.Outcome)
	}
	return out
}

func (h *harness) send(key rules.KeyID, tr platform.Transition, ms int) platform.Verdict {
	at := h.base.Add(time.Duration(ms) * time.Millisecond)
	return h.pipe.Handle(context.Background(), platform.Event{Key: key, Transition: tr, Time: at})
}

func TestHandle_UnboundKeyIsForwarded(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, platform.Forward, h.press("a", 0))
	assert.Equal(t, platform.Forward, h.release("a", 5))
	assert.Empty(t, h.out.emitted)
	assert.Empty(t, h.records, "unbound keys are not recorded")
}

func TestHandle_SingleAction(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, platform.Drop, h.press("f13", 0))
	assert.Equal(t, platform.Drop, h.release("f13", 40))
	assert.Equal(t, []rules.Action{rules.MediaPlayPause}, h.out.emitted)

	require.Len(t, h.records, 1)
	assert.Equal(t, Emitted, h.records[0].Outcome)
	assert.Equal(t, rules.MediaPlayPause, h.records[0].Action)
	assert.True(t, h.records[0].Context.Empty(), "single action bindings skip the window query")
}

func TestHandle_Block(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, platform.Drop, h.press("f14", 0))
	assert.Equal(t, platform.Drop, h.release("f14", 10))
	assert.Empty(t, h.out.emitted)
	require.Len(t, h.records, 1)
	assert.Equal(t, Blocked, h.records[0].Outcome)
}

func TestHandle_ScrollBurst(t *testing.T) {
	h := newHarness(t)

	var verdicts []platform.Verdict
	for _, ms := range []int{0, 40, 90, 160} {
		verdicts = append(verdicts, h.press("f16", ms))
	}

	assert.Equal(t, []platform.Verdict{platform.Drop, platform.Drop, platform.Drop, platform.Drop}, verdicts)
	assert.Equal(t, []rules.Action{rules.MediaNext, rules.MediaNext}, h.out.emitted)

	var outcomes []Outcome
	for _, r := range h.records {
		outcomes = append(outcomes, r.Outcome)
	}
	assert.Equal(t, []Outcome{Emitted, Suppressed, Suppressed, Emitted}, outcomes)
	assert.Equal(t, debounce.Repeating, h.pipe.engine.State("f16").Phase)
}

func TestHandle_BrowserRules(t *testing.T) {
	h := newHarness(t)

	h.window.ctx = rules.Context{Title: rules.Some("Inbox - Vivaldi"), Class: rules.Some("Chrome_WidgetWin_1")}
	assert.Equal(t, platform.Drop, h.press("f17", 0))
	assert.Equal(t, platform.Drop, h.release("f17", 20))

	h.window.ctx = rules.Context{Title: rules.Some("MDN - Mozilla Firefox")}
	assert.Equal(t, platform.Drop, h.press("f17", 100))
	assert.Equal(t, platform.Drop, h.release("f17", 120))

	h.window.ctx = rules.Context{Title: rules.Some("Terminal")}
	assert.Equal(t, platform.Forward, h.press("f17", 200))
	assert.Equal(t, platform.Forward, h.release("f17", 220))

	assert.Equal(t, []rules.Action{rules.BrowserBack, rules.BrowserBack}, h.out.emitted)
	require.Len(t, h.records, 3)
	assert.Equal(t, 0, h.records[0].Rule)
	assert.Equal(t, 1, h.records[1].Rule)
	assert.Equal(t, -1, h.records[2].Rule)
	assert.Equal(t, Forwarded, h.records[2].Outcome)
	assert.Equal(t, rules.Some("Terminal"), h.records[2].Context.Title)
}

func TestHandle_ContextTimeoutFallsBackToEmpty(t *testing.T) {
	h := newHarness(t)
	h.window.ctx = rules.Context{Title: rules.Some("Vivaldi")}
	h.window.delay = 200 * time.Millisecond

	assert.Equal(t, platform.Forward, h.press("f17", 0))
	assert.Empty(t, h.out.emitted)
	require.Len(t, h.records, 1)
	assert.True(t, h.records[0].ContextTimedOut)
	assert.True(t, h.records[0].Context.Empty())
}

func TestHandle_ContextErrorFallsBackToEmpty(t *testing.T) {
	h := newHarness(t)
	h.window.ctx = rules.Context{Title: rules.Some("Vivaldi")}
	h.window.err = errors.New("access denied")

	assert.Equal(t, platform.Forward, h.press("f17", 0))
	require.Len(t, h.records, 1)
	assert.False(t, h.records[0].ContextTimedOut)
}

func TestHandle_OneWindowQueryInFlight(t *testing.T) {
	h := newHarness(t)
	h.window.ctx = rules.Context{Title: rules.Some("Inbox - Vivaldi")}
	h.window.gate = make(chan struct{})

	assert.Equal(t, platform.Forward, h.press("f17", 0))
	assert.Equal(t, platform.Forward, h.press("f17", 100))
	assert.Equal(t, int32(1), h.window.calls.Load(), "a hung query is waited for, not repeated")
	require.Len(t, h.records, 2)
	assert.True(t, h.records[0].ContextTimedOut)
	assert.True(t, h.records[1].ContextTimedOut)

	close(h.window.gate)
	h.pipe.Swap(mustParse(t, strings.Replace(testConfig, "context_timeout_ms = 20", "context_timeout_ms = 2000", 1)))

	// the stale result is discarded and a fresh query answers
	assert.Equal(t, platform.Drop, h.press("f17", 200))
	assert.Equal(t, int32(2), h.window.calls.Load())
	require.Len(t, h.records, 3)
	assert.False(t, h.records[2].ContextTimedOut)
	assert.Equal(t, []rules.Action{rules.BrowserBack}, h.out.emitted)
}

func TestHandle_CancelledContextIsNotATimeout(t *testing.T) {
	h := newHarness(t)
	h.window.ctx = rules.Context{Title: rules.Some("Inbox - Vivaldi")}
	h.window.gate = make(chan struct{})
	t.Cleanup(func() { close(h.window.gate) })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	v := h.pipe.Handle(ctx, platform.Event{Key: "f17", Transition: platform.Down, Time: h.base})
	assert.Equal(t, platform.Forward, v)
	require.Len(t, h.records, 1)
	assert.False(t, h.records[0].ContextTimedOut)
	assert.True(t, h.records[0].Context.Empty())
}

func TestHandle_ScrollWithoutHeldKeyPasses(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, platform.Forward, h.scroll(rules.ScrollUp, 0))
	h.press("f16", 10)
	h.release("f16", 30)
	assert.Equal(t, platform.Forward, h.scroll(rules.ScrollDown, 50))

	assert.Equal(t, []rules.Action{rules.MediaNext}, h.out.emitted)
	assert.Equal(t, []Outcome{Emitted}, h.outcomes())
}

func TestHandle_ScrollWhileHeldIsDiverted(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, platform.Drop, h.press("f16", 0))
	assert.Equal(t, platform.Drop, h.scroll(rules.ScrollUp, 50))
	assert.Equal(t, platform.Drop, h.scroll(rules.ScrollDown, 80))
	// auto-repeat past the hold would otherwise fire media_next again
	assert.Equal(t, platform.Drop, h.press("f16", 300))
	assert.Equal(t, platform.Drop, h.release("f16", 400))

	assert.Equal(t, platform.Forward, h.scroll(rules.ScrollUp, 500), "released keys no longer divert")
	assert.Equal(t, platform.Drop, h.press("f16", 600))

	assert.Equal(t, []rules.Action{rules.MediaNext, rules.VolumeUp, rules.VolumeDown, rules.MediaNext}, h.out.emitted)
	assert.Equal(t, []Outcome{Emitted, Diverted, Diverted, Suppressed, Emitted}, h.outcomes())
	assert.Equal(t, rules.KeyID("f16"), h.records[1].Key)
	assert.Equal(t, rules.VolumeUp, h.records[1].Action)
}

func TestHandle_ScrollNotDivertedByProfileWithoutDiverts(t *testing.T) {
	h := newHarness(t)
	h.pipe.Swap(mustParse(t, `
[debounce.plain]
initial_hold_ms = 110
repeat_window_ms = 2000

[bindings.f16]
action = "media_next"
debounce = "plain"

[bindings.f13]
action = "media_play_pause"
`))

	h.press("f13", 0)
	assert.Equal(t, platform.Forward, h.scroll(rules.ScrollUp, 10), "f13 has no debounce profile")
	h.press("f16", 20)
	assert.Equal(t, platform.Forward, h.scroll(rules.ScrollUp, 30))
	assert.Equal(t, []rules.Action{rules.MediaPlayPause, rules.MediaNext}, h.out.emitted)
}

func TestHandle_ForwardedPressKeepsReleaseAcrossRepeats(t *testing.T) {
	h := newHarness(t)
	h.pipe.Swap(mustParse(t, testConfig+`
[bindings.f18]
action = "passthrough"
debounce = "scroll"
`))

	assert.Equal(t, platform.Forward, h.press("f18", 0))
	assert.Equal(t, platform.Drop, h.press("f18", 30), "repeat inside the hold")
	assert.Equal(t, platform.Forward, h.release("f18", 60), "the forwarded press still needs its release")
}

func TestHandle_EmitFailureStillDrops(t *testing.T) {
	h := newHarness(t)
	h.out.err = platform.ErrUnsupported

	assert.Equal(t, platform.Drop, h.press("f13", 0))
	require.Len(t, h.records, 1)
	assert.ErrorIs(t, h.records[0].Err, platform.ErrUnsupported)
}

func TestHandle_SuppressedPressDropsRelease(t *testing.T) {
	h := newHarness(t)
	cfg := testConfig + `
[bindings.f18]
action = "passthrough"
debounce = "scroll"
`
	h.pipe.Swap(mustParse(t, cfg))

	assert.Equal(t, platform.Forward, h.press("f18", 0))
	assert.Equal(t, platform.Forward, h.release("f18", 10))
	assert.Equal(t, platform.Drop, h.press("f18", 20))
	assert.Equal(t, platform.Drop, h.release("f18", 30), "release of a suppressed press")
}

func TestSwap_KeepsStateForSameProfile(t *testing.T) {
	h := newHarness(t)

	h.press("f16", 0)
	h.pipe.Swap(mustParse(t, testConfig))
	assert.Equal(t, platform.Drop, h.press("f16", 20))
	assert.Empty(t, h.out.emitted[1:], "second press is still inside the hold")
}

func TestSwap_ResetsStateForRenamedProfile(t *testing.T) {
	h := newHarness(t)

	h.press("f16", 0)
	renamed := `
[debounce.wheel]
initial_hold_ms = 110
repeat_window_ms = 2000

[bindings.f16]
action = "media_next"
debounce = "wheel"
`
	h.pipe.Swap(mustParse(t, renamed))
	h.press("f16", 20)

	assert.Equal(t, []rules.Action{rules.MediaNext, rules.MediaNext}, h.out.emitted)
	assert.Equal(t, "wheel", h.pipe.engine.State("f16").Profile)
}

func TestSwap_ResetsStateForRemovedBinding(t *testing.T) {
	h := newHarness(t)

	h.press("f16", 0)
	h.pipe.Swap(mustParse(t, `[bindings.f13]
action = "media_play_pause"
`))
	assert.Equal(t, platform.Forward, h.press("f16", 20))
	assert.Equal(t, 0, h.pipe.engine.Len())
}

func TestSwap_IgnoresNil(t *testing.T) {
	h := newHarness(t)
	before := h.pipe.Snapshot()
	h.pipe.Swap(nil)
	assert.Same(t, before, h.pipe.Snapshot())
}

package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"markestedt/keyroute/config"
	"markestedt/keyroute/storage"
)

const testConfig = `
[debounce.scroll]
initial_hold_ms = 110
repeat_window_ms = 2000
diverts = { scroll_up = "volume_up" }

[bindings.f16]
action = "media_next"
debounce = "scroll"

[bindings.f17]
action = [
  { condition = { title = "*Vivaldi*", not_class = "Console*" }, action = "browser_back" },
]
`

func newTestServer(t *testing.T, withDB bool) (*Server, *httptest.Server) {
	t.Helper()
	snap, err := config.Parse("config.toml", []byte(testConfig))
	require.NoError(t, err)

	var db *storage.DB
	if withDB {
		db, err = storage.Open(t.TempDir())
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
	}

	s := NewServer(db, snap, 0)
	h, err := s.Handler()
	require.NoError(t, err)
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return s, ts
}

func getJSON(t *testing.T, url string, v any) *http.Response {
	t.Helper()
	res, err := http.Get(url)
	require.NoError(t, err)
	defer res.Body.Close()
	if v != nil && res.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(res.Body).Decode(v))
	}
	return res
}

func TestHandleConfig(t *testing.T) {
	_, ts := newTestServer(t, false)

	var view struct {
		Source   string `json:"source"`
		Debounce []struct {
			Name          string            `json:"name"`
			InitialHoldMs int64             `json:"initial_hold_ms"`
			Diverts       map[string]string `json:"diverts"`
		} `json:"debounce"`
		Bindings []struct {
			Key      string  `json:"key"`
			Action   *string `json:"action"`
			Debounce string  `json:"debounce"`
			Rules    []struct {
				Condition map[string]string `json:"condition"`
				Action    string            `json:"action"`
			} `json:"rules"`
		} `json:"bindings"`
	}
	res := getJSON(t, ts.URL+"/api/config", &view)
	require.Equal(t, http.StatusOK, res.StatusCode)

	assert.Equal(t, "config.toml", view.Source)
	require.Len(t, view.Debounce, 1)
	assert.Equal(t, int64(110), view.Debounce[0].InitialHoldMs)
	assert.Equal(t, map[string]string{"scroll_up": "volume_up"}, view.Debounce[0].Diverts)

	require.Len(t, view.Bindings, 2)
	assert.Equal(t, "f16", view.Bindings[0].Key)
	require.NotNil(t, view.Bindings[0].Action)
	assert.Equal(t, "media_next", *view.Bindings[0].Action)
	assert.Equal(t, "scroll", view.Bindings[0].Debounce)

	assert.Nil(t, view.Bindings[1].Action)
	require.Len(t, view.Bindings[1].Rules, 1)
	assert.Equal(t, map[string]string{"title": "*Vivaldi*", "not_class": "Console*"}, view.Bindings[1].Rules[0].Condition)
	assert.Equal(t, "browser_back", view.Bindings[1].Rules[0].Action)
}

func TestHandleStatus(t *testing.T) {
	s, ts := newTestServer(t, false)
	s.UpdateStatus(func(st *Status) {
		st.State = "running"
		st.Platform = "linux"
	})

	var st Status
	res := getJSON(t, ts.URL+"/api/status", &st)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "running", st.State)
	assert.Equal(t, "linux", st.Platform)
	assert.Equal(t, "config.toml", st.ConfigPath)
}

func TestHandleStatsAndHistory(t *testing.T) {
	_, ts := newTestServer(t, true)

	var stats map[string]json.RawMessage
	res := getJSON(t, ts.URL+"/api/stats?days=30", &stats)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.JSONEq(t, "30", string(stats["days"]))
	assert.JSONEq(t, "[]", string(stats["keys"]))

	var history struct {
		Activations []storage.Activation `json:"activations"`
		Total       int                  `json:"total"`
		Limit       int                  `json:"limit"`
	}
	res = getJSON(t, ts.URL+"/api/history?limit=10000", &history)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, 0, history.Total)
	assert.Equal(t, 500, history.Limit)
}

func TestHandleStats_Disabled(t *testing.T) {
	_, ts := newTestServer(t, false)

	res := getJSON(t, ts.URL+"/api/stats", nil)
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
	res = getJSON(t, ts.URL+"/api/history", nil)
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
}

func TestHandleReload(t *testing.T) {
	s, ts := newTestServer(t, false)

	res, err := http.Post(ts.URL+"/api/reload", "application/json", nil)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode, "no reload function yet")

	calls := 0
	s.OnReload(func() error {
		calls++
		return nil
	})
	res, err = http.Post(ts.URL+"/api/reload", "application/json", nil)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, 1, calls)

	_, parseErr := config.Parse("config.toml", []byte("[bindings.f13]\naction = \"nope\"\n"))
	s.OnReload(func() error { return parseErr })
	res, err = http.Post(ts.URL+"/api/reload", "application/json", nil)
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)

	var body struct {
		Issues []string `json:"issues"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	require.Len(t, body.Issues, 1)
	assert.Contains(t, body.Issues[0], "bindings.f13.action")
	assert.NotEmpty(t, s.GetStatus().LastError)

	s.OnReload(func() error { return errors.New("disk on fire") })
	res2, err := http.Post(ts.URL+"/api/reload", "application/json", nil)
	require.NoError(t, err)
	res2.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, res2.StatusCode)
}

func TestHandleReload_MethodNotAllowed(t *testing.T) {
	_, ts := newTestServer(t, false)
	res := getJSON(t, ts.URL+"/api/reload", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)
}

func TestStaticIndex(t *testing.T) {
	_, ts := newTestServer(t, false)
	res := getJSON(t, ts.URL+"/", nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, res.Header.Get("Content-Type"), "text/html")
}

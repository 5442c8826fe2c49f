package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/samber/lo"

	"markestedt/keyroute/config"
	"markestedt/keyroute/rules"
)

type ruleView struct {
	Condition map[string]string `json:"condition"`
	Action    rules.Action      `json:"action"`
}

type bindingView struct {
	Key      rules.KeyID   `json:"key"`
	Action   *rules.Action `json:"action,omitempty"`
	Rules    []ruleView    `json:"rules,omitempty"`
	Debounce string        `json:"debounce,omitempty"`
}

type profileView struct {
	Name           string                  `json:"name"`
	InitialHoldMs  int64                   `json:"initial_hold_ms"`
	RepeatWindowMs int64                   `json:"repeat_window_ms"`
	Diverts        map[string]rules.Action `json:"diverts,omitempty"`
}

type configView struct {
	Source   string              `json:"source"`
	Daemon   config.DaemonConfig `json:"daemon"`
	Profiles []profileView       `json:"debounce"`
	Bindings []bindingView       `json:"bindings"`
}

func newConfigView(snap *config.Snapshot) configView {
	profiles := lo.Map(snap.ProfileNames(), func(name string, _ int) profileView {
		p, _ := snap.Profile(name)
		return profileView{
			Name:           name,
			InitialHoldMs:  p.InitialHold.Milliseconds(),
			RepeatWindowMs: p.RepeatWindow.Milliseconds(),
			Diverts:        lo.MapKeys(p.Diverts, func(_ rules.Action, s rules.Scroll) string { return s.String() }),
		}
	})

	bindings := lo.Map(snap.Keys(), func(key rules.KeyID, _ int) bindingView {
		b, _ := snap.Binding(key)
		v := bindingView{Key: key, Debounce: b.Debounce}
		if a, single := b.Action(); single {
			v.Action = &a
			return v
		}
		v.Rules = lo.Map(b.Rules(), func(r rules.ConditionalAction, _ int) ruleView {
			return ruleView{Condition: conditionView(r.Condition), Action: r.Action}
		})
		return v
	})

	return configView{
		Source:   snap.Source(),
		Daemon:   snap.Daemon(),
		Profiles: profiles,
		Bindings: bindings,
	}
}

func conditionView(c rules.Condition) map[string]string {
	fields := map[string]rules.Optional{
		"title":      c.Title,
		"not_title":  c.NotTitle,
		"class":      c.Class,
		"not_class":  c.NotClass,
		"binary":     c.Binary,
		"not_binary": c.NotBinary,
	}
	present := lo.PickBy(fields, func(_ string, o rules.Optional) bool { return o.Present() })
	return lo.MapValues(present, func(o rules.Optional, _ string) string {
		v, _ := o.Get()
		return v
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// handleConfig returns the active bindings and profiles
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap := s.GetConfig()
	if snap == nil {
		http.Error(w, "No configuration loaded", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, newConfigView(snap))
}

// handleReload reloads the configuration file
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.RLock()
	reload := s.reload
	s.mu.RUnlock()
	if reload == nil {
		http.Error(w, "Reload not available", http.StatusServiceUnavailable)
		return
	}

	if err := reload(); err != nil {
		s.UpdateStatus(func(st *Status) { st.LastError = err.Error() })

		var verr *config.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"status": "invalid",
				"issues": lo.Map(verr.Issues, func(i config.Issue, _ int) string { return i.String() }),
			})
			return
		}
		slog.Error("Failed to reload config", "error", err)
		http.Error(w, "Failed to reload configuration", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// handleStats returns statistics for the specified time range
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.db == nil {
		http.Error(w, "Statistics are disabled", http.StatusServiceUnavailable)
		return
	}

	daysStr := r.URL.Query().Get("days")
	days := 7 // default to 7 days
	if daysStr != "" {
		if d, err := strconv.Atoi(daysStr); err == nil && d > 0 {
			days = d
		}
	}

	overall, err := s.db.GetOverallStats(days)
	if err != nil {
		slog.Error("Failed to get overall stats", "error", err)
		http.Error(w, "Failed to get statistics", http.StatusInternalServerError)
		return
	}

	daily, err := s.db.GetDailyStats(days)
	if err != nil {
		slog.Error("Failed to get daily stats", "error", err)
		http.Error(w, "Failed to get statistics", http.StatusInternalServerError)
		return
	}

	keys, err := s.db.GetKeyStats(days)
	if err != nil {
		slog.Error("Failed to get key stats", "error", err)
		http.Error(w, "Failed to get statistics", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"days":    days,
		"overall": overall,
		"daily":   daily,
		"keys":    keys,
	})
}

// handleHistory returns paginated activation history
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.db == nil {
		http.Error(w, "Statistics are disabled", http.StatusServiceUnavailable)
		return
	}

	limitStr := r.URL.Query().Get("limit")
	offsetStr := r.URL.Query().Get("offset")

	limit := 50 // default
	offset := 0

	if limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = min(l, 500)
		}
	}

	if offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	activations, err := s.db.GetActivations(limit, offset)
	if err != nil {
		slog.Error("Failed to get activations", "error", err)
		http.Error(w, "Failed to get history", http.StatusInternalServerError)
		return
	}

	total, err := s.db.GetActivationCount()
	if err != nil {
		slog.Error("Failed to get activation count", "error", err)
		http.Error(w, "Failed to get history", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"activations": activations,
		"total":       total,
		"limit":       limit,
		"offset":      offset,
	})
}

// handleStatus returns the current daemon status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, s.GetStatus())
}

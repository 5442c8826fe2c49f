package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"markestedt/keyroute/config"
	"markestedt/keyroute/dispatch"
	"markestedt/keyroute/platform"
	"markestedt/keyroute/rules"
	"markestedt/keyroute/storage"
	"markestedt/keyroute/web"
)

// Agent coordinates the input hook, dispatch pipeline, config reloads
// and the optional activation log and status server
type Agent struct {
	path     string
	daemon   config.DaemonConfig
	hook     platform.InputHook
	pipeline *dispatch.Pipeline
	watcher  *config.Watcher
	db       *storage.DB
	web      *web.Server
	records  chan dispatch.Record
}

// NewAgent creates a new agent instance from a loaded configuration
func NewAgent(snap *config.Snapshot) (*Agent, error) {
	daemon := snap.Daemon()

	a := &Agent{
		path:    snap.Source(),
		daemon:  daemon,
		hook:    platform.NewInputHook(platform.Options{Devices: daemon.Devices}),
		records: make(chan dispatch.Record, 256),
	}
	a.pipeline = dispatch.New(snap, platform.NewWindowInspector(), platform.NewOutput())
	a.pipeline.OnRecord(a.enqueue)
	a.watcher = config.NewWatcher(a.path, a.apply)

	if daemon.Stats {
		db, err := storage.Open(filepath.Dir(a.path))
		if err != nil {
			return nil, fmt.Errorf("failed to open activation log: %w", err)
		}
		a.db = db
	}

	if daemon.WebPort != 0 {
		a.web = web.NewServer(a.db, snap, daemon.WebPort)
		a.web.OnReload(a.Reload)
	}

	return a, nil
}

// StatusURL is the status page address, empty when the server is off
func (a *Agent) StatusURL() string {
	if a.web == nil {
		return ""
	}
	return a.web.URL()
}

// Reload re-reads the configuration file now
func (a *Agent) Reload() error {
	err := a.watcher.Reload()
	if err != nil && a.web != nil {
		a.web.UpdateStatus(func(st *web.Status) { st.LastError = err.Error() })
	}
	return err
}

// apply installs a freshly loaded snapshot
func (a *Agent) apply(snap *config.Snapshot) {
	a.pipeline.Swap(snap)
	if !verbose {
		logLevel.Set(snap.Level())
	}
	if a.web != nil {
		a.web.UpdateConfig(snap)
	}
}

// enqueue runs on the input goroutine and must never block it
func (a *Agent) enqueue(r dispatch.Record) {
	select {
	case a.records <- r:
	default:
		slog.Debug("Activation queue full, dropping record", "key", r.Key)
	}
}

// Run starts every component and blocks until ctx is done or one of
// them fails
func (a *Agent) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if !a.hook.CanSuppress() {
		slog.Warn("Input hook cannot suppress keys, original key events stay visible to applications", "platform", runtime.GOOS)
	}

	g.Go(func() error {
		return a.hook.Run(ctx, func(ev platform.Event) platform.Verdict {
			return a.pipeline.Handle(ctx, ev)
		})
	})

	if a.daemon.Watch {
		g.Go(func() error { return a.watcher.Run(ctx) })
	}

	if a.web != nil {
		a.web.UpdateStatus(func(st *web.Status) {
			st.State = "running"
			st.Platform = runtime.GOOS
			st.CanSuppress = a.hook.CanSuppress()
		})
		g.Go(func() error { return a.web.Run(ctx) })
	}

	g.Go(func() error {
		a.drainRecords(ctx)
		return nil
	})

	slog.Info("keyroute started",
		"config", a.path,
		"bindings", len(a.pipeline.Snapshot().Keys()),
		"stats", a.db != nil,
		"web", a.StatusURL())

	err := g.Wait()
	if a.db != nil {
		a.db.Close()
	}
	return err
}

// drainRecords persists and broadcasts dispatch records off the input
// goroutine, and prunes old history once a day
func (a *Agent) drainRecords(ctx context.Context) {
	a.prune()
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.prune()
		case r := <-a.records:
			act := toActivation(r)
			if a.db != nil {
				if err := a.db.SaveActivation(act); err != nil {
					slog.Warn("Failed to save activation", "error", err)
				}
			}
			if a.web != nil {
				a.web.BroadcastActivation(act)
			}
		}
	}
}

func (a *Agent) prune() {
	if a.db == nil || a.daemon.HistoryDays <= 0 {
		return
	}
	n, err := a.db.Prune(time.Duration(a.daemon.HistoryDays) * 24 * time.Hour)
	if err != nil {
		slog.Warn("Failed to prune activation log", "error", err)
		return
	}
	if n > 0 {
		slog.Info("Pruned activation log", "removed", n, "history_days", a.daemon.HistoryDays)
	}
}

func toActivation(r dispatch.Record) *storage.Activation {
	act := &storage.Activation{
		Timestamp:       r.Time,
		Key:             string(r.Key),
		Action:          r.Action.String(),
		RuleIndex:       r.Rule,
		Outcome:         string(r.Outcome),
		WindowTitle:     optionalPtr(r.Context.Title),
		WindowClass:     optionalPtr(r.Context.Class),
		WindowBinary:    optionalPtr(r.Context.Binary),
		ContextTimedOut: r.ContextTimedOut,
		LatencyUs:       r.Latency.Microseconds(),
	}
	if r.Outcome == dispatch.Suppressed {
		// resolution never ran
		act.Action = ""
	}
	if r.Err != nil {
		act.ErrorMessage = r.Err.Error()
	}
	return act
}

func optionalPtr(o rules.Optional) *string {
	v, ok := o.Get()
	if !ok {
		return nil
	}
	return &v
}

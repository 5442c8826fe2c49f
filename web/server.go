package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"markestedt/keyroute/config"
	"markestedt/keyroute/storage"
)

//go:embed static/*
var staticFiles embed.FS

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // served on localhost only
	},
}

// Status is what /api/status reports about the running daemon
type Status struct {
	State       string    `json:"status"`
	Platform    string    `json:"platform"`
	CanSuppress bool      `json:"can_suppress"`
	Session     string    `json:"session,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	ConfigPath  string    `json:"config_path"`
	LoadedAt    time.Time `json:"config_loaded_at"`
	LastError   string    `json:"last_error,omitempty"`
}

// Server represents the web server
type Server struct {
	db     *storage.DB
	config *config.Snapshot
	status Status
	reload func() error
	port   int
	hub    *Hub
	mu     sync.RWMutex
}

// NewServer creates a new web server. db may be nil when activation
// logging is disabled.
func NewServer(db *storage.DB, snap *config.Snapshot, port int) *Server {
	s := &Server{
		db:     db,
		config: snap,
		port:   port,
		hub:    NewHub(),
		status: Status{State: "starting", StartedAt: time.Now()},
	}
	if db != nil {
		s.status.Session = db.Session()
	}
	return s
}

// OnReload sets the function behind POST /api/reload
func (s *Server) OnReload(fn func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reload = fn
}

// Handler returns the HTTP handler with every route mounted
func (s *Server) Handler() (http.Handler, error) {
	mux := http.NewServeMux()

	// API endpoints
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/reload", s.handleReload)
	mux.HandleFunc("/ws", s.handleWebSocket)

	// Static files
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return nil, fmt.Errorf("failed to load static files: %w", err)
	}
	mux.Handle("/", http.FileServer(http.FS(staticFS)))

	return mux, nil
}

// Run serves on localhost until ctx is done
func (s *Server) Run(ctx context.Context) error {
	handler, err := s.Handler()
	if err != nil {
		return err
	}

	go s.hub.Run(ctx)

	srv := &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", s.port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("Starting web server", "port", s.port, "url", s.URL())

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve web UI: %w", err)
	}
	return nil
}

// URL is the address of the status page
func (s *Server) URL() string {
	return fmt.Sprintf("http://localhost:%d", s.port)
}

// GetConfig returns the current configuration (thread-safe)
func (s *Server) GetConfig() *config.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// UpdateConfig updates the configuration (thread-safe) and tells
// connected clients
func (s *Server) UpdateConfig(snap *config.Snapshot) {
	s.mu.Lock()
	s.config = snap
	s.status.LastError = ""
	s.mu.Unlock()

	s.hub.BroadcastMessage(Message{Type: MessageTypeConfig, Data: newConfigView(snap)})
}

// GetStatus returns a copy of the daemon status
func (s *Server) GetStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.status
	if s.config != nil {
		st.ConfigPath = s.config.Source()
		st.LoadedAt = s.config.LoadedAt()
	}
	return st
}

// UpdateStatus applies fn to the daemon status and broadcasts it
func (s *Server) UpdateStatus(fn func(*Status)) {
	s.mu.Lock()
	fn(&s.status)
	s.mu.Unlock()

	s.hub.BroadcastMessage(Message{Type: MessageTypeStatus, Data: s.GetStatus()})
}

// BroadcastActivation pushes a dispatched key press to connected clients
func (s *Server) BroadcastActivation(a *storage.Activation) {
	s.hub.BroadcastMessage(Message{Type: MessageTypeActivation, Data: a})
}

// handleWebSocket handles WebSocket connections
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade WebSocket connection", "error", err)
		return
	}

	client := &Client{
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, 256),
	}

	select {
	case client.hub.register <- client:
	case <-client.hub.done:
		conn.Close()
		return
	}

	// Start client goroutines
	go client.writePump()
	go client.readPump()
}

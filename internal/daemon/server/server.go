// Package server provides the HTTP server for the peersync daemon.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/grovetools/peersync/errors"
	"github.com/grovetools/peersync/internal/daemon/engine"
	"github.com/grovetools/peersync/internal/daemon/store"
	"github.com/grovetools/peersync/pkg/daemon"
	"github.com/grovetools/peersync/pkg/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// maxSignalDelay bounds the delay a client may request for a signal.
const maxSignalDelay = time.Minute

// Server manages the daemon's HTTP server over a Unix socket.
type Server struct {
	logger *logrus.Entry
	server *http.Server
	engine *engine.Engine
}

// New creates a new Server instance.
func New(eng *engine.Engine, logger *logrus.Entry) *Server {
	return &Server{
		engine: eng,
		logger: logger,
	}
}

// Handler returns the API routes wrapped for h2c.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/api/state", s.handleGetState)
	mux.HandleFunc("/api/notifications", s.handleNotifications)
	mux.HandleFunc("/api/signal", s.handleSignal)
	mux.HandleFunc("/api/halt", s.handleHalt)
	mux.HandleFunc("/api/retry/reset", s.handleRetryReset)
	mux.HandleFunc("/api/stream", s.handleStreamState)

	return h2c.NewHandler(mux, &http2.Server{})
}

// ListenAndServe starts the daemon on the given unix socket path.
// It blocks until the server stops or fails.
func (s *Server) ListenAndServe(socketPath string) error {
	// Cleanup stale socket
	if _, err := os.Stat(socketPath); err == nil {
		if err := os.Remove(socketPath); err != nil {
			return fmt.Errorf("failed to remove stale socket: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(socketPath), 0755); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on socket: %w", err)
	}

	// Set restrictive permissions on socket
	if err := os.Chmod(socketPath, 0600); err != nil {
		_ = listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.server = &http.Server{Handler: s.Handler()}

	s.logger.WithField("socket", socketPath).Info("Daemon listening")
	return s.server.Serve(listener)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError encodes err as a PeerError so clients can recover its code.
func writeError(w http.ResponseWriter, status int, err *errors.PeerError) {
	writeJSON(w, status, err)
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New(errors.ErrCodeInvalidInput, "method not allowed"))
}

// handleGetState returns the complete daemon state as JSON.
func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Store().Get())
}

// handleNotifications lists (GET) or dismisses (DELETE) ledger entries.
func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		entries := s.engine.Ledger().Entries()
		if entries == nil {
			entries = []models.NotificationEntry{}
		}
		writeJSON(w, http.StatusOK, entries)

	case http.MethodDelete:
		category, err := models.ParseCategory(r.URL.Query().Get("category"))
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid category"))
			return
		}
		id := r.URL.Query().Get("id")
		if id == "" {
			writeError(w, http.StatusBadRequest, errors.New(errors.ErrCodeInvalidInput, "id is required"))
			return
		}
		removed := s.engine.Ledger().Remove(category, id)
		writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})

	default:
		methodNotAllowed(w)
	}
}

// handleSignal feeds a raw change signal into the collector.
func (s *Server) handleSignal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req daemon.SignalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid request body"))
		return
	}
	kind, err := models.ParseChangeKind(req.Kind)
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid kind"))
		return
	}
	if req.DelayMs < 0 || int64(req.DelayMs) > maxSignalDelay.Milliseconds() {
		writeError(w, http.StatusBadRequest, errors.New(errors.ErrCodeInvalidInput, "delay_ms out of range").
			WithDetail("max_ms", maxSignalDelay.Milliseconds()))
		return
	}
	delay := time.Duration(req.DelayMs) * time.Millisecond

	if delay > 0 {
		s.engine.Collector().NotifyAfter(kind, req.Handle, delay)
	} else {
		s.engine.Notify(kind, req.Handle)
	}
	s.logger.WithFields(logrus.Fields{
		"kind":   kind,
		"handle": req.Handle,
	}).Debug("Signal accepted")
	writeJSON(w, http.StatusAccepted, map[string]int{"pending": s.engine.Collector().Len()})
}

// handleHalt reports (GET) or sets (POST) the builder halt flag.
func (s *Server) handleHalt(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req daemon.HaltRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid request body"))
			return
		}
		s.engine.Builder().SetHalt(req.Halted)
		writeJSON(w, http.StatusOK, daemon.HaltRequest{Halted: s.engine.Builder().Halted()})

	case http.MethodGet:
		writeJSON(w, http.StatusOK, daemon.HaltRequest{Halted: s.engine.Builder().Halted()})

	default:
		methodNotAllowed(w)
	}
}

// handleRetryReset announces a retry reset on the bus.
func (s *Server) handleRetryReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	s.engine.ResetRetry("api")
	w.WriteHeader(http.StatusAccepted)
}

// handleStreamState provides Server-Sent Events (SSE) for real-time state updates.
func (s *Server) handleStreamState(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := s.engine.Store().Subscribe()
	defer s.engine.Store().Unsubscribe(ch)

	// Send initial ping to confirm connection
	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	s.logger.Debug("SSE client connected")

	// Send current state immediately so client has data right away
	state := toAPIState(s.engine.Store().Get())
	if data, err := json.Marshal(&daemon.StateUpdate{UpdateType: "initial", State: &state}); err == nil {
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE client disconnected")
			return
		case update, ok := <-ch:
			if !ok {
				return
			}
			apiUpdate := convertToAPIUpdate(update)
			if apiUpdate == nil {
				continue
			}
			data, err := json.Marshal(apiUpdate)
			if err != nil {
				s.logger.WithError(err).Error("Failed to marshal update")
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

func toAPIBuildError(be *store.BuildError) *daemon.BuildError {
	if be == nil {
		return nil
	}
	return &daemon.BuildError{PassID: be.PassID, Kinds: be.Kinds, Reason: be.Reason, At: be.At}
}

func toAPIState(st store.State) daemon.State {
	return daemon.State{
		Connection:     st.Connection,
		Endpoint:       st.Endpoint,
		Session:        st.Session,
		Halted:         st.Halted,
		Snapshot:       st.Snapshot,
		LastBuildError: toAPIBuildError(st.LastBuildError),
		Notifications:  st.Notifications,
		StartedAt:      st.StartedAt,
		UpdatedAt:      st.UpdatedAt,
	}
}

// convertToAPIUpdate converts internal store.Update to the public API format.
func convertToAPIUpdate(u store.Update) *daemon.StateUpdate {
	out := &daemon.StateUpdate{UpdateType: string(u.Type), Source: u.Source}
	switch u.Type {
	case store.UpdateSnapshot:
		snap, ok := u.Payload.(*models.Snapshot)
		if !ok {
			return nil
		}
		out.Snapshot = snap
	case store.UpdateBuildFailed:
		be, ok := u.Payload.(*store.BuildError)
		if !ok {
			return nil
		}
		out.BuildError = toAPIBuildError(be)
	case store.UpdateConnection:
		cs, ok := u.Payload.(models.ConnectionState)
		if !ok {
			return nil
		}
		out.Connection = &cs
	case store.UpdateSession:
		session, _ := u.Payload.(*models.SessionInfo)
		out.Session = session
	case store.UpdateHalt:
		halted, ok := u.Payload.(bool)
		if !ok {
			return nil
		}
		out.Halted = &halted
	case store.UpdateNotifications:
		count, ok := u.Payload.(int)
		if !ok {
			return nil
		}
		out.Notifications = &count
	case store.UpdateToast:
		toast, ok := u.Payload.(models.Toast)
		if !ok {
			return nil
		}
		out.Toast = &toast
	case store.UpdateEndpoint:
		out.Endpoint, _ = u.Payload.(string)
	case store.UpdateConfigReload:
		out.ConfigFile, _ = u.Payload.(string)
	default:
		return nil
	}
	return out
}

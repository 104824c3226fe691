// Package server exposes the local HTTP API the presentation layer talks to:
// current creature state, a server-sent event stream of reactions, and the
// pet endpoint.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/hackerthon-gemini-agc/boni/pkg/models"
)

// StateSnapshot is the wire shape of GET /api/v1/state. Message carries the
// last reaction's text, or the mood's stock line before any reaction exists.
type StateSnapshot struct {
	Mood         models.Mood           `json:"mood"`
	Emoji        string                `json:"emoji"`
	Since        time.Time             `json:"since"`
	Message      string                `json:"message"`
	LastReaction *models.Reaction      `json:"last_reaction,omitempty"`
	Recent       []RecentEntry         `json:"recent"`
	MoodCounts   map[models.Mood]int64 `json:"mood_counts,omitempty"`
}

// RecentEntry is one line of recent reaction history.
type RecentEntry struct {
	Timestamp string `json:"timestamp"`
	Mood      string `json:"mood"`
	Message   string `json:"message"`
}

// StateSource provides the current creature state.
type StateSource interface {
	Snapshot(ctx context.Context) (StateSnapshot, error)
}

// Petter generates a reaction to the user clicking the creature.
type Petter interface {
	Pet(ctx context.Context) (*models.Reaction, error)
}

// Server is the local HTTP API.
type Server struct {
	state       StateSource
	petter      Petter
	broadcaster *Broadcaster
	httpServer  *http.Server
}

// New builds a Server listening on addr.
func New(addr string, state StateSource, petter Petter, broadcaster *Broadcaster) *Server {
	s := &Server{
		state:       state,
		petter:      petter,
		broadcaster: broadcaster,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/state", s.handleState)
		r.Get("/stream", s.handleStream)
		r.Post("/pet", s.handlePet)
	})

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler, for tests.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.httpServer.Addr).Msg("API server listening")
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown api server: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api server: %w", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.state.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "state unavailable")
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handlePet(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	reaction, err := s.petter.Pet(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Pet reaction failed")
		writeError(w, http.StatusBadGateway, "no reaction this time")
		return
	}
	writeJSON(w, http.StatusOK, reaction)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	client, err := s.broadcaster.addClient(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Initial state so a fresh client renders immediately.
	if snapshot, err := s.state.Snapshot(r.Context()); err == nil {
		if data, err := json.Marshal(snapshot); err == nil {
			fmt.Fprintf(w, "event: state\ndata: %s\n\n", data)
			client.flusher.Flush()
		}
	}

	select {
	case <-r.Context().Done():
		s.broadcaster.removeClient(client)
	case <-client.done:
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

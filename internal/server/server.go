// Package server publishes composition snapshots for playback clients and
// stages lines submitted by live-coding frontends.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/rs/cors"

	"github.com/cbegin/bayz-go/internal/rhythm"
	"github.com/cbegin/bayz-go/internal/score"
)

const (
	DefaultAddr       = ":42700"
	DefaultAutoCommit = 500 * time.Millisecond
	maxBody           = 1 << 20
)

type Option func(*Server)

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithAutoCommit sets the quiet period after the last staged line before the
// band is committed. Zero disables auto-commit.
func WithAutoCommit(d time.Duration) Option {
	return func(s *Server) {
		s.autoCommit = d
	}
}

func WithCycleLength(seconds float64) Option {
	return func(s *Server) {
		s.band = score.NewBand(seconds)
	}
}

type Server struct {
	logger     *slog.Logger
	band       *score.Band
	autoCommit time.Duration
	debounced  func(func())

	mu        sync.RWMutex
	published *score.Snapshot

	handler http.Handler
}

func New(opts ...Option) *Server {
	s := &Server{
		logger:     slog.Default(),
		band:       score.NewBand(score.DefaultCycleLength),
		autoCommit: DefaultAutoCommit,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "server")
	if s.autoCommit > 0 {
		s.debounced = debounce.New(s.autoCommit)
	}

	router := mux.NewRouter().StrictSlash(true)
	router.HandleFunc("/", s.handleCurrent).Methods(http.MethodGet, http.MethodHead)
	router.HandleFunc("/composition", s.handlePublish).Methods(http.MethodPut)
	router.HandleFunc("/lines", s.handleAddLine).Methods(http.MethodPost)
	router.HandleFunc("/lines", s.handleClearLines).Methods(http.MethodDelete)
	router.HandleFunc("/commit", s.handleCommit).Methods(http.MethodPost)
	router.HandleFunc("/cycle", s.handleCycle).Methods(http.MethodPut)

	s.handler = cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(router)
	return s
}

func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) Band() *score.Band { return s.band }

// Current returns the published snapshot, or an undeployed one before the
// first commit.
func (s *Server) Current() score.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.published == nil {
		return score.Snapshot{Deploy: false, CycleLength: s.band.CycleLength(), Sound: []score.Tag{}}
	}
	return s.published.Clone()
}

// Publish validates snap and makes it the current snapshot under a fresh
// revision.
func (s *Server) Publish(snap score.Snapshot) (score.Snapshot, error) {
	snap = snap.Clone()
	snap.Deploy = true
	if err := score.Validate(snap); err != nil {
		return score.Snapshot{}, err
	}
	snap.Revision = uuid.NewString()
	s.mu.Lock()
	s.published = &snap
	s.mu.Unlock()
	s.logger.Info("published", "revision", snap.Revision, "lines", len(snap.Sound), "cycle", snap.CycleLength)
	return snap.Clone(), nil
}

// Commit publishes the staged band.
func (s *Server) Commit() score.Snapshot {
	snap := s.band.Snapshot()
	s.mu.Lock()
	s.published = &snap
	s.mu.Unlock()
	s.logger.Info("committed", "revision", snap.Revision, "lines", len(snap.Sound), "cycle", snap.CycleLength)
	return snap.Clone()
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return errors.Wrap(err, "listen")
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type lineRequest struct {
	Name   string    `json:"name"`
	Notes  []int     `json:"notes"`
	Rhythm []float64 `json:"rhythm"`
}

type cycleRequest struct {
	CycleLength float64 `json:"cycleLength"`
}

type stagedResponse struct {
	Lines       int     `json:"lines"`
	CycleLength float64 `json:"cycleLength"`
}

func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Current())
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	var snap score.Snapshot
	if !s.decode(w, r, &snap) {
		return
	}
	published, err := s.Publish(snap)
	if err != nil {
		s.reject(w, err)
		return
	}
	writeJSON(w, http.StatusOK, published)
}

func (s *Server) handleAddLine(w http.ResponseWriter, r *http.Request) {
	var req lineRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.band.AddLine(req.Notes, req.Rhythm, req.Name); err != nil {
		s.reject(w, err)
		return
	}
	if s.debounced != nil {
		s.debounced(func() { s.Commit() })
	}
	writeJSON(w, http.StatusAccepted, s.staged())
}

func (s *Server) handleClearLines(w http.ResponseWriter, r *http.Request) {
	s.band.Clear()
	writeJSON(w, http.StatusOK, s.staged())
}

func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Commit())
}

func (s *Server) handleCycle(w http.ResponseWriter, r *http.Request) {
	var req cycleRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.band.SetCycleLength(req.CycleLength); err != nil {
		s.reject(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.staged())
}

func (s *Server) staged() stagedResponse {
	return stagedResponse{Lines: len(s.band.Lines()), CycleLength: s.band.CycleLength()}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(v); err != nil {
		s.logger.Debug("bad request body", "path", r.URL.Path, "err", err)
		http.Error(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func (s *Server) reject(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, rhythm.ErrInvalidInput) {
		status = http.StatusBadRequest
	}
	s.logger.Warn("rejected", "err", err)
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

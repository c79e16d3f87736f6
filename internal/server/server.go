// Package server exposes coloring sessions over HTTP.
//
//	POST   /sessions                 upload line art, returns {"id","width","height"}
//	GET    /sessions/{id}            session state
//	GET    /sessions/{id}/image.png  current bitmap
//	POST   /sessions/{id}/fill       {"x","y","color"} -> {"changed","seed","reason"}
//	POST   /sessions/{id}/undo       -> {"applied"}, 409 when there is nothing to undo
//	POST   /sessions/{id}/redo       -> {"applied"}, 409 when there is nothing to redo
//	POST   /sessions/{id}/reset      restore the uploaded artwork
//	DELETE /sessions/{id}            drop the session
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/maax3v3/colorfill"
)

// Config holds server settings.
type Config struct {
	Session        colorfill.Options
	MaxUploadBytes int64
	RequestTimeout time.Duration
}

// DefaultConfig returns sensible default server configuration.
func DefaultConfig() Config {
	return Config{
		Session:        colorfill.DefaultOptions(),
		MaxUploadBytes: 16 << 20,
		RequestTimeout: 30 * time.Second,
	}
}

// Server routes requests to in-memory sessions.
type Server struct {
	cfg    Config
	router chi.Router

	mu       sync.RWMutex
	sessions map[uuid.UUID]*colorfill.Session
}

// New builds a Server with its routes.
func New(cfg Config) *Server {
	s := &Server{
		cfg:      cfg,
		sessions: make(map[uuid.UUID]*colorfill.Session),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}

	r.Post("/sessions", s.handleCreate)
	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Get("/", s.handleState)
		r.Delete("/", s.handleDelete)
		r.Get("/image.png", s.handleImage)
		r.Post("/fill", s.handleFill)
		r.Post("/undo", s.handleUndo)
		r.Post("/redo", s.handleRedo)
		r.Post("/reset", s.handleReset)
	})
	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("colorfill listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Close()
		return err
	case <-ctx.Done():
	}

	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	return err
}

// Close releases every session.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		sess.Close()
		delete(s.sessions, id)
	}
}

// Len returns the number of live sessions.
func (s *Server) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

type createResponse struct {
	ID     string `json:"id"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type stateResponse struct {
	ID         string `json:"id"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Generation uint64 `json:"generation"`
	Undo       int    `json:"undo"`
	Redo       int    `json:"redo"`
}

type fillRequest struct {
	X     *int   `json:"x"`
	Y     *int   `json:"y"`
	Color string `json:"color"`
}

type point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type fillResponse struct {
	Changed int    `json:"changed"`
	Seed    *point `json:"seed,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Stale   bool   `json:"stale,omitempty"`
}

type stepResponse struct {
	Applied bool `json:"applied"`
	Stale   bool `json:"stale,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	img, err := colorfill.DecodeImage(body)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, err)
			return
		}
		writeError(w, http.StatusBadRequest, err)
		return
	}

	sess := colorfill.NewSession(s.cfg.Session)
	if err := sess.Load(r.Context(), img); err != nil {
		sess.Close()
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	id := uuid.New()
	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	width, height := sess.Size()
	writeJSON(w, http.StatusCreated, createResponse{ID: id.String(), Width: width, Height: height})
}

// session resolves the {id} URL parameter, writing an error response and
// returning nil if it does not name a live session.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (uuid.UUID, *colorfill.Session) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown session"))
		return uuid.Nil, nil
	}
	s.mu.RLock()
	sess := s.sessions[id]
	s.mu.RUnlock()
	if sess == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown session %s", id))
		return uuid.Nil, nil
	}
	return id, sess
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	id, sess := s.session(w, r)
	if sess == nil {
		return
	}
	width, height := sess.Size()
	writeJSON(w, http.StatusOK, stateResponse{
		ID:         id.String(),
		Width:      width,
		Height:     height,
		Generation: sess.Generation(),
		Undo:       sess.UndoDepth(),
		Redo:       sess.RedoDepth(),
	})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, sess := s.session(w, r)
	if sess == nil {
		return
	}
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	sess.Close()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	_, sess := s.session(w, r)
	if sess == nil {
		return
	}
	img := sess.Bitmap()
	if img == nil {
		// Reset discards the cached bitmap; export a fresh one.
		snap, err := sess.Snapshot(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		img = snap
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := colorfill.EncodePNG(w, img); err != nil {
		log.Printf("writing image: %v", err)
	}
}

func (s *Server) handleFill(w http.ResponseWriter, r *http.Request) {
	_, sess := s.session(w, r)
	if sess == nil {
		return
	}

	var req fillRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.X == nil || req.Y == nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("x and y are required"))
		return
	}
	c, err := colorfill.ParseHexColor(req.Color)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	out, err := sess.Fill(r.Context(), *req.X, *req.Y, c)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	resp := fillResponse{Changed: out.Changed, Stale: out.Stale}
	if out.Changed > 0 {
		resp.Seed = &point{X: out.Seed.X, Y: out.Seed.Y}
	}
	if out.Reason != nil {
		resp.Reason = reasonCode(out.Reason)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	s.handleStep(w, r, (*colorfill.Session).Undo)
}

func (s *Server) handleRedo(w http.ResponseWriter, r *http.Request) {
	s.handleStep(w, r, (*colorfill.Session).Redo)
}

func (s *Server) handleStep(
	w http.ResponseWriter,
	r *http.Request,
	step func(*colorfill.Session, context.Context) (colorfill.StepOutcome, error),
) {
	_, sess := s.session(w, r)
	if sess == nil {
		return
	}
	out, err := step(sess, r.Context())
	if errors.Is(err, colorfill.ErrEmptyHistory) {
		writeError(w, http.StatusConflict, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, stepResponse{Applied: out.Applied, Stale: out.Stale})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	_, sess := s.session(w, r)
	if sess == nil {
		return
	}
	if err := sess.Reset(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// reasonCode maps a zero-change reason to a stable wire value.
func reasonCode(err error) string {
	switch {
	case errors.Is(err, colorfill.ErrOutOfBounds):
		return "out_of_bounds"
	case errors.Is(err, colorfill.ErrNoEligibleSeed):
		return "no_eligible_seed"
	case errors.Is(err, colorfill.ErrNoOpTarget):
		return "no_op_target"
	case errors.Is(err, colorfill.ErrNotLoaded):
		return "not_loaded"
	default:
		return err.Error()
	}
}

func decodeJSON(r io.Reader, v any) error {
	dec := json.NewDecoder(io.LimitReader(r, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("writing response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

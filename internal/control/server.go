package control

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/arstage/arstage/internal/host"
	"github.com/arstage/arstage/internal/world"
	"github.com/arstage/arstage/internal/xr"
)

// Status holds the latest published snapshot. Written by the tick loop,
// read by HTTP handlers.
type Status struct {
	snap atomic.Pointer[world.Snapshot]
}

func (s *Status) Publish(snap *world.Snapshot) { s.snap.Store(snap) }

// Latest returns the last published snapshot, or nil before the first tick.
func (s *Status) Latest() *world.Snapshot { return s.snap.Load() }

// Server is the HTTP control surface. Handlers only enqueue input; the tick
// loop applies it.
type Server struct {
	queue        *Queue
	status       *Status
	gatherer     prometheus.Gatherer
	log          *zap.Logger
	ReplyTimeout time.Duration
}

func NewServer(queue *Queue, status *Status, gatherer prometheus.Gatherer, log *zap.Logger) *Server {
	return &Server{
		queue:        queue,
		status:       status,
		gatherer:     gatherer,
		log:          log,
		ReplyTimeout: 5 * time.Second,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Post("/session/start", s.startSession)
	r.Post("/session/end", s.endSession)
	r.Post("/select", s.selectTrigger)
	r.Post("/commands/{action}", s.command)
	r.Post("/viewport", s.viewport)
	r.Get("/status", s.getStatus)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	return r
}

type startRequest struct {
	Required []string `json:"required"`
	Optional []string `json:"optional"`
}

type viewportRequest struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type result struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request) {
	var body startRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, result{Error: "invalid request body"})
			return
		}
	}
	in := Input{
		Kind:     InputStartSession,
		Required: host.Features(body.Required...),
		Optional: host.Features(body.Optional...),
	}
	s.await(w, r, in)
}

func (s *Server) endSession(w http.ResponseWriter, r *http.Request) {
	s.await(w, r, Input{Kind: InputEndSession})
}

func (s *Server) selectTrigger(w http.ResponseWriter, _ *http.Request) {
	s.enqueue(w, Input{Kind: InputSelect})
}

func (s *Server) command(w http.ResponseWriter, r *http.Request) {
	action := chi.URLParam(r, "action")
	if action == "" {
		writeJSON(w, http.StatusBadRequest, result{Error: "empty command"})
		return
	}
	s.enqueue(w, Input{Kind: InputCommand, Name: action})
}

func (s *Server) viewport(w http.ResponseWriter, r *http.Request) {
	var body viewportRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, result{Error: "invalid request body"})
		return
	}
	if body.Width <= 0 || body.Height <= 0 {
		writeJSON(w, http.StatusBadRequest, result{Error: "width and height must be positive"})
		return
	}
	s.enqueue(w, Input{Kind: InputResize, Width: body.Width, Height: body.Height})
}

func (s *Server) getStatus(w http.ResponseWriter, _ *http.Request) {
	snap := s.status.Latest()
	if snap == nil {
		writeJSON(w, http.StatusServiceUnavailable, result{Error: "no frame yet"})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) enqueue(w http.ResponseWriter, in Input) {
	if !s.queue.Push(in) {
		writeJSON(w, http.StatusServiceUnavailable, result{Error: "input queue full"})
		return
	}
	writeJSON(w, http.StatusAccepted, result{OK: true})
}

// await enqueues in and waits for the tick loop's reply.
func (s *Server) await(w http.ResponseWriter, r *http.Request, in Input) {
	in.Reply = make(chan error, 1)
	if !s.queue.Push(in) {
		writeJSON(w, http.StatusServiceUnavailable, result{Error: "input queue full"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.ReplyTimeout)
	defer cancel()
	select {
	case err := <-in.Reply:
		if err != nil {
			writeJSON(w, statusFor(err), result{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, result{OK: true})
	case <-ctx.Done():
		writeJSON(w, http.StatusGatewayTimeout, result{Error: "tick loop did not reply"})
	}
}

func statusFor(err error) int {
	var unsupported *host.FeatureUnsupportedError
	switch {
	case errors.As(err, &unsupported):
		return http.StatusUnprocessableEntity
	case errors.Is(err, xr.ErrSessionActive):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// ListenAndServe serves h on addr until ctx is canceled, then shuts down
// gracefully.
func ListenAndServe(ctx context.Context, addr string, h http.Handler, log *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("control server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

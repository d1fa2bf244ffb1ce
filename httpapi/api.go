// Package httpapi exposes the published telemetry tree over HTTP. Every URL
// path below the reserved routes is interpreted as a query into the current
// snapshot, so the API surface grows with whatever the producer publishes.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/theonuverse/pasmonux/history"
	"github.com/theonuverse/pasmonux/snapshot"
	"github.com/theonuverse/pasmonux/statree"
)

// Historian is the slice of the history recorder the API needs. Nil means
// history is disabled and /history answers 404.
type Historian interface {
	Recent(ctx context.Context, limit int) ([]history.Sample, error)
}

// Server serves the query API over a snapshot store.
type Server struct {
	store      *snapshot.Store
	hist       Historian
	logger     *slog.Logger
	version    string
	instanceID string
}

// NewServer builds a Server. hist may be nil when history is disabled.
func NewServer(store *snapshot.Store, hist Historian, logger *slog.Logger, version string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		store:      store,
		hist:       hist,
		logger:     logger,
		version:    version,
		instanceID: uuid.NewString(),
	}
}

// Routes returns the chi router for the whole API.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		snap := s.store.Current()
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "ok",
			"version": snap.Version,
		})
	})

	r.Get("/", s.handleIndex)
	r.Get("/stats", s.handleStats)
	r.Get("/history", s.handleHistory)
	r.Get("/*", s.handleQuery)

	return r
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	snap := s.store.Current()
	endpoints := append([]string{"/stats"}, statree.Endpoints(snap.Tree)...)
	if s.hist != nil {
		endpoints = append(endpoints, "/history")
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":      "pasmonux",
		"version":   s.version,
		"instance":  s.instanceID,
		"endpoints": endpoints,
		"usage": map[string]string{
			"multi_field": "append comma-separated fields to a path, e.g. /stats/cpu_temp,gpu_temp",
			"wildcard":    "use * or all to fan out over array elements, e.g. /stats/cores/*/usage",
			"self":        "terminal self returns the reached node unchanged",
		},
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.waitSnapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, snap.Tree)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	path := statree.ParsePath(chi.URLParam(r, "*"))
	snap, ok := s.waitSnapshot(w, r)
	if !ok {
		return
	}
	result, err := statree.Resolve(snap.Tree, path)
	if err != nil {
		s.writeResolveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.hist == nil {
		writeError(w, http.StatusNotFound, errors.New("history is disabled"))
		return
	}
	limit := queryInt(r, "limit", 50)
	samples, err := s.hist.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("history query", "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("history query failed"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(samples),
		"samples": samples,
	})
}

// waitSnapshot answers the current snapshot, optionally blocking until the
// store reaches ?min_version=N (bounded by a short timeout). Returns false
// if it already wrote an error response.
func (s *Server) waitSnapshot(w http.ResponseWriter, r *http.Request) (*snapshot.Snapshot, bool) {
	min := queryInt(r, "min_version", 0)
	if min > 0 {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.store.WaitForVersion(ctx, uint64(min)); err != nil {
			writeError(w, http.StatusRequestTimeout, errors.New("requested version not reached"))
			return nil, false
		}
	}
	return s.store.Current(), true
}

func (s *Server) writeResolveError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, statree.ErrTooDeep):
		code = http.StatusBadRequest
	case errors.Is(err, statree.ErrNotFound), errors.Is(err, statree.ErrNotTraversable):
		code = http.StatusNotFound
	}
	body := map[string]string{
		"error": err.Error(),
		"hint":  "GET / for available endpoints",
	}
	var rerr *statree.ResolveError
	if errors.As(err, &rerr) {
		body["path"] = rerr.Path
	}
	writeJSON(w, code, body)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

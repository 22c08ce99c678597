// Package api serves terrain generation over HTTP.
// GET endpoints are public and read-only.
// POST /api/v1/generate requires a bearer token and is rate limited.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/landscaper/internal/config"
	"github.com/talgya/landscaper/internal/journal"
	"github.com/talgya/landscaper/internal/mesh"
	"github.com/talgya/landscaper/internal/terrain"
)

// Server generates terrains on request. Generations are serialized; the
// most recent scene is kept in memory as OBJ.
type Server struct {
	Config   config.Config
	DB       *journal.DB // Optional
	Addr     string
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.

	// Limiter throttles generate requests per client. Nil disables it.
	Limiter *RateLimiter

	started   time.Time
	generated atomic.Int64

	genMu sync.Mutex

	sceneMu sync.RWMutex
	scene   *scene
}

type scene struct {
	result GenerateResult
	obj    []byte
}

// GenerateRequest is the body of POST /api/v1/generate. Omitted options
// keep their defaults.
type GenerateRequest struct {
	Seed    int64                 `json:"seed"`
	Options terrain.RandomOptions `json:"options"`
}

// GenerateResult summarizes one generation.
type GenerateResult struct {
	RunID     uuid.UUID `json:"run_id"`
	Seed      int64     `json:"seed"`
	Depth     int       `json:"depth"`
	Vertices  int       `json:"vertices"`
	Faces     int       `json:"faces"`
	Trees     int       `json:"trees"`
	Mountains int       `json:"mountains"`
	Caves     int       `json:"caves"`
	Water     bool      `json:"water"`
	SeaLevel  float64   `json:"sea_level"`
	Solid     bool      `json:"solid"`
	Warnings  []string  `json:"warnings,omitempty"`
	TookMS    int64     `json:"took_ms"`
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	if s.started.IsZero() {
		s.started = time.Now()
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/runs", s.handleRuns)
	mux.HandleFunc("/api/v1/scene", s.handleScene)
	mux.HandleFunc("/api/v1/scene.obj", s.handleSceneOBJ)

	generate := s.adminOnly(s.handleGenerate)
	if s.Limiter != nil {
		generate = RateLimitMiddleware(s.Limiter, generate)
	}
	mux.HandleFunc("/api/v1/generate", generate)
	return corsMiddleware(mux)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", s.Addr, "admin_auth", s.AdminKey != "", "journal", s.DB != nil)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS to a comma-separated list of extra origins.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly requires bearer token auth on POST requests.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no admin key set)", http.StatusForbidden)
				return
			}
			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"name":      "landscaper",
		"uptime":    time.Since(s.started).Round(time.Second).String(),
		"generated": s.generated.Load(),
		"journal":   s.DB != nil,
	}
	s.sceneMu.RLock()
	if s.scene != nil {
		status["last_run"] = s.scene.result.RunID
	}
	s.sceneMu.RUnlock()
	writeJSON(w, status)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "journal not available", http.StatusServiceUnavailable)
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			http.Error(w, "limit must be 1-500", http.StatusBadRequest)
			return
		}
		limit = n
	}
	runs, err := s.DB.Recent(r.Context(), limit)
	if err != nil {
		slog.Error("journal read failed", "error", err)
		http.Error(w, "journal read failed", http.StatusInternalServerError)
		return
	}

	type runSummary struct {
		ID        uuid.UUID       `json:"id"`
		Seed      int64           `json:"seed"`
		Options   json.RawMessage `json:"options"`
		Vertices  int             `json:"vertices"`
		Faces     int             `json:"faces"`
		Instances int             `json:"instances"`
		Caves     int             `json:"caves"`
		Water     bool            `json:"water"`
		TookMS    int64           `json:"took_ms"`
		CreatedAt time.Time       `json:"created_at"`
		Warnings  []string        `json:"warnings,omitempty"`
	}
	out := make([]runSummary, 0, len(runs))
	for _, run := range runs {
		out = append(out, runSummary{
			ID:        run.ID,
			Seed:      run.Seed,
			Options:   json.RawMessage(run.Options),
			Vertices:  run.Vertices,
			Faces:     run.Faces,
			Instances: run.Instances,
			Caves:     run.Caves,
			Water:     run.Water,
			TookMS:    run.Duration.Milliseconds(),
			CreatedAt: run.CreatedAt,
			Warnings:  run.Warnings,
		})
	}
	writeJSON(w, out)
}

func (s *Server) handleScene(w http.ResponseWriter, r *http.Request) {
	s.sceneMu.RLock()
	defer s.sceneMu.RUnlock()
	if s.scene == nil {
		http.Error(w, "no scene generated yet", http.StatusNotFound)
		return
	}
	writeJSON(w, s.scene.result)
}

func (s *Server) handleSceneOBJ(w http.ResponseWriter, r *http.Request) {
	s.sceneMu.RLock()
	defer s.sceneMu.RUnlock()
	if s.scene == nil {
		http.Error(w, "no scene generated yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "model/obj")
	w.Header().Set("Content-Disposition", `attachment; filename="`+s.scene.result.RunID.String()+`.obj"`)
	w.Write(s.scene.obj)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	req := GenerateRequest{Options: terrain.DefaultRandomOptions()}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
			http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
	}

	s.genMu.Lock()
	defer s.genMu.Unlock()

	res, obj, err := s.generate(r.Context(), req)
	switch {
	case errors.Is(err, terrain.ErrCancelled):
		slog.Warn("generation cancelled by client", "seed", req.Seed)
		return
	case err != nil:
		slog.Error("generation failed", "seed", req.Seed, "error", err)
		http.Error(w, "generation failed", http.StatusInternalServerError)
		return
	}

	s.sceneMu.Lock()
	s.scene = &scene{result: *res, obj: obj}
	s.sceneMu.Unlock()
	s.generated.Add(1)
	writeJSON(w, res)
}

// generate runs one randomized terrain on a fresh kernel and journals it.
func (s *Server) generate(ctx context.Context, req GenerateRequest) (*GenerateResult, []byte, error) {
	kernel := mesh.NewMemory()
	session := terrain.NewSession(kernel,
		terrain.WithConfig(s.Config),
		terrain.WithSeed(req.Seed),
		terrain.WithLogger(slog.Default()),
	)

	start := time.Now()
	rep, err := session.Random(ctx, req.Options)
	if err != nil {
		return nil, nil, err
	}
	took := time.Since(start)

	stats := session.Stats()
	res := &GenerateResult{
		RunID:     uuid.New(),
		Seed:      session.Seed(),
		Depth:     rep.Depth,
		Vertices:  stats.Vertices,
		Faces:     stats.Faces,
		Trees:     rep.Trees,
		Mountains: rep.Mountains,
		Caves:     len(rep.Caves),
		Water:     rep.Water,
		SeaLevel:  rep.SeaLevel,
		Solid:     stats.Solid,
		TookMS:    took.Milliseconds(),
	}
	for _, w := range rep.Warnings {
		res.Warnings = append(res.Warnings, w.String())
	}

	handles := []mesh.Handle{session.Terrain()}
	if h := session.Trees(); h != mesh.NoHandle {
		handles = append(handles, h)
	}
	if wv := session.Water(); wv != nil {
		handles = append(handles, wv.Handle)
	}
	var buf bytes.Buffer
	if err := kernel.WriteOBJ(&buf, handles...); err != nil {
		return nil, nil, err
	}

	if s.DB != nil {
		run := journal.Run{
			ID:        res.RunID,
			Seed:      res.Seed,
			Vertices:  res.Vertices,
			Faces:     res.Faces,
			Instances: res.Trees,
			Caves:     res.Caves,
			Water:     res.Water,
			Duration:  took,
			Warnings:  res.Warnings,
		}
		if err := run.SetOptions(req.Options); err != nil {
			return nil, nil, err
		}
		if _, err := s.DB.Record(ctx, run); err != nil {
			slog.Error("failed to journal run", "run", res.RunID, "error", err)
		}
	}
	return res, buf.Bytes(), nil
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/telecore/telecore-go/internal/sl"
	"github.com/telecore/telecore-go/pkg/database"
	"github.com/telecore/telecore-go/pkg/persistence"
	"github.com/telecore/telecore-go/pkg/point"
	"github.com/telecore/telecore-go/pkg/wire"
)

const contentTypeCBOR = "application/cbor"

// Config wires the server's data sources. Only Database is required.
type Config struct {
	Address  string
	Database *database.Database
	History  *persistence.HistoryStore
	Channels ChannelLister
	Metrics  http.Handler
	Logger   *slog.Logger
	Version  string
}

// Server is the HTTP read surface.
type Server struct {
	cfg    Config
	log    *slog.Logger
	router chi.Router
	server *http.Server
	addr   net.Addr
	seq    atomic.Uint32
}

// NewServer builds the router.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{cfg: cfg, log: logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/points", s.handleTables)
	r.Get("/points/{type}", s.handleTable)
	r.Get("/points/{type}/{index}", s.handlePoint)
	r.Get("/history", s.handleHistory)
	r.Get("/channels", s.handleChannels)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}
	s.router = r
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler { return s.router }

// Start binds the listen address and serves in the background. Bind
// failures are returned.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Address, err)
	}
	s.addr = ln.Addr()
	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.log.Info("starting http server", slog.String("address", ln.Addr().String()))

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server error", sl.Err(err))
		}
	}()
	return nil
}

// Addr returns the bound address once Start succeeded.
func (s *Server) Addr() net.Addr { return s.addr }

// Stop shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	version := s.cfg.Version
	if version == "" {
		version = "dev"
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version,
	})
}

func (s *Server) handleTables(w http.ResponseWriter, r *http.Request) {
	out := make([]TableSummary, 0, len(point.Types))
	for _, t := range point.Types {
		out = append(out, TableSummary{Type: t.String(), Count: s.cfg.Database.Count(t)})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	t, ok := parseType(w, chi.URLParam(r, "type"))
	if !ok {
		return
	}
	points := s.cfg.Database.Snapshot(t)

	if r.Header.Get("Accept") == contentTypeCBOR {
		data, err := wire.EncodeSnapshot(wire.NewSnapshotFrame(s.seq.Add(1), t, points))
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, "Failed to encode snapshot", err.Error())
			return
		}
		w.Header().Set("Content-Type", contentTypeCBOR)
		w.WriteHeader(http.StatusOK)
		w.Write(data)
		return
	}

	resp := TableResponse{Type: t.String(), Count: len(points), Points: make([]PointResponse, 0, len(points))}
	for _, p := range points {
		resp.Points = append(resp.Points, toPointResponse(t, p))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePoint(w http.ResponseWriter, r *http.Request) {
	t, ok := parseType(w, chi.URLParam(r, "type"))
	if !ok {
		return
	}
	idx, err := strconv.ParseUint(chi.URLParam(r, "index"), 10, 16)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid index", chi.URLParam(r, "index"))
		return
	}

	p, err := s.cfg.Database.Get(t, uint16(idx))
	if errors.Is(err, database.ErrNotFound) {
		writeJSONError(w, http.StatusNotFound, "Point not found", err.Error())
		return
	}
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "Failed to read point", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toPointResponse(t, p))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.cfg.History == nil {
		writeJSONError(w, http.StatusNotFound, "History disabled", "")
		return
	}

	q := r.URL.Query()
	limit := 100
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSONError(w, http.StatusBadRequest, "Invalid limit", v)
			return
		}
		limit = n
	}

	var (
		recs []persistence.HistoryRecord
		err  error
	)
	if typ := q.Get("type"); typ != "" {
		t, ok := parseType(w, typ)
		if !ok {
			return
		}
		idx, perr := strconv.ParseUint(q.Get("index"), 10, 16)
		if perr != nil {
			writeJSONError(w, http.StatusBadRequest, "Invalid index", q.Get("index"))
			return
		}
		recs, err = s.cfg.History.Query(t, uint16(idx), limit)
	} else {
		recs, err = s.cfg.History.Recent(limit)
	}
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "Failed to query history", err.Error())
		return
	}

	out := make([]HistoryResponse, 0, len(recs))
	for _, rec := range recs {
		h := HistoryResponse{
			ID:         rec.ID,
			Type:       rec.Type.String(),
			Index:      rec.Index,
			Value:      jsonValue(rec.Value),
			OldQuality: rec.OldQuality,
			Quality:    rec.Quality,
			Reasons:    rec.Reasons.String(),
			RecordedAt: rec.RecordedAt,
		}
		if rec.Timestamp.IsSet() {
			ms := int64(rec.Timestamp)
			h.Timestamp = &ms
		}
		out = append(out, h)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleChannels(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Channels == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, s.cfg.Channels.Channels())
}

func parseType(w http.ResponseWriter, s string) (point.Type, bool) {
	t, err := point.ParseType(s)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "Unknown point type", s)
		return 0, false
	}
	return t, true
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeJSONError writes a JSON error response.
func writeJSONError(w http.ResponseWriter, status int, message, details string) {
	writeJSON(w, status, ErrorResponse{Error: message, Details: details})
}

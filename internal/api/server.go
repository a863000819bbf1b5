package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/legal-notice-harvester/internal/dispatcher"
	"github.com/JakeFAU/legal-notice-harvester/internal/export"
	"github.com/JakeFAU/legal-notice-harvester/internal/harvest"
	"github.com/JakeFAU/legal-notice-harvester/internal/logging"
	"github.com/JakeFAU/legal-notice-harvester/internal/metrics"
)

// RequestIDHeader carries the per-request identifier.
const RequestIDHeader = "X-Request-ID"

// Harvester is the part of the orchestrator the API needs.
type Harvester interface {
	Sites() []string
	Run(ctx context.Context, siteID string, cutoff harvest.Date, filter string) ([]harvest.Record, error)
}

// Options tunes the server middleware.
type Options struct {
	// RequestTimeout bounds one crawl request; zero disables the limit.
	RequestTimeout time.Duration
}

// Server wires HTTP handlers to the orchestrator.
type Server struct {
	router    chi.Router
	harvester Harvester
	logger    *zap.Logger
}

type indexResponse struct {
	Message   string            `json:"message"`
	Endpoints map[string]string `json:"endpoints"`
	Sites     []string          `json:"sites"`
}

type runResponse struct {
	Site       string           `json:"site"`
	CutoffDate string           `json:"cutoff_date"`
	Total      int              `json:"total"`
	Results    []harvest.Record `json:"results"`
}

// NewServer constructs a Server with middleware and routes.
func NewServer(h Harvester, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		harvester: h,
		logger:    logger.Named("api"),
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware(s.logger))
	r.Use(loggingMiddleware)
	r.Use(recoverMiddleware)
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		if opts.RequestTimeout > 0 {
			r.Use(timeoutMiddleware(opts.RequestTimeout))
		}
		r.Get("/", s.index)
		r.Get("/{site}", s.runSite)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if len(s.harvester.Sites()) == 0 {
		writeError(w, http.StatusServiceUnavailable, "no sites registered")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) index(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, indexResponse{
		Message: "legal notice harvester online",
		Endpoints: map[string]string{
			"run": "/{site}?date=dd/mm/yyyy&format={json|csv}&filter=text",
		},
		Sites: s.harvester.Sites(),
	})
}

func (s *Server) runSite(w http.ResponseWriter, r *http.Request) {
	site := strings.ToLower(chi.URLParam(r, "site"))
	if !slices.Contains(s.harvester.Sites(), site) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("site %q is not recognized", site))
		return
	}

	query := r.URL.Query()
	rawDate := query.Get("date")
	if rawDate == "" {
		writeError(w, http.StatusBadRequest, "query parameter 'date' (dd/mm/yyyy) is required")
		return
	}
	format, err := export.ParseFormat(query.Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cutoff, err := harvest.ParseDate(rawDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid date %q: use dd/mm/yyyy", rawDate))
		return
	}
	filter := query.Get("filter")

	logger := logging.FromContext(r.Context(), s.logger)
	records, err := s.harvester.Run(r.Context(), site, cutoff, filter)
	if err != nil {
		if errors.Is(err, dispatcher.ErrUnknownSite) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		logger.Error("harvest failed", zap.String("site", site), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	logger.Info("harvest completed",
		zap.String("site", site),
		zap.String("cutoff", cutoff.String()),
		zap.String("format", string(format)),
		zap.Int("records", len(records)),
	)

	if format == export.FormatCSV {
		s.writeCSV(w, site, records)
		return
	}
	if records == nil {
		records = []harvest.Record{}
	}
	writeJSON(w, http.StatusOK, runResponse{
		Site:       site,
		CutoffDate: rawDate,
		Total:      len(records),
		Results:    records,
	})
}

func (s *Server) writeCSV(w http.ResponseWriter, site string, records []harvest.Record) {
	if len(records) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, records); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", export.FormatCSV.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s_data.csv", site))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		s.logger.Warn("csv write failed", zap.Error(err))
	}
}

// requestIDMiddleware tags each request with an ID and a logger carrying it.
func requestIDMiddleware(base *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get(RequestIDHeader)
			if reqID == "" {
				reqID = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, reqID)
			ctx := logging.WithContext(r.Context(), base.With(zap.String("request_id", reqID)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		logging.FromContext(r.Context(), nil).Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logging.FromContext(r.Context(), nil).Error("panic recovered", zap.Any("error", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, `{"error":"request timed out"}`)
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		http.Error(w, `{"error":"encode response"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", export.FormatJSON.ContentType())
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

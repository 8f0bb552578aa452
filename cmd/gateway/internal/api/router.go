package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gobwas/ws"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/shubham-shewale/quote-stream/cmd/gateway/internal/gateway"
	"github.com/shubham-shewale/quote-stream/cmd/gateway/internal/hub"
	"github.com/shubham-shewale/quote-stream/cmd/gateway/internal/repository"
	"github.com/shubham-shewale/quote-stream/pkg/codec"
	"github.com/shubham-shewale/quote-stream/pkg/models"
)

type contextKey string

const requestIDKey contextKey = "request_id"

type Server struct {
	hub          *hub.Hub
	store        repository.QuoteStore
	logger       *zap.Logger
	validTickers map[string]bool
	lookups      singleflight.Group
}

func NewServer(h *hub.Hub, store repository.QuoteStore, logger *zap.Logger, validTickers map[string]bool) *Server {
	return &Server{hub: h, store: store, logger: logger, validTickers: validTickers}
}

func NewRouter(s *Server) http.Handler {
	r := chi.NewRouter()

	r.Use(requestID())
	r.Use(recoverer(s.logger))
	r.Use(accessLog(s.logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Get("/ws", s.serveWS)
	r.Get("/quotes/{company}", s.getQuote)

	return r
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		s.logger.Debug("WebSocket upgrade failed", zap.Error(err))
		return
	}
	gateway.NewClient(conn, s.hub, s.logger, s.validTickers).Start()
}

func (s *Server) getQuote(w http.ResponseWriter, r *http.Request) {
	company := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "company")))
	if !s.validTickers[company] {
		writeError(w, http.StatusNotFound, "unknown company")
		return
	}

	// Concurrent lookups of one company share a single Redis GET
	v, err, _ := s.lookups.Do(company, func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 2*time.Second)
		defer cancel()
		return s.store.GetSnapshot(ctx, company)
	})
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "no quote yet")
		return
	case err != nil:
		s.logger.Error("Snapshot lookup failed", zap.String("company", company), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}

	b, err := codec.JSON.Encode(v.(*models.Quote))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "encode failed")
		return
	}
	w.Header().Set("Content-Type", codec.JSON.ContentType())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func requestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rid := r.Header.Get("X-Request-ID")
			if rid == "" {
				rid = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", rid)
			ctx := context.WithValue(r.Context(), requestIDKey, rid)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func recoverer(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					rid, _ := r.Context().Value(requestIDKey).(string)
					logger.Error("panic recovered", zap.Any("error", rec), zap.String("request_id", rid))
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	return sr.ResponseWriter.Write(b)
}

func accessLog(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// the WebSocket upgrade needs the raw writer to hijack
			if r.URL.Path == "/ws" {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(sr, r)
			rid, _ := r.Context().Value(requestIDKey).(string)
			logger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", sr.status),
				zap.String("request_id", rid),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/roundcast/roundcast/internal/config"
	"github.com/roundcast/roundcast/internal/models"
	"github.com/roundcast/roundcast/internal/utils"
)

const welcomeText = "roundcast prediction API. GET /api/v1/predictions/next for the next-round prediction.\n"

// HTTPServer serves the JSON prediction API.
type HTTPServer struct {
	logger    *slog.Logger
	predictor Predictor
	router    chi.Router
	server    *http.Server
}

// NewHTTPServer builds the router and the underlying http.Server.
func NewHTTPServer(cfg config.ServerConfig, logger *slog.Logger, predictor Predictor) *HTTPServer {
	if logger == nil {
		logger = slog.Default()
	}
	s := &HTTPServer{
		logger:    logger.With(slog.String("component", "http")),
		predictor: predictor,
	}
	s.router = s.routes(cfg)
	s.server = &http.Server{
		Addr:         cfg.HTTPAddress,
		Handler:      s.router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler exposes the router (useful for tests).
func (s *HTTPServer) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called.
func (s *HTTPServer) Start() error {
	s.logger.Info("http server listening", slog.String("address", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) routes(cfg config.ServerConfig) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/", s.handleWelcome)
	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/v1/predictions/next", s.handlePredict)
		r.Get("/v1/history", s.handleHistory)
		r.Get("/v1/strategies", s.handleStrategies)
		// Path kept for clients of the original service.
		r.Get("/taixiu/du_doan_sunwin", s.handlePredict)
	})
	return r
}

func (s *HTTPServer) handlePredict(w http.ResponseWriter, r *http.Request) {
	resp, err := s.predictor.Cycle(r.Context(), r.URL.Query().Get("strategy"))
	if err != nil {
		status, summary := httpStatusFor(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("prediction cycle failed", slog.Any("error", err), slog.String("request_id", middleware.GetReqID(r.Context())))
		}
		writeJSON(w, status, models.NewFailureResponse(summary, err))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) handleHistory(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, historyResponse(s.predictor))
}

func (s *HTTPServer) handleStrategies(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"strategies": s.predictor.Strategies()})
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *HTTPServer) handleWelcome(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(welcomeText))
}

func (s *HTTPServer) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Debug("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Int("bytes", ww.BytesWritten()),
			slog.Duration("duration", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// httpStatusFor maps failure kinds onto response codes. Upstream and
// validation failures are server-side problems from the caller's view.
func httpStatusFor(err error) (int, string) {
	switch utils.KindOf(err) {
	case utils.KindInvalidArgument:
		return http.StatusBadRequest, "invalid request"
	case utils.KindUpstream:
		return http.StatusBadGateway, "unable to fetch the latest round from upstream"
	case utils.KindValidation:
		return http.StatusInternalServerError, "upstream returned malformed round data"
	default:
		return http.StatusInternalServerError, "prediction failed"
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

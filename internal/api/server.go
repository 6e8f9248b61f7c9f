package api

import (
	"context"
	"net/http"
	"time"

	"inquiry-core/internal/common/errors"
	"inquiry-core/internal/common/logger"
	flowcontroller "inquiry-core/internal/conversation/flow-controller"
	"inquiry-core/internal/conversation/session"
	"inquiry-core/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
)

const ComponentName = "api"

// SessionService is the inquiry boundary served over HTTP.
type SessionService interface {
	StartSession(ctx context.Context, req *session.StartRequest) (*session.StartResult, error)
	SubmitAnswer(ctx context.Context, sessionID, questionID, answer string) (*session.TurnResult, error)
	NextQuestions(ctx context.Context, sessionID string, limit int) ([]flowcontroller.Question, error)
	GenerateDiagnosis(ctx context.Context, sessionID string) (*session.DiagnosisReport, error)
	EndSession(ctx context.Context, sessionID string) (*models.SessionSummary, error)
}

type Config struct {
	MaxBodyBytes   int64
	RequestTimeout time.Duration
	// AllowedOrigins restricts websocket upgrades. Empty keeps the same-origin check.
	AllowedOrigins []string
	PingInterval   time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
}

func LoadConfig() *Config {
	return &Config{
		MaxBodyBytes:   64 << 10,
		RequestTimeout: 10 * time.Second,
		PingInterval:   30 * time.Second,
		PongWait:       60 * time.Second,
		WriteWait:      10 * time.Second,
	}
}

type Server struct {
	config   *Config
	svc      SessionService
	errors   *errors.ErrorHandler
	logger   logger.Logger
	upgrader websocket.Upgrader
}

func NewServer(config *Config, svc SessionService, log logger.Logger) *Server {
	if config == nil {
		config = LoadConfig()
	}
	log = log.WithFields(map[string]interface{}{"component": ComponentName})
	s := &Server{
		config: config,
		svc:    svc,
		errors: errors.NewErrorHandler(log),
		logger: log,
	}
	if len(config.AllowedOrigins) > 0 {
		allowed := make(map[string]bool, len(config.AllowedOrigins))
		for _, o := range config.AllowedOrigins {
			allowed[o] = true
		}
		s.upgrader.CheckOrigin = func(r *http.Request) bool {
			return allowed[r.Header.Get("Origin")]
		}
	}
	return s
}

// Router returns the v1 API. Callers may add further routes, such as health
// and metrics endpoints, to the returned mux.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Route("/v1/sessions", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.config.RequestTimeout))
			r.Post("/", s.handleStartSession)
			r.Post("/{id}/answers", s.handleSubmitAnswer)
			r.Get("/{id}/questions", s.handleNextQuestions)
			r.Post("/{id}/diagnosis", s.handleGenerateDiagnosis)
			r.Delete("/{id}", s.handleEndSession)
		})
		r.Get("/{id}/stream", s.handleStream)
	})
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Debug("request served", map[string]interface{}{
			"method":    r.Method,
			"path":      r.URL.Path,
			"status":    ww.Status(),
			"bytes":     ww.BytesWritten(),
			"duration":  time.Since(start).String(),
			"requestId": middleware.GetReqID(r.Context()),
		})
	})
}

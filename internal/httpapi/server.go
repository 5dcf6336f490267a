package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"student_registry/internal/metrics"
	"student_registry/internal/model"
	"student_registry/internal/pipeline"
	"student_registry/internal/service/registry"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"go.uber.org/zap"
)

const requestTimeout = 30 * time.Second

// Registry операции реестра, которые нужны API
type Registry interface {
	Add(ctx context.Context, e model.Entry) (model.Student, error)
	AddBatch(ctx context.Context, entries []model.Entry) (pipeline.BatchResult, error)
	AddBulkText(ctx context.Context, text string) (pipeline.BatchResult, error)
	Import(ctx context.Context, src io.Reader) (registry.ImportResult, error)
	Export(ctx context.Context, w io.Writer, title string) (int, error)
	Search(ctx context.Context, query string) ([]model.Student, error)
	Delete(ctx context.Context, code string, confirmed bool) (bool, error)
	Prefix(ctx context.Context) (string, error)
	SetPrefix(ctx context.Context, prefix string) error
}

type Handler struct {
	registry   Registry
	metrics    *metrics.Metrics
	logger     *zap.Logger
	exportBase string
}

func NewHandler(reg Registry, m *metrics.Metrics, logger *zap.Logger, exportBase string) *Handler {
	return &Handler{registry: reg, metrics: m, logger: logger, exportBase: exportBase}
}

// Router маршруты API
func (h *Handler) Router() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(requestTimeout))
	router.Use(requestLogger(h.logger))

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, Error("Requested resource not found"))
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		render.Status(r, http.StatusMethodNotAllowed)
		render.JSON(w, r, Error("Method not allowed"))
	})

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, Ok(map[string]string{"status": "ok"}))
	})
	if h.metrics != nil {
		router.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	}

	router.Route("/v1", func(v1 chi.Router) {
		v1.Route("/students", func(st chi.Router) {
			st.Get("/", h.ListStudents)
			st.Post("/", h.AddStudent)
			st.Post("/bulk", h.AddBulk)
			st.Post("/import", h.Import)
			st.Get("/export.xlsx", h.Export)
			st.Delete("/{code}", h.DeleteStudent)
		})
		v1.Get("/prefix", h.GetPrefix)
		v1.Put("/prefix", h.SetPrefix)
	})
	return router
}

// requestLogger пишет строку лога на каждый запрос
func requestLogger(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("http request",
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

// Server HTTP-сервер API
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
}

func NewServer(addr string, handler http.Handler, logger *zap.Logger) *Server {
	return &Server{
		logger: logger,
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      handler,
			ErrorLog:     zap.NewStdLog(logger),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Start блокирует до остановки сервера. После Shutdown возвращает nil.
func (s *Server) Start() error {
	s.logger.Info("starting api server", zap.String("address", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

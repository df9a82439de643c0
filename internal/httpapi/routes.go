package httpapi

import (
	"net/http"
	"time"

	"github.com/DoyleJ11/rally-backend/internal/hub"
	"github.com/DoyleJ11/rally-backend/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func SetupRoutes(h *hub.Hub, wsOpts ws.Options, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	if wsOpts.DefaultTable == "" {
		wsOpts.DefaultTable = "main"
	}
	schema := BuildProtocolSchema()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	// The socket stays off the access log; the gateway logs joins itself.
	r.Get("/ws", ws.Handler(h, wsOpts, log))

	r.Group(func(r chi.Router) {
		r.Use(requestLogger(log))

		r.Get("/healthz", Healthz)
		r.Get("/protocol/schema", ProtocolSchema(schema))

		r.Route("/tables", func(r chi.Router) {
			r.Post("/", CreateTable(h, log))
			r.Get("/", ListTables(h))
			r.Get("/{code}", GetTable(h))
			r.Delete("/{code}", DeleteTable(h, wsOpts.DefaultTable))
		})
	})
	return r
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("took", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

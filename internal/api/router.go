package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func NewRouter(apiHandler *APIHandler, log *zap.SugaredLogger) http.Handler {
	r := chi.NewRouter()

	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling

	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Post("/auth/register", apiHandler.RegisterHandler)
		r.Post("/auth/login", apiHandler.LoginHandler)
		r.Post("/auth/google", apiHandler.GoogleLoginHandler)
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})

		// User-authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(apiHandler.JWTAuthMiddleware)

			r.Post("/rag/chat", apiHandler.ChatHandler)
			r.Post("/rag/chat/simple", apiHandler.ChatSimpleHandler)
			r.Post("/rag/chat/stream", apiHandler.ChatStreamHandler)
			r.Post("/rag/upsert-chat", apiHandler.UpsertChatHandler)
			r.Get("/rag/dashboard", apiHandler.DashboardHandler)
			r.Get("/rag/videos", apiHandler.VideoSearchHandler)

			r.Post("/progress", apiHandler.LogProgressHandler)
			r.Get("/progress", apiHandler.ListProgressHandler)

			r.Get("/profile", apiHandler.GetProfileHandler)
			r.Put("/profile", apiHandler.UpdateProfileHandler)
		})

		// Operator routes
		r.Group(func(r chi.Router) {
			r.Use(apiHandler.AdminMiddleware)
			r.Post("/admin/vectors/delete-all", apiHandler.DeleteAllVectorsHandler)
		})
	})

	return r
}

func requestLogger(log *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Infow("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
			)
		})
	}
}

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

type RouterOptions struct {
	MaxBodyBytes       int64
	RateLimitPerMinute int
}

func NewRouter(apiHandler *APIHandler, log *logrus.Logger, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestLogger(log))
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling
	if opts.MaxBodyBytes > 0 {
		r.Use(middleware.RequestSize(opts.MaxBodyBytes))
	}

	limiter := NewRateLimiter(opts.RateLimitPerMinute)

	// All API routes will be under /api
	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Get("/health", apiHandler.HealthHandler)
		r.Post("/register", apiHandler.RegisterHandler)
		r.Post("/login", apiHandler.LoginHandler)

		// User-authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(apiHandler.JWTAuthMiddleware)

			r.Get("/me", apiHandler.MeHandler)

			// Upstream generation is rate limited per user
			r.With(limiter.Middleware).Post("/text", apiHandler.TextHandler)
			r.With(limiter.Middleware).Post("/image", apiHandler.ImageHandler)

			// Document rendering
			r.Post("/pdf", apiHandler.PDFHandler)
			r.Post("/docx", apiHandler.DOCXHandler)
			r.Post("/excel", apiHandler.ExcelHandler)
			r.Post("/svg", apiHandler.SVGHandler)
		})
	})

	return r
}

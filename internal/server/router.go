// Package server assembles the HTTP router for the selected service role.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"

	"github.com/dockerx/cms/internal/auth"
	"github.com/dockerx/cms/internal/imaging"
	appMiddleware "github.com/dockerx/cms/internal/middleware"
	"github.com/dockerx/cms/internal/post"
	"github.com/dockerx/cms/internal/storage"
	"github.com/dockerx/cms/internal/upload"
)

// Service roles selectable with SERVICE.
const (
	RoleAll    = "all"
	RoleFront  = "front"
	RoleAdmin  = "admin"
	RoleUpload = "upload"
	RoleMedia  = "media"
)

// Deps are the wired services the router exposes.
type Deps struct {
	Role        string
	CORSOrigins []string
	Log         *zap.Logger
	Files       *storage.Service
	Posts       *post.Service
	Auth        *auth.Service
	// AuthLimiter throttles /api/auth when set.
	AuthLimiter *appMiddleware.IPRateLimiter
}

// NewRouter builds the chi router with the route groups d.Role calls for.
func NewRouter(d Deps) http.Handler {
	if d.Role == "" {
		d.Role = RoleAll
	}
	origins := d.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(appMiddleware.Logger(d.Log))
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok","service":"` + d.Role + `"}`))
	})

	// Swagger UI at /swagger/index.html
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	uploadHandler := upload.NewHandler(d.Files, d.Log)
	r.Get("/files/{container}/{fileName}", uploadHandler.Serve)

	enabled := func(role string) bool { return d.Role == RoleAll || d.Role == role }

	r.Route("/api", func(r chi.Router) {
		if enabled(RoleFront) {
			postHandler := post.NewHandler(d.Posts, d.Log)
			r.Route("/posts", func(r chi.Router) {
				r.Get("/", postHandler.List)
				r.Get("/paged", postHandler.Paged)
				r.Get("/{id}", postHandler.Get)
			})
		}

		if enabled(RoleAdmin) {
			authHandler := auth.NewHandler(d.Auth, d.Log)
			postHandler := post.NewHandler(d.Posts, d.Log)
			requireAuth := appMiddleware.RequireAuth(d.Auth)

			r.Route("/auth", func(r chi.Router) {
				if d.AuthLimiter != nil {
					r.Use(d.AuthLimiter.Middleware)
				}
				r.Post("/login", authHandler.Login)
				r.With(requireAuth).Post("/validate", authHandler.Validate)
			})

			r.Route("/admin/posts", func(r chi.Router) {
				r.Use(requireAuth)
				r.Get("/", postHandler.List)
				r.Post("/", postHandler.Create)
				r.Get("/{id}", postHandler.AdminGet)
				r.Put("/{id}", postHandler.Update)
				r.Delete("/{id}", postHandler.Delete)
			})
		}

		if enabled(RoleUpload) {
			r.Route("/store", func(r chi.Router) {
				r.Post("/upload", uploadHandler.Upload)
				r.Get("/health", uploadHandler.Health)
			})
		}

		if enabled(RoleMedia) {
			mediaHandler := imaging.NewHandler(imaging.NewService(d.Files), d.Log)
			r.Route("/media", func(r chi.Router) {
				r.Get("/image/{fileName}", mediaHandler.Image)
				r.Get("/crop/{fileName}", mediaHandler.Crop)
				r.Post("/process", mediaHandler.Process)
				r.Get("/health", mediaHandler.Health)
			})
		}
	})

	return r
}

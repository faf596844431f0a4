// Package handler provides the HTTP layer of the TeamDrop API.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Router assembles the full TeamDrop route tree.
type Router struct {
	auth           *AuthHandler
	users          *UserHandler
	projects       *ProjectHandler
	files          *FileHandler
	shares         *ShareHandler
	messages       *MessageHandler
	metrics        *Metrics
	authMiddleware func(http.Handler) http.Handler
	logger         zerolog.Logger
}

// RouterConfig contains configuration for the router.
type RouterConfig struct {
	AuthHandler    *AuthHandler
	UserHandler    *UserHandler
	ProjectHandler *ProjectHandler
	FileHandler    *FileHandler
	ShareHandler   *ShareHandler
	MessageHandler *MessageHandler
	Metrics        *Metrics
	AuthMiddleware func(http.Handler) http.Handler
	Logger         zerolog.Logger
}

// NewRouter creates a new Router.
func NewRouter(config RouterConfig) *Router {
	return &Router{
		auth:           config.AuthHandler,
		users:          config.UserHandler,
		projects:       config.ProjectHandler,
		files:          config.FileHandler,
		shares:         config.ShareHandler,
		messages:       config.MessageHandler,
		metrics:        config.Metrics,
		authMiddleware: config.AuthMiddleware,
		logger:         config.Logger.With().Str("component", "router").Logger(),
	}
}

// Handler returns the main HTTP handler.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(rt.metrics.Middleware)

	r.Get("/health", rt.handleHealth)
	r.Handle("/metrics", rt.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		// Public endpoints. Share links must work without an account.
		r.Post("/auth/register", rt.auth.Register)
		r.Post("/auth/login", rt.auth.Login)
		r.Get("/auth/has-admin", rt.auth.HasAdmin)

		r.Route("/shares/{token}", func(r chi.Router) {
			r.Get("/", rt.shares.Fetch)
			r.Post("/verify", rt.shares.Verify)
			r.Get("/files/{fileID}/download", rt.shares.Download)
		})

		// Everything else requires a valid session.
		r.Group(func(r chi.Router) {
			r.Use(rt.authMiddleware)

			r.Post("/auth/logout", rt.auth.Logout)
			r.Get("/auth/me", rt.auth.Me)

			r.Get("/users", rt.users.List)
			r.Put("/users/{userID}/upload-permission", rt.users.GrantUpload)

			r.Route("/projects", func(r chi.Router) {
				r.Post("/", rt.projects.Create)
				r.Get("/", rt.projects.List)

				r.Route("/{projectID}", func(r chi.Router) {
					r.Get("/", rt.projects.Get)
					r.Patch("/", rt.projects.Update)
					r.Delete("/", rt.projects.Delete)

					r.Post("/collaborators", rt.projects.AddCollaborator)
					r.Put("/collaborators/{userID}", rt.projects.UpdateCollaborator)
					r.Delete("/collaborators/{userID}", rt.projects.RemoveCollaborator)

					r.Post("/files", rt.files.Upload)
					r.Get("/files", rt.files.List)

					r.Post("/share", rt.shares.Create)
					r.Get("/share", rt.shares.Stats)
					r.Patch("/share", rt.shares.Update)
					r.Delete("/share", rt.shares.Deactivate)

					r.Get("/messages", rt.messages.List)
					r.Post("/messages", rt.messages.Send)
				})
			})

			r.Route("/files/{fileID}", func(r chi.Router) {
				r.Get("/", rt.files.Get)
				r.Patch("/", rt.files.Update)
				r.Delete("/", rt.files.Delete)
				r.Get("/download", rt.files.Download)
			})

			r.Get("/shares", rt.shares.ListMine)

			r.Patch("/messages/{messageID}", rt.messages.Edit)
			r.Delete("/messages/{messageID}", rt.messages.Delete)
		})
	})

	return r
}

// handleHealth handles health check requests.
func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

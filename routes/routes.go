package routes

import (
	"net/http"

	"github.com/deployservice/deploy-service/app"
	"github.com/deployservice/deploy-service/handlers"
	appmw "github.com/deployservice/deploy-service/middleware"
	"github.com/deployservice/deploy-service/utils"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures all application routes and middleware.
//
// Failure translation sits directly after request ID assignment so that
// every later stage, request logging included, runs inside it. Routes
// under /api/v1 additionally pass the authentication stage before
// reaching their handler.
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()
	translator := deps.FailureTranslator

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(translator.Middleware)
	r.Use(middleware.RealIP)
	r.Use(appmw.RequestLogger(deps.Logger, deps.Metrics))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.Server.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	var db handlers.DatabaseChecker
	if deps.DB != nil {
		db = deps.DB
	}
	health := handlers.NewHealthHandler(db, deps.Settings, deps.Logger)
	if svc := deps.AuditService(); svc != nil {
		health.WithAudit(svc)
	}
	identity := handlers.NewIdentityHandler(deps.Logger)
	projects := handlers.NewProjectHandler(deps.Settings, deps.Logger)

	// Health check endpoints
	r.Get("/healthz", health.HandleHealth)
	r.Get("/readyz", health.HandleReadiness)

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	// API v1 routes, all authenticated
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(deps.AuthMiddleware.RequireAuth)

		r.Get("/whoami", translator.Handle(identity.WhoAmI))

		r.Route("/projects", func(r chi.Router) {
			r.Get("/", translator.Handle(projects.ListProjects))
			r.Get("/{name}", translator.Handle(projects.GetProject))
			r.Get("/{name}/services", translator.Handle(projects.ListServices))
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteMethodNotAllowed(w)
	})

	return r
}

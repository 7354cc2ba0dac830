package httpserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"

	_ "sfcollab/docs"
	"sfcollab/internal/config"
	"sfcollab/internal/domain"
	"sfcollab/internal/logging"
	"sfcollab/internal/security"
	"sfcollab/internal/service"
)

// Services groups what the router dispatches to. Realtime serves /ws.
type Services struct {
	Users    domain.UserDirectory
	Tokens   *security.TokenService
	Auth     *service.AuthService
	UserSvc  *service.UserService
	Messages *service.MessageService
	Realtime http.Handler
}

// NewRouter constructs the main HTTP router and wires routes and middleware.
func NewRouter(cfg *config.Config, svc Services, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(log))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"message": cfg.AppName,
			"version": "1.0.0",
			"docs":    "/docs",
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	r.Get("/docs/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/doc.json"),
	))

	// The realtime endpoint stays outside the request timeout: the
	// connection outlives any single request deadline.
	r.Get("/ws", svc.Realtime.ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", handleRegister(svc.Auth, log))
			r.Post("/login", handleLogin(svc.Auth, log))
		})

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(svc.Tokens, svc.Users, log))

			r.Get("/auth/me", handleMe())

			r.Route("/users", func(r chi.Router) {
				r.Get("/", handleListUsers(svc.UserSvc, log))
				r.Get("/online", handleListOnlineUsers(svc.UserSvc, log))
				r.Get("/{userID}", handleGetUser(svc.UserSvc, log))
			})

			r.Route("/messages", func(r chi.Router) {
				r.Get("/contacts", handleContacts(svc.Messages, log))
				r.Get("/history", handleHistory(svc.Messages, log))
			})
		})
	})

	return r
}

// writeJSON is a small helper to send JSON responses.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

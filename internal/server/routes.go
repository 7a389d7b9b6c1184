package server

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rx3lixir/astro_rtc/internal/auth"
	"github.com/rx3lixir/astro_rtc/internal/room"
	"github.com/rx3lixir/astro_rtc/internal/websocket"
)

type RouterConfig struct {
	WSHandler   *websocket.Handler
	RoomHandler *room.Handler
	AuthHandler *auth.Handler
	OpsHandler  *OpsHandler
	Tokens      auth.OperatorTokenValidator
	Log         *slog.Logger

	// AllowedOrigins are host patterns, e.g. "app.example.com" or "localhost:*"
	AllowedOrigins []string
}

func NewRouter(config RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware block
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(config.Log))
	r.Use(middleware.Recoverer)

	// Signaling socket
	r.Route("/ws", config.WSHandler.RegisterRoutes)

	r.Route("/api", func(r chi.Router) {
		r.Use(CORS(config.AllowedOrigins))
		r.Use(middleware.Compress(5))

		// Public routes
		r.Get("/health", config.OpsHandler.HandleHealth)
		r.Route("/auth", config.AuthHandler.RegisterRoutes)

		// Operator routes
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(config.Tokens, config.Log))

			r.Route("/admissions", config.AuthHandler.RegisterAdmissionRoutes)
			r.Route("/rooms", config.RoomHandler.RegisterRoutes)
			r.Get("/stats", config.OpsHandler.HandleStats)
		})
	})

	return r
}

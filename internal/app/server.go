package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/markdave123-py/intellbee/internal/api/handlers"
	appMiddleware "github.com/markdave123-py/intellbee/internal/api/middlewares"
	"github.com/markdave123-py/intellbee/internal/config"
	"github.com/markdave123-py/intellbee/internal/logging"
	"github.com/markdave123-py/intellbee/internal/services"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
	log        logging.Logger
}

// NewServer builds and wires all routes.
func NewServer(cfg *config.Config, users *services.UserService, chat *services.ChatService, log logging.Logger) *Server {
	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           NewRouter(cfg, users, chat),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return &Server{httpServer: httpSrv, log: log}
}

// NewRouter returns the full route tree; tests drive it through httptest.
func NewRouter(cfg *config.Config, users *services.UserService, chat *services.ChatService) http.Handler {
	authHandler := handlers.NewAuthHandler(users)
	userHandler := handlers.NewUserHandler(users)
	chatHandler := handlers.NewChatHandler(chat, int64(cfg.MaxUploadMB)<<20)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(api chi.Router) {
		// public endpoints
		api.Post("/auth/signup", authHandler.Signup)
		api.Post("/auth/login", authHandler.Login)

		// protected endpoints
		api.Group(func(protected chi.Router) {
			protected.Use(appMiddleware.JWTMiddleware(users))
			protected.Get("/user/me", userHandler.Me)
			protected.Post("/user/prefs", userHandler.SetPrefs)
			protected.Post("/chat", chatHandler.Chat)
			protected.Get("/history", chatHandler.History)
		})
	})

	return r
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	s.log.Info(ctx, "HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info(ctx, "Shutting down HTTP server...")
	return s.httpServer.Shutdown(ctx)
}

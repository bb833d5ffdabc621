package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/quietdawn/supportchat/internal/config"
	"github.com/quietdawn/supportchat/internal/database"
	"github.com/quietdawn/supportchat/internal/metrics"
	"github.com/quietdawn/supportchat/internal/presence"
	"github.com/quietdawn/supportchat/internal/server"
	"github.com/quietdawn/supportchat/internal/types"
	"github.com/teris-io/shortid"
)

type SupportChatApp struct {
	log            *log.Logger
	db             database.Repository
	mux            *http.Server
	cs             *server.ChatServer
	stats          metrics.Provider
	presence       *presence.Store
	signingKey     []byte
	allowedOrigins []string
	tokenTTL       time.Duration

	// generateShortId is swappable in tests
	generateShortId func() (string, error)
}

func NewSupportChatApp(logger *log.Logger, cs *server.ChatServer, db database.Repository, stats metrics.Provider, ps *presence.Store, cfg *config.Config, metricsHandler http.Handler) *SupportChatApp {
	s := &SupportChatApp{
		log:             logger,
		db:              db,
		cs:              cs,
		stats:           stats,
		presence:        ps,
		signingKey:      cfg.SigningKey,
		allowedOrigins:  cfg.AllowedOrigins,
		tokenTTL:        cfg.TokenTTL,
		generateShortId: shortid.Generate,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/register", s.createAccount)
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.HandleFunc("GET /api/auth/session", s.authMiddleware(s.session))
	mux.HandleFunc("GET /api/auth/logout", s.authMiddleware(s.logout))
	mux.HandleFunc("POST /api/chats", s.authMiddleware(s.createChat))
	mux.HandleFunc("GET /api/chats", s.authMiddleware(s.getChat))
	mux.HandleFunc("POST /api/messages", s.authMiddleware(s.sendMessage))
	mux.HandleFunc("GET /api/messages", s.authMiddleware(s.getMessages))
	mux.HandleFunc("POST /api/reviews", s.authMiddleware(s.submitReview))
	mux.HandleFunc("GET /api/notifications", s.authMiddleware(s.listNotifications))
	mux.HandleFunc("POST /api/notifications/read", s.authMiddleware(s.markNotificationRead))
	mux.HandleFunc("POST /api/admin/moderate", s.authMiddleware(s.requireRole(types.RoleAdmin, s.moderate)))
	mux.HandleFunc("POST /api/admin/roles", s.authMiddleware(s.requireRole(types.RoleAdmin, s.assignRole)))
	mux.HandleFunc("POST /api/admin/dismiss", s.authMiddleware(s.requireRole(types.RoleAdmin, s.dismiss)))
	mux.HandleFunc("POST /api/admin/notifications", s.authMiddleware(s.requireRole(types.RoleAdmin, s.broadcastNotification)))
	mux.HandleFunc("GET /api/admin/stats", s.authMiddleware(s.requireRole(types.RoleAdmin, s.adminStats)))
	mux.HandleFunc("GET /api/admin/users", s.authMiddleware(s.requireRole(types.RoleAdmin, s.listUsers)))
	mux.HandleFunc("GET /api/admin/chats", s.authMiddleware(s.requireRole(types.RoleAdmin, s.listChats)))
	mux.HandleFunc("GET /api/admin/logs", s.authMiddleware(s.requireRole(types.RoleAdmin, s.listModerationLogs)))
	mux.HandleFunc("GET /ws", s.authMiddleware(s.serveWs))
	mux.HandleFunc("GET /healthz", s.healthCheck)

	if metricsHandler != nil {
		mux.Handle("GET /metrics", metricsHandler)
	}

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.mux = srv
	return s
}

func (s *SupportChatApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *SupportChatApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}

package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dkolesni/billing-sync/internal/config"
	"github.com/dkolesni/billing-sync/pkg/logger"
	"github.com/gin-gonic/gin"
)

// Server представляет HTTP сервер.
type Server struct {
	httpServer *http.Server
	log        *logger.Logger
}

// NewServer создает новый HTTP сервер. Сам http.Server собирается
// здесь, а не в Start: Shutdown может прийти по сигналу раньше, чем
// горутина со Start успеет выполниться.
func NewServer(router *gin.Engine, cfg *config.Config, log *logger.Logger) *Server {
	port := cfg.App.Port
	if port == "" {
		port = "8080"
	}
	return &Server{
		httpServer: &http.Server{
			Addr:    ":" + port,
			Handler: router,
			// Вебхуки должны подтверждаться быстро; зависшая доставка
			// лучше оборванная, чем держащая соединение.
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		log: log,
	}
}

// Start запускает HTTP сервер.
func (s *Server) Start() error {
	s.log.Infow("Starting HTTP server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown выполняет graceful shutdown сервера.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Infow("Server is shutting down...")
	return s.httpServer.Shutdown(ctx)
}

// Package server is the HTTP face of the relay: upload, download and health
// routes on a gin engine.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/peerlink/peerlink/pkg/domain"
	"github.com/peerlink/peerlink/pkg/logging"
	"github.com/peerlink/peerlink/pkg/relay"
)

const (
	// DefaultPort is the listen port when none is configured.
	DefaultPort = 8080

	readHeaderTimeout = 10 * time.Second
	idleTimeout       = 120 * time.Second
	corsMaxAge        = 12 * time.Hour
)

// Config holds the HTTP settings.
type Config struct {
	Host         string
	Port         int
	AllowOrigins []string
	Debug        bool
}

// Server serves the relay over HTTP.
type Server struct {
	cfg    Config
	svc    *relay.Service
	logger *logging.Logger
	engine *gin.Engine
	http   *http.Server
}

// New builds the router for svc. It does not start listening.
func New(cfg Config, svc *relay.Service, logger *logging.Logger) *Server {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if len(cfg.AllowOrigins) == 0 {
		cfg.AllowOrigins = []string{"*"}
	}
	if logger == nil {
		logger = logging.GetLogger()
	}

	s := &Server{cfg: cfg, svc: svc, logger: logger}
	s.engine = s.router()
	s.http = &http.Server{
		Addr:              s.Addr(),
		Handler:           s.engine,
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}
	return s
}

func (s *Server) router() *gin.Engine {
	router := gin.New()
	router.HandleMethodNotAllowed = true

	router.Use(requestID(), accessLog(s.logger), recovery(s.logger, s.cfg.Debug))
	router.Use(cors.New(corsConfig(s.cfg.AllowOrigins)))

	router.POST("/upload", s.handleUpload)
	router.GET("/download/:code", s.handleDownload)
	router.GET("/health", s.handleHealth)

	router.NoRoute(func(c *gin.Context) {
		respondWithError(c, s.logger, domain.NewAppError(domain.ErrCodeNotFound, "route not found"), s.cfg.Debug)
	})
	router.NoMethod(func(c *gin.Context) {
		respondWithError(c, s.logger, domain.NewAppError(domain.ErrCodeMethodNotAllowed, "method not allowed"), s.cfg.Debug)
	})

	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Disposition", "Content-Length", "X-Request-ID"},
		MaxAge:        corsMaxAge,
	}
	for _, origin := range origins {
		if origin == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = origins
	return cfg
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Addr is the configured listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
}

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	s.logger.Info("starting server", "addr", s.Addr())
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Serve accepts connections on l until Shutdown.
func (s *Server) Serve(l net.Listener) error {
	s.logger.Info("starting server", "addr", l.Addr().String())
	if err := s.http.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones until ctx
// is done.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	return s.http.Shutdown(ctx)
}

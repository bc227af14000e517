package api

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/zanrcon-project/zanrcon/internal/config"
	"github.com/zanrcon-project/zanrcon/internal/console"
	"github.com/zanrcon-project/zanrcon/internal/events"
	"github.com/zanrcon-project/zanrcon/internal/network"
	"github.com/zanrcon-project/zanrcon/internal/rcon"
	"github.com/zanrcon-project/zanrcon/internal/util"
)

// Controller is the slice of a session the bridge exposes. It is
// satisfied by *rcon.Session.
type Controller interface {
	SendCommand(command string) error
	State() rcon.State
	ServerState() rcon.ServerState
	Stats() rcon.Stats
	Remote() string
}

// Server is the HTTP bridge server.
type Server struct {
	cfg      *config.Config
	session  Controller
	eventBus *events.EventBus
	registry *prometheus.Registry
	log      zerolog.Logger

	lines *lineRing
	hub   *streamHub

	httpServer *http.Server
	router     *gin.Engine
}

// NewServer creates a bridge over one session. The registry carries the
// session metrics served at /metrics; it may be empty but not nil.
func NewServer(cfg *config.Config, session Controller, eventBus *events.EventBus, registry *prometheus.Registry) *Server {
	if cfg.GetLogging().Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	bridge := cfg.GetBridge()
	return &Server{
		cfg:      cfg,
		session:  session,
		eventBus: eventBus,
		registry: registry,
		log:      util.ComponentLogger("bridge"),
		lines:    newLineRing(bridge.LineBuffer),
		hub:      newStreamHub(resolveOrigins(bridge.AllowedOrigins)),
	}
}

// Feed records one console line and pushes it to stream clients. The
// caller delivers lines in emission order; Feed preserves it.
func (s *Server) Feed(line string) {
	// Color escapes are a terminal concern; the bridge carries clean text.
	line = console.StripColors(line)
	s.lines.append(line)
	s.hub.broadcast(streamMessage{Type: "line", Text: line})
}

// PublishState pushes a session state change to stream clients.
func (s *Server) PublishState(state string, cause error) {
	msg := streamMessage{Type: "state", State: state}
	if cause != nil {
		msg.Error = cause.Error()
	}
	s.hub.broadcast(msg)
}

// Start initializes and starts the bridge server. It blocks until ctx
// is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	bridge := s.cfg.GetBridge()

	s.router = s.buildRouter()

	addr := fmt.Sprintf("%s:%d", bridge.BindAddress, bridge.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	if bridge.TLSEnabled {
		tlsConfig, err := s.buildTLSConfig(bridge)
		if err != nil {
			return err
		}
		s.httpServer.TLSConfig = tlsConfig
	}

	// SO_REUSEADDR so a restart can rebind the port immediately
	lc := network.ReuseAddrListenConfig()
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("bridge listen error: %w", err)
	}

	s.log.Info().Str("addr", addr).Bool("tls", bridge.TLSEnabled).Msg("bridge server starting")

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
		s.hub.close()
	}()

	if bridge.TLSEnabled {
		tlsListener := tls.NewListener(ln, s.httpServer.TLSConfig)
		err = s.httpServer.Serve(tlsListener)
	} else {
		err = s.httpServer.Serve(ln)
	}

	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("bridge server error: %w", err)
	}

	return nil
}

// buildTLSConfig loads the configured certificate pair, generating a
// self-signed one next to the config file when none is configured.
func (s *Server) buildTLSConfig(bridge config.BridgeConfig) (*tls.Config, error) {
	certFile := bridge.TLSCertFile
	keyFile := bridge.TLSKeyFile
	if certFile == "" || keyFile == "" {
		dir := filepath.Dir(s.cfg.Path())
		certFile = filepath.Join(dir, "bridge-cert.pem")
		keyFile = filepath.Join(dir, "bridge-key.pem")
	}

	if !util.FileExists(certFile) || !util.FileExists(keyFile) {
		s.log.Info().Str("cert", certFile).Msg("generating self-signed bridge certificate")
		if err := util.GenerateSelfSignedCert(certFile, keyFile); err != nil {
			return nil, fmt.Errorf("failed to generate bridge certificate: %w", err)
		}
	}

	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load bridge certificate: %w", err)
	}

	return &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cert},
	}, nil
}

// buildRouter creates the Gin router with all routes and middleware.
func (s *Server) buildRouter() *gin.Engine {
	bridge := s.cfg.GetBridge()

	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(RequestLogger(s.log))
	router.Use(SecurityHeaders())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     resolveOrigins(bridge.AllowedOrigins),
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false, // Must be false when AllowOrigins is "*"
		MaxAge:           12 * time.Hour,
	}))

	rateLimiter := NewRateLimiter(bridge.RateLimitRPS)
	router.Use(rateLimiter.Middleware())

	apiGroup := router.Group("/api")
	{
		apiGroup.GET("/status", s.handleStatus)
		apiGroup.POST("/command", s.handleCommand)
		apiGroup.GET("/lines", s.handleLines)
		apiGroup.GET("/stream", s.handleStream)
	}

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "endpoint not found"})
	})

	return router
}

// Stop gracefully stops the bridge server.
func (s *Server) Stop() error {
	s.hub.close()
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// resolveOrigins applies the open default for a loopback-bound bridge.
func resolveOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

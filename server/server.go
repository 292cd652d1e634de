// Package server exposes the motion controller over HTTP and streams joint
// state and log lines to browser viewers over a websocket.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.viam.com/rdk/logging"
	"go.viam.com/utils"

	"litesim"
	"litesim/scripts"
	"litesim/xarm"
)

const (
	// DefaultFeedInterval is how often the feed drains the control context.
	DefaultFeedInterval = 30 * time.Millisecond

	shutdownTimeout = 5 * time.Second
)

// ScanFunc probes subnet for arms answering on port.
type ScanFunc func(ctx context.Context, subnet string, port int) ([]string, error)

// Option configures a Server.
type Option func(*Server)

// WithScanner replaces the network scan used by GET /api/scan.
func WithScanner(fn ScanFunc) Option {
	return func(s *Server) { s.scan = fn }
}

// WithFeedInterval sets how often viewers are updated.
func WithFeedInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.feedInterval = d
		}
	}
}

// Server is the control API plus the viewer feed.
type Server struct {
	logger logging.Logger
	arm    *litesim.Controller
	runner *scripts.Runner
	hub    *Hub

	scan         ScanFunc
	feedInterval time.Duration
	upgrader     websocket.Upgrader
	engine       *gin.Engine

	workers sync.WaitGroup
}

// New builds a server around arm and runner. Call Start to begin feeding
// viewers, or ListenAndServe to do both.
func New(arm *litesim.Controller, runner *scripts.Runner, logger logging.Logger, opts ...Option) *Server {
	s := &Server{
		logger:       logger,
		arm:          arm,
		runner:       runner,
		hub:          NewHub(logger.Sublogger("hub")),
		feedInterval: DefaultFeedInterval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	s.scan = func(ctx context.Context, subnet string, port int) ([]string, error) {
		return xarm.Scan(ctx, subnet, port, s.logger)
	}
	for _, opt := range opts {
		opt(s)
	}

	s.engine = gin.New()
	s.engine.Use(gin.Recovery(), requestLogger(logger))
	s.engine.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Length", "Content-Type"},
		ExposeHeaders:   []string{"Content-Length"},
		MaxAge:          12 * time.Hour,
	}))
	s.SetupRoutes(s.engine)
	return s
}

// SetupRoutes registers the API and websocket routes on r.
func (s *Server) SetupRoutes(r *gin.Engine) {
	r.GET("/ws", s.handleWebsocket)

	api := r.Group("/api")
	{
		api.GET("/status", s.handleStatus)
		api.POST("/connect", s.handleConnect)
		api.POST("/disconnect", s.handleDisconnect)
		api.POST("/home", s.handleHome)
		api.POST("/joints", s.handleJog)
		api.POST("/speed", s.handleSpeed)
		api.POST("/reach", s.handleReach)
		api.GET("/scan", s.handleScan)

		api.GET("/scripts", s.handleScripts)
		api.POST("/scripts/:name/run", s.handleRun)
		api.POST("/restart", s.handleRestart)
		api.POST("/stop", s.handleStop)
		api.POST("/pause", s.handlePause)
		api.POST("/resume", s.handleResume)
	}
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Hub returns the viewer hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start runs the hub and the feed until ctx is done.
func (s *Server) Start(ctx context.Context) {
	s.workers.Add(2)
	utils.PanicCapturingGo(func() {
		defer s.workers.Done()
		s.hub.Run(ctx)
	})
	utils.PanicCapturingGo(func() {
		defer s.workers.Done()
		s.feed(ctx)
	})
}

// Wait blocks until the goroutines launched by Start have returned.
func (s *Server) Wait() {
	s.workers.Wait()
}

// ListenAndServe serves on addr until ctx is done, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		s.Wait()
	}()
	s.Start(ctx)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	utils.PanicCapturingGo(func() {
		errCh <- srv.ListenAndServe()
	})
	s.logger.Infof("Control server listening on %s", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("Control server stopped")
	return nil
}

func requestLogger(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debugf("%s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

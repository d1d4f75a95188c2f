package report

import (
	"context"
	"net/http"
	"time"

	"trader/internal/bus"
	"trader/internal/ledger"
	"trader/internal/obs"
	"trader/internal/perf"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

// Board is the data shown by the status server. Record and Health are called
// from request goroutines and must be safe for that.
type Board struct {
	Curve    *bus.Latest[ledger.Point]
	Record   func() (wins, losses int)
	Health   func() error
	Metrics  *obs.Metrics
	Analyzer perf.Analyzer
}

// Server exposes the board over HTTP.
type Server struct {
	engine *gin.Engine
	server *http.Server
	board  Board
}

func NewServer(addr string, board Board) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(loggerMiddleware())

	s := &Server{
		engine: engine,
		board:  board,
		server: &http.Server{
			Addr:              addr,
			Handler:           engine,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/healthz", s.healthz)
	s.engine.GET("/equity", s.equity)
	s.engine.GET("/summary", s.summary)
	s.engine.GET("/metrics", s.metrics)

	reg := prometheus.NewRegistry()
	reg.MustRegister(obs.NewCollector(s.board.Metrics))
	s.engine.GET("/metrics/prometheus", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
}

// Handler returns the routed engine.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logs.Infof("status board listening on %s", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return errors.Wrap(err, "status board")
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

func (s *Server) points() []ledger.Point {
	if s.board.Curve == nil {
		return []ledger.Point{}
	}
	return s.board.Curve.Values()
}

func (s *Server) healthz(c *gin.Context) {
	if s.board.Health != nil {
		if err := s.board.Health(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "halted", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) equity(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": s.points()})
}

func (s *Server) summary(c *gin.Context) {
	var wins, losses int
	if s.board.Record != nil {
		wins, losses = s.board.Record()
	}
	c.JSON(http.StatusOK, gin.H{"data": s.board.Analyzer.Analyze(s.points(), wins, losses)})
}

func (s *Server) metrics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": s.board.Metrics.Snapshot()})
}

func loggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logs.Infof("[board] %s %s %d %v", c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}

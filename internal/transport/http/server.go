// Package dashhttp serves the read-only dashboard: risk state, recent
// closed trades and Prometheus metrics. It exposes no mutating routes.
package dashhttp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"aitrader/internal/journal"
	"aitrader/internal/logger"
	"aitrader/internal/risk"
)

type Server struct {
	addr   string
	router *gin.Engine
}

type ServerConfig struct {
	Addr    string
	Symbol  string
	Risk    *risk.Manager
	Journal *journal.Store
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Risk == nil {
		return nil, errors.New("dashboard server requires a risk manager")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9985"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	api.GET("/status", func(c *gin.Context) {
		snap := cfg.Risk.StateSnapshot(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{
			"symbol": cfg.Symbol,
			"risk":   snap,
		})
	})
	api.GET("/trades", func(c *gin.Context) {
		if cfg.Journal == nil {
			c.JSON(http.StatusOK, gin.H{"trades": []journal.ClosedTrade{}})
			return
		}
		trades, err := cfg.Journal.Recent(c.Request.Context(), 50)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"trades": trades})
	})

	return &Server{addr: cfg.Addr, router: router}, nil
}

// Handler exposes the route tree, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start blocks until ctx is cancelled, then shuts the listener down.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("dashboard listening on %s", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debugf("http %s %s status=%d took=%s",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start).Round(time.Millisecond))
	}
}

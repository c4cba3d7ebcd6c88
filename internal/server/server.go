// Package server exposes an Executor over HTTP.
package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/middlewares/server/recovery"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/cloudwego/hertz/pkg/route"
	hertzslog "github.com/hertz-contrib/logger/slog"

	"github.com/hupe1980/vecgate"
	"github.com/hupe1980/vecgate/codec"
)

// Config configures the HTTP listener.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	ExitWait     time.Duration
	MaxBodyBytes int
}

// MetricsWriter renders metrics in the Prometheus text format.
type MetricsWriter interface {
	WriteText(w io.Writer) error
}

// Server routes HTTP requests to an Executor.
type Server struct {
	h       *server.Hertz
	exec    *vecgate.Executor
	codec   codec.Codec
	logger  *vecgate.Logger
	metrics MetricsWriter
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the access logger.
func WithLogger(l *vecgate.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics serves m on GET /metrics.
func WithMetrics(m MetricsWriter) Option {
	return func(s *Server) { s.metrics = m }
}

// WithCodec replaces the JSON codec.
func WithCodec(c codec.Codec) Option {
	return func(s *Server) {
		if c != nil {
			s.codec = c
		}
	}
}

// New creates a server for exec. It does not start listening.
func New(cfg Config, exec *vecgate.Executor, optFns ...Option) *Server {
	s := &Server{
		exec:   exec,
		codec:  codec.Default,
		logger: vecgate.NoopLogger(),
	}
	for _, fn := range optFns {
		fn(s)
	}

	opts := []config.Option{
		server.WithHostPorts(cfg.Addr),
		server.WithDisablePrintRoute(true),
	}
	if cfg.ReadTimeout > 0 {
		opts = append(opts, server.WithReadTimeout(cfg.ReadTimeout))
	}
	if cfg.WriteTimeout > 0 {
		opts = append(opts, server.WithWriteTimeout(cfg.WriteTimeout))
	}
	if cfg.ExitWait > 0 {
		opts = append(opts, server.WithExitWaitTime(cfg.ExitWait))
	}
	if cfg.MaxBodyBytes > 0 {
		opts = append(opts, server.WithMaxRequestBodySize(cfg.MaxBodyBytes))
	}

	s.h = server.New(opts...)
	s.h.Use(recovery.Recovery(), s.requestID(), s.accessLog())

	s.h.POST("/faiss/search", s.search)
	s.h.POST("/v1/search", s.search)
	s.h.GET("/v1/index", s.index)
	s.h.GET("/health", s.health)
	s.h.GET("/metrics", s.metricsHandler)

	return s
}

// Engine returns the route engine, for in-process tests.
func (s *Server) Engine() *route.Engine { return s.h.Engine }

// Spin serves until SIGINT or SIGTERM, then shuts down gracefully within
// the configured exit wait.
func (s *Server) Spin() { s.h.Spin() }

// Shutdown stops the server.
func (s *Server) Shutdown(ctx context.Context) error { return s.h.Shutdown(ctx) }

// SetHertzLogger routes hertz's own log output through slog at level.
func SetHertzLogger(w io.Writer, level *slog.LevelVar) {
	hlog.SetLogger(hertzslog.NewLogger(
		hertzslog.WithOutput(w),
		hertzslog.WithLevel(level),
	))
}

func (s *Server) search(ctx context.Context, c *app.RequestContext) {
	var batch vecgate.QueryBatch
	if err := s.codec.Unmarshal(c.Request.Body(), &batch); err != nil {
		s.writeError(c, consts.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	resp, err := s.exec.Execute(ctx, batch)
	if err != nil {
		status, msg := errorStatus(err)
		s.writeError(c, status, msg)
		return
	}
	s.write(c, consts.StatusOK, resp)
}

func (s *Server) index(_ context.Context, c *app.RequestContext) {
	s.write(c, consts.StatusOK, s.exec.Handle().Info())
}

func (s *Server) health(_ context.Context, c *app.RequestContext) {
	s.write(c, consts.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) metricsHandler(_ context.Context, c *app.RequestContext) {
	if s.metrics == nil {
		s.writeError(c, consts.StatusNotFound, "metrics are disabled")
		return
	}
	var buf bytes.Buffer
	if err := s.metrics.WriteText(&buf); err != nil {
		s.logger.Error("write metrics", "error", err)
		s.writeError(c, consts.StatusInternalServerError, "write metrics")
		return
	}
	c.Data(consts.StatusOK, "text/plain; version=0.0.4; charset=utf-8", buf.Bytes())
}

// errorStatus maps an Execute error onto an HTTP status and a client message.
func errorStatus(err error) (int, string) {
	var ve *vecgate.ValidationError
	switch {
	case errors.As(err, &ve):
		return consts.StatusBadRequest, ve.Message
	case errors.Is(err, vecgate.ErrOverloaded):
		return consts.StatusTooManyRequests, "too many requests"
	case errors.Is(err, vecgate.ErrExecutorClosed):
		return consts.StatusServiceUnavailable, "shutting down"
	case errors.Is(err, context.DeadlineExceeded):
		return consts.StatusGatewayTimeout, "search timed out"
	default:
		return consts.StatusInternalServerError, "search failed"
	}
}

func (s *Server) write(c *app.RequestContext, status int, v any) {
	b, err := s.codec.Marshal(v)
	if err != nil {
		s.logger.Error("encode response", "error", err)
		status = consts.StatusInternalServerError
		b = []byte(`{"error":"encode response"}`)
	}
	c.Data(status, "application/json; charset=utf-8", b)
}

func (s *Server) writeError(c *app.RequestContext, status int, msg string) {
	s.write(c, status, vecgate.ErrorResponse{Error: msg})
}

// Package httpapi exposes an event store over HTTP.
//
// Appends are accepted as json, reads are streamed back as newline
// delimited json so that arbitrarily large scans never have to be buffered.
package httpapi

import (
	"context"
	"errors"
	"iter"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	eventstore "github.com/aneshas/cockroach-eventstore"
)

// Store represents the event store operations served over HTTP.
// *eventstore.EventStore implements it
type Store interface {
	AppendEvents(
		ctx context.Context,
		requests []eventstore.AppendRequest,
		opts ...eventstore.AppendOpt) ([]eventstore.Event, error)

	GetEvents(
		ctx context.Context,
		fromEventID int64,
		opts ...eventstore.ReadOpt) iter.Seq2[eventstore.Event, error]

	GetEventsByStream(
		ctx context.Context,
		stream eventstore.StreamIdentity,
		fromSequenceNumber int64,
		opts ...eventstore.ReadOpt) iter.Seq2[eventstore.Event, error]

	GetEventsByStreamType(
		ctx context.Context,
		streamType eventstore.StreamType,
		fromEventID int64,
		opts ...eventstore.ReadOpt) iter.Seq2[eventstore.Event, error]
}

// Option represents server option
type Option func(*Server)

// WithJWTSecret requires every /api request to carry a bearer token signed
// with secret (see GenerateToken)
func WithJWTSecret(secret string) Option {
	return func(s *Server) {
		s.jwtSecret = secret
	}
}

// WithLogger sets the logger request failures are reported to
func WithLogger(l eventstore.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithAccessLog enables gin's request log
func WithAccessLog() Option {
	return func(s *Server) {
		s.accessLog = true
	}
}

// Server is the event store HTTP server
type Server struct {
	router *gin.Engine
	store  Store
	logger eventstore.Logger

	jwtSecret string
	accessLog bool
}

// NewServer constructs a server serving store
func NewServer(store Store, opts ...Option) *Server {
	s := &Server{
		store:  store,
		logger: eventstore.NoOpLogger{},
	}

	for _, opt := range opts {
		opt(s)
	}

	s.router = gin.New()
	s.router.Use(recovery(s.logger))

	if s.accessLog {
		s.router.Use(gin.Logger())
	}

	s.setupRoutes()

	return s
}

// Handler returns the http.Handler serving the API
func (s *Server) Handler() http.Handler { return s.router }

// Run serves the API on addr until ctx is cancelled, after which in-flight
// requests are given shutdownTimeout to complete
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)

	go func() {
		errc <- srv.ListenAndServe()
	}()

	s.logger.Info(ctx, "http api listening", "addr", addr)

	select {
	case err := <-errc:
		return err

	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := s.router.Group("/api/v1")

	if s.jwtSecret != "" {
		api.Use(jwtAuth(s.jwtSecret))
	}

	api.POST("/events", s.handleAppendEvents())
	api.GET("/events", s.handleGetEvents())
	api.GET("/streams/:context/:name/:id/events", s.handleGetEventsByStream())
	api.GET("/stream-types/:context/:name/events", s.handleGetEventsByStreamType())
}

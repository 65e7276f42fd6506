// Package server exposes the task service over HTTP.
package server

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/tasktree/internal/service"
)

// Server wires the Echo engine, middleware, and routes around a Service.
type Server struct {
	echo *echo.Echo
	svc  *service.Service
	log  zerolog.Logger
}

// New builds the HTTP server. Every request gets a UUID request id, one
// structured access-log line, panic recovery, and permissive CORS.
func New(svc *service.Service, log zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogMethod:    true,
		LogURI:       true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Info().
				Str("request_id", v.RequestID).
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Err(v.Error).
				Msg("request")
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s := &Server{echo: e, svc: svc, log: log}
	s.routes()
	return s
}

// routes registers the HTTP surface.
//
//	GET    /tasks                    root tasks, hydrated
//	POST   /tasks                    create, optionally under ?parent
//	DELETE /tasks                    delete a subtree, id from query or body
//	GET    /tasks/:id                one task with its whole tree
//	POST   /tasks/:id/toggle         flip done, cascading on activation
//	POST   /tasks/:id/change-parent  move a subtree
//	GET    /healthz                  liveness plus store ping
func (s *Server) routes() {
	s.echo.GET("/tasks", s.listRoots)
	s.echo.POST("/tasks", s.createTask)
	s.echo.DELETE("/tasks", s.deleteTask)
	s.echo.GET("/tasks/:id", s.getTask)
	s.echo.POST("/tasks/:id/toggle", s.toggleTask)
	s.echo.POST("/tasks/:id/change-parent", s.changeParent)
	s.echo.GET("/healthz", s.health)
}

// Start begins serving on addr and blocks until Shutdown.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the routing tree for in-process tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

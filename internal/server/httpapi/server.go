// Package httpapi exposes the user and avatar operations over HTTP (gin).
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/usersvc/internal/logging"
	"github.com/dmitrijs2005/usersvc/internal/server/models"
	"github.com/dmitrijs2005/usersvc/internal/server/services"
)

const shutdownTimeout = 10 * time.Second

// AvatarCache is the avatar side of the service layer.
type AvatarCache interface {
	GetOrPopulate(ctx context.Context, userID int64) (*services.AvatarResult, error)
	Delete(ctx context.Context, userID int64) (bool, error)
}

// Users is the user side of the service layer.
type Users interface {
	Create(ctx context.Context, nu models.NewUser) (*services.CreateResult, error)
	FindOne(ctx context.Context, id int64) (*models.User, error)
}

// Options configures a Server.
type Options struct {
	Address        string
	RequestTimeout time.Duration
	// SecretKey enables the bearer guard on mutating routes when non-empty.
	SecretKey string
}

type Server struct {
	address   string
	timeout   time.Duration
	jwtSecret []byte
	avatars   AvatarCache
	users     Users
	logger    logging.Logger
	router    *gin.Engine
}

func NewServer(opts Options, l logging.Logger, us Users, as AvatarCache) *Server {
	s := &Server{
		address: opts.Address,
		timeout: opts.RequestTimeout,
		avatars: as,
		users:   us,
		logger:  l.With("module", "http_server"),
		router:  gin.New(),
	}
	if opts.SecretKey != "" {
		s.jwtSecret = []byte(opts.SecretKey)
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router
	r.Use(gin.Recovery())
	r.Use(s.requestIDMiddleware())
	r.Use(s.loggingMiddleware())
	r.Use(s.timeoutMiddleware())

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })

	api := r.Group("/api/users")
	{
		api.GET("/:userId", s.getUser)
		api.GET("/:userId/avatar", s.getAvatar)

		guarded := api.Group("")
		guarded.Use(s.bearerAuthMiddleware())
		guarded.POST("", s.createUser)
		guarded.DELETE("/:userId/avatar", s.deleteAvatar)
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "http_server_stopping")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "http_server_shutdown_failed", "error", err)
		}
	}()

	s.logger.Info(ctx, "http_server_starting", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

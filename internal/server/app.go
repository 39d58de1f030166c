// Package server wires the user service together and runs it until the
// process is signalled.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/usersvc/internal/logging"
	"github.com/dmitrijs2005/usersvc/internal/netx"
	"github.com/dmitrijs2005/usersvc/internal/server/blobstore"
	"github.com/dmitrijs2005/usersvc/internal/server/config"
	"github.com/dmitrijs2005/usersvc/internal/server/events"
	"github.com/dmitrijs2005/usersvc/internal/server/fetcher"
	"github.com/dmitrijs2005/usersvc/internal/server/httpapi"
	"github.com/dmitrijs2005/usersvc/internal/server/identity"
	"github.com/dmitrijs2005/usersvc/internal/server/notify"
	"github.com/dmitrijs2005/usersvc/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/usersvc/internal/server/services"
)

var openDB = func(dsn string) (*sql.DB, error) { return sql.Open("pgx", dsn) }

type App struct {
	config    *config.Config
	logger    logging.Logger
	db        *sql.DB
	publisher events.Publisher
	avatars   *services.AvatarService
	http      *httpapi.Server
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.New(c.LogLevel, os.Stdout)

	db, err := openDB(c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	repos := repomanager.NewPostgresRepositoryManager()
	if err := repos.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	blobs, err := newBlobStore(ctx, c)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("blob store: %w", err)
	}

	publisher, err := newPublisher(ctx, c, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("event bus: %w", err)
	}

	sink, err := newSink(c, logger)
	if err != nil {
		db.Close()
		publisher.Close()
		return nil, fmt.Errorf("mail: %w", err)
	}

	directory := identity.New(netx.NewHTTPClient(c.IdentityTimeout), identity.Config{
		BaseURL:   c.IdentityBaseURL,
		APIKey:    c.IdentityAPIKey,
		RateLimit: c.IdentityRateLimit,
		Burst:     c.IdentityBurst,
	})
	images := fetcher.New(netx.NewHTTPClient(c.IdentityTimeout), c.MaxAvatarBytes)

	as := services.NewAvatarService(db, repos, blobs, directory, images, logger)
	us := services.NewUserService(db, repos, directory, sink, publisher, logger)

	gin.SetMode(gin.ReleaseMode)
	hs := httpapi.NewServer(httpapi.Options{
		Address:        c.HTTPAddr,
		RequestTimeout: c.RequestTimeout,
		SecretKey:      c.SecretKey,
	}, logger, us, as)

	return &App{
		config:    c,
		logger:    logger,
		db:        db,
		publisher: publisher,
		avatars:   as,
		http:      hs,
	}, nil
}

func newBlobStore(ctx context.Context, c *config.Config) (blobstore.Store, error) {
	switch c.BlobBackend {
	case config.BlobBackendFS:
		return blobstore.NewFileStore(c.StorageRoot)
	case config.BlobBackendS3:
		return blobstore.NewS3Store(ctx, blobstore.S3Config{
			AccessKey:    c.S3AccessKey,
			SecretKey:    c.S3SecretKey,
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
		})
	default:
		return nil, fmt.Errorf("unknown blob backend %q", c.BlobBackend)
	}
}

func newPublisher(ctx context.Context, c *config.Config, l logging.Logger) (events.Publisher, error) {
	switch c.EventBus {
	case config.EventBusAMQP:
		return events.NewAMQPPublisher(c.AMQPURL, c.AMQPExchange)
	case config.EventBusRedis:
		return events.NewRedisPublisher(ctx, c.RedisDSN, c.RedisStreamPrefix)
	case config.EventBusNone:
		return events.NewDiscard(l.With("module", "events")), nil
	default:
		return nil, fmt.Errorf("unknown event bus %q", c.EventBus)
	}
}

func newSink(c *config.Config, l logging.Logger) (notify.Sink, error) {
	if c.SMTPHost == "" {
		return notify.NewLogSink(l.With("module", "mail")), nil
	}
	return notify.NewSMTPSink(notify.SMTPConfig{
		Host:     c.SMTPHost,
		Port:     c.SMTPPort,
		User:     c.SMTPUser,
		Password: c.SMTPPassword,
		From:     c.SMTPFrom,
	})
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.http.Run(ctx); err != nil {
		app.logger.Error(ctx, "http_server_failed", "error", err)
		cancelFunc()
	}
}

// collectOrphans sweeps blobs without metadata every interval until ctx ends.
func (app *App) collectOrphans(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := app.avatars.CollectOrphans(ctx); err != nil && !errors.Is(err, context.Canceled) {
				app.logger.Warn(ctx, "orphan_gc_failed", "error", err)
			}
		}
	}
}

func (app *App) close(ctx context.Context) {
	if err := app.publisher.Close(); err != nil {
		app.logger.Warn(ctx, "event_bus_close_failed", "error", err)
	}
	if err := app.db.Close(); err != nil {
		app.logger.Warn(ctx, "db_close_failed", "error", err)
	}
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "app_starting", "address", app.config.HTTPAddr, "blob_backend", app.config.BlobBackend, "event_bus", app.config.EventBus)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.collectOrphans(ctx, app.config.GCInterval)
	}()

	wg.Wait()

	app.close(context.WithoutCancel(ctx))
	app.logger.Info(ctx, "app_stopped")
}

// Package apirunner wires the registry API together and serves it over HTTP.
package apirunner

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/padronlabs/padron/images"
	"github.com/padronlabs/padron/importer"
	"github.com/padronlabs/padron/models"
	"github.com/padronlabs/padron/postgres"
	"github.com/padronlabs/padron/runner"
	"github.com/padronlabs/padron/s3uploader"
	"github.com/padronlabs/padron/sqlite"
	"github.com/padronlabs/padron/warehouse"
	"github.com/padronlabs/padron/web"
	"github.com/padronlabs/padron/web/auth"
	"github.com/padronlabs/padron/web/handlers"
	"github.com/padronlabs/padron/web/middleware"
)

const shutdownTimeout = 10 * time.Second

type apirunner struct {
	srv    *http.Server
	mirror *warehouse.Mirror
	logger *zap.Logger
	cfg    *runner.Config
}

func New(cfg *runner.Config) (runner.Runner, error) {
	logger, err := newLogger(cfg.Debug)
	if err != nil {
		return nil, err
	}

	repo, err := newRepository(cfg)
	if err != nil {
		return nil, err
	}

	mirror, err := newMirror(cfg, logger)
	if err != nil {
		return nil, err
	}

	svc := web.NewService(repo, mirror, logger)

	provider, err := auth.NewClerkProvider(cfg.ClerkAPIKey)
	if err != nil {
		return nil, err
	}

	deps := handlers.Dependencies{
		Logger:    logger,
		Service:   svc,
		Importer:  importer.New(svc, newImageResolver(cfg, logger), logger),
		Provider:  provider,
		Auth:      auth.NewMiddleware(provider, logger),
		Telemetry: runner.Telemetry(),
	}

	router := mux.NewRouter()
	handlers.NewHandlerGroup(deps).RegisterRoutes(router)

	handler := middleware.Chain(router,
		middleware.CORS(cfg.AllowedOrigins),
		middleware.SecurityHeaders,
		middleware.RequestLogger(logger),
		middleware.Recover(logger),
	)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ans := apirunner{
		srv:    srv,
		mirror: mirror,
		logger: logger,
		cfg:    cfg,
	}

	return &ans, nil
}

func (a *apirunner) Run(ctx context.Context) error {
	egroup, ctx := errgroup.WithContext(ctx)

	egroup.Go(func() error {
		a.logger.Info("starting registry API", zap.String("addr", a.cfg.Addr))

		if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	egroup.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		return a.srv.Shutdown(shutdownCtx)
	})

	return egroup.Wait()
}

func (a *apirunner) Close(context.Context) error {
	if a.mirror != nil {
		if err := a.mirror.Close(); err != nil {
			a.logger.Warn("closing warehouse mirror", zap.Error(err))
		}
	}

	return a.logger.Sync()
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}

	return zap.NewProduction()
}

func newRepository(cfg *runner.Config) (models.UserRepository, error) {
	if cfg.Dsn != "" {
		db, err := postgres.Open(cfg.Dsn)
		if err != nil {
			return nil, err
		}

		return postgres.NewUserRepository(db), nil
	}

	if cfg.DataFolder == "" {
		return nil, fmt.Errorf("data folder is required when no dsn is set")
	}

	if err := os.MkdirAll(cfg.DataFolder, os.ModePerm); err != nil {
		return nil, err
	}

	return sqlite.New(filepath.Join(cfg.DataFolder, "users.db"))
}

func newMirror(cfg *runner.Config, logger *zap.Logger) (*warehouse.Mirror, error) {
	if cfg.WarehouseDsn == "" {
		return warehouse.NewMirror(warehouse.NewNoopSink(), logger), nil
	}

	sink, err := warehouse.NewPostgresSink(cfg.WarehouseDsn)
	if err != nil {
		return nil, err
	}

	return warehouse.NewMirror(sink, logger), nil
}

func newImageResolver(cfg *runner.Config, logger *zap.Logger) importer.ImageResolver {
	if cfg.AwsAccessKey == "" || cfg.AwsSecretKey == "" || cfg.AwsRegion == "" || cfg.S3Bucket == "" {
		logger.Warn("S3 is not configured, imported profile images will be dropped")

		return disabledResolver{}
	}

	uploader := s3uploader.New(cfg.AwsAccessKey, cfg.AwsSecretKey, cfg.AwsRegion, cfg.S3PublicBaseURL)

	return images.NewIngestor(uploader, cfg.S3Bucket, logger)
}

// disabledResolver stands in when no object storage is configured. Every
// image URL is treated as unreachable, so rows import without an image.
type disabledResolver struct{}

func (disabledResolver) ValidateURL(context.Context, string) bool { return false }

func (disabledResolver) Ingest(context.Context, string) (string, error) { return "", nil }

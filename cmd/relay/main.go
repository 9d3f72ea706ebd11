package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	cloudstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/qrmerch/relay/internal/artifact"
	"github.com/qrmerch/relay/internal/handlers"
	"github.com/qrmerch/relay/internal/platform/auth"
	"github.com/qrmerch/relay/internal/platform/config"
	"github.com/qrmerch/relay/internal/platform/observability"
	platformstorage "github.com/qrmerch/relay/internal/platform/storage"
	"github.com/qrmerch/relay/internal/printful"
	filerepo "github.com/qrmerch/relay/internal/repositories/file"
	"github.com/qrmerch/relay/internal/services"
)

const userAgent = "qrmerch-relay/1.0"

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("relay")

	cfg, err := config.Load(config.WithEnvFile(".env"))
	if err != nil {
		var validation *config.ValidationError
		if errors.As(err, &validation) {
			logger.Fatal("invalid configuration", zap.Strings("fields", validation.Fields()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	snapshotRepo, err := filerepo.NewSnapshotRepository(cfg.Snapshot.Path)
	if err != nil {
		logger.Fatal("failed to initialise snapshot repository", zap.Error(err))
	}

	providerClient, err := printful.NewClient(cfg.Printful.APIKey,
		printful.WithBaseURL(cfg.Printful.BaseURL),
		printful.WithRequestTimeout(cfg.Printful.RequestTimeout),
	)
	if err != nil {
		logger.Fatal("failed to initialise provider client", zap.Error(err))
	}

	syncService, err := services.NewSyncService(services.SyncServiceDeps{
		Catalog:           providerClient,
		Snapshots:         snapshotRepo,
		Logger:            logger.Named("sync"),
		PageSize:          cfg.Printful.CatalogPageSize,
		DetailConcurrency: cfg.Printful.DetailConcurrency,
	})
	if err != nil {
		logger.Fatal("failed to initialise sync service", zap.Error(err))
	}

	if err := syncService.Restore(ctx); err != nil {
		logger.Warn("snapshot restore failed, starting empty", zap.Error(err))
	}

	uploader, closeStorage, err := newUploader(ctx, logger, cfg.Artifact)
	if err != nil {
		logger.Fatal("failed to initialise artifact uploader", zap.Error(err))
	}
	defer closeStorage()

	generator, err := artifact.NewGenerator(uploader, artifact.WithPathPrefix(cfg.Artifact.PathPrefix))
	if err != nil {
		logger.Fatal("failed to initialise artifact generator", zap.Error(err))
	}

	submissionService, err := services.NewSubmissionService(services.SubmissionServiceDeps{
		Orders: providerClient,
		Logger: logger.Named("submission"),
	})
	if err != nil {
		logger.Fatal("failed to initialise submission service", zap.Error(err))
	}

	relayService, err := services.NewRelayService(services.RelayServiceDeps{
		Snapshots: syncService,
		Submitter: submissionService,
		Artifacts: generator,
		Guard:     services.NewDedupeGuard(),
		Logger:    logger.Named("relay"),
	})
	if err != nil {
		logger.Fatal("failed to initialise relay service", zap.Error(err))
	}

	verifier := auth.NewWebhookVerifier(cfg.Webhook.SigningSecret,
		auth.WithSignatureHeader(cfg.Webhook.SignatureHeader),
	)

	syncCtx, syncCancel := context.WithCancel(context.Background())
	var syncWG sync.WaitGroup
	syncWG.Add(1)
	go func() {
		defer syncWG.Done()
		runCatalogSyncLoop(syncCtx, logger.Named("sync"), syncService, cfg.Printful.SyncInterval)
	}()

	webhookHandlers := handlers.NewWebhookHandlers(relayService, logger.Named("webhooks"))
	adminHandlers := handlers.NewAdminHandlers(syncService, logger.Named("admin"))
	healthHandlers := handlers.NewHealthHandlers()

	router := handlers.NewRouter(
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(logger.Named("http")),
			observability.RecoveryMiddleware(logger.Named("http")),
			observability.RequestLoggerMiddleware(),
		),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithWebhookMiddlewares(verifier.RequireSignature()),
		handlers.WithWebhookRoutes(webhookHandlers.Routes),
		handlers.WithAdminRoutes(adminHandlers.Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("qrmerch relay listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	syncCancel()
	syncWG.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// runCatalogSyncLoop performs an initial catalog rebuild and then refreshes the
// snapshot at the configured interval until the context is cancelled.
func runCatalogSyncLoop(ctx context.Context, logger *zap.Logger, svc services.SyncService, interval time.Duration) {
	rebuild := func() {
		runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
		defer cancel()
		snapshot, err := svc.Rebuild(runCtx)
		if err != nil {
			logger.Warn("catalog rebuild failed", zap.Error(err))
			return
		}
		logger.Info("catalog snapshot rebuilt",
			zap.Int("sku_count", len(snapshot.BySKU)),
			zap.Int("external_count", len(snapshot.ByExternalID)),
		)
	}

	rebuild()

	if interval <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rebuild()
		case <-ctx.Done():
			return
		}
	}
}

// newUploader selects the artifact host: Cloud Storage when a bucket is
// configured, otherwise an in-memory uploader suitable for local development.
func newUploader(ctx context.Context, logger *zap.Logger, cfg config.ArtifactConfig) (platformstorage.Uploader, func(), error) {
	if cfg.Bucket == "" {
		logger.Warn("no artifact bucket configured, using in-memory uploader")
		return platformstorage.NewMemoryUploader(""), func() {}, nil
	}

	client, err := cloudstorage.NewClient(ctx, option.WithUserAgent(userAgent))
	if err != nil {
		return nil, nil, fmt.Errorf("storage client: %w", err)
	}

	var opts []platformstorage.GCSOption
	if cfg.PublicBaseURL != "" {
		opts = append(opts, platformstorage.WithPublicBaseURL(cfg.PublicBaseURL))
	}
	uploader, err := platformstorage.NewGCSUploader(client, cfg.Bucket, opts...)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}

	closeFn := func() {
		if err := client.Close(); err != nil {
			logger.Warn("storage close error", zap.Error(err))
		}
	}
	return uploader, closeFn, nil
}

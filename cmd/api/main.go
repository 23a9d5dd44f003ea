package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	cloudstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/luxeplan/api/internal/di"
	"github.com/luxeplan/api/internal/handlers"
	"github.com/luxeplan/api/internal/payments"
	"github.com/luxeplan/api/internal/platform/auth"
	"github.com/luxeplan/api/internal/platform/config"
	pfirestore "github.com/luxeplan/api/internal/platform/firestore"
	"github.com/luxeplan/api/internal/platform/jobs"
	"github.com/luxeplan/api/internal/platform/observability"
	"github.com/luxeplan/api/internal/platform/pagination"
	"github.com/luxeplan/api/internal/platform/requestctx"
	"github.com/luxeplan/api/internal/platform/secrets"
	platformstorage "github.com/luxeplan/api/internal/platform/storage"
	"github.com/luxeplan/api/internal/repositories"
	firestoreRepo "github.com/luxeplan/api/internal/repositories/firestore"
	"github.com/luxeplan/api/internal/services"
)

var requiredSecrets = []string{
	"PSP.StripeAPIKey",
	"PSP.StripeWebhookSecret",
}

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = requestctx.WithLogger(ctx, logger)

	lookup, err := config.Lookup()
	if err != nil {
		logger.Fatal("failed to read environment values", zap.Error(err))
	}

	fetcher, err := newSecretFetcher(ctx, logger, lookup)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
		config.WithRequiredSecrets(requiredSecrets...),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	buildInfo := buildInfoFromEnv(lookup, cfg, startedAt)

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	if _, err := firestoreProvider.Client(ctx); err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}
	registry, err := firestoreRepo.NewRegistry(firestoreProvider, secretManagerCheck(fetcher))
	if err != nil {
		logger.Fatal("failed to initialise repositories", zap.Error(err))
	}

	storageClient, err := cloudstorage.NewClient(ctx)
	if err != nil {
		logger.Fatal("failed to initialise storage client", zap.Error(err))
	}
	defer func() {
		if err := storageClient.Close(); err != nil {
			logger.Warn("storage close error", zap.Error(err))
		}
	}()
	uploads := newUploadSigner(logger, cfg, storageClient)

	notifier, stopNotifier := newNotifier(ctx, logger, cfg)
	defer stopNotifier()

	paymentsLogger := logger.Named("payments")
	stripeProvider, err := payments.NewStripeProvider(payments.StripeProviderConfig{
		APIKey:        cfg.PSP.StripeAPIKey,
		WebhookSecret: cfg.PSP.StripeWebhookSecret,
		Timeout:       cfg.Payments.Timeout,
		Logger: func(_ context.Context, event string, fields map[string]any) {
			zFields := make([]zap.Field, 0, len(fields)+1)
			zFields = append(zFields, zap.String("event", event))
			for k, v := range fields {
				zFields = append(zFields, zap.Any(k, v))
			}
			paymentsLogger.Debug("stripe log", zFields...)
		},
		Clock: time.Now,
	})
	if err != nil {
		logger.Fatal("failed to initialise stripe payment provider", zap.Error(err))
	}

	rt := di.Runtime{
		Notifier:        notifier,
		PaymentProvider: stripeProvider,
		Metrics:         observability.NewWorkflowMetrics(nil, logger.Named("metrics")),
		Build:           buildInfo,
		Logger:          observability.ServiceLogger(logger.Named("services")),
		Clock:           time.Now,
	}
	if uploads != nil {
		rt.Uploads = uploads
	}
	container, err := di.NewContainer(cfg, registry, rt)
	if err != nil {
		logger.Fatal("failed to initialise services", zap.Error(err))
	}
	svc := container.Services

	firebaseVerifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
	if err != nil {
		logger.Fatal("failed to initialise firebase verifier", zap.Error(err))
	}
	authenticator := auth.NewAuthenticator(firebaseVerifier,
		auth.WithRoleLookup(svc.Users),
		auth.WithDecoratorLookup(svc.Users),
	)

	pages := pagination.Options{
		DefaultPageSize: cfg.Pagination.DefaultSize,
		MaxPageSize:     cfg.Pagination.MaxSize,
	}
	userHandlers := handlers.NewUserHandlers(authenticator, svc.Users, pages)
	catalogHandlers := handlers.NewCatalogHandlers(authenticator, svc.Catalog, pages)
	bookingHandlers := handlers.NewBookingHandlers(authenticator, svc.Bookings, pages)
	decoratorHandlers := handlers.NewDecoratorHandlers(authenticator, svc.Decorators, pages)
	paymentHandlers := handlers.NewPaymentHandlers(authenticator, svc.Payments, pages)
	couponHandlers := handlers.NewCouponHandlers(authenticator, svc.Coupons, pages)
	dashboardHandlers := handlers.NewDashboardHandlers(authenticator, svc.Reports)
	webhookHandlers := handlers.NewWebhookHandlers(svc.Payments)

	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthBuildInfo(buildInfo),
		handlers.WithHealthSystemService(svc.System),
	)

	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.EnvironmentMiddleware(cfg.Server.Environment),
		observability.TraceMiddleware(traceProjectID(cfg)),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(),
	}

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithUserRoutes(userHandlers.Routes),
		handlers.WithServiceRoutes(catalogHandlers.Routes),
		handlers.WithBookingRoutes(bookingHandlers.Routes),
		handlers.WithDecoratorRoutes(decoratorHandlers.Routes),
		handlers.WithDecoratorWorkspaceRoutes(bookingHandlers.DecoratorRoutes, dashboardHandlers.DecoratorRoutes),
		handlers.WithPaymentRoutes(paymentHandlers.Routes),
		handlers.WithCouponRoutes(couponHandlers.Routes),
		handlers.WithAdminRoutes(decoratorHandlers.AdminRoutes, dashboardHandlers.AdminRoutes),
		handlers.WithWebhookRoutes(webhookHandlers.Routes),
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
		serverLogger.Info("luxeplan api listening", zap.String("environment", cfg.Server.Environment))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	if err := container.Close(shutdownCtx); err != nil {
		logger.Warn("container close error", zap.Error(err))
	}
}

func buildInfoFromEnv(lookup func(string) (string, bool), cfg config.Config, started time.Time) services.BuildInfo {
	version, _ := lookup("API_BUILD_VERSION")
	version = strings.TrimSpace(version)
	if version == "" {
		version = "dev"
	}
	environment := strings.TrimSpace(cfg.Server.Environment)
	if environment == "" {
		environment = "local"
	}
	return services.BuildInfo{
		Version:     version,
		Environment: environment,
		StartedAt:   started,
	}
}

// secretManagerCheck probes Secret Manager reachability. A missing probe secret still proves
// the API answered.
func secretManagerCheck(fetcher *secrets.Fetcher) repositories.DependencyCheck {
	const secretHealthReference = "secret://system/healthz?version=latest"
	return repositories.DependencyCheck{
		Name:    "secretManager",
		Timeout: time.Second,
		Check: func(ctx context.Context) error {
			_, err := fetcher.Resolve(ctx, secretHealthReference)
			if err == nil {
				return nil
			}
			if st, ok := status.FromError(err); ok && st.Code() == codes.NotFound {
				return nil
			}
			return err
		},
	}
}

// newUploadSigner prefers IAM signBlob through the configured service account and falls back
// to a local key file. Nil disables catalog image uploads.
func newUploadSigner(logger *zap.Logger, cfg config.Config, storageClient *cloudstorage.Client) *platformstorage.Client {
	if strings.TrimSpace(cfg.Storage.AssetsBucket) == "" {
		logger.Warn("storage: assets bucket not configured; uploads disabled")
		return nil
	}
	if email := strings.TrimSpace(cfg.Storage.SignerEmail); email != "" {
		client, err := platformstorage.NewIAMClient(storageClient, email)
		if err != nil {
			logger.Warn("storage: iam signer unavailable; uploads disabled", zap.Error(err))
			return nil
		}
		return client
	}
	if path := strings.TrimSpace(cfg.Firebase.CredentialsFile); path != "" {
		signer, err := platformstorage.NewServiceAccountSignerFromFile(path)
		if err != nil {
			logger.Warn("storage: credentials signer unavailable; uploads disabled", zap.Error(err))
			return nil
		}
		client, err := platformstorage.NewClient(signer)
		if err != nil {
			logger.Warn("storage: signed url client unavailable; uploads disabled", zap.Error(err))
			return nil
		}
		return client
	}
	logger.Warn("storage: no signer configured; uploads disabled")
	return nil
}

// newNotifier publishes to Pub/Sub when a topic is configured and logs otherwise. The returned
// stop function flushes pending publishes and releases the client.
func newNotifier(ctx context.Context, logger *zap.Logger, cfg config.Config) (services.Notifier, func()) {
	notifyLogger := logger.Named("notifications")
	topicName := strings.TrimSpace(cfg.Notifications.Topic)
	if topicName == "" {
		notifyLogger.Info("notifications: no topic configured; logging only")
		return jobs.NewLogNotifier(notifyLogger), func() {}
	}
	projectID := strings.TrimSpace(cfg.Notifications.ProjectID)
	if projectID == "" {
		projectID = traceProjectID(cfg)
	}
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		notifyLogger.Warn("notifications: pubsub unavailable; logging only", zap.Error(err))
		return jobs.NewLogNotifier(notifyLogger), func() {}
	}
	publisher, err := jobs.NewPubSubNotifier(client.Topic(topicName))
	if err != nil {
		_ = client.Close()
		notifyLogger.Warn("notifications: pubsub notifier unavailable; logging only", zap.Error(err))
		return jobs.NewLogNotifier(notifyLogger), func() {}
	}
	return publisher, func() {
		publisher.Stop()
		if err := client.Close(); err != nil {
			notifyLogger.Warn("pubsub close error", zap.Error(err))
		}
	}
}

func traceProjectID(cfg config.Config) string {
	if id := strings.TrimSpace(cfg.Firebase.ProjectID); id != "" {
		return id
	}
	return strings.TrimSpace(cfg.Firestore.ProjectID)
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, lookup func(string) (string, bool)) (*secrets.Fetcher, error) {
	get := func(key string) string {
		value, _ := lookup(key)
		return strings.TrimSpace(value)
	}

	project := get("API_SECRETS_PROJECT_ID")
	if project == "" {
		project = get("API_FIREBASE_PROJECT_ID")
	}
	fallbackPath := get("API_SECRETS_FALLBACK_FILE")
	if fallbackPath == "" {
		fallbackPath = ".secrets.local"
	}

	opts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithFallbackFile(fallbackPath),
	}
	if project != "" {
		opts = append(opts, secrets.WithProject(project))
	}
	return secrets.NewFetcher(ctx, opts...)
}

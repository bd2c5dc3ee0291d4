package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/flowlane-labs/flowlane-go/internal/artifacts"
	"github.com/flowlane-labs/flowlane-go/internal/backend"
	"github.com/flowlane-labs/flowlane-go/internal/platform/auditlog"
	"github.com/flowlane-labs/flowlane-go/internal/platform/auth"
	"github.com/flowlane-labs/flowlane-go/internal/platform/env"
	"github.com/flowlane-labs/flowlane-go/internal/platform/httpserver"
	"github.com/flowlane-labs/flowlane-go/internal/platform/objectstore"
	"github.com/flowlane-labs/flowlane-go/internal/platform/postgres"
	"github.com/flowlane-labs/flowlane-go/internal/repo"
	repomem "github.com/flowlane-labs/flowlane-go/internal/repo/memory"
	repopg "github.com/flowlane-labs/flowlane-go/internal/repo/postgres"
	"github.com/flowlane-labs/flowlane-go/internal/trigger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx := context.Background()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := env.String("FLOWLANE_HTTP_ADDR", ":8080")
	shutdownTimeout, err := env.Duration("FLOWLANE_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		logger.Error("invalid env", "error", err)
		os.Exit(2)
	}

	if _, err := loadOpenAPIDoc(ctx); err != nil {
		logger.Error("invalid openapi document", "error", err)
		os.Exit(2)
	}

	storeMode := strings.ToLower(env.String("FLOWLANE_STORE", "postgres"))

	var (
		templates repo.TemplateStore
		runs      repo.RunStore
		publisher templatePublisher
		resolver  artifacts.Resolver
		audit     auditlog.QueryRower
		checks    []httpserver.ReadinessCheck
	)

	switch storeMode {
	case "postgres":
		dbCfg, err := postgres.ConfigFromEnv()
		if err != nil {
			logger.Error("invalid database config", "error", err)
			os.Exit(2)
		}
		db, err := postgres.Open(ctx, dbCfg)
		if err != nil {
			logger.Error("database unavailable", "error", err)
			os.Exit(1)
		}
		defer func() { _ = db.Close() }()

		storeCfg, err := objectstore.ConfigFromEnv()
		if err != nil {
			logger.Error("invalid object store config", "error", err)
			os.Exit(2)
		}
		storeClient, err := objectstore.NewMinIOClient(storeCfg)
		if err != nil {
			logger.Error("object store client init failed", "error", err)
			os.Exit(2)
		}
		startupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := objectstore.EnsureBucket(startupCtx, storeClient, storeCfg); err != nil {
			cancel()
			logger.Error("object store unavailable", "error", err)
			os.Exit(1)
		}
		cancel()

		artifactResolver, err := artifacts.NewObjectStoreResolver(storeClient, storeCfg.BucketArtifacts)
		if err != nil {
			logger.Error("artifact resolver init failed", "error", err)
			os.Exit(2)
		}

		templates = repopg.NewTemplateStore(db)
		runs = repopg.NewRunStore(db)
		publisher = txTemplatePublisher{db: db}
		resolver = artifactResolver
		audit = db
		checks = append(checks,
			httpserver.ReadinessCheck{
				Name: "postgres",
				Check: func(ctx context.Context) error {
					checkCtx, cancel := context.WithTimeout(ctx, 750*time.Millisecond)
					defer cancel()
					return db.PingContext(checkCtx)
				},
			},
			httpserver.ReadinessCheck{
				Name: "minio",
				Check: func(ctx context.Context) error {
					checkCtx, cancel := context.WithTimeout(ctx, 750*time.Millisecond)
					defer cancel()
					return objectstore.CheckBucket(checkCtx, storeClient, storeCfg)
				},
			},
		)
	case "memory":
		memTemplates := repomem.NewTemplateStore()
		templates = memTemplates
		runs = repomem.NewRunStore()
		publisher = memTemplatePublisher{store: memTemplates}
		resolver = artifacts.NewMemoryResolver()
	default:
		logger.Error("unsupported store mode", "mode", storeMode)
		os.Exit(2)
	}

	var runBackend backend.Backend
	switch backendMode := strings.ToLower(env.String("FLOWLANE_BACKEND_MODE", "http")); backendMode {
	case "http":
		backendCfg, err := backend.HTTPConfigFromEnv()
		if err != nil {
			logger.Error("invalid backend config", "error", err)
			os.Exit(2)
		}
		httpBackend, err := backend.NewHTTPBackend(backendCfg)
		if err != nil {
			logger.Error("backend init failed", "error", err)
			os.Exit(2)
		}
		runBackend = httpBackend
	case "memory":
		runBackend = backend.NewMemoryBackend()
		logger.Warn("using in-memory execution backend; runs are accepted but never executed")
	default:
		logger.Error("unsupported backend mode", "mode", env.String("FLOWLANE_BACKEND_MODE", "http"))
		os.Exit(2)
	}

	maxAttempts, err := env.Int("FLOWLANE_SUBMIT_MAX_ATTEMPTS", 3)
	if err != nil {
		logger.Error("invalid env", "error", err)
		os.Exit(2)
	}
	retryBase, err := env.Duration("FLOWLANE_SUBMIT_RETRY_BASE", 250*time.Millisecond)
	if err != nil {
		logger.Error("invalid env", "error", err)
		os.Exit(2)
	}

	submitter, err := trigger.NewSubmitter(runBackend, runs, trigger.SubmitterConfig{
		MaxAttempts: maxAttempts,
		RetryBase:   retryBase,
	})
	if err != nil {
		logger.Error("submitter init failed", "error", err)
		os.Exit(2)
	}

	facade, err := trigger.NewFacade(templates, trigger.NewValidator(resolver), submitter, logger)
	if err != nil {
		logger.Error("facade init failed", "error", err)
		os.Exit(2)
	}

	authCfg, err := auth.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid auth config", "error", err)
		os.Exit(2)
	}
	var authenticator auth.Authenticator
	switch authCfg.Mode {
	case auth.ModeOIDC:
		authenticator, err = auth.NewBearerAuthenticator(ctx, authCfg)
		if err != nil {
			logger.Error("oidc init failed", "error", err)
			os.Exit(1)
		}
	default:
		authenticator = auth.NewDevAuthenticator(authCfg)
		logger.Warn("using dev authenticator; every request is accepted")
	}
	if strings.TrimSpace(authCfg.RunTokenSecret) != "" {
		authenticator = auth.RunTokenAuthenticator{
			Secret: authCfg.RunTokenSecret,
			Next:   authenticator,
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", httpserver.Healthz("triggerd"))
	mux.HandleFunc("/readyz", httpserver.ReadyzWithChecks("triggerd", checks...))
	mux.HandleFunc("GET /openapi.yaml", handleOpenAPI)

	api := newTriggerAPI(logger, facade, templates, runs, publisher, audit)
	api.register(mux)

	handler := auth.Middleware{
		Logger:        logger,
		Authenticator: authenticator,
		SkipPrefixes:  []string{"/healthz", "/readyz", "/openapi.yaml"},
	}.Wrap(mux)

	cfg := httpserver.Config{
		Service:         "triggerd",
		Addr:            addr,
		ShutdownTimeout: shutdownTimeout,
	}

	if err := httpserver.Run(ctx, logger, cfg, httpserver.Wrap(logger, "triggerd", handler)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

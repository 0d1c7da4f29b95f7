package bootstrap

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	domainauth "voicegate-server-go/internal/domain/auth"
	bindingrepo "voicegate-server-go/internal/domain/binding/repository"
	bindingstore "voicegate-server-go/internal/domain/binding/store"
	"voicegate-server-go/internal/domain/eventbus"
	"voicegate-server-go/internal/domain/risk"
	platformconfig "voicegate-server-go/internal/platform/config"
	platformerrors "voicegate-server-go/internal/platform/errors"
	platformlogging "voicegate-server-go/internal/platform/logging"
	platformobservability "voicegate-server-go/internal/platform/observability"
	platformstorage "voicegate-server-go/internal/platform/storage"
	httpwebapi "voicegate-server-go/internal/transport/http/webapi"
)

type stepFn func(context.Context, *appState) error

type initStep struct {
	ID        string
	Title     string
	DependsOn []string
	Kind      platformerrors.Kind
	Execute   stepFn
}

type appState struct {
	config                *platformconfig.Config
	configPath            string
	logger                *platformlogging.Logger
	observabilityShutdown platformobservability.ShutdownFunc
	bus                   *eventbus.Bus
	bindingRepo           bindingrepo.BindingRepository
	assessor              risk.Assessor
	orchestrator          *domainauth.Orchestrator
}

// Run drives the whole service lifecycle: configuration, dependency
// initialisation, serving, and graceful shutdown.
func Run(ctx context.Context) error {
	state := &appState{}

	if err := executeInitSteps(ctx, InitGraph(), state); err != nil {
		return err
	}

	config := state.config
	logger := state.logger
	if config == nil || logger == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"bootstrap state validation",
			"config/logger not initialised",
		)
	}
	if state.orchestrator == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"bootstrap state validation",
			"orchestrator not initialised",
		)
	}

	if shutdown := state.observabilityShutdown; shutdown != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				logger.WarnTag("BOOT", "observability shutdown failed: %v", err)
			}
		}()
	}

	defer func() {
		if state.bindingRepo != nil {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := state.bindingRepo.Close(closeCtx); err != nil {
				logger.ErrorTag("STORAGE", "binding store close failed: %v", err)
			}
		}
	}()

	rootCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	signalCtx, stop := signal.NotifyContext(rootCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(rootCtx)

	if _, err := startHTTPServer(state, group, groupCtx); err != nil {
		cancel()
		return err
	}

	if err := waitForShutdown(signalCtx, cancel, logger, group); err != nil {
		return err
	}

	logger.InfoTag("BOOT", "service stopped cleanly")
	logger.Close()
	return nil
}

func executeInitSteps(ctx context.Context, steps []initStep, state *appState) error {
	if state == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"execute init steps",
			"nil bootstrap state",
		)
	}

	completed := make(map[string]struct{}, len(steps))
	for _, step := range steps {
		for _, dep := range step.DependsOn {
			if _, ok := completed[dep]; !ok {
				return platformerrors.New(
					platformerrors.KindBootstrap,
					step.ID,
					fmt.Sprintf("dependency %s not satisfied", dep),
				)
			}
		}
		if step.Execute == nil {
			return platformerrors.New(
				platformerrors.KindBootstrap,
				step.ID,
				"missing execute function",
			)
		}
		if err := step.Execute(ctx, state); err != nil {
			var typed *platformerrors.Error
			if stderrors.As(err, &typed) {
				return err
			}

			kind := step.Kind
			if kind == "" {
				kind = platformerrors.KindBootstrap
			}
			return platformerrors.Wrap(kind, step.ID, "bootstrap step failed", err)
		}
		completed[step.ID] = struct{}{}
	}
	return nil
}

// InitGraph declares the ordered initialisation steps and their
// dependencies.
func InitGraph() []initStep {
	return []initStep{
		{
			ID:      "config:load",
			Title:   "Load configuration",
			Kind:    platformerrors.KindConfig,
			Execute: loadConfigStep,
		},
		{
			ID:        "logging:init-provider",
			Title:     "Initialise logging provider",
			DependsOn: []string{"config:load"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initLoggingStep,
		},
		{
			ID:        "storage:init-database",
			Title:     "Initialise database",
			DependsOn: []string{"config:load", "logging:init-provider"},
			Kind:      platformerrors.KindStorage,
			Execute:   initDatabaseStep,
		},
		{
			ID:        "observability:setup-hooks",
			Title:     "Setup observability hooks",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   setupObservabilityStep,
		},
		{
			ID:        "eventbus:init",
			Title:     "Initialise event bus and audit trail",
			DependsOn: []string{"logging:init-provider", "storage:init-database"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initEventBusStep,
		},
		{
			ID:        "advisory:init-assessor",
			Title:     "Initialise advisory assessor",
			DependsOn: []string{"config:load", "logging:init-provider"},
			Kind:      platformerrors.KindAdvisory,
			Execute:   initAdvisoryStep,
		},
		{
			ID:        "binding:init-store",
			Title:     "Initialise binding store",
			DependsOn: []string{"storage:init-database", "logging:init-provider"},
			Kind:      platformerrors.KindStorage,
			Execute:   initBindingStoreStep,
		},
		{
			ID:        "auth:init-orchestrator",
			Title:     "Initialise authentication orchestrator",
			DependsOn: []string{"eventbus:init", "advisory:init-assessor", "binding:init-store"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initOrchestratorStep,
		},
	}
}

func loadConfigStep(_ context.Context, state *appState) error {
	result, err := platformconfig.NewLoader().Load()
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindConfig, "config:load", "failed to load configuration", err)
	}

	state.config = result.Config
	state.configPath = result.Path
	return nil
}

func initLoggingStep(_ context.Context, state *appState) error {
	if state == nil || state.config == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"logging:init-provider",
			"config not loaded",
		)
	}

	logger, err := platformlogging.New(platformlogging.Config{
		Level:    state.config.Log.Level,
		Dir:      state.config.Log.Dir,
		Filename: state.config.Log.File,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "logging:init-provider", "failed to initialize logging provider", err)
	}

	state.logger = logger
	logger.InfoTag("BOOT", "logging ready [%s] %s", state.config.Log.Level, state.configPath)
	return nil
}

func initDatabaseStep(_ context.Context, state *appState) error {
	dsn := state.config.Binding.Store.SQLite.DSN
	if err := platformstorage.InitDatabase(dsn); err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage, "storage:init-database", "failed to initialize database", err)
	}
	state.logger.InfoTag("BOOT", "database ready")
	return nil
}

func setupObservabilityStep(ctx context.Context, state *appState) error {
	if state == nil || state.logger == nil || state.config == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"observability:setup-hooks",
			"config/logger not initialised",
		)
	}

	cfg := platformobservability.Config{
		Enabled: strings.EqualFold(state.config.Log.Level, "debug"),
	}

	shutdown, err := platformobservability.Setup(ctx, cfg, state.logger.Slog())
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "observability:setup-hooks", "failed to setup observability hooks", err)
	}
	state.observabilityShutdown = shutdown
	return nil
}

func initEventBusStep(_ context.Context, state *appState) error {
	bus := eventbus.New()
	subscriber := eventbus.NewAuditSubscriber(platformstorage.GetDB(), state.logger)
	if err := subscriber.Attach(bus); err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "eventbus:init", "failed to attach audit subscriber", err)
	}

	state.bus = bus
	state.logger.InfoTag("BOOT", "event bus and audit trail ready")
	return nil
}

func initAdvisoryStep(_ context.Context, state *appState) error {
	advisory := state.config.Advisory
	if !advisory.Enabled {
		state.logger.InfoTag("BOOT", "advisory path disabled by configuration")
		return nil
	}

	cfg := risk.Config{
		Driver:  advisory.Driver,
		Timeout: advisory.Timeout,
	}
	switch advisory.Driver {
	case risk.DriverOpenAI:
		cfg.OpenAI = &risk.OpenAIConfig{
			BaseURL:   advisory.OpenAI.BaseURL,
			APIKey:    advisory.OpenAI.APIKey,
			ModelName: advisory.OpenAI.ModelName,
		}
	default:
		cfg.HTTP = &risk.HTTPConfig{
			URL:    advisory.HTTP.URL,
			APIKey: advisory.HTTP.APIKey,
		}
	}

	assessor, err := risk.New(cfg)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindAdvisory, "advisory:init-assessor", "failed to create assessor", err)
	}

	state.assessor = assessor
	state.logger.InfoTag("BOOT", "advisory assessor ready, driver=%s timeout=%s", advisory.Driver, advisory.Timeout)
	return nil
}

func initBindingStoreStep(_ context.Context, state *appState) error {
	storeType := strings.ToLower(strings.TrimSpace(state.config.Binding.Store.Type))
	storeCfg := bindingstore.Config{Driver: storeType}

	switch storeType {
	case bindingstore.DriverRedis:
		storeCfg.Redis = &bindingstore.RedisConfig{
			Addr:     state.config.Binding.Store.Redis.Addr,
			Username: state.config.Binding.Store.Redis.Username,
			Password: state.config.Binding.Store.Redis.Password,
			DB:       state.config.Binding.Store.Redis.DB,
			Prefix:   state.config.Binding.Store.Redis.Prefix,
		}
	case bindingstore.DriverMemory:
	default:
		storeCfg.Driver = bindingstore.DriverSQLite
		storeCfg.SQLite = &bindingstore.SQLiteConfig{
			DSN: state.config.Binding.Store.SQLite.DSN,
		}
	}

	repo, err := bindingstore.New(storeCfg, bindingstore.Dependencies{
		SQLiteDB: platformstorage.GetDB(),
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage, "binding:init-store", "failed to create binding store", err)
	}

	state.bindingRepo = repo
	state.logger.InfoTag("BOOT", "binding store ready, driver=%s", storeCfg.Driver)
	return nil
}

func initOrchestratorStep(_ context.Context, state *appState) error {
	auth := state.config.Auth
	if auth.JWTSecret == "" {
		state.logger.WarnTag("BOOT", "auth.jwt_secret is empty, session tokens cannot be issued")
	}
	state.orchestrator = domainauth.NewOrchestrator(
		state.bindingRepo,
		state.assessor,
		state.bus,
		state.logger,
		domainauth.Options{
			BaselineThreshold: auth.BaselineThreshold,
			AbsoluteFloor:     auth.AbsoluteFloor,
			AdvisoryBand:      auth.AdvisoryBand,
			JWTSecret:         auth.JWTSecret,
			SessionTTL:        auth.SessionTTL,
			DriftCorrection:   auth.DriftCorrection,
		},
	)

	state.logger.InfoTag("BOOT", "orchestrator ready, baseline=%.2f floor=%.2f band=%.2f",
		auth.BaselineThreshold, auth.AbsoluteFloor, auth.AdvisoryBand)
	return nil
}

func startHTTPServer(state *appState, g *errgroup.Group, groupCtx context.Context) (*http.Server, error) {
	config := state.config
	logger := state.logger

	if config.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	apiGroup := router.Group("/api")

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, httpwebapi.APIResponse{
			Success: false,
			Data:    gin.H{},
			Message: "not found",
			Code:    http.StatusNotFound,
		})
	})

	authService, err := httpwebapi.NewAuthService(state.orchestrator, logger)
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindTransport, "webapi:new-service", "failed to create auth service", err)
	}
	if err := authService.Start(groupCtx, router, apiGroup); err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindTransport, "webapi:start", "failed to register auth routes", err)
	}

	httpServer := &http.Server{
		Addr:    ":" + strconv.Itoa(config.Web.Port),
		Handler: router,
	}

	g.Go(func() error {
		logger.InfoTag("HTTP", "server listening on http://localhost:%d", config.Web.Port)

		go func() {
			<-groupCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.ErrorTag("HTTP", "server shutdown failed: %v", err)
			} else {
				logger.InfoTag("HTTP", "server stopped gracefully")
			}
		}()

		if err := httpServer.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			logger.ErrorTag("HTTP", "server failed: %v", err)
			return err
		}
		return nil
	})

	return httpServer, nil
}

func waitForShutdown(
	ctx context.Context,
	cancel context.CancelFunc,
	logger *platformlogging.Logger,
	g *errgroup.Group,
) error {
	<-ctx.Done()
	logger.InfoTag("BOOT", "shutdown signal received: %v", context.Cause(ctx))

	cancel()

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			logger.ErrorTag("BOOT", "error during shutdown: %v", err)
			return err
		}
		logger.InfoTag("BOOT", "all services stopped")
	case <-time.After(15 * time.Second):
		logger.ErrorTag("BOOT", "shutdown timed out, forcing exit")
		return stderrors.New("shutdown timed out")
	}
	return nil
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tg_wallet/internal/app/port"
	"tg_wallet/internal/app/service"
	"tg_wallet/internal/domain/entity"
	"tg_wallet/internal/infrastructure/configloader"
	clientprovider "tg_wallet/internal/infrastructure/network/client"
	networkdefinition "tg_wallet/internal/infrastructure/network/definition"
	"tg_wallet/internal/infrastructure/notify"
	"tg_wallet/internal/infrastructure/restapi"
	"tg_wallet/internal/infrastructure/wallet"
	"tg_wallet/internal/pkg/logger"
	"tg_wallet/internal/pkg/metrics"
	"tg_wallet/internal/pkg/utils"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfgPath := utils.GetEnv("CONFIG_PATH", "config/config.yml")
	cfg, err := configloader.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	zapLogger, err := logger.NewZap(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: failed to initialize zap logger: %v\n", err)
		os.Exit(1)
	}
	defer zapLogger.Sync()
	logger.InitBridge(cfg.Logging.Bridge, zapLogger, cfg.Logging.Level)
	logger.Info("TG wallet service starting", "config", cfgPath)

	metrics.MustRegisterMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	appLogger := logger.NewSlogAdapter()

	endpoints, err := networkdefinition.NewEndpointProvider(logger.Named("EndpointProvider"), cfg.Networks)
	if err != nil {
		logger.Fatal("Network endpoints are not configured", "error", err)
	}

	clients := clientprovider.NewEVMClientProvider(cfg, appLogger.Info, appLogger.Error)
	defer clients.Close()

	registry, err := service.NewStakeRegistry(
		cfg.StakeRegistry.Address,
		cfg.StakeRegistry.BalanceMethod,
		cfg.StakeRegistry.DepositMethod,
		cfg.StakeRegistry.WithdrawMethod,
	)
	if err != nil {
		logger.Fatal("Invalid stake registry ABI", "error", err)
	}
	if !registry.Valid() {
		logger.Warn("Stake registry address is not set, balance sync and submissions are disabled",
			"env", configloader.EnvStakeRegistryAddress)
	}

	tgPerNative, err := decimal.NewFromString(cfg.StakeRegistry.TGPerNative)
	if err != nil || !tgPerNative.IsPositive() {
		logger.Fatal("Invalid stakeRegistry.tgPerNative", "value", cfg.StakeRegistry.TGPerNative)
	}

	signer, err := wallet.NewKeyedWallet(ctx, cfg.Wallet, zapLogger)
	if err != nil {
		logger.Fatal("Failed to initialize wallet", "error", err)
	}
	defer signer.Close()

	notifiers := notify.Fanout{notify.NewLogSink(zapLogger)}
	var hub *notify.Hub
	if cfg.Notifications.WebSocketEnabled {
		hub = notify.NewHub(cfg.Server.AllowedOrigins, zapLogger)
		notifiers = append(notifiers, hub)
	}
	if cfg.Notifications.WebhookURL != "" {
		timeout := time.Duration(cfg.Notifications.RequestTimeoutMillis) * time.Millisecond
		notifiers = append(notifiers, notify.NewWebhookSink(cfg.Notifications.WebhookURL, timeout, zapLogger))
	}

	state := service.NewBalanceState()
	if hub != nil {
		state.Subscribe(hub.PublishBalance)
	}
	balanceSync := service.NewBalanceSync(
		state,
		signer,
		endpoints,
		clients,
		registry,
		logger.Named("BalanceSync"),
		time.Duration(cfg.BalanceSync.DebounceMillis)*time.Millisecond,
	)
	flow := service.NewTransactionFlow(
		signer,
		endpoints,
		state,
		balanceSync,
		notifiers,
		registry,
		logger.Named("TransactionFlow"),
		service.WithTGPerNative(tgPerNative),
		service.WithStateObserver(func(dialogID string, s entity.FlowState) {
			logger.Debug("Dialog state changed", "dialog", dialogID, "state", s.String())
		}),
	)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	var ws http.Handler
	if hub != nil {
		ws = hub
	}
	router := restapi.SetupRouter(
		cfg.Server,
		zapLogger,
		restapi.NewBalanceHandler(state, balanceSync),
		restapi.NewDialogHandler(flow),
		restapi.NewWalletHandler(signer),
		ws,
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting HTTP server", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return signer.Run(gctx)
	})
	g.Go(func() error {
		stopSync := balanceSync.Start(gctx)
		<-gctx.Done()
		stopSync()
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if hub != nil {
			hub.Close()
		}
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		zapLogger.Error("Service stopped with error", zap.Error(err), zap.String("category", service.Category(err)))
		if errors.Is(err, port.ErrConfiguration) {
			os.Exit(2)
		}
		os.Exit(1)
	}
	logger.Info("Service stopped")
}

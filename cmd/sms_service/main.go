package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	billingApp "github.com/madrasahportal/golang_services/internal/billing_service/app"
	billingDomain "github.com/madrasahportal/golang_services/internal/billing_service/domain"
	billingPg "github.com/madrasahportal/golang_services/internal/billing_service/repository/postgres"
	coreSmsDomain "github.com/madrasahportal/golang_services/internal/core_sms/domain"
	offlinePg "github.com/madrasahportal/golang_services/internal/offline_queue/adapters/postgres"
	offlineApp "github.com/madrasahportal/golang_services/internal/offline_queue/app"
	queueRedis "github.com/madrasahportal/golang_services/internal/offline_queue/repository/redis"
	"github.com/madrasahportal/golang_services/internal/platform/cache"
	"github.com/madrasahportal/golang_services/internal/platform/config"
	"github.com/madrasahportal/golang_services/internal/platform/database"
	"github.com/madrasahportal/golang_services/internal/platform/logger"
	"github.com/madrasahportal/golang_services/internal/platform/messagebroker"
	httptransport "github.com/madrasahportal/golang_services/internal/public_api_service/transport/http"
	grpcAdapter "github.com/madrasahportal/golang_services/internal/sms_sending_service/adapters/grpc"
	smsApp "github.com/madrasahportal/golang_services/internal/sms_sending_service/app"
	"github.com/madrasahportal/golang_services/internal/sms_sending_service/provider"
	smsPg "github.com/madrasahportal/golang_services/internal/sms_sending_service/repository/postgres"
)

const serviceName = "sms_service"

var errNATSDisconnected = errors.New("nats connection is down")

func main() {
	cfg, err := config.Load("./configs", "config.defaults")
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.LogLevel).With("service", serviceName)
	appLogger.Info("SMS service starting...", "log_level", cfg.LogLevel, "dispatch_mode", cfg.DispatchMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, appLogger); err != nil {
		appLogger.Error("SMS service stopped with error", "error", err)
		os.Exit(1)
	}
	appLogger.Info("SMS service shut down successfully.")
}

func run(ctx context.Context, cfg *config.Config, appLogger *slog.Logger) error {
	dbPool, err := database.NewDBPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("connect to PostgreSQL: %w", err)
	}
	defer dbPool.Close()
	appLogger.Info("Successfully connected to PostgreSQL database")

	if cfg.AutoMigrate {
		version, err := database.Migrate(ctx, dbPool, appLogger)
		if err != nil {
			return err
		}
		appLogger.Info("Schema migrations checked", "version", version)
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		return err
	}
	defer redisClient.Close()
	appLogger.Info("Successfully connected to Redis", "addr", cfg.RedisAddr)

	checks := map[string]grpcAdapter.CheckFunc{
		"postgres": dbPool.Ping,
		"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	}

	gateway := provider.NewReveSMSProvider(appLogger, cfg.GatewayBaseURL, &http.Client{Timeout: cfg.GatewayTimeout})

	// Billing
	tenantRepo := billingPg.NewPgTenantRepository(dbPool, appLogger)
	settingsSvc := billingApp.NewSettingsService(billingPg.NewPgSettingsRepository(dbPool, appLogger), billingDomain.GlobalSettings{
		Gateway: coreSmsDomain.GatewayCredentials{
			APIKey:    cfg.DefaultAPIKey,
			SecretKey: cfg.DefaultSecretKey,
			CallerID:  cfg.DefaultCallerID,
			ClientID:  cfg.DefaultClientID,
		},
		SupportNumber: cfg.DefaultBkashNumber,
	}, appLogger)
	ledgerSvc := billingApp.NewLedgerService(billingPg.NewPgLedgerRepository(dbPool, appLogger), tenantRepo, appLogger)
	paymentSvc := billingApp.NewPaymentService(billingPg.NewPgPaymentRepository(dbPool, appLogger), appLogger)
	tenantSvc := billingApp.NewTenantService(tenantRepo, appLogger)

	// Dispatch
	var (
		publisher smsApp.Publisher
		inProcess *smsApp.InProcessPublisher
	)
	switch cfg.DispatchMode {
	case "nats":
		natsClient, err := messagebroker.NewNatsClient(cfg.NATSUrl, serviceName, appLogger)
		if err != nil {
			return err
		}
		defer natsClient.Close()
		appLogger.Info("Successfully connected to NATS", "url", cfg.NATSUrl)

		worker := smsApp.NewBatchWorker(gateway, cfg.GatewayTimeout, appLogger)
		if err := worker.Start(ctx, natsClient); err != nil {
			return err
		}
		publisher = smsApp.NewNATSPublisher(natsClient, appLogger)
		checks["nats"] = func(context.Context) error {
			if !natsClient.Conn.IsConnected() {
				return errNATSDisconnected
			}
			return nil
		}
	default:
		inProcess = smsApp.NewInProcessPublisher(gateway, cfg.GatewayTimeout, appLogger)
		publisher = inProcess
	}
	dispatchSvc := smsApp.NewDispatchService(
		tenantRepo,
		settingsSvc,
		ledgerSvc,
		smsPg.NewPgRecipientRepository(dbPool, appLogger),
		publisher,
		cfg.SMSBatchSize,
		appLogger,
	)

	// Offline queue
	queueSvc := offlineApp.NewQueueService(queueRedis.NewQueueStore(redisClient, appLogger), cfg.OfflineQueueTables, appLogger)
	applier := offlinePg.NewApplier(dbPool, cfg.OfflineQueueTables, appLogger)

	validate := validator.New()
	router := httptransport.NewRouter(httptransport.RouterConfig{
		JWTSecret:      []byte(cfg.JWTSecret),
		RequestTimeout: cfg.HTTPRequestTimeout,
		Messages:       httptransport.NewMessageHandler(dispatchSvc, ledgerSvc, settingsSvc, validate, appLogger),
		Payments:       httptransport.NewPaymentHandler(paymentSvc, ledgerSvc, validate, appLogger),
		Sync:           httptransport.NewSyncHandler(queueSvc, applier, validate, appLogger),
		Admin:          httptransport.NewAdminHandler(settingsSvc, tenantSvc, validate, appLogger),
		Logger:         appLogger,
	})
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	healthServer := grpcAdapter.NewHealthServer(checks, cfg.HealthCheckInterval, appLogger)
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		return fmt.Errorf("listen on gRPC port %d: %w", cfg.GRPCPort, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		appLogger.Info("HTTP server listening", "port", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error { return healthServer.Serve(lis) })
	g.Go(func() error {
		healthServer.Run(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		appLogger.Info("Attempting graceful shutdown of SMS service...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		healthServer.GracefulStop()
		err := httpServer.Shutdown(shutdownCtx)
		if inProcess != nil {
			// Debited sends must reach the gateway before exit.
			if waitErr := inProcess.Wait(shutdownCtx); waitErr != nil {
				appLogger.Error("Gateway sends still in flight at shutdown", "error", waitErr)
			}
		}
		return err
	})
	return g.Wait()
}

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/shoplinkhq/shoplink-backend/api"
	"github.com/shoplinkhq/shoplink-backend/api/routes"
	"github.com/shoplinkhq/shoplink-backend/internal/coupons"
	"github.com/shoplinkhq/shoplink-backend/internal/fulfillments"
	"github.com/shoplinkhq/shoplink-backend/internal/modifications"
	"github.com/shoplinkhq/shoplink-backend/internal/orders"
	"github.com/shoplinkhq/shoplink-backend/internal/payments"
	"github.com/shoplinkhq/shoplink-backend/internal/taxes"
	"github.com/shoplinkhq/shoplink-backend/internal/wallets"
	"github.com/shoplinkhq/shoplink-backend/pkg/config"
	"github.com/shoplinkhq/shoplink-backend/pkg/db"
	"github.com/shoplinkhq/shoplink-backend/pkg/gateway"
	"github.com/shoplinkhq/shoplink-backend/pkg/logger"
	"github.com/shoplinkhq/shoplink-backend/pkg/metrics"
	"github.com/shoplinkhq/shoplink-backend/pkg/migrate"
	"github.com/shoplinkhq/shoplink-backend/pkg/outbox"
	"github.com/shoplinkhq/shoplink-backend/pkg/redis"
)

const shutdownGrace = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server exited with errors", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx := context.Background()

	dbClient, dbErr := db.New(ctx, cfg.DB, logg)
	if dbErr != nil {
		return dbErr
	}
	defer func() {
		err = multierr.Append(err, dbClient.Close())
	}()

	if migrateErr := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); migrateErr != nil {
		return migrateErr
	}

	redisClient, redisErr := redis.New(ctx, cfg.Redis, logg)
	if redisErr != nil {
		return redisErr
	}
	defer func() {
		err = multierr.Append(err, redisClient.Close())
	}()

	gatewayClient, gatewayErr := gateway.NewClient(cfg.Gateway, logg)
	if gatewayErr != nil {
		return gatewayErr
	}

	registry := prometheus.NewRegistry()
	moneyMetrics := metrics.NewMoneyMetrics(registry)
	outboxSvc := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	walletsSvc, svcErr := wallets.NewService(wallets.NewRepository(dbClient.DB()), dbClient, outboxSvc, moneyMetrics)
	if svcErr != nil {
		return svcErr
	}
	ordersSvc, svcErr := orders.NewService(orders.NewRepository(dbClient.DB()), dbClient)
	if svcErr != nil {
		return svcErr
	}
	paymentsSvc, svcErr := payments.NewService(payments.NewRepository(dbClient.DB()), dbClient, gatewayClient, walletsSvc, outboxSvc, moneyMetrics)
	if svcErr != nil {
		return svcErr
	}
	couponsSvc, svcErr := coupons.NewService(coupons.NewRepository(dbClient.DB()), dbClient, outboxSvc, moneyMetrics)
	if svcErr != nil {
		return svcErr
	}
	taxesSvc, svcErr := taxes.NewService(taxes.NewRepository(dbClient.DB()), dbClient)
	if svcErr != nil {
		return svcErr
	}
	modificationsSvc, svcErr := modifications.NewService(modifications.NewRepository(dbClient.DB()), dbClient, outboxSvc)
	if svcErr != nil {
		return svcErr
	}
	fulfillmentsSvc, svcErr := fulfillments.NewService(fulfillments.NewRepository(dbClient.DB()), dbClient, outboxSvc)
	if svcErr != nil {
		return svcErr
	}

	handler := routes.NewRouter(
		cfg,
		logg,
		dbClient,
		redisClient,
		redisClient,
		registry,
		ordersSvc,
		paymentsSvc,
		walletsSvc,
		couponsSvc,
		taxesSvc,
		modificationsSvc,
		fulfillmentsSvc,
	)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	server := api.NewServer(addr, handler)

	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	serverErr := make(chan error, 1)
	go func() {
		if listenErr := server.ListenAndServe(); listenErr != nil && listenErr != http.ErrServerClosed {
			serverErr <- listenErr
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case listenErr := <-serverErr:
		return listenErr
	case sig := <-stop:
		logg.Info(logg.WithFields(ctx, map[string]any{"signal": sig.String()}), "shutting down api server")
	}

	if shutdownErr := api.Shutdown(server, shutdownGrace); shutdownErr != nil {
		return shutdownErr
	}
	logg.Info(ctx, "api server stopped")
	return nil
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/storefront/gateway"
	"github.com/example/storefront/pkg/admin"
	"github.com/example/storefront/pkg/audit"
	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/discovery"
	"github.com/example/storefront/pkg/grpc"
	"github.com/example/storefront/pkg/repository"
	"github.com/example/storefront/pkg/store"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the admin gateway and gRPC health service",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

// auditSink picks MongoDB when configured and the process log otherwise.
func auditSink(ctx context.Context, cfg *config.MongoDBConfig, logger *zap.Logger) (audit.Sink, func(), error) {
	if !cfg.Enabled() {
		return audit.LogSink{Logger: logger.Named("audit")}, func() {}, nil
	}
	mongoRepo, err := repository.NewMongoRepository(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := mongoRepo.Ping(ctx); err != nil {
		logger.Warn("MongoDB connection failed", zap.Error(err))
	} else {
		logger.Info("MongoDB connected successfully")
	}
	return mongoRepo, func() { _ = mongoRepo.Close(context.Background()) }, nil
}

func runServe() error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("Starting storefront",
		zap.String("name", cfg.Server.Name),
		zap.String("driver", cfg.Database.Driver),
		zap.Int("gateway_port", cfg.Gateway.Port),
		zap.Int("grpc_port", cfg.Server.Port))

	ctx := context.Background()

	sink, closeSink, err := auditSink(ctx, &cfg.MongoDB, logger)
	if err != nil {
		return err
	}
	defer closeSink()

	dispatcher, err := audit.NewDispatcher(cfg.Server.Name, sink, logger.Named("audit"))
	if err != nil {
		return err
	}
	defer dispatcher.Close(5 * time.Second)

	opts := []store.Option{store.WithAuditor(dispatcher)}
	if cfg.Redis.Enabled() {
		redisRepo := repository.NewRedisRepository(&cfg.Redis)
		defer redisRepo.Close()
		if err := redisRepo.Ping(ctx); err != nil {
			logger.Warn("Redis connection failed", zap.Error(err))
		} else {
			logger.Info("Redis connected successfully")
		}
		opts = append(opts, store.WithSalesCache(redisRepo))
	}

	st, err := store.Open(&cfg.Database, logger, opts...)
	if err != nil {
		return err
	}
	defer st.Close()

	if cfg.Database.AutoMigrate {
		if err := st.Migrate(ctx); err != nil {
			return err
		}
		if err := st.EnsureStatuses(ctx); err != nil {
			return err
		}
	}

	site := admin.NewSite(logger.Named("admin"))
	if err := admin.RegisterModels(site, st); err != nil {
		return err
	}
	if reader, ok := sink.(admin.AuditReader); ok {
		admin.RegisterAuditLog(site, reader)
	}

	gin.SetMode(gin.ReleaseMode)
	gw := gateway.NewGateway(&cfg.Gateway, logger.Named("gateway"), st, site)
	healthSrv := grpc.NewHealthServer(&cfg.Server, st, logger.Named("health"))

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	go healthSrv.Watch(watchCtx, 10*time.Second)

	errCh := make(chan error, 2)
	go func() {
		if err := gw.Start(); err != nil {
			errCh <- fmt.Errorf("gateway: %w", err)
		}
	}()
	go func() {
		if err := healthSrv.Start(); err != nil {
			errCh <- fmt.Errorf("health service: %w", err)
		}
	}()

	instance := &discovery.ServiceInstance{
		Name: cfg.Server.Name,
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	}
	var sd *discovery.ServiceDiscovery
	if cfg.Etcd.Enabled() {
		sd, err = discovery.NewServiceDiscovery(&cfg.Etcd)
		if err != nil {
			logger.Warn("Failed to connect to etcd, continuing without service discovery", zap.Error(err))
		} else if err := sd.Register(ctx, instance); err != nil {
			logger.Warn("Failed to register service", zap.Error(err))
		} else {
			logger.Info("Service registered in etcd", zap.String("address", instance.Addr()))
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case <-sigCh:
		logger.Info("Received shutdown signal")
	case runErr = <-errCh:
		logger.Error("Server error", zap.Error(runErr))
	}

	if sd != nil {
		if err := sd.Deregister(ctx, instance); err != nil {
			logger.Error("Failed to deregister service", zap.Error(err))
		}
		sd.Close()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := gw.Shutdown(shutdownCtx); err != nil {
		logger.Error("Gateway shutdown failed", zap.Error(err))
	}
	healthSrv.Stop()

	logger.Info("Storefront stopped")
	return runErr
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"file-sharing-service/internal/MinIO"
	"file-sharing-service/internal/S3"
	"file-sharing-service/internal/cleanup"
	"file-sharing-service/internal/config"
	"file-sharing-service/internal/handler"
	"file-sharing-service/internal/handler/authHandler"
	"file-sharing-service/internal/handler/fileHandler"
	"file-sharing-service/internal/health"
	"file-sharing-service/internal/repository/BlackListRepo"
	"file-sharing-service/internal/repository/fileRepo"
	"file-sharing-service/internal/repository/listingCache"
	"file-sharing-service/internal/repository/refreshToken"
	"file-sharing-service/internal/repository/userRepo"
	"file-sharing-service/internal/service/authService"
	"file-sharing-service/internal/service/fileService"
	"file-sharing-service/pkg/database/postgres"
	"file-sharing-service/pkg/database/redis"
	"file-sharing-service/pkg/logger"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type objectStore interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Delete(ctx context.Context, key string) error
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
	Ping(ctx context.Context) error
}

func newObjectStore(ctx context.Context, cfg *config.Config) (objectStore, error) {
	switch cfg.StorageDriver {
	case config.StorageS3:
		return S3.New(ctx, cfg.S3)
	default:
		return MinIO.New(cfg.MinIO)
	}
}

func main() {
	cfg, err := config.New()
	if errors.Is(err, os.ErrNotExist) {
		cfg, err = config.FromEnv()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	ctx, err := logger.New(context.Background(), cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.GetLogger(ctx)
	defer func() { _ = log.Sync() }()

	startCtx, cancelStart := context.WithTimeout(ctx, 30*time.Second)
	defer cancelStart()

	pool, err := postgres.New(startCtx, cfg.Postgres)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	if err := postgres.Migrate(startCtx, pool); err != nil {
		log.Fatal("failed to apply migrations", zap.Error(err))
	}

	redisClient := redis.New(cfg.Redis)
	if err := redisClient.Ping(startCtx).Err(); err != nil {
		log.Fatal("cannot connect to Redis", zap.Error(err))
	}

	store, err := newObjectStore(startCtx, cfg)
	if err != nil {
		log.Fatal("failed to init object store", zap.String("driver", cfg.StorageDriver), zap.Error(err))
	}
	if err := store.EnsureBucket(startCtx); err != nil {
		log.Fatal("object store bucket unavailable", zap.Error(err))
	}

	cache := listingCache.New(redisClient, cfg.CacheTTL)
	cleaner := cleanup.NewPool(cfg.Cleanup, store, log)
	cleaner.Start()
	afterDelete := cleanup.NewPostDeleteHook(cache, cleaner, log)

	users := userRepo.New(pool, afterDelete)
	files := fileRepo.New(pool, afterDelete)

	auth := authService.New(users, cfg.Auth, refreshToken.New(redisClient), BlackListRepo.NewBlackListRepo(redisClient))
	lifecycle := fileService.New(files, users, store, cache, cleaner, cfg.Files)

	checker := health.New(3 * time.Second)
	checker.Register("postgres", pool.Ping)
	checker.Register("redis", cache.Ping)
	checker.Register("object_store", store.Ping)
	healthCtx, stopHealth := context.WithCancel(ctx)
	go checker.Run(healthCtx, cfg.HealthInterval)

	gin.SetMode(gin.ReleaseMode)
	router := handler.NewRouter(handler.Deps{
		Auth:               authHandler.New(auth, cfg.SecureCookies),
		Files:              fileHandler.New(lifecycle, auth, cfg.Files.MaxUploadSize, cfg.SecureCookies),
		Authenticator:      auth,
		Health:             checker.Handler,
		Logger:             log,
		MaxMultipartMemory: 32 << 20,
	})
	httpServer := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("http server started", zap.String("port", cfg.HTTPPort))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		log.Fatal("failed to listen", zap.String("port", cfg.GRPCPort), zap.Error(err))
	}
	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, checker.GRPCServer())
	go func() {
		log.Info("grpc health server started", zap.String("port", cfg.GRPCPort))
		if err := grpcServer.Serve(lis); err != nil {
			log.Error("grpc server stopped", zap.Error(err))
		}
	}()

	wait := gfshutdown.GracefulShutdown(ctx, cfg.ShutdownTime, map[string]gfshutdown.Operation{
		// one operation so the teardown order is fixed: stop taking
		// requests, drain blob cleanup, then close the stores
		"file-sharing-service": func(ctx context.Context) error {
			stopHealth()
			checker.Shutdown()
			var errs []error
			if err := httpServer.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("http shutdown: %w", err))
			}
			grpcServer.GracefulStop()
			if err := cleaner.Stop(ctx); err != nil {
				errs = append(errs, fmt.Errorf("cleanup drain: %w", err))
			}
			if err := redisClient.Close(); err != nil {
				errs = append(errs, fmt.Errorf("redis close: %w", err))
			}
			pool.Close()
			return errors.Join(errs...)
		},
	})

	exitCode := <-wait
	log.Info("server stopped", zap.Int("exit_code", exitCode))
	_ = log.Sync()
	os.Exit(exitCode)
}

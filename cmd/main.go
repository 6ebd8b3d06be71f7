package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"ifc-service/internal/config"
	"ifc-service/internal/conversion"
	"ifc-service/internal/handlers"
	"ifc-service/internal/lock"
	"ifc-service/internal/metrics"
	"ifc-service/internal/objtag"
	"ifc-service/internal/repository"
	"ifc-service/internal/services"
	"ifc-service/internal/storage"
)

type repositories struct {
	files   repository.FileRepository
	markers repository.MarkerRepository
	close   func()
}

func main() {
	cfg := InitConfig()
	logger := InitLogger(cfg)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repos := OpenRepositories(ctx, cfg, logger)
	defer repos.close()

	store, err := storage.NewArtifactStore(cfg.ArtifactDir)
	if err != nil {
		logger.Fatal("artifact store initialization failed", zap.Error(err))
	}

	m := metrics.NewMetrics(prometheus.DefaultRegisterer)
	pipeline, err := conversion.NewPipeline(cfg.PipelineConfig(), logger, conversion.WithRecorder(m))
	if err != nil {
		logger.Fatal("pipeline configuration invalid", zap.Error(err))
	}

	fileService := services.NewFileService(services.FileServiceOptions{
		Files:    repos.files,
		Markers:  repos.markers,
		Store:    store,
		Pipeline: pipeline,
		Locker:   InitLocker(ctx, cfg, logger),
		Mirror:   InitMirror(ctx, cfg, logger),
		Uploads:  m,
		RenameOptions: objtag.RewriteOptions{
			Strict:       cfg.RenameStrict,
			PreserveTags: cfg.RenamePreserveTags,
		},
		MaxUploadBytes: int64(cfg.MaxUploadMB) << 20,
		Logger:         logger,
	})
	markerService := services.NewMarkerService(repos.markers, repos.files, cfg.DownloadURL, logger)

	app := fiber.New(fiber.Config{
		BodyLimit: cfg.MaxUploadMB << 20,
	})

	// Register Prometheus metrics endpoint
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	handlers.RegisterRoutes(app,
		handlers.NewFileHandler(fileService, logger),
		handlers.NewMarkerHandler(markerService, logger))

	for _, r := range app.GetRoutes(true) {
		logger.Debug("route registered", zap.String("method", r.Method), zap.String("path", r.Path))
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
			logger.Error("shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("server listening",
		zap.String("port", cfg.AppPort),
		zap.String("db_driver", cfg.DBDriver),
		zap.Bool("redis_locks", cfg.RedisEnabled()),
		zap.Bool("minio_mirror", cfg.MinioEnabled()))
	if err := app.Listen(":" + cfg.AppPort); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func InitConfig() *config.Config {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}
	return cfg
}

func InitLogger(cfg *config.Config) *zap.Logger {
	logger, err := config.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Logger initialization failed: %v", err)
	}
	return logger
}

// OpenRepositories connects the metadata store selected by DB_DRIVER.
func OpenRepositories(ctx context.Context, cfg *config.Config, logger *zap.Logger) repositories {
	if cfg.DBDriver == config.DriverMongo {
		client, db, err := config.ConnectMongo(ctx, cfg)
		if err != nil {
			logger.Fatal("MongoDB connection failed", zap.Error(err))
		}
		if err := repository.EnsureMongoIndexes(ctx, db); err != nil {
			logger.Fatal("MongoDB index creation failed", zap.Error(err))
		}
		return repositories{
			files:   repository.NewMongoFileRepository(db),
			markers: repository.NewMongoMarkerRepository(db),
			close: func() {
				if err := client.Disconnect(context.Background()); err != nil {
					logger.Warn("MongoDB disconnect failed", zap.Error(err))
				}
			},
		}
	}

	db, err := config.ConnectDatabase(cfg)
	if err != nil {
		logger.Fatal("Database connection failed", zap.Error(err))
	}
	if err := repository.AutoMigrate(db); err != nil {
		logger.Fatal("Database migration failed", zap.Error(err))
	}
	return repositories{
		files:   repository.NewGormFileRepository(db),
		markers: repository.NewGormMarkerRepository(db),
		close: func() {
			if sqlDB, err := db.DB(); err == nil {
				sqlDB.Close()
			}
		},
	}
}

// InitLocker shares stem locks through Redis when configured.
func InitLocker(ctx context.Context, cfg *config.Config, logger *zap.Logger) lock.Locker {
	if !cfg.RedisEnabled() {
		return lock.NewMemoryLocker(cfg.LockTTL)
	}
	client, err := lock.NewRedisClient(ctx, cfg.RedisHost, cfg.RedisPort)
	if err != nil {
		logger.Fatal("Redis connection failed", zap.Error(err))
	}
	return lock.NewRedisLocker(client, cfg.LockTTL)
}

func InitMirror(ctx context.Context, cfg *config.Config, logger *zap.Logger) storage.Mirror {
	if !cfg.MinioEnabled() {
		return storage.NopMirror{}
	}
	mirror, err := storage.NewMinioMirror(ctx, storage.MinioOptions{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		UseSSL:    cfg.MinioSSL,
	}, logger)
	if err != nil {
		logger.Fatal("MinIO client initialization failed", zap.Error(err))
	}
	return mirror
}

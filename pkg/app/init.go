package app

import (
	"context"
	"fmt"
	"log"
	"log/slog"

	"go-battles/pkg/config"
	"go-battles/pkg/database"
	"go-battles/pkg/logging"
	"go-battles/pkg/sde"

	"github.com/joho/godotenv"
)

// AppContext holds the shared application dependencies.
type AppContext struct {
	MongoDB          *database.MongoDB
	Redis            *database.Redis
	SDEService       sde.SDEService
	TelemetryManager *logging.TelemetryManager
	ServiceName      string
	shutdownFuncs    []func(context.Context) error
}

// InitializeApp loads configuration and connects the shared dependencies.
// Mongo and Redis are hard requirements: every pipeline stage stores or
// coordinates through them.
func InitializeApp(serviceName string) (*AppContext, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found or error loading it: %v", err)
	}

	ctx := context.Background()

	telemetryManager := logging.NewTelemetryManager(serviceName)
	if err := telemetryManager.Initialize(ctx); err != nil {
		log.Printf("Warning: Failed to initialize telemetry: %v", err)
		// Continue without telemetry rather than failing
	}

	mongodb, err := database.NewMongoDB(ctx, serviceName)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	slog.Info("Connected to MongoDB")

	redis, err := database.NewRedis(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	slog.Info("Connected to Redis")

	sdeDir := config.GetEnv("SDE_DATA_DIR", "data/sde")
	sdeService := sde.NewService(sdeDir)
	slog.Info("SDE service initialized", "data_dir", sdeDir)

	appCtx := &AppContext{
		MongoDB:          mongodb,
		Redis:            redis,
		SDEService:       sdeService,
		TelemetryManager: telemetryManager,
		ServiceName:      serviceName,
	}

	appCtx.shutdownFuncs = append(appCtx.shutdownFuncs, mongodb.Close)
	appCtx.shutdownFuncs = append(appCtx.shutdownFuncs, func(ctx context.Context) error {
		return redis.Close()
	})
	if telemetryManager != nil {
		appCtx.shutdownFuncs = append(appCtx.shutdownFuncs, telemetryManager.Shutdown)
	}

	return appCtx, nil
}

// Shutdown closes all shared dependencies in registration order.
func (a *AppContext) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down application", "service", a.ServiceName)

	for _, shutdown := range a.shutdownFuncs {
		if err := shutdown(ctx); err != nil {
			slog.Error("Error during shutdown", "error", err)
		}
	}

	slog.Info("Application shutdown completed", "service", a.ServiceName)
	return nil
}

// GetPort returns the port from environment or default.
func GetPort(defaultPort string) string {
	return config.GetEnv("PORT", defaultPort)
}

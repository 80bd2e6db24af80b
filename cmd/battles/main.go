package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"go-battles/internal/battles"
	"go-battles/internal/enrichment"
	enrichservices "go-battles/internal/enrichment/services"
	"go-battles/internal/ingest"
	"go-battles/internal/killmails"
	"go-battles/internal/names"
	"go-battles/internal/ruleset"
	"go-battles/pkg/app"
	"go-battles/pkg/config"
	"go-battles/pkg/evegateway"
	"go-battles/pkg/handlers"
	"go-battles/pkg/module"
	"go-battles/pkg/permissions"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "go.uber.org/automaxprocs"
)

// quietLoggerMiddleware logs requests but excludes the health probe.
func quietLoggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/healthz") {
			next.ServeHTTP(w, r)
			return
		}
		middleware.Logger(next).ServeHTTP(w, r)
	})
}

// corsMiddleware echoes the request origin so the SSE stream works with
// credentialed cross-origin requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Add("Vary", "Origin")
		}

		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Operator")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func main() {
	log.Printf("go-battles starting | CPUs: %d | GOMAXPROCS: %d", runtime.NumCPU(), runtime.GOMAXPROCS(0))

	ctx := context.Background()

	appCtx, err := app.InitializeApp("battles")
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	r := chi.NewRouter()
	r.Use(quietLoggerMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(corsMiddleware)

	r.Get("/healthz", handlers.HealthzHandler(
		appCtx.MongoDB.HealthCheck,
		appCtx.Redis.HealthCheck,
	))

	gateway, err := evegateway.NewClient(appCtx.Redis)
	if err != nil {
		log.Fatalf("Failed to create upstream gateway: %v", err)
	}
	nameService := names.NewService(gateway.Names)

	enforcer, err := permissions.NewEnforcer(appCtx.MongoDB.Client, appCtx.ServiceName)
	if err != nil {
		log.Printf("Authorization enforcement disabled: %v", err)
		enforcer = permissions.NewDisabledEnforcer()
	}

	killmailsModule := killmails.New(appCtx.MongoDB, appCtx.Redis, gateway)
	rulesetModule := ruleset.New(appCtx.MongoDB, appCtx.Redis, enforcer)
	ingestModule, err := ingest.New(appCtx.MongoDB, appCtx.Redis, killmailsModule.GetService(), rulesetModule.Provider(), appCtx.SDEService)
	if err != nil {
		log.Fatalf("Failed to create ingestion module: %v", err)
	}
	enrichmentModule := enrichment.New(appCtx.MongoDB, appCtx.Redis,
		killmailsModule.GetRepository(), enrichservices.NewNamesResolver(nameService))
	battlesModule := battles.New(appCtx.MongoDB, appCtx.Redis,
		killmailsModule.GetRepository(), killmailsModule.GetRepository(),
		enrichmentModule.GetRepository(), nameService, appCtx.SDEService)

	for name, init := range map[string]func(context.Context) error{
		"killmails":  killmailsModule.Initialize,
		"enrichment": enrichmentModule.Initialize,
		"battles":    battlesModule.Initialize,
	} {
		if err := init(ctx); err != nil {
			log.Fatalf("Failed to initialize %s module: %v", name, err)
		}
	}

	modules := []module.Module{
		killmailsModule,
		rulesetModule,
		ingestModule,
		enrichmentModule,
		battlesModule,
	}

	humaConfig := huma.DefaultConfig("Battle Reconstruction API", "1.0.0")
	humaConfig.Info.Description = "Killmail ingestion, enrichment, and battle clustering service"

	apiPrefix := config.GetEnv("API_PREFIX", "")
	var api huma.API
	if apiPrefix == "" {
		api = humachi.New(r, humaConfig)
	} else {
		r.Route(apiPrefix, func(prefixRouter chi.Router) {
			api = humachi.New(prefixRouter, humaConfig)
		})
	}

	killmailsModule.RegisterUnifiedRoutes(api, "/killmails")
	rulesetModule.RegisterUnifiedRoutes(api, "/ruleset")
	ingestModule.RegisterUnifiedRoutes(api, "/ingest")
	enrichmentModule.RegisterUnifiedRoutes(api, "/enrichment")
	battlesModule.RegisterUnifiedRoutes(api, "/battles")

	bgCtx, cancelBg := context.WithCancel(ctx)
	for _, mod := range modules {
		mod.StartBackgroundTasks(bgCtx)
	}

	srv := &http.Server{
		Addr:         config.GetEnv("HOST", "0.0.0.0") + ":" + app.GetPort("8080"),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // SSE streams stay open indefinitely
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("Starting API server", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Received shutdown signal, initiating graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	// Cancel the background context first so queue consumers unblock, then
	// stop in reverse wiring order so producers drain before consumers.
	cancelBg()
	for i := len(modules) - 1; i >= 0; i-- {
		modules[i].Stop()
	}

	appCtx.Shutdown(shutdownCtx)

	slog.Info("Shutdown completed")
}

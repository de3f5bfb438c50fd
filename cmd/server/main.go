package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"

	"github.com/arkaesthetics/ark-payments/internal/api"
	"github.com/arkaesthetics/ark-payments/internal/booking"
	appconfig "github.com/arkaesthetics/ark-payments/internal/config"
	"github.com/arkaesthetics/ark-payments/internal/events"
	"github.com/arkaesthetics/ark-payments/internal/square"
	"github.com/arkaesthetics/ark-payments/internal/store"
	"github.com/arkaesthetics/ark-payments/internal/telemetry"
)

func newLogger(cfg appconfig.Config) *log.Logger {
	prefix := ""
	if cfg.ServiceName != "" {
		prefix = fmt.Sprintf("[%s] ", cfg.ServiceName)
	}
	logger := log.New(os.Stdout, prefix, log.LstdFlags|log.Lmicroseconds)
	log.SetOutput(os.Stdout)
	log.SetFlags(logger.Flags())
	log.SetPrefix(prefix)
	return logger
}

func setupTelemetry(lc fx.Lifecycle, cfg appconfig.Config) {
	var cleanup func()
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			cleanup = telemetry.InitTracer(cfg.ServiceName)
			return nil
		},
		OnStop: func(context.Context) error {
			if cleanup != nil {
				cleanup()
			}
			return nil
		},
	})
}

// newSessionStore picks the store backend. A failed Postgres connection
// degrades to the in-memory store rather than refusing to start; the
// reconciliation cascade tolerates an empty cache.
func newSessionStore(lc fx.Lifecycle, cfg appconfig.Config, logger *log.Logger) store.Store {
	if cfg.Store.Backend != "postgres" {
		return store.NewMemory()
	}
	pg, err := store.OpenPostgres(cfg.Store.Database)
	if err != nil {
		logger.Printf("WARNING: postgres session store unavailable, using memory: %v", err)
		return store.NewMemory()
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return pg.Close()
		},
	})
	return pg
}

func newProducer(lc fx.Lifecycle, cfg appconfig.Config) *events.Producer {
	prod := events.NewProducer(cfg.Kafka.Brokers)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return prod.Close()
		},
	})
	return prod
}

func newBookingService(cfg appconfig.Config, sessions store.Store, prod *events.Producer) *booking.Service {
	gw := square.NewClient(cfg.Square)
	return booking.NewService(cfg, gw, sessions, prod)
}

func registerWebServer(lc fx.Lifecycle, cfg appconfig.Config, logger *log.Logger, shutdowner fx.Shutdowner, svc *booking.Service) {
	httpServer := newWebServer(cfg, svc)
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				displayAddr := cfg.HTTP.Addr
				if strings.HasPrefix(displayAddr, ":") {
					displayAddr = "localhost" + displayAddr
				}
				logger.Printf("API available on http://%s (env=%s location=%s tokenLen=%d)",
					displayAddr, cfg.Square.Environment, cfg.Square.LocationID, len(cfg.Square.AccessToken))
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Printf("API server error: %v", err)
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	})
}

func newWebServer(cfg appconfig.Config, svc *booking.Service) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok"))
	})

	api.RegisterArkRoutes(mux, cfg, svc)

	return &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: api.WithCORS(cfg.CORS.AllowedOrigins, mux),
	}
}

func main() {
	_ = godotenv.Load()

	app := fx.New(
		fx.Provide(
			appconfig.Load,
			newLogger,
			newSessionStore,
			newProducer,
			newBookingService,
		),
		fx.Invoke(
			func(logger *log.Logger, cfg appconfig.Config) {
				logger.Printf("Starting %s...", cfg.ServiceName)
			},
			setupTelemetry,
			registerWebServer,
		),
	)

	app.Run()
}

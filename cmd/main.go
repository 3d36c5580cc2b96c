package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/cors"

	"github.com/okian/tally/internal/adapters/http/api"
	"github.com/okian/tally/internal/adapters/http/swagger"
	"github.com/okian/tally/internal/adapters/mq/queue"
	"github.com/okian/tally/internal/adapters/mq/worker"
	"github.com/okian/tally/internal/adapters/notify"
	"github.com/okian/tally/internal/adapters/repository"
	"github.com/okian/tally/internal/adapters/ws"
	app "github.com/okian/tally/internal/app"
	"github.com/okian/tally/internal/config"
	"github.com/okian/tally/pkg/logger"
	"github.com/okian/tally/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	serviceMetricsInterval = 5 * time.Second
	routerBuffer           = 64
)

// application holds everything main starts and must stop.
type application struct {
	cfg     *config.Config
	queue   *queue.InMemoryQueue
	pool    *worker.Pool
	svc     *app.Service
	nc      *nats.Conn
	handler http.Handler
	logger  logger.Logger
}

func main() {
	// Initialize logging
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	loggerInstance := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> .env -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		loggerInstance.Error(ctx, "failed to load config", logger.Error(err))
		os.Exit(1)
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	a, err := build(ctx, cfg, loggerInstance)
	if err != nil {
		loggerInstance.Error(ctx, "failed to start service", logger.Error(err))
		os.Exit(1)
	}

	go a.startServiceMetricsUpdater(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           a.handler,
		ReadTimeout:       readTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		loggerInstance.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			loggerInstance.Error(ctx, "HTTP server failed", logger.Error(err))
			stop()
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	loggerInstance.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		loggerInstance.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
	}
	a.shutdown(shutdownCtx)

	loggerInstance.Info(shutdownCtx, "server stopped")
}

// build wires the pool, the notifiers, the lobby and the HTTP handler.
func build(ctx context.Context, cfg *config.Config, log logger.Logger) (*application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &application{cfg: cfg, logger: log}

	a.queue = queue.NewInMemoryQueue(queue.WithCapacity(cfg.QueueSize))
	metrics.UpdatePoolQueueCapacity(a.queue.Capacity())
	a.pool = worker.NewPool(cfg.WorkerCount, a.queue, worker.WithPoolLogger(log.Named("pool")))
	// Workers outlive the signal; shutdown stops the lobby before the pool.
	a.pool.Start(context.WithoutCancel(ctx))

	router := notify.NewRouter(routerBuffer)
	sinks := notify.Fanout{router, notify.NewLogNotifier(log.Named("notify"))}
	if cfg.NATSURL != "" {
		natsNotifier, nc, err := notify.ConnectNATS(cfg.NATSURL, cfg.NATSSubjectPrefix, log.Named("nats"))
		if err != nil {
			_ = a.pool.Shutdown(ctx)
			return nil, err
		}
		a.nc = nc
		sinks = append(sinks, natsNotifier)
		log.Info(ctx, "publishing contest events to NATS",
			logger.String("url", cfg.NATSURL),
			logger.String("prefix", cfg.NATSSubjectPrefix),
		)
	}

	standingsOpts := []repository.Option{}
	if cfg.Seed != 0 {
		standingsOpts = append(standingsOpts, repository.WithSeed(cfg.Seed))
	}

	a.svc = app.New(
		app.WithLogger(log.Named("lobby")),
		app.WithContestSize(cfg.ContestSize),
		app.WithMaxRounds(cfg.MaxRounds),
		app.WithRange(cfg.RangeMin, cfg.RangeMax),
		app.WithRanked(cfg.Ranked),
		app.WithRoundTimeout(cfg.RoundTimeout()),
		app.WithSeed(cfg.Seed),
		app.WithPool(a.pool),
		app.WithNotifier(sinks),
		app.WithBinder(router),
		app.WithStandings(repository.NewTreapStore(standingsOpts...)),
	)
	if err := a.svc.Start(ctx); err != nil {
		a.shutdown(ctx)
		return nil, err
	}

	mux := http.NewServeMux()
	swagger.Register(mux)
	api.NewServer(a.svc, api.WithMaxLimit(cfg.MaxLeaderboardLimit)).Register(mux)
	mux.Handle("GET /ws", ws.NewHandler(a.svc, router,
		ws.WithLogger(log.Named("ws")),
		ws.WithAllowedOrigins(cfg.AllowedOrigins),
	))

	c := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedHeaders: []string{"*"},
	})
	a.handler = c.Handler(mux)

	return a, nil
}

// shutdown stops the lobby first so contests abort before the pool closes.
func (a *application) shutdown(ctx context.Context) {
	if a.svc != nil {
		if err := a.svc.Stop(ctx); err != nil {
			a.logger.Error(ctx, "lobby shutdown failed", logger.Error(err))
		}
	}
	if a.pool != nil {
		if err := a.pool.Shutdown(ctx); err != nil {
			a.logger.Error(ctx, "pool shutdown failed", logger.Error(err))
		}
	}
	if a.nc != nil {
		if err := a.nc.Drain(); err != nil {
			a.logger.Warn(ctx, "NATS drain failed", logger.Error(err))
		}
	}
}

// startServiceMetricsUpdater refreshes gauges that are not updated on every change.
func (a *application) startServiceMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.updateServiceMetrics(ctx)
		}
	}
}

func (a *application) updateServiceMetrics(ctx context.Context) {
	stats := a.svc.GetStats(ctx)
	metrics.UpdateLobbySize(stats.Lobby)
	metrics.UpdateStandingsRecords(stats.Standings)
	metrics.UpdatePoolQueueSize(a.queue.Len(ctx))
	metrics.UpdatePoolWorkers(a.pool.Size())
}

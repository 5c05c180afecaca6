package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexey-v-paramonov/sc-api/internal/billing"
	"github.com/alexey-v-paramonov/sc-api/internal/config"
	"github.com/alexey-v-paramonov/sc-api/pkg/logger"
	"github.com/alexey-v-paramonov/sc-api/pkg/runlock"
	trmsql "github.com/avito-tech/go-transaction-manager/drivers/sql/v2"
	trmcontext "github.com/avito-tech/go-transaction-manager/trm/v2/context"
	"github.com/avito-tech/go-transaction-manager/trm/v2/manager"
	"github.com/go-redis/redis/v8"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	sqldblogger "github.com/simukti/sqldb-logger"
)

// Version indicates the current version of the application.
var Version = "1.0.0"

// lockExpiry caps a single accrual run. A crashed worker releases the
// lock after this long.
const lockExpiry = 2 * time.Hour

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	once := flag.Bool("once", false, "run a single accrual pass and exit")

	// Worker run context.
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Load application configurations. MustLoad parses the remaining
	// flags, -once included.
	cfg := config.MustLoad()

	// Create root logger tagged with worker version.
	logger := logger.New(cfg).With(ctx, "version", Version, "worker", "billing")

	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return fmt.Errorf("failed to open the database: %w", err)
	}

	// Log every query to the database.
	db = sqldblogger.OpenDriver(cfg.DSN, db.Driver(), logger)

	// Check connectivity and DSN correctness.
	if err = db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to the database: %w", err)
	}

	// Close connection.
	defer func() {
		if err = db.Close(); err != nil {
			logger.Error(err)
		}
		_ = logger.Sync()
	}()

	// Create default transaction manager for database/sql package.
	trManager := manager.Must(
		trmsql.NewDefaultFactory(db),
		manager.WithCtxManager(trmcontext.DefaultManager),
	)

	// Init repository for the accrual job.
	repo, err := billing.NewRepository(db, trmsql.DefaultCtxGetter, logger)
	if err != nil {
		return fmt.Errorf("failed to init billing repository: %w", err)
	}

	rates, err := billing.RatesFromConfig(cfg.Billing)
	if err != nil {
		return fmt.Errorf("failed to parse billing rates: %w", err)
	}

	notifier, err := billing.NewNotifier(
		billing.RoutesFromConfig(cfg.SMTP),
		cfg.Billing.AdminEmail,
		cfg.Billing.LowBalanceDays,
		logger,
	)
	if err != nil {
		return fmt.Errorf("failed to init notifier: %w", err)
	}

	metrics := billing.NewMetrics(prometheus.DefaultRegisterer)

	job, err := billing.NewJob(repo, trManager,
		billing.NewResolver(rates), notifier, metrics, logger)
	if err != nil {
		return fmt.Errorf("failed to init accrual job: %w", err)
	}

	// The Redis lock rejects overlapping runs across worker hosts. The
	// per-day charge uniqueness stays the correctness backstop.
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Errorf("close redis client: %s", err)
		}
	}()

	lock := runlock.New(rdb, "billing:accrual", lockExpiry)

	runOnce := func(ctx context.Context) {
		release, err := lock.Acquire(ctx)
		if err != nil {
			metrics.LockBusyTotal.Inc()
			logger.Warnf("accrual run skipped: %s", err)
			return
		}
		defer release()

		if _, err := job.Run(ctx, time.Now().UTC()); err != nil {
			logger.Errorf("accrual run failed: %s", err)
		}
	}

	if *once {
		runOnce(ctx)
		return nil
	}

	c := cron.New()
	if _, err = c.AddFunc(cfg.Billing.Schedule, func() { runOnce(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule accrual job %q: %w", cfg.Billing.Schedule, err)
	}

	// Metrics endpoint of the long-running worker.
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(cfg.Billing.MetricsAddress, mux); err != nil {
			logger.Errorf("metrics endpoint: %s", err)
		}
	}()

	logger.Infof("Billing worker %v is running on schedule %q", Version, cfg.Billing.Schedule)
	c.Start()

	// Graceful stop: let a running pass finish.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT,
		syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	s := <-sig

	logger.Infof("Shutting down billing worker on %s", s)
	<-c.Stop().Done()
	stop()

	return nil
}

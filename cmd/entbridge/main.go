package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/chatterdocs/entbridge/pkg/api"
	"github.com/chatterdocs/entbridge/pkg/config"
	"github.com/chatterdocs/entbridge/pkg/observability"
	"github.com/chatterdocs/entbridge/pkg/provision"
	"github.com/chatterdocs/entbridge/pkg/security"
	"github.com/chatterdocs/entbridge/pkg/storage"
)

func main() {
	log := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}
	configureLogger(log, cfg.Observability)

	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("bridge exited with error")
	}
}

func run(cfg *config.Config, log *logrus.Logger) error {
	redisClient, err := storage.NewRedisClient(cfg.Store)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	db, err := storage.NewPostgresDB(cfg.Store)
	if err != nil {
		return err
	}
	defer db.Close()

	metrics := observability.NewMetrics(nil)
	provisioner := provision.NewUserProvisioner(db, log)
	svc := security.NewService(cfg.Enterprise, redisClient, provisioner, metrics, log)
	defer svc.Close()

	apiServer := &http.Server{
		Addr:         api.ListenAddr(cfg.Server),
		Handler:      api.NewServer(api.NewAuthHandlers(svc, log), log).Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux(db, redisClient, metrics, cfg.Observability),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scheduler := startSummaryJob(ctx, cfg.Observability.SummarySchedule, svc, log)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.WithField("addr", apiServer.Addr).Info("starting enterprise bridge API server")
		if err := apiServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		log.WithField("addr", healthServer.Addr).Info("starting health and metrics server")
		if err := healthServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")

		if scheduler != nil {
			scheduler.Stop()
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		err := apiServer.Shutdown(shutdownCtx)
		if herr := healthServer.Shutdown(shutdownCtx); err == nil {
			err = herr
		}
		return err
	})

	return g.Wait()
}

func configureLogger(log *logrus.Logger, cfg config.ObservabilityConfig) {
	if cfg.LogJSON {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
		log.WithField("level", cfg.LogLevel).Warn("unknown log level, using info")
	}
	log.SetLevel(level)
	log.SetOutput(os.Stdout)
}

func healthMux(db *sql.DB, redisClient *redis.Client, metrics *observability.Metrics, cfg config.ObservabilityConfig) http.Handler {
	checker := observability.NewHealthChecker(db, redisClient)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", checker.Liveness)
	mux.HandleFunc("/readyz", checker.Readiness)
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", metrics.Handler())
	}
	return mux
}

// startSummaryJob schedules a periodic audit summary log line. An empty
// schedule disables the job.
func startSummaryJob(ctx context.Context, schedule string, svc *security.Service, log *logrus.Logger) *cron.Cron {
	if schedule == "" {
		return nil
	}

	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		summary, err := svc.Summarize(ctx, 1)
		if err != nil {
			log.WithError(err).Warn("security summary job failed")
			return
		}
		log.WithFields(logrus.Fields{
			"total_events":      summary.TotalEvents,
			"successful_logins": summary.SuccessfulLogins,
			"failed_logins":     summary.FailedLogins,
			"active_users":      summary.ActiveUsers,
		}).Info("daily security summary")
	})
	if err != nil {
		log.WithError(err).Warn("invalid summary schedule, job disabled")
		return nil
	}

	c.Start()
	return c
}

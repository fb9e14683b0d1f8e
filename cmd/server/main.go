package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"tallyboard/internal/config"
	"tallyboard/internal/livefeed"
	"tallyboard/internal/livefeed/pgnotify"
	"tallyboard/internal/logger"
	"tallyboard/internal/metrics"
	"tallyboard/internal/middleware"
	"tallyboard/internal/ratelimit"
	"tallyboard/internal/routes"
	"tallyboard/internal/submission"
	"tallyboard/internal/tally"
)

func main() {
	cfg := config.Load()

	// Initialize structured logging to file
	accessLog := logger.Setup(logger.Options{File: cfg.LogFile, Level: cfg.LogLevel, Stdout: cfg.LogStdout})
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Connect to the database
	db, err := config.InitDB(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Database initialization failed.")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	hub := livefeed.NewHub(m)
	engine := tally.NewEngine(db, tally.Options{
		TableRowCap: cfg.TableRowCap,
		AgentRowCap: cfg.AgentRowCap,
		Metrics:     m,
	})
	feed := livefeed.New(engine, hub, livefeed.Options{Interval: cfg.FeedInterval, Metrics: m})

	var notifier submission.Notifier
	if cfg.FeedNotify {
		notifier = pgnotify.NewPublisher(db)
		listener, err := pgnotify.NewListener(cfg.DB.DSN())
		if err != nil {
			logrus.WithError(err).Warn("Notification listener unavailable, feeds refresh on the interval only.")
		} else {
			go func() { _ = listener.Run(ctx, hub.Nudge) }()
		}
	}

	votes := submission.NewService(db, submission.Options{
		StationNames: config.PollingStationNames,
		StrictPath:   cfg.StrictLocationPath,
		Notifier:     notifier,
		Metrics:      m,
	})

	// Setup Gin router
	router := routes.SetupRouter(routes.Deps{
		DB:          db,
		Votes:       votes,
		Tally:       engine,
		Feed:        feed,
		Limiter:     newLimiter(ctx, cfg),
		Metrics:     m,
		Gatherer:    reg,
		AccessLog:   accessLog,
		CORSOrigins: cfg.CORSOrigins,
		RecentLimit: cfg.FeedRecentLimit,
	})

	// Wrap with CORS
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           middleware.EnableCORS(cfg.CORSOrigins)(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// signal.Notify requires the channel to be buffered
	ctrlc := make(chan os.Signal, 1)
	signal.Notify(ctrlc, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-ctrlc
		logrus.WithField("signal", sig.String()).Info("Shutting down.")

		hub.Shutdown()
		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logrus.WithError(err).Warn("Graceful shutdown incomplete.")
		}
		cancel()
	}()

	logrus.WithField("addr", cfg.HTTPAddr).Info("Server listening.")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logrus.WithError(err).Fatal("Server failed.")
	}
	<-ctx.Done()
	logrus.Info("Server closed.")
}

// newLimiter shares counters through Redis when REDIS_URL is set and keeps
// them in memory otherwise.
func newLimiter(ctx context.Context, cfg *config.Config) ratelimit.Limiter {
	if cfg.RedisURL != "" {
		client, err := ratelimit.NewRedisClient(ctx, cfg.RedisURL)
		if err == nil {
			go func() {
				<-ctx.Done()
				_ = client.Close()
			}()
			logrus.Info("Rate limiter backed by Redis.")
			return ratelimit.NewRedisStore(client, cfg.RateLimitMaxRequests, cfg.RateLimitWindow)
		}
		logrus.WithError(err).Warn("Redis unavailable, rate limiter falls back to memory.")
	}

	store := ratelimit.NewMemoryStore(cfg.RateLimitMaxRequests, cfg.RateLimitWindow)
	go store.Run(ctx, cfg.RateLimitWindow)
	return store
}

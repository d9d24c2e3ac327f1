package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	ocache "github.com/radieske/sports-wager-platform/internal/odds-service/cache"
	ohttp "github.com/radieske/sports-wager-platform/internal/odds-service/http"
	orepo "github.com/radieske/sports-wager-platform/internal/odds-service/repo"
	sharedcache "github.com/radieske/sports-wager-platform/internal/shared/cache"
	"github.com/radieske/sports-wager-platform/internal/shared/config"
	"github.com/radieske/sports-wager-platform/internal/shared/db"
	"github.com/radieske/sports-wager-platform/internal/shared/logger"
	"github.com/radieske/sports-wager-platform/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	log, err := logger.New("odds-service", cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("starting service", zap.String("service", "odds-service"), zap.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Postgres: eventos e odds gravadas
	pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	// Redis: odds ao vivo do odds-processor
	rdb, err := sharedcache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer rdb.Close()

	overlayErrors := prometheus.NewCounter(prometheus.CounterOpts{Name: "odds_live_overlay_errors_total", Help: "consultas de odds ao vivo que caíram nas odds gravadas"})
	prometheus.MustRegister(overlayErrors)

	live := ocache.NewLiveOdds(rdb, log)
	live.OnError = overlayErrors.Inc
	api := ohttp.NewServer(log, orepo.NewReadRepo(pg), live)

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, log,
		metrics.Check{Name: "postgres", Fn: pg.PingContext},
		metrics.Check{Name: "redis", Fn: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
	)

	apiSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort, // ex: 8084
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("odds-service listening", zap.String("addr", apiSrv.Addr))
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("api", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = apiSrv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
}

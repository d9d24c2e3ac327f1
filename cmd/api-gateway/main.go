package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	ghttp "github.com/radieske/sports-wager-platform/internal/api-gateway/http"
	sharedcache "github.com/radieske/sports-wager-platform/internal/shared/cache"
	"github.com/radieske/sports-wager-platform/internal/shared/config"
	"github.com/radieske/sports-wager-platform/internal/shared/logger"
	"github.com/radieske/sports-wager-platform/internal/shared/metrics"
	"github.com/radieske/sports-wager-platform/internal/shared/ratelimit"
)

func main() {
	cfg := config.Load()
	log, err := logger.New("api-gateway", cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var rdb *redis.Client
	checks := []metrics.Check{}
	if cfg.RateLimitBackend == "redis" {
		rdb, err = sharedcache.ConnectRedis(ctx, cfg.RedisAddr)
		if err != nil {
			log.Fatal("redis connect", zap.Error(err))
		}
		defer rdb.Close()
		checks = append(checks, metrics.Check{Name: "redis", Fn: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }})
	}

	denied := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "gateway_rate_limited_total", Help: "requisições bloqueadas por rate limit"}, []string{"op"})
	prometheus.MustRegister(denied)

	// Cotas por IP: geral, login e cadastro
	jobs := cron.New()
	limiter, err := ratelimit.Setup(cfg, rdb, jobs, log)
	if err != nil {
		log.Fatal("rate limiter", zap.Error(err))
	}
	limiter.OnDenied = func(op ratelimit.Op) { denied.WithLabelValues(string(op)).Inc() }
	jobs.Start()
	defer jobs.Stop()

	router, err := ghttp.NewRouter(ghttp.Upstreams{
		Bet:    cfg.BetServiceURL,
		Wallet: cfg.WalletServiceURL,
		Events: cfg.EventsServiceURL,
		Auth:   cfg.AuthServiceURL,

		TrustProxyHeaders: cfg.TrustProxyHeaders,
	}, limiter, log)
	if err != nil {
		log.Fatal("gateway routes", zap.Error(err))
	}

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, log, checks...)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("api-gateway listening", zap.String("addr", srv.Addr),
			zap.String("bet", cfg.BetServiceURL), zap.String("wallet", cfg.WalletServiceURL),
			zap.String("events", cfg.EventsServiceURL), zap.Bool("trust_proxy_headers", cfg.TrustProxyHeaders))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("gateway failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
}

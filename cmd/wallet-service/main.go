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

	"github.com/radieske/sports-wager-platform/internal/shared/balance"
	sharedcache "github.com/radieske/sports-wager-platform/internal/shared/cache"
	"github.com/radieske/sports-wager-platform/internal/shared/config"
	"github.com/radieske/sports-wager-platform/internal/shared/db"
	"github.com/radieske/sports-wager-platform/internal/shared/logger"
	"github.com/radieske/sports-wager-platform/internal/shared/metrics"
	"github.com/radieske/sports-wager-platform/internal/shared/ratelimit"
	whttp "github.com/radieske/sports-wager-platform/internal/wallet-service/http"
	wrepo "github.com/radieske/sports-wager-platform/internal/wallet-service/repo"
)

func main() {
	cfg := config.Load()

	// Inicializa logger estruturado
	log, err := logger.New("wallet-service", cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("starting service", zap.String("service", "wallet-service"), zap.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Conexão com Postgres para operações de carteira
	pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	// Redis só é necessário com rate limit compartilhado
	var rdb *redis.Client
	if cfg.RateLimitBackend == "redis" {
		rdb, err = sharedcache.ConnectRedis(ctx, cfg.RedisAddr)
		if err != nil {
			log.Fatal("redis connect", zap.Error(err))
		}
		defer rdb.Close()
	}

	key, err := balance.ParseKey(cfg.BalanceEncryptionKey)
	if err != nil {
		log.Fatal("balance encryption key", zap.Error(err))
	}
	cipher, err := balance.New(key)
	if err != nil {
		log.Fatal("balance cipher", zap.Error(err))
	}

	denied := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "wallet_rate_limited_total", Help: "requisições bloqueadas por rate limit"}, []string{"op"})
	prometheus.MustRegister(denied)

	jobs := cron.New()
	limiter, err := ratelimit.Setup(cfg, rdb, jobs, log)
	if err != nil {
		log.Fatal("rate limiter", zap.Error(err))
	}
	limiter.OnDenied = func(op ratelimit.Op) { denied.WithLabelValues(string(op)).Inc() }
	jobs.Start()
	defer jobs.Stop()

	// Instancia repositório e servidor HTTP da wallet
	repo := wrepo.NewPostgres(pg, cipher)
	api := whttp.NewServer(log, repo, limiter)

	// Servidor de métricas e health check
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, log, metrics.Check{Name: "postgres", Fn: pg.PingContext})

	// Servidor HTTP público (API de wallet)
	apiSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort, // ex: 8082
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("api listening", zap.String("addr", apiSrv.Addr))
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("api srv", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = apiSrv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
}

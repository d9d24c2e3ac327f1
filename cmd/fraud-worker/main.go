package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/sports-wager-platform/internal/bet-service/fraud"
	"github.com/radieske/sports-wager-platform/internal/bet-service/repo"
	sharedcache "github.com/radieske/sports-wager-platform/internal/shared/cache"
	"github.com/radieske/sports-wager-platform/internal/shared/config"
	"github.com/radieske/sports-wager-platform/internal/shared/db"
	"github.com/radieske/sports-wager-platform/internal/shared/kafka"
	"github.com/radieske/sports-wager-platform/internal/shared/logger"
	"github.com/radieske/sports-wager-platform/internal/shared/metrics"
)

// fraud-worker consome as tasks fraud:scan enfileiradas pelo bet-service (FRAUD_SCHEDULER=asynq)
func main() {
	cfg := config.Load()
	log, err := logger.New("fraud-worker", cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	// conexão própria só para o health check; o asynq abre a dele
	rdb, err := sharedcache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer rdb.Close()

	alertWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicFraudAlerts)
	defer alertWriter.Close()

	alerts := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "fraud_alerts_total", Help: "alertas de fraude por tipo"}, []string{"kind"})
	scanErrors := prometheus.NewCounter(prometheus.CounterOpts{Name: "fraud_scan_errors_total", Help: "varreduras com erro"})
	prometheus.MustRegister(alerts, scanErrors)

	detector := fraud.NewDetector(repo.NewPostgres(pg), fraud.ThresholdsFrom(cfg), log)
	detector.Notifier = fraud.NewKafkaNotifier(alertWriter)
	detector.OnAlert = func(kind string) { alerts.WithLabelValues(kind).Inc() }
	detector.OnError = scanErrors.Inc

	mux := asynq.NewServeMux()
	fraud.NewTaskHandler(detector, log).Register(mux)

	srv := asynq.NewServer(asynq.RedisClientOpt{Addr: cfg.RedisAddr}, asynq.Config{
		Concurrency:     cfg.FraudWorkers,
		Queues:          map[string]int{fraud.QueueFraud: 1},
		ShutdownTimeout: 10 * time.Second,
		Logger:          log.Sugar(),
	})

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, log,
		metrics.Check{Name: "postgres", Fn: pg.PingContext},
		metrics.Check{Name: "redis", Fn: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
	)

	if err := srv.Start(mux); err != nil {
		log.Fatal("asynq server", zap.Error(err))
	}
	log.Info("fraud-worker started", zap.Int("concurrency", cfg.FraudWorkers))

	<-ctx.Done()
	log.Info("fraud-worker stopping")
	srv.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
}

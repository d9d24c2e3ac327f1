package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/radieske/sports-wager-platform/internal/bet-service/fraud"
	bhttp "github.com/radieske/sports-wager-platform/internal/bet-service/http"
	"github.com/radieske/sports-wager-platform/internal/bet-service/limits"
	"github.com/radieske/sports-wager-platform/internal/bet-service/odds"
	"github.com/radieske/sports-wager-platform/internal/bet-service/placement"
	kpub "github.com/radieske/sports-wager-platform/internal/bet-service/producer"
	"github.com/radieske/sports-wager-platform/internal/bet-service/repo"
	"github.com/radieske/sports-wager-platform/internal/shared/balance"
	sharedcache "github.com/radieske/sports-wager-platform/internal/shared/cache"
	"github.com/radieske/sports-wager-platform/internal/shared/config"
	"github.com/radieske/sports-wager-platform/internal/shared/db"
	"github.com/radieske/sports-wager-platform/internal/shared/kafka"
	"github.com/radieske/sports-wager-platform/internal/shared/logger"
	"github.com/radieske/sports-wager-platform/internal/shared/metrics"
	"github.com/radieske/sports-wager-platform/internal/shared/ratelimit"
)

func main() {
	cfg := config.Load()
	log, err := logger.New("bet-service", cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Postgres
	pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	// Redis (odds ao vivo, rate limit, fila asynq)
	rdb, err := sharedcache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer rdb.Close()

	key, err := balance.ParseKey(cfg.BalanceEncryptionKey)
	if err != nil {
		log.Fatal("balance encryption key", zap.Error(err))
	}
	cipher, err := balance.New(key)
	if err != nil {
		log.Fatal("balance cipher", zap.Error(err))
	}

	// Kafka writer (bet_placed)
	betWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetPlaced)
	defer betWriter.Close()

	// Métricas Prometheus
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "bet_placements_total", Help: "tentativas de aposta por resultado"}, []string{"outcome"})
	alerts := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "bet_fraud_alerts_total", Help: "alertas de fraude por tipo"}, []string{"kind"})
	fraudErrors := prometheus.NewCounter(prometheus.CounterOpts{Name: "bet_fraud_scan_errors_total", Help: "varreduras de fraude com erro"})
	scansDropped := prometheus.NewCounter(prometheus.CounterOpts{Name: "bet_fraud_scans_dropped_total", Help: "varreduras descartadas com a fila cheia"})
	denied := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "bet_rate_limited_total", Help: "requisições bloqueadas por rate limit"}, []string{"op"})
	prometheus.MustRegister(outcomes, alerts, fraudErrors, scansDropped, denied)

	// deps
	ledger := repo.NewPostgres(pg)
	orch := placement.New(ledger, cipher, limits.NewEvaluator(nil), odds.NewValidator(rdb, log), placement.Config{
		MinStake:           cfg.MinStake,
		OddsTolerance:      cfg.OddsTolerance,
		AfterCommitTimeout: 5 * time.Second,
	}, log)
	orch.Publisher = kpub.NewKafkaPublisher(betWriter)
	orch.OnOutcome = func(outcome string) { outcomes.WithLabelValues(outcome).Inc() }

	// Varredura de fraude: pool local ou fila asynq consumida pelo fraud-worker
	switch cfg.FraudScheduler {
	case "asynq":
		client := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		defer client.Close()
		orch.Scans = fraud.NewAsynqScheduler(client)
	default:
		alertWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicFraudAlerts)
		defer alertWriter.Close()

		detector := fraud.NewDetector(ledger, fraud.ThresholdsFrom(cfg), log)
		detector.Notifier = fraud.NewKafkaNotifier(alertWriter)
		detector.OnAlert = func(kind string) { alerts.WithLabelValues(kind).Inc() }
		detector.OnError = fraudErrors.Inc

		pool := fraud.NewPool(detector, cfg.FraudWorkers, cfg.FraudQueueSize, 10*time.Second, log)
		pool.OnDropped = scansDropped.Inc
		defer pool.Stop()
		orch.Scans = pool
	}

	// Rate limit por usuário
	jobs := cron.New()
	limiter, err := ratelimit.Setup(cfg, rdb, jobs, log)
	if err != nil {
		log.Fatal("rate limiter", zap.Error(err))
	}
	limiter.OnDenied = func(op ratelimit.Op) { denied.WithLabelValues(string(op)).Inc() }
	jobs.Start()
	defer jobs.Stop()

	// metrics/health
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, log,
		metrics.Check{Name: "postgres", Fn: pg.PingContext},
		metrics.Check{Name: "redis", Fn: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
	)

	// HTTP público
	api := bhttp.NewServer(log, orch, ledger, limiter)
	apiSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("bet-service listening", zap.String("addr", apiSrv.Addr))
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

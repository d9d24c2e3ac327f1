package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/sports-wager-platform/internal/odds-processor/cache"
	"github.com/radieske/sports-wager-platform/internal/odds-processor/consumer"
	"github.com/radieske/sports-wager-platform/internal/odds-processor/repository"
	sharedcache "github.com/radieske/sports-wager-platform/internal/shared/cache"
	"github.com/radieske/sports-wager-platform/internal/shared/config"
	"github.com/radieske/sports-wager-platform/internal/shared/db"
	"github.com/radieske/sports-wager-platform/internal/shared/kafka"
	"github.com/radieske/sports-wager-platform/internal/shared/logger"
	"github.com/radieske/sports-wager-platform/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	log, err := logger.New("odds-processor-worker", cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Inicializa dependências: Postgres e Redis
	pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	redisClient, err := sharedcache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()

	// Odds ao vivo no Redis (lidas pelo bet-service) e odds correntes no Postgres
	rcache := cache.NewRedisCache(redisClient, cfg.LiveOddsTTL)
	repo := repository.NewPostgresRepo(pg)

	// Consumer group odds-processor; mensagens inválidas vão para a DLQ
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicOddsUpdates, "odds-processor")
	defer reader.Close()
	dlq := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicOddsUpdatesDLQ)
	defer dlq.Close()

	// Métricas Prometheus para monitoramento do processamento
	consumed := prometheus.NewCounter(prometheus.CounterOpts{Name: "odds_proc_messages_consumed_total", Help: "mensagens consumidas"})
	cached := prometheus.NewCounter(prometheus.CounterOpts{Name: "odds_proc_cache_sets_total", Help: "sets no cache"})
	persist := prometheus.NewCounter(prometheus.CounterOpts{Name: "odds_proc_db_writes_total", Help: "upserts de odds correntes"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "odds_proc_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(consumed, cached, persist, errorsBy)

	proc := &consumer.Processor{
		Log:        log,
		Reader:     reader,
		Repo:       repo,
		Cache:      rcache,
		DLQ:        dlq,
		OnConsumed: consumed.Inc,
		OnCached:   cached.Inc,
		OnPersist:  persist.Inc,
		OnError:    func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, log,
		metrics.Check{Name: "postgres", Fn: pg.PingContext},
		metrics.Check{Name: "redis", Fn: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }},
	)

	log.Info("odds-processor started", zap.String("topic", cfg.TopicOddsUpdates))
	if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("processor stopped with error", zap.Error(err))
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	_ = metricsSrv.Shutdown(shutdownCtx)
	log.Info("odds-processor stopped")
}

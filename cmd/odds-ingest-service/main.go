package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/sports-wager-platform/internal/odds-ingest/feed"
	"github.com/radieske/sports-wager-platform/internal/odds-ingest/publisher"
	"github.com/radieske/sports-wager-platform/internal/shared/config"
	"github.com/radieske/sports-wager-platform/internal/shared/kafka"
	"github.com/radieske/sports-wager-platform/internal/shared/logger"
	"github.com/radieske/sports-wager-platform/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	log, err := logger.New("odds-ingest-service", cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("Kafka brokers", zap.String("brokers", cfg.KafkaBrokers))

	// Em local/dev o tópico é criado na subida
	if brokers := kafka.Brokers(cfg.KafkaBrokers); len(brokers) > 0 && (cfg.Env == "local" || cfg.Env == "dev") {
		tctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := publisher.EnsureTopic(tctx, brokers[0], cfg.TopicOddsUpdates, 3); err != nil {
			log.Warn("ensure kafka topic", zap.String("topic", cfg.TopicOddsUpdates), zap.Error(err))
		}
		cancel()
	}

	writer := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicOddsUpdates)
	defer writer.Close()

	received := prometheus.NewCounter(prometheus.CounterOpts{Name: "odds_ingest_messages_received_total", Help: "mensagens recebidas do fornecedor"})
	invalid := prometheus.NewCounter(prometheus.CounterOpts{Name: "odds_ingest_messages_invalid_total", Help: "mensagens descartadas por formato inválido"})
	publishErrors := prometheus.NewCounter(prometheus.CounterOpts{Name: "odds_ingest_publish_errors_total", Help: "falhas ao publicar no Kafka"})
	prometheus.MustRegister(received, invalid, publishErrors)

	client := feed.NewWSClient(cfg.OddsFeedURL, cfg.OddsFeedSource, publisher.NewKafkaPublisher(writer, log), log)
	client.OnReceived = received.Inc
	client.OnInvalid = invalid.Inc
	client.OnPublishError = publishErrors.Inc

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, log)

	log.Info("odds-ingest started", zap.String("feed", cfg.OddsFeedURL), zap.String("topic", cfg.TopicOddsUpdates))
	if err := client.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("feed client stopped", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
	log.Info("odds-ingest stopped")
}

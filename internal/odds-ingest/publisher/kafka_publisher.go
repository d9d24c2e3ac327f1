package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/sports-wager-platform/pkg/contracts/events"
)

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaPublisher publica OddsUpdate no tópico odds_updates
type KafkaPublisher struct {
	Writer MessageWriter
	Log    *zap.Logger
	Now    func() time.Time
}

func NewKafkaPublisher(w MessageWriter, log *zap.Logger) *KafkaPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &KafkaPublisher{Writer: w, Log: log, Now: time.Now}
}

// Publish serializa o evento em JSON; a chave é o EventID para manter a ordem por evento na partição
func (p *KafkaPublisher) Publish(ctx context.Context, e events.OddsUpdate) error {
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal odds update: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(e.EventID),
		Value: value,
		Time:  p.Now(),
	}
	if err := p.Writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish odds update: %w", err)
	}

	p.Log.Debug("published odds update", zap.String("event_id", e.EventID), zap.Int64("version", e.Version))
	return nil
}

// EnsureTopic cria o tópico via controller do cluster; usado só em ambiente local/dev
// Tópico já existente não é erro
func EnsureTopic(ctx context.Context, broker, topic string, partitions int) error {
	conn, err := kafka.DialContext(ctx, "tcp", broker)
	if err != nil {
		return fmt.Errorf("dial kafka: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("kafka controller: %w", err)
	}

	addr := net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port))
	cconn, err := kafka.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial controller: %w", err)
	}
	defer cconn.Close()

	err = cconn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     partitions,
		ReplicationFactor: 1,
	})
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	return nil
}

package fraud

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/radieske/sports-wager-platform/pkg/contracts/events"
)

// MessageWriter é o subconjunto do *kafka.Writer usado pelo notifier
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaNotifier publica alertas no tópico fraud_alerts, chaveados pelo usuário
type KafkaNotifier struct {
	Writer MessageWriter
}

func NewKafkaNotifier(w MessageWriter) *KafkaNotifier { return &KafkaNotifier{Writer: w} }

func (n *KafkaNotifier) Notify(ctx context.Context, a events.FraudAlert) error {
	b, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal fraud alert: %w", err)
	}
	return n.Writer.WriteMessages(ctx, kafka.Message{Key: []byte(a.UserID), Value: b, Time: a.DetectedAt})
}

package producer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/radieske/sports-wager-platform/pkg/contracts/events"
)

// MessageWriter é o subconjunto do *kafka.Writer usado aqui
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type KafkaPublisher struct {
	Writer MessageWriter
	Now    func() time.Time
}

func NewKafkaPublisher(w MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{Writer: w, Now: time.Now}
}

// PublishBetPlaced envia o evento chaveado pelo usuário (ordem por usuário no tópico)
func (p *KafkaPublisher) PublishBetPlaced(ctx context.Context, e events.BetPlaced) error {
	e.TsUnixMs = p.Now().UnixMilli()
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal bet_placed: %w", err)
	}
	return p.Writer.WriteMessages(ctx, kafka.Message{Key: []byte(e.UserID), Value: b})
}

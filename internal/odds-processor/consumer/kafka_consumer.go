package consumer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/sports-wager-platform/pkg/contracts/events"
)

// MessageReader é o subconjunto do *kafka.Reader usado aqui
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Cache interface {
	SetCurrent(ctx context.Context, e events.OddsUpdate) error
}

type Repo interface {
	UpsertCurrent(ctx context.Context, e events.OddsUpdate) error
}

// Processor consome mensagens de odds do Kafka, faz cache e persiste no banco
// Callbacks de métricas podem ser usadas para monitoramento de cada etapa
type Processor struct {
	Log    *zap.Logger
	Reader MessageReader
	Repo   Repo
	Cache  Cache
	DLQ    MessageWriter // opcional: mensagens inválidas

	OnConsumed func()       // métricas (counter++)
	OnCached   func()       // métricas
	OnPersist  func()       // métricas
	OnError    func(string) // métricas por fase
}

// Run inicia o loop principal de consumo e processamento das mensagens Kafka
func (p *Processor) Run(ctx context.Context) error {
	for {
		m, err := p.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err() // encerra se o contexto for cancelado
			}
			p.Log.Warn("kafka read failed", zap.Error(err))
			p.onError("read")
			time.Sleep(500 * time.Millisecond)
			continue
		}
		if p.OnConsumed != nil {
			p.OnConsumed() // callback de métrica: mensagem consumida
		}
		p.Handle(ctx, m)
	}
}

// Handle processa uma mensagem; falhas são logadas e contadas, nunca interrompem o loop
func (p *Processor) Handle(ctx context.Context, m kafka.Message) {
	var ev events.OddsUpdate
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		p.reject(ctx, m, "decode", err)
		return
	}
	if err := ev.Validate(); err != nil {
		p.reject(ctx, m, "validate", err)
		return
	}

	// Atualiza cache Redis com a odd atual
	if err := p.Cache.SetCurrent(ctx, ev); err != nil {
		p.Log.Warn("redis set failed", zap.String("event_id", ev.EventID), zap.Error(err))
		p.onError("cache")
		// não bloqueia persistência se falhar o cache
	} else if p.OnCached != nil {
		p.OnCached() // callback de métrica: cache atualizado
	}

	// Persiste a odd corrente no Postgres
	if err := p.Repo.UpsertCurrent(ctx, ev); err != nil {
		p.Log.Warn("db upsert failed", zap.String("event_id", ev.EventID), zap.Error(err))
		p.onError("db_upsert")
		return
	}
	if p.OnPersist != nil {
		p.OnPersist() // callback de métrica: persistência concluída
	}
}

func (p *Processor) reject(ctx context.Context, m kafka.Message, stage string, err error) {
	p.Log.Warn("invalid message", zap.String("stage", stage), zap.Error(err))
	p.onError(stage)
	if p.DLQ == nil {
		return
	}
	dlq := kafka.Message{
		Key:     m.Key,
		Value:   m.Value,
		Headers: []kafka.Header{{Key: "error", Value: []byte(err.Error())}},
		Time:    time.Now(),
	}
	if err := p.DLQ.WriteMessages(ctx, dlq); err != nil {
		p.Log.Warn("dlq write failed", zap.Error(err))
		p.onError("dlq")
	}
}

func (p *Processor) onError(stage string) {
	if p.OnError != nil {
		p.OnError(stage)
	}
}

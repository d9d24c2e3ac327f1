// Package feed consome o feed de odds do fornecedor via WebSocket e republica
// cada atualização no Kafka para o odds-processor.
package feed

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/radieske/sports-wager-platform/pkg/contracts/events"
)

type Publisher interface {
	Publish(ctx context.Context, e events.OddsUpdate) error
}

// WSClient mantém a conexão com o fornecedor, reconectando com backoff exponencial
type WSClient struct {
	URL        string
	Source     string // gravado em OddsUpdate.Source quando o fornecedor não informa
	Log        *zap.Logger
	Publisher  Publisher
	Dialer     *websocket.Dialer
	Backoff    time.Duration
	MaxBackoff time.Duration
	Now        func() time.Time

	// Callbacks de métricas (opcionais)
	OnReceived     func()
	OnInvalid      func()
	OnPublishError func()
}

func NewWSClient(url, source string, pub Publisher, log *zap.Logger) *WSClient {
	if log == nil {
		log = zap.NewNop()
	}
	return &WSClient{
		URL:        url,
		Source:     source,
		Log:        log,
		Publisher:  pub,
		Dialer:     websocket.DefaultDialer,
		Backoff:    time.Second,
		MaxBackoff: 30 * time.Second,
		Now:        time.Now,
	}
}

// Run conecta e escuta até o contexto ser cancelado
func (c *WSClient) Run(ctx context.Context) error {
	backoff := c.Backoff
	for {
		connected, err := c.connectAndListen(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			backoff = c.Backoff
		}
		if err != nil {
			c.Log.Warn("supplier connection lost", zap.String("url", c.URL), zap.Duration("retry_in", backoff), zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, c.MaxBackoff)
	}
}

func (c *WSClient) connectAndListen(ctx context.Context) (bool, error) {
	conn, _, err := c.Dialer.DialContext(ctx, c.URL, nil)
	if err != nil {
		return false, err
	}
	defer conn.Close()
	c.Log.Info("connected to supplier feed", zap.String("url", c.URL))

	// ReadMessage não observa o contexto
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return true, nil
			}
			return true, err
		}
		c.Handle(ctx, message)
	}
}

// Handle valida uma mensagem do fornecedor e publica no Kafka
// Mensagem inválida é descartada; a conexão segue aberta
func (c *WSClient) Handle(ctx context.Context, message []byte) {
	if c.OnReceived != nil {
		c.OnReceived()
	}

	var update events.OddsUpdate
	if err := json.Unmarshal(message, &update); err != nil {
		c.invalid(err)
		return
	}
	if update.Source == "" {
		update.Source = c.Source
	}
	if update.UpdatedAt.IsZero() {
		update.UpdatedAt = c.Now().UTC()
	}
	if err := update.Validate(); err != nil {
		c.invalid(err)
		return
	}

	if err := c.Publisher.Publish(ctx, update); err != nil {
		c.Log.Error("failed to publish odds update", zap.String("event_id", update.EventID), zap.Error(err))
		if c.OnPublishError != nil {
			c.OnPublishError()
		}
	}
}

func (c *WSClient) invalid(err error) {
	c.Log.Warn("invalid supplier message", zap.Error(err))
	if c.OnInvalid != nil {
		c.OnInvalid()
	}
}

// Package ratelimit implementa controle de admissão por token bucket, com um
// bucket por (operação, sujeito). O sujeito é o user id em operações de carteira
// e aposta, e o IP do cliente em login, cadastro e tráfego geral.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/sports-wager-platform/internal/shared/apperr"
)

// Op identifica o tipo de operação limitada
type Op string

const (
	OpBet      Op = "bet"
	OpDeposit  Op = "deposit"
	OpWithdraw Op = "withdraw"
	OpLogin    Op = "login"
	OpRegister Op = "register"
	OpAPI      Op = "api"
)

// Quota define no máximo Max operações por Window
type Quota struct {
	Max    int
	Window time.Duration
}

func (q Quota) String() string {
	return fmt.Sprintf("%d requests per %s", q.Max, q.Window)
}

func (q Quota) valid() bool { return q.Max > 0 && q.Window > 0 }

// DefaultQuotas retorna as cotas padrão de cada operação
func DefaultQuotas() map[Op]Quota {
	return map[Op]Quota{
		OpBet:      {Max: 5, Window: time.Minute},
		OpDeposit:  {Max: 10, Window: time.Hour},
		OpWithdraw: {Max: 5, Window: time.Hour},
		OpLogin:    {Max: 10, Window: time.Minute},
		OpRegister: {Max: 5, Window: time.Hour},
		OpAPI:      {Max: 100, Window: time.Minute},
	}
}

// BucketStore é o mapa concorrente chave -> bucket; a implementação cuida da própria sincronização
type BucketStore interface {
	Take(ctx context.Context, key string, q Quota) (bool, error)
}

// ExceededError é devolvido quando o bucket está vazio; carrega a cota para mensagem ao cliente
type ExceededError struct {
	Op    Op
	Quota Quota
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded: %s allowed", e.Quota)
}

func (e *ExceededError) ErrorKind() apperr.Kind { return apperr.KindRateLimitExceeded }

func (e *ExceededError) Is(target error) bool {
	t, ok := target.(*apperr.Error)
	return ok && t.Kind == apperr.KindRateLimitExceeded
}

// Limiter aplica as cotas configuradas sobre um BucketStore
type Limiter struct {
	store  BucketStore
	quotas map[Op]Quota
	log    *zap.Logger

	OnDenied func(Op) // métricas
}

// New cria o limiter; operações sem cota válida não são limitadas
func New(store BucketStore, quotas map[Op]Quota, log *zap.Logger) *Limiter {
	if log == nil {
		log = zap.NewNop()
	}
	qs := make(map[Op]Quota, len(quotas))
	for op, q := range quotas {
		if q.valid() {
			qs[op] = q
		}
	}
	return &Limiter{store: store, quotas: qs, log: log}
}

// Quota retorna a cota configurada para a operação
func (l *Limiter) Quota(op Op) (Quota, bool) {
	q, ok := l.quotas[op]
	return q, ok
}

// Check consome um token do bucket (op, subject)
// Falha do store é tratada como fail-open: o limiter não derruba a requisição
func (l *Limiter) Check(ctx context.Context, op Op, subject string) error {
	q, ok := l.quotas[op]
	if !ok {
		return nil
	}
	allowed, err := l.store.Take(ctx, string(op)+":"+subject, q)
	if err != nil {
		l.log.Warn("rate limit store failed, allowing request", zap.String("op", string(op)), zap.Error(err))
		return nil
	}
	if allowed {
		return nil
	}
	l.log.Warn("rate limit exceeded",
		zap.String("op", string(op)),
		zap.String("subject", subject),
		zap.Int("max", q.Max),
		zap.Duration("window", q.Window),
	)
	if l.OnDenied != nil {
		l.OnDenied(op)
	}
	return &ExceededError{Op: op, Quota: q}
}

package fraud

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrQueueFull indica que o pool local está saturado; a varredura é descartada
var ErrQueueFull = errors.New("fraud scan queue full")

// ErrStopped indica agendamento após Stop
var ErrStopped = errors.New("fraud scan pool stopped")

// ScanRequest é o payload de uma varredura (também usado como payload da task asynq)
type ScanRequest struct {
	UserID string          `json:"user_id"`
	Stake  decimal.Decimal `json:"stake"`
}

// Scheduler agenda uma varredura sem esperar sua conclusão
type Scheduler interface {
	Schedule(ctx context.Context, req ScanRequest) error
}

// Pool roda varreduras em goroutines locais com fila limitada.
// Schedule nunca bloqueia: com a fila cheia a varredura é descartada.
type Pool struct {
	detector *Detector
	jobs     chan ScanRequest
	timeout  time.Duration
	log      *zap.Logger

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup

	OnDropped func()
}

func NewPool(d *Detector, workers, queueSize int, timeout time.Duration, log *zap.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	p := &Pool{
		detector: d,
		jobs:     make(chan ScanRequest, queueSize),
		timeout:  timeout,
		log:      log,
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for req := range p.jobs {
		ctx := context.Background()
		cancel := func() {}
		if p.timeout > 0 {
			ctx, cancel = context.WithTimeout(ctx, p.timeout)
		}
		p.detector.Scan(ctx, req.UserID, req.Stake)
		cancel()
	}
}

func (p *Pool) Schedule(_ context.Context, req ScanRequest) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrStopped
	}
	select {
	case p.jobs <- req:
		return nil
	default:
		if p.OnDropped != nil {
			p.OnDropped()
		}
		p.log.Warn("fraud scan dropped", zap.String("user_id", req.UserID))
		return ErrQueueFull
	}
}

// Stop fecha a fila e espera as varreduras pendentes terminarem
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}

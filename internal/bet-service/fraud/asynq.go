package fraud

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const (
	// TypeScan é o tipo da task asynq processada pelo fraud-worker
	TypeScan = "fraud:scan"

	QueueFraud = "fraud"
)

// NewScanTask serializa a requisição como task asynq
func NewScanTask(req ScanRequest) (*asynq.Task, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal scan payload: %w", err)
	}
	return asynq.NewTask(TypeScan, payload), nil
}

// Enqueuer é o subconjunto do *asynq.Client usado pelo scheduler
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// AsynqScheduler enfileira varreduras no Redis para o fraud-worker
type AsynqScheduler struct {
	Client Enqueuer
	Queue  string
}

func NewAsynqScheduler(c Enqueuer) *AsynqScheduler {
	return &AsynqScheduler{Client: c, Queue: QueueFraud}
}

func (s *AsynqScheduler) Schedule(ctx context.Context, req ScanRequest) error {
	task, err := NewScanTask(req)
	if err != nil {
		return err
	}
	_, err = s.Client.EnqueueContext(ctx, task,
		asynq.Queue(s.Queue),
		asynq.MaxRetry(3),
		asynq.Timeout(30*time.Second),
	)
	if err != nil {
		return fmt.Errorf("enqueue fraud scan: %w", err)
	}
	return nil
}

// TaskHandler processa tasks fraud:scan no fraud-worker
type TaskHandler struct {
	Detector *Detector
	Log      *zap.Logger
}

func NewTaskHandler(d *Detector, log *zap.Logger) *TaskHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &TaskHandler{Detector: d, Log: log}
}

// Register associa o handler ao mux do servidor asynq
func (h *TaskHandler) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeScan, h.HandleScan)
}

func (h *TaskHandler) HandleScan(ctx context.Context, t *asynq.Task) error {
	var req ScanRequest
	if err := json.Unmarshal(t.Payload(), &req); err != nil {
		h.Log.Error("invalid fraud scan payload", zap.Error(err))
		return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}
	if req.UserID == "" {
		return fmt.Errorf("missing user_id: %w", asynq.SkipRetry)
	}
	h.Detector.Scan(ctx, req.UserID, req.Stake)
	return nil
}

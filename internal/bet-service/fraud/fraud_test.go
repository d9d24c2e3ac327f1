package fraud

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/sports-wager-platform/internal/shared/config"
	"github.com/radieske/sports-wager-platform/pkg/contracts/events"
)

var now = time.Date(2026, 6, 1, 20, 0, 0, 0, time.UTC)

type fakeReader struct {
	count    int64
	avg      decimal.Decimal
	hasAvg   bool
	countErr error
	panics   bool
}

func (f *fakeReader) CountBetsSince(_ context.Context, _ string, since time.Time) (int64, error) {
	if f.panics {
		panic("boom")
	}
	if !since.Equal(now.Add(-10 * time.Minute)) {
		return 0, errors.New("unexpected velocity window")
	}
	return f.count, f.countErr
}

func (f *fakeReader) AvgStakeSince(_ context.Context, _ string, _ time.Time) (decimal.Decimal, bool, error) {
	return f.avg, f.hasAvg, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []events.FraudAlert
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, a events.FraudAlert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, a)
	return n.err
}

func (n *recordingNotifier) Alerts() []events.FraudAlert {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]events.FraudAlert(nil), n.alerts...)
}

func newDetector(r Reader) *Detector {
	d := NewDetector(r, DefaultThresholds(), nil)
	d.Now = func() time.Time { return now }
	return d
}

func TestVelocityAlertAboveTenBets(t *testing.T) {
	d := newDetector(&fakeReader{count: 11})
	alerts, err := d.Evaluate(context.Background(), "u1", decimal.NewFromInt(10))
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, events.AlertVelocity, alerts[0].Kind)
	assert.Equal(t, "11", alerts[0].Observed)

	d = newDetector(&fakeReader{count: 10})
	alerts, err = d.Evaluate(context.Background(), "u1", decimal.NewFromInt(10))
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestMagnitudeAlertAboveFiveTimesAverage(t *testing.T) {
	r := &fakeReader{count: 1, avg: decimal.RequireFromString("20.00"), hasAvg: true}
	d := newDetector(r)

	alerts, err := d.Evaluate(context.Background(), "u1", decimal.RequireFromString("100.00"))
	require.NoError(t, err)
	assert.Empty(t, alerts)

	alerts, err = d.Evaluate(context.Background(), "u1", decimal.RequireFromString("100.01"))
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, events.AlertMagnitude, alerts[0].Kind)
	assert.Equal(t, "100.00", alerts[0].Threshold)
}

func TestNoHistoryNoMagnitudeAlert(t *testing.T) {
	d := newDetector(&fakeReader{})
	alerts, err := d.Evaluate(context.Background(), "u1", decimal.NewFromInt(5000))
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestScanNotifiesAndSwallowsFailures(t *testing.T) {
	n := &recordingNotifier{err: errors.New("broker down")}
	d := newDetector(&fakeReader{count: 12, avg: decimal.NewFromInt(1), hasAvg: true})
	d.Notifier = n
	var kinds []string
	errs := 0
	d.OnAlert = func(k string) { kinds = append(kinds, k) }
	d.OnError = func() { errs++ }

	d.Scan(context.Background(), "u1", decimal.NewFromInt(50))

	assert.Len(t, n.Alerts(), 2)
	assert.Equal(t, []string{events.AlertVelocity, events.AlertMagnitude}, kinds)
	assert.Equal(t, 2, errs)
}

func TestScanRecoversFromPanicAndReaderErrors(t *testing.T) {
	d := newDetector(&fakeReader{panics: true})
	assert.NotPanics(t, func() { d.Scan(context.Background(), "u1", decimal.NewFromInt(1)) })

	d = newDetector(&fakeReader{countErr: errors.New("timeout")})
	assert.NotPanics(t, func() { d.Scan(context.Background(), "u1", decimal.NewFromInt(1)) })
}

func TestPoolRunsScans(t *testing.T) {
	n := &recordingNotifier{}
	d := newDetector(&fakeReader{count: 20})
	d.Notifier = n
	p := NewPool(d, 2, 8, time.Second, nil)

	for i := 0; i < 3; i++ {
		require.NoError(t, p.Schedule(context.Background(), ScanRequest{UserID: "u1", Stake: decimal.NewFromInt(1)}))
	}
	p.Stop()

	assert.Len(t, n.Alerts(), 3)
	assert.ErrorIs(t, p.Schedule(context.Background(), ScanRequest{UserID: "u1"}), ErrStopped)
}

type blockingReader struct{ release chan struct{} }

func (b blockingReader) CountBetsSince(context.Context, string, time.Time) (int64, error) {
	<-b.release
	return 0, nil
}

func (b blockingReader) AvgStakeSince(context.Context, string, time.Time) (decimal.Decimal, bool, error) {
	return decimal.Zero, false, nil
}

func TestPoolDropsWhenFull(t *testing.T) {
	release := make(chan struct{})
	d := newDetector(blockingReader{release: release})
	p := NewPool(d, 1, 1, 0, nil)
	dropped := 0
	p.OnDropped = func() { dropped++ }

	var errs []error
	for i := 0; i < 5; i++ {
		errs = append(errs, p.Schedule(context.Background(), ScanRequest{UserID: "u1"}))
	}
	close(release)
	p.Stop()

	full := 0
	for _, err := range errs {
		if errors.Is(err, ErrQueueFull) {
			full++
		}
	}
	// um em execução no worker (talvez), um na fila, o resto descartado
	assert.GreaterOrEqual(t, full, 3)
	assert.Equal(t, full, dropped)
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{}, f.err
}

func TestAsynqSchedulerEnqueuesScanTask(t *testing.T) {
	enq := &fakeEnqueuer{}
	s := NewAsynqScheduler(enq)
	require.NoError(t, s.Schedule(context.Background(), ScanRequest{UserID: "u9", Stake: decimal.RequireFromString("12.50")}))

	require.Len(t, enq.tasks, 1)
	assert.Equal(t, TypeScan, enq.tasks[0].Type())
	assert.JSONEq(t, `{"user_id":"u9","stake":"12.5"}`, string(enq.tasks[0].Payload()))

	enq.err = errors.New("redis down")
	assert.Error(t, s.Schedule(context.Background(), ScanRequest{UserID: "u9"}))
}

func TestTaskHandler(t *testing.T) {
	n := &recordingNotifier{}
	d := newDetector(&fakeReader{count: 11})
	d.Notifier = n
	h := NewTaskHandler(d, nil)

	task, err := NewScanTask(ScanRequest{UserID: "u1", Stake: decimal.NewFromInt(3)})
	require.NoError(t, err)
	require.NoError(t, h.HandleScan(context.Background(), task))
	assert.Len(t, n.Alerts(), 1)

	err = h.HandleScan(context.Background(), asynq.NewTask(TypeScan, []byte("{not json")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = h.HandleScan(context.Background(), asynq.NewTask(TypeScan, []byte(`{"stake":"1"}`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

type fakeWriter struct{ msgs []kafka.Message }

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func TestKafkaNotifier(t *testing.T) {
	w := &fakeWriter{}
	n := NewKafkaNotifier(w)
	a := events.FraudAlert{Kind: events.AlertVelocity, UserID: "u1", Stake: "5", Observed: "11", Threshold: "10", DetectedAt: now}
	require.NoError(t, n.Notify(context.Background(), a))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "u1", string(w.msgs[0].Key))
	var got events.FraudAlert
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, a, got)
}

func TestThresholdsFromConfig(t *testing.T) {
	th := ThresholdsFrom(config.Config{
		FraudVelocityWindow:      5 * time.Minute,
		FraudVelocityMaxBets:     3,
		FraudMagnitudeWindow:     time.Hour,
		FraudMagnitudeMultiplier: decimal.NewFromInt(2),
	})
	assert.Equal(t, 5*time.Minute, th.VelocityWindow)
	assert.Equal(t, int64(3), th.VelocityMaxBets)
	assert.Equal(t, time.Hour, th.MagnitudeWindow)
	assert.True(t, th.MagnitudeMultiplier.Equal(decimal.NewFromInt(2)))
}

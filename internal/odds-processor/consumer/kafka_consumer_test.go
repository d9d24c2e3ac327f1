package consumer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/sports-wager-platform/pkg/contracts/events"
)

type fakeReader struct {
	msgs []kafka.Message
}

func (f *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(f.msgs) == 0 {
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	m := f.msgs[0]
	f.msgs = f.msgs[1:]
	return m, nil
}

type fakeCache struct {
	got []events.OddsUpdate
	err error
}

func (f *fakeCache) SetCurrent(_ context.Context, e events.OddsUpdate) error {
	f.got = append(f.got, e)
	return f.err
}

type fakeRepo struct {
	got []events.OddsUpdate
	err error
}

func (f *fakeRepo) UpsertCurrent(_ context.Context, e events.OddsUpdate) error {
	f.got = append(f.got, e)
	return f.err
}

type fakeDLQ struct{ msgs []kafka.Message }

func (f *fakeDLQ) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return nil
}

const validUpdate = `{"event_id":"evt-1","market":"1x2","selections":{"home":"1.90","away":"3.75"},"version":4}`

func TestProcessorCachesAndPersists(t *testing.T) {
	c, r, dlq := &fakeCache{}, &fakeRepo{}, &fakeDLQ{}
	stages := map[string]int{}
	var consumed, persisted int
	p := &Processor{
		Log:        zap.NewNop(),
		Reader:     &fakeReader{msgs: []kafka.Message{{Value: []byte(validUpdate)}, {Value: []byte("garbage")}}},
		Cache:      c,
		Repo:       r,
		DLQ:        dlq,
		OnConsumed: func() { consumed++ },
		OnPersist:  func() { persisted++ },
		OnError:    func(s string) { stages[s]++ },
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	err := p.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	assert.Equal(t, 2, consumed)
	assert.Equal(t, 1, persisted)
	require.Len(t, c.got, 1)
	assert.Equal(t, "1.9", c.got[0].Selections["home"].String())
	assert.Equal(t, int64(4), r.got[0].Version)
	assert.Equal(t, map[string]int{"decode": 1}, stages)
	require.Len(t, dlq.msgs, 1)
	assert.Equal(t, "garbage", string(dlq.msgs[0].Value))
}

func TestCacheFailureDoesNotBlockPersistence(t *testing.T) {
	r := &fakeRepo{}
	var errs []string
	p := &Processor{
		Log:     zap.NewNop(),
		Cache:   &fakeCache{err: errors.New("redis down")},
		Repo:    r,
		OnError: func(s string) { errs = append(errs, s) },
	}
	p.Handle(context.Background(), kafka.Message{Value: []byte(validUpdate)})
	assert.Len(t, r.got, 1)
	assert.Equal(t, []string{"cache"}, errs)
}

func TestValidate(t *testing.T) {
	bad := []string{
		`{"market":"1x2","selections":{"home":"2"}}`,
		`{"event_id":"e","selections":{"home":"2"}}`,
		`{"event_id":"e","market":"1x2","selections":{}}`,
		`{"event_id":"e","market":"1x2","selections":{"home":"0"}}`,
		`{"event_id":"e","market":"1x2","selections":{"home":"-1.5"}}`,
	}
	for _, b := range bad {
		c, r := &fakeCache{}, &fakeRepo{}
		var errs []string
		p := &Processor{Log: zap.NewNop(), Cache: c, Repo: r, OnError: func(s string) { errs = append(errs, s) }}
		p.Handle(context.Background(), kafka.Message{Value: []byte(b)})
		assert.Empty(t, c.got, b)
		assert.Empty(t, r.got, b)
		assert.Equal(t, []string{"validate"}, errs, b)
	}
}

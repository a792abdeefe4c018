package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soulchat-backend/internal/logger"
)

func waitForFinished(t *testing.T, q *Queue, id string) Status {
	t.Helper()
	var st Status
	require.Eventually(t, func() bool {
		st = q.Status(id)
		return st.State == StateSuccess || st.State == StateFailure
	}, 2*time.Second, 10*time.Millisecond)
	return st
}

func TestQueueSuccess(t *testing.T) {
	q := NewQueue(2, 0, logger.NewNop())
	defer q.Close()

	id := q.Submit(Task{
		SessionKey: "s1",
		Run: func(ctx context.Context, progress func(any)) (any, error) {
			return map[string]string{"response": "好的"}, nil
		},
	})
	require.NotEmpty(t, id)

	st := waitForFinished(t, q, id)
	assert.Equal(t, StateSuccess, st.State)
	assert.Equal(t, map[string]string{"response": "好的"}, st.Payload)
	assert.Empty(t, st.Error)
}

func TestQueueFailure(t *testing.T) {
	q := NewQueue(1, 0, logger.NewNop())
	defer q.Close()

	id := q.Submit(Task{
		Run: func(ctx context.Context, progress func(any)) (any, error) {
			return "partial", errors.New("boom")
		},
	})

	st := waitForFinished(t, q, id)
	assert.Equal(t, StateFailure, st.State)
	assert.Equal(t, "boom", st.Error)
	assert.Nil(t, st.Payload)
}

func TestQueueRecoversPanic(t *testing.T) {
	q := NewQueue(1, 0, logger.NewNop())
	defer q.Close()

	id := q.Submit(Task{
		Run: func(ctx context.Context, progress func(any)) (any, error) {
			panic("unexpected")
		},
	})

	st := waitForFinished(t, q, id)
	assert.Equal(t, StateFailure, st.State)
	assert.Contains(t, st.Error, "internal error")

	// The worker survived the panic.
	id = q.Submit(Task{
		Run: func(ctx context.Context, progress func(any)) (any, error) {
			return "ok", nil
		},
	})
	st = waitForFinished(t, q, id)
	assert.Equal(t, StateSuccess, st.State)
}

func TestQueueProgress(t *testing.T) {
	q := NewQueue(1, 0, logger.NewNop())
	defer q.Close()

	release := make(chan struct{})
	id := q.Submit(Task{
		Run: func(ctx context.Context, progress func(any)) (any, error) {
			progress("halfway")
			<-release
			return "done", nil
		},
	})

	require.Eventually(t, func() bool {
		return q.Status(id).State == StateProgress
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "halfway", q.Status(id).Payload)

	close(release)
	st := waitForFinished(t, q, id)
	assert.Equal(t, StateSuccess, st.State)
	assert.Equal(t, "done", st.Payload)
}

func TestQueueSerializesSameSession(t *testing.T) {
	q := NewQueue(4, 0, logger.NewNop())
	defer q.Close()

	var active, maxActive int32
	run := func(ctx context.Context, progress func(any)) (any, error) {
		n := atomic.AddInt32(&active, 1)
		for {
			m := atomic.LoadInt32(&maxActive)
			if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		return nil, nil
	}

	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, q.Submit(Task{SessionKey: "same", Run: run}))
	}
	for _, id := range ids {
		waitForFinished(t, q, id)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&maxActive))
}

func TestQueueUnknownIDReportsPending(t *testing.T) {
	q := NewQueue(1, 0, logger.NewNop())
	defer q.Close()

	st := q.Status("no-such-job")
	assert.Equal(t, StatePending, st.State)
	assert.Equal(t, "no-such-job", st.ID)
}

func TestQueueStateIsMonotonic(t *testing.T) {
	q := NewQueue(1, 0, logger.NewNop())
	defer q.Close()

	id := q.Submit(Task{
		Run: func(ctx context.Context, progress func(any)) (any, error) {
			return "first", nil
		},
	})
	st := waitForFinished(t, q, id)
	require.Equal(t, StateSuccess, st.State)

	// A late progress signal must not demote a finished job; simulate by
	// polling again after a delay.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StateSuccess, q.Status(id).State)
	assert.Equal(t, "first", q.Status(id).Payload)
}

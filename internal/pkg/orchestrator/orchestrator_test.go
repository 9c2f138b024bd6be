package orchestrator

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"course_checkout/pkg/logger"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	logger.Log = zap.NewNop()
	os.Exit(m.Run())
}

func TestDispatch(t *testing.T) {
	t.Run("All tasks in a batch run to completion", func(t *testing.T) {
		o := New(time.Second)
		var ran int32

		o.Dispatch("pay_1",
			Task{Name: "a", Run: func(ctx context.Context) error { atomic.AddInt32(&ran, 1); return nil }},
			Task{Name: "b", Run: func(ctx context.Context) error { atomic.AddInt32(&ran, 1); return nil }},
			Task{Name: "c", Run: func(ctx context.Context) error { atomic.AddInt32(&ran, 1); return nil }},
		)
		o.Wait()

		assert.Equal(t, int32(3), atomic.LoadInt32(&ran))
	})

	t.Run("One failing task does not stop its siblings", func(t *testing.T) {
		o := New(time.Second)
		var ran int32

		o.Dispatch("pay_2",
			Task{Name: "failing", Run: func(ctx context.Context) error { return errors.New("smtp refused") }},
			Task{Name: "sibling", Run: func(ctx context.Context) error { atomic.AddInt32(&ran, 1); return nil }},
		)
		o.Wait()

		assert.Equal(t, int32(1), atomic.LoadInt32(&ran))
	})

	t.Run("A panicking task is contained", func(t *testing.T) {
		o := New(time.Second)
		var ran int32

		o.Dispatch("pay_3",
			Task{Name: "panicking", Run: func(ctx context.Context) error { panic("nil sheet row") }},
			Task{Name: "sibling", Run: func(ctx context.Context) error { atomic.AddInt32(&ran, 1); return nil }},
		)
		o.Wait()

		assert.Equal(t, int32(1), atomic.LoadInt32(&ran))
	})

	t.Run("A slow task is cut off without holding the batch", func(t *testing.T) {
		o := New(50 * time.Millisecond)
		release := make(chan struct{})
		defer close(release)

		start := time.Now()
		o.Dispatch("pay_4",
			Task{Name: "slow", Run: func(ctx context.Context) error { <-release; return nil }},
			Task{Name: "fast", Run: func(ctx context.Context) error { return nil }},
		)
		o.Wait()

		assert.Less(t, time.Since(start), 2*time.Second)
	})

	t.Run("Wait covers batches from separate dispatches", func(t *testing.T) {
		o := New(time.Second)
		var ran int32

		o.Dispatch("pay_5", Task{Name: "a", Run: func(ctx context.Context) error { atomic.AddInt32(&ran, 1); return nil }})
		o.Dispatch("pay_6", Task{Name: "b", Run: func(ctx context.Context) error { atomic.AddInt32(&ran, 1); return nil }})
		o.Wait()

		assert.Equal(t, int32(2), atomic.LoadInt32(&ran))
	})

	t.Run("Task context carries the configured deadline", func(t *testing.T) {
		o := New(250 * time.Millisecond)
		var hadDeadline int32

		o.Dispatch("pay_7", Task{Name: "deadline", Run: func(ctx context.Context) error {
			if _, ok := ctx.Deadline(); ok {
				atomic.StoreInt32(&hadDeadline, 1)
			}
			return nil
		}})
		o.Wait()

		assert.Equal(t, int32(1), atomic.LoadInt32(&hadDeadline))
	})
}

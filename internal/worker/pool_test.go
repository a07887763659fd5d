package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunPreservesSubmissionOrder(t *testing.T) {
	pool := NewPool(3)

	// Task 0 finishes last, task 2 first: completion order is reversed
	// relative to submission order.
	delays := []time.Duration{30 * time.Millisecond, 15 * time.Millisecond, 1 * time.Millisecond}
	results := make([]string, len(delays))
	labels := []string{"A", "B", "C"}

	var mu sync.Mutex
	var completionOrder []int

	pool.Run(context.Background(), len(delays), func(ctx context.Context, i int) {
		time.Sleep(delays[i])
		results[i] = labels[i]

		mu.Lock()
		completionOrder = append(completionOrder, i)
		mu.Unlock()
	})

	// Slots line up with submission order even though completion reversed.
	assert.Equal(t, []string{"A", "B", "C"}, results)
	assert.Equal(t, []int{2, 1, 0}, completionOrder)
}

func TestRunBoundsConcurrency(t *testing.T) {
	const maxWorkers = 2
	const tasks = 10

	pool := NewPool(maxWorkers)

	var inflight, peak int32
	pool.Run(context.Background(), tasks, func(ctx context.Context, i int) {
		cur := atomic.AddInt32(&inflight, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if cur <= old || atomic.CompareAndSwapInt32(&peak, old, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inflight, -1)
	})

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(maxWorkers))
}

func TestRunExecutesEveryTaskOnce(t *testing.T) {
	pool := NewPool(4)

	const tasks = 25
	calls := make([]int32, tasks)
	pool.Run(context.Background(), tasks, func(ctx context.Context, i int) {
		atomic.AddInt32(&calls[i], 1)
	})

	for i, n := range calls {
		require.Equal(t, int32(1), n, "task %d", i)
	}
}

func TestRunZeroTasks(t *testing.T) {
	pool := NewPool(2)
	// Must return immediately without deadlocking.
	pool.Run(context.Background(), 0, func(ctx context.Context, i int) {
		t.Fatal("should not be called")
	})
}

func TestNewPoolDefaultSize(t *testing.T) {
	pool := NewPool(0)
	assert.Equal(t, DefaultSize(), pool.Size())
	assert.LessOrEqual(t, pool.Size(), 8)
	assert.GreaterOrEqual(t, pool.Size(), 1)
}

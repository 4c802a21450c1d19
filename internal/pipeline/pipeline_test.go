package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type countingDispatcher struct {
	mu       sync.Mutex
	seen     []uint64
	lastSeen int64
}

func (d *countingDispatcher) Dispatch(ctx context.Context, req Request) (any, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen = append(d.seen, req.ID)
	return fmt.Sprintf("created %v", req.Args["path"]), nil
}

func TestConcurrentProducersAllProcessed(t *testing.T) {
	d := &countingDispatcher{}
	p := New(d, 2000)
	p.Start(context.Background())
	defer p.Stop()

	const total = 200
	var wg sync.WaitGroup
	var counter atomic.Uint64

	for producer := 0; producer < 8; producer++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < total/8; i++ {
				id := p.NextID()
				require.NoError(t, p.Enqueue(Request{
					ID:   id,
					Op:   OpFileCreate,
					Args: map[string]any{"path": fmt.Sprintf("/f-%d", id)},
				}))
				counter.Add(1)
			}
		}()
	}
	wg.Wait()
	require.EqualValues(t, total, counter.Load())

	deadline := time.Now().Add(2 * time.Second)
	for p.Stats().TotalProcessed < total && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	require.EqualValues(t, total, p.Stats().TotalProcessed)
}

func TestDequeueResponseReturnsResult(t *testing.T) {
	d := &countingDispatcher{}
	p := New(d, 16)
	p.Start(context.Background())
	defer p.Stop()

	id := p.NextID()
	require.NoError(t, p.Enqueue(Request{ID: id, Op: OpFileCreate, Args: map[string]any{"path": "/a"}}))

	resp, err := p.DequeueResponse(id, time.Second)
	require.NoError(t, err)
	require.Equal(t, id, resp.ID)
}

func TestDequeueResponseTimesOut(t *testing.T) {
	d := &countingDispatcher{}
	p := New(d, 16)
	// never started: nothing drains the queue, so the response never arrives.

	id := p.NextID()
	require.NoError(t, p.Enqueue(Request{ID: id, Op: OpFileCreate}))

	_, err := p.DequeueResponse(id, 20*time.Millisecond)
	require.Error(t, err)
}

func TestEnqueueAfterStopFails(t *testing.T) {
	d := &countingDispatcher{}
	p := New(d, 16)
	p.Pause() // not running yet, so Pause is a no-op; verifies it doesn't panic pre-Start

	p.Start(context.Background())
	p.Stop()

	id := p.NextID()
	err := p.Enqueue(Request{ID: id, Op: OpFileCreate})
	require.Error(t, err)
}

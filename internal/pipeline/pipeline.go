// Package pipeline implements the engine's request pipeline (spec
// §4.10): a bounded FIFO queue drained by a single worker goroutine,
// giving a total order over container mutations. It generalizes
// original_source's FIFOQueue/Operation/OperationResult to a typed
// request/response pair dispatched through a Dispatcher.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/omnifs/omnifs/internal/pkg/omnierr"
)

// OpKind enumerates every request shape the pipeline accepts (spec
// §6.3).
type OpKind string

const (
	OpLogin          OpKind = "LOGIN"
	OpLogout         OpKind = "LOGOUT"
	OpCreateUser     OpKind = "CREATE_USER"
	OpDeleteUser     OpKind = "DELETE_USER"
	OpListUsers      OpKind = "LIST_USERS"
	OpFileCreate     OpKind = "FILE_CREATE"
	OpFileRead       OpKind = "FILE_READ"
	OpFileEdit       OpKind = "FILE_EDIT"
	OpFileDelete     OpKind = "FILE_DELETE"
	OpFileTruncate   OpKind = "FILE_TRUNCATE"
	OpFileExists     OpKind = "FILE_EXISTS"
	OpFileRename     OpKind = "FILE_RENAME"
	OpDirCreate      OpKind = "DIR_CREATE"
	OpDirList        OpKind = "DIR_LIST"
	OpDirDelete      OpKind = "DIR_DELETE"
	OpDirExists      OpKind = "DIR_EXISTS"
	OpGetMetadata    OpKind = "GET_METADATA"
	OpSetPermissions OpKind = "SET_PERMISSIONS"
	OpGetStats       OpKind = "GET_STATS"
)

// Request is what a producer enqueues.
type Request struct {
	ID         uint64
	SessionID  string
	Op         OpKind
	Args       map[string]any
	EnqueuedAt uint64
}

// Response is what DequeueResponse eventually returns for a given
// request id.
type Response struct {
	ID       uint64
	Status   omnierr.Code
	Payload  any
	TookMs   uint64
	At       uint64
}

// Dispatcher executes one request against the engine and produces its
// payload; the pipeline only handles ordering, queuing, and timing.
type Dispatcher interface {
	Dispatch(ctx context.Context, req Request) (any, error)
}

// State is the server lifecycle state machine from spec §4.10.
type State int32

const (
	Uninitialized State = iota
	Initialized
	Running
	Paused
	Stopped
)

// Stats is the worker's published statistics view (spec §4.10),
// readable concurrently from any goroutine.
type Stats struct {
	TotalProcessed     uint64
	CurrentlyQueued    int
	TotalErrored       uint64
	AvgProcessingMs    float64
}

// Pipeline is the bounded-queue, single-worker executor. Exactly two
// synchronization primitives back it, per spec §5's locking
// discipline: the request channel (producer/consumer) and the
// response map (guarded by mu, with a per-id wakeup channel).
type Pipeline struct {
	dispatcher Dispatcher
	queue      chan Request

	state atomic.Int32

	mu        sync.Mutex
	responses map[uint64]chan Response
	waiting   map[uint64]bool

	nextID atomic.Uint64

	totalProcessed atomic.Uint64
	totalErrored   atomic.Uint64
	totalMs        atomic.Uint64

	done chan struct{}
	now  func() uint64
}

// New builds a Pipeline with the given bounded queue capacity.
func New(dispatcher Dispatcher, capacity int) *Pipeline {
	if capacity <= 0 {
		capacity = 256
	}
	p := &Pipeline{
		dispatcher: dispatcher,
		queue:      make(chan Request, capacity),
		responses:  make(map[uint64]chan Response),
		done:       make(chan struct{}),
		now:        func() uint64 { return uint64(time.Now().UnixMilli()) },
	}
	p.state.Store(int32(Initialized))
	return p
}

// Start launches the single worker goroutine. Calling Start twice is
// a no-op once the pipeline has left Initialized.
func (p *Pipeline) Start(ctx context.Context) {
	if !p.state.CompareAndSwap(int32(Initialized), int32(Running)) {
		return
	}
	go p.run(ctx)
}

// Pause stops the worker from dispatching new requests without
// draining the queue; Enqueue still accepts work.
func (p *Pipeline) Pause() {
	p.state.CompareAndSwap(int32(Running), int32(Paused))
}

// Resume undoes Pause.
func (p *Pipeline) Resume() {
	p.state.CompareAndSwap(int32(Paused), int32(Running))
}

// Stop drains any queued requests with a Shutdown response and
// signals the worker to exit once it finishes whatever it is
// currently processing.
func (p *Pipeline) Stop() {
	prev := State(p.state.Swap(int32(Stopped)))
	if prev == State(Stopped) || prev == Uninitialized {
		return
	}
	close(p.done)
}

// Enqueue submits req without blocking; it fails if the queue is full
// or the pipeline has stopped.
func (p *Pipeline) Enqueue(req Request) error {
	const op = "pipeline.Pipeline.Enqueue"

	if State(p.state.Load()) == Stopped {
		return omnierr.New(omnierr.Shutdown, op, "pipeline is stopped")
	}

	p.mu.Lock()
	p.responses[req.ID] = make(chan Response, 1)
	p.mu.Unlock()

	select {
	case p.queue <- req:
		return nil
	default:
		p.mu.Lock()
		delete(p.responses, req.ID)
		p.mu.Unlock()
		return omnierr.New(omnierr.NoSpace, op, "request queue full")
	}
}

// NextID hands out monotonically increasing request ids.
func (p *Pipeline) NextID() uint64 {
	return p.nextID.Add(1)
}

// DequeueResponse blocks up to timeout for req's response to appear.
func (p *Pipeline) DequeueResponse(id uint64, timeout time.Duration) (Response, error) {
	const op = "pipeline.Pipeline.DequeueResponse"

	p.mu.Lock()
	ch, ok := p.responses[id]
	p.mu.Unlock()
	if !ok {
		return Response{}, omnierr.New(omnierr.NotFound, op, "unknown request id")
	}

	select {
	case resp := <-ch:
		p.mu.Lock()
		delete(p.responses, id)
		p.mu.Unlock()
		return resp, nil
	case <-time.After(timeout):
		return Response{}, fmt.Errorf("%s: timed out waiting for request %d", op, id)
	}
}

func (p *Pipeline) Stats() Stats {
	processed := p.totalProcessed.Load()
	var avg float64
	if processed > 0 {
		avg = float64(p.totalMs.Load()) / float64(processed)
	}
	return Stats{
		TotalProcessed:  processed,
		CurrentlyQueued: len(p.queue),
		TotalErrored:    p.totalErrored.Load(),
		AvgProcessingMs: avg,
	}
}

func (p *Pipeline) run(ctx context.Context) {
	for {
		select {
		case <-p.done:
			p.drain()
			return
		case req, ok := <-p.queue:
			if !ok {
				return
			}
			select {
			case <-p.done:
				p.deliver(req, Response{ID: req.ID, Status: omnierr.Shutdown, At: p.now()})
				p.drain()
				return
			default:
			}
			for State(p.state.Load()) == Paused {
				time.Sleep(5 * time.Millisecond)
				select {
				case <-p.done:
					p.deliver(req, Response{ID: req.ID, Status: omnierr.Shutdown, At: p.now()})
					return
				default:
				}
			}
			p.process(ctx, req)
		}
	}
}

func (p *Pipeline) process(ctx context.Context, req Request) {
	start := time.Now()
	payload, err := p.dispatcher.Dispatch(ctx, req)
	took := uint64(time.Since(start).Milliseconds())

	status := omnierr.OK
	if err != nil {
		status = omnierr.CodeOf(err)
		p.totalErrored.Add(1)
	}
	p.totalProcessed.Add(1)
	p.totalMs.Add(took)

	p.deliver(req, Response{
		ID:      req.ID,
		Status:  status,
		Payload: payload,
		TookMs:  took,
		At:      p.now(),
	})
}

func (p *Pipeline) deliver(req Request, resp Response) {
	p.mu.Lock()
	ch, ok := p.responses[req.ID]
	p.mu.Unlock()
	if !ok {
		return
	}
	ch <- resp
}

// drain flushes every request still sitting in the queue with a
// Shutdown response, per spec §4.10's "pending requests receive
// Shutdown" discipline.
func (p *Pipeline) drain() {
	for {
		select {
		case req := <-p.queue:
			p.deliver(req, Response{ID: req.ID, Status: omnierr.Shutdown, At: p.now()})
		default:
			return
		}
	}
}

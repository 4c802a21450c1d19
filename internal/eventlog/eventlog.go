// Package eventlog is the engine's structured event emitter (spec
// §4.11): every worker-executed operation produces a Record, handed
// to a Sink collaborator and also retained in a bounded in-memory
// ring for post-mortem dumps. It generalizes original_source's
// Logger, which distinguished a file-op shape from a user-op shape
// (log_file_op/log_user_op) rather than one generic record.
package eventlog

import (
	"sync"

	"github.com/omnifs/omnifs/internal/pkg/omnierr"
)

// Level mirrors original_source's Logger::Level ordering.
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warn:
		return "WARN"
	case Error:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Record is the generic shape every event carries.
type Record struct {
	Level       Level
	Component   string
	Code        omnierr.Code
	Message     string
	Timestamp   uint64
	SessionUser string

	// FileOp/UserOp are set only for the respective operation shapes
	// (original_source's log_file_op/log_user_op); both are empty for
	// a plain component-level record.
	FileOp *FileOpRecord
	UserOp *UserOpRecord
}

// FileOpRecord is the richer shape emitted for file/directory
// operations, naming the path and whether it succeeded.
type FileOpRecord struct {
	OpType  string
	Path    string
	Success bool
	Details string
}

// UserOpRecord is the richer shape emitted for user-management
// operations, naming the actor distinct from the target user.
type UserOpRecord struct {
	OpType     string
	TargetUser string
	ActorUser  string
	Success    bool
	Details    string
}

// Sink is the out-of-scope collaborator that persists or discards
// records; the engine only ever calls Emit.
type Sink interface {
	Emit(Record)
}

// Ring is a bounded in-memory buffer of the most recent N records,
// always retained regardless of whether a Sink is attached.
type Ring struct {
	mu   sync.Mutex
	buf  []Record
	head int
	size int
	sink Sink
}

// NewRing builds a ring holding up to capacity records. sink may be
// nil, in which case records are only retained in the ring.
func NewRing(capacity int, sink Sink) *Ring {
	if capacity <= 0 {
		capacity = 256
	}
	return &Ring{buf: make([]Record, capacity), sink: sink}
}

// Emit appends rec to the ring, overwriting the oldest entry once
// full, and forwards it to the attached sink, if any.
func (r *Ring) Emit(rec Record) {
	r.mu.Lock()
	r.buf[r.head] = rec
	r.head = (r.head + 1) % len(r.buf)
	if r.size < len(r.buf) {
		r.size++
	}
	r.mu.Unlock()

	if r.sink != nil {
		r.sink.Emit(rec)
	}
}

// Snapshot returns the retained records in emission order, oldest
// first.
func (r *Ring) Snapshot() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Record, r.size)
	start := (r.head - r.size + len(r.buf)) % len(r.buf)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(start+i)%len(r.buf)]
	}
	return out
}

// Package engine is the top-level value object described in spec §9:
// it owns the container file handle, every in-memory mirror (user
// table, metadata table, bitmap), the session map, and the event
// ring. A pipeline worker is the only intended caller of its mutating
// methods; Stats is safe to call from any goroutine.
package engine

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/omnifs/omnifs/internal/config"
	"github.com/omnifs/omnifs/internal/container"
	"github.com/omnifs/omnifs/internal/container/codec"
	"github.com/omnifs/omnifs/internal/engine/session"
	"github.com/omnifs/omnifs/internal/eventlog"
	"github.com/omnifs/omnifs/internal/pkg/omnierr"
)

// Engine is the single value that replaces the source's global
// storage/user-manager/session-map singletons (spec §9).
type Engine struct {
	mu sync.Mutex

	file   *container.File
	layout container.Layout
	header container.Header

	users    *container.UserTable
	metadata *container.MetadataTable
	bitmap   *container.Bitmap
	chain    *container.ChainIO
	codec    *codec.Codec

	sessions *session.Manager
	events   *eventlog.Ring

	cfg *config.Config

	readOnly atomic.Bool

	// now is overridable in tests; defaults to wall-clock seconds.
	now func() uint64
}

// Stats is the value returned by GET_STATS (spec §6.3), supplemented
// with original_source's get_free_space/get_total_blocks/get_used_blocks
// accessors.
type Stats struct {
	TotalBlocks     uint32
	UsedBlocks      uint32
	FreeBlocks      uint32
	FreeSpaceBytes  uint64
	ActiveSessions  int
	ActiveUsers     int
	MetadataEntries uint32
}

func wallClock() uint64 { return uint64(time.Now().Unix()) }

// Format creates a brand-new container at path per cfg, seeds the
// admin user, and returns it open and ready.
func Format(path string, cfg *config.Config, sink eventlog.Sink) (*Engine, error) {
	const op = "engine.Format"

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	layout, err := container.ComputeLayout(cfg.TotalSize, cfg.HeaderSize, cfg.BlockSize, cfg.MaxUsers, cfg.MaxFiles)
	if err != nil {
		return nil, omnierr.Wrap(omnierr.InvalidConfig, op, err)
	}

	file, err := container.CreateFile(path, int64(cfg.TotalSize))
	if err != nil {
		return nil, omnierr.Wrap(omnierr.Io, op, err)
	}
	if err := file.Lock(); err != nil {
		file.Close()
		return nil, omnierr.Wrap(omnierr.Io, op, err)
	}

	now := wallClock()
	header := container.NewHeader(cfg.TotalSize, layout, "", formatDate(now))

	e := &Engine{
		file:     file,
		layout:   layout,
		header:   header,
		users:    container.NewUserTable(layout.MaxUsers),
		metadata: container.NewMetadataTable(layout.MaxMetadataEntries, now),
		bitmap:   container.NewBitmap(layout.BlockCount),
		codec:    codec.New(),
		sessions: session.NewManager(uint64(cfg.SessionTTL.Seconds())),
		events:   eventlog.NewRing(512, sink),
		cfg:      cfg,
		now:      wallClock,
	}
	e.chain = container.NewChainIO(e.file, e.layout, e.bitmap, e.codec)

	if err := e.persistAll(); err != nil {
		file.Close()
		return nil, omnierr.Wrap(omnierr.Io, op, err)
	}

	hash, err := session.HashPassword(cfg.AdminPassword)
	if err != nil {
		file.Close()
		return nil, omnierr.Wrap(omnierr.Io, op, err)
	}
	admin := container.UserRecord{
		Username:     cfg.AdminUsername,
		PasswordHash: hash,
		Role:         container.RoleAdmin,
		CreatedTime:  now,
		IsActive:     true,
	}
	if _, ok := e.users.Add(admin); !ok {
		file.Close()
		return nil, omnierr.New(omnierr.InvalidConfig, op, "failed to seed admin user")
	}
	if err := e.users.Persist(e.file, e.layout); err != nil {
		file.Close()
		return nil, omnierr.Wrap(omnierr.Io, op, err)
	}

	e.emit(eventlog.Info, op, omnierr.OK, "container formatted", "system")
	return e, nil
}

// Open loads an existing container, validating the on-disk header
// against a freshly recomputed layout (spec §4.2's CorruptHeader
// check).
func Open(path string, cfg *config.Config, sink eventlog.Sink) (*Engine, error) {
	const op = "engine.Open"

	file, err := container.OpenFile(path)
	if err != nil {
		return nil, omnierr.Wrap(omnierr.Io, op, err)
	}
	if err := file.Lock(); err != nil {
		file.Close()
		return nil, omnierr.Wrap(omnierr.Io, op, err)
	}

	headerBuf := make([]byte, container.HeaderSize)
	if err := file.ReadAt(headerBuf, 0); err != nil {
		file.Close()
		return nil, omnierr.Wrap(omnierr.Io, op, err)
	}
	var header container.Header
	if err := header.UnmarshalBinary(headerBuf); err != nil {
		file.Close()
		return nil, omnierr.Wrap(omnierr.Corrupt, op, err)
	}

	layout, err := header.Validate(cfg.MaxFiles)
	if err != nil {
		file.Close()
		return nil, omnierr.Wrap(omnierr.Corrupt, op, err)
	}

	users, err := container.LoadUserTable(file, layout)
	if err != nil {
		file.Close()
		return nil, omnierr.Wrap(omnierr.Corrupt, op, err)
	}
	metadata, err := container.LoadMetadataTable(file, layout)
	if err != nil {
		file.Close()
		return nil, omnierr.Wrap(omnierr.Corrupt, op, err)
	}
	bitmap, err := container.LoadBitmap(file, layout)
	if err != nil {
		file.Close()
		return nil, omnierr.Wrap(omnierr.Corrupt, op, err)
	}

	c := codec.New()
	e := &Engine{
		file:     file,
		layout:   layout,
		header:   header,
		users:    users,
		metadata: metadata,
		bitmap:   bitmap,
		codec:    c,
		chain:    container.NewChainIO(file, layout, bitmap, c),
		sessions: session.NewManager(uint64(cfg.SessionTTL.Seconds())),
		events:   eventlog.NewRing(512, sink),
		cfg:      cfg,
		now:      wallClock,
	}
	e.emit(eventlog.Info, op, omnierr.OK, "container opened", "system")
	return e, nil
}

// Shutdown flushes dirty regions and releases the file handle. Any
// in-flight pipeline request must complete before the caller invokes
// Shutdown (spec §4.10's drain discipline) — Shutdown itself does not
// wait on a pipeline.
func (e *Engine) Shutdown(ctx context.Context) error {
	const op = "engine.Engine.Shutdown"

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.persistAllLocked(); err != nil {
		return omnierr.Wrap(omnierr.Io, op, err)
	}
	if err := e.file.Flush(); err != nil {
		return omnierr.Wrap(omnierr.Io, op, err)
	}
	if err := e.file.Unlock(); err != nil {
		return omnierr.Wrap(omnierr.Io, op, err)
	}
	e.emit(eventlog.Info, op, omnierr.OK, "container shut down", "system")
	return e.file.Close()
}

// Stats is safe for concurrent use — it only reads.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	free := e.bitmap.FreeCount()
	return Stats{
		TotalBlocks:     e.bitmap.Len(),
		UsedBlocks:      e.bitmap.UsedCount(),
		FreeBlocks:      free,
		FreeSpaceBytes:  uint64(free) * uint64(e.layout.BlockSize),
		ActiveSessions:  e.sessions.Count(),
		ActiveUsers:     len(e.users.ListActive()),
		MetadataEntries: e.metadata.MaxEntries(),
	}
}

// Events returns the retained ring of recent event records, for
// post-mortem dumps and `omnifsctl fsck`-adjacent tooling.
func (e *Engine) Events() []eventlog.Record {
	return e.events.Snapshot()
}

func (e *Engine) persistAll() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.persistAllLocked()
}

func (e *Engine) persistAllLocked() error {
	headerBytes, err := e.header.MarshalBinary()
	if err != nil {
		return err
	}
	if err := e.file.WriteAt(headerBytes, 0); err != nil {
		return err
	}
	if err := e.users.Persist(e.file, e.layout); err != nil {
		return err
	}
	if err := e.metadata.Persist(e.file, e.layout); err != nil {
		return err
	}
	return e.bitmap.Persist(e.file, e.layout)
}

func (e *Engine) emit(level eventlog.Level, op string, code omnierr.Code, message, user string) {
	e.events.Emit(eventlog.Record{
		Level:       level,
		Component:   op,
		Code:        code,
		Message:     message,
		Timestamp:   e.now(),
		SessionUser: user,
	})
}

func formatDate(unixSeconds uint64) string {
	return time.Unix(int64(unixSeconds), 0).UTC().Format("2006-01-02")
}

// ownerID derives a stable numeric owner id from a username. The
// container only requires entries to record *an* owner_id (spec
// §3.3); it never needs to reverse the mapping back to a username.
func (e *Engine) ownerID(username string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(username))
	return h.Sum32()
}

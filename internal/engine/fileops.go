package engine

import (
	"github.com/omnifs/omnifs/internal/container"
	"github.com/omnifs/omnifs/internal/eventlog"
	"github.com/omnifs/omnifs/internal/pathresolver"
	"github.com/omnifs/omnifs/internal/pkg/omnierr"
)

// MetadataView is the safe-to-expose copy of a metadata entry
// returned by GetMetadata and listed by DirList.
type MetadataView struct {
	Name         string
	Type         container.EntryType
	TotalSize    uint64
	OwnerID      uint32
	Permissions  uint32
	CreatedTime  uint64
	ModifiedTime uint64
}

func toView(e container.MetadataEntry) MetadataView {
	return MetadataView{
		Name:         e.Name,
		Type:         e.Type,
		TotalSize:    e.TotalSize,
		OwnerID:      e.OwnerID,
		Permissions:  e.Permissions,
		CreatedTime:  e.CreatedTime,
		ModifiedTime: e.ModifiedTime,
	}
}

// FileCreate allocates a FILE entry under path's parent and writes
// buf as its initial payload (spec §4.8).
func (e *Engine) FileCreate(sessionID, path string, buf []byte) error {
	const op = "engine.Engine.FileCreate"

	s, err := e.ValidateSession(sessionID)
	if err != nil {
		return err
	}
	if err := pathresolver.ValidatePath(path); err != nil {
		return omnierr.Wrap(omnierr.InvalidPath, op, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	parentIdx, name, err := pathresolver.ResolveParent(e.metadata, container.RootIndex, path)
	if err != nil {
		e.emitFileOp(op, "file_create", path, s.Username, false, "parent not found")
		return omnierr.Wrap(omnierr.NotFound, op, err)
	}
	parent, ok := e.metadata.Get(parentIdx)
	if !ok || parent.Type != container.EntryDirectory {
		return omnierr.New(omnierr.NotFound, op, "parent is not a directory")
	}
	if _, exists := e.metadata.ChildByName(parentIdx, name); exists {
		e.emitFileOp(op, "file_create", path, s.Username, false, "already exists")
		return omnierr.New(omnierr.FileExists, op, "entry already exists")
	}

	now := e.now()
	idx, ok := e.metadata.Allocate(container.EntryFile, parentIdx, name, e.ownerID(s.Username), now)
	if !ok {
		return omnierr.New(omnierr.NoSpace, op, "metadata table full")
	}

	if len(buf) > 0 {
		entry, _ := e.metadata.Get(idx)
		if err := e.chain.WriteFileData(&entry, buf, now); err != nil {
			e.metadata.Free(idx)
			return omnierr.Wrap(omnierr.NoSpace, op, err)
		}
		e.metadata.Set(idx, entry)
	}

	if err := e.persistMetadataAndBitmap(); err != nil {
		return omnierr.Wrap(omnierr.Io, op, err)
	}
	e.emitFileOp(op, "file_create", path, s.Username, true, "")
	return nil
}

// FileRead returns an owned copy of a FILE's whole payload.
func (e *Engine) FileRead(sessionID, path string) ([]byte, error) {
	const op = "engine.Engine.FileRead"

	if _, err := e.ValidateSession(sessionID); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	entry, err := e.resolveEntry(op, path)
	if err != nil {
		return nil, err
	}
	if entry.Type != container.EntryFile {
		return nil, omnierr.New(omnierr.InvalidOperation, op, "not a file")
	}

	buf, err := e.chain.ReadFileData(entry)
	if err != nil {
		return nil, omnierr.Wrap(omnierr.Corrupt, op, err)
	}
	return buf, nil
}

// FileEdit replaces the byte range [offset, offset+len(buf)) of a
// file's payload, extending the file if the range reaches past its
// current end — the position-indexed partial overwrite spec §9 names
// as the required file_edit semantics (not delete-then-create).
func (e *Engine) FileEdit(sessionID, path string, buf []byte, offset uint64) error {
	const op = "engine.Engine.FileEdit"

	s, err := e.ValidateSession(sessionID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	idx, err := pathresolver.Resolve(e.metadata, container.RootIndex, path)
	if err != nil {
		return omnierr.Wrap(omnierr.NotFound, op, err)
	}
	entry, ok := e.metadata.Get(idx)
	if !ok {
		return omnierr.New(omnierr.NotFound, op, "not found")
	}
	if entry.Type != container.EntryFile {
		return omnierr.New(omnierr.InvalidOperation, op, "not a file")
	}

	original, err := e.chain.ReadFileData(entry)
	if err != nil {
		return omnierr.Wrap(omnierr.Corrupt, op, err)
	}

	end := offset + uint64(len(buf))
	result := make([]byte, maxU64(end, uint64(len(original))))
	copy(result, original)
	copy(result[offset:], buf)

	now := e.now()
	if err := e.chain.WriteFileData(&entry, result, now); err != nil {
		return omnierr.Wrap(omnierr.NoSpace, op, err)
	}
	e.metadata.Set(idx, entry)

	if err := e.persistMetadataAndBitmap(); err != nil {
		return omnierr.Wrap(omnierr.Io, op, err)
	}
	e.emitFileOp(op, "file_edit", path, s.Username, true, "")
	return nil
}

func maxU64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

// FileDelete frees a FILE's chain, then its metadata slot.
func (e *Engine) FileDelete(sessionID, path string) error {
	const op = "engine.Engine.FileDelete"

	s, err := e.ValidateSession(sessionID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	idx, err := pathresolver.Resolve(e.metadata, container.RootIndex, path)
	if err != nil {
		return omnierr.Wrap(omnierr.NotFound, op, err)
	}
	entry, ok := e.metadata.Get(idx)
	if !ok {
		return omnierr.New(omnierr.NotFound, op, "not found")
	}
	if entry.Type != container.EntryFile {
		return omnierr.New(omnierr.InvalidOperation, op, "not a file")
	}

	if entry.StartBlock != 0 {
		if err := e.chain.FreeChain(entry.StartBlock); err != nil {
			return omnierr.Wrap(omnierr.Io, op, err)
		}
	}
	if err := e.metadata.Free(idx); err != nil {
		return omnierr.Wrap(omnierr.Io, op, err)
	}
	if err := e.persistMetadataAndBitmap(); err != nil {
		return omnierr.Wrap(omnierr.Io, op, err)
	}
	e.emitFileOp(op, "file_delete", path, s.Username, true, "")
	return nil
}

// FileTruncate frees a FILE's chain and zeroes its size, without
// freeing the metadata entry itself.
func (e *Engine) FileTruncate(sessionID, path string) error {
	const op = "engine.Engine.FileTruncate"

	s, err := e.ValidateSession(sessionID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	idx, err := pathresolver.Resolve(e.metadata, container.RootIndex, path)
	if err != nil {
		return omnierr.Wrap(omnierr.NotFound, op, err)
	}
	entry, ok := e.metadata.Get(idx)
	if !ok {
		return omnierr.New(omnierr.NotFound, op, "not found")
	}
	if entry.Type != container.EntryFile {
		return omnierr.New(omnierr.InvalidOperation, op, "not a file")
	}

	if err := e.chain.WriteFileData(&entry, nil, e.now()); err != nil {
		return omnierr.Wrap(omnierr.Io, op, err)
	}
	e.metadata.Set(idx, entry)

	if err := e.persistMetadataAndBitmap(); err != nil {
		return omnierr.Wrap(omnierr.Io, op, err)
	}
	e.emitFileOp(op, "file_truncate", path, s.Username, true, "")
	return nil
}

// FileRename changes only an entry's name — cross-parent rename is
// out of scope (spec §9's codified restriction).
func (e *Engine) FileRename(sessionID, oldPath, newPath string) error {
	const op = "engine.Engine.FileRename"

	s, err := e.ValidateSession(sessionID)
	if err != nil {
		return err
	}
	if err := pathresolver.ValidatePath(newPath); err != nil {
		return omnierr.Wrap(omnierr.InvalidPath, op, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	idx, err := pathresolver.Resolve(e.metadata, container.RootIndex, oldPath)
	if err != nil {
		return omnierr.Wrap(omnierr.NotFound, op, err)
	}
	entry, ok := e.metadata.Get(idx)
	if !ok {
		return omnierr.New(omnierr.NotFound, op, "not found")
	}

	oldParentPath, _ := pathresolver.Split(oldPath)
	newParentPath, newName := pathresolver.Split(newPath)
	if oldParentPath != newParentPath {
		return omnierr.New(omnierr.InvalidPath, op, "rename cannot move an entry to a new parent")
	}
	if _, exists := e.metadata.ChildByName(entry.ParentIndex, newName); exists {
		return omnierr.New(omnierr.FileExists, op, "destination name already taken")
	}

	entry.Name = newName
	entry.ModifiedTime = e.now()
	if err := e.metadata.Set(idx, entry); err != nil {
		return omnierr.Wrap(omnierr.Io, op, err)
	}
	if err := e.metadata.Persist(e.file, e.layout); err != nil {
		return omnierr.Wrap(omnierr.Io, op, err)
	}
	e.emitFileOp(op, "file_rename", oldPath, s.Username, true, newPath)
	return nil
}

// FileExists reports whether path resolves to anything at all — it
// only rejects syntactically invalid paths.
func (e *Engine) FileExists(sessionID, path string) (bool, error) {
	const op = "engine.Engine.FileExists"

	if _, err := e.ValidateSession(sessionID); err != nil {
		return false, err
	}
	if err := pathresolver.ValidatePath(path); err != nil {
		return false, omnierr.Wrap(omnierr.InvalidPath, op, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	_, err := pathresolver.Resolve(e.metadata, container.RootIndex, path)
	return err == nil, nil
}

// GetMetadata returns a copy of the entry path resolves to.
func (e *Engine) GetMetadata(sessionID, path string) (MetadataView, error) {
	const op = "engine.Engine.GetMetadata"

	if _, err := e.ValidateSession(sessionID); err != nil {
		return MetadataView{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	entry, err := e.resolveEntry(op, path)
	if err != nil {
		return MetadataView{}, err
	}
	return toView(entry), nil
}

// SetPermissions stores mode on the entry path resolves to.
func (e *Engine) SetPermissions(sessionID, path string, mode uint32) error {
	const op = "engine.Engine.SetPermissions"

	if _, err := e.ValidateSession(sessionID); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	idx, err := pathresolver.Resolve(e.metadata, container.RootIndex, path)
	if err != nil {
		return omnierr.Wrap(omnierr.NotFound, op, err)
	}
	entry, ok := e.metadata.Get(idx)
	if !ok {
		return omnierr.New(omnierr.NotFound, op, "not found")
	}
	entry.Permissions = mode
	entry.ModifiedTime = e.now()
	if err := e.metadata.Set(idx, entry); err != nil {
		return omnierr.Wrap(omnierr.Io, op, err)
	}
	return e.metadata.Persist(e.file, e.layout)
}

func (e *Engine) resolveEntry(op, path string) (container.MetadataEntry, error) {
	idx, err := pathresolver.Resolve(e.metadata, container.RootIndex, path)
	if err != nil {
		return container.MetadataEntry{}, omnierr.Wrap(omnierr.NotFound, op, err)
	}
	entry, ok := e.metadata.Get(idx)
	if !ok {
		return container.MetadataEntry{}, omnierr.New(omnierr.NotFound, op, "not found")
	}
	return entry, nil
}

func (e *Engine) persistMetadataAndBitmap() error {
	if err := e.metadata.Persist(e.file, e.layout); err != nil {
		return err
	}
	return e.bitmap.Persist(e.file, e.layout)
}

func (e *Engine) emitFileOp(op, opType, path, user string, success bool, details string) {
	code := omnierr.OK
	level := eventlog.Info
	if !success {
		code = omnierr.Io
		level = eventlog.Warn
	}
	e.events.Emit(eventlog.Record{
		Level:       level,
		Component:   op,
		Code:        code,
		Timestamp:   e.now(),
		SessionUser: user,
		FileOp: &eventlog.FileOpRecord{
			OpType:  opType,
			Path:    path,
			Success: success,
			Details: details,
		},
	})
}

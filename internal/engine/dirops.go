package engine

import (
	"sort"

	"github.com/omnifs/omnifs/internal/container"
	"github.com/omnifs/omnifs/internal/pathresolver"
	"github.com/omnifs/omnifs/internal/pkg/omnierr"
)

// DirCreate allocates a DIRECTORY entry under path's parent.
func (e *Engine) DirCreate(sessionID, path string) error {
	const op = "engine.Engine.DirCreate"

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
		return omnierr.Wrap(omnierr.NotFound, op, err)
	}
	parent, ok := e.metadata.Get(parentIdx)
	if !ok || parent.Type != container.EntryDirectory {
		return omnierr.New(omnierr.NotFound, op, "parent is not a directory")
	}
	if _, exists := e.metadata.ChildByName(parentIdx, name); exists {
		return omnierr.New(omnierr.FileExists, op, "entry already exists")
	}

	if _, ok := e.metadata.Allocate(container.EntryDirectory, parentIdx, name, e.ownerID(s.Username), e.now()); !ok {
		return omnierr.New(omnierr.NoSpace, op, "metadata table full")
	}
	if err := e.metadata.Persist(e.file, e.layout); err != nil {
		return omnierr.Wrap(omnierr.Io, op, err)
	}
	e.emitFileOp(op, "dir_create", path, s.Username, true, "")
	return nil
}

// DirList returns the stable-ordered children of the DIRECTORY path
// resolves to.
func (e *Engine) DirList(sessionID, path string) ([]MetadataView, error) {
	const op = "engine.Engine.DirList"

	if _, err := e.ValidateSession(sessionID); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	idx, err := pathresolver.Resolve(e.metadata, container.RootIndex, path)
	if err != nil {
		return nil, omnierr.Wrap(omnierr.NotFound, op, err)
	}
	entry, ok := e.metadata.Get(idx)
	if !ok || entry.Type != container.EntryDirectory {
		return nil, omnierr.New(omnierr.InvalidOperation, op, "not a directory")
	}

	children := e.metadata.Children(idx)
	out := make([]MetadataView, 0, len(children))
	for _, c := range children {
		child, ok := e.metadata.Get(c)
		if !ok {
			continue
		}
		out = append(out, toView(child))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// DirDelete frees a DIRECTORY entry; it fails DirectoryNotEmpty if
// the directory still has children.
func (e *Engine) DirDelete(sessionID, path string) error {
	const op = "engine.Engine.DirDelete"

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
	if !ok || entry.Type != container.EntryDirectory {
		return omnierr.New(omnierr.InvalidOperation, op, "not a directory")
	}
	if len(e.metadata.Children(idx)) > 0 {
		return omnierr.New(omnierr.DirectoryNotEmpty, op, "directory has children")
	}

	if err := e.metadata.Free(idx); err != nil {
		return omnierr.Wrap(omnierr.Io, op, err)
	}
	if err := e.metadata.Persist(e.file, e.layout); err != nil {
		return omnierr.Wrap(omnierr.Io, op, err)
	}
	e.emitFileOp(op, "dir_delete", path, s.Username, true, "")
	return nil
}

// DirExists reports whether path resolves to a DIRECTORY entry.
func (e *Engine) DirExists(sessionID, path string) (bool, error) {
	const op = "engine.Engine.DirExists"

	if _, err := e.ValidateSession(sessionID); err != nil {
		return false, err
	}
	if err := pathresolver.ValidatePath(path); err != nil {
		return false, omnierr.Wrap(omnierr.InvalidPath, op, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	idx, err := pathresolver.Resolve(e.metadata, container.RootIndex, path)
	if err != nil {
		return false, nil
	}
	entry, ok := e.metadata.Get(idx)
	return ok && entry.Type == container.EntryDirectory, nil
}

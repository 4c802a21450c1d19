package engine

import (
	"context"
	"fmt"
	"strconv"

	"github.com/omnifs/omnifs/internal/container"
	"github.com/omnifs/omnifs/internal/pipeline"
	"github.com/omnifs/omnifs/internal/pkg/omnierr"
)

// Dispatcher adapts *Engine to pipeline.Dispatcher, translating each
// pipeline.Request into the Engine method call spec §6.3's OpKind
// names. It holds no state of its own.
type Dispatcher struct {
	engine *Engine
}

// NewDispatcher wraps e for use as a pipeline.Dispatcher.
func NewDispatcher(e *Engine) *Dispatcher {
	return &Dispatcher{engine: e}
}

var _ pipeline.Dispatcher = (*Dispatcher)(nil)

// Dispatch runs req against the wrapped engine. It never blocks on
// anything but the engine's own mutex, so the pipeline's single
// worker stays the sole point of serialization.
func (d *Dispatcher) Dispatch(ctx context.Context, req pipeline.Request) (any, error) {
	const op = "engine.Dispatcher.Dispatch"
	e := d.engine

	arg := func(key string) string {
		v, _ := req.Args[key].(string)
		return v
	}
	argBytes := func(key string) []byte {
		switch v := req.Args[key].(type) {
		case []byte:
			return v
		case string:
			return []byte(v)
		}
		return nil
	}
	argU64 := func(key string) uint64 {
		switch v := req.Args[key].(type) {
		case uint64:
			return v
		case uint32:
			return uint64(v)
		case int:
			return uint64(v)
		case float64:
			return uint64(v)
		case string:
			n, _ := strconv.ParseUint(v, 10, 64)
			return n
		}
		return 0
	}
	argU32 := func(key string) uint32 { return uint32(argU64(key)) }

	switch req.Op {
	case pipeline.OpLogin:
		return e.Login(arg("username"), arg("password"))
	case pipeline.OpLogout:
		e.Logout(req.SessionID)
		return nil, nil
	case pipeline.OpCreateUser:
		role := container.RoleNormal
		if arg("role") == "admin" {
			role = container.RoleAdmin
		}
		return nil, e.CreateUser(req.SessionID, arg("username"), arg("password"), role)
	case pipeline.OpDeleteUser:
		return nil, e.DeleteUser(req.SessionID, arg("username"))
	case pipeline.OpListUsers:
		return e.ListUsers(req.SessionID)
	case pipeline.OpFileCreate:
		return nil, e.FileCreate(req.SessionID, arg("path"), argBytes("data"))
	case pipeline.OpFileRead:
		return e.FileRead(req.SessionID, arg("path"))
	case pipeline.OpFileEdit:
		return nil, e.FileEdit(req.SessionID, arg("path"), argBytes("data"), argU64("offset"))
	case pipeline.OpFileDelete:
		return nil, e.FileDelete(req.SessionID, arg("path"))
	case pipeline.OpFileTruncate:
		return nil, e.FileTruncate(req.SessionID, arg("path"))
	case pipeline.OpFileExists:
		return e.FileExists(req.SessionID, arg("path"))
	case pipeline.OpFileRename:
		return nil, e.FileRename(req.SessionID, arg("old_path"), arg("new_path"))
	case pipeline.OpDirCreate:
		return nil, e.DirCreate(req.SessionID, arg("path"))
	case pipeline.OpDirList:
		return e.DirList(req.SessionID, arg("path"))
	case pipeline.OpDirDelete:
		return nil, e.DirDelete(req.SessionID, arg("path"))
	case pipeline.OpDirExists:
		return e.DirExists(req.SessionID, arg("path"))
	case pipeline.OpGetMetadata:
		return e.GetMetadata(req.SessionID, arg("path"))
	case pipeline.OpSetPermissions:
		return nil, e.SetPermissions(req.SessionID, arg("path"), argU32("mode"))
	case pipeline.OpGetStats:
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return e.Stats(), nil
	default:
		return nil, omnierr.New(omnierr.NotImplemented, op, fmt.Sprintf("unknown op %q", req.Op))
	}
}

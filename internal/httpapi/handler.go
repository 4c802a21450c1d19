package httpapi

import (
	"encoding/base64"
	"net/http"
	"strconv"
	"time"

	"github.com/omnifs/omnifs/internal/engine"
	"github.com/omnifs/omnifs/internal/engine/session"
	"github.com/omnifs/omnifs/internal/pipeline"
	"github.com/omnifs/omnifs/internal/pkg/omnierr"
	"github.com/omnifs/omnifs/pkg/binary"
	"github.com/omnifs/omnifs/pkg/logging"
	"github.com/omnifs/omnifs/pkg/logging/slogext"
)

// Handler is the HTTP front-end over a running pipeline. Every
// exported method is a http.HandlerFunc registered by RegisterRoutes.
type Handler struct {
	pipeline     *pipeline.Pipeline
	queueTimeout time.Duration
}

// NewHandler builds a Handler. queueTimeout bounds how long a request
// waits for the pipeline's single worker to process it before the
// HTTP call fails with a timeout.
func NewHandler(p *pipeline.Pipeline, queueTimeout time.Duration) *Handler {
	return &Handler{pipeline: p, queueTimeout: queueTimeout}
}

// submit enqueues a request built from op/session/args and blocks for
// its response, writing the response's status+payload with encode on
// success. It always writes the response to w before returning, and
// reports true only when the request succeeded, so callers can just
// `return`.
func (h *Handler) submit(w http.ResponseWriter, r *http.Request, op pipeline.OpKind, sessionID string, args map[string]any, encode func(http.ResponseWriter, pipeline.Response) error) bool {
	ctx := r.Context()
	logger := logging.GetLoggerFromContextWithOp(ctx, string(op))

	id := h.pipeline.NextID()
	if err := h.pipeline.Enqueue(pipeline.Request{ID: id, SessionID: sessionID, Op: op, Args: args}); err != nil {
		logger.Warn("enqueue failed", slogext.Err(err))
		binary.WriteResponse(w, omnierr.CodeOf(err), nil)
		return false
	}

	resp, err := h.pipeline.DequeueResponse(id, h.queueTimeout)
	if err != nil {
		logger.Warn("dequeue timed out", slogext.Err(err))
		binary.WriteResponse(w, omnierr.Io, nil)
		return false
	}

	if resp.Status != omnierr.OK {
		binary.WriteResponse(w, resp.Status, nil)
		return false
	}

	if encode == nil {
		binary.WriteResponse(w, omnierr.OK, nil)
		return true
	}
	if err := encode(w, resp); err != nil {
		logger.Error("failed to encode response", slogext.Err(err))
	}
	return true
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	username := r.URL.Query().Get("username")
	password := r.URL.Query().Get("password")
	if username == "" || password == "" {
		binary.WriteResponse(w, omnierr.InvalidOperation, nil)
		return
	}

	h.submit(w, r, pipeline.OpLogin, "", map[string]any{"username": username, "password": password},
		func(w http.ResponseWriter, resp pipeline.Response) error {
			s, _ := resp.Payload.(session.Session)
			return binary.WriteResponse(w, resp.Status, []byte(s.ID))
		})
}

func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	sessionID := r.URL.Query().Get("session")
	h.submit(w, r, pipeline.OpLogout, sessionID, nil, nil)
}

func (h *Handler) HandleCreateUser(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	sessionID, username, password, role := q.Get("session"), q.Get("username"), q.Get("password"), q.Get("role")
	if sessionID == "" || username == "" || password == "" {
		binary.WriteResponse(w, omnierr.InvalidOperation, nil)
		return
	}
	h.submit(w, r, pipeline.OpCreateUser, sessionID, map[string]any{"username": username, "password": password, "role": role}, nil)
}

func (h *Handler) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	sessionID, username := q.Get("session"), q.Get("username")
	h.submit(w, r, pipeline.OpDeleteUser, sessionID, map[string]any{"username": username}, nil)
}

func (h *Handler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	sessionID := r.URL.Query().Get("session")
	h.submit(w, r, pipeline.OpListUsers, sessionID, nil, func(w http.ResponseWriter, resp pipeline.Response) error {
		users, _ := resp.Payload.([]engine.UserView)
		body := binary.EncodeCount(uint32(len(users)))
		for _, u := range users {
			rec, err := binary.EncodeUserView(u.Username, int16(u.Role), int64(u.CreatedTime), int64(u.LastLogin))
			if err != nil {
				return err
			}
			body = append(body, rec...)
		}
		return binary.WriteResponse(w, resp.Status, body)
	})
}

func (h *Handler) HandleFileCreate(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	sessionID, path := q.Get("session"), q.Get("path")
	data, err := decodeData(q.Get("data"))
	if err != nil {
		binary.WriteResponse(w, omnierr.InvalidOperation, nil)
		return
	}
	h.submit(w, r, pipeline.OpFileCreate, sessionID, map[string]any{"path": path, "data": data}, nil)
}

func (h *Handler) HandleFileRead(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	sessionID, path := q.Get("session"), q.Get("path")
	h.submit(w, r, pipeline.OpFileRead, sessionID, map[string]any{"path": path}, func(w http.ResponseWriter, resp pipeline.Response) error {
		buf, _ := resp.Payload.([]byte)
		return binary.WriteResponse(w, resp.Status, buf)
	})
}

func (h *Handler) HandleFileEdit(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	sessionID, path := q.Get("session"), q.Get("path")
	offset, err := strconv.ParseUint(q.Get("offset"), 10, 64)
	if err != nil {
		binary.WriteResponse(w, omnierr.InvalidOperation, nil)
		return
	}
	data, err := decodeData(q.Get("data"))
	if err != nil {
		binary.WriteResponse(w, omnierr.InvalidOperation, nil)
		return
	}
	h.submit(w, r, pipeline.OpFileEdit, sessionID, map[string]any{"path": path, "data": data, "offset": offset}, nil)
}

func (h *Handler) HandleFileDelete(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	h.submit(w, r, pipeline.OpFileDelete, q.Get("session"), map[string]any{"path": q.Get("path")}, nil)
}

func (h *Handler) HandleFileTruncate(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	h.submit(w, r, pipeline.OpFileTruncate, q.Get("session"), map[string]any{"path": q.Get("path")}, nil)
}

func (h *Handler) HandleFileExists(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	h.submit(w, r, pipeline.OpFileExists, q.Get("session"), map[string]any{"path": q.Get("path")}, func(w http.ResponseWriter, resp pipeline.Response) error {
		return binary.WriteUint32Response(w, resp.Status, boolToU32(resp.Payload))
	})
}

func (h *Handler) HandleFileRename(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	h.submit(w, r, pipeline.OpFileRename, q.Get("session"), map[string]any{"old_path": q.Get("old_path"), "new_path": q.Get("new_path")}, nil)
}

func (h *Handler) HandleDirCreate(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	h.submit(w, r, pipeline.OpDirCreate, q.Get("session"), map[string]any{"path": q.Get("path")}, nil)
}

func (h *Handler) HandleDirList(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	h.submit(w, r, pipeline.OpDirList, q.Get("session"), map[string]any{"path": q.Get("path")}, func(w http.ResponseWriter, resp pipeline.Response) error {
		entries, _ := resp.Payload.([]engine.MetadataView)
		body := binary.EncodeCount(uint32(len(entries)))
		for _, e := range entries {
			rec, err := binary.EncodeMetadataEntry(e.Name, int16(e.Type), int64(e.TotalSize), e.Permissions, int64(e.ModifiedTime))
			if err != nil {
				return err
			}
			body = append(body, rec...)
		}
		return binary.WriteResponse(w, resp.Status, body)
	})
}

func (h *Handler) HandleDirDelete(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	h.submit(w, r, pipeline.OpDirDelete, q.Get("session"), map[string]any{"path": q.Get("path")}, nil)
}

func (h *Handler) HandleDirExists(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	h.submit(w, r, pipeline.OpDirExists, q.Get("session"), map[string]any{"path": q.Get("path")}, func(w http.ResponseWriter, resp pipeline.Response) error {
		return binary.WriteUint32Response(w, resp.Status, boolToU32(resp.Payload))
	})
}

func (h *Handler) HandleGetMetadata(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	h.submit(w, r, pipeline.OpGetMetadata, q.Get("session"), map[string]any{"path": q.Get("path")}, func(w http.ResponseWriter, resp pipeline.Response) error {
		e, _ := resp.Payload.(engine.MetadataView)
		rec, err := binary.EncodeMetadataEntry(e.Name, int16(e.Type), int64(e.TotalSize), e.Permissions, int64(e.ModifiedTime))
		if err != nil {
			return err
		}
		return binary.WriteResponse(w, resp.Status, rec)
	})
}

func (h *Handler) HandleSetPermissions(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	mode, err := strconv.ParseUint(q.Get("mode"), 10, 32)
	if err != nil {
		binary.WriteResponse(w, omnierr.InvalidOperation, nil)
		return
	}
	h.submit(w, r, pipeline.OpSetPermissions, q.Get("session"), map[string]any{"path": q.Get("path"), "mode": uint32(mode)}, nil)
}

func (h *Handler) HandleGetStats(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	h.submit(w, r, pipeline.OpGetStats, q.Get("session"), nil, func(w http.ResponseWriter, resp pipeline.Response) error {
		s, _ := resp.Payload.(engine.Stats)
		body, err := binary.EncodeStats(s.TotalBlocks, s.UsedBlocks, s.FreeBlocks, s.FreeSpaceBytes, int32(s.ActiveSessions), int32(s.ActiveUsers), s.MetadataEntries)
		if err != nil {
			return err
		}
		return binary.WriteResponse(w, resp.Status, body)
	})
}

func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok","service":"omnifsd"}`))
}

func decodeData(encoded string) ([]byte, error) {
	if encoded == "" {
		return nil, nil
	}
	return base64.StdEncoding.DecodeString(encoded)
}

func boolToU32(payload any) uint32 {
	if b, ok := payload.(bool); ok && b {
		return 1
	}
	return 0
}

package engine

import (
	"fmt"

	"github.com/omnifs/omnifs/internal/container"
	"github.com/omnifs/omnifs/internal/engine/session"
	"github.com/omnifs/omnifs/internal/eventlog"
	"github.com/omnifs/omnifs/internal/pkg/omnierr"
)

// UserView is the safe-to-expose shape of a user record, the same
// distinction login/list return callers — never the password hash.
type UserView struct {
	Username    string
	Role        container.Role
	CreatedTime uint64
	LastLogin   uint64
}

// Login verifies name/password, fails NotFound if absent or
// deactivated, PermissionDenied on a wrong password, and mints a
// fresh session on success.
func (e *Engine) Login(name, password string) (session.Session, error) {
	const op = "engine.Engine.Login"

	e.mu.Lock()
	defer e.mu.Unlock()

	rec, ok := e.users.Get(name)
	if !ok {
		e.emitUserOp(op, "login", name, name, false, "no such active user")
		return session.Session{}, omnierr.New(omnierr.NotFound, op, "user not found")
	}
	if !session.VerifyPassword(rec.PasswordHash, password) {
		e.emitUserOp(op, "login", name, name, false, "bad password")
		return session.Session{}, omnierr.New(omnierr.PermissionDenied, op, "bad password")
	}

	now := e.now()
	s, err := e.sessions.Create(rec.Username, rec.Role, now)
	if err != nil {
		return session.Session{}, omnierr.Wrap(omnierr.Io, op, err)
	}

	rec.LastLogin = now
	e.users.Update(rec)
	e.emitUserOp(op, "login", name, name, true, "")
	return *s, nil
}

// Logout drops a session unconditionally; an unknown id is a no-op.
func (e *Engine) Logout(sessionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sessions.Logout(sessionID)
}

// ValidateSession is the shared auth gate every other operation runs
// through.
func (e *Engine) ValidateSession(sessionID string) (session.Session, error) {
	const op = "engine.Engine.ValidateSession"

	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.sessions.Validate(sessionID, e.now())
	if !ok {
		return session.Session{}, omnierr.New(omnierr.InvalidSession, op, "session missing or expired")
	}
	return s, nil
}

// CreateUser is admin-only (spec §4.9/§4.8 "Access control").
func (e *Engine) CreateUser(sessionID, name, password string, role container.Role) error {
	const op = "engine.Engine.CreateUser"

	actor, err := e.requireAdmin(sessionID, op)
	if err != nil {
		return err
	}
	if len(name) == 0 || len(name) > 31 {
		return omnierr.New(omnierr.InvalidConfig, op, "username must be 1-31 characters")
	}
	if len(password) < 4 {
		return omnierr.New(omnierr.InvalidConfig, op, "password must be at least 4 characters")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.users.Get(name); exists {
		e.emitUserOp(op, "create_user", name, actor.Username, false, "user exists")
		return omnierr.New(omnierr.FileExists, op, "user already exists")
	}

	hash, err := session.HashPassword(password)
	if err != nil {
		return omnierr.Wrap(omnierr.Io, op, err)
	}
	rec := container.UserRecord{
		Username:    name,
		PasswordHash: hash,
		Role:        role,
		CreatedTime: e.now(),
		IsActive:    true,
	}
	if _, ok := e.users.Add(rec); !ok {
		e.emitUserOp(op, "create_user", name, actor.Username, false, "no free slot")
		return omnierr.New(omnierr.NoSpace, op, "user table full")
	}
	if err := e.users.Persist(e.file, e.layout); err != nil {
		return omnierr.Wrap(omnierr.Io, op, err)
	}
	e.emitUserOp(op, "create_user", name, actor.Username, true, "")
	return nil
}

// DeleteUser is admin-only; it deactivates rather than erasing the slot.
func (e *Engine) DeleteUser(sessionID, name string) error {
	const op = "engine.Engine.DeleteUser"

	actor, err := e.requireAdmin(sessionID, op)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.users.Deactivate(name) {
		e.emitUserOp(op, "delete_user", name, actor.Username, false, "not found")
		return omnierr.New(omnierr.NotFound, op, "user not found")
	}
	if err := e.users.Persist(e.file, e.layout); err != nil {
		return omnierr.Wrap(omnierr.Io, op, err)
	}
	e.emitUserOp(op, "delete_user", name, actor.Username, true, "")
	return nil
}

// ListUsers is admin-only.
func (e *Engine) ListUsers(sessionID string) ([]UserView, error) {
	const op = "engine.Engine.ListUsers"

	if _, err := e.requireAdmin(sessionID, op); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	recs := e.users.ListActive()
	out := make([]UserView, 0, len(recs))
	for _, r := range recs {
		out = append(out, UserView{Username: r.Username, Role: r.Role, CreatedTime: r.CreatedTime, LastLogin: r.LastLogin})
	}
	return out, nil
}

// requireAdmin validates the session and additionally requires
// role=ADMIN, per spec §4.8's access-control note.
func (e *Engine) requireAdmin(sessionID, op string) (session.Session, error) {
	s, err := e.ValidateSession(sessionID)
	if err != nil {
		return session.Session{}, err
	}
	if s.Role != container.RoleAdmin {
		return session.Session{}, omnierr.New(omnierr.PermissionDenied, op, "admin role required")
	}
	return s, nil
}

func (e *Engine) emitUserOp(op, opType, target, actor string, success bool, details string) {
	code := omnierr.OK
	level := eventlog.Info
	if !success {
		code = omnierr.PermissionDenied
		level = eventlog.Warn
	}
	e.events.Emit(eventlog.Record{
		Level:       level,
		Component:   op,
		Code:        code,
		Message:     fmt.Sprintf("%s %s", opType, target),
		Timestamp:   e.now(),
		SessionUser: actor,
		UserOp: &eventlog.UserOpRecord{
			OpType:     opType,
			TargetUser: target,
			ActorUser:  actor,
			Success:    success,
			Details:    details,
		},
	})
}

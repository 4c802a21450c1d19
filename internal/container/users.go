package container

import (
	"encoding/binary"
	"fmt"
)

// Role mirrors the original source's UserRole: 0=NORMAL, 1=ADMIN.
type Role uint8

const (
	RoleNormal Role = 0
	RoleAdmin  Role = 1
)

// UserRecord is one fixed slot of the user table. PasswordHash is
// always stored in "salt:digest" hex form.
type UserRecord struct {
	Username     string
	PasswordHash string
	Role         Role
	CreatedTime  uint64
	LastLogin    uint64
	IsActive     bool
}

const (
	userUsernameSize = 32
	userHashSize     = 128
)

func (u UserRecord) marshal() []byte {
	buf := make([]byte, UserRecordSize)
	putFixedString(buf[0:userUsernameSize], u.Username)
	putFixedString(buf[userUsernameSize:userUsernameSize+userHashSize], u.PasswordHash)
	off := userUsernameSize + userHashSize
	buf[off] = byte(u.Role)
	off++
	binary.LittleEndian.PutUint64(buf[off:off+8], u.CreatedTime)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:off+8], u.LastLogin)
	off += 8
	if u.IsActive {
		buf[off] = 1
	}
	return buf
}

func unmarshalUser(buf []byte) UserRecord {
	var u UserRecord
	u.Username = getFixedString(buf[0:userUsernameSize])
	u.PasswordHash = getFixedString(buf[userUsernameSize : userUsernameSize+userHashSize])
	off := userUsernameSize + userHashSize
	u.Role = Role(buf[off])
	off++
	u.CreatedTime = binary.LittleEndian.Uint64(buf[off : off+8])
	off += 8
	u.LastLogin = binary.LittleEndian.Uint64(buf[off : off+8])
	off += 8
	u.IsActive = buf[off] != 0
	return u
}

// UserTable is the fixed-slot array of credential records, mirrored in
// memory with an index by username for O(1) lookups.
type UserTable struct {
	slots []UserRecord
	index map[string]int
}

// NewUserTable builds an all-empty table for a freshly formatted
// container.
func NewUserTable(maxUsers uint32) *UserTable {
	return &UserTable{
		slots: make([]UserRecord, maxUsers),
		index: make(map[string]int),
	}
}

// LoadUserTable reads the user table region from disk.
func LoadUserTable(file *File, layout Layout) (*UserTable, error) {
	t := &UserTable{
		slots: make([]UserRecord, layout.MaxUsers),
		index: make(map[string]int),
	}
	buf := make([]byte, layout.UserTableSize)
	if err := file.ReadAt(buf, int64(layout.UserTableOffset)); err != nil {
		return nil, fmt.Errorf("container.LoadUserTable: %w", err)
	}
	for i := uint32(0); i < layout.MaxUsers; i++ {
		rec := unmarshalUser(buf[i*UserRecordSize : (i+1)*UserRecordSize])
		t.slots[i] = rec
		if rec.IsActive && rec.Username != "" {
			t.index[rec.Username] = int(i)
		}
	}
	return t, nil
}

// Add finds the first slot with is_active=0 or a matching username and
// writes rec there. It fails with ok=false if an active slot already
// carries that username (UserExists, per spec §4.3).
func (t *UserTable) Add(rec UserRecord) (slot int, ok bool) {
	if existing, found := t.index[rec.Username]; found && t.slots[existing].IsActive {
		return 0, false
	}

	freeSlot := -1
	for i, s := range t.slots {
		if !s.IsActive || s.Username == rec.Username {
			freeSlot = i
			break
		}
	}
	if freeSlot == -1 {
		return 0, false
	}

	t.slots[freeSlot] = rec
	t.index[rec.Username] = freeSlot
	return freeSlot, true
}

// Get returns the active record for name, if any.
func (t *UserTable) Get(name string) (UserRecord, bool) {
	idx, ok := t.index[name]
	if !ok || !t.slots[idx].IsActive {
		return UserRecord{}, false
	}
	return t.slots[idx], true
}

// Update rewrites the slot holding username's record.
func (t *UserTable) Update(rec UserRecord) bool {
	idx, ok := t.index[rec.Username]
	if !ok {
		return false
	}
	t.slots[idx] = rec
	return true
}

// Deactivate marks username's slot inactive; the slot is retained so a
// later user with a new name can take it.
func (t *UserTable) Deactivate(name string) bool {
	idx, ok := t.index[name]
	if !ok || !t.slots[idx].IsActive {
		return false
	}
	t.slots[idx].IsActive = false
	delete(t.index, name)
	return true
}

// ListActive returns every record with IsActive==true.
func (t *UserTable) ListActive() []UserRecord {
	out := make([]UserRecord, 0, len(t.index))
	for _, idx := range t.index {
		out = append(out, t.slots[idx])
	}
	return out
}

// Persist rewrites the whole user table region — simpler than
// per-slot dirty tracking, and the region is small.
func (t *UserTable) Persist(file *File, layout Layout) error {
	buf := make([]byte, layout.UserTableSize)
	for i, s := range t.slots {
		copy(buf[uint32(i)*UserRecordSize:], s.marshal())
	}
	if err := file.WriteAt(buf, int64(layout.UserTableOffset)); err != nil {
		return fmt.Errorf("container.UserTable.Persist: %w", err)
	}
	return nil
}

package container

import (
	"encoding/binary"
	"fmt"
	"sort"
)

// EntryType distinguishes a metadata slot's kind.
type EntryType uint8

const (
	EntryFile      EntryType = 0
	EntryDirectory EntryType = 1
)

const (
	DefaultDirPermissions  = 0o755
	DefaultFilePermissions = 0o644

	metadataNameSize = 32
)

// MetadataEntry is one 128-byte slot of the metadata table.
type MetadataEntry struct {
	Valid        bool
	Type         EntryType
	ParentIndex  uint32
	Name         string
	StartBlock   uint32
	TotalSize    uint64
	OwnerID      uint32
	Permissions  uint32
	CreatedTime  uint64
	ModifiedTime uint64
}

func (e MetadataEntry) marshal() []byte {
	buf := make([]byte, MetadataSlotSize)
	if e.Valid {
		buf[0] = 1
	}
	buf[1] = byte(e.Type)
	binary.LittleEndian.PutUint32(buf[2:6], e.ParentIndex)
	putFixedString(buf[6:6+metadataNameSize], e.Name)
	off := 6 + metadataNameSize
	binary.LittleEndian.PutUint32(buf[off:off+4], e.StartBlock)
	off += 4
	binary.LittleEndian.PutUint64(buf[off:off+8], e.TotalSize)
	off += 8
	binary.LittleEndian.PutUint32(buf[off:off+4], e.OwnerID)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:off+4], e.Permissions)
	off += 4
	binary.LittleEndian.PutUint64(buf[off:off+8], e.CreatedTime)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:off+8], e.ModifiedTime)
	return buf
}

func unmarshalMetadataEntry(buf []byte) MetadataEntry {
	var e MetadataEntry
	e.Valid = buf[0] != 0
	e.Type = EntryType(buf[1])
	e.ParentIndex = binary.LittleEndian.Uint32(buf[2:6])
	e.Name = getFixedString(buf[6 : 6+metadataNameSize])
	off := 6 + metadataNameSize
	e.StartBlock = binary.LittleEndian.Uint32(buf[off : off+4])
	off += 4
	e.TotalSize = binary.LittleEndian.Uint64(buf[off : off+8])
	off += 8
	e.OwnerID = binary.LittleEndian.Uint32(buf[off : off+4])
	off += 4
	e.Permissions = binary.LittleEndian.Uint32(buf[off : off+4])
	off += 4
	e.CreatedTime = binary.LittleEndian.Uint64(buf[off : off+8])
	off += 8
	e.ModifiedTime = binary.LittleEndian.Uint64(buf[off : off+8])
	return e
}

// MetadataTable is the fixed-size array of entry records. Slot 0 is
// always the root directory.
type MetadataTable struct {
	slots []MetadataEntry
}

// NewMetadataTable builds a table with slot 0 initialized as the root
// directory and every other slot free, per spec §4.4's root invariant.
func NewMetadataTable(maxEntries uint32, now uint64) *MetadataTable {
	t := &MetadataTable{slots: make([]MetadataEntry, maxEntries)}
	t.slots[RootIndex] = MetadataEntry{
		Valid:        true,
		Type:         EntryDirectory,
		ParentIndex:  RootIndex,
		Name:         "/",
		Permissions:  DefaultDirPermissions,
		CreatedTime:  now,
		ModifiedTime: now,
	}
	return t
}

// LoadMetadataTable reads the metadata region from disk.
func LoadMetadataTable(file *File, layout Layout) (*MetadataTable, error) {
	t := &MetadataTable{slots: make([]MetadataEntry, layout.MaxMetadataEntries)}
	buf := make([]byte, layout.MetadataSize)
	if err := file.ReadAt(buf, int64(layout.MetadataOffset)); err != nil {
		return nil, fmt.Errorf("container.LoadMetadataTable: %w", err)
	}
	for i := uint32(0); i < layout.MaxMetadataEntries; i++ {
		t.slots[i] = unmarshalMetadataEntry(buf[i*MetadataSlotSize : (i+1)*MetadataSlotSize])
	}
	return t, nil
}

func (t *MetadataTable) MaxEntries() uint32 { return uint32(len(t.slots)) }

// Get returns a copy of the slot, or ok=false if it's free.
func (t *MetadataTable) Get(index uint32) (MetadataEntry, bool) {
	if index >= uint32(len(t.slots)) || !t.slots[index].Valid {
		return MetadataEntry{}, false
	}
	return t.slots[index], true
}

// Set overwrites a slot in place — used by rename, truncate, and
// permission/size updates.
func (t *MetadataTable) Set(index uint32, e MetadataEntry) error {
	if index >= uint32(len(t.slots)) {
		return fmt.Errorf("container.MetadataTable.Set: index %d out of range", index)
	}
	t.slots[index] = e
	return nil
}

// Allocate scans for the first free slot, fills it, and returns its
// index. It fails with ok=false if every slot is valid (NoSpace).
func (t *MetadataTable) Allocate(typ EntryType, parent uint32, name string, owner uint32, now uint64) (uint32, bool) {
	for i := range t.slots {
		if !t.slots[i].Valid {
			perms := uint32(DefaultFilePermissions)
			if typ == EntryDirectory {
				perms = DefaultDirPermissions
			}
			t.slots[i] = MetadataEntry{
				Valid:        true,
				Type:         typ,
				ParentIndex:  parent,
				Name:         name,
				OwnerID:      owner,
				Permissions:  perms,
				CreatedTime:  now,
				ModifiedTime: now,
			}
			return uint32(i), true
		}
	}
	return 0, false
}

// Free marks a slot free. Callers must free the entry's block chain
// (if any) before calling Free — the metadata table does not own the
// bitmap.
func (t *MetadataTable) Free(index uint32) error {
	if index >= uint32(len(t.slots)) {
		return fmt.Errorf("container.MetadataTable.Free: index %d out of range", index)
	}
	t.slots[index] = MetadataEntry{}
	return nil
}

// Children returns every valid slot whose parent is index, in stable
// ascending slot-index order.
func (t *MetadataTable) Children(index uint32) []uint32 {
	var out []uint32
	for i, e := range t.slots {
		if e.Valid && e.ParentIndex == index && uint32(i) != index {
			out = append(out, uint32(i))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ChildByName looks up a single named child under parent.
func (t *MetadataTable) ChildByName(parent uint32, name string) (uint32, bool) {
	for i, e := range t.slots {
		if e.Valid && e.ParentIndex == parent && e.Name == name && uint32(i) != parent {
			return uint32(i), true
		}
	}
	return 0, false
}

// Persist rewrites the whole metadata region.
func (t *MetadataTable) Persist(file *File, layout Layout) error {
	buf := make([]byte, layout.MetadataSize)
	for i, e := range t.slots {
		copy(buf[uint32(i)*MetadataSlotSize:], e.marshal())
	}
	if err := file.WriteAt(buf, int64(layout.MetadataOffset)); err != nil {
		return fmt.Errorf("container.MetadataTable.Persist: %w", err)
	}
	return nil
}

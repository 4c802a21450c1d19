package container

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Header is the 512-byte prelude every container file opens with.
type Header struct {
	TotalSize              uint64
	FormatVersion          uint32
	HeaderSizeField        uint32
	BlockSize              uint32
	UserTableOffset        uint32
	MaxUsers               uint32
	FileStateStorageOffset uint32
	ChangeLogOffset        uint32
	StudentID              string
	SubmissionDate         string
}

// NewHeader builds a header for a freshly formatted container from a
// previously computed Layout.
func NewHeader(totalSize uint64, layout Layout, studentID, submissionDate string) Header {
	return Header{
		TotalSize:              totalSize,
		FormatVersion:          FormatVersion,
		HeaderSizeField:        layout.HeaderSize,
		BlockSize:              layout.BlockSize,
		UserTableOffset:        layout.UserTableOffset,
		MaxUsers:               layout.MaxUsers,
		FileStateStorageOffset: uint32(layout.MetadataOffset),
		ChangeLogOffset:        uint32(layout.BitmapOffset),
		StudentID:              studentID,
		SubmissionDate:         submissionDate,
	}
}

// MarshalBinary renders the header as exactly HeaderSize bytes.
func (h Header) MarshalBinary() ([]byte, error) {
	buf := make([]byte, HeaderSize)

	copy(buf[0:8], Magic)
	binary.LittleEndian.PutUint32(buf[8:12], h.FormatVersion)
	binary.LittleEndian.PutUint64(buf[12:20], h.TotalSize)
	binary.LittleEndian.PutUint32(buf[20:24], h.HeaderSizeField)
	binary.LittleEndian.PutUint32(buf[24:28], h.BlockSize)
	binary.LittleEndian.PutUint32(buf[28:32], h.UserTableOffset)
	binary.LittleEndian.PutUint32(buf[32:36], h.MaxUsers)
	binary.LittleEndian.PutUint32(buf[36:40], h.FileStateStorageOffset)
	binary.LittleEndian.PutUint32(buf[40:44], h.ChangeLogOffset)
	putFixedString(buf[44:44+studentIDFieldSize], h.StudentID)
	putFixedString(buf[44+studentIDFieldSize:44+studentIDFieldSize+submissionDateFieldSize], h.SubmissionDate)

	// remainder of buf is already zero-filled padding
	return buf, nil
}

// UnmarshalBinary parses a HeaderSize-byte buffer and validates the magic
// and format version. It does not cross-check offsets against a
// recomputed Layout; call Validate for that.
func (h *Header) UnmarshalBinary(buf []byte) error {
	if len(buf) < HeaderSize {
		return fmt.Errorf("header: short buffer (%d < %d)", len(buf), HeaderSize)
	}

	if !bytes.Equal(buf[0:8], []byte(Magic)) {
		return fmt.Errorf("header: bad magic %q, want %q", buf[0:8], Magic)
	}

	h.FormatVersion = binary.LittleEndian.Uint32(buf[8:12])
	if h.FormatVersion != FormatVersion {
		return fmt.Errorf("header: unsupported format_version 0x%08x", h.FormatVersion)
	}

	h.TotalSize = binary.LittleEndian.Uint64(buf[12:20])
	h.HeaderSizeField = binary.LittleEndian.Uint32(buf[20:24])
	h.BlockSize = binary.LittleEndian.Uint32(buf[24:28])
	h.UserTableOffset = binary.LittleEndian.Uint32(buf[28:32])
	h.MaxUsers = binary.LittleEndian.Uint32(buf[32:36])
	h.FileStateStorageOffset = binary.LittleEndian.Uint32(buf[36:40])
	h.ChangeLogOffset = binary.LittleEndian.Uint32(buf[40:44])
	h.StudentID = getFixedString(buf[44 : 44+studentIDFieldSize])
	h.SubmissionDate = getFixedString(buf[44+studentIDFieldSize : 44+studentIDFieldSize+submissionDateFieldSize])

	return nil
}

// Validate recomputes the layout from the header's own fields and
// rejects the container if any on-disk offset disagrees — a
// CorruptHeader condition per spec §4.2.
func (h Header) Validate(maxMetadataEntries uint32) (Layout, error) {
	layout, err := ComputeLayout(h.TotalSize, h.HeaderSizeField, h.BlockSize, h.MaxUsers, maxMetadataEntries)
	if err != nil {
		return Layout{}, fmt.Errorf("header: invalid layout: %w", err)
	}
	if h.UserTableOffset != layout.UserTableOffset {
		return Layout{}, fmt.Errorf("header: user_table_offset mismatch: got %d, want %d", h.UserTableOffset, layout.UserTableOffset)
	}
	if uint64(h.FileStateStorageOffset) != layout.MetadataOffset {
		return Layout{}, fmt.Errorf("header: file_state_storage_offset mismatch: got %d, want %d", h.FileStateStorageOffset, layout.MetadataOffset)
	}
	if uint64(h.ChangeLogOffset) != layout.BitmapOffset {
		return Layout{}, fmt.Errorf("header: change_log_offset mismatch: got %d, want %d", h.ChangeLogOffset, layout.BitmapOffset)
	}
	return layout, nil
}

func putFixedString(dst []byte, s string) {
	n := copy(dst, s)
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
}

func getFixedString(src []byte) string {
	n := bytes.IndexByte(src, 0)
	if n < 0 {
		n = len(src)
	}
	return string(src[:n])
}

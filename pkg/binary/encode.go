// Package binary is the little-endian wire encoder the HTTP front-end
// uses to write status-code-prefixed responses, generalizing the
// teacher's pkg/binary encoder from inode/dirent records to the
// container engine's status-code + payload response shape.
package binary

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net/http"

	"github.com/omnifs/omnifs/internal/pkg/omnierr"
)

// WriteResponse writes an 8-byte little-endian status code followed
// by data, matching spec §6.3's Response record shape.
func WriteResponse(w http.ResponseWriter, code omnierr.Code, data []byte) error {
	response := new(bytes.Buffer)

	if err := binary.Write(response, binary.LittleEndian, int64(code)); err != nil {
		return fmt.Errorf("failed to write response code: %w", err)
	}
	if data != nil {
		if _, err := response.Write(data); err != nil {
			return fmt.Errorf("failed to write response data: %w", err)
		}
	}

	body := response.Bytes()
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(body)))
	w.Header().Set("Connection", "close")
	w.WriteHeader(http.StatusOK)

	_, err := w.Write(body)
	return err
}

// WriteUint32Response writes a status code followed by a single
// little-endian uint32 — used for the FILE_EXISTS/DIR_EXISTS 0/1 flag.
func WriteUint32Response(w http.ResponseWriter, code omnierr.Code, value uint32) error {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, value); err != nil {
		return err
	}
	return WriteResponse(w, code, buf.Bytes())
}

// WriteInt64Response writes a status code followed by a single
// little-endian int64.
func WriteInt64Response(w http.ResponseWriter, code omnierr.Code, value int64) error {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, value); err != nil {
		return err
	}
	return WriteResponse(w, code, buf.Bytes())
}

// EncodeCount prepends a uint32 record count ahead of a run of
// fixed-width records, so list responses (dir_list, list_users) are
// self-delimiting without a trailing sentinel.
func EncodeCount(n uint32) []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, n)
	return buf.Bytes()
}

// EncodeUserView renders one user record as a fixed-field wire
// record for list_users: username (32B, null-padded), role (int16),
// created_time (int64), last_login (int64).
func EncodeUserView(username string, role int16, createdTime, lastLogin int64) ([]byte, error) {
	buf := new(bytes.Buffer)

	nameBytes := make([]byte, 32)
	copy(nameBytes, username)
	if _, err := buf.Write(nameBytes); err != nil {
		return nil, fmt.Errorf("failed to encode username: %w", err)
	}
	if err := binary.Write(buf, binary.LittleEndian, role); err != nil {
		return nil, fmt.Errorf("failed to encode role: %w", err)
	}
	if err := binary.Write(buf, binary.LittleEndian, createdTime); err != nil {
		return nil, fmt.Errorf("failed to encode created_time: %w", err)
	}
	if err := binary.Write(buf, binary.LittleEndian, lastLogin); err != nil {
		return nil, fmt.Errorf("failed to encode last_login: %w", err)
	}

	return buf.Bytes(), nil
}

// EncodeStats renders the GET_STATS payload as a run of little-endian
// fields in spec §6.3's declared order.
func EncodeStats(totalBlocks, usedBlocks, freeBlocks uint32, freeSpaceBytes uint64, activeSessions, activeUsers int32, metadataEntries uint32) ([]byte, error) {
	buf := new(bytes.Buffer)
	fields := []any{totalBlocks, usedBlocks, freeBlocks, freeSpaceBytes, activeSessions, activeUsers, metadataEntries}
	for _, f := range fields {
		if err := binary.Write(buf, binary.LittleEndian, f); err != nil {
			return nil, fmt.Errorf("failed to encode stats field: %w", err)
		}
	}
	return buf.Bytes(), nil
}

// EncodeMetadataEntry renders one metadata entry view as the
// fixed-field wire record dir_list/get_metadata hand back over HTTP:
// name (256B, null-padded), type (int16), total_size (int64),
// permissions (uint32), modified_time (int64).
func EncodeMetadataEntry(name string, entryType int16, totalSize int64, permissions uint32, modifiedTime int64) ([]byte, error) {
	buf := new(bytes.Buffer)

	nameBytes := make([]byte, 256)
	copy(nameBytes, name)
	if _, err := buf.Write(nameBytes); err != nil {
		return nil, fmt.Errorf("failed to encode name: %w", err)
	}
	if err := binary.Write(buf, binary.LittleEndian, entryType); err != nil {
		return nil, fmt.Errorf("failed to encode type: %w", err)
	}
	if err := binary.Write(buf, binary.LittleEndian, totalSize); err != nil {
		return nil, fmt.Errorf("failed to encode total_size: %w", err)
	}
	if err := binary.Write(buf, binary.LittleEndian, permissions); err != nil {
		return nil, fmt.Errorf("failed to encode permissions: %w", err)
	}
	if err := binary.Write(buf, binary.LittleEndian, modifiedTime); err != nil {
		return nil, fmt.Errorf("failed to encode modified_time: %w", err)
	}

	return buf.Bytes(), nil
}

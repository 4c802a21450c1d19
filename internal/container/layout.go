// Package container implements the on-disk format of a single-file
// object store: header, user table, metadata table, block bitmap, and
// the block region that holds file payloads as singly-linked chains.
package container

import "fmt"

const (
	Magic         = "OMNIFS01"
	FormatVersion uint32 = 0x00010000

	HeaderSize = 512

	MinBlockSize     = 512
	MaxBlockSize     = 1 << 20
	DefaultBlockSize = 65536

	MetadataSlotSize          = 128
	DefaultMaxMetadataEntries = 8192

	UserRecordSize = 256

	BlockHeaderSize = 16

	RootIndex uint32 = 0

	// ReservedBlock is never allocated to a chain, so start_block==0
	// unambiguously means "no data" (spec §3.3/§3.4).
	ReservedBlock uint32 = 0

	studentIDFieldSize       = 32
	submissionDateFieldSize  = 16
)

// Layout holds the byte offsets and sizes of every region, derived
// deterministically from header_size, max_users, max_files and
// block_size. Any on-disk header value that disagrees with a
// recomputed Layout is a fatal CorruptHeader.
type Layout struct {
	TotalSize uint64

	HeaderSize uint32
	BlockSize  uint32

	MaxUsers        uint32
	UserTableOffset uint32
	UserTableSize   uint64

	MaxMetadataEntries uint32
	MetadataOffset     uint64
	MetadataSize       uint64

	BitmapOffset uint64
	BitmapLen    uint64

	BlockRegionOffset uint64
	BlockCount        uint32
}

// ComputeLayout derives every region offset from the configuration
// inputs in spec §6.2. It never reads the disk; Header.Validate calls
// this to check that on-disk offsets agree with what the inputs imply.
func ComputeLayout(totalSize uint64, headerSize uint32, blockSize uint32, maxUsers uint32, maxMetadataEntries uint32) (Layout, error) {
	if headerSize != HeaderSize {
		return Layout{}, fmt.Errorf("header_size must be %d, got %d", HeaderSize, headerSize)
	}
	if blockSize < MinBlockSize || blockSize > MaxBlockSize || blockSize&(blockSize-1) != 0 {
		return Layout{}, fmt.Errorf("block_size %d must be a power of two in [%d, %d]", blockSize, MinBlockSize, MaxBlockSize)
	}
	if maxUsers == 0 {
		return Layout{}, fmt.Errorf("max_users must be > 0")
	}
	if maxMetadataEntries == 0 {
		return Layout{}, fmt.Errorf("max_files must be > 0")
	}

	l := Layout{
		TotalSize:          totalSize,
		HeaderSize:         headerSize,
		BlockSize:          blockSize,
		MaxUsers:           maxUsers,
		MaxMetadataEntries: maxMetadataEntries,
	}

	l.UserTableOffset = headerSize
	l.UserTableSize = uint64(maxUsers) * uint64(UserRecordSize)

	l.MetadataOffset = uint64(l.UserTableOffset) + l.UserTableSize
	l.MetadataSize = uint64(maxMetadataEntries) * uint64(MetadataSlotSize)

	l.BitmapOffset = l.MetadataOffset + l.MetadataSize
	if totalSize < l.BitmapOffset {
		return Layout{}, fmt.Errorf("total_size %d too small for header+users+metadata (need at least %d)", totalSize, l.BitmapOffset)
	}

	// bitmap_len = (total_size - metadata_end) / block_size, floored
	// (spec §6.1); the bitmap's own bytes are carved out of the same
	// remainder, so the block region is slightly smaller than
	// bitmap_len blocks would imply, and any leftover tail is zero.
	l.BitmapLen = (totalSize - l.BitmapOffset) / uint64(blockSize)
	l.BlockRegionOffset = l.BitmapOffset + l.BitmapLen
	if l.BlockRegionOffset > totalSize {
		l.BlockRegionOffset = totalSize
	}

	remaining := totalSize - l.BlockRegionOffset
	blockCount := remaining / uint64(blockSize)
	if blockCount > l.BitmapLen {
		blockCount = l.BitmapLen
	}
	l.BlockCount = uint32(blockCount)

	return l, nil
}

func (l Layout) BlockOffset(index uint32) int64 {
	return int64(l.BlockRegionOffset) + int64(index)*int64(l.BlockSize)
}

package container

import (
	"encoding/binary"
	"fmt"

	"github.com/omnifs/omnifs/internal/container/codec"
)

// blockHeader is the small fixed prelude on every block.
type blockHeader struct {
	NextBlock uint32
	DataSize  uint32
}

func (h blockHeader) marshal() []byte {
	buf := make([]byte, BlockHeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.NextBlock)
	binary.LittleEndian.PutUint32(buf[4:8], h.DataSize)
	return buf
}

func unmarshalBlockHeader(buf []byte) blockHeader {
	return blockHeader{
		NextBlock: binary.LittleEndian.Uint32(buf[0:4]),
		DataSize:  binary.LittleEndian.Uint32(buf[4:8]),
	}
}

// Bitmap tracks free/used blocks, one byte per block.
type Bitmap struct {
	bits []byte
}

// NewBitmap reserves block 0 so a chain's start_block field can use 0
// as its "empty" sentinel (spec §3.3/§3.4) without colliding with a
// real allocation.
func NewBitmap(blockCount uint32) *Bitmap {
	bits := make([]byte, blockCount)
	if len(bits) > 0 {
		bits[0] = 1
	}
	return &Bitmap{bits: bits}
}

func LoadBitmap(file *File, layout Layout) (*Bitmap, error) {
	buf := make([]byte, layout.BitmapLen)
	if err := file.ReadAt(buf, int64(layout.BitmapOffset)); err != nil {
		return nil, fmt.Errorf("container.LoadBitmap: %w", err)
	}
	return &Bitmap{bits: buf}, nil
}

func (b *Bitmap) Len() uint32 { return uint32(len(b.bits)) }

// AllocateBlock performs a first-fit scan and marks the block used.
func (b *Bitmap) AllocateBlock() (uint32, bool) {
	for i, v := range b.bits {
		if v == 0 {
			b.bits[i] = 1
			return uint32(i), true
		}
	}
	return 0, false
}

// FreeBlock marks a block free. Out-of-range indices are silently
// ignored, per spec §4.6.
func (b *Bitmap) FreeBlock(index uint32) {
	if index >= uint32(len(b.bits)) {
		return
	}
	b.bits[index] = 0
}

// IsUsed reports a single block's bitmap state; out-of-range indices
// report false.
func (b *Bitmap) IsUsed(index uint32) bool {
	if index >= uint32(len(b.bits)) {
		return false
	}
	return b.bits[index] != 0
}

func (b *Bitmap) UsedCount() uint32 {
	var n uint32
	for _, v := range b.bits {
		if v != 0 {
			n++
		}
	}
	return n
}

func (b *Bitmap) FreeCount() uint32 {
	return b.Len() - b.UsedCount()
}

func (b *Bitmap) Persist(file *File, layout Layout) error {
	if err := file.WriteAt(b.bits, int64(layout.BitmapOffset)); err != nil {
		return fmt.Errorf("container.Bitmap.Persist: %w", err)
	}
	return nil
}

// ChainIO reads and writes file payloads as singly-linked block
// chains, applying the codec's byte-permutation to every block's
// payload bytes.
type ChainIO struct {
	file   *File
	layout Layout
	bitmap *Bitmap
	codec  *codec.Codec
}

func NewChainIO(file *File, layout Layout, bitmap *Bitmap, c *codec.Codec) *ChainIO {
	return &ChainIO{file: file, layout: layout, bitmap: bitmap, codec: c}
}

func (c *ChainIO) payloadCapacity() int {
	return int(c.layout.BlockSize) - BlockHeaderSize
}

// writeBlock writes (next, len(payload)) followed by the
// codec-encoded payload at block index idx. payload is not mutated.
func (c *ChainIO) writeBlock(idx uint32, payload []byte, next uint32) error {
	hdr := blockHeader{NextBlock: next, DataSize: uint32(len(payload))}
	buf := make([]byte, c.layout.BlockSize)
	copy(buf, hdr.marshal())

	encoded := make([]byte, len(payload))
	copy(encoded, payload)
	c.codec.Encode(encoded)
	copy(buf[BlockHeaderSize:], encoded)

	if err := c.file.WriteAt(buf, c.layout.BlockOffset(idx)); err != nil {
		return fmt.Errorf("container.ChainIO.writeBlock: %w", err)
	}
	return nil
}

// readBlock returns the decoded payload bytes and the next-pointer.
func (c *ChainIO) readBlock(idx uint32) ([]byte, uint32, error) {
	hdrBuf := make([]byte, BlockHeaderSize)
	if err := c.file.ReadAt(hdrBuf, c.layout.BlockOffset(idx)); err != nil {
		return nil, 0, fmt.Errorf("container.ChainIO.readBlock: %w", err)
	}
	hdr := unmarshalBlockHeader(hdrBuf)
	if int(hdr.DataSize) > c.payloadCapacity() {
		return nil, 0, fmt.Errorf("container.ChainIO.readBlock: corrupt data_size %d at block %d", hdr.DataSize, idx)
	}

	payload := make([]byte, hdr.DataSize)
	if hdr.DataSize > 0 {
		if err := c.file.ReadAt(payload, c.layout.BlockOffset(idx)+BlockHeaderSize); err != nil {
			return nil, 0, fmt.Errorf("container.ChainIO.readBlock: %w", err)
		}
		c.codec.Decode(payload)
	}
	return payload, hdr.NextBlock, nil
}

// ReadBlockRaw exposes a single block's decoded payload and
// next-pointer without otherwise interpreting the chain — used by
// fsck to walk chains read-only.
func (c *ChainIO) ReadBlockRaw(idx uint32) ([]byte, uint32, error) {
	return c.readBlock(idx)
}

// FreeChain walks next-pointers starting at start, freeing each block.
func (c *ChainIO) FreeChain(start uint32) error {
	idx := start
	for idx != 0 {
		_, next, err := c.readBlock(idx)
		if err != nil {
			return err
		}
		c.bitmap.FreeBlock(idx)
		idx = next
	}
	return nil
}

// WriteFileData implements the idempotent replacement described in
// spec §4.6: any existing chain is freed first, then buf is split into
// block-sized chunks and written as a new chain. On allocation
// failure every block allocated during this call is rolled back.
func (c *ChainIO) WriteFileData(entry *MetadataEntry, buf []byte, now uint64) error {
	if entry.StartBlock != 0 {
		if err := c.FreeChain(entry.StartBlock); err != nil {
			return err
		}
		entry.StartBlock = 0
		entry.TotalSize = 0
	}

	if len(buf) == 0 {
		entry.ModifiedTime = now
		return nil
	}

	capacity := c.payloadCapacity()
	numChunks := (len(buf) + capacity - 1) / capacity

	allocated := make([]uint32, 0, numChunks)
	rollback := func() {
		for _, b := range allocated {
			c.bitmap.FreeBlock(b)
		}
	}

	for i := 0; i < numChunks; i++ {
		idx, ok := c.bitmap.AllocateBlock()
		if !ok {
			rollback()
			return fmt.Errorf("container.ChainIO.WriteFileData: no space")
		}
		allocated = append(allocated, idx)
	}

	for i, idx := range allocated {
		start := i * capacity
		end := start + capacity
		if end > len(buf) {
			end = len(buf)
		}
		var next uint32
		if i+1 < len(allocated) {
			next = allocated[i+1]
		}
		if err := c.writeBlock(idx, buf[start:end], next); err != nil {
			rollback()
			return err
		}
	}

	entry.StartBlock = allocated[0]
	entry.TotalSize = uint64(len(buf))
	entry.ModifiedTime = now
	return nil
}

// ReadFileData walks the chain from entry.StartBlock and concatenates
// decoded payloads. It fails with an error if the chain ends before
// entry.TotalSize bytes are produced (Corrupt).
func (c *ChainIO) ReadFileData(entry MetadataEntry) ([]byte, error) {
	out := make([]byte, 0, entry.TotalSize)
	idx := entry.StartBlock
	for idx != 0 && uint64(len(out)) < entry.TotalSize {
		payload, next, err := c.readBlock(idx)
		if err != nil {
			return nil, err
		}
		out = append(out, payload...)
		idx = next
	}
	if uint64(len(out)) < entry.TotalSize {
		return nil, fmt.Errorf("container.ChainIO.ReadFileData: chain ended early, got %d want %d", len(out), entry.TotalSize)
	}
	if uint64(len(out)) > entry.TotalSize {
		out = out[:entry.TotalSize]
	}
	return out, nil
}

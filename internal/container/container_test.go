package container

import (
	"path/filepath"
	"testing"

	"github.com/omnifs/omnifs/internal/container/codec"
	"github.com/stretchr/testify/require"
)

func tmpFile(t *testing.T, size int64) *File {
	t.Helper()
	path := filepath.Join(t.TempDir(), "container.bin")
	f, err := CreateFile(path, size)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestHeaderRoundTrip(t *testing.T) {
	layout, err := ComputeLayout(1<<20, HeaderSize, DefaultBlockSize, 8, 64)
	require.NoError(t, err)

	h := NewHeader(1<<20, layout, "student-42", "2026-08-03")
	buf, err := h.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, buf, HeaderSize)

	var got Header
	require.NoError(t, got.UnmarshalBinary(buf))
	require.Equal(t, h.TotalSize, got.TotalSize)
	require.Equal(t, h.BlockSize, got.BlockSize)
	require.Equal(t, "student-42", got.StudentID)
	require.Equal(t, "2026-08-03", got.SubmissionDate)

	relayout, err := got.Validate(64)
	require.NoError(t, err)
	require.Equal(t, layout.MetadataOffset, relayout.MetadataOffset)
}

func TestHeaderRejectsBadMagic(t *testing.T) {
	buf := make([]byte, HeaderSize)
	var h Header
	require.Error(t, h.UnmarshalBinary(buf))
}

func TestBitmapReservesBlockZero(t *testing.T) {
	b := NewBitmap(4)
	require.True(t, b.IsUsed(0))
	require.EqualValues(t, 1, b.UsedCount())
}

func TestBitmapAllocateAndFree(t *testing.T) {
	b := NewBitmap(4) // block 0 reserved, 3 allocatable
	i0, ok := b.AllocateBlock()
	require.True(t, ok)
	require.NotZero(t, i0)
	i1, ok := b.AllocateBlock()
	require.True(t, ok)
	require.NotEqual(t, i0, i1)
	require.EqualValues(t, 3, b.UsedCount()) // reserved block 0 + the two allocations

	b.FreeBlock(i0)
	require.EqualValues(t, 2, b.UsedCount())

	b.FreeBlock(999) // out of range, silently ignored
	require.EqualValues(t, 2, b.UsedCount())
}

func TestBitmapExhaustion(t *testing.T) {
	b := NewBitmap(2) // block 0 reserved, only 1 allocatable
	_, ok := b.AllocateBlock()
	require.True(t, ok)
	_, ok = b.AllocateBlock()
	require.False(t, ok)
}

func TestMetadataTableRootAndAllocate(t *testing.T) {
	table := NewMetadataTable(16, 100)
	root, ok := table.Get(RootIndex)
	require.True(t, ok)
	require.Equal(t, EntryDirectory, root.Type)
	require.Equal(t, "/", root.Name)

	idx, ok := table.Allocate(EntryFile, RootIndex, "hello.txt", 1, 200)
	require.True(t, ok)
	require.NotEqualValues(t, RootIndex, idx)

	children := table.Children(RootIndex)
	require.Equal(t, []uint32{idx}, children)

	got, ok := table.ChildByName(RootIndex, "hello.txt")
	require.True(t, ok)
	require.Equal(t, idx, got)

	require.NoError(t, table.Free(idx))
	require.Empty(t, table.Children(RootIndex))
}

func TestMetadataTableExhaustion(t *testing.T) {
	table := NewMetadataTable(1, 0) // only slot 0, reserved for root
	_, ok := table.Allocate(EntryFile, RootIndex, "x", 0, 0)
	require.False(t, ok)
}

func TestChainIOWriteReadRoundTrip(t *testing.T) {
	layout, err := ComputeLayout(1<<20, HeaderSize, 512, 4, 16)
	require.NoError(t, err)
	f := tmpFile(t, 1<<20)
	bitmap := NewBitmap(layout.BlockCount)
	chain := NewChainIO(f, layout, bitmap, codec.New())

	entry := &MetadataEntry{}
	payload := make([]byte, 1200) // spans multiple blocks at 512-byte block size
	for i := range payload {
		payload[i] = byte(i % 251)
	}

	require.NoError(t, chain.WriteFileData(entry, payload, 500))
	require.EqualValues(t, len(payload), entry.TotalSize)
	require.NotZero(t, entry.StartBlock)

	got, err := chain.ReadFileData(*entry)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestChainIOReplaceFreesOldChain(t *testing.T) {
	layout, err := ComputeLayout(1<<20, HeaderSize, 512, 4, 16)
	require.NoError(t, err)
	f := tmpFile(t, 1<<20)
	bitmap := NewBitmap(layout.BlockCount)
	chain := NewChainIO(f, layout, bitmap, codec.New())

	entry := &MetadataEntry{}
	require.NoError(t, chain.WriteFileData(entry, make([]byte, 2000), 1))
	usedAfterFirst := bitmap.UsedCount()
	require.NotZero(t, usedAfterFirst)

	require.NoError(t, chain.WriteFileData(entry, make([]byte, 100), 2))
	require.Less(t, bitmap.UsedCount(), usedAfterFirst)
}

func TestChainIOEmptyPayload(t *testing.T) {
	layout, err := ComputeLayout(1<<20, HeaderSize, 512, 4, 16)
	require.NoError(t, err)
	f := tmpFile(t, 1<<20)
	bitmap := NewBitmap(layout.BlockCount)
	chain := NewChainIO(f, layout, bitmap, codec.New())

	entry := &MetadataEntry{}
	require.NoError(t, chain.WriteFileData(entry, nil, 5))
	require.Zero(t, entry.StartBlock)
	require.Zero(t, entry.TotalSize)

	got, err := chain.ReadFileData(*entry)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestChainIONoSpaceRollsBack(t *testing.T) {
	layout, err := ComputeLayout(1<<20, HeaderSize, 512, 4, 16)
	require.NoError(t, err)
	f := tmpFile(t, 1<<20)
	bitmap := NewBitmap(2) // far fewer blocks than the payload needs
	chain := NewChainIO(f, layout, bitmap, codec.New())

	entry := &MetadataEntry{}
	err = chain.WriteFileData(entry, make([]byte, 10000), 1)
	require.Error(t, err)
	require.EqualValues(t, 1, bitmap.UsedCount()) // only the reserved block 0 remains used
}

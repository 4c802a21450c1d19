package pathresolver

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeTree map[uint32]map[string]uint32

func (t fakeTree) ChildByName(parent uint32, name string) (uint32, bool) {
	children, ok := t[parent]
	if !ok {
		return 0, false
	}
	idx, ok := children[name]
	return idx, ok
}

func TestResolveWalksComponents(t *testing.T) {
	tree := fakeTree{
		0: {"home": 1},
		1: {"alice": 2},
		2: {"notes.txt": 3},
	}

	idx, err := Resolve(tree, 0, "/home/alice/notes.txt")
	require.NoError(t, err)
	require.EqualValues(t, 3, idx)

	idx, err = Resolve(tree, 0, "/")
	require.NoError(t, err)
	require.EqualValues(t, 0, idx)
}

func TestResolveMissingComponent(t *testing.T) {
	tree := fakeTree{0: {"home": 1}}
	_, err := Resolve(tree, 0, "/home/bob")
	require.Error(t, err)
}

func TestValidatePathRejectsTraversal(t *testing.T) {
	require.NoError(t, ValidatePath("/a/b"))
	require.NoError(t, ValidatePath("/a/./b"))
	require.Error(t, ValidatePath("relative"))
	require.Error(t, ValidatePath("/a/../b"))
	require.Error(t, ValidatePath("/a//b"))
	require.Error(t, ValidatePath(""))
}

func TestNormalizeDropsDotSegments(t *testing.T) {
	got, err := Normalize("/a/./b")
	require.NoError(t, err)
	require.Equal(t, "/a/b", got)
}

func TestSplitAndCombine(t *testing.T) {
	dir, name := Split("/home/alice/notes.txt")
	require.Equal(t, "/home/alice", dir)
	require.Equal(t, "notes.txt", name)

	dir, name = Split("/notes.txt")
	require.Equal(t, "/", dir)
	require.Equal(t, "notes.txt", name)

	dir, name = Split("/")
	require.Equal(t, "/", dir)
	require.Equal(t, "", name)

	require.Equal(t, "/home/notes.txt", Combine("/home", "notes.txt"))
	require.Equal(t, "/notes.txt", Combine("/", "notes.txt"))
}

func TestNormalize(t *testing.T) {
	got, err := Normalize("/a/b/")
	require.NoError(t, err)
	require.Equal(t, "/a/b", got)

	got, err = Normalize("/")
	require.NoError(t, err)
	require.Equal(t, "/", got)
}

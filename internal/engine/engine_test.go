package engine

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/omnifs/omnifs/internal/config"
	"github.com/omnifs/omnifs/internal/container"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		TotalSize:      1 << 20,
		HeaderSize:     512,
		BlockSize:      512,
		MaxFiles:       64,
		MaxUsers:       8,
		AdminUsername:  "admin",
		AdminPassword:  "admin123",
		RequireAuth:    true,
		Port:           8080,
		MaxConnections: 8,
		QueueTimeout:   5 * time.Second,
		SessionTTL:     time.Hour,
	}
}

func newFormatted(t *testing.T) *Engine {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.omni")
	e, err := Format(path, testConfig(t), nil)
	require.NoError(t, err)
	t.Cleanup(func() { e.Shutdown(context.Background()) })
	return e
}

func adminSession(t *testing.T, e *Engine) string {
	t.Helper()
	s, err := e.Login("admin", "admin123")
	require.NoError(t, err)
	return s.ID
}

func TestFormatOpenScenario(t *testing.T) {
	e := newFormatted(t)
	root, ok := e.metadata.Get(container.RootIndex)
	require.True(t, ok)
	require.Equal(t, "/", root.Name)
	require.Equal(t, container.EntryDirectory, root.Type)
}

func TestAdminLoginAndWrongPassword(t *testing.T) {
	e := newFormatted(t)
	s, err := e.Login("admin", "admin123")
	require.NoError(t, err)
	require.Equal(t, container.RoleAdmin, s.Role)

	_, err = e.Login("admin", "wrong")
	require.Error(t, err)
}

func TestSmallFileRoundTrip(t *testing.T) {
	e := newFormatted(t)
	sid := adminSession(t, e)

	require.NoError(t, e.FileCreate(sid, "/hello.txt", []byte("Hello, World!")))

	got, err := e.FileRead(sid, "/hello.txt")
	require.NoError(t, err)
	require.Equal(t, "Hello, World!", string(got))

	meta, err := e.GetMetadata(sid, "/hello.txt")
	require.NoError(t, err)
	require.EqualValues(t, 13, meta.TotalSize)
}

func TestMultiBlockFile(t *testing.T) {
	e := newFormatted(t)
	sid := adminSession(t, e)

	payload := make([]byte, 2000)
	for i := range payload {
		payload[i] = 0xA5
	}
	require.NoError(t, e.FileCreate(sid, "/big.bin", payload))

	got, err := e.FileRead(sid, "/big.bin")
	require.NoError(t, err)
	require.Len(t, got, 2000)
	for _, b := range got {
		require.EqualValues(t, 0xA5, b)
	}
}

func TestDirectoryLifecycle(t *testing.T) {
	e := newFormatted(t)
	sid := adminSession(t, e)

	require.NoError(t, e.DirCreate(sid, "/d"))
	require.Error(t, e.DirCreate(sid, "/d"))

	require.NoError(t, e.FileCreate(sid, "/d/a", nil))

	err := e.DirDelete(sid, "/d")
	require.Error(t, err)

	require.NoError(t, e.FileDelete(sid, "/d/a"))
	require.NoError(t, e.DirDelete(sid, "/d"))
}

func TestPathSafety(t *testing.T) {
	e := newFormatted(t)
	sid := adminSession(t, e)

	require.Error(t, e.FileCreate(sid, "/../etc/passwd", nil))
	require.Error(t, e.FileCreate(sid, "//a", nil))
	require.Error(t, e.FileCreate(sid, "a", nil))
}

func TestFileEditExtendsFile(t *testing.T) {
	e := newFormatted(t)
	sid := adminSession(t, e)

	require.NoError(t, e.FileCreate(sid, "/f.txt", []byte("hello")))
	require.NoError(t, e.FileEdit(sid, "/f.txt", []byte("WORLD!!"), 5))

	got, err := e.FileRead(sid, "/f.txt")
	require.NoError(t, err)
	require.Equal(t, "helloWORLD!!", string(got))
}

func TestFileEditOverwritesMiddle(t *testing.T) {
	e := newFormatted(t)
	sid := adminSession(t, e)

	require.NoError(t, e.FileCreate(sid, "/f.txt", []byte("0123456789")))
	require.NoError(t, e.FileEdit(sid, "/f.txt", []byte("XYZ"), 3))

	got, err := e.FileRead(sid, "/f.txt")
	require.NoError(t, err)
	require.Equal(t, "012XYZ6789", string(got))
}

func TestRenameSameParentOnly(t *testing.T) {
	e := newFormatted(t)
	sid := adminSession(t, e)

	require.NoError(t, e.DirCreate(sid, "/a"))
	require.NoError(t, e.DirCreate(sid, "/b"))
	require.NoError(t, e.FileCreate(sid, "/a/x.txt", []byte("x")))

	require.NoError(t, e.FileRename(sid, "/a/x.txt", "/a/y.txt"))
	exists, err := e.FileExists(sid, "/a/y.txt")
	require.NoError(t, err)
	require.True(t, exists)

	require.Error(t, e.FileRename(sid, "/a/y.txt", "/b/y.txt"))
}

func TestCreateUserRequiresAdmin(t *testing.T) {
	e := newFormatted(t)

	require.NoError(t, e.CreateUser(adminSession(t, e), "alice", "wonderland", container.RoleNormal))

	aliceSession, err := e.Login("alice", "wonderland")
	require.NoError(t, err)

	err = e.CreateUser(aliceSession.ID, "bob", "builder1", container.RoleNormal)
	require.Error(t, err)
}

func TestFsckCleanContainer(t *testing.T) {
	e := newFormatted(t)
	sid := adminSession(t, e)
	require.NoError(t, e.FileCreate(sid, "/x.txt", []byte("abc")))

	violations, err := e.Fsck(context.Background())
	require.NoError(t, err)
	require.Empty(t, violations)
}

func TestStatsReflectUsage(t *testing.T) {
	e := newFormatted(t)
	sid := adminSession(t, e)
	before := e.Stats()

	require.NoError(t, e.FileCreate(sid, "/f.txt", make([]byte, 4000)))

	after := e.Stats()
	require.Greater(t, after.UsedBlocks, before.UsedBlocks)
}

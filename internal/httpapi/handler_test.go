package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/omnifs/omnifs/internal/config"
	"github.com/omnifs/omnifs/internal/engine"
	"github.com/omnifs/omnifs/internal/pipeline"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*httptest.Server, *engine.Engine) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.omni")
	cfg := &config.Config{
		TotalSize: 1 << 20, HeaderSize: 512, BlockSize: 512,
		MaxFiles: 64, MaxUsers: 8,
		AdminUsername: "admin", AdminPassword: "admin123", RequireAuth: true,
		Port: 8080, MaxConnections: 8, QueueTimeout: 2 * time.Second, SessionTTL: time.Hour,
	}
	e, err := engine.Format(path, cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { e.Shutdown(context.Background()) })

	p := pipeline.New(engine.NewDispatcher(e), 64)
	p.Start(context.Background())
	t.Cleanup(p.Stop)

	h := NewHandler(p, cfg.QueueTimeout)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	srv := httptest.NewServer(RequestIDMiddleware(mux))
	t.Cleanup(srv.Close)
	return srv, e
}

func statusOf(t *testing.T, body []byte) int64 {
	t.Helper()
	require.GreaterOrEqual(t, len(body), 8)
	return int64(binary.LittleEndian.Uint64(body[:8]))
}

func TestHealthCheck(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLoginAndFileRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/login?username=admin&password=admin123")
	require.NoError(t, err)
	defer resp.Body.Close()
	body := readAll(t, resp)
	require.EqualValues(t, 0, statusOf(t, body))
	sessionID := string(body[8:])
	require.NotEmpty(t, sessionID)

	data := base64.StdEncoding.EncodeToString([]byte("hello"))
	resp2, err := http.Get(srv.URL + "/api/file_create?session=" + sessionID + "&path=/a.txt&data=" + data)
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.EqualValues(t, 0, statusOf(t, readAll(t, resp2)))

	resp3, err := http.Get(srv.URL + "/api/file_read?session=" + sessionID + "&path=/a.txt")
	require.NoError(t, err)
	defer resp3.Body.Close()
	body3 := readAll(t, resp3)
	require.EqualValues(t, 0, statusOf(t, body3))
	require.Equal(t, "hello", string(body3[8:]))
}

func TestLoginWrongPasswordReturnsError(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/login?username=admin&password=nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NotEqualValues(t, 0, statusOf(t, readAll(t, resp)))
}

func readAll(t *testing.T, resp *http.Response) []byte {
	t.Helper()
	buf := make([]byte, 0, 256)
	tmp := make([]byte, 256)
	for {
		n, err := resp.Body.Read(tmp)
		buf = append(buf, tmp[:n]...)
		if err != nil {
			break
		}
	}
	return buf
}

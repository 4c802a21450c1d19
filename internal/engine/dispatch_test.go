package engine

import (
	"context"
	"testing"

	"github.com/omnifs/omnifs/internal/pipeline"
	"github.com/stretchr/testify/require"
)

func TestDispatcherFileCreateReadCycle(t *testing.T) {
	e := newFormatted(t)
	sid := adminSession(t, e)
	d := NewDispatcher(e)

	_, err := d.Dispatch(context.Background(), pipeline.Request{
		Op:        pipeline.OpFileCreate,
		SessionID: sid,
		Args:      map[string]any{"path": "/a.txt", "data": []byte("hi")},
	})
	require.NoError(t, err)

	payload, err := d.Dispatch(context.Background(), pipeline.Request{
		Op:        pipeline.OpFileRead,
		SessionID: sid,
		Args:      map[string]any{"path": "/a.txt"},
	})
	require.NoError(t, err)
	require.Equal(t, []byte("hi"), payload)
}

func TestDispatcherUnknownOp(t *testing.T) {
	e := newFormatted(t)
	d := NewDispatcher(e)

	_, err := d.Dispatch(context.Background(), pipeline.Request{Op: pipeline.OpKind("BOGUS")})
	require.Error(t, err)
}

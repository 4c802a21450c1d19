package eventlog

import (
	"testing"

	"github.com/omnifs/omnifs/internal/pkg/omnierr"
	"github.com/stretchr/testify/require"
)

type captureSink struct{ got []Record }

func (s *captureSink) Emit(r Record) { s.got = append(s.got, r) }

func TestRingRetainsAndForwards(t *testing.T) {
	sink := &captureSink{}
	ring := NewRing(3, sink)

	for i := 0; i < 5; i++ {
		ring.Emit(Record{Level: Info, Component: "engine", Code: omnierr.OK, Timestamp: uint64(i)})
	}

	require.Len(t, sink.got, 5)

	snap := ring.Snapshot()
	require.Len(t, snap, 3)
	require.EqualValues(t, 2, snap[0].Timestamp)
	require.EqualValues(t, 4, snap[2].Timestamp)
}

func TestRingWithoutSink(t *testing.T) {
	ring := NewRing(2, nil)
	ring.Emit(Record{Level: Debug})
	require.Len(t, ring.Snapshot(), 1)
}

package dmp_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmstat/dmstat/dmp"
	"github.com/dmstat/dmstat/internal/stats"
	"github.com/dmstat/dmstat/internal/testlogging"
	"github.com/dmstat/dmstat/target"
)

func TestTargetType(t *testing.T) {
	ctx := testlogging.Context(t)

	var tt dmp.TargetType

	require.Equal(t, "dmp_target", tt.Name())
	require.Equal(t, "1.0.0", tt.Version().String())

	m, err := tt.New(ctx, []string{"ignored", "args"})
	require.NoError(t, err)

	tgt, ok := m.(*dmp.Target)
	require.True(t, ok)
	require.True(t, tgt.Active())
	require.Equal(t, stats.Snapshot{}, tgt.Stats())
}

func TestTarget_Map(t *testing.T) {
	tgt := dmp.New()

	require.Equal(t, target.MapRemapped, tgt.Map(target.Request{Direction: target.Read, Offset: 0, Size: 4096}))
	require.Equal(t, target.MapRemapped, tgt.Map(target.Request{Direction: target.Write, Offset: 8192, Size: 8192}))
	require.Equal(t, target.MapRemapped, tgt.Map(target.Request{Direction: target.Write, Flush: true}))

	require.Equal(t, stats.Snapshot{
		ReadCount:  1,
		WriteCount: 2,
		ReadBytes:  4096,
		WriteBytes: 8192,
	}, tgt.Stats())

	require.Equal(t, `read:
  reqs: 1
  avg size: 4096
write:
  reqs: 2
  avg size: 4096
total:
  reqs: 3
  avg size: 4096
`, tgt.Status())
}

func TestTarget_Lifecycle(t *testing.T) {
	ctx := testlogging.Context(t)
	tgt := dmp.New()

	require.True(t, tgt.Active())
	tgt.Map(target.Request{Direction: target.Read, Size: 512})
	require.Equal(t, uint64(1), tgt.Stats().ReadCount)

	require.NoError(t, tgt.Close(ctx))
	require.False(t, tgt.Active())
	require.ErrorIs(t, tgt.Close(ctx), dmp.ErrDestroyed)

	// the record is released, readers racing the removal see an empty report
	require.Equal(t, stats.Snapshot{}, tgt.Stats())
	require.Equal(t, stats.Snapshot{}.Report(), tgt.Status())
}

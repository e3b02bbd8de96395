package applog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRingBufferWrapsAndTracksWritePosition(t *testing.T) {
	r := NewRingBuffer(8)
	n, err := r.Write([]byte("abcdefgh"))
	require.NoError(t, err)
	require.Equal(t, 8, n)

	_, err = r.Write([]byte("ij"))
	require.NoError(t, err)

	data, pos := r.Snapshot()
	require.Equal(t, "cdefghij", string(data))
	require.Equal(t, int64(10), pos)
}

func TestCrashWriterRetainsOnlyMostRecentRecord(t *testing.T) {
	c := &CrashWriter{}
	_, _ = c.Write([]byte("first panic"))
	_, _ = c.Write([]byte("second panic"))
	require.Equal(t, "second panic", c.Snapshot())
}

func TestLogMaskEnabledBits(t *testing.T) {
	m := LogMask(0b00000101)
	require.True(t, m.Enabled(0))
	require.False(t, m.Enabled(1))
	require.True(t, m.Enabled(2))
	require.False(t, m.Enabled(3))
}

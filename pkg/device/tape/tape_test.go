package tape

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/open-source-firmware/scsi-target-core/pkg/scsiwire"
	"github.com/open-source-firmware/scsi-target-core/pkg/store"
	"github.com/open-source-firmware/scsi-target-core/pkg/target"
	"github.com/stretchr/testify/require"
)

func openFile(t *testing.T, blocks int, blockSize int) File {
	path := filepath.Join(t.TempDir(), "f.bin")
	require.NoError(t, os.WriteFile(path, make([]byte, blocks*blockSize), 0o644))
	s, err := store.Open(path, uint32(blockSize), false)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return File{Store: s, Blocks: uint32(blocks)}
}

func fixedReadCDB(blocks uint32) []byte {
	return []byte{scsiwire.OpRead6, 0x01, byte(blocks >> 16), byte(blocks >> 8), byte(blocks), 0}
}

// Scenario 6: reading across a file boundary in a multi-file tape image
// stops at the filemark and reports blocks-not-read; the multi-file
// invariant holds before and after.
func TestMultiFileTapeFilemarkBoundary(t *testing.T) {
	e := New([]File{
		openFile(t, 3, 512),
		openFile(t, 5, 512),
	})
	st := target.NewState(512, true)
	st.UnitAttention = false

	xfer := &target.Xfer{Data: make([]byte, 5*512)}
	res := e.Dispatch(fixedReadCDB(5), st, nil, xfer)

	require.Equal(t, scsiwire.StatusCheckCondition, res.Status)
	require.True(t, st.Sense.Filemark)
	require.Equal(t, uint32(2), st.Sense.Info) // 5 requested - 3 read
	require.Equal(t, uint32(3), st.TapePos)
	require.Equal(t, 1, st.TapeMarkIndex)
	require.Equal(t, uint32(3), st.TapeMarkBlockOffset)
}

// P7: after REWIND ; SPACE blocks=N, READ POSITION reports current block=N.
func TestRewindThenSpaceReportsPosition(t *testing.T) {
	e := New([]File{openFile(t, 10, 512)})
	st := target.NewState(512, true)

	require.Equal(t, target.Good(), e.Dispatch([]byte{scsiwire.OpRewind}, st, nil, &target.Xfer{}))

	spaceCDB := []byte{scsiwire.OpSpace6, 0x00, 0x00, 0x00, 0x04, 0x00}
	res := e.Dispatch(spaceCDB, st, nil, &target.Xfer{})
	require.Equal(t, scsiwire.StatusGood, res.Status)
	require.Equal(t, uint32(4), st.TapePos)

	xfer := &target.Xfer{Data: make([]byte, 20)}
	res = e.Dispatch([]byte{scsiwire.OpReadPosition}, st, nil, xfer)
	require.Equal(t, scsiwire.StatusGood, res.Status)
	require.Equal(t, uint32(4), beUint32(xfer.Data[4:8]))
}

// P7 (second half): spacing past total blocks reports BLANK CHECK.
func TestSpacePastEndOfDataReportsBlankCheck(t *testing.T) {
	e := New([]File{openFile(t, 4, 512)})
	st := target.NewState(512, true)

	spaceCDB := []byte{scsiwire.OpSpace6, 0x00, 0x00, 0x00, 0x05, 0x00}
	res := e.Dispatch(spaceCDB, st, nil, &target.Xfer{})
	require.Equal(t, scsiwire.StatusCheckCondition, res.Status)
	require.Equal(t, byte(scsiwire.SenseBlankCheck), res.Sense.Key)
}

// READ BLOCK LIMITS reports the live block size as both the min and max
// block length.
func TestReadBlockLimitsReportsLiveBlockSizeAsMinAndMax(t *testing.T) {
	e := New([]File{openFile(t, 4, 512)})
	st := target.NewState(512, true)

	xfer := &target.Xfer{Data: make([]byte, 6)}
	res := e.Dispatch([]byte{scsiwire.OpReadBlockLimits}, st, nil, xfer)
	require.Equal(t, scsiwire.StatusGood, res.Status)

	maxLen := uint32(xfer.Data[1])<<16 | uint32(xfer.Data[2])<<8 | uint32(xfer.Data[3])
	minLen := uint32(xfer.Data[4])<<8 | uint32(xfer.Data[5])
	require.Equal(t, uint32(512), maxLen)
	require.Equal(t, uint32(512), minLen)
}

func beUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

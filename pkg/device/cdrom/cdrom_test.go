package cdrom

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/open-source-firmware/scsi-target-core/pkg/scsiwire"
	"github.com/open-source-firmware/scsi-target-core/pkg/store"
	"github.com/open-source-firmware/scsi-target-core/pkg/target"
	"github.com/stretchr/testify/require"
)

func openTestCDImage(t *testing.T, sectors int) store.Store {
	path := filepath.Join(t.TempDir(), "disc.img")
	require.NoError(t, os.WriteFile(path, make([]byte, sectors*2048), 0o644))
	s, err := store.Open(path, 2048, true)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// Scenario: READ TOC for a single-track image reports one data track plus
// a leadout descriptor.
func TestReadTOCFormat0SingleTrack(t *testing.T) {
	bs := openTestCDImage(t, 1000)
	st := target.NewState(2048, true)
	e := New(nil)

	cdb := make([]byte, 10)
	cdb[0] = scsiwire.OpReadTOC
	cdb[2] = 0x00 // format 0
	xfer := &target.Xfer{Data: make([]byte, 4+2*8)}
	res := e.Dispatch(cdb, st, bs, xfer)
	require.Equal(t, scsiwire.StatusGood, res.Status)

	hdr := xfer.Data[:4]
	require.Equal(t, byte(1), hdr[2]) // first track
	require.Equal(t, byte(1), hdr[3]) // last track

	track1 := xfer.Data[4:12]
	require.Equal(t, byte(1), track1[2])
	leadout := xfer.Data[12:20]
	require.Equal(t, byte(scsiwire.TOCLeadoutTrackNumber), leadout[2])
}

// Full TOC (format 3) carries A0/A1/A2, one descriptor per track, and the
// B0/C0 session-boundary descriptors, all BCD-encoded.
func TestReadFullTOCFormat3IncludesB0AndC0(t *testing.T) {
	bs := openTestCDImage(t, 1000)
	st := target.NewState(2048, true)
	e := New(nil)

	cdb := make([]byte, 10)
	cdb[0] = scsiwire.OpReadTOC
	cdb[2] = 0x03 // format 3, full TOC
	xfer := &target.Xfer{Data: make([]byte, 4+6*8)}
	res := e.Dispatch(cdb, st, bs, xfer)
	require.Equal(t, scsiwire.StatusGood, res.Status)

	descriptors := xfer.Data[4:]
	points := make([]byte, 0, 6)
	for i := 0; i+8 <= len(descriptors); i += 8 {
		points = append(points, descriptors[i+2])
	}
	require.Equal(t, []byte{0xa0, 0xa1, 0xa2, 0x01, 0xb0, 0xc0}, points)
}

func TestWriteProtectedCDRejectsWrite(t *testing.T) {
	bs := openTestCDImage(t, 100)
	st := target.NewState(2048, true)
	e := New(nil)

	cdb := []byte{scsiwire.OpWrite6, 0, 0, 0, 1, 0}
	xfer := &target.Xfer{Data: make([]byte, 2048), Len: 2048}
	res := e.Dispatch(cdb, st, bs, xfer)
	require.Equal(t, scsiwire.StatusCheckCondition, res.Status)
	require.Equal(t, byte(scsiwire.ASCWriteProtected), res.Sense.ASC)
}

// P5 (partial, engine-level): START STOP UNIT stop+eject raises a removal
// event that GET EVENT STATUS NOTIFICATION reports exactly once.
func TestEjectRaisesRemovalEventOnce(t *testing.T) {
	bs := openTestCDImage(t, 100)
	st := target.NewState(2048, true)
	e := New(nil)

	ejectCDB := []byte{scsiwire.OpStartStopUnit, 0, 0, 0, 0x02, 0}
	res := e.Dispatch(ejectCDB, st, bs, &target.Xfer{})
	require.Equal(t, scsiwire.StatusGood, res.Status)
	require.True(t, st.Ejected)

	cdb := make([]byte, 10)
	cdb[0] = scsiwire.OpGetEventStatusNotif
	xfer := &target.Xfer{Data: make([]byte, 4)}
	res = e.Dispatch(cdb, st, bs, xfer)
	require.Equal(t, byte(0x03), xfer.Data[3])

	xfer2 := &target.Xfer{Data: make([]byte, 4)}
	res = e.Dispatch(cdb, st, bs, xfer2)
	require.Equal(t, byte(0x00), xfer2.Data[3])
	_ = res
}

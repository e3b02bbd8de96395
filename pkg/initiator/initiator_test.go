package initiator

import (
	"bytes"
	"errors"
	"testing"

	"github.com/open-source-firmware/scsi-target-core/pkg/initiator/sgdev"
	"github.com/open-source-firmware/scsi-target-core/pkg/initiator/sgdev/sgio"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type fakeDrive struct {
	tur               []error // consumed in order; last value sticks
	turCalls          int
	identifyCalls     int
	capLastLBA        uint32
	capBlockSize      uint32
	capErr            error
	data              []byte // backing "disk" read by SendCDB
	sendCDBErrOnFirst bool
	sendCDBCalls      int
}

func (f *fakeDrive) SendCDB(cdb []byte, fromDevice bool, data *[]byte) error {
	f.sendCDBCalls++
	if f.sendCDBErrOnFirst && f.sendCDBCalls == 1 {
		return errors.New("simulated transient error")
	}
	start := uint32(cdb[2])<<24 | uint32(cdb[3])<<16 | uint32(cdb[4])<<8 | uint32(cdb[5])
	count := int(cdb[7])<<8 | int(cdb[8])
	sectorSize := len(*data) / max(count, 1)
	off := int(start) * sectorSize
	copy(*data, f.data[off:off+len(*data)])
	return nil
}

func (f *fakeDrive) Identify() (*sgdev.Identity, error) {
	f.identifyCalls++
	return &sgdev.Identity{Model: "TESTDRIVE"}, nil
}

func (f *fakeDrive) ReadCapacity() (uint32, uint32, error) {
	return f.capLastLBA, f.capBlockSize, f.capErr
}

func (f *fakeDrive) TestUnitReady() error {
	idx := f.turCalls
	if idx >= len(f.tur) {
		idx = len(f.tur) - 1
	}
	f.turCalls++
	if idx < 0 {
		return nil
	}
	return f.tur[idx]
}

func (f *fakeDrive) Close() error { return nil }

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func newTestLog() *logrus.Entry { return logrus.NewEntry(logrus.New()) }

func TestTestUnitReadyRetriesOnUnitAttention(t *testing.T) {
	drive := &fakeDrive{tur: []error{
		&sgio.SenseError{Key: sgio.SENSE_UNIT_ATTENTION},
		nil,
	}}
	d := New(drive, newTestLog())
	require.NoError(t, d.TestUnitReady(3))
	require.GreaterOrEqual(t, drive.identifyCalls, 1)
}

func TestTestUnitReadyGivesUpOnOtherSenseKeys(t *testing.T) {
	drive := &fakeDrive{tur: []error{&sgio.SenseError{Key: sgio.SENSE_ILLEGAL_REQUEST}}}
	d := New(drive, newTestLog())
	err := d.TestUnitReady(3)
	require.Error(t, err)
}

func TestReadCapacityFallsBackOnFailure(t *testing.T) {
	drive := &fakeDrive{capErr: errors.New("no READ CAPACITY support")}
	d := New(drive, newTestLog())
	cap, err := d.ReadCapacity()
	require.NoError(t, err)
	require.True(t, cap.Fallback)
	require.Equal(t, uint32(fallbackBlockSize), cap.BlockSize)
}

func TestReadCapacitySucceeds(t *testing.T) {
	drive := &fakeDrive{capLastLBA: 999, capBlockSize: 512}
	d := New(drive, newTestLog())
	cap, err := d.ReadCapacity()
	require.NoError(t, err)
	require.False(t, cap.Fallback)
	require.Equal(t, uint32(999), cap.LastLBA)
}

func TestCloneStreamsSectorsToWriter(t *testing.T) {
	sectorSize := uint32(512)
	total := uint32(130) // spans more than one chunk (chunkSectors=64)
	data := make([]byte, int(total)*int(sectorSize))
	for i := range data {
		data[i] = byte(i)
	}
	drive := &fakeDrive{data: data}
	d := New(drive, newTestLog())

	var out bytes.Buffer
	require.NoError(t, d.Clone(0, total, sectorSize, &out))
	require.Equal(t, data, out.Bytes())
}

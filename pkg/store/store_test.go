package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// P2: a subsequent read of a written sector returns what was written.
func TestFileStoreWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img")
	require.NoError(t, os.WriteFile(path, make([]byte, 4096), 0o644))

	s, err := Open(path, 512, false)
	require.NoError(t, err)
	defer s.Close()

	data := make([]byte, 512)
	for i := range data {
		data[i] = 0x42
	}
	require.NoError(t, s.Seek(1024))
	n, err := s.Write(data)
	require.NoError(t, err)
	require.Equal(t, 512, n)

	require.NoError(t, s.Seek(1024))
	readBack := make([]byte, 512)
	_, err = s.Read(readBack)
	require.NoError(t, err)
	require.Equal(t, data, readBack)
}

func TestFileStoreReadOnlyIsWriteProtected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cd.img")
	require.NoError(t, os.WriteFile(path, make([]byte, 2048), 0o644))

	s, err := Open(path, 2048, true)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Write(make([]byte, 2048))
	require.Error(t, err)
	require.Equal(t, ErrKindWriteProtected, KindOf(err))
}

func TestOpenMissingFileIsNotFound(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.img"), 512, false)
	require.Error(t, err)
	require.Equal(t, ErrKindNotFound, KindOf(err))
}

type memDevice struct {
	buf []byte
}

func (m *memDevice) ReadAt(p []byte, off int64) (int, error) {
	n := copy(p, m.buf[off:])
	return n, nil
}
func (m *memDevice) WriteAt(p []byte, off int64) (int, error) {
	n := copy(m.buf[off:], p)
	return n, nil
}
func (m *memDevice) Size() int64 { return int64(len(m.buf)) }

func TestRawStoreRangeAndDowngrade(t *testing.T) {
	SetSDCard(&memDevice{buf: make([]byte, 1<<20)})
	defer SetSDCard(nil)

	s, err := Open("RAW:100:199", 512, false)
	require.NoError(t, err)
	require.Equal(t, int64(100*512), s.Size())

	require.NoError(t, s.Seek(0))
	require.False(t, s.Downgraded())

	require.NoError(t, s.Seek(10))
	require.True(t, s.Downgraded())
	require.False(t, s.Downgraded(), "Downgraded() must clear the flag once read")

	first, last, ok := s.ContiguousRange()
	require.True(t, ok)
	require.Equal(t, uint32(100), first)
	require.Equal(t, uint32(199), last)
}

func TestRawStoreUnsupportedBlockSize(t *testing.T) {
	SetSDCard(&memDevice{buf: make([]byte, 1<<20)})
	defer SetSDCard(nil)

	_, err := Open("RAW:0:9", 300, false)
	require.Error(t, err)
	require.Equal(t, ErrKindUnsupportedBlockSize, KindOf(err))
}

func TestROMStoreIsAlwaysWriteProtected(t *testing.T) {
	SetROMChip(&memDevice{buf: make([]byte, 1<<20)})
	defer SetROMChip(nil)

	s, err := Open("ROM:", 512, false)
	require.NoError(t, err)
	_, err = s.Write(make([]byte, 512))
	require.Error(t, err)
	require.Equal(t, ErrKindWriteProtected, KindOf(err))
}

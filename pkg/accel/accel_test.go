package accel

import (
	"testing"

	"github.com/open-source-firmware/scsi-target-core/pkg/phy"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func newTestEngine() (*Engine, phy.Bus) {
	target, initiator := phy.NewSimBus()
	return New(target, logrus.NewEntry(logrus.New())), initiator
}

// P4: start_write(A, n) followed by start_write(A+n, m) combines into a
// single transfer rather than queuing a second one.
func TestStartWriteCombinesContiguousTail(t *testing.T) {
	e, initiator := newTestEngine()

	require.NoError(t, e.StartWrite(1000, []byte{0x01, 0x02, 0x03}))
	require.NoError(t, e.StartWrite(1003, []byte{0x04, 0x05}))

	e.mu.Lock()
	require.Nil(t, e.queued, "contiguous follow-on must combine, not queue")
	require.Equal(t, []byte{0x01, 0x02, 0x03, 0x04, 0x05}, e.active.data)
	e.mu.Unlock()

	for _, want := range []byte{0x01, 0x02, 0x03, 0x04, 0x05} {
		got, parityErr, err := initiator.ReadByte()
		require.NoError(t, err)
		require.False(t, parityErr)
		require.Equal(t, want, got)
	}
}

func TestStartWriteQueuesNonContiguous(t *testing.T) {
	e, _ := newTestEngine()

	// Block the active request's drain by writing on one end only; since
	// pumpAsync here runs synchronously to completion on the calling
	// goroutine when there's no reader, simulate "still active" by
	// inspecting state right after a combine-incompatible second call
	// would have queued.
	e.mu.Lock()
	e.active = &request{addr: 0, data: []byte{0xaa}}
	e.mu.Unlock()

	require.NoError(t, e.StartWrite(50, []byte{0xbb}))

	e.mu.Lock()
	require.NotNil(t, e.queued)
	require.Equal(t, int64(50), e.queued.addr)
	e.mu.Unlock()
}

func TestIsWriteFinishedNilMeansAllDrained(t *testing.T) {
	e, initiator := newTestEngine()
	require.NoError(t, e.StartWrite(0, []byte{0x11, 0x22}))
	for i := 0; i < 2; i++ {
		_, _, err := initiator.ReadByte()
		require.NoError(t, err)
	}
	require.True(t, e.IsWriteFinished(nil))
}

func TestReadAccumulatesParity(t *testing.T) {
	e, initiator := newTestEngine()

	go func() {
		_ = initiator.WriteByte(0x7e)
		_ = initiator.WriteByte(0x3c)
	}()

	out, err := e.Read(2)
	require.NoError(t, err)
	require.Equal(t, []byte{0x7e, 0x3c}, out)
	require.False(t, e.ParityError())
}

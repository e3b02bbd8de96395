package target

import (
	"testing"

	"github.com/open-source-firmware/scsi-target-core/pkg/scsiwire"
	"github.com/stretchr/testify/require"
)

// P6: a freshly powered-on state has a unit-attention condition queued, and
// clearing it leaves none pending.
func TestUnitAttentionAfterPowerOn(t *testing.T) {
	st := NewState(512, true)
	require.True(t, st.UnitAttention)

	st.UnitAttention = false
	require.False(t, st.UnitAttention)
}

func TestStateResetRestoresStartedAndQueuesUnitAttention(t *testing.T) {
	st := NewState(512, true)
	st.UnitAttention = false
	st.Started = false

	st.Reset(true)
	require.True(t, st.Started)
	require.True(t, st.UnitAttention)
}

func TestSensePostAndConsume(t *testing.T) {
	st := NewState(512, false)
	st.PostSense(scsiwire.IllegalRequestInvalidField())
	require.True(t, st.Sense.IsError())

	d := st.ConsumeSense()
	require.Equal(t, byte(scsiwire.SenseIllegalRequest), d.Key)
	require.False(t, st.Sense.IsError())
}

func TestMediaEventConsumedOnce(t *testing.T) {
	st := NewState(2048, true)
	st.RaiseMediaEvent(MediaEventRemoval)

	require.Equal(t, MediaEventRemoval, st.ConsumeMediaEvent())
	require.Equal(t, MediaEventNone, st.ConsumeMediaEvent())
}

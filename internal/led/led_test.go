package led

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeCrashBlinkIsMSBFirst31Bits(t *testing.T) {
	pulses := EncodeCrashBlink(1) // only bit 0 set
	require.Len(t, pulses, 31)
	for i := 0; i < 30; i++ {
		require.False(t, pulses[i].Long, "bit %d should be short", i)
	}
	require.True(t, pulses[30].Long)
}

func TestEncodeCrashBlinkAllZero(t *testing.T) {
	pulses := EncodeCrashBlink(0)
	for _, p := range pulses {
		require.False(t, p.Long)
	}
}

package metrics

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteTextIncludesCounters(t *testing.T) {
	var buf bytes.Buffer
	err := WriteText(&buf, []Snapshot{
		{
			Target:       "0",
			BytesIn:      1024,
			BytesOut:     512,
			ParityErrors: 1,
			SenseKey:     0,
		},
	})
	require.NoError(t, err)
	out := buf.String()
	require.Contains(t, out, "scsi_target_bytes_transferred_total")
	require.Contains(t, out, "scsi_target_parity_errors_total")
}

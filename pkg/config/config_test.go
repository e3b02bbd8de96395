package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/open-source-firmware/scsi-target-core/pkg/target"
	"github.com/stretchr/testify/require"
)

func TestClassifyImageNameDisk(t *testing.T) {
	kind, ss, id, lun, ok := ClassifyImageName("HD10_2048.hda")
	require.True(t, ok)
	require.Equal(t, target.KindFixed, kind)
	require.Equal(t, uint32(2048), ss)
	require.Equal(t, 1, id)
	require.Equal(t, 0, lun)
}

func TestClassifyImageNameCDForcesOpticalAnd2048(t *testing.T) {
	kind, ss, id, _, ok := ClassifyImageName("CD3.iso")
	require.True(t, ok)
	require.Equal(t, target.KindOptical, kind)
	require.Equal(t, uint32(2048), ss)
	require.Equal(t, 3, id)
}

func TestClassifyImageNameFloppy(t *testing.T) {
	kind, _, _, _, ok := ClassifyImageName("FD0.img")
	require.True(t, ok)
	require.Equal(t, target.KindFloppy, kind)
}

func TestClassifyImageNameRejectsCompressed(t *testing.T) {
	_, _, _, _, ok := ClassifyImageName("HD0.hda.gz")
	require.False(t, ok)
}

func TestClassifyImageNameRejectsUnrecognizedPrefix(t *testing.T) {
	_, _, _, _, ok := ClassifyImageName("random.bin")
	require.False(t, ok)
}

func TestLoadParsesGlobalAndPerTargetSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zuluscsi.ini")
	contents := `
[SCSI]
Dir = /sd/images
InitiatorID = 6
Debug = true
System = MacPlus

[SCSI0]
Type = removable
Vendor = SEAGATE
Product = ST225N
IMG0 = /sd/images/disk0.hda
IMG1 = /sd/images/disk1.hda
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	f, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, []string{"/sd/images"}, f.Global.Dirs)
	require.Equal(t, 6, f.Global.InitiatorID)
	require.True(t, f.Global.Debug)
	require.True(t, f.Global.EnableSelLatch) // from MacPlus preset

	require.True(t, f.Targets[0].Present)
	require.Equal(t, target.KindRemovable, f.Targets[0].DeviceKind())
	require.Equal(t, []string{"/sd/images/disk0.hda", "/sd/images/disk1.hda"}, f.Targets[0].Images)
	require.False(t, f.Targets[1].Present)
}

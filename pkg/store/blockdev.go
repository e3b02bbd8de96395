// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package store

// BlockDevice is the raw medium RAW and ROM stores address directly,
// bypassing the filesystem. Real SD-card and flash-chip drivers are the
// out-of-scope board-bring-up collaborators named in §1; this module only
// depends on this narrow interface, satisfied in tests/tools by a
// file-backed implementation.
type BlockDevice interface {
	ReadAt(p []byte, off int64) (int, error)
	WriteAt(p []byte, off int64) (int, error)
	Size() int64
}

// fileBlockDevice adapts an *os.File (or any ReaderAt+WriterAt+Size) into a
// BlockDevice, standing in for the real SD/flash controller.
type fileBlockDevice struct {
	rw   interface {
		ReadAt(p []byte, off int64) (int, error)
		WriteAt(p []byte, off int64) (int, error)
	}
	size int64
}

func NewFileBlockDevice(rw interface {
	ReadAt(p []byte, off int64) (int, error)
	WriteAt(p []byte, off int64) (int, error)
}, size int64) BlockDevice {
	return &fileBlockDevice{rw: rw, size: size}
}

func (d *fileBlockDevice) ReadAt(p []byte, off int64) (int, error)  { return d.rw.ReadAt(p, off) }
func (d *fileBlockDevice) WriteAt(p []byte, off int64) (int, error) { return d.rw.WriteAt(p, off) }
func (d *fileBlockDevice) Size() int64                              { return d.size }

// registry of process-wide block devices, set by the host application
// before Open is called with any RAW:/ROM: backing-store spec (§6 pseudo-paths
// have no per-target device selector, so there is exactly one SD device
// and one ROM region per process, matching the firmware's single physical
// SD card and single flash chip).
var (
	sdCard   BlockDevice
	romChip  BlockDevice
)

// SetSDCard installs the BlockDevice RAW: pseudo-paths address.
func SetSDCard(d BlockDevice) { sdCard = d }

// SetROMChip installs the BlockDevice ROM: pseudo-paths address.
func SetROMChip(d BlockDevice) { romChip = d }

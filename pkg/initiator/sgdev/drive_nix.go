// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sgdev

import (
	"os"
)

// Open opens a SCSI generic device node for use as an initiator-mode remote
// target (§4.7 C7). The teacher's Open() also probed for NVMe; this module
// has no NVMe component, so only the SCSI generic path remains.
func Open(device string) (DriveIntf, error) {
	d, err := os.OpenFile(device, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}

	if !isSCSI(d) {
		d.Close()
		return nil, ErrDeviceNotSupported
	}
	return SCSIDrive(d), nil
}

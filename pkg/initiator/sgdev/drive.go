// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style // license that can be found in the LICENSE file.

// Package sgdev opens a physical SCSI device node (/dev/sgN or a SCSI-backed
// block device) and exposes raw CDB send/receive over it, generalized from
// the teacher library's security-protocol-only transport so the initiator
// core (pkg/initiator) can issue INQUIRY, READ CAPACITY and READ/WRITE(10).
package sgdev

import (
	"errors"
	"fmt"
)

var (
	ErrNotSupported       = errors.New("operation is not supported")
	ErrDeviceNotSupported = errors.New("device is not a SCSI generic device")
)

type Identity struct {
	Model        string
	Firmware     string
	SerialNumber string
	IsCDROM      bool
}

func (i *Identity) String() string {
	return fmt.Sprintf("Model=%s, Firmware=%s, Serial=%s, CDROM=%v",
		i.Model, i.Firmware, i.SerialNumber, i.IsCDROM)
}

// DriveIntf is the handle the initiator core drives remote targets through.
type DriveIntf interface {
	// SendCDB issues an arbitrary 6/10/12/16-byte CDB, transferring data in
	// the given direction. data must be pre-sized to the expected transfer
	// length when fromDevice is true.
	SendCDB(cdb []byte, fromDevice bool, data *[]byte) error
	Identify() (*Identity, error)
	ReadCapacity() (lastLBA uint32, blockSize uint32, err error)
	TestUnitReady() error
	Close() error
}

type FdIntf interface {
	Fd() uintptr
	Close() error
}

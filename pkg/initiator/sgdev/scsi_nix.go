// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sgdev

import (
	"runtime"
	"strings"

	"github.com/open-source-firmware/scsi-target-core/pkg/initiator/sgdev/sgio"
)

type scsiDrive struct {
	fd FdIntf
}

func (d *scsiDrive) SendCDB(cdb []byte, fromDevice bool, data *[]byte) error {
	dir := sgio.CDBToDevice
	if fromDevice {
		dir = sgio.CDBFromDevice
	}
	err := sgio.SendCDB(d.fd.Fd(), cdb, dir, data)
	runtime.KeepAlive(d.fd)
	return err
}

func (d *scsiDrive) Identify() (*Identity, error) {
	id, err := sgio.SCSIInquiry(d.fd.Fd())
	runtime.KeepAlive(d.fd)
	if err != nil {
		return nil, err
	}
	return &Identity{
		Model:    strings.TrimSpace(string(id.VendorIdent[:])) + " " + strings.TrimSpace(string(id.ProductIdent[:])),
		Firmware: strings.TrimSpace(string(id.ProductRev[:])),
		IsCDROM:  id.IsCDROM(),
	}, nil
}

func (d *scsiDrive) ReadCapacity() (uint32, uint32, error) {
	lba, bs, err := sgio.SCSIReadCapacity(d.fd.Fd())
	runtime.KeepAlive(d.fd)
	return lba, bs, err
}

func (d *scsiDrive) TestUnitReady() error {
	err := sgio.SCSITestUnitReady(d.fd.Fd())
	runtime.KeepAlive(d.fd)
	return err
}

func (d *scsiDrive) Close() error {
	return d.fd.Close()
}

// SCSIDrive wraps an already-open SCSI generic file descriptor.
func SCSIDrive(fd FdIntf) DriveIntf {
	// Save the full object reference to avoid the underlying File-like object
	// to be GC'd while SendCDB holds only its raw fd.
	return &scsiDrive{fd: fd}
}

func isSCSI(fd FdIntf) bool {
	_, err := sgio.SCSIInquiry(fd.Fd())
	return err == nil
}

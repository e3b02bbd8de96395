// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Copyright 2021 Christian Svensson. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sgio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
)

// CDB opcodes used by the initiator (clone) path. The security-protocol and
// ATA-passthrough opcodes the teacher library used for TCG Opal have no
// analogue here and were dropped.
const (
	SCSI_TEST_UNIT_READY  = 0x00
	SCSI_INQUIRY          = 0x12
	SCSI_MODE_SENSE_6     = 0x1a
	SCSI_READ_CAPACITY_10 = 0x25
	SCSI_READ_10          = 0x28
	SCSI_WRITE_10         = 0x2a
)

// SCSI INQUIRY response
type InquiryResponse struct {
	Peripheral   byte // peripheral qualifier, device type
	_            byte
	Version      byte
	_            [5]byte
	VendorIdent  [8]byte
	ProductIdent [16]byte
	ProductRev   [4]byte
}

func (inq InquiryResponse) String() string {
	return fmt.Sprintf("Type=0x%x, Vendor=%s, Product=%s, Revision=%s",
		inq.Peripheral,
		strings.TrimSpace(string(inq.VendorIdent[:])),
		strings.TrimSpace(string(inq.ProductIdent[:])),
		strings.TrimSpace(string(inq.ProductRev[:])))
}

// IsCDROM reports whether the inquiry peripheral device type is 0x05 (CD/DVD).
func (inq InquiryResponse) IsCDROM() bool {
	return inq.Peripheral&0x1f == 0x05
}

// INQUIRY - Returns parsed inquiry data.
func SCSIInquiry(fd uintptr) (InquiryResponse, error) {
	var resp InquiryResponse

	respBuf := make([]byte, 36)

	cdb := CDB6{SCSI_INQUIRY}
	binary.BigEndian.PutUint16(cdb[3:], uint16(len(respBuf)))

	if err := SendCDB(fd, cdb[:], CDBFromDevice, &respBuf); err != nil {
		return resp, err
	}

	binary.Read(bytes.NewBuffer(respBuf), nativeEndian, &resp)

	return resp, nil
}

// SCSI TEST UNIT READY(6)
func SCSITestUnitReady(fd uintptr) error {
	cdb := CDB6{SCSI_TEST_UNIT_READY}
	buf := []byte{}
	return SendCDB(fd, cdb[:], CDBFromDevice, &buf)
}

// SCSI MODE SENSE(6) - Returns the raw response
func SCSIModeSense(fd uintptr, pageNum, subPageNum, pageControl uint8) ([]byte, error) {
	respBuf := make([]byte, 64)

	cdb := CDB6{SCSI_MODE_SENSE_6}
	cdb[2] = (pageControl << 6) | (pageNum & 0x3f)
	cdb[3] = subPageNum
	cdb[4] = uint8(len(respBuf))

	if err := SendCDB(fd, cdb[:], CDBFromDevice, &respBuf); err != nil {
		return respBuf, err
	}

	return respBuf, nil
}

// SCSI READ CAPACITY(10) - Returns last LBA and logical block size.
func SCSIReadCapacity(fd uintptr) (lastLBA uint32, blockSize uint32, err error) {
	respBuf := make([]byte, 8)
	cdb := CDB10{SCSI_READ_CAPACITY_10}

	if err := SendCDB(fd, cdb[:], CDBFromDevice, &respBuf); err != nil {
		return 0, 0, err
	}

	lastLBA = binary.BigEndian.Uint32(respBuf[0:])
	blockSize = binary.BigEndian.Uint32(respBuf[4:])
	return lastLBA, blockSize, nil
}

// SCSI READ(10) - Reads count logical blocks of blockSize bytes starting at lba into buf.
func SCSIRead10(fd uintptr, lba uint32, count uint16, buf *[]byte) error {
	cdb := CDB10{SCSI_READ_10}
	binary.BigEndian.PutUint32(cdb[2:6], lba)
	binary.BigEndian.PutUint16(cdb[7:9], count)
	return SendCDB(fd, cdb[:], CDBFromDevice, buf)
}

// SCSI WRITE(10) - Writes buf as count logical blocks starting at lba.
func SCSIWrite10(fd uintptr, lba uint32, count uint16, buf []byte) error {
	cdb := CDB10{SCSI_WRITE_10}
	binary.BigEndian.PutUint32(cdb[2:6], lba)
	binary.BigEndian.PutUint16(cdb[7:9], count)
	return SendCDB(fd, cdb[:], CDBToDevice, &buf)
}

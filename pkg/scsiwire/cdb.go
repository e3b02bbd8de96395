// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package scsiwire holds the parts of the SCSI-2 wire protocol shared by
// the target core, the device-specific command engines and the initiator:
// CDB group-length lookup, opcode constants, phase enum, sense codes and
// the MMC TOC binary layout.
package scsiwire

// Phase is one of the ten SCSI bus phases (§3, GLOSSARY).
type Phase int

const (
	BusFree Phase = iota
	Arbitration
	Selection
	Reselection
	Command
	DataIn
	DataOut
	Status
	MessageIn
	MessageOut
)

func (p Phase) String() string {
	switch p {
	case BusFree:
		return "BUS FREE"
	case Arbitration:
		return "ARBITRATION"
	case Selection:
		return "SELECTION"
	case Reselection:
		return "RESELECTION"
	case Command:
		return "COMMAND"
	case DataIn:
		return "DATA IN"
	case DataOut:
		return "DATA OUT"
	case Status:
		return "STATUS"
	case MessageIn:
		return "MESSAGE IN"
	case MessageOut:
		return "MESSAGE OUT"
	default:
		return "UNKNOWN"
	}
}

// Status byte values (SAM status codes).
const (
	StatusGood                 = 0x00
	StatusCheckCondition       = 0x02
	StatusConditionMet         = 0x04
	StatusBusy                 = 0x08
	StatusReservationConflict  = 0x18
	StatusTaskSetFull          = 0x28
	StatusACAActive            = 0x30
	StatusTaskAborted          = 0x40
)

// cdbGroupLength maps the group code in bits [7:5] of the first CDB byte to
// the CDB length in bytes, per §6 "CDB formats": groups 0,1,2,3,4,5,6,7 ->
// {6,10,10,6,16,12,6,6}. Group 3 is reserved by SPC but the table entry is
// kept so indexing never panics; groups 6/7 are vendor-specific and default
// to 6 bytes same as the original firmware.
var cdbGroupLength = [8]int{6, 10, 10, 6, 16, 12, 6, 6}

// CDBLen returns the CDB length implied by the group code of the opcode
// byte. Grounded on coreos/go-tcmu's SCSICmd.CdbLen, generalized into a
// table lookup instead of a chain of range comparisons since §6 states the
// table explicitly.
func CDBLen(opcode byte) int {
	return cdbGroupLength[opcode>>5]
}

// Opcodes used across the disk/CD-ROM/tape engines (§4.6) and the
// initiator (§4.7).
const (
	OpTestUnitReady        = 0x00
	OpRezero                = 0x01
	OpRequestSense          = 0x03
	OpFormatUnit            = 0x04
	OpRead6                 = 0x08
	OpWrite6                = 0x0a
	OpSeek6                 = 0x0b
	OpInquiry               = 0x12
	OpModeSelect6           = 0x15
	OpReserve6              = 0x16
	OpRelease6              = 0x17
	OpModeSense6            = 0x1a
	OpStartStopUnit         = 0x1b
	OpSendDiagnostic        = 0x1d
	OpPreventAllowRemoval   = 0x1e
	OpReadCapacity10        = 0x25
	OpRead10                = 0x28
	OpWrite10               = 0x2a
	OpSeek10                = 0x2b
	OpWriteAndVerify10      = 0x2e
	OpVerify10              = 0x2f
	OpPrefetch10            = 0x34
	OpSynchronizeCache10    = 0x35
	OpLockUnlockCache10     = 0x36
	OpWriteBuffer           = 0x3b
	OpReadBuffer            = 0x3c
	OpReadDefectData10      = 0x37
	OpReadTOC               = 0x43
	OpReadHeader            = 0x44
	OpGetEventStatusNotif   = 0x4a
	OpModeSelect10          = 0x55
	OpModeSense10           = 0x5a

	// Tape (SSC) opcodes.
	OpRewind            = 0x01 // same byte as REZERO, disambiguated by device kind
	OpReadBlockLimits   = 0x05
	OpWrite6Tape        = 0x0a
	OpWriteFilemarks6   = 0x10
	OpSpace6            = 0x11
	OpVerifyTape        = 0x13
	OpErase6            = 0x19
	OpReadPosition      = 0x34 // SSC overload of PRE-FETCH's opcode byte
)

// PeripheralDeviceType values reported in INQUIRY byte 0 bits[4:0].
const (
	PeripheralDirectAccess = 0x00
	PeripheralSequential   = 0x01
	PeripheralCDROM        = 0x05
	PeripheralOptical      = 0x07
)

// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package disk implements the fixed/removable disk command engine (C6),
// layered on the Target Core (pkg/target) and the backing store
// (pkg/store): READ/WRITE 6/10, READ CAPACITY, SEEK, PRE-FETCH,
// LOCK/UNLOCK CACHE, PREVENT ALLOW MEDIUM REMOVAL, REZERO, SYNCHRONIZE
// CACHE, VERIFY (no-data form), READ DEFECT DATA (empty list), FORMAT UNIT
// (parameter sink only).
package disk

import (
	"encoding/binary"

	"github.com/open-source-firmware/scsi-target-core/pkg/scsiwire"
	"github.com/open-source-firmware/scsi-target-core/pkg/store"
	"github.com/open-source-firmware/scsi-target-core/pkg/target"
)

// Engine dispatches disk-class CDBs. It holds no state of its own; the
// sector size comes from the target's State.BytesPerSector.
type Engine struct{}

func New() *Engine { return &Engine{} }

func lba32(cdb []byte, at int) uint32 { return binary.BigEndian.Uint32(cdb[at:]) }

// Direction implements target.Engine.
func (e *Engine) Direction(cdb []byte, st *target.State) (target.Direction, int) {
	sectorSize := int(st.BytesPerSector)
	if sectorSize == 0 {
		sectorSize = 512
	}
	switch cdb[0] {
	case scsiwire.OpRead6:
		n := int(cdb[4])
		if n == 0 {
			n = 256
		}
		return target.DirIn, n * sectorSize
	case scsiwire.OpWrite6:
		n := int(cdb[4])
		if n == 0 {
			n = 256
		}
		return target.DirOut, n * sectorSize
	case scsiwire.OpRead10:
		n := int(binary.BigEndian.Uint16(cdb[7:9]))
		return target.DirIn, n * sectorSize
	case scsiwire.OpWrite10, scsiwire.OpWriteAndVerify10:
		n := int(binary.BigEndian.Uint16(cdb[7:9]))
		return target.DirOut, n * sectorSize
	case scsiwire.OpInquiry:
		return target.DirIn, 36
	case scsiwire.OpRequestSense:
		return target.DirIn, 18
	case scsiwire.OpReadCapacity10:
		return target.DirIn, 8
	case scsiwire.OpModeSense6:
		return target.DirIn, int(cdb[4])
	case scsiwire.OpModeSense10:
		return target.DirIn, int(binary.BigEndian.Uint16(cdb[7:9]))
	case scsiwire.OpModeSelect6:
		return target.DirOut, int(cdb[4])
	case scsiwire.OpModeSelect10:
		return target.DirOut, int(binary.BigEndian.Uint16(cdb[7:9]))
	case scsiwire.OpReadDefectData10:
		return target.DirIn, int(binary.BigEndian.Uint16(cdb[7:9]))
	case scsiwire.OpFormatUnit:
		if cdb[1]&0x10 != 0 { // FmtData bit
			return target.DirOut, 4
		}
		return target.DirNone, 0
	default:
		return target.DirNone, 0
	}
}

// Dispatch implements target.Engine.
func (e *Engine) Dispatch(cdb []byte, st *target.State, bs store.Store, xfer *target.Xfer) target.Result {
	switch cdb[0] {
	case scsiwire.OpTestUnitReady:
		return e.testUnitReady(st, bs)
	case scsiwire.OpInquiry:
		return e.inquiry(st, bs, xfer)
	case scsiwire.OpRequestSense:
		return e.requestSense(st, xfer)
	case scsiwire.OpRead6:
		lba := uint32(cdb[1]&0x1f)<<16 | uint32(cdb[2])<<8 | uint32(cdb[3])
		n := uint32(cdb[4])
		if n == 0 {
			n = 256
		}
		return e.read(st, bs, xfer, lba, n)
	case scsiwire.OpWrite6:
		lba := uint32(cdb[1]&0x1f)<<16 | uint32(cdb[2])<<8 | uint32(cdb[3])
		n := uint32(cdb[4])
		if n == 0 {
			n = 256
		}
		return e.write(st, bs, xfer, lba, n)
	case scsiwire.OpRead10:
		lba := lba32(cdb, 2)
		n := uint32(binary.BigEndian.Uint16(cdb[7:9]))
		return e.read(st, bs, xfer, lba, n)
	case scsiwire.OpWrite10, scsiwire.OpWriteAndVerify10:
		lba := lba32(cdb, 2)
		n := uint32(binary.BigEndian.Uint16(cdb[7:9]))
		return e.write(st, bs, xfer, lba, n)
	case scsiwire.OpReadCapacity10:
		return e.readCapacity(st, bs, cdb, xfer)
	case scsiwire.OpSeek6, scsiwire.OpSeek10, scsiwire.OpRezero:
		return target.Good()
	case scsiwire.OpPrefetch10, scsiwire.OpSynchronizeCache10, scsiwire.OpLockUnlockCache10:
		return target.Good()
	case scsiwire.OpVerify10:
		if cdb[1]&0x02 != 0 { // BYTCHK: this engine only implements the no-data form
			return target.CheckCondition(scsiwire.IllegalRequestInvalidField())
		}
		return target.Good()
	case scsiwire.OpPreventAllowRemoval:
		return target.Good()
	case scsiwire.OpStartStopUnit:
		return e.startStopUnit(st, cdb)
	case scsiwire.OpReadDefectData10:
		xfer.Len = len(xfer.Data)
		binary.BigEndian.PutUint32(xfer.Data[0:], 0) // defect list length 0
		return target.Good()
	case scsiwire.OpFormatUnit:
		return target.Good()
	case scsiwire.OpModeSense6, scsiwire.OpModeSense10:
		return e.modeSense(st, xfer)
	case scsiwire.OpModeSelect6, scsiwire.OpModeSelect10:
		xfer.Len = 0
		return target.Good()
	default:
		return target.CheckCondition(scsiwire.IllegalRequestInvalidField())
	}
}

func (e *Engine) testUnitReady(st *target.State, bs store.Store) target.Result {
	if !st.Started {
		return target.CheckCondition(scsiwire.NotReadyInitCmdRequired())
	}
	if st.Ejected || bs == nil {
		return target.CheckCondition(scsiwire.NotReadyMediumNotPresent())
	}
	return target.Good()
}

func (e *Engine) inquiry(st *target.State, bs store.Store, xfer *target.Xfer) target.Result {
	buf := xfer.Data
	for i := range buf {
		buf[i] = 0
	}
	buf[0] = scsiwire.PeripheralDirectAccess
	buf[2] = 0x02 // ANSI version
	buf[3] = 0x02 // response data format
	buf[4] = byte(len(buf) - 5)
	copy(buf[8:16], []byte("ZULUCORE"))
	copy(buf[16:32], []byte("DISK            "))
	copy(buf[32:36], []byte("1.0 "))
	xfer.Len = len(buf)
	return target.Good()
}

func (e *Engine) requestSense(st *target.State, xfer *target.Xfer) target.Result {
	d := st.ConsumeSense()
	buf := xfer.Data
	for i := range buf {
		buf[i] = 0
	}
	buf[0] = 0x70 // fixed format, current error
	buf[2] = d.Key
	if d.ValidInfo {
		buf[0] |= 0x80
		binary.BigEndian.PutUint32(buf[3:7], d.Info)
	}
	if len(buf) > 7 {
		buf[7] = byte(len(buf) - 8)
	}
	if len(buf) > 13 {
		buf[12] = d.ASC
		buf[13] = d.ASCQ
	}
	xfer.Len = len(buf)
	return target.Good()
}

func (e *Engine) read(st *target.State, bs store.Store, xfer *target.Xfer, lba, n uint32) target.Result {
	if bs == nil || st.Ejected {
		return target.CheckCondition(scsiwire.NotReadyMediumNotPresent())
	}
	ss := int64(st.BytesPerSector)
	want := int64(n) * ss
	if want > int64(len(xfer.Data)) {
		want = int64(len(xfer.Data))
	}
	if err := bs.Seek(int64(lba) * ss); err != nil {
		return target.CheckCondition(mapStoreErr(err))
	}
	got, err := bs.Read(xfer.Data[:want])
	xfer.Len = got
	if err != nil {
		return target.CheckCondition(mapStoreErr(err))
	}
	return target.Good()
}

func (e *Engine) write(st *target.State, bs store.Store, xfer *target.Xfer, lba, n uint32) target.Result {
	if bs == nil || st.Ejected {
		return target.CheckCondition(scsiwire.NotReadyMediumNotPresent())
	}
	if bs.ReadOnly() {
		return target.CheckCondition(scsiwire.IllegalRequestWriteProtected())
	}
	ss := int64(st.BytesPerSector)
	want := int64(n) * ss
	if want > int64(xfer.Len) {
		want = int64(xfer.Len)
	}
	if err := bs.Seek(int64(lba) * ss); err != nil {
		return target.CheckCondition(mapStoreErr(err))
	}
	if _, err := bs.Write(xfer.Data[:want]); err != nil {
		return target.CheckCondition(mapStoreErr(err))
	}
	return target.Good()
}

// readCapacity reports file_size/bytes_per_sector - 1 as the highest LBA
// (§4.6 "Capacity reported"); PMI != 0 with LBA != 0 is rejected.
func (e *Engine) readCapacity(st *target.State, bs store.Store, cdb []byte, xfer *target.Xfer) target.Result {
	pmi := cdb[8]&0x01 != 0
	lbaField := lba32(cdb, 2)
	if pmi && lbaField != 0 {
		return target.CheckCondition(scsiwire.IllegalRequestInvalidField())
	}
	if bs == nil {
		return target.CheckCondition(scsiwire.NotReadyMediumNotPresent())
	}
	ss := st.BytesPerSector
	if ss == 0 {
		ss = 512
	}
	lastLBA := uint32(bs.Size()/int64(ss)) - 1
	binary.BigEndian.PutUint32(xfer.Data[0:4], lastLBA)
	binary.BigEndian.PutUint32(xfer.Data[4:8], ss)
	xfer.Len = 8
	return target.Good()
}

func (e *Engine) startStopUnit(st *target.State, cdb []byte) target.Result {
	start := cdb[4]&0x01 != 0
	eject := cdb[4]&0x02 != 0
	st.Started = start
	if eject {
		st.Ejected = true
		st.RaiseMediaEvent(target.MediaEventRemoval)
	}
	return target.Good()
}

func (e *Engine) modeSense(st *target.State, xfer *target.Xfer) target.Result {
	buf := xfer.Data
	for i := range buf {
		buf[i] = 0
	}
	if len(buf) > 0 {
		buf[0] = byte(len(buf) - 1)
	}
	xfer.Len = len(buf)
	return target.Good()
}

func mapStoreErr(err error) scsiwire.Data {
	switch store.KindOf(err) {
	case store.ErrKindWriteProtected:
		return scsiwire.IllegalRequestWriteProtected()
	case store.ErrKindOutOfRange:
		return scsiwire.IllegalRequestLBAOutOfRange()
	case store.ErrKindNotFound:
		return scsiwire.NotReadyMediumNotPresent()
	default:
		return scsiwire.MediumErrorUnrecoveredRead()
	}
}

// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package tape implements the tape command engine (C6): READ/WRITE 6
// (fixed and variable block), REWIND, SPACE, READ BLOCK LIMITS, READ
// POSITION, WRITE FILEMARKS/VERIFY/ERASE, over a linearized multi-file
// tape image where file boundaries become filemarks.
package tape

import (
	"encoding/binary"

	"github.com/open-source-firmware/scsi-target-core/pkg/scsiwire"
	"github.com/open-source-firmware/scsi-target-core/pkg/store"
	"github.com/open-source-firmware/scsi-target-core/pkg/target"
)

// File is one backing file of a multi-file tape image (§3 "Backing store",
// §4.6 "A tape image is either a single file or a directory whose sorted
// contents are concatenated"). Blocks is the file's length in live
// block-size units, fixed once at open.
type File struct {
	Store  store.Store
	Blocks uint32
}

// Engine holds the concatenated multi-file tape layout. Files must be in
// the sorted order the directory scan produced; a single-file image is
// just a one-element Files.
type Engine struct {
	Files []File
}

func New(files []File) *Engine { return &Engine{Files: files} }

func (e *Engine) totalBlocks() uint32 {
	var n uint32
	for _, f := range e.Files {
		n += f.Blocks
	}
	return n
}

// currentFile returns the index into Files that the tape head is
// positioned in, given the multi-file invariant tape_pos =
// tape_mark_block_offset + file_relative_lba (§4.6).
func (e *Engine) currentFile(st *target.State) (idx int, relLBA uint32) {
	if st.TapeMarkIndex >= len(e.Files) {
		return len(e.Files), 0
	}
	return st.TapeMarkIndex, st.TapePos - st.TapeMarkBlockOffset
}

func (e *Engine) Direction(cdb []byte, st *target.State) (target.Direction, int) {
	switch cdb[0] {
	case scsiwire.OpRead6:
		return target.DirIn, tapeXferSize(cdb, st)
	case scsiwire.OpWrite6Tape:
		return target.DirOut, tapeXferSize(cdb, st)
	case scsiwire.OpReadBlockLimits:
		return target.DirIn, 6
	case scsiwire.OpReadPosition:
		return target.DirIn, 20
	case scsiwire.OpRequestSense:
		return target.DirIn, 18
	case scsiwire.OpInquiry:
		return target.DirIn, 36
	default:
		return target.DirNone, 0
	}
}

func tapeXferSize(cdb []byte, st *target.State) int {
	fixed := cdb[1]&0x01 != 0
	n := int(cdb[2])<<16 | int(cdb[3])<<8 | int(cdb[4])
	if fixed {
		return n * int(st.BytesPerSector)
	}
	return n
}

func (e *Engine) Dispatch(cdb []byte, st *target.State, _ store.Store, xfer *target.Xfer) target.Result {
	switch cdb[0] {
	case scsiwire.OpTestUnitReady:
		if len(e.Files) == 0 {
			return target.CheckCondition(scsiwire.NotReadyMediumNotPresent())
		}
		return target.Good()
	case scsiwire.OpRead6:
		return e.read6(cdb, st, xfer)
	case scsiwire.OpWrite6Tape:
		return e.write6(cdb, st, xfer)
	case scsiwire.OpRewind:
		return e.rewind(st)
	case scsiwire.OpSpace6:
		return e.space(cdb, st)
	case scsiwire.OpReadBlockLimits:
		return e.readBlockLimits(st, xfer)
	case scsiwire.OpReadPosition:
		return e.readPosition(st, xfer)
	case scsiwire.OpWriteFilemarks6, scsiwire.OpVerifyTape, scsiwire.OpErase6:
		return target.Good()
	default:
		return target.CheckCondition(scsiwire.IllegalRequestInvalidField())
	}
}

// read6 implements §4.6 "READ 6": fixed-block mode transfers up to count
// blocks, stopping early at end-of-file with a filemark-sense INFO of
// blocks-not-read; variable-block mode transfers exactly one block and the
// requested length must match the live block size unless SILI suppresses
// the mismatch error.
func (e *Engine) read6(cdb []byte, st *target.State, xfer *target.Xfer) target.Result {
	fixed := cdb[1]&0x01 != 0
	sili := cdb[1]&0x02 != 0
	n := uint32(cdb[2])<<16 | uint32(cdb[3])<<8 | uint32(cdb[4])

	if !fixed {
		if n != st.BytesPerSector && !sili {
			return target.CheckCondition(scsiwire.IllegalRequestInvalidField())
		}
		n = 1
	}

	var transferred uint32
	off := 0
	for transferred < n {
		idx, relLBA := e.currentFile(st)
		if idx >= len(e.Files) {
			return target.CheckCondition(scsiwire.BlankCheckEndOfData())
		}
		f := e.Files[idx]
		if relLBA >= f.Blocks {
			// End of current file: arm next-file switching (§4.6).
			st.TapeMarkIndex++
			st.TapeMarkBlockOffset += f.Blocks
			if transferred > 0 {
				st.Sense = scsiwire.NoSenseFilemark(n - transferred)
				xfer.Len = off
				return target.CheckCondition(st.Sense)
			}
			continue
		}
		ss := int(st.BytesPerSector)
		if err := f.Store.Seek(int64(relLBA) * int64(ss)); err != nil {
			return target.CheckCondition(mapErr(err))
		}
		got, err := f.Store.Read(xfer.Data[off : off+ss])
		if err != nil {
			return target.CheckCondition(mapErr(err))
		}
		off += got
		st.TapePos++
		transferred++
	}
	xfer.Len = off
	return target.Good()
}

func (e *Engine) write6(cdb []byte, st *target.State, xfer *target.Xfer) target.Result {
	idx, relLBA := e.currentFile(st)
	if idx >= len(e.Files) {
		return target.CheckCondition(scsiwire.NotReadyMediumNotPresent())
	}
	f := e.Files[idx]
	if f.Store.ReadOnly() {
		return target.CheckCondition(scsiwire.IllegalRequestWriteProtected())
	}
	ss := int(st.BytesPerSector)
	if err := f.Store.Seek(int64(relLBA) * int64(ss)); err != nil {
		return target.CheckCondition(mapErr(err))
	}
	if _, err := f.Store.Write(xfer.Data[:xfer.Len]); err != nil {
		return target.CheckCondition(mapErr(err))
	}
	st.TapePos++
	return target.Good()
}

// rewind resets tape_pos, filemark index, and base offset (§4.6 REWIND).
func (e *Engine) rewind(st *target.State) target.Result {
	st.TapePos = 0
	st.TapeMarkIndex = 0
	st.TapeMarkBlockOffset = 0
	return target.Good()
}

// space implements §4.6 SPACE: code=0 move N blocks, code=1 move N
// filemarks (stubbed: BLANK CHECK/END OF DATA), code=3 seek to EOD.
func (e *Engine) space(cdb []byte, st *target.State) target.Result {
	code := cdb[1] & 0x07
	n := int32(cdb[2])<<16 | int32(cdb[3])<<8 | int32(cdb[4])
	switch code {
	case 0:
		newPos := int64(st.TapePos) + int64(n)
		if newPos < 0 || newPos > int64(e.totalBlocks()) {
			return target.CheckCondition(scsiwire.BlankCheckEndOfData())
		}
		st.TapePos = uint32(newPos)
		e.resyncFileIndex(st)
		return target.Good()
	case 1:
		return target.CheckCondition(scsiwire.BlankCheckEndOfData())
	case 3:
		st.TapePos = e.totalBlocks()
		e.resyncFileIndex(st)
		return target.Good()
	default:
		return target.CheckCondition(scsiwire.IllegalRequestInvalidField())
	}
}

// resyncFileIndex recomputes TapeMarkIndex/TapeMarkBlockOffset after a
// SPACE jump moved TapePos outside the current file's range.
func (e *Engine) resyncFileIndex(st *target.State) {
	var off uint32
	for i, f := range e.Files {
		if st.TapePos < off+f.Blocks {
			st.TapeMarkIndex = i
			st.TapeMarkBlockOffset = off
			return
		}
		off += f.Blocks
	}
	st.TapeMarkIndex = len(e.Files)
	st.TapeMarkBlockOffset = off
}

func (e *Engine) readBlockLimits(st *target.State, xfer *target.Xfer) target.Result {
	buf := xfer.Data
	for i := range buf {
		buf[i] = 0
	}
	if len(buf) >= 6 {
		ss := st.BytesPerSector
		buf[1], buf[2], buf[3] = byte(ss>>16), byte(ss>>8), byte(ss) // max block length, 3 bytes
		binary.BigEndian.PutUint16(buf[4:6], uint16(ss))             // min block length
	}
	xfer.Len = len(buf)
	return target.Good()
}

// readPosition reports current logical block plus BOP/EOP bits (§4.6).
func (e *Engine) readPosition(st *target.State, xfer *target.Xfer) target.Result {
	buf := xfer.Data
	for i := range buf {
		buf[i] = 0
	}
	if st.TapePos == 0 {
		buf[0] |= 0x80 // BOP
	}
	if st.TapePos >= e.totalBlocks() {
		buf[0] |= 0x40 // EOP
	}
	if len(buf) >= 8 {
		binary.BigEndian.PutUint32(buf[4:8], st.TapePos)
	}
	xfer.Len = len(buf)
	return target.Good()
}

func mapErr(err error) scsiwire.Data {
	switch store.KindOf(err) {
	case store.ErrKindWriteProtected:
		return scsiwire.IllegalRequestWriteProtected()
	case store.ErrKindOutOfRange:
		return scsiwire.BlankCheckEndOfData()
	default:
		return scsiwire.MediumErrorUnrecoveredRead()
	}
}

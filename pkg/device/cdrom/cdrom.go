// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cdrom implements the CD-ROM command engine (C6): everything the
// disk engine already provides, plus READ TOC (subformats 0..3), READ
// HEADER, GET EVENT STATUS NOTIFICATION and tray open/close via START STOP
// UNIT.
package cdrom

import (
	"encoding/binary"

	"github.com/open-source-firmware/scsi-target-core/pkg/device/disk"
	"github.com/open-source-firmware/scsi-target-core/pkg/scsiwire"
	"github.com/open-source-firmware/scsi-target-core/pkg/store"
	"github.com/open-source-firmware/scsi-target-core/pkg/target"
)

// Track describes one entry of a parsed CUE sheet (§4.6 "TOC is built from
// a parsed .cue sheet if the image has one"). A single-track engine with no
// CUE sheet synthesizes one Track spanning the whole image.
type Track struct {
	Number    byte
	Audio     bool
	StartLBA  uint32
}

// Engine layers CD-ROM-specific commands on top of the disk engine's
// READ/WRITE/READ CAPACITY/etc. Tracks describes the session; a nil or
// empty slice falls back to a single synthesized data track covering the
// whole image.
type Engine struct {
	disk   *disk.Engine
	Tracks []Track
}

func New(tracks []Track) *Engine {
	return &Engine{disk: disk.New(), Tracks: tracks}
}

func (e *Engine) tracksOrDefault() []Track {
	if len(e.Tracks) > 0 {
		return e.Tracks
	}
	return []Track{{Number: 1, Audio: false, StartLBA: 0}}
}

func (e *Engine) Direction(cdb []byte, st *target.State) (target.Direction, int) {
	switch cdb[0] {
	case scsiwire.OpReadTOC:
		return target.DirIn, int(binary.BigEndian.Uint16(cdb[7:9]))
	case scsiwire.OpReadHeader:
		return target.DirIn, int(binary.BigEndian.Uint16(cdb[7:9]))
	case scsiwire.OpGetEventStatusNotif:
		return target.DirIn, int(binary.BigEndian.Uint16(cdb[7:9]))
	default:
		return e.disk.Direction(cdb, st)
	}
}

func (e *Engine) Dispatch(cdb []byte, st *target.State, bs store.Store, xfer *target.Xfer) target.Result {
	switch cdb[0] {
	case scsiwire.OpReadTOC:
		return e.readTOC(cdb, bs, xfer)
	case scsiwire.OpReadHeader:
		return e.readHeader(xfer)
	case scsiwire.OpGetEventStatusNotif:
		return e.eventStatusNotification(st, xfer)
	default:
		return e.disk.Dispatch(cdb, st, bs, xfer)
	}
}

// readTOC implements subformats 0 (plain), 1 (multi-session, treated as
// single-session here since this engine has no session concept beyond one
// CUE sheet), and 2/3 (full TOC with synthesized session-boundary records;
// format 3 additionally BCD-encodes the MSF fields), per §4.6.
func (e *Engine) readTOC(cdb []byte, bs store.Store, xfer *target.Xfer) target.Result {
	msf := cdb[1]&0x02 != 0
	format := cdb[2] & 0x0f

	tracks := e.tracksOrDefault()
	leadoutLBA := uint32(0)
	if bs != nil && len(tracks) > 0 {
		ss := uint32(2048)
		leadoutLBA = uint32(bs.Size() / int64(ss))
	}

	var buf []byte
	var first, last byte
	switch format {
	case 0, 1:
		first, last = tracks[0].Number, tracks[len(tracks)-1].Number
		for _, tr := range tracks {
			ctl := byte(scsiwire.TOCControlData)
			if tr.Audio {
				ctl = scsiwire.TOCControlAudio
			}
			d := scsiwire.TOCTrackDescriptor{ADRControl: ctl, Track: tr.Number, MSF: msf, Address: tr.StartLBA}
			buf = append(buf, d.MarshalBinary()...)
		}
		leadout := scsiwire.TOCTrackDescriptor{ADRControl: scsiwire.TOCControlData, Track: scsiwire.TOCLeadoutTrackNumber, MSF: msf, Address: leadoutLBA}
		buf = append(buf, leadout.MarshalBinary()...)
	case 2, 3:
		first, last = 1, 1
		buf = e.fullTOC(tracks, leadoutLBA, format == 3)
	default:
		return target.CheckCondition(scsiwire.IllegalRequestInvalidField())
	}

	hdr := scsiwire.TOCHeader{FirstTrack: first, LastTrack: last}.MarshalBinary(len(buf))
	full := append(hdr, buf...)
	n := copy(xfer.Data, full)
	xfer.Len = n
	return target.Good()
}

// fullTOC synthesizes the A0/A1/A2/B0/C0 session-boundary descriptors
// format 0x02/0x03 require, grounded on ZuluSCSI_cdrom.cpp's doReadFullTOC.
func (e *Engine) fullTOC(tracks []Track, leadoutLBA uint32, bcd bool) []byte {
	enc := func(d scsiwire.TOCTrackDescriptor) []byte {
		raw := d.MarshalBinary()
		if bcd && d.MSF {
			raw[5], raw[6], raw[7] = scsiwire.BCD(raw[5]), scsiwire.BCD(raw[6]), scsiwire.BCD(raw[7])
		}
		return raw
	}

	// pointTrack builds an A0/A1 descriptor whose minute byte carries a
	// track number instead of an MSF time.
	pointTrack := func(point, track byte) []byte {
		raw := scsiwire.TOCTrackDescriptor{ADRControl: scsiwire.TOCControlData, Track: point}.MarshalBinary()
		raw[5] = track
		if bcd {
			raw[5] = scsiwire.BCD(track)
		}
		return raw
	}

	var out []byte
	firstTrack, lastTrack := tracks[0].Number, tracks[len(tracks)-1].Number

	// A0: first track number, disc type in the track-number-like field is
	// left zero (CD-DA/CD-ROM mode 1 is the only mode this engine models).
	out = append(out, pointTrack(0xa0, firstTrack)...)
	// A1: last track number.
	out = append(out, pointTrack(0xa1, lastTrack)...)
	// A2: leadout start address.
	out = append(out, enc(scsiwire.TOCTrackDescriptor{ADRControl: scsiwire.TOCControlData, Track: 0xa2, MSF: true, Address: leadoutLBA})...)
	for _, tr := range tracks {
		ctl := byte(scsiwire.TOCControlData)
		if tr.Audio {
			ctl = scsiwire.TOCControlAudio
		}
		out = append(out, enc(scsiwire.TOCTrackDescriptor{ADRControl: ctl, Track: tr.Number, MSF: true, Address: tr.StartLBA})...)
	}
	// B0: maximum start time of the outer program area (CD-R/RW specific,
	// reported here as the leadout position for a fixed, non-writable
	// image) and C0: first lead-in/ATIP values, encoded from address 0
	// since this engine models neither a writable disc nor ATIP.
	const pointCtl = 0x54 // ADR=5, CONTROL=4, per the P/Q sub-channel encoding these two points use
	out = append(out, enc(scsiwire.TOCTrackDescriptor{ADRControl: pointCtl, Track: 0xb0, MSF: true, Address: leadoutLBA})...)
	out = append(out, enc(scsiwire.TOCTrackDescriptor{ADRControl: pointCtl, Track: 0xc0, MSF: true, Address: 0})...)
	return out
}

func (e *Engine) readHeader(xfer *target.Xfer) target.Result {
	buf := xfer.Data
	for i := range buf {
		buf[i] = 0
	}
	if len(buf) >= 8 {
		buf[0] = 0x01 // CD-ROM mode 1 data track
	}
	xfer.Len = len(buf)
	return target.Good()
}

// eventStatusNotification reports the queued media event, consumed once
// per §3 "Target runtime state".
func (e *Engine) eventStatusNotification(st *target.State, xfer *target.Xfer) target.Result {
	buf := xfer.Data
	for i := range buf {
		buf[i] = 0
	}
	ev := st.ConsumeMediaEvent()
	if len(buf) >= 4 {
		buf[2] = 0x04 // media event class
		buf[3] = ev.Code()
	}
	if len(buf) >= 2 {
		binary.BigEndian.PutUint16(buf[0:2], 2)
	}
	xfer.Len = len(buf)
	return target.Good()
}

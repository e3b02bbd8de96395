// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scsiwire

import "encoding/binary"

// ADR/CONTROL nibble pairs used by READ TOC track descriptors (§4.6
// CD-ROM engine): 0x10 for audio tracks, 0x14 for data tracks.
const (
	TOCControlAudio = 0x10
	TOCControlData  = 0x14

	TOCLeadoutTrackNumber = 0xaa
)

// TOCTrackDescriptor is one 8-byte entry of the READ TOC response, laid out
// exactly per the MMC binary format named in §6: reserved, ADR/CTRL,
// track#, reserved, 4-byte address (MSF big-endian zero-padded high byte,
// or LBA big-endian).
type TOCTrackDescriptor struct {
	ADRControl byte
	Track      byte
	MSF        bool
	Address    uint32 // LBA; converted to MSF on MarshalBinary when MSF is set
}

// MarshalBinary renders the 8-byte descriptor.
func (t TOCTrackDescriptor) MarshalBinary() []byte {
	b := make([]byte, 8)
	b[1] = t.ADRControl
	b[2] = t.Track
	if t.MSF {
		m, s, f := LBAToMSF(t.Address)
		b[4] = 0
		b[5] = m
		b[6] = s
		b[7] = f
	} else {
		binary.BigEndian.PutUint32(b[4:8], t.Address)
	}
	return b
}

// TOCHeader is the 4-byte header preceding the track descriptors: total
// data length (not counting itself), first track, last track.
type TOCHeader struct {
	FirstTrack byte
	LastTrack  byte
}

// MarshalBinary renders the header given the total descriptor bytes that
// follow it, so DataLength = 2 + len(descriptors).
func (h TOCHeader) MarshalBinary(descriptorBytes int) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint16(b[0:2], uint16(2+descriptorBytes))
	b[2] = h.FirstTrack
	b[3] = h.LastTrack
	return b
}

// secondsPerMinute/framesPerSecond/lbaMSFOffset are the CD-DA addressing
// constants used to convert between LBA and MSF (minute/second/frame).
const (
	framesPerSecond = 75
	secondsPerMinute = 60
	lbaMSFOffset     = 150 // 2-second pregap, per Red Book
)

// LBAToMSF converts a logical block address to minute/second/frame.
func LBAToMSF(lba uint32) (m, s, f byte) {
	lba += lbaMSFOffset
	f = byte(lba % framesPerSecond)
	lba /= framesPerSecond
	s = byte(lba % secondsPerMinute)
	m = byte(lba / secondsPerMinute)
	return m, s, f
}

// BCD converts a binary byte in [0,99] to packed BCD, used by READ TOC
// full-TOC format 0x03 (§4.6: "format 0x03 requires BCD conversion of MSF
// fields").
func BCD(v byte) byte {
	return (v/10)<<4 | (v % 10)
}

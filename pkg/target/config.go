// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package target implements the target-side phase sequencer and command
// dispatcher (C5): the main loop that answers selection, reads a CDB,
// hands it to the device engine set on the selected target, and
// returns STATUS + MESSAGE IN before releasing the bus.
package target

import "github.com/open-source-firmware/scsi-target-core/pkg/scsiwire"

// DeviceKind enumerates the SCSI peripheral device types a target slot may
// be configured as (§3 "Per-target configuration").
type DeviceKind int

const (
	KindFixed DeviceKind = iota
	KindRemovable
	KindOptical
	KindFloppy
	KindMagnetoOptical
	KindTape
	KindSequential
	KindNetwork
)

func (k DeviceKind) String() string {
	switch k {
	case KindFixed:
		return "fixed"
	case KindRemovable:
		return "removable"
	case KindOptical:
		return "optical"
	case KindFloppy:
		return "floppy"
	case KindMagnetoOptical:
		return "magneto-optical"
	case KindTape:
		return "tape"
	case KindSequential:
		return "sequential"
	case KindNetwork:
		return "network"
	default:
		return "unknown"
	}
}

// Quirk is a vendor compatibility mode a target may need to advertise
// (§3 "quirks-enum").
type Quirk int

const (
	QuirkNone Quirk = iota
	QuirkApple
	QuirkOMTI
	QuirkOMTILike
)

// Config is a target slot's static configuration, loaded once from the
// config file at power-up and held for the target's lifetime (§3
// "Lifecycle").
type Config struct {
	ID   int
	LUN  int
	Kind DeviceKind

	SectorsPerTrack  uint16
	HeadsPerCylinder uint16

	// INQUIRY strings as configured; InquiryStrings pads them with 0x20 to
	// their fixed widths (vendor<=8, product<=16, revision<=4, serial<=8)
	// per §3.
	Vendor, Product, Revision, Serial string
	RightAlignStrings                bool

	SectorSize    uint32
	Quirk         Quirk
	PrefetchBytes uint32

	VolumeMask, ChannelMask uint8
	EjectButtonMask         byte
	ReinsertCDOnInquiry     bool

	// ImagePaths holds one or more backing-store specs for removable/
	// optical targets, in configured order. This package has no function
	// that switches a target from one image to the next.
	ImagePaths []string
}

// padField left- or right-pads s with 0x20 to width bytes, per §3's
// INQUIRY string rule.
func padField(s string, width int, rightAlign bool) string {
	if len(s) > width {
		s = s[:width]
	}
	pad := width - len(s)
	if pad <= 0 {
		return s
	}
	spaces := make([]byte, pad)
	for i := range spaces {
		spaces[i] = ' '
	}
	if rightAlign {
		return string(spaces) + s
	}
	return s + string(spaces)
}

// InquiryStrings returns the vendor/product/revision/serial fields padded
// to their SCSI-mandated widths.
func (c Config) InquiryStrings() (vendor, product, revision, serial string) {
	return padField(c.Vendor, 8, c.RightAlignStrings),
		padField(c.Product, 16, c.RightAlignStrings),
		padField(c.Revision, 4, c.RightAlignStrings),
		padField(c.Serial, 8, c.RightAlignStrings)
}

// PeripheralDeviceType maps a DeviceKind to the INQUIRY byte 0 value (§4.6,
// GLOSSARY).
func (k DeviceKind) PeripheralDeviceType() byte {
	switch k {
	case KindOptical:
		return scsiwire.PeripheralCDROM
	case KindTape, KindSequential:
		return scsiwire.PeripheralSequential
	case KindMagnetoOptical:
		return scsiwire.PeripheralOptical
	default:
		return scsiwire.PeripheralDirectAccess
	}
}

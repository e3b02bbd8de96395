// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package phy

import (
	"errors"

	"github.com/open-source-firmware/scsi-target-core/pkg/scsiwire"
)

// ErrBusReset is returned from WriteByte/ReadByte and EnterPhase when a
// reset condition was observed mid-operation.
var ErrBusReset = errors.New("phy: bus reset asserted")

// SelectionEvent reports the data-bus pattern and ATN state latched when a
// target's BSY line dropped while SEL was held active (I6).
type SelectionEvent struct {
	InitiatorID int
	TargetID    int
	ATN         bool
}

// Bus abstracts the electrical SCSI bus down to the handful of operations
// the target and initiator cores need: drive/sample individual control
// lines, move through phase settle delays, and run the REQ/ACK byte
// handshake. Implementations translate logical active-high semantics to
// whatever polarity the real wire uses.
type Bus interface {
	Out(pin Signal, active bool)
	In(pin Signal) bool

	// EnterPhase drives C/D, I/O, MSG for the given phase and waits out the
	// bus-settle delay before the first REQ may legally assert.
	EnterPhase(p scsiwire.Phase) error

	// WriteByte drives the data bus (plus DBP) and runs one REQ/ACK
	// handshake cycle as the phase's source side.
	WriteByte(v byte) error

	// ReadByte samples the data bus (plus DBP) and runs one REQ/ACK
	// handshake cycle as the phase's destination side. parityErr reports a
	// DBP mismatch detected by the PHY's parity.Decode call.
	ReadByte() (v byte, parityErr bool, err error)

	// OnSelection registers a callback fired each time this end observes a
	// selection latch (I6). Passing nil clears the callback.
	OnSelection(cb func(SelectionEvent))

	// OnReset registers a callback fired each time a filtered reset pulse
	// (§4.3) is observed. Passing nil clears the callback.
	OnReset(cb func())
}

// NullBus is a Bus that drives nothing and reads all lines as inactive. It
// stands in for a real GPIO backend, which is out of scope for this
// module: board bring-up owns wiring the physical pins.
type NullBus struct{}

func (NullBus) Out(Signal, bool)                {}
func (NullBus) In(Signal) bool                  { return false }
func (NullBus) EnterPhase(scsiwire.Phase) error { return nil }
func (NullBus) WriteByte(byte) error            { return nil }
func (NullBus) ReadByte() (byte, bool, error)   { return 0, false, nil }
func (NullBus) OnSelection(func(SelectionEvent)) {}
func (NullBus) OnReset(func())                  {}

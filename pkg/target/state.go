// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package target

import "github.com/open-source-firmware/scsi-target-core/pkg/scsiwire"

// MediaEvent is the 2-bit media-event queue a removable/optical target
// reports via GET EVENT STATUS NOTIFICATION (§3 "Target runtime state").
type MediaEvent int

const (
	MediaEventNone     MediaEvent = iota
	MediaEventNewMedia            // 0x02
	MediaEventRemoval             // 0x03
)

// Code returns the wire value GET EVENT STATUS NOTIFICATION reports.
func (e MediaEvent) Code() byte {
	switch e {
	case MediaEventNewMedia:
		return 0x02
	case MediaEventRemoval:
		return 0x03
	default:
		return 0x00
	}
}

// State is a target's mutable runtime state (§3 "Target runtime state"),
// separate from Config so reconfiguration-on-reset never clobbers identity
// fields a command handler cached mid-command.
type State struct {
	Started bool
	Ejected bool

	MediaEvent MediaEvent
	eventConsumed bool

	Sense scsiwire.Data

	// UnitAttention is true once after a reset or media change, until the
	// first non-INQUIRY/REQUEST-SENSE command consumes it (§4.5).
	UnitAttention bool

	Phase scsiwire.Phase

	ReservationOwner int // -1 if unreserved

	SyncOffset   int
	SyncPeriodNS int64

	BytesPerSector uint32 // live value; may diverge from Config.SectorSize after MODE SELECT

	TapePos             uint32
	TapeMarkIndex       int
	TapeMarkBlockOffset uint32
}

// NewState builds the post-power-up runtime state for a target that starts
// in the given state.
func NewState(sectorSize uint32, startedByDefault bool) *State {
	return &State{
		Started:          startedByDefault,
		ReservationOwner: -1,
		Phase:            scsiwire.BusFree,
		BytesPerSector:   sectorSize,
		UnitAttention:    true, // power-on counts as a reset for UA purposes (P6)
	}
}

// PostSense records sense data for the next REQUEST SENSE to consume
// (§4.5 "Sense propagation").
func (s *State) PostSense(d scsiwire.Data) {
	s.Sense = d
}

// ConsumeSense clears and returns the pending sense, as REQUEST SENSE does.
func (s *State) ConsumeSense() scsiwire.Data {
	d := s.Sense
	s.Sense = scsiwire.None
	return d
}

// ConsumeMediaEvent returns the queued media event exactly once; later
// calls report none until a new event is raised.
func (s *State) ConsumeMediaEvent() MediaEvent {
	if s.eventConsumed {
		return MediaEventNone
	}
	s.eventConsumed = true
	return s.MediaEvent
}

// RaiseMediaEvent queues a fresh media event, re-arming ConsumeMediaEvent.
func (s *State) RaiseMediaEvent(e MediaEvent) {
	s.MediaEvent = e
	s.eventConsumed = false
}

// Reset restores post-reset runtime state per §6 "RST handling": started
// flag returns to its configured default, a unit-attention condition is
// queued, sync negotiation clears.
func (s *State) Reset(startedByDefault bool) {
	s.Started = startedByDefault
	s.SyncOffset = 0
	s.SyncPeriodNS = 0
	s.Phase = scsiwire.BusFree
	s.UnitAttention = true
}

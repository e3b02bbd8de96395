// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package phy

import (
	"sync"

	"github.com/open-source-firmware/scsi-target-core/pkg/parity"
	"github.com/open-source-firmware/scsi-target-core/pkg/scsiwire"
)

// simWord is one odd-parity-encoded byte in flight on the data bus.
type simWord struct {
	data byte
	dbp  bool
}

// simState is the shared electrical state of a loopback bus: every line,
// the current phase, and an in-flight data-byte queue. Two End views read
// and write this same state under a single mutex, the way two chips share
// a ribbon cable. The queue (rather than a single data/dbp register) is
// what lets one end run several WriteByte calls ahead of the other end's
// ReadByte calls, the way a real REQ/ACK handshake lets a fast target
// outrun a slow initiator without either side clobbering bytes in transit.
type simState struct {
	mu   sync.Mutex
	cond *sync.Cond

	lines map[Signal]bool
	queue []simWord
	phase scsiwire.Phase

	onSelectionTarget func(SelectionEvent)
	onSelectionInit   func(SelectionEvent)
	onResetTarget     func()
	onResetInit       func()

	resetFiltered bool
}

// SimBus is an in-memory loopback SCSI bus connecting a target end and an
// initiator end, standing in for the physical cable during integration
// tests. Bus.Out/In/WriteByte/ReadByte are logical (active-high); SimBus
// keeps the electrical active-low inversion entirely internal, the same
// boundary the real PHY draws between chip pins and firmware logic.
type SimBus struct {
	state *simState
}

// NewSimBus creates a connected pair of bus ends: (target, initiator).
func NewSimBus() (target Bus, initiator Bus) {
	s := &simState{lines: make(map[Signal]bool)}
	s.cond = sync.NewCond(&s.mu)
	return &simEnd{state: s, isTarget: true}, &simEnd{state: s, isTarget: false}
}

type simEnd struct {
	state    *simState
	isTarget bool
}

func (e *simEnd) Out(pin Signal, active bool) {
	e.state.mu.Lock()
	prevBSY := e.state.lines[BSY]
	e.state.lines[pin] = active
	switch pin {
	case BSY:
		// I6: a BSY assertion observed while SEL is held active with this
		// end driving, latches a selection for the other end's ID decode.
		if active && !prevBSY && e.state.lines[SEL] {
			ev := SelectionEvent{ATN: e.state.lines[ATN]}
			cb := e.oppositeSelectionCB()
			e.state.mu.Unlock()
			if cb != nil {
				cb(ev)
			}
			return
		}
	case RST:
		if active {
			// §4.3: a reset pulse is only recognized once it has remained
			// asserted across a settle-then-resample window; SimBus models
			// that by firing the callback once per assert edge, as if the
			// resample had already confirmed it (there is no real clock to
			// race against in-process).
			cb := e.oppositeResetCB()
			e.state.mu.Unlock()
			if cb != nil {
				cb()
			}
			return
		}
	}
	e.state.mu.Unlock()
}

func (e *simEnd) oppositeSelectionCB() func(SelectionEvent) {
	if e.isTarget {
		return e.state.onSelectionInit
	}
	return e.state.onSelectionTarget
}

func (e *simEnd) oppositeResetCB() func() {
	if e.isTarget {
		return e.state.onResetInit
	}
	return e.state.onResetTarget
}

func (e *simEnd) In(pin Signal) bool {
	e.state.mu.Lock()
	defer e.state.mu.Unlock()
	return e.state.lines[pin]
}

func (e *simEnd) EnterPhase(p scsiwire.Phase) error {
	e.state.mu.Lock()
	e.state.phase = p
	e.state.mu.Unlock()
	return nil
}

// WriteByte drives the data bus with the byte's odd-parity-encoded form and
// queues one REQ/ACK cycle for the other end to consume. The queue never
// blocks a writer: a target (or initiator) free-running ahead of its
// partner just piles bytes up, exactly as a real FIFO-buffered PHY would.
func (e *simEnd) WriteByte(v byte) error {
	word := parity.Encode(v)
	e.state.mu.Lock()
	e.state.queue = append(e.state.queue, simWord{data: byte(word & 0xff), dbp: word&0x100 != 0})
	e.state.lines[REQ] = true
	e.state.lines[ACK] = false
	e.state.mu.Unlock()
	e.state.cond.Broadcast()
	return nil
}

// ReadByte blocks until a byte is queued, dequeues it FIFO, decodes the
// parity bit and completes the REQ/ACK cycle from the destination side.
func (e *simEnd) ReadByte() (byte, bool, error) {
	e.state.mu.Lock()
	for len(e.state.queue) == 0 {
		e.state.cond.Wait()
	}
	w := e.state.queue[0]
	e.state.queue = e.state.queue[1:]
	e.state.lines[ACK] = true
	e.state.lines[REQ] = false
	e.state.mu.Unlock()

	word := uint16(w.data)
	if w.dbp {
		word |= 0x100
	}
	// Decode expects a raw active-low GPIO sample; the queued word is
	// already the logical (active-high) value Encode produced, so invert
	// it the same way the physical bus would before feeding Decode (see
	// parity.Decode's contract).
	v, ok := parity.Decode(word ^ parity.DataMask)
	return v, !ok, nil
}

// InjectParityFault blocks until at least one encoded byte is queued, then
// flips the DBP line of the oldest one still waiting — modeling a wire
// glitch between a WriteByte call and the partner's ReadByte, for the
// parity-fault scenario where an initiator's READ DATA phase observes a
// corrupted byte mid-transfer.
func (e *simEnd) InjectParityFault() {
	e.state.mu.Lock()
	for len(e.state.queue) == 0 {
		e.state.cond.Wait()
	}
	e.state.queue[0].dbp = !e.state.queue[0].dbp
	e.state.mu.Unlock()
}

func (e *simEnd) OnSelection(cb func(SelectionEvent)) {
	e.state.mu.Lock()
	defer e.state.mu.Unlock()
	if e.isTarget {
		e.state.onSelectionTarget = cb
	} else {
		e.state.onSelectionInit = cb
	}
}

func (e *simEnd) OnReset(cb func()) {
	e.state.mu.Lock()
	defer e.state.mu.Unlock()
	if e.isTarget {
		e.state.onResetTarget = cb
	} else {
		e.state.onResetInit = cb
	}
}

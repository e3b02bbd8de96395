// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package accel implements the SCSI accelerator (C4): block-oriented data
// transfer layered over pkg/phy's byte handshake, with combine/enqueue
// semantics so higher layers can stream SD-card-sized chunks without
// flushing between them, a record of the negotiated synchronous
// offset/period (transfers are not paced by it), and a completion path modeled as a goroutine standing in for a second CPU
// core.
//
// Grounded on the periph.io DMA-ring shape found in the retrieval pack: a
// small fixed set of buffers handed between a producer and a completion
// callback, guarded by a single mutex rather than real IRQ masking since
// there is no interrupt to mask here.
package accel

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/open-source-firmware/scsi-target-core/pkg/parity"
	"github.com/open-source-firmware/scsi-target-core/pkg/phy"
	"github.com/sirupsen/logrus"
)

// pinState is the C4 pin-ownership state machine (§4.4 "Pin
// reconfiguration"): the data GPIOs move between SIO and PIO, and between
// input and output, and direction must be set before the previous owner
// is released.
type pinState int

const (
	pinIdle pinState = iota
	pinWriting
	pinReading
)

// request is one in-flight or queued transfer. addr is the byte address of
// data[0] within the caller's application buffer; it is how StartWrite
// detects that a new request is contiguous with the tail of the running
// one (§4.4 "Enqueue / combine").
type request struct {
	addr int64
	data []byte
	pos  int // bytes of data already drained onto the bus
}

func (r *request) end() int64 { return r.addr + int64(len(r.data)) }

// Engine is one target's accelerator instance: a bus plus the double
// buffering, combine/enqueue and synchronous-pacing state built on top of
// it.
type Engine struct {
	bus phy.Bus
	log *logrus.Entry

	mu      sync.Mutex
	pins    pinState
	active  *request
	queued  *request
	waiters []chan struct{} // callers blocked by a third overlapping start_write

	syncOffset int
	syncPeriod int64 // nanoseconds

	parityErr bool

	secondCore bool
	completion chan struct{}
}

// New creates an accelerator bound to bus, logging through log. The
// completion path runs on its own goroutine only when more than one CPU is
// available to the runtime, matching §4.4's "claimed by the second core if
// one exists."
func New(bus phy.Bus, log *logrus.Entry) *Engine {
	e := &Engine{
		bus:        bus,
		log:        log,
		completion: make(chan struct{}, 1),
		secondCore: runtime.NumCPU() > 1,
	}
	if e.secondCore {
		go e.completionLoop()
	}
	return e
}

func (e *Engine) completionLoop() {
	for range e.completion {
		e.mu.Lock()
		e.drainLocked()
		e.mu.Unlock()
	}
}

// StartWrite begins (or extends, or queues) an outbound transfer of data,
// whose first byte lives at addr in the caller's application buffer.
//
// §4.4 "Enqueue / combine": if addr is contiguous with the tail of the
// running request it extends that request in place (P4); otherwise it
// queues exactly one follow-on. A third overlapping call blocks until the
// running request finishes.
func (e *Engine) StartWrite(addr int64, data []byte) error {
	e.mu.Lock()
	switch {
	case e.active != nil && addr == e.active.end():
		e.active.data = append(e.active.data, data...)
		e.mu.Unlock()
		e.pumpAsync()
		return nil
	case e.active == nil:
		e.active = &request{addr: addr, data: append([]byte(nil), data...)}
		e.pins = pinWriting
		e.mu.Unlock()
		e.pumpAsync()
		return nil
	case e.queued == nil:
		e.queued = &request{addr: addr, data: append([]byte(nil), data...)}
		e.mu.Unlock()
		return nil
	default:
		wait := make(chan struct{})
		e.waiters = append(e.waiters, wait)
		e.mu.Unlock()
		<-wait
		return e.StartWrite(addr, data)
	}
}

// pumpAsync drains the active request onto the bus one byte at a time,
// encoding odd parity via pkg/parity through the bus's WriteByte, then
// signals completion so any second-core goroutine (or the caller itself,
// with no second core) can promote the queued request.
func (e *Engine) pumpAsync() {
	e.mu.Lock()
	req := e.active
	e.mu.Unlock()
	if req == nil {
		return
	}
	for {
		e.mu.Lock()
		if req.pos >= len(req.data) {
			e.mu.Unlock()
			break
		}
		b := req.data[req.pos]
		e.mu.Unlock()

		if err := e.bus.WriteByte(b); err != nil {
			e.log.WithError(err).Warn("accel: write byte failed")
			break
		}

		e.mu.Lock()
		req.pos++
		e.mu.Unlock()
	}
	if e.secondCore {
		select {
		case e.completion <- struct{}{}:
		default:
		}
		return
	}
	e.mu.Lock()
	e.drainLocked()
	e.mu.Unlock()
}

// drainLocked retires a finished active request and promotes the queued
// one, waking exactly one blocked third-overlap caller. Must be called
// with e.mu held; this is the only place foreground and completion code
// touch shared state, and foreground never calls into this path while
// already holding the lock from pumpAsync, so no reentrant locking is
// ever required.
func (e *Engine) drainLocked() {
	if e.active == nil || e.active.pos < len(e.active.data) {
		return
	}
	e.active = e.queued
	e.queued = nil
	e.pins = pinIdle
	if e.active != nil {
		e.pins = pinWriting
	}
	if len(e.waiters) > 0 {
		w := e.waiters[0]
		e.waiters = e.waiters[1:]
		close(w)
	}
}

// IsWriteFinished reports whether ptr is no longer referenced by either
// the active or queued transfer. A nil ptr asks "are all writes drained".
func (e *Engine) IsWriteFinished(ptr *byte) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ptr == nil {
		return e.active == nil && e.queued == nil
	}
	for _, r := range []*request{e.active, e.queued} {
		if r == nil {
			continue
		}
		if sameBacking(r.data, ptr) {
			return false
		}
	}
	return true
}

func sameBacking(buf []byte, ptr *byte) bool {
	if len(buf) == 0 {
		return false
	}
	return &buf[0] == ptr
}

// SetSync records the synchronous offset (unacknowledged bytes allowed
// outstanding) and period in nanoseconds; offset == 0 means asynchronous
// mode. The values are reported back by Synchronous; pumpAsync does not
// consult them, so every transfer still runs one byte at a time through
// the bus's WriteByte with no offset window or period pacing.
func (e *Engine) SetSync(offset int, periodNanos int64) error {
	if offset < 0 {
		return fmt.Errorf("accel: negative sync offset %d", offset)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.syncOffset = offset
	e.syncPeriod = periodNanos
	return nil
}

func (e *Engine) Synchronous() (offset int, periodNanos int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.syncOffset, e.syncPeriod
}

// Read pulls count bytes off the bus, accumulating odd parity across the
// whole transfer (§4.4 "Read"): any accumulated mismatch sets the
// accelerator's parity-error flag, read back through ParityError, and
// makes Read return an error alongside the bytes.
func (e *Engine) Read(count int) ([]byte, error) {
	e.mu.Lock()
	e.pins = pinReading
	e.mu.Unlock()

	out := make([]byte, count)
	var accumOK = true
	for i := 0; i < count; i++ {
		v, parityErr, err := e.bus.ReadByte()
		if err != nil {
			return out[:i], err
		}
		if parityErr {
			accumOK = false
		}
		out[i] = v
	}

	e.mu.Lock()
	e.parityErr = !accumOK
	e.pins = pinIdle
	e.mu.Unlock()

	if !accumOK {
		return out, fmt.Errorf("accel: parity error detected over %d-byte read", count)
	}
	return out, nil
}

// ParityError reports and clears the accumulated parity-error flag from
// the most recent Read.
func (e *Engine) ParityError() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	v := e.parityErr
	e.parityErr = false
	return v
}

// EncodeByte exposes the parity-encode step standalone, for callers that
// need to precompute a buffer's 9-bit words before handing them to the bus
// directly instead of through StartWrite.
func EncodeByte(b byte) uint16 { return parity.Encode(b) }

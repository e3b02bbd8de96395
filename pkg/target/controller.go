// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package target

import (
	"context"
	"fmt"

	"github.com/open-source-firmware/scsi-target-core/pkg/phy"
	"github.com/open-source-firmware/scsi-target-core/pkg/scsiwire"
	"github.com/open-source-firmware/scsi-target-core/pkg/store"
	"github.com/sirupsen/logrus"
)

// Target bundles one target slot's identity, live state, backing store and
// command engine — everything C5 needs to answer a selection and dispatch
// a CDB (§3 "Ownership": the Target Core owns this for the target's
// lifetime).
type Target struct {
	Config Config
	State  *State
	Store  store.Store
	Engine Engine
}

// Controller is the target-side phase sequencer (C5): it polls a phy.Bus
// for selection, reads CDBs, and dispatches them to the selected Target's
// Engine field. Up to 8 targets (§3) share one bus,
// matching a single parallel-SCSI cable with multiple target IDs.
type Controller struct {
	bus     phy.Bus
	targets [8]*Target
	log     *logrus.Entry

	resetFlag bool
	selected  *phy.SelectionEvent
}

// NewController creates a phase sequencer driving bus, logging through
// log. Call Attach for each configured target before Run.
func NewController(bus phy.Bus, log *logrus.Entry) *Controller {
	c := &Controller{bus: bus, log: log}
	bus.OnSelection(func(ev phy.SelectionEvent) {
		c.selected = &ev
	})
	bus.OnReset(func() {
		c.resetFlag = true
	})
	return c
}

// Attach installs a configured target at id (0-7), replacing whatever was
// there before.
func (c *Controller) Attach(id int, t *Target) error {
	if id < 0 || id > 7 {
		return fmt.Errorf("target: id %d out of range [0,7]", id)
	}
	c.targets[id] = t
	return nil
}

func (c *Controller) Target(id int) *Target {
	if id < 0 || id > 7 {
		return nil
	}
	return c.targets[id]
}

// Run pumps Step in a loop until ctx is canceled.
func (c *Controller) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		c.Step()
	}
}

// Step runs one iteration of the main loop (§4.5): service a pending
// reset, poll for selection, and if selected, read and dispatch exactly
// one CDB before returning to BUS FREE.
func (c *Controller) Step() {
	if c.resetFlag {
		c.handleReset()
		return
	}
	if c.selected == nil {
		return
	}
	ev := *c.selected
	c.selected = nil

	tgt := c.targets[ev.TargetID]
	if tgt == nil {
		c.log.WithField("target", ev.TargetID).Warn("selection of unconfigured target")
		return
	}
	c.serviceOne(tgt)
}

// handleReset restores every attached target to its post-reset state
// (§4.5 "reinit, enter BUS_FREE"; P6).
func (c *Controller) handleReset() {
	c.resetFlag = false
	for _, t := range c.targets {
		if t == nil {
			continue
		}
		t.State.Reset(t.Config.ReinsertCDOnInquiry || t.State.Started)
	}
	_ = c.bus.EnterPhase(scsiwire.BusFree)
}

func (c *Controller) serviceOne(t *Target) {
	log := c.log.WithField("target", t.Config.ID)

	if err := c.bus.EnterPhase(scsiwire.Command); err != nil {
		log.WithError(err).Warn("enter COMMAND failed")
		return
	}

	opcode, parityErr, err := c.bus.ReadByte()
	if err != nil {
		log.WithError(err).Warn("read opcode failed")
		return
	}
	cdbLen := scsiwire.CDBLen(opcode)
	cdb := make([]byte, cdbLen)
	cdb[0] = opcode
	for i := 1; i < cdbLen; i++ {
		b, pe, err := c.bus.ReadByte()
		if err != nil {
			log.WithError(err).Warn("read CDB byte failed")
			return
		}
		parityErr = parityErr || pe
		cdb[i] = b
	}

	result := c.dispatch(t, cdb, parityErr)

	if err := c.bus.EnterPhase(scsiwire.Status); err != nil {
		log.WithError(err).Warn("enter STATUS failed")
		return
	}
	if err := c.bus.WriteByte(result.Status); err != nil {
		log.WithError(err).Warn("write status failed")
		return
	}

	if err := c.bus.EnterPhase(scsiwire.MessageIn); err != nil {
		log.WithError(err).Warn("enter MESSAGE IN failed")
		return
	}
	const msgCommandComplete = 0x00
	if err := c.bus.WriteByte(msgCommandComplete); err != nil {
		log.WithError(err).Warn("write COMMAND COMPLETE failed")
		return
	}

	_ = c.bus.EnterPhase(scsiwire.BusFree)
	t.State.Phase = scsiwire.BusFree
}

// dispatch enforces sense/unit-attention propagation (§4.5) around the
// engine's own per-CDB logic, then runs the DATA phase the engine asked
// for.
func (c *Controller) dispatch(t *Target, cdb []byte, parityErr bool) Result {
	if parityErr {
		res := CheckCondition(scsiwire.AbortedCommandParityError())
		t.State.PostSense(res.Sense)
		return res
	}

	opcode := cdb[0]
	if t.State.UnitAttention && opcode != scsiwire.OpInquiry && opcode != scsiwire.OpRequestSense {
		t.State.UnitAttention = false
		res := CheckCondition(scsiwire.UnitAttentionPowerOn())
		t.State.PostSense(res.Sense)
		return res
	}

	if t.Engine == nil {
		res := CheckCondition(scsiwire.IllegalRequestInvalidField())
		t.State.PostSense(res.Sense)
		return res
	}

	dir, size := t.Engine.Direction(cdb, t.State)
	xfer := &Xfer{Direction: dir}
	if size > 0 {
		xfer.Data = make([]byte, size)
	}

	if dir == DirOut && size > 0 {
		if err := c.bus.EnterPhase(scsiwire.DataOut); err != nil {
			c.log.WithError(err).Warn("enter DATA OUT failed")
		}
		for i := 0; i < size; i++ {
			b, pe, err := c.bus.ReadByte()
			if err != nil {
				break
			}
			if pe {
				res := CheckCondition(scsiwire.AbortedCommandParityError())
				t.State.PostSense(res.Sense)
				return res
			}
			xfer.Data[i] = b
		}
		xfer.Len = size
	}

	result := t.Engine.Dispatch(cdb, t.State, t.Store, xfer)

	if dir == DirIn && xfer.Len > 0 {
		if err := c.bus.EnterPhase(scsiwire.DataIn); err != nil {
			c.log.WithError(err).Warn("enter DATA IN failed")
		}
		for i := 0; i < xfer.Len; i++ {
			if err := c.bus.WriteByte(xfer.Data[i]); err != nil {
				break
			}
		}
	}

	if result.Sense.IsError() {
		t.State.PostSense(result.Sense)
	}
	return result
}

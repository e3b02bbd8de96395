// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package target

import (
	"github.com/open-source-firmware/scsi-target-core/pkg/scsiwire"
	"github.com/open-source-firmware/scsi-target-core/pkg/store"
)

// Xfer carries one command's data-phase payload between the Target Core
// and a device engine: engines fill Data for DATA IN, or read it back out
// after DATA OUT, and report how much of it is actually meaningful.
type Xfer struct {
	Data      []byte
	Direction Direction
	Len       int // bytes the engine actually produced/consumed
}

// Direction is the data-phase direction a CDB implies, decided by the
// engine before the Target Core enters DATA IN/OUT.
type Direction int

const (
	DirNone Direction = iota
	DirIn
	DirOut
)

// Result is what a device engine hands back to the phase sequencer after
// dispatching one CDB.
type Result struct {
	Status byte
	Sense  scsiwire.Data
}

// Good is the common case: GOOD status, no sense to post.
func Good() Result { return Result{Status: scsiwire.StatusGood} }

// CheckCondition posts sense and reports CHECK CONDITION status.
func CheckCondition(d scsiwire.Data) Result {
	return Result{Status: scsiwire.StatusCheckCondition, Sense: d}
}

// Engine is the command-set-specific logic layered on the Target Core and
// the backing store (§4.6): one implementation per DeviceKind, stored in
// each Target's Engine field by whoever builds the Target; the Controller
// calls that field directly and keeps no registry keyed by kind.
type Engine interface {
	// Direction reports the data-phase direction the CDB implies, so the
	// Target Core knows whether to enter DATA IN or DATA OUT (or skip the
	// data phase) before calling Dispatch, and how large a buffer to
	// allocate. st is consulted read-only for the live sector size.
	Direction(cdb []byte, st *State) (Direction, int)

	// Dispatch executes one CDB against store for target st, reading xfer
	// on DirOut or filling it on DirIn.
	Dispatch(cdb []byte, st *State, bs store.Store, xfer *Xfer) Result
}

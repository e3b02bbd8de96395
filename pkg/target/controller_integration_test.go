// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package target_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/open-source-firmware/scsi-target-core/pkg/device/disk"
	"github.com/open-source-firmware/scsi-target-core/pkg/phy"
	"github.com/open-source-firmware/scsi-target-core/pkg/scsiwire"
	"github.com/open-source-firmware/scsi-target-core/pkg/store"
	"github.com/open-source-firmware/scsi-target-core/pkg/target"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func openIntegrationStore(t *testing.T, sectors int, sectorSize int) store.Store {
	path := filepath.Join(t.TempDir(), "disk.img")
	require.NoError(t, os.WriteFile(path, make([]byte, sectors*sectorSize), 0o644))
	s, err := store.Open(path, uint32(sectorSize), false)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// selectTarget drives the initiator side of the arbitration/selection
// handshake (I6) synchronously, before the Controller's Step goroutine
// starts, so the selection callback's write to the Controller's selected
// field always happens-before that goroutine's first read of it.
func selectTarget(initiator phy.Bus) {
	initiator.Out(phy.ATN, false)
	initiator.Out(phy.SEL, true)
	initiator.Out(phy.BSY, true)
}

func newIntegrationController(t *testing.T, bs store.Store) (*target.Controller, phy.Bus) {
	targetEnd, initiatorEnd := phy.NewSimBus()
	log := logrus.NewEntry(logrus.New())
	ctrl := target.NewController(targetEnd, log)

	st := target.NewState(512, true)
	st.UnitAttention = false
	tgt := &target.Target{
		Config: target.Config{ID: 0, Kind: target.KindFixed, SectorSize: 512},
		State:  st,
		Store:  bs,
		Engine: disk.New(),
	}
	require.NoError(t, ctrl.Attach(0, tgt))
	return ctrl, initiatorEnd
}

// readStatusAndMessage drains STATUS and MESSAGE IN the way a real
// initiator would after any data phase, returning the status byte.
func readStatusAndMessage(t *testing.T, initiator phy.Bus) byte {
	t.Helper()
	status, parityErr, err := initiator.ReadByte()
	require.NoError(t, err)
	require.False(t, parityErr)

	msg, parityErr, err := initiator.ReadByte()
	require.NoError(t, err)
	require.False(t, parityErr)
	require.Equal(t, byte(0x00), msg) // COMMAND COMPLETE

	return status
}

// Scenario 3 + scenario 1: selection latch followed by a real Controller
// driving a real disk.Engine through a SimBus end to end — COMMAND, DATA
// IN, STATUS, MESSAGE IN — exercising the exact phase sequencing
// serviceOne implements rather than calling the engine directly.
func TestControllerServicesRead6OverSimBus(t *testing.T) {
	bs := openIntegrationStore(t, 4, 512)
	want := make([]byte, 512)
	for i := range want {
		want[i] = byte(i)
	}
	require.NoError(t, bs.Seek(0))
	_, err := bs.Write(want)
	require.NoError(t, err)

	ctrl, initiator := newIntegrationController(t, bs)
	selectTarget(initiator)

	done := make(chan struct{})
	go func() {
		defer close(done)
		ctrl.Step()
	}()

	cdb := []byte{scsiwire.OpRead6, 0x00, 0x00, 0x00, 0x01, 0x00} // LBA 0, 1 block
	for _, b := range cdb {
		require.NoError(t, initiator.WriteByte(b))
	}

	got := make([]byte, 512)
	for i := range got {
		v, parityErr, err := initiator.ReadByte()
		require.NoError(t, err)
		require.False(t, parityErr)
		got[i] = v
	}
	require.Equal(t, want, got)

	status := readStatusAndMessage(t, initiator)
	require.Equal(t, scsiwire.StatusGood, status)
	<-done
}

// Scenario 4: a data byte whose DBP line is inverted mid-transfer, during
// a READ DATA (DATA IN) phase, is reported to the initiator's ReadByte as
// a parity error — the initiator, not the target, is the side that
// detects it, since the target only ever drives what it believes is a
// clean encode.
func TestControllerDataInParityFaultReportedOnInitiatorRead(t *testing.T) {
	bs := openIntegrationStore(t, 4, 512)
	ctrl, initiator := newIntegrationController(t, bs)
	selectTarget(initiator)

	done := make(chan struct{})
	go func() {
		defer close(done)
		ctrl.Step()
	}()

	cdb := []byte{scsiwire.OpRead6, 0x00, 0x00, 0x00, 0x01, 0x00} // LBA 0, 1 block
	for _, b := range cdb {
		require.NoError(t, initiator.WriteByte(b))
	}

	injector, ok := initiator.(interface{ InjectParityFault() })
	require.True(t, ok, "SimBus end must support parity-fault injection")
	injector.InjectParityFault()

	_, parityErr, err := initiator.ReadByte()
	require.NoError(t, err)
	require.True(t, parityErr)

	for i := 1; i < 512; i++ {
		_, _, err := initiator.ReadByte()
		require.NoError(t, err)
	}
	readStatusAndMessage(t, initiator)
	<-done
}

// Scenario 3 (unit-ready form): a selection followed by TEST UNIT READY
// completes with GOOD status and the Controller returns to BUS FREE, ready
// for the next selection, without needing a DATA phase at all.
func TestControllerSelectionLatchServicesTestUnitReady(t *testing.T) {
	bs := openIntegrationStore(t, 4, 512)
	ctrl, initiator := newIntegrationController(t, bs)
	selectTarget(initiator)

	done := make(chan struct{})
	go func() {
		defer close(done)
		ctrl.Step()
	}()

	cdb := []byte{scsiwire.OpTestUnitReady, 0, 0, 0, 0, 0}
	for _, b := range cdb {
		require.NoError(t, initiator.WriteByte(b))
	}
	status := readStatusAndMessage(t, initiator)
	require.Equal(t, scsiwire.StatusGood, status)
	<-done

	require.Equal(t, scsiwire.BusFree, ctrl.Target(0).State.Phase)
}

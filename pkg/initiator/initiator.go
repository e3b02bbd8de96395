// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package initiator implements the initiator core (C7): CDB issue and data
// receipt against a remote SCSI target, used for drive cloning; selection
// and arbitration are left to the transport. It drives the DriveIntf transport from
// pkg/initiator/sgdev (or any equivalent), keeping the wire-level SG_IO
// plumbing separate from this retry/recovery and streaming logic.
package initiator

import (
	"fmt"
	"io"
	"time"

	"github.com/open-source-firmware/scsi-target-core/pkg/initiator/sgdev"
	"github.com/open-source-firmware/scsi-target-core/pkg/initiator/sgdev/sgio"
	"github.com/sirupsen/logrus"
)

// SCSI-1 fallback assumptions used when READ CAPACITY fails (§4.7 step 3).
const (
	fallbackBlockSize  = 512
	fallbackSectors    = 1 << 21
	fallbackMaxSectors = 128
)

// Device wraps a remote target's transport with the initiator core's
// retry/recovery policy.
type Device struct {
	drive sgdev.DriveIntf
	log   *logrus.Entry
}

func New(drive sgdev.DriveIntf, log *logrus.Entry) *Device {
	return &Device{drive: drive, log: log}
}

// TestUnitReady retries on UNIT ATTENTION, issuing INQUIRY as the recovery
// probe per §4.7 step 1 ("issues INQUIRY or START STOP UNIT as recovery per
// SENSE key").
func (d *Device) TestUnitReady(maxRetries int) error {
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		err := d.drive.TestUnitReady()
		if err == nil {
			return nil
		}
		lastErr = err
		if !sgio.IsUnitAttention(err) {
			return err
		}
		if _, ierr := d.drive.Identify(); ierr != nil {
			d.log.WithError(ierr).Debug("recovery INQUIRY failed during unit-attention retry")
		}
	}
	return fmt.Errorf("initiator: test unit ready: giving up after %d retries: %w", maxRetries, lastErr)
}

// Inquiry returns the 36-byte INQUIRY response's parsed identity (§4.7
// step 2).
func (d *Device) Inquiry() (*sgdev.Identity, error) {
	return d.drive.Identify()
}

// Capacity reports the device's last LBA and block size, falling back to
// SCSI-1 assumptions when READ CAPACITY(10) fails (§4.7 step 3).
type Capacity struct {
	LastLBA        uint32
	BlockSize      uint32
	MaxXferSectors int
	Fallback       bool
}

func (d *Device) ReadCapacity() (Capacity, error) {
	lastLBA, blockSize, err := d.drive.ReadCapacity()
	if err != nil {
		d.log.WithError(err).Debug("READ CAPACITY failed, assuming SCSI-1 geometry")
		return Capacity{
			LastLBA:        fallbackSectors - 1,
			BlockSize:      fallbackBlockSize,
			MaxXferSectors: fallbackMaxSectors,
			Fallback:       true,
		}, nil
	}
	return Capacity{LastLBA: lastLBA, BlockSize: blockSize, MaxXferSectors: 0}, nil
}

// sectorJob is one unit of pipelined work: read sector range [start,
// start+count) into buf, then hand it off to the writer stage.
type sectorJob struct {
	start uint32
	count uint32
	buf   []byte
}

// Clone streams sectors [start, start+n) from the device to w, sector_size
// bytes at a time, running the SCSI read and the destination write
// concurrently over a bounded pipeline (§4.7 step 4: "SCSI fills the
// application buffer while SD drains preceding bytes"), retrying a failing
// window up to 5 times before falling back to single-sector retry.
func (d *Device) Clone(start, n uint32, sectorSize uint32, w io.Writer) error {
	const chunkSectors = 64
	const pipelineDepth = 2

	jobs := make(chan sectorJob, pipelineDepth)
	results := make(chan error, 2) // one slot each for the read and write stages, so neither blocks on a non-nil send

	go func() {
		defer close(jobs)
		for off := uint32(0); off < n; off += chunkSectors {
			count := uint32(chunkSectors)
			if off+count > n {
				count = n - off
			}
			buf, err := d.readWithRetry(start+off, count, sectorSize)
			if err != nil {
				results <- err
				return
			}
			jobs <- sectorJob{start: start + off, count: count, buf: buf}
		}
	}()

	go func() {
		for job := range jobs {
			if _, err := w.Write(job.buf); err != nil {
				results <- fmt.Errorf("initiator: clone write at sector %d: %w", job.start, err)
				return
			}
		}
		results <- nil
	}()

	return <-results
}

// readWithRetry reads count sectors starting at start, retrying up to 5
// times at full-window granularity, then falling back to single-sector
// retry for the failing window (§4.7 step 4).
func (d *Device) readWithRetry(start, count, sectorSize uint32) ([]byte, error) {
	buf := make([]byte, int(count)*int(sectorSize))

	var lastErr error
	for attempt := 0; attempt < 5; attempt++ {
		if err := d.readSectors(start, count, sectorSize, buf); err == nil {
			return buf, nil
		} else {
			lastErr = err
			time.Sleep(time.Millisecond) // brief backoff between whole-window retries
		}
	}

	d.log.WithError(lastErr).WithField("start", start).Warn("window retry exhausted, falling back to single-sector retry")
	for i := uint32(0); i < count; i++ {
		sub := buf[int(i)*int(sectorSize) : int(i+1)*int(sectorSize)]
		if err := d.readSectors(start+i, 1, sectorSize, sub); err != nil {
			return nil, fmt.Errorf("initiator: unrecoverable read at sector %d: %w", start+i, err)
		}
	}
	return buf, nil
}

// readSectors issues one READ(10) for count sectors into dst via raw CDB
// send, since sgdev.DriveIntf only exposes the fixed operations used by
// discovery; streaming reads go through SendCDB directly.
func (d *Device) readSectors(start, count, sectorSize uint32, dst []byte) error {
	cdb := []byte{
		0x28, 0x00,
		byte(start >> 24), byte(start >> 16), byte(start >> 8), byte(start),
		0x00,
		byte(count >> 8), byte(count),
		0x00,
	}
	return d.drive.SendCDB(cdb, true, &dst)
}

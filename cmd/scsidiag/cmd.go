// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/davecgh/go-spew/spew"
	"github.com/sirupsen/logrus"

	"github.com/open-source-firmware/scsi-target-core/internal/metrics"
	"github.com/open-source-firmware/scsi-target-core/pkg/initiator"
	"github.com/open-source-firmware/scsi-target-core/pkg/initiator/sgdev"
)

type probeCmd struct {
	Devices []string `arg:"" help:"SG device nodes to probe (e.g. /dev/sg0)"`
	Output  string   `enum:"table,json,openmetrics" default:"table" help:"Output format"`
	Verbose bool     `short:"v" help:"Dump the parsed identity with go-spew"`
}

type cloneCmd struct {
	Device     string `arg:"" type:"accessiblefile" help:"SG device node to read from"`
	Out        string `arg:"" help:"Destination file path, or - for stdout"`
	Start      uint32 `default:"0" help:"First LBA to clone"`
	Count      uint32 `required:"" help:"Number of sectors to clone"`
	SectorSize uint32 `default:"512" help:"Sector size in bytes, overridden by READ CAPACITY when it succeeds"`
}

var cli struct {
	Probe probeCmd `cmd:"" help:"Query one or more SCSI targets for identity, readiness and capacity"`
	Clone cloneCmd `cmd:"" help:"Stream a device's sectors to a file"`
}

// deviceReport is one probed device's collected state.
type deviceReport struct {
	Device   string
	Ready    bool
	ReadyErr string `json:",omitempty"`

	Identity *sgdev.Identity     `json:",omitempty"`
	Capacity *initiator.Capacity `json:",omitempty"`
}

func newLog() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.InfoLevel)
	return logrus.NewEntry(l)
}

// Run executes when the probe command is invoked.
func (c *probeCmd) Run(ctx *context) error {
	var reports []deviceReport
	for _, devpath := range c.Devices {
		drive, err := sgdev.Open(devpath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "sgdev.Open(%s): %v\n", devpath, err)
			continue
		}
		dev := initiator.New(drive, newLog())

		rep := deviceReport{Device: devpath}
		if err := dev.TestUnitReady(3); err != nil {
			rep.ReadyErr = err.Error()
		} else {
			rep.Ready = true
		}

		if id, err := dev.Inquiry(); err == nil {
			rep.Identity = id
		} else {
			fmt.Fprintf(os.Stderr, "Inquiry(%s): %v\n", devpath, err)
		}

		if cap, err := dev.ReadCapacity(); err == nil {
			rep.Capacity = &cap
		} else {
			fmt.Fprintf(os.Stderr, "ReadCapacity(%s): %v\n", devpath, err)
		}

		drive.Close()
		reports = append(reports, rep)

		if c.Verbose {
			spew.Dump(rep)
		}
	}

	switch c.Output {
	case "json":
		return outputJSON(reports)
	case "openmetrics":
		return outputMetrics(reports)
	default:
		outputTable(reports)
		return nil
	}
}

func outputJSON(reports []deviceReport) error {
	b, err := json.MarshalIndent(reports, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal reports: %w", err)
	}
	os.Stdout.Write(b)
	fmt.Println()
	return nil
}

func outputTable(reports []deviceReport) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintf(w, "DEVICE\tREADY\tMODEL\tLAST LBA\tBLOCK SIZE\n")
	for _, r := range reports {
		model := "-"
		if r.Identity != nil {
			model = r.Identity.String()
		}
		lastLBA, blockSize := "-", "-"
		if r.Capacity != nil {
			lastLBA = fmt.Sprintf("%d", r.Capacity.LastLBA)
			blockSize = fmt.Sprintf("%d", r.Capacity.BlockSize)
		}
		ready := "yes"
		if !r.Ready {
			ready = "no (" + r.ReadyErr + ")"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.Device, ready, model, lastLBA, blockSize)
	}
	w.Flush()
}

// outputMetrics reports each probed device's readiness as a sense-key
// gauge (1 when the device is not ready, 0 otherwise) through the
// internal/metrics collector.
func outputMetrics(reports []deviceReport) error {
	snapshots := make([]metrics.Snapshot, 0, len(reports))
	for _, r := range reports {
		senseKey := float64(0)
		if !r.Ready {
			senseKey = 1
		}
		snapshots = append(snapshots, metrics.Snapshot{
			Target:   r.Device,
			SenseKey: senseKey,
		})
	}
	return metrics.WriteText(os.Stdout, snapshots)
}

// Run executes when the clone command is invoked.
func (c *cloneCmd) Run(ctx *context) error {
	drive, err := sgdev.Open(c.Device)
	if err != nil {
		return fmt.Errorf("clone: sgdev.Open(%s): %w", c.Device, err)
	}
	defer drive.Close()

	dev := initiator.New(drive, newLog())

	sectorSize := c.SectorSize
	if cap, err := dev.ReadCapacity(); err == nil && !cap.Fallback {
		sectorSize = cap.BlockSize
	}

	var out *os.File
	if c.Out == "-" {
		out = os.Stdout
	} else {
		out, err = os.Create(c.Out)
		if err != nil {
			return fmt.Errorf("clone: create %s: %w", c.Out, err)
		}
		defer out.Close()
	}

	if err := dev.Clone(c.Start, c.Count, sectorSize, out); err != nil {
		return fmt.Errorf("clone: %w", err)
	}
	return nil
}

// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/davecgh/go-spew/spew"

	"github.com/open-source-firmware/scsi-target-core/pkg/config"
)

type validateCmd struct {
	Config string `arg:"" type:"accessiblefile" help:"Path to the INI configuration file"`
	Dump   bool   `help:"Dump the fully parsed configuration with go-spew"`
}

type listImagesCmd struct {
	Config string `arg:"" type:"accessiblefile" help:"Path to the INI configuration file"`
}

var cli struct {
	Validate   validateCmd   `cmd:"" help:"Load a configuration file and report per-target problems"`
	ListImages listImagesCmd `cmd:"" help:"List image files discovered under the configured Dir entries"`
}

// Run executes when the validate command is invoked.
func (c *validateCmd) Run(ctx *context) error {
	f, err := config.Load(c.Config)
	if err != nil {
		return fmt.Errorf("validate: %w", err)
	}

	if c.Dump {
		spew.Dump(f)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\tLUN\tKIND\tVENDOR\tPRODUCT\tIMAGES\n")
	present := 0
	for id, t := range f.Targets {
		if !t.Present {
			continue
		}
		present++
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%d\n", id, 0, t.DeviceKind(), t.Vendor, t.Product, len(t.Images))
	}
	w.Flush()
	if present == 0 {
		fmt.Println("No [SCSIn] sections configured; targets will be populated entirely by image auto-discovery.")
	}
	fmt.Printf("Image directories: %v\n", f.Global.Dirs)
	return nil
}

// Run executes when the list-images command is invoked.
func (c *listImagesCmd) Run(ctx *context) error {
	f, err := config.Load(c.Config)
	if err != nil {
		return fmt.Errorf("list-images: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "FILE\tKIND\tSECTOR SIZE\tTARGET ID\tLUN\n")
	for _, dir := range f.Global.Dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "skipping %s: %v\n", dir, err)
			continue
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			kind, sectorSize, id, lun, ok := config.ClassifyImageName(e.Name())
			if !ok {
				continue
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\n", filepath.Join(dir, e.Name()), kind, sectorSize, id, lun)
		}
	}
	w.Flush()
	return nil
}

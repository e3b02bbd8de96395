// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config loads the INI configuration file (§6 "Configuration
// file"): a global [SCSI] section plus one [SCSIn] section per target
// (n = 0..7), and implements image-filename auto-discovery.
package config

import (
	"fmt"
	"strings"

	"github.com/open-source-firmware/scsi-target-core/pkg/target"
	"gopkg.in/ini.v1"
)

// System presets set a bundle of target/bus defaults by name (§6 "System"
// key); "" is the no-preset default.
type System string

const (
	SystemDefault System = ""
	SystemMac     System = "Mac"
	SystemMacPlus System = "MacPlus"
	SystemMPC3000 System = "MPC3000"
)

// Global is the [SCSI] section's parsed settings.
type Global struct {
	Dirs []string // Dir, Dir1..Dir9

	InitiatorID int // default 7

	Debug   bool
	LogMask uint8

	EnableUnitAttention bool
	EnableSCSI2         bool
	EnableSelLatch      bool
	MapLunsToIDs        bool
	EnableParity        bool

	MaxSyncSpeed   int // MB/s
	SelectionDelay int // microseconds
	InitPreDelay   int
	InitPostDelay  int
	PhyMode        string

	System System
}

// TargetOverride is one [SCSIn] section's parsed settings, applied on top
// of whatever System preset and auto-discovery already produced.
type TargetOverride struct {
	Present bool

	Type         string // disk|removable|optical|floppy|mo|tape|sequential|network
	TypeModifier string

	SectorsPerTrack  uint16
	HeadsPerCylinder uint16
	Quirks           string

	Vendor, Product, Version, Serial string
	PrefetchBytes                    uint32
	RightAlignStrings                bool
	ReinsertCDOnInquiry              bool

	Images []string // IMG0..IMG9, in order
}

// File is the fully parsed configuration.
type File struct {
	Global  Global
	Targets [8]TargetOverride
}

// applySystemPreset fills in the bus-behavior defaults a named System
// bundles together (§6 "Each sets a defaults bundle (quirks,
// selection-delay, SCSI-2 enable, selection latch)"). EnableSCSI2 and
// EnableSelLatch are always set by the preset, replacing any value the file
// gave them; SelectionDelay is filled in only when it is still zero.
func applySystemPreset(g *Global) {
	switch g.System {
	case SystemMac:
		g.EnableSCSI2 = true
		g.EnableSelLatch = true
		if g.SelectionDelay == 0 {
			g.SelectionDelay = 0
		}
	case SystemMacPlus:
		g.EnableSCSI2 = false
		g.EnableSelLatch = true
		if g.SelectionDelay == 0 {
			g.SelectionDelay = 250
		}
	case SystemMPC3000:
		g.EnableSCSI2 = false
		g.EnableSelLatch = false
		if g.SelectionDelay == 0 {
			g.SelectionDelay = 0
		}
	}
}

// Load parses an INI file at path into a File.
func Load(path string) (*File, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("config: load %s: %w", path, err)
	}
	return parse(cfg)
}

func parse(cfg *ini.File) (*File, error) {
	f := &File{}
	if sec, err := cfg.GetSection("SCSI"); err == nil {
		f.Global = parseGlobal(sec)
	} else {
		f.Global.InitiatorID = 7
	}
	applySystemPreset(&f.Global)

	for id := 0; id < 8; id++ {
		sec, err := cfg.GetSection(fmt.Sprintf("SCSI%d", id))
		if err != nil {
			continue
		}
		f.Targets[id] = parseTargetOverride(sec)
	}
	return f, nil
}

func parseGlobal(sec *ini.Section) Global {
	g := Global{InitiatorID: 7}
	var dirs []string
	if sec.HasKey("Dir") {
		dirs = append(dirs, sec.Key("Dir").String())
	}
	for i := 1; i <= 9; i++ {
		key := fmt.Sprintf("Dir%d", i)
		if sec.HasKey(key) {
			dirs = append(dirs, sec.Key(key).String())
		}
	}
	g.Dirs = dirs

	g.InitiatorID = sec.Key("InitiatorID").MustInt(7)
	g.Debug = sec.Key("Debug").MustBool(false)
	g.LogMask = uint8(sec.Key("LogMask").MustInt(0xff))
	g.EnableUnitAttention = sec.Key("EnableUnitAttention").MustBool(true)
	g.EnableSCSI2 = sec.Key("EnableSCSI2").MustBool(true)
	g.EnableSelLatch = sec.Key("EnableSelLatch").MustBool(true)
	g.MapLunsToIDs = sec.Key("MapLunsToIDs").MustBool(false)
	g.EnableParity = sec.Key("EnableParity").MustBool(true)
	g.MaxSyncSpeed = sec.Key("MaxSyncSpeed").MustInt(10)
	g.SelectionDelay = sec.Key("SelectionDelay").MustInt(0)
	g.InitPreDelay = sec.Key("InitPreDelay").MustInt(0)
	g.InitPostDelay = sec.Key("InitPostDelay").MustInt(0)
	g.PhyMode = sec.Key("PhyMode").String()
	g.System = System(sec.Key("System").String())
	return g
}

func parseTargetOverride(sec *ini.Section) TargetOverride {
	t := TargetOverride{Present: true}
	t.Type = sec.Key("Type").String()
	t.TypeModifier = sec.Key("TypeModifier").String()
	t.SectorsPerTrack = uint16(sec.Key("SectorsPerTrack").MustInt(0))
	t.HeadsPerCylinder = uint16(sec.Key("HeadsPerCylinder").MustInt(0))
	t.Quirks = sec.Key("Quirks").String()
	t.Vendor = sec.Key("Vendor").String()
	t.Product = sec.Key("Product").String()
	t.Version = sec.Key("Version").String()
	t.Serial = sec.Key("Serial").String()
	t.PrefetchBytes = uint32(sec.Key("PrefetchBytes").MustInt(0))
	t.RightAlignStrings = sec.Key("RightAlignStrings").MustBool(false)
	t.ReinsertCDOnInquiry = sec.Key("ReinsertCDOnInquiry").MustBool(false)

	var imgs []string
	for i := 0; i <= 9; i++ {
		key := fmt.Sprintf("IMG%d", i)
		if sec.HasKey(key) {
			imgs = append(imgs, sec.Key(key).String())
		}
	}
	t.Images = imgs
	return t
}

// DeviceKind maps the parsed Type string to target.DeviceKind.
func (t TargetOverride) DeviceKind() target.DeviceKind {
	switch strings.ToLower(t.Type) {
	case "removable":
		return target.KindRemovable
	case "optical", "cdrom":
		return target.KindOptical
	case "floppy":
		return target.KindFloppy
	case "mo", "magneto-optical":
		return target.KindMagnetoOptical
	case "tape":
		return target.KindTape
	case "sequential":
		return target.KindSequential
	case "network":
		return target.KindNetwork
	default:
		return target.KindFixed
	}
}

var compressedExtensions = []string{".zip", ".gz", ".7z", ".rar", ".bz2", ".xz"}

// ClassifyImageName implements §6 "Image filenames auto-discovered":
// pattern HD<id>[<lun>][_<blk>].<ext> selects disk type; a leading "CD"
// forces optical+2048B; a leading "FD" forces floppy. Known compressed
// extensions are rejected so the caller can skip them with a log message.
func ClassifyImageName(name string) (kind target.DeviceKind, sectorSize uint32, id, lun int, ok bool) {
	base := name
	if dot := strings.LastIndex(base, "."); dot >= 0 {
		ext := strings.ToLower(base[dot:])
		for _, c := range compressedExtensions {
			if ext == c {
				return 0, 0, 0, 0, false
			}
		}
		base = base[:dot]
	}

	var prefix string
	switch {
	case strings.HasPrefix(base, "CD"):
		prefix, kind, sectorSize = "CD", target.KindOptical, 2048
	case strings.HasPrefix(base, "FD"):
		prefix, kind, sectorSize = "FD", target.KindFloppy, 512
	case strings.HasPrefix(base, "HD"):
		prefix, kind, sectorSize = "HD", target.KindFixed, 512
	default:
		return 0, 0, 0, 0, false
	}
	rest := base[len(prefix):]

	if blk := strings.Index(rest, "_"); blk >= 0 {
		var blkSize int
		if _, err := fmt.Sscanf(rest[blk+1:], "%d", &blkSize); err == nil && blkSize > 0 {
			sectorSize = uint32(blkSize)
		}
		rest = rest[:blk]
	}

	if rest == "" {
		return 0, 0, 0, 0, false
	}
	id = int(rest[0] - '0')
	if id < 0 || id > 7 {
		return 0, 0, 0, 0, false
	}
	lun = 0
	if len(rest) > 1 {
		lun = int(rest[1] - '0')
		if lun < 0 || lun > 9 {
			lun = 0
		}
	}
	return kind, sectorSize, id, lun, true
}

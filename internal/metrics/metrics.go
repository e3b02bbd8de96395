// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package metrics collects accelerator throughput, backing-store error
// counts, and per-target sense state into a prometheus registry, grounded
// on the teacher's cmd/tcgdiskstat metric-collector pattern: a static
// slice of const metrics gathered into a pedantic registry and serialized
// with expfmt.
package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

var (
	descBytesTransferred = prometheus.NewDesc(
		"scsi_target_bytes_transferred_total",
		"Bytes transferred by the accelerator, by target and direction",
		[]string{"target", "direction"}, nil,
	)
	descParityErrors = prometheus.NewDesc(
		"scsi_target_parity_errors_total",
		"Parity errors detected on accelerator reads, by target",
		[]string{"target"}, nil,
	)
	descStoreErrors = prometheus.NewDesc(
		"scsi_target_store_errors_total",
		"Backing-store I/O errors, by target and error kind",
		[]string{"target", "kind"}, nil,
	)
	descSenseKey = prometheus.NewDesc(
		"scsi_target_sense_key",
		"Most recent pending SENSE key for a target (0 if none)",
		[]string{"target"}, nil,
	)
)

// Snapshot is the set of counters one report cycle contributes.
type Snapshot struct {
	Target          string
	BytesIn         float64
	BytesOut        float64
	ParityErrors    float64
	StoreErrorsByKind map[string]float64
	SenseKey        float64
}

type collector struct {
	snapshots []Snapshot
}

func (c *collector) Describe(ch chan<- *prometheus.Desc) {}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
	for _, s := range c.snapshots {
		ch <- prometheus.MustNewConstMetric(descBytesTransferred, prometheus.CounterValue, s.BytesIn, s.Target, "in")
		ch <- prometheus.MustNewConstMetric(descBytesTransferred, prometheus.CounterValue, s.BytesOut, s.Target, "out")
		ch <- prometheus.MustNewConstMetric(descParityErrors, prometheus.CounterValue, s.ParityErrors, s.Target)
		ch <- prometheus.MustNewConstMetric(descSenseKey, prometheus.GaugeValue, s.SenseKey, s.Target)
		for kind, v := range s.StoreErrorsByKind {
			ch <- prometheus.MustNewConstMetric(descStoreErrors, prometheus.CounterValue, v, s.Target, kind)
		}
	}
}

// WriteText gathers snapshots into a pedantic registry and serializes them
// as Prometheus text exposition format to w, the same shape cmd/scsidiag
// uses for its --output=openmetrics mode.
func WriteText(w io.Writer, snapshots []Snapshot) error {
	reg := prometheus.NewPedanticRegistry()
	if err := reg.Register(&collector{snapshots: snapshots}); err != nil {
		return err
	}
	mfs, err := reg.Gather()
	if err != nil {
		return err
	}
	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

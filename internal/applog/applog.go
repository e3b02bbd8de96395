// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package applog wraps a logrus.Logger with the two persisted-state sinks
// named in §6: a bounded ring-buffer writer standing in for the rolling
// zululog.txt, and a crash-dump writer capturing the last fatal record in
// place of zuluerr.txt. Debug-level gating follows the Debug/LogMask
// config keys.
package applog

import (
	"bytes"
	"sync"

	"github.com/sirupsen/logrus"
)

// RingBuffer is a bounded io.Writer that keeps only the most recent
// capacity bytes, exposing a monotonically increasing write position so a
// reader can detect wrap and skip stale bytes (§5 "a monotonically
// increasing write position lets readers detect wrap").
type RingBuffer struct {
	mu       sync.Mutex
	buf      []byte
	capacity int
	writePos int64
}

func NewRingBuffer(capacity int) *RingBuffer {
	return &RingBuffer{buf: make([]byte, 0, capacity), capacity: capacity}
}

func (r *RingBuffer) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writePos += int64(len(p))
	r.buf = append(r.buf, p...)
	if over := len(r.buf) - r.capacity; over > 0 {
		r.buf = r.buf[over:]
	}
	return len(p), nil
}

// Snapshot returns the currently retained bytes and the write position at
// the moment of the call.
func (r *RingBuffer) Snapshot() ([]byte, int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]byte, len(r.buf))
	copy(out, r.buf)
	return out, r.writePos
}

// CrashWriter retains only the most recent Fatal/Panic-level record,
// standing in for zuluerr.txt.
type CrashWriter struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (c *CrashWriter) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buf.Reset()
	c.buf.Write(p)
	return len(p), nil
}

func (c *CrashWriter) Snapshot() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

// crashHook fires CrashWriter only for Fatal/Panic-level entries, leaving
// the ring buffer as the catch-all sink for every level logrus permits.
type crashHook struct {
	w *CrashWriter
}

func (h *crashHook) Levels() []logrus.Level {
	return []logrus.Level{logrus.PanicLevel, logrus.FatalLevel}
}

func (h *crashHook) Fire(e *logrus.Entry) error {
	line, err := e.Logger.Formatter.Format(e)
	if err != nil {
		return err
	}
	_, err = h.w.Write(line)
	return err
}

// New builds a logrus.Logger writing to ring (always) with crash acting as
// a Fatal/Panic-only hook, gated to Debug level when debug is true.
func New(ring *RingBuffer, crash *CrashWriter, debug bool) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(ring)
	l.SetLevel(logrus.InfoLevel)
	if debug {
		l.SetLevel(logrus.DebugLevel)
	}
	l.AddHook(&crashHook{w: crash})
	return l
}

// LogMask gates per-target log output by id (§6 "LogMask"): bit i enables
// logging for target i.
type LogMask uint8

func (m LogMask) Enabled(targetID int) bool {
	if targetID < 0 || targetID > 7 {
		return false
	}
	return m&(1<<uint(targetID)) != 0
}

// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package store implements the backing store abstraction (C2): a uniform
// byte-addressable read/write/seek interface over a filesystem image, a raw
// SD sector range, or a flash ROM region. Per the Design Notes in §9 ("Do
// not virtualize per I/O; match once at open and store a specialized
// reader"), Open picks exactly one concrete implementation and callers
// never re-dispatch on kind afterwards.
package store

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ErrorKind is the taxonomy every failure path is mapped into (§4.2 "Error
// policy"), letting pkg/target map storage failures to SENSE without
// string-matching error text.
type ErrorKind int

const (
	ErrKindNone ErrorKind = iota
	ErrKindNotFound
	ErrKindIO
	ErrKindWriteProtected
	ErrKindOutOfRange
	ErrKindUnsupportedBlockSize
)

type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store: %s", e.Op)
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the ErrorKind from err, defaulting to ErrKindIO for any
// error this package didn't originate (e.g. an unexpected OS error).
func KindOf(err error) ErrorKind {
	if err == nil {
		return ErrKindNone
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ErrKindIO
}

const sdSectorSize = 512

// Store is the sum type of §3's backing-store variants.
type Store interface {
	io.Closer
	// Seek repositions the byte offset for the next Read/Write. Offsets
	// that are not a multiple of 512 silently downgrade a RAW/ROM store
	// to filesystem mode on next I/O (§4.2); the downgrade is logged by
	// the caller via Downgraded(), not returned as an error.
	Seek(offset int64) error
	Read(dst []byte) (int, error)
	Write(src []byte) (int, error)
	// Size reports the total addressable byte length of the store.
	Size() int64
	// ReadOnly reports whether Write always fails write-protected.
	ReadOnly() bool
	// ContiguousRange reports the on-disk LBA range for file stores backed
	// by an unfragmented extent, so higher layers can bypass the
	// filesystem (§4.2 contiguousRange()). ok is false when unsupported.
	ContiguousRange() (firstLBA, lastLBA uint32, ok bool)
	Flush() error
	// Downgraded reports, and clears, whether the last Seek/I/O downgraded
	// a RAW/ROM store to filesystem mode.
	Downgraded() bool
}

// Open parses spec as either a filesystem path, "RAW:<first>:<last>", or
// "ROM:" (§6 "Backing-store pseudo-paths") and opens it with the given
// logical sector size, validating RAW/ROM block-size alignment (§4.2
// "fails with ... unsupported-block-size if raw/rom and the requested
// sector size is not a multiple of 512").
func Open(spec string, sectorSize uint32, readOnly bool) (Store, error) {
	switch {
	case strings.HasPrefix(spec, "RAW:"):
		return openRaw(spec, sectorSize, readOnly)
	case spec == "ROM:" || strings.HasPrefix(spec, "ROM:"):
		return openROM(spec, sectorSize, readOnly)
	default:
		return openFile(spec, readOnly)
	}
}

func parseRawRange(spec string) (first, last uint64, err error) {
	parts := strings.Split(strings.TrimPrefix(spec, "RAW:"), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed RAW spec %q, want RAW:<first>:<last>", spec)
	}
	first, err = strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return 0, 0, err
	}
	last, err = strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return 0, 0, err
	}
	return first, last, nil
}

func checkBlockSize(sectorSize uint32) error {
	if sectorSize%sdSectorSize != 0 {
		return newErr(ErrKindUnsupportedBlockSize, "open", fmt.Errorf("sector size %d is not a multiple of %d", sectorSize, sdSectorSize))
	}
	return nil
}

func isNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}

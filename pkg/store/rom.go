// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package store

import (
	"fmt"
	"strconv"
	"strings"
)

// romStore maps an offset into the reserved flash-chip region that also
// holds firmware (§3 Backing store "ROM" variant, §6 "ROM: maps the
// reserved flash region").
type romStore struct {
	dev        BlockDevice
	base       int64
	size       int64
	offset     int64
	downgraded bool
}

func openROM(spec string, sectorSize uint32, readOnly bool) (Store, error) {
	_ = readOnly // ROM is always write-protected regardless of caller intent
	if romChip == nil {
		return nil, newErr(ErrKindNotFound, "open", fmt.Errorf("no ROM chip block device installed"))
	}
	if err := checkBlockSize(sectorSize); err != nil {
		return nil, err
	}
	base, size := int64(0), romChip.Size()
	if rest := strings.TrimPrefix(spec, "ROM:"); rest != "" {
		parts := strings.SplitN(rest, ":", 2)
		b, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			return nil, newErr(ErrKindNotFound, "open", err)
		}
		base = b
		if len(parts) == 2 {
			sz, err := strconv.ParseInt(parts[1], 10, 64)
			if err != nil {
				return nil, newErr(ErrKindNotFound, "open", err)
			}
			size = sz
		} else {
			size = romChip.Size() - base
		}
	}
	if base < 0 || base+size > romChip.Size() {
		return nil, newErr(ErrKindOutOfRange, "open", fmt.Errorf("ROM region exceeds flash size"))
	}
	return &romStore{dev: romChip, base: base, size: size}, nil
}

func (s *romStore) Seek(offset int64) error {
	if offset < 0 || offset > s.size {
		return newErr(ErrKindOutOfRange, "seek", fmt.Errorf("offset %d out of range [0,%d]", offset, s.size))
	}
	if offset%sdSectorSize != 0 {
		s.downgraded = true
	}
	s.offset = offset
	return nil
}

func (s *romStore) Read(dst []byte) (int, error) {
	if s.offset+int64(len(dst)) > s.size {
		return 0, newErr(ErrKindOutOfRange, "read", fmt.Errorf("read past end of ROM region"))
	}
	n, err := s.dev.ReadAt(dst, s.base+s.offset)
	s.offset += int64(n)
	if err != nil {
		return n, newErr(ErrKindIO, "read", err)
	}
	return n, nil
}

func (s *romStore) Write(src []byte) (int, error) {
	return 0, newErr(ErrKindWriteProtected, "write", fmt.Errorf("ROM backing store is read-only"))
}

func (s *romStore) Size() int64    { return s.size }
func (s *romStore) ReadOnly() bool { return true }

func (s *romStore) ContiguousRange() (uint32, uint32, bool) { return 0, 0, false }

func (s *romStore) Flush() error { return nil }

func (s *romStore) Downgraded() bool {
	d := s.downgraded
	s.downgraded = false
	return d
}

func (s *romStore) Close() error { return nil }

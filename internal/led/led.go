// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package led implements the single status LED's crash-PC blink encoding
// (§6 "LED"): a pure function with no GPIO side effects. Actually driving
// the LED is the out-of-scope board-bring-up collaborator named in §1.
package led

// Pulse is one blink of the sequence: Long distinguishes a long pulse
// (bit value 1) from a short one (bit value 0).
type Pulse struct {
	Long bool
}

const crashBlinkBits = 31

// EncodeCrashBlink encodes the low 31 bits of pc, most-significant bit
// first, as a sequence of short (0) and long (1) pulses (§6: "31 MSB-first
// bits, short = 0, long = 1").
func EncodeCrashBlink(pc uint32) []Pulse {
	pulses := make([]Pulse, crashBlinkBits)
	for i := 0; i < crashBlinkBits; i++ {
		bit := (pc >> uint(crashBlinkBits-1-i)) & 1
		pulses[i] = Pulse{Long: bit == 1}
	}
	return pulses
}

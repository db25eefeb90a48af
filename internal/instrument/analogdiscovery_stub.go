// Copyright (c) 2026 Mesa Technologies
// testhub - PCB manufacturing test station hub
// This source code is licensed under the MIT license found in the LICENSE file.

//go:build !dwf

package instrument

// Builds without the dwf tag (development machines, CI) have no hardware
// backend; the sim backend still works everywhere.
func newAnalogDiscovery() (Instrument, error) {
	return nil, ErrUnavailable
}

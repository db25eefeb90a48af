// Copyright (c) 2026 Mesa Technologies
// testhub - PCB manufacturing test station hub
// This source code is licensed under the MIT license found in the LICENSE file.

// package instrument abstracts the bench hardware. The production backend
// drives a Digilent Analog Discovery 3 through libdwf; the sim backend
// stands in for it on development machines and in tests.
package instrument

import (
	"context"
	"errors"
	"fmt"
)

// Backend names accepted in the station configuration.
const (
	BackendAnalogDiscovery = "analogdiscovery"
	BackendSim             = "sim"
)

var (
	// ErrNotConfigured is returned when an operation runs before Configure.
	ErrNotConfigured = errors.New("instrument not configured")
	// ErrAcquireTimeout is returned when the scope never reports an
	// acquisition as done.
	ErrAcquireTimeout = errors.New("timeout waiting for acquisition to complete")
	// ErrUnavailable is returned by New for a backend this build does not
	// include (the hardware backend needs the dwf build tag and libdwf).
	ErrUnavailable = errors.New("instrument backend not available in this build")
)

// Instrument is the fixture hardware as the test runner sees it: a power
// supply, sixteen digital pins driving the bed-of-nails relays, and a
// two-channel scope.
type Instrument interface {
	// Configure opens the device and brings up the supplies.
	Configure(ctx context.Context, supplyVolts float64) error
	// SetPin drives one digital pin high or low. Driving a pin high
	// clears all others, matching the one-rail-at-a-time fixture wiring.
	SetPin(pin int, high bool) error
	// Acquire records the given number of samples from a scope channel
	// (1 or 2) and returns the voltages.
	Acquire(ctx context.Context, channel, samples int) ([]float64, error)
	// Close releases the device, dropping all pins.
	Close() error
}

// New creates an instrument for the named backend.
func New(backend string) (Instrument, error) {
	switch backend {
	case BackendAnalogDiscovery:
		return newAnalogDiscovery()
	case BackendSim:
		return NewSim(), nil
	default:
		return nil, fmt.Errorf("unknown instrument backend %q", backend)
	}
}

// Copyright (c) 2026 Mesa Technologies
// testhub - PCB manufacturing test station hub
// This source code is licensed under the MIT license found in the LICENSE file.

package instrument

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
)

// Sim is a software stand-in for the bench fixture. Each pin can be given a
// voltage profile; when that pin is driven high, acquisitions return samples
// around the profile value with a little noise so averages look plausible.
type Sim struct {
	mu         sync.Mutex
	configured bool
	activePin  int
	volts      map[int]float64
	noise      float64
	rng        *rand.Rand
}

// NewSim creates a simulated instrument with no voltage profiles. Acquire
// returns zeroes until SetPinVoltage is called, which makes every test step
// fail against its limits rather than silently pass.
func NewSim() *Sim {
	return &Sim{
		activePin: -1,
		volts:     make(map[int]float64),
		noise:     0.002,
		rng:       rand.New(rand.NewSource(1)),
	}
}

// SetPinVoltage sets the voltage the scope reads while the given pin is
// driven high.
func (s *Sim) SetPinVoltage(pin int, volts float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volts[pin] = volts
}

// SetNoise sets the amplitude of the random sample jitter.
func (s *Sim) SetNoise(amplitude float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.noise = amplitude
}

func (s *Sim) Configure(ctx context.Context, supplyVolts float64) error {
	if supplyVolts <= 0 {
		return fmt.Errorf("invalid supply voltage %v", supplyVolts)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configured = true
	return nil
}

func (s *Sim) SetPin(pin int, high bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.configured {
		return ErrNotConfigured
	}
	if pin < 0 || pin > 15 {
		return fmt.Errorf("pin %d out of range", pin)
	}
	if high {
		s.activePin = pin
	} else if s.activePin == pin {
		s.activePin = -1
	}
	return nil
}

func (s *Sim) Acquire(ctx context.Context, channel, samples int) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.configured {
		return nil, ErrNotConfigured
	}
	if channel != 1 && channel != 2 {
		return nil, fmt.Errorf("scope channel %d out of range", channel)
	}
	if samples <= 0 {
		return nil, fmt.Errorf("invalid sample count %d", samples)
	}
	base := 0.0
	if s.activePin >= 0 {
		base = s.volts[s.activePin]
	}
	out := make([]float64, samples)
	for i := range out {
		out[i] = base + (s.rng.Float64()-0.5)*2*s.noise
	}
	return out, nil
}

func (s *Sim) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configured = false
	s.activePin = -1
	return nil
}

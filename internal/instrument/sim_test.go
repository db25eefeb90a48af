// Copyright (c) 2026 Mesa Technologies
// testhub - PCB manufacturing test station hub
// This source code is licensed under the MIT license found in the LICENSE file.

package instrument

import (
	"context"
	"errors"
	"testing"
)

func TestSimRequiresConfigure(t *testing.T) {
	s := NewSim()
	if err := s.SetPin(0, true); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("SetPin before Configure: %v", err)
	}
	if _, err := s.Acquire(context.Background(), 1, 10); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Acquire before Configure: %v", err)
	}
}

func TestSimAcquireTracksActivePin(t *testing.T) {
	ctx := context.Background()
	s := NewSim()
	s.SetNoise(0)
	s.SetPinVoltage(3, 0.73)
	if err := s.Configure(ctx, 5.0); err != nil {
		t.Fatalf("Configure: %v", err)
	}

	// No pin driven: the scope reads zero.
	samples, err := s.Acquire(ctx, 2, 100)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if samples[0] != 0 {
		t.Errorf("idle reading = %v, want 0", samples[0])
	}

	if err := s.SetPin(3, true); err != nil {
		t.Fatalf("SetPin: %v", err)
	}
	samples, err = s.Acquire(ctx, 2, 100)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if len(samples) != 100 {
		t.Fatalf("got %d samples, want 100", len(samples))
	}
	for _, v := range samples {
		if v != 0.73 {
			t.Fatalf("sample = %v, want 0.73", v)
		}
	}

	if err := s.SetPin(3, false); err != nil {
		t.Fatalf("SetPin low: %v", err)
	}
	samples, _ = s.Acquire(ctx, 2, 10)
	if samples[0] != 0 {
		t.Errorf("reading after pin low = %v, want 0", samples[0])
	}
}

func TestSimRejectsBadArguments(t *testing.T) {
	ctx := context.Background()
	s := NewSim()
	if err := s.Configure(ctx, 5.0); err != nil {
		t.Fatal(err)
	}
	if err := s.SetPin(16, true); err == nil {
		t.Error("SetPin(16) should fail")
	}
	if _, err := s.Acquire(ctx, 3, 10); err == nil {
		t.Error("Acquire channel 3 should fail")
	}
	if _, err := s.Acquire(ctx, 1, 0); err == nil {
		t.Error("Acquire with 0 samples should fail")
	}
	if err := s.Configure(ctx, 0); err == nil {
		t.Error("Configure with 0 V supply should fail")
	}
}

func TestSimAcquireHonorsContext(t *testing.T) {
	s := NewSim()
	if err := s.Configure(context.Background(), 5.0); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Acquire(ctx, 1, 10); !errors.Is(err, context.Canceled) {
		t.Errorf("Acquire with cancelled context: %v", err)
	}
}

func TestNewBackendSelection(t *testing.T) {
	if _, err := New(BackendSim); err != nil {
		t.Errorf("New(sim): %v", err)
	}
	if _, err := New("bogus"); err == nil {
		t.Error("New(bogus) should fail")
	}
}

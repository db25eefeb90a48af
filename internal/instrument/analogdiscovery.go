// Copyright (c) 2026 Mesa Technologies
// testhub - PCB manufacturing test station hub
// This source code is licensed under the MIT license found in the LICENSE file.

//go:build dwf

package instrument

/*
#cgo LDFLAGS: -ldwf
#include <stdlib.h>
#include <digilent/waveforms/dwf.h>
*/
import "C"

import (
	"context"
	"fmt"
	"sync"
	"time"
	"unsafe"

	"github.com/mesa-nmanteufel/testhub/internal/logging"
)

// analogDiscovery drives a Digilent Analog Discovery 3 over USB through the
// WaveForms runtime (libdwf). Requires building with the dwf tag and having
// the Adept runtime plus the WaveForms SDK installed.
type analogDiscovery struct {
	mu     sync.Mutex
	hdwf   C.HDWF
	opened bool
}

func newAnalogDiscovery() (Instrument, error) {
	return &analogDiscovery{}, nil
}

// lastError reads the device error message from the runtime.
func lastError() string {
	buf := (*C.char)(C.malloc(512))
	defer C.free(unsafe.Pointer(buf))
	C.FDwfGetLastErrorMsg(buf)
	return C.GoString(buf)
}

func (d *analogDiscovery) Configure(ctx context.Context, supplyVolts float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	// Keep the device running when the process exits so the supplies stay
	// up between test runs.
	C.FDwfParamSet(C.DwfParamOnClose, 0)

	logging.Infof("Connecting to Analog Discovery 3.")
	if C.FDwfDeviceOpen(-1, &d.hdwf) == 0 || d.hdwf == C.hdwfNone {
		return fmt.Errorf("failed to open device: %s", lastError())
	}
	d.opened = true

	// Positive supply on at the plan voltage, negative supply at 0 V.
	C.FDwfAnalogIOChannelNodeSet(d.hdwf, 0, 0, 1)
	C.FDwfAnalogIOChannelNodeSet(d.hdwf, 0, 1, C.double(supplyVolts))
	C.FDwfAnalogIOChannelNodeSet(d.hdwf, 1, 0, 1)
	C.FDwfAnalogIOChannelNodeSet(d.hdwf, 1, 1, 0)
	C.FDwfAnalogIOEnableSet(d.hdwf, 1)
	C.FDwfDeviceAutoConfigureSet(d.hdwf, 0)

	// All sixteen pins as outputs, everything low.
	C.FDwfDigitalIOOutputEnableSet(d.hdwf, 0xFFFF)
	C.FDwfDigitalIOOutputSet(d.hdwf, 0)
	C.FDwfDigitalIOConfigure(d.hdwf)
	return nil
}

func (d *analogDiscovery) SetPin(pin int, high bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.opened {
		return ErrNotConfigured
	}
	if pin < 0 || pin > 15 {
		return fmt.Errorf("pin %d out of range", pin)
	}
	var mask C.uint
	if high {
		mask = 1 << uint(pin)
	}
	if C.FDwfDigitalIOOutputSet(d.hdwf, mask) == 0 {
		return fmt.Errorf("failed to set pin %d: %s", pin, lastError())
	}
	C.FDwfDigitalIOConfigure(d.hdwf)
	return nil
}

func (d *analogDiscovery) Acquire(ctx context.Context, channel, samples int) ([]float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.opened {
		return nil, ErrNotConfigured
	}
	if channel != 1 && channel != 2 {
		return nil, fmt.Errorf("scope channel %d out of range", channel)
	}
	idx := C.int(channel - 1)

	C.FDwfAnalogInReset(d.hdwf)
	C.FDwfAnalogInChannelEnableSet(d.hdwf, idx, 1)
	C.FDwfAnalogInChannelRangeSet(d.hdwf, idx, 5.0)
	C.FDwfAnalogInChannelOffsetSet(d.hdwf, idx, 0.0)
	C.FDwfAnalogInFrequencySet(d.hdwf, 1e5)
	C.FDwfAnalogInBufferSizeSet(d.hdwf, C.int(samples))
	C.FDwfAnalogInConfigure(d.hdwf, 1, 1)

	// Poll for completion; the scope fills its buffer in well under a
	// second at 100 kHz, so 10 s means the fixture is unplugged or hung.
	deadline := time.Now().Add(10 * time.Second)
	var sts C.DwfState
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		C.FDwfAnalogInStatus(d.hdwf, 1, &sts)
		if sts == C.DwfStateDone {
			break
		}
		if time.Now().After(deadline) {
			return nil, ErrAcquireTimeout
		}
		time.Sleep(100 * time.Millisecond)
	}

	buf := make([]C.double, samples)
	C.FDwfAnalogInStatusData(d.hdwf, idx, &buf[0], C.int(samples))
	logging.Debugf("acquisition done: channel %d, %d samples", channel, samples)

	out := make([]float64, samples)
	for i, v := range buf {
		out[i] = float64(v)
	}
	return out, nil
}

func (d *analogDiscovery) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.opened {
		return nil
	}
	C.FDwfDigitalIOOutputSet(d.hdwf, 0)
	C.FDwfDigitalIOConfigure(d.hdwf)
	C.FDwfDeviceCloseAll()
	d.opened = false
	return nil
}

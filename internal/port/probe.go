//  Copyright 2026 Google LLC
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

// Package port implements the touch reset probe and the enumeration of
// candidate serial ports a device may show up on.
package port

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/GoogleCloudPlatform/galog"
	"github.com/pico-tools/picoflash/internal/cfg"
	"github.com/pico-tools/picoflash/internal/retry"
	"github.com/pico-tools/picoflash/internal/serialport"
)

// ErrOpen is returned when a serial port could not be opened. It is never
// fatal during discovery.
var ErrOpen = errors.New("failed to open serial port")

// Prober requests a bootloader reset by opening a port at the reset baud rate.
type Prober struct {
	serial cfg.Serial
	settle time.Duration
	// open opens a serial port, overridden in unit tests.
	open serialport.Opener
	// sleep waits for the settle interval, overridden in unit tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewProber returns a Prober using the serial section's reset baud rate and
// the timing section's touch settle delay.
func NewProber(serial cfg.Serial, timing cfg.Timing) *Prober {
	return &Prober{
		serial: serial,
		settle: timing.TouchSettle,
		open:   serialport.Open,
		sleep:  retry.Sleep,
	}
}

// Touch opens and closes name at the reset baud rate and then waits for the
// settle delay, whatever the outcome of the open. The returned error wraps
// ErrOpen when the port couldn't be opened, or is the context error if the
// wait was interrupted.
func (p *Prober) Touch(ctx context.Context, name string) error {
	galog.Infof("Opening serial connection on %s ...", name)

	err := p.touch(name)
	if err != nil {
		galog.V(1).Debugf("Touch of %s failed (not found: %t): %v", name, serialport.IsNotFound(err), err)
		err = fmt.Errorf("%w %s: %v", ErrOpen, name, err)
	}

	// The reset re-enumerates the device asynchronously, the delay applies even
	// when the open succeeded.
	if serr := p.sleep(ctx, p.settle); serr != nil {
		return serr
	}
	return err
}

func (p *Prober) touch(name string) error {
	conn, err := p.open(name, p.serial.ResetBaudRate)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.SetReadTimeout(p.serial.TouchTimeout); err != nil {
		galog.V(2).Debugf("Failed to set read timeout on %s: %v", name, err)
	}
	return nil
}

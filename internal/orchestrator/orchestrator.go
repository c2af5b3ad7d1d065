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

// Package orchestrator sequences discovery, flashing and monitoring of a
// device.
package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/GoogleCloudPlatform/galog"
	"github.com/pico-tools/picoflash/internal/flash"
	"github.com/pico-tools/picoflash/internal/port"
	"github.com/pico-tools/picoflash/internal/reconnect"
	"github.com/pico-tools/picoflash/internal/state"
	"github.com/pico-tools/picoflash/internal/volume"
)

// ErrNoConnection is returned when no serial connection to the device could
// be established.
var ErrNoConnection = errors.New("could not establish connection to the device")

// Finder looks up the bootloader volume.
type Finder interface {
	Find(ctx context.Context, label string) (volume.Volume, error)
}

// Prober requests a bootloader reset through a port.
type Prober interface {
	Touch(ctx context.Context, name string) error
}

// Waiter scans candidate ports until the device shows up.
type Waiter interface {
	Wait(ctx context.Context) (reconnect.Location, error)
}

// Flasher writes a firmware image onto a volume.
type Flasher interface {
	Flash(ctx context.Context, image, volumePath string) (int64, error)
}

// Monitor prints a port's output until interrupted.
type Monitor interface {
	Run(ctx context.Context, name string) error
}

// Components are the collaborators of an Orchestrator.
type Components struct {
	Finder  Finder
	Prober  Prober
	Waiter  Waiter
	Flasher Flasher
	Monitor Monitor
	// Store holds the last known port, it may be nil.
	Store state.Store
}

// Orchestrator flashes an image and then monitors the device.
type Orchestrator struct {
	label string
	c     Components
}

// New returns an Orchestrator for devices whose bootloader volume is labeled
// label.
func New(label string, c Components) *Orchestrator {
	return &Orchestrator{label: label, c: c}
}

// Run flashes image onto the device and monitors its serial output. A device
// already in bootloader mode is flashed right away and monitored on the last
// known port. Otherwise, or when that port is stale, the last known port is
// touched and re-checked before falling back to a full reconnect scan.
//
// Run returns nil once monitoring ends by ctx being done.
func (o *Orchestrator) Run(ctx context.Context, image string) error {
	lastPort := o.lastPort(ctx)

	vol, err := o.c.Finder.Find(ctx, o.label)
	switch {
	case err == nil:
		o.flash(ctx, image, vol.Path)
		if err := ctx.Err(); err != nil {
			return err
		}
		if lastPort != "" {
			err := o.c.Monitor.Run(ctx, lastPort)
			if !errors.Is(err, port.ErrOpen) {
				return err
			}
			galog.Infof("Last known port %s is not available: %v", lastPort, err)
		}
	case errors.Is(err, volume.ErrNotFound):
		galog.Infof("No partitions found.")
	default:
		galog.Warnf("Failed to look up the %q volume: %v", o.label, err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	loc, ok := o.revalidate(ctx, lastPort)
	if !ok {
		if err := ctx.Err(); err != nil {
			return err
		}
		loc, err = o.c.Waiter.Wait(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			galog.Errorf("Could not establish connection to the device: %v", err)
			return fmt.Errorf("%w: %v", ErrNoConnection, err)
		}
	}

	o.flash(ctx, image, loc.Volume.Path)
	if err := ctx.Err(); err != nil {
		return err
	}

	galog.Infof("Connecting to the device on %s ...", loc.Port)
	err = o.c.Monitor.Run(ctx, loc.Port)
	if errors.Is(err, port.ErrOpen) {
		galog.Errorf("Could not establish connection to the device: %v", err)
		return fmt.Errorf("%w: %v", ErrNoConnection, err)
	}
	return err
}

// lastPort returns the last known port, or an empty string.
func (o *Orchestrator) lastPort(ctx context.Context) string {
	if o.c.Store == nil {
		return ""
	}

	p, ok, err := o.c.Store.Get(ctx, state.LastPortKey)
	if err != nil {
		galog.Warnf("Failed to read the last known port: %v", err)
		return ""
	}
	if !ok {
		galog.V(1).Debugf("No last known port")
		return ""
	}
	galog.V(1).Debugf("Last known port: %s", p)
	return p
}

// revalidate touches the last known port and checks whether the bootloader
// volume shows up, which is much cheaper than a full scan.
func (o *Orchestrator) revalidate(ctx context.Context, lastPort string) (reconnect.Location, bool) {
	if lastPort == "" {
		return reconnect.Location{}, false
	}

	if err := o.c.Prober.Touch(ctx, lastPort); err != nil {
		galog.V(1).Debugf("Touch of last known port %s failed: %v", lastPort, err)
		if ctx.Err() != nil {
			return reconnect.Location{}, false
		}
	}

	vol, err := o.c.Finder.Find(ctx, o.label)
	if err != nil {
		galog.V(1).Debugf("Last known port %s did not bring up the %q volume: %v", lastPort, o.label, err)
		return reconnect.Location{}, false
	}
	return reconnect.Location{Port: lastPort, Volume: vol}, true
}

// flash writes image onto the volume. Failures are reported and otherwise
// ignored, the monitor may still show the output of a previous image.
func (o *Orchestrator) flash(ctx context.Context, image, volumePath string) {
	_, err := o.c.Flasher.Flash(ctx, image, volumePath)
	switch {
	case err == nil:
	case errors.Is(err, flash.ErrImageNotFound):
		galog.Errorf("File %q not found.", image)
	case ctx.Err() != nil:
		galog.V(1).Debugf("Flashing interrupted: %v", err)
	default:
		galog.Errorf("Error copying file: %v", err)
	}
}

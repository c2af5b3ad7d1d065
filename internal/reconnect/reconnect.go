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

// Package reconnect waits for a device to come back in bootloader mode after
// a touch reset, and works out which serial port it belongs to.
package reconnect

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/GoogleCloudPlatform/galog"
	"github.com/pico-tools/picoflash/internal/cfg"
	"github.com/pico-tools/picoflash/internal/retry"
	"github.com/pico-tools/picoflash/internal/state"
	"github.com/pico-tools/picoflash/internal/volume"
)

// ErrExhausted is returned when a scan pass, or with a bounded number of
// passes the whole wait, ended without finding the device.
var ErrExhausted = errors.New("device not found on any candidate port")

// State is the state of a scan.
type State int

const (
	// Scanning means candidates are being probed.
	Scanning State = iota
	// Found means the bootloader volume showed up after probing a candidate.
	Found
	// Exhausted means a pass ended without a match, a new pass follows.
	Exhausted
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Scanning:
		return "scanning"
	case Found:
		return "found"
	case Exhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Location is a device in bootloader mode: the serial port whose touch made
// it show up and the volume it exposes.
type Location struct {
	// Port is the serial port the device was reset through.
	Port string
	// Volume is the bootloader volume.
	Volume volume.Volume
}

// Enumerator produces the candidate ports of one pass.
type Enumerator interface {
	Candidates(ctx context.Context) iter.Seq[string]
}

// Prober requests a bootloader reset through a port.
type Prober interface {
	Touch(ctx context.Context, name string) error
}

// Finder looks up the bootloader volume.
type Finder interface {
	Find(ctx context.Context, label string) (volume.Volume, error)
}

// Waiter runs scan passes until the device shows up.
type Waiter struct {
	label     string
	discovery cfg.Discovery
	ports     Enumerator
	prober    Prober
	finder    Finder
	store     state.Store
}

// NewWaiter returns a Waiter looking for a volume labeled label. store may be
// nil, the resolved port is then not remembered.
func NewWaiter(label string, discovery cfg.Discovery, ports Enumerator, prober Prober, finder Finder, store state.Store) *Waiter {
	return &Waiter{
		label:     label,
		discovery: discovery,
		ports:     ports,
		prober:    prober,
		finder:    finder,
		store:     store,
	}
}

// Wait probes every candidate port in turn until the bootloader volume shows
// up, restarting from the first candidate whenever a pass is exhausted. With
// max_passes set to zero it only returns on success or when ctx is done.
func (w *Waiter) Wait(ctx context.Context) (Location, error) {
	galog.Infof("Waiting for the device to reconnect...")

	policy := retry.Policy{
		MaxAttempts:   w.discovery.MaxPasses,
		BackoffFactor: 1,
		Jitter:        w.discovery.PassInterval,
		ShouldRetry:   func(err error) bool { return errors.Is(err, ErrExhausted) },
	}

	pass := 0
	loc, err := retry.RunWithResponse(ctx, policy, func() (Location, error) {
		pass++
		return w.scan(ctx, pass)
	})
	if err != nil {
		return Location{}, err
	}

	w.remember(ctx, loc.Port)
	return loc, nil
}

// scan runs a single pass over the candidates.
func (w *Waiter) scan(ctx context.Context, pass int) (Location, error) {
	galog.V(1).Debugf("Reconnect pass %d: %s", pass, Scanning)

	tried := 0
	for name := range w.ports.Candidates(ctx) {
		if err := ctx.Err(); err != nil {
			return Location{}, err
		}
		tried++

		if err := w.prober.Touch(ctx, name); err != nil {
			if ctx.Err() != nil {
				return Location{}, ctx.Err()
			}
			galog.V(1).Debugf("Touch of %s failed: %v", name, err)
		}

		vol, err := w.finder.Find(ctx, w.label)
		if err == nil {
			galog.V(1).Debugf("Reconnect pass %d: %s on %s after %d candidates", pass, Found, name, tried)
			return Location{Port: name, Volume: vol}, nil
		}
		if !errors.Is(err, volume.ErrNotFound) {
			galog.Warnf("Failed to look up the %q volume: %v", w.label, err)
		}
	}

	galog.Infof("Device not found on %d candidate ports (pass %d), scanning again", tried, pass)
	return Location{}, fmt.Errorf("%w: pass %d, %s after %d candidates", ErrExhausted, pass, Exhausted, tried)
}

// remember persists the resolved port, failures are logged and ignored.
func (w *Waiter) remember(ctx context.Context, port string) {
	if w.store == nil {
		return
	}
	if err := w.store.Set(ctx, state.LastPortKey, port); err != nil {
		galog.Warnf("Failed to remember serial port %s: %v", port, err)
	}
}

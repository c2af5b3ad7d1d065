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

package port

import (
	"context"
	"fmt"
	"iter"

	"github.com/GoogleCloudPlatform/galog"
	"github.com/pico-tools/picoflash/internal/cfg"
)

// Registry lists the serial ports the platform currently considers live.
type Registry interface {
	ActivePorts(ctx context.Context) ([]string, error)
}

// RegistryFunc adapts a function to the Registry interface.
type RegistryFunc func(ctx context.Context) ([]string, error)

// ActivePorts implements Registry.
func (f RegistryFunc) ActivePorts(ctx context.Context) ([]string, error) {
	return f(ctx)
}

// Enumerator produces the candidate ports of a discovery pass.
type Enumerator struct {
	discovery cfg.Discovery
	registry  Registry
}

// NewEnumerator returns an Enumerator over registry, falling back to the
// discovery section's numeric range.
func NewEnumerator(discovery cfg.Discovery, registry Registry) *Enumerator {
	return &Enumerator{discovery: discovery, registry: registry}
}

// Candidates returns the candidate ports of one pass. The sequence is lazy
// and restartable, the registry is queried again on every iteration. Registry
// entries come first in enumeration order; an unavailable or empty registry
// yields the configured range in ascending order instead.
func (e *Enumerator) Candidates(ctx context.Context) iter.Seq[string] {
	return func(yield func(string) bool) {
		if ports := e.activePorts(ctx); len(ports) > 0 {
			for _, p := range ports {
				if !yield(p) {
					return
				}
			}
			return
		}

		for i := e.discovery.MinPort; i <= e.discovery.MaxPort; i++ {
			if !yield(fmt.Sprintf(e.discovery.PortFormat, i)) {
				return
			}
		}
	}
}

func (e *Enumerator) activePorts(ctx context.Context) []string {
	if !e.discovery.AutoScan || e.registry == nil {
		return nil
	}

	ports, err := e.registry.ActivePorts(ctx)
	if err != nil {
		galog.V(1).Debugf("Active port registry unavailable, scanning %s range: %v", e.discovery.PortFormat, err)
		return nil
	}
	if len(ports) == 0 {
		galog.V(1).Debugf("Active port registry is empty, scanning %s range", e.discovery.PortFormat)
	}
	return ports
}

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

//go:build !windows

package serialport

import (
	"context"
	"fmt"

	"github.com/GoogleCloudPlatform/galog"
	"go.bug.st/serial/enumerator"
)

// ActivePorts returns the serial ports the OS currently exposes, in the
// order the enumerator reports them.
func ActivePorts(ctx context.Context) ([]string, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRegistryUnavailable, err)
	}

	var ports []string
	for _, d := range details {
		if d.Name == "" {
			continue
		}
		if d.IsUSB {
			galog.V(2).Debugf("Active serial port %s (usb %s:%s, serial %q)", d.Name, d.VID, d.PID, d.SerialNumber)
		} else {
			galog.V(2).Debugf("Active serial port %s", d.Name)
		}
		ports = append(ports, d.Name)
	}
	return ports, nil
}

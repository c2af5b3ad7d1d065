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

//go:build windows

package serialport

import (
	"context"
	"fmt"

	"github.com/GoogleCloudPlatform/galog"
	"github.com/pico-tools/picoflash/internal/reg"
)

// ActivePorts returns the COM ports windows currently lists under
// HKLM\HARDWARE\DEVICEMAP\SERIALCOMM, in registry enumeration order.
func ActivePorts(ctx context.Context) ([]string, error) {
	ports, err := reg.ReadValueStrings(reg.SerialCommKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRegistryUnavailable, err)
	}
	galog.V(2).Debugf("Registry lists active serial ports: %v", ports)
	return ports, nil
}

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

// Package reg provides wrapper functions/utilities to read windows registry
// values.
package reg

import (
	"fmt"

	"github.com/GoogleCloudPlatform/galog"
	"golang.org/x/sys/windows/registry"
)

const (
	// SerialCommKey is the registry key where windows publishes the serial
	// ports currently known to the system. Each value maps a device object
	// name to a port name (i.e. COM5).
	SerialCommKey = `HARDWARE\DEVICEMAP\SERIALCOMM`
)

// ReadValueStrings reads all the string values of the given registry key in
// the order the registry enumerates them. Values of other types are skipped.
func ReadValueStrings(key string) ([]string, error) {
	galog.V(3).Debugf("Enumerating string values of registry key %q", key)
	k, err := registry.OpenKey(registry.LOCAL_MACHINE, key, registry.QUERY_VALUE)
	if err != nil {
		return nil, err
	}
	defer k.Close()

	names, err := k.ReadValueNames(0)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate values of %q: %w", key, err)
	}

	var res []string
	for _, name := range names {
		s, _, err := k.GetStringValue(name)
		if err != nil {
			galog.V(3).Debugf("Skipping registry value %q of %q: %v", name, key, err)
			continue
		}
		res = append(res, s)
	}

	return res, nil
}

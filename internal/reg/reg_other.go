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

package reg

import "errors"

// SerialCommKey is only meaningful on windows.
const SerialCommKey = `HARDWARE\DEVICEMAP\SERIALCOMM`

// errNoRegistry is returned by every registry operation on platforms without
// a windows registry.
var errNoRegistry = errors.New("registry is not available on this platform")

// ReadValueStrings is a no-op on non-windows platforms.
func ReadValueStrings(key string) ([]string, error) {
	return nil, errNoRegistry
}

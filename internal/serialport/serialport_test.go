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

package serialport

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func TestOpenMissingPort(t *testing.T) {
	name := filepath.Join(t.TempDir(), "ttyACM99")
	conn, err := Open(name, 115200)
	if err == nil {
		conn.Close()
		t.Fatalf("Open(%q, 115200) succeeded, want error", name)
	}
	if conn != nil {
		t.Errorf("Open(%q, 115200) = %v, want nil connection on error", name, conn)
	}
}

func TestIsNotFound(t *testing.T) {
	if IsNotFound(nil) {
		t.Errorf("IsNotFound(nil) = true, want false")
	}
	if IsNotFound(errors.New("some error")) {
		t.Errorf("IsNotFound(some error) = true, want false")
	}
}

func TestActivePorts(t *testing.T) {
	ports, err := ActivePorts(context.Background())
	if err != nil {
		if !errors.Is(err, ErrRegistryUnavailable) {
			t.Errorf("ActivePorts() = %v, want error wrapping %v", err, ErrRegistryUnavailable)
		}
		return
	}

	for _, p := range ports {
		if p == "" {
			t.Errorf("ActivePorts() = %v, contains an empty port name", ports)
		}
	}
}

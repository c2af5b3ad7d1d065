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

// Package serialport wraps go.bug.st/serial for the touch reset and the
// monitor session, and exposes the platform's list of active serial ports.
package serialport

import (
	"errors"
	"io"
	"time"

	"go.bug.st/serial"
)

// ErrRegistryUnavailable is returned by ActivePorts when the platform can't
// tell which serial ports are currently live.
var ErrRegistryUnavailable = errors.New("active serial port registry unavailable")

// Conn is the subset of serial.Port picoflash relies on.
type Conn interface {
	io.ReadCloser
	// SetReadTimeout sets the timeout of Read, a timed out Read returns 0
	// bytes and no error.
	SetReadTimeout(t time.Duration) error
}

// Opener opens the named serial port at the given baud rate.
type Opener func(name string, baudRate int) (Conn, error)

// Open opens the named serial port at baudRate using 8N1 framing.
func Open(name string, baudRate int) (Conn, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	p, err := serial.Open(name, mode)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// IsNotFound reports whether err says the port doesn't exist (as opposed to
// being busy or misconfigured).
func IsNotFound(err error) bool {
	var perr *serial.PortError
	if !errors.As(err, &perr) {
		return false
	}
	return perr.Code() == serial.PortNotFound
}

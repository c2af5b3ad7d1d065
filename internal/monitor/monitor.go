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

// Package monitor prints the line oriented serial output of a running
// device.
package monitor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/GoogleCloudPlatform/galog"
	"github.com/pico-tools/picoflash/internal/cfg"
	"github.com/pico-tools/picoflash/internal/port"
	"github.com/pico-tools/picoflash/internal/serialport"
)

const (
	// readSize is the size of a single read from the port.
	readSize = 256
	// maxLineLength flushes data of a device that never sends a newline.
	maxLineLength = 4096
)

var (
	// ErrDecode is reported for a line that isn't valid UTF-8, the monitor
	// carries on with the next line.
	ErrDecode = errors.New("failed to decode serial data")
	// ErrFatalPort is returned when the port failed while monitoring, i.e. the
	// device was unplugged.
	ErrFatalPort = errors.New("serial port failed")
)

// Monitor reads a serial port and writes every received line to an output.
type Monitor struct {
	serial cfg.Serial
	out    io.Writer
	// open opens a serial port, overridden in unit tests.
	open serialport.Opener
}

// New returns a Monitor using the serial section's monitor baud rate and read
// timeout, writing lines to out.
func New(serial cfg.Serial, out io.Writer) *Monitor {
	return &Monitor{serial: serial, out: out, open: serialport.Open}
}

// Run opens name and emits its output line by line until ctx is done, in
// which case it returns nil. A port that can't be opened returns an error
// wrapping port.ErrOpen; a failure once reading started returns an error
// wrapping ErrFatalPort. Neither is retried.
func (m *Monitor) Run(ctx context.Context, name string) error {
	galog.Infof("Opening serial connection on %s ...", name)
	conn, err := m.open(name, m.serial.MonitorBaudRate)
	if err != nil {
		return fmt.Errorf("%w %s: %v", port.ErrOpen, name, err)
	}
	defer conn.Close()

	// The read timeout bounds how long an interrupt goes unnoticed.
	if err := conn.SetReadTimeout(m.serial.ReadTimeout); err != nil {
		return fmt.Errorf("%w %s: failed to set read timeout: %v", port.ErrOpen, name, err)
	}
	galog.Infof("Monitoring %s at %d baud, press Ctrl+C to stop.", name, m.serial.MonitorBaudRate)

	buf := make([]byte, readSize)
	var pending []byte
	for {
		n, err := conn.Read(buf)
		if ctx.Err() != nil {
			m.emit(pending)
			galog.V(1).Debugf("Monitoring of %s interrupted", name)
			return nil
		}
		if err != nil {
			m.emit(pending)
			return fmt.Errorf("%w on %s: %v", ErrFatalPort, name, err)
		}

		// A timed out read flushes a partial line like a line read would.
		if n == 0 {
			if len(pending) > 0 {
				m.emit(pending)
				pending = pending[:0]
			}
			continue
		}

		pending = append(pending, buf[:n]...)
		for {
			i := bytes.IndexByte(pending, '\n')
			if i < 0 {
				break
			}
			m.emit(pending[:i+1])
			pending = pending[i+1:]
		}

		if len(pending) >= maxLineLength {
			m.emit(pending)
			pending = pending[:0]
		}
	}
}

// emit writes one line, trimmed, to the output. Undecodable lines are
// reported and dropped.
func (m *Monitor) emit(line []byte) {
	if len(line) == 0 {
		return
	}

	text := bytes.TrimSpace(line)
	if !utf8.Valid(text) {
		galog.Errorf("%v: %q", ErrDecode, text)
		return
	}

	if _, err := fmt.Fprintln(m.out, string(text)); err != nil {
		galog.Errorf("Failed to write serial output: %v", err)
	}
}

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

package monitor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/pico-tools/picoflash/internal/cfg"
	"github.com/pico-tools/picoflash/internal/port"
	"github.com/pico-tools/picoflash/internal/serialport"
)

// read is the outcome of one Read call, empty data and no error is a read
// timeout.
type read struct {
	data string
	err  error
}

// fakeConn replays reads and cancels the monitor once they're all consumed.
type fakeConn struct {
	reads   []read
	cancel  context.CancelFunc
	timeout time.Duration
	closed  bool
}

func (c *fakeConn) Read(p []byte) (int, error) {
	if len(c.reads) == 0 {
		c.cancel()
		return 0, nil
	}
	r := c.reads[0]
	n := copy(p, r.data)
	if n < len(r.data) {
		c.reads[0].data = r.data[n:]
		return n, nil
	}
	c.reads = c.reads[1:]
	return n, r.err
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func (c *fakeConn) SetReadTimeout(t time.Duration) error {
	c.timeout = t
	return nil
}

// runMonitor runs a monitor over reads and returns its output lines.
func runMonitor(t *testing.T, reads []read) ([]string, *fakeConn, error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn := &fakeConn{reads: reads, cancel: cancel}
	out := new(strings.Builder)
	m := New(cfg.Serial{MonitorBaudRate: 115200, ReadTimeout: time.Second}, out)

	var bauds []int
	m.open = func(name string, baudRate int) (serialport.Conn, error) {
		bauds = append(bauds, baudRate)
		return conn, nil
	}

	err := m.Run(ctx, "COM5")
	if diff := cmp.Diff([]int{115200}, bauds); diff != "" {
		t.Errorf("Run(ctx, COM5) open baud rates diff (-want +got):\n%s", diff)
	}

	var lines []string
	if s := out.String(); s != "" {
		lines = strings.Split(strings.TrimSuffix(s, "\n"), "\n")
	}
	return lines, conn, err
}

func TestRunLines(t *testing.T) {
	tests := []struct {
		name  string
		reads []read
		want  []string
	}{
		{
			name:  "single_line",
			reads: []read{{data: "boot ok\n"}},
			want:  []string{"boot ok"},
		},
		{
			name:  "trimmed_crlf",
			reads: []read{{data: "  hello world \r\n"}},
			want:  []string{"hello world"},
		},
		{
			name:  "many_lines_one_read",
			reads: []read{{data: "a\nb\nc\n"}},
			want:  []string{"a", "b", "c"},
		},
		{
			name:  "line_split_across_reads",
			reads: []read{{data: "boo"}, {data: "t o"}, {data: "k\nnext"}, {data: " line\n"}},
			want:  []string{"boot ok", "next line"},
		},
		{
			name:  "timeout_flushes_partial_line",
			reads: []read{{data: "prompt> "}, {}, {data: "after\n"}},
			want:  []string{"prompt>", "after"},
		},
		{
			name:  "undecodable_line_skipped",
			reads: []read{{data: "\xff\xfe\n"}, {data: "still here\n"}},
			want:  []string{"still here"},
		},
		{
			name:  "blank_line",
			reads: []read{{data: "one\n\r\ntwo\n"}},
			want:  []string{"one", "", "two"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, conn, err := runMonitor(t, tc.reads)
			if err != nil {
				t.Fatalf("Run(ctx, COM5) = %v, want nil after cancellation", err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("Run(ctx, COM5) output diff (-want +got):\n%s", diff)
			}
			if !conn.closed {
				t.Errorf("Run(ctx, COM5) did not close the port")
			}
			if conn.timeout != time.Second {
				t.Errorf("Run(ctx, COM5) set read timeout %v, want 1s", conn.timeout)
			}
		})
	}
}

func TestRunLongLine(t *testing.T) {
	long := strings.Repeat("x", maxLineLength)
	got, _, err := runMonitor(t, []read{{data: long[:readSize]}, {data: long[readSize:]}})
	if err != nil {
		t.Fatalf("Run(ctx, COM5) = %v, want nil", err)
	}
	if len(got) == 0 || len(strings.Join(got, "")) != maxLineLength {
		t.Errorf("Run(ctx, COM5) emitted %d lines totalling %d bytes, want %d bytes", len(got), len(strings.Join(got, "")), maxLineLength)
	}
}

func TestRunFatalPortError(t *testing.T) {
	got, conn, err := runMonitor(t, []read{{data: "last words\npartial"}, {err: errors.New("device disconnected")}})
	if !errors.Is(err, ErrFatalPort) {
		t.Errorf("Run(ctx, COM5) = %v, want %v", err, ErrFatalPort)
	}
	if diff := cmp.Diff([]string{"last words", "partial"}, got); diff != "" {
		t.Errorf("Run(ctx, COM5) output diff (-want +got):\n%s", diff)
	}
	if !conn.closed {
		t.Errorf("Run(ctx, COM5) did not close the port")
	}
}

func TestRunOpenFailure(t *testing.T) {
	out := new(strings.Builder)
	m := New(cfg.Serial{MonitorBaudRate: 115200, ReadTimeout: time.Second}, out)
	m.open = func(name string, baudRate int) (serialport.Conn, error) {
		return nil, errors.New("port not found")
	}

	err := m.Run(context.Background(), "COM9")
	if !errors.Is(err, port.ErrOpen) {
		t.Errorf("Run(ctx, COM9) = %v, want %v", err, port.ErrOpen)
	}
	if out.Len() != 0 {
		t.Errorf("Run(ctx, COM9) wrote %q, want no output", out.String())
	}
}

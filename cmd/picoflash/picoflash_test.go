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

package main

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/pico-tools/picoflash/internal/monitor"
	"github.com/pico-tools/picoflash/internal/orchestrator"
	"github.com/pico-tools/picoflash/internal/reconnect"
)

func TestRootCommandArgs(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		wantImage string
		wantErr   bool
	}{
		{
			name:      "image",
			args:      []string{"build/blink.uf2"},
			wantImage: "build/blink.uf2",
		},
		{
			name:    "no_args",
			wantErr: true,
		},
		{
			name:    "too_many_args",
			args:    []string{"a.uf2", "b.uf2"},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got string
			cmd := newRootCommand(func(ctx context.Context, image string) error {
				got = image
				return nil
			})
			cmd.SetArgs(tc.args)

			err := cmd.ExecuteContext(context.Background())
			if (err != nil) != tc.wantErr {
				t.Fatalf("ExecuteContext() = %v, want error: %t", err, tc.wantErr)
			}
			if got != tc.wantImage {
				t.Errorf("ExecuteContext() ran with image %q, want %q", got, tc.wantImage)
			}
		})
	}
}

func TestRootCommandRunError(t *testing.T) {
	wantErr := errors.New("no device")
	cmd := newRootCommand(func(ctx context.Context, image string) error {
		return wantErr
	})
	cmd.SetArgs([]string{"blink.uf2"})

	if err := cmd.ExecuteContext(context.Background()); !errors.Is(err, wantErr) {
		t.Errorf("ExecuteContext() = %v, want %v", err, wantErr)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{
			name: "monitoring_interrupted",
			want: 0,
		},
		{
			name: "device_unplugged_while_monitoring",
			err:  fmt.Errorf("%w: read /dev/ttyACM0: device disconnected", monitor.ErrFatalPort),
			want: 0,
		},
		{
			name: "interrupted_before_monitoring",
			err:  context.Canceled,
			want: 1,
		},
		{
			name: "no_connection",
			err:  fmt.Errorf("%w: %v", orchestrator.ErrNoConnection, reconnect.ErrExhausted),
			want: 1,
		},
		{
			name: "bad_arguments",
			err:  errors.New("expected the path of a firmware image, got 0 arguments"),
			want: 1,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := exitCode(tc.err); got != tc.want {
				t.Errorf("exitCode(%v) = %d, want %d", tc.err, got, tc.want)
			}
		})
	}
}

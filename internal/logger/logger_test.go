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

package logger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/GoogleCloudPlatform/galog"
	"golang.org/x/exp/slices"
)

func TestNotAdditionalLoggers(t *testing.T) {
	opts := Options{
		Verbosity: 10,
		Level:     1,
	}
	ctx := context.Background()
	if err := Init(ctx, opts); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}

	if galog.MinVerbosity() != opts.Verbosity {
		t.Errorf("MinVerbosity() = %d, want %d", galog.MinVerbosity(), opts.Verbosity)
	}

	if galog.CurrentLevel() != galog.ErrorLevel {
		t.Errorf("Level() = %s, want %d", galog.CurrentLevel(), opts.Level)
	}
}

func TestFileAdditionalLogger(t *testing.T) {
	tests := []struct {
		name      string
		logLevel  int
		wantError bool
	}{
		{
			name:     "valid-log-level-1",
			logLevel: 1,
		},
		{
			name:     "valid-log-level-3",
			logLevel: 3,
		},
		{
			name:     "valid-log-level-4",
			logLevel: 4,
		},
		{
			name:      "invalid-log-level-5",
			logLevel:  5,
			wantError: true,
		},
	}

	ctx := context.Background()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			logFile := filepath.Join(t.TempDir(), "picoflash.log")
			opts := Options{
				Ident:     "picoflash",
				LogFile:   logFile,
				Verbosity: 10,
				Level:     tc.logLevel,
			}

			err := Init(ctx, opts)
			if (err != nil) != tc.wantError {
				t.Fatalf("Init() = %v, want error: %t", err, tc.wantError)
			}

			ids := galog.RegisteredBackendIDs()
			fileBackendID := "log-backend,file"
			if !slices.Contains(ids, fileBackendID) {
				t.Errorf("RegisteredBackendIDs() = %v, want %v", ids, fileBackendID)
			}
		})
	}
}

func TestMissingLogDir(t *testing.T) {
	opts := Options{
		LogFile: filepath.Join(t.TempDir(), "missing", "picoflash.log"),
		Level:   3,
	}
	if err := Init(context.Background(), opts); err == nil {
		t.Errorf("Init(%+v) succeeded, want error for a missing log directory", opts)
	}
}

func TestStderrAdditionalLogger(t *testing.T) {
	opts := Options{
		LogToStderr: true,
		Verbosity:   10,
		Level:       1,
	}
	ctx := context.Background()
	if err := Init(ctx, opts); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}

	ids := galog.RegisteredBackendIDs()
	stderrBackendID := "log-backend,stderr"
	if !slices.Contains(ids, stderrBackendID) {
		t.Errorf("RegisteredBackendIDs() = %v, want %v", ids, stderrBackendID)
	}
}

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

// Package flash writes a firmware image onto a bootloader volume.
package flash

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/GoogleCloudPlatform/galog"
	"github.com/pico-tools/picoflash/internal/cfg"
	"github.com/pico-tools/picoflash/internal/retry"
	"github.com/pico-tools/picoflash/internal/utils/file"
)

var (
	// ErrCopy is returned when the image could not be written to the volume.
	ErrCopy = errors.New("failed to copy firmware image")
	// ErrImageNotFound is returned when the image doesn't exist, the volume is
	// left untouched.
	ErrImageNotFound = fmt.Errorf("%w: file not found", ErrCopy)
)

// Writer copies firmware images onto bootloader volumes.
type Writer struct {
	settle time.Duration
	// sleep waits for the device to reboot, overridden in unit tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewWriter returns a Writer waiting the timing section's flash settle delay
// after every successful copy.
func NewWriter(timing cfg.Timing) *Writer {
	return &Writer{settle: timing.FlashSettle, sleep: retry.Sleep}
}

// Flash copies image onto volumePath and returns the number of bytes written.
// A directory volumePath receives the image under its base name. The device
// reboots once it sees the image, so a successful copy is followed by the
// settle delay.
func (w *Writer) Flash(ctx context.Context, image, volumePath string) (int64, error) {
	if !file.Exists(image, file.TypeFile) {
		return 0, fmt.Errorf("%w: %q", ErrImageNotFound, image)
	}

	size, err := file.Size(image)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCopy, err)
	}

	dst := volumePath
	if file.Exists(volumePath, file.TypeDir) {
		dst = filepath.Join(volumePath, filepath.Base(image))
	}

	galog.Infof("Copying file %s to %s. File size: %d bytes", image, volumePath, size)
	n, err := file.CopyFile(ctx, image, dst, file.Options{Perm: 0644})
	if err != nil {
		return n, fmt.Errorf("%w to %s: %v", ErrCopy, volumePath, err)
	}
	galog.Infof("File copied successfully, %d bytes written.", n)

	galog.Infof("Waiting for %s to reboot ...", volumePath)
	if err := w.sleep(ctx, w.settle); err != nil {
		return n, err
	}
	return n, nil
}

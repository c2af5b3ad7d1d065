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

//go:build linux

package volume

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v3/disk"
)

// byLabelDir is where udev links block devices by their file system label.
var byLabelDir = "/dev/disk/by-label"

// partitionLabel returns the file system label of p. It falls back to the
// mount point's base name which is how desktop automounters name the mount
// (i.e. /media/user/RPI-RP2).
func partitionLabel(p disk.PartitionStat) (string, error) {
	if label, ok := udevLabel(p.Device); ok {
		return label, nil
	}

	if p.Mountpoint == "" || p.Mountpoint == "/" {
		return "", fmt.Errorf("no label for %s", p.Device)
	}
	return filepath.Base(p.Mountpoint), nil
}

// udevLabel looks up device in the udev by-label directory.
func udevLabel(device string) (string, bool) {
	entries, err := os.ReadDir(byLabelDir)
	if err != nil {
		return "", false
	}

	want, err := filepath.EvalSymlinks(device)
	if err != nil {
		want = device
	}

	for _, e := range entries {
		target, err := filepath.EvalSymlinks(filepath.Join(byLabelDir, e.Name()))
		if err != nil {
			continue
		}
		if target == want {
			return unescapeLabel(e.Name()), true
		}
	}
	return "", false
}

// unescapeLabel decodes the \xNN escapes udev uses for unsafe characters.
func unescapeLabel(s string) string {
	if !strings.Contains(s, `\x`) {
		return s
	}

	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+3 < len(s) && s[i+1] == 'x' {
			if v, err := strconv.ParseUint(s[i+2:i+4], 16, 8); err == nil {
				b.WriteByte(byte(v))
				i += 3
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

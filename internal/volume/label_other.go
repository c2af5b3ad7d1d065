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

//go:build !linux && !windows

package volume

import (
	"fmt"
	"path/filepath"

	"github.com/shirou/gopsutil/v3/disk"
)

// partitionLabel returns the mount point's base name, removable volumes are
// mounted under their label (i.e. /Volumes/RPI-RP2).
func partitionLabel(p disk.PartitionStat) (string, error) {
	if p.Mountpoint == "" || p.Mountpoint == "/" {
		return "", fmt.Errorf("no label for %s", p.Device)
	}
	return filepath.Base(p.Mountpoint), nil
}

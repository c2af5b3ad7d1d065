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

//go:build windows

package volume

import (
	"fmt"
	"strings"

	"github.com/shirou/gopsutil/v3/disk"
	"golang.org/x/sys/windows"
)

// partitionLabel returns the volume label of the drive p is mounted as.
func partitionLabel(p disk.PartitionStat) (string, error) {
	root := p.Mountpoint
	if !strings.HasSuffix(root, `\`) {
		root += `\`
	}

	rootPtr, err := windows.UTF16PtrFromString(root)
	if err != nil {
		return "", fmt.Errorf("invalid drive root %q: %w", root, err)
	}

	name := make([]uint16, windows.MAX_PATH+1)
	if err := windows.GetVolumeInformation(rootPtr, &name[0], uint32(len(name)), nil, nil, nil, nil, 0); err != nil {
		return "", fmt.Errorf("GetVolumeInformation(%q) failed: %w", root, err)
	}
	return windows.UTF16ToString(name), nil
}

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

// Package volume finds the mass storage volume a device exposes while in
// bootloader mode.
package volume

import (
	"context"
	"errors"
	"fmt"

	"github.com/GoogleCloudPlatform/galog"
	"github.com/shirou/gopsutil/v3/disk"
	"golang.org/x/exp/slices"
)

// ErrNotFound is returned by Find when no mounted volume carries the wanted
// label.
var ErrNotFound = errors.New("volume not found")

// Volume is a mounted volume.
type Volume struct {
	// Path is where the volume can be written to, a mount point or a drive
	// root.
	Path string
	// Label is the volume label as reported by the OS.
	Label string
}

// Lister lists the currently mounted volumes.
type Lister interface {
	List(ctx context.Context) ([]Volume, error)
}

// Finder matches mounted volumes against a label.
type Finder struct {
	lister Lister
}

// NewFinder returns a Finder querying lister on every lookup.
func NewFinder(lister Lister) *Finder {
	return &Finder{lister: lister}
}

// Find returns the first mounted volume whose label is exactly label. It
// returns ErrNotFound if there is none, the lookup is never retried.
func (f *Finder) Find(ctx context.Context, label string) (Volume, error) {
	vols, err := f.lister.List(ctx)
	if err != nil {
		return Volume{}, fmt.Errorf("failed to list volumes: %w", err)
	}

	i := slices.IndexFunc(vols, func(v Volume) bool { return v.Label == label })
	if i < 0 {
		galog.V(2).Debugf("No volume labeled %q among %d mounted volumes", label, len(vols))
		return Volume{}, fmt.Errorf("%w: no volume labeled %q", ErrNotFound, label)
	}

	galog.Infof("The %q drive is mounted at: %s", label, vols[i].Path)
	return vols[i], nil
}

// System lists the volumes mounted on this machine.
type System struct {
	// partitions lists the mounted partitions, overridden in unit tests.
	partitions func(ctx context.Context, all bool) ([]disk.PartitionStat, error)
	// label resolves the label of a partition, overridden in unit tests.
	label func(p disk.PartitionStat) (string, error)
}

// NewSystem returns a Lister backed by the OS partition table.
func NewSystem() *System {
	return &System{
		partitions: disk.PartitionsWithContext,
		label:      partitionLabel,
	}
}

// List implements Lister.
func (s *System) List(ctx context.Context) ([]Volume, error) {
	parts, err := s.partitions(ctx, false)
	if err != nil {
		return nil, err
	}

	var res []Volume
	for _, p := range parts {
		label, err := s.label(p)
		if err != nil {
			galog.V(3).Debugf("Skipping partition %s mounted at %s: %v", p.Device, p.Mountpoint, err)
			continue
		}
		res = append(res, Volume{Path: p.Mountpoint, Label: label})
	}
	return res, nil
}

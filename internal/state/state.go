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

// Package state persists the small amount of data picoflash remembers between
// runs, namely the last serial port a device was found on.
package state

import (
	"bytes"
	"context"
	"fmt"

	"github.com/GoogleCloudPlatform/galog"
	"github.com/pico-tools/picoflash/internal/utils/file"
	"gopkg.in/ini.v1"
)

// LastPortKey is the key of the last serial port a device was resolved on.
const LastPortKey = "last_port"

// Store is a string key value store.
type Store interface {
	// Get returns the value of key and whether it was set.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set sets key to value.
	Set(ctx context.Context, key, value string) error
}

// FileStore is a Store backed by an ini file.
type FileStore struct {
	path string
}

// NewFileStore returns a FileStore reading and writing path. The file is only
// created on the first Set.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Get implements Store. A missing file is an empty store.
func (s *FileStore) Get(ctx context.Context, key string) (string, bool, error) {
	if !file.Exists(s.path, file.TypeFile) {
		galog.V(2).Debugf("State file %q doesn't exist yet", s.path)
		return "", false, nil
	}

	f, err := ini.Load(s.path)
	if err != nil {
		return "", false, fmt.Errorf("failed to load state file %q: %w", s.path, err)
	}

	sec := f.Section(ini.DefaultSection)
	if !sec.HasKey(key) {
		return "", false, nil
	}
	return sec.Key(key).String(), true, nil
}

// Set implements Store. Other keys already in the file are preserved.
func (s *FileStore) Set(ctx context.Context, key, value string) error {
	f := ini.Empty()
	if file.Exists(s.path, file.TypeFile) {
		loaded, err := ini.Load(s.path)
		if err != nil {
			galog.Warnf("Discarding unreadable state file %q: %v", s.path, err)
		} else {
			f = loaded
		}
	}

	f.Section(ini.DefaultSection).Key(key).SetValue(value)

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return fmt.Errorf("failed to serialize state: %w", err)
	}

	if err := file.SaferWriteFile(ctx, buf.Bytes(), s.path, file.Options{Perm: 0644}); err != nil {
		return fmt.Errorf("failed to write state file %q: %w", s.path, err)
	}

	galog.V(2).Debugf("Stored %s = %q in %q", key, value, s.path)
	return nil
}

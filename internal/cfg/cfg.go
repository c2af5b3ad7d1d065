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

// Package cfg is package responsible to loading and accessing the picoflash
// configuration.
package cfg

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/GoogleCloudPlatform/galog"
	"gopkg.in/ini.v1"
)

var (
	// instance is the single instance of configuration sections, once loaded this
	// package should always return it.
	instance *Sections

	// dataSources is a pointer to a data source loading/defining function, unit
	// tests will want to change this pointer to whatever makes sense to its
	// implementation.
	dataSources = defaultDataSources

	// userConfigDir is a reference to os.UserConfigDir(), it's overridden in
	// unit tests.
	userConfigDir = os.UserConfigDir

	// panicFc is a reference to panic(), it's overridden in unit tests.
	panicFc = panicWrapper

	// cfgMu protects the initialization and retrieval of config instance.
	cfgMu sync.RWMutex
)

const (
	// appDir is the per user directory name holding picoflash files.
	appDir = "picoflash"

	// defaultConfigTemplate is the default configuration template for the
	// configuration sections.
	defaultConfigTemplate = `
[Core]
log_level = 3
log_verbosity = 0
log_file =
state_file = {{.stateFile}}

[Device]
volume_label = RPI-RP2

[Serial]
reset_baud_rate = 1200
monitor_baud_rate = 115200
touch_timeout = 1s
read_timeout = 1s

[Discovery]
auto_scan = true
port_format = {{.portFormat}}
min_port = {{.minPort}}
max_port = 15
max_passes = 0
pass_interval = 0s

[Timing]
touch_settle = 3s
flash_settle = 5s
`
)

// Sections encapsulates all the configuration sections.
type Sections struct {
	// Core defines the logging and state persistence configuration.
	Core *Core `ini:"Core,omitempty"`

	// Device identifies the target device while in bootloader mode.
	Device *Device `ini:"Device,omitempty"`

	// Serial defines the serial port parameters of the touch reset and of the
	// monitor session.
	Serial *Serial `ini:"Serial,omitempty"`

	// Discovery defines how candidate ports are enumerated and how many times
	// the reconnect scan is repeated.
	Discovery *Discovery `ini:"Discovery,omitempty"`

	// Timing defines the settle delays inserted after actions expected to
	// re-enumerate the device.
	Timing *Timing `ini:"Timing,omitempty"`
}

// Core contains the configurations of Core section.
type Core struct {
	// LogLevel defines the log level, 1 error through 4 debug.
	LogLevel int `ini:"log_level,omitempty"`
	// LogVerbosity defines the verbosity of debug messages.
	LogVerbosity int `ini:"log_verbosity,omitempty"`
	// LogFile is an optional log file, empty disables file logging.
	LogFile string `ini:"log_file,omitempty"`
	// StateFile is where the last known port is persisted.
	StateFile string `ini:"state_file,omitempty"`
	// Version is the running binary version.
	Version string `ini:"-"`
}

// Device contains the configurations of Device section.
type Device struct {
	// VolumeLabel is the label the bootloader advertises for its volume.
	VolumeLabel string `ini:"volume_label,omitempty"`
}

// Serial contains the configurations of Serial section.
type Serial struct {
	// ResetBaudRate is the baud rate requesting a bootloader reset on open.
	ResetBaudRate int `ini:"reset_baud_rate,omitempty"`
	// MonitorBaudRate is the baud rate of the application's serial output.
	MonitorBaudRate int `ini:"monitor_baud_rate,omitempty"`
	// TouchTimeout is the read timeout applied to the touch connection.
	TouchTimeout time.Duration `ini:"touch_timeout,omitempty"`
	// ReadTimeout is the per read timeout of the monitor session.
	ReadTimeout time.Duration `ini:"read_timeout,omitempty"`
}

// Discovery contains the configurations of Discovery section.
type Discovery struct {
	// AutoScan enables the platform's active port registry lookup before the
	// numeric range scan.
	AutoScan bool `ini:"auto_scan,omitempty"`
	// PortFormat is the fmt format turning a port index into a port name.
	PortFormat string `ini:"port_format,omitempty"`
	// MinPort is the first index of the range scan.
	MinPort int `ini:"min_port,omitempty"`
	// MaxPort is the last index (inclusive) of the range scan.
	MaxPort int `ini:"max_port,omitempty"`
	// MaxPasses bounds the number of full scans, zero scans until a device
	// shows up.
	MaxPasses int `ini:"max_passes,omitempty"`
	// PassInterval is the pause between two full scans.
	PassInterval time.Duration `ini:"pass_interval,omitempty"`
}

// Timing contains the configurations of Timing section.
type Timing struct {
	// TouchSettle is the wait after each touch reset attempt.
	TouchSettle time.Duration `ini:"touch_settle,omitempty"`
	// FlashSettle is the wait after the firmware image was written.
	FlashSettle time.Duration `ini:"flash_settle,omitempty"`
}

func panicWrapper(args ...any) {
	panic(args)
}

func applyTemplate(templateStr string, data map[string]string, buffer io.Writer) error {
	t, err := template.New("").Parse(templateStr)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}
	err = t.Execute(buffer, data)
	if err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}

	return nil
}

// userDir returns the per user picoflash directory, or an empty string if the
// platform doesn't define one.
func userDir() string {
	dir, err := userConfigDir()
	if err != nil {
		galog.V(2).Debugf("No user config dir available: %v", err)
		return ""
	}
	return filepath.Join(dir, appDir)
}

// defaultConfigValues returns the values of the default config template.
func defaultConfigValues() map[string]string {
	stateFile := "picoflash_state.ini"
	if dir := userDir(); dir != "" {
		stateFile = filepath.Join(dir, "state.ini")
	}

	return map[string]string{
		"stateFile":  stateFile,
		"portFormat": defaultPortFormat,
		"minPort":    strconv.Itoa(defaultMinPort),
	}
}

func defaultDataSources(extraDefaults []byte) []any {
	var res []any

	if len(extraDefaults) > 0 {
		res = append(res, extraDefaults)
	}

	res = append(res, defaultConfigFile)
	if dir := userDir(); dir != "" {
		res = append(res, filepath.Join(dir, "picoflash.cfg"))
	}
	return res
}

// validate checks the invariants the discovery and monitor code rely on.
func (s *Sections) validate() error {
	if s.Device.VolumeLabel == "" {
		return fmt.Errorf("[Device] volume_label must not be empty")
	}
	if s.Serial.ResetBaudRate <= 0 || s.Serial.MonitorBaudRate <= 0 {
		return fmt.Errorf("[Serial] baud rates must be positive, got reset=%d monitor=%d", s.Serial.ResetBaudRate, s.Serial.MonitorBaudRate)
	}
	if s.Serial.ReadTimeout <= 0 {
		return fmt.Errorf("[Serial] read_timeout must be positive, got %v", s.Serial.ReadTimeout)
	}
	if s.Discovery.MinPort > s.Discovery.MaxPort {
		return fmt.Errorf("[Discovery] min_port (%d) is greater than max_port (%d)", s.Discovery.MinPort, s.Discovery.MaxPort)
	}
	if !strings.Contains(s.Discovery.PortFormat, "%d") {
		return fmt.Errorf("[Discovery] port_format %q has no %%d verb", s.Discovery.PortFormat)
	}
	if s.Discovery.MaxPasses < 0 {
		return fmt.Errorf("[Discovery] max_passes must not be negative, got %d", s.Discovery.MaxPasses)
	}
	return nil
}

// Load loads default configuration and the configuration from default config files.
func Load(extraDefaults []byte) error {
	cfgMu.Lock()
	defer cfgMu.Unlock()
	opts := ini.LoadOptions{
		Loose:       true,
		Insensitive: true,
	}

	values := defaultConfigValues()
	var buffer bytes.Buffer
	err := applyTemplate(defaultConfigTemplate, values, &buffer)
	if err != nil {
		return fmt.Errorf("unable to apply %v to config template: %w", values, err)
	}

	sources := dataSources(extraDefaults)
	galog.V(3).Debugf("Loading configuration from sources: %v", sources)
	cfg, err := ini.LoadSources(opts, buffer.Bytes(), sources...)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %+w", err)
	}

	sections := new(Sections)
	if err := cfg.MapTo(sections); err != nil {
		return fmt.Errorf("failed to map configuration to object: %w", err)
	}

	if err := sections.validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	instance = sections
	return nil
}

// Retrieve returns the configuration's instance previously loaded with Load().
func Retrieve() *Sections {
	cfgMu.RLock()
	defer cfgMu.RUnlock()
	if instance == nil {
		panicFc("cfg package was not initialized, Load() should be called in the early initialization code path")
	}
	return instance
}

// ToString returns the configuration's instance previously loaded with Load()
// as an ini formatted string.
func ToString() (string, error) {
	buffer := new(bytes.Buffer)

	cfg := ini.Empty()
	if err := ini.ReflectFrom(cfg, Retrieve()); err != nil {
		return "", fmt.Errorf("failed to reflect configuration to object: %w", err)
	}

	if _, err := cfg.WriteTo(buffer); err != nil {
		return "", fmt.Errorf("failed to write configuration to buffer: %w", err)
	}
	return strings.TrimSpace(buffer.String()), nil
}

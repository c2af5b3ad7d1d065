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

// Package main is the picoflash CLI: it flashes a firmware image onto a
// device in bootloader mode and then monitors the device's serial output.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/GoogleCloudPlatform/galog"
	"github.com/pico-tools/picoflash/internal/cfg"
	"github.com/pico-tools/picoflash/internal/flash"
	"github.com/pico-tools/picoflash/internal/logger"
	"github.com/pico-tools/picoflash/internal/monitor"
	"github.com/pico-tools/picoflash/internal/orchestrator"
	"github.com/pico-tools/picoflash/internal/port"
	"github.com/pico-tools/picoflash/internal/reconnect"
	"github.com/pico-tools/picoflash/internal/serialport"
	"github.com/pico-tools/picoflash/internal/state"
	"github.com/pico-tools/picoflash/internal/volume"
	"github.com/spf13/cobra"
)

const (
	// galogShutdownTimeout is the period of time we should wait for galog to
	// shutdown.
	galogShutdownTimeout = time.Second
)

var (
	// version is the version of the binary, set at build time.
	version = "dev"
)

// newRootCommand returns the picoflash command, run is called with the
// firmware image path.
func newRootCommand(run func(ctx context.Context, image string) error) *cobra.Command {
	return &cobra.Command{
		Use:   "picoflash <firmware.uf2>",
		Short: "Flash a firmware image and monitor the device's serial output.",
		Long: "Flash a firmware image onto a device exposing a bootloader volume, resetting it " +
			"into bootloader mode through its serial port if needed, then print the serial " +
			"output of the rebooted device until interrupted.",
		Example: "picoflash build/blink.uf2",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected the path of a firmware image, got %d arguments", len(args))
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), args[0])
		},
	}
}

// flashAndMonitor wires the components from the loaded configuration and
// runs the orchestrator.
func flashAndMonitor(ctx context.Context, image string) error {
	conf := cfg.Retrieve()
	label := conf.Device.VolumeLabel

	finder := volume.NewFinder(volume.NewSystem())
	prober := port.NewProber(*conf.Serial, *conf.Timing)
	store := state.NewFileStore(conf.Core.StateFile)
	ports := port.NewEnumerator(*conf.Discovery, port.RegistryFunc(serialport.ActivePorts))

	o := orchestrator.New(label, orchestrator.Components{
		Finder:  finder,
		Prober:  prober,
		Waiter:  reconnect.NewWaiter(label, *conf.Discovery, ports, prober, finder, store),
		Flasher: flash.NewWriter(*conf.Timing),
		Monitor: monitor.New(*conf.Serial, os.Stdout),
		Store:   store,
	})
	return o.Run(ctx, image)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	if err := cfg.Load(nil); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg.Retrieve().Core.Version = version

	logOpts := logger.Options{
		Ident:       filepath.Base(os.Args[0]),
		LogToStderr: true,
		Level:       cfg.Retrieve().Core.LogLevel,
		Verbosity:   cfg.Retrieve().Core.LogVerbosity,
		LogFile:     cfg.Retrieve().Core.LogFile,
	}

	if err := logger.Init(ctx, logOpts); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	galog.V(1).Debugf("picoflash %s starting", version)

	code := exitCode(newRootCommand(flashAndMonitor).ExecuteContext(ctx))

	stop()
	galog.Shutdown(galogShutdownTimeout)
	os.Exit(code)
}

// exitCode reports err and maps it to the process exit code. Losing the port
// while monitoring ends a normal session, the device was reached.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, monitor.ErrFatalPort):
		galog.Warnf("Serial connection closed: %v", err)
		return 0
	case errors.Is(err, context.Canceled):
		galog.Infof("Interrupted.")
		return 1
	default:
		galog.Errorf("%v", err)
		return 1
	}
}

// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	jtagbridge "github.com/ZaparooProject/go-jtagbridge"
	"github.com/ZaparooProject/go-jtagbridge/gpio/periph"
	"github.com/ZaparooProject/go-jtagbridge/transport/uart"
	"github.com/spf13/cobra"
)

type config struct {
	devicePath    string
	sessionLogDir string
	pins          jtagbridge.PinSet
	serial        uart.Config
	pause         time.Duration
	statsInterval time.Duration
	debug         bool
	trace         bool
	sessionLog    bool
	mlock         bool
}

// gpioBackend is a GPIO capability that owns hardware resources.
type gpioBackend interface {
	jtagbridge.GPIO
	Close() error
}

// bridgeTransport is a transport whose receive buffer can be discarded
// before the loop starts.
type bridgeTransport interface {
	jtagbridge.Transport
	FlushInput() error
}

// Hardware constructors, replaced in tests.
var (
	openGPIO = func() (gpioBackend, error) {
		return periph.Open()
	}
	openTransport = func(path string, cfg uart.Config) (bridgeTransport, error) {
		return uart.New(path, cfg)
	}
)

func defaultConfig() *config {
	return &config{
		devicePath: "/dev/ttyS0",
		pins:       jtagbridge.DefaultPinSet(),
		serial:     uart.DefaultConfig(),
	}
}

func newRootCmd() *cobra.Command {
	cfg := defaultConfig()
	var tck, tdi, tdo, tms, reset, sel int

	cmd := &cobra.Command{
		Use:   "jtagbridge",
		Short: "Serial-to-JTAG bridge over GPIO",
		Long: `jtagbridge drives TCK, TMS and TDI and samples TDO on GPIO lines, taking
one command byte at a time from a serial port and answering each with '0'
or '1' for the state of TDO.

Command bytes:
  0x40-0x4F  set TDI (bit0), TMS (bit1) and TCK (bit2) directly
  0x60-0x6F  set TDI (bit0) and TMS (bit1), then pulse TCK once
  0x00       ignored

Examples:
  jtagbridge --device /dev/ttyS0 --baud 115200
  jtagbridge --tck 4 --tms 17 --tdi 27 --tdo 22 --sel -1 --trace`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg.pins = jtagbridge.PinSet{
				TCK:   jtagbridge.Line(tck),
				TDI:   jtagbridge.Line(tdi),
				TDO:   jtagbridge.Line(tdo),
				TMS:   jtagbridge.Line(tms),
				Reset: jtagbridge.Line(reset),
				Sel:   jtagbridge.Line(sel),
			}
			return runBridge(cmd.Context(), cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	defaults := jtagbridge.DefaultPinSet()
	flags := cmd.Flags()
	flags.StringVarP(&cfg.devicePath, "device", "d", cfg.devicePath, "serial device the client is attached to")
	flags.IntVarP(&cfg.serial.BaudRate, "baud", "b", cfg.serial.BaudRate,
		"baud rate (4800, 9600, 19200, 38400 or 115200)")
	flags.DurationVar(&cfg.serial.ReadTimeout, "read-timeout", cfg.serial.ReadTimeout,
		"serial read timeout, 0 blocks indefinitely")
	flags.IntVar(&tck, "tck", int(defaults.TCK), "GPIO line for TCK")
	flags.IntVar(&tdi, "tdi", int(defaults.TDI), "GPIO line for TDI")
	flags.IntVar(&tdo, "tdo", int(defaults.TDO), "GPIO line for TDO")
	flags.IntVar(&tms, "tms", int(defaults.TMS), "GPIO line for TMS")
	flags.IntVar(&reset, "reset", int(defaults.Reset), "GPIO line for RESET (-1 if not wired)")
	flags.IntVar(&sel, "sel", int(defaults.Sel), "GPIO line held high to select the target (-1 if not wired)")
	flags.DurationVar(&cfg.pause, "pause", 0, "extra delay after each clock edge for slow targets")
	flags.DurationVar(&cfg.statsInterval, "stats-interval", 0, "print activity counters at this interval")
	flags.BoolVar(&cfg.trace, "trace", false, "write a per-command trace to stdout")
	flags.BoolVar(&cfg.debug, "debug", false, "enable debug output")
	flags.BoolVar(&cfg.sessionLog, "session-log", false, "write a timestamped session log")
	flags.StringVar(&cfg.sessionLogDir, "session-log-dir", "", "directory for the session log")
	flags.BoolVar(&cfg.mlock, "mlock", false, "lock process memory to avoid page-fault stalls")

	cmd.AddCommand(newPortsCmd(), newIDCodeCmd())
	return cmd
}

func runBridge(parent context.Context, cfg *config, stdout, stderr io.Writer) error {
	if parent == nil {
		parent = context.Background()
	}
	if cfg.debug {
		jtagbridge.SetDebugEnabled(true)
	}
	if cfg.sessionLog {
		path, err := jtagbridge.InitSessionLog(cfg.sessionLogDir)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(stderr, "Session log: %s\n", path)
		defer func() {
			_ = jtagbridge.CloseSessionLog()
		}()
	}
	if cfg.mlock {
		if err := lockMemory(); err != nil {
			jtagbridge.Warnf("could not lock memory: %v", err)
		}
	}

	bridge, cleanup, err := setup(cfg, stdout)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// An indefinite serial read only returns once the port is closed.
	go func() {
		<-ctx.Done()
		_ = bridge.transport.Close()
	}()

	if cfg.statsInterval > 0 {
		go reportStats(ctx, bridge.Bridge, cfg.statsInterval, stderr)
	}

	_, _ = fmt.Fprintf(stderr, "Serving JTAG on %s (%s)\n", cfg.devicePath, cfg.pins)
	err = bridge.Run(ctx)
	_, _ = fmt.Fprintf(stderr, "Stopped: %s\n", bridge.Stats())
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

type servingBridge struct {
	*jtagbridge.Bridge
	transport bridgeTransport
}

// setup brings up GPIO and the serial port. Any failure here is an init
// failure and the process exits before serving.
func setup(cfg *config, stdout io.Writer) (*servingBridge, func(), error) {
	gpio, err := openGPIO()
	if err != nil {
		return nil, nil, err
	}

	driver, err := jtagbridge.NewPinDriver(gpio, cfg.pins)
	if err != nil {
		_ = gpio.Close()
		return nil, nil, err
	}
	if err := driver.Configure(); err != nil {
		_ = gpio.Close()
		return nil, nil, err
	}

	transport, err := openTransport(cfg.devicePath, cfg.serial)
	if err != nil {
		_ = gpio.Close()
		return nil, nil, err
	}
	if err := transport.FlushInput(); err != nil {
		jtagbridge.Warnf("%v", err)
	}

	seq := jtagbridge.NewSequencer(driver, jtagbridge.WithPause(jtagbridge.PauseFor(cfg.pause)))
	opts := []jtagbridge.BridgeOption{}
	if cfg.trace {
		opts = append(opts, jtagbridge.WithTrace(stdout))
	}

	cleanup := func() {
		if err := transport.Close(); err != nil {
			jtagbridge.Warnf("failed to close transport: %v", err)
		}
		if err := gpio.Close(); err != nil {
			jtagbridge.Warnf("failed to release GPIO: %v", err)
		}
	}
	return &servingBridge{
		Bridge:    jtagbridge.NewBridge(transport, seq, opts...),
		transport: transport,
	}, cleanup, nil
}

func reportStats(ctx context.Context, bridge *jtagbridge.Bridge, interval time.Duration, w io.Writer) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = fmt.Fprintf(w, "stats: %s\n", bridge.Stats())
		}
	}
}

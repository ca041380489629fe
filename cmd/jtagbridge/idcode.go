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
	"fmt"
	"io"
	"time"

	"github.com/ZaparooProject/go-jtagbridge/client"
	"github.com/ZaparooProject/go-jtagbridge/transport/uart"
	"github.com/spf13/cobra"
	"go.bug.st/serial"
)

// openClientPort opens the client side of a bridge link. Replaced in tests.
var openClientPort = func(path string, baud int, timeout time.Duration) (io.ReadWriteCloser, error) {
	port, err := serial.Open(path, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", path, err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to flush %s: %w", path, err)
	}
	return port, nil
}

func newIDCodeCmd() *cobra.Command {
	var (
		device  string
		baud    int
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "idcode",
		Short: "Read the target IDCODE through a remote bridge",
		Long: `idcode acts as the client: it opens the serial port wired to a running
bridge, resets the TAP and shifts out the 32-bit IDCODE of the first device
in the chain. Use it to check the link and the wiring end to end.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := uart.ResolveBaudRate(baud); err != nil {
				return err
			}
			port, err := openClientPort(device, baud, timeout)
			if err != nil {
				return err
			}
			defer func() {
				_ = port.Close()
			}()

			id, err := client.New(port).ReadIDCode()
			if err != nil {
				return fmt.Errorf("failed to read IDCODE: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "IDCODE: 0x%08X (manufacturer 0x%03X, part 0x%04X, version %d)\n",
				id, (id>>1)&0x7FF, (id>>12)&0xFFFF, id>>28)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&device, "device", "d", "/dev/ttyUSB0", "serial port connected to the bridge")
	flags.IntVarP(&baud, "baud", "b", uart.DefaultConfig().BaudRate, "baud rate")
	flags.DurationVar(&timeout, "timeout", time.Second, "time to wait for each response")
	return cmd
}

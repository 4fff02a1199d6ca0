// Copyright 2026 The gnbus Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nv-iot/gnbus/bus"
)

var (
	portName string
	baudRate int
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:     "gnbusd",
	Short:   "RS-485 master/slave bus daemon",
	Long:    "gnbusd drives a gnbus Engine over a real serial port, as either the bus master or a slave node.",
	Version: "0.1.0",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "serial port device (e.g. /dev/ttyUSB0)")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", bus.DefaultBaudRate, "baud rate")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "debug, info, warn, or error")

	rootCmd.AddCommand(masterCmd)
	rootCmd.AddCommand(slaveCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func requirePort() error {
	if portName == "" {
		return fmt.Errorf("--port is required")
	}
	return nil
}

func newLogger() bus.Logger {
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	return bus.NewSlogLogger(level)
}

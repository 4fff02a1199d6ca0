// Copyright 2026 The gnbus Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nv-iot/gnbus/bus"
	"github.com/nv-iot/gnbus/transport"
)

var (
	masterMaxSlaveAddress uint8
	masterPollInterval    time.Duration
	masterMaxPerSlave     uint8
	masterBlockingMode    string
	masterIgnoreInactive  bool
	masterCommitReceive   bool
)

var masterCmd = &cobra.Command{
	Use:   "master",
	Short: "run as bus master, polling slaves for pushed data",
	RunE:  runMaster,
}

func init() {
	masterCmd.Flags().Uint8Var(&masterMaxSlaveAddress, "max-slave-address", bus.DefaultMaxSlaveAddress, "highest valid slave address")
	masterCmd.Flags().DurationVar(&masterPollInterval, "poll-interval", 100*time.Millisecond, "delay between poll rounds")
	masterCmd.Flags().Uint8Var(&masterMaxPerSlave, "max-per-slave", 1, "max push messages drained per slave per round")
	masterCmd.Flags().StringVar(&masterBlockingMode, "blocking-mode", "nearly-async", "synchronous, nearly-async, or fully-async")
	masterCmd.Flags().BoolVar(&masterIgnoreInactive, "ignore-inactive", true, "suppress sends to unresponsive addresses")
	masterCmd.Flags().BoolVar(&masterCommitReceive, "commit-receive", false, "require commit-receive on every poll")
}

func parseBlockingMode(s string) (bus.BlockingMode, error) {
	switch s {
	case "synchronous":
		return bus.Synchronous, nil
	case "nearly-async":
		return bus.NearlyAsynchronous, nil
	case "fully-async":
		return bus.FullyAsynchronous, nil
	default:
		return 0, fmt.Errorf("unknown blocking mode %q", s)
	}
}

func runMaster(cmd *cobra.Command, args []string) error {
	if err := requirePort(); err != nil {
		return err
	}
	mode, err := parseBlockingMode(masterBlockingMode)
	if err != nil {
		return err
	}

	sp := transport.NewSerialPort(portName)
	de := transport.NewRTSDELine(sp)

	cfg := bus.DefaultConfig(bus.RoleMaster)
	cfg.BaudRate = baudRate
	cfg.MaxSlaveAddress = masterMaxSlaveAddress
	cfg.BlockingMode = mode
	cfg.IgnoreInactiveNodes = &masterIgnoreInactive

	logger := newLogger()
	engine := bus.New(bus.RoleMaster, sp,
		bus.WithDELine(de),
		bus.WithLogger(logger),
		bus.WithConfig(cfg),
	)
	engine.AttachCatchAll(func(service, subservice byte, payload []byte, size int, source byte) {
		logger.Info("push received", "source", source, "service", service, "subservice", subservice, "size", size)
	})

	if err := engine.Begin(); err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer sp.Close()

	busFacade := bus.NewBus(engine)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go busFacade.RunLoop(ctx, 2*time.Millisecond)

	ticker := time.NewTicker(masterPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := busFacade.PollRange(0, masterMaxSlaveAddress, masterMaxPerSlave, masterCommitReceive, true); err != nil {
				logger.Warn("poll range failed", "err", err, "com_error", busFacade.LastComError().Kind)
			}
		}
	}
}

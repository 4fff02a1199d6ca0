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
	slaveAddress     uint8
	slavePushInterval time.Duration
	slaveEchoService  uint8
)

var slaveCmd = &cobra.Command{
	Use:   "slave",
	Short: "run as a bus slave node, answering the master and optionally pushing synthetic data",
	RunE:  runSlave,
}

func init() {
	slaveCmd.Flags().Uint8Var(&slaveAddress, "address", 1, "this node's bus address")
	slaveCmd.Flags().DurationVar(&slavePushInterval, "push-interval", 0, "period between synthetic push messages (0 disables)")
	slaveCmd.Flags().Uint8Var(&slaveEchoService, "echo-service", 1, "service number that echoes its payload back as a push")
}

func runSlave(cmd *cobra.Command, args []string) error {
	if err := requirePort(); err != nil {
		return err
	}

	sp := transport.NewSerialPort(portName)
	de := transport.NewRTSDELine(sp)

	cfg := bus.DefaultConfig(bus.RoleSlave)
	cfg.BaudRate = baudRate
	cfg.OwnAddress = slaveAddress

	logger := newLogger()
	engine := bus.New(bus.RoleSlave, sp,
		bus.WithDELine(de),
		bus.WithLogger(logger),
		bus.WithConfig(cfg),
	)

	if err := engine.AttachService(slaveEchoService, func(subservice byte, payload []byte, size int, source byte) {
		logger.Info("echo service invoked", "subservice", subservice, "size", size)
		if err := engine.Push(slaveEchoService, subservice, payload, false); err != nil {
			logger.Warn("echo push failed", "err", err)
		}
	}); err != nil {
		return fmt.Errorf("attach service: %w", err)
	}
	engine.AttachCatchAll(func(service, subservice byte, payload []byte, size int, source byte) {
		logger.Info("frame received", "service", service, "subservice", subservice, "size", size)
	})

	if err := engine.Begin(); err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer sp.Close()

	busFacade := bus.NewBus(engine)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go busFacade.RunLoop(ctx, 2*time.Millisecond)

	if slavePushInterval <= 0 {
		<-ctx.Done()
		return nil
	}

	counter := byte(0)
	ticker := time.NewTicker(slavePushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			counter++
			if err := busFacade.Push(slaveEchoService, 0, []byte{counter}, false); err != nil {
				logger.Warn("synthetic push failed", "err", err)
			}
		}
	}
}

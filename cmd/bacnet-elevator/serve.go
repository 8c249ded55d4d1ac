// Copyright 2025 Edgeo SCADA
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
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/edgeo/drivers/elevator/bacnet"
	"github.com/edgeo/drivers/elevator/internal/config"
	"github.com/edgeo/drivers/elevator/internal/console"
	"github.com/edgeo/drivers/elevator/internal/database"
	"github.com/edgeo/drivers/elevator/internal/server"
)

var serveNoConsole bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the example elevator group as a BACnet/IP device",
	Long: `Serve declares the example device with its machine rooms, elevator
groups, escalators and lifts, announces it with an I-Am and answers BACnet
requests until interrupted.

The operator console reads single key presses from the terminal:
  Left/Right   select a lift
  F P D C S    change the selected lift
  M            toggle the group mode of the lift group
  G            print the global status
  Q            quit

Examples:
  # Serve on the standard port
  bacnet-elevator serve

  # Serve another instance next to a running device
  bacnet-elevator serve -d 389002 --device-name "Second group" --reuse-port

  # Run without a terminal
  ELEVATOR_LOG_LEVEL=debug bacnet-elevator serve --no-console`,

	RunE: runServe,
}

func init() {
	def := config.Default()

	serveCmd.Flags().String("device-name", def.DeviceName, "Device object name")
	serveCmd.Flags().String("bind", def.Bind, "Local IP address to bind to")
	serveCmd.Flags().Bool("reuse-port", def.ReusePort, "Bind with SO_REUSEPORT")
	serveCmd.Flags().String("ack-source", def.AckSource, "Acknowledgment source accepted by AcknowledgeAlarm")
	serveCmd.Flags().String("recipient", def.Recipient, "Notification class recipient (ip:port)")
	serveCmd.Flags().Duration("poll-interval", def.PollInterval, "Wait between polls when no frame is pending")
	serveCmd.Flags().BoolVar(&serveNoConsole, "no-console", false, "Do not read keys from the terminal")

	viper.BindPFlag(config.KeyDeviceName, serveCmd.Flags().Lookup("device-name"))
	viper.BindPFlag(config.KeyBind, serveCmd.Flags().Lookup("bind"))
	viper.BindPFlag(config.KeyReusePort, serveCmd.Flags().Lookup("reuse-port"))
	viper.BindPFlag(config.KeyAckSource, serveCmd.Flags().Lookup("ack-source"))
	viper.BindPFlag(config.KeyRecipient, serveCmd.Flags().Lookup("recipient"))
	viper.BindPFlag(config.KeyPollInterval, serveCmd.Flags().Lookup("poll-interval"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	recipient, err := cfg.RecipientDestination()
	if err != nil {
		return err
	}

	db := database.New(
		database.WithDevice(cfg.DeviceInstance, cfg.DeviceName),
		database.WithRecipient(recipient),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := bacnet.ListenUDP(ctx, cfg.Address(), cfg.ReusePort)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Address(), err)
	}
	udp := server.NewUDP(conn, cfg.Port, logger)
	defer udp.Close()

	stack := bacnet.NewStack(
		bacnet.WithStackLogger(logger),
		bacnet.WithPollInterval(cfg.PollInterval),
		bacnet.WithRevisions(version, version),
	)
	srv := server.New(db, stack, cfg, logger)
	if err := srv.Setup(udp); err != nil {
		return err
	}
	if err := srv.Announce(); err != nil {
		return err
	}

	logger.Info("serving",
		slog.String("address", udp.LocalAddr().String()),
		slog.Bool("console", !serveNoConsole),
	)

	if serveNoConsole {
		return ignoreCanceled(stack.Run(ctx))
	}

	done := make(chan error, 1)
	go func() {
		done <- stack.Run(ctx)
	}()

	c := console.New(db, stack, os.Stdout, console.WithLogger(logger))
	consoleErr := c.Run(ctx)
	stop()

	if err := ignoreCanceled(<-done); err != nil {
		return err
	}
	return ignoreCanceled(consoleErr)
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

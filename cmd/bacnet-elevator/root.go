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
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/edgeo/drivers/elevator/bacnet"
	"github.com/edgeo/drivers/elevator/internal/config"
)

const version = "1.0.0"

var (
	cfgFile      string
	envFile      string
	host         string
	port         int
	deviceID     uint32
	timeout      time.Duration
	retries      int
	outputFmt    string
	verbose      bool
	localAddress string

	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "bacnet-elevator",
	Short: "A BACnet/IP elevator group device and client",
	Long: `bacnet-elevator serves an example group of lifts and escalators as a
BACnet/IP device, and reads or writes the properties of such a device.

Settings are read from flags, from ELEVATOR_* environment variables (a .env
file in the working directory is loaded first) and from the config file.

Examples:
  # Serve the example device with the operator console
  bacnet-elevator serve

  # Discover devices on the network
  bacnet-elevator scan

  # Read the position of lift C
  bacnet-elevator read -H 127.0.0.1 -O lift:2001 -P car-position

  # Make a car call to floor 5 through the front door of lift C
  bacnet-elevator write -H 127.0.0.1 -O lift:2001 -P making-car-call --index 1 -V 5

  # Call a lift going up from the lobby
  bacnet-elevator landing-call -H 127.0.0.1 --floor 1 --direction up`,

	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		deviceID = viper.GetUint32(config.KeyDeviceInstance)
		port = viper.GetInt(config.KeyPort)

		cfg := config.Default()
		cfg.LogLevel = viper.GetString(config.KeyLogLevel)
		logLevel, err := cfg.Level()
		if err != nil {
			return err
		}
		if verbose {
			logLevel = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: logLevel,
		}))

		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	def := config.Default()

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.bacnet-elevator.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "file of ELEVATOR_* variables loaded at startup")
	rootCmd.PersistentFlags().StringVarP(&host, "host", "H", "", "Target device IP address (discovered with Who-Is when empty)")
	rootCmd.PersistentFlags().IntVarP(&port, "port", "p", def.Port, "BACnet/IP port")
	rootCmd.PersistentFlags().Uint32VarP(&deviceID, "device", "d", def.DeviceInstance, "Device instance ID")
	rootCmd.PersistentFlags().DurationVarP(&timeout, "timeout", "t", 3*time.Second, "Request timeout")
	rootCmd.PersistentFlags().IntVar(&retries, "retries", 3, "Number of retries")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table", "Output format (table, json, csv, yaml, raw)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().String("log-level", def.LogLevel, "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&localAddress, "local", "", "Local address to bind to (e.g., 0.0.0.0:47808)")

	// Bind flags to viper
	viper.BindPFlag(config.KeyPort, rootCmd.PersistentFlags().Lookup("port"))
	viper.BindPFlag(config.KeyDeviceInstance, rootCmd.PersistentFlags().Lookup("device"))
	viper.BindPFlag(config.KeyLogLevel, rootCmd.PersistentFlags().Lookup("log-level"))

	// Add subcommands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(writeCmd)
	rootCmd.AddCommand(landingCallCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	if err := config.LoadEnvFile(envFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		viper.AddConfigPath(home)
		viper.SetConfigName(".bacnet-elevator")
		viper.SetConfigType("yaml")
	}

	config.SetDefaults(viper.GetViper())
	config.BindEnv(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil {
		if verbose {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}

// createClient creates a BACnet client with current configuration
func createClient() (*bacnet.Client, error) {
	opts := []bacnet.Option{
		bacnet.WithTimeout(timeout),
		bacnet.WithRetries(retries),
		bacnet.WithBroadcastPort(port),
		bacnet.WithLogger(logger),
	}

	if localAddress != "" {
		opts = append(opts,
			bacnet.WithLocalAddress(localAddress),
			bacnet.WithReusePort(viper.GetBool(config.KeyReusePort)),
		)
	}

	return bacnet.NewClient(opts...)
}

// connectClient creates and connects a client. The target device is
// registered at host:port when a host is given, so no Who-Is is needed.
func connectClient(ctx context.Context) (*bacnet.Client, error) {
	client, err := createClient()
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}

	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	if host != "" {
		if err := client.RegisterDevice(deviceID, net.JoinHostPort(host, strconv.Itoa(port))); err != nil {
			client.Close()
			return nil, err
		}
	}
	return client, nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("bacnet-elevator version %s\n", version)
	},
}

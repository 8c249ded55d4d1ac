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

// Package config holds the settings of the elevator device server.
//
// Settings come from viper, so a value may be set by a flag, an
// ELEVATOR_* environment variable, a .env file or the YAML config file,
// in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/edgeo/drivers/elevator/bacnet"
	"github.com/edgeo/drivers/elevator/internal/database"
)

// EnvPrefix is the prefix of the environment variables read by Load.
const EnvPrefix = "ELEVATOR"

// Keys of the settings, as used by flags, the config file and viper.
const (
	KeyDeviceInstance = "device-instance"
	KeyDeviceName     = "device-name"
	KeyBind           = "bind"
	KeyPort           = "port"
	KeyReusePort      = "reuse-port"
	KeyAckSource      = "ack-source"
	KeyRecipient      = "recipient"
	KeyLogLevel       = "log-level"
	KeyPollInterval   = "poll-interval"
)

// Config is the server configuration.
type Config struct {
	DeviceInstance uint32        `mapstructure:"device-instance" yaml:"device-instance"`
	DeviceName     string        `mapstructure:"device-name" yaml:"device-name"`
	Bind           string        `mapstructure:"bind" yaml:"bind"`
	Port           int           `mapstructure:"port" yaml:"port"`
	ReusePort      bool          `mapstructure:"reuse-port" yaml:"reuse-port"`
	AckSource      string        `mapstructure:"ack-source" yaml:"ack-source"`
	Recipient      string        `mapstructure:"recipient" yaml:"recipient"`
	LogLevel       string        `mapstructure:"log-level" yaml:"log-level"`
	PollInterval   time.Duration `mapstructure:"poll-interval" yaml:"poll-interval"`
}

// Default returns the configuration of the example device.
func Default() Config {
	return Config{
		DeviceInstance: database.DeviceInstance,
		DeviceName:     database.DeviceName,
		Bind:           "0.0.0.0",
		Port:           bacnet.DefaultPort,
		ReusePort:      true,
		AckSource:      "TestDevice",
		Recipient:      "192.168.1.84:47808",
		LogLevel:       "info",
		PollInterval:   10 * time.Millisecond,
	}
}

// SetDefaults registers the defaults with v so that environment
// variables are picked up for every key.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault(KeyDeviceInstance, d.DeviceInstance)
	v.SetDefault(KeyDeviceName, d.DeviceName)
	v.SetDefault(KeyBind, d.Bind)
	v.SetDefault(KeyPort, d.Port)
	v.SetDefault(KeyReusePort, d.ReusePort)
	v.SetDefault(KeyAckSource, d.AckSource)
	v.SetDefault(KeyRecipient, d.Recipient)
	v.SetDefault(KeyLogLevel, d.LogLevel)
	v.SetDefault(KeyPollInterval, d.PollInterval)
}

// BindEnv makes v read ELEVATOR_* variables, with dashes in keys
// replaced by underscores.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
}

// LoadEnvFile loads a .env file into the process environment. Variables
// already set are kept. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: load %s: %w", path, err)
	}
	return nil
}

// Load decodes the configuration held by v and validates it.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.DeviceInstance >= bacnet.NoInstance {
		return fmt.Errorf("config: device instance %d out of range", c.DeviceInstance)
	}
	if c.DeviceName == "" {
		return errors.New("config: empty device name")
	}
	if net.ParseIP(c.Bind) == nil {
		return fmt.Errorf("config: invalid bind address %q", c.Bind)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: port %d out of range", c.Port)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if _, err := c.RecipientDestination(); err != nil {
		return err
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("config: poll interval must be positive, got %s", c.PollInterval)
	}
	return nil
}

// Address returns the UDP address the server binds to.
func (c Config) Address() string {
	return net.JoinHostPort(c.Bind, strconv.Itoa(c.Port))
}

// Level returns the slog level named by LogLevel.
func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return level, fmt.Errorf("config: log level: %w", err)
	}
	return level, nil
}

// RecipientDestination returns the notification class recipient for the
// configured ip:port.
func (c Config) RecipientDestination() (bacnet.Destination, error) {
	host, portStr, err := net.SplitHostPort(c.Recipient)
	if err != nil {
		return bacnet.Destination{}, fmt.Errorf("config: recipient: %w", err)
	}
	ip := net.ParseIP(host).To4()
	if ip == nil {
		return bacnet.Destination{}, fmt.Errorf("config: recipient %q is not an IPv4 address", host)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return bacnet.Destination{}, fmt.Errorf("config: recipient port: %w", err)
	}

	dest := database.DefaultRecipient()
	dest.MAC = []byte{ip[0], ip[1], ip[2], ip[3], byte(port >> 8), byte(port)}
	return dest, nil
}

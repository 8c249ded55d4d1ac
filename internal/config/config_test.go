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

package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Address() != "0.0.0.0:47808" {
		t.Errorf("Expected 0.0.0.0:47808, got %s", cfg.Address())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
	}{
		{"instance", func(c *Config) { c.DeviceInstance = 4194303 }},
		{"name", func(c *Config) { c.DeviceName = "" }},
		{"bind", func(c *Config) { c.Bind = "localhost" }},
		{"port zero", func(c *Config) { c.Port = 0 }},
		{"port too large", func(c *Config) { c.Port = 70000 }},
		{"log level", func(c *Config) { c.LogLevel = "chatty" }},
		{"recipient without port", func(c *Config) { c.Recipient = "192.168.1.84" }},
		{"recipient ipv6", func(c *Config) { c.Recipient = "[::1]:47808" }},
		{"recipient port", func(c *Config) { c.Recipient = "10.0.0.1:99999" }},
		{"poll interval", func(c *Config) { c.PollInterval = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("Expected an error")
			}
		})
	}
}

func TestRecipientDestination(t *testing.T) {
	cfg := Default()
	cfg.Recipient = "10.1.2.3:47809"

	dest, err := cfg.RecipientDestination()
	if err != nil {
		t.Fatalf("RecipientDestination: %v", err)
	}
	expected := []byte{10, 1, 2, 3, 0xBA, 0xC1}
	if !bytes.Equal(dest.MAC, expected) {
		t.Errorf("Expected %X, got %X", expected, dest.MAC)
	}
	if dest.ProcessIdentifier != 1 || dest.IssueConfirmed {
		t.Errorf("Unexpected destination %+v", dest)
	}
}

func TestLevel(t *testing.T) {
	tests := []struct {
		name     string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
	}

	for _, tt := range tests {
		cfg := Config{LogLevel: tt.name}
		level, err := cfg.Level()
		if err != nil {
			t.Fatalf("Level(%s): %v", tt.name, err)
		}
		if level != tt.expected {
			t.Errorf("Expected %v, got %v", tt.expected, level)
		}
	}
}

func TestLoad(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set(KeyDeviceInstance, 12)
	v.Set(KeyPollInterval, "50ms")

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DeviceInstance != 12 {
		t.Errorf("Expected instance 12, got %d", cfg.DeviceInstance)
	}
	if cfg.PollInterval != 50*time.Millisecond {
		t.Errorf("Expected 50ms, got %s", cfg.PollInterval)
	}
	if cfg.AckSource != "TestDevice" {
		t.Errorf("Expected the default ack source, got %q", cfg.AckSource)
	}

	v.Set(KeyPort, -1)
	if _, err := Load(v); err == nil {
		t.Errorf("Expected an invalid port to be rejected")
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("ELEVATOR_ACK_SOURCE", "Operator")

	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	if err := os.WriteFile(envFile, []byte("ELEVATOR_DEVICE_NAME=Lobby Lifts\nELEVATOR_ACK_SOURCE=Ignored\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("ELEVATOR_DEVICE_NAME") })

	if err := LoadEnvFile(envFile); err != nil {
		t.Fatalf("LoadEnvFile: %v", err)
	}
	if err := LoadEnvFile(filepath.Join(dir, "missing.env")); err != nil {
		t.Errorf("Expected a missing file to be ignored, got %v", err)
	}

	v := viper.New()
	SetDefaults(v)
	BindEnv(v)

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DeviceName != "Lobby Lifts" {
		t.Errorf("Expected Lobby Lifts, got %q", cfg.DeviceName)
	}
	if cfg.AckSource != "Operator" {
		t.Errorf("Expected the environment to win over .env, got %q", cfg.AckSource)
	}
}

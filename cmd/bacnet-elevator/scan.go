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
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/edgeo/drivers/elevator/bacnet"
)

var (
	scanTimeout   time.Duration
	scanLowLimit  uint32
	scanHighLimit uint32
	scanTarget    string
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for BACnet devices on the network",
	Long: `Scan discovers BACnet devices by sending Who-Is broadcast requests.

Examples:
  # Discover all devices
  bacnet-elevator scan

  # Discover devices with instance IDs 389000-389999
  bacnet-elevator scan --low 389000 --high 389999

  # Ask a single host, with an extended timeout
  bacnet-elevator scan --target 127.0.0.1:47808 --scan-timeout 10s`,

	RunE: runScan,
}

func init() {
	scanCmd.Flags().DurationVar(&scanTimeout, "scan-timeout", 5*time.Second, "Discovery timeout")
	scanCmd.Flags().Uint32Var(&scanLowLimit, "low", 0, "Low limit for device instance range (0 = no limit)")
	scanCmd.Flags().Uint32Var(&scanHighLimit, "high", 0, "High limit for device instance range (0 = no limit)")
	scanCmd.Flags().StringVar(&scanTarget, "target", "", "Send the Who-Is to this host:port instead of broadcasting")
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout+scanTimeout)
	defer cancel()

	client, err := createClient()
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer client.Close()

	fmt.Fprintln(os.Stderr, "Scanning for BACnet devices...")

	discoverOpts := []bacnet.DiscoverOption{
		bacnet.WithDiscoveryTimeout(scanTimeout),
	}

	if scanLowLimit > 0 || scanHighLimit > 0 {
		low := scanLowLimit
		high := scanHighLimit
		if high == 0 {
			high = bacnet.NoInstance - 1
		}
		discoverOpts = append(discoverOpts, bacnet.WithDeviceRange(low, high))
	}

	if scanTarget != "" {
		discoverOpts = append(discoverOpts, bacnet.WithDiscoveryTarget(scanTarget))
	}

	devices, err := client.WhoIs(ctx, discoverOpts...)
	if err != nil {
		return fmt.Errorf("discovery: %w", err)
	}

	if len(devices) == 0 {
		fmt.Println("No devices found")
		return nil
	}
	sort.Slice(devices, func(i, j int) bool {
		return devices[i].ObjectID.Instance < devices[j].ObjectID.Instance
	})

	f := NewFormatter(outputFmt)
	switch f.Format() {
	case FormatJSON, FormatYAML:
		return f.Encode(devicesDocument(devices))
	case FormatCSV:
		f.PrintCSV(deviceHeaders, deviceRows(devices))
	default:
		f.Println()
		f.PrintTable(deviceHeaders, deviceRows(devices))
		f.Printf("\nFound %d device(s)\n", len(devices))
	}
	return nil
}

var deviceHeaders = []string{"DEVICE ID", "ADDRESS", "VENDOR", "SEGMENTATION", "MAX APDU"}

func deviceRows(devices []*bacnet.DeviceInfo) [][]string {
	rows := make([][]string, 0, len(devices))
	for _, dev := range devices {
		rows = append(rows, []string{
			strconv.FormatUint(uint64(dev.ObjectID.Instance), 10),
			dev.Address,
			strconv.FormatUint(uint64(dev.VendorID), 10),
			dev.Segmentation.String(),
			strconv.FormatUint(uint64(dev.MaxAPDULength), 10),
		})
	}
	return rows
}

type deviceEntry struct {
	DeviceID     uint32 `json:"device_id" yaml:"device_id"`
	Address      string `json:"address" yaml:"address"`
	VendorID     uint16 `json:"vendor_id" yaml:"vendor_id"`
	Segmentation string `json:"segmentation" yaml:"segmentation"`
	MaxAPDU      uint16 `json:"max_apdu" yaml:"max_apdu"`
}

func devicesDocument(devices []*bacnet.DeviceInfo) []deviceEntry {
	out := make([]deviceEntry, 0, len(devices))
	for _, dev := range devices {
		out = append(out, deviceEntry{
			DeviceID:     dev.ObjectID.Instance,
			Address:      dev.Address,
			VendorID:     dev.VendorID,
			Segmentation: dev.Segmentation.String(),
			MaxAPDU:      dev.MaxAPDULength,
		})
	}
	return out
}

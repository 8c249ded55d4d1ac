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
	"time"

	"github.com/spf13/cobra"

	"github.com/edgeo/drivers/elevator/bacnet"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Display device information",
	Long: `Info retrieves and displays detailed information about a BACnet device.

Examples:
  # Get device info
  bacnet-elevator info -H 127.0.0.1

  # Get info in JSON format
  bacnet-elevator info -d 389001 -o json`,

	RunE: runInfo,
}

var infoProperties = []struct {
	name string
	prop bacnet.PropertyIdentifier
}{
	{"Object Name", bacnet.PropertyObjectName},
	{"Description", bacnet.PropertyDescription},
	{"Location", bacnet.PropertyLocation},
	{"Vendor Name", bacnet.PropertyVendorName},
	{"Vendor ID", bacnet.PropertyVendorIdentifier},
	{"Model Name", bacnet.PropertyModelName},
	{"Firmware Revision", bacnet.PropertyFirmwareRevision},
	{"Application Software", bacnet.PropertyApplicationSoftwareVersion},
	{"Protocol Version", bacnet.PropertyProtocolVersion},
	{"Protocol Revision", bacnet.PropertyProtocolRevision},
	{"System Status", bacnet.PropertySystemStatus},
	{"Max APDU Length", bacnet.PropertyMaxApduLengthAccepted},
	{"Segmentation", bacnet.PropertySegmentationSupported},
	{"Database Revision", bacnet.PropertyDatabaseRevision},
	{"Local Date", bacnet.PropertyLocalDate},
	{"Local Time", bacnet.PropertyLocalTime},
}

func runInfo(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout*10)
	defer cancel()

	client, err := connectClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	deviceOID := bacnet.NewObjectIdentifier(bacnet.ObjectTypeDevice, deviceID)

	requests := make([]bacnet.ReadPropertyRequest, len(infoProperties))
	for i, p := range infoProperties {
		requests[i] = bacnet.ReadPropertyRequest{ObjectID: deviceOID, PropertyID: p.prop}
	}
	values, err := client.ReadPropertyMultiple(ctx, deviceID, requests)
	if err != nil {
		return fmt.Errorf("read device properties: %w", err)
	}

	names := make(map[bacnet.PropertyIdentifier]string, len(infoProperties))
	for _, p := range infoProperties {
		names[p.prop] = p.name
	}

	info := make(map[string]interface{})
	for _, v := range values {
		if v.Error != nil {
			logger.Debug("property not available",
				slog.String("property", v.PropertyID.String()),
				slog.String("error", v.Error.Error()),
			)
			continue
		}
		if name, ok := names[v.PropertyID]; ok {
			info[name] = v.Value
		}
	}

	objCount, err := client.ReadProperty(ctx, deviceID, deviceOID, bacnet.PropertyObjectList, bacnet.WithArrayIndex(0))
	if err == nil {
		info["Object Count"] = objCount
	}

	order := make([]string, 0, len(infoProperties)+1)
	for _, p := range infoProperties {
		order = append(order, p.name)
	}
	order = append(order, "Object Count")

	f := NewFormatter(outputFmt)
	switch f.Format() {
	case FormatJSON, FormatYAML:
		doc := map[string]interface{}{
			"device_id": deviceID,
			"timestamp": time.Now().Format(time.RFC3339),
		}
		for key, val := range info {
			doc[key] = plainValue(val)
		}
		return f.Encode(doc)
	default:
		f.Printf("\n=== Device %d ===\n\n", deviceID)
		f.PrintKeyValue(info, order)
		f.Println()
	}
	return nil
}

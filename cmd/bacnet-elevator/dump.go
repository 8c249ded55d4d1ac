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
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/edgeo/drivers/elevator/bacnet"
)

var (
	dumpFile       string
	dumpProperties []string
	dumpObjects    []string
	dumpAll        bool
)

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump all objects and properties from a device",
	Long: `Dump reads all objects and their properties from a BACnet device.

This is useful for documenting a device or comparing two of them.

Examples:
  # Dump all objects to stdout
  bacnet-elevator dump -H 127.0.0.1

  # Dump the lifts to a YAML file
  bacnet-elevator dump --objects lift -f lifts.yaml -o yaml

  # Dump every property of every object
  bacnet-elevator dump --all -o json`,

	RunE: runDump,
}

func init() {
	dumpCmd.Flags().StringVarP(&dumpFile, "file", "f", "", "Output file (default: stdout)")
	dumpCmd.Flags().StringSliceVar(&dumpProperties, "props", []string{"object-name", "status-flags", "event-state", "out-of-service"}, "Properties to read")
	dumpCmd.Flags().StringSliceVar(&dumpObjects, "objects", nil, "Object types to include (default: all)")
	dumpCmd.Flags().BoolVar(&dumpAll, "all", false, "Dump every property listed in the property-list of each object")
}

type DumpObject struct {
	ObjectID   string                 `json:"object_id" yaml:"object_id"`
	ObjectType string                 `json:"object_type" yaml:"object_type"`
	Instance   uint32                 `json:"instance" yaml:"instance"`
	Properties map[string]interface{} `json:"properties" yaml:"properties"`
}

type DumpResult struct {
	DeviceID  uint32       `json:"device_id" yaml:"device_id"`
	Timestamp time.Time    `json:"timestamp" yaml:"timestamp"`
	Objects   []DumpObject `json:"objects" yaml:"objects"`
}

func runDump(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	client, err := connectClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	fmt.Fprintln(os.Stderr, "Retrieving object list...")

	objects, err := client.GetObjectList(ctx, deviceID)
	if err != nil {
		return fmt.Errorf("get object list: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Found %d objects\n", len(objects))

	if len(dumpObjects) > 0 {
		objects, err = filterObjects(objects, dumpObjects)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Filtered to %d objects\n", len(objects))
	}

	props := make([]bacnet.PropertyIdentifier, 0, len(dumpProperties))
	if !dumpAll {
		for _, propStr := range dumpProperties {
			prop, err := parsePropertyIdentifier(propStr)
			if err != nil {
				return err
			}
			props = append(props, prop)
		}
	}

	result := DumpResult{
		DeviceID:  deviceID,
		Timestamp: time.Now(),
		Objects:   make([]DumpObject, 0, len(objects)),
	}

	for i, obj := range objects {
		fmt.Fprintf(os.Stderr, "\rReading object %d/%d: %s", i+1, len(objects), obj.String())

		objProps := props
		if dumpAll {
			objProps, err = propertyList(ctx, client, obj)
			if err != nil {
				return fmt.Errorf("%s: %w", obj, err)
			}
		}

		dumpObj, err := readObject(ctx, client, obj, objProps)
		if err != nil {
			return fmt.Errorf("%s: %w", obj, err)
		}
		result.Objects = append(result.Objects, dumpObj)
	}

	fmt.Fprintln(os.Stderr, "\nDump complete")

	f := NewFormatter(outputFmt)
	if dumpFile != "" {
		out, err := os.Create(dumpFile)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer out.Close()
		f.SetWriter(out)
	}

	switch f.Format() {
	case FormatJSON, FormatYAML:
		return f.Encode(result)
	case FormatCSV:
		return outputDumpCSV(f, result)
	default:
		outputDumpTable(f, result)
		return nil
	}
}

func filterObjects(objects []bacnet.ObjectIdentifier, types []string) ([]bacnet.ObjectIdentifier, error) {
	wanted := make(map[bacnet.ObjectType]bool, len(types))
	for _, typeStr := range types {
		objType, ok := bacnet.ParseObjectType(typeStr)
		if !ok {
			return nil, fmt.Errorf("unknown object type: %s", typeStr)
		}
		wanted[objType] = true
	}

	filtered := make([]bacnet.ObjectIdentifier, 0, len(objects))
	for _, obj := range objects {
		if wanted[obj.Type] {
			filtered = append(filtered, obj)
		}
	}
	return filtered, nil
}

// propertyList reads the property-list of obj. The list leaves out the
// properties every object has, so those are added back.
func propertyList(ctx context.Context, client *bacnet.Client, obj bacnet.ObjectIdentifier) ([]bacnet.PropertyIdentifier, error) {
	value, err := client.ReadProperty(ctx, deviceID, obj, bacnet.PropertyPropertyList)
	if err != nil {
		return nil, err
	}

	props := []bacnet.PropertyIdentifier{
		bacnet.PropertyObjectIdentifier,
		bacnet.PropertyObjectName,
		bacnet.PropertyObjectType,
	}
	values, ok := value.([]interface{})
	if !ok {
		values = []interface{}{value}
	}
	for _, v := range values {
		if e, ok := v.(bacnet.Enumerated); ok {
			props = append(props, bacnet.PropertyIdentifier(e))
		}
	}
	return props, nil
}

func readObject(ctx context.Context, client *bacnet.Client, obj bacnet.ObjectIdentifier, props []bacnet.PropertyIdentifier) (DumpObject, error) {
	dumpObj := DumpObject{
		ObjectID:   obj.String(),
		ObjectType: obj.Type.String(),
		Instance:   obj.Instance,
		Properties: make(map[string]interface{}),
	}
	if len(props) == 0 {
		return dumpObj, nil
	}

	requests := make([]bacnet.ReadPropertyRequest, len(props))
	for i, prop := range props {
		requests[i] = bacnet.ReadPropertyRequest{ObjectID: obj, PropertyID: prop}
	}

	readCtx, readCancel := context.WithTimeout(ctx, timeout*time.Duration(retries+1))
	values, err := client.ReadPropertyMultiple(readCtx, deviceID, requests)
	readCancel()
	if err != nil {
		return dumpObj, err
	}

	for _, v := range values {
		if v.Error != nil {
			continue // Skip properties that fail
		}
		dumpObj.Properties[v.PropertyID.String()] = plainValue(v.Value)
	}
	return dumpObj, nil
}

func propertyNames(result DumpResult) []string {
	seen := make(map[string]bool)
	for _, obj := range result.Objects {
		for prop := range obj.Properties {
			seen[prop] = true
		}
	}
	names := make([]string, 0, len(seen))
	for prop := range seen {
		names = append(names, prop)
	}
	sort.Strings(names)
	return names
}

func outputDumpCSV(f *Formatter, result DumpResult) error {
	writer := csv.NewWriter(f.writer)

	propNames := propertyNames(result)
	header := append([]string{"object_id", "object_type", "instance"}, propNames...)
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, obj := range result.Objects {
		row := []string{obj.ObjectID, obj.ObjectType, fmt.Sprintf("%d", obj.Instance)}
		for _, prop := range propNames {
			val, ok := obj.Properties[prop]
			if !ok {
				row = append(row, "")
				continue
			}
			row = append(row, formatValue(val))
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func outputDumpTable(f *Formatter, result DumpResult) {
	f.Printf("Device %d - %d objects\n", result.DeviceID, len(result.Objects))
	f.Printf("Timestamp: %s\n\n", result.Timestamp.Format(time.RFC3339))

	for _, obj := range result.Objects {
		f.Printf("=== %s ===\n", obj.ObjectID)
		names := make([]string, 0, len(obj.Properties))
		for prop := range obj.Properties {
			names = append(names, prop)
		}
		sort.Strings(names)
		for _, prop := range names {
			f.Printf("  %-25s: %s\n", prop, formatValue(obj.Properties[prop]))
		}
		f.Println()
	}
}

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

package console

import (
	"bytes"
	"io"
	"log/slog"
	"math/rand"
	"strings"
	"testing"

	"github.com/eiannone/keyboard"

	"github.com/edgeo/drivers/elevator/bacnet"
	"github.com/edgeo/drivers/elevator/internal/database"
)

type update struct {
	objectType bacnet.ObjectType
	instance   uint32
	property   bacnet.PropertyIdentifier
}

type recorder struct {
	updates []update
}

func (r *recorder) ValueUpdated(device uint32, objectType bacnet.ObjectType, instance uint32, property bacnet.PropertyIdentifier) error {
	r.updates = append(r.updates, update{objectType, instance, property})
	return nil
}

func newTestConsole() (*Console, *database.Database, *recorder, *bytes.Buffer) {
	db := database.New()
	rec := &recorder{}
	var out bytes.Buffer
	c := New(db, rec, &out,
		WithRand(rand.New(rand.NewSource(1))),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	return c, db, rec, &out
}

func TestSelectLift(t *testing.T) {
	c, _, _, _ := newTestConsole()

	keys := []struct {
		key      keyboard.Key
		expected uint32
	}{
		{keyboard.KeyArrowLeft, database.LiftCInstance},
		{keyboard.KeyArrowRight, database.LiftDInstance},
		{keyboard.KeyArrowRight, database.LiftEInstance},
		{keyboard.KeyArrowRight, database.LiftFInstance},
		{keyboard.KeyArrowRight, database.LiftGInstance},
		{keyboard.KeyArrowRight, database.LiftGInstance},
		{keyboard.KeyArrowLeft, database.LiftFInstance},
	}

	for i, k := range keys {
		if c.HandleKey(0, k.key) {
			t.Fatalf("Key %d: unexpected quit", i)
		}
		if got := c.Selected(); got != k.expected {
			t.Errorf("Key %d: expected lift %d, got %d", i, k.expected, got)
		}
	}
}

func TestKeysUpdateSelectedLift(t *testing.T) {
	tests := []struct {
		name     string
		key      rune
		object   bacnet.ObjectType
		instance uint32
		property bacnet.PropertyIdentifier
		check    func(t *testing.T, db *database.Database)
	}{
		{
			name: "passenger alarm", key: 'p',
			object: bacnet.ObjectTypeLift, instance: database.LiftCInstance, property: bacnet.PropertyPassengerAlarm,
			check: func(t *testing.T, db *database.Database) {
				if l, _ := db.Lift(database.LiftCInstance); !l.PassengerAlarm {
					t.Errorf("Expected the alarm raised")
				}
			},
		},
		{
			name: "direction", key: 'D',
			object: bacnet.ObjectTypeLift, instance: database.LiftCInstance, property: bacnet.PropertyCarMovingDirection,
			check: func(t *testing.T, db *database.Database) {
				if l, _ := db.Lift(database.LiftCInstance); l.CarMovingDirection != bacnet.LiftCarDirectionStopped {
					t.Errorf("Expected stopped, got %s", l.CarMovingDirection)
				}
			},
		},
		{
			name: "position", key: 'c',
			object: bacnet.ObjectTypeLift, instance: database.LiftCInstance, property: bacnet.PropertyCarPosition,
			check: func(t *testing.T, db *database.Database) {
				if l, _ := db.Lift(database.LiftCInstance); l.CarPosition != 4 {
					t.Errorf("Expected floor 4, got %d", l.CarPosition)
				}
			},
		},
		{
			name: "door status", key: 's',
			object: bacnet.ObjectTypeLift, instance: database.LiftCInstance, property: bacnet.PropertyCarDoorStatus,
			check: func(t *testing.T, db *database.Database) {
				if l, _ := db.Lift(database.LiftCInstance); l.CarDoorStatus[0] != bacnet.DoorStatusOpened {
					t.Errorf("Expected opened, got %s", l.CarDoorStatus[0])
				}
			},
		},
		{
			name: "group mode", key: 'm',
			object: bacnet.ObjectTypeElevatorGroup, instance: database.LiftGroupInstance, property: bacnet.PropertyGroupMode,
			check: func(t *testing.T, db *database.Database) {
				if g, _ := db.Group(database.LiftGroupInstance); g.GroupMode != bacnet.LiftGroupModeUnknown {
					t.Errorf("Expected unknown, got %s", g.GroupMode)
				}
			},
		},
		{
			name: "fault", key: 'f',
			object: bacnet.ObjectTypeLift, instance: database.LiftCInstance, property: bacnet.PropertyFaultSignals,
			check: func(t *testing.T, db *database.Database) {
				if l, _ := db.Lift(database.LiftCInstance); len(l.FaultSignals) != 1 || l.FaultSignals[0] >= faultRange {
					t.Errorf("Expected one fault below %d, got %v", faultRange, l.FaultSignals)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, db, rec, out := newTestConsole()
			if c.HandleKey(tt.key, 0) {
				t.Fatal("Unexpected quit")
			}
			expected := update{tt.object, tt.instance, tt.property}
			if len(rec.updates) != 1 || rec.updates[0] != expected {
				t.Errorf("Expected %v, got %v", expected, rec.updates)
			}
			tt.check(t, db)
			if !strings.Contains(out.String(), "Selected lift (1/5):") || !strings.Contains(out.String(), "Actions:") {
				t.Errorf("Expected the lift status and the menu, got:\n%s", out.String())
			}
		})
	}
}

func TestFaultKeyTogglesSameFault(t *testing.T) {
	db := database.New()
	rec := &recorder{}
	var out bytes.Buffer

	// Two consoles with the same seed pick the same fault.
	first := New(db, rec, &out, WithRand(rand.New(rand.NewSource(7))))
	second := New(db, rec, &out, WithRand(rand.New(rand.NewSource(7))))

	first.HandleKey('f', 0)
	second.HandleKey('f', 0)

	if l, _ := db.Lift(database.LiftCInstance); len(l.FaultSignals) != 0 {
		t.Errorf("Expected the fault removed again, got %v", l.FaultSignals)
	}
	if !strings.Contains(out.String(), "Adding") || !strings.Contains(out.String(), "Removing") {
		t.Errorf("Expected both messages, got:\n%s", out.String())
	}
}

func TestQuit(t *testing.T) {
	c, _, rec, _ := newTestConsole()

	for _, k := range []struct {
		ch  rune
		key keyboard.Key
	}{{'q', 0}, {'Q', 0}, {0, keyboard.KeyCtrlC}, {0, keyboard.KeyEsc}} {
		if !c.HandleKey(k.ch, k.key) {
			t.Errorf("Expected %q/%v to quit", k.ch, k.key)
		}
	}
	if c.HandleKey('x', 0) {
		t.Errorf("Expected an unknown key to be ignored")
	}
	if len(rec.updates) != 0 {
		t.Errorf("Expected no updates, got %v", rec.updates)
	}
}

func TestPrintLift(t *testing.T) {
	c, _, _, out := newTestConsole()
	for i := 0; i < 4; i++ {
		c.HandleKey(0, keyboard.KeyArrowRight)
	}
	out.Reset()

	c.PrintLift()
	expected := []string{
		"Selected lift (5/5):",
		"  Object Name:            People lifts (G)",
		"  Car Door Text (2):      Front, Rear",
		"  Making Car Call:        Front: 0, Rear: 0",
		"    Rear: Basement, Four",
		"    Front: Lobby=up, One=up-and-down, Two=down",
		"    Rear: Basement=closed, Roof=safety-locked",
		"  Car Position:           Two (3)",
	}
	for _, line := range expected {
		if !strings.Contains(out.String(), line) {
			t.Errorf("Expected %q in:\n%s", line, out.String())
		}
	}
}

func TestPrintGlobalStatus(t *testing.T) {
	c, db, _, out := newTestConsole()

	calls := []bacnet.LandingCallStatus{
		{FloorNumber: 2, Command: bacnet.LandingCallCommandDirection, Direction: bacnet.LiftCarDirectionUp},
		{FloorNumber: 5, Command: bacnet.LandingCallCommandDestination, Destination: 1, FloorText: "Four"},
	}
	for _, call := range calls {
		if err := db.SetLandingCallControl(database.LiftGroupInstance, call); err != nil {
			t.Fatal(err)
		}
		if err := db.AddLandingCall(database.LiftGroupInstance, call); err != nil {
			t.Fatal(err)
		}
	}

	c.HandleKey('g', 0)
	expected := []string{
		"  Floors(8): Basement(0), Lobby(1),",
		"    Landing Call Status: FloorNumber: 5, Destination: 1, FloorText: Four",
		"      [0]: FloorNumber: 2, Direction: up, FloorText: ",
		"      [1]: FloorNumber: 5, Destination: 1, FloorText: Four",
	}
	for _, line := range expected {
		if !strings.Contains(out.String(), line) {
			t.Errorf("Expected %q in:\n%s", line, out.String())
		}
	}
}

func TestFormatLandingCall(t *testing.T) {
	if got := FormatLandingCall(bacnet.LandingCallStatus{}); got != "N/A" {
		t.Errorf("Expected N/A, got %s", got)
	}
}

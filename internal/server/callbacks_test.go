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

package server

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/edgeo/drivers/elevator/bacnet"
	"github.com/edgeo/drivers/elevator/internal/config"
	"github.com/edgeo/drivers/elevator/internal/database"
)

// idleTransport never delivers a frame and swallows what is sent.
type idleTransport struct {
	sent int
}

func (t *idleTransport) SendMessage(message, destination []byte, broadcast bool) int {
	t.sent++
	return len(message)
}

func (t *idleTransport) ReceiveMessage(buf []byte) (int, []byte) {
	return 0, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	stack := bacnet.NewStack(bacnet.WithStackLogger(discardLogger()))
	s := New(database.New(), stack, config.Default(), discardLogger())
	if err := s.Setup(&idleTransport{}); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	return s
}

func ref(objectType bacnet.ObjectType, instance uint32, prop bacnet.PropertyIdentifier) bacnet.PropertyRef {
	return bacnet.PropertyRef{
		Device:     database.DeviceInstance,
		ObjectType: objectType,
		Instance:   instance,
		Property:   prop,
	}
}

func at(r bacnet.PropertyRef, index uint32) bacnet.PropertyRef {
	r.UseArrayIndex = true
	r.ArrayIndex = index
	return r
}

func TestGetCharacterString(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name     string
		ref      bacnet.PropertyRef
		expected string
		ok       bool
	}{
		{"device name", ref(bacnet.ObjectTypeDevice, database.DeviceInstance, bacnet.PropertyObjectName), "Elevator Example", true},
		{"group name", ref(bacnet.ObjectTypeElevatorGroup, database.LiftGroupInstance, bacnet.PropertyObjectName), "LIFT Group", true},
		{"machine room", ref(bacnet.ObjectTypePositiveIntegerValue, database.MachineRoom1, bacnet.PropertyObjectName), "Machine room (1)", true},
		{"first floor", at(ref(bacnet.ObjectTypeLift, database.LiftCInstance, bacnet.PropertyFloorText), 1), "Basement", true},
		{"last floor", at(ref(bacnet.ObjectTypeLift, database.LiftCInstance, bacnet.PropertyFloorText), 8), "Roof", true},
		{"past last floor", at(ref(bacnet.ObjectTypeLift, database.LiftCInstance, bacnet.PropertyFloorText), 9), "", false},
		{"floor text on escalator", at(ref(bacnet.ObjectTypeEscalator, database.EscalatorAInstance, bacnet.PropertyFloorText), 1), "", false},
		{"rear door", at(ref(bacnet.ObjectTypeLift, database.LiftGInstance, bacnet.PropertyCarDoorText), 2), "Rear", true},
		{"no rear door", at(ref(bacnet.ObjectTypeLift, database.LiftCInstance, bacnet.PropertyCarDoorText), 2), "", false},
		{"description", ref(bacnet.ObjectTypeLift, database.LiftCInstance, bacnet.PropertyDescription), "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := s.getCharacterString(tt.ref)
			if got != tt.expected || ok != tt.ok {
				t.Errorf("Expected %q (%v), got %q (%v)", tt.expected, tt.ok, got, ok)
			}
		})
	}
}

func TestGetUnsigned(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name     string
		ref      bacnet.PropertyRef
		expected uint32
		ok       bool
	}{
		{"floor count", at(ref(bacnet.ObjectTypeLift, database.LiftCInstance, bacnet.PropertyFloorText), 0), 8, true},
		{"door count", at(ref(bacnet.ObjectTypeLift, database.LiftGInstance, bacnet.PropertyCarDoorText), 0), 2, true},
		{"landing door lists", at(ref(bacnet.ObjectTypeLift, database.LiftGInstance, bacnet.PropertyLandingDoorStatus), 0), 2, true},
		{"making car call count", at(ref(bacnet.ObjectTypeLift, database.LiftCInstance, bacnet.PropertyMakingCarCall), 0), 1, true},
		{"making car call", at(ref(bacnet.ObjectTypeLift, database.LiftCInstance, bacnet.PropertyMakingCarCall), 1), 0, true},
		{"making car call past doors", at(ref(bacnet.ObjectTypeLift, database.LiftCInstance, bacnet.PropertyMakingCarCall), 2), 0, false},
		{"car position", ref(bacnet.ObjectTypeLift, database.LiftDInstance, bacnet.PropertyCarPosition), 3, true},
		{"machine room", ref(bacnet.ObjectTypePositiveIntegerValue, database.MachineRoom2, bacnet.PropertyPresentValue), 2, true},
		{"unknown machine room", ref(bacnet.ObjectTypePositiveIntegerValue, 3, bacnet.PropertyPresentValue), 0, false},
		{"escalator group id", ref(bacnet.ObjectTypeElevatorGroup, database.EscalatorGroupInstance, bacnet.PropertyGroupID), 1, true},
		{"lift group id", ref(bacnet.ObjectTypeElevatorGroup, database.LiftGroupInstance, bacnet.PropertyGroupID), 2, true},
		{"unknown lift", ref(bacnet.ObjectTypeLift, 7, bacnet.PropertyCarPosition), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := s.getUnsigned(tt.ref)
			if got != tt.expected || ok != tt.ok {
				t.Errorf("Expected %d (%v), got %d (%v)", tt.expected, tt.ok, got, ok)
			}
		})
	}
}

func TestGetEnumerated(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name     string
		ref      bacnet.PropertyRef
		expected uint32
		ok       bool
	}{
		{"group mode", ref(bacnet.ObjectTypeElevatorGroup, database.LiftGroupInstance, bacnet.PropertyGroupMode), uint32(bacnet.LiftGroupModeNormal), true},
		{"escalator group mode", ref(bacnet.ObjectTypeElevatorGroup, database.EscalatorGroupInstance, bacnet.PropertyGroupMode), 0, false},
		{"door status count", at(ref(bacnet.ObjectTypeLift, database.LiftGInstance, bacnet.PropertyCarDoorStatus), 0), 2, true},
		{"door status", at(ref(bacnet.ObjectTypeLift, database.LiftGInstance, bacnet.PropertyCarDoorStatus), 2), uint32(bacnet.DoorStatusClosed), true},
		{"door status past doors", at(ref(bacnet.ObjectTypeLift, database.LiftGInstance, bacnet.PropertyCarDoorStatus), 3), 0, false},
		{"direction", ref(bacnet.ObjectTypeLift, database.LiftCInstance, bacnet.PropertyCarMovingDirection), uint32(bacnet.LiftCarDirectionNone), true},
		{"operation direction", ref(bacnet.ObjectTypeEscalator, database.EscalatorHInstance, bacnet.PropertyOperationDirection), 0, true},
		{"operation direction on lift", ref(bacnet.ObjectTypeLift, database.LiftCInstance, bacnet.PropertyOperationDirection), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := s.getEnumerated(tt.ref)
			if got != tt.expected || ok != tt.ok {
				t.Errorf("Expected %d (%v), got %d (%v)", tt.expected, tt.ok, got, ok)
			}
		})
	}
}

func TestGetRealAndBool(t *testing.T) {
	s := newTestServer(t)

	if v, ok := s.getReal(ref(bacnet.ObjectTypeEscalator, database.EscalatorAInstance, bacnet.PropertyEnergyMeter)); !ok || v != 0 {
		t.Errorf("Expected 0 kWh, got %v (%v)", v, ok)
	}
	if _, ok := s.getReal(ref(bacnet.ObjectTypeDevice, database.DeviceInstance, bacnet.PropertyEnergyMeter)); ok {
		t.Errorf("Expected no energy meter on the device")
	}

	if v, ok := s.getBool(ref(bacnet.ObjectTypeEscalator, database.EscalatorBInstance, bacnet.PropertyPassengerAlarm)); !ok || !v {
		t.Errorf("Expected the escalator alarm raised, got %v (%v)", v, ok)
	}
	if v, ok := s.getBool(ref(bacnet.ObjectTypeLift, database.LiftCInstance, bacnet.PropertyPassengerAlarm)); !ok || v {
		t.Errorf("Expected the lift alarm clear, got %v (%v)", v, ok)
	}
}

// collect walks a list callback the way the stack does.
func collect[T any](fetch func(i uint32) (T, bool, bool)) []T {
	var out []T
	for i := uint32(0); i < 64; i++ {
		v, more, ok := fetch(i)
		if !ok {
			break
		}
		out = append(out, v)
		if !more {
			break
		}
	}
	return out
}

func TestGetFaultSignals(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name     string
		ref      bacnet.PropertyRef
		expected []uint32
	}{
		{"escalator", ref(bacnet.ObjectTypeEscalator, database.EscalatorAInstance, bacnet.PropertyFaultSignals), []uint32{2, 7}},
		{"lift", ref(bacnet.ObjectTypeLift, database.LiftDInstance, bacnet.PropertyFaultSignals), []uint32{1, 9, 14}},
		{"lift without faults", ref(bacnet.ObjectTypeLift, database.LiftCInstance, bacnet.PropertyFaultSignals), nil},
		{"wrong property", ref(bacnet.ObjectTypeLift, database.LiftDInstance, bacnet.PropertyLandingCalls), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := collect(func(i uint32) (uint32, bool, bool) { return s.getFaultSignals(tt.ref, i) })
			if len(got) != len(tt.expected) {
				t.Fatalf("Expected %v, got %v", tt.expected, got)
			}
			for i := range got {
				if got[i] != tt.expected[i] {
					t.Errorf("Expected %v, got %v", tt.expected, got)
				}
			}
		})
	}
}

func TestDoorSequences(t *testing.T) {
	s := newTestServer(t)

	rear := collect(func(i uint32) (uint8, bool, bool) {
		return s.getRegisteredCarCall(database.DeviceInstance, database.LiftGInstance, 2, i)
	})
	if len(rear) != 2 || rear[0] != 0 || rear[1] != 5 {
		t.Errorf("Expected rear car calls [0 5], got %v", rear)
	}

	calls := collect(func(i uint32) (bacnet.AssignedLandingCall, bool, bool) {
		return s.getAssignedLandingCall(database.DeviceInstance, database.LiftEInstance, 1, i)
	})
	expected := []bacnet.AssignedLandingCall{
		{FloorNumber: 4, Direction: bacnet.LiftCarDirectionUpAndDown},
		{FloorNumber: 6, Direction: bacnet.LiftCarDirectionDown},
	}
	if len(calls) != len(expected) || calls[0] != expected[0] || calls[1] != expected[1] {
		t.Errorf("Expected %v, got %v", expected, calls)
	}

	doors := collect(func(i uint32) (bacnet.LandingDoor, bool, bool) {
		return s.getLandingDoorStatus(database.DeviceInstance, database.LiftGInstance, 2, i)
	})
	if len(doors) != 2 || doors[1].Status != bacnet.DoorStatusSafetyLocked {
		t.Errorf("Expected the rear landing doors, got %v", doors)
	}

	if _, _, ok := s.getRegisteredCarCall(database.DeviceInstance, database.LiftCInstance, 1, 0); ok {
		t.Errorf("Expected an empty list to fail")
	}
	if _, _, ok := s.getRegisteredCarCall(database.DeviceInstance, database.LiftDInstance, 2, 0); ok {
		t.Errorf("Expected a missing door to fail")
	}
	if _, _, ok := s.getLandingDoorStatus(database.DeviceInstance, 42, 1, 0); ok {
		t.Errorf("Expected an unknown lift to fail")
	}
}

func TestSetUnsigned(t *testing.T) {
	tests := []struct {
		name     string
		ref      bacnet.PropertyRef
		value    uint32
		expected *bacnet.BACnetError
	}{
		{"front door", at(ref(bacnet.ObjectTypeLift, database.LiftGInstance, bacnet.PropertyMakingCarCall), 1), 5, nil},
		{"index zero", at(ref(bacnet.ObjectTypeLift, database.LiftGInstance, bacnet.PropertyMakingCarCall), 0), 5,
			bacnet.NewBACnetError(bacnet.ErrorClassProperty, bacnet.ErrorCodeInvalidArrayIndex)},
		{"past doors", at(ref(bacnet.ObjectTypeLift, database.LiftGInstance, bacnet.PropertyMakingCarCall), 3), 5,
			bacnet.NewBACnetError(bacnet.ErrorClassProperty, bacnet.ErrorCodeInvalidArrayIndex)},
		{"no index", ref(bacnet.ObjectTypeLift, database.LiftGInstance, bacnet.PropertyMakingCarCall), 5,
			bacnet.NewBACnetError(bacnet.ErrorClassProperty, bacnet.ErrorCodeInvalidArrayIndex)},
		{"floor out of range", at(ref(bacnet.ObjectTypeLift, database.LiftGInstance, bacnet.PropertyMakingCarCall), 1), 8,
			bacnet.NewBACnetError(bacnet.ErrorClassProperty, bacnet.ErrorCodeValueOutOfRange)},
		{"car position", ref(bacnet.ObjectTypeLift, database.LiftGInstance, bacnet.PropertyCarPosition), 1,
			bacnet.NewBACnetError(bacnet.ErrorClassProperty, bacnet.ErrorCodeWriteAccessDenied)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			err := s.setUnsigned(tt.ref, tt.value, 16)
			if tt.expected == nil {
				if err != nil {
					t.Fatalf("setUnsigned: %v", err)
				}
				l, _ := s.db.Lift(tt.ref.Instance)
				if uint32(l.MakingCarCall[tt.ref.ArrayIndex-1]) != tt.value {
					t.Errorf("Expected %d stored, got %v", tt.value, l.MakingCarCall)
				}
				return
			}
			if !errors.Is(err, tt.expected) {
				t.Errorf("Expected %v, got %v", tt.expected, err)
			}
		})
	}
}

func TestSetLandingCallControl(t *testing.T) {
	s := newTestServer(t)

	call := bacnet.LandingCallStatus{FloorNumber: 6, Command: bacnet.LandingCallCommandDestination, Destination: 2, FloorText: "Five"}
	if err := s.setLandingCallControl(database.DeviceInstance, database.LiftGroupInstance, call); err != nil {
		t.Fatalf("setLandingCallControl: %v", err)
	}

	got, more, ok := s.getLandingCallStatus(ref(bacnet.ObjectTypeElevatorGroup, database.LiftGroupInstance, bacnet.PropertyLandingCallControl), 0)
	if !ok || more || got != call {
		t.Errorf("Expected %v, got %v (more %v, ok %v)", call, got, more, ok)
	}
	calls := collect(func(i uint32) (bacnet.LandingCallStatus, bool, bool) {
		return s.getLandingCallStatus(ref(bacnet.ObjectTypeElevatorGroup, database.LiftGroupInstance, bacnet.PropertyLandingCalls), i)
	})
	if len(calls) != 1 || calls[0] != call {
		t.Errorf("Expected the call listed, got %v", calls)
	}

	high := bacnet.LandingCallStatus{FloorNumber: 10, Command: bacnet.LandingCallCommandDestination, Destination: 3}
	if err := s.setLandingCallControl(database.DeviceInstance, database.LiftGroupInstance, high); err != nil {
		t.Errorf("Expected floor 10 to be stored, got %v", err)
	}
	if got, _, ok := s.getLandingCallStatus(ref(bacnet.ObjectTypeElevatorGroup, database.LiftGroupInstance, bacnet.PropertyLandingCallControl), 0); !ok || got != high {
		t.Errorf("Expected %v, got %v (ok %v)", high, got, ok)
	}

	err := s.setLandingCallControl(database.DeviceInstance, database.EscalatorGroupInstance, call)
	if !errors.Is(err, bacnet.NewBACnetError(bacnet.ErrorClassProperty, bacnet.ErrorCodeWriteAccessDenied)) {
		t.Errorf("Expected write-access-denied, got %v", err)
	}
	if _, _, ok := s.getLandingCallStatus(ref(bacnet.ObjectTypeElevatorGroup, database.EscalatorGroupInstance, bacnet.PropertyLandingCallControl), 0); ok {
		t.Errorf("Expected no landing call control on the escalator group")
	}
}

func TestAcknowledgeAlarm(t *testing.T) {
	s := newTestServer(t)

	req := bacnet.AcknowledgeAlarmRequest{
		ProcessIdentifier: 1,
		EventObject:       bacnet.NewObjectIdentifier(bacnet.ObjectTypeLift, database.LiftCInstance),
		Source:            "TestDevice",
	}
	if err := s.acknowledgeAlarm(database.DeviceInstance, req); err != nil {
		t.Errorf("Expected the acknowledgment accepted, got %v", err)
	}

	req.Source = "Somebody"
	err := s.acknowledgeAlarm(database.DeviceInstance, req)
	if !errors.Is(err, bacnet.NewBACnetError(bacnet.ErrorClassServices, bacnet.ErrorCodeServiceRequestDenied)) {
		t.Errorf("Expected service-request-denied, got %v", err)
	}
}

func TestSystemTime(t *testing.T) {
	s := newTestServer(t)
	s.now = func() time.Time { return time.Unix(1700000000, 999_000_000) }

	if got := s.systemTime(); !got.Equal(time.Unix(1700000000, 0)) {
		t.Errorf("Expected whole seconds, got %v", got)
	}
}

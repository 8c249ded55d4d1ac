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
	"log/slog"
	"time"

	"github.com/edgeo/drivers/elevator/bacnet"
	"github.com/edgeo/drivers/elevator/internal/database"
)

func refAttrs(ref bacnet.PropertyRef) []any {
	attrs := []any{
		slog.String("object_type", ref.ObjectType.String()),
		slog.Uint64("instance", uint64(ref.Instance)),
		slog.String("property", ref.Property.String()),
	}
	if ref.UseArrayIndex {
		attrs = append(attrs, slog.Uint64("array_index", uint64(ref.ArrayIndex)))
	}
	return attrs
}

// systemTime is the wall clock with a one second resolution.
func (s *Server) systemTime() time.Time {
	return time.Unix(s.now().Unix(), 0)
}

func (s *Server) lift(ref bacnet.PropertyRef) (database.Lift, bool) {
	if ref.ObjectType != bacnet.ObjectTypeLift {
		return database.Lift{}, false
	}
	l, err := s.db.Lift(ref.Instance)
	return l, err == nil
}

func (s *Server) escalator(ref bacnet.PropertyRef) (database.Escalator, bool) {
	if ref.ObjectType != bacnet.ObjectTypeEscalator {
		return database.Escalator{}, false
	}
	e, err := s.db.Escalator(ref.Instance)
	return e, err == nil
}

func (s *Server) liftGroup(instance uint32) (database.ElevatorGroup, bool) {
	g, err := s.db.Group(instance)
	if err != nil || !g.Lifts {
		return database.ElevatorGroup{}, false
	}
	return g, true
}

// element returns entry index (1-based) of values.
func element[T any](values []T, ref bacnet.PropertyRef) (T, bool) {
	var zero T
	if !ref.UseArrayIndex || ref.ArrayIndex == 0 || int(ref.ArrayIndex) > len(values) {
		return zero, false
	}
	return values[ref.ArrayIndex-1], true
}

func (s *Server) getCharacterString(ref bacnet.PropertyRef) (string, bool) {
	s.logger.Debug("get character string", refAttrs(ref)...)

	switch ref.Property {
	case bacnet.PropertyObjectName:
		return s.db.ObjectName(ref.ObjectType, ref.Instance)
	case bacnet.PropertyFloorText:
		if _, ok := s.lift(ref); ok {
			return element(database.FloorText[:], ref)
		}
	case bacnet.PropertyCarDoorText:
		if l, ok := s.lift(ref); ok {
			return element(l.CarDoorText, ref)
		}
	}
	return "", false
}

func (s *Server) getReal(ref bacnet.PropertyRef) (float32, bool) {
	s.logger.Debug("get real", refAttrs(ref)...)

	if ref.Property != bacnet.PropertyEnergyMeter {
		return 0, false
	}
	if e, ok := s.escalator(ref); ok {
		return e.EnergyMeter, true
	}
	if l, ok := s.lift(ref); ok {
		return l.EnergyMeter, true
	}
	return 0, false
}

func (s *Server) getEnumerated(ref bacnet.PropertyRef) (uint32, bool) {
	s.logger.Debug("get enumerated", refAttrs(ref)...)

	switch ref.Property {
	case bacnet.PropertyGroupMode:
		if ref.ObjectType != bacnet.ObjectTypeElevatorGroup {
			return 0, false
		}
		if g, ok := s.liftGroup(ref.Instance); ok {
			return uint32(g.GroupMode), true
		}
	case bacnet.PropertyCarDoorStatus:
		l, ok := s.lift(ref)
		if !ok || !ref.UseArrayIndex {
			return 0, false
		}
		if ref.ArrayIndex == 0 {
			return uint32(l.Doors()), true
		}
		if status, ok := element(l.CarDoorStatus, ref); ok {
			return uint32(status), true
		}
	case bacnet.PropertyCarMovingDirection:
		if l, ok := s.lift(ref); ok {
			return uint32(l.CarMovingDirection), true
		}
	case bacnet.PropertyOperationDirection:
		if e, ok := s.escalator(ref); ok {
			return uint32(e.OperationDirection), true
		}
	}
	return 0, false
}

func (s *Server) getUnsigned(ref bacnet.PropertyRef) (uint32, bool) {
	s.logger.Debug("get unsigned", refAttrs(ref)...)

	switch ref.ObjectType {
	case bacnet.ObjectTypePositiveIntegerValue:
		if ref.Property == bacnet.PropertyPresentValue {
			if room, ok := s.db.MachineRoom(ref.Instance); ok {
				return room.Instance, true
			}
		}
		return 0, false

	case bacnet.ObjectTypeElevatorGroup:
		if ref.Property == bacnet.PropertyGroupID {
			if g, err := s.db.Group(ref.Instance); err == nil {
				return uint32(g.GroupID), true
			}
		}
		return 0, false
	}

	l, ok := s.lift(ref)
	if !ok {
		return 0, false
	}
	size := ref.UseArrayIndex && ref.ArrayIndex == 0

	switch ref.Property {
	case bacnet.PropertyFloorText:
		if ref.UseArrayIndex {
			return uint32(len(database.FloorText)), true
		}
	case bacnet.PropertyCarDoorText, bacnet.PropertyCarDoorStatus, bacnet.PropertyAssignedLandingCalls,
		bacnet.PropertyRegisteredCarCall, bacnet.PropertyLandingDoorStatus:
		if size {
			return uint32(l.Doors()), true
		}
	case bacnet.PropertyMakingCarCall:
		if size {
			return uint32(l.Doors()), true
		}
		if floor, ok := element(l.MakingCarCall, ref); ok {
			return uint32(floor), true
		}
	case bacnet.PropertyCarPosition:
		return uint32(l.CarPosition), true
	}
	return 0, false
}

func (s *Server) getBool(ref bacnet.PropertyRef) (bool, bool) {
	s.logger.Debug("get bool", refAttrs(ref)...)

	if ref.Property != bacnet.PropertyPassengerAlarm {
		return false, false
	}
	if e, ok := s.escalator(ref); ok {
		return e.PassengerAlarm, true
	}
	if l, ok := s.lift(ref); ok {
		return l.PassengerAlarm, true
	}
	return false, false
}

// listEntry returns entry index (0-based) of values and whether further
// entries follow. An empty list fails on its first entry, which the stack
// reports as an empty list.
func listEntry[T any](values []T, index uint32) (T, bool, bool) {
	var zero T
	if int(index) >= len(values) {
		return zero, false, false
	}
	return values[index], int(index)+1 < len(values), true
}

func (s *Server) getFaultSignals(ref bacnet.PropertyRef, index uint32) (uint32, bool, bool) {
	if ref.Property != bacnet.PropertyFaultSignals {
		return 0, false, false
	}
	if e, ok := s.escalator(ref); ok {
		f, more, ok := listEntry(e.FaultSignals, index)
		return uint32(f), more, ok
	}
	if l, ok := s.lift(ref); ok {
		f, more, ok := listEntry(l.FaultSignals, index)
		return uint32(f), more, ok
	}
	return 0, false, false
}

func (s *Server) getLandingCallStatus(ref bacnet.PropertyRef, index uint32) (bacnet.LandingCallStatus, bool, bool) {
	if ref.ObjectType != bacnet.ObjectTypeElevatorGroup {
		return bacnet.LandingCallStatus{}, false, false
	}
	g, ok := s.liftGroup(ref.Instance)
	if !ok {
		return bacnet.LandingCallStatus{}, false, false
	}

	switch ref.Property {
	case bacnet.PropertyLandingCallControl:
		return g.LandingCallControl, false, true
	case bacnet.PropertyLandingCalls:
		return listEntry(g.LandingCalls, index)
	}
	return bacnet.LandingCallStatus{}, false, false
}

// doorList returns the per door list of lift selected by pick, for door
// (1-based).
func doorList[T any](s *Server, lift, door uint32, pick func(l database.Lift) [][]T) ([]T, bool) {
	l, err := s.db.Lift(lift)
	if err != nil {
		return nil, false
	}
	lists := pick(l)
	if door == 0 || int(door) > len(lists) {
		return nil, false
	}
	return lists[door-1], true
}

func (s *Server) getRegisteredCarCall(device, lift, door, offset uint32) (uint8, bool, bool) {
	calls, ok := doorList(s, lift, door, func(l database.Lift) [][]uint8 { return l.RegisteredCarCalls })
	if !ok {
		return 0, false, false
	}
	return listEntry(calls, offset)
}

func (s *Server) getAssignedLandingCall(device, lift, door, offset uint32) (bacnet.AssignedLandingCall, bool, bool) {
	calls, ok := doorList(s, lift, door, func(l database.Lift) [][]bacnet.AssignedLandingCall { return l.AssignedLandingCalls })
	if !ok {
		return bacnet.AssignedLandingCall{}, false, false
	}
	return listEntry(calls, offset)
}

func (s *Server) getLandingDoorStatus(device, lift, door, offset uint32) (bacnet.LandingDoor, bool, bool) {
	doors, ok := doorList(s, lift, door, func(l database.Lift) [][]bacnet.LandingDoor { return l.LandingDoorStatus })
	if !ok {
		return bacnet.LandingDoor{}, false, false
	}
	return listEntry(doors, offset)
}

func (s *Server) setUnsigned(ref bacnet.PropertyRef, value uint32, priority uint8) error {
	s.logger.Info("set unsigned", append(refAttrs(ref),
		slog.Uint64("value", uint64(value)),
		slog.Int("priority", int(priority)),
	)...)

	if ref.ObjectType != bacnet.ObjectTypeLift || ref.Property != bacnet.PropertyMakingCarCall {
		return bacnet.NewBACnetError(bacnet.ErrorClassProperty, bacnet.ErrorCodeWriteAccessDenied)
	}
	if !ref.UseArrayIndex {
		return bacnet.NewBACnetError(bacnet.ErrorClassProperty, bacnet.ErrorCodeInvalidArrayIndex)
	}
	if err := s.db.SetMakingCarCall(ref.Instance, ref.ArrayIndex, value); err != nil {
		s.logger.Debug("making car call rejected", slog.String("error", err.Error()))
		return bacnetError(err)
	}
	s.notify(bacnet.ObjectTypeLift, ref.Instance, bacnet.PropertyMakingCarCall)
	return nil
}

func (s *Server) setLandingCallControl(device, group uint32, status bacnet.LandingCallStatus) error {
	attrs := []any{
		slog.Uint64("group", uint64(group)),
		slog.Int("floor", int(status.FloorNumber)),
	}
	switch status.Command {
	case bacnet.LandingCallCommandDirection:
		attrs = append(attrs, slog.String("direction", status.Direction.String()))
	case bacnet.LandingCallCommandDestination:
		attrs = append(attrs, slog.Int("destination", int(status.Destination)))
	}
	if status.FloorText != "" {
		attrs = append(attrs, slog.String("floor_text", status.FloorText))
	}
	s.logger.Info("landing call", attrs...)

	if err := s.db.SetLandingCallControl(group, status); err != nil {
		return bacnetError(err)
	}
	if err := s.db.AddLandingCall(group, status); err != nil {
		return bacnetError(err)
	}
	s.notify(bacnet.ObjectTypeElevatorGroup, group, bacnet.PropertyLandingCalls)
	return nil
}

func (s *Server) acknowledgeAlarm(device uint32, req bacnet.AcknowledgeAlarmRequest) error {
	s.logger.Info("alarm acknowledgment",
		slog.Uint64("process_identifier", uint64(req.ProcessIdentifier)),
		slog.String("object", req.EventObject.String()),
		slog.String("event_state", req.EventStateAcknowledged.String()),
		slog.String("source", req.Source),
	)

	if req.Source != s.cfg.AckSource {
		return bacnet.NewBACnetError(bacnet.ErrorClassServices, bacnet.ErrorCodeServiceRequestDenied)
	}
	return nil
}

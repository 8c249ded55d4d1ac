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

// Package server connects the elevator database to the BACnet stack: it
// declares the objects of the example device and answers every property
// callback from the database.
package server

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/edgeo/drivers/elevator/bacnet"
	"github.com/edgeo/drivers/elevator/internal/config"
	"github.com/edgeo/drivers/elevator/internal/database"
)

// Transport carries the frames of the stack.
type Transport interface {
	SendMessage(message, destination []byte, broadcast bool) int
	ReceiveMessage(buf []byte) (int, []byte)
}

// Server serves the database through the stack.
type Server struct {
	db     *database.Database
	stack  *bacnet.Stack
	cfg    config.Config
	logger *slog.Logger
	device uint32

	now func() time.Time
}

// New returns a server for db. The device instance is the one of db.
func New(db *database.Database, stack *bacnet.Stack, cfg config.Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		db:     db,
		stack:  stack,
		cfg:    cfg,
		logger: logger,
		device: db.Device().Instance,
		now:    time.Now,
	}
}

// Device returns the device instance.
func (s *Server) Device() uint32 {
	return s.device
}

// Stack returns the served stack.
func (s *Server) Stack() *bacnet.Stack {
	return s.stack
}

// setupStep is one call of Setup.
type setupStep struct {
	name string
	fn   func() error
}

// Setup registers the callbacks on the stack, with t as network, and
// declares every object of the database.
func (s *Server) Setup(t Transport) error {
	st := s.stack
	dev := s.device

	st.RegisterCallbackSendMessage(t.SendMessage)
	st.RegisterCallbackReceiveMessage(t.ReceiveMessage)
	st.RegisterCallbackGetSystemTime(s.systemTime)
	st.RegisterCallbackGetPropertyCharacterString(s.getCharacterString)
	st.RegisterCallbackGetPropertyReal(s.getReal)
	st.RegisterCallbackGetPropertyEnumerated(s.getEnumerated)
	st.RegisterCallbackGetPropertyUnsignedInteger(s.getUnsigned)
	st.RegisterCallbackGetPropertyBool(s.getBool)
	st.RegisterCallbackGetListOfEnumerations(s.getFaultSignals)
	st.RegisterCallbackGetListElevatorGroupLandingCallStatus(s.getLandingCallStatus)
	st.RegisterCallbackGetSequenceLiftRegisteredCarCall(s.getRegisteredCarCall)
	st.RegisterCallbackGetSequenceLiftAssignedLandingCall(s.getAssignedLandingCall)
	st.RegisterCallbackGetSequenceLiftLandingDoorStatus(s.getLandingDoorStatus)
	st.RegisterCallbackSetPropertyUnsignedInteger(s.setUnsigned)
	st.RegisterCallbackSetElevatorGroupLandingCallControl(s.setLandingCallControl)
	st.RegisterCallbackAcknowledgeAlarm(s.acknowledgeAlarm)

	nc, err := s.db.NotificationClass()
	if err != nil {
		return err
	}

	steps := []setupStep{
		{"device", func() error { return st.AddDevice(dev) }},
		{"services", s.enableServices},
		{"machine rooms", s.addMachineRooms},
		{"elevator groups", s.addGroups},
		{"escalators", s.addEscalators},
		{"lifts", s.addLifts},
		{"optional properties", s.enableProperties},
		{"notification class", func() error {
			return st.AddNotificationClassObject(dev, nc.Instance,
				nc.Priorities[0], nc.Priorities[1], nc.Priorities[2],
				nc.AckRequired[0], nc.AckRequired[1], nc.AckRequired[2])
		}},
		{"recipient", func() error {
			return st.AddRecipientToNotificationClass(dev, nc.Instance, nc.Recipient)
		}},
		{"alarms", func() error { return s.enableAlarms(nc.Instance) }},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			return fmt.Errorf("setup %s: %w", step.name, err)
		}
	}

	s.logger.Info("device ready",
		slog.Uint64("device", uint64(dev)),
		slog.String("name", s.db.Device().Name),
		slog.Int("lifts", len(s.db.LiftInstances())),
		slog.Int("escalators", len(s.db.EscalatorInstances())),
	)
	return nil
}

func (s *Server) enableServices() error {
	services := []bacnet.ServiceSupported{
		bacnet.ServiceSupportedIAm,
		bacnet.ServiceSupportedReadPropertyMultiple,
		bacnet.ServiceSupportedWriteProperty,
		bacnet.ServiceSupportedWritePropertyMultiple,
		bacnet.ServiceSupportedSubscribeCOVProperty,
		bacnet.ServiceSupportedAcknowledgeAlarm,
		bacnet.ServiceSupportedGetEventInformation,
	}
	for _, svc := range services {
		if err := s.stack.SetServiceEnabled(s.device, svc, true); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) addMachineRooms() error {
	for _, id := range s.db.MachineRoomInstances() {
		if err := s.stack.AddPositiveIntegerValueObject(s.device, id); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) addGroups() error {
	for _, id := range s.db.GroupInstances() {
		g, err := s.db.Group(id)
		if err != nil {
			return err
		}
		// Only a group of lifts takes landing calls.
		if err := s.stack.AddElevatorGroupObject(s.device, g.Instance, g.MachineRoom, g.GroupID, g.Lifts, g.Lifts); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) addEscalators() error {
	for _, id := range s.db.EscalatorInstances() {
		e, err := s.db.Escalator(id)
		if err != nil {
			return err
		}
		if err := s.stack.AddLiftOrEscalatorObject(s.device, bacnet.ObjectTypeEscalator, e.Instance, e.Group, e.GroupID, e.InstallationID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) addLifts() error {
	for _, id := range s.db.LiftInstances() {
		l, err := s.db.Lift(id)
		if err != nil {
			return err
		}
		if err := s.stack.AddLiftOrEscalatorObject(s.device, bacnet.ObjectTypeLift, l.Instance, l.Group, l.GroupID, l.InstallationID); err != nil {
			return err
		}
		if l.HigherDeck != bacnet.NoInstance || l.LowerDeck != bacnet.NoInstance {
			if err := s.stack.SetLiftHigherLowerDeck(s.device, l.Instance, l.HigherDeck, l.LowerDeck); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Server) enableProperties() error {
	dev := s.device
	st := s.stack

	enabled := map[bacnet.ObjectType][]bacnet.PropertyIdentifier{
		bacnet.ObjectTypeEscalator: {
			bacnet.PropertyFaultSignals,
			bacnet.PropertyEnergyMeter,
		},
		bacnet.ObjectTypeLift: {
			bacnet.PropertyFloorText,
			bacnet.PropertyFaultSignals,
			bacnet.PropertyEnergyMeter,
			bacnet.PropertyMakingCarCall,
			bacnet.PropertyRegisteredCarCall,
			bacnet.PropertyAssignedLandingCalls,
			bacnet.PropertyLandingDoorStatus,
		},
	}
	for _, objectType := range []bacnet.ObjectType{bacnet.ObjectTypeEscalator, bacnet.ObjectTypeLift} {
		for _, prop := range enabled[objectType] {
			if err := st.SetPropertyByObjectTypeEnabled(dev, objectType, prop, true); err != nil {
				return err
			}
		}
	}
	if err := st.SetPropertyByObjectTypeWritable(dev, bacnet.ObjectTypeLift, bacnet.PropertyMakingCarCall, true); err != nil {
		return err
	}

	for _, prop := range liftSubscribable {
		if err := st.SetPropertyByObjectTypeSubscribable(dev, bacnet.ObjectTypeLift, prop, true); err != nil {
			return err
		}
	}
	for _, id := range s.db.GroupInstances() {
		g, err := s.db.Group(id)
		if err != nil {
			return err
		}
		if !g.Lifts {
			continue
		}
		if err := st.SetPropertySubscribable(dev, bacnet.ObjectTypeElevatorGroup, g.Instance, bacnet.PropertyGroupMode, true); err != nil {
			return err
		}
	}
	return nil
}

// liftSubscribable lists the lift properties a client may subscribe to.
var liftSubscribable = []bacnet.PropertyIdentifier{
	bacnet.PropertyPassengerAlarm,
	bacnet.PropertyCarMovingDirection,
	bacnet.PropertyCarPosition,
	bacnet.PropertyCarDoorStatus,
	bacnet.PropertyFaultSignals,
}

func (s *Server) enableAlarms(notificationClass uint32) error {
	for _, id := range s.db.LiftInstances() {
		err := s.stack.EnableAlarmsAndEventsForObject(s.device, bacnet.ObjectTypeLift, id,
			notificationClass, bacnet.NotifyTypeAlarm, true, true, true, true)
		if err != nil {
			return err
		}
	}
	return nil
}

// Announce broadcasts an I-Am for the device.
func (s *Server) Announce() error {
	if err := s.stack.SendIAm(s.device); err != nil {
		return fmt.Errorf("announce: %w", err)
	}
	return nil
}

// notify tells the stack a property changed.
func (s *Server) notify(objectType bacnet.ObjectType, instance uint32, prop bacnet.PropertyIdentifier) {
	if err := s.stack.ValueUpdated(s.device, objectType, instance, prop); err != nil {
		s.logger.Warn("value update failed",
			slog.String("object", bacnet.NewObjectIdentifier(objectType, instance).String()),
			slog.String("property", prop.String()),
			slog.String("error", err.Error()),
		)
	}
}

// bacnetError maps a database error to the error reported to the peer.
func bacnetError(err error) error {
	switch {
	case errors.Is(err, database.ErrInvalidDoor):
		return bacnet.NewBACnetError(bacnet.ErrorClassProperty, bacnet.ErrorCodeInvalidArrayIndex)
	case errors.Is(err, database.ErrFloorOutOfRange):
		return bacnet.NewBACnetError(bacnet.ErrorClassProperty, bacnet.ErrorCodeValueOutOfRange)
	case errors.Is(err, database.ErrUnknownLift), errors.Is(err, database.ErrUnknownGroup):
		return bacnet.NewBACnetError(bacnet.ErrorClassObject, bacnet.ErrorCodeUnknownObject)
	}
	return bacnet.NewBACnetError(bacnet.ErrorClassProperty, bacnet.ErrorCodeWriteAccessDenied)
}

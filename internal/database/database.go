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

// Package database holds the in-memory objects of the elevator example
// device: two elevator groups, their lifts and escalators, the machine
// rooms and the notification class used for alarms.
//
// All methods are safe for concurrent use. Lookups return deep copies, so
// a caller can keep a value while the stack and the console keep changing
// the database.
package database

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/tiendc/go-deepcopy"

	"github.com/edgeo/drivers/elevator/bacnet"
)

// Instances of the seeded objects.
const (
	DeviceInstance = 389001
	DeviceName     = "Elevator Example"

	EscalatorGroupInstance = 1000
	EscalatorAInstance     = 1001
	EscalatorBInstance     = 1002
	EscalatorHInstance     = 1003

	LiftGroupInstance = 2000
	LiftCInstance     = 2001
	LiftDInstance     = 2002
	LiftEInstance     = 2003
	LiftFInstance     = 2004
	LiftGInstance     = 2005

	MachineRoom1 = 1
	MachineRoom2 = 2

	NotificationClassInstance = 100
)

// maxLandingCalls bounds the landing-calls list of a group. The oldest
// call is dropped first.
const maxLandingCalls = 32

// FloorText names the floors served by every lift. The universal floor
// number indexes this array.
var FloorText = [...]string{"Basement", "Lobby", "One", "Two", "Three", "Four", "Five", "Roof"}

var (
	ErrUnknownLift      = errors.New("database: unknown lift")
	ErrUnknownEscalator = errors.New("database: unknown escalator")
	ErrUnknownGroup     = errors.New("database: unknown elevator group")
	ErrNotLiftGroup     = errors.New("database: elevator group has no lifts")
	ErrInvalidDoor      = errors.New("database: invalid car door")
	ErrFloorOutOfRange  = errors.New("database: floor out of range")
)

// Device is the device object.
type Device struct {
	Instance uint32 `json:"instance" yaml:"instance"`
	Name     string `json:"name" yaml:"name"`
}

// MachineRoom is a positive integer value object whose present value is
// the machine room identification number.
type MachineRoom struct {
	Instance uint32 `json:"instance" yaml:"instance"`
	Name     string `json:"name" yaml:"name"`
}

// ElevatorGroup is an elevator group object. Only a group of lifts
// carries a group mode and landing calls.
type ElevatorGroup struct {
	Instance           uint32                     `json:"instance" yaml:"instance"`
	Name               string                     `json:"name" yaml:"name"`
	MachineRoom        uint32                     `json:"machine_room" yaml:"machine_room"`
	GroupID            uint8                      `json:"group_id" yaml:"group_id"`
	Lifts              bool                       `json:"lifts" yaml:"lifts"`
	GroupMode          bacnet.LiftGroupMode       `json:"group_mode" yaml:"group_mode"`
	LandingCallControl bacnet.LandingCallStatus   `json:"landing_call_control" yaml:"landing_call_control"`
	LandingCalls       []bacnet.LandingCallStatus `json:"landing_calls" yaml:"landing_calls"`
}

// Lift is a lift object. The per door slices (car door text and status,
// making car call and the three call lists) all have one entry per car
// door.
type Lift struct {
	Instance       uint32 `json:"instance" yaml:"instance"`
	Name           string `json:"name" yaml:"name"`
	Group          uint32 `json:"group" yaml:"group"`
	GroupID        uint8  `json:"group_id" yaml:"group_id"`
	InstallationID uint8  `json:"installation_id" yaml:"installation_id"`
	HigherDeck     uint32 `json:"higher_deck" yaml:"higher_deck"`
	LowerDeck      uint32 `json:"lower_deck" yaml:"lower_deck"`

	CarDoorText          []string                       `json:"car_door_text" yaml:"car_door_text"`
	CarDoorStatus        []bacnet.DoorStatus            `json:"car_door_status" yaml:"car_door_status"`
	MakingCarCall        []uint8                        `json:"making_car_call" yaml:"making_car_call"`
	RegisteredCarCalls   [][]uint8                      `json:"registered_car_calls" yaml:"registered_car_calls"`
	AssignedLandingCalls [][]bacnet.AssignedLandingCall `json:"assigned_landing_calls" yaml:"assigned_landing_calls"`
	LandingDoorStatus    [][]bacnet.LandingDoor         `json:"landing_door_status" yaml:"landing_door_status"`

	FaultSignals       []bacnet.LiftFault      `json:"fault_signals" yaml:"fault_signals"`
	PassengerAlarm     bool                    `json:"passenger_alarm" yaml:"passenger_alarm"`
	CarMovingDirection bacnet.LiftCarDirection `json:"car_moving_direction" yaml:"car_moving_direction"`
	CarPosition        uint8                   `json:"car_position" yaml:"car_position"`
	EnergyMeter        float32                 `json:"energy_meter" yaml:"energy_meter"`
}

// Doors returns the number of car doors.
func (l *Lift) Doors() int {
	return len(l.CarDoorText)
}

// Escalator is an escalator object.
type Escalator struct {
	Instance           uint32                             `json:"instance" yaml:"instance"`
	Name               string                             `json:"name" yaml:"name"`
	Group              uint32                             `json:"group" yaml:"group"`
	GroupID            uint8                              `json:"group_id" yaml:"group_id"`
	InstallationID     uint8                              `json:"installation_id" yaml:"installation_id"`
	OperationDirection bacnet.EscalatorOperationDirection `json:"operation_direction" yaml:"operation_direction"`
	PassengerAlarm     bool                               `json:"passenger_alarm" yaml:"passenger_alarm"`
	FaultSignals       []bacnet.EscalatorFault            `json:"fault_signals" yaml:"fault_signals"`
	EnergyMeter        float32                            `json:"energy_meter" yaml:"energy_meter"`
}

// NotificationClass is the notification class every lift reports its
// alarms to.
type NotificationClass struct {
	Instance    uint32             `json:"instance" yaml:"instance"`
	Priorities  [3]uint8           `json:"priorities" yaml:"priorities"`
	AckRequired [3]bool            `json:"ack_required" yaml:"ack_required"`
	Recipient   bacnet.Destination `json:"-" yaml:"-"`
}

// Snapshot is a copy of the whole database.
type Snapshot struct {
	Device            Device            `json:"device" yaml:"device"`
	Groups            []ElevatorGroup   `json:"groups" yaml:"groups"`
	Lifts             []Lift            `json:"lifts" yaml:"lifts"`
	Escalators        []Escalator       `json:"escalators" yaml:"escalators"`
	MachineRooms      []MachineRoom     `json:"machine_rooms" yaml:"machine_rooms"`
	NotificationClass NotificationClass `json:"notification_class" yaml:"notification_class"`
}

// Database is the in-memory object store.
type Database struct {
	mu         sync.RWMutex
	device     Device
	groups     map[uint32]*ElevatorGroup
	lifts      map[uint32]*Lift
	escalators map[uint32]*Escalator
	rooms      map[uint32]*MachineRoom
	nc         NotificationClass
}

// Option configures a Database.
type Option func(*Database)

// WithDevice overrides the device instance and name.
func WithDevice(instance uint32, name string) Option {
	return func(db *Database) {
		db.device = Device{Instance: instance, Name: name}
	}
}

// WithRecipient sets the recipient of the notification class.
func WithRecipient(dest bacnet.Destination) Option {
	return func(db *Database) {
		db.nc.Recipient = dest
	}
}

// DefaultRecipient is the notification class recipient: 192.168.1.84 on
// the standard port, every day, all day, unconfirmed, for all transitions.
func DefaultRecipient() bacnet.Destination {
	return bacnet.Destination{
		ValidDays:         [7]bool{true, true, true, true, true, true, true},
		FromTime:          bacnet.Time{},
		ToTime:            bacnet.Time{Hour: 23, Minute: 59, Second: 59, Hundredths: 99},
		MAC:               []byte{0xC0, 0xA8, 0x01, 0x54, 0xBA, 0xC0},
		ProcessIdentifier: 1,
		IssueConfirmed:    false,
		Transitions:       [3]bool{true, true, true},
	}
}

// New returns the seeded example database.
func New(opts ...Option) *Database {
	db := &Database{
		device:     Device{Instance: DeviceInstance, Name: DeviceName},
		groups:     make(map[uint32]*ElevatorGroup),
		lifts:      make(map[uint32]*Lift),
		escalators: make(map[uint32]*Escalator),
		rooms:      make(map[uint32]*MachineRoom),
		nc: NotificationClass{
			Instance:    NotificationClassInstance,
			Priorities:  [3]uint8{10, 100, 200},
			AckRequired: [3]bool{true, true, true},
			Recipient:   DefaultRecipient(),
		},
	}
	db.seed()

	for _, opt := range opts {
		opt(db)
	}
	return db
}

func (db *Database) seed() {
	db.rooms[MachineRoom1] = &MachineRoom{Instance: MachineRoom1, Name: "Machine room (1)"}
	db.rooms[MachineRoom2] = &MachineRoom{Instance: MachineRoom2, Name: "Machine room (2)"}

	db.groups[EscalatorGroupInstance] = &ElevatorGroup{
		Instance:    EscalatorGroupInstance,
		Name:        "ESCALATOR Group",
		MachineRoom: MachineRoom1,
		GroupID:     1,
	}
	db.groups[LiftGroupInstance] = &ElevatorGroup{
		Instance:    LiftGroupInstance,
		Name:        "LIFT Group",
		MachineRoom: MachineRoom2,
		GroupID:     2,
		Lifts:       true,
		GroupMode:   bacnet.LiftGroupModeNormal,
		LandingCallControl: bacnet.LandingCallStatus{
			Command:   bacnet.LandingCallCommandDirection,
			Direction: bacnet.LiftCarDirectionUnknown,
		},
		LandingCalls: []bacnet.LandingCallStatus{},
	}

	db.escalators[EscalatorAInstance] = newEscalator(EscalatorAInstance, "Moving sidewalk (A)", EscalatorGroupInstance, 1, 1)
	db.escalators[EscalatorBInstance] = newEscalator(EscalatorBInstance, "Moving sidewalk (B)", EscalatorGroupInstance, 1, 2)
	db.escalators[EscalatorHInstance] = newEscalator(EscalatorHInstance, "Moving sidewalk (H)", bacnet.NoInstance, 4, 1)

	db.lifts[LiftCInstance] = newLift(LiftCInstance, "People lifts (C)", LiftGroupInstance, 2, 1)
	db.lifts[LiftDInstance] = newLift(LiftDInstance, "People lifts (D)", LiftGroupInstance, 2, 2)
	db.lifts[LiftEInstance] = newLift(LiftEInstance, "Top of a double decker People lifts (E)", LiftGroupInstance, 2, 3)
	db.lifts[LiftFInstance] = newLift(LiftFInstance, "Bottom of a double decker People lifts (F)", LiftGroupInstance, 2, 4)
	db.lifts[LiftGInstance] = newLift(LiftGInstance, "People lifts (G)", bacnet.NoInstance, 3, 1, "Front", "Rear")

	db.lifts[LiftEInstance].LowerDeck = LiftFInstance
	db.lifts[LiftFInstance].HigherDeck = LiftEInstance

	d := db.lifts[LiftDInstance]
	d.FaultSignals = []bacnet.LiftFault{
		bacnet.LiftFaultDriveAndMotorFault,
		bacnet.LiftFaultCallButtonStuck,
		bacnet.LiftFaultPositionLost,
	}
	d.RegisteredCarCalls[0] = []uint8{2}
	d.AssignedLandingCalls[0] = []bacnet.AssignedLandingCall{{FloorNumber: 2, Direction: bacnet.LiftCarDirectionUp}}

	e := db.lifts[LiftEInstance]
	e.RegisteredCarCalls[0] = []uint8{4, 6}
	e.AssignedLandingCalls[0] = []bacnet.AssignedLandingCall{
		{FloorNumber: 4, Direction: bacnet.LiftCarDirectionUpAndDown},
		{FloorNumber: 6, Direction: bacnet.LiftCarDirectionDown},
	}

	f := db.lifts[LiftFInstance]
	f.RegisteredCarCalls[0] = []uint8{3, 5}
	f.AssignedLandingCalls[0] = []bacnet.AssignedLandingCall{
		{FloorNumber: 3, Direction: bacnet.LiftCarDirectionUpAndDown},
		{FloorNumber: 5, Direction: bacnet.LiftCarDirectionDown},
	}

	// G serves its floors through two doors. Only the rear landing doors
	// report a status.
	g := db.lifts[LiftGInstance]
	g.RegisteredCarCalls = [][]uint8{{1, 2, 3}, {0, 5}}
	g.AssignedLandingCalls = [][]bacnet.AssignedLandingCall{
		{
			{FloorNumber: 1, Direction: bacnet.LiftCarDirectionUp},
			{FloorNumber: 2, Direction: bacnet.LiftCarDirectionUpAndDown},
			{FloorNumber: 3, Direction: bacnet.LiftCarDirectionDown},
		},
		{
			{FloorNumber: 0, Direction: bacnet.LiftCarDirectionUp},
			{FloorNumber: 5, Direction: bacnet.LiftCarDirectionDown},
		},
	}
	g.LandingDoorStatus = [][]bacnet.LandingDoor{
		{},
		{
			{FloorNumber: 0, Status: bacnet.DoorStatusClosed},
			{FloorNumber: 7, Status: bacnet.DoorStatusSafetyLocked},
		},
	}
}

func newLift(instance uint32, name string, group uint32, groupID, installationID uint8, doors ...string) *Lift {
	if len(doors) == 0 {
		doors = []string{"Front"}
	}
	n := len(doors)

	l := &Lift{
		Instance:             instance,
		Name:                 name,
		Group:                group,
		GroupID:              groupID,
		InstallationID:       installationID,
		HigherDeck:           bacnet.NoInstance,
		LowerDeck:            bacnet.NoInstance,
		CarDoorText:          doors,
		CarDoorStatus:        make([]bacnet.DoorStatus, n),
		MakingCarCall:        make([]uint8, n),
		RegisteredCarCalls:   make([][]uint8, n),
		AssignedLandingCalls: make([][]bacnet.AssignedLandingCall, n),
		LandingDoorStatus:    make([][]bacnet.LandingDoor, n),
		FaultSignals:         []bacnet.LiftFault{},
		CarMovingDirection:   bacnet.LiftCarDirectionNone,
		CarPosition:          3,
	}
	for i := 0; i < n; i++ {
		l.RegisteredCarCalls[i] = []uint8{}
		l.AssignedLandingCalls[i] = []bacnet.AssignedLandingCall{}
		l.LandingDoorStatus[i] = []bacnet.LandingDoor{}
	}
	for floor := range FloorText {
		l.LandingDoorStatus[0] = append(l.LandingDoorStatus[0], bacnet.LandingDoor{
			FloorNumber: uint8(floor),
			Status:      bacnet.DoorStatusClosed,
		})
	}
	return l
}

func newEscalator(instance uint32, name string, group uint32, groupID, installationID uint8) *Escalator {
	return &Escalator{
		Instance:           instance,
		Name:               name,
		Group:              group,
		GroupID:            groupID,
		InstallationID:     installationID,
		OperationDirection: bacnet.EscalatorDirectionUnknown,
		PassengerAlarm:     true,
		FaultSignals: []bacnet.EscalatorFault{
			bacnet.EscalatorFaultMechanicalComponentFault,
			bacnet.EscalatorFaultDriveTemperatureExceeded,
		},
	}
}

func clone[T any](src *T) (T, error) {
	var dst T
	if err := deepcopy.Copy(&dst, src); err != nil {
		return dst, fmt.Errorf("database: copy %T: %w", dst, err)
	}
	return dst, nil
}

func sortedKeys[T any](m map[uint32]T) []uint32 {
	keys := make([]uint32, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Device returns the device object.
func (db *Database) Device() Device {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.device
}

// NotificationClass returns a copy of the notification class.
func (db *Database) NotificationClass() (NotificationClass, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return clone(&db.nc)
}

// Lift returns a copy of a lift.
func (db *Database) Lift(instance uint32) (Lift, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	l, ok := db.lifts[instance]
	if !ok {
		return Lift{}, fmt.Errorf("%w: %d", ErrUnknownLift, instance)
	}
	return clone(l)
}

// LiftInstances returns the lift instances in ascending order.
func (db *Database) LiftInstances() []uint32 {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return sortedKeys(db.lifts)
}

// Escalator returns a copy of an escalator.
func (db *Database) Escalator(instance uint32) (Escalator, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	e, ok := db.escalators[instance]
	if !ok {
		return Escalator{}, fmt.Errorf("%w: %d", ErrUnknownEscalator, instance)
	}
	return clone(e)
}

// EscalatorInstances returns the escalator instances in ascending order.
func (db *Database) EscalatorInstances() []uint32 {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return sortedKeys(db.escalators)
}

// Group returns a copy of an elevator group.
func (db *Database) Group(instance uint32) (ElevatorGroup, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	g, ok := db.groups[instance]
	if !ok {
		return ElevatorGroup{}, fmt.Errorf("%w: %d", ErrUnknownGroup, instance)
	}
	return clone(g)
}

// GroupInstances returns the elevator group instances in ascending order.
func (db *Database) GroupInstances() []uint32 {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return sortedKeys(db.groups)
}

// MachineRoom returns a machine room.
func (db *Database) MachineRoom(instance uint32) (MachineRoom, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	r, ok := db.rooms[instance]
	if !ok {
		return MachineRoom{}, false
	}
	return *r, true
}

// MachineRoomInstances returns the machine room instances in ascending
// order.
func (db *Database) MachineRoomInstances() []uint32 {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return sortedKeys(db.rooms)
}

// ObjectName returns the object-name of any object in the database.
func (db *Database) ObjectName(objectType bacnet.ObjectType, instance uint32) (string, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	switch objectType {
	case bacnet.ObjectTypeDevice:
		if instance == db.device.Instance {
			return db.device.Name, true
		}
	case bacnet.ObjectTypeElevatorGroup:
		if g, ok := db.groups[instance]; ok {
			return g.Name, true
		}
	case bacnet.ObjectTypeLift:
		if l, ok := db.lifts[instance]; ok {
			return l.Name, true
		}
	case bacnet.ObjectTypeEscalator:
		if e, ok := db.escalators[instance]; ok {
			return e.Name, true
		}
	case bacnet.ObjectTypePositiveIntegerValue:
		if r, ok := db.rooms[instance]; ok {
			return r.Name, true
		}
	}
	return "", false
}

// Snapshot returns a copy of every object, each kind sorted by instance.
func (db *Database) Snapshot() (Snapshot, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	snap := Snapshot{Device: db.device}
	for _, id := range sortedKeys(db.groups) {
		g, err := clone(db.groups[id])
		if err != nil {
			return Snapshot{}, err
		}
		snap.Groups = append(snap.Groups, g)
	}
	for _, id := range sortedKeys(db.lifts) {
		l, err := clone(db.lifts[id])
		if err != nil {
			return Snapshot{}, err
		}
		snap.Lifts = append(snap.Lifts, l)
	}
	for _, id := range sortedKeys(db.escalators) {
		e, err := clone(db.escalators[id])
		if err != nil {
			return Snapshot{}, err
		}
		snap.Escalators = append(snap.Escalators, e)
	}
	for _, id := range sortedKeys(db.rooms) {
		snap.MachineRooms = append(snap.MachineRooms, *db.rooms[id])
	}
	nc, err := clone(&db.nc)
	if err != nil {
		return Snapshot{}, err
	}
	snap.NotificationClass = nc
	return snap, nil
}

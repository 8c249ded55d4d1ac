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

package database

import (
	"fmt"

	"github.com/edgeo/drivers/elevator/bacnet"
)

// withLift runs fn on a lift under the write lock.
func (db *Database) withLift(instance uint32, fn func(l *Lift) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	l, ok := db.lifts[instance]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownLift, instance)
	}
	return fn(l)
}

func (db *Database) withLiftGroup(instance uint32, fn func(g *ElevatorGroup) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	g, ok := db.groups[instance]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownGroup, instance)
	}
	if !g.Lifts {
		return fmt.Errorf("%w: %d", ErrNotLiftGroup, instance)
	}
	return fn(g)
}

// ToggleFaultSignal adds fault to the fault signals of a lift, or removes
// it when already present. It reports whether the fault is now active.
func (db *Database) ToggleFaultSignal(lift uint32, fault bacnet.LiftFault) (bool, error) {
	var active bool
	err := db.withLift(lift, func(l *Lift) error {
		for i, f := range l.FaultSignals {
			if f == fault {
				l.FaultSignals = append(l.FaultSignals[:i], l.FaultSignals[i+1:]...)
				return nil
			}
		}
		l.FaultSignals = append(l.FaultSignals, fault)
		active = true
		return nil
	})
	return active, err
}

// TogglePassengerAlarm flips the passenger alarm of a lift and returns
// the new value.
func (db *Database) TogglePassengerAlarm(lift uint32) (bool, error) {
	var alarm bool
	err := db.withLift(lift, func(l *Lift) error {
		l.PassengerAlarm = !l.PassengerAlarm
		alarm = l.PassengerAlarm
		return nil
	})
	return alarm, err
}

// NextCarMovingDirection advances the car moving direction of a lift,
// wrapping to unknown after up-and-down.
func (db *Database) NextCarMovingDirection(lift uint32) (bacnet.LiftCarDirection, error) {
	var dir bacnet.LiftCarDirection
	err := db.withLift(lift, func(l *Lift) error {
		l.CarMovingDirection++
		if l.CarMovingDirection > bacnet.LiftCarDirectionUpAndDown {
			l.CarMovingDirection = bacnet.LiftCarDirectionUnknown
		}
		dir = l.CarMovingDirection
		return nil
	})
	return dir, err
}

// NextCarPosition moves the car of a lift one floor up, wrapping to the
// lowest floor after the highest.
func (db *Database) NextCarPosition(lift uint32) (uint8, error) {
	var pos uint8
	err := db.withLift(lift, func(l *Lift) error {
		l.CarPosition++
		if int(l.CarPosition) >= len(FloorText) {
			l.CarPosition = 0
		}
		pos = l.CarPosition
		return nil
	})
	return pos, err
}

// NextCarDoorStatus advances the status of the first car door of a lift,
// wrapping to closed after limited-opened.
func (db *Database) NextCarDoorStatus(lift uint32) (bacnet.DoorStatus, error) {
	var status bacnet.DoorStatus
	err := db.withLift(lift, func(l *Lift) error {
		if len(l.CarDoorStatus) == 0 {
			return fmt.Errorf("%w: lift %d has no doors", ErrInvalidDoor, lift)
		}
		l.CarDoorStatus[0]++
		if l.CarDoorStatus[0] > bacnet.DoorStatusLimitedOpened {
			l.CarDoorStatus[0] = bacnet.DoorStatusClosed
		}
		status = l.CarDoorStatus[0]
		return nil
	})
	return status, err
}

// SetMakingCarCall records a car call made through door (1-based) of a
// lift.
func (db *Database) SetMakingCarCall(lift, door uint32, floor uint32) error {
	return db.withLift(lift, func(l *Lift) error {
		if door == 0 || int(door) > len(l.MakingCarCall) {
			return fmt.Errorf("%w: door %d of lift %d", ErrInvalidDoor, door, lift)
		}
		if int(floor) >= len(FloorText) {
			return fmt.Errorf("%w: %d", ErrFloorOutOfRange, floor)
		}
		l.MakingCarCall[door-1] = uint8(floor)
		return nil
	})
}

// ToggleGroupMode switches a group of lifts between normal and unknown
// and returns the new mode.
func (db *Database) ToggleGroupMode(group uint32) (bacnet.LiftGroupMode, error) {
	var mode bacnet.LiftGroupMode
	err := db.withLiftGroup(group, func(g *ElevatorGroup) error {
		if g.GroupMode == bacnet.LiftGroupModeNormal {
			g.GroupMode = bacnet.LiftGroupModeUnknown
		} else {
			g.GroupMode = bacnet.LiftGroupModeNormal
		}
		mode = g.GroupMode
		return nil
	})
	return mode, err
}

// SetLandingCallControl stores the last landing call written to a group
// of lifts. The floor is stored as written, even past the floor texts.
func (db *Database) SetLandingCallControl(group uint32, status bacnet.LandingCallStatus) error {
	return db.withLiftGroup(group, func(g *ElevatorGroup) error {
		g.LandingCallControl = status
		return nil
	})
}

// AddLandingCall appends an active landing call to a group of lifts.
func (db *Database) AddLandingCall(group uint32, status bacnet.LandingCallStatus) error {
	return db.withLiftGroup(group, func(g *ElevatorGroup) error {
		if len(g.LandingCalls) >= maxLandingCalls {
			g.LandingCalls = g.LandingCalls[1:]
		}
		g.LandingCalls = append(g.LandingCalls, status)
		return nil
	})
}

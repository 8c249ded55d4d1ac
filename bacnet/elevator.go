package bacnet

import (
	"fmt"
)

// LiftCarDirection is the BACnetLiftCarDirection enumeration
type LiftCarDirection uint8

const (
	LiftCarDirectionUnknown   LiftCarDirection = 0
	LiftCarDirectionNone      LiftCarDirection = 1
	LiftCarDirectionStopped   LiftCarDirection = 2
	LiftCarDirectionUp        LiftCarDirection = 3
	LiftCarDirectionDown      LiftCarDirection = 4
	LiftCarDirectionUpAndDown LiftCarDirection = 5
)

var liftCarDirectionNames = []string{"unknown", "none", "stopped", "up", "down", "up-and-down"}

func (d LiftCarDirection) String() string {
	if int(d) < len(liftCarDirectionNames) {
		return liftCarDirectionNames[d]
	}
	return fmt.Sprintf("direction(%d)", d)
}

// ParseLiftCarDirection parses a direction name.
func ParseLiftCarDirection(s string) (LiftCarDirection, bool) {
	for i, name := range liftCarDirectionNames {
		if name == s {
			return LiftCarDirection(i), true
		}
	}
	return 0, false
}

// DoorStatus is the BACnetDoorStatus enumeration
type DoorStatus uint8

const (
	DoorStatusClosed        DoorStatus = 0
	DoorStatusOpened        DoorStatus = 1
	DoorStatusUnknown       DoorStatus = 2
	DoorStatusDoorFault     DoorStatus = 3
	DoorStatusUnused        DoorStatus = 4
	DoorStatusNone          DoorStatus = 5
	DoorStatusClosing       DoorStatus = 6
	DoorStatusOpening       DoorStatus = 7
	DoorStatusSafetyLocked  DoorStatus = 8
	DoorStatusLimitedOpened DoorStatus = 9
)

var doorStatusNames = []string{
	"closed", "opened", "unknown", "door-fault", "unused",
	"none", "closing", "opening", "safety-locked", "limited-opened",
}

func (d DoorStatus) String() string {
	if int(d) < len(doorStatusNames) {
		return doorStatusNames[d]
	}
	return fmt.Sprintf("door-status(%d)", d)
}

// LiftGroupMode is the BACnetLiftGroupMode enumeration
type LiftGroupMode uint8

const (
	LiftGroupModeUnknown        LiftGroupMode = 0
	LiftGroupModeNormal         LiftGroupMode = 1
	LiftGroupModeDownPeak       LiftGroupMode = 2
	LiftGroupModeTwoWay         LiftGroupMode = 3
	LiftGroupModeFourWay        LiftGroupMode = 4
	LiftGroupModeEmergencyPower LiftGroupMode = 5
	LiftGroupModeUpPeak         LiftGroupMode = 6
)

var liftGroupModeNames = []string{
	"unknown", "normal", "down-peak", "two-way", "four-way", "emergency-power", "up-peak",
}

func (m LiftGroupMode) String() string {
	if int(m) < len(liftGroupModeNames) {
		return liftGroupModeNames[m]
	}
	return fmt.Sprintf("group-mode(%d)", m)
}

// EscalatorOperationDirection is the BACnetEscalatorOperationDirection enumeration
type EscalatorOperationDirection uint8

const (
	EscalatorDirectionUnknown     EscalatorOperationDirection = 0
	EscalatorDirectionStopped     EscalatorOperationDirection = 1
	EscalatorDirectionUpRated     EscalatorOperationDirection = 2
	EscalatorDirectionUpReduced   EscalatorOperationDirection = 3
	EscalatorDirectionDownRated   EscalatorOperationDirection = 4
	EscalatorDirectionDownReduced EscalatorOperationDirection = 5
)

var escalatorDirectionNames = []string{
	"unknown", "stopped", "up-rated-speed", "up-reduced-speed", "down-rated-speed", "down-reduced-speed",
}

func (d EscalatorOperationDirection) String() string {
	if int(d) < len(escalatorDirectionNames) {
		return escalatorDirectionNames[d]
	}
	return fmt.Sprintf("operation-direction(%d)", d)
}

// LiftFault is the BACnetLiftFault enumeration
type LiftFault uint8

const (
	LiftFaultControllerFault              LiftFault = 0
	LiftFaultDriveAndMotorFault           LiftFault = 1
	LiftFaultGovernorAndSafetyGearFault   LiftFault = 2
	LiftFaultLiftShaftDeviceFault         LiftFault = 3
	LiftFaultPowerSupplyFault             LiftFault = 4
	LiftFaultSafetyInterlockFault         LiftFault = 5
	LiftFaultDoorClosingFault             LiftFault = 6
	LiftFaultDoorOpeningFault             LiftFault = 7
	LiftFaultCarStoppedOutsideLandingZone LiftFault = 8
	LiftFaultCallButtonStuck              LiftFault = 9
	LiftFaultStartFailure                 LiftFault = 10
	LiftFaultControllerSupplyFault        LiftFault = 11
	LiftFaultSelfTestFailure              LiftFault = 12
	LiftFaultRuntimeLimitExceeded         LiftFault = 13
	LiftFaultPositionLost                 LiftFault = 14
	LiftFaultDriveTemperatureExceeded     LiftFault = 15
	LiftFaultLoadMeasurementFault         LiftFault = 16

	// LiftFaultCount is the number of defined lift faults.
	LiftFaultCount = 17
)

var liftFaultNames = [LiftFaultCount]string{
	"controller-fault", "drive-and-motor-fault", "governor-and-safety-gear-fault",
	"lift-shaft-device-fault", "power-supply-fault", "safety-interlock-fault",
	"door-closing-fault", "door-opening-fault", "car-stopped-outside-landing-zone",
	"call-button-stuck", "start-failure", "controller-supply-fault",
	"self-test-failure", "runtime-limit-exceeded", "position-lost",
	"drive-temperature-exceeded", "load-measurement-fault",
}

func (f LiftFault) String() string {
	if int(f) < len(liftFaultNames) {
		return liftFaultNames[f]
	}
	return fmt.Sprintf("lift-fault(%d)", f)
}

// EscalatorFault is the BACnetEscalatorFault enumeration
type EscalatorFault uint8

const (
	EscalatorFaultControllerFault          EscalatorFault = 0
	EscalatorFaultDriveAndMotorFault       EscalatorFault = 1
	EscalatorFaultMechanicalComponentFault EscalatorFault = 2
	EscalatorFaultOverspeedFault           EscalatorFault = 3
	EscalatorFaultPowerSupplyFault         EscalatorFault = 4
	EscalatorFaultSafetyDeviceFault        EscalatorFault = 5
	EscalatorFaultControllerSupplyFault    EscalatorFault = 6
	EscalatorFaultDriveTemperatureExceeded EscalatorFault = 7
	EscalatorFaultCombPlateFault           EscalatorFault = 8

	// EscalatorFaultCount is the number of defined escalator faults.
	EscalatorFaultCount = 9
)

var escalatorFaultNames = [EscalatorFaultCount]string{
	"controller-fault", "drive-and-motor-fault", "mechanical-component-fault",
	"overspeed-fault", "power-supply-fault", "safety-device-fault",
	"controller-supply-fault", "drive-temperature-exceeded", "comb-plate-fault",
}

func (f EscalatorFault) String() string {
	if int(f) < len(escalatorFaultNames) {
		return escalatorFaultNames[f]
	}
	return fmt.Sprintf("escalator-fault(%d)", f)
}

// LandingCallCommand selects the CHOICE carried by a LandingCallStatus
type LandingCallCommand uint8

const (
	LandingCallCommandNone LandingCallCommand = iota
	LandingCallCommandDirection
	LandingCallCommandDestination
)

func (c LandingCallCommand) String() string {
	switch c {
	case LandingCallCommandDirection:
		return "direction"
	case LandingCallCommandDestination:
		return "destination"
	}
	return "none"
}

// LandingCallStatus is a BACnetLandingCallStatus: a call registered at a
// landing, either as a travel direction or as a destination floor.
type LandingCallStatus struct {
	FloorNumber uint8
	Command     LandingCallCommand
	Direction   LiftCarDirection
	Destination uint8
	FloorText   string
}

func (l LandingCallStatus) String() string {
	var cmd string
	switch l.Command {
	case LandingCallCommandDirection:
		cmd = "direction=" + l.Direction.String()
	case LandingCallCommandDestination:
		cmd = fmt.Sprintf("destination=%d", l.Destination)
	default:
		cmd = "none"
	}
	if l.FloorText != "" {
		return fmt.Sprintf("{floor=%d %s text=%q}", l.FloorNumber, cmd, l.FloorText)
	}
	return fmt.Sprintf("{floor=%d %s}", l.FloorNumber, cmd)
}

// Encode encodes the landing call status as a context tagged sequence.
func (l LandingCallStatus) Encode() []byte {
	buf := EncodeContextUnsigned(0, uint32(l.FloorNumber))
	switch l.Command {
	case LandingCallCommandDirection:
		buf = append(buf, EncodeContextEnumerated(1, uint32(l.Direction))...)
	case LandingCallCommandDestination:
		buf = append(buf, EncodeContextUnsigned(2, uint32(l.Destination))...)
	}
	if l.FloorText != "" {
		buf = append(buf, EncodeContextTag(3, EncodeCharacterString(l.FloorText))...)
	}
	return buf
}

// DecodeLandingCallStatus decodes a landing call status from the reader.
// Decoding stops at the first tag that is not part of the sequence.
func DecodeLandingCallStatus(r *TagReader) (LandingCallStatus, error) {
	var l LandingCallStatus

	floor, err := r.ContextUnsigned(0)
	if err != nil {
		return l, fmt.Errorf("floor-number: %w", err)
	}
	if floor > 255 {
		return l, fmt.Errorf("%w: floor-number %d", ErrValueOutOfRange, floor)
	}
	l.FloorNumber = uint8(floor)

	switch {
	case r.IsContext(1):
		v, err := r.ContextUnsigned(1)
		if err != nil {
			return l, fmt.Errorf("direction: %w", err)
		}
		if v > uint32(LiftCarDirectionUpAndDown) {
			return l, fmt.Errorf("%w: direction %d", ErrValueOutOfRange, v)
		}
		l.Command = LandingCallCommandDirection
		l.Direction = LiftCarDirection(v)
	case r.IsContext(2):
		v, err := r.ContextUnsigned(2)
		if err != nil {
			return l, fmt.Errorf("destination: %w", err)
		}
		if v > 255 {
			return l, fmt.Errorf("%w: destination %d", ErrValueOutOfRange, v)
		}
		l.Command = LandingCallCommandDestination
		l.Destination = uint8(v)
	default:
		return l, fmt.Errorf("%w: landing call command missing", ErrInvalidParameter)
	}

	if r.IsContext(3) {
		text, err := r.ContextCharacterString(3)
		if err != nil {
			return l, fmt.Errorf("floor-text: %w", err)
		}
		l.FloorText = text
	}
	return l, nil
}

// AssignedLandingCall is one entry of a lift door's assigned landing calls.
type AssignedLandingCall struct {
	FloorNumber uint8
	Direction   LiftCarDirection
}

// LandingDoor is one entry of a lift door's landing door status list.
type LandingDoor struct {
	FloorNumber uint8
	Status      DoorStatus
}

// AcknowledgeAlarmRequest carries the parameters of an AcknowledgeAlarm
// service request.
type AcknowledgeAlarmRequest struct {
	ProcessIdentifier      uint32
	EventObject            ObjectIdentifier
	EventStateAcknowledged EventState
	EventTimeStamp         TimeStamp
	Source                 string
	TimeOfAcknowledgment   TimeStamp
}

// Encode encodes the request parameters.
func (a AcknowledgeAlarmRequest) Encode() []byte {
	buf := EncodeContextUnsigned(0, a.ProcessIdentifier)
	buf = append(buf, EncodeContextObjectIdentifier(1, a.EventObject)...)
	buf = append(buf, EncodeContextEnumerated(2, uint32(a.EventStateAcknowledged))...)
	buf = append(buf, a.EventTimeStamp.EncodeContext(3)...)
	buf = append(buf, EncodeContextTag(4, EncodeCharacterString(a.Source))...)
	buf = append(buf, a.TimeOfAcknowledgment.EncodeContext(5)...)
	return buf
}

// DecodeAcknowledgeAlarmRequest decodes AcknowledgeAlarm service parameters.
func DecodeAcknowledgeAlarmRequest(data []byte) (AcknowledgeAlarmRequest, error) {
	var a AcknowledgeAlarmRequest
	r := NewTagReader(data)

	var err error
	if a.ProcessIdentifier, err = r.ContextUnsigned(0); err != nil {
		return a, fmt.Errorf("process-identifier: %w", err)
	}
	if a.EventObject, err = r.ContextObjectIdentifier(1); err != nil {
		return a, fmt.Errorf("event-object-identifier: %w", err)
	}
	state, err := r.ContextUnsigned(2)
	if err != nil {
		return a, fmt.Errorf("event-state-acknowledged: %w", err)
	}
	a.EventStateAcknowledged = EventState(state)
	if a.EventTimeStamp, err = DecodeContextTimeStamp(r, 3); err != nil {
		return a, fmt.Errorf("time-stamp: %w", err)
	}
	if a.Source, err = r.ContextCharacterString(4); err != nil {
		return a, fmt.Errorf("acknowledgment-source: %w", err)
	}
	if a.TimeOfAcknowledgment, err = DecodeContextTimeStamp(r, 5); err != nil {
		return a, fmt.Errorf("time-of-acknowledgment: %w", err)
	}
	return a, nil
}

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

// Package bacnet provides a callback driven BACnet/IP device stack for
// elevator and escalator installations, together with the client used to
// query such devices.
package bacnet

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultPort is the standard BACnet/IP UDP port
const DefaultPort = 47808

// MaxAPDULength is the maximum APDU length for BACnet/IP
const MaxAPDULength = 1476

// NoInstance is the reserved instance number meaning "not configured".
const NoInstance uint32 = 4194303

// BVLCType is the BACnet Virtual Link Control type octet
type BVLCType uint8

const (
	BVLCTypeBACnetIP BVLCType = 0x81
)

// BVLCFunction is the BVLC function octet
type BVLCFunction uint8

const (
	BVLCResult                BVLCFunction = 0x00
	BVLCForwardedNPDU         BVLCFunction = 0x04
	BVLCOriginalUnicastNPDU   BVLCFunction = 0x0A
	BVLCOriginalBroadcastNPDU BVLCFunction = 0x0B
)

// NPDUControl is the NPDU network layer protocol control octet
type NPDUControl uint8

const (
	NPDUControlNetworkLayerMessage NPDUControl = 0x80
	NPDUControlDestSpecifier       NPDUControl = 0x20
	NPDUControlSourceSpecifier     NPDUControl = 0x08
	NPDUControlExpectingReply      NPDUControl = 0x04
	NPDUControlPriorityNormal      NPDUControl = 0x00
	NPDUControlPriorityUrgent      NPDUControl = 0x01
	NPDUControlPriorityCritical    NPDUControl = 0x02
	NPDUControlPriorityLifeSafety  NPDUControl = 0x03
)

// PDUType is the application layer PDU type
type PDUType uint8

const (
	PDUTypeConfirmedRequest   PDUType = 0x00
	PDUTypeUnconfirmedRequest PDUType = 0x10
	PDUTypeSimpleAck          PDUType = 0x20
	PDUTypeComplexAck         PDUType = 0x30
	PDUTypeSegmentAck         PDUType = 0x40
	PDUTypeError              PDUType = 0x50
	PDUTypeReject             PDUType = 0x60
	PDUTypeAbort              PDUType = 0x70
)

// ConfirmedServiceChoice identifies a confirmed service
type ConfirmedServiceChoice uint8

const (
	ServiceAcknowledgeAlarm           ConfirmedServiceChoice = 0
	ServiceConfirmedCOVNotification   ConfirmedServiceChoice = 1
	ServiceConfirmedEventNotification ConfirmedServiceChoice = 2
	ServiceGetAlarmSummary            ConfirmedServiceChoice = 3
	ServiceGetEnrollmentSummary       ConfirmedServiceChoice = 4
	ServiceSubscribeCOV               ConfirmedServiceChoice = 5
	ServiceReadProperty               ConfirmedServiceChoice = 12
	ServiceReadPropertyMultiple       ConfirmedServiceChoice = 14
	ServiceWriteProperty              ConfirmedServiceChoice = 15
	ServiceWritePropertyMultiple      ConfirmedServiceChoice = 16
	ServiceDeviceCommunicationControl ConfirmedServiceChoice = 17
	ServiceReinitializeDevice         ConfirmedServiceChoice = 20
	ServiceReadRange                  ConfirmedServiceChoice = 26
	ServiceSubscribeCOVProperty       ConfirmedServiceChoice = 28
	ServiceGetEventInformation        ConfirmedServiceChoice = 29
)

var confirmedServiceNames = map[ConfirmedServiceChoice]string{
	ServiceAcknowledgeAlarm:           "AcknowledgeAlarm",
	ServiceConfirmedCOVNotification:   "ConfirmedCOVNotification",
	ServiceConfirmedEventNotification: "ConfirmedEventNotification",
	ServiceGetAlarmSummary:            "GetAlarmSummary",
	ServiceGetEnrollmentSummary:       "GetEnrollmentSummary",
	ServiceSubscribeCOV:               "SubscribeCOV",
	ServiceReadProperty:               "ReadProperty",
	ServiceReadPropertyMultiple:       "ReadPropertyMultiple",
	ServiceWriteProperty:              "WriteProperty",
	ServiceWritePropertyMultiple:      "WritePropertyMultiple",
	ServiceDeviceCommunicationControl: "DeviceCommunicationControl",
	ServiceReinitializeDevice:         "ReinitializeDevice",
	ServiceReadRange:                  "ReadRange",
	ServiceSubscribeCOVProperty:       "SubscribeCOVProperty",
	ServiceGetEventInformation:        "GetEventInformation",
}

func (s ConfirmedServiceChoice) String() string {
	if name, ok := confirmedServiceNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", s)
}

// UnconfirmedServiceChoice identifies an unconfirmed service
type UnconfirmedServiceChoice uint8

const (
	ServiceIAm                          UnconfirmedServiceChoice = 0
	ServiceIHave                        UnconfirmedServiceChoice = 1
	ServiceUnconfirmedCOVNotification   UnconfirmedServiceChoice = 2
	ServiceUnconfirmedEventNotification UnconfirmedServiceChoice = 3
	ServiceTimeSynchronization          UnconfirmedServiceChoice = 6
	ServiceWhoHas                       UnconfirmedServiceChoice = 7
	ServiceWhoIs                        UnconfirmedServiceChoice = 8
	ServiceUTCTimeSynchronization       UnconfirmedServiceChoice = 9
)

var unconfirmedServiceNames = map[UnconfirmedServiceChoice]string{
	ServiceIAm:                          "I-Am",
	ServiceIHave:                        "I-Have",
	ServiceUnconfirmedCOVNotification:   "UnconfirmedCOVNotification",
	ServiceUnconfirmedEventNotification: "UnconfirmedEventNotification",
	ServiceTimeSynchronization:          "TimeSynchronization",
	ServiceWhoHas:                       "Who-Has",
	ServiceWhoIs:                        "Who-Is",
	ServiceUTCTimeSynchronization:       "UTCTimeSynchronization",
}

func (s UnconfirmedServiceChoice) String() string {
	if name, ok := unconfirmedServiceNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", s)
}

// ServiceSupported is a bit position in the device's
// protocol-services-supported bit string.
type ServiceSupported uint8

const (
	ServiceSupportedAcknowledgeAlarm      ServiceSupported = 0
	ServiceSupportedSubscribeCOV          ServiceSupported = 5
	ServiceSupportedReadProperty          ServiceSupported = 12
	ServiceSupportedReadPropertyMultiple  ServiceSupported = 14
	ServiceSupportedWriteProperty         ServiceSupported = 15
	ServiceSupportedWritePropertyMultiple ServiceSupported = 16
	ServiceSupportedIAm                   ServiceSupported = 26
	ServiceSupportedWhoIs                 ServiceSupported = 34
	ServiceSupportedSubscribeCOVProperty  ServiceSupported = 38
	ServiceSupportedGetEventInformation   ServiceSupported = 39

	servicesSupportedBits = 41
)

var serviceSupportedNames = map[ServiceSupported]string{
	ServiceSupportedAcknowledgeAlarm:      "acknowledge-alarm",
	ServiceSupportedSubscribeCOV:          "subscribe-cov",
	ServiceSupportedReadProperty:          "read-property",
	ServiceSupportedReadPropertyMultiple:  "read-property-multiple",
	ServiceSupportedWriteProperty:         "write-property",
	ServiceSupportedWritePropertyMultiple: "write-property-multiple",
	ServiceSupportedIAm:                   "i-am",
	ServiceSupportedWhoIs:                 "who-is",
	ServiceSupportedSubscribeCOVProperty:  "subscribe-cov-property",
	ServiceSupportedGetEventInformation:   "get-event-information",
}

func (s ServiceSupported) String() string {
	if name, ok := serviceSupportedNames[s]; ok {
		return name
	}
	return fmt.Sprintf("service(%d)", s)
}

// serviceForConfirmed maps a confirmed service choice to its bit in
// protocol-services-supported.
func serviceForConfirmed(s ConfirmedServiceChoice) (ServiceSupported, bool) {
	switch s {
	case ServiceAcknowledgeAlarm:
		return ServiceSupportedAcknowledgeAlarm, true
	case ServiceSubscribeCOV:
		return ServiceSupportedSubscribeCOV, true
	case ServiceReadProperty:
		return ServiceSupportedReadProperty, true
	case ServiceReadPropertyMultiple:
		return ServiceSupportedReadPropertyMultiple, true
	case ServiceWriteProperty:
		return ServiceSupportedWriteProperty, true
	case ServiceWritePropertyMultiple:
		return ServiceSupportedWritePropertyMultiple, true
	case ServiceSubscribeCOVProperty:
		return ServiceSupportedSubscribeCOVProperty, true
	case ServiceGetEventInformation:
		return ServiceSupportedGetEventInformation, true
	}
	return 0, false
}

// ObjectType represents BACnet object types
type ObjectType uint16

const (
	ObjectTypeAnalogInput          ObjectType = 0
	ObjectTypeAnalogOutput         ObjectType = 1
	ObjectTypeAnalogValue          ObjectType = 2
	ObjectTypeBinaryInput          ObjectType = 3
	ObjectTypeBinaryOutput         ObjectType = 4
	ObjectTypeBinaryValue          ObjectType = 5
	ObjectTypeDevice               ObjectType = 8
	ObjectTypeEventEnrollment      ObjectType = 9
	ObjectTypeMultiStateInput      ObjectType = 13
	ObjectTypeMultiStateValue      ObjectType = 19
	ObjectTypeNotificationClass    ObjectType = 15
	ObjectTypeAccumulator          ObjectType = 23
	ObjectTypeCharacterStringValue ObjectType = 40
	ObjectTypeIntegerValue         ObjectType = 45
	ObjectTypePositiveIntegerValue ObjectType = 48
	ObjectTypeNetworkPort          ObjectType = 56
	ObjectTypeElevatorGroup        ObjectType = 57
	ObjectTypeEscalator            ObjectType = 58
	ObjectTypeLift                 ObjectType = 59

	objectTypesSupportedBits = 60
)

var objectTypeNames = map[ObjectType]string{
	ObjectTypeAnalogInput:          "analog-input",
	ObjectTypeAnalogOutput:         "analog-output",
	ObjectTypeAnalogValue:          "analog-value",
	ObjectTypeBinaryInput:          "binary-input",
	ObjectTypeBinaryOutput:         "binary-output",
	ObjectTypeBinaryValue:          "binary-value",
	ObjectTypeDevice:               "device",
	ObjectTypeEventEnrollment:      "event-enrollment",
	ObjectTypeMultiStateInput:      "multi-state-input",
	ObjectTypeMultiStateValue:      "multi-state-value",
	ObjectTypeNotificationClass:    "notification-class",
	ObjectTypeAccumulator:          "accumulator",
	ObjectTypeCharacterStringValue: "characterstring-value",
	ObjectTypeIntegerValue:         "integer-value",
	ObjectTypePositiveIntegerValue: "positive-integer-value",
	ObjectTypeNetworkPort:          "network-port",
	ObjectTypeElevatorGroup:        "elevator-group",
	ObjectTypeEscalator:            "escalator",
	ObjectTypeLift:                 "lift",
}

func (o ObjectType) String() string {
	if name, ok := objectTypeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("object-type(%d)", o)
}

var objectTypeAliases = map[string]ObjectType{
	"dev":  ObjectTypeDevice,
	"nc":   ObjectTypeNotificationClass,
	"piv":  ObjectTypePositiveIntegerValue,
	"eg":   ObjectTypeElevatorGroup,
	"esc":  ObjectTypeEscalator,
	"av":   ObjectTypeAnalogValue,
	"bv":   ObjectTypeBinaryValue,
	"msv":  ObjectTypeMultiStateValue,
	"ai":   ObjectTypeAnalogInput,
	"bi":   ObjectTypeBinaryInput,
	"ao":   ObjectTypeAnalogOutput,
	"bo":   ObjectTypeBinaryOutput,
	"msi":  ObjectTypeMultiStateInput,
	"iv":   ObjectTypeIntegerValue,
	"csv":  ObjectTypeCharacterStringValue,
	"lift": ObjectTypeLift,
}

// ParseObjectType parses an object type name, a short alias or a number.
func ParseObjectType(s string) (ObjectType, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if t, ok := objectTypeAliases[s]; ok {
		return t, true
	}
	for t, name := range objectTypeNames {
		if name == s {
			return t, true
		}
	}
	if n, err := strconv.ParseUint(s, 10, 16); err == nil && n < 1024 {
		return ObjectType(n), true
	}
	return 0, false
}

// PropertyIdentifier represents BACnet property identifiers
type PropertyIdentifier uint32

const (
	PropertyAckedTransitions             PropertyIdentifier = 0
	PropertyAckRequired                  PropertyIdentifier = 1
	PropertyAll                          PropertyIdentifier = 8
	PropertyApduTimeout                  PropertyIdentifier = 11
	PropertyApplicationSoftwareVersion   PropertyIdentifier = 12
	PropertyNotificationClass            PropertyIdentifier = 17
	PropertyDescription                  PropertyIdentifier = 28
	PropertyDeviceAddressBinding         PropertyIdentifier = 30
	PropertyEventEnable                  PropertyIdentifier = 35
	PropertyEventState                   PropertyIdentifier = 36
	PropertyFirmwareRevision             PropertyIdentifier = 44
	PropertyLocalDate                    PropertyIdentifier = 56
	PropertyLocalTime                    PropertyIdentifier = 57
	PropertyLocation                     PropertyIdentifier = 58
	PropertyMaxApduLengthAccepted        PropertyIdentifier = 62
	PropertyModelName                    PropertyIdentifier = 70
	PropertyNotifyType                   PropertyIdentifier = 72
	PropertyNumberOfApduRetries          PropertyIdentifier = 73
	PropertyObjectIdentifier             PropertyIdentifier = 75
	PropertyObjectList                   PropertyIdentifier = 76
	PropertyObjectName                   PropertyIdentifier = 77
	PropertyObjectType                   PropertyIdentifier = 79
	PropertyOptional                     PropertyIdentifier = 80
	PropertyOutOfService                 PropertyIdentifier = 81
	PropertyPresentValue                 PropertyIdentifier = 85
	PropertyPriority                     PropertyIdentifier = 86
	PropertyProtocolObjectTypesSupported PropertyIdentifier = 96
	PropertyProtocolServicesSupported    PropertyIdentifier = 97
	PropertyProtocolVersion              PropertyIdentifier = 98
	PropertyRecipientList                PropertyIdentifier = 102
	PropertyReliability                  PropertyIdentifier = 103
	PropertyRequired                     PropertyIdentifier = 105
	PropertySegmentationSupported        PropertyIdentifier = 107
	PropertyStatusFlags                  PropertyIdentifier = 111
	PropertySystemStatus                 PropertyIdentifier = 112
	PropertyUnits                        PropertyIdentifier = 117
	PropertyVendorIdentifier             PropertyIdentifier = 120
	PropertyVendorName                   PropertyIdentifier = 121
	PropertyEventTimeStamps              PropertyIdentifier = 130
	PropertyProtocolRevision             PropertyIdentifier = 139
	PropertyDatabaseRevision             PropertyIdentifier = 155
	PropertyPropertyList                 PropertyIdentifier = 371

	PropertyAssignedLandingCalls PropertyIdentifier = 447
	PropertyCarAssignedDirection PropertyIdentifier = 448
	PropertyCarDoorCommand       PropertyIdentifier = 449
	PropertyCarDoorStatus        PropertyIdentifier = 450
	PropertyCarDoorText          PropertyIdentifier = 451
	PropertyCarDoorZone          PropertyIdentifier = 452
	PropertyCarDriveStatus       PropertyIdentifier = 453
	PropertyCarLoad              PropertyIdentifier = 454
	PropertyCarLoadUnits         PropertyIdentifier = 455
	PropertyCarMode              PropertyIdentifier = 456
	PropertyCarMovingDirection   PropertyIdentifier = 457
	PropertyCarPosition          PropertyIdentifier = 458
	PropertyElevatorGroup        PropertyIdentifier = 459
	PropertyEnergyMeter          PropertyIdentifier = 460
	PropertyEnergyMeterRef       PropertyIdentifier = 461
	PropertyEscalatorMode        PropertyIdentifier = 462
	PropertyFaultSignals         PropertyIdentifier = 463
	PropertyFloorText            PropertyIdentifier = 464
	PropertyGroupID              PropertyIdentifier = 465
	PropertyGroupMembers         PropertyIdentifier = 466
	PropertyGroupMode            PropertyIdentifier = 467
	PropertyHigherDeck           PropertyIdentifier = 468
	PropertyInstallationID       PropertyIdentifier = 469
	PropertyLandingCalls         PropertyIdentifier = 470
	PropertyLandingCallControl   PropertyIdentifier = 471
	PropertyLandingDoorStatus    PropertyIdentifier = 472
	PropertyLowerDeck            PropertyIdentifier = 473
	PropertyMachineRoomID        PropertyIdentifier = 474
	PropertyMakingCarCall        PropertyIdentifier = 475
	PropertyNextStoppingFloor    PropertyIdentifier = 476
	PropertyOperationDirection   PropertyIdentifier = 477
	PropertyPassengerAlarm       PropertyIdentifier = 478
	PropertyPowerMode            PropertyIdentifier = 479
	PropertyRegisteredCarCall    PropertyIdentifier = 480
)

var propertyNames = map[PropertyIdentifier]string{
	PropertyAckedTransitions:             "acked-transitions",
	PropertyAckRequired:                  "ack-required",
	PropertyAll:                          "all",
	PropertyApduTimeout:                  "apdu-timeout",
	PropertyApplicationSoftwareVersion:   "application-software-version",
	PropertyNotificationClass:            "notification-class",
	PropertyDescription:                  "description",
	PropertyDeviceAddressBinding:         "device-address-binding",
	PropertyEventEnable:                  "event-enable",
	PropertyEventState:                   "event-state",
	PropertyFirmwareRevision:             "firmware-revision",
	PropertyLocalDate:                    "local-date",
	PropertyLocalTime:                    "local-time",
	PropertyLocation:                     "location",
	PropertyMaxApduLengthAccepted:        "max-apdu-length-accepted",
	PropertyModelName:                    "model-name",
	PropertyNotifyType:                   "notify-type",
	PropertyNumberOfApduRetries:          "number-of-apdu-retries",
	PropertyObjectIdentifier:             "object-identifier",
	PropertyObjectList:                   "object-list",
	PropertyObjectName:                   "object-name",
	PropertyObjectType:                   "object-type",
	PropertyOptional:                     "optional",
	PropertyOutOfService:                 "out-of-service",
	PropertyPresentValue:                 "present-value",
	PropertyPriority:                     "priority",
	PropertyProtocolObjectTypesSupported: "protocol-object-types-supported",
	PropertyProtocolServicesSupported:    "protocol-services-supported",
	PropertyProtocolVersion:              "protocol-version",
	PropertyRecipientList:                "recipient-list",
	PropertyReliability:                  "reliability",
	PropertyRequired:                     "required",
	PropertySegmentationSupported:        "segmentation-supported",
	PropertyStatusFlags:                  "status-flags",
	PropertySystemStatus:                 "system-status",
	PropertyUnits:                        "units",
	PropertyVendorIdentifier:             "vendor-identifier",
	PropertyVendorName:                   "vendor-name",
	PropertyEventTimeStamps:              "event-time-stamps",
	PropertyProtocolRevision:             "protocol-revision",
	PropertyDatabaseRevision:             "database-revision",
	PropertyPropertyList:                 "property-list",
	PropertyAssignedLandingCalls:         "assigned-landing-calls",
	PropertyCarAssignedDirection:         "car-assigned-direction",
	PropertyCarDoorCommand:               "car-door-command",
	PropertyCarDoorStatus:                "car-door-status",
	PropertyCarDoorText:                  "car-door-text",
	PropertyCarDoorZone:                  "car-door-zone",
	PropertyCarDriveStatus:               "car-drive-status",
	PropertyCarLoad:                      "car-load",
	PropertyCarLoadUnits:                 "car-load-units",
	PropertyCarMode:                      "car-mode",
	PropertyCarMovingDirection:           "car-moving-direction",
	PropertyCarPosition:                  "car-position",
	PropertyElevatorGroup:                "elevator-group",
	PropertyEnergyMeter:                  "energy-meter",
	PropertyEnergyMeterRef:               "energy-meter-ref",
	PropertyEscalatorMode:                "escalator-mode",
	PropertyFaultSignals:                 "fault-signals",
	PropertyFloorText:                    "floor-text",
	PropertyGroupID:                      "group-id",
	PropertyGroupMembers:                 "group-members",
	PropertyGroupMode:                    "group-mode",
	PropertyHigherDeck:                   "higher-deck",
	PropertyInstallationID:               "installation-id",
	PropertyLandingCalls:                 "landing-calls",
	PropertyLandingCallControl:           "landing-call-control",
	PropertyLandingDoorStatus:            "landing-door-status",
	PropertyLowerDeck:                    "lower-deck",
	PropertyMachineRoomID:                "machine-room-id",
	PropertyMakingCarCall:                "making-car-call",
	PropertyNextStoppingFloor:            "next-stopping-floor",
	PropertyOperationDirection:           "operation-direction",
	PropertyPassengerAlarm:               "passenger-alarm",
	PropertyPowerMode:                    "power-mode",
	PropertyRegisteredCarCall:            "registered-car-call",
}

func (p PropertyIdentifier) String() string {
	if name, ok := propertyNames[p]; ok {
		return name
	}
	return fmt.Sprintf("property(%d)", p)
}

var propertyAliases = map[string]PropertyIdentifier{
	"oid":  PropertyObjectIdentifier,
	"name": PropertyObjectName,
	"type": PropertyObjectType,
	"pv":   PropertyPresentValue,
	"desc": PropertyDescription,
	"sf":   PropertyStatusFlags,
	"oos":  PropertyOutOfService,
}

// ParsePropertyIdentifier parses a property name, a short alias or a number.
func ParsePropertyIdentifier(s string) (PropertyIdentifier, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if p, ok := propertyAliases[s]; ok {
		return p, true
	}
	for p, name := range propertyNames {
		if name == s {
			return p, true
		}
	}
	if n, err := strconv.ParseUint(s, 10, 32); err == nil && n <= 0x3FFFFF {
		return PropertyIdentifier(n), true
	}
	return 0, false
}

// ObjectIdentifier represents a BACnet object identifier (type + instance)
type ObjectIdentifier struct {
	Type     ObjectType
	Instance uint32
}

// NewObjectIdentifier creates a new ObjectIdentifier
func NewObjectIdentifier(objectType ObjectType, instance uint32) ObjectIdentifier {
	return ObjectIdentifier{
		Type:     objectType,
		Instance: instance,
	}
}

// Encode encodes the object identifier to a 4-byte value
func (o ObjectIdentifier) Encode() uint32 {
	return (uint32(o.Type) << 22) | (o.Instance & 0x3FFFFF)
}

// DecodeObjectIdentifier decodes a 4-byte value to an ObjectIdentifier
func DecodeObjectIdentifier(value uint32) ObjectIdentifier {
	return ObjectIdentifier{
		Type:     ObjectType((value >> 22) & 0x3FF),
		Instance: value & 0x3FFFFF,
	}
}

func (o ObjectIdentifier) String() string {
	return fmt.Sprintf("%s:%d", o.Type.String(), o.Instance)
}

// StatusFlags represents the BACnet status flags
type StatusFlags struct {
	InAlarm      bool
	Fault        bool
	Overridden   bool
	OutOfService bool
}

// Bits returns the flags in bit string order.
func (s StatusFlags) Bits() []bool {
	return []bool{s.InAlarm, s.Fault, s.Overridden, s.OutOfService}
}

// StatusFlagsFromBits builds StatusFlags from a decoded bit string.
func StatusFlagsFromBits(bits BitString) StatusFlags {
	return StatusFlags{
		InAlarm:      bits.Get(0),
		Fault:        bits.Get(1),
		Overridden:   bits.Get(2),
		OutOfService: bits.Get(3),
	}
}

func (s StatusFlags) String() string {
	return fmt.Sprintf("{in-alarm:%v, fault:%v, overridden:%v, out-of-service:%v}",
		s.InAlarm, s.Fault, s.Overridden, s.OutOfService)
}

// EventState represents the BACnet event state
type EventState uint8

const (
	EventStateNormal    EventState = 0
	EventStateFault     EventState = 1
	EventStateOffNormal EventState = 2
)

func (e EventState) String() string {
	switch e {
	case EventStateNormal:
		return "normal"
	case EventStateFault:
		return "fault"
	case EventStateOffNormal:
		return "off-normal"
	}
	return fmt.Sprintf("event-state(%d)", e)
}

// NotifyType selects between alarm and event notifications
type NotifyType uint8

const (
	NotifyTypeAlarm           NotifyType = 0
	NotifyTypeEvent           NotifyType = 1
	NotifyTypeAckNotification NotifyType = 2
)

func (n NotifyType) String() string {
	switch n {
	case NotifyTypeAlarm:
		return "alarm"
	case NotifyTypeEvent:
		return "event"
	case NotifyTypeAckNotification:
		return "ack-notification"
	}
	return fmt.Sprintf("notify-type(%d)", n)
}

// Segmentation represents the BACnet segmentation capability
type Segmentation uint8

const (
	SegmentationBoth     Segmentation = 0
	SegmentationTransmit Segmentation = 1
	SegmentationReceive  Segmentation = 2
	SegmentationNone     Segmentation = 3
)

func (s Segmentation) String() string {
	switch s {
	case SegmentationBoth:
		return "segmented-both"
	case SegmentationTransmit:
		return "segmented-transmit"
	case SegmentationReceive:
		return "segmented-receive"
	case SegmentationNone:
		return "no-segmentation"
	}
	return fmt.Sprintf("segmentation(%d)", s)
}

// DeviceStatus represents the BACnet device status
type DeviceStatus uint8

const (
	DeviceStatusOperational         DeviceStatus = 0
	DeviceStatusOperationalReadOnly DeviceStatus = 1
	DeviceStatusNonOperational      DeviceStatus = 4
)

func (d DeviceStatus) String() string {
	switch d {
	case DeviceStatusOperational:
		return "operational"
	case DeviceStatusOperationalReadOnly:
		return "operational-read-only"
	case DeviceStatusNonOperational:
		return "non-operational"
	}
	return fmt.Sprintf("device-status(%d)", d)
}

// DeviceInfo represents information about a discovered BACnet device
type DeviceInfo struct {
	ObjectID      ObjectIdentifier
	Address       string
	MaxAPDULength uint16
	Segmentation  Segmentation
	VendorID      uint16
	VendorName    string
	ModelName     string
	ObjectName    string
}

// PropertyValue represents a property value with metadata
type PropertyValue struct {
	ObjectID   ObjectIdentifier
	PropertyID PropertyIdentifier
	ArrayIndex *uint32
	Value      interface{}
	Error      error
}

// ReadPropertyRequest represents a ReadProperty request
type ReadPropertyRequest struct {
	ObjectID   ObjectIdentifier
	PropertyID PropertyIdentifier
	ArrayIndex *uint32
}

// WritePropertyRequest represents a WriteProperty request
type WritePropertyRequest struct {
	ObjectID   ObjectIdentifier
	PropertyID PropertyIdentifier
	ArrayIndex *uint32
	Value      interface{}
	Priority   *uint8
}

// TagClass distinguishes application and context tags
type TagClass uint8

const (
	TagClassApplication TagClass = 0
	TagClassContext     TagClass = 1
)

// ApplicationTag is an application tag number
type ApplicationTag uint8

const (
	TagNull            ApplicationTag = 0
	TagBoolean         ApplicationTag = 1
	TagUnsignedInt     ApplicationTag = 2
	TagSignedInt       ApplicationTag = 3
	TagReal            ApplicationTag = 4
	TagDouble          ApplicationTag = 5
	TagOctetString     ApplicationTag = 6
	TagCharacterString ApplicationTag = 7
	TagBitString       ApplicationTag = 8
	TagEnumerated      ApplicationTag = 9
	TagDate            ApplicationTag = 10
	TagTime            ApplicationTag = 11
	TagObjectID        ApplicationTag = 12
)

package bacnet

import "fmt"

// valueKind selects where a property value comes from.
type valueKind uint8

const (
	kindStack valueKind = iota
	kindCharacterString
	kindReal
	kindEnumerated
	kindUnsigned
	kindBool
	kindEnumList
	kindLandingCalls
	kindLandingCallStatus
	kindRegisteredCarCalls
	kindAssignedLandingCalls
	kindLandingDoorStatus
)

type presence uint8

const (
	required presence = iota
	// optional properties are present once enabled for their object type
	optional
	// conditional properties follow the object's own configuration
	conditional
)

type propertyDef struct {
	id       PropertyIdentifier
	kind     valueKind
	array    bool
	presence presence
}

// noUnits is the BACnetEngineeringUnits value no-units.
const noUnits = 95

// maxListLength bounds the walk over callback backed lists.
const maxListLength = 1024

var (
	headerProperties = []propertyDef{
		{id: PropertyObjectIdentifier},
		{id: PropertyObjectName, kind: kindCharacterString},
		{id: PropertyObjectType},
	}

	eventProperties = []propertyDef{
		{id: PropertyNotificationClass, presence: conditional},
		{id: PropertyNotifyType, presence: conditional},
		{id: PropertyEventEnable, presence: conditional},
		{id: PropertyAckedTransitions, presence: conditional},
	}

	propertyListDef = propertyDef{id: PropertyPropertyList, array: true}
)

func defs(groups ...[]propertyDef) []propertyDef {
	var out []propertyDef
	out = append(out, headerProperties...)
	for _, g := range groups {
		out = append(out, g...)
	}
	return append(out, propertyListDef)
}

// objectProperties lists the properties every supported object type can
// carry, in the order they are reported.
var objectProperties = map[ObjectType][]propertyDef{
	ObjectTypeDevice: defs([]propertyDef{
		{id: PropertySystemStatus},
		{id: PropertyVendorName},
		{id: PropertyVendorIdentifier},
		{id: PropertyModelName},
		{id: PropertyFirmwareRevision},
		{id: PropertyApplicationSoftwareVersion},
		{id: PropertyProtocolVersion},
		{id: PropertyProtocolRevision},
		{id: PropertyProtocolServicesSupported},
		{id: PropertyProtocolObjectTypesSupported},
		{id: PropertyObjectList, array: true},
		{id: PropertyMaxApduLengthAccepted},
		{id: PropertySegmentationSupported},
		{id: PropertyApduTimeout},
		{id: PropertyNumberOfApduRetries},
		{id: PropertyDeviceAddressBinding},
		{id: PropertyDatabaseRevision},
		{id: PropertyLocalDate, presence: conditional},
		{id: PropertyLocalTime, presence: conditional},
		{id: PropertyDescription, kind: kindCharacterString, presence: optional},
		{id: PropertyLocation, kind: kindCharacterString, presence: optional},
	}),
	ObjectTypeElevatorGroup: defs([]propertyDef{
		{id: PropertyMachineRoomID},
		{id: PropertyGroupID, kind: kindUnsigned},
		{id: PropertyGroupMembers, array: true},
		{id: PropertyGroupMode, kind: kindEnumerated, presence: conditional},
		{id: PropertyLandingCalls, kind: kindLandingCalls, presence: conditional},
		{id: PropertyLandingCallControl, kind: kindLandingCallStatus, presence: conditional},
		{id: PropertyDescription, kind: kindCharacterString, presence: optional},
	}),
	ObjectTypeLift: defs([]propertyDef{
		{id: PropertyStatusFlags},
		{id: PropertyElevatorGroup},
		{id: PropertyGroupID},
		{id: PropertyInstallationID},
		{id: PropertyFloorText, kind: kindCharacterString, array: true, presence: optional},
		{id: PropertyCarDoorText, kind: kindCharacterString, array: true},
		{id: PropertyAssignedLandingCalls, kind: kindAssignedLandingCalls, array: true, presence: optional},
		{id: PropertyMakingCarCall, kind: kindUnsigned, array: true, presence: optional},
		{id: PropertyRegisteredCarCall, kind: kindRegisteredCarCalls, array: true, presence: optional},
		{id: PropertyCarPosition, kind: kindUnsigned},
		{id: PropertyCarMovingDirection, kind: kindEnumerated},
		{id: PropertyCarDoorStatus, kind: kindEnumerated, array: true},
		{id: PropertyPassengerAlarm, kind: kindBool},
		{id: PropertyOutOfService},
		{id: PropertyFaultSignals, kind: kindEnumList, presence: optional},
		{id: PropertyEnergyMeter, kind: kindReal, presence: optional},
		{id: PropertyLandingDoorStatus, kind: kindLandingDoorStatus, array: true, presence: optional},
		{id: PropertyHigherDeck, presence: conditional},
		{id: PropertyLowerDeck, presence: conditional},
		{id: PropertyEventState},
		{id: PropertyDescription, kind: kindCharacterString, presence: optional},
	}, eventProperties),
	ObjectTypeEscalator: defs([]propertyDef{
		{id: PropertyStatusFlags},
		{id: PropertyElevatorGroup},
		{id: PropertyGroupID},
		{id: PropertyInstallationID},
		{id: PropertyOperationDirection, kind: kindEnumerated},
		{id: PropertyPassengerAlarm, kind: kindBool},
		{id: PropertyOutOfService},
		{id: PropertyFaultSignals, kind: kindEnumList, presence: optional},
		{id: PropertyEnergyMeter, kind: kindReal, presence: optional},
		{id: PropertyEventState},
		{id: PropertyDescription, kind: kindCharacterString, presence: optional},
	}, eventProperties),
	ObjectTypePositiveIntegerValue: defs([]propertyDef{
		{id: PropertyPresentValue, kind: kindUnsigned},
		{id: PropertyStatusFlags},
		{id: PropertyUnits},
		{id: PropertyDescription, kind: kindCharacterString, presence: optional},
	}),
	ObjectTypeNotificationClass: defs([]propertyDef{
		{id: PropertyNotificationClass},
		{id: PropertyPriority, array: true},
		{id: PropertyAckRequired},
		{id: PropertyRecipientList},
		{id: PropertyDescription, kind: kindCharacterString, presence: optional},
	}),
}

// present reports whether def is exposed by o. The caller holds s.mu.
func (s *Stack) present(dev *device, o *object, def propertyDef) bool {
	switch def.presence {
	case required:
		return true
	case optional:
		return dev.flags(o.id.Type, def.id).enabled
	}

	switch def.id {
	case PropertyLocalDate, PropertyLocalTime:
		return s.cb.now != nil
	case PropertyGroupMode:
		return o.landingCallControl || dev.flags(o.id.Type, def.id).enabled
	case PropertyLandingCalls:
		return o.landingCalls
	case PropertyLandingCallControl:
		return o.landingCallControl
	case PropertyHigherDeck:
		return o.higherDeck != NoInstance
	case PropertyLowerDeck:
		return o.lowerDeck != NoInstance
	case PropertyNotificationClass, PropertyNotifyType, PropertyEventEnable, PropertyAckedTransitions:
		return o.events != nil
	}
	return false
}

func (s *Stack) findProperty(dev *device, o *object, prop PropertyIdentifier) (propertyDef, bool) {
	for _, def := range objectProperties[o.id.Type] {
		if def.id == prop {
			return def, s.present(dev, o, def)
		}
	}
	return propertyDef{}, false
}

// propertyIDs expands all, required and optional into the properties o
// exposes. property-list itself is never part of the expansion.
func (s *Stack) propertyIDs(dev *device, o *object, which PropertyIdentifier) []PropertyIdentifier {
	var ids []PropertyIdentifier
	for _, def := range objectProperties[o.id.Type] {
		if def.id == PropertyPropertyList || !s.present(dev, o, def) {
			continue
		}
		switch which {
		case PropertyRequired:
			if def.presence != required {
				continue
			}
		case PropertyOptional:
			if def.presence == required {
				continue
			}
		}
		ids = append(ids, def.id)
	}
	return ids
}

func (s *Stack) ref(dev *device, o *object, prop PropertyIdentifier) PropertyRef {
	return PropertyRef{
		Device:     dev.instance,
		ObjectType: o.id.Type,
		Instance:   o.id.Instance,
		Property:   prop,
	}
}

func indexed(ref PropertyRef, index uint32) PropertyRef {
	ref.UseArrayIndex = true
	ref.ArrayIndex = index
	return ref
}

// readProperty encodes the value of prop, or one element of it when index
// is set. The caller holds s.mu.
func (s *Stack) readProperty(dev *device, o *object, prop PropertyIdentifier, index *uint32) ([]byte, *BACnetError) {
	def, ok := s.findProperty(dev, o, prop)
	if !ok {
		return nil, errUnknownProperty()
	}

	if !def.array {
		if index != nil {
			return nil, NewBACnetError(ErrorClassProperty, ErrorCodePropertyIsNotAnArray)
		}
		return s.scalarValue(dev, o, def)
	}

	size, element, berr := s.arrayValue(dev, o, def)
	if berr != nil {
		return nil, berr
	}
	if index != nil {
		switch {
		case *index == 0:
			return EncodeUnsignedTag(size), nil
		case *index > size:
			return nil, errInvalidArrayIndex()
		}
		return element(*index)
	}

	var buf []byte
	for i := uint32(1); i <= size; i++ {
		enc, berr := element(i)
		if berr != nil {
			return nil, berr
		}
		buf = append(buf, enc...)
	}
	return buf, nil
}

func (s *Stack) scalarValue(dev *device, o *object, def propertyDef) ([]byte, *BACnetError) {
	ref := s.ref(dev, o, def.id)

	switch def.kind {
	case kindStack:
		return s.stackValue(dev, o, def.id)

	case kindCharacterString:
		if fn := s.cb.getCharacterString; fn != nil {
			if v, ok := fn(ref); ok {
				return EncodeCharacterStringTag(v), nil
			}
		}
		if def.id == PropertyObjectName {
			return EncodeCharacterStringTag(fmt.Sprintf("%s %d", o.id.Type, o.id.Instance)), nil
		}

	case kindReal:
		if fn := s.cb.getReal; fn != nil {
			if v, ok := fn(ref); ok {
				return EncodeRealTag(v), nil
			}
		}

	case kindEnumerated:
		if fn := s.cb.getEnumerated; fn != nil {
			if v, ok := fn(ref); ok {
				return EncodeEnumeratedTag(v), nil
			}
		}

	case kindUnsigned:
		if fn := s.cb.getUnsigned; fn != nil {
			if v, ok := fn(ref); ok {
				return EncodeUnsignedTag(v), nil
			}
		}
		if def.id == PropertyGroupID {
			return EncodeUnsignedTag(uint32(o.groupID)), nil
		}

	case kindBool:
		if fn := s.cb.getBool; fn != nil {
			if v, ok := fn(ref); ok {
				return EncodeBooleanTag(v), nil
			}
		}

	case kindEnumList:
		fn := s.cb.getEnumList
		if fn == nil {
			break
		}
		return walkList(func(i uint32) ([]byte, bool, bool) {
			v, more, ok := fn(ref, i)
			return EncodeEnumeratedTag(v), more, ok
		}), nil

	case kindLandingCalls:
		fn := s.cb.getLandingCalls
		if fn == nil {
			break
		}
		return walkList(func(i uint32) ([]byte, bool, bool) {
			v, more, ok := fn(ref, i)
			return v.Encode(), more, ok
		}), nil

	case kindLandingCallStatus:
		if fn := s.cb.getLandingCalls; fn != nil {
			if v, _, ok := fn(ref, 0); ok {
				return v.Encode(), nil
			}
		}
	}

	s.metrics.CallbackFailures.Inc()
	return nil, errUnknownProperty()
}

// walkList collects list entries until the callback reports no more
// entries or fails. A failure on the first entry yields an empty list.
func walkList(fetch func(i uint32) ([]byte, bool, bool)) []byte {
	buf := []byte{}
	for i := uint32(0); i < maxListLength; i++ {
		enc, more, ok := fetch(i)
		if !ok {
			break
		}
		buf = append(buf, enc...)
		if !more {
			break
		}
	}
	return buf
}

type elementFunc func(index uint32) ([]byte, *BACnetError)

func staticArray(elements [][]byte) (uint32, elementFunc, *BACnetError) {
	return uint32(len(elements)), func(i uint32) ([]byte, *BACnetError) {
		return elements[i-1], nil
	}, nil
}

// arrayValue returns the size of an array property and a function
// encoding its 1-based elements.
func (s *Stack) arrayValue(dev *device, o *object, def propertyDef) (uint32, elementFunc, *BACnetError) {
	if def.kind == kindStack {
		return staticArray(s.stackArray(dev, o, def.id))
	}

	ref := s.ref(dev, o, def.id)
	if s.cb.getUnsigned == nil {
		return 0, nil, errUnknownProperty()
	}
	size, ok := s.cb.getUnsigned(indexed(ref, 0))
	if !ok {
		s.metrics.CallbackFailures.Inc()
		return 0, nil, errUnknownProperty()
	}

	var element elementFunc
	switch def.kind {
	case kindCharacterString:
		element = func(i uint32) ([]byte, *BACnetError) {
			if fn := s.cb.getCharacterString; fn != nil {
				if v, ok := fn(indexed(ref, i)); ok {
					return EncodeCharacterStringTag(v), nil
				}
			}
			return nil, s.elementFailed()
		}
	case kindEnumerated:
		element = func(i uint32) ([]byte, *BACnetError) {
			if fn := s.cb.getEnumerated; fn != nil {
				if v, ok := fn(indexed(ref, i)); ok {
					return EncodeEnumeratedTag(v), nil
				}
			}
			return nil, s.elementFailed()
		}
	case kindUnsigned:
		element = func(i uint32) ([]byte, *BACnetError) {
			if v, ok := s.cb.getUnsigned(indexed(ref, i)); ok {
				return EncodeUnsignedTag(v), nil
			}
			return nil, s.elementFailed()
		}
	case kindRegisteredCarCalls:
		element = func(door uint32) ([]byte, *BACnetError) {
			return doorSequence(func(offset uint32) ([]byte, bool, bool) {
				if s.cb.getCarCalls == nil {
					return nil, false, false
				}
				floor, more, ok := s.cb.getCarCalls(dev.instance, o.id.Instance, door, offset)
				return EncodeUnsignedTag(uint32(floor)), more, ok
			}), nil
		}
	case kindAssignedLandingCalls:
		element = func(door uint32) ([]byte, *BACnetError) {
			return doorSequence(func(offset uint32) ([]byte, bool, bool) {
				if s.cb.getAssignedCalls == nil {
					return nil, false, false
				}
				call, more, ok := s.cb.getAssignedCalls(dev.instance, o.id.Instance, door, offset)
				enc := EncodeContextUnsigned(0, uint32(call.FloorNumber))
				enc = append(enc, EncodeContextEnumerated(1, uint32(call.Direction))...)
				return enc, more, ok
			}), nil
		}
	case kindLandingDoorStatus:
		element = func(door uint32) ([]byte, *BACnetError) {
			return doorSequence(func(offset uint32) ([]byte, bool, bool) {
				if s.cb.getLandingDoors == nil {
					return nil, false, false
				}
				status, more, ok := s.cb.getLandingDoors(dev.instance, o.id.Instance, door, offset)
				enc := EncodeContextUnsigned(0, uint32(status.FloorNumber))
				enc = append(enc, EncodeContextEnumerated(1, uint32(status.Status))...)
				return enc, more, ok
			}), nil
		}
	default:
		return 0, nil, errUnknownProperty()
	}
	return size, element, nil
}

func (s *Stack) elementFailed() *BACnetError {
	s.metrics.CallbackFailures.Inc()
	return errUnknownProperty()
}

// doorSequence encodes the per door list of a lift array element as
// [0] { entries }.
func doorSequence(fetch func(offset uint32) ([]byte, bool, bool)) []byte {
	buf := EncodeOpeningTag(0)
	buf = append(buf, walkList(fetch)...)
	return append(buf, EncodeClosingTag(0)...)
}

// stackValue encodes the properties the stack answers from its own
// registry and options.
func (s *Stack) stackValue(dev *device, o *object, prop PropertyIdentifier) ([]byte, *BACnetError) {
	switch prop {
	case PropertyObjectIdentifier:
		return EncodeObjectIdentifierTag(o.id), nil
	case PropertyObjectType:
		return EncodeEnumeratedTag(uint32(o.id.Type)), nil
	case PropertyStatusFlags:
		return EncodeBitStringTag(StatusFlags{}.Bits()), nil
	case PropertyOutOfService:
		return EncodeBooleanTag(false), nil
	case PropertyEventState:
		return EncodeEnumeratedTag(uint32(EventStateNormal)), nil
	}

	switch o.id.Type {
	case ObjectTypeDevice:
		return s.deviceValue(dev, prop)

	case ObjectTypeElevatorGroup:
		if prop == PropertyMachineRoomID {
			return EncodeObjectIdentifierTag(NewObjectIdentifier(ObjectTypePositiveIntegerValue, o.machineRoom)), nil
		}

	case ObjectTypeLift, ObjectTypeEscalator:
		switch prop {
		case PropertyElevatorGroup:
			return EncodeObjectIdentifierTag(NewObjectIdentifier(ObjectTypeElevatorGroup, o.group)), nil
		case PropertyGroupID:
			return EncodeUnsignedTag(uint32(o.groupID)), nil
		case PropertyInstallationID:
			return EncodeUnsignedTag(uint32(o.installationID)), nil
		case PropertyHigherDeck:
			return EncodeObjectIdentifierTag(NewObjectIdentifier(ObjectTypeLift, o.higherDeck)), nil
		case PropertyLowerDeck:
			return EncodeObjectIdentifierTag(NewObjectIdentifier(ObjectTypeLift, o.lowerDeck)), nil
		case PropertyNotificationClass:
			return EncodeUnsignedTag(o.events.notificationClass), nil
		case PropertyNotifyType:
			return EncodeEnumeratedTag(uint32(o.events.notifyType)), nil
		case PropertyEventEnable:
			return EncodeBitStringTag(o.events.eventEnable[:]), nil
		case PropertyAckedTransitions:
			// Without an event engine no transition is ever pending.
			return EncodeBitStringTag([]bool{true, true, true}), nil
		}

	case ObjectTypePositiveIntegerValue:
		if prop == PropertyUnits {
			return EncodeEnumeratedTag(noUnits), nil
		}

	case ObjectTypeNotificationClass:
		switch prop {
		case PropertyNotificationClass:
			return EncodeUnsignedTag(o.id.Instance), nil
		case PropertyAckRequired:
			return EncodeBitStringTag(o.ackRequired[:]), nil
		case PropertyRecipientList:
			buf := []byte{}
			for _, d := range o.recipients {
				buf = append(buf, d.Encode()...)
			}
			return buf, nil
		}
	}
	return nil, errUnknownProperty()
}

func (s *Stack) deviceValue(dev *device, prop PropertyIdentifier) ([]byte, *BACnetError) {
	opts := s.opts
	switch prop {
	case PropertySystemStatus:
		return EncodeEnumeratedTag(uint32(DeviceStatusOperational)), nil
	case PropertyVendorName:
		return EncodeCharacterStringTag(opts.vendorName), nil
	case PropertyVendorIdentifier:
		return EncodeUnsignedTag(uint32(opts.vendorID)), nil
	case PropertyModelName:
		return EncodeCharacterStringTag(opts.modelName), nil
	case PropertyFirmwareRevision:
		return EncodeCharacterStringTag(opts.firmwareRevision), nil
	case PropertyApplicationSoftwareVersion:
		return EncodeCharacterStringTag(opts.applicationSoftware), nil
	case PropertyProtocolVersion:
		return EncodeUnsignedTag(1), nil
	case PropertyProtocolRevision:
		return EncodeUnsignedTag(opts.protocolRevision), nil
	case PropertyProtocolServicesSupported:
		bits := make([]bool, servicesSupportedBits)
		for service, enabled := range dev.services {
			if enabled {
				bits[service] = true
			}
		}
		return EncodeBitStringTag(bits), nil
	case PropertyProtocolObjectTypesSupported:
		bits := make([]bool, objectTypesSupportedBits)
		for t := range objectProperties {
			bits[t] = true
		}
		return EncodeBitStringTag(bits), nil
	case PropertyMaxApduLengthAccepted:
		return EncodeUnsignedTag(uint32(opts.maxAPDULength)), nil
	case PropertySegmentationSupported:
		return EncodeEnumeratedTag(uint32(SegmentationNone)), nil
	case PropertyApduTimeout:
		return EncodeUnsignedTag(uint32(opts.apduTimeout.Milliseconds())), nil
	case PropertyNumberOfApduRetries:
		return EncodeUnsignedTag(opts.apduRetries), nil
	case PropertyDeviceAddressBinding:
		return []byte{}, nil
	case PropertyDatabaseRevision:
		return EncodeUnsignedTag(dev.databaseRevision), nil
	case PropertyLocalDate:
		return EncodeDateTag(DateFromTime(s.cb.now())), nil
	case PropertyLocalTime:
		return EncodeTimeTag(TimeFromTime(s.cb.now())), nil
	}
	return nil, errUnknownProperty()
}

func (s *Stack) stackArray(dev *device, o *object, prop PropertyIdentifier) [][]byte {
	var elements [][]byte
	switch prop {
	case PropertyObjectList:
		for _, id := range dev.order {
			elements = append(elements, EncodeObjectIdentifierTag(id))
		}
	case PropertyPropertyList:
		for _, def := range objectProperties[o.id.Type] {
			switch def.id {
			case PropertyObjectIdentifier, PropertyObjectName, PropertyObjectType, PropertyPropertyList:
				continue
			}
			if s.present(dev, o, def) {
				elements = append(elements, EncodeEnumeratedTag(uint32(def.id)))
			}
		}
	case PropertyGroupMembers:
		for _, id := range dev.members(o.id.Instance) {
			elements = append(elements, EncodeObjectIdentifierTag(id))
		}
	case PropertyPriority:
		for _, p := range o.priorities {
			elements = append(elements, EncodeUnsignedTag(uint32(p)))
		}
	}
	return elements
}

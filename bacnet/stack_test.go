package bacnet

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"
	"time"
)

const (
	testDevice = 389001
	testGroup  = 2000
	testLift   = 2001
	testRoom   = 2
	testNC     = 100
)

type sentFrame struct {
	data        []byte
	destination []byte
	broadcast   bool
}

// fakeNetwork stands in for the UDP shim: frames queued in inbox are
// handed to the stack one per Loop, everything the stack sends is kept.
type fakeNetwork struct {
	source []byte
	inbox  [][]byte
	sent   []sentFrame
}

func (n *fakeNetwork) receive(buf []byte) (int, []byte) {
	if len(n.inbox) == 0 {
		return 0, nil
	}
	frame := n.inbox[0]
	n.inbox = n.inbox[1:]
	return copy(buf, frame), n.source
}

func (n *fakeNetwork) send(message, destination []byte, broadcast bool) int {
	n.sent = append(n.sent, sentFrame{
		data:        append([]byte(nil), message...),
		destination: destination,
		broadcast:   broadcast,
	})
	return len(message)
}

type fixture struct {
	stack *Stack
	net   *fakeNetwork

	carCalls      map[uint32][]uint8
	makingCarCall [3]uint32
	landingCall   LandingCallStatus
	acks          []AcknowledgeAlarmRequest
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		net:      &fakeNetwork{source: []byte{127, 0, 0, 1, 0xC0, 0xBA}},
		carCalls: map[uint32][]uint8{1: {2, 5}},
	}
	s := NewStack(WithStackLogger(discardLogger()))
	f.stack = s

	s.RegisterCallbackSendMessage(f.net.send)
	s.RegisterCallbackReceiveMessage(f.net.receive)

	doors := []string{"Front", "Rear"}
	s.RegisterCallbackGetPropertyCharacterString(func(ref PropertyRef) (string, bool) {
		switch {
		case ref.Property == PropertyObjectName && ref.ObjectType == ObjectTypeLift && ref.Instance == testLift:
			return "People lifts (C)", true
		case ref.Property == PropertyCarDoorText && ref.UseArrayIndex:
			if ref.ArrayIndex >= 1 && int(ref.ArrayIndex) <= len(doors) {
				return doors[ref.ArrayIndex-1], true
			}
		}
		return "", false
	})
	s.RegisterCallbackGetPropertyUnsignedInteger(func(ref PropertyRef) (uint32, bool) {
		switch ref.Property {
		case PropertyCarDoorText, PropertyCarDoorStatus, PropertyRegisteredCarCall:
			if ref.UseArrayIndex && ref.ArrayIndex == 0 {
				return uint32(len(doors)), true
			}
		case PropertyMakingCarCall:
			if ref.UseArrayIndex && ref.ArrayIndex == 0 {
				return uint32(len(doors)), true
			}
			if ref.UseArrayIndex && int(ref.ArrayIndex) <= len(doors) {
				return f.makingCarCall[ref.ArrayIndex], true
			}
		case PropertyCarPosition:
			return 3, true
		case PropertyPresentValue:
			return testRoom, true
		}
		return 0, false
	})
	s.RegisterCallbackGetPropertyEnumerated(func(ref PropertyRef) (uint32, bool) {
		switch ref.Property {
		case PropertyCarMovingDirection:
			return uint32(LiftCarDirectionUp), true
		case PropertyCarDoorStatus:
			return uint32(DoorStatusClosed), true
		case PropertyGroupMode:
			return uint32(LiftGroupModeNormal), true
		}
		return 0, false
	})
	s.RegisterCallbackGetPropertyBool(func(ref PropertyRef) (bool, bool) {
		return false, ref.Property == PropertyPassengerAlarm
	})
	s.RegisterCallbackGetListOfEnumerations(func(ref PropertyRef, index uint32) (uint32, bool, bool) {
		return 0, false, false
	})
	s.RegisterCallbackGetListElevatorGroupLandingCallStatus(func(ref PropertyRef, index uint32) (LandingCallStatus, bool, bool) {
		if ref.Property == PropertyLandingCallControl && f.landingCall.Command != LandingCallCommandNone {
			return f.landingCall, false, true
		}
		return LandingCallStatus{}, false, false
	})
	s.RegisterCallbackGetSequenceLiftRegisteredCarCall(func(device, lift, door, offset uint32) (uint8, bool, bool) {
		calls := f.carCalls[door]
		if int(offset) >= len(calls) {
			return 0, false, false
		}
		return calls[offset], int(offset) < len(calls)-1, true
	})
	s.RegisterCallbackSetPropertyUnsignedInteger(func(ref PropertyRef, value uint32, priority uint8) error {
		if !ref.UseArrayIndex || ref.ArrayIndex == 0 || int(ref.ArrayIndex) > len(doors) {
			return NewBACnetError(ErrorClassProperty, ErrorCodeInvalidArrayIndex)
		}
		if value > 8 {
			return NewBACnetError(ErrorClassProperty, ErrorCodeValueOutOfRange)
		}
		f.makingCarCall[ref.ArrayIndex] = value
		return nil
	})
	s.RegisterCallbackSetElevatorGroupLandingCallControl(func(device, group uint32, status LandingCallStatus) error {
		f.landingCall = status
		return nil
	})
	s.RegisterCallbackAcknowledgeAlarm(func(device uint32, req AcknowledgeAlarmRequest) error {
		if req.Source != "TestDevice" {
			return NewBACnetError(ErrorClassServices, ErrorCodeServiceRequestDenied)
		}
		f.acks = append(f.acks, req)
		return nil
	})

	steps := []error{
		s.AddDevice(testDevice),
		s.SetServiceEnabled(testDevice, ServiceSupportedIAm, true),
		s.SetServiceEnabled(testDevice, ServiceSupportedReadPropertyMultiple, true),
		s.SetServiceEnabled(testDevice, ServiceSupportedWriteProperty, true),
		s.SetServiceEnabled(testDevice, ServiceSupportedWritePropertyMultiple, true),
		s.SetServiceEnabled(testDevice, ServiceSupportedAcknowledgeAlarm, true),
		s.SetServiceEnabled(testDevice, ServiceSupportedGetEventInformation, true),
		s.SetServiceEnabled(testDevice, ServiceSupportedSubscribeCOVProperty, true),
		s.AddElevatorGroupObject(testDevice, testGroup, testRoom, 2, true, true),
		s.AddLiftOrEscalatorObject(testDevice, ObjectTypeLift, testLift, testGroup, 2, 1),
		s.AddPositiveIntegerValueObject(testDevice, testRoom),
		s.AddNotificationClassObject(testDevice, testNC, 10, 100, 200, true, true, true),
		s.EnableAlarmsAndEventsForObject(testDevice, ObjectTypeLift, testLift, testNC, NotifyTypeAlarm, true, true, true, true),
		s.SetPropertyByObjectTypeEnabled(testDevice, ObjectTypeLift, PropertyMakingCarCall, true),
		s.SetPropertyByObjectTypeWritable(testDevice, ObjectTypeLift, PropertyMakingCarCall, true),
		s.SetPropertyByObjectTypeEnabled(testDevice, ObjectTypeLift, PropertyRegisteredCarCall, true),
		s.SetPropertyByObjectTypeEnabled(testDevice, ObjectTypeLift, PropertyFaultSignals, true),
	}
	for i, err := range steps {
		if err != nil {
			t.Fatalf("setup step %d: %v", i, err)
		}
	}
	return f
}

// deliver queues a frame and runs one loop iteration.
func (f *fixture) deliver(t *testing.T, frame []byte) {
	t.Helper()
	f.net.inbox = append(f.net.inbox, frame)
	if err := f.stack.Loop(context.Background()); err != nil {
		t.Fatalf("Loop: %v", err)
	}
}

func (f *fixture) confirmed(t *testing.T, apdu []byte) *APDU {
	t.Helper()
	f.net.sent = nil
	f.deliver(t, EncodeFrame(BVLCOriginalUnicastNPDU, EncodeNPDU(true, NPDUControlPriorityNormal), apdu))
	if len(f.net.sent) != 1 {
		t.Fatalf("Expected 1 response, got %d", len(f.net.sent))
	}
	sent := f.net.sent[0]
	if !bytes.Equal(sent.destination, f.net.source) || sent.broadcast {
		t.Fatalf("Expected unicast reply to %v, got %v (broadcast %v)", f.net.source, sent.destination, sent.broadcast)
	}
	frame, err := DecodeFrame(sent.data)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	return frame.APDU
}

func (f *fixture) request(t *testing.T, service ConfirmedServiceChoice, data []byte) *APDU {
	t.Helper()
	return f.confirmed(t, EncodeConfirmedRequest(1, service, data, 0, MaxAPDUCode(MaxAPDULength)))
}

func readRequest(oid ObjectIdentifier, prop PropertyIdentifier, index *uint32) []byte {
	data := EncodeContextObjectIdentifier(0, oid)
	data = append(data, EncodeContextEnumerated(1, uint32(prop))...)
	if index != nil {
		data = append(data, EncodeContextUnsigned(2, *index)...)
	}
	return data
}

func writeRequest(oid ObjectIdentifier, prop PropertyIdentifier, index *uint32, value []byte) []byte {
	data := readRequest(oid, prop, index)
	data = append(data, EncodeOpeningTag(3)...)
	data = append(data, value...)
	return append(data, EncodeClosingTag(3)...)
}

func index(i uint32) *uint32 {
	return &i
}

func (f *fixture) read(t *testing.T, oid ObjectIdentifier, prop PropertyIdentifier, idx *uint32) interface{} {
	t.Helper()
	resp := f.request(t, ServiceReadProperty, readRequest(oid, prop, idx))
	if resp.Type != PDUTypeComplexAck {
		t.Fatalf("read %s %s: expected complex ack, got %v", oid, prop, decodeError(resp.Data))
	}
	value, err := decodeReadPropertyAck(resp.Data)
	if err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	return value
}

func expectError(t *testing.T, resp *APDU, class ErrorClass, code ErrorCode) {
	t.Helper()
	if resp.Type != PDUTypeError {
		t.Fatalf("Expected error PDU, got type %02x", resp.Type)
	}
	var bacnetErr *BACnetError
	if err := decodeError(resp.Data); !errors.As(err, &bacnetErr) {
		t.Fatalf("Expected BACnetError, got %v", err)
	}
	if bacnetErr.Class != class || bacnetErr.Code != code {
		t.Errorf("Expected %s/%s, got %s/%s", class, code, bacnetErr.Class, bacnetErr.Code)
	}
}

var (
	liftOID  = NewObjectIdentifier(ObjectTypeLift, testLift)
	groupOID = NewObjectIdentifier(ObjectTypeElevatorGroup, testGroup)
)

func TestReadProperty(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name     string
		oid      ObjectIdentifier
		prop     PropertyIdentifier
		index    *uint32
		expected interface{}
	}{
		{"object name from callback", liftOID, PropertyObjectName, nil, "People lifts (C)"},
		{"object name fallback", groupOID, PropertyObjectName, nil, "elevator-group 2000"},
		{"wildcard device", NewObjectIdentifier(ObjectTypeDevice, NoInstance), PropertyObjectIdentifier, nil,
			NewObjectIdentifier(ObjectTypeDevice, testDevice)},
		{"car position", liftOID, PropertyCarPosition, nil, uint32(3)},
		{"moving direction", liftOID, PropertyCarMovingDirection, nil, Enumerated(LiftCarDirectionUp)},
		{"passenger alarm", liftOID, PropertyPassengerAlarm, nil, false},
		{"elevator group", liftOID, PropertyElevatorGroup, nil, groupOID},
		{"machine room", groupOID, PropertyMachineRoomID, nil, NewObjectIdentifier(ObjectTypePositiveIntegerValue, testRoom)},
		{"group mode", groupOID, PropertyGroupMode, nil, Enumerated(LiftGroupModeNormal)},
		{"group members", groupOID, PropertyGroupMembers, nil, liftOID},
		{"array size", liftOID, PropertyCarDoorText, index(0), uint32(2)},
		{"array element", liftOID, PropertyCarDoorText, index(2), "Rear"},
		{"whole array", liftOID, PropertyCarDoorText, nil, []interface{}{"Front", "Rear"}},
		{"door sequence", liftOID, PropertyRegisteredCarCall, index(1),
			Constructed{Tag: 0, Values: []interface{}{uint32(2), uint32(5)}}},
		{"empty door sequence", liftOID, PropertyRegisteredCarCall, index(2), Constructed{Tag: 0}},
		{"empty list", liftOID, PropertyFaultSignals, nil, []interface{}{}},
		{"no landing calls", groupOID, PropertyLandingCalls, nil, []interface{}{}},
		{"notification class", liftOID, PropertyNotificationClass, nil, uint32(testNC)},
		{"priorities", NewObjectIdentifier(ObjectTypeNotificationClass, testNC), PropertyPriority, nil,
			[]interface{}{uint32(10), uint32(100), uint32(200)}},
		{"present value", NewObjectIdentifier(ObjectTypePositiveIntegerValue, testRoom), PropertyPresentValue, nil, uint32(testRoom)},
		{"property list", NewObjectIdentifier(ObjectTypePositiveIntegerValue, testRoom), PropertyPropertyList, nil,
			[]interface{}{Enumerated(PropertyPresentValue), Enumerated(PropertyStatusFlags), Enumerated(PropertyUnits)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := f.read(t, tt.oid, tt.prop, tt.index)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Expected %#v, got %#v", tt.expected, got)
			}
		})
	}
}

func TestReadPropertyErrors(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name  string
		oid   ObjectIdentifier
		prop  PropertyIdentifier
		index *uint32
		class ErrorClass
		code  ErrorCode
	}{
		{"unknown object", NewObjectIdentifier(ObjectTypeLift, 9999), PropertyObjectName, nil,
			ErrorClassObject, ErrorCodeUnknownObject},
		{"optional property not enabled", liftOID, PropertyEnergyMeter, nil,
			ErrorClassProperty, ErrorCodeUnknownProperty},
		{"property of another type", liftOID, PropertyOperationDirection, nil,
			ErrorClassProperty, ErrorCodeUnknownProperty},
		{"index past the end", liftOID, PropertyCarDoorText, index(3),
			ErrorClassProperty, ErrorCodeInvalidArrayIndex},
		{"index on a scalar", liftOID, PropertyCarPosition, index(1),
			ErrorClassProperty, ErrorCodePropertyIsNotAnArray},
		{"callback declines", groupOID, PropertyLandingCallControl, nil,
			ErrorClassProperty, ErrorCodeUnknownProperty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := f.request(t, ServiceReadProperty, readRequest(tt.oid, tt.prop, tt.index))
			expectError(t, resp, tt.class, tt.code)
		})
	}
}

func TestReadPropertyMultiple(t *testing.T) {
	f := newFixture(t)

	data := EncodeContextObjectIdentifier(0, liftOID)
	data = append(data, EncodeOpeningTag(1)...)
	data = append(data, EncodeContextEnumerated(0, uint32(PropertyAll))...)
	data = append(data, EncodeClosingTag(1)...)
	data = append(data, EncodeContextObjectIdentifier(0, NewObjectIdentifier(ObjectTypeEscalator, 1))...)
	data = append(data, EncodeOpeningTag(1)...)
	data = append(data, EncodeContextEnumerated(0, uint32(PropertyObjectName))...)
	data = append(data, EncodeClosingTag(1)...)

	resp := f.request(t, ServiceReadPropertyMultiple, data)
	if resp.Type != PDUTypeComplexAck {
		t.Fatalf("Expected complex ack, got %02x", resp.Type)
	}
	results, err := decodeReadPropertyMultipleAck(resp.Data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	byProp := make(map[PropertyIdentifier]PropertyValue)
	for _, r := range results {
		if r.ObjectID == liftOID {
			byProp[r.PropertyID] = r
		}
	}
	if _, ok := byProp[PropertyPropertyList]; ok {
		t.Errorf("Expected property-list to be left out of all")
	}
	if _, ok := byProp[PropertyEnergyMeter]; ok {
		t.Errorf("Expected energy-meter to be absent while not enabled")
	}
	if got := byProp[PropertyObjectName].Value; got != "People lifts (C)" {
		t.Errorf("Expected object name, got %v", got)
	}
	if got := byProp[PropertyCarPosition].Value; got != uint32(3) {
		t.Errorf("Expected car position 3, got %v", got)
	}

	last := results[len(results)-1]
	if !errors.Is(last.Error, NewBACnetError(ErrorClassObject, ErrorCodeUnknownObject)) {
		t.Errorf("Expected unknown-object for the escalator, got %v", last.Error)
	}
}

func TestWriteProperty(t *testing.T) {
	f := newFixture(t)

	t.Run("making car call", func(t *testing.T) {
		resp := f.request(t, ServiceWriteProperty, writeRequest(liftOID, PropertyMakingCarCall, index(1), EncodeUnsignedTag(5)))
		if resp.Type != PDUTypeSimpleAck {
			t.Fatalf("Expected simple ack, got %v", decodeError(resp.Data))
		}
		if f.makingCarCall[1] != 5 {
			t.Errorf("Expected 5, got %d", f.makingCarCall[1])
		}
		if got := f.read(t, liftOID, PropertyMakingCarCall, index(1)); got != uint32(5) {
			t.Errorf("Expected 5 on read back, got %v", got)
		}
	})

	tests := []struct {
		name  string
		oid   ObjectIdentifier
		prop  PropertyIdentifier
		index *uint32
		value []byte
		code  ErrorCode
	}{
		{"floor out of range", liftOID, PropertyMakingCarCall, index(1), EncodeUnsignedTag(9), ErrorCodeValueOutOfRange},
		{"door out of range", liftOID, PropertyMakingCarCall, index(3), EncodeUnsignedTag(1), ErrorCodeInvalidArrayIndex},
		{"wrong datatype", liftOID, PropertyMakingCarCall, index(1), EncodeCharacterStringTag("1"), ErrorCodeInvalidDataType},
		{"read only", liftOID, PropertyCarPosition, nil, EncodeUnsignedTag(1), ErrorCodeWriteAccessDenied},
		{"index on a scalar", liftOID, PropertyCarPosition, index(1), EncodeUnsignedTag(1), ErrorCodePropertyIsNotAnArray},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := f.request(t, ServiceWriteProperty, writeRequest(tt.oid, tt.prop, tt.index, tt.value))
			expectError(t, resp, ErrorClassProperty, tt.code)
		})
	}
}

func TestWriteLandingCallControl(t *testing.T) {
	f := newFixture(t)

	status := LandingCallStatus{FloorNumber: 3, Command: LandingCallCommandDirection, Direction: LiftCarDirectionUp}
	resp := f.request(t, ServiceWriteProperty, writeRequest(groupOID, PropertyLandingCallControl, nil, status.Encode()))
	if resp.Type != PDUTypeSimpleAck {
		t.Fatalf("Expected simple ack, got %v", decodeError(resp.Data))
	}
	if f.landingCall != status {
		t.Errorf("Expected %v, got %v", status, f.landingCall)
	}

	got := f.read(t, groupOID, PropertyLandingCallControl, nil)
	expected := []interface{}{
		ContextValue{Tag: 0, Data: []byte{3}},
		ContextValue{Tag: 1, Data: []byte{byte(LiftCarDirectionUp)}},
	}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("Expected %v, got %v", expected, got)
	}
}

func TestWritePropertyMultipleStopsAtFirstFailure(t *testing.T) {
	f := newFixture(t)

	data := EncodeContextObjectIdentifier(0, liftOID)
	data = append(data, EncodeOpeningTag(1)...)
	for _, w := range []struct{ door, floor uint32 }{{1, 4}, {3, 1}, {2, 6}} {
		data = append(data, EncodeContextEnumerated(0, uint32(PropertyMakingCarCall))...)
		data = append(data, EncodeContextUnsigned(1, w.door)...)
		data = append(data, EncodeOpeningTag(2)...)
		data = append(data, EncodeUnsignedTag(w.floor)...)
		data = append(data, EncodeClosingTag(2)...)
	}
	data = append(data, EncodeClosingTag(1)...)

	resp := f.request(t, ServiceWritePropertyMultiple, data)
	expectError(t, resp, ErrorClassProperty, ErrorCodeInvalidArrayIndex)

	if f.makingCarCall[1] != 4 {
		t.Errorf("Expected the first write to be applied, got %d", f.makingCarCall[1])
	}
	if f.makingCarCall[2] != 0 {
		t.Errorf("Expected writes after the failure to be skipped, got %d", f.makingCarCall[2])
	}
}

func TestAcknowledgeAlarm(t *testing.T) {
	f := newFixture(t)

	ack := func(oid ObjectIdentifier, source string) *APDU {
		req := AcknowledgeAlarmRequest{
			ProcessIdentifier:      1,
			EventObject:            oid,
			EventStateAcknowledged: EventStateOffNormal,
			EventTimeStamp:         TimeStamp{Kind: TimeStampSequence, Sequence: 1},
			Source:                 source,
			TimeOfAcknowledgment:   TimeStamp{Kind: TimeStampSequence, Sequence: 2},
		}
		return f.request(t, ServiceAcknowledgeAlarm, req.Encode())
	}

	if resp := ack(liftOID, "TestDevice"); resp.Type != PDUTypeSimpleAck {
		t.Fatalf("Expected simple ack, got %v", decodeError(resp.Data))
	}
	if len(f.acks) != 1 || f.acks[0].EventObject != liftOID {
		t.Errorf("Expected one acknowledgment for %s, got %v", liftOID, f.acks)
	}

	expectError(t, ack(liftOID, "Someone"), ErrorClassServices, ErrorCodeServiceRequestDenied)
	expectError(t, ack(groupOID, "TestDevice"), ErrorClassServices, ErrorCodeNoAlarmConfigured)
	expectError(t, ack(NewObjectIdentifier(ObjectTypeLift, 9), "TestDevice"), ErrorClassObject, ErrorCodeUnknownObject)

	if got := f.stack.Metrics().AlarmAcks.Value(); got != 4 {
		t.Errorf("Expected 4 alarm acks counted, got %d", got)
	}
}

func TestGetEventInformation(t *testing.T) {
	f := newFixture(t)

	resp := f.request(t, ServiceGetEventInformation, nil)
	if resp.Type != PDUTypeComplexAck {
		t.Fatalf("Expected complex ack, got %02x", resp.Type)
	}
	expected := []byte{0x0E, 0x0F, 0x19, 0x00}
	if !bytes.Equal(resp.Data, expected) {
		t.Errorf("Expected %X, got %X", expected, resp.Data)
	}
}

func TestSubscribeCOVPropertyNotSupported(t *testing.T) {
	f := newFixture(t)

	resp := f.request(t, ServiceSubscribeCOVProperty, EncodeContextUnsigned(0, 1))
	expectError(t, resp, ErrorClassServices, ErrorCodeOptionalFunctionalityNotSupported)
}

func TestRejectAndAbort(t *testing.T) {
	f := newFixture(t)

	t.Run("disabled service", func(t *testing.T) {
		resp := f.request(t, ServiceSubscribeCOV, nil)
		if resp.Type != PDUTypeReject || RejectReason(resp.Service) != RejectReasonUnrecognizedService {
			t.Errorf("Expected reject unrecognized-service, got %02x/%d", resp.Type, resp.Service)
		}
	})

	t.Run("missing parameter", func(t *testing.T) {
		resp := f.request(t, ServiceReadProperty, EncodeContextObjectIdentifier(0, liftOID))
		if resp.Type != PDUTypeReject || RejectReason(resp.Service) != RejectReasonMissingRequiredParameter {
			t.Errorf("Expected reject missing-required-parameter, got %02x/%d", resp.Type, resp.Service)
		}
	})

	t.Run("trailing data", func(t *testing.T) {
		data := append(readRequest(liftOID, PropertyCarPosition, nil), EncodeContextUnsigned(5, 1)...)
		resp := f.request(t, ServiceReadProperty, data)
		if resp.Type != PDUTypeReject || RejectReason(resp.Service) != RejectReasonTooManyArguments {
			t.Errorf("Expected reject too-many-arguments, got %02x/%d", resp.Type, resp.Service)
		}
	})

	t.Run("segmented request", func(t *testing.T) {
		apdu := []byte{byte(PDUTypeConfirmedRequest) | 0x08, 0x05, 7, 0, 1, byte(ServiceReadProperty)}
		apdu = append(apdu, readRequest(liftOID, PropertyCarPosition, nil)...)
		resp := f.confirmed(t, apdu)
		if resp.Type != PDUTypeAbort || AbortReason(resp.Service) != AbortReasonSegmentationNotSupported {
			t.Errorf("Expected abort segmentation-not-supported, got %02x/%d", resp.Type, resp.Service)
		}
		if resp.InvokeID != 7 {
			t.Errorf("Expected invoke id 7, got %d", resp.InvokeID)
		}
	})

	t.Run("response too large", func(t *testing.T) {
		data := EncodeContextObjectIdentifier(0, NewObjectIdentifier(ObjectTypeDevice, testDevice))
		data = append(data, EncodeOpeningTag(1)...)
		data = append(data, EncodeContextEnumerated(0, uint32(PropertyAll))...)
		data = append(data, EncodeClosingTag(1)...)
		// max-apdu code 0 accepts 50 octets
		resp := f.confirmed(t, EncodeConfirmedRequest(2, ServiceReadPropertyMultiple, data, 0, 0))
		if resp.Type != PDUTypeAbort || AbortReason(resp.Service) != AbortReasonSegmentationNotSupported {
			t.Errorf("Expected abort segmentation-not-supported, got %02x/%d", resp.Type, resp.Service)
		}
	})
}

func TestWhoIs(t *testing.T) {
	whoIs := func(function BVLCFunction, low, high *uint32) []byte {
		return EncodeFrame(function, EncodeNPDU(false, NPDUControlPriorityNormal),
			EncodeUnconfirmedRequest(ServiceWhoIs, EncodeWhoIs(low, high)))
	}

	tests := []struct {
		name      string
		frame     []byte
		answered  bool
		broadcast bool
	}{
		{"unicast", whoIs(BVLCOriginalUnicastNPDU, nil, nil), true, false},
		{"broadcast", whoIs(BVLCOriginalBroadcastNPDU, nil, nil), true, true},
		{"in range", whoIs(BVLCOriginalBroadcastNPDU, index(389000), index(389010)), true, true},
		{"out of range", whoIs(BVLCOriginalBroadcastNPDU, index(1), index(10)), false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.deliver(t, tt.frame)

			if !tt.answered {
				if len(f.net.sent) != 0 {
					t.Errorf("Expected no answer, got %d frames", len(f.net.sent))
				}
				return
			}
			if len(f.net.sent) != 1 {
				t.Fatalf("Expected 1 frame, got %d", len(f.net.sent))
			}
			sent := f.net.sent[0]
			if sent.broadcast != tt.broadcast {
				t.Errorf("Expected broadcast %v, got %v", tt.broadcast, sent.broadcast)
			}
			if tt.broadcast && sent.destination != nil {
				t.Errorf("Expected nil destination for a broadcast, got %v", sent.destination)
			}

			frame, err := DecodeFrame(sent.data)
			if err != nil {
				t.Fatalf("DecodeFrame: %v", err)
			}
			info, err := DecodeIAm(frame.APDU.Data)
			if err != nil {
				t.Fatalf("DecodeIAm: %v", err)
			}
			if info.ObjectID.Instance != testDevice {
				t.Errorf("Expected device %d, got %d", testDevice, info.ObjectID.Instance)
			}
			if info.Segmentation != SegmentationNone {
				t.Errorf("Expected no segmentation, got %s", info.Segmentation)
			}
		})
	}
}

func TestWhoIsWithoutIAm(t *testing.T) {
	f := newFixture(t)
	if err := f.stack.SetServiceEnabled(testDevice, ServiceSupportedIAm, false); err != nil {
		t.Fatal(err)
	}
	f.deliver(t, EncodeFrame(BVLCOriginalBroadcastNPDU, EncodeNPDU(false, NPDUControlPriorityNormal),
		EncodeUnconfirmedRequest(ServiceWhoIs, nil)))
	if len(f.net.sent) != 0 {
		t.Errorf("Expected no I-Am, got %d frames", len(f.net.sent))
	}
}

func TestSendIAm(t *testing.T) {
	f := newFixture(t)

	if err := f.stack.SendIAm(testDevice); err != nil {
		t.Fatalf("SendIAm: %v", err)
	}
	if len(f.net.sent) != 1 || !f.net.sent[0].broadcast {
		t.Fatalf("Expected one broadcast, got %v", f.net.sent)
	}
	if err := f.stack.SendIAm(1); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Expected ErrDeviceNotFound, got %v", err)
	}
}

func TestLoop(t *testing.T) {
	t.Run("no transport", func(t *testing.T) {
		s := NewStack(WithStackLogger(discardLogger()))
		if err := s.Loop(context.Background()); !errors.Is(err, ErrNoTransport) {
			t.Errorf("Expected ErrNoTransport, got %v", err)
		}
	})

	t.Run("nothing pending", func(t *testing.T) {
		f := newFixture(t)
		if err := f.stack.Loop(context.Background()); err != nil {
			t.Errorf("Expected nil, got %v", err)
		}
		if got := f.stack.Metrics().PacketsReceived.Value(); got != 0 {
			t.Errorf("Expected 0 packets, got %d", got)
		}
	})

	t.Run("malformed frame", func(t *testing.T) {
		f := newFixture(t)
		f.deliver(t, []byte{0x81, 0x0A, 0x00, 0x10})
		if len(f.net.sent) != 0 {
			t.Errorf("Expected no answer, got %d frames", len(f.net.sent))
		}
		if got := f.stack.Metrics().PacketsMalformed.Value(); got != 1 {
			t.Errorf("Expected 1 malformed packet, got %d", got)
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		f := newFixture(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := f.stack.Run(ctx); !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	})
}

func TestValueUpdated(t *testing.T) {
	f := newFixture(t)

	if err := f.stack.ValueUpdated(testDevice, ObjectTypeLift, testLift, PropertyCarPosition); err != nil {
		t.Fatalf("ValueUpdated: %v", err)
	}
	if err := f.stack.ValueUpdated(testDevice, ObjectTypeLift, 42, PropertyCarPosition); !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("Expected ErrObjectNotFound, got %v", err)
	}
	if got := f.stack.Metrics().ValueUpdates.Value(); got != 1 {
		t.Errorf("Expected 1 update, got %d", got)
	}
}

func TestValueUpdatedFromCallbackWithPendingSetup(t *testing.T) {
	f := newFixture(t)

	setup := make(chan error, 1)
	f.stack.RegisterCallbackSetPropertyUnsignedInteger(func(ref PropertyRef, value uint32, priority uint8) error {
		go func() {
			setup <- f.stack.SetPropertySubscribable(testDevice, ObjectTypeLift, testLift, PropertyCarPosition, true)
		}()
		// Let the setup call queue behind the read lock held by the loop.
		time.Sleep(50 * time.Millisecond)
		return f.stack.ValueUpdated(ref.Device, ref.ObjectType, ref.Instance, ref.Property)
	})

	f.net.inbox = append(f.net.inbox, EncodeFrame(BVLCOriginalUnicastNPDU, EncodeNPDU(true, NPDUControlPriorityNormal),
		EncodeConfirmedRequest(1, ServiceWriteProperty, writeRequest(liftOID, PropertyMakingCarCall, index(1), EncodeUnsignedTag(4)), 0, MaxAPDUCode(MaxAPDULength))))

	done := make(chan error, 1)
	go func() {
		done <- f.stack.Loop(context.Background())
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Loop: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Loop blocked while a setup call was pending")
	}

	select {
	case err := <-setup:
		if err != nil {
			t.Errorf("SetPropertySubscribable: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("SetPropertySubscribable never returned")
	}

	if len(f.net.sent) != 1 {
		t.Fatalf("Expected 1 response, got %d", len(f.net.sent))
	}
	frame, err := DecodeFrame(f.net.sent[0].data)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if frame.APDU.Type != PDUTypeSimpleAck {
		t.Errorf("Expected simple ack, got %v", decodeError(frame.APDU.Data))
	}
	if got := f.stack.Metrics().ValueUpdates.Value(); got != 1 {
		t.Errorf("Expected 1 update, got %d", got)
	}
}

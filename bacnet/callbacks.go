package bacnet

import "time"

// The stack owns no sockets and no data. Everything it sends, receives or
// reports comes through the callbacks below, registered by the
// application before the loop is started.

// SendMessageFunc transmits a complete BACnet/IP frame. The destination is
// a six octet B/IP address (IPv4 followed by the port, least significant
// octet first), nil for a local broadcast. It returns the number of bytes
// sent, 0 on failure.
type SendMessageFunc func(message []byte, destination []byte, broadcast bool) int

// ReceiveMessageFunc fills buf with one pending frame and returns its
// length together with the six octet source address. It returns 0 when
// nothing is pending and must not block for long.
type ReceiveMessageFunc func(buf []byte) (n int, source []byte)

// GetSystemTimeFunc returns the current wall clock time.
type GetSystemTimeFunc func() time.Time

// PropertyRef identifies one property read or written through a callback.
type PropertyRef struct {
	Device        uint32
	ObjectType    ObjectType
	Instance      uint32
	Property      PropertyIdentifier
	UseArrayIndex bool
	ArrayIndex    uint32
}

// GetCharacterStringFunc reads a character string property.
type GetCharacterStringFunc func(ref PropertyRef) (string, bool)

// GetRealFunc reads a real property.
type GetRealFunc func(ref PropertyRef) (float32, bool)

// GetEnumeratedFunc reads an enumerated property.
type GetEnumeratedFunc func(ref PropertyRef) (uint32, bool)

// GetUnsignedIntegerFunc reads an unsigned property. Array properties
// report their size through it when asked for index 0.
type GetUnsignedIntegerFunc func(ref PropertyRef) (uint32, bool)

// GetBoolFunc reads a boolean property.
type GetBoolFunc func(ref PropertyRef) (bool, bool)

// GetListOfEnumerationsFunc returns entry index of an enumerated list.
// more reports whether further entries follow.
type GetListOfEnumerationsFunc func(ref PropertyRef, index uint32) (value uint32, more bool, ok bool)

// GetLandingCallStatusFunc returns entry index of an elevator group's
// landing-calls list, or its landing-call-control value.
type GetLandingCallStatusFunc func(ref PropertyRef, index uint32) (status LandingCallStatus, more bool, ok bool)

// GetRegisteredCarCallFunc returns entry offset of the registered car
// calls of door (1-based) of a lift.
type GetRegisteredCarCallFunc func(device, lift, door, offset uint32) (floor uint8, more bool, ok bool)

// GetAssignedLandingCallFunc returns entry offset of the assigned landing
// calls of door (1-based) of a lift.
type GetAssignedLandingCallFunc func(device, lift, door, offset uint32) (call AssignedLandingCall, more bool, ok bool)

// GetLandingDoorStatusFunc returns entry offset of the landing door
// status list of door (1-based) of a lift.
type GetLandingDoorStatusFunc func(device, lift, door, offset uint32) (status LandingDoor, more bool, ok bool)

// SetUnsignedIntegerFunc writes an unsigned property. priority is 16 when
// the request carries none. A *BACnetError return selects the error
// reported to the peer.
type SetUnsignedIntegerFunc func(ref PropertyRef, value uint32, priority uint8) error

// SetLandingCallControlFunc writes the landing-call-control of an
// elevator group.
type SetLandingCallControlFunc func(device, group uint32, status LandingCallStatus) error

// AcknowledgeAlarmFunc handles an AcknowledgeAlarm request.
type AcknowledgeAlarmFunc func(device uint32, req AcknowledgeAlarmRequest) error

type callbacks struct {
	send    SendMessageFunc
	receive ReceiveMessageFunc
	now     GetSystemTimeFunc

	getCharacterString GetCharacterStringFunc
	getReal            GetRealFunc
	getEnumerated      GetEnumeratedFunc
	getUnsigned        GetUnsignedIntegerFunc
	getBool            GetBoolFunc
	getEnumList        GetListOfEnumerationsFunc
	getLandingCalls    GetLandingCallStatusFunc
	getCarCalls        GetRegisteredCarCallFunc
	getAssignedCalls   GetAssignedLandingCallFunc
	getLandingDoors    GetLandingDoorStatusFunc

	setUnsigned           SetUnsignedIntegerFunc
	setLandingCallControl SetLandingCallControlFunc
	acknowledgeAlarm      AcknowledgeAlarmFunc
}

// RegisterCallbackSendMessage sets the frame transmit callback
func (s *Stack) RegisterCallbackSendMessage(fn SendMessageFunc) {
	s.mu.Lock()
	s.cb.send = fn
	s.mu.Unlock()
}

// RegisterCallbackReceiveMessage sets the frame receive callback
func (s *Stack) RegisterCallbackReceiveMessage(fn ReceiveMessageFunc) {
	s.mu.Lock()
	s.cb.receive = fn
	s.mu.Unlock()
}

// RegisterCallbackGetSystemTime sets the wall clock callback used for
// local-date, local-time and time stamps
func (s *Stack) RegisterCallbackGetSystemTime(fn GetSystemTimeFunc) {
	s.mu.Lock()
	s.cb.now = fn
	s.mu.Unlock()
}

// RegisterCallbackGetPropertyCharacterString sets the character string getter
func (s *Stack) RegisterCallbackGetPropertyCharacterString(fn GetCharacterStringFunc) {
	s.mu.Lock()
	s.cb.getCharacterString = fn
	s.mu.Unlock()
}

// RegisterCallbackGetPropertyReal sets the real getter
func (s *Stack) RegisterCallbackGetPropertyReal(fn GetRealFunc) {
	s.mu.Lock()
	s.cb.getReal = fn
	s.mu.Unlock()
}

// RegisterCallbackGetPropertyEnumerated sets the enumerated getter
func (s *Stack) RegisterCallbackGetPropertyEnumerated(fn GetEnumeratedFunc) {
	s.mu.Lock()
	s.cb.getEnumerated = fn
	s.mu.Unlock()
}

// RegisterCallbackGetPropertyUnsignedInteger sets the unsigned getter
func (s *Stack) RegisterCallbackGetPropertyUnsignedInteger(fn GetUnsignedIntegerFunc) {
	s.mu.Lock()
	s.cb.getUnsigned = fn
	s.mu.Unlock()
}

// RegisterCallbackGetPropertyBool sets the boolean getter
func (s *Stack) RegisterCallbackGetPropertyBool(fn GetBoolFunc) {
	s.mu.Lock()
	s.cb.getBool = fn
	s.mu.Unlock()
}

// RegisterCallbackGetListOfEnumerations sets the enumerated list getter
func (s *Stack) RegisterCallbackGetListOfEnumerations(fn GetListOfEnumerationsFunc) {
	s.mu.Lock()
	s.cb.getEnumList = fn
	s.mu.Unlock()
}

// RegisterCallbackGetListElevatorGroupLandingCallStatus sets the landing
// call status getter
func (s *Stack) RegisterCallbackGetListElevatorGroupLandingCallStatus(fn GetLandingCallStatusFunc) {
	s.mu.Lock()
	s.cb.getLandingCalls = fn
	s.mu.Unlock()
}

// RegisterCallbackGetSequenceLiftRegisteredCarCall sets the registered
// car call getter
func (s *Stack) RegisterCallbackGetSequenceLiftRegisteredCarCall(fn GetRegisteredCarCallFunc) {
	s.mu.Lock()
	s.cb.getCarCalls = fn
	s.mu.Unlock()
}

// RegisterCallbackGetSequenceLiftAssignedLandingCall sets the assigned
// landing call getter
func (s *Stack) RegisterCallbackGetSequenceLiftAssignedLandingCall(fn GetAssignedLandingCallFunc) {
	s.mu.Lock()
	s.cb.getAssignedCalls = fn
	s.mu.Unlock()
}

// RegisterCallbackGetSequenceLiftLandingDoorStatus sets the landing door
// status getter
func (s *Stack) RegisterCallbackGetSequenceLiftLandingDoorStatus(fn GetLandingDoorStatusFunc) {
	s.mu.Lock()
	s.cb.getLandingDoors = fn
	s.mu.Unlock()
}

// RegisterCallbackSetPropertyUnsignedInteger sets the unsigned setter
func (s *Stack) RegisterCallbackSetPropertyUnsignedInteger(fn SetUnsignedIntegerFunc) {
	s.mu.Lock()
	s.cb.setUnsigned = fn
	s.mu.Unlock()
}

// RegisterCallbackSetElevatorGroupLandingCallControl sets the landing
// call control setter
func (s *Stack) RegisterCallbackSetElevatorGroupLandingCallControl(fn SetLandingCallControlFunc) {
	s.mu.Lock()
	s.cb.setLandingCallControl = fn
	s.mu.Unlock()
}

// RegisterCallbackAcknowledgeAlarm sets the alarm acknowledgment handler
func (s *Stack) RegisterCallbackAcknowledgeAlarm(fn AcknowledgeAlarmFunc) {
	s.mu.Lock()
	s.cb.acknowledgeAlarm = fn
	s.mu.Unlock()
}

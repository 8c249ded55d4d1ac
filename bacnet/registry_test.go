package bacnet

import (
	"errors"
	"reflect"
	"testing"
)

func newTestStack(t *testing.T) *Stack {
	t.Helper()
	s := NewStack(WithStackLogger(discardLogger()))
	if err := s.AddDevice(testDevice); err != nil {
		t.Fatalf("AddDevice: %v", err)
	}
	return s
}

func TestAddDevice(t *testing.T) {
	s := NewStack(WithStackLogger(discardLogger()))

	if err := s.AddDevice(NoInstance); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("Expected ErrInvalidParameter for the wildcard instance, got %v", err)
	}
	if err := s.AddDevice(testDevice); err != nil {
		t.Fatalf("AddDevice: %v", err)
	}
	if err := s.AddDevice(testDevice + 1); !errors.Is(err, ErrDeviceExists) {
		t.Errorf("Expected ErrDeviceExists, got %v", err)
	}
	if !s.dev.services[ServiceSupportedReadProperty] || !s.dev.services[ServiceSupportedWhoIs] {
		t.Errorf("Expected read-property and who-is to be executed by default")
	}
}

func TestAddObjectErrors(t *testing.T) {
	tests := []struct {
		name     string
		add      func(s *Stack) error
		expected error
	}{
		{
			name: "unknown device",
			add: func(s *Stack) error {
				return s.AddPositiveIntegerValueObject(1, 1)
			},
			expected: ErrDeviceNotFound,
		},
		{
			name: "duplicate object",
			add: func(s *Stack) error {
				if err := s.AddPositiveIntegerValueObject(testDevice, 1); err != nil {
					return err
				}
				return s.AddPositiveIntegerValueObject(testDevice, 1)
			},
			expected: ErrObjectExists,
		},
		{
			name: "reserved instance",
			add: func(s *Stack) error {
				return s.AddPositiveIntegerValueObject(testDevice, NoInstance)
			},
			expected: ErrInvalidParameter,
		},
		{
			name: "not a lift",
			add: func(s *Stack) error {
				return s.AddLiftOrEscalatorObject(testDevice, ObjectTypeAnalogInput, 1, NoInstance, 0, 0)
			},
			expected: ErrInvalidParameter,
		},
		{
			name: "missing notification class",
			add: func(s *Stack) error {
				if err := s.AddLiftOrEscalatorObject(testDevice, ObjectTypeEscalator, 1, NoInstance, 0, 0); err != nil {
					return err
				}
				return s.EnableAlarmsAndEventsForObject(testDevice, ObjectTypeEscalator, 1, 7, NotifyTypeAlarm, true, true, true, false)
			},
			expected: ErrObjectNotFound,
		},
		{
			name: "alarms on a missing object",
			add: func(s *Stack) error {
				return s.EnableAlarmsAndEventsForObject(testDevice, ObjectTypeLift, 1, 7, NotifyTypeAlarm, true, true, true, false)
			},
			expected: ErrObjectNotFound,
		},
		{
			name: "empty recipient",
			add: func(s *Stack) error {
				if err := s.AddNotificationClassObject(testDevice, 1, 1, 1, 1, false, false, false); err != nil {
					return err
				}
				return s.AddRecipientToNotificationClass(testDevice, 1, Destination{})
			},
			expected: ErrInvalidParameter,
		},
		{
			name: "decks of a missing lift",
			add: func(s *Stack) error {
				return s.SetLiftHigherLowerDeck(testDevice, 5, 6, NoInstance)
			},
			expected: ErrObjectNotFound,
		},
		{
			name: "unsupported object type",
			add: func(s *Stack) error {
				return s.SetPropertyByObjectTypeEnabled(testDevice, ObjectTypeAnalogInput, PropertyDescription, true)
			},
			expected: ErrInvalidParameter,
		},
		{
			name: "service out of range",
			add: func(s *Stack) error {
				return s.SetServiceEnabled(testDevice, ServiceSupported(servicesSupportedBits), true)
			},
			expected: ErrInvalidParameter,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStack(t)
			if err := tt.add(s); !errors.Is(err, tt.expected) {
				t.Errorf("Expected %v, got %v", tt.expected, err)
			}
		})
	}
}

func TestDatabaseRevision(t *testing.T) {
	s := newTestStack(t)
	start := s.dev.databaseRevision

	if err := s.AddNotificationClassObject(testDevice, 1, 1, 2, 3, true, false, true); err != nil {
		t.Fatal(err)
	}
	if err := s.AddLiftOrEscalatorObject(testDevice, ObjectTypeLift, 1, NoInstance, 0, 0); err != nil {
		t.Fatal(err)
	}
	if err := s.EnableAlarmsAndEventsForObject(testDevice, ObjectTypeLift, 1, 1, NotifyTypeEvent, true, true, true, false); err != nil {
		t.Fatal(err)
	}
	device := NewObjectIdentifier(ObjectTypeDevice, 1)
	if err := s.AddRecipientToNotificationClass(testDevice, 1, Destination{Device: &device}); err != nil {
		t.Fatal(err)
	}

	if got := s.dev.databaseRevision; got != start+4 {
		t.Errorf("Expected revision %d, got %d", start+4, got)
	}
}

func TestGroupMembers(t *testing.T) {
	s := newTestStack(t)

	adds := []struct {
		objectType ObjectType
		instance   uint32
		group      uint32
	}{
		{ObjectTypeLift, 3, 10},
		{ObjectTypeEscalator, 1, 11},
		{ObjectTypeLift, 1, 10},
		{ObjectTypeLift, 2, NoInstance},
	}
	for _, a := range adds {
		if err := s.AddLiftOrEscalatorObject(testDevice, a.objectType, a.instance, a.group, 1, 1); err != nil {
			t.Fatal(err)
		}
	}

	expected := []ObjectIdentifier{
		NewObjectIdentifier(ObjectTypeLift, 3),
		NewObjectIdentifier(ObjectTypeLift, 1),
	}
	if got := s.dev.members(10); !reflect.DeepEqual(got, expected) {
		t.Errorf("Expected %v, got %v", expected, got)
	}
	if got := s.dev.members(12); got != nil {
		t.Errorf("Expected no members, got %v", got)
	}
}

func TestSubscribable(t *testing.T) {
	s := newTestStack(t)
	if err := s.AddLiftOrEscalatorObject(testDevice, ObjectTypeLift, 1, NoInstance, 0, 0); err != nil {
		t.Fatal(err)
	}
	if err := s.AddLiftOrEscalatorObject(testDevice, ObjectTypeLift, 2, NoInstance, 0, 0); err != nil {
		t.Fatal(err)
	}
	if err := s.SetPropertyByObjectTypeSubscribable(testDevice, ObjectTypeLift, PropertyCarPosition, true); err != nil {
		t.Fatal(err)
	}
	if err := s.SetPropertySubscribable(testDevice, ObjectTypeLift, 2, PropertyCarPosition, false); err != nil {
		t.Fatal(err)
	}

	lift1 := s.dev.object(ObjectTypeLift, 1)
	lift2 := s.dev.object(ObjectTypeLift, 2)
	if !s.dev.isSubscribable(lift1, PropertyCarPosition) {
		t.Errorf("Expected the object type default to apply to lift 1")
	}
	if s.dev.isSubscribable(lift2, PropertyCarPosition) {
		t.Errorf("Expected the object override to apply to lift 2")
	}
	if s.dev.isSubscribable(lift1, PropertyCarMovingDirection) {
		t.Errorf("Expected car-moving-direction to stay unsubscribable")
	}
}

func TestPropertyListFollowsConfiguration(t *testing.T) {
	s := newTestStack(t)
	if err := s.AddLiftOrEscalatorObject(testDevice, ObjectTypeLift, 1, NoInstance, 0, 0); err != nil {
		t.Fatal(err)
	}
	o := s.dev.object(ObjectTypeLift, 1)

	has := func(prop PropertyIdentifier) bool {
		for _, id := range s.propertyIDs(s.dev, o, PropertyAll) {
			if id == prop {
				return true
			}
		}
		return false
	}

	if has(PropertyEnergyMeter) || has(PropertyHigherDeck) || has(PropertyNotificationClass) {
		t.Fatalf("Expected optional and conditional properties to be absent")
	}

	if err := s.SetPropertyByObjectTypeEnabled(testDevice, ObjectTypeLift, PropertyEnergyMeter, true); err != nil {
		t.Fatal(err)
	}
	if err := s.AddLiftOrEscalatorObject(testDevice, ObjectTypeLift, 2, NoInstance, 0, 0); err != nil {
		t.Fatal(err)
	}
	if err := s.SetLiftHigherLowerDeck(testDevice, 1, 2, NoInstance); err != nil {
		t.Fatal(err)
	}

	if !has(PropertyEnergyMeter) {
		t.Errorf("Expected energy-meter once enabled")
	}
	if !has(PropertyHigherDeck) {
		t.Errorf("Expected higher-deck once linked")
	}
	if has(PropertyLowerDeck) {
		t.Errorf("Expected lower-deck to stay absent")
	}
	if has(PropertyPropertyList) {
		t.Errorf("Expected property-list to be left out of the expansion")
	}

	for _, prop := range s.propertyIDs(s.dev, o, PropertyRequired) {
		if prop == PropertyEnergyMeter {
			t.Errorf("Expected required to leave out energy-meter")
		}
	}
}

package bacnet

import (
	"fmt"
	"log/slog"
)

type propertyFlags struct {
	enabled      bool
	writable     bool
	subscribable bool
}

// eventEnrollment holds the intrinsic reporting configuration of an object.
type eventEnrollment struct {
	notificationClass uint32
	notifyType        NotifyType
	eventEnable       [3]bool
	ackRequired       bool
}

type object struct {
	id ObjectIdentifier

	// elevator group
	machineRoom        uint32
	groupID            uint8
	landingCalls       bool
	landingCallControl bool

	// lift and escalator
	group          uint32
	installationID uint8
	higherDeck     uint32
	lowerDeck      uint32

	// notification class
	priorities  [3]uint8
	ackRequired [3]bool
	recipients  []Destination

	events       *eventEnrollment
	subscribable map[PropertyIdentifier]bool
}

type device struct {
	instance         uint32
	services         map[ServiceSupported]bool
	objects          map[ObjectIdentifier]*object
	order            []ObjectIdentifier
	typeFlags        map[ObjectType]map[PropertyIdentifier]*propertyFlags
	databaseRevision uint32
}

func newDevice(instance uint32) *device {
	d := &device{
		instance:  instance,
		services:  make(map[ServiceSupported]bool),
		objects:   make(map[ObjectIdentifier]*object),
		typeFlags: make(map[ObjectType]map[PropertyIdentifier]*propertyFlags),
	}
	// Every device executes these.
	d.services[ServiceSupportedReadProperty] = true
	d.services[ServiceSupportedWhoIs] = true

	d.add(&object{id: NewObjectIdentifier(ObjectTypeDevice, instance)})
	return d
}

func (d *device) add(o *object) {
	o.subscribable = make(map[PropertyIdentifier]bool)
	d.objects[o.id] = o
	d.order = append(d.order, o.id)
	d.databaseRevision++
}

func (d *device) object(objectType ObjectType, instance uint32) *object {
	if objectType == ObjectTypeDevice && instance == NoInstance {
		instance = d.instance
	}
	return d.objects[NewObjectIdentifier(objectType, instance)]
}

func (d *device) flags(objectType ObjectType, property PropertyIdentifier) propertyFlags {
	if f, ok := d.typeFlags[objectType][property]; ok {
		return *f
	}
	return propertyFlags{}
}

func (d *device) setFlags(objectType ObjectType, property PropertyIdentifier, update func(*propertyFlags)) {
	props, ok := d.typeFlags[objectType]
	if !ok {
		props = make(map[PropertyIdentifier]*propertyFlags)
		d.typeFlags[objectType] = props
	}
	f, ok := props[property]
	if !ok {
		f = &propertyFlags{}
		props[property] = f
	}
	update(f)
}

// members returns the lifts or escalators that reference group, in the
// order they were added.
func (d *device) members(group uint32) []ObjectIdentifier {
	var ids []ObjectIdentifier
	for _, id := range d.order {
		if id.Type != ObjectTypeLift && id.Type != ObjectTypeEscalator {
			continue
		}
		if d.objects[id].group == group {
			ids = append(ids, id)
		}
	}
	return ids
}

// lockRegistry takes both locks guarding the declared objects. Lock order
// is mu then objMu.
func (s *Stack) lockRegistry() {
	s.mu.Lock()
	s.objMu.Lock()
}

func (s *Stack) unlockRegistry() {
	s.objMu.Unlock()
	s.mu.Unlock()
}

// lookup returns the device for instance. The caller holds s.mu or objMu.
func (s *Stack) lookup(instance uint32) (*device, error) {
	if s.dev == nil || s.dev.instance != instance {
		return nil, fmt.Errorf("%w: %d", ErrDeviceNotFound, instance)
	}
	return s.dev, nil
}

func (s *Stack) addObject(deviceInstance uint32, o *object) error {
	s.lockRegistry()
	defer s.unlockRegistry()

	dev, err := s.lookup(deviceInstance)
	if err != nil {
		return err
	}
	if o.id.Instance >= NoInstance {
		return fmt.Errorf("%w: instance %d", ErrInvalidParameter, o.id.Instance)
	}
	if _, ok := dev.objects[o.id]; ok {
		return fmt.Errorf("%w: %s", ErrObjectExists, o.id)
	}
	dev.add(o)

	s.logger.Debug("object added", slog.String("object", o.id.String()))
	return nil
}

// AddDevice creates the device object. A stack hosts a single device.
func (s *Stack) AddDevice(instance uint32) error {
	if instance >= NoInstance {
		return fmt.Errorf("%w: device instance %d", ErrInvalidParameter, instance)
	}

	s.lockRegistry()
	defer s.unlockRegistry()

	if s.dev != nil {
		return fmt.Errorf("%w: %d", ErrDeviceExists, s.dev.instance)
	}
	s.dev = newDevice(instance)

	s.logger.Info("device added", slog.Uint64("device", uint64(instance)))
	return nil
}

// SetServiceEnabled enables or disables an optional service. Disabled
// confirmed services are rejected as unrecognized.
func (s *Stack) SetServiceEnabled(deviceInstance uint32, service ServiceSupported, enabled bool) error {
	s.lockRegistry()
	defer s.unlockRegistry()

	dev, err := s.lookup(deviceInstance)
	if err != nil {
		return err
	}
	if service >= servicesSupportedBits {
		return fmt.Errorf("%w: service %d", ErrInvalidParameter, service)
	}
	dev.services[service] = enabled
	return nil
}

// AddElevatorGroupObject adds an elevator group. machineRoom is the
// instance of the positive integer value holding the machine room number,
// NoInstance when there is none. landingCalls and landingCallControl
// expose the optional properties of a group of lifts.
func (s *Stack) AddElevatorGroupObject(deviceInstance, instance, machineRoom uint32, groupID uint8, landingCalls, landingCallControl bool) error {
	return s.addObject(deviceInstance, &object{
		id:                 NewObjectIdentifier(ObjectTypeElevatorGroup, instance),
		machineRoom:        machineRoom,
		groupID:            groupID,
		landingCalls:       landingCalls,
		landingCallControl: landingCallControl,
	})
}

// AddLiftOrEscalatorObject adds a lift or an escalator belonging to the
// elevator group group, NoInstance for a stand-alone installation.
func (s *Stack) AddLiftOrEscalatorObject(deviceInstance uint32, objectType ObjectType, instance, group uint32, groupID, installationID uint8) error {
	if objectType != ObjectTypeLift && objectType != ObjectTypeEscalator {
		return fmt.Errorf("%w: %s is neither a lift nor an escalator", ErrInvalidParameter, objectType)
	}
	return s.addObject(deviceInstance, &object{
		id:             NewObjectIdentifier(objectType, instance),
		group:          group,
		groupID:        groupID,
		installationID: installationID,
		higherDeck:     NoInstance,
		lowerDeck:      NoInstance,
	})
}

// SetLiftHigherLowerDeck links the cars of a multi-deck lift. NoInstance
// leaves a side unset.
func (s *Stack) SetLiftHigherLowerDeck(deviceInstance, lift, higher, lower uint32) error {
	s.lockRegistry()
	defer s.unlockRegistry()

	dev, err := s.lookup(deviceInstance)
	if err != nil {
		return err
	}
	o := dev.object(ObjectTypeLift, lift)
	if o == nil {
		return fmt.Errorf("%w: lift %d", ErrObjectNotFound, lift)
	}
	o.higherDeck = higher
	o.lowerDeck = lower
	return nil
}

// AddPositiveIntegerValueObject adds a positive integer value whose
// present-value is read through the unsigned callback.
func (s *Stack) AddPositiveIntegerValueObject(deviceInstance, instance uint32) error {
	return s.addObject(deviceInstance, &object{
		id: NewObjectIdentifier(ObjectTypePositiveIntegerValue, instance),
	})
}

// AddNotificationClassObject adds a notification class. Priorities and
// acknowledgment flags are given for the to-offnormal, to-fault and
// to-normal transitions.
func (s *Stack) AddNotificationClassObject(deviceInstance, instance uint32, toOffNormal, toFault, toNormal uint8, ackOffNormal, ackFault, ackNormal bool) error {
	return s.addObject(deviceInstance, &object{
		id:          NewObjectIdentifier(ObjectTypeNotificationClass, instance),
		priorities:  [3]uint8{toOffNormal, toFault, toNormal},
		ackRequired: [3]bool{ackOffNormal, ackFault, ackNormal},
	})
}

// AddRecipientToNotificationClass appends a destination to the
// recipient-list of a notification class.
func (s *Stack) AddRecipientToNotificationClass(deviceInstance, notificationClass uint32, dest Destination) error {
	s.lockRegistry()
	defer s.unlockRegistry()

	dev, err := s.lookup(deviceInstance)
	if err != nil {
		return err
	}
	o := dev.object(ObjectTypeNotificationClass, notificationClass)
	if o == nil {
		return fmt.Errorf("%w: notification class %d", ErrObjectNotFound, notificationClass)
	}
	if dest.Device == nil && len(dest.MAC) == 0 {
		return fmt.Errorf("%w: recipient has neither device nor address", ErrInvalidParameter)
	}
	o.recipients = append(o.recipients, dest)
	dev.databaseRevision++

	s.logger.Debug("recipient added",
		slog.Uint64("notification_class", uint64(notificationClass)),
		slog.String("recipient", dest.String()),
	)
	return nil
}

// EnableAlarmsAndEventsForObject enrolls an object for intrinsic
// reporting through notificationClass. The object then exposes the
// notification-class, notify-type, event-enable and acked-transitions
// properties and accepts AcknowledgeAlarm requests.
func (s *Stack) EnableAlarmsAndEventsForObject(deviceInstance uint32, objectType ObjectType, instance, notificationClass uint32, notifyType NotifyType, toOffNormal, toFault, toNormal, ackRequired bool) error {
	s.lockRegistry()
	defer s.unlockRegistry()

	dev, err := s.lookup(deviceInstance)
	if err != nil {
		return err
	}
	o := dev.object(objectType, instance)
	if o == nil {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, NewObjectIdentifier(objectType, instance))
	}
	if dev.object(ObjectTypeNotificationClass, notificationClass) == nil {
		return fmt.Errorf("%w: notification class %d", ErrObjectNotFound, notificationClass)
	}
	o.events = &eventEnrollment{
		notificationClass: notificationClass,
		notifyType:        notifyType,
		eventEnable:       [3]bool{toOffNormal, toFault, toNormal},
		ackRequired:       ackRequired,
	}
	dev.databaseRevision++
	return nil
}

// SetPropertyByObjectTypeEnabled exposes an optional property on every
// object of objectType.
func (s *Stack) SetPropertyByObjectTypeEnabled(deviceInstance uint32, objectType ObjectType, property PropertyIdentifier, enabled bool) error {
	return s.setTypeFlag(deviceInstance, objectType, property, func(f *propertyFlags) {
		f.enabled = enabled
	})
}

// SetPropertyByObjectTypeWritable makes a property writable on every
// object of objectType. Writes are delivered to the set callbacks.
func (s *Stack) SetPropertyByObjectTypeWritable(deviceInstance uint32, objectType ObjectType, property PropertyIdentifier, writable bool) error {
	return s.setTypeFlag(deviceInstance, objectType, property, func(f *propertyFlags) {
		f.writable = writable
	})
}

// SetPropertyByObjectTypeSubscribable marks a property of every object of
// objectType as subscribable.
func (s *Stack) SetPropertyByObjectTypeSubscribable(deviceInstance uint32, objectType ObjectType, property PropertyIdentifier, subscribable bool) error {
	return s.setTypeFlag(deviceInstance, objectType, property, func(f *propertyFlags) {
		f.subscribable = subscribable
	})
}

func (s *Stack) setTypeFlag(deviceInstance uint32, objectType ObjectType, property PropertyIdentifier, update func(*propertyFlags)) error {
	s.lockRegistry()
	defer s.unlockRegistry()

	dev, err := s.lookup(deviceInstance)
	if err != nil {
		return err
	}
	if _, ok := objectProperties[objectType]; !ok {
		return fmt.Errorf("%w: object type %s", ErrInvalidParameter, objectType)
	}
	dev.setFlags(objectType, property, update)
	return nil
}

// SetPropertySubscribable marks a property of a single object as
// subscribable.
func (s *Stack) SetPropertySubscribable(deviceInstance uint32, objectType ObjectType, instance uint32, property PropertyIdentifier, subscribable bool) error {
	s.lockRegistry()
	defer s.unlockRegistry()

	dev, err := s.lookup(deviceInstance)
	if err != nil {
		return err
	}
	o := dev.object(objectType, instance)
	if o == nil {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, NewObjectIdentifier(objectType, instance))
	}
	o.subscribable[property] = subscribable
	return nil
}

func (d *device) isSubscribable(o *object, property PropertyIdentifier) bool {
	if v, ok := o.subscribable[property]; ok {
		return v
	}
	return d.flags(o.id.Type, property).subscribable
}

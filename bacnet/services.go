package bacnet

import (
	"errors"
	"fmt"
	"log/slog"
)

var (
	errTooManyArguments = errors.New("bacnet: too many arguments")
	errMissingParameter = errors.New("bacnet: missing required parameter")
)

// defaultWritePriority is used when a write request carries no priority.
const defaultWritePriority = 16

// confirmedHandler decodes a service request and returns the ComplexACK
// service data, or nil when a SimpleACK answers the request. Decoding
// errors are rejected; a *BACnetError is reported as an Error PDU.
type confirmedHandler func(s *Stack, dev *device, data []byte) ([]byte, error)

var confirmedHandlers = map[ConfirmedServiceChoice]confirmedHandler{
	ServiceReadProperty:          (*Stack).readPropertyService,
	ServiceReadPropertyMultiple:  (*Stack).readPropertyMultipleService,
	ServiceWriteProperty:         (*Stack).writePropertyService,
	ServiceWritePropertyMultiple: (*Stack).writePropertyMultipleService,
	ServiceAcknowledgeAlarm:      (*Stack).acknowledgeAlarmService,
	ServiceGetEventInformation:   (*Stack).getEventInformationService,
	ServiceSubscribeCOV:          (*Stack).subscribeService,
	ServiceSubscribeCOVProperty:  (*Stack).subscribeService,
}

func (s *Stack) handleConfirmed(dev *device, req *request) {
	apdu := req.apdu
	service := ConfirmedServiceChoice(apdu.Service)

	if apdu.Segmented {
		s.abort(req, AbortReasonSegmentationNotSupported)
		return
	}

	supported, ok := serviceForConfirmed(service)
	handler, known := confirmedHandlers[service]
	if !ok || !known || !dev.services[supported] {
		s.reject(req, RejectReasonUnrecognizedService)
		return
	}

	ack, err := handler(s, dev, apdu.Data)
	if err != nil {
		s.fail(req, service, err)
		return
	}
	if ack == nil {
		s.reply(req, EncodeSimpleAck(apdu.InvokeID, service))
		return
	}

	resp := EncodeComplexAck(apdu.InvokeID, service, ack)
	limit := MaxAPDUFromCode(apdu.MaxAPDU)
	if own := int(s.opts.maxAPDULength); own < limit {
		limit = own
	}
	if len(resp) > limit {
		s.logger.Debug("response exceeds max apdu",
			slog.String("service", service.String()),
			slog.Int("length", len(resp)),
			slog.Int("limit", limit),
		)
		s.abort(req, AbortReasonSegmentationNotSupported)
		return
	}
	s.reply(req, resp)
}

func (s *Stack) fail(req *request, service ConfirmedServiceChoice, err error) {
	var wpmErr *writeMultipleError
	var bacnetErr *BACnetError

	switch {
	case errors.As(err, &wpmErr):
		s.metrics.ErrorsSent.Inc()
		s.reply(req, wpmErr.encode(req.apdu.InvokeID))
	case errors.As(err, &bacnetErr):
		s.metrics.ErrorsSent.Inc()
		s.reply(req, EncodeErrorPDU(req.apdu.InvokeID, service, bacnetErr.Class, bacnetErr.Code))
	default:
		s.logger.Debug("rejecting request",
			slog.String("service", service.String()),
			slog.String("error", err.Error()),
		)
		s.reject(req, rejectReasonFor(err))
	}
}

func (s *Stack) reject(req *request, reason RejectReason) {
	s.metrics.RejectsSent.Inc()
	s.reply(req, EncodeRejectPDU(req.apdu.InvokeID, reason))
}

func (s *Stack) abort(req *request, reason AbortReason) {
	s.metrics.AbortsSent.Inc()
	s.reply(req, EncodeAbortPDU(req.apdu.InvokeID, reason))
}

func rejectReasonFor(err error) RejectReason {
	switch {
	case errors.Is(err, errTooManyArguments):
		return RejectReasonTooManyArguments
	case errors.Is(err, ErrUnexpectedEnd), errors.Is(err, errMissingParameter):
		return RejectReasonMissingRequiredParameter
	case errors.Is(err, ErrInvalidTag):
		return RejectReasonInvalidTag
	case errors.Is(err, ErrValueOutOfRange):
		return RejectReasonParameterOutOfRange
	case errors.Is(err, ErrInvalidDataType):
		return RejectReasonInvalidParameterDataType
	case errors.Is(err, ErrInvalidParameter):
		return RejectReasonInconsistentParameters
	}
	return RejectReasonOther
}

func optionalIndex(r *TagReader, n uint8) (*uint32, error) {
	if !r.IsContext(n) {
		return nil, nil
	}
	v, err := r.ContextUnsigned(n)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func contextProperty(r *TagReader, n uint8) (PropertyIdentifier, error) {
	v, err := r.ContextUnsigned(n)
	if err != nil {
		return 0, fmt.Errorf("property-identifier: %w", err)
	}
	return PropertyIdentifier(v), nil
}

func encodePropertyReference(objectTag uint8, oid ObjectIdentifier, prop PropertyIdentifier, index *uint32) []byte {
	buf := EncodeContextObjectIdentifier(objectTag, oid)
	buf = append(buf, EncodeContextEnumerated(objectTag+1, uint32(prop))...)
	if index != nil {
		buf = append(buf, EncodeContextUnsigned(objectTag+2, *index)...)
	}
	return buf
}

func indexAttr(index *uint32) slog.Attr {
	if index == nil {
		return slog.String("array_index", "none")
	}
	return slog.Uint64("array_index", uint64(*index))
}

func (s *Stack) readPropertyService(dev *device, data []byte) ([]byte, error) {
	r := NewTagReader(data)
	oid, err := r.ContextObjectIdentifier(0)
	if err != nil {
		return nil, fmt.Errorf("object-identifier: %w", err)
	}
	prop, err := contextProperty(r, 1)
	if err != nil {
		return nil, err
	}
	index, err := optionalIndex(r, 2)
	if err != nil {
		return nil, err
	}
	if !r.Done() {
		return nil, errTooManyArguments
	}

	s.metrics.ReadRequests.Inc()
	s.logger.Debug("read property",
		slog.String("object", oid.String()),
		slog.String("property", prop.String()),
		indexAttr(index),
	)

	o := dev.object(oid.Type, oid.Instance)
	if o == nil {
		return nil, errUnknownObject()
	}
	value, berr := s.readProperty(dev, o, prop, index)
	if berr != nil {
		return nil, berr
	}

	ack := encodePropertyReference(0, o.id, prop, index)
	ack = append(ack, EncodeOpeningTag(3)...)
	ack = append(ack, value...)
	return append(ack, EncodeClosingTag(3)...), nil
}

type propertyReference struct {
	property PropertyIdentifier
	index    *uint32
}

func (s *Stack) readPropertyMultipleService(dev *device, data []byte) ([]byte, error) {
	r := NewTagReader(data)
	var ack []byte

	for !r.Done() {
		oid, err := r.ContextObjectIdentifier(0)
		if err != nil {
			return nil, fmt.Errorf("object-identifier: %w", err)
		}
		if err := r.Opening(1); err != nil {
			return nil, err
		}
		var refs []propertyReference
		for !r.IsClosing(1) {
			prop, err := contextProperty(r, 0)
			if err != nil {
				return nil, err
			}
			index, err := optionalIndex(r, 1)
			if err != nil {
				return nil, err
			}
			refs = append(refs, propertyReference{property: prop, index: index})
		}
		if err := r.Closing(1); err != nil {
			return nil, err
		}
		if len(refs) == 0 {
			return nil, fmt.Errorf("%w: empty property list for %s", errMissingParameter, oid)
		}

		s.metrics.ReadRequests.Inc()
		ack = append(ack, s.readAccessResult(dev, oid, refs)...)
	}
	if ack == nil {
		return nil, fmt.Errorf("%w: no read access specification", errMissingParameter)
	}
	return ack, nil
}

// readAccessResult encodes the results for one object of a
// ReadPropertyMultiple request. Failures are reported per property.
func (s *Stack) readAccessResult(dev *device, oid ObjectIdentifier, refs []propertyReference) []byte {
	o := dev.object(oid.Type, oid.Instance)
	if o != nil {
		oid = o.id
	}

	buf := EncodeContextObjectIdentifier(0, oid)
	buf = append(buf, EncodeOpeningTag(1)...)
	for _, ref := range refs {
		if o == nil {
			buf = append(buf, readResult(ref.property, ref.index, nil, errUnknownObject())...)
			continue
		}

		switch ref.property {
		case PropertyAll, PropertyRequired, PropertyOptional:
			if ref.index != nil {
				buf = append(buf, readResult(ref.property, ref.index, nil, errInvalidArrayIndex())...)
				continue
			}
			for _, prop := range s.propertyIDs(dev, o, ref.property) {
				value, berr := s.readProperty(dev, o, prop, nil)
				buf = append(buf, readResult(prop, nil, value, berr)...)
			}
		default:
			value, berr := s.readProperty(dev, o, ref.property, ref.index)
			buf = append(buf, readResult(ref.property, ref.index, value, berr)...)
		}
	}
	return append(buf, EncodeClosingTag(1)...)
}

func readResult(prop PropertyIdentifier, index *uint32, value []byte, berr *BACnetError) []byte {
	buf := EncodeContextEnumerated(2, uint32(prop))
	if index != nil {
		buf = append(buf, EncodeContextUnsigned(3, *index)...)
	}
	if berr != nil {
		buf = append(buf, EncodeOpeningTag(5)...)
		buf = append(buf, EncodeEnumeratedTag(uint32(berr.Class))...)
		buf = append(buf, EncodeEnumeratedTag(uint32(berr.Code))...)
		return append(buf, EncodeClosingTag(5)...)
	}
	buf = append(buf, EncodeOpeningTag(4)...)
	buf = append(buf, value...)
	return append(buf, EncodeClosingTag(4)...)
}

func decodePriority(r *TagReader, n uint8) (uint8, error) {
	if !r.IsContext(n) {
		return defaultWritePriority, nil
	}
	v, err := r.ContextUnsigned(n)
	if err != nil {
		return 0, fmt.Errorf("priority: %w", err)
	}
	if v < 1 || v > 16 {
		return 0, fmt.Errorf("%w: priority %d", ErrValueOutOfRange, v)
	}
	return uint8(v), nil
}

func (s *Stack) writePropertyService(dev *device, data []byte) ([]byte, error) {
	r := NewTagReader(data)
	oid, err := r.ContextObjectIdentifier(0)
	if err != nil {
		return nil, fmt.Errorf("object-identifier: %w", err)
	}
	prop, err := contextProperty(r, 1)
	if err != nil {
		return nil, err
	}
	index, err := optionalIndex(r, 2)
	if err != nil {
		return nil, err
	}
	if err := r.Opening(3); err != nil {
		return nil, fmt.Errorf("property-value: %w", err)
	}
	value, err := r.RawUntilClosing(3)
	if err != nil {
		return nil, fmt.Errorf("property-value: %w", err)
	}
	priority, err := decodePriority(r, 4)
	if err != nil {
		return nil, err
	}
	if !r.Done() {
		return nil, errTooManyArguments
	}

	s.metrics.WriteRequests.Inc()
	if berr := s.writeProperty(dev, oid, prop, index, value, priority); berr != nil {
		return nil, berr
	}
	return nil, nil
}

// writeProperty applies one write. The caller holds s.mu.
func (s *Stack) writeProperty(dev *device, oid ObjectIdentifier, prop PropertyIdentifier, index *uint32, value []byte, priority uint8) *BACnetError {
	s.logger.Info("write property",
		slog.String("object", oid.String()),
		slog.String("property", prop.String()),
		indexAttr(index),
		slog.Int("priority", int(priority)),
	)

	o := dev.object(oid.Type, oid.Instance)
	if o == nil {
		return errUnknownObject()
	}
	def, ok := s.findProperty(dev, o, prop)
	if !ok {
		return errUnknownProperty()
	}
	if index != nil && !def.array {
		return NewBACnetError(ErrorClassProperty, ErrorCodePropertyIsNotAnArray)
	}

	switch {
	case prop == PropertyLandingCallControl && s.cb.setLandingCallControl != nil:
		r := NewTagReader(value)
		status, err := DecodeLandingCallStatus(r)
		if err != nil || !r.Done() {
			if errors.Is(err, ErrValueOutOfRange) {
				return NewBACnetError(ErrorClassProperty, ErrorCodeValueOutOfRange)
			}
			return NewBACnetError(ErrorClassProperty, ErrorCodeInvalidDataType)
		}
		if err := s.cb.setLandingCallControl(dev.instance, o.id.Instance, status); err != nil {
			return errorFor(err, errWriteAccessDenied())
		}
		return nil

	case def.kind == kindUnsigned && dev.flags(o.id.Type, prop).writable && s.cb.setUnsigned != nil:
		r := NewTagReader(value)
		v, err := r.ApplicationUnsigned()
		if err != nil || !r.Done() {
			return NewBACnetError(ErrorClassProperty, ErrorCodeInvalidDataType)
		}
		ref := s.ref(dev, o, prop)
		if index != nil {
			ref = indexed(ref, *index)
		}
		if err := s.cb.setUnsigned(ref, v, priority); err != nil {
			return errorFor(err, errWriteAccessDenied())
		}
		return nil
	}
	return errWriteAccessDenied()
}

type writeAccess struct {
	oid      ObjectIdentifier
	property PropertyIdentifier
	index    *uint32
	value    []byte
	priority uint8
}

// writeMultipleError reports the first failed write of a
// WritePropertyMultiple request.
type writeMultipleError struct {
	err    *BACnetError
	failed writeAccess
}

func (e *writeMultipleError) Error() string {
	return fmt.Sprintf("write %s %s: %v", e.failed.oid, e.failed.property, e.err)
}

func (e *writeMultipleError) encode(invokeID uint8) []byte {
	buf := []byte{byte(PDUTypeError), invokeID, byte(ServiceWritePropertyMultiple)}
	buf = append(buf, EncodeOpeningTag(0)...)
	buf = append(buf, EncodeEnumeratedTag(uint32(e.err.Class))...)
	buf = append(buf, EncodeEnumeratedTag(uint32(e.err.Code))...)
	buf = append(buf, EncodeClosingTag(0)...)
	buf = append(buf, EncodeOpeningTag(1)...)
	buf = append(buf, encodePropertyReference(0, e.failed.oid, e.failed.property, e.failed.index)...)
	return append(buf, EncodeClosingTag(1)...)
}

func (s *Stack) writePropertyMultipleService(dev *device, data []byte) ([]byte, error) {
	r := NewTagReader(data)
	var writes []writeAccess

	for !r.Done() {
		oid, err := r.ContextObjectIdentifier(0)
		if err != nil {
			return nil, fmt.Errorf("object-identifier: %w", err)
		}
		if err := r.Opening(1); err != nil {
			return nil, err
		}
		count := 0
		for !r.IsClosing(1) {
			w := writeAccess{oid: oid}
			if w.property, err = contextProperty(r, 0); err != nil {
				return nil, err
			}
			if w.index, err = optionalIndex(r, 1); err != nil {
				return nil, err
			}
			if err := r.Opening(2); err != nil {
				return nil, fmt.Errorf("value: %w", err)
			}
			if w.value, err = r.RawUntilClosing(2); err != nil {
				return nil, fmt.Errorf("value: %w", err)
			}
			if w.priority, err = decodePriority(r, 3); err != nil {
				return nil, err
			}
			writes = append(writes, w)
			count++
		}
		if err := r.Closing(1); err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, fmt.Errorf("%w: empty property list for %s", errMissingParameter, oid)
		}
	}
	if len(writes) == 0 {
		return nil, fmt.Errorf("%w: no write access specification", errMissingParameter)
	}

	s.metrics.WriteRequests.Inc()
	for _, w := range writes {
		if berr := s.writeProperty(dev, w.oid, w.property, w.index, w.value, w.priority); berr != nil {
			return nil, &writeMultipleError{err: berr, failed: w}
		}
	}
	return nil, nil
}

func (s *Stack) acknowledgeAlarmService(dev *device, data []byte) ([]byte, error) {
	req, err := DecodeAcknowledgeAlarmRequest(data)
	if err != nil {
		return nil, err
	}

	s.metrics.AlarmAcks.Inc()
	s.logger.Info("acknowledge alarm",
		slog.String("object", req.EventObject.String()),
		slog.String("event_state", req.EventStateAcknowledged.String()),
		slog.String("source", req.Source),
		slog.Uint64("process_identifier", uint64(req.ProcessIdentifier)),
	)

	o := dev.object(req.EventObject.Type, req.EventObject.Instance)
	if o == nil {
		return nil, errUnknownObject()
	}
	if o.events == nil {
		return nil, NewBACnetError(ErrorClassServices, ErrorCodeNoAlarmConfigured)
	}
	denied := NewBACnetError(ErrorClassServices, ErrorCodeServiceRequestDenied)
	if s.cb.acknowledgeAlarm == nil {
		return nil, denied
	}
	if err := s.cb.acknowledgeAlarm(dev.instance, req); err != nil {
		return nil, errorFor(err, denied)
	}
	return nil, nil
}

// getEventInformationService answers with an empty event summary list:
// no event algorithm runs, so every object stays normal.
func (s *Stack) getEventInformationService(dev *device, data []byte) ([]byte, error) {
	r := NewTagReader(data)
	if r.IsContext(0) {
		if _, err := r.ContextObjectIdentifier(0); err != nil {
			return nil, fmt.Errorf("last-received-object-identifier: %w", err)
		}
	}
	if !r.Done() {
		return nil, errTooManyArguments
	}

	ack := EncodeOpeningTag(0)
	ack = append(ack, EncodeClosingTag(0)...)
	return append(ack, EncodeContextBoolean(1, false)...), nil
}

func (s *Stack) subscribeService(dev *device, data []byte) ([]byte, error) {
	return nil, NewBACnetError(ErrorClassServices, ErrorCodeOptionalFunctionalityNotSupported)
}

func (s *Stack) handleUnconfirmed(dev *device, req *request) {
	switch UnconfirmedServiceChoice(req.apdu.Service) {
	case ServiceWhoIs:
		s.metrics.WhoIsReceived.Inc()

		low, high, ranged, err := DecodeWhoIs(req.apdu.Data)
		if err != nil {
			s.metrics.PacketsMalformed.Inc()
			return
		}
		if ranged && (dev.instance < low || dev.instance > high) {
			return
		}
		if !dev.services[ServiceSupportedIAm] {
			return
		}

		var sent bool
		if req.broadcast {
			sent = s.transmit(req.npdu, s.iAm(dev), nil, true)
		} else {
			sent = s.transmit(req.npdu, s.iAm(dev), req.source, false)
		}
		if sent {
			s.metrics.IAmSent.Inc()
		}
		s.logger.Debug("answered who-is",
			slog.String("source", FormatMAC(req.source)),
			slog.Bool("broadcast", req.broadcast),
		)
	}
}

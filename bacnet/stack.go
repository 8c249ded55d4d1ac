package bacnet

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Stack is a BACnet/IP device stack. It hosts one device whose objects
// are declared with the Add functions and whose property values are
// supplied by the registered callbacks.
//
// Callbacks run on the goroutine calling Loop or Run while the stack holds
// its read lock. They may call ValueUpdated but must not call the setup
// functions.
type Stack struct {
	mu  sync.RWMutex
	cb  callbacks
	dev *device

	// objMu also guards dev. ValueUpdated takes only objMu, so a callback
	// calling it never re-enters mu while a setup call waits for it.
	objMu sync.RWMutex

	opts    *stackOptions
	logger  *slog.Logger
	metrics *StackMetrics

	loopMu sync.Mutex
	buf    []byte
}

// NewStack creates a device stack
func NewStack(opts ...StackOption) *Stack {
	options := defaultStackOptions()
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	return &Stack{
		opts:    options,
		logger:  options.logger,
		metrics: NewStackMetrics(),
		// A B/IP frame adds at most 4 BVLC and 24 NPDU octets to the APDU.
		buf: make([]byte, MaxAPDULength+64),
	}
}

// Metrics returns the stack metrics
func (s *Stack) Metrics() *StackMetrics {
	return s.metrics
}

// Loop receives at most one pending frame and answers it. It returns
// ErrNoTransport when the send or receive callback is missing.
func (s *Stack) Loop(ctx context.Context) error {
	_, err := s.poll(ctx)
	return err
}

// Run calls Loop until ctx is done, waiting the poll interval whenever no
// frame is pending.
func (s *Stack) Run(ctx context.Context) error {
	s.logger.Info("stack running", slog.Duration("poll_interval", s.opts.pollInterval))

	timer := time.NewTimer(s.opts.pollInterval)
	defer timer.Stop()

	for {
		handled, err := s.poll(ctx)
		if err != nil {
			return err
		}
		if handled {
			continue
		}

		timer.Reset(s.opts.pollInterval)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (s *Stack) poll(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	receive, send := s.cb.receive, s.cb.send
	s.mu.RUnlock()
	if receive == nil || send == nil {
		return false, ErrNoTransport
	}

	s.loopMu.Lock()
	defer s.loopMu.Unlock()

	n, source := receive(s.buf)
	if n <= 0 {
		return false, nil
	}
	if n > len(s.buf) {
		n = len(s.buf)
	}
	s.handlePacket(s.buf[:n], source)
	return true, nil
}

// request carries what is needed to answer one received APDU.
type request struct {
	apdu      *APDU
	source    []byte
	npdu      []byte
	broadcast bool
}

func (s *Stack) handlePacket(data, source []byte) {
	start := time.Now()
	s.metrics.PacketsReceived.Inc()
	s.metrics.BytesReceived.Add(int64(len(data)))

	frame, err := DecodeFrame(data)
	if err != nil {
		s.metrics.PacketsMalformed.Inc()
		s.logger.Debug("dropping malformed frame",
			slog.String("source", FormatMAC(source)),
			slog.String("error", err.Error()),
		)
		return
	}
	if frame.APDU == nil {
		return
	}
	npdu := frame.NPDU
	// Not a router: frames for another network are not ours to answer.
	if npdu.Control&NPDUControlDestSpecifier != 0 && npdu.DestNet != 0xFFFF {
		return
	}

	req := &request{
		apdu:      frame.APDU,
		source:    append([]byte(nil), source...),
		npdu:      replyNPDU(npdu),
		broadcast: frame.BVLC.Function == BVLCOriginalBroadcastNPDU,
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.dev == nil {
		return
	}

	switch req.apdu.Type {
	case PDUTypeConfirmedRequest:
		s.handleConfirmed(s.dev, req)
	case PDUTypeUnconfirmedRequest:
		s.handleUnconfirmed(s.dev, req)
	default:
		// The device never originates confirmed requests, so acks,
		// errors and aborts addressed to it are stray.
		return
	}
	s.metrics.HandleLatency.Record(time.Since(start))
}

// replyNPDU routes an answer back through the router that forwarded the
// request, if any.
func replyNPDU(npdu *NPDU) []byte {
	if npdu.Control&NPDUControlSourceSpecifier != 0 && npdu.SrcNet != 0 {
		return EncodeNPDUWithDest(npdu.SrcNet, npdu.SrcAddr, 255, false, NPDUControlPriorityNormal)
	}
	return EncodeNPDU(false, NPDUControlPriorityNormal)
}

// transmit frames apdu and hands it to the send callback. The caller holds
// s.mu.
func (s *Stack) transmit(npdu, apdu, destination []byte, broadcast bool) bool {
	function := BVLCOriginalUnicastNPDU
	if broadcast {
		function = BVLCOriginalBroadcastNPDU
	}
	frame := EncodeFrame(function, npdu, apdu)

	if n := s.cb.send(frame, destination, broadcast); n <= 0 {
		s.metrics.CallbackFailures.Inc()
		s.logger.Warn("send failed",
			slog.String("destination", FormatMAC(destination)),
			slog.Bool("broadcast", broadcast),
		)
		return false
	}
	s.metrics.PacketsSent.Inc()
	s.metrics.BytesSent.Add(int64(len(frame)))
	return true
}

func (s *Stack) reply(req *request, apdu []byte) {
	s.transmit(req.npdu, apdu, req.source, false)
}

func (s *Stack) iAm(dev *device) []byte {
	return EncodeUnconfirmedRequest(ServiceIAm, EncodeIAm(
		NewObjectIdentifier(ObjectTypeDevice, dev.instance),
		uint32(s.opts.maxAPDULength),
		SegmentationNone,
		s.opts.vendorID,
	))
}

// SendIAm broadcasts an I-Am for the device. The send callback receives a
// nil destination and is expected to use the local broadcast address.
func (s *Stack) SendIAm(deviceInstance uint32) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dev, err := s.lookup(deviceInstance)
	if err != nil {
		return err
	}
	if s.cb.send == nil {
		return ErrNoTransport
	}
	if !s.transmit(EncodeNPDU(false, NPDUControlPriorityNormal), s.iAm(dev), nil, true) {
		return fmt.Errorf("i-am: %w", ErrConnectionClosed)
	}
	s.metrics.IAmSent.Inc()
	return nil
}

// ValueUpdated tells the stack that the application changed the value of
// a property. Without COV support the change is only recorded.
func (s *Stack) ValueUpdated(deviceInstance uint32, objectType ObjectType, instance uint32, property PropertyIdentifier) error {
	s.objMu.RLock()
	defer s.objMu.RUnlock()

	dev, err := s.lookup(deviceInstance)
	if err != nil {
		return err
	}
	o := dev.object(objectType, instance)
	if o == nil {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, NewObjectIdentifier(objectType, instance))
	}

	s.metrics.ValueUpdates.Inc()
	s.logger.Debug("value updated",
		slog.String("object", o.id.String()),
		slog.String("property", property.String()),
		slog.Bool("subscribable", dev.isSubscribable(o, property)),
	)
	return nil
}

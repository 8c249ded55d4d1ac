package bacnet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/edgeo/drivers/elevator/bacnet/internal/transport"
)

// ConnectionState represents the client connection state
type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// Client is a BACnet/IP client
type Client struct {
	opts      *clientOptions
	transport *transport.UDPTransport

	state    atomic.Int32
	invokeID atomic.Uint32

	// Pending requests
	pendingMu sync.RWMutex
	pending   map[uint8]chan *APDU

	// Known devices, discovered or registered
	devicesMu sync.RWMutex
	devices   map[uint32]*DeviceInfo

	metrics *Metrics
	logger  *slog.Logger

	// Receiver goroutine
	receiverCtx    context.Context
	receiverCancel context.CancelFunc
	receiverDone   chan struct{}
}

// NewClient creates a new BACnet client
func NewClient(opts ...Option) (*Client, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	c := &Client{
		opts:    options,
		pending: make(map[uint8]chan *APDU),
		devices: make(map[uint32]*DeviceInfo),
		metrics: NewMetrics(),
		logger:  options.logger,
	}

	c.transport = transport.NewUDPTransport(options.localAddress)
	c.transport.SetReusePort(options.reusePort)
	c.transport.SetReadTimeout(options.timeout)
	c.transport.SetWriteTimeout(options.timeout)

	return c, nil
}

// ListenUDP binds a BACnet/IP socket on addr. With reusePort the socket is
// opened with SO_REUSEPORT so a client and a device stack can share the
// standard port on one host.
func ListenUDP(ctx context.Context, addr string, reusePort bool) (*net.UDPConn, error) {
	return transport.Listen(ctx, addr, reusePort)
}

// Connect opens the BACnet client connection
func (c *Client) Connect(ctx context.Context) error {
	if !c.state.CompareAndSwap(int32(StateDisconnected), int32(StateConnecting)) {
		return ErrAlreadyConnected
	}

	c.metrics.ConnectAttempts.Inc()

	if err := c.transport.Open(ctx); err != nil {
		c.state.Store(int32(StateDisconnected))
		c.metrics.ConnectFailures.Inc()
		return fmt.Errorf("open transport: %w", err)
	}

	// Start receiver goroutine
	c.receiverCtx, c.receiverCancel = context.WithCancel(context.Background())
	c.receiverDone = make(chan struct{})
	go c.receiver()

	c.state.Store(int32(StateConnected))
	c.metrics.ConnectSuccesses.Inc()

	c.logger.Info("connected",
		slog.String("local_addr", c.transport.LocalAddr().String()),
		slog.Bool("reuse_port", c.opts.reusePort),
	)
	return nil
}

// Close closes the BACnet client connection
func (c *Client) Close() error {
	if c.state.Load() == int32(StateDisconnected) {
		return nil
	}

	c.state.Store(int32(StateDisconnected))
	c.metrics.Disconnects.Inc()

	// Stop receiver
	if c.receiverCancel != nil {
		c.receiverCancel()
		<-c.receiverDone
	}

	// Close pending requests
	c.pendingMu.Lock()
	for _, ch := range c.pending {
		close(ch)
	}
	c.pending = make(map[uint8]chan *APDU)
	c.pendingMu.Unlock()

	if err := c.transport.Close(); err != nil {
		return fmt.Errorf("close transport: %w", err)
	}

	c.logger.Info("disconnected")
	return nil
}

// State returns the current connection state
func (c *Client) State() ConnectionState {
	return ConnectionState(c.state.Load())
}

// Metrics returns the client metrics
func (c *Client) Metrics() *Metrics {
	return c.metrics
}

// LocalAddr returns the address the client is bound to
func (c *Client) LocalAddr() net.Addr {
	return c.transport.LocalAddr()
}

// nextInvokeID returns the next invoke ID
func (c *Client) nextInvokeID() uint8 {
	return uint8(c.invokeID.Add(1) & 0xFF)
}

// receiver handles incoming packets
func (c *Client) receiver() {
	defer close(c.receiverDone)

	for {
		select {
		case <-c.receiverCtx.Done():
			return
		default:
		}

		data, addr, err := c.transport.ReceiveWithTimeout(100 * time.Millisecond)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if c.transport.IsClosed() {
				return
			}
			c.logger.Debug("receive error", slog.String("error", err.Error()))
			continue
		}

		c.metrics.BytesReceived.Add(int64(len(data)))
		c.metrics.RecordActivity()

		go c.handlePacket(data, addr)
	}
}

// handlePacket processes an incoming packet
func (c *Client) handlePacket(data []byte, addr *net.UDPAddr) {
	frame, err := DecodeFrame(data)
	if err != nil {
		c.logger.Debug("invalid frame",
			slog.String("from", addr.String()),
			slog.String("error", err.Error()),
		)
		return
	}
	apdu := frame.APDU
	if apdu == nil {
		return
	}

	switch apdu.Type {
	case PDUTypeUnconfirmedRequest:
		if UnconfirmedServiceChoice(apdu.Service) == ServiceIAm {
			c.handleIAm(apdu.Data, addr)
		}

	case PDUTypeSimpleAck, PDUTypeComplexAck:
		c.metrics.ResponsesReceived.Inc()
		c.handleResponse(apdu)

	case PDUTypeError:
		c.metrics.ErrorsReceived.Inc()
		c.handleResponse(apdu)

	case PDUTypeReject:
		c.metrics.RejectsReceived.Inc()
		c.handleResponse(apdu)

	case PDUTypeAbort:
		c.metrics.AbortsReceived.Inc()
		c.handleResponse(apdu)
	}
}

// handleIAm records the device announced by an I-Am
func (c *Client) handleIAm(data []byte, addr *net.UDPAddr) {
	c.metrics.IAmReceived.Inc()

	device, err := DecodeIAm(data)
	if err != nil {
		c.logger.Debug("invalid i-am", slog.String("error", err.Error()))
		return
	}
	device.Address = addr.String()

	c.devicesMu.Lock()
	_, exists := c.devices[device.ObjectID.Instance]
	c.devices[device.ObjectID.Instance] = device
	c.devicesMu.Unlock()

	if !exists {
		c.metrics.DevicesDiscovered.Inc()
	}

	c.logger.Debug("device discovered",
		slog.Uint64("device_id", uint64(device.ObjectID.Instance)),
		slog.String("address", device.Address),
		slog.Uint64("vendor_id", uint64(device.VendorID)),
	)
}

// handleResponse handles a response to a pending request
func (c *Client) handleResponse(apdu *APDU) {
	c.pendingMu.RLock()
	ch, ok := c.pending[apdu.InvokeID]
	c.pendingMu.RUnlock()

	if ok {
		select {
		case ch <- apdu:
		default:
		}
	}
}

// sendRequest sends a confirmed request and waits for the response,
// retrying on timeout
func (c *Client) sendRequest(ctx context.Context, addr *net.UDPAddr, service ConfirmedServiceChoice, data []byte) (*APDU, error) {
	var err error
	for attempt := 0; attempt <= c.opts.retries; attempt++ {
		if attempt > 0 {
			c.logger.Debug("retrying request",
				slog.String("service", service.String()),
				slog.Int("attempt", attempt),
			)
			select {
			case <-ctx.Done():
				return nil, ErrTimeout
			case <-time.After(c.opts.retryDelay):
			}
		}

		var resp *APDU
		resp, err = c.sendOnce(ctx, addr, service, data)
		if !errors.Is(err, ErrTimeout) || ctx.Err() != nil {
			return resp, err
		}
	}
	return nil, err
}

func (c *Client) sendOnce(ctx context.Context, addr *net.UDPAddr, service ConfirmedServiceChoice, data []byte) (*APDU, error) {
	if c.State() != StateConnected {
		return nil, ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.timeout)
	defer cancel()

	invokeID := c.nextInvokeID()

	// Create response channel
	respCh := make(chan *APDU, 1)
	c.pendingMu.Lock()
	c.pending[invokeID] = respCh
	c.pendingMu.Unlock()

	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, invokeID)
		c.pendingMu.Unlock()
	}()

	apdu := EncodeConfirmedRequest(invokeID, service, data, 0, MaxAPDUCode(int(c.opts.maxAPDULength)))
	packet := EncodeFrame(BVLCOriginalUnicastNPDU, EncodeNPDU(true, NPDUControlPriorityNormal), apdu)

	start := time.Now()
	c.metrics.RequestsSent.Inc()
	c.metrics.ActiveRequests.Inc()
	defer c.metrics.ActiveRequests.Dec()

	if err := c.transport.Send(ctx, addr, packet); err != nil {
		c.metrics.RequestsFailed.Inc()
		return nil, fmt.Errorf("send request: %w", err)
	}

	c.metrics.BytesSent.Add(int64(len(packet)))

	// Wait for response
	select {
	case <-ctx.Done():
		c.metrics.RequestsTimedOut.Inc()
		return nil, ErrTimeout

	case resp, ok := <-respCh:
		c.metrics.RequestLatency.Record(time.Since(start))

		if !ok {
			return nil, ErrConnectionClosed
		}

		switch resp.Type {
		case PDUTypeSimpleAck, PDUTypeComplexAck:
			c.metrics.RequestsSucceeded.Inc()
			return resp, nil

		case PDUTypeError:
			c.metrics.RequestsFailed.Inc()
			return nil, decodeError(resp.Data)

		case PDUTypeReject:
			c.metrics.RequestsFailed.Inc()
			return nil, &RejectError{
				InvokeID: resp.InvokeID,
				Reason:   RejectReason(resp.Service),
			}

		case PDUTypeAbort:
			c.metrics.RequestsFailed.Inc()
			return nil, &AbortError{
				InvokeID: resp.InvokeID,
				Server:   true,
				Reason:   AbortReason(resp.Service),
			}

		default:
			return nil, fmt.Errorf("%w: unexpected PDU type %02x", ErrInvalidResponse, resp.Type)
		}
	}
}

// decodeError decodes the error class and code of an Error PDU. Services
// such as WritePropertyMultiple wrap them in opening tag 0.
func decodeError(data []byte) error {
	r := NewTagReader(data)
	wrapped := r.IsOpening(0)
	if wrapped {
		_ = r.Opening(0)
	}

	class, err1 := r.Application()
	code, err2 := r.Application()
	if err1 != nil || err2 != nil {
		return ErrInvalidResponse
	}
	errorClass, ok1 := class.(Enumerated)
	errorCode, ok2 := code.(Enumerated)
	if !ok1 || !ok2 {
		return ErrInvalidResponse
	}
	return NewBACnetError(ErrorClass(errorClass), ErrorCode(errorCode))
}

// sendUnconfirmedRequest sends an unconfirmed request, broadcast when addr
// is nil
func (c *Client) sendUnconfirmedRequest(ctx context.Context, addr *net.UDPAddr, service UnconfirmedServiceChoice, data []byte) error {
	if c.State() != StateConnected {
		return ErrNotConnected
	}

	function := BVLCOriginalUnicastNPDU
	if addr == nil {
		function = BVLCOriginalBroadcastNPDU
	}
	packet := EncodeFrame(function, EncodeNPDU(false, NPDUControlPriorityNormal), EncodeUnconfirmedRequest(service, data))

	c.metrics.RequestsSent.Inc()

	var err error
	if addr == nil {
		err = c.transport.Broadcast(ctx, c.opts.broadcastPort, packet)
	} else {
		err = c.transport.Send(ctx, addr, packet)
	}

	if err != nil {
		c.metrics.RequestsFailed.Inc()
		return fmt.Errorf("send unconfirmed request: %w", err)
	}

	c.metrics.BytesSent.Add(int64(len(packet)))
	c.metrics.RequestsSucceeded.Inc()

	return nil
}

// WhoIs sends a Who-Is request and collects the I-Am answers until the
// discovery timeout elapses
func (c *Client) WhoIs(ctx context.Context, opts ...DiscoverOption) ([]*DeviceInfo, error) {
	options := defaultDiscoverOptions()
	for _, opt := range opts {
		opt(options)
	}

	var target *net.UDPAddr
	if options.Target != "" {
		addr, err := net.ResolveUDPAddr("udp4", options.Target)
		if err != nil {
			return nil, fmt.Errorf("resolve target: %w", err)
		}
		target = addr
	}

	if err := c.sendUnconfirmedRequest(ctx, target, ServiceWhoIs, EncodeWhoIs(options.LowLimit, options.HighLimit)); err != nil {
		return nil, err
	}

	c.metrics.WhoIsSent.Inc()

	// Wait for responses
	timer := time.NewTimer(options.Timeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}

	c.devicesMu.RLock()
	devices := make([]*DeviceInfo, 0, len(c.devices))
	for _, dev := range c.devices {
		id := dev.ObjectID.Instance
		if options.LowLimit != nil && options.HighLimit != nil && (id < *options.LowLimit || id > *options.HighLimit) {
			continue
		}
		devices = append(devices, dev)
	}
	c.devicesMu.RUnlock()

	return devices, nil
}

// RegisterDevice records the address of a device so requests reach it
// without a Who-Is round trip. addr is host:port.
func (c *Client) RegisterDevice(deviceID uint32, addr string) error {
	if _, err := net.ResolveUDPAddr("udp4", addr); err != nil {
		return fmt.Errorf("resolve device address: %w", err)
	}

	c.devicesMu.Lock()
	defer c.devicesMu.Unlock()

	c.devices[deviceID] = &DeviceInfo{
		ObjectID:      NewObjectIdentifier(ObjectTypeDevice, deviceID),
		Address:       addr,
		MaxAPDULength: MaxAPDULength,
		Segmentation:  SegmentationNone,
	}
	return nil
}

// GetDevice returns information about a known device
func (c *Client) GetDevice(deviceID uint32) (*DeviceInfo, bool) {
	c.devicesMu.RLock()
	defer c.devicesMu.RUnlock()
	dev, ok := c.devices[deviceID]
	return dev, ok
}

// resolveDevice resolves a device ID to its address
func (c *Client) resolveDevice(ctx context.Context, deviceID uint32) (*net.UDPAddr, error) {
	dev, ok := c.GetDevice(deviceID)
	if !ok {
		// Try to discover the device
		_, err := c.WhoIs(ctx, WithDeviceRange(deviceID, deviceID), WithDiscoveryTimeout(2*time.Second))
		if err != nil {
			return nil, err
		}

		dev, ok = c.GetDevice(deviceID)
		if !ok {
			return nil, fmt.Errorf("%w: %d", ErrDeviceNotFound, deviceID)
		}
	}

	addr, err := net.ResolveUDPAddr("udp4", dev.Address)
	if err != nil {
		return nil, fmt.Errorf("device %d address %q: %w", deviceID, dev.Address, err)
	}
	return addr, nil
}

// ReadProperty reads a property from a BACnet object. A property holding
// several values, such as a whole array or a list, is returned as
// []interface{}.
func (c *Client) ReadProperty(ctx context.Context, deviceID uint32, objectID ObjectIdentifier, propertyID PropertyIdentifier, opts ...ReadOption) (interface{}, error) {
	options := &ReadOptions{}
	for _, opt := range opts {
		opt(options)
	}

	addr, err := c.resolveDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	data := EncodeContextObjectIdentifier(0, objectID)
	data = append(data, EncodeContextEnumerated(1, uint32(propertyID))...)
	if options.ArrayIndex != nil {
		data = append(data, EncodeContextUnsigned(2, *options.ArrayIndex)...)
	}

	resp, err := c.sendRequest(ctx, addr, ServiceReadProperty, data)
	if err != nil {
		return nil, err
	}

	return decodeReadPropertyAck(resp.Data)
}

// decodeReadPropertyAck decodes the service data of a ReadProperty ack
func decodeReadPropertyAck(data []byte) (interface{}, error) {
	r := NewTagReader(data)
	if _, err := r.ContextObjectIdentifier(0); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if _, err := r.ContextUnsigned(1); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if _, err := optionalIndex(r, 2); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return readValue(r, 3)
}

// readValue decodes the values enclosed in tag n. A single value is
// returned as is.
func readValue(r *TagReader, n uint8) (interface{}, error) {
	if err := r.Opening(n); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	values, err := r.ValuesUntilClosing(n)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if err := r.Closing(n); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if len(values) == 1 {
		return values[0], nil
	}
	if values == nil {
		values = []interface{}{}
	}
	return values, nil
}

// WriteProperty writes a property to a BACnet object
func (c *Client) WriteProperty(ctx context.Context, deviceID uint32, objectID ObjectIdentifier, propertyID PropertyIdentifier, value interface{}, opts ...WriteOption) error {
	options := &WriteOptions{}
	for _, opt := range opts {
		opt(options)
	}

	addr, err := c.resolveDevice(ctx, deviceID)
	if err != nil {
		return err
	}

	encodedValue, err := encodePropertyValue(value)
	if err != nil {
		return fmt.Errorf("encode value: %w", err)
	}

	data := EncodeContextObjectIdentifier(0, objectID)
	data = append(data, EncodeContextEnumerated(1, uint32(propertyID))...)
	if options.ArrayIndex != nil {
		data = append(data, EncodeContextUnsigned(2, *options.ArrayIndex)...)
	}
	data = append(data, EncodeOpeningTag(3)...)
	data = append(data, encodedValue...)
	data = append(data, EncodeClosingTag(3)...)
	if options.Priority != nil {
		data = append(data, EncodeContextUnsigned(4, uint32(*options.Priority))...)
	}

	_, err = c.sendRequest(ctx, addr, ServiceWriteProperty, data)
	return err
}

// encodePropertyValue encodes a property value for writing. Non-negative
// ints are sent as unsigned, the type most writable properties take.
func encodePropertyValue(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case int:
		if v >= 0 {
			return EncodeUnsignedTag(uint32(v)), nil
		}
	case int32:
		if v >= 0 {
			return EncodeUnsignedTag(uint32(v)), nil
		}
	}
	return EncodeApplicationValue(value)
}

// WriteLandingCallControl writes the landing-call-control of an elevator
// group, registering a landing call.
func (c *Client) WriteLandingCallControl(ctx context.Context, deviceID, group uint32, status LandingCallStatus) error {
	return c.WriteProperty(ctx, deviceID,
		NewObjectIdentifier(ObjectTypeElevatorGroup, group),
		PropertyLandingCallControl,
		status,
	)
}

// ReadPropertyMultiple reads multiple properties from one or more objects.
// Properties the device could not read carry their error in Error.
func (c *Client) ReadPropertyMultiple(ctx context.Context, deviceID uint32, requests []ReadPropertyRequest) ([]PropertyValue, error) {
	if len(requests) == 0 {
		return nil, nil
	}

	addr, err := c.resolveDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	// Group requests by object, keeping the order objects first appear in
	var order []ObjectIdentifier
	objectRequests := make(map[ObjectIdentifier][]ReadPropertyRequest)
	for _, req := range requests {
		if _, ok := objectRequests[req.ObjectID]; !ok {
			order = append(order, req.ObjectID)
		}
		objectRequests[req.ObjectID] = append(objectRequests[req.ObjectID], req)
	}

	var data []byte
	for _, oid := range order {
		data = append(data, EncodeContextObjectIdentifier(0, oid)...)
		data = append(data, EncodeOpeningTag(1)...)
		for _, req := range objectRequests[oid] {
			data = append(data, EncodeContextEnumerated(0, uint32(req.PropertyID))...)
			if req.ArrayIndex != nil {
				data = append(data, EncodeContextUnsigned(1, *req.ArrayIndex)...)
			}
		}
		data = append(data, EncodeClosingTag(1)...)
	}

	resp, err := c.sendRequest(ctx, addr, ServiceReadPropertyMultiple, data)
	if err != nil {
		return nil, err
	}

	return decodeReadPropertyMultipleAck(resp.Data)
}

// decodeReadPropertyMultipleAck decodes the service data of a
// ReadPropertyMultiple ack
func decodeReadPropertyMultipleAck(data []byte) ([]PropertyValue, error) {
	var results []PropertyValue
	r := NewTagReader(data)

	for !r.Done() {
		oid, err := r.ContextObjectIdentifier(0)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
		if err := r.Opening(1); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}

		for !r.IsClosing(1) {
			prop, err := r.ContextUnsigned(2)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
			}
			pv := PropertyValue{ObjectID: oid, PropertyID: PropertyIdentifier(prop)}
			if pv.ArrayIndex, err = optionalIndex(r, 3); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
			}

			switch {
			case r.IsOpening(4):
				if pv.Value, err = readValue(r, 4); err != nil {
					return nil, err
				}
			case r.IsOpening(5):
				_ = r.Opening(5)
				raw, err := r.RawUntilClosing(5)
				if err != nil {
					return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
				}
				pv.Error = decodeError(raw)
			default:
				return nil, fmt.Errorf("%w: read result without value or error", ErrInvalidResponse)
			}
			results = append(results, pv)
		}
		if err := r.Closing(1); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
	}

	return results, nil
}

// GetObjectList retrieves the list of objects from a device. It reads the
// whole array and falls back to element by element reads when the answer
// does not fit in one APDU.
func (c *Client) GetObjectList(ctx context.Context, deviceID uint32) ([]ObjectIdentifier, error) {
	deviceOID := NewObjectIdentifier(ObjectTypeDevice, deviceID)

	all, err := c.ReadProperty(ctx, deviceID, deviceOID, PropertyObjectList)
	if err == nil {
		return objectIdentifiers(all), nil
	}
	var abortErr *AbortError
	if !errors.As(err, &abortErr) {
		return nil, err
	}

	lengthVal, err := c.ReadProperty(ctx, deviceID, deviceOID, PropertyObjectList, WithArrayIndex(0))
	if err != nil {
		return nil, err
	}
	length, ok := lengthVal.(uint32)
	if !ok {
		return nil, fmt.Errorf("unexpected object-list length type: %T", lengthVal)
	}

	objects := make([]ObjectIdentifier, 0, length)
	for i := uint32(1); i <= length; i++ {
		val, err := c.ReadProperty(ctx, deviceID, deviceOID, PropertyObjectList, WithArrayIndex(i))
		if err != nil {
			continue
		}
		if oid, ok := val.(ObjectIdentifier); ok {
			objects = append(objects, oid)
		}
	}

	return objects, nil
}

func objectIdentifiers(v interface{}) []ObjectIdentifier {
	switch v := v.(type) {
	case ObjectIdentifier:
		return []ObjectIdentifier{v}
	case []interface{}:
		out := make([]ObjectIdentifier, 0, len(v))
		for _, e := range v {
			if oid, ok := e.(ObjectIdentifier); ok {
				out = append(out, oid)
			}
		}
		return out
	}
	return nil
}

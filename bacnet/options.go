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

package bacnet

import (
	"log/slog"
	"time"
)

// clientOptions holds configuration for the BACnet client
type clientOptions struct {
	localAddress  string
	reusePort     bool
	broadcastPort int

	timeout    time.Duration
	retries    int
	retryDelay time.Duration

	maxAPDULength uint16

	logger *slog.Logger
}

// defaultOptions returns the default client options
func defaultOptions() *clientOptions {
	return &clientOptions{
		broadcastPort: DefaultPort,
		timeout:       3 * time.Second,
		retries:       3,
		retryDelay:    500 * time.Millisecond,
		maxAPDULength: MaxAPDULength,
		logger:        slog.Default(),
	}
}

// Option is a functional option for configuring the client
type Option func(*clientOptions)

// WithLocalAddress sets the local address to bind to
func WithLocalAddress(addr string) Option {
	return func(o *clientOptions) {
		o.localAddress = addr
	}
}

// WithReusePort binds the client socket with SO_REUSEPORT so it can share
// the BACnet port with a device stack running on the same host.
func WithReusePort(enable bool) Option {
	return func(o *clientOptions) {
		o.reusePort = enable
	}
}

// WithBroadcastPort sets the UDP port Who-Is broadcasts are sent to
func WithBroadcastPort(port int) Option {
	return func(o *clientOptions) {
		o.broadcastPort = port
	}
}

// WithTimeout sets the request timeout
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		o.timeout = d
	}
}

// WithRetries sets the number of retries for timed out requests
func WithRetries(n int) Option {
	return func(o *clientOptions) {
		o.retries = n
	}
}

// WithRetryDelay sets the delay between retries
func WithRetryDelay(d time.Duration) Option {
	return func(o *clientOptions) {
		o.retryDelay = d
	}
}

// WithMaxAPDULength sets the maximum APDU length the client accepts
func WithMaxAPDULength(length uint16) Option {
	return func(o *clientOptions) {
		o.maxAPDULength = length
	}
}

// WithLogger sets the logger for the client
func WithLogger(logger *slog.Logger) Option {
	return func(o *clientOptions) {
		o.logger = logger
	}
}

// DiscoverOptions holds configuration for device discovery
type DiscoverOptions struct {
	LowLimit  *uint32
	HighLimit *uint32
	Timeout   time.Duration
	// Target sends the Who-Is to one address instead of broadcasting.
	Target string
}

// DiscoverOption is a functional option for discovery
type DiscoverOption func(*DiscoverOptions)

func defaultDiscoverOptions() *DiscoverOptions {
	return &DiscoverOptions{
		Timeout: 3 * time.Second,
	}
}

// WithDeviceRange sets the device ID range for discovery
func WithDeviceRange(low, high uint32) DiscoverOption {
	return func(o *DiscoverOptions) {
		o.LowLimit = &low
		o.HighLimit = &high
	}
}

// WithDiscoveryTimeout sets how long to collect I-Am responses
func WithDiscoveryTimeout(d time.Duration) DiscoverOption {
	return func(o *DiscoverOptions) {
		o.Timeout = d
	}
}

// WithDiscoveryTarget directs the Who-Is to a single host:port
func WithDiscoveryTarget(addr string) DiscoverOption {
	return func(o *DiscoverOptions) {
		o.Target = addr
	}
}

// ReadOptions holds configuration for read operations
type ReadOptions struct {
	ArrayIndex *uint32
}

// ReadOption is a functional option for read operations
type ReadOption func(*ReadOptions)

// WithArrayIndex sets the array index for reading array properties
func WithArrayIndex(index uint32) ReadOption {
	return func(o *ReadOptions) {
		o.ArrayIndex = &index
	}
}

// WriteOptions holds configuration for write operations
type WriteOptions struct {
	ArrayIndex *uint32
	Priority   *uint8
}

// WriteOption is a functional option for write operations
type WriteOption func(*WriteOptions)

// WithWriteArrayIndex sets the array index for writing array properties
func WithWriteArrayIndex(index uint32) WriteOption {
	return func(o *WriteOptions) {
		o.ArrayIndex = &index
	}
}

// WithPriority sets the priority for writing (1-16, where 1 is highest)
func WithPriority(priority uint8) WriteOption {
	return func(o *WriteOptions) {
		if priority >= 1 && priority <= 16 {
			o.Priority = &priority
		}
	}
}

// stackOptions holds configuration for the device stack
type stackOptions struct {
	vendorName          string
	vendorID            uint16
	modelName           string
	firmwareRevision    string
	applicationSoftware string
	protocolRevision    uint32
	maxAPDULength       uint16
	apduTimeout         time.Duration
	apduRetries         uint32
	pollInterval        time.Duration
	logger              *slog.Logger
}

func defaultStackOptions() *stackOptions {
	return &stackOptions{
		vendorName:          "Edgeo SCADA",
		vendorID:            0,
		modelName:           "Elevator Group Controller",
		firmwareRevision:    "1.0.0",
		applicationSoftware: "1.0.0",
		protocolRevision:    22,
		maxAPDULength:       MaxAPDULength,
		apduTimeout:         3 * time.Second,
		apduRetries:         3,
		pollInterval:        5 * time.Millisecond,
		logger:              slog.Default(),
	}
}

// StackOption is a functional option for configuring the device stack
type StackOption func(*stackOptions)

// WithVendor sets the vendor-name and vendor-identifier of the device
func WithVendor(name string, id uint16) StackOption {
	return func(o *stackOptions) {
		o.vendorName = name
		o.vendorID = id
	}
}

// WithModelName sets the model-name of the device
func WithModelName(name string) StackOption {
	return func(o *stackOptions) {
		o.modelName = name
	}
}

// WithRevisions sets the firmware and application software revisions
func WithRevisions(firmware, application string) StackOption {
	return func(o *stackOptions) {
		o.firmwareRevision = firmware
		o.applicationSoftware = application
	}
}

// WithStackMaxAPDU sets the max-apdu-length-accepted of the device
func WithStackMaxAPDU(length uint16) StackOption {
	return func(o *stackOptions) {
		o.maxAPDULength = length
	}
}

// WithAPDUTimeout sets the apdu-timeout and number-of-apdu-retries
// advertised by the device
func WithAPDUTimeout(timeout time.Duration, retries uint32) StackOption {
	return func(o *stackOptions) {
		o.apduTimeout = timeout
		o.apduRetries = retries
	}
}

// WithPollInterval sets how long Run waits when no frame is pending
func WithPollInterval(d time.Duration) StackOption {
	return func(o *stackOptions) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// WithStackLogger sets the logger for the stack
func WithStackLogger(logger *slog.Logger) StackOption {
	return func(o *stackOptions) {
		o.logger = logger
	}
}

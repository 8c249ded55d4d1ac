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

package server

import (
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"
)

// ConnectionStringLength is the length of a B/IP connection string: four
// IPv4 octets followed by the port, least significant octet first.
const ConnectionStringLength = 6

// receiveWait bounds a ReceiveMessage call when nothing is pending.
const receiveWait = time.Millisecond

// EncodeConnectionString returns the connection string of addr, nil when
// addr is not IPv4.
func EncodeConnectionString(addr *net.UDPAddr) []byte {
	if addr == nil {
		return nil
	}
	ip := addr.IP.To4()
	if ip == nil {
		return nil
	}
	return []byte{ip[0], ip[1], ip[2], ip[3], byte(addr.Port), byte(addr.Port >> 8)}
}

// DecodeConnectionString returns the UDP address held by a connection
// string.
func DecodeConnectionString(cs []byte) (*net.UDPAddr, bool) {
	if len(cs) < ConnectionStringLength {
		return nil, false
	}
	return &net.UDPAddr{
		IP:   net.IPv4(cs[0], cs[1], cs[2], cs[3]),
		Port: int(cs[4]) | int(cs[5])<<8,
	}, true
}

// UDP sends and receives the frames of the stack on a UDP socket.
type UDP struct {
	conn          *net.UDPConn
	broadcastPort int
	logger        *slog.Logger

	mu     sync.Mutex
	closed bool
}

// NewUDP wraps conn. Broadcasts without a destination go to the limited
// broadcast address on broadcastPort.
func NewUDP(conn *net.UDPConn, broadcastPort int, logger *slog.Logger) *UDP {
	if logger == nil {
		logger = slog.Default()
	}
	return &UDP{
		conn:          conn,
		broadcastPort: broadcastPort,
		logger:        logger,
	}
}

// LocalAddr returns the address the socket is bound to.
func (u *UDP) LocalAddr() *net.UDPAddr {
	addr, _ := u.conn.LocalAddr().(*net.UDPAddr)
	return addr
}

// SendMessage transmits message to the connection string destination, or
// broadcasts it. It returns the number of bytes sent, 0 on failure.
func (u *UDP) SendMessage(message, destination []byte, broadcast bool) int {
	if len(message) == 0 {
		return 0
	}

	var addr *net.UDPAddr
	switch {
	case broadcast:
		port := u.broadcastPort
		if to, ok := DecodeConnectionString(destination); ok {
			port = to.Port
		}
		addr = &net.UDPAddr{IP: net.IPv4bcast, Port: port}
	default:
		to, ok := DecodeConnectionString(destination)
		if !ok {
			u.logger.Debug("send: invalid connection string", slog.Int("length", len(destination)))
			return 0
		}
		addr = to
	}

	n, err := u.conn.WriteToUDP(message, addr)
	if err != nil {
		u.logger.Warn("send failed", slog.String("to", addr.String()), slog.String("error", err.Error()))
		return 0
	}
	u.logger.Debug("frame sent",
		slog.String("to", addr.String()),
		slog.Int("bytes", n),
		slog.Bool("broadcast", broadcast),
	)
	return n
}

// ReceiveMessage reads one pending frame into buf. It waits at most
// receiveWait and returns 0 when nothing arrived.
func (u *UDP) ReceiveMessage(buf []byte) (int, []byte) {
	u.mu.Lock()
	closed := u.closed
	u.mu.Unlock()
	if closed {
		return 0, nil
	}

	if err := u.conn.SetReadDeadline(time.Now().Add(receiveWait)); err != nil {
		return 0, nil
	}
	n, addr, err := u.conn.ReadFromUDP(buf)
	if err != nil {
		var netErr net.Error
		if !(errors.As(err, &netErr) && netErr.Timeout()) && !errors.Is(err, net.ErrClosed) {
			u.logger.Debug("receive failed", slog.String("error", err.Error()))
		}
		return 0, nil
	}

	source := EncodeConnectionString(addr)
	if source == nil {
		return 0, nil
	}
	u.logger.Debug("frame received", slog.String("from", addr.String()), slog.Int("bytes", n))
	return n, source
}

// Close closes the socket.
func (u *UDP) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return nil
	}
	u.closed = true
	return u.conn.Close()
}

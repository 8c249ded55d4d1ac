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
	"encoding/binary"
	"fmt"
	"math"
)

// BVLC Header (BACnet Virtual Link Control)
type BVLCHeader struct {
	Type     BVLCType
	Function BVLCFunction
	Length   uint16
}

// EncodeBVLC encodes a BVLC header
func EncodeBVLC(function BVLCFunction, npduLength int) []byte {
	totalLength := 4 + npduLength // BVLC header is 4 bytes
	buf := make([]byte, 4)
	buf[0] = byte(BVLCTypeBACnetIP)
	buf[1] = byte(function)
	binary.BigEndian.PutUint16(buf[2:], uint16(totalLength))
	return buf
}

// DecodeBVLC decodes a BVLC header
func DecodeBVLC(data []byte) (*BVLCHeader, error) {
	if len(data) < 4 {
		return nil, ErrInvalidBVLC
	}
	return &BVLCHeader{
		Type:     BVLCType(data[0]),
		Function: BVLCFunction(data[1]),
		Length:   binary.BigEndian.Uint16(data[2:4]),
	}, nil
}

// EncodeFrame assembles a complete BACnet/IP frame from its NPDU and APDU.
func EncodeFrame(function BVLCFunction, npdu, apdu []byte) []byte {
	frame := EncodeBVLC(function, len(npdu)+len(apdu))
	frame = append(frame, npdu...)
	return append(frame, apdu...)
}

// Frame is a decoded BACnet/IP frame
type Frame struct {
	BVLC *BVLCHeader
	NPDU *NPDU
	APDU *APDU
}

// DecodeFrame decodes the BVLC, NPDU and APDU layers of a datagram.
// Network layer messages carry no APDU and are reported with a nil APDU.
func DecodeFrame(data []byte) (*Frame, error) {
	bvlc, err := DecodeBVLC(data)
	if err != nil {
		return nil, err
	}
	if bvlc.Type != BVLCTypeBACnetIP {
		return nil, fmt.Errorf("%w: type %02x", ErrInvalidBVLC, bvlc.Type)
	}
	if int(bvlc.Length) != len(data) {
		return nil, fmt.Errorf("%w: length %d, datagram %d", ErrInvalidBVLC, bvlc.Length, len(data))
	}

	payload := data[4:]
	switch bvlc.Function {
	case BVLCOriginalUnicastNPDU, BVLCOriginalBroadcastNPDU:
	case BVLCForwardedNPDU:
		// Forwarded NPDUs carry the originating B/IP address first.
		if len(payload) < 6 {
			return nil, ErrInvalidBVLC
		}
		payload = payload[6:]
	default:
		return &Frame{BVLC: bvlc}, nil
	}

	npdu, _, err := DecodeNPDU(payload)
	if err != nil {
		return nil, err
	}
	frame := &Frame{BVLC: bvlc, NPDU: npdu}
	if npdu.Control&NPDUControlNetworkLayerMessage != 0 {
		return frame, nil
	}

	frame.APDU, err = DecodeAPDU(npdu.Data)
	if err != nil {
		return nil, err
	}
	return frame, nil
}

// NPDU (Network Protocol Data Unit)
type NPDU struct {
	Version      uint8
	Control      NPDUControl
	DestNet      uint16
	DestAddr     []byte
	DestHopCount uint8
	SrcNet       uint16
	SrcAddr      []byte
	MessageType  uint8
	VendorID     uint16
	Data         []byte
}

// EncodeNPDU encodes an NPDU for unicast without routing
func EncodeNPDU(expectingReply bool, priority NPDUControl) []byte {
	control := priority
	if expectingReply {
		control |= NPDUControlExpectingReply
	}
	return []byte{
		0x01, // Version
		byte(control),
	}
}

// EncodeNPDUWithDest encodes an NPDU with destination address
func EncodeNPDUWithDest(destNet uint16, destAddr []byte, hopCount uint8, expectingReply bool, priority NPDUControl) []byte {
	control := priority | NPDUControlDestSpecifier
	if expectingReply {
		control |= NPDUControlExpectingReply
	}

	buf := make([]byte, 0, 8+len(destAddr))
	buf = append(buf, 0x01) // Version
	buf = append(buf, byte(control))
	buf = append(buf, byte(destNet>>8), byte(destNet))
	buf = append(buf, byte(len(destAddr)))
	buf = append(buf, destAddr...)
	buf = append(buf, hopCount)

	return buf
}

// DecodeNPDU decodes an NPDU
func DecodeNPDU(data []byte) (*NPDU, int, error) {
	if len(data) < 2 {
		return nil, 0, ErrInvalidNPDU
	}

	npdu := &NPDU{
		Version: data[0],
		Control: NPDUControl(data[1]),
	}

	if npdu.Version != 0x01 {
		return nil, 0, fmt.Errorf("%w: unsupported version %d", ErrInvalidNPDU, npdu.Version)
	}

	offset := 2

	// Destination specifier
	if npdu.Control&NPDUControlDestSpecifier != 0 {
		if len(data) < offset+3 {
			return nil, 0, ErrInvalidNPDU
		}
		npdu.DestNet = binary.BigEndian.Uint16(data[offset:])
		offset += 2

		addrLen := int(data[offset])
		offset++

		if len(data) < offset+addrLen+1 {
			return nil, 0, ErrInvalidNPDU
		}
		npdu.DestAddr = make([]byte, addrLen)
		copy(npdu.DestAddr, data[offset:offset+addrLen])
		offset += addrLen

		npdu.DestHopCount = data[offset]
		offset++
	}

	// Source specifier
	if npdu.Control&NPDUControlSourceSpecifier != 0 {
		if len(data) < offset+3 {
			return nil, 0, ErrInvalidNPDU
		}
		npdu.SrcNet = binary.BigEndian.Uint16(data[offset:])
		offset += 2

		addrLen := int(data[offset])
		offset++

		if len(data) < offset+addrLen {
			return nil, 0, ErrInvalidNPDU
		}
		npdu.SrcAddr = make([]byte, addrLen)
		copy(npdu.SrcAddr, data[offset:offset+addrLen])
		offset += addrLen
	}

	// Network layer message
	if npdu.Control&NPDUControlNetworkLayerMessage != 0 {
		if len(data) < offset+1 {
			return nil, 0, ErrInvalidNPDU
		}
		npdu.MessageType = data[offset]
		offset++

		// Vendor-specific message types have vendor ID
		if npdu.MessageType >= 0x80 {
			if len(data) < offset+2 {
				return nil, 0, ErrInvalidNPDU
			}
			npdu.VendorID = binary.BigEndian.Uint16(data[offset:])
			offset += 2
		}
	}

	npdu.Data = data[offset:]
	return npdu, offset, nil
}

// APDU (Application Protocol Data Unit)
type APDU struct {
	Type                PDUType
	Segmented           bool
	MoreFollows         bool
	SegmentedResponseOK bool
	MaxSegments         uint8
	MaxAPDU             uint8
	InvokeID            uint8
	SequenceNum         uint8
	WindowSize          uint8
	Service             uint8
	Data                []byte
}

// MaxAPDUCode returns the encoded max-APDU-length-accepted nibble for n.
func MaxAPDUCode(n int) uint8 {
	switch {
	case n >= 1476:
		return 5
	case n >= 1024:
		return 4
	case n >= 480:
		return 3
	case n >= 206:
		return 2
	case n >= 128:
		return 1
	}
	return 0
}

// MaxAPDUFromCode decodes a max-APDU-length-accepted nibble.
func MaxAPDUFromCode(code uint8) int {
	switch code {
	case 0:
		return 50
	case 1:
		return 128
	case 2:
		return 206
	case 3:
		return 480
	case 4:
		return 1024
	}
	return MaxAPDULength
}

// EncodeConfirmedRequest encodes a confirmed service request APDU
func EncodeConfirmedRequest(invokeID uint8, service ConfirmedServiceChoice, data []byte, maxSegments, maxAPDU uint8) []byte {
	buf := make([]byte, 0, 4+len(data))
	buf = append(buf, byte(PDUTypeConfirmedRequest))
	buf = append(buf, (maxSegments<<4)|maxAPDU)
	buf = append(buf, invokeID)
	buf = append(buf, byte(service))
	return append(buf, data...)
}

// EncodeUnconfirmedRequest encodes an unconfirmed service request APDU
func EncodeUnconfirmedRequest(service UnconfirmedServiceChoice, data []byte) []byte {
	buf := make([]byte, 0, 2+len(data))
	buf = append(buf, byte(PDUTypeUnconfirmedRequest))
	buf = append(buf, byte(service))
	buf = append(buf, data...)
	return buf
}

// EncodeSimpleAck encodes a SimpleACK APDU
func EncodeSimpleAck(invokeID uint8, service ConfirmedServiceChoice) []byte {
	return []byte{byte(PDUTypeSimpleAck), invokeID, byte(service)}
}

// EncodeComplexAck encodes an unsegmented ComplexACK APDU
func EncodeComplexAck(invokeID uint8, service ConfirmedServiceChoice, data []byte) []byte {
	buf := make([]byte, 0, 3+len(data))
	buf = append(buf, byte(PDUTypeComplexAck), invokeID, byte(service))
	return append(buf, data...)
}

// EncodeErrorPDU encodes an Error APDU with the standard error class and
// code pair.
func EncodeErrorPDU(invokeID uint8, service ConfirmedServiceChoice, class ErrorClass, code ErrorCode) []byte {
	buf := []byte{byte(PDUTypeError), invokeID, byte(service)}
	buf = append(buf, EncodeEnumeratedTag(uint32(class))...)
	return append(buf, EncodeEnumeratedTag(uint32(code))...)
}

// EncodeRejectPDU encodes a Reject APDU
func EncodeRejectPDU(invokeID uint8, reason RejectReason) []byte {
	return []byte{byte(PDUTypeReject), invokeID, byte(reason)}
}

// EncodeAbortPDU encodes an Abort APDU sent by a server
func EncodeAbortPDU(invokeID uint8, reason AbortReason) []byte {
	return []byte{byte(PDUTypeAbort) | 0x01, invokeID, byte(reason)}
}

// EncodeWhoIs encodes Who-Is service data. A nil range addresses all devices.
func EncodeWhoIs(low, high *uint32) []byte {
	if low == nil || high == nil {
		return nil
	}
	buf := EncodeContextUnsigned(0, *low)
	return append(buf, EncodeContextUnsigned(1, *high)...)
}

// DecodeWhoIs decodes Who-Is service data. ok is false when no range is given.
func DecodeWhoIs(data []byte) (low, high uint32, ok bool, err error) {
	if len(data) == 0 {
		return 0, 0, false, nil
	}
	r := NewTagReader(data)
	if low, err = r.ContextUnsigned(0); err != nil {
		return 0, 0, false, err
	}
	if high, err = r.ContextUnsigned(1); err != nil {
		return 0, 0, false, err
	}
	if low > NoInstance || high > NoInstance {
		return 0, 0, false, ErrValueOutOfRange
	}
	return low, high, true, nil
}

// EncodeIAm encodes I-Am service data
func EncodeIAm(device ObjectIdentifier, maxAPDU uint32, segmentation Segmentation, vendorID uint16) []byte {
	buf := EncodeObjectIdentifierTag(device)
	buf = append(buf, EncodeUnsignedTag(maxAPDU)...)
	buf = append(buf, EncodeEnumeratedTag(uint32(segmentation))...)
	return append(buf, EncodeUnsignedTag(uint32(vendorID))...)
}

// DecodeIAm decodes I-Am service data
func DecodeIAm(data []byte) (*DeviceInfo, error) {
	r := NewTagReader(data)
	values := make([]interface{}, 0, 4)
	for i := 0; i < 4; i++ {
		v, err := r.Application()
		if err != nil {
			return nil, fmt.Errorf("i-am: %w", err)
		}
		values = append(values, v)
	}
	oid, ok1 := values[0].(ObjectIdentifier)
	maxAPDU, ok2 := values[1].(uint32)
	seg, ok3 := values[2].(Enumerated)
	vendor, ok4 := values[3].(uint32)
	if !ok1 || !ok2 || !ok3 || !ok4 || oid.Type != ObjectTypeDevice {
		return nil, fmt.Errorf("%w: i-am", ErrInvalidDataType)
	}
	return &DeviceInfo{
		ObjectID:      oid,
		MaxAPDULength: uint16(maxAPDU),
		Segmentation:  Segmentation(seg),
		VendorID:      uint16(vendor),
	}, nil
}

// DecodeAPDU decodes an APDU
func DecodeAPDU(data []byte) (*APDU, error) {
	if len(data) < 1 {
		return nil, ErrInvalidAPDU
	}

	apdu := &APDU{
		Type: PDUType(data[0] & 0xF0),
	}

	switch apdu.Type {
	case PDUTypeConfirmedRequest:
		return decodeConfirmedRequest(data)
	case PDUTypeUnconfirmedRequest:
		return decodeUnconfirmedRequest(data)
	case PDUTypeSimpleAck:
		return decodeSimpleAck(data)
	case PDUTypeComplexAck:
		return decodeComplexAck(data)
	case PDUTypeError:
		return decodeErrorAPDU(data)
	case PDUTypeReject:
		return decodeRejectAPDU(data)
	case PDUTypeAbort:
		return decodeAbortAPDU(data)
	default:
		return nil, fmt.Errorf("%w: unknown PDU type %02x", ErrInvalidAPDU, apdu.Type)
	}
}

func decodeConfirmedRequest(data []byte) (*APDU, error) {
	if len(data) < 4 {
		return nil, ErrInvalidAPDU
	}

	apdu := &APDU{
		Type:                PDUTypeConfirmedRequest,
		Segmented:           data[0]&0x08 != 0,
		MoreFollows:         data[0]&0x04 != 0,
		SegmentedResponseOK: data[0]&0x02 != 0,
		MaxSegments:         (data[1] >> 4) & 0x07,
		MaxAPDU:             data[1] & 0x0F,
		InvokeID:            data[2],
		Service:             data[3],
		Data:                data[4:],
	}

	if apdu.Segmented {
		if len(data) < 6 {
			return nil, ErrInvalidAPDU
		}
		apdu.SequenceNum = data[3]
		apdu.WindowSize = data[4]
		apdu.Service = data[5]
		apdu.Data = data[6:]
	}

	return apdu, nil
}

func decodeUnconfirmedRequest(data []byte) (*APDU, error) {
	if len(data) < 2 {
		return nil, ErrInvalidAPDU
	}

	return &APDU{
		Type:    PDUTypeUnconfirmedRequest,
		Service: data[1],
		Data:    data[2:],
	}, nil
}

func decodeSimpleAck(data []byte) (*APDU, error) {
	if len(data) < 3 {
		return nil, ErrInvalidAPDU
	}

	return &APDU{
		Type:     PDUTypeSimpleAck,
		InvokeID: data[1],
		Service:  data[2],
	}, nil
}

func decodeComplexAck(data []byte) (*APDU, error) {
	if len(data) < 3 {
		return nil, ErrInvalidAPDU
	}

	apdu := &APDU{
		Type:        PDUTypeComplexAck,
		Segmented:   data[0]&0x08 != 0,
		MoreFollows: data[0]&0x04 != 0,
		InvokeID:    data[1],
		Service:     data[2],
		Data:        data[3:],
	}

	if apdu.Segmented {
		if len(data) < 5 {
			return nil, ErrInvalidAPDU
		}
		apdu.SequenceNum = data[2]
		apdu.WindowSize = data[3]
		apdu.Service = data[4]
		apdu.Data = data[5:]
	}

	return apdu, nil
}

func decodeErrorAPDU(data []byte) (*APDU, error) {
	if len(data) < 3 {
		return nil, ErrInvalidAPDU
	}

	return &APDU{
		Type:     PDUTypeError,
		InvokeID: data[1],
		Service:  data[2],
		Data:     data[3:],
	}, nil
}

func decodeRejectAPDU(data []byte) (*APDU, error) {
	if len(data) < 3 {
		return nil, ErrInvalidAPDU
	}

	return &APDU{
		Type:     PDUTypeReject,
		InvokeID: data[1],
		Service:  data[2], // Reject reason is in service field
	}, nil
}

func decodeAbortAPDU(data []byte) (*APDU, error) {
	if len(data) < 3 {
		return nil, ErrInvalidAPDU
	}

	return &APDU{
		Type:     PDUTypeAbort,
		InvokeID: data[1],
		Service:  data[2], // Abort reason is in service field
	}, nil
}

// Tag encoding/decoding helpers

// EncodeTag encodes a BACnet tag
func EncodeTag(tagNum uint8, class TagClass, length int) []byte {
	if length < 5 && tagNum < 15 {
		// Short form
		tag := (tagNum << 4) | (uint8(class) << 3) | uint8(length)
		return []byte{tag}
	}

	buf := make([]byte, 0, 6)

	// Extended tag number
	if tagNum >= 15 {
		buf = append(buf, 0xF0|(uint8(class)<<3))
		buf = append(buf, tagNum)
	} else {
		buf = append(buf, (tagNum<<4)|(uint8(class)<<3)|0x05)
	}

	// Extended length
	if length >= 5 {
		if length < 254 {
			buf = append(buf, byte(length))
		} else if length < 65536 {
			buf = append(buf, 254)
			buf = append(buf, byte(length>>8), byte(length))
		} else {
			buf = append(buf, 255)
			buf = append(buf, byte(length>>24), byte(length>>16), byte(length>>8), byte(length))
		}
	}

	return buf
}

// EncodeContextTag encodes a context-specific tag
func EncodeContextTag(tagNum uint8, data []byte) []byte {
	tag := EncodeTag(tagNum, TagClassContext, len(data))
	return append(tag, data...)
}

// EncodeOpeningTag encodes an opening tag for constructed data
func EncodeOpeningTag(tagNum uint8) []byte {
	if tagNum < 15 {
		return []byte{(tagNum << 4) | 0x0E}
	}
	return []byte{0xFE, tagNum}
}

// EncodeClosingTag encodes a closing tag for constructed data
func EncodeClosingTag(tagNum uint8) []byte {
	if tagNum < 15 {
		return []byte{(tagNum << 4) | 0x0F}
	}
	return []byte{0xFF, tagNum}
}

// EncodeUnsigned encodes an unsigned integer
func EncodeUnsigned(value uint32) []byte {
	if value < 0x100 {
		return []byte{byte(value)}
	} else if value < 0x10000 {
		return []byte{byte(value >> 8), byte(value)}
	} else if value < 0x1000000 {
		return []byte{byte(value >> 16), byte(value >> 8), byte(value)}
	}
	return []byte{byte(value >> 24), byte(value >> 16), byte(value >> 8), byte(value)}
}

// EncodeUnsignedTag encodes an unsigned integer with application tag
func EncodeUnsignedTag(value uint32) []byte {
	data := EncodeUnsigned(value)
	tag := EncodeTag(uint8(TagUnsignedInt), TagClassApplication, len(data))
	return append(tag, data...)
}

// EncodeContextUnsigned encodes an unsigned integer with context tag
func EncodeContextUnsigned(tagNum uint8, value uint32) []byte {
	data := EncodeUnsigned(value)
	return EncodeContextTag(tagNum, data)
}

// EncodeSigned encodes a signed integer
func EncodeSigned(value int32) []byte {
	if value >= -128 && value < 128 {
		return []byte{byte(value)}
	} else if value >= -32768 && value < 32768 {
		return []byte{byte(value >> 8), byte(value)}
	} else if value >= -8388608 && value < 8388608 {
		return []byte{byte(value >> 16), byte(value >> 8), byte(value)}
	}
	return []byte{byte(value >> 24), byte(value >> 16), byte(value >> 8), byte(value)}
}

// EncodeReal encodes a float32
func EncodeReal(value float32) []byte {
	bits := math.Float32bits(value)
	return []byte{byte(bits >> 24), byte(bits >> 16), byte(bits >> 8), byte(bits)}
}

// EncodeRealTag encodes a float32 with application tag
func EncodeRealTag(value float32) []byte {
	data := EncodeReal(value)
	tag := EncodeTag(uint8(TagReal), TagClassApplication, 4)
	return append(tag, data...)
}

// EncodeDouble encodes a float64
func EncodeDouble(value float64) []byte {
	bits := math.Float64bits(value)
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, bits)
	return buf
}

// EncodeBooleanTag encodes a boolean with application tag
func EncodeBooleanTag(value bool) []byte {
	if value {
		return []byte{0x11} // Boolean true, length 1, value 1
	}
	return []byte{0x10} // Boolean false, length 1, value 0
}

// EncodeContextBoolean encodes a boolean with context tag
func EncodeContextBoolean(tagNum uint8, value bool) []byte {
	v := byte(0)
	if value {
		v = 1
	}
	return EncodeContextTag(tagNum, []byte{v})
}

// EncodeEnumerated encodes an enumerated value
func EncodeEnumerated(value uint32) []byte {
	return EncodeUnsigned(value)
}

// EncodeEnumeratedTag encodes an enumerated value with application tag
func EncodeEnumeratedTag(value uint32) []byte {
	data := EncodeEnumerated(value)
	tag := EncodeTag(uint8(TagEnumerated), TagClassApplication, len(data))
	return append(tag, data...)
}

// EncodeContextEnumerated encodes an enumerated value with context tag
func EncodeContextEnumerated(tagNum uint8, value uint32) []byte {
	data := EncodeEnumerated(value)
	return EncodeContextTag(tagNum, data)
}

// EncodeObjectIdentifier encodes an object identifier
func EncodeObjectIdentifier(oid ObjectIdentifier) []byte {
	value := oid.Encode()
	return []byte{byte(value >> 24), byte(value >> 16), byte(value >> 8), byte(value)}
}

// EncodeObjectIdentifierTag encodes an object identifier with application tag
func EncodeObjectIdentifierTag(oid ObjectIdentifier) []byte {
	data := EncodeObjectIdentifier(oid)
	tag := EncodeTag(uint8(TagObjectID), TagClassApplication, 4)
	return append(tag, data...)
}

// EncodeContextObjectIdentifier encodes an object identifier with context tag
func EncodeContextObjectIdentifier(tagNum uint8, oid ObjectIdentifier) []byte {
	data := EncodeObjectIdentifier(oid)
	return EncodeContextTag(tagNum, data)
}

// EncodeCharacterString encodes a character string (UTF-8)
func EncodeCharacterString(s string) []byte {
	// Character set 0 = UTF-8
	data := make([]byte, 1+len(s))
	data[0] = 0 // UTF-8 encoding
	copy(data[1:], s)
	return data
}

// EncodeCharacterStringTag encodes a character string with application tag
func EncodeCharacterStringTag(s string) []byte {
	data := EncodeCharacterString(s)
	tag := EncodeTag(uint8(TagCharacterString), TagClassApplication, len(data))
	return append(tag, data...)
}

// EncodeNullTag encodes an application tagged null
func EncodeNullTag() []byte {
	return []byte{0x00}
}

// EncodeSignedTag encodes a signed integer with application tag
func EncodeSignedTag(value int32) []byte {
	data := EncodeSigned(value)
	tag := EncodeTag(uint8(TagSignedInt), TagClassApplication, len(data))
	return append(tag, data...)
}

// EncodeDoubleTag encodes a float64 with application tag
func EncodeDoubleTag(value float64) []byte {
	tag := EncodeTag(uint8(TagDouble), TagClassApplication, 8)
	return append(tag, EncodeDouble(value)...)
}

// EncodeOctetStringTag encodes an octet string with application tag
func EncodeOctetStringTag(data []byte) []byte {
	tag := EncodeTag(uint8(TagOctetString), TagClassApplication, len(data))
	return append(tag, data...)
}

// EncodeBitStringTag encodes a bit string with application tag
func EncodeBitStringTag(bits []bool) []byte {
	data := BitString(bits).Encode()
	tag := EncodeTag(uint8(TagBitString), TagClassApplication, len(data))
	return append(tag, data...)
}

// EncodeDateTag encodes a date with application tag
func EncodeDateTag(d Date) []byte {
	tag := EncodeTag(uint8(TagDate), TagClassApplication, 4)
	return append(tag, d.Encode()...)
}

// EncodeTimeTag encodes a time of day with application tag
func EncodeTimeTag(t Time) []byte {
	tag := EncodeTag(uint8(TagTime), TagClassApplication, 4)
	return append(tag, t.Encode()...)
}

// EncodeApplicationValue encodes a Go value with the matching application
// tag. It is the inverse of TagReader.Application.
func EncodeApplicationValue(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return EncodeNullTag(), nil
	case bool:
		return EncodeBooleanTag(v), nil
	case uint8:
		return EncodeUnsignedTag(uint32(v)), nil
	case uint16:
		return EncodeUnsignedTag(uint32(v)), nil
	case uint32:
		return EncodeUnsignedTag(v), nil
	case uint:
		return EncodeUnsignedTag(uint32(v)), nil
	case int:
		return EncodeSignedTag(int32(v)), nil
	case int32:
		return EncodeSignedTag(v), nil
	case float32:
		return EncodeRealTag(v), nil
	case float64:
		return EncodeDoubleTag(v), nil
	case string:
		return EncodeCharacterStringTag(v), nil
	case []byte:
		return EncodeOctetStringTag(v), nil
	case BitString:
		return EncodeBitStringTag(v), nil
	case Enumerated:
		return EncodeEnumeratedTag(uint32(v)), nil
	case Date:
		return EncodeDateTag(v), nil
	case Time:
		return EncodeTimeTag(v), nil
	case ObjectIdentifier:
		return EncodeObjectIdentifierTag(v), nil
	case LandingCallStatus:
		return v.Encode(), nil
	}
	return nil, fmt.Errorf("%w: %T", ErrInvalidDataType, value)
}

// DecodeTagNumber decodes a tag from data
func DecodeTagNumber(data []byte) (tagNum uint8, class TagClass, length int, headerLen int, err error) {
	if len(data) < 1 {
		return 0, 0, 0, 0, ErrInvalidAPDU
	}

	tagNum = (data[0] >> 4) & 0x0F
	class = TagClass((data[0] >> 3) & 0x01)
	length = int(data[0] & 0x07)
	headerLen = 1

	// Extended tag number
	if tagNum == 0x0F {
		if len(data) < 2 {
			return 0, 0, 0, 0, ErrInvalidAPDU
		}
		tagNum = data[1]
		headerLen = 2
	}

	// Opening/closing tag
	if class == TagClassContext && (data[0]&0x07) == 0x06 {
		// Opening tag
		length = -1
		return
	}
	if class == TagClassContext && (data[0]&0x07) == 0x07 {
		// Closing tag
		length = -2
		return
	}

	// Extended length
	if length == 5 {
		if len(data) < headerLen+1 {
			return 0, 0, 0, 0, ErrInvalidAPDU
		}
		if data[headerLen] < 254 {
			length = int(data[headerLen])
			headerLen++
		} else if data[headerLen] == 254 {
			if len(data) < headerLen+3 {
				return 0, 0, 0, 0, ErrInvalidAPDU
			}
			length = int(binary.BigEndian.Uint16(data[headerLen+1:]))
			headerLen += 3
		} else {
			if len(data) < headerLen+5 {
				return 0, 0, 0, 0, ErrInvalidAPDU
			}
			length = int(binary.BigEndian.Uint32(data[headerLen+1:]))
			headerLen += 5
		}
	}

	return tagNum, class, length, headerLen, nil
}

// DecodeUnsigned decodes an unsigned integer from data
func DecodeUnsigned(data []byte) uint32 {
	switch len(data) {
	case 1:
		return uint32(data[0])
	case 2:
		return uint32(binary.BigEndian.Uint16(data))
	case 3:
		return uint32(data[0])<<16 | uint32(data[1])<<8 | uint32(data[2])
	case 4:
		return binary.BigEndian.Uint32(data)
	default:
		return 0
	}
}

// DecodeSigned decodes a signed integer from data
func DecodeSigned(data []byte) int32 {
	switch len(data) {
	case 1:
		return int32(int8(data[0]))
	case 2:
		return int32(int16(binary.BigEndian.Uint16(data)))
	case 3:
		v := uint32(data[0])<<16 | uint32(data[1])<<8 | uint32(data[2])
		if data[0]&0x80 != 0 {
			v |= 0xFF000000
		}
		return int32(v)
	case 4:
		return int32(binary.BigEndian.Uint32(data))
	default:
		return 0
	}
}

// DecodeReal decodes a float32 from data
func DecodeReal(data []byte) float32 {
	if len(data) != 4 {
		return 0
	}
	bits := binary.BigEndian.Uint32(data)
	return math.Float32frombits(bits)
}

// DecodeDouble decodes a float64 from data
func DecodeDouble(data []byte) float64 {
	if len(data) != 8 {
		return 0
	}
	bits := binary.BigEndian.Uint64(data)
	return math.Float64frombits(bits)
}

// DecodeCharacterString decodes a character string
func DecodeCharacterString(data []byte) string {
	if len(data) < 1 {
		return ""
	}
	// Skip character set byte
	return string(data[1:])
}

// DecodeObjectIdentifierFromBytes decodes an object identifier from bytes
func DecodeObjectIdentifierFromBytes(data []byte) ObjectIdentifier {
	if len(data) != 4 {
		return ObjectIdentifier{}
	}
	value := binary.BigEndian.Uint32(data)
	return DecodeObjectIdentifier(value)
}

package bacnet

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodings(t *testing.T) {
	tests := []struct {
		name     string
		got      []byte
		expected []byte
	}{
		{"boolean true", EncodeBooleanTag(true), []byte{0x11}},
		{"boolean false", EncodeBooleanTag(false), []byte{0x10}},
		{"context boolean", EncodeContextBoolean(1, false), []byte{0x19, 0x00}},
		{"unsigned", EncodeUnsignedTag(72), []byte{0x21, 0x48}},
		{"unsigned two octets", EncodeUnsignedTag(1476), []byte{0x22, 0x05, 0xC4}},
		{"enumerated", EncodeEnumeratedTag(3), []byte{0x91, 0x03}},
		{"character string", EncodeCharacterStringTag("Lobby"), []byte{0x75, 0x06, 0x00, 'L', 'o', 'b', 'b', 'y'}},
		{"context device", EncodeContextObjectIdentifier(0, NewObjectIdentifier(ObjectTypeDevice, 389001)),
			[]byte{0x0C, 0x02, 0x05, 0xEF, 0x89}},
		{"opening tag", EncodeOpeningTag(3), []byte{0x3E}},
		{"closing tag", EncodeClosingTag(3), []byte{0x3F}},
		{"who-is", EncodeUnconfirmedRequest(ServiceWhoIs, nil), []byte{0x10, 0x08}},
		{"simple ack", EncodeSimpleAck(4, ServiceWriteProperty), []byte{0x20, 0x04, 0x0F}},
		{"reject", EncodeRejectPDU(4, RejectReasonUnrecognizedService), []byte{0x60, 0x04, 0x09}},
		{"abort", EncodeAbortPDU(4, AbortReasonSegmentationNotSupported), []byte{0x71, 0x04, 0x04}},
		{"error", EncodeErrorPDU(4, ServiceReadProperty, ErrorClassObject, ErrorCodeUnknownObject),
			[]byte{0x50, 0x04, 0x0C, 0x91, 0x01, 0x91, 0x1F}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !bytes.Equal(tt.got, tt.expected) {
				t.Errorf("Expected %X, got %X", tt.expected, tt.got)
			}
		})
	}
}

func TestDecodeFrame(t *testing.T) {
	whoIs := EncodeUnconfirmedRequest(ServiceWhoIs, nil)

	t.Run("broadcast", func(t *testing.T) {
		data := EncodeFrame(BVLCOriginalBroadcastNPDU, EncodeNPDU(false, NPDUControlPriorityNormal), whoIs)
		expected := []byte{0x81, 0x0B, 0x00, 0x08, 0x01, 0x00, 0x10, 0x08}
		if !bytes.Equal(data, expected) {
			t.Fatalf("Expected %X, got %X", expected, data)
		}

		frame, err := DecodeFrame(data)
		if err != nil {
			t.Fatalf("DecodeFrame: %v", err)
		}
		if frame.APDU.Type != PDUTypeUnconfirmedRequest || UnconfirmedServiceChoice(frame.APDU.Service) != ServiceWhoIs {
			t.Errorf("Expected who-is, got %+v", frame.APDU)
		}
	})

	t.Run("forwarded", func(t *testing.T) {
		payload := append([]byte{192, 168, 1, 20, 0xBA, 0xC0}, EncodeNPDU(false, NPDUControlPriorityNormal)...)
		data := EncodeFrame(BVLCForwardedNPDU, payload, whoIs)
		frame, err := DecodeFrame(data)
		if err != nil {
			t.Fatalf("DecodeFrame: %v", err)
		}
		if frame.APDU == nil || UnconfirmedServiceChoice(frame.APDU.Service) != ServiceWhoIs {
			t.Errorf("Expected who-is, got %+v", frame.APDU)
		}
	})

	t.Run("routed source", func(t *testing.T) {
		npdu := []byte{0x01, byte(NPDUControlSourceSpecifier), 0x00, 0x05, 0x01, 0x2A}
		frame, err := DecodeFrame(EncodeFrame(BVLCOriginalUnicastNPDU, npdu, whoIs))
		if err != nil {
			t.Fatalf("DecodeFrame: %v", err)
		}
		if frame.NPDU.SrcNet != 5 || !bytes.Equal(frame.NPDU.SrcAddr, []byte{0x2A}) {
			t.Errorf("Expected source 5:2A, got %d:%X", frame.NPDU.SrcNet, frame.NPDU.SrcAddr)
		}
		reply := replyNPDU(frame.NPDU)
		expected := []byte{0x01, byte(NPDUControlDestSpecifier), 0x00, 0x05, 0x01, 0x2A, 0xFF}
		if !bytes.Equal(reply, expected) {
			t.Errorf("Expected reply NPDU %X, got %X", expected, reply)
		}
	})

	errorTests := []struct {
		name string
		data []byte
	}{
		{"short", []byte{0x81, 0x0A}},
		{"wrong type", []byte{0x82, 0x0A, 0x00, 0x08, 0x01, 0x00, 0x10, 0x08}},
		{"length mismatch", []byte{0x81, 0x0A, 0x00, 0x10, 0x01, 0x00, 0x10, 0x08}},
		{"npdu version", []byte{0x81, 0x0A, 0x00, 0x08, 0x02, 0x00, 0x10, 0x08}},
	}
	for _, tt := range errorTests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeFrame(tt.data); err == nil {
				t.Errorf("Expected an error")
			}
		})
	}
}

func TestWhoIsRange(t *testing.T) {
	low, high := uint32(100), uint32(200)
	data := EncodeWhoIs(&low, &high)

	gotLow, gotHigh, ok, err := DecodeWhoIs(data)
	if err != nil {
		t.Fatalf("DecodeWhoIs: %v", err)
	}
	if !ok || gotLow != low || gotHigh != high {
		t.Errorf("Expected %d-%d, got %d-%d (ok %v)", low, high, gotLow, gotHigh, ok)
	}

	if _, _, ok, err := DecodeWhoIs(nil); ok || err != nil {
		t.Errorf("Expected no range, got ok=%v err=%v", ok, err)
	}

	if data := EncodeWhoIs(&low, nil); data != nil {
		t.Errorf("Expected no data for a half range, got %X", data)
	}

	bad := append(EncodeContextUnsigned(0, 1), EncodeContextUnsigned(1, NoInstance+1)...)
	if _, _, _, err := DecodeWhoIs(bad); !errors.Is(err, ErrValueOutOfRange) {
		t.Errorf("Expected ErrValueOutOfRange, got %v", err)
	}
}

func TestIAm(t *testing.T) {
	data := EncodeIAm(NewObjectIdentifier(ObjectTypeDevice, 389001), MaxAPDULength, SegmentationNone, 260)
	info, err := DecodeIAm(data)
	if err != nil {
		t.Fatalf("DecodeIAm: %v", err)
	}
	if info.ObjectID.Instance != 389001 || info.MaxAPDULength != MaxAPDULength || info.VendorID != 260 {
		t.Errorf("Unexpected I-Am %+v", info)
	}

	notDevice := EncodeIAm(NewObjectIdentifier(ObjectTypeLift, 1), MaxAPDULength, SegmentationNone, 260)
	if _, err := DecodeIAm(notDevice); !errors.Is(err, ErrInvalidDataType) {
		t.Errorf("Expected ErrInvalidDataType, got %v", err)
	}
}

func TestMaxAPDUCode(t *testing.T) {
	tests := []struct {
		length int
		code   uint8
		back   int
	}{
		{50, 0, 50},
		{128, 1, 128},
		{206, 2, 206},
		{480, 3, 480},
		{1024, 4, 1024},
		{1476, 5, 1476},
		{300, 2, 206},
	}

	for _, tt := range tests {
		code := MaxAPDUCode(tt.length)
		if code != tt.code {
			t.Errorf("MaxAPDUCode(%d): Expected %d, got %d", tt.length, tt.code, code)
		}
		if got := MaxAPDUFromCode(code); got != tt.back {
			t.Errorf("MaxAPDUFromCode(%d): Expected %d, got %d", code, tt.back, got)
		}
	}
	if got := MaxAPDUFromCode(9); got != MaxAPDULength {
		t.Errorf("Expected unknown codes to mean %d, got %d", MaxAPDULength, got)
	}
}

func TestDecodeSegmentedRequest(t *testing.T) {
	data := []byte{byte(PDUTypeConfirmedRequest) | 0x08, 0x05, 7, 2, 4, byte(ServiceReadProperty), 0xAA}
	apdu, err := DecodeAPDU(data)
	if err != nil {
		t.Fatalf("DecodeAPDU: %v", err)
	}
	if !apdu.Segmented || apdu.InvokeID != 7 || apdu.SequenceNum != 2 || apdu.WindowSize != 4 {
		t.Errorf("Unexpected header %+v", apdu)
	}
	if ConfirmedServiceChoice(apdu.Service) != ServiceReadProperty || !bytes.Equal(apdu.Data, []byte{0xAA}) {
		t.Errorf("Expected read-property with one octet, got %d %X", apdu.Service, apdu.Data)
	}
}

package bacnet

import (
	"bytes"
	"errors"
	"reflect"
	"testing"
)

func TestTagReaderValue(t *testing.T) {
	var data []byte
	data = append(data, EncodeUnsignedTag(42)...)
	data = append(data, EncodeOpeningTag(0)...)
	data = append(data, EncodeCharacterStringTag("Front")...)
	data = append(data, EncodeContextUnsigned(1, 7)...)
	data = append(data, EncodeClosingTag(0)...)
	data = append(data, EncodeEnumeratedTag(8)...)

	r := NewTagReader(data)
	var got []interface{}
	for !r.Done() {
		v, err := r.Value()
		if err != nil {
			t.Fatalf("Value: %v", err)
		}
		got = append(got, v)
	}

	expected := []interface{}{
		uint32(42),
		Constructed{Tag: 0, Values: []interface{}{"Front", ContextValue{Tag: 1, Data: []byte{7}}}},
		Enumerated(8),
	}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("Expected %v, got %v", expected, got)
	}
}

func TestRawUntilClosing(t *testing.T) {
	inner := EncodeOpeningTag(0)
	inner = append(inner, EncodeUnsignedTag(1)...)
	inner = append(inner, EncodeClosingTag(0)...)
	inner = append(inner, EncodeRealTag(2.5)...)

	data := EncodeOpeningTag(3)
	data = append(data, inner...)
	data = append(data, EncodeClosingTag(3)...)
	data = append(data, EncodeContextUnsigned(4, 16)...)

	r := NewTagReader(data)
	if err := r.Opening(3); err != nil {
		t.Fatalf("Opening: %v", err)
	}
	raw, err := r.RawUntilClosing(3)
	if err != nil {
		t.Fatalf("RawUntilClosing: %v", err)
	}
	if !bytes.Equal(raw, inner) {
		t.Errorf("Expected %X, got %X", inner, raw)
	}
	if !r.IsContext(4) {
		t.Errorf("Expected the reader to stop after closing tag 3")
	}
}

func TestTagReaderErrors(t *testing.T) {
	tests := []struct {
		name     string
		read     func(r *TagReader) error
		data     []byte
		expected error
	}{
		{
			name:     "exhausted",
			data:     nil,
			read:     func(r *TagReader) error { _, err := r.ContextUnsigned(0); return err },
			expected: ErrUnexpectedEnd,
		},
		{
			name:     "truncated content",
			data:     []byte{0x22, 0x05},
			read:     func(r *TagReader) error { _, err := r.Application(); return err },
			expected: ErrUnexpectedEnd,
		},
		{
			name:     "wrong context tag",
			data:     EncodeContextUnsigned(1, 5),
			read:     func(r *TagReader) error { _, err := r.ContextUnsigned(0); return err },
			expected: ErrInvalidTag,
		},
		{
			name:     "missing opening tag",
			data:     EncodeUnsignedTag(1),
			read:     func(r *TagReader) error { return r.Opening(3) },
			expected: ErrInvalidTag,
		},
		{
			name:     "not unsigned",
			data:     EncodeCharacterStringTag("x"),
			read:     func(r *TagReader) error { _, err := r.ApplicationUnsigned(); return err },
			expected: ErrInvalidDataType,
		},
		{
			name: "unterminated",
			data: append(EncodeOpeningTag(2), EncodeUnsignedTag(1)...),
			read: func(r *TagReader) error {
				_, err := r.Value()
				return err
			},
			expected: ErrUnexpectedEnd,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.read(NewTagReader(tt.data)); !errors.Is(err, tt.expected) {
				t.Errorf("Expected %v, got %v", tt.expected, err)
			}
		})
	}
}

func TestApplicationValues(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected interface{}
	}{
		{"null", EncodeNullTag(), nil},
		{"true", EncodeBooleanTag(true), true},
		{"false", EncodeBooleanTag(false), false},
		{"real", EncodeRealTag(1.5), float32(1.5)},
		{"signed", EncodeSignedTag(-3), int32(-3)},
		{"object", EncodeObjectIdentifierTag(NewObjectIdentifier(ObjectTypeLift, 7)), NewObjectIdentifier(ObjectTypeLift, 7)},
		{"date", EncodeDateTag(Date{Year: 2025, Month: 1, Day: 2, Weekday: 4}), Date{Year: 2025, Month: 1, Day: 2, Weekday: 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewTagReader(tt.data).Application()
			if err != nil {
				t.Fatalf("Application: %v", err)
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Expected %#v, got %#v", tt.expected, got)
			}
		})
	}
}

package bacnet

import (
	"fmt"
	"net"
	"strings"
	"time"
)

// BitString is a BACnet bit string
type BitString []bool

// Get returns bit i, false when out of range.
func (b BitString) Get(i int) bool {
	return i >= 0 && i < len(b) && b[i]
}

// Encode encodes the bit string content (unused bits octet + data).
func (b BitString) Encode() []byte {
	n := (len(b) + 7) / 8
	buf := make([]byte, 1+n)
	buf[0] = byte(n*8 - len(b))
	for i, set := range b {
		if set {
			buf[1+i/8] |= 0x80 >> (i % 8)
		}
	}
	return buf
}

func (b BitString) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, set := range b {
		if i > 0 {
			sb.WriteByte(',')
		}
		if set {
			sb.WriteByte('T')
		} else {
			sb.WriteByte('F')
		}
	}
	sb.WriteByte('}')
	return sb.String()
}

// DecodeBitString decodes bit string content
func DecodeBitString(data []byte) BitString {
	if len(data) < 1 {
		return BitString{}
	}
	total := (len(data)-1)*8 - int(data[0]&0x07)
	if total < 0 {
		total = 0
	}
	bits := make(BitString, total)
	for i := range bits {
		bits[i] = data[1+i/8]&(0x80>>(i%8)) != 0
	}
	return bits
}

// Date is a BACnet date. Year is the full year; 255 fields are wildcards.
type Date struct {
	Year    int
	Month   uint8
	Day     uint8
	Weekday uint8
}

// DateFromTime converts a time.Time to a BACnet date.
func DateFromTime(t time.Time) Date {
	wd := uint8(t.Weekday())
	if wd == 0 {
		wd = 7
	}
	return Date{Year: t.Year(), Month: uint8(t.Month()), Day: uint8(t.Day()), Weekday: wd}
}

// Encode encodes the date content octets
func (d Date) Encode() []byte {
	year := byte(255)
	if d.Year >= 1900 && d.Year < 1900+255 {
		year = byte(d.Year - 1900)
	}
	return []byte{year, d.Month, d.Day, d.Weekday}
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// DecodeDate decodes date content octets
func DecodeDate(data []byte) (Date, error) {
	if len(data) != 4 {
		return Date{}, fmt.Errorf("%w: date length %d", ErrInvalidTag, len(data))
	}
	return Date{Year: int(data[0]) + 1900, Month: data[1], Day: data[2], Weekday: data[3]}, nil
}

// Time is a BACnet time of day
type Time struct {
	Hour       uint8
	Minute     uint8
	Second     uint8
	Hundredths uint8
}

// TimeFromTime converts a time.Time to a BACnet time of day.
func TimeFromTime(t time.Time) Time {
	return Time{
		Hour:       uint8(t.Hour()),
		Minute:     uint8(t.Minute()),
		Second:     uint8(t.Second()),
		Hundredths: uint8(t.Nanosecond() / int(10*time.Millisecond)),
	}
}

// Encode encodes the time content octets
func (t Time) Encode() []byte {
	return []byte{t.Hour, t.Minute, t.Second, t.Hundredths}
}

func (t Time) String() string {
	return fmt.Sprintf("%02d:%02d:%02d.%02d", t.Hour, t.Minute, t.Second, t.Hundredths)
}

// DecodeTime decodes time content octets
func DecodeTime(data []byte) (Time, error) {
	if len(data) != 4 {
		return Time{}, fmt.Errorf("%w: time length %d", ErrInvalidTag, len(data))
	}
	return Time{Hour: data[0], Minute: data[1], Second: data[2], Hundredths: data[3]}, nil
}

// TimeStampKind selects the CHOICE of a BACnetTimeStamp
type TimeStampKind uint8

const (
	TimeStampTime TimeStampKind = iota
	TimeStampSequence
	TimeStampDateTime
)

// TimeStamp is a BACnetTimeStamp
type TimeStamp struct {
	Kind     TimeStampKind
	Time     Time
	Sequence uint32
	Date     Date
}

// TimeStampFromTime builds a date-time time stamp.
func TimeStampFromTime(t time.Time) TimeStamp {
	return TimeStamp{Kind: TimeStampDateTime, Date: DateFromTime(t), Time: TimeFromTime(t)}
}

func (ts TimeStamp) String() string {
	switch ts.Kind {
	case TimeStampTime:
		return ts.Time.String()
	case TimeStampSequence:
		return fmt.Sprintf("seq:%d", ts.Sequence)
	}
	return ts.Date.String() + " " + ts.Time.String()
}

// EncodeContext encodes the time stamp enclosed in context tag n.
func (ts TimeStamp) EncodeContext(n uint8) []byte {
	buf := EncodeOpeningTag(n)
	switch ts.Kind {
	case TimeStampTime:
		buf = append(buf, EncodeContextTag(0, ts.Time.Encode())...)
	case TimeStampSequence:
		buf = append(buf, EncodeContextUnsigned(1, ts.Sequence)...)
	default:
		buf = append(buf, EncodeOpeningTag(2)...)
		buf = append(buf, EncodeDateTag(ts.Date)...)
		buf = append(buf, EncodeTimeTag(ts.Time)...)
		buf = append(buf, EncodeClosingTag(2)...)
	}
	return append(buf, EncodeClosingTag(n)...)
}

// DecodeContextTimeStamp decodes a time stamp enclosed in context tag n.
func DecodeContextTimeStamp(r *TagReader, n uint8) (TimeStamp, error) {
	var ts TimeStamp
	if err := r.Opening(n); err != nil {
		return ts, err
	}
	switch {
	case r.IsContext(0):
		data, err := r.context(0)
		if err != nil {
			return ts, err
		}
		ts.Kind = TimeStampTime
		if ts.Time, err = DecodeTime(data); err != nil {
			return ts, err
		}
	case r.IsContext(1):
		seq, err := r.ContextUnsigned(1)
		if err != nil {
			return ts, err
		}
		ts.Kind = TimeStampSequence
		ts.Sequence = seq
	case r.IsOpening(2):
		if err := r.Opening(2); err != nil {
			return ts, err
		}
		d, err := r.Application()
		if err != nil {
			return ts, err
		}
		t, err := r.Application()
		if err != nil {
			return ts, err
		}
		date, okDate := d.(Date)
		tod, okTime := t.(Time)
		if !okDate || !okTime {
			return ts, fmt.Errorf("%w: date-time", ErrInvalidDataType)
		}
		if err := r.Closing(2); err != nil {
			return ts, err
		}
		ts.Kind = TimeStampDateTime
		ts.Date = date
		ts.Time = tod
	default:
		return ts, fmt.Errorf("%w: time stamp choice", ErrInvalidTag)
	}
	return ts, r.Closing(n)
}

// Destination is a BACnetDestination, one entry of a notification class
// recipient list. The recipient is a device when Device is set, otherwise
// the BACnet address given by Network and MAC.
type Destination struct {
	ValidDays         [7]bool
	FromTime          Time
	ToTime            Time
	Device            *ObjectIdentifier
	Network           uint16
	MAC               []byte
	ProcessIdentifier uint32
	IssueConfirmed    bool
	Transitions       [3]bool
}

// Encode encodes the destination as an application tagged sequence.
func (d Destination) Encode() []byte {
	buf := EncodeBitStringTag(d.ValidDays[:])
	buf = append(buf, EncodeTimeTag(d.FromTime)...)
	buf = append(buf, EncodeTimeTag(d.ToTime)...)
	if d.Device != nil {
		buf = append(buf, EncodeContextObjectIdentifier(0, *d.Device)...)
	} else {
		buf = append(buf, EncodeOpeningTag(1)...)
		buf = append(buf, EncodeUnsignedTag(uint32(d.Network))...)
		buf = append(buf, EncodeOctetStringTag(d.MAC)...)
		buf = append(buf, EncodeClosingTag(1)...)
	}
	buf = append(buf, EncodeUnsignedTag(d.ProcessIdentifier)...)
	buf = append(buf, EncodeBooleanTag(d.IssueConfirmed)...)
	buf = append(buf, EncodeBitStringTag(d.Transitions[:])...)
	return buf
}

func (d Destination) String() string {
	if d.Device != nil {
		return fmt.Sprintf("%s process=%d", d.Device, d.ProcessIdentifier)
	}
	return fmt.Sprintf("%s process=%d", FormatMAC(d.MAC), d.ProcessIdentifier)
}

// FormatMAC renders a six octet BACnet/IP MAC as ip:port, any other MAC
// as hex.
func FormatMAC(mac []byte) string {
	if len(mac) == 6 {
		ip := net.IPv4(mac[0], mac[1], mac[2], mac[3])
		port := int(mac[4])<<8 | int(mac[5])
		return fmt.Sprintf("%s:%d", ip, port)
	}
	return fmt.Sprintf("%X", mac)
}

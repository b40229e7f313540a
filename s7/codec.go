package s7

import (
	"encoding/binary"
	"math"
	"time"
)

// dateEpoch is the S7 DATE zero point: days since 1990-01-01 (spec §4.7).
var dateEpoch = time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)

// IECCounter is the decoded form of an IEC_COUNTER value (spec §4.7).
type IECCounter struct {
	Flags byte
	PV    int16
	Q     bool
	CV    int16
	CDUO  bool
}

// IECTimer is the decoded form of an IEC_TIMER value. The wire shape
// beyond flags/PT/Q/ET/ETDUO is reserved padding to the 22-byte size the
// spec calls for; no field beyond these is observed by any caller-visible
// operation.
type IECTimer struct {
	Flags byte
	PT    int32 // preset time, milliseconds
	Q     bool
	ET    int32 // elapsed time, milliseconds
	ETDUO bool
}

// bcdToDecimal decodes one BCD byte into its two-digit decimal value.
// ok is false if either nibble is not a valid decimal digit.
func bcdToDecimal(b byte) (int, bool) {
	hi, lo := b>>4, b&0x0F
	if hi > 9 || lo > 9 {
		return 0, false
	}
	return int(hi)*10 + int(lo), true
}

func decimalToBCD(v int) byte {
	return byte((v/10)%10)<<4 | byte(v%10)
}

// DecodeValue interprets raw wire bytes as the Go value for t. bitNum
// selects a single bit out of raw[0] for BOOL reads that addressed a bit
// within a byte; pass -1 when not applicable.
func DecodeValue(raw []byte, t Type, bitNum int) (interface{}, error) {
	if IsArray(t) {
		return decodeArray(raw, BaseType(t))
	}
	switch t {
	case TypeBool:
		if len(raw) < 1 {
			return nil, &DataTypeError{Type: t, Reason: "no data"}
		}
		if bitNum >= 0 && bitNum <= 7 {
			return raw[0]&(1<<uint(bitNum)) != 0, nil
		}
		return raw[0] != 0, nil
	case TypeByte:
		if len(raw) < 1 {
			return nil, &DataTypeError{Type: t, Reason: "no data"}
		}
		return raw[0], nil
	case TypeSInt:
		if len(raw) < 1 {
			return nil, &DataTypeError{Type: t, Reason: "no data"}
		}
		return int8(raw[0]), nil
	case TypeChar:
		if len(raw) < 1 {
			return nil, &DataTypeError{Type: t, Reason: "no data"}
		}
		return rune(raw[0]), nil
	case TypeWord:
		if len(raw) < 2 {
			return nil, &DataTypeError{Type: t, Reason: "need 2 bytes"}
		}
		return binary.BigEndian.Uint16(raw), nil
	case TypeInt:
		if len(raw) < 2 {
			return nil, &DataTypeError{Type: t, Reason: "need 2 bytes"}
		}
		return int16(binary.BigEndian.Uint16(raw)), nil
	case TypeDWord:
		if len(raw) < 4 {
			return nil, &DataTypeError{Type: t, Reason: "need 4 bytes"}
		}
		return binary.BigEndian.Uint32(raw), nil
	case TypeDInt:
		if len(raw) < 4 {
			return nil, &DataTypeError{Type: t, Reason: "need 4 bytes"}
		}
		return int32(binary.BigEndian.Uint32(raw)), nil
	case TypeTime:
		if len(raw) < 4 {
			return nil, &DataTypeError{Type: t, Reason: "need 4 bytes"}
		}
		return time.Duration(int32(binary.BigEndian.Uint32(raw))) * time.Millisecond, nil
	case TypeTimeOfDay:
		if len(raw) < 4 {
			return nil, &DataTypeError{Type: t, Reason: "need 4 bytes"}
		}
		return time.Duration(binary.BigEndian.Uint32(raw)) * time.Millisecond, nil
	case TypeReal:
		if len(raw) < 4 {
			return nil, &DataTypeError{Type: t, Reason: "need 4 bytes"}
		}
		return math.Float32frombits(binary.BigEndian.Uint32(raw)), nil
	case TypeLReal:
		if len(raw) < 8 {
			return nil, &DataTypeError{Type: t, Reason: "need 8 bytes"}
		}
		return math.Float64frombits(binary.BigEndian.Uint64(raw)), nil
	case TypeLInt:
		if len(raw) < 8 {
			return nil, &DataTypeError{Type: t, Reason: "need 8 bytes"}
		}
		return int64(binary.BigEndian.Uint64(raw)), nil
	case TypeULInt:
		if len(raw) < 8 {
			return nil, &DataTypeError{Type: t, Reason: "need 8 bytes"}
		}
		return binary.BigEndian.Uint64(raw), nil
	case TypeString:
		return decodeString(raw)
	case TypeWString:
		return decodeWString(raw)
	case TypeDate:
		if len(raw) < 2 {
			return nil, &DataTypeError{Type: t, Reason: "need 2 bytes"}
		}
		days := binary.BigEndian.Uint16(raw)
		return dateEpoch.AddDate(0, 0, int(days)), nil
	case TypeDateTime:
		return decodeDateTime(raw)
	case TypeS5Time:
		return decodeS5Time(raw)
	case TypeCounter, TypeTimer:
		return decodeBCDCounter(raw)
	case TypeIECCounter:
		return decodeIECCounter(raw)
	case TypeIECTimer:
		return decodeIECTimer(raw)
	default:
		return nil, &DataTypeError{Type: t, Reason: "unknown type"}
	}
}

// EncodeValue converts a Go value into its wire representation for t.
func EncodeValue(v interface{}, t Type) ([]byte, error) {
	switch BaseType(t) {
	case TypeBool:
		b, ok := v.(bool)
		if !ok {
			return nil, &DataTypeError{Type: t, Reason: "value is not bool"}
		}
		if b {
			return []byte{0x01}, nil
		}
		return []byte{0x00}, nil
	case TypeByte:
		return []byte{toByte(v)}, nil
	case TypeSInt:
		return []byte{byte(toInt64(v))}, nil
	case TypeChar:
		return []byte{byte(toInt64(v)), 0x00}, nil
	case TypeWord:
		out := make([]byte, 2)
		binary.BigEndian.PutUint16(out, uint16(toUint64(v)))
		return out, nil
	case TypeInt:
		out := make([]byte, 2)
		binary.BigEndian.PutUint16(out, uint16(int16(toInt64(v))))
		return out, nil
	case TypeDWord:
		out := make([]byte, 4)
		binary.BigEndian.PutUint32(out, uint32(toUint64(v)))
		return out, nil
	case TypeDInt:
		out := make([]byte, 4)
		binary.BigEndian.PutUint32(out, uint32(int32(toInt64(v))))
		return out, nil
	case TypeTime, TypeTimeOfDay:
		d, ok := v.(time.Duration)
		if !ok {
			return nil, &DataTypeError{Type: t, Reason: "value is not time.Duration"}
		}
		out := make([]byte, 4)
		binary.BigEndian.PutUint32(out, uint32(int32(d/time.Millisecond)))
		return out, nil
	case TypeReal:
		f, ok := v.(float32)
		if !ok {
			if f64, ok64 := v.(float64); ok64 {
				f = float32(f64)
			} else {
				return nil, &DataTypeError{Type: t, Reason: "value is not float32/float64"}
			}
		}
		out := make([]byte, 4)
		binary.BigEndian.PutUint32(out, math.Float32bits(f))
		return out, nil
	case TypeLReal:
		f, ok := v.(float64)
		if !ok {
			return nil, &DataTypeError{Type: t, Reason: "value is not float64"}
		}
		out := make([]byte, 8)
		binary.BigEndian.PutUint64(out, math.Float64bits(f))
		return out, nil
	case TypeLInt:
		out := make([]byte, 8)
		binary.BigEndian.PutUint64(out, uint64(toInt64(v)))
		return out, nil
	case TypeULInt:
		out := make([]byte, 8)
		binary.BigEndian.PutUint64(out, toUint64(v))
		return out, nil
	case TypeString:
		s, ok := v.(string)
		if !ok {
			return nil, &DataTypeError{Type: t, Reason: "value is not string"}
		}
		return encodeString(s), nil
	case TypeDate:
		tm, ok := v.(time.Time)
		if !ok {
			return nil, &DataTypeError{Type: t, Reason: "value is not time.Time"}
		}
		days := int(tm.Sub(dateEpoch).Hours() / 24)
		out := make([]byte, 2)
		binary.BigEndian.PutUint16(out, uint16(days))
		return out, nil
	case TypeDateTime:
		tm, ok := v.(time.Time)
		if !ok {
			return nil, &DataTypeError{Type: t, Reason: "value is not time.Time"}
		}
		return encodeDateTime(tm), nil
	case TypeS5Time:
		d, ok := v.(time.Duration)
		if !ok {
			return nil, &DataTypeError{Type: t, Reason: "value is not time.Duration"}
		}
		return encodeS5Time(d), nil
	case TypeCounter, TypeTimer:
		return encodeBCDCounter(int(toInt64(v))), nil
	case TypeIECCounter:
		c, ok := v.(IECCounter)
		if !ok {
			return nil, &DataTypeError{Type: t, Reason: "value is not IECCounter"}
		}
		return encodeIECCounter(c), nil
	case TypeIECTimer:
		tmr, ok := v.(IECTimer)
		if !ok {
			return nil, &DataTypeError{Type: t, Reason: "value is not IECTimer"}
		}
		return encodeIECTimer(tmr), nil
	default:
		return nil, &DataTypeError{Type: t, Reason: "unknown type"}
	}
}

func toByte(v interface{}) byte   { return byte(toUint64(v)) }
func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int8:
		return int64(n)
	case int16:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	case uint:
		return int64(n)
	case uint8:
		return int64(n)
	case uint16:
		return int64(n)
	case uint32:
		return int64(n)
	case uint64:
		return int64(n)
	default:
		return 0
	}
}
func toUint64(v interface{}) uint64 { return uint64(toInt64(v)) }

// decodeString parses the S7 STRING wire format: {maxLen, actualLen, bytes}.
func decodeString(raw []byte) (string, error) {
	if len(raw) < 2 {
		return "", &DataTypeError{Type: TypeString, Reason: "need at least 2 header bytes"}
	}
	actualLen := int(raw[1])
	if actualLen > len(raw)-2 {
		actualLen = len(raw) - 2
	}
	return string(raw[2 : 2+actualLen]), nil
}

// encodeString packs s as {maxLen=0xFE, actualLen, bytes}, truncating at
// 254 bytes (spec §4.6 STRING write).
func encodeString(s string) []byte {
	if len(s) > 254 {
		s = s[:254]
	}
	out := make([]byte, 2+len(s))
	out[0] = 0xFE
	out[1] = byte(len(s))
	copy(out[2:], s)
	return out
}

func decodeWString(raw []byte) (string, error) {
	if len(raw) < 4 {
		return "", &DataTypeError{Type: TypeWString, Reason: "need at least 4 header bytes"}
	}
	charCount := int(binary.BigEndian.Uint16(raw[2:4]))
	byteLen := charCount * 2
	if byteLen > len(raw)-4 {
		byteLen = len(raw) - 4
	}
	chars := make([]byte, byteLen/2)
	for i := range chars {
		chars[i] = raw[4+i*2+1]
	}
	return string(chars), nil
}

// decodeDateTime decodes the 8-byte BCD DATE_AND_TIME value (spec §4.7,
// scenario S4). A byte with a non-decimal nibble, or a month, day, hour,
// minute or second field decoding to more than 59, is treated as
// corruption and the whole value falls back to the 1990-01-01 epoch.
func decodeDateTime(raw []byte) (time.Time, error) {
	if len(raw) < 8 {
		return time.Time{}, &DataTypeError{Type: TypeDateTime, Reason: "need 8 bytes"}
	}
	yr, ok1 := bcdToDecimal(raw[0])
	mo, ok2 := bcdToDecimal(raw[1])
	dy, ok3 := bcdToDecimal(raw[2])
	hr, ok4 := bcdToDecimal(raw[3])
	mi, ok5 := bcdToDecimal(raw[4])
	sec, ok6 := bcdToDecimal(raw[5])
	msecHi, ok7 := bcdToDecimal(raw[6])
	msecLoDow, ok8 := bcdToDecimal(raw[7])
	if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 || !ok6 || !ok7 || !ok8 ||
		mo > 59 || dy > 59 || hr > 59 || mi > 59 || sec > 59 {
		return dateEpoch, nil
	}
	year := 1900 + yr
	if yr <= 89 {
		year = 2000 + yr
	}
	ms := msecHi*10 + msecLoDow/10
	return time.Date(year, time.Month(mo), dy, hr, mi, sec, ms*int(time.Millisecond), time.UTC), nil
}

// encodeDateTime packs t into the 8-byte BCD DATE_AND_TIME wire format,
// including the day-of-week/millisecond split (spec §4.7).
func encodeDateTime(t time.Time) []byte {
	yr := t.Year() % 100
	ms := t.Nanosecond() / int(time.Millisecond)
	dow := int(t.Weekday()) + 1 // Sunday=1 ... Saturday=7, per spec §4.7
	msecHi := ms / 10
	msecLo := (ms%10)*10 + dow
	return []byte{
		decimalToBCD(yr),
		decimalToBCD(int(t.Month())),
		decimalToBCD(t.Day()),
		decimalToBCD(t.Hour()),
		decimalToBCD(t.Minute()),
		decimalToBCD(t.Second()),
		decimalToBCD(msecHi),
		decimalToBCD(msecLo),
	}
}

// decodeS5Time decodes the 2-byte BCD S5TIME value: the wire bytes are the
// four-digit BCD encoding of (milliseconds / 10) (spec §4.7, scenario S5).
func decodeS5Time(raw []byte) (time.Duration, error) {
	if len(raw) < 2 {
		return 0, &DataTypeError{Type: TypeS5Time, Reason: "need 2 bytes"}
	}
	hi, ok1 := bcdToDecimal(raw[0])
	lo, ok2 := bcdToDecimal(raw[1])
	if !ok1 || !ok2 {
		return 0, &DataTypeError{Type: TypeS5Time, Reason: "invalid BCD digit"}
	}
	value := hi*100 + lo
	return time.Duration(value*10) * time.Millisecond, nil
}

// encodeS5Time is the inverse of decodeS5Time (scenario S5: 12340ms -> 12 34).
func encodeS5Time(d time.Duration) []byte {
	value := int(d/time.Millisecond) / 10
	return []byte{decimalToBCD(value / 100), decimalToBCD(value % 100)}
}

// decodeBCDCounter decodes a 2-byte BCD COUNTER/TIMER value as hi*100+lo
// (spec §4.7; TIMER follows the COUNTER pattern per Open Question 2).
func decodeBCDCounter(raw []byte) (int, error) {
	if len(raw) < 2 {
		return 0, &DataTypeError{Type: TypeCounter, Reason: "need 2 bytes"}
	}
	hi, ok1 := bcdToDecimal(raw[0])
	lo, ok2 := bcdToDecimal(raw[1])
	if !ok1 || !ok2 {
		return 0, &DataTypeError{Type: TypeCounter, Reason: "invalid BCD digit"}
	}
	return hi*100 + lo, nil
}

func encodeBCDCounter(v int) []byte {
	return []byte{decimalToBCD(v / 100), decimalToBCD(v % 100)}
}

func decodeIECCounter(raw []byte) (IECCounter, error) {
	if len(raw) < 9 {
		return IECCounter{}, &DataTypeError{Type: TypeIECCounter, Reason: "need 9 bytes"}
	}
	return IECCounter{
		Flags: raw[0],
		PV:    int16(binary.BigEndian.Uint16(raw[2:4])),
		Q:     raw[4] != 0,
		CV:    int16(binary.BigEndian.Uint16(raw[6:8])),
		CDUO:  raw[8] != 0,
	}, nil
}

func encodeIECCounter(c IECCounter) []byte {
	out := make([]byte, 9)
	out[0] = c.Flags
	binary.BigEndian.PutUint16(out[2:4], uint16(c.PV))
	if c.Q {
		out[4] = 1
	}
	binary.BigEndian.PutUint16(out[6:8], uint16(c.CV))
	if c.CDUO {
		out[8] = 1
	}
	return out
}

func decodeIECTimer(raw []byte) (IECTimer, error) {
	if len(raw) < 22 {
		return IECTimer{}, &DataTypeError{Type: TypeIECTimer, Reason: "need 22 bytes"}
	}
	return IECTimer{
		Flags: raw[0],
		PT:    int32(binary.BigEndian.Uint32(raw[2:6])),
		Q:     raw[6] != 0,
		ET:    int32(binary.BigEndian.Uint32(raw[8:12])),
		ETDUO: raw[12] != 0,
	}, nil
}

func encodeIECTimer(tmr IECTimer) []byte {
	out := make([]byte, 22)
	out[0] = tmr.Flags
	binary.BigEndian.PutUint32(out[2:6], uint32(tmr.PT))
	if tmr.Q {
		out[6] = 1
	}
	binary.BigEndian.PutUint32(out[8:12], uint32(tmr.ET))
	if tmr.ETDUO {
		out[12] = 1
	}
	return out
}

// decodeArray splits raw into count := len(raw)/elemSize elements of base
// and decodes each, returning a slice of the matching Go element type.
func decodeArray(raw []byte, base Type) (interface{}, error) {
	elemSize := TypeSize(base)
	if elemSize == 0 {
		return nil, &DataTypeError{Type: base, Reason: "array of variable-size type not supported"}
	}
	count := len(raw) / elemSize
	switch base {
	case TypeBool:
		out := make([]bool, count)
		for i := range out {
			v, _ := DecodeValue(raw[i*elemSize:], base, -1)
			out[i] = v.(bool)
		}
		return out, nil
	case TypeInt:
		out := make([]int16, count)
		for i := range out {
			v, _ := DecodeValue(raw[i*elemSize:], base, -1)
			out[i] = v.(int16)
		}
		return out, nil
	case TypeDInt:
		out := make([]int32, count)
		for i := range out {
			v, _ := DecodeValue(raw[i*elemSize:], base, -1)
			out[i] = v.(int32)
		}
		return out, nil
	case TypeReal:
		out := make([]float32, count)
		for i := range out {
			v, _ := DecodeValue(raw[i*elemSize:], base, -1)
			out[i] = v.(float32)
		}
		return out, nil
	case TypeByte:
		out := make([]byte, count)
		copy(out, raw[:count])
		return out, nil
	case TypeWord:
		out := make([]uint16, count)
		for i := range out {
			v, _ := DecodeValue(raw[i*elemSize:], base, -1)
			out[i] = v.(uint16)
		}
		return out, nil
	case TypeDWord:
		out := make([]uint32, count)
		for i := range out {
			v, _ := DecodeValue(raw[i*elemSize:], base, -1)
			out[i] = v.(uint32)
		}
		return out, nil
	default:
		return nil, &DataTypeError{Type: base, Reason: "array decode not supported for this type"}
	}
}

package s7

import (
	"math"
	"testing"
	"time"
)

func TestDecodeValueScalars(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		typ  Type
		bit  int
		want interface{}
	}{
		{"bool byte nonzero", []byte{0x01}, TypeBool, -1, true},
		{"bool bit set", []byte{0b0000_0100}, TypeBool, 2, true},
		{"bool bit clear", []byte{0b0000_0100}, TypeBool, 0, false},
		{"byte", []byte{0xAB}, TypeByte, -1, byte(0xAB)},
		{"sint negative", []byte{0xFF}, TypeSInt, -1, int8(-1)},
		{"word", []byte{0x12, 0x34}, TypeWord, -1, uint16(0x1234)},
		{"int negative", []byte{0xFF, 0xFF}, TypeInt, -1, int16(-1)},
		{"dword", []byte{0x01, 0x02, 0x03, 0x04}, TypeDWord, -1, uint32(0x01020304)},
		{"dint negative", []byte{0xFF, 0xFF, 0xFF, 0xFF}, TypeDInt, -1, int32(-1)},
		{"lint", []byte{0, 0, 0, 0, 0, 0, 0, 1}, TypeLInt, -1, int64(1)},
		{"ulint", []byte{0, 0, 0, 0, 0, 0, 0, 1}, TypeULInt, -1, uint64(1)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeValue(tc.raw, tc.typ, tc.bit)
			if err != nil {
				t.Fatalf("DecodeValue() error: %v", err)
			}
			if got != tc.want {
				t.Errorf("DecodeValue() = %#v, want %#v", got, tc.want)
			}
		})
	}
}

func TestDecodeValueReal(t *testing.T) {
	raw := make([]byte, 4)
	want := float32(3.14)
	EncodeValue(want, TypeReal)
	enc, err := EncodeValue(want, TypeReal)
	if err != nil {
		t.Fatalf("EncodeValue() error: %v", err)
	}
	copy(raw, enc)
	got, err := DecodeValue(raw, TypeReal, -1)
	if err != nil {
		t.Fatalf("DecodeValue() error: %v", err)
	}
	if got.(float32) != want {
		t.Errorf("round trip REAL = %v, want %v", got, want)
	}
}

func TestDecodeValueLReal(t *testing.T) {
	want := math.Pi
	enc, err := EncodeValue(want, TypeLReal)
	if err != nil {
		t.Fatalf("EncodeValue() error: %v", err)
	}
	got, err := DecodeValue(enc, TypeLReal, -1)
	if err != nil {
		t.Fatalf("DecodeValue() error: %v", err)
	}
	if got.(float64) != want {
		t.Errorf("round trip LREAL = %v, want %v", got, want)
	}
}

func TestStringRoundTrip(t *testing.T) {
	enc := encodeString("hello")
	if enc[0] != 0xFE || enc[1] != 5 {
		t.Fatalf("encodeString header = %x, want maxLen=0xFE actualLen=5", enc[:2])
	}
	got, err := decodeString(enc)
	if err != nil {
		t.Fatalf("decodeString() error: %v", err)
	}
	if got != "hello" {
		t.Errorf("decodeString() = %q, want %q", got, "hello")
	}
}

func TestStringTruncatesAt254(t *testing.T) {
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'a'
	}
	enc := encodeString(string(long))
	if enc[1] != 254 {
		t.Errorf("encodeString actualLen = %d, want 254", enc[1])
	}
}

func TestDecodeWString(t *testing.T) {
	// {maxChars=2bytes, actualChars=2bytes, UTF-16BE chars}
	raw := []byte{0x00, 0x0A, 0x00, 0x02, 0x00, 'h', 0x00, 'i'}
	got, err := decodeWString(raw)
	if err != nil {
		t.Fatalf("decodeWString() error: %v", err)
	}
	if got != "hi" {
		t.Errorf("decodeWString() = %q, want %q", got, "hi")
	}
}

func TestDateRoundTrip(t *testing.T) {
	want := time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC)
	enc, err := EncodeValue(want, TypeDate)
	if err != nil {
		t.Fatalf("EncodeValue() error: %v", err)
	}
	got, err := DecodeValue(enc, TypeDate, -1)
	if err != nil {
		t.Fatalf("DecodeValue() error: %v", err)
	}
	if !got.(time.Time).Equal(want) {
		t.Errorf("round trip DATE = %v, want %v", got, want)
	}
}

// TestDecodeDateTimeInvalidMonth reproduces the literal worked example: a
// BCD month field of 0x93 decodes to 93, which is > 59 and so is treated
// as corruption, falling back to the 1990-01-01 epoch rather than erroring.
func TestDecodeDateTimeInvalidMonth(t *testing.T) {
	raw := []byte{0x24, 0x93, 0x15, 0x10, 0x30, 0x00, 0x00, 0x01}
	got, err := decodeDateTime(raw)
	if err != nil {
		t.Fatalf("decodeDateTime() error: %v", err)
	}
	if !got.Equal(dateEpoch) {
		t.Errorf("decodeDateTime() with invalid month = %v, want epoch %v", got, dateEpoch)
	}
}

func TestDateTimeRoundTrip(t *testing.T) {
	want := time.Date(2024, time.June, 5, 13, 45, 30, 120*int(time.Millisecond), time.UTC)
	enc := encodeDateTime(want)
	got, err := decodeDateTime(enc)
	if err != nil {
		t.Fatalf("decodeDateTime() error: %v", err)
	}
	if got.Year() != want.Year() || got.Month() != want.Month() || got.Day() != want.Day() ||
		got.Hour() != want.Hour() || got.Minute() != want.Minute() || got.Second() != want.Second() {
		t.Errorf("round trip DATE_AND_TIME = %v, want %v", got, want)
	}
}

// TestS5TimeWorkedExample reproduces the literal spec scenario: encoding
// 12,340ms packs the BCD digits of 1234 (12340/10) into bytes 0x12, 0x34.
func TestS5TimeWorkedExample(t *testing.T) {
	d := 12340 * time.Millisecond
	enc := encodeS5Time(d)
	want := []byte{0x12, 0x34}
	if enc[0] != want[0] || enc[1] != want[1] {
		t.Fatalf("encodeS5Time(12340ms) = % x, want % x", enc, want)
	}
	got, err := decodeS5Time(enc)
	if err != nil {
		t.Fatalf("decodeS5Time() error: %v", err)
	}
	if got != d {
		t.Errorf("decodeS5Time() round trip = %v, want %v", got, d)
	}
}

func TestBCDCounterRoundTrip(t *testing.T) {
	for _, v := range []int{0, 1, 42, 99, 999} {
		enc := encodeBCDCounter(v)
		got, err := decodeBCDCounter(enc)
		if err != nil {
			t.Fatalf("decodeBCDCounter(%d) error: %v", v, err)
		}
		if got != v {
			t.Errorf("BCD counter round trip(%d) = %d", v, got)
		}
	}
}

func TestIECCounterRoundTrip(t *testing.T) {
	want := IECCounter{Flags: 0x03, PV: 100, Q: true, CV: 42, CDUO: false}
	enc := encodeIECCounter(want)
	got, err := decodeIECCounter(enc)
	if err != nil {
		t.Fatalf("decodeIECCounter() error: %v", err)
	}
	if got != want {
		t.Errorf("IECCounter round trip = %+v, want %+v", got, want)
	}
}

func TestIECTimerRoundTrip(t *testing.T) {
	want := IECTimer{Flags: 0x01, PT: 5000, Q: true, ET: 2500, ETDUO: false}
	enc := encodeIECTimer(want)
	if len(enc) != 22 {
		t.Fatalf("encodeIECTimer() len = %d, want 22", len(enc))
	}
	got, err := decodeIECTimer(enc)
	if err != nil {
		t.Fatalf("decodeIECTimer() error: %v", err)
	}
	if got != want {
		t.Errorf("IECTimer round trip = %+v, want %+v", got, want)
	}
}

func TestDecodeArrayInt(t *testing.T) {
	raw := []byte{0x00, 0x01, 0x00, 0x02, 0xFF, 0xFF}
	got, err := decodeArray(raw, TypeInt)
	if err != nil {
		t.Fatalf("decodeArray() error: %v", err)
	}
	want := []int16{1, 2, -1}
	arr := got.([]int16)
	if len(arr) != len(want) {
		t.Fatalf("decodeArray() len = %d, want %d", len(arr), len(want))
	}
	for i := range want {
		if arr[i] != want[i] {
			t.Errorf("decodeArray()[%d] = %d, want %d", i, arr[i], want[i])
		}
	}
}

func TestDecodeArrayBool(t *testing.T) {
	got, err := DecodeValue([]byte{0x01, 0x00, 0x01}, MakeArrayType(TypeBool), -1)
	if err != nil {
		t.Fatalf("DecodeValue() error: %v", err)
	}
	arr := got.([]bool)
	if len(arr) != 3 || !arr[0] || arr[1] || !arr[2] {
		t.Errorf("decodeArray(bool) = %v, want [true false true]", arr)
	}
}

func TestBcdToDecimalInvalidNibble(t *testing.T) {
	if _, ok := bcdToDecimal(0xFA); ok {
		t.Error("bcdToDecimal(0xFA) ok = true, want false (invalid nibble)")
	}
	v, ok := bcdToDecimal(0x42)
	if !ok || v != 42 {
		t.Errorf("bcdToDecimal(0x42) = %d,%v want 42,true", v, ok)
	}
}

package s7

import (
	"errors"
	"testing"
)

func TestTransportErrorUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := &TransportError{Op: "send", Cause: cause}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(TransportError, cause) = false, want true")
	}
}

func TestStateErrorMessage(t *testing.T) {
	err := &StateError{Op: "ReadTags", Have: TcpOpen, Required: PduNegotiated}
	want := "s7: ReadTags requires state PduNegotiated, have TcpOpen"
	if got := err.Error(); got != want {
		t.Errorf("StateError.Error() = %q, want %q", got, want)
	}
}

func TestErrorClassErrorMessage(t *testing.T) {
	err := &ErrorClassError{Class: 0x85, Code: 0x01}
	if got := err.Error(); got == "" {
		t.Error("ErrorClassError.Error() = empty string")
	}
}

func TestReturnCodeErrorKnownCodes(t *testing.T) {
	tests := []struct {
		code byte
		want string
	}{
		{returnCodeAccessDenied, "s7: access denied"},
		{returnCodeAddressError, "s7: invalid address"},
		{returnCodeObjectMissing, "s7: object does not exist"},
	}
	for _, tc := range tests {
		err := &ReturnCodeError{Code: tc.code}
		if got := err.Error(); got != tc.want {
			t.Errorf("ReturnCodeError{%#x}.Error() = %q, want %q", tc.code, got, tc.want)
		}
	}
}

func TestDataTypeErrorIncludesTypeName(t *testing.T) {
	err := &DataTypeError{Type: TypeWord, Reason: "need 2 bytes"}
	want := "s7: data type WORD: need 2 bytes"
	if got := err.Error(); got != want {
		t.Errorf("DataTypeError.Error() = %q, want %q", got, want)
	}
}

func TestAddressParseErrorMessage(t *testing.T) {
	err := &AddressParseError{Address: "XY", Reason: "no area tag found"}
	if got := err.Error(); got != `s7: address "XY": no area tag found` {
		t.Errorf("AddressParseError.Error() = %q", got)
	}
}

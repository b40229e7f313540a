package s7

import (
	"errors"
	"fmt"
)

// ErrTransportClosed is returned by operations attempted on a transport that
// has already been closed, either by the caller or after a prior fatal error.
var ErrTransportClosed = errors.New("s7: transport closed")

// TransportError wraps a socket open/send/recv/close failure, including
// timeouts. Its Timeout method reports whether the underlying cause was a
// deadline expiry.
type TransportError struct {
	Op    string // "dial", "send", "recv", "close"
	Cause error
}

func (e *TransportError) Error() string { return fmt.Sprintf("s7: transport %s: %v", e.Op, e.Cause) }
func (e *TransportError) Unwrap() error { return e.Cause }

// Timeout reports whether the transport failure was a deadline expiry.
func (e *TransportError) Timeout() bool {
	var te interface{ Timeout() bool }
	return errors.As(e.Cause, &te) && te.Timeout()
}

// ProtocolError reports a malformed frame: bad TPKT length, unexpected COTP
// type, S7 protocol-id mismatch, or a short read. Desync at this level is
// fatal — the connection must be discarded.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string { return "s7: protocol error: " + e.Reason }

// StateError reports an operation attempted in the wrong ConnectionState.
type StateError struct {
	Op       string
	Have     ConnectionState
	Required ConnectionState
}

func (e *StateError) Error() string {
	return fmt.Sprintf("s7: %s requires state %s, have %s", e.Op, e.Required, e.Have)
}

// ErrorClassError is a header-level S7 error: errorClass/errorCode from the
// Ack/AckData S7 header.
type ErrorClassError struct {
	Class byte
	Code  byte
}

func (e *ErrorClassError) Error() string {
	return fmt.Sprintf("s7: %s (class 0x%02X code 0x%02X)", errorClassMessage(e.Class), e.Class, e.Code)
}

func errorClassMessage(class byte) string {
	switch class {
	case 0x00:
		return "no error"
	case 0x81:
		return "application relationship error"
	case 0x82:
		return "object definition error"
	case 0x83:
		return "no resources available"
	case 0x84:
		return "service error"
	case 0x85:
		return "no resource available (PDU size likely exceeded)"
	case 0x87:
		return "access error"
	default:
		return "unknown error class"
	}
}

// ParamError is a header-level parameter error (the function-specific
// paramErrorCode field, distinct from Class/Code above).
type ParamError struct {
	Code uint16
}

func (e *ParamError) Error() string { return fmt.Sprintf("s7: parameter error 0x%04X", e.Code) }

// ReturnCodeError is a per-item data error from a read/write reply. Unlike
// the header-level errors, it never aborts a batch — it is attached to the
// offending Tag.
type ReturnCodeError struct {
	Code byte
}

const (
	returnCodeSuccess          = 0xFF
	returnCodeHardwareFault    = 0x01
	returnCodeAccessDenied     = 0x03
	returnCodeAddressError    = 0x05
	returnCodeTypeUnsupported  = 0x06
	returnCodeTypeInconsistent = 0x07
	returnCodeObjectMissing    = 0x0A
)

func (e *ReturnCodeError) Error() string {
	switch e.Code {
	case returnCodeHardwareFault:
		return "s7: hardware fault"
	case returnCodeAccessDenied:
		return "s7: access denied"
	case returnCodeAddressError:
		return "s7: invalid address"
	case returnCodeTypeUnsupported:
		return "s7: data type not supported"
	case returnCodeTypeInconsistent:
		return "s7: data type/size mismatch"
	case returnCodeObjectMissing:
		return "s7: object does not exist"
	default:
		return fmt.Sprintf("s7: data item error 0x%02X", e.Code)
	}
}

// DataTypeError reports an unknown type, a zero size, or a value that
// cannot be represented on encode.
type DataTypeError struct {
	Type   Type
	Reason string
}

func (e *DataTypeError) Error() string {
	return fmt.Sprintf("s7: data type %s: %s", TypeName(e.Type), e.Reason)
}

// AddressParseError reports a textual address that could not be tokenised.
type AddressParseError struct {
	Address string
	Reason  string
}

func (e *AddressParseError) Error() string {
	return fmt.Sprintf("s7: address %q: %s", e.Address, e.Reason)
}

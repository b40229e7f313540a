package s7

import (
	"encoding/binary"
	"fmt"
	"io"
)

// TPKT / COTP / S7 wire constants (RFC 1006, ISO 8073, S7comm).
const (
	tpktVersion    = 0x03
	tpktHeaderSize = 4

	cotpCR = 0xE0 // Connection Request
	cotpCC = 0xD0 // Connection Confirm
	cotpDT = 0xF0 // Data Transfer

	cotpParamSrcTSAP  = 0xC1
	cotpParamDstTSAP  = 0xC2
	cotpParamTPDUSize = 0xC0
	cotpTPDUSize1024  = 0x0A // log2(1024)

	s7ProtocolID = 0x32

	rosctrJob      = 0x01
	rosctrAck      = 0x02
	rosctrAckData  = 0x03
	rosctrUserData = 0x07
)

// tpktEncode prepends the 4-byte TPKT header to payload. length covers the
// whole frame including the header itself (spec §4.1).
func tpktEncode(payload []byte) []byte {
	length := len(payload) + tpktHeaderSize
	out := make([]byte, 0, length)
	out = append(out, tpktVersion, 0x00, byte(length>>8), byte(length))
	return append(out, payload...)
}

// tpktDecode reads one TPKT frame from r and returns the payload past the
// 4-byte header. It cross-checks the declared length against the number of
// bytes actually available, reading further if the peer split the frame
// across multiple recvs (spec §4.1).
func tpktDecode(r io.Reader) ([]byte, error) {
	header := make([]byte, tpktHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, &ProtocolError{Reason: fmt.Sprintf("short TPKT header: %v", err)}
	}
	if header[0] != tpktVersion {
		return nil, &ProtocolError{Reason: fmt.Sprintf("invalid TPKT version 0x%02X", header[0])}
	}
	length := int(binary.BigEndian.Uint16(header[2:4]))
	if length < tpktHeaderSize {
		return nil, &ProtocolError{Reason: fmt.Sprintf("invalid TPKT length %d", length)}
	}
	payload := make([]byte, length-tpktHeaderSize)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, &ProtocolError{Reason: fmt.Sprintf("short TPKT payload: %v", err)}
	}
	return payload, nil
}

// buildCOTPConnectionRequest builds the 22-byte COTP Connection Request
// (class 0) used in the ISO connect step (spec §4.2, scenario S1).
func buildCOTPConnectionRequest(localTSAP, remoteTSAP uint16) []byte {
	cr := []byte{
		0x00,       // length, patched below
		cotpCR,     // PDU type
		0x00, 0x00, // destination reference
		0x00, 0x01, // source reference
		0x00, // class 0, no options
	}
	cr = append(cr, cotpParamSrcTSAP, 0x02, byte(localTSAP>>8), byte(localTSAP))
	cr = append(cr, cotpParamDstTSAP, 0x02, byte(remoteTSAP>>8), byte(remoteTSAP))
	cr = append(cr, cotpParamTPDUSize, 0x01, cotpTPDUSize1024)
	cr[0] = byte(len(cr) - 1)
	return cr
}

// parseCOTPConnectionConfirm validates a COTP Connection Confirm reply.
func parseCOTPConnectionConfirm(frame []byte) error {
	if len(frame) < 2 {
		return &ProtocolError{Reason: "COTP CC too short"}
	}
	if frame[1] != cotpCC {
		return &ProtocolError{Reason: fmt.Sprintf("expected COTP CC (0x%02X), got 0x%02X", cotpCC, frame[1])}
	}
	return nil
}

// wrapCOTPData prepends the 3-byte COTP Data-Transfer header used to carry
// every S7 PDU once the ISO connection is established.
func wrapCOTPData(s7pdu []byte) []byte {
	out := make([]byte, 0, 3+len(s7pdu))
	out = append(out, 0x02, cotpDT, 0x80)
	return append(out, s7pdu...)
}

// unwrapCOTPData strips the 3-byte COTP DT header, verifying its PDU type.
func unwrapCOTPData(frame []byte) ([]byte, error) {
	if len(frame) < 3 {
		return nil, &ProtocolError{Reason: "COTP DT frame too short"}
	}
	if frame[1] != cotpDT {
		return nil, &ProtocolError{Reason: fmt.Sprintf("expected COTP DT (0x%02X), got 0x%02X", cotpDT, frame[1])}
	}
	return frame[3:], nil
}

// s7Header is the parsed form of an S7 PDU header (10 bytes for Job/
// UserData, 12 bytes for Ack/AckData which add errorClass/errorCode).
type s7Header struct {
	ROSCTR    byte
	PDURef    uint16
	ParamLen  uint16
	DataLen   uint16
	ErrClass  byte
	ErrCode   byte
	headerLen int // 10 or 12
}

// buildS7PDU assembles a 10-byte-header S7 PDU (Job or UserData) followed
// by params and data.
func buildS7PDU(rosctr byte, pduRef uint16, params, data []byte) []byte {
	paramLen := len(params)
	dataLen := len(data)
	out := make([]byte, 0, 10+paramLen+dataLen)
	out = append(out,
		s7ProtocolID, rosctr,
		0x00, 0x00,
		byte(pduRef>>8), byte(pduRef),
		byte(paramLen>>8), byte(paramLen),
		byte(dataLen>>8), byte(dataLen),
	)
	out = append(out, params...)
	out = append(out, data...)
	return out
}

// buildS7Job assembles a Job PDU: 10-byte header followed by params and data.
func buildS7Job(pduRef uint16, params, data []byte) []byte {
	return buildS7PDU(rosctrJob, pduRef, params, data)
}

// parseS7Header parses the S7 header at the front of data and returns it,
// with the header's byte length recorded in it (so Params/Data can slice
// the parameter and data sections).
func parseS7Header(data []byte) (s7Header, error) {
	if len(data) < 10 {
		return s7Header{}, &ProtocolError{Reason: "S7 header too short"}
	}
	if data[0] != s7ProtocolID {
		return s7Header{}, &ProtocolError{Reason: fmt.Sprintf("invalid S7 protocol id 0x%02X", data[0])}
	}
	hdr := s7Header{
		ROSCTR:   data[1],
		PDURef:   binary.BigEndian.Uint16(data[4:6]),
		ParamLen: binary.BigEndian.Uint16(data[6:8]),
		DataLen:  binary.BigEndian.Uint16(data[8:10]),
	}
	switch hdr.ROSCTR {
	case rosctrAck, rosctrAckData:
		if len(data) < 12 {
			return s7Header{}, &ProtocolError{Reason: "S7 ack header too short"}
		}
		hdr.ErrClass = data[10]
		hdr.ErrCode = data[11]
		hdr.headerLen = 12
	default:
		hdr.headerLen = 10
	}
	if len(data) < hdr.headerLen+int(hdr.ParamLen)+int(hdr.DataLen) {
		return s7Header{}, &ProtocolError{Reason: "S7 header declares more bytes than present"}
	}
	return hdr, nil
}

// Params returns the parameter section of the PDU described by hdr.
func (h s7Header) Params(data []byte) []byte {
	return data[h.headerLen : h.headerLen+int(h.ParamLen)]
}

// Data returns the data section of the PDU described by hdr.
func (h s7Header) Data(data []byte) []byte {
	start := h.headerLen + int(h.ParamLen)
	return data[start : start+int(h.DataLen)]
}

// errorClassError returns the header-level error, if any.
func (h s7Header) errorClassError() error {
	if h.ErrClass != 0 || h.ErrCode != 0 {
		return &ErrorClassError{Class: h.ErrClass, Code: h.ErrCode}
	}
	return nil
}

package s7

import (
	"encoding/binary"
	"fmt"
)

// SZL (Systemzustandsliste) identifiers used by the caller-visible read_cpu_*
// operations (spec §6).
const (
	szlCatalog     = 0x0011
	szlCPUID       = 0x001C
	szlLEDs        = 0x0074
	szlDiagnostics = 0x00A0
	szlCommProc    = 0x0131
	szlProtection  = 0x0232
	szlCPUStatus   = 0x0424
)

const (
	userDataFuncGroupCPU  = 0x04
	userDataMethodRequest = 0x11
	userDataMethodNext    = 0x12
	userDataSubfuncReadSZL = 0x01
)

// buildUserDataParamHeader builds the 8-byte function header shared by
// every SZL request/response.
func buildUserDataParamHeader(method byte) []byte {
	return buildUserDataParamHeaderFunc(userDataFuncGroupCPU, method, userDataSubfuncReadSZL)
}

// readSZL implements the fragmented SZL reassembly loop (spec §4.4): issue
// a FIRST request for (id, index), then NEXT requests while the reply
// marks more fragments pending, concatenating payloads in order.
func (c *Client) readSZL(id, index uint16) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readSZLLocked(id, index)
}

func (c *Client) readSZLLocked(id, index uint16) ([]byte, error) {
	params := buildUserDataParamHeader(userDataMethodRequest)
	data := []byte{
		0xFF, 0x09, // return code (unused on request), transport size: octet string
		0x00, 0x04, // length: 4 bytes follow
		byte(id >> 8), byte(id),
		byte(index >> 8), byte(index),
	}

	var result []byte
	for {
		_, body, err := c.exchangeRosctr(rosctrUserData, params, data)
		if err != nil {
			if _, ok := err.(*ErrorClassError); ok {
				return result, nil
			}
			return result, err
		}
		payload, lastDataUnit, err := parseSZLFragment(body)
		if err != nil {
			return result, err
		}
		result = append(result, payload...)
		if !lastDataUnit {
			break
		}
		params = buildUserDataParamHeader(userDataMethodNext)
		data = []byte{0xFF, 0x09, 0x00, 0x04, byte(id >> 8), byte(id), byte(index >> 8), byte(index)}
	}
	return result, nil
}

// parseSZLFragment pulls one fragment's payload out of a UserData reply,
// and reports whether more fragments are pending (last-data-unit == 0x01).
func parseSZLFragment(body []byte) (payload []byte, more bool, err error) {
	hdr, err := parseS7Header(body)
	if err != nil {
		return nil, false, err
	}
	if err := hdr.errorClassError(); err != nil {
		return nil, false, err
	}
	params := hdr.Params(body)
	if len(params) < 8 {
		return nil, false, &ProtocolError{Reason: "SZL response parameter section too short"}
	}
	data := hdr.Data(body)
	if len(data) < 8 {
		return nil, false, &ProtocolError{Reason: "SZL response data section too short"}
	}
	more = data[0] == 0x01
	return data[8:], more, nil
}

// szlSections splits a reassembled SZL buffer into its section-length ×
// section-count entries (spec §4.4's 4-byte buffer header).
func szlSections(buf []byte) (sectionLen int, entries [][]byte, err error) {
	if len(buf) < 4 {
		return 0, nil, &ProtocolError{Reason: "SZL buffer too short for header"}
	}
	sectionLen = int(binary.BigEndian.Uint16(buf[0:2]))
	count := int(binary.BigEndian.Uint16(buf[2:4]))
	pos := 4
	for i := 0; i < count; i++ {
		if pos+sectionLen > len(buf) {
			return sectionLen, entries, &ProtocolError{Reason: fmt.Sprintf("SZL truncated at entry %d of %d", i, count)}
		}
		entries = append(entries, buf[pos:pos+sectionLen])
		pos += sectionLen
	}
	return sectionLen, entries, nil
}

// CPUInfo is the parsed form of SZL 0x001C (module identification).
type CPUInfo struct {
	ModuleTypeName  string
	SerialNumber    string
	ASName          string
	Copyright       string
	ModuleName      string
}

func parseCPUInfo(buf []byte) (CPUInfo, error) {
	_, entries, err := szlSections(buf)
	if err != nil && len(entries) == 0 {
		return CPUInfo{}, err
	}
	var info CPUInfo
	for _, e := range entries {
		if len(e) < 2 {
			continue
		}
		idx := binary.BigEndian.Uint16(e[0:2])
		text := trimmedASCII(e[2:])
		switch idx {
		case 0x0001:
			info.ModuleTypeName = text
		case 0x0006:
			info.SerialNumber = text
		case 0x0002:
			info.ASName = text
		case 0x0003:
			info.ModuleName = text
		case 0x0004:
			info.Copyright = text
		}
	}
	return info, nil
}

// readCPUInfoLocked reads SZL 0x001C. Must be called with mu held and in
// state PduNegotiated; Connect issues it as the first exchange after PDU
// negotiation.
func (c *Client) readCPUInfoLocked() (CPUInfo, error) {
	buf, err := c.readSZLLocked(szlCPUID, 0x0000)
	if err != nil {
		return CPUInfo{}, err
	}
	return parseCPUInfo(buf)
}

// CatalogCode is one entry of SZL 0x0011 (hardware/firmware catalogue).
type CatalogCode struct {
	Index int
	Text  string
}

func parseCatalog(buf []byte) ([]CatalogCode, error) {
	_, entries, err := szlSections(buf)
	if err != nil && len(entries) == 0 {
		return nil, err
	}
	codes := make([]CatalogCode, 0, len(entries))
	for _, e := range entries {
		if len(e) < 2 {
			continue
		}
		idx := int(binary.BigEndian.Uint16(e[0:2]))
		codes = append(codes, CatalogCode{Index: idx, Text: trimmedASCII(e[2:])})
	}
	return codes, nil
}

// CPUStatus is the parsed form of SZL 0x0424.
type CPUStatus struct {
	Mode       byte // raw mode byte, see IsRun/IsStop helpers
	StateText  string
}

const (
	cpuModeRun  = 0x08
	cpuModeStop = 0x04
)

func (s CPUStatus) IsRun() bool  { return s.Mode == cpuModeRun }
func (s CPUStatus) IsStop() bool { return s.Mode == cpuModeStop }

func parseCPUStatus(buf []byte) (CPUStatus, error) {
	_, entries, err := szlSections(buf)
	if err != nil && len(entries) == 0 {
		return CPUStatus{}, err
	}
	for _, e := range entries {
		if len(e) < 4 {
			continue
		}
		mode := e[2]
		status := CPUStatus{Mode: mode}
		switch mode {
		case cpuModeRun:
			status.StateText = "RUN"
		case cpuModeStop:
			status.StateText = "STOP"
		default:
			status.StateText = "UNKNOWN"
		}
		return status, nil
	}
	return CPUStatus{StateText: "UNKNOWN"}, nil
}

// CPULed is one LED entry of SZL 0x0074.
type CPULed struct {
	ID    int
	State byte
}

func parseLEDs(buf []byte) ([]CPULed, error) {
	_, entries, err := szlSections(buf)
	if err != nil && len(entries) == 0 {
		return nil, err
	}
	leds := make([]CPULed, 0, len(entries))
	for i, e := range entries {
		if len(e) < 1 {
			continue
		}
		leds = append(leds, CPULed{ID: i, State: e[0]})
	}
	return leds, nil
}

// Protection is the parsed form of SZL 0x0232 index 0x0004.
type Protection struct {
	Level        int
	RunModeLevel int
}

func parseProtection(buf []byte) (Protection, error) {
	_, entries, err := szlSections(buf)
	if err != nil && len(entries) == 0 {
		return Protection{}, err
	}
	if len(entries) == 0 || len(entries[0]) < 4 {
		return Protection{}, &ProtocolError{Reason: "protection SZL entry too short"}
	}
	e := entries[0]
	return Protection{Level: int(e[0]), RunModeLevel: int(e[1])}, nil
}

// CommProc is the parsed form of SZL 0x0131 (communication processor).
type CommProc struct {
	MaxPDUSize     int
	MaxConnections int
}

func parseCommProc(buf []byte) (CommProc, error) {
	_, entries, err := szlSections(buf)
	if err != nil && len(entries) == 0 {
		return CommProc{}, err
	}
	if len(entries) == 0 || len(entries[0]) < 8 {
		return CommProc{}, &ProtocolError{Reason: "comm-proc SZL entry too short"}
	}
	e := entries[0]
	return CommProc{
		MaxPDUSize:     int(binary.BigEndian.Uint16(e[2:4])),
		MaxConnections: int(binary.BigEndian.Uint16(e[6:8])),
	}, nil
}

// CPUDiagnostic is one SZL 0x00A0 diagnostic buffer entry.
type CPUDiagnostic struct {
	EventID int
	Raw     []byte
}

func parseDiagnostics(buf []byte) ([]CPUDiagnostic, error) {
	_, entries, err := szlSections(buf)
	if err != nil && len(entries) == 0 {
		return nil, err
	}
	diags := make([]CPUDiagnostic, 0, len(entries))
	for _, e := range entries {
		if len(e) < 2 {
			continue
		}
		diags = append(diags, CPUDiagnostic{EventID: int(binary.BigEndian.Uint16(e[0:2])), Raw: e})
	}
	return diags, nil
}

func trimmedASCII(b []byte) string {
	end := len(b)
	for end > 0 && (b[end-1] == 0x00 || b[end-1] == ' ') {
		end--
	}
	return string(b[:end])
}

// ReadCPUInfo reads and parses SZL 0x001C.
func (c *Client) ReadCPUInfo() (CPUInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	buf, err := c.readSZLLocked(szlCPUID, 0)
	if err != nil {
		return CPUInfo{}, err
	}
	return parseCPUInfo(buf)
}

// ReadCatalogCode reads and parses SZL 0x0011.
func (c *Client) ReadCatalogCode() ([]CatalogCode, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	buf, err := c.readSZLLocked(szlCatalog, 0)
	if err != nil {
		return nil, err
	}
	return parseCatalog(buf)
}

// ReadCPUStatus reads and parses SZL 0x0424.
func (c *Client) ReadCPUStatus() (CPUStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	buf, err := c.readSZLLocked(szlCPUStatus, 0)
	if err != nil {
		return CPUStatus{}, err
	}
	return parseCPUStatus(buf)
}

// ReadCPULEDs reads and parses SZL 0x0074.
func (c *Client) ReadCPULEDs() ([]CPULed, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	buf, err := c.readSZLLocked(szlLEDs, 0)
	if err != nil {
		return nil, err
	}
	return parseLEDs(buf)
}

// ReadProtection reads and parses SZL 0x0232 index 0x0004.
func (c *Client) ReadProtection() (Protection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	buf, err := c.readSZLLocked(szlProtection, 0x0004)
	if err != nil {
		return Protection{}, err
	}
	return parseProtection(buf)
}

// ReadCommProc reads and parses SZL 0x0131.
func (c *Client) ReadCommProc() (CommProc, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	buf, err := c.readSZLLocked(szlCommProc, 0)
	if err != nil {
		return CommProc{}, err
	}
	return parseCommProc(buf)
}

// ReadCPUDiagnostic reads and parses SZL 0x00A0.
func (c *Client) ReadCPUDiagnostic() ([]CPUDiagnostic, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	buf, err := c.readSZLLocked(szlDiagnostics, 0)
	if err != nil {
		return nil, err
	}
	return parseDiagnostics(buf)
}

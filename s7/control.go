package s7

import "time"

// Program-invocation (PI) function codes and the clock User-Data
// function group/subfunctions (spec §6).
const (
	piFuncStop  = 0x29
	piFuncStart = 0x28

	userDataFuncGroupTime = 0x47
	userDataSubfuncGetClk = 0x01
	userDataSubfuncSetClk = 0x02
)

// buildPIRequest assembles a Program Invocation Job: function code,
// reserved padding, a length-prefixed ASCII service name, and an
// optional trailing argument (spec §6: STOP is 33 bytes with reserved=5
// and no argument; HOT/COLD START are built on a 9-byte reserved block,
// COLD START appending the 2-byte "C " argument).
func buildPIRequest(function byte, reserved int, service string, arg []byte) []byte {
	params := make([]byte, 0, 2+reserved+1+len(service)+len(arg))
	params = append(params, function)
	params = append(params, make([]byte, reserved)...)
	params = append(params, byte(len(service)))
	params = append(params, []byte(service)...)
	params = append(params, arg...)
	return params
}

// controlOp sends a PI request and expects an AckData reply with no
// error class (no further data is returned by a stop/start PI).
func (c *Client) controlOp(params []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := requireAtLeast("control", c.state, PduNegotiated); err != nil {
		return err
	}
	_, _, err := c.exchange(params, nil)
	return err
}

// StopPLC issues a PLC STOP, first checking CPU status and no-opping if
// the CPU is already stopped (spec §6: stop_plc skips if already in
// target mode).
func (c *Client) StopPLC() error {
	status, err := c.ReadCPUStatus()
	if err != nil {
		return err
	}
	if status.IsStop() {
		return nil
	}
	return c.controlOp(buildPIRequest(piFuncStop, 5, "P_PROGRAM", nil))
}

// StartPLCHot issues a PLC HOT START (warm restart), no-opping if the CPU
// is already running.
func (c *Client) StartPLCHot() error {
	status, err := c.ReadCPUStatus()
	if err != nil {
		return err
	}
	if status.IsRun() {
		return nil
	}
	return c.controlOp(buildPIRequest(piFuncStart, 9, "P_PROGRAM", nil))
}

// StartPLCCold issues a PLC COLD START, no-opping if the CPU is already
// running. The request is the HOT START frame with the 2-byte "C "
// (0x43, 0x20) argument appended, selecting a cold restart.
func (c *Client) StartPLCCold() error {
	status, err := c.ReadCPUStatus()
	if err != nil {
		return err
	}
	if status.IsRun() {
		return nil
	}
	return c.controlOp(buildPIRequest(piFuncStart, 9, "P_PROGRAM", []byte{0x43, 0x20}))
}

// ReadPLCTime reads the CPU's real-time clock.
func (c *Client) ReadPLCTime() (time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := requireAtLeast("ReadPLCTime", c.state, PduNegotiated); err != nil {
		return time.Time{}, err
	}
	params := buildUserDataParamHeaderFunc(userDataFuncGroupTime, userDataMethodRequest, userDataSubfuncGetClk)
	data := []byte{0xFF, 0x09, 0x00, 0x00}
	hdr, body, err := c.exchangeRosctr(rosctrUserData, params, data)
	if err != nil {
		return time.Time{}, err
	}
	respData := hdr.Data(body)
	if len(respData) < 8+8 {
		return time.Time{}, &ProtocolError{Reason: "clock response too short"}
	}
	return decodeDateTime(respData[8:16])
}

// SetPLCTime writes t to the CPU's real-time clock.
func (c *Client) SetPLCTime(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := requireAtLeast("SetPLCTime", c.state, PduNegotiated); err != nil {
		return err
	}
	params := buildUserDataParamHeaderFunc(userDataFuncGroupTime, userDataMethodRequest, userDataSubfuncSetClk)
	payload := encodeDateTime(t)
	data := append([]byte{0xFF, 0x09, 0x00, byte(len(payload) + 2)}, payload...)
	data = append(data, 0x00, 0x00)
	_, _, err := c.exchangeRosctr(rosctrUserData, params, data)
	return err
}

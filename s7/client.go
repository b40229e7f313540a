package s7

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/xid"
)

// ConnectionType selects the TSAP class used to address the CPU — the S7
// protocol distinguishes a programming device (PG), an operator panel
// (OP), and a generic "basic" partner.
type ConnectionType byte

const (
	ConnectionPG    ConnectionType = 1
	ConnectionOP    ConnectionType = 2
	ConnectionBasic ConnectionType = 3
)

// Family identifies the broad CPU generation, derived from the SZL 0x001C
// module identification eagerly read on connect. It gates the S7-300/400
// block-size write clamp (§4.6 of the design notes).
type Family int

const (
	FamilyUnknown Family = iota
	FamilyS300
	FamilyS1200
	FamilyS1500
)

func (f Family) String() string {
	switch f {
	case FamilyS300:
		return "S7-300/400"
	case FamilyS1200:
		return "S7-1200"
	case FamilyS1500:
		return "S7-1500"
	default:
		return "unknown"
	}
}

// Endpoint collapses the dynamic named-parameter defaults of the original
// client into a plain configuration record.
type Endpoint struct {
	Host             string
	Port             int            // default 102
	Rack             int            // default 0
	Slot             int            // default 0
	ConnectionType   ConnectionType // default ConnectionPG
	LocalTSAP        uint16         // default 0x0100
	SocketTimeout    time.Duration  // default 2s
	RequestedPduSize uint16         // default 480
}

func (e Endpoint) withDefaults() Endpoint {
	if e.Port == 0 {
		e.Port = defaultS7Port
	}
	if e.ConnectionType == 0 {
		e.ConnectionType = ConnectionPG
	}
	if e.LocalTSAP == 0 {
		e.LocalTSAP = 0x0100
	}
	if e.SocketTimeout == 0 {
		e.SocketTimeout = 2 * time.Second
	}
	if e.RequestedPduSize == 0 {
		e.RequestedPduSize = 480
	}
	return e
}

func (e Endpoint) remoteTSAP() uint16 {
	return uint16(e.ConnectionType)<<8 | uint16(e.Rack)<<5 | uint16(e.Slot)
}

// Client drives one S7 connection. It is strictly synchronous: at most one
// exchange is ever in flight, enforced by mu. The type is safe to share
// across goroutines for that reason, the same way the teacher's s7.Client
// guards a single connection with one mutex.
type Client struct {
	mu sync.Mutex

	ep        Endpoint
	transport Transport
	dial      func(host string, port int, timeout time.Duration) (Transport, error)

	state   ConnectionState
	pduSize uint16
	pduRef  uint16
	family  Family

	blockInfo map[string]map[int]*BlockInfo

	log     Logger
	metrics *Metrics
	id      xid.ID
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithLogger injects a Logger. The default is NopLogger.
func WithLogger(l Logger) Option { return func(c *Client) { c.log = l } }

// WithMetrics registers a Metrics collector that every exchange reports to.
func WithMetrics(m *Metrics) Option { return func(c *Client) { c.metrics = m } }

// NewClient constructs a Client for ep. No I/O happens until Connect.
func NewClient(ep Endpoint, opts ...Option) *Client {
	c := &Client{
		ep:        ep.withDefaults(),
		dial:      dialTCP,
		state:     Closed,
		log:       NopLogger{},
		blockInfo: make(map[string]map[int]*BlockInfo),
		id:        xid.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ID returns the Client's correlation ID, used to tag log lines and
// metrics from this connection.
func (c *Client) ID() string { return c.id.String() }

// State returns the current ConnectionState.
func (c *Client) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Family returns the controller family detected on Connect.
func (c *Client) Family() Family {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.family
}

// PDUSize returns the negotiated PDU size, or 0 if not yet connected.
func (c *Client) PDUSize() uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pduSize
}

// Connect drives Closed -> TcpOpen -> IsoOpen -> PduNegotiated, then
// eagerly reads CPU identification to classify the controller Family.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Closed {
		return &StateError{Op: "Connect", Have: c.state, Required: Closed}
	}

	c.log.Debugf("connecting to %s:%d rack=%d slot=%d", c.ep.Host, c.ep.Port, c.ep.Rack, c.ep.Slot)
	transport, err := c.dial(c.ep.Host, c.ep.Port, c.ep.SocketTimeout)
	if err != nil {
		return err
	}
	c.transport = transport
	c.state = TcpOpen

	if err := c.isoConnect(); err != nil {
		c.transport.Close()
		c.transport = nil
		c.state = Closed
		return err
	}
	c.state = IsoOpen

	pduSize, err := c.negotiatePDU()
	if err != nil {
		c.transport.Close()
		c.transport = nil
		c.state = Closed
		return err
	}
	c.pduSize = pduSize
	c.state = PduNegotiated

	c.log.Debugf("connected, negotiated PDU size %d", pduSize)

	if info, err := c.readCPUInfoLocked(); err == nil {
		c.family = classifyFamily(info.ModuleTypeName)
		c.log.Debugf("controller family %s (%s)", c.family, info.ModuleTypeName)
	} else {
		c.log.Debugf("CPU identification failed (continuing): %v", err)
	}

	return nil
}

// Close tears the connection down unconditionally and clears all
// per-connection state (negotiated size, BlockInfo cache).
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	if c.transport != nil {
		err = c.transport.Close()
		c.transport = nil
	}
	c.state = Closed
	c.pduSize = 0
	c.family = FamilyUnknown
	c.blockInfo = make(map[string]map[int]*BlockInfo)
	return err
}

// isoConnect sends the COTP Connection Request and validates the Connect
// Confirm reply (spec §4.2 step 2, scenario S1).
func (c *Client) isoConnect() error {
	cr := buildCOTPConnectionRequest(c.ep.LocalTSAP, c.ep.remoteTSAP())
	if err := c.sendFrame(cr); err != nil {
		return err
	}
	reply, err := c.recvFrame()
	if err != nil {
		return err
	}
	if len(reply)+tpktHeaderSize != 22 {
		return &ProtocolError{Reason: fmt.Sprintf("ISO CC frame length %d, want 22", len(reply)+tpktHeaderSize)}
	}
	return parseCOTPConnectionConfirm(reply)
}

// negotiatePDU sends the Setup-Communication Job and returns the
// negotiated PDU size (spec §4.2 step 3, scenario S2).
func (c *Client) negotiatePDU() (uint16, error) {
	params := []byte{
		0xF0, 0x00, // function: setup communication, reserved
		0x00, 0x01, // max AMQ calling
		0x00, 0x01, // max AMQ called
		byte(c.ep.RequestedPduSize >> 8), byte(c.ep.RequestedPduSize),
	}
	job := buildS7Job(c.nextPDURef(), params, nil)
	if err := c.sendFrame(wrapCOTPData(job)); err != nil {
		return 0, err
	}
	reply, err := c.recvFrame()
	if err != nil {
		return 0, err
	}
	if len(reply)+tpktHeaderSize != 27 {
		return 0, &ProtocolError{Reason: fmt.Sprintf("setup-comm frame length %d, want 27", len(reply)+tpktHeaderSize)}
	}
	body, err := unwrapCOTPData(reply)
	if err != nil {
		return 0, err
	}
	hdr, err := parseS7Header(body)
	if err != nil {
		return 0, err
	}
	if err := hdr.errorClassError(); err != nil {
		return 0, err
	}
	params2 := hdr.Params(body)
	if len(params2) < 8 {
		return 0, &ProtocolError{Reason: "setup-comm parameter section too short"}
	}
	if params2[0] != 0xF0 {
		return 0, &ProtocolError{Reason: fmt.Sprintf("unexpected function 0x%02X in setup-comm reply", params2[0])}
	}
	return uint16(params2[6])<<8 | uint16(params2[7]), nil
}

// nextPDURef returns the next 16-bit PDU reference, wrapping past 0xFFFF.
// Must be called with mu held.
func (c *Client) nextPDURef() uint16 {
	c.pduRef++
	if c.pduRef == 0 {
		c.pduRef = 1
	}
	return c.pduRef
}

// exchange sends params/data as a Job PDU and returns the parsed reply
// header plus its raw bytes, enforcing that the connection is fully
// negotiated. This is the PDU exchange engine (spec §4.3).
func (c *Client) exchange(params, data []byte) (s7Header, []byte, error) {
	return c.exchangeRosctr(rosctrJob, params, data)
}

// exchangeRosctr is the PDU exchange engine generalised over ROSCTR, used
// directly by the UserData-class SZL reader (spec §4.4).
func (c *Client) exchangeRosctr(rosctr byte, params, data []byte) (s7Header, []byte, error) {
	if err := requireAtLeast("exchange", c.state, PduNegotiated); err != nil {
		return s7Header{}, nil, err
	}

	started := time.Now()
	pduRef := c.nextPDURef()
	job := buildS7PDU(rosctr, pduRef, params, data)
	if err := c.sendFrame(wrapCOTPData(job)); err != nil {
		c.recordExchange(started, false)
		return s7Header{}, nil, err
	}
	reply, err := c.recvFrame()
	if err != nil {
		c.recordExchange(started, false)
		return s7Header{}, nil, err
	}
	body, err := unwrapCOTPData(reply)
	if err != nil {
		c.recordExchange(started, false)
		return s7Header{}, nil, err
	}
	hdr, err := parseS7Header(body)
	if err != nil {
		c.recordExchange(started, false)
		return s7Header{}, nil, err
	}
	if hdr.PDURef != pduRef {
		c.log.Debugf("PDU reference mismatch: sent %d, received %d", pduRef, hdr.PDURef)
	}
	if err := hdr.errorClassError(); err != nil {
		c.recordExchange(started, false)
		return hdr, body, err
	}
	c.recordExchange(started, true)
	return hdr, body, nil
}

func (c *Client) recordExchange(started time.Time, ok bool) {
	if c.metrics == nil {
		return
	}
	c.metrics.ObserveExchange(c.id.String(), time.Since(started), ok)
}

// sendFrame TPKT-encodes and writes payload, honouring the configured
// socket timeout.
func (c *Client) sendFrame(payload []byte) error {
	if c.transport == nil {
		return ErrTransportClosed
	}
	if err := c.transport.SetDeadline(time.Now().Add(c.ep.SocketTimeout)); err != nil {
		return &TransportError{Op: "send", Cause: err}
	}
	frame := tpktEncode(payload)
	c.log.TX(frame)
	if _, err := c.transport.Write(frame); err != nil {
		return &TransportError{Op: "send", Cause: err}
	}
	return nil
}

// recvFrame reads one TPKT frame and returns its COTP-layer payload.
func (c *Client) recvFrame() ([]byte, error) {
	if c.transport == nil {
		return nil, ErrTransportClosed
	}
	if err := c.transport.SetDeadline(time.Now().Add(c.ep.SocketTimeout)); err != nil {
		return nil, &TransportError{Op: "recv", Cause: err}
	}
	payload, err := tpktDecode(&transportReader{c.transport})
	if err != nil {
		if pe, ok := err.(*ProtocolError); ok {
			return nil, pe
		}
		return nil, &TransportError{Op: "recv", Cause: err}
	}
	c.log.RX(tpktEncode(payload))
	return payload, nil
}

// transportReader adapts Transport.Read to io.Reader for tpktDecode.
type transportReader struct{ t Transport }

func (r *transportReader) Read(p []byte) (int, error) { return r.t.Read(p) }

// classifyFamily maps a module type name to a Family using the numeric
// hint in the name: the first run of three or more digits is taken as the
// model number (S7-300/400 < 1200, S7-1200 in [1200,1500), S7-1500 >= 1500).
// A non-empty name with no such number counts as S7-300/400.
func classifyFamily(moduleTypeName string) Family {
	if moduleTypeName == "" {
		return FamilyUnknown
	}
	for _, run := range strings.FieldsFunc(moduleTypeName, func(r rune) bool { return r < '0' || r > '9' }) {
		if len(run) < 3 {
			continue
		}
		model := 0
		for _, r := range run {
			model = model*10 + int(r-'0')
		}
		switch {
		case model >= 1500:
			return FamilyS1500
		case model >= 1200:
			return FamilyS1200
		}
		return FamilyS300
	}
	return FamilyS300
}

// Package s7 implements the Siemens S7 communication protocol ("S7comm")
// over TCP: RFC-1006 TPKT framing, ISO 8073 class-0 COTP, and the S7
// application-layer PDU exchange used to read and write PLC memory, query
// CPU metadata, and control PLC run state.
//
// The package is strictly synchronous: a Client drives one TCP connection
// and issues one request at a time, matching the way the real protocol
// forbids pipelined job PDUs. Callers that need concurrent PLC access
// should use one Client per connection.
package s7

package s7

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// Logger is the injected logging capability every Client accepts via
// WithLogger. Unlike the teacher's package-level DebugLogger singleton,
// nothing in this package reaches for a process-wide instance — a Client
// with no Logger configured uses NopLogger, silently.
type Logger interface {
	Debugf(format string, args ...interface{})
	TX(data []byte)
	RX(data []byte)
}

// NopLogger discards everything. It is the zero value Client.log falls
// back to.
type NopLogger struct{}

func (NopLogger) Debugf(string, ...interface{}) {}
func (NopLogger) TX([]byte)                     {}
func (NopLogger) RX([]byte)                     {}

// HexLogger writes timestamped debug lines and hex dumps of wire traffic
// to w, in the format the teacher's logging.DebugLogger used for its
// debug.log file.
type HexLogger struct {
	w      io.Writer
	prefix string
}

// NewHexLogger returns a Logger that writes to w, tagging every line with
// prefix (e.g. a Client's correlation ID).
func NewHexLogger(w io.Writer, prefix string) *HexLogger {
	return &HexLogger{w: w, prefix: prefix}
}

func (l *HexLogger) Debugf(format string, args ...interface{}) {
	fmt.Fprintf(l.w, "%s [%s] %s\n", timestamp(), l.prefix, fmt.Sprintf(format, args...))
}

func (l *HexLogger) TX(data []byte) { l.logPacket("TX", data) }
func (l *HexLogger) RX(data []byte) { l.logPacket("RX", data) }

func (l *HexLogger) logPacket(direction string, data []byte) {
	fmt.Fprintf(l.w, "%s [%s] %s (%d bytes):\n%s\n", timestamp(), l.prefix, direction, len(data), hexDump(data))
}

func timestamp() string {
	return time.Now().Format("2006-01-02 15:04:05.000")
}

// hexDump renders data as offset/hex/ASCII lines, 16 bytes per line.
func hexDump(data []byte) string {
	if len(data) == 0 {
		return "    (empty)"
	}
	var sb strings.Builder
	for offset := 0; offset < len(data); offset += 16 {
		fmt.Fprintf(&sb, "    %04X: ", offset)
		for i := 0; i < 16; i++ {
			if offset+i < len(data) {
				fmt.Fprintf(&sb, "%02X ", data[offset+i])
			} else {
				sb.WriteString("   ")
			}
			if i == 7 {
				sb.WriteString(" ")
			}
		}
		sb.WriteString(" ")
		for i := 0; i < 16 && offset+i < len(data); i++ {
			b := data[offset+i]
			if b >= 32 && b < 127 {
				sb.WriteByte(b)
			} else {
				sb.WriteByte('.')
			}
		}
		sb.WriteString("\n")
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

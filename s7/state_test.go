package s7

import "testing"

func TestRequire(t *testing.T) {
	if err := require("op", PduNegotiated, PduNegotiated); err != nil {
		t.Errorf("require(equal) error: %v", err)
	}
	if err := require("op", TcpOpen, PduNegotiated); err == nil {
		t.Error("require(unequal) error = nil, want error")
	}
}

func TestRequireAtLeast(t *testing.T) {
	if err := requireAtLeast("op", PduNegotiated, IsoOpen); err != nil {
		t.Errorf("requireAtLeast(later state) error: %v", err)
	}
	if err := requireAtLeast("op", TcpOpen, PduNegotiated); err == nil {
		t.Error("requireAtLeast(earlier state) error = nil, want error")
	}
}

func TestConnectionStateString(t *testing.T) {
	tests := map[ConnectionState]string{
		Closed:        "Closed",
		TcpOpen:       "TcpOpen",
		IsoOpen:       "IsoOpen",
		PduNegotiated: "PduNegotiated",
		ConnectionState(99): "Unknown",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("ConnectionState(%d).String() = %q, want %q", s, got, want)
		}
	}
}

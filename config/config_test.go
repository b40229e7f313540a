package config

import (
	"path/filepath"
	"testing"

	"github.com/NothinRandom/pystep7/s7"
)

func TestEndpointConfig_Endpoint(t *testing.T) {
	tests := []struct {
		name    string
		cfg     EndpointConfig
		wantCT  s7.ConnectionType
		wantErr bool
	}{
		{"default connection type", EndpointConfig{Name: "line1", Host: "10.0.0.1"}, s7.ConnectionPG, false},
		{"pg", EndpointConfig{Name: "line1", Host: "10.0.0.1", ConnectionType: "pg"}, s7.ConnectionPG, false},
		{"op", EndpointConfig{Name: "line1", Host: "10.0.0.1", ConnectionType: "op"}, s7.ConnectionOP, false},
		{"basic", EndpointConfig{Name: "line1", Host: "10.0.0.1", ConnectionType: "basic"}, s7.ConnectionBasic, false},
		{"unknown", EndpointConfig{Name: "line1", Host: "10.0.0.1", ConnectionType: "bogus"}, 0, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ep, err := tc.cfg.Endpoint()
			if tc.wantErr {
				if err == nil {
					t.Fatalf("Endpoint() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Endpoint() unexpected error: %v", err)
			}
			if ep.ConnectionType != tc.wantCT {
				t.Errorf("ConnectionType = %v, want %v", ep.ConnectionType, tc.wantCT)
			}
			if ep.Host != tc.cfg.Host {
				t.Errorf("Host = %q, want %q", ep.Host, tc.cfg.Host)
			}
		})
	}
}

func TestConfig_SaveLoadRoundTrip(t *testing.T) {
	cfg := &Config{Endpoints: []EndpointConfig{
		{Name: "line1", Host: "10.0.0.1", Rack: 0, Slot: 2},
		{Name: "line2", Host: "10.0.0.2", Rack: 0, Slot: 1, ConnectionType: "op"},
	}}

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(loaded.Endpoints) != 2 {
		t.Fatalf("got %d endpoints, want 2", len(loaded.Endpoints))
	}

	e := loaded.Find("line2")
	if e == nil {
		t.Fatal("Find(\"line2\") = nil")
	}
	if e.Host != "10.0.0.2" || e.Slot != 1 {
		t.Errorf("line2 = %+v, want Host=10.0.0.2 Slot=1", e)
	}

	if loaded.Find("missing") != nil {
		t.Error("Find(\"missing\") should return nil")
	}
}

func TestConfig_LoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err == nil {
		t.Fatal("Load() on missing file should error")
	}
}

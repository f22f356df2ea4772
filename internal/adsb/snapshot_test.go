package adsb

import (
	"encoding/json"
	"testing"
	"time"
)

func TestValidIdentifier(t *testing.T) {
	tests := []struct {
		in    string
		valid bool
	}{
		{"A1B2C3", true},
		{"a1b2c3", false}, // must be normalized first
		{"ABCDEF", true},
		{"000000", true},
		{"", false},
		{"A1B2C", false},
		{"A1B2C34", false},
		{"~A1B2C3", false}, // TIS-B pseudo address
		{"A1B2G3", false},
	}
	for _, tt := range tests {
		if got := ValidIdentifier(tt.in); got != tt.valid {
			t.Errorf("ValidIdentifier(%q) = %v, want %v", tt.in, got, tt.valid)
		}
	}
}

func TestNormalizeIdentifier(t *testing.T) {
	if got := NormalizeIdentifier(" a1b2c3 "); got != "A1B2C3" {
		t.Errorf("NormalizeIdentifier = %q, want A1B2C3", got)
	}
	if !ValidIdentifier(NormalizeIdentifier("a1b2c3")) {
		t.Error("normalized lowercase hex should validate")
	}
}

func TestSnapshotCapturedAt(t *testing.T) {
	s := &Snapshot{Now: 1700000000.5}
	got := s.CapturedAt()
	want := time.Unix(1700000000, 500000000).UTC()
	if !got.Equal(want) {
		t.Errorf("CapturedAt = %v, want %v", got, want)
	}

	empty := &Snapshot{}
	if !empty.CapturedAt().IsZero() {
		t.Error("missing now field should yield zero time")
	}
}

func TestEntryDecode(t *testing.T) {
	raw := `{
		"now": 1700000000.1,
		"aircraft": [
			{"hex": "a1b2c3", "flight": "QFA12  ", "lat": -33.9, "lon": 151.1,
			 "alt_baro": 35000, "track": 270.1, "gs": 480.5, "squawk": "3412",
			 "category": "A3", "rssi": -12.3},
			{"hex": "d4e5f6", "alt_baro": "ground"},
			{"hex": "aabbcc"}
		]
	}`

	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(snap.Aircraft) != 3 {
		t.Fatalf("got %d aircraft, want 3", len(snap.Aircraft))
	}

	full := snap.Aircraft[0]
	if full.Hex != "a1b2c3" {
		t.Errorf("hex = %q", full.Hex)
	}
	if !full.AltBaro.Valid || full.AltBaro.Feet != 35000 {
		t.Errorf("alt_baro = %+v, want 35000", full.AltBaro)
	}
	if full.Lat == nil || *full.Lat != -33.9 {
		t.Errorf("lat = %v", full.Lat)
	}

	ground := snap.Aircraft[1]
	if !ground.AltBaro.Valid || ground.AltBaro.Feet != 0 {
		t.Errorf(`alt_baro "ground" = %+v, want valid 0 ft`, ground.AltBaro)
	}

	bare := snap.Aircraft[2]
	if bare.AltBaro.Valid {
		t.Error("absent alt_baro should not be valid")
	}
	if bare.Lat != nil || bare.GS != nil {
		t.Error("absent optional fields should be nil")
	}
}

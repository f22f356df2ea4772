// Package adsb models the receiver's aircraft.json snapshot feed.
package adsb

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Snapshot is one poll of the receiver feed: every aircraft currently
// tracked, at one capture instant.
type Snapshot struct {
	Now      float64 `json:"now"` // epoch seconds reported by the receiver
	Messages int64   `json:"messages"`
	Aircraft []Entry `json:"aircraft"`
}

// CapturedAt returns the feed's reported capture instant, or the zero time
// when the feed did not report one.
func (s *Snapshot) CapturedAt() time.Time {
	if s.Now <= 0 {
		return time.Time{}
	}
	sec := int64(s.Now)
	nsec := int64((s.Now - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC()
}

// Entry is one aircraft in a snapshot. Everything except the hex code is
// optional; dump1090 omits fields it has not decoded yet.
type Entry struct {
	Hex      string   `json:"hex"`
	Flight   string   `json:"flight"`
	Lat      *float64 `json:"lat"`
	Lon      *float64 `json:"lon"`
	AltBaro  AltBaro  `json:"alt_baro"`
	Track    *float64 `json:"track"`
	GS       *float64 `json:"gs"`
	Squawk   string   `json:"squawk"`
	Category string   `json:"category"`
	RSSI     *float64 `json:"rssi"`
}

// AltBaro is a barometric altitude in feet. dump1090 reports either a
// number or the literal string "ground", which we treat as 0 ft.
type AltBaro struct {
	Valid bool
	Feet  int
}

func (a *AltBaro) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "ground" {
			a.Valid = true
			a.Feet = 0
		}
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("alt_baro: %w", err)
	}
	a.Valid = true
	a.Feet = int(f)
	return nil
}

func (a AltBaro) MarshalJSON() ([]byte, error) {
	if !a.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(a.Feet)
}

// identifierRe matches a normalized ICAO 24-bit address. TIS-B pseudo
// addresses ("~" prefix) and truncated codes do not match and are dropped.
var identifierRe = regexp.MustCompile(`^[0-9A-F]{6}$`)

// NormalizeIdentifier uppercases and trims a transponder hex code.
func NormalizeIdentifier(hex string) string {
	return strings.ToUpper(strings.TrimSpace(hex))
}

// ValidIdentifier reports whether a normalized hex code is a storable
// aircraft identifier.
func ValidIdentifier(hex string) bool {
	return identifierRe.MatchString(hex)
}

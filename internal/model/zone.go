// Package model defines the reference entities, forecast value objects, and
// error taxonomy shared by the parking availability engine.
package model

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// ZoneID is a parking rule zone identifier normalized to an integer.
// The zero value means "no zone".
type ZoneID int64

// String renders the zone as a plain integer.
func (z ZoneID) String() string {
	return strconv.FormatInt(int64(z), 10)
}

// Valid reports whether z refers to a real zone.
func (z ZoneID) Valid() bool {
	return z > 0
}

// ParseZoneID coerces a zone identifier from the representations found in
// the source datasets ("7539", "7539.0", 7539.0, 7539) to a ZoneID.
// Missing, non-numeric, fractional, or non-positive values yield ErrInvalidZone.
func ParseZoneID(v any) (ZoneID, error) {
	switch t := v.(type) {
	case nil:
		return 0, eris.Wrap(ErrInvalidZone, "zone: missing")
	case ZoneID:
		if !t.Valid() {
			return 0, eris.Wrapf(ErrInvalidZone, "zone: %d", t)
		}
		return t, nil
	case int:
		return ParseZoneID(float64(t))
	case int32:
		return ParseZoneID(float64(t))
	case int64:
		return ParseZoneID(float64(t))
	case float32:
		return ParseZoneID(float64(t))
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) || t != math.Trunc(t) || t <= 0 {
			return 0, eris.Wrapf(ErrInvalidZone, "zone: %v", t)
		}
		return ZoneID(t), nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, eris.Wrap(ErrInvalidZone, "zone: missing")
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return ParseZoneID(float64(n))
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, eris.Wrapf(ErrInvalidZone, "zone: %q", s)
		}
		return ParseZoneID(f)
	default:
		return ParseZoneID(fmt.Sprint(v))
	}
}

// ZoneSet is a set of normalized zone identifiers.
type ZoneSet map[ZoneID]struct{}

// NewZoneSet builds a set from the given zones, skipping invalid ids.
func NewZoneSet(zones ...ZoneID) ZoneSet {
	s := make(ZoneSet, len(zones))
	for _, z := range zones {
		s.Add(z)
	}
	return s
}

// Add inserts z when it is a valid zone.
func (s ZoneSet) Add(z ZoneID) {
	if z.Valid() {
		s[z] = struct{}{}
	}
}

// Has reports membership.
func (s ZoneSet) Has(z ZoneID) bool {
	_, ok := s[z]
	return ok
}

// Union adds every member of other to s.
func (s ZoneSet) Union(other ZoneSet) {
	for z := range other {
		s[z] = struct{}{}
	}
}

// Sorted returns the members in ascending order.
func (s ZoneSet) Sorted() []ZoneID {
	out := make([]ZoneID, 0, len(s))
	for z := range s {
		out = append(out, z)
	}
	slices.Sort(out)
	return out
}

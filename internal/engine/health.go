package engine

import (
	"time"

	"github.com/findmyspot/findmyspot/internal/dataset"
)

// SnapshotStatus describes the published snapshot.
type SnapshotStatus struct {
	Version  string    `json:"version" yaml:"version"`
	LoadedAt time.Time `json:"loaded_at" yaml:"loaded_at"`
	Bays     int       `json:"bays" yaml:"bays"`
	Readings int       `json:"readings" yaml:"readings"`
	Links    int       `json:"links" yaml:"links"`
	Rules    int       `json:"rules" yaml:"rules"`
	Zones    int       `json:"zone_names" yaml:"zone_names"`
}

// Health reports readiness.
type Health struct {
	Status   string          `json:"status" yaml:"status"`
	Snapshot *SnapshotStatus `json:"snapshot,omitempty" yaml:"snapshot,omitempty"`
	Error    string          `json:"error,omitempty" yaml:"error,omitempty"`
	Baseline bool            `json:"baseline" yaml:"baseline"`
	Scorer   string          `json:"scorer" yaml:"scorer"`
}

// Health is "ok" with a snapshot loaded, "degraded" when the model breaker is
// not closed and "unavailable" without a snapshot.
func (e *Engine) Health() Health {
	h := Health{
		Status:   "ok",
		Baseline: e.resolver.HasBaseline(),
		Scorer:   e.resolver.ScorerState(),
	}
	if h.Scorer != "disabled" && h.Scorer != "closed" {
		h.Status = "degraded"
	}

	snap, err := e.snapshots.Current()
	if err != nil {
		h.Status = "unavailable"
		h.Error = err.Error()
		return h
	}
	counts := snap.Counts()
	h.Snapshot = &SnapshotStatus{
		Version:  snap.Version,
		LoadedAt: snap.LoadedAt,
		Bays:     counts[dataset.TableBays],
		Readings: counts[dataset.TableSensorReadings],
		Links:    counts[dataset.TableZoneLinks],
		Rules:    counts[dataset.TableSignPlates],
		Zones:    counts[dataset.TableZoneLocations],
	}
	return h
}

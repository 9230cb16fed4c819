package forecast

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/findmyspot/findmyspot/internal/model"
)

type baselineKey struct {
	zone    model.ZoneID
	hour    int
	dayType model.DayType
}

// Baseline is the cached results file behind the last cascade tier. It holds
// pre-generated rows keyed by (zone, hour, day type) and an optional single
// demo value used when no row matches.
type Baseline struct {
	Path string

	rows map[baselineKey]float64
	demo *float64
}

// NewBaseline builds a baseline holding only a demo value.
func NewBaseline(demo float64) *Baseline {
	return &Baseline{rows: map[baselineKey]float64{}, demo: &demo}
}

// LoadBaseline reads a results file. JSON and YAML are accepted; the
// extension selects the decoder.
func LoadBaseline(path string) (*Baseline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "forecast: read baseline %s", path)
	}

	var doc map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &doc)
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		err = dec.Decode(&doc)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "forecast: decode baseline %s", path)
	}

	b, err := parseBaseline(doc)
	if err != nil {
		return nil, eris.Wrapf(err, "forecast: baseline %s", path)
	}
	b.Path = path
	return b, nil
}

// parseBaseline accepts {"predictions": [rows...]} and the training output
// shape {"predictions": {...}, "api_examples": {"prediction": {"predictions": [{...}]}}}.
func parseBaseline(doc map[string]any) (*Baseline, error) {
	b := &Baseline{rows: map[baselineKey]float64{}}

	if list, ok := doc["predictions"].([]any); ok {
		for _, item := range list {
			row, ok := item.(map[string]any)
			if !ok {
				continue
			}
			zone, err := model.ParseZoneID(firstOf(row, "Zone_Number", "zone_number", "zone"))
			if err != nil {
				continue
			}
			hour, ok := toInt(row["hour"])
			if !ok {
				continue
			}
			rate, ok := toFloat(row["predicted_availability"])
			if !ok {
				continue
			}
			dayType := model.ParseDayType(stringOf(row["day_type"]))
			b.rows[baselineKey{zone: zone, hour: hour, dayType: dayType}] = model.ClampUnit(rate)
		}
	}

	if examples, ok := doc["api_examples"].(map[string]any); ok {
		if pred, ok := examples["prediction"].(map[string]any); ok {
			if items, ok := pred["predictions"].([]any); ok && len(items) > 0 {
				if first, ok := items[0].(map[string]any); ok {
					if v, ok := toFloat(first["predicted_availability"]); ok {
						v = model.ClampUnit(v)
						b.demo = &v
					}
				}
			}
		}
	}

	if len(b.rows) == 0 && b.demo == nil {
		return nil, eris.New("no usable prediction rows or demo value")
	}
	return b, nil
}

// Lookup prefers an exact row and falls back to the demo value.
func (b *Baseline) Lookup(zone model.ZoneID, hour int, dayType model.DayType) (float64, bool) {
	if b == nil {
		return 0, false
	}
	if v, ok := b.rows[baselineKey{zone: zone, hour: hour, dayType: dayType}]; ok {
		return v, true
	}
	if b.demo != nil {
		return *b.demo, true
	}
	return 0, false
}

// Rows reports how many exact rows the baseline holds.
func (b *Baseline) Rows() int {
	if b == nil {
		return 0
	}
	return len(b.rows)
}

func firstOf(row map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := row[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func stringOf(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case float64:
		return t, true
	case int:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toInt(v any) (int, bool) {
	f, ok := toFloat(v)
	if !ok || f != float64(int(f)) {
		return 0, false
	}
	return int(f), true
}

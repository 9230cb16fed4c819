package dataset

import (
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/findmyspot/findmyspot/internal/model"
)

// shapefile rows are laid out as [id, lat, lon, segment id, segment description].
const (
	shpID = iota
	shpLat
	shpLon
	shpSegment
	shpSegmentDesc
)

// readBayShapefile reads bay points from a shapefile export. DBF field names
// are truncated to 10 characters, so matching is by normalized alias.
func readBayShapefile(path string) ([][]string, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	names := make([]string, 0, len(reader.Fields()))
	for _, f := range reader.Fields() {
		names = append(names, strings.TrimRight(f.String(), "\x00"))
	}
	c := indexHeader(names)
	idCol, err := c.require(TableBays, colBayID)
	if err != nil {
		return nil, err
	}
	segCol := c.find(colSegmentID)
	descCol := c.find(colSegmentDesc)

	attr := func(i int) string {
		if i < 0 {
			return ""
		}
		return strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
	}

	var rows [][]string
	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()
		pt, ok := shape.(*shp.Point)
		if !ok || pt == nil {
			skipped++
			continue
		}
		rows = append(rows, []string{
			shpID:          attr(idCol),
			shpLat:         strconv.FormatFloat(pt.Y, 'f', -1, 64),
			shpLon:         strconv.FormatFloat(pt.X, 'f', -1, 64),
			shpSegment:     attr(segCol),
			shpSegmentDesc: attr(descCol),
		})
	}

	if skipped > 0 {
		zap.L().Debug("dataset: skipped non-point shapefile records", zap.String("path", path), zap.Int("skipped", skipped))
	}
	return rows, nil
}

func rowsAsBays(rows [][]string) []model.Bay {
	bays := make([]model.Bay, 0, len(rows))
	for _, row := range rows {
		lat, latErr := strconv.ParseFloat(row[shpLat], 64)
		lon, lonErr := strconv.ParseFloat(row[shpLon], 64)
		id := normalizeKey(row[shpID])
		if id == "" || latErr != nil || lonErr != nil {
			continue
		}
		bays = append(bays, model.Bay{
			ID:            id,
			Lat:           lat,
			Lon:           lon,
			RoadSegmentID: normalizeKey(row[shpSegment]),
			RoadSegment:   row[shpSegmentDesc],
		})
	}
	return bays
}

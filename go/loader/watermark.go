package loader

import (
	"fmt"
	"time"

	"github.com/FalkorDB/Snowflake-to-FalkorDB/go/source"
)

// Watermarks persist as RFC 3339 with a numeric offset, always in UTC, e.g.
// "2024-01-02T00:00:00+00:00".
const watermarkLayout = "2006-01-02T15:04:05.999999999-07:00"

// Warehouse timestamps may also arrive in "YYYY-MM-DD HH:MM:SS[.fraction]"
// form, which is read as UTC.
const warehouseLayout = "2006-01-02 15:04:05.999999999"

func parseTimestamp(text string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339Nano, text); err == nil {
		return ts, nil
	}
	var ts, err = time.ParseInLocation(warehouseLayout, text, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized timestamp %q", text)
	}
	return ts, nil
}

func formatWatermark(ts time.Time) string {
	return ts.UTC().Format(watermarkLayout)
}

// advanceWatermark computes the next watermark from every fetched row,
// deleted rows included. The watermark only moves forward: the returned flag
// is false when no row carries a parseable timestamp beyond the current mark.
func advanceWatermark(current string, rows []source.Row, column string) (string, bool) {
	var max time.Time
	var found bool
	for _, row := range rows {
		text, ok := row[column].(string)
		if !ok {
			continue
		}
		ts, err := parseTimestamp(text)
		if err != nil {
			continue
		}
		if !found || ts.After(max) {
			max, found = ts, true
		}
	}
	if !found {
		return current, false
	}
	if current != "" {
		if cur, err := parseTimestamp(current); err == nil && !max.After(cur) {
			return current, false
		}
	}
	return formatWatermark(max), true
}

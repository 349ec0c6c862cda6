package loader

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/FalkorDB/Snowflake-to-FalkorDB/go/source"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	var cases = []struct {
		text   string
		expect time.Time
	}{
		{"2024-01-02T00:00:00Z", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
		{"2024-01-02T00:00:00+00:00", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
		{"2024-01-02T03:04:05.125+02:00", time.Date(2024, 1, 2, 1, 4, 5, 125000000, time.UTC)},
		{"2024-01-02 03:04:05", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)},
		{"2024-01-02 03:04:05.5", time.Date(2024, 1, 2, 3, 4, 5, 500000000, time.UTC)},
	}
	for _, tc := range cases {
		var ts, err = parseTimestamp(tc.text)
		require.NoError(t, err, tc.text)
		require.True(t, ts.Equal(tc.expect), "parsed %s as %s", tc.text, ts)
	}

	for _, text := range []string{"", "yesterday", "2024-01-02", "02/01/2024 03:04"} {
		var _, err = parseTimestamp(text)
		require.Error(t, err, text)
	}
}

func TestFormatWatermark(t *testing.T) {
	require.Equal(t, "2024-01-02T00:00:00+00:00",
		formatWatermark(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)))
	require.Equal(t, "2024-03-04T05:06:07.125+00:00",
		formatWatermark(time.Date(2024, 3, 4, 5, 6, 7, 125000000, time.UTC)))

	// Zoned instants normalize to UTC.
	require.Equal(t, "2024-01-02T00:00:00+00:00",
		formatWatermark(time.Date(2024, 1, 2, 1, 0, 0, 0, time.FixedZone("CET", 3600))))
}

func TestAdvanceWatermark(t *testing.T) {
	var rows = []source.Row{
		{"u": "2024-01-01T00:00:00Z"},
		{"u": "2024-01-02 00:00:00"},
		{"u": json.Number("5")},
		{"u": "not a time"},
		{},
	}

	var next, changed = advanceWatermark("", rows, "u")
	require.True(t, changed)
	require.Equal(t, "2024-01-02T00:00:00+00:00", next)

	// The mark only advances on a strictly greater timestamp.
	_, changed = advanceWatermark("2024-01-02T00:00:00+00:00", rows, "u")
	require.False(t, changed)

	next, changed = advanceWatermark("2024-02-01T00:00:00+00:00", rows, "u")
	require.False(t, changed)
	require.Equal(t, "2024-02-01T00:00:00+00:00", next)

	_, changed = advanceWatermark("", nil, "u")
	require.False(t, changed)

	// An unparseable stored mark is replaced rather than honored.
	next, changed = advanceWatermark("garbage", rows, "u")
	require.True(t, changed)
	require.Equal(t, "2024-01-02T00:00:00+00:00", next)
}

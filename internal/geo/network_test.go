package geo

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rmohub/internal/model"
)

const testNetwork = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"segment_id": "S001", "la_code": "TRF", "route_code": "A56", "subgroup": "CW1"},
      "geometry": {"type": "LineString", "coordinates": [[-2.35, 53.42], [-2.34, 53.43]]}
    },
    {
      "type": "Feature",
      "properties": {"segment_id": "S002", "la_code": "MCR", "route_code": "A34", "subgroup": "CW1", "length_m": 1234.5},
      "geometry": {"type": "LineString", "coordinates": [[-2.24, 53.47], [-2.23, 53.48]]}
    },
    {
      "type": "Feature",
      "properties": {"segment_id": "S003", "la_code": "TRF", "route_code": "A56", "subgroup": "CW2"},
      "geometry": {"type": "LineString", "coordinates": [[-2.33, 53.41], [-2.32, 53.40]]}
    }
  ]
}`

func writeNetwork(t *testing.T) *Network {
	t.Helper()
	path := filepath.Join(t.TempDir(), "network.geojson")
	require.NoError(t, os.WriteFile(path, []byte(testNetwork), 0o644))
	n, err := LoadNetwork(path)
	require.NoError(t, err)
	return n
}

func TestLoadNetwork(t *testing.T) {
	n := writeNetwork(t)
	segs := n.Segments()
	require.Len(t, segs, 3)

	s1, ok := n.SegmentByID("S001")
	require.True(t, ok)
	assert.Equal(t, "TRF", s1.Authority)
	assert.Equal(t, "A56", s1.Route)
	assert.Greater(t, s1.LengthM, 0.0, "length derived from geometry")

	s2, ok := n.SegmentByID("S002")
	require.True(t, ok)
	assert.Equal(t, 1234.5, s2.LengthM, "explicit length_m wins over derivation")
}

func TestSelectByFilter(t *testing.T) {
	n := writeNetwork(t)

	got := n.Select(model.Filter{Authorities: []string{"TRF"}}, nil)
	assert.Len(t, got, 2)

	got = n.Select(model.Filter{Authorities: []string{"TRF"}, Subgroups: []string{"CW2"}}, nil)
	require.Len(t, got, 1)
	assert.Equal(t, "S003", got[0].ID)

	got = n.Select(model.Filter{Routes: []string{"B999"}}, nil)
	assert.Empty(t, got)
}

func TestSelectByBound(t *testing.T) {
	n := writeNetwork(t)

	// Box around Trafford only; S002 sits to the northeast.
	bound := orb.Bound{Min: orb.Point{-2.40, 53.39}, Max: orb.Point{-2.30, 53.44}}
	got := n.Select(model.Filter{}, &bound)
	ids := make([]string, 0, len(got))
	for _, s := range got {
		ids = append(ids, s.ID)
	}
	assert.ElementsMatch(t, []string{"S001", "S003"}, ids)
}

func TestNearest(t *testing.T) {
	n := writeNetwork(t)

	seg, ok := n.Nearest(53.425, -2.345)
	require.True(t, ok)
	assert.Equal(t, "S001", seg.ID)

	seg, ok = n.Nearest(53.475, -2.235)
	require.True(t, ok)
	assert.Equal(t, "S002", seg.ID)
}

func TestHaversine(t *testing.T) {
	// Manchester city centre to Trafford, roughly 7.5 km.
	a := orb.Point{-2.2426, 53.4808}
	b := orb.Point{-2.3466, 53.4556}
	d := Haversine(a, b)
	assert.InDelta(t, 7400, d, 400)

	assert.Equal(t, 0.0, Haversine(a, a))
}

func TestLineLength(t *testing.T) {
	line := orb.LineString{{-2.35, 53.42}, {-2.34, 53.43}}
	// One degree of latitude is ~111 km; this diagonal is ~1.3 km.
	l := LineLength(line)
	assert.False(t, math.IsNaN(l))
	assert.InDelta(t, 1290, l, 150)
}

func TestReloadKeepsOldNetworkOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "network.geojson")
	require.NoError(t, os.WriteFile(path, []byte(testNetwork), 0o644))
	n, err := LoadNetwork(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	assert.Error(t, n.Reload())
	assert.Len(t, n.Segments(), 3, "previous network must survive a bad reload")
}

// Package geo owns the road network: loading segments from GeoJSON,
// indexing them spatially, and answering bounding-box and
// nearest-segment queries.
package geo

import (
	"fmt"
	"math"
	"os"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	log "github.com/sirupsen/logrus"

	"rmohub/internal/model"
)

// Network is the loaded road network plus its spatial index. Reload
// swaps both atomically, so readers always see a consistent pair.
type Network struct {
	mu       sync.RWMutex
	segments []model.Segment
	byID     map[string]*model.Segment
	index    *Index
	path     string
}

// LoadNetwork reads a GeoJSON FeatureCollection of LineString features
// and builds the indexed network. Feature properties: segment_id,
// la_code, route_code, subgroup.
func LoadNetwork(path string) (*Network, error) {
	n := &Network{path: path}
	if err := n.Reload(); err != nil {
		return nil, err
	}
	return n, nil
}

// Reload re-reads the network file and swaps in the new segments and
// index. On error the previous network stays in place.
func (n *Network) Reload() error {
	data, err := os.ReadFile(n.path)
	if err != nil {
		return fmt.Errorf("reading network %s: %w", n.path, err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return fmt.Errorf("parsing network %s: %w", n.path, err)
	}

	segments, err := segmentsFromFeatures(fc)
	if err != nil {
		return err
	}

	index := NewIndex(segments)
	byID := make(map[string]*model.Segment, len(segments))
	for i := range segments {
		byID[segments[i].ID] = &segments[i]
	}

	n.mu.Lock()
	n.segments = segments
	n.byID = byID
	n.index = index
	n.mu.Unlock()

	log.WithFields(log.Fields{"segments": len(segments), "path": n.path}).
		Info("road network loaded")
	return nil
}

func segmentsFromFeatures(fc *geojson.FeatureCollection) ([]model.Segment, error) {
	segments := make([]model.Segment, 0, len(fc.Features))
	for _, feat := range fc.Features {
		line, ok := feat.Geometry.(orb.LineString)
		if !ok {
			continue
		}
		id := feat.Properties.MustString("segment_id", "")
		if id == "" {
			return nil, fmt.Errorf("network feature is missing segment_id")
		}
		seg := model.Segment{
			ID:        id,
			Authority: feat.Properties.MustString("la_code", ""),
			Route:     feat.Properties.MustString("route_code", ""),
			Subgroup:  feat.Properties.MustString("subgroup", ""),
			Geometry:  line,
		}
		if v, ok := feat.Properties["length_m"]; ok {
			if f, ok := v.(float64); ok {
				seg.LengthM = f
			}
		}
		if seg.LengthM == 0 {
			seg.LengthM = LineLength(line)
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

// Segments returns a snapshot copy of all segments.
func (n *Network) Segments() []model.Segment {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]model.Segment, len(n.segments))
	copy(out, n.segments)
	return out
}

// SegmentByID returns a copy of the segment with the given ID.
func (n *Network) SegmentByID(id string) (model.Segment, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	seg, ok := n.byID[id]
	if !ok {
		return model.Segment{}, false
	}
	return *seg, true
}

// Select returns segments matching the filter, optionally clipped to a
// bounding box (minLon, minLat, maxLon, maxLat).
func (n *Network) Select(f model.Filter, bbox *orb.Bound) []model.Segment {
	n.mu.RLock()
	index := n.index
	n.mu.RUnlock()

	var candidates []model.Segment
	if bbox != nil {
		candidates = index.SearchBound(*bbox)
	} else {
		candidates = n.Segments()
	}

	out := candidates[:0]
	for _, seg := range candidates {
		if matchesFilter(seg, f) {
			out = append(out, seg)
		}
	}
	return out
}

// Nearest returns the segment closest to the given coordinate.
func (n *Network) Nearest(lat, lon float64) (model.Segment, bool) {
	n.mu.RLock()
	index := n.index
	n.mu.RUnlock()
	return index.Nearest(lat, lon)
}

func matchesFilter(seg model.Segment, f model.Filter) bool {
	if len(f.Authorities) > 0 && !contains(f.Authorities, seg.Authority) {
		return false
	}
	if len(f.Routes) > 0 && !contains(f.Routes, seg.Route) {
		return false
	}
	if len(f.Subgroups) > 0 && !contains(f.Subgroups, seg.Subgroup) {
		return false
	}
	return true
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

const earthRadiusM = 6371000

// Haversine returns the great-circle distance in metres between two
// lon/lat points.
func Haversine(a, b orb.Point) float64 {
	lat1 := a.Lat() * math.Pi / 180
	lat2 := b.Lat() * math.Pi / 180
	dLat := lat2 - lat1
	dLon := (b.Lon() - a.Lon()) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusM * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// LineLength returns the haversine length in metres of a polyline.
func LineLength(line orb.LineString) float64 {
	total := 0.0
	for i := 1; i < len(line); i++ {
		total += Haversine(line[i-1], line[i])
	}
	return total
}

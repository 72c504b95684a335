package geo

import (
	"math"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"

	"rmohub/internal/model"
)

// minExtent pads degenerate envelopes; rtreego rejects zero-size rects.
const minExtent = 1e-9

type indexedSegment struct {
	seg      *model.Segment
	envelope rtreego.Rect
}

func (is *indexedSegment) Bounds() rtreego.Rect {
	return is.envelope
}

// Index is a 2-D R-tree over segment envelopes. Coordinates are indexed
// as (lat, lon) pairs.
type Index struct {
	tree     *rtreego.Rtree
	segments []model.Segment
}

// NewIndex builds an R-tree over the given segments. The slice is copied
// so the index owns stable backing storage.
func NewIndex(segments []model.Segment) *Index {
	idx := &Index{
		tree:     rtreego.NewTree(2, 25, 50),
		segments: make([]model.Segment, len(segments)),
	}
	copy(idx.segments, segments)

	for i := range idx.segments {
		seg := &idx.segments[i]
		if len(seg.Geometry) == 0 {
			continue
		}
		rect, err := envelopeOf(seg.Geometry)
		if err != nil {
			continue
		}
		idx.tree.Insert(&indexedSegment{seg: seg, envelope: rect})
	}
	return idx
}

func envelopeOf(line orb.LineString) (rtreego.Rect, error) {
	minLat, minLon := line[0].Lat(), line[0].Lon()
	maxLat, maxLon := minLat, minLon
	for _, pt := range line {
		minLat = math.Min(minLat, pt.Lat())
		minLon = math.Min(minLon, pt.Lon())
		maxLat = math.Max(maxLat, pt.Lat())
		maxLon = math.Max(maxLon, pt.Lon())
	}
	return rtreego.NewRect(
		rtreego.Point{minLat, minLon},
		[]float64{math.Max(maxLat-minLat, minExtent), math.Max(maxLon-minLon, minExtent)},
	)
}

// SearchBound returns copies of all segments whose envelope intersects
// the given lon/lat bound.
func (idx *Index) SearchBound(b orb.Bound) []model.Segment {
	rect, err := rtreego.NewRect(
		rtreego.Point{b.Min.Lat(), b.Min.Lon()},
		[]float64{
			math.Max(b.Max.Lat()-b.Min.Lat(), minExtent),
			math.Max(b.Max.Lon()-b.Min.Lon(), minExtent),
		},
	)
	if err != nil {
		return nil
	}
	hits := idx.tree.SearchIntersect(rect)
	out := make([]model.Segment, 0, len(hits))
	for _, h := range hits {
		out = append(out, *h.(*indexedSegment).seg)
	}
	return out
}

// Nearest returns the segment whose polyline passes closest to the given
// coordinate. The R-tree narrows to the k nearest envelopes, then exact
// haversine distance to each polyline vertex breaks the tie.
func (idx *Index) Nearest(lat, lon float64) (model.Segment, bool) {
	const k = 5
	hits := idx.tree.NearestNeighbors(k, rtreego.Point{lat, lon})
	if len(hits) == 0 {
		return model.Segment{}, false
	}

	origin := orb.Point{lon, lat}
	minDist := math.MaxFloat64
	var nearest *model.Segment
	for _, h := range hits {
		if h == nil {
			continue
		}
		is := h.(*indexedSegment)
		for _, pt := range is.seg.Geometry {
			if d := Haversine(origin, pt); d < minDist {
				minDist = d
				nearest = is.seg
			}
		}
	}
	if nearest == nil {
		return model.Segment{}, false
	}
	return *nearest, true
}

// Package stats aggregates survey data for the dashboard: per-KPI
// summaries, condition distributions as a share of network length,
// multi-year trends, and the two-year comparison behind the swipe
// widget. Results are memoized until new survey data invalidates them.
package stats

import (
	"context"
	"fmt"
	"strconv"

	"rmohub/internal/model"
	"rmohub/internal/store"
)

// Backend is the slice of the survey store the service needs.
type Backend interface {
	Summary(ctx context.Context, f model.Filter) ([]store.KPISummary, error)
	ClassDistribution(ctx context.Context, f model.Filter, kpi string) ([model.ClassCount]store.ClassBucket, error)
	YearlyMeans(ctx context.Context, f model.Filter, kpi string) ([]store.YearMean, error)
}

// defaultCacheSize bounds the memo cache; the original kept an unbounded
// map keyed the same way.
const defaultCacheSize = 256

// Service computes and caches dashboard statistics.
type Service struct {
	backend Backend
	cache   *cache
}

// New creates a statistics service over the given backend.
func New(backend Backend) *Service {
	return &Service{
		backend: backend,
		cache:   newCache(defaultCacheSize),
	}
}

// ClassShare is one condition class's share of the selection.
type ClassShare struct {
	Class   model.ConditionClass `json:"class"`
	Label   string               `json:"label"`
	Count   int                  `json:"count"`
	LengthM float64              `json:"length_m"`
	Percent float64              `json:"percent"`
}

// Distribution is the condition distribution of a selection for one KPI,
// expressed as percentages of network length.
type Distribution struct {
	KPI          string                       `json:"kpi"`
	Year         int                          `json:"year,omitempty"`
	TotalLengthM float64                      `json:"total_length_m"`
	TotalCount   int                          `json:"total_count"`
	Classes      [model.ClassCount]ClassShare `json:"classes"`
}

// TrendPoint is one survey year's position in a trend: the mean, its
// classification, and that year's full class distribution so charts can
// stack class shares over time.
type TrendPoint struct {
	Year    int                          `json:"year"`
	Mean    float64                      `json:"mean"`
	Count   int                          `json:"count"`
	Class   model.ConditionClass         `json:"class"`
	Label   string                       `json:"label"`
	Classes [model.ClassCount]ClassShare `json:"classes"`
}

// Trend is the year-by-year movement of a KPI over a selection.
type Trend struct {
	KPI    string       `json:"kpi"`
	Points []TrendPoint `json:"points"`
}

// Comparison pairs two years' distributions for the swipe widget,
// with per-class percentage-point deltas (B minus A).
type Comparison struct {
	KPI    string                    `json:"kpi"`
	YearA  int                       `json:"year_a"`
	YearB  int                       `json:"year_b"`
	A      *Distribution             `json:"a"`
	B      *Distribution             `json:"b"`
	Deltas [model.ClassCount]float64 `json:"deltas"`
}

// Summary returns per-KPI aggregates over the selection.
func (s *Service) Summary(ctx context.Context, f model.Filter) ([]store.KPISummary, error) {
	key := "summary|" + f.Key()
	if v, ok := s.cache.get(key); ok {
		return v.([]store.KPISummary), nil
	}
	sums, err := s.backend.Summary(ctx, f)
	if err != nil {
		return nil, err
	}
	s.cache.put(key, sums)
	return sums, nil
}

// Distribution returns the selection's condition distribution for one
// KPI, with each class's share of the surveyed network length.
func (s *Service) Distribution(ctx context.Context, f model.Filter, kpi string) (*Distribution, error) {
	if _, ok := model.KPIByCode(kpi); !ok {
		return nil, fmt.Errorf("unknown KPI code %q", kpi)
	}
	key := "dist|" + kpi + "|" + f.Key()
	if v, ok := s.cache.get(key); ok {
		return v.(*Distribution), nil
	}

	buckets, err := s.backend.ClassDistribution(ctx, f, kpi)
	if err != nil {
		return nil, err
	}

	dist := &Distribution{KPI: kpi, Year: f.Year}
	for i, b := range buckets {
		dist.Classes[i] = ClassShare{
			Class:   b.Class,
			Label:   b.Label,
			Count:   b.Count,
			LengthM: b.LengthM,
		}
		dist.TotalLengthM += b.LengthM
		dist.TotalCount += b.Count
	}
	if dist.TotalLengthM > 0 {
		for i := range dist.Classes {
			dist.Classes[i].Percent = dist.Classes[i].LengthM / dist.TotalLengthM * 100
		}
	}

	s.cache.put(key, dist)
	return dist, nil
}

// Trend returns the yearly mean of a KPI over the selection, each year
// classified for chart coloring and carrying its class distribution.
// Any year restriction on the filter is ignored; a trend is by
// definition across years.
func (s *Service) Trend(ctx context.Context, f model.Filter, kpi string) (*Trend, error) {
	info, ok := model.KPIByCode(kpi)
	if !ok {
		return nil, fmt.Errorf("unknown KPI code %q", kpi)
	}
	f = f.WithYear(0)
	key := "trend|" + kpi + "|" + f.Key()
	if v, ok := s.cache.get(key); ok {
		return v.(*Trend), nil
	}

	means, err := s.backend.YearlyMeans(ctx, f, kpi)
	if err != nil {
		return nil, err
	}

	trend := &Trend{KPI: kpi, Points: make([]TrendPoint, 0, len(means))}
	for _, ym := range means {
		dist, err := s.Distribution(ctx, f.WithYear(ym.Year), kpi)
		if err != nil {
			return nil, err
		}
		class := info.Classify(ym.Mean)
		trend.Points = append(trend.Points, TrendPoint{
			Year:    ym.Year,
			Mean:    ym.Mean,
			Count:   ym.Count,
			Class:   class,
			Label:   class.String(),
			Classes: dist.Classes,
		})
	}

	s.cache.put(key, trend)
	return trend, nil
}

// CompareYears produces the swipe widget's payload: the distribution for
// two survey years over the same selection plus per-class deltas.
func (s *Service) CompareYears(ctx context.Context, f model.Filter, kpi string, yearA, yearB int) (*Comparison, error) {
	if yearA == yearB {
		return nil, fmt.Errorf("comparison years must differ (both %d)", yearA)
	}
	key := "compare|" + kpi + "|" + strconv.Itoa(yearA) + "|" + strconv.Itoa(yearB) + "|" + f.Key()
	if v, ok := s.cache.get(key); ok {
		return v.(*Comparison), nil
	}

	distA, err := s.Distribution(ctx, f.WithYear(yearA), kpi)
	if err != nil {
		return nil, err
	}
	distB, err := s.Distribution(ctx, f.WithYear(yearB), kpi)
	if err != nil {
		return nil, err
	}

	cmp := &Comparison{KPI: kpi, YearA: yearA, YearB: yearB, A: distA, B: distB}
	for i := range cmp.Deltas {
		cmp.Deltas[i] = distB.Classes[i].Percent - distA.Classes[i].Percent
	}

	s.cache.put(key, cmp)
	return cmp, nil
}

// Invalidate drops every cached result. Called when new survey data
// arrives.
func (s *Service) Invalidate() {
	s.cache.invalidate()
}

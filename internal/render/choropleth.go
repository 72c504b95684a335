package render

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync"

	"rmohub/internal/model"
	"rmohub/internal/store"
)

// AuthorityBackend supplies the per-LA aggregates the choropleth needs.
type AuthorityBackend interface {
	AuthorityMeans(ctx context.Context, kpi string, year int) ([]store.AuthorityMean, error)
}

// ChoroplethBreak is one equal-interval bucket of a choropleth.
type ChoroplethBreak struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Color string  `json:"color"`
	Label string  `json:"label"`
}

// AreaValue is one LA's value and assigned fill color.
type AreaValue struct {
	Authority string  `json:"authority"`
	Value     float64 `json:"value"`
	Color     string  `json:"color"`
}

// Choropleth is a per-authority fill renderer for one KPI and year.
type Choropleth struct {
	Type   string            `json:"type"`
	KPI    string            `json:"kpi"`
	Unit   string            `json:"unit"`
	Year   int               `json:"year"`
	Theme  string            `json:"theme"`
	Breaks []ChoroplethBreak `json:"breaks"`
	Areas  []AreaValue       `json:"areas"`
}

// DefaultChoroplethClasses is the break count when the request does not
// specify one.
const DefaultChoroplethClasses = 5

// AuthorityService builds and caches LA-level choropleths. Unlike the
// class-breaks renderer its buckets depend on the observed value range,
// so new survey data invalidates it.
type AuthorityService struct {
	backend AuthorityBackend

	mu    sync.RWMutex
	cache map[string]*Choropleth
}

// NewAuthorityService creates a choropleth service over the backend.
func NewAuthorityService(backend AuthorityBackend) *AuthorityService {
	return &AuthorityService{
		backend: backend,
		cache:   make(map[string]*Choropleth),
	}
}

// Choropleth returns the per-LA fill renderer for a KPI and year,
// bucketed into classCount equal intervals over the observed range.
func (s *AuthorityService) Choropleth(ctx context.Context, kpi string, year int, theme string, classCount int) (*Choropleth, error) {
	info, ok := model.KPIByCode(kpi)
	if !ok {
		return nil, fmt.Errorf("unknown KPI code %q", kpi)
	}
	if classCount <= 0 {
		classCount = DefaultChoroplethClasses
	}
	theme = normalizeTheme(theme)
	key := kpi + "|" + strconv.Itoa(year) + "|" + theme + "|" + strconv.Itoa(classCount)

	s.mu.RLock()
	if c, ok := s.cache[key]; ok {
		s.mu.RUnlock()
		return c, nil
	}
	s.mu.RUnlock()

	means, err := s.backend.AuthorityMeans(ctx, kpi, year)
	if err != nil {
		return nil, err
	}

	c := buildChoropleth(info, year, theme, classCount, means)

	s.mu.Lock()
	s.cache[key] = c
	s.mu.Unlock()
	return c, nil
}

func buildChoropleth(info model.KPIInfo, year int, theme string, classCount int, means []store.AuthorityMean) *Choropleth {
	c := &Choropleth{
		Type:  "choropleth",
		KPI:   info.Code,
		Unit:  info.Unit,
		Year:  year,
		Theme: theme,
	}
	if len(means) == 0 {
		return c
	}

	lo, hi := means[0].Mean, means[0].Mean
	for _, m := range means {
		lo = math.Min(lo, m.Mean)
		hi = math.Max(hi, m.Mean)
	}
	if hi == lo {
		// A flat value range still needs one bucket to color.
		hi = lo + 1
	}

	colors := rampColors(theme, classCount)
	if info.HigherIsBetter {
		// Ramp colors run best-first; for an inverted KPI the low end of
		// the value range is the bad end.
		for i, j := 0, len(colors)-1; i < j; i, j = i+1, j-1 {
			colors[i], colors[j] = colors[j], colors[i]
		}
	}

	width := (hi - lo) / float64(classCount)
	c.Breaks = make([]ChoroplethBreak, classCount)
	for i := 0; i < classCount; i++ {
		min := lo + float64(i)*width
		max := min + width
		c.Breaks[i] = ChoroplethBreak{
			Min:   min,
			Max:   max,
			Color: colors[i],
			Label: fmt.Sprintf("%.2f to %.2f %s", min, max, info.Unit),
		}
	}

	c.Areas = make([]AreaValue, 0, len(means))
	for _, m := range means {
		bucket := int((m.Mean - lo) / width)
		if bucket >= classCount {
			bucket = classCount - 1
		}
		c.Areas = append(c.Areas, AreaValue{
			Authority: m.Authority,
			Value:     m.Mean,
			Color:     c.Breaks[bucket].Color,
		})
	}
	return c
}

// Invalidate drops all cached choropleths; called when new survey data
// arrives.
func (s *AuthorityService) Invalidate() {
	s.mu.Lock()
	s.cache = make(map[string]*Choropleth)
	s.mu.Unlock()
}

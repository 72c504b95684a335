// Package render produces the symbology descriptions the map client
// applies to its layers: class-breaks renderers for line-symbol KPI
// layers and per-authority choropleths. Renderers are cached by
// (KPI, year, theme).
package render

import (
	"fmt"
	"strconv"
	"sync"

	"rmohub/internal/model"
)

// ClassBreak is one threshold bucket of a renderer. Min/Max are nil on
// the unbounded side of the first and last class.
type ClassBreak struct {
	Class model.ConditionClass `json:"class"`
	Label string               `json:"label"`
	Min   *float64             `json:"min,omitempty"`
	Max   *float64             `json:"max,omitempty"`
	Color string               `json:"color"`
	Width float64              `json:"width"`
}

// Renderer is a class-breaks renderer for a line-symbol KPI layer.
type Renderer struct {
	Type   string       `json:"type"`
	KPI    string       `json:"kpi"`
	Unit   string       `json:"unit"`
	Year   int          `json:"year"`
	Theme  string       `json:"theme"`
	Breaks []ClassBreak `json:"breaks"`
}

// lineWidth is the symbol width for every class; condition is conveyed
// by color, not weight.
const lineWidth = 3.0

// Service builds and caches class-breaks renderers.
type Service struct {
	mu    sync.RWMutex
	cache map[string]*Renderer
}

// NewService creates an empty renderer cache.
func NewService() *Service {
	return &Service{cache: make(map[string]*Renderer)}
}

func rendererKey(kpi string, year int, theme string) string {
	return kpi + "|" + strconv.Itoa(year) + "|" + theme
}

// ClassBreaks returns the renderer for a KPI layer in a given survey
// year and theme. The year does not change the thresholds today, but it
// is part of the cache key and the payload so clients can bind one
// renderer per swipe layer.
func (s *Service) ClassBreaks(kpi string, year int, theme string) (*Renderer, error) {
	info, ok := model.KPIByCode(kpi)
	if !ok {
		return nil, fmt.Errorf("unknown KPI code %q", kpi)
	}
	theme = normalizeTheme(theme)
	key := rendererKey(kpi, year, theme)

	s.mu.RLock()
	if r, ok := s.cache[key]; ok {
		s.mu.RUnlock()
		return r, nil
	}
	s.mu.RUnlock()

	r := buildClassBreaks(info, year, theme)

	s.mu.Lock()
	s.cache[key] = r
	s.mu.Unlock()
	return r, nil
}

func buildClassBreaks(info model.KPIInfo, year int, theme string) *Renderer {
	colors := rampColors(theme, model.ClassCount)
	r := &Renderer{
		Type:   "class-breaks",
		KPI:    info.Code,
		Unit:   info.Unit,
		Year:   year,
		Theme:  theme,
		Breaks: make([]ClassBreak, 0, model.ClassCount),
	}
	for i, c := range model.Classes() {
		min, max, hasMin, hasMax := info.ClassBounds(c)
		br := ClassBreak{
			Class: c,
			Label: c.String(),
			Color: colors[i],
			Width: lineWidth,
		}
		if hasMin {
			v := min
			br.Min = &v
		}
		if hasMax {
			v := max
			br.Max = &v
		}
		r.Breaks = append(r.Breaks, br)
	}
	return r
}

// Invalidate empties the cache. Renderers only depend on static
// thresholds and themes, so this exists for tests and future dynamic
// thresholds rather than the live feed.
func (s *Service) Invalidate() {
	s.mu.Lock()
	s.cache = make(map[string]*Renderer)
	s.mu.Unlock()
}

// Package report builds the canned Regional Report: a fixed set of
// chart and table sections over the whole network for the latest survey
// year, served as JSON and exportable as PNG charts plus an XLSX
// workbook.
package report

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"rmohub/internal/model"
	"rmohub/internal/stats"
	"rmohub/internal/store"
)

// worstCount is the length of the worst-segments table per KPI.
const worstCount = 10

// Backend is the slice of the store the report needs beyond the
// statistics service.
type Backend interface {
	NetworkOverview(ctx context.Context) ([]store.AuthorityNetwork, error)
	WorstSegments(ctx context.Context, kpi string, year, limit int) ([]store.SegmentValue, error)
	LatestYear(ctx context.Context) (int, error)
}

// Report is the full regional report.
type Report struct {
	ID          string    `json:"id"`
	GeneratedAt time.Time `json:"generated_at"`
	Year        int       `json:"year"`

	Overview      []store.AuthorityNetwork        `json:"overview"`
	Distributions map[string]*stats.Distribution  `json:"distributions"`
	Trends        map[string]*stats.Trend         `json:"trends"`
	Worst         map[string][]store.SegmentValue `json:"worst"`
}

// Builder assembles reports from the store and statistics service.
// Built reports are cached per resolved year until new survey data
// invalidates them, so serving one section does not rebuild the whole
// report.
type Builder struct {
	backend Backend
	stats   *stats.Service
	theme   string

	mu    sync.RWMutex
	cache map[int]*Report
}

// NewBuilder creates a report builder. theme selects the chart colors.
func NewBuilder(backend Backend, statsSvc *stats.Service, theme string) *Builder {
	return &Builder{
		backend: backend,
		stats:   statsSvc,
		theme:   theme,
		cache:   make(map[int]*Report),
	}
}

// Build assembles the report for the given survey year; year 0 means
// the latest year with survey data.
func (b *Builder) Build(ctx context.Context, year int) (*Report, error) {
	if year == 0 {
		latest, err := b.backend.LatestYear(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolving report year: %w", err)
		}
		year = latest
	}

	b.mu.RLock()
	if r, ok := b.cache[year]; ok {
		b.mu.RUnlock()
		return r, nil
	}
	b.mu.RUnlock()

	r := &Report{
		ID:            uuid.NewString(),
		GeneratedAt:   time.Now().UTC(),
		Year:          year,
		Distributions: make(map[string]*stats.Distribution),
		Trends:        make(map[string]*stats.Trend),
		Worst:         make(map[string][]store.SegmentValue),
	}

	overview, err := b.backend.NetworkOverview(ctx)
	if err != nil {
		return nil, fmt.Errorf("network overview: %w", err)
	}
	r.Overview = overview

	filter := model.Filter{Year: year}
	for _, info := range model.AllKPIs() {
		dist, err := b.stats.Distribution(ctx, filter, info.Code)
		if err != nil {
			return nil, fmt.Errorf("distribution for %s: %w", info.Code, err)
		}
		r.Distributions[info.Code] = dist

		trend, err := b.stats.Trend(ctx, model.Filter{}, info.Code)
		if err != nil {
			return nil, fmt.Errorf("trend for %s: %w", info.Code, err)
		}
		r.Trends[info.Code] = trend

		worst, err := b.backend.WorstSegments(ctx, info.Code, year, worstCount)
		if err != nil {
			return nil, fmt.Errorf("worst segments for %s: %w", info.Code, err)
		}
		r.Worst[info.Code] = worst
	}

	b.mu.Lock()
	b.cache[year] = r
	b.mu.Unlock()

	log.WithFields(log.Fields{"id": r.ID, "year": year}).Info("regional report built")
	return r, nil
}

// Invalidate drops cached reports; called when new survey data arrives.
func (b *Builder) Invalidate() {
	b.mu.Lock()
	b.cache = make(map[int]*Report)
	b.mu.Unlock()
}

// Section returns one named section of the report for the API, or an
// error for an unknown name.
func (r *Report) Section(name string) (any, error) {
	switch name {
	case "overview":
		return r.Overview, nil
	case "distributions":
		return r.Distributions, nil
	case "trends":
		return r.Trends, nil
	case "worst":
		return r.Worst, nil
	default:
		return nil, fmt.Errorf("unknown report section %q", name)
	}
}

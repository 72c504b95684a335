package stats

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rmohub/internal/model"
	"rmohub/internal/store"
)

// stubBackend serves canned aggregates and counts calls so tests can
// observe cache behavior.
type stubBackend struct {
	distCalls    int
	summaryCalls int
	trendCalls   int

	buckets map[string][model.ClassCount]store.ClassBucket
	means   []store.YearMean
}

func (b *stubBackend) Summary(_ context.Context, _ model.Filter) ([]store.KPISummary, error) {
	b.summaryCalls++
	return []store.KPISummary{{KPI: model.KPIRoughness, Count: 3, Mean: 2.5}}, nil
}

func (b *stubBackend) ClassDistribution(_ context.Context, f model.Filter, kpi string) ([model.ClassCount]store.ClassBucket, error) {
	b.distCalls++
	key := kpi + "|" + f.Key()
	if buckets, ok := b.buckets[key]; ok {
		return buckets, nil
	}
	var zero [model.ClassCount]store.ClassBucket
	for i, c := range model.Classes() {
		zero[i] = store.ClassBucket{Class: c, Label: c.String()}
	}
	return zero, nil
}

func (b *stubBackend) YearlyMeans(_ context.Context, _ model.Filter, _ string) ([]store.YearMean, error) {
	b.trendCalls++
	return b.means, nil
}

func bucketsOf(lengths [model.ClassCount]float64) [model.ClassCount]store.ClassBucket {
	var out [model.ClassCount]store.ClassBucket
	for i, c := range model.Classes() {
		out[i] = store.ClassBucket{Class: c, Label: c.String(), Count: 1, LengthM: lengths[i]}
	}
	return out
}

func TestDistributionPercentages(t *testing.T) {
	backend := &stubBackend{buckets: map[string][model.ClassCount]store.ClassBucket{}}
	f := model.Filter{Year: 2023}
	backend.buckets[model.KPIRoughness+"|"+f.Key()] = bucketsOf([model.ClassCount]float64{500, 1500, 1000, 750, 250})

	svc := New(backend)
	dist, err := svc.Distribution(context.Background(), f, model.KPIRoughness)
	require.NoError(t, err)

	assert.Equal(t, 4000.0, dist.TotalLengthM)
	assert.InDelta(t, 12.5, dist.Classes[model.VeryGood].Percent, 1e-9)
	assert.InDelta(t, 37.5, dist.Classes[model.Good].Percent, 1e-9)
	assert.InDelta(t, 6.25, dist.Classes[model.VeryPoor].Percent, 1e-9)

	total := 0.0
	for _, c := range dist.Classes {
		total += c.Percent
	}
	assert.InDelta(t, 100.0, total, 1e-9)
}

func TestDistributionEmptySelection(t *testing.T) {
	svc := New(&stubBackend{})
	dist, err := svc.Distribution(context.Background(), model.Filter{}, model.KPICracking)
	require.NoError(t, err)
	assert.Equal(t, 0.0, dist.TotalLengthM)
	for _, c := range dist.Classes {
		assert.Equal(t, 0.0, c.Percent)
	}
}

func TestDistributionUnknownKPI(t *testing.T) {
	svc := New(&stubBackend{})
	_, err := svc.Distribution(context.Background(), model.Filter{}, "NOPE")
	assert.Error(t, err)
}

func TestCachingAndInvalidation(t *testing.T) {
	backend := &stubBackend{}
	svc := New(backend)
	ctx := context.Background()
	f := model.Filter{Authorities: []string{"TRF"}}

	_, err := svc.Distribution(ctx, f, model.KPIRoughness)
	require.NoError(t, err)
	_, err = svc.Distribution(ctx, f, model.KPIRoughness)
	require.NoError(t, err)
	assert.Equal(t, 1, backend.distCalls, "second call must hit the cache")

	// Same selection expressed with reordered slices hits the same entry.
	_, err = svc.Summary(ctx, model.Filter{Authorities: []string{"A", "B"}})
	require.NoError(t, err)
	_, err = svc.Summary(ctx, model.Filter{Authorities: []string{"B", "A"}})
	require.NoError(t, err)
	assert.Equal(t, 1, backend.summaryCalls)

	svc.Invalidate()
	_, err = svc.Distribution(ctx, f, model.KPIRoughness)
	require.NoError(t, err)
	assert.Equal(t, 2, backend.distCalls, "invalidation must force recompute")
}

func TestTrendClassifiesYearMeans(t *testing.T) {
	backend := &stubBackend{means: []store.YearMean{
		{Year: 2022, Mean: 4.2, Count: 10},
		{Year: 2023, Mean: 3.1, Count: 12},
		{Year: 2024, Mean: 2.0, Count: 11},
	}}
	svc := New(backend)

	trend, err := svc.Trend(context.Background(), model.Filter{}, model.KPIRoughness)
	require.NoError(t, err)
	require.Len(t, trend.Points, 3)
	assert.Equal(t, model.Poor, trend.Points[0].Class)
	assert.Equal(t, model.Fair, trend.Points[1].Class)
	assert.Equal(t, model.Good, trend.Points[2].Class)
}

func TestTrendCarriesYearlyClassShares(t *testing.T) {
	backend := &stubBackend{
		means: []store.YearMean{
			{Year: 2023, Mean: 3.0, Count: 4},
			{Year: 2024, Mean: 2.0, Count: 4},
		},
		buckets: map[string][model.ClassCount]store.ClassBucket{},
	}
	backend.buckets[model.KPIRoughness+"|"+model.Filter{Year: 2023}.Key()] =
		bucketsOf([model.ClassCount]float64{100, 100, 100, 100, 100})
	backend.buckets[model.KPIRoughness+"|"+model.Filter{Year: 2024}.Key()] =
		bucketsOf([model.ClassCount]float64{300, 100, 50, 50, 0})

	svc := New(backend)
	trend, err := svc.Trend(context.Background(), model.Filter{}, model.KPIRoughness)
	require.NoError(t, err)
	require.Len(t, trend.Points, 2)

	// Each point carries its own year's distribution for stacked charts.
	assert.InDelta(t, 20.0, trend.Points[0].Classes[model.VeryGood].Percent, 1e-9)
	assert.InDelta(t, 60.0, trend.Points[1].Classes[model.VeryGood].Percent, 1e-9)
	assert.InDelta(t, 0.0, trend.Points[1].Classes[model.VeryPoor].Percent, 1e-9)
}

func TestCompareYears(t *testing.T) {
	backend := &stubBackend{buckets: map[string][model.ClassCount]store.ClassBucket{}}
	base := model.Filter{Authorities: []string{"TRF"}}
	backend.buckets[model.KPIRoughness+"|"+base.WithYear(2023).Key()] =
		bucketsOf([model.ClassCount]float64{100, 100, 100, 100, 100})
	backend.buckets[model.KPIRoughness+"|"+base.WithYear(2024).Key()] =
		bucketsOf([model.ClassCount]float64{200, 100, 100, 50, 50})

	svc := New(backend)
	cmp, err := svc.CompareYears(context.Background(), base, model.KPIRoughness, 2023, 2024)
	require.NoError(t, err)

	assert.Equal(t, 2023, cmp.A.Year)
	assert.Equal(t, 2024, cmp.B.Year)
	// Very Good went from 20% to 40%.
	assert.InDelta(t, 20.0, cmp.Deltas[model.VeryGood], 1e-9)
	// Very Poor went from 20% to 10%.
	assert.InDelta(t, -10.0, cmp.Deltas[model.VeryPoor], 1e-9)
}

func TestCompareYearsSameYearRejected(t *testing.T) {
	svc := New(&stubBackend{})
	_, err := svc.CompareYears(context.Background(), model.Filter{}, model.KPIRoughness, 2023, 2023)
	assert.Error(t, err)
}

func TestCacheEviction(t *testing.T) {
	c := newCache(2)
	c.put("a", 1)
	c.put("b", 2)
	c.put("c", 3)

	assert.Equal(t, 2, c.len())
	_, ok := c.get("a")
	assert.False(t, ok, "oldest entry must be evicted")
	_, ok = c.get("c")
	assert.True(t, ok)

	// Overwriting an existing key must not evict anything.
	c.put("c", 4)
	assert.Equal(t, 2, c.len())
	v, _ := c.get("c")
	assert.Equal(t, 4, v)
}

package report

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"rmohub/internal/model"
	"rmohub/internal/render"
	"rmohub/internal/stats"
)

const (
	chartWidth  = 800
	chartHeight = 400
)

// DistributionChart renders a condition distribution as a PNG bar
// chart, one bar per class colored from the theme ramp.
func DistributionChart(dist *stats.Distribution, theme string) ([]byte, error) {
	info, ok := model.KPIByCode(dist.KPI)
	if !ok {
		return nil, fmt.Errorf("unknown KPI code %q", dist.KPI)
	}

	bars := make([]chart.Value, 0, len(dist.Classes))
	for _, c := range dist.Classes {
		bars = append(bars, chart.Value{
			Label: c.Label,
			Value: c.Percent,
			Style: chart.Style{
				FillColor:   drawing.ColorFromHex(stripHash(render.ClassColor(theme, int(c.Class)))),
				StrokeColor: drawing.ColorFromHex("333333"),
				StrokeWidth: 1,
			},
		})
	}

	bc := chart.BarChart{
		Title:    fmt.Sprintf("%s condition distribution, %d", info.Name, dist.Year),
		Width:    chartWidth,
		Height:   chartHeight,
		BarWidth: 80,
		Bars:     bars,
		YAxis: chart.YAxis{
			Name: "% of network length",
			Range: &chart.ContinuousRange{
				Min: 0,
				Max: 100,
			},
		},
	}

	var buf bytes.Buffer
	if err := bc.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("rendering distribution chart for %s: %w", dist.KPI, err)
	}
	return buf.Bytes(), nil
}

// TrendChart renders the year-by-year mean of a KPI as a PNG line
// chart.
func TrendChart(trend *stats.Trend) ([]byte, error) {
	info, ok := model.KPIByCode(trend.KPI)
	if !ok {
		return nil, fmt.Errorf("unknown KPI code %q", trend.KPI)
	}
	if len(trend.Points) < 2 {
		return nil, fmt.Errorf("trend for %s has %d points, need at least 2", trend.KPI, len(trend.Points))
	}

	xs := make([]float64, 0, len(trend.Points))
	ys := make([]float64, 0, len(trend.Points))
	ticks := make([]chart.Tick, 0, len(trend.Points))
	for _, p := range trend.Points {
		xs = append(xs, float64(p.Year))
		ys = append(ys, p.Mean)
		ticks = append(ticks, chart.Tick{Value: float64(p.Year), Label: strconv.Itoa(p.Year)})
	}

	lc := chart.Chart{
		Title:  fmt.Sprintf("%s trend (%s)", info.Name, info.Unit),
		Width:  chartWidth,
		Height: chartHeight,
		XAxis: chart.XAxis{
			Ticks: ticks,
		},
		YAxis: chart.YAxis{
			Name: info.Unit,
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    info.Name,
				XValues: xs,
				YValues: ys,
				Style: chart.Style{
					StrokeColor: drawing.ColorFromHex("1F77B4"),
					StrokeWidth: 2,
					DotWidth:    4,
					DotColor:    drawing.ColorFromHex("1F77B4"),
				},
			},
		},
	}

	var buf bytes.Buffer
	if err := lc.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("rendering trend chart for %s: %w", trend.KPI, err)
	}
	return buf.Bytes(), nil
}

func stripHash(hex string) string {
	if len(hex) > 0 && hex[0] == '#' {
		return hex[1:]
	}
	return hex
}

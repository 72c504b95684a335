package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Write builds the report and writes its artifacts into dir: the XLSX
// workbook plus one distribution and one trend chart PNG per KPI.
// Returns the built report.
func (b *Builder) Write(ctx context.Context, dir string, year int) (*Report, error) {
	r, err := b.Build(ctx, year)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating report directory: %w", err)
	}

	workbook := filepath.Join(dir, fmt.Sprintf("regional-report-%d.xlsx", r.Year))
	if err := WriteWorkbook(r, workbook); err != nil {
		return nil, err
	}

	for kpi, dist := range r.Distributions {
		png, err := DistributionChart(dist, b.theme)
		if err != nil {
			return nil, err
		}
		name := filepath.Join(dir, fmt.Sprintf("distribution-%s-%d.png", strings.ToLower(kpi), r.Year))
		if err := os.WriteFile(name, png, 0o644); err != nil {
			return nil, fmt.Errorf("writing %s: %w", name, err)
		}
	}

	for kpi, trend := range r.Trends {
		if len(trend.Points) < 2 {
			log.WithField("kpi", kpi).Debug("skipping trend chart, not enough survey years")
			continue
		}
		png, err := TrendChart(trend)
		if err != nil {
			return nil, err
		}
		name := filepath.Join(dir, fmt.Sprintf("trend-%s.png", strings.ToLower(kpi)))
		if err := os.WriteFile(name, png, 0o644); err != nil {
			return nil, fmt.Errorf("writing %s: %w", name, err)
		}
	}

	log.WithFields(log.Fields{"dir": dir, "year": r.Year}).Info("report artifacts written")
	return r, nil
}

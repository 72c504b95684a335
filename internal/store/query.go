package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"

	"rmohub/internal/model"
)

// The aggregate queries join surveys (alias v) against segments
// (alias s) so filter predicates on authority/route/subgroup and the
// length weighting both resolve.

// KPISummary is the per-KPI aggregate over a selection.
type KPISummary struct {
	KPI   string  `json:"kpi"`
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// ClassBucket is one condition class's share of a selection.
type ClassBucket struct {
	Class   model.ConditionClass `json:"class"`
	Label   string               `json:"label"`
	Count   int                  `json:"count"`
	LengthM float64              `json:"length_m"`
}

// YearMean is a per-year average for trend charts.
type YearMean struct {
	Year  int     `json:"year"`
	Mean  float64 `json:"mean"`
	Count int     `json:"count"`
}

// AuthorityMean is a per-LA average for choropleth rendering.
type AuthorityMean struct {
	Authority string  `json:"authority"`
	Mean      float64 `json:"mean"`
	Count     int     `json:"count"`
}

// SegmentValue is one segment's observation, used by worst-segment
// listings.
type SegmentValue struct {
	SegmentID string               `json:"segment_id"`
	Authority string               `json:"authority"`
	Route     string               `json:"route"`
	Value     float64              `json:"value"`
	Class     model.ConditionClass `json:"class"`
}

// AuthorityNetwork is the per-LA network inventory.
type AuthorityNetwork struct {
	Authority string  `json:"authority"`
	Segments  int     `json:"segments"`
	LengthM   float64 `json:"length_m"`
}

// buildWhere translates a filter plus optional KPI restriction into a
// WHERE clause and its arguments. Clause order is fixed and IN-list
// values are sorted, so identical selections produce identical SQL.
func buildWhere(f model.Filter, kpi string) (string, []any) {
	var clauses []string
	var args []any

	if kpi != "" {
		clauses = append(clauses, "v.kpi = ?")
		args = append(args, kpi)
	}
	if f.Year != 0 {
		clauses = append(clauses, "v.year = ?")
		args = append(args, f.Year)
	}
	for _, in := range []struct {
		column string
		values []string
	}{
		{"s.authority", f.Authorities},
		{"s.route", f.Routes},
		{"s.subgroup", f.Subgroups},
	} {
		if len(in.values) == 0 {
			continue
		}
		sorted := make([]string, len(in.values))
		copy(sorted, in.values)
		sort.Strings(sorted)

		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(sorted)), ", ")
		clauses = append(clauses, fmt.Sprintf("%s IN (%s)", in.column, placeholders))
		for _, v := range sorted {
			args = append(args, v)
		}
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// classCase builds the CASE expression that buckets v.value into a
// condition class ordinal, honoring the KPI's direction.
func classCase(info model.KPIInfo) (string, []any) {
	op := "<"
	if info.HigherIsBetter {
		op = ">="
	}
	var b strings.Builder
	args := make([]any, 0, len(info.Thresholds))
	b.WriteString("CASE")
	for i, t := range info.Thresholds {
		fmt.Fprintf(&b, " WHEN v.value %s ? THEN %d", op, i)
		args = append(args, t)
	}
	fmt.Fprintf(&b, " ELSE %d END", int(model.VeryPoor))
	return b.String(), args
}

// Summary computes count/mean/min/max for every KPI over the selection.
func (s *Store) Summary(ctx context.Context, f model.Filter) ([]KPISummary, error) {
	out := make([]KPISummary, 0, len(model.AllKPIs()))
	for _, info := range model.AllKPIs() {
		where, args := buildWhere(f, info.Code)
		query := `SELECT COUNT(v.value), COALESCE(AVG(v.value), 0),
			COALESCE(MIN(v.value), 0), COALESCE(MAX(v.value), 0)
			FROM surveys v JOIN segments s ON s.id = v.segment_id` + where

		var sum KPISummary
		sum.KPI = info.Code
		if err := s.db.QueryRowContext(ctx, query, args...).
			Scan(&sum.Count, &sum.Mean, &sum.Min, &sum.Max); err != nil {
			return nil, fmt.Errorf("summary query for %s: %w", info.Code, err)
		}
		out = append(out, sum)
	}
	return out, nil
}

// ClassDistribution returns, for one KPI, the segment count and network
// length falling into each condition class over the selection.
//
// The primary strategy is a single grouped query. When that fails the
// method falls back to one ranged query per condition class and
// assembles the distribution from the parts.
func (s *Store) ClassDistribution(ctx context.Context, f model.Filter, kpi string) ([model.ClassCount]ClassBucket, error) {
	var out [model.ClassCount]ClassBucket
	info, ok := model.KPIByCode(kpi)
	if !ok {
		return out, fmt.Errorf("unknown KPI code %q", kpi)
	}
	for i, c := range model.Classes() {
		out[i] = ClassBucket{Class: c, Label: c.String()}
	}

	if err := s.classDistributionGrouped(ctx, f, info, &out); err != nil {
		log.WithError(err).WithField("kpi", kpi).
			Warn("grouped distribution query failed, falling back to per-class queries")
		if err := s.classDistributionPerClass(ctx, f, info, &out); err != nil {
			return out, err
		}
	}
	return out, nil
}

func (s *Store) classDistributionGrouped(ctx context.Context, f model.Filter, info model.KPIInfo, out *[model.ClassCount]ClassBucket) error {
	caseExpr, caseArgs := classCase(info)
	where, whereArgs := buildWhere(f, info.Code)

	query := fmt.Sprintf(`SELECT %s AS class, COUNT(*), COALESCE(SUM(s.length_m), 0)
		FROM surveys v JOIN segments s ON s.id = v.segment_id%s
		GROUP BY class`, caseExpr, where)

	args := append(caseArgs, whereArgs...)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var class, count int
		var length float64
		if err := rows.Scan(&class, &count, &length); err != nil {
			return err
		}
		if class < 0 || class >= model.ClassCount {
			return fmt.Errorf("grouped query produced class ordinal %d", class)
		}
		out[class].Count = count
		out[class].LengthM = length
	}
	return rows.Err()
}

func (s *Store) classDistributionPerClass(ctx context.Context, f model.Filter, info model.KPIInfo, out *[model.ClassCount]ClassBucket) error {
	where, whereArgs := buildWhere(f, info.Code)

	for i, c := range model.Classes() {
		min, max, hasMin, hasMax := info.ClassBounds(c)

		query := `SELECT COUNT(*), COALESCE(SUM(s.length_m), 0)
			FROM surveys v JOIN segments s ON s.id = v.segment_id` + where
		args := append([]any{}, whereArgs...)
		if where == "" {
			query += " WHERE 1=1"
		}
		if hasMin {
			query += " AND v.value >= ?"
			args = append(args, min)
		}
		if hasMax {
			query += " AND v.value < ?"
			args = append(args, max)
		}

		if err := s.db.QueryRowContext(ctx, query, args...).
			Scan(&out[i].Count, &out[i].LengthM); err != nil {
			return fmt.Errorf("per-class query for %s/%s: %w", info.Code, c, err)
		}
	}
	return nil
}

// YearlyMeans returns the average KPI value per survey year over the
// selection, ignoring any year restriction in the filter.
func (s *Store) YearlyMeans(ctx context.Context, f model.Filter, kpi string) ([]YearMean, error) {
	noYear := f
	noYear.Year = 0
	where, args := buildWhere(noYear, kpi)

	query := `SELECT v.year, AVG(v.value), COUNT(*)
		FROM surveys v JOIN segments s ON s.id = v.segment_id` + where + `
		GROUP BY v.year ORDER BY v.year`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []YearMean
	for rows.Next() {
		var ym YearMean
		if err := rows.Scan(&ym.Year, &ym.Mean, &ym.Count); err != nil {
			return nil, err
		}
		out = append(out, ym)
	}
	return out, rows.Err()
}

// AuthorityMeans returns the per-LA average for a KPI and year.
func (s *Store) AuthorityMeans(ctx context.Context, kpi string, year int) ([]AuthorityMean, error) {
	where, args := buildWhere(model.Filter{Year: year}, kpi)

	query := `SELECT s.authority, AVG(v.value), COUNT(*)
		FROM surveys v JOIN segments s ON s.id = v.segment_id` + where + `
		GROUP BY s.authority ORDER BY s.authority`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AuthorityMean
	for rows.Next() {
		var am AuthorityMean
		if err := rows.Scan(&am.Authority, &am.Mean, &am.Count); err != nil {
			return nil, err
		}
		out = append(out, am)
	}
	return out, rows.Err()
}

// WorstSegments lists the segments in the worst condition for a KPI and
// year. "Worst" respects the KPI's direction.
func (s *Store) WorstSegments(ctx context.Context, kpi string, year, limit int) ([]SegmentValue, error) {
	info, ok := model.KPIByCode(kpi)
	if !ok {
		return nil, fmt.Errorf("unknown KPI code %q", kpi)
	}
	order := "DESC"
	if info.HigherIsBetter {
		order = "ASC"
	}
	where, args := buildWhere(model.Filter{Year: year}, kpi)

	query := fmt.Sprintf(`SELECT v.segment_id, s.authority, s.route, v.value
		FROM surveys v JOIN segments s ON s.id = v.segment_id%s
		ORDER BY v.value %s LIMIT ?`, where, order)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SegmentValue
	for rows.Next() {
		var sv SegmentValue
		if err := rows.Scan(&sv.SegmentID, &sv.Authority, &sv.Route, &sv.Value); err != nil {
			return nil, err
		}
		sv.Class = info.Classify(sv.Value)
		out = append(out, sv)
	}
	return out, rows.Err()
}

// NetworkOverview returns the per-LA segment count and network length.
func (s *Store) NetworkOverview(ctx context.Context) ([]AuthorityNetwork, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT authority, COUNT(*), COALESCE(SUM(length_m), 0)
		FROM segments GROUP BY authority ORDER BY authority`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AuthorityNetwork
	for rows.Next() {
		var an AuthorityNetwork
		if err := rows.Scan(&an.Authority, &an.Segments, &an.LengthM); err != nil {
			return nil, err
		}
		out = append(out, an)
	}
	return out, rows.Err()
}

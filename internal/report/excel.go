package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"rmohub/internal/model"
)

// WriteWorkbook writes the report as an XLSX workbook with one sheet per
// section.
func WriteWorkbook(r *Report, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := writeOverviewSheet(f, r); err != nil {
		return err
	}
	if err := writeDistributionSheet(f, r); err != nil {
		return err
	}
	if err := writeTrendSheet(f, r); err != nil {
		return err
	}
	if err := writeWorstSheet(f, r); err != nil {
		return err
	}

	f.DeleteSheet("Sheet1")

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving workbook %s: %w", path, err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values ...any) error {
	for col, v := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
	}
	return nil
}

func writeOverviewSheet(f *excelize.File, r *Report) error {
	const sheet = "Overview"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	if err := setRow(f, sheet, 1, "Local Authority", "Segments", "Network Length (km)"); err != nil {
		return err
	}
	row := 2
	for _, an := range r.Overview {
		if err := setRow(f, sheet, row, an.Authority, an.Segments, an.LengthM/1000); err != nil {
			return err
		}
		row++
	}
	return nil
}

func writeDistributionSheet(f *excelize.File, r *Report) error {
	const sheet = "Condition Distribution"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	header := []any{"KPI"}
	for _, c := range model.Classes() {
		header = append(header, c.String()+" (%)")
	}
	header = append(header, "Surveyed Length (km)")
	if err := setRow(f, sheet, 1, header...); err != nil {
		return err
	}

	row := 2
	for _, info := range model.AllKPIs() {
		dist, ok := r.Distributions[info.Code]
		if !ok {
			continue
		}
		values := []any{info.Name}
		for _, c := range dist.Classes {
			values = append(values, c.Percent)
		}
		values = append(values, dist.TotalLengthM/1000)
		if err := setRow(f, sheet, row, values...); err != nil {
			return err
		}
		row++
	}
	return nil
}

func writeTrendSheet(f *excelize.File, r *Report) error {
	const sheet = "Trends"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	if err := setRow(f, sheet, 1, "KPI", "Year", "Mean", "Observations", "Condition"); err != nil {
		return err
	}
	row := 2
	for _, info := range model.AllKPIs() {
		trend, ok := r.Trends[info.Code]
		if !ok {
			continue
		}
		for _, p := range trend.Points {
			if err := setRow(f, sheet, row, info.Name, p.Year, p.Mean, p.Count, p.Label); err != nil {
				return err
			}
			row++
		}
	}
	return nil
}

func writeWorstSheet(f *excelize.File, r *Report) error {
	const sheet = "Worst Segments"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	if err := setRow(f, sheet, 1, "KPI", "Segment", "Local Authority", "Route", "Value", "Condition"); err != nil {
		return err
	}
	row := 2
	for _, info := range model.AllKPIs() {
		for _, sv := range r.Worst[info.Code] {
			if err := setRow(f, sheet, row, info.Name, sv.SegmentID, sv.Authority, sv.Route, sv.Value, sv.Class.String()); err != nil {
				return err
			}
			row++
		}
	}
	return nil
}

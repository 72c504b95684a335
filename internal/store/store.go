// Package store persists the road network attributes and survey
// observations in SQLite and answers the aggregate queries behind the
// statistics and renderer services.
package store

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"rmohub/internal/model"
)

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS segments (
	id        TEXT PRIMARY KEY,
	authority TEXT NOT NULL,
	route     TEXT NOT NULL,
	subgroup  TEXT NOT NULL,
	length_m  REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS surveys (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	segment_id  TEXT NOT NULL,
	year        INTEGER NOT NULL,
	kpi         TEXT NOT NULL,
	value       REAL NOT NULL,
	source      TEXT NOT NULL DEFAULT '',
	recorded_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_surveys_kpi_year ON surveys(kpi, year);
CREATE INDEX IF NOT EXISTS idx_surveys_segment  ON surveys(segment_id);
CREATE INDEX IF NOT EXISTS idx_segments_authority ON segments(authority);
`

// Open opens (creating if necessary) the database at path and applies
// the schema. Use ":memory:" for an ephemeral database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}
	// modernc sqlite serializes writes; a single connection avoids
	// table-lock errors from concurrent writers.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertSegments writes segment attribute rows, replacing existing ones.
func (s *Store) UpsertSegments(ctx context.Context, segments []model.Segment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO segments (id, authority, route, subgroup, length_m)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			authority = excluded.authority,
			route     = excluded.route,
			subgroup  = excluded.subgroup,
			length_m  = excluded.length_m`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, seg := range segments {
		if _, err := stmt.ExecContext(ctx, seg.ID, seg.Authority, seg.Route, seg.Subgroup, seg.LengthM); err != nil {
			return fmt.Errorf("upserting segment %s: %w", seg.ID, err)
		}
	}
	return tx.Commit()
}

// InsertSurvey writes a single survey observation.
func (s *Store) InsertSurvey(ctx context.Context, rec model.SurveyRecord) error {
	if _, ok := model.KPIByCode(rec.KPI); !ok {
		return fmt.Errorf("unknown KPI code %q", rec.KPI)
	}
	recorded := rec.RecordedAt
	if recorded.IsZero() {
		recorded = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO surveys (segment_id, year, kpi, value, source, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.SegmentID, rec.Year, rec.KPI, rec.Value, rec.Source, recorded)
	return err
}

// ImportSurveysCSV bulk-loads observations from a CSV stream with header
// segment_id,year,kpi,value[,source]. Returns the number of rows loaded.
func (s *Store) ImportSurveysCSV(ctx context.Context, r io.Reader) (int, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("reading CSV header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, required := range []string{"segment_id", "year", "kpi", "value"} {
		if _, ok := col[required]; !ok {
			return 0, fmt.Errorf("CSV is missing required column %q", required)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO surveys (segment_id, year, kpi, value, source)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	count := 0
	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return 0, fmt.Errorf("CSV line %d: %w", line, err)
		}

		kpi := row[col["kpi"]]
		if _, ok := model.KPIByCode(kpi); !ok {
			log.WithFields(log.Fields{"line": line, "kpi": kpi}).Warn("skipping row with unknown KPI")
			continue
		}
		year, err := strconv.Atoi(row[col["year"]])
		if err != nil {
			return 0, fmt.Errorf("CSV line %d: bad year %q", line, row[col["year"]])
		}
		value, err := strconv.ParseFloat(row[col["value"]], 64)
		if err != nil {
			return 0, fmt.Errorf("CSV line %d: bad value %q", line, row[col["value"]])
		}
		source := ""
		if i, ok := col["source"]; ok && i < len(row) {
			source = row[i]
		}

		if _, err := stmt.ExecContext(ctx, row[col["segment_id"]], year, kpi, value, source); err != nil {
			return 0, fmt.Errorf("CSV line %d: %w", line, err)
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return count, nil
}

// distinct runs a single-column listing query.
func (s *Store) distinct(ctx context.Context, query string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Authorities lists distinct LA codes present in the network.
func (s *Store) Authorities(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, `SELECT DISTINCT authority FROM segments ORDER BY authority`)
}

// Routes lists distinct route classification codes.
func (s *Store) Routes(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, `SELECT DISTINCT route FROM segments ORDER BY route`)
}

// Subgroups lists distinct subgroup codes.
func (s *Store) Subgroups(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, `SELECT DISTINCT subgroup FROM segments ORDER BY subgroup`)
}

// Years lists distinct survey years, newest first.
func (s *Store) Years(ctx context.Context) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT year FROM surveys ORDER BY year DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var y int
		if err := rows.Scan(&y); err != nil {
			return nil, err
		}
		out = append(out, y)
	}
	return out, rows.Err()
}

// LatestYear returns the most recent survey year, or an error when no
// surveys are loaded.
func (s *Store) LatestYear(ctx context.Context) (int, error) {
	var year sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(year) FROM surveys`).Scan(&year); err != nil {
		return 0, err
	}
	if !year.Valid {
		return 0, fmt.Errorf("no survey data loaded")
	}
	return int(year.Int64), nil
}

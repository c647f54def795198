// Package store archives enrichment runs in sqlite or postgres.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"goea/domain/core"
	"goea/domain/enrichment"
	"goea/domain/ontology"
	apperrors "goea/internal/errors"
	"goea/ports"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// RunStore implements ports.RunRepository.
type RunStore struct {
	db *sqlx.DB
}

var _ ports.RunRepository = (*RunStore)(nil)

// Open connects to dsn with driver and applies the schema.
func Open(ctx context.Context, driver, dsn string) (*RunStore, error) {
	switch driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, apperrors.ConfigInvalid(fmt.Sprintf("unsupported store driver %q", driver))
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, apperrors.DatabaseError("open run store", err)
	}
	if driver == DriverSQLite {
		// ":memory:" databases live only as long as their connection.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, apperrors.DatabaseError("connect run store", err)
	}
	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, apperrors.DatabaseError("migrate run store", err)
	}
	return &RunStore{db: db}, nil
}

// NewRunStore wraps an already migrated connection.
func NewRunStore(db *sqlx.DB) *RunStore {
	return &RunStore{db: db}
}

// Close releases the connection pool.
func (s *RunStore) Close() error { return s.db.Close() }

type runRow struct {
	ID         string    `db:"id"`
	CreatedAt  time.Time `db:"created_at"`
	TestMethod string    `db:"test_method"`
	Methods    string    `db:"methods"`
	StudyN     int       `db:"study_n"`
	PopN       int       `db:"pop_n"`
	Tests      int       `db:"tests"`
	Summary    string    `db:"summary"`
	Warnings   string    `db:"warnings"`
}

type resultRow struct {
	RunID        string  `db:"run_id"`
	Position     int     `db:"position"`
	TermID       string  `db:"term_id"`
	Name         string  `db:"name"`
	Namespace    string  `db:"namespace"`
	Obsolete     bool    `db:"obsolete"`
	StudyCount   int     `db:"study_count"`
	StudyN       int     `db:"study_n"`
	PopCount     int     `db:"pop_count"`
	PopN         int     `db:"pop_n"`
	PUncorrected float64 `db:"p_uncorrected"`
	Enrichment   string  `db:"enrichment"`
}

type correctionRow struct {
	RunID  string  `db:"run_id"`
	TermID string  `db:"term_id"`
	Method string  `db:"method"`
	P      float64 `db:"p"`
}

// SaveRun stores run and all of its results in one transaction.
func (s *RunStore) SaveRun(ctx context.Context, run *enrichment.Run) error {
	summary, err := json.Marshal(run.Summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	warnings, err := json.Marshal(run.Warnings)
	if err != nil {
		return fmt.Errorf("marshal warnings: %w", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperrors.DatabaseError("begin run insert", err)
	}
	defer tx.Rollback()

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO runs (id, created_at, test_method, methods, study_n, pop_n, tests, summary, warnings)
		VALUES (:id, :created_at, :test_method, :methods, :study_n, :pop_n, :tests, :summary, :warnings)`,
		runRow{
			ID:         run.ID.String(),
			CreatedAt:  run.CreatedAt.Time(),
			TestMethod: run.TestMethod,
			Methods:    strings.Join(run.Methods, ","),
			StudyN:     run.StudyTotal,
			PopN:       run.PopTotal,
			Tests:      len(run.Results),
			Summary:    string(summary),
			Warnings:   string(warnings),
		})
	if err != nil {
		return apperrors.DatabaseError(fmt.Sprintf("insert run %s", run.ID), err)
	}

	for i, r := range run.Results {
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO results (run_id, position, term_id, name, namespace, obsolete,
				study_count, study_n, pop_count, pop_n, p_uncorrected, enrichment)
			VALUES (:run_id, :position, :term_id, :name, :namespace, :obsolete,
				:study_count, :study_n, :pop_count, :pop_n, :p_uncorrected, :enrichment)`,
			resultRow{
				RunID:        run.ID.String(),
				Position:     i,
				TermID:       string(r.TermID),
				Name:         r.Name,
				Namespace:    r.Namespace,
				Obsolete:     r.Obsolete,
				StudyCount:   r.StudyCount,
				StudyN:       r.StudyTotal,
				PopCount:     r.PopCount,
				PopN:         r.PopTotal,
				PUncorrected: r.PUncorrected,
				Enrichment:   string(r.Direction),
			})
		if err != nil {
			return apperrors.DatabaseError(fmt.Sprintf("insert result %s", r.TermID), err)
		}
		for method, p := range r.Corrected {
			_, err := tx.NamedExecContext(ctx, `
				INSERT INTO corrections (run_id, term_id, method, p)
				VALUES (:run_id, :term_id, :method, :p)`,
				correctionRow{RunID: run.ID.String(), TermID: string(r.TermID), Method: method, P: p})
			if err != nil {
				return apperrors.DatabaseError(fmt.Sprintf("insert %s correction for %s", method, r.TermID), err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.DatabaseError("commit run insert", err)
	}
	return nil
}

// GetRun loads a run with its results in their stored order.
func (s *RunStore) GetRun(ctx context.Context, id core.RunID) (*enrichment.Run, error) {
	var row runRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`
		SELECT id, created_at, test_method, methods, study_n, pop_n, tests, summary, warnings
		FROM runs WHERE id = ?`), id.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.NewRunNotFoundError(id.String())
		}
		return nil, apperrors.DatabaseError(fmt.Sprintf("load run %s", id), err)
	}

	run := &enrichment.Run{
		ID:         core.RunID(row.ID),
		CreatedAt:  core.NewTimestamp(row.CreatedAt),
		TestMethod: row.TestMethod,
		Methods:    splitMethods(row.Methods),
		StudyTotal: row.StudyN,
		PopTotal:   row.PopN,
	}
	if err := json.Unmarshal([]byte(row.Summary), &run.Summary); err != nil {
		return nil, fmt.Errorf("decode summary of run %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(row.Warnings), &run.Warnings); err != nil {
		return nil, fmt.Errorf("decode warnings of run %s: %w", id, err)
	}

	var results []resultRow
	if err := s.db.SelectContext(ctx, &results, s.db.Rebind(`
		SELECT run_id, position, term_id, name, namespace, obsolete, study_count, study_n,
			pop_count, pop_n, p_uncorrected, enrichment
		FROM results WHERE run_id = ? ORDER BY position`), id.String()); err != nil {
		return nil, apperrors.DatabaseError(fmt.Sprintf("load results of run %s", id), err)
	}

	var corrections []correctionRow
	if err := s.db.SelectContext(ctx, &corrections, s.db.Rebind(`
		SELECT run_id, term_id, method, p FROM corrections WHERE run_id = ?`), id.String()); err != nil {
		return nil, apperrors.DatabaseError(fmt.Sprintf("load corrections of run %s", id), err)
	}
	byTerm := make(map[string]map[string]float64, len(results))
	for _, c := range corrections {
		if byTerm[c.TermID] == nil {
			byTerm[c.TermID] = make(map[string]float64, len(run.Methods))
		}
		byTerm[c.TermID][c.Method] = c.P
	}

	run.Results = make([]enrichment.Result, len(results))
	for i, r := range results {
		corrected := byTerm[r.TermID]
		if corrected == nil {
			corrected = map[string]float64{}
		}
		run.Results[i] = enrichment.Result{
			TermID:       ontology.TermID(r.TermID),
			Name:         r.Name,
			Namespace:    r.Namespace,
			Obsolete:     r.Obsolete,
			StudyCount:   r.StudyCount,
			StudyTotal:   r.StudyN,
			PopCount:     r.PopCount,
			PopTotal:     r.PopN,
			PUncorrected: r.PUncorrected,
			Corrected:    corrected,
			Direction:    enrichment.Direction(r.Enrichment),
		}
	}
	return run, nil
}

// ListRuns returns the most recent runs first. A non-positive limit lists all.
func (s *RunStore) ListRuns(ctx context.Context, limit int) ([]ports.RunHeader, error) {
	query := `SELECT id, created_at, test_method, methods, study_n, pop_n, tests, summary, warnings
		FROM runs ORDER BY created_at DESC, id DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var rows []runRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, apperrors.DatabaseError("list runs", err)
	}

	headers := make([]ports.RunHeader, len(rows))
	for i, r := range rows {
		headers[i] = ports.RunHeader{
			ID:         core.RunID(r.ID),
			CreatedAt:  core.NewTimestamp(r.CreatedAt),
			TestMethod: r.TestMethod,
			Methods:    splitMethods(r.Methods),
			StudyTotal: r.StudyN,
			PopTotal:   r.PopN,
			Tests:      r.Tests,
		}
	}
	return headers, nil
}

func splitMethods(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

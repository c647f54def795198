package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type migration struct {
	Version    string
	Statements []string
}

func (m migration) checksum() string {
	h := sha256.New()
	for _, s := range m.Statements {
		h.Write([]byte(s))
	}
	return hex.EncodeToString(h.Sum(nil))
}

var migrations = []migration{
	{
		Version: "001_runs",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS runs (
				id TEXT PRIMARY KEY,
				created_at TIMESTAMP NOT NULL,
				test_method TEXT NOT NULL,
				methods TEXT NOT NULL,
				study_n INTEGER NOT NULL,
				pop_n INTEGER NOT NULL,
				tests INTEGER NOT NULL,
				summary TEXT NOT NULL,
				warnings TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS results (
				run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
				position INTEGER NOT NULL,
				term_id TEXT NOT NULL,
				name TEXT NOT NULL,
				namespace TEXT NOT NULL,
				obsolete BOOLEAN NOT NULL,
				study_count INTEGER NOT NULL,
				study_n INTEGER NOT NULL,
				pop_count INTEGER NOT NULL,
				pop_n INTEGER NOT NULL,
				p_uncorrected DOUBLE PRECISION NOT NULL,
				enrichment TEXT NOT NULL,
				PRIMARY KEY (run_id, term_id)
			)`,
			`CREATE TABLE IF NOT EXISTS corrections (
				run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
				term_id TEXT NOT NULL,
				method TEXT NOT NULL,
				p DOUBLE PRECISION NOT NULL,
				PRIMARY KEY (run_id, term_id, method)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at)`,
		},
	},
}

// migrate applies pending migrations and records them in schema_migrations.
func migrate(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			checksum TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	var applied []string
	if err := db.SelectContext(ctx, &applied, `SELECT version FROM schema_migrations`); err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}
	done := make(map[string]bool, len(applied))
	for _, v := range applied {
		done[v] = true
	}

	for _, m := range migrations {
		if done[m.Version] {
			continue
		}
		tx, err := db.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}
		for _, stmt := range m.Statements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				tx.Rollback()
				return fmt.Errorf("failed to apply migration %s: %w", m.Version, err)
			}
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO schema_migrations (version, checksum) VALUES (?, ?)`),
			m.Version, m.checksum()); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %s: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %s: %w", m.Version, err)
		}
	}
	return nil
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"goea/adapters/store"
	"goea/domain/core"
	"goea/domain/enrichment"
	"goea/internal"
	apperrors "goea/internal/errors"
)

// migrate imports run reports written by `goea enrich --format json` into a
// run archive.
func main() {
	if len(os.Args) < 4 {
		fmt.Fprintln(os.Stderr, "Usage: migrate <driver> <dsn> <runs_dir>")
		os.Exit(2)
	}
	driver, dsn, runsDir := os.Args[1], os.Args[2], os.Args[3]
	logger := internal.NewDefaultLogger()

	logger.Info("starting migration", "dir", runsDir, "driver", driver)

	ctx := context.Background()
	runs, err := store.Open(ctx, driver, dsn)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer runs.Close()

	files, err := findRunFiles(runsDir)
	if err != nil {
		logger.Error("failed to find run files", "error", err)
		os.Exit(1)
	}
	logger.Info("found run files", "count", len(files))

	migrated, skipped := 0, 0
	for _, file := range files {
		run, err := loadRunFromFile(file)
		if err != nil {
			logger.Warn("failed to load run", "file", file, "error", err)
			skipped++
			continue
		}

		if err := runs.SaveRun(ctx, run); err != nil {
			if apperrors.GetCode(err) == apperrors.CodeDatabaseError {
				logger.Warn("run not saved, possibly already archived", "run_id", run.ID, "file", file, "error", err)
			} else {
				logger.Warn("failed to save run", "run_id", run.ID, "error", err)
			}
			skipped++
			continue
		}

		migrated++
		logger.Info("migrated run", "run_id", run.ID, "file", filepath.Base(file))
	}

	logger.Info("migration complete", "migrated", migrated, "skipped", skipped)
}

func findRunFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && strings.HasSuffix(path, ".json") {
			files = append(files, path)
		}
		return nil
	})

	return files, err
}

// loadRunFromFile decodes a run report. Reports without an id get a fresh
// one; reports without a timestamp take the file's modification time.
func loadRunFromFile(path string) (*enrichment.Run, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var run enrichment.Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if len(run.Results) == 0 && run.TestMethod == "" {
		return nil, fmt.Errorf("%s is not a run report", path)
	}

	if run.ID == "" {
		run.ID = core.NewRunID()
	} else if _, err := core.ParseRunID(run.ID.String()); err != nil {
		return nil, err
	}
	if run.CreatedAt.IsZero() {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		run.CreatedAt = core.NewTimestamp(info.ModTime())
	}
	return &run, nil
}

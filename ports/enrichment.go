package ports

import (
	"context"

	"goea/domain/core"
	"goea/domain/enrichment"
)

// PValueCalculator computes a two-sided significance value for one term's
// 2x2 table: studyCount of studyTotal study items and popCount of popTotal
// background items carry the term.
type PValueCalculator interface {
	Name() string
	PValue(studyCount, studyTotal, popCount, popTotal int) (float64, error)
}

// RunRepository archives enrichment runs.
type RunRepository interface {
	SaveRun(ctx context.Context, run *enrichment.Run) error
	GetRun(ctx context.Context, id core.RunID) (*enrichment.Run, error)
	ListRuns(ctx context.Context, limit int) ([]RunHeader, error)
}

// RunHeader is the list view of an archived run.
type RunHeader struct {
	ID         core.RunID     `json:"id"`
	CreatedAt  core.Timestamp `json:"created_at"`
	TestMethod string         `json:"test_method"`
	Methods    []string       `json:"methods"`
	StudyTotal int            `json:"study_n"`
	PopTotal   int            `json:"pop_n"`
	Tests      int            `json:"tests"`
}

package storage

import (
	"context"

	"pdevo/internal/model"
)

// Store persists runs together with their per-generation reports and
// population snapshots. Lookups that find nothing return (zero, false, nil).
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	SavePopulation(ctx context.Context, snapshot model.PopulationSnapshot) error
	GetPopulation(ctx context.Context, runID string, generation int) (model.PopulationSnapshot, bool, error)
	LatestPopulation(ctx context.Context, runID string) (model.PopulationSnapshot, bool, error)
	AppendGenerationReport(ctx context.Context, runID string, report model.GenerationReport) error
	GetGenerationReports(ctx context.Context, runID string) ([]model.GenerationReport, bool, error)
}

// Versioned stamps the current schema and codec versions on a record.
func Versioned() model.VersionedRecord {
	return model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

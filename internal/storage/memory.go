package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"pdevo/internal/model"
)

var errNotInitialized = errors.New("store is not initialized")

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]model.RunRecord
	populations map[string]map[int]model.PopulationSnapshot
	reports     map[string][]model.GenerationReport
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string]model.RunRecord)
	s.populations = make(map[string]map[int]model.PopulationSnapshot)
	s.reports = make(map[string][]model.GenerationReport)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.runs[run.ID] = copyRun(run)
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return model.RunRecord{}, false, nil
	}
	return copyRun(run), true, nil
}

// ListRuns returns every run, oldest first.
func (s *MemoryStore) ListRuns(_ context.Context) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]model.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, copyRun(run))
	}
	sortRuns(runs)
	return runs, nil
}

func (s *MemoryStore) SavePopulation(_ context.Context, snapshot model.PopulationSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	byGeneration, ok := s.populations[snapshot.RunID]
	if !ok {
		byGeneration = make(map[int]model.PopulationSnapshot)
		s.populations[snapshot.RunID] = byGeneration
	}
	byGeneration[snapshot.Generation] = copySnapshot(snapshot)
	return nil
}

func (s *MemoryStore) GetPopulation(_ context.Context, runID string, generation int) (model.PopulationSnapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot, ok := s.populations[runID][generation]
	if !ok {
		return model.PopulationSnapshot{}, false, nil
	}
	return copySnapshot(snapshot), true, nil
}

func (s *MemoryStore) LatestPopulation(_ context.Context, runID string) (model.PopulationSnapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byGeneration, ok := s.populations[runID]
	if !ok || len(byGeneration) == 0 {
		return model.PopulationSnapshot{}, false, nil
	}
	latest := -1
	for generation := range byGeneration {
		if generation > latest {
			latest = generation
		}
	}
	return copySnapshot(byGeneration[latest]), true, nil
}

// AppendGenerationReport stores report under runID. A report for a
// generation that is already present replaces the earlier one.
func (s *MemoryStore) AppendGenerationReport(_ context.Context, runID string, report model.GenerationReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	reports := s.reports[runID]
	for i := range reports {
		if reports[i].Generation == report.Generation {
			reports[i] = copyReport(report)
			return nil
		}
	}
	reports = append(reports, copyReport(report))
	sort.SliceStable(reports, func(i, j int) bool { return reports[i].Generation < reports[j].Generation })
	s.reports[runID] = reports
	return nil
}

func (s *MemoryStore) GetGenerationReports(_ context.Context, runID string) ([]model.GenerationReport, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reports, ok := s.reports[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]model.GenerationReport, 0, len(reports))
	for _, report := range reports {
		copied = append(copied, copyReport(report))
	}
	return copied, true, nil
}

func sortRuns(runs []model.RunRecord) {
	sort.SliceStable(runs, func(i, j int) bool {
		if !runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].CreatedAt.Before(runs[j].CreatedAt)
		}
		return runs[i].ID < runs[j].ID
	})
}

func copyRun(run model.RunRecord) model.RunRecord {
	run.InitialPopulation = copyCounts(run.InitialPopulation)
	return run
}

func copySnapshot(snapshot model.PopulationSnapshot) model.PopulationSnapshot {
	snapshot.Counts = copyCounts(snapshot.Counts)
	snapshot.Members = append([]model.MemberRecord(nil), snapshot.Members...)
	return snapshot
}

func copyReport(report model.GenerationReport) model.GenerationReport {
	report.CountsBefore = copyCounts(report.CountsBefore)
	report.CountsAfter = copyCounts(report.CountsAfter)
	return report
}

func copyCounts(in map[string]int) map[string]int {
	if in == nil {
		return nil
	}
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"pdevo/internal/evo"
	"pdevo/internal/logging"
	"pdevo/internal/model"
	"pdevo/internal/storage"
	"pdevo/internal/telemetry"
)

type Config struct {
	Store   storage.Store
	Logger  *slog.Logger
	Metrics *telemetry.Metrics
	// Now defaults to time.Now.
	Now func() time.Time
}

type StopReason string

const (
	StopReasonCompleted StopReason = "completed"
	StopReasonDeclined  StopReason = "declined"
	StopReasonCancelled StopReason = "cancelled"
	StopReasonFailed    StopReason = "failed"
)

type RunRequest struct {
	// RunID defaults to a fresh UUID.
	RunID  string
	Engine evo.Config
	// Generations caps the run. Zero runs until Continue declines or the
	// context is cancelled.
	Generations int
	// Continue is asked before every generation with the number completed
	// so far. Nil always continues.
	Continue func(completed int) bool
}

type RunSummary struct {
	RunID       string
	Seed        int64
	Generations int
	StopReason  StopReason
	Population  map[string]int
	Last        *model.GenerationReport
}

// Runner drives an engine for a run and persists what it produces.
type Runner struct {
	store   storage.Store
	logger  *slog.Logger
	metrics *telemetry.Metrics
	now     func() time.Time

	mu          sync.Mutex
	initialized bool
}

func NewRunner(cfg Config) (*Runner, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Runner{
		store:   cfg.Store,
		logger:  logger,
		metrics: cfg.Metrics,
		now:     now,
	}, nil
}

// Init initialises the store once. Later calls are no-ops.
func (r *Runner) Init(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.initialized {
		return nil
	}
	if err := r.store.Init(ctx); err != nil {
		return err
	}
	r.initialized = true
	return nil
}

func (r *Runner) Store() storage.Store {
	return r.store
}

// Run builds an engine from req.Engine and runs generations until a stop
// condition holds. A cancelled context ends the run cleanly with
// StopReasonCancelled; the run record is still updated.
func (r *Runner) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if req.Generations < 0 {
		return RunSummary{}, fmt.Errorf("generations must be >= 0, got %d", req.Generations)
	}
	if err := r.Init(ctx); err != nil {
		return RunSummary{}, err
	}

	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	logger := r.logger.With("run_id", runID)

	engineCfg := req.Engine
	engineCfg.Observer = chainObservers(gameLogger{logger: logger}, req.Engine.Observer)
	engine, err := evo.New(engineCfg)
	if err != nil {
		return RunSummary{}, err
	}

	run := newRunRecord(runID, r.now(), engine)
	if err := r.store.SaveRun(ctx, run); err != nil {
		return RunSummary{}, fmt.Errorf("save run %s: %w", runID, err)
	}
	if err := r.saveSnapshot(ctx, engine, runID); err != nil {
		return RunSummary{}, err
	}

	ctx, span := telemetry.StartRunSpan(ctx, runID, engine.Size())
	defer span.End()

	if r.metrics != nil {
		r.metrics.SetPopulation(engine.Population())
	}
	logger.Info("run started",
		"seed", engine.Seed(),
		"population", engine.Size(),
		"counts", engine.Population(),
		"random_weight", engineCfg.RandomWeight(),
	)

	summary := RunSummary{RunID: runID, Seed: engine.Seed()}
	finish := func(reason StopReason) {
		summary.StopReason = reason
		summary.Generations = engine.Generation()
		summary.Population = engine.Population()

		// Persist even when ctx has been cancelled.
		run.GenerationsCompleted = engine.Generation()
		run.StopReason = string(reason)
		if err := r.store.SaveRun(context.WithoutCancel(ctx), run); err != nil {
			logger.Warn("update run record", "error", err)
		}
		logger.Info("run stopped", "reason", string(reason), "generations", summary.Generations, "counts", summary.Population)
	}

	for {
		if req.Generations > 0 && engine.Generation() >= req.Generations {
			finish(StopReasonCompleted)
			return summary, nil
		}
		if ctx.Err() != nil {
			finish(StopReasonCancelled)
			return summary, nil
		}
		if req.Continue != nil && !req.Continue(engine.Generation()) {
			finish(StopReasonDeclined)
			return summary, nil
		}

		report, err := r.step(ctx, engine, runID)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				finish(StopReasonCancelled)
				return summary, nil
			}
			if errors.Is(err, evo.ErrEvolution) && r.metrics != nil {
				r.metrics.RecordEvolutionFailure()
			}
			logger.Error("generation failed", "generation", engine.Generation()+1, "error", err)
			finish(StopReasonFailed)
			return summary, err
		}
		summary.Last = &report

		logger.Info("generation complete",
			"generation", report.Generation,
			"games", report.Games,
			"best_score", report.BestScore,
			"best_kind", report.BestKind,
			"mean_score", report.MeanScore,
			"counts", report.CountsAfter,
		)
	}
}

func (r *Runner) step(ctx context.Context, engine *evo.Engine, runID string) (model.GenerationReport, error) {
	ctx, span := telemetry.StartGenerationSpan(ctx, runID, engine.Generation()+1)
	started := time.Now()
	report, err := engine.DoGeneration(ctx)
	telemetry.EndGenerationSpan(span, report, err)
	if err != nil {
		return model.GenerationReport{}, err
	}
	elapsed := time.Since(started)

	report.VersionedRecord = storage.Versioned()
	persistCtx := context.WithoutCancel(ctx)
	if err := r.store.AppendGenerationReport(persistCtx, runID, report); err != nil {
		return model.GenerationReport{}, fmt.Errorf("save generation %d report: %w", report.Generation, err)
	}
	if err := r.saveSnapshot(persistCtx, engine, runID); err != nil {
		return model.GenerationReport{}, err
	}
	if r.metrics != nil {
		r.metrics.RecordGeneration(report, elapsed)
	}
	return report, nil
}

func (r *Runner) saveSnapshot(ctx context.Context, engine *evo.Engine, runID string) error {
	snapshot := engine.Snapshot(runID)
	snapshot.VersionedRecord = storage.Versioned()
	if err := r.store.SavePopulation(ctx, snapshot); err != nil {
		return fmt.Errorf("save generation %d population: %w", snapshot.Generation, err)
	}
	return nil
}

func newRunRecord(runID string, createdAt time.Time, engine *evo.Engine) model.RunRecord {
	cfg := engine.Config()
	run := model.RunRecord{
		VersionedRecord:   storage.Versioned(),
		ID:                runID,
		CreatedAt:         createdAt.UTC(),
		Seed:              engine.Seed(),
		MinRounds:         cfg.MinRounds,
		MaxRounds:         cfg.MaxRounds,
		RandomWeight:      cfg.RandomWeight(),
		Payoffs:           cfg.Payoffs.Record(),
		InitialPopulation: engine.Population(),
	}
	if cfg.Weight != nil {
		run.Weight = *cfg.Weight
	}
	return run
}

// Package pdevo is the public entry point for running evolutionary iterated
// Prisoner's Dilemma simulations and for plugging in new strategies.
//
// A strategy embeds Base, implements Choose, and registers a factory:
//
//	type Cautious struct{ pdevo.Base }
//
//	func (c *Cautious) Choose() bool { return pdevo.Comply }
//
//	func init() {
//		pdevo.MustRegister(pdevo.KindSpec{
//			Name: "Cautious",
//			New:  func() pdevo.Prisoner { return &Cautious{Base: pdevo.NewBase("Cautious")} },
//		})
//	}
package pdevo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"pdevo/internal/evo"
	"pdevo/internal/game"
	"pdevo/internal/model"
	"pdevo/internal/platform"
	"pdevo/internal/storage"
	"pdevo/internal/strategy"
	"pdevo/internal/telemetry"
)

const defaultDBPath = "pdevo.db"

const (
	Exploit = strategy.Exploit
	Comply  = strategy.Comply
)

type (
	Prisoner           = strategy.Prisoner
	Base               = strategy.Base
	KindSpec           = strategy.KindSpec
	Factory            = strategy.Factory
	Payoffs            = game.Payoffs
	GameRecord         = evo.GameRecord
	Observer           = evo.Observer
	GenerationReport   = model.GenerationReport
	PopulationSnapshot = model.PopulationSnapshot
	RunRecord          = model.RunRecord
	StopReason         = platform.StopReason
)

var (
	ErrConfiguration    = strategy.ErrConfiguration
	ErrKindExists       = strategy.ErrKindExists
	ErrKindNotFound     = strategy.ErrKindNotFound
	ErrNoConstructor    = strategy.ErrNoConstructor
	ErrInstantiation    = strategy.ErrInstantiation
	ErrEvolution        = evo.ErrEvolution
	ErrEngineFailed     = evo.ErrEngineFailed
	ErrPopulationSealed = evo.ErrPopulationSealed
)

func NewBase(kind string) Base { return strategy.NewBase(kind) }

func Register(spec KindSpec) error { return strategy.Register(spec) }

func MustRegister(spec KindSpec) { strategy.MustRegister(spec) }

type Options struct {
	StoreKind string
	DBPath    string
	Logger    *slog.Logger
	// Registerer receives the run metrics. Nil disables metrics.
	Registerer prometheus.Registerer
}

type Client struct {
	store  storage.Store
	runner *platform.Runner
}

type RunRequest struct {
	RunID      string
	Population map[string]int
	MinRounds  int
	MaxRounds  int
	// Weight nil draws a random weight per game.
	Weight *float64
	// Seed nil seeds from the clock.
	Seed        *int64
	Payoffs     Payoffs
	Generations int
	Continue    func(completed int) bool
	Observer    Observer
}

type RunSummary struct {
	RunID       string
	Seed        int64
	Generations int
	StopReason  StopReason
	Population  map[string]int
	Last        *GenerationReport
}

type KindInfo struct {
	Name          string
	Description   string
	Constructible bool
}

type RunsRequest struct {
	Limit int
}

type HistoryRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type PopulationRequest struct {
	RunID  string
	Latest bool
	// Generation nil selects the newest snapshot.
	Generation *int
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	var metrics *telemetry.Metrics
	if opts.Registerer != nil {
		metrics = telemetry.NewMetrics(opts.Registerer)
	}
	runner, err := platform.NewRunner(platform.Config{
		Store:   store,
		Logger:  opts.Logger,
		Metrics: metrics,
	})
	if err != nil {
		return nil, err
	}
	return &Client{store: store, runner: runner}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.runner.Init(ctx)
}

func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	summary, err := c.runner.Run(ctx, platform.RunRequest{
		RunID: req.RunID,
		Engine: evo.Config{
			Initial:   req.Population,
			MinRounds: req.MinRounds,
			MaxRounds: req.MaxRounds,
			Weight:    req.Weight,
			Seed:      req.Seed,
			Payoffs:   req.Payoffs,
			Observer:  req.Observer,
		},
		Generations: req.Generations,
		Continue:    req.Continue,
	})
	return RunSummary{
		RunID:       summary.RunID,
		Seed:        summary.Seed,
		Generations: summary.Generations,
		StopReason:  summary.StopReason,
		Population:  summary.Population,
		Last:        summary.Last,
	}, err
}

// Kinds lists every registered strategy kind in name order.
func (c *Client) Kinds() []KindInfo {
	return Kinds()
}

func Kinds() []KindInfo {
	specs := strategy.Kinds()
	out := make([]KindInfo, 0, len(specs))
	for _, spec := range specs {
		out = append(out, KindInfo{
			Name:          spec.Name,
			Description:   spec.Description,
			Constructible: spec.New != nil,
		})
	}
	return out
}

// Runs lists persisted runs, newest first.
func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]RunRecord, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	if err := c.Init(ctx); err != nil {
		return nil, err
	}
	runs, err := c.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]RunRecord, 0, len(runs))
	for i := len(runs) - 1; i >= 0; i-- {
		out = append(out, runs[i])
		if req.Limit > 0 && len(out) == req.Limit {
			break
		}
	}
	return out, nil
}

// History returns the generation reports of a run in generation order.
func (c *Client) History(ctx context.Context, req HistoryRequest) ([]GenerationReport, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest)
	if err != nil {
		return nil, err
	}
	reports, ok, err := c.store.GetGenerationReports(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		if _, found, err := c.store.GetRun(ctx, runID); err != nil {
			return nil, err
		} else if !found {
			return nil, fmt.Errorf("run not found: %s", runID)
		}
		return nil, nil
	}
	if req.Limit > 0 && len(reports) > req.Limit {
		reports = reports[len(reports)-req.Limit:]
	}
	return reports, nil
}

func (c *Client) Population(ctx context.Context, req PopulationRequest) (PopulationSnapshot, error) {
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest)
	if err != nil {
		return PopulationSnapshot{}, err
	}

	var (
		snapshot PopulationSnapshot
		ok       bool
	)
	if req.Generation != nil {
		snapshot, ok, err = c.store.GetPopulation(ctx, runID, *req.Generation)
	} else {
		snapshot, ok, err = c.store.LatestPopulation(ctx, runID)
	}
	if err != nil {
		return PopulationSnapshot{}, err
	}
	if !ok {
		if req.Generation != nil {
			return PopulationSnapshot{}, fmt.Errorf("population not found for run %s generation %d", runID, *req.Generation)
		}
		return PopulationSnapshot{}, fmt.Errorf("population not found for run id: %s", runID)
	}
	return snapshot, nil
}

func (c *Client) resolveRunID(ctx context.Context, runID string, latest bool) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if err := c.Init(ctx); err != nil {
		return "", err
	}
	if runID != "" {
		return runID, nil
	}
	if !latest {
		return "", errors.New("run id or latest is required")
	}
	runs, err := c.store.ListRuns(ctx)
	if err != nil {
		return "", err
	}
	if len(runs) == 0 {
		return "", errors.New("no runs available")
	}
	return runs[len(runs)-1].ID, nil
}

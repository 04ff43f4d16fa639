package evo

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"pdevo/internal/game"
	"pdevo/internal/model"
	"pdevo/internal/strategy"
)

var (
	ErrPopulationSealed = errors.New("population is sealed once the first generation has run")
	ErrEvolution        = errors.New("evolution failure")
	ErrEngineFailed     = errors.New("engine aborted by an earlier evolution failure")
)

type State int

const (
	StateInitializing State = iota
	StateRunning
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateRunning:
		return "running"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// GameRecord describes one finished game. Scores are cumulative for the
// current generation.
type GameRecord struct {
	Generation  int
	First       string
	Second      string
	FirstKind   string
	SecondKind  string
	Weight      float64
	Result      game.Result
	FirstScore  float64
	SecondScore float64
}

// Observer receives progress from DoGeneration. Both callbacks run on the
// engine's goroutine.
type Observer interface {
	ObserveGame(record GameRecord)
	ObserveGeneration(report model.GenerationReport)
}

type Config struct {
	// Initial maps kind names to the number of instances to create.
	Initial map[string]int
	// MinRounds is inclusive and MaxRounds exclusive. For a constant number
	// of rounds use MaxRounds = MinRounds + 1.
	MinRounds int
	MaxRounds int
	// Weight is the fixed discount weight. Nil draws a fresh weight in
	// (0, 1] for every game.
	Weight *float64
	// Seed fixes the random stream. Nil seeds from the clock.
	Seed     *int64
	Payoffs  game.Payoffs
	Observer Observer
}

func (c Config) RandomWeight() bool { return c.Weight == nil }

func (c Config) Validate() error {
	if c.MinRounds < 0 {
		return fmt.Errorf("min rounds must be >= 0, got %d", c.MinRounds)
	}
	if c.MaxRounds <= c.MinRounds {
		return fmt.Errorf("max rounds (exclusive) must be > min rounds: min=%d max=%d", c.MinRounds, c.MaxRounds)
	}
	if c.Weight != nil && (*c.Weight < 0 || *c.Weight > 1) {
		return fmt.Errorf("weight must be in [0, 1], got %v", *c.Weight)
	}
	if err := c.Payoffs.Validate(); err != nil {
		return err
	}
	for kind, count := range c.Initial {
		if count < 0 {
			return fmt.Errorf("initial count for %s must be >= 0, got %d", kind, count)
		}
	}
	return nil
}

// Engine owns a population and runs the generation loop. It is not safe for
// concurrent use.
type Engine struct {
	cfg  Config
	seed int64
	rng  *rand.Rand

	prisoners  []strategy.Prisoner
	counts     map[string]int
	size       int
	generation int
	state      State
	// standings holds each survivor's result of the last generation, keyed
	// by prisoner ID. Scores are reset before DoGeneration returns.
	standings map[string]standing
}

type standing struct {
	score   float64
	summary string
}

// New builds an engine and materialises the initial population. Kinds are
// added in name order so a fixed seed always produces the same schedule.
func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	seed := time.Now().UnixNano()
	if cfg.Seed != nil {
		seed = *cfg.Seed
	}

	e := &Engine{
		cfg:    cfg,
		seed:   seed,
		rng:    rand.New(rand.NewSource(seed)),
		counts: make(map[string]int),
		state:  StateInitializing,
	}

	kinds := make([]string, 0, len(cfg.Initial))
	for kind := range cfg.Initial {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		if err := e.AddStrategies(kind, cfg.Initial[kind]); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// AddStrategies appends count fresh instances of kind. It only succeeds
// before the first generation; afterwards it returns ErrPopulationSealed and
// changes nothing. A failed call leaves the population untouched.
func (e *Engine) AddStrategies(kind string, count int) error {
	if e.state != StateInitializing {
		return fmt.Errorf("%w: generation=%d", ErrPopulationSealed, e.generation)
	}
	if count < 0 {
		return fmt.Errorf("count for %s must be >= 0, got %d", kind, count)
	}

	factory, err := strategy.Constructor(kind)
	if err != nil {
		return err
	}

	added := make([]strategy.Prisoner, 0, count)
	for i := 0; i < count; i++ {
		p := factory()
		if p == nil {
			return fmt.Errorf("%w: %s: factory returned nil", strategy.ErrInstantiation, kind)
		}
		added = append(added, p)
	}

	for _, p := range added {
		e.prisoners = append(e.prisoners, p)
		e.counts[p.Kind()]++
	}
	return nil
}

// DoGeneration plays a full round robin, keeps the better half, lets every
// survivor reproduce once and resets the generation state.
func (e *Engine) DoGeneration(ctx context.Context) (model.GenerationReport, error) {
	if e.state == StateFailed {
		return model.GenerationReport{}, ErrEngineFailed
	}
	if err := ctx.Err(); err != nil {
		return model.GenerationReport{}, err
	}
	if e.state == StateInitializing {
		e.size = len(e.prisoners)
		e.state = StateRunning
	}

	report := model.GenerationReport{
		Generation:   e.generation + 1,
		CountsBefore: copyCounts(e.counts),
	}

	for i := 0; i < len(e.prisoners); i++ {
		first := e.prisoners[i]
		for j := i + 1; j < len(e.prisoners); j++ {
			second := e.prisoners[j]

			weight := e.drawWeight()
			room, err := game.NewRoom(e.drawRounds(), first, second, weight, e.cfg.Payoffs)
			if err != nil {
				return model.GenerationReport{}, err
			}
			res := room.Simulate()
			report.Games++
			report.Rounds += res.Turns

			if e.cfg.Observer != nil {
				e.cfg.Observer.ObserveGame(GameRecord{
					Generation:  report.Generation,
					First:       first.ID(),
					Second:      second.ID(),
					FirstKind:   first.Kind(),
					SecondKind:  second.Kind(),
					Weight:      weight,
					Result:      res,
					FirstScore:  first.CumulativeScore(),
					SecondScore: second.CumulativeScore(),
				})
			}
		}
	}

	sort.SliceStable(e.prisoners, func(i, j int) bool {
		return e.prisoners[i].CumulativeScore() > e.prisoners[j].CumulativeScore()
	})
	summarizeScores(&report, e.prisoners)

	keep := e.size / 2
	if keep > len(e.prisoners) {
		keep = len(e.prisoners)
	}
	report.Culled = len(e.prisoners) - keep
	e.standings = make(map[string]standing, keep)
	for _, p := range e.prisoners[:keep] {
		e.standings[p.ID()] = standing{score: p.CumulativeScore(), summary: p.String()}
	}
	clear(e.prisoners[keep:])
	e.prisoners = e.prisoners[:keep]

	for i := 0; i < keep; i++ {
		parent := e.prisoners[i]
		child, err := parent.Evolve()
		if err == nil && child == nil {
			err = errors.New("evolve returned no offspring")
		}
		if err != nil {
			e.state = StateFailed
			return model.GenerationReport{}, fmt.Errorf("%w: %s %s: %w", ErrEvolution, parent.Kind(), parent.ID(), err)
		}
		e.prisoners = append(e.prisoners, child)
		report.Born++
	}

	for kind := range e.counts {
		e.counts[kind] = 0
	}
	for _, p := range e.prisoners {
		e.counts[p.Kind()]++
	}
	for _, p := range e.prisoners {
		p.NotifyGenerationOver()
		p.ResetCumulativeScore()
	}

	e.generation++
	report.CountsAfter = copyCounts(e.counts)

	if e.cfg.Observer != nil {
		e.cfg.Observer.ObserveGeneration(report)
	}
	return report, nil
}

func (e *Engine) drawWeight() float64 {
	if e.cfg.Weight != nil {
		return *e.cfg.Weight
	}
	return 1 - e.rng.Float64()
}

func (e *Engine) drawRounds() int {
	return e.rng.Intn(e.cfg.MaxRounds-e.cfg.MinRounds) + e.cfg.MinRounds
}

func summarizeScores(report *model.GenerationReport, ranked []strategy.Prisoner) {
	if len(ranked) == 0 {
		return
	}
	total := 0.0
	report.BestScore = ranked[0].CumulativeScore()
	report.BestKind = ranked[0].Kind()
	report.MinScore = ranked[len(ranked)-1].CumulativeScore()
	for _, p := range ranked {
		total += p.CumulativeScore()
	}
	report.MeanScore = total / float64(len(ranked))
}

// Population returns a copy of the kind to count mapping.
func (e *Engine) Population() map[string]int {
	return copyCounts(e.counts)
}

// Prisoners returns the current population in engine order. The slice is a
// copy; the prisoners are shared.
func (e *Engine) Prisoners() []strategy.Prisoner {
	out := make([]strategy.Prisoner, len(e.prisoners))
	copy(out, e.prisoners)
	return out
}

func (e *Engine) Generation() int { return e.generation }

func (e *Engine) Size() int { return len(e.prisoners) }

func (e *Engine) State() State { return e.state }

func (e *Engine) Seed() int64 { return e.seed }

func (e *Engine) Config() Config { return e.cfg }

// Snapshot captures the read accessors for persistence. Survivors of the
// last generation carry the score they were ranked with; members that have
// not played a generation yet carry their live score.
func (e *Engine) Snapshot(runID string) model.PopulationSnapshot {
	members := make([]model.MemberRecord, 0, len(e.prisoners))
	for _, p := range e.prisoners {
		member := model.MemberRecord{
			ID:              p.ID(),
			Kind:            p.Kind(),
			CumulativeScore: p.CumulativeScore(),
			Summary:         p.String(),
		}
		if s, ok := e.standings[p.ID()]; ok {
			member.CumulativeScore = s.score
			member.Summary = s.summary
		}
		members = append(members, member)
	}
	return model.PopulationSnapshot{
		RunID:      runID,
		Generation: e.generation,
		Counts:     copyCounts(e.counts),
		Members:    members,
	}
}

func copyCounts(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Package strategy defines the Prisoner contract played in every game, the
// shared score bookkeeping embedded by each kind, and the registry that maps
// kind names to zero-argument factories.
package strategy

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

const (
	Exploit = true
	Comply  = false
)

// Prisoner is a single player with a fixed decision rule.
//
// A game calls NotifyOtherPrisoner once, then per round Choose on both sides,
// UpdateScore, and NotifyOpponentChoice with the other side's choice. When
// the game ends it calls NotifyGameOver followed by ResetGameScore. At the
// generation boundary the engine calls NotifyGenerationOver followed by
// ResetCumulativeScore.
type Prisoner interface {
	ID() string
	Kind() string

	// Choose returns true to exploit and false to comply.
	Choose() bool
	NotifyOpponentChoice(exploit bool)
	NotifyOtherPrisoner(opponentID string)
	NotifyGameOver()
	NotifyGenerationOver()

	UpdateScore(delta float64)
	GameScore() float64
	CumulativeScore() float64
	ResetGameScore()
	ResetCumulativeScore()

	// Evolve returns one offspring. It fails when the kind cannot be
	// rebuilt without arguments.
	Evolve() (Prisoner, error)

	String() string
}

// Base carries identity and score state. Kinds embed it and override the
// notification hooks they care about.
type Base struct {
	id              string
	kind            string
	score           float64
	cumulativeScore float64
}

func NewBase(kind string) Base {
	return Base{id: uuid.NewString(), kind: kind}
}

func (b *Base) ID() string { return b.id }

func (b *Base) Kind() string { return b.kind }

func (b *Base) UpdateScore(delta float64) {
	b.score += delta
	b.cumulativeScore += delta
}

func (b *Base) GameScore() float64 { return b.score }

func (b *Base) CumulativeScore() float64 { return b.cumulativeScore }

func (b *Base) ResetGameScore() { b.score = 0 }

func (b *Base) ResetCumulativeScore() { b.cumulativeScore = 0 }

func (b *Base) NotifyOpponentChoice(bool) {}

func (b *Base) NotifyOtherPrisoner(string) {}

func (b *Base) NotifyGameOver() {}

func (b *Base) NotifyGenerationOver() {}

// Evolve builds a fresh instance of the same kind through its registered
// zero-argument factory.
func (b *Base) Evolve() (Prisoner, error) {
	return Spawn(b.kind)
}

func (b *Base) String() string {
	return fmt.Sprintf("%s with a score of %s", b.kind, strconv.FormatFloat(b.cumulativeScore, 'g', -1, 64))
}

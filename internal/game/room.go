// Package game simulates a single iterated match between two prisoners.
package game

import (
	"errors"
	"fmt"
	"math"

	"pdevo/internal/model"
	"pdevo/internal/strategy"
)

var ErrInvalidPayoffs = errors.New("invalid payoff matrix")

// Payoffs holds the base payoff of every choice combination, seen from the
// player named first.
type Payoffs struct {
	ExploitComply  float64
	ComplyExploit  float64
	ComplyComply   float64
	ExploitExploit float64
}

func (p Payoffs) Validate() error {
	entries := []struct {
		name  string
		value float64
	}{
		{"exploit_comply", p.ExploitComply},
		{"comply_exploit", p.ComplyExploit},
		{"comply_comply", p.ComplyComply},
		{"exploit_exploit", p.ExploitExploit},
	}
	for _, e := range entries {
		if math.IsNaN(e.value) || math.IsInf(e.value, 0) {
			return fmt.Errorf("%w: %s=%v", ErrInvalidPayoffs, e.name, e.value)
		}
	}
	return nil
}

// For returns the payoffs of a round in which a and b made the given choices.
func (p Payoffs) For(a, b bool) (float64, float64) {
	switch {
	case a && b:
		return p.ExploitExploit, p.ExploitExploit
	case a && !b:
		return p.ExploitComply, p.ComplyExploit
	case !a && b:
		return p.ComplyExploit, p.ExploitComply
	default:
		return p.ComplyComply, p.ComplyComply
	}
}

func (p Payoffs) Record() model.PayoffMatrix {
	return model.PayoffMatrix{
		ExploitComply:  p.ExploitComply,
		ComplyExploit:  p.ComplyExploit,
		ComplyComply:   p.ComplyComply,
		ExploitExploit: p.ExploitExploit,
	}
}

func PayoffsFromRecord(r model.PayoffMatrix) Payoffs {
	return Payoffs{
		ExploitComply:  r.ExploitComply,
		ComplyExploit:  r.ComplyExploit,
		ComplyComply:   r.ComplyComply,
		ExploitExploit: r.ExploitExploit,
	}
}

// Room is one game between two prisoners.
type Room struct {
	turns   int
	weight  float64
	payoffs Payoffs
	first   strategy.Prisoner
	second  strategy.Prisoner
}

// Result summarises a finished game. Scores are read from the prisoners.
type Result struct {
	Turns          int
	FirstExploits  int
	SecondExploits int
	MutualComplies int
	MutualExploits int
}

func NewRoom(turns int, first, second strategy.Prisoner, weight float64, payoffs Payoffs) (*Room, error) {
	if turns < 0 {
		return nil, fmt.Errorf("turns must be >= 0, got %d", turns)
	}
	if first == nil || second == nil {
		return nil, errors.New("two prisoners are required")
	}
	if first.ID() == second.ID() {
		return nil, errors.New("a prisoner cannot play itself")
	}
	return &Room{
		turns:   turns,
		weight:  weight,
		payoffs: payoffs,
		first:   first,
		second:  second,
	}, nil
}

// Simulate plays every round, then notifies both players that the game is
// over and clears their game scores. Cumulative scores keep the payoffs.
func (r *Room) Simulate() Result {
	a, b := r.first, r.second
	a.NotifyOtherPrisoner(b.ID())
	b.NotifyOtherPrisoner(a.ID())

	res := Result{Turns: r.turns}
	for round := 1; round <= r.turns; round++ {
		discount := math.Pow(r.weight, float64(round-1))

		choiceA := a.Choose()
		choiceB := b.Choose()

		payoffA, payoffB := r.payoffs.For(choiceA, choiceB)
		a.UpdateScore(payoffA * discount)
		b.UpdateScore(payoffB * discount)

		a.NotifyOpponentChoice(choiceB)
		b.NotifyOpponentChoice(choiceA)

		switch {
		case choiceA && choiceB:
			res.MutualExploits++
		case !choiceA && !choiceB:
			res.MutualComplies++
		}
		if choiceA {
			res.FirstExploits++
		}
		if choiceB {
			res.SecondExploits++
		}
	}

	a.NotifyGameOver()
	a.ResetGameScore()
	b.NotifyGameOver()
	b.ResetGameScore()
	return res
}

package platform

import (
	"context"
	"log/slog"

	"pdevo/internal/evo"
	"pdevo/internal/model"
)

// gameLogger writes one debug line per game.
type gameLogger struct {
	logger *slog.Logger
}

func (g gameLogger) ObserveGame(record evo.GameRecord) {
	if !g.logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	g.logger.Debug("game finished",
		"generation", record.Generation,
		"first", record.FirstKind,
		"second", record.SecondKind,
		"turns", record.Result.Turns,
		"weight", record.Weight,
		"first_score", record.FirstScore,
		"second_score", record.SecondScore,
	)
}

func (g gameLogger) ObserveGeneration(model.GenerationReport) {}

type observers []evo.Observer

func chainObservers(list ...evo.Observer) evo.Observer {
	out := make(observers, 0, len(list))
	for _, o := range list {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

func (o observers) ObserveGame(record evo.GameRecord) {
	for _, obs := range o {
		obs.ObserveGame(record)
	}
}

func (o observers) ObserveGeneration(report model.GenerationReport) {
	for _, obs := range o {
		obs.ObserveGeneration(report)
	}
}

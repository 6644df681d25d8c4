package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StrategyRuns is the number of strategy runs per guild, by result.
	StrategyRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_strategy_runs_total",
			Help: "Total number of background strategy runs, by result",
		},
		[]string{"strategy", "result"},
	)

	// StrategyActions is the number of tickets acted on by a strategy.
	StrategyActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_strategy_actions_total",
			Help: "Total number of tickets acted on by background strategies",
		},
		[]string{"strategy", "action"},
	)

	// StrategyDuration is the duration of a full strategy run across every guild.
	StrategyDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "scheduler_strategy_duration",
			Help: "Duration of background strategy runs",
		},
		[]string{"strategy"},
	)
)

package commands

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	commandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cursorfold_commands_total",
			Help: "Commands executed by command and status",
		},
		[]string{"command", "status"},
	)

	commandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cursorfold_command_duration_seconds",
			Help:    "Duration of command execution, range fetch included",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"},
	)

	foldTargets = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cursorfold_fold_targets",
			Help:    "Target lines per executed command",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
		[]string{"command"},
	)

	rangeFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cursorfold_range_fetch_duration_seconds",
			Help:    "Duration of folding range provider calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)
)

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func recordCommand(command string, d time.Duration, plan Plan, err error) {
	commandsTotal.WithLabelValues(command, status(err)).Inc()
	commandDuration.WithLabelValues(command).Observe(d.Seconds())
	if err == nil {
		foldTargets.WithLabelValues(command).Observe(float64(len(plan.Lines())))
	}
}

func recordFetch(d time.Duration, err error) {
	rangeFetchDuration.WithLabelValues(status(err)).Observe(d.Seconds())
}

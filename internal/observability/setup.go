package observability

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

var (
	// Global logger instance
	Logger *zap.Logger

	// Metrics
	gateDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moderation_gate_decisions_total",
			Help: "Total number of gate decisions by restriction source and verdict",
		},
		[]string{"source", "verdict"},
	)

	gateFailOpenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moderation_gate_fail_open_total",
			Help: "Total number of messages allowed because a check could not be evaluated",
		},
		[]string{"check"},
	)

	enforcementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moderation_enforcements_total",
			Help: "Total number of enforcement attempts by source",
		},
		[]string{"source", "deleted"},
	)

	sweepRetiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "moderation_sweep_retired_total",
			Help: "Total number of expired slowmodes and restrictions retired by the sweeper",
		},
	)

	gateEvaluationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "moderation_gate_evaluation_duration_seconds",
			Help:    "Time spent evaluating messages against active restrictions",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)
)

func Init(ctx context.Context) error {
	// Initialize logger
	var err error
	Logger, err = zap.NewProduction()
	if err != nil {
		return err
	}

	// Register metrics
	prometheus.MustRegister(gateDecisionsTotal)
	prometheus.MustRegister(gateFailOpenTotal)
	prometheus.MustRegister(enforcementsTotal)
	prometheus.MustRegister(sweepRetiredTotal)
	prometheus.MustRegister(gateEvaluationDuration)

	// Setup OpenTelemetry (simplified setup)
	tp := trace.NewTracerProvider()
	otel.SetTracerProvider(tp)

	// Start Prometheus metrics endpoint
	go func() {
		http.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(":2112", nil); err != nil {
			log.WithError(err).Error("metrics server failed")
		}
	}()

	return nil
}

// RecordGateDecision records the outcome of one gate evaluation.
func RecordGateDecision(source, verdict string) {
	if source == "" {
		source = "none"
	}
	gateDecisionsTotal.WithLabelValues(source, verdict).Inc()
}

// RecordGateFailOpen records a message that passed because a check errored.
func RecordGateFailOpen(check string) {
	gateFailOpenTotal.WithLabelValues(check).Inc()
}

// RecordEnforcement records one enforcement attempt.
func RecordEnforcement(source string, deleted bool) {
	label := "false"
	if deleted {
		label = "true"
	}
	enforcementsTotal.WithLabelValues(source, label).Inc()
}

// RecordSweep records how much expired state one sweeper run retired.
func RecordSweep(retired int) {
	sweepRetiredTotal.Add(float64(retired))
}

// StartGateEvaluation returns a function to record evaluation duration.
func StartGateEvaluation() func(status string) {
	start := prometheus.NewTimer(gateEvaluationDuration.WithLabelValues("processing"))
	return func(status string) {
		start.ObserveDuration()
	}
}

package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Metrics holds the per-run counters on a private registry. The program
// is a batch process, so instead of serving /metrics it optionally
// pushes the registry to a Pushgateway at the end of the run.
type Metrics struct {
	registry *prometheus.Registry

	CommentsTotal      *prometheus.CounterVec
	EventsSkippedTotal *prometheus.CounterVec
	PostFailuresTotal  *prometheus.CounterVec
	RunDuration        prometheus.Gauge
}

// New builds and registers the clerk metrics.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		CommentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bbclerk_comments_total",
				Help: "Comments posted by kind",
			},
			[]string{"kind"}, // strikeout|homerun|dueup|robbed|linedrive|mention
		),
		EventsSkippedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bbclerk_events_skipped_total",
				Help: "Events observed but not posted, by reason",
			},
			[]string{"reason"}, // already_posted|stale|no_trigger
		),
		PostFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bbclerk_post_failures_total",
				Help: "Posting failures by kind",
			},
			[]string{"kind"},
		),
		RunDuration: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "bbclerk_run_duration_seconds",
				Help: "Wall-clock duration of the last poll cycle",
			},
		),
	}

	m.registry.MustRegister(
		m.CommentsTotal,
		m.EventsSkippedTotal,
		m.PostFailuresTotal,
		m.RunDuration,
	)
	return m
}

// Push sends the registry to a Pushgateway. A no-op when url is empty.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if url == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return push.New(url, job).Gatherer(m.registry).PushContext(ctx)
}

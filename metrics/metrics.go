// Package metrics exports a reconciliation report in the Prometheus text
// format, for the node_exporter textfile collector.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bludya/pong-checker/reconcile"
)

const namespace = "pong_checker"

type Metrics struct {
	registry *prometheus.Registry

	pings             prometheus.Gauge
	pongs             prometheus.Gauge
	uniquePingRefs    prometheus.Gauge
	duplicatePongs    prometheus.Gauge
	orphanPongs       prometheus.Gauge
	missingPongs      prometheus.Gauge
	missingPercentage prometheus.Gauge
	findings          *prometheus.GaugeVec
	lastRun           prometheus.Gauge
}

// New registers the checker gauges on a private registry, labelled with
// the audited candidate.
func New(candidate string) *Metrics {
	registry := prometheus.NewRegistry()
	labels := prometheus.Labels{"candidate": candidate}
	gauge := func(name, help string) prometheus.Gauge {
		g := prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		})
		registry.MustRegister(g)
		return g
	}

	m := &Metrics{
		registry:          registry,
		pings:             gauge("pings", "Ping events since the starting block."),
		pongs:             gauge("pongs", "Pong events sent by the candidate since the starting block."),
		uniquePingRefs:    gauge("unique_ping_refs", "Distinct ping tx hashes referenced by the candidate's pongs."),
		duplicatePongs:    gauge("duplicate_pongs", "Pongs answering an already answered ping."),
		orphanPongs:       gauge("orphan_pongs", "Distinct referenced ping hashes with no matching ping."),
		missingPongs:      gauge("missing_pongs", "Pings without a pong from the candidate."),
		missingPercentage: gauge("missing_percentage", "Share of pings without a pong, in percent."),
		lastRun:           gauge("last_run_timestamp_seconds", "Unix time of the last completed check."),
		findings: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "findings",
			Help:        "Findings of the last check by severity.",
			ConstLabels: labels,
		}, []string{"severity"}),
	}
	registry.MustRegister(m.findings)
	return m
}

func (m *Metrics) Observe(report reconcile.Report) {
	m.pings.Set(float64(report.Pings))
	m.pongs.Set(float64(report.Pongs))
	m.uniquePingRefs.Set(float64(report.UniquePingRefs))
	m.duplicatePongs.Set(float64(report.Duplicates()))
	m.orphanPongs.Set(float64(len(report.Orphans)))
	m.missingPongs.Set(float64(len(report.Missing)))
	m.missingPercentage.Set(report.MissingPercentage)

	m.findings.WithLabelValues(reconcile.Error.String()).Set(float64(report.Errors()))
	m.findings.WithLabelValues(reconcile.Info.String()).Set(float64(len(report.Findings) - report.Errors()))
	m.lastRun.SetToCurrentTime()
}

// WriteTextfile atomically replaces path with the current values.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

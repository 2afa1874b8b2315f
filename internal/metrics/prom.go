package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"meshdiag/internal/relay"
)

var (
	// resolutionsTotal counts relay resolutions by kind
	resolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meshdiag_relay_resolutions_total",
		Help: "Relay suffix resolutions by outcome kind",
	}, []string{"kind"})

	// resolutionCandidates tracks how many nodes shared the suffix
	resolutionCandidates = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "meshdiag_relay_candidates",
		Help:    "Number of candidate relays per resolution",
		Buckets: []float64{0, 1, 2, 3, 5, 8, 13},
	})

	// snapshotReloads counts snapshot reloads by result
	snapshotReloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meshdiag_snapshot_reloads_total",
		Help: "Snapshot reloads by result",
	}, []string{"result"})

	snapshotNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "meshdiag_snapshot_nodes",
		Help: "Nodes in the active snapshot",
	})
)

// ObserveResolution records one resolver outcome.
func ObserveResolution(res relay.Resolution) {
	resolutionsTotal.WithLabelValues(res.Kind.String()).Inc()
	resolutionCandidates.Observe(float64(len(res.Candidates)))
}

// ObserveReload records a snapshot reload attempt.
func ObserveReload(nodes int, err error) {
	if err != nil {
		snapshotReloads.WithLabelValues("error").Inc()
		return
	}
	snapshotReloads.WithLabelValues("ok").Inc()
	snapshotNodes.Set(float64(nodes))
}

// Package metrics holds the Prometheus collectors for the ledger. A nil
// *Ledger is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ledger groups the chain and integrity collectors.
type Ledger struct {
	blocksAppended *prometheus.CounterVec
	appendFailures *prometheus.CounterVec
	miningDuration prometheus.Histogram
	miningAttempts prometheus.Histogram
	chainHeight    prometheus.Gauge
	validations    *prometheus.CounterVec
	verifications  *prometheus.CounterVec
	persistenceOps *prometheus.CounterVec
}

// New registers the ledger collectors on reg.
func New(reg prometheus.Registerer) *Ledger {
	f := promauto.With(reg)
	return &Ledger{
		blocksAppended: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fileledger_blocks_appended_total",
			Help: "Blocks appended to the chain, by action tag",
		}, []string{"action"}),
		appendFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fileledger_append_failures_total",
			Help: "Rejected appends, by reason",
		}, []string{"reason"}),
		miningDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "fileledger_mining_duration_seconds",
			Help:    "Time spent sealing a block",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
		}),
		miningAttempts: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "fileledger_mining_nonce",
			Help:    "Winning nonce per mined block",
			Buckets: prometheus.ExponentialBuckets(1, 4, 12),
		}),
		chainHeight: f.NewGauge(prometheus.GaugeOpts{
			Name: "fileledger_chain_blocks",
			Help: "Number of blocks in the chain, genesis included",
		}),
		validations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fileledger_chain_validations_total",
			Help: "Full-chain validation passes, by result",
		}, []string{"result"}),
		verifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fileledger_file_verifications_total",
			Help: "File verifications, by verdict",
		}, []string{"result"}),
		persistenceOps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fileledger_persistence_operations_total",
			Help: "Chain save/load operations, by operation and result",
		}, []string{"operation", "result"}),
	}
}

// knownActions bounds the action label. Free-text actions count as OTHER.
var knownActions = map[string]bool{
	"GENESIS":         true,
	"FILE_REGISTERED": true,
	"FILE_CREATED":    true,
	"FILE_MODIFIED":   true,
}

func actionLabel(action string) string {
	switch {
	case action == "":
		return "UNKNOWN"
	case knownActions[action]:
		return action
	default:
		return "OTHER"
	}
}

func (m *Ledger) BlockAppended(action string, nonce uint64, took time.Duration, height int) {
	if m == nil {
		return
	}
	m.blocksAppended.WithLabelValues(actionLabel(action)).Inc()
	m.miningDuration.Observe(took.Seconds())
	m.miningAttempts.Observe(float64(nonce))
	m.chainHeight.Set(float64(height))
}

func (m *Ledger) AppendFailed(reason string) {
	if m == nil {
		return
	}
	m.appendFailures.WithLabelValues(reason).Inc()
}

func (m *Ledger) Height(height int) {
	if m == nil {
		return
	}
	m.chainHeight.Set(float64(height))
}

func (m *Ledger) Validated(result string) {
	if m == nil {
		return
	}
	m.validations.WithLabelValues(result).Inc()
}

func (m *Ledger) Verified(result string) {
	if m == nil {
		return
	}
	m.verifications.WithLabelValues(result).Inc()
}

func (m *Ledger) Persisted(operation string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.persistenceOps.WithLabelValues(operation, result).Inc()
}

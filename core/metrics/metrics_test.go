package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestLedgerCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.BlockAppended("FILE_CREATED", 12, time.Millisecond, 2)
	m.BlockAppended("", 0, time.Millisecond, 3)
	m.Verified("tampered")
	m.Persisted("save", nil)
	m.Persisted("load", errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.blocksAppended.WithLabelValues("FILE_CREATED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.blocksAppended.WithLabelValues("UNKNOWN")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.chainHeight))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.verifications.WithLabelValues("tampered")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.persistenceOps.WithLabelValues("load", "error")))
}

func TestBlockAppended_FreeTextActionsShareOneLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	for i := 0; i < 50; i++ {
		m.BlockAppended(fmt.Sprintf("custom-%d", i), 0, time.Millisecond, i+2)
	}
	m.BlockAppended("FILE_MODIFIED", 0, time.Millisecond, 52)

	assert.Equal(t, 50.0, testutil.ToFloat64(m.blocksAppended.WithLabelValues("OTHER")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.blocksAppended.WithLabelValues("FILE_MODIFIED")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.blocksAppended))
}

func TestNilLedgerIsNoop(t *testing.T) {
	var m *Ledger
	assert.NotPanics(t, func() {
		m.BlockAppended("x", 1, time.Second, 1)
		m.AppendFailed("x")
		m.Height(1)
		m.Validated("ok")
		m.Verified("ok")
		m.Persisted("save", nil)
	})
}

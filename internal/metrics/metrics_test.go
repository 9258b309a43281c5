package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveSplitsOutcomes(t *testing.T) {
	m := New()

	m.Observe("buyShares", nil)
	m.Observe("buyShares", nil)
	m.Observe("buyShares", errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Operations.WithLabelValues("buyShares", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("buyShares", "error")))
}

func TestCountersStartAtZero(t *testing.T) {
	m := New()

	assert.Equal(t, 0.0, testutil.ToFloat64(m.SharesPurchased))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Withdrawals))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.HeldFunds))
}

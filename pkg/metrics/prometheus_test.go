package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorderCountsByModeAndPreview(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.RecordCalculation("ACTIVE", false)
	r.RecordCalculation("ACTIVE", false)
	r.RecordCalculation("LEARNING", true)
	r.RecordError("collector")
	r.RecordHealthScore("ACTIVE", 92.2)
	r.RecordCreditLimit("ACTIVE", 28000)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.calculations.WithLabelValues("ACTIVE", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.calculations.WithLabelValues("LEARNING", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("collector")))
	assert.Equal(t, 2, testutil.CollectAndCount(r.healthScore)+testutil.CollectAndCount(r.creditLimit))
}

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCountersNormalizeLabels(t *testing.T) {
	before := testutil.ToFloat64(httpAttempts.WithLabelValues("wildberries", "success"))

	ObserveHTTPAttempt(" Wildberries ", "SUCCESS")

	after := testutil.ToFloat64(httpAttempts.WithLabelValues("wildberries", "success"))
	assert.Equal(t, before+1, after)
}

func TestObserveSyncRun(t *testing.T) {
	before := testutil.ToFloat64(syncRuns.WithLabelValues("ok"))

	ObserveSyncRun("ok", 2*time.Second)

	assert.Equal(t, before+1, testutil.ToFloat64(syncRuns.WithLabelValues("ok")))
}

func TestMustRegisterIsIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		MustRegister()
		MustRegister()
	})
}

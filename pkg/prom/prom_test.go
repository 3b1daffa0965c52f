package prom

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHelpers(t *testing.T) {
	// before Create every helper is a no-op
	assert.NotPanics(t, func() {
		IncLedgerOperation("earn", "ok")
		AddCashbackCents("purchase", 400)
		SetNotificationQueuePending("notify", 3)
	})
	assert.Empty(t, MetricCollectionCounterVec)

	require.NoError(t, Create("test-host", "test", "cashback"))

	IncLedgerOperation("earn", "ok")
	IncLedgerOperation("earn", "ok")
	AddCashbackCents("purchase", 400)
	IncReconciliation("applied")
	IncNotificationDelivery("SMS", "delivered")
	SetNotificationQueuePending("notify", 3)
	SetNotificationQueuePending("notify", 1)
	ObserveLedgerOperation("earn", 0.01)

	ops := MetricCollectionCounterVec[SystemLedger+MetricLedgerOperations]
	assert.Equal(t, float64(2), testutil.ToFloat64(ops.WithLabelValues("earn", "ok")))

	cashback := MetricCollectionCounterVec[SystemLedger+MetricLedgerCashbackCents]
	assert.Equal(t, float64(400), testutil.ToFloat64(cashback.WithLabelValues("purchase")))

	recon := MetricCollectionCounterVec[SystemPayment+MetricPaymentReconciliations]
	assert.Equal(t, float64(1), testutil.ToFloat64(recon.WithLabelValues("applied")))

	pending := MetricCollectionGaugeVec[SystemNotification+MetricNotificationQueuePending]
	assert.Equal(t, float64(1), testutil.ToFloat64(pending.WithLabelValues("notify")))

	assert.Equal(t, 1, testutil.CollectAndCount(MetricCollectionHistogramVec[SystemLedger+MetricLedgerOperationDuration]))

	// unknown metrics only log
	assert.NotPanics(t, func() { IncCounterVec(SystemLedger, "missing", "x") })
}

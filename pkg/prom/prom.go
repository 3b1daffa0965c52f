package prom

import (
	"sync"

	xhttp "github.com/nimasrn/cashback-ledger/pkg/http"
	"github.com/nimasrn/cashback-ledger/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

const (
	SystemLedger       = "ledger"
	SystemPayment      = "payment"
	SystemNotification = "notification"
)
const (
	MetricLedgerOperations        = "operations_total"
	MetricLedgerOperationDuration = "operation_duration_seconds"
	MetricLedgerCashbackCents     = "cashback_cents_total"

	MetricPaymentReconciliations = "reconciliations_total"

	MetricNotificationRequests         = "requests_total"
	MetricNotificationDeliveries       = "deliveries_total"
	MetricNotificationDeliveryDuration = "delivery_duration_seconds"
	MetricNotificationQueuePending     = "queue_pending"
)

var lockCreateMetricLock = &sync.Mutex{}
var namespace = "none"

var MetricSystemEnabled = false

var MetricCollectionCounterVec = make(map[string]*prometheus.CounterVec)
var MetricCollectionGaugeVec = make(map[string]*prometheus.GaugeVec)
var MetricCollectionHistogramVec = make(map[string]*prometheus.HistogramVec)

var defaultLabels prometheus.Labels

func Create(host string, env string, nameSpace string) error {
	defaultLabels = make(prometheus.Labels)
	defaultLabels["env"] = env
	defaultLabels["instance"] = host
	namespace = nameSpace
	MetricSystemEnabled = true

	var err error
	hasError := func(e error) {
		if err == nil && e != nil {
			err = e
		}
	}

	// Ledger
	hasError(createCounterVec(SystemLedger, MetricLedgerOperations, []string{"kind", "outcome"}))
	hasError(createHistogramVec(SystemLedger, MetricLedgerOperationDuration, []string{"kind"}))
	hasError(createCounterVec(SystemLedger, MetricLedgerCashbackCents, []string{"category"}))

	// Payments
	hasError(createCounterVec(SystemPayment, MetricPaymentReconciliations, []string{"outcome"}))

	// Notifications
	hasError(createCounterVec(SystemNotification, MetricNotificationRequests, []string{"kind", "outcome"}))
	hasError(createCounterVec(SystemNotification, MetricNotificationDeliveries, []string{"channel", "status"}))
	hasError(createHistogramVec(SystemNotification, MetricNotificationDeliveryDuration, []string{"channel"}))
	hasError(createGaugeVec(SystemNotification, MetricNotificationQueuePending, []string{"queue"}))

	return err
}

func ListenAndServer(port string, url string) {
	hh := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	s := xhttp.CreateServer()
	s.GET(url, hh)
	logger.Info("[metrics-server] listening...", "url", url)
	if err := s.ListenAndServe(port); err != nil {
		logger.Panic("[metrics-server] http listen error", "error", err)
	}
}

func createCounterVec(subsystem, name string, labels []string) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()
	MetricCollectionCounterVec[subsystem+name] = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        "",
		ConstLabels: defaultLabels,
	}, labels)
	return prometheus.Register(MetricCollectionCounterVec[subsystem+name])
}

func createHistogramVec(subsystem, name string, labels []string) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()
	MetricCollectionHistogramVec[subsystem+name] = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        "",
		ConstLabels: defaultLabels,
	}, labels)
	return prometheus.Register(MetricCollectionHistogramVec[subsystem+name])
}

func createGaugeVec(subsystem, name string, labels []string) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()

	MetricCollectionGaugeVec[subsystem+name] = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        "",
		ConstLabels: defaultLabels,
	}, labels)
	return prometheus.Register(MetricCollectionGaugeVec[subsystem+name])
}

func SetGaugeVec(subsystem, name string, num float64, labelValues ...string) {
	if MetricSystemEnabled == false {
		return
	}
	if v, ok := MetricCollectionGaugeVec[subsystem+name]; ok {
		v.WithLabelValues(labelValues...).Set(num)
		return
	}
	logger.Warn("[metrics-server] gauge not found", "subsystem", subsystem, "name", name)
}

func AddCounterVec(subsystem, name string, num float64, labelValues ...string) {
	if MetricSystemEnabled == false {
		return
	}
	if v, ok := MetricCollectionCounterVec[subsystem+name]; ok {
		v.WithLabelValues(labelValues...).Add(num)
		return
	}
	logger.Warn("[metrics-server] counter vec not found", "subsystem", subsystem, "name", name)
}

func IncCounterVec(subsystem, name string, labelValues ...string) {
	AddCounterVec(subsystem, name, 1, labelValues...)
}

func AddHistogramVec(subsystem, name string, number float64, labelValues ...string) {
	if MetricSystemEnabled == false {
		return
	}
	if v, ok := MetricCollectionHistogramVec[subsystem+name]; ok {
		v.WithLabelValues(labelValues...).Observe(number)
		return
	}
	logger.Warn("[metrics-server] histogram vec not found", "subsystem", subsystem, "name", name)
}

func IncLedgerOperation(kind, outcome string) {
	IncCounterVec(SystemLedger, MetricLedgerOperations, kind, outcome)
}

func ObserveLedgerOperation(kind string, seconds float64) {
	AddHistogramVec(SystemLedger, MetricLedgerOperationDuration, seconds, kind)
}

func AddCashbackCents(category string, cents int64) {
	AddCounterVec(SystemLedger, MetricLedgerCashbackCents, float64(cents), category)
}

func IncReconciliation(outcome string) {
	IncCounterVec(SystemPayment, MetricPaymentReconciliations, outcome)
}

func IncNotificationRequest(kind, outcome string) {
	IncCounterVec(SystemNotification, MetricNotificationRequests, kind, outcome)
}

func IncNotificationDelivery(channel, status string) {
	IncCounterVec(SystemNotification, MetricNotificationDeliveries, channel, status)
}

func ObserveNotificationDelivery(channel string, seconds float64) {
	AddHistogramVec(SystemNotification, MetricNotificationDeliveryDuration, seconds, channel)
}

func SetNotificationQueuePending(queue string, pending int64) {
	SetGaugeVec(SystemNotification, MetricNotificationQueuePending, float64(pending), queue)
}

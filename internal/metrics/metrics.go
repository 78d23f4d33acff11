package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	OrdersCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "number of orders persisted",
		},
	)
	OrdersCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orders_cancelled_total",
			Help: "number of orders deleted by cancellation",
		},
	)
	OrdersRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_rejected_total",
			Help: "order requests rejected or faulted, by reason",
		},
		[]string{"reason"},
	)
	PublishFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_events_publish_failures_total",
			Help: "order events not accepted by the publisher",
		},
		[]string{"event_type"},
	)
	EventsIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_events_ingested_total",
			Help: "event log records appended",
		},
		[]string{"event_type"},
	)
	EventsRejected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "order_events_rejected_total",
			Help: "deliveries whose envelope or payload could not be decoded",
		},
	)
	DeadLettered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_events_dead_lettered_total",
			Help: "deliveries acknowledged without ingestion after exhausting attempts",
		},
		[]string{"transport"},
	)
	IngestFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "order_events_ingest_failures_total",
			Help: "deliveries left for redelivery",
		},
	)
)

var once sync.Once

func Init() {
	once.Do(func() {
		prometheus.MustRegister(OrdersCreated, OrdersCancelled, OrdersRejected,
			PublishFailures, EventsIngested, EventsRejected, DeadLettered, IngestFailures)
	})
}

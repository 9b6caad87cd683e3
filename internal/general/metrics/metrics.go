package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	OutcomeOK         = "ok"
	OutcomeError      = "error"
	OutcomeSuperseded = "superseded"
)

var (
	APIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smartfleet_api_requests_total",
		Help: "REST calls issued by the client, by method and status class",
	}, []string{"method", "class"})
	APILatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "smartfleet_api_request_seconds",
		Help:    "REST call latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})
	Fetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smartfleet_fetches_total",
		Help: "Collection snapshot fetches by collection and outcome",
	}, []string{"collection", "outcome"})
	UpdatesApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smartfleet_updates_applied_total",
		Help: "Push updates that replaced a cached entry",
	}, []string{"collection"})
	UpdatesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smartfleet_updates_dropped_total",
		Help: "Push updates for identifiers not in the cache",
	}, []string{"collection"})
	LiveMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smartfleet_live_messages_total",
		Help: "Messages received on the push channel by source and result",
	}, []string{"source", "result"})
	BridgePublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "smartfleet_bridge_published_total",
		Help: "Vehicle updates republished to the message broker",
	})
	BridgeArchived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "smartfleet_bridge_archived_total",
		Help: "Vehicle positions archived to the database",
	})
	BridgeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smartfleet_bridge_errors_total",
		Help: "Bridge failures by stage",
	}, []string{"stage"})
	QueueDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smartfleet_queue_deliveries_total",
		Help: "Consumed queue deliveries by queue and settlement (acked, dropped, settle_failed)",
	}, []string{"queue", "result"})
	BrokerConnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smartfleet_broker_connects_total",
		Help: "RabbitMQ connection attempts by result (connected, failed)",
	}, []string{"result"})
)

// ObserveAPILatency records the duration of a REST call started at start.
func ObserveAPILatency(method string, start time.Time) {
	APILatency.WithLabelValues(method).Observe(time.Since(start).Seconds())
}

// StatusClass maps an HTTP status to its class label ("2xx", "4xx", ...).
// Zero means no response was received.
func StatusClass(code int) string {
	if code <= 0 {
		return "transport"
	}
	return strconv.Itoa(code/100) + "xx"
}

// Handler serves /metrics and /healthz.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// StartMetricsServer serves Handler on port until ctx is cancelled.
// A zero port disables the listener.
func StartMetricsServer(ctx context.Context, port int) error {
	if port == 0 {
		return nil
	}
	srv := &http.Server{
		Addr:              net.JoinHostPort("", strconv.Itoa(port)),
		Handler:           Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace for all metrics
const namespace = "s3audit"

// Collector provides a central place for all application metrics
type Collector struct {
	// Parse metrics
	LinesRead     prometheus.Counter
	LinesParsed   prometheus.Counter
	LinesFailed   prometheus.Counter
	LinesSkipped  prometheus.Counter
	ParseDuration prometheus.Histogram

	// Export metrics
	RecordsWritten *prometheus.CounterVec
	WriteFailures  *prometheus.CounterVec

	// Source metrics
	ObjectsFetched prometheus.Counter
	BytesFetched   prometheus.Counter

	registry *prometheus.Registry
}

// NewCollector creates a new metrics collector on a private registry
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	c := &Collector{registry: registry}

	c.LinesRead = promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "parse",
		Name:      "lines_read_total",
		Help:      "Total number of log lines read from the input",
	})

	c.LinesParsed = promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "parse",
		Name:      "lines_parsed_total",
		Help:      "Total number of log lines that matched the access log format",
	})

	c.LinesFailed = promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "parse",
		Name:      "lines_failed_total",
		Help:      "Total number of log lines that did not match the access log format",
	})

	c.LinesSkipped = promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "parse",
		Name:      "lines_skipped_total",
		Help:      "Total number of parsed lines dropped because the referrer field was absent",
	})

	c.ParseDuration = promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "parse",
		Name:      "line_duration_seconds",
		Help:      "Time taken to parse a single log line",
		Buckets:   prometheus.ExponentialBuckets(0.000001, 10, 8),
	})

	c.RecordsWritten = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "output",
			Name:      "records_written_total",
			Help:      "Total number of records written by output",
		},
		[]string{"output"},
	)

	c.WriteFailures = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "output",
			Name:      "write_failures_total",
			Help:      "Total number of failed record writes by output",
		},
		[]string{"output"},
	)

	c.ObjectsFetched = promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "source",
		Name:      "objects_fetched_total",
		Help:      "Total number of log objects downloaded from S3",
	})

	c.BytesFetched = promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "source",
		Name:      "bytes_fetched_total",
		Help:      "Total bytes of log data downloaded from S3",
	})

	return c
}

// Registry returns the underlying prometheus registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns an HTTP handler serving the collected metrics
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Serve exposes the metrics endpoint on the given address until the context
// is cancelled.
func (c *Collector) Serve(ctx context.Context, addr, path string) error {
	if path == "" {
		path = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(path, c.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

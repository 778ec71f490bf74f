package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the extraction service metrics
type Metrics struct {
	RequestCounter   metric.Int64Counter
	RequestDuration  metric.Float64Histogram
	PagesIndexed     metric.Int64Counter
	PageFailures     metric.Int64Counter
	IndexingDuration metric.Float64Histogram
	SearchDuration   metric.Float64Histogram
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("filerepo-extraction")

	requestCounter, err := meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	pagesIndexed, err := meter.Int64Counter(
		"indexing.pages.indexed",
		metric.WithDescription("Pages that produced a stored embedding"),
	)
	if err != nil {
		return nil, err
	}

	pageFailures, err := meter.Int64Counter(
		"indexing.pages.failed",
		metric.WithDescription("Pages abandoned after bounded retries"),
	)
	if err != nil {
		return nil, err
	}

	indexingDuration, err := meter.Float64Histogram(
		"indexing.duration",
		metric.WithDescription("Whole-file indexing duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	searchDuration, err := meter.Float64Histogram(
		"search.duration",
		metric.WithDescription("Similarity search duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCounter:   requestCounter,
		RequestDuration:  requestDuration,
		PagesIndexed:     pagesIndexed,
		PageFailures:     pageFailures,
		IndexingDuration: indexingDuration,
		SearchDuration:   searchDuration,
	}, nil
}

// RecordRequest records one HTTP request outcome
func (m *Metrics) RecordRequest(method, path, status string, duration float64) {
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.String("status", status),
	)
	m.RequestCounter.Add(ctx, 1, attrs)
	m.RequestDuration.Record(ctx, duration, attrs)
}

// RecordIndexing records the outcome of one indexing run
func (m *Metrics) RecordIndexing(ctx context.Context, pagesIndexed, pageFailures int, seconds float64, status string) {
	attrs := metric.WithAttributes(attribute.String("status", status))
	m.PagesIndexed.Add(ctx, int64(pagesIndexed), attrs)
	m.PageFailures.Add(ctx, int64(pageFailures), attrs)
	m.IndexingDuration.Record(ctx, seconds, attrs)
}

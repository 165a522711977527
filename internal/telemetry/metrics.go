package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics
type Metrics struct {
	RequestCounter      metric.Int64Counter
	RequestDuration     metric.Float64Histogram
	TokensUsed          metric.Int64Counter
	ChunksIngested      metric.Int64Counter
	IngestDuration      metric.Float64Histogram
	QueriesAnswered     metric.Int64Counter
	CircuitBreakerState metric.Int64Counter
}

// InitMetrics creates the instruments on the global meter provider.
func InitMetrics(serviceName string) (*Metrics, error) {
	meter := otel.Meter(serviceName)

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

	tokensUsed, err := meter.Int64Counter(
		"llm.tokens.used",
		metric.WithDescription("Total tokens reported by the generation provider"),
	)
	if err != nil {
		return nil, err
	}

	chunksIngested, err := meter.Int64Counter(
		"index.chunks.added",
		metric.WithDescription("Chunks embedded and stored"),
	)
	if err != nil {
		return nil, err
	}

	ingestDuration, err := meter.Float64Histogram(
		"index.ingest.duration",
		metric.WithDescription("Ingestion duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	queriesAnswered, err := meter.Int64Counter(
		"chat.queries.total",
		metric.WithDescription("Conversational queries by outcome"),
	)
	if err != nil {
		return nil, err
	}

	circuitBreakerState, err := meter.Int64Counter(
		"circuit_breaker.state_changes",
		metric.WithDescription("Circuit breaker state changes"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCounter:      requestCounter,
		RequestDuration:     requestDuration,
		TokensUsed:          tokensUsed,
		ChunksIngested:      chunksIngested,
		IngestDuration:      ingestDuration,
		QueriesAnswered:     queriesAnswered,
		CircuitBreakerState: circuitBreakerState,
	}, nil
}

// RecordRequest records HTTP request metrics
func (m *Metrics) RecordRequest(method, path, status string, duration float64) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("http.status", status),
	}

	m.RequestCounter.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.RequestDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordTokensUsed(model string, tokens int64) {
	if m == nil {
		return
	}
	m.TokensUsed.Add(context.Background(), tokens, metric.WithAttributes(attribute.String("llm.model", model)))
}

func (m *Metrics) RecordIngestion(added int, duration float64, status string) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("ingest.status", status))
	m.ChunksIngested.Add(context.Background(), int64(added), attrs)
	m.IngestDuration.Record(context.Background(), duration, attrs)
}

func (m *Metrics) RecordQuery(status string) {
	if m == nil {
		return
	}
	m.QueriesAnswered.Add(context.Background(), 1, metric.WithAttributes(attribute.String("chat.status", status)))
}

// RecordCircuitBreakerState records circuit breaker state changes
func (m *Metrics) RecordCircuitBreakerState(service, state string) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("service", service),
		attribute.String("state", state),
	}

	m.CircuitBreakerState.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

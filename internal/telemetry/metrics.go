package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics. A nil *Metrics records nothing.
type Metrics struct {
	RequestCounter        metric.Int64Counter
	RequestDuration       metric.Float64Histogram
	LLMCalls              metric.Int64Counter
	TokensUsed            metric.Int64Counter
	CircuitBreakerState   metric.Int64Counter
	ChunksCreated         metric.Int64Counter
	SummarizationDuration metric.Float64Histogram
	SessionsExpired       metric.Int64Counter
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("docqa-platform")

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

	llmCalls, err := meter.Int64Counter(
		"llm.calls.total",
		metric.WithDescription("Text generation calls by operation and outcome"),
	)
	if err != nil {
		return nil, err
	}

	tokensUsed, err := meter.Int64Counter(
		"gemini.tokens.used",
		metric.WithDescription("Total Gemini tokens used"),
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

	chunksCreated, err := meter.Int64Counter(
		"documents.chunks.created",
		metric.WithDescription("Chunks produced by ingestion"),
	)
	if err != nil {
		return nil, err
	}

	summarizationDuration, err := meter.Float64Histogram(
		"summarization.duration",
		metric.WithDescription("Summarization duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	sessionsExpired, err := meter.Int64Counter(
		"sessions.expired.total",
		metric.WithDescription("Conversation sessions removed by the cleanup sweep"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCounter:        requestCounter,
		RequestDuration:       requestDuration,
		LLMCalls:              llmCalls,
		TokensUsed:            tokensUsed,
		CircuitBreakerState:   circuitBreakerState,
		ChunksCreated:         chunksCreated,
		SummarizationDuration: summarizationDuration,
		SessionsExpired:       sessionsExpired,
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

// RecordLLMCall records one text generation call.
func (m *Metrics) RecordLLMCall(mode string, success bool) {
	if m == nil {
		return
	}
	m.LLMCalls.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("llm.mode", mode),
		attribute.Bool("llm.success", success),
	))
}

// RecordTokensUsed records Gemini token usage
func (m *Metrics) RecordTokensUsed(tokens int64, model string) {
	if m == nil {
		return
	}
	m.TokensUsed.Add(context.Background(), tokens, metric.WithAttributes(
		attribute.String("gemini.model", model),
		attribute.String("service", "gemini"),
	))
}

// RecordCircuitBreakerState records circuit breaker state changes
func (m *Metrics) RecordCircuitBreakerState(service, state string) {
	if m == nil {
		return
	}
	m.CircuitBreakerState.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("service", service),
		attribute.String("state", state),
	))
}

// RecordChunksCreated records ingestion output.
func (m *Metrics) RecordChunksCreated(count int) {
	if m == nil {
		return
	}
	m.ChunksCreated.Add(context.Background(), int64(count))
}

// RecordSummarization records a summarization run.
func (m *Metrics) RecordSummarization(mode string, duration float64, sources int) {
	if m == nil {
		return
	}
	m.SummarizationDuration.Record(context.Background(), duration, metric.WithAttributes(
		attribute.String("summarization.mode", mode),
		attribute.Int("summarization.sources", sources),
	))
}

// RecordSessionsExpired records a cleanup sweep.
func (m *Metrics) RecordSessionsExpired(count int) {
	if m == nil || count == 0 {
		return
	}
	m.SessionsExpired.Add(context.Background(), int64(count))
}

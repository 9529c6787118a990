package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics
type Metrics struct {
	ChunksIngested    metric.Int64Counter
	DocumentsDeleted  metric.Int64Counter
	QueriesAnswered   metric.Int64Counter
	WorkflowFallbacks metric.Int64Counter
	OracleErrors      metric.Int64Counter
	IngestionDuration metric.Float64Histogram
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("rag-document-platform")

	chunksIngested, err := meter.Int64Counter(
		"ingestion.chunks.total",
		metric.WithDescription("Total chunks written to the vector store"),
	)
	if err != nil {
		return nil, err
	}

	documentsDeleted, err := meter.Int64Counter(
		"documents.deleted.total",
		metric.WithDescription("Total documents deleted"),
	)
	if err != nil {
		return nil, err
	}

	queriesAnswered, err := meter.Int64Counter(
		"queries.answered.total",
		metric.WithDescription("Total questions answered"),
	)
	if err != nil {
		return nil, err
	}

	workflowFallbacks, err := meter.Int64Counter(
		"workflow.fallbacks.total",
		metric.WithDescription("Answers produced by the rewrite fallback"),
	)
	if err != nil {
		return nil, err
	}

	oracleErrors, err := meter.Int64Counter(
		"workflow.oracle_errors.total",
		metric.WithDescription("Oracle failures converted to sentinel responses"),
	)
	if err != nil {
		return nil, err
	}

	ingestionDuration, err := meter.Float64Histogram(
		"ingestion.duration",
		metric.WithDescription("Ingestion request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		ChunksIngested:    chunksIngested,
		DocumentsDeleted:  documentsDeleted,
		QueriesAnswered:   queriesAnswered,
		WorkflowFallbacks: workflowFallbacks,
		OracleErrors:      oracleErrors,
		IngestionDuration: ingestionDuration,
	}, nil
}

// RecordIngestion records one ingestion request.
func (m *Metrics) RecordIngestion(ctx context.Context, chunks int, seconds float64, hadErrors bool) {
	if m == nil {
		return
	}
	m.ChunksIngested.Add(ctx, int64(chunks))
	m.IngestionDuration.Record(ctx, seconds, metric.WithAttributes(
		attribute.Bool("partial_errors", hadErrors),
	))
}

// RecordQuery records one answered question.
func (m *Metrics) RecordQuery(ctx context.Context, failed, rewritten bool) {
	if m == nil {
		return
	}
	m.QueriesAnswered.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("failed", failed),
	))
	if failed {
		m.OracleErrors.Add(ctx, 1)
	}
	if rewritten {
		m.WorkflowFallbacks.Add(ctx, 1)
	}
}

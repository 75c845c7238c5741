package observability

import (
	"context"
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	meter = otel.Meter("codescope/server")

	toolCalls    metric.Int64Counter
	toolFailures metric.Int64Counter
	toolDuration metric.Float64Histogram
)

func init() {
	var err error
	toolCalls, err = meter.Int64Counter("mcp.tool.calls",
		metric.WithDescription("Tool executions by module, tool and status"))
	if err != nil {
		log.Printf("otel: tool.calls counter: %v", err)
	}
	toolFailures, err = meter.Int64Counter("mcp.tool.failures",
		metric.WithDescription("Failed tool executions"))
	if err != nil {
		log.Printf("otel: tool.failures counter: %v", err)
	}
	toolDuration, err = meter.Float64Histogram("mcp.tool.duration",
		metric.WithDescription("Tool execution duration"),
		metric.WithUnit("ms"))
	if err != nil {
		log.Printf("otel: tool.duration histogram: %v", err)
	}
}

// RecordToolCall records one tool execution on the otel meter.
func RecordToolCall(ctx context.Context, module, tool string, durationMs int64, status string) {
	attrs := metric.WithAttributes(
		attribute.String("module", module),
		attribute.String("tool", tool),
		attribute.String("status", status),
	)
	toolCalls.Add(ctx, 1, attrs)
	toolDuration.Record(ctx, float64(durationMs), attrs)
	if status != "success" {
		toolFailures.Add(ctx, 1, attrs)
	}
}

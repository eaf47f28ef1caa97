package agent

import (
	"go.opentelemetry.io/otel/metric"
)

type instruments struct {
	runs            metric.Int64Counter
	runsFailed      metric.Int64Counter
	iterations      metric.Int64Counter
	toolCalls       metric.Int64Counter
	toolCallsFailed metric.Int64Counter

	llmResponseTime     metric.Float64Histogram
	toolExecutionTime   metric.Float64Histogram
	ingestionDuration   metric.Float64Histogram
	ingredientsRecorded metric.Int64Histogram

	promptSize metric.Int64Gauge
}

func newInstruments(meter metric.Meter) *instruments {
	in := &instruments{}
	in.runs, _ = meter.Int64Counter("ingestion_runs_total",
		metric.WithDescription("Total number of ingestion runs started"))
	in.runsFailed, _ = meter.Int64Counter("ingestion_runs_failed_total",
		metric.WithDescription("Total number of ingestion runs that failed, by pipeline state"))
	in.iterations, _ = meter.Int64Counter("agent_iterations_total",
		metric.WithDescription("Total number of agent iterations"))
	in.toolCalls, _ = meter.Int64Counter("tool_calls_total",
		metric.WithDescription("Total number of tool calls executed"))
	in.toolCallsFailed, _ = meter.Int64Counter("tool_calls_failed_total",
		metric.WithDescription("Total number of tool calls that failed or returned FAILED"))

	in.llmResponseTime, _ = meter.Float64Histogram("llm_response_time_seconds",
		metric.WithDescription("Time taken to receive response from LLM in seconds"))
	in.toolExecutionTime, _ = meter.Float64Histogram("tool_execution_time_seconds",
		metric.WithDescription("Time taken to execute individual tools in seconds"))
	in.ingestionDuration, _ = meter.Float64Histogram("ingestion_duration_seconds",
		metric.WithDescription("Total duration of an ingestion in seconds"))
	in.ingredientsRecorded, _ = meter.Int64Histogram("ingredients_reconciled",
		metric.WithDescription("Ingredient rows present when an ingestion is reconciled"))

	in.promptSize, _ = meter.Int64Gauge("prompt_size_bytes",
		metric.WithDescription("Size of the prompt sent to LLM in bytes"))
	return in
}

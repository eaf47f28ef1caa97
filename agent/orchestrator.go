package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"foodlog"
	"foodlog/media"
	"foodlog/record"
	"foodlog/tools"
)

type llmClient interface {
	Invoke(ctx context.Context, prompt Prompt) (Response, error)
}

// ToolProvider is the set of tools the model may call.
type ToolProvider interface {
	GetTools() []tools.Tool
	GetTool(name string) (tools.Tool, error)
}

type Config struct {
	MaxIterations int
	// Timeout bounds one agent session. Zero means no extra bound.
	Timeout time.Duration
	Logger  foodlog.SessionLogger
	// Tracer and Meter default to the global providers.
	Tracer trace.Tracer
	Meter  metric.Meter
}

// Upload is one client submission.
type Upload struct {
	OwnerID     int64
	Data        []byte
	Ext         string
	ContentType string
	Notes       string
}

// Orchestrator drives an upload through storage, the agent session and
// reconciliation.
type Orchestrator struct {
	media         media.Store
	records       record.Store
	llm           llmClient
	toolProvider  ToolProvider
	reconciler    *Reconciler
	maxIterations int
	timeout       time.Duration
	logger        foodlog.SessionLogger
	tracer        trace.Tracer
	metrics       *instruments
}

func NewOrchestrator(mediaStore media.Store, records record.Store, llm llmClient, toolProvider ToolProvider, cfg Config) *Orchestrator {
	o := &Orchestrator{
		media:         mediaStore,
		records:       records,
		llm:           llm,
		toolProvider:  toolProvider,
		reconciler:    NewReconciler(records),
		maxIterations: cfg.MaxIterations,
		timeout:       cfg.Timeout,
		logger:        cfg.Logger,
		tracer:        cfg.Tracer,
	}
	if o.maxIterations <= 0 {
		o.maxIterations = 8
	}
	if o.logger == nil {
		o.logger = foodlog.NewNoOpSessionLogger()
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(foodlog.TracerNameOrchestrator)
	}
	meter := cfg.Meter
	if meter == nil {
		meter = otel.Meter(foodlog.MeterName)
	}
	o.metrics = newInstruments(meter)
	return o
}

// Ingest runs the whole pipeline for one upload. Failures are returned as
// *PipelineError wrapping one of the foodlog error kinds.
func (o *Orchestrator) Ingest(ctx context.Context, up Upload) (IngestResponse, error) {
	start := time.Now()
	ctx, span := o.tracer.Start(ctx, "Orchestrator.Ingest")
	defer span.End()

	o.metrics.runs.Add(ctx, 1)
	defer func() {
		o.metrics.ingestionDuration.Record(ctx, time.Since(start).Seconds())
	}()

	var logID int64
	fail := func(state State, err error) (IngestResponse, error) {
		slog.Error("ORCHESTRATOR: Ingestion failed", "state", state, "log_id", logID, "error", err)
		o.metrics.runsFailed.Add(ctx, 1, metric.WithAttributes(attribute.String("state", string(state))))
		span.SetAttributes(attribute.String("pipeline.state", string(StateFailed)))
		span.SetStatus(codes.Error, string(state))
		span.RecordError(err)
		return IngestResponse{}, &PipelineError{State: state, LogID: logID, Err: err}
	}

	if len(up.Data) == 0 {
		return fail(StateInit, fmt.Errorf("%w: file is empty", foodlog.ErrValidation))
	}
	contentType := up.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = media.ContentType(up.Data, up.Ext)
	}

	ref, err := o.media.Store(ctx, up.Data, up.Ext)
	if err != nil {
		return fail(StateInit, err)
	}
	slog.Info("ORCHESTRATOR: Media stored", "ref", ref, "content_type", contentType)

	logID, err = o.records.CreatePendingLog(ctx, up.OwnerID, string(ref))
	if err != nil {
		return fail(StateMediaStored, err)
	}
	span.SetAttributes(attribute.Int64("log.id", logID))
	slog.Info("ORCHESTRATOR: Pending log created", "log_id", logID, "owner_id", up.OwnerID)

	err = o.Run(ctx, logID, Media{Ref: string(ref), ContentType: contentType, Data: up.Data}, up.Notes)
	if err != nil {
		return fail(StateAgentRunning, err)
	}

	resp, err := o.reconciler.Build(ctx, logID)
	if err != nil {
		return fail(StateAgentDone, err)
	}

	o.metrics.ingredientsRecorded.Record(ctx, int64(resp.Count))
	span.SetAttributes(attribute.String("pipeline.state", string(StateReconciled)))
	slog.Info("ORCHESTRATOR: Ingestion reconciled", "log_id", logID, "count", resp.Count, "confidence", resp.Confidence)
	return resp, nil
}

// Run is the agent session for an existing log. It returns nil once the model
// stops calling tools or the iteration budget is spent; the model's text is
// never used. Provider errors and timeouts are reported as foodlog.ErrAgent.
func (o *Orchestrator) Run(ctx context.Context, logID int64, m Media, notes string) error {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	ctx, span := o.tracer.Start(ctx, "Orchestrator.Run", trace.WithAttributes(attribute.Int64("log.id", logID)))
	defer span.End()
	defer o.flushSession(logID)

	slog.Info("ORCHESTRATOR: Starting agent session", "log_id", logID, "max_iterations", o.maxIterations)
	prompt := NewPrompt(logID, m, notes, o.toolProvider)

	for iter := 0; iter < o.maxIterations; iter++ {
		done, err := o.iterate(ctx, logID, iter+1, &prompt)
		if err != nil {
			span.SetStatus(codes.Error, "agent session failed")
			span.RecordError(err)
			return err
		}
		if done {
			return nil
		}
	}

	slog.Warn("ORCHESTRATOR: Iteration budget exhausted", "log_id", logID, "max_iterations", o.maxIterations)
	return nil
}

func (o *Orchestrator) iterate(ctx context.Context, logID int64, iteration int, prompt *Prompt) (bool, error) {
	ctx, span := o.tracer.Start(ctx, fmt.Sprintf("Orchestrator.Run.Iteration.%d", iteration))
	defer span.End()

	o.metrics.iterations.Add(ctx, 1)
	iterLog := foodlog.IterationLog{Iteration: iteration, Timestamp: time.Now()}

	if b, err := json.Marshal(prompt); err == nil {
		iterLog.LLMInput = string(b)
		o.metrics.promptSize.Record(ctx, int64(len(b)))
		slog.Info("ORCHESTRATOR: Sending prompt to LLM",
			"log_id", logID,
			"iteration", iteration,
			"messages_count", len(prompt.Messages),
			"tools_count", len(prompt.Tools),
			"prompt_size_bytes", len(b),
		)
	}

	llmStart := time.Now()
	res, err := o.llm.Invoke(ctx, *prompt)
	o.metrics.llmResponseTime.Record(ctx, time.Since(llmStart).Seconds())
	if err != nil {
		iterLog.Error = err.Error()
		o.logIteration(logID, iterLog)
		span.SetStatus(codes.Error, "LLM invoke failed")
		return false, agentErr(ctx, "invoke model", err)
	}
	iterLog.LLMOutput = res

	slog.Info("ORCHESTRATOR: LLM response received",
		"log_id", logID,
		"iteration", iteration,
		"content_length", len(res.Content),
		"tool_calls", len(res.ToolCalls),
	)

	if len(res.ToolCalls) == 0 {
		slog.Info("ORCHESTRATOR: No tool calls; session done", "log_id", logID, "iteration", iteration)
		o.logIteration(logID, iterLog)
		return true, nil
	}

	assistantMsg := Message{Role: "assistant", Content: MessageParts{}}
	if strings.TrimSpace(res.Content) != "" {
		assistantMsg.Content = append(assistantMsg.Content, MessagePart{Type: "text", Text: res.Content})
	}
	for _, call := range res.ToolCalls {
		assistantMsg.Content = append(assistantMsg.Content, MessagePart{
			Type:      "tool_use",
			ToolUseID: call.ToolUseID,
			ToolName:  call.Name,
			Data:      call.Input,
		})
	}
	prompt.Messages = append(prompt.Messages, assistantMsg)

	var toolCallLogs []foodlog.ToolCallLog
	var toolResults []ToolResult
	for _, call := range res.ToolCalls {
		result, tlog := o.execute(ctx, logID, call)
		toolCallLogs = append(toolCallLogs, tlog)
		toolResults = append(toolResults, result)
	}
	prompt.Messages = append(prompt.Messages, NewToolResultMessage(toolResults))

	iterLog.ToolCalls = toolCallLogs
	o.logIteration(logID, iterLog)

	// Tool calls committed so far stay; the session itself is over.
	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, "session deadline")
		return false, agentErr(ctx, "agent session", err)
	}
	return false, nil
}

func (o *Orchestrator) execute(ctx context.Context, logID int64, call tools.Call) (ToolResult, foodlog.ToolCallLog) {
	tlog := foodlog.ToolCallLog{Name: call.Name, Input: call.Input}
	attrs := metric.WithAttributes(attribute.String("tool_name", call.Name))
	o.metrics.toolCalls.Add(ctx, 1, attrs)

	slog.Info("ORCHESTRATOR: Handling tool call", "log_id", logID, "name", call.Name)

	tool, err := o.toolProvider.GetTool(call.Name)
	if err != nil {
		o.metrics.toolCallsFailed.Add(ctx, 1, attrs)
		tlog.Error = err.Error()
		return ToolResult{
			ToolUseID: call.ToolUseID,
			ToolName:  call.Name,
			Data:      map[string]any{"error": fmt.Sprintf("tool %q not found: %v", call.Name, err)},
		}, tlog
	}

	start := time.Now()
	out, err := tool.Run(ctx, call.Input)
	o.metrics.toolExecutionTime.Record(ctx, time.Since(start).Seconds(), attrs)
	if err != nil {
		o.metrics.toolCallsFailed.Add(ctx, 1, attrs)
		tlog.Error = err.Error()
		return ToolResult{
			ToolUseID: call.ToolUseID,
			ToolName:  tool.Name(),
			Data:      map[string]any{"error": fmt.Sprintf("tool %q failed: %v", call.Name, err)},
		}, tlog
	}
	if tools.IsFailed(out) {
		o.metrics.toolCallsFailed.Add(ctx, 1, attrs)
		slog.Warn("ORCHESTRATOR: Tool reported failure", "log_id", logID, "name", call.Name, "output", out)
	}

	tlog.Output = out
	return ToolResult{ToolUseID: call.ToolUseID, ToolName: tool.Name(), Data: out}, tlog
}

func agentErr(ctx context.Context, op string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %w: %w", foodlog.ErrAgent, op, context.DeadlineExceeded, err)
	}
	return fmt.Errorf("%w: %s: %w", foodlog.ErrAgent, op, err)
}

func (o *Orchestrator) logIteration(logID int64, iter foodlog.IterationLog) {
	if err := o.logger.LogIteration(logID, iter); err != nil {
		slog.Error("ORCHESTRATOR: Failed to log iteration", "error", err, "log_id", logID, "iteration", iter.Iteration)
	}
}

func (o *Orchestrator) flushSession(logID int64) {
	f, ok := o.logger.(interface{ Flush(int64) error })
	if !ok {
		return
	}
	if err := f.Flush(logID); err != nil {
		slog.Error("ORCHESTRATOR: Failed to flush session log", "error", err, "log_id", logID)
	}
}

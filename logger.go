package foodlog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// SessionLogger records every iteration of an agent session.
type SessionLogger interface {
	LogIteration(logID int64, iteration IterationLog) error
}

// NewSessionLogFilePath returns a file path that identifies the session by log id and model.
func NewSessionLogFilePath(dir string, logID int64, model string) string {
	name := fmt.Sprintf(
		"%d.log-%d.%s.json",
		time.Now().Unix(),
		logID,
		strings.NewReplacer(":", "_", "/", "_").Replace(strings.ToLower(model)),
	)
	return filepath.Join(dir, name)
}

// IterationLog represents a single model round trip within a session.
type IterationLog struct {
	Iteration int           `json:"iteration"`
	Timestamp time.Time     `json:"timestamp"`
	LLMInput  string        `json:"llm_input,omitempty"`
	LLMOutput any           `json:"llm_output"`
	ToolCalls []ToolCallLog `json:"tool_calls,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// ToolCallLog represents a tool execution within an iteration.
type ToolCallLog struct {
	Name   string         `json:"name"`
	Input  map[string]any `json:"input"`
	Output map[string]any `json:"output"`
	Error  string         `json:"error,omitempty"`
}

// FileSessionLogger accumulates iterations per log id and writes one JSON
// document per session into dir when Flush is called.
type FileSessionLogger struct {
	mu       sync.Mutex
	dir      string
	model    string
	sessions map[int64][]IterationLog
}

func NewFileSessionLogger(dir, model string) *FileSessionLogger {
	return &FileSessionLogger{
		dir:      dir,
		model:    model,
		sessions: make(map[int64][]IterationLog),
	}
}

// LogIteration buffers the iteration (does not write immediately).
func (l *FileSessionLogger) LogIteration(logID int64, iteration IterationLog) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sessions[logID] = append(l.sessions[logID], iteration)
	return nil
}

// Flush writes the buffered iterations of one session and forgets them.
func (l *FileSessionLogger) Flush(logID int64) error {
	l.mu.Lock()
	iterations := l.sessions[logID]
	delete(l.sessions, logID)
	l.mu.Unlock()

	if len(iterations) == 0 {
		return nil
	}

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create session log dir: %w", err)
	}

	f, err := os.OpenFile(NewSessionLogFilePath(l.dir, logID, l.model), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open session log: %w", err)
	}
	defer f.Close()

	return writeSession(f, logID, iterations)
}

func writeSession(w io.Writer, logID int64, iterations []IterationLog) error {
	data, err := json.MarshalIndent(map[string]any{
		"agent_session": map[string]any{
			"log_id":     logID,
			"timestamp":  time.Now(),
			"iterations": iterations,
		},
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session log: %w", err)
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write session log: %w", err)
	}
	return nil
}

// NoOpSessionLogger discards all log entries.
type NoOpSessionLogger struct{}

func NewNoOpSessionLogger() *NoOpSessionLogger {
	return &NoOpSessionLogger{}
}

func (nop *NoOpSessionLogger) LogIteration(int64, IterationLog) error {
	return nil
}

// StdoutSessionLogger writes each iteration as a JSON line (for Lambda/CloudWatch).
type StdoutSessionLogger struct {
	w io.Writer
}

func NewStdoutSessionLogger() *StdoutSessionLogger {
	return &StdoutSessionLogger{w: os.Stdout}
}

func (l *StdoutSessionLogger) LogIteration(logID int64, iteration IterationLog) error {
	data, err := json.Marshal(struct {
		LogID int64 `json:"log_id"`
		IterationLog
	}{LogID: logID, IterationLog: iteration})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(l.w, string(data))
	return err
}

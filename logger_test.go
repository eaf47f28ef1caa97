package foodlog

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSessionLogFilePath(t *testing.T) {
	path := NewSessionLogFilePath("logs", 12, "us.anthropic.Claude:0/v1")
	assert.Equal(t, "logs", filepath.Dir(path))
	assert.True(t, strings.HasSuffix(path, ".log-12.us.anthropic.claude_0_v1.json"), path)
}

func TestFileSessionLogger_Flush(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sessions")
	l := NewFileSessionLogger(dir, "mock")

	require.NoError(t, l.LogIteration(3, IterationLog{Iteration: 1, Timestamp: time.Now()}))
	require.NoError(t, l.LogIteration(3, IterationLog{Iteration: 2, Timestamp: time.Now()}))
	require.NoError(t, l.LogIteration(4, IterationLog{Iteration: 1, Timestamp: time.Now()}))

	require.NoError(t, l.Flush(3))
	require.NoError(t, l.Flush(3), "second flush has nothing to write")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	b, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	var doc struct {
		AgentSession struct {
			LogID      int64          `json:"log_id"`
			Iterations []IterationLog `json:"iterations"`
		} `json:"agent_session"`
	}
	require.NoError(t, json.Unmarshal(b, &doc))
	assert.Equal(t, int64(3), doc.AgentSession.LogID)
	assert.Len(t, doc.AgentSession.Iterations, 2)
}

func TestStdoutSessionLogger(t *testing.T) {
	var buf bytes.Buffer
	l := &StdoutSessionLogger{w: &buf}

	require.NoError(t, l.LogIteration(9, IterationLog{Iteration: 1, ToolCalls: []ToolCallLog{{Name: "logIngredients"}}}))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, float64(9), line["log_id"])
	assert.Equal(t, float64(1), line["iteration"])
}

func TestDump(t *testing.T) {
	var buf bytes.Buffer
	Dump(&buf, "config", ServerConfig{Addr: ":8080"})
	assert.Contains(t, buf.String(), "config")
	assert.Contains(t, buf.String(), `Addr: (string) (len=5) ":8080"`)
}

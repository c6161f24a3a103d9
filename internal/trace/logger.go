package trace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Run is one inference invocation's trace record
type Run struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Model       string    `json:"model"`
	Backend     string    `json:"backend"`
	InputChars  int       `json:"input_chars"`
	TokenizeMs  int64     `json:"tokenize_ms"`
	InferMs     int64     `json:"infer_ms"`
	DecodeMs    int64     `json:"decode_ms"`
	EntityCount int       `json:"entity_count"`
	Error       string    `json:"error,omitempty"`
}

// Logger appends inference runs to a JSONL file, one object per line
type Logger struct {
	mu          sync.Mutex
	logFilePath string
	enabled     bool
}

// New creates a trace logger writing to path. A disabled logger drops
// everything, so call sites never need nil checks.
func New(path string, enabled bool) *Logger {
	return &Logger{logFilePath: path, enabled: enabled}
}

// DefaultPath is ~/.edgekit/trace.jsonl
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".edgekit", "trace.jsonl")
}

// NewRun starts a run record with a fresh id
func NewRun(model, backend string) *Run {
	return &Run{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Model:     model,
		Backend:   backend,
	}
}

// Record appends the run to the log file
func (l *Logger) Record(run *Run) {
	if !l.enabled || run == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.logFilePath), 0755); err != nil {
		return
	}
	f, err := os.OpenFile(l.logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to write trace log: %v\n", err)
		return
	}
	defer f.Close()

	data, _ := json.Marshal(run)
	f.Write(data)
	f.WriteString("\n")
}

package sandbox

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/scriptgate/scriptgate/internal/logging"
	"github.com/scriptgate/scriptgate/internal/shared/types"
)

func TestRuntimeExecution(t *testing.T) {
	tests := []struct {
		name    string
		script  string
		wantErr bool
	}{
		{
			name:    "simple return",
			script:  "42",
			wantErr: false,
		},
		{
			name:    "console log",
			script:  "console.log('hello'); 'test'",
			wantErr: false,
		},
		{
			name:    "math operations",
			script:  "Math.sqrt(16)",
			wantErr: false,
		},
		{
			name:    "string operations",
			script:  "'hello'.toUpperCase()",
			wantErr: false,
		},
		{
			name:    "runtime error",
			script:  "undefinedFunction()",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runtime := NewRuntime(DefaultConfig())
			result := runtime.Execute(context.Background(), "s1", tt.script)

			if (result.Error != nil) != tt.wantErr {
				t.Errorf("Execute() error = %v, wantErr %v", result.Error, tt.wantErr)
			}
		})
	}
}

func TestRuntimeStrippedGlobals(t *testing.T) {
	dangerousScripts := []struct {
		name   string
		script string
	}{
		{
			name:   "require stripped",
			script: "require('fs')",
		},
		{
			name:   "process stripped",
			script: "process.exit(1)",
		},
		{
			name:   "buffer stripped",
			script: "Buffer.from('00', 'hex')",
		},
	}

	for _, tt := range dangerousScripts {
		t.Run(tt.name, func(t *testing.T) {
			runtime := NewRuntime(DefaultConfig())
			result := runtime.Execute(context.Background(), "s1", tt.script)

			if result.Error == nil && result.Value != nil {
				t.Errorf("Dangerous script executed successfully: %v", result.Value)
			}
		})
	}
}

func TestRuntimeTimeout(t *testing.T) {
	runtime := NewRuntime(Config{
		Timeout:       100 * time.Millisecond,
		EnableConsole: true,
	})

	script := `
		let i = 0;
		while (i >= 0) {
			i++;
		}
	`
	result := runtime.Execute(context.Background(), "s1", script)

	if result.Error == nil {
		t.Error("Expected timeout error, got nil")
	}
}

func TestRuntimeConsoleCapture(t *testing.T) {
	runtime := NewRuntime(DefaultConfig())

	script := `
		console.log('info message');
		console.warn('warning message');
		console.error('error message');
		'done'
	`
	result := runtime.Execute(context.Background(), "s1", script)
	if result.Error != nil {
		t.Fatalf("Execute() error = %v", result.Error)
	}

	if len(result.Console) != 3 {
		t.Fatalf("Expected 3 console entries, got %d", len(result.Console))
	}

	levels := []string{"log", "warn", "error"}
	for i, entry := range result.Console {
		if entry.Level != levels[i] {
			t.Errorf("Console entry %d: expected level %s, got %s", i, levels[i], entry.Level)
		}
	}
}

// recordingCompleter counts completion reports per run.
type recordingCompleter struct {
	mu      sync.Mutex
	reports map[string]int
	ch      chan string
}

func newRecordingCompleter() *recordingCompleter {
	return &recordingCompleter{
		reports: make(map[string]int),
		ch:      make(chan string, 8),
	}
}

func (r *recordingCompleter) OnCompletion(runID string) {
	r.mu.Lock()
	r.reports[runID]++
	r.mu.Unlock()
	r.ch <- runID
}

func TestExecutorReportsCompletionExactlyOnce(t *testing.T) {
	executor := NewExecutor(DefaultConfig(), logging.NewDefault())
	completer := newRecordingCompleter()
	executor.SetCompleter(completer)

	task := types.JobExecutionTask{
		JobID: "job-1",
		RunID: "run-1",
		TestScripts: []types.TestScript{
			{ID: "s1", Name: "ok", Script: "1 + 1"},
			{ID: "s2", Name: "fails", Script: "missing()"},
			{ID: "s3", Name: "ok too", Script: "'still runs'"},
		},
	}

	executor.Execute(context.Background(), task)

	select {
	case runID := <-completer.ch:
		if runID != "run-1" {
			t.Errorf("completion for wrong run: %s", runID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("completion never reported")
	}

	completer.mu.Lock()
	defer completer.mu.Unlock()
	if completer.reports["run-1"] != 1 {
		t.Errorf("expected exactly 1 completion report, got %d", completer.reports["run-1"])
	}
}

package sandbox

import (
	"context"
	"sync"
	"time"

	"github.com/dop251/goja"
)

// Runtime wraps a goja VM with security controls. Scripts handed here
// have already passed static validation; the runtime enforces the same
// boundary dynamically in case anything slipped through.
type Runtime struct {
	vm     *goja.Runtime
	config Config

	console   []LogEntry
	consoleMu sync.Mutex
}

// NewRuntime creates a sandboxed runtime.
func NewRuntime(config Config) *Runtime {
	r := &Runtime{
		vm:     goja.New(),
		config: config,
	}
	r.vm.SetMaxCallStackSize(1024)
	r.setupGlobals()
	return r
}

// Execute runs a script with timeout and interrupt handling.
func (r *Runtime) Execute(ctx context.Context, scriptID, script string) *Result {
	start := time.Now()

	r.consoleMu.Lock()
	r.console = nil
	r.consoleMu.Unlock()

	timer := time.NewTimer(r.config.Timeout)
	defer timer.Stop()
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-timer.C:
			r.vm.Interrupt("execution timeout exceeded")
		case <-ctx.Done():
			r.vm.Interrupt("context cancelled")
		case <-done:
		}
	}()

	val, err := r.vm.RunString(script)

	result := &Result{
		ScriptID: scriptID,
		Duration: time.Since(start),
		Error:    err,
	}
	if err == nil && val != nil && !goja.IsUndefined(val) && !goja.IsNull(val) {
		result.Value = val.Export()
	}

	r.consoleMu.Lock()
	result.Console = append([]LogEntry{}, r.console...)
	r.consoleMu.Unlock()

	return result
}

// setupGlobals strips dangerous globals and installs the console shim.
// Timers are no-ops; the static validator rejects them anyway.
func (r *Runtime) setupGlobals() {
	for _, name := range []string{"require", "process", "module", "exports", "Buffer"} {
		r.vm.Set(name, goja.Undefined())
	}

	if r.config.EnableConsole {
		console := r.vm.NewObject()
		console.Set("log", r.makeConsoleFunc("log"))
		console.Set("warn", r.makeConsoleFunc("warn"))
		console.Set("error", r.makeConsoleFunc("error"))
		console.Set("info", r.makeConsoleFunc("info"))
		r.vm.Set("console", console)
	}

	noop := func(call goja.FunctionCall) goja.Value {
		return goja.Undefined()
	}
	r.vm.Set("setTimeout", noop)
	r.vm.Set("setInterval", noop)
	r.vm.Set("setImmediate", noop)
}

func (r *Runtime) makeConsoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		var msg string
		for i, arg := range call.Arguments {
			if i > 0 {
				msg += " "
			}
			msg += arg.String()
		}

		r.consoleMu.Lock()
		r.console = append(r.console, LogEntry{
			Level:   level,
			Message: msg,
			Time:    time.Now(),
		})
		r.consoleMu.Unlock()

		return goja.Undefined()
	}
}

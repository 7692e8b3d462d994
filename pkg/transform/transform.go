// Package transform applies an optional user-supplied JavaScript function to
// each fetched detail record before output. The script must define
// transform(record) and return the value to print.
package transform

import (
	"context"
	"fmt"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// DefaultTimeout bounds a single script invocation.
const DefaultTimeout = 2 * time.Second

// Globals that a pipeline transform has no business touching.
var blockedGlobals = []string{
	"require", "module", "exports", "process", "global", "Buffer",
}

// Transformer holds a compiled script. A fresh VM is created per Apply, so a
// single Transformer is safe for concurrent use by pipeline workers.
type Transformer struct {
	program *goja.Program
	timeout time.Duration
	logger  *zap.Logger
}

// New compiles the script and validates that it can be loaded.
func New(script string, timeout time.Duration, logger *zap.Logger) (*Transformer, error) {
	if script == "" {
		return nil, fmt.Errorf("script cannot be empty")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger, _ = zap.NewProduction()
	}

	program, err := goja.Compile("transform.js", script, true)
	if err != nil {
		return nil, fmt.Errorf("failed to compile transform script: %w", err)
	}

	return &Transformer{
		program: program,
		timeout: timeout,
		logger:  logger,
	}, nil
}

// Apply runs transform(record) and returns the stringified result. The VM is
// interrupted when the timeout or the context expires.
func (t *Transformer) Apply(ctx context.Context, record map[string]interface{}) (string, error) {
	vm := goja.New()
	for _, name := range blockedGlobals {
		if err := vm.Set(name, goja.Undefined()); err != nil {
			return "", fmt.Errorf("failed to sandbox VM: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	watchdog := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt("transform timed out")
		case <-watchdog:
		}
	}()
	defer close(watchdog)

	if _, err := vm.RunProgram(t.program); err != nil {
		return "", fmt.Errorf("transform script failed to load: %w", err)
	}

	fn, ok := goja.AssertFunction(vm.Get("transform"))
	if !ok {
		return "", fmt.Errorf("script does not define a transform function")
	}

	value, err := fn(goja.Undefined(), vm.ToValue(record))
	if err != nil {
		return "", fmt.Errorf("transform invocation failed: %w", err)
	}

	return value.String(), nil
}

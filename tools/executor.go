package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	kschema "github.com/ctxmetab/kernel/schema"
)

// ToolCall is one assistant-requested invocation within a turn (spec.md
// §4.F step 4's "for each tool call" loop).
type ToolCall struct {
	ID         string
	Name       string
	Input      json.RawMessage
	FunctionID string
}

// Executor dispatches the tool calls a single assistant turn emits,
// grounded on the teacher's tools.Executor/workerPool (tools/executor.go),
// generalized per spec.md §5: concurrency is scoped to tool calls *within*
// one turn only. The kernel loop owns stage gating and the resulting stage
// transitions; Executor only runs whichever calls the loop has already
// accepted, and reports results back in emission order.
//
// Per-call execution is bounded by a timeout and recovers from panics,
// adapted from the teacher's Sandbox.Execute (tools/sandbox.go); unlike the
// teacher, there is no network/file security policy or memory/goroutine
// accounting here — spec.md's tool surface is a closed set with no
// attacker-controlled tool names, so only the "one wedged call (especially
// computer_use, which can block on the OS per spec.md §5) must not hang the
// whole turn" concern survives into this domain.
type Executor struct {
	registry *Registry
	pool     *workerPool
	timeout  time.Duration
}

// ExecutorConfig configures the executor's worker pool size and per-call
// timeout.
type ExecutorConfig struct {
	MaxConcurrency int
	CallTimeout    time.Duration
}

// DefaultExecutorConfig matches the teacher's default pool size and
// MaxExecTime.
var DefaultExecutorConfig = ExecutorConfig{MaxConcurrency: 10, CallTimeout: 30 * time.Second}

func NewExecutor(registry *Registry, config ExecutorConfig) *Executor {
	if registry == nil {
		registry = NewRegistry()
	}
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = DefaultExecutorConfig.MaxConcurrency
	}
	if config.CallTimeout <= 0 {
		config.CallTimeout = DefaultExecutorConfig.CallTimeout
	}
	return &Executor{registry: registry, pool: newWorkerPool(config.MaxConcurrency), timeout: config.CallTimeout}
}

// Execute runs a single tool call, validating its input against the tool's
// compiled JSON Schema before dispatch (spec.md §6 **[EXPANDED]**, replacing
// the teacher's hand-rolled BaseTool.ValidateInput), then runs it under a
// timeout with panic recovery.
func (e *Executor) Execute(ctx context.Context, call ToolCall) kschema.ToolResult {
	tool, compiled, ok := e.registry.Get(call.Name)
	if !ok {
		return kschema.Fail(kschema.NewKernelError(kschema.ErrUnsupportedOp, "unknown tool: "+call.Name, nil))
	}

	if err := ValidateInput(compiled, call.Input); err != nil {
		if ke, ok := kschema.AsKernelError(err); ok {
			return kschema.Fail(ke)
		}
		return kschema.Fail(kschema.NewKernelError(kschema.ErrMissingArgument, err.Error(), err))
	}

	return e.runBounded(ctx, tool, call.Input)
}

func (e *Executor) runBounded(ctx context.Context, tool Tool, input json.RawMessage) kschema.ToolResult {
	execCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resultCh := make(chan kschema.ToolResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				resultCh <- kschema.Fail(kschema.NewKernelError(kschema.ErrUnsupportedOp, fmt.Sprintf("tool panicked: %v", r), nil))
			}
		}()
		resultCh <- tool.Execute(execCtx, input)
	}()

	select {
	case result := <-resultCh:
		return result
	case <-execCtx.Done():
		return kschema.Fail(kschema.NewKernelError(kschema.ErrUnsupportedOp, "tool call timed out", execCtx.Err()))
	}
}

// ExecuteBatch runs every call concurrently through the worker pool and
// returns results in the same order as calls, matching spec.md §5's
// allowance for intra-turn parallelism while preserving emission order for
// the loop's stage-transition bookkeeping.
func (e *Executor) ExecuteBatch(ctx context.Context, calls []ToolCall) []kschema.ToolResult {
	results := make([]kschema.ToolResult, len(calls))
	var wg sync.WaitGroup

	for i, call := range calls {
		wg.Add(1)
		idx, c := i, call
		task := taskFunc(func() {
			defer wg.Done()
			results[idx] = e.Execute(ctx, c)
		})
		if err := e.pool.Submit(task); err != nil {
			wg.Done()
			results[idx] = kschema.Fail(kschema.NewKernelError(kschema.ErrUnsupportedOp, "executor busy: "+err.Error(), err))
		}
	}

	wg.Wait()
	return results
}

// Stop shuts down the underlying worker pool.
func (e *Executor) Stop() { e.pool.Stop() }

// Task is a unit of work submitted to the worker pool.
type Task interface {
	Execute()
}

type taskFunc func()

func (f taskFunc) Execute() { f() }

// workerPool is the teacher's fixed-size goroutine pool
// (tools/executor.go), kept in structure and adapted to the Task
// interface above.
type workerPool struct {
	workers   int
	taskQueue chan Task
	quit      chan struct{}
	wg        sync.WaitGroup
}

func newWorkerPool(workers int) *workerPool {
	pool := &workerPool{
		workers:   workers,
		taskQueue: make(chan Task, workers*2),
		quit:      make(chan struct{}),
	}
	pool.start()
	return pool
}

func (p *workerPool) start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *workerPool) worker() {
	defer p.wg.Done()
	for {
		select {
		case task := <-p.taskQueue:
			if task != nil {
				task.Execute()
			}
		case <-p.quit:
			return
		}
	}
}

func (p *workerPool) Submit(task Task) error {
	select {
	case p.taskQueue <- task:
		return nil
	case <-p.quit:
		return kschema.ErrExecutorStopped
	default:
		return kschema.ErrExecutorBusy
	}
}

func (p *workerPool) Stop() {
	close(p.quit)
	p.wg.Wait()
}

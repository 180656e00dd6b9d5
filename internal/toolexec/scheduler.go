package toolexec

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/tandem-cli/tandem/internal/ids"
	"github.com/tandem-cli/tandem/pkg/models"
)

// ExecStatus is the lifecycle state of one tool invocation.
type ExecStatus string

const (
	ExecPending   ExecStatus = "pending"
	ExecRunning   ExecStatus = "running"
	ExecCompleted ExecStatus = "completed"
	ExecFailed    ExecStatus = "failed"
)

// fallbackTimeout applies when neither the call options, the tool, nor the
// scheduler configuration provide a timeout.
const fallbackTimeout = 30 * time.Second

// Options tune one tool invocation.
type Options struct {
	// Timeout overrides the tool and scheduler timeouts when > 0.
	Timeout time.Duration
	// NoQueue executes immediately instead of waiting for a worker slot.
	NoQueue bool
	// SuppressErrors swallows execution failures: the execution record
	// still shows the failure, but the caller receives a nil result and
	// no error.
	SuppressErrors bool
}

// Execution is the per-invocation record kept for diagnostics.
type Execution struct {
	ID          string         `json:"id"`
	ToolName    string         `json:"tool_name"`
	Params      map[string]any `json:"params,omitempty"`
	Options     Options        `json:"-"`
	Status      ExecStatus     `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Result      any            `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// Config tunes a Scheduler.
type Config struct {
	// MaxConcurrentTools caps queued executions running at once.
	// Defaults to 4.
	MaxConcurrentTools int
	// DefaultTimeout applies to tools without their own timeout.
	DefaultTimeout time.Duration
}

// Scheduler executes tool invocations against a catalog. Queued calls pass
// through a semaphore-bounded worker pool in which every invocation owns its
// own result: the caller that enqueued a call is the caller that receives
// its outcome, keyed by execution ID.
type Scheduler struct {
	catalog        *Catalog
	slots          *semaphore.Weighted
	defaultTimeout time.Duration

	mu         sync.RWMutex
	executions map[string]*Execution
}

// NewScheduler creates a Scheduler over the given catalog.
func NewScheduler(catalog *Catalog, cfg Config) *Scheduler {
	maxTools := cfg.MaxConcurrentTools
	if maxTools <= 0 {
		maxTools = 4
	}
	return &Scheduler{
		catalog:        catalog,
		slots:          semaphore.NewWeighted(int64(maxTools)),
		defaultTimeout: cfg.DefaultTimeout,
		executions:     make(map[string]*Execution),
	}
}

// Catalog returns the scheduler's tool catalog.
func (s *Scheduler) Catalog() *Catalog {
	return s.catalog
}

// ExecuteTool runs one tool invocation. Unknown tools are a NotFound
// failure. By default the call waits for a worker slot; Options.NoQueue
// bypasses the pool and executes immediately. Either way the invocation is
// raced against its effective timeout.
func (s *Scheduler) ExecuteTool(ctx context.Context, name string, params map[string]any, opts Options) (any, error) {
	tool, ok := s.catalog.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: tool %q", models.ErrNotFound, name)
	}

	if err := s.checkPermissions(tool, params); err != nil {
		return nil, err
	}

	exec := &Execution{
		ID:        ids.New("exec"),
		ToolName:  name,
		Params:    params,
		Options:   opts,
		Status:    ExecPending,
		CreatedAt: time.Now(),
	}
	s.mu.Lock()
	s.executions[exec.ID] = exec
	s.mu.Unlock()

	if !opts.NoQueue {
		if err := s.slots.Acquire(ctx, 1); err != nil {
			s.finish(exec, nil, fmt.Errorf("%w: waiting for worker slot: %v", models.ErrExecution, err))
			return nil, err
		}
		defer s.slots.Release(1)
	}

	return s.run(ctx, tool, exec)
}

// checkPermissions gates execution on the tool's permission tags. The
// current policy permits everything; the hook exists so a real policy can
// be added without changing call sites.
func (s *Scheduler) checkPermissions(tool Definition, _ map[string]any) error {
	_ = tool.Permissions
	return nil
}

// run drives one execution through running to a terminal state, racing the
// tool against the effective timeout. The losing goroutine of a timeout race
// is abandoned: its context is cancelled, but no further cancellation is
// propagated downstream.
func (s *Scheduler) run(ctx context.Context, tool Definition, exec *Execution) (any, error) {
	now := time.Now()
	s.mu.Lock()
	exec.Status = ExecRunning
	exec.StartedAt = &now
	s.mu.Unlock()

	timeout := s.effectiveTimeout(tool, exec.Options)
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		result any
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := tool.Execute(callCtx, exec.Params)
		done <- outcome{result, err}
	}()

	var result any
	var err error
	select {
	case out := <-done:
		result, err = out.result, out.err
		if err != nil {
			err = fmt.Errorf("%w: tool %q: %v", models.ErrExecution, exec.ToolName, err)
		}
	case <-callCtx.Done():
		if ctx.Err() != nil {
			err = ctx.Err()
		} else {
			err = fmt.Errorf("%w: tool %q exceeded %s", models.ErrTimeout, exec.ToolName, timeout)
		}
	}

	s.finish(exec, result, err)

	if err != nil && exec.Options.SuppressErrors {
		return nil, nil
	}
	return result, err
}

// effectiveTimeout picks the first applicable value among the call options,
// the tool's own timeout, the scheduler default, and the 30s fallback.
func (s *Scheduler) effectiveTimeout(tool Definition, opts Options) time.Duration {
	switch {
	case opts.Timeout > 0:
		return opts.Timeout
	case tool.Timeout > 0:
		return tool.Timeout
	case s.defaultTimeout > 0:
		return s.defaultTimeout
	default:
		return fallbackTimeout
	}
}

// finish transitions an execution to its terminal state.
func (s *Scheduler) finish(exec *Execution, result any, err error) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	exec.CompletedAt = &now
	if err != nil {
		exec.Status = ExecFailed
		exec.Error = err.Error()
		return
	}
	exec.Status = ExecCompleted
	exec.Result = result
}

// Call is one entry in a concurrent batch.
type Call struct {
	Name   string
	Params map[string]any
	Opts   Options
}

// Result is the settled outcome of one batch entry.
type Result struct {
	Name   string
	Result any
	Err    error
}

// ExecuteTools runs every call concurrently, bypassing the worker pool.
// Each call's success or error is captured independently; a failure never
// aborts the rest of the batch. Results are returned in call order.
func (s *Scheduler) ExecuteTools(ctx context.Context, calls []Call) []Result {
	results := make([]Result, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call Call) {
			defer wg.Done()
			opts := call.Opts
			opts.NoQueue = true
			result, err := s.ExecuteTool(ctx, call.Name, call.Params, opts)
			results[i] = Result{Name: call.Name, Result: result, Err: err}
		}(i, call)
	}
	wg.Wait()

	return results
}

// GetExecution returns a snapshot of the identified execution record.
func (s *Scheduler) GetExecution(id string) (Execution, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	exec, ok := s.executions[id]
	if !ok {
		return Execution{}, false
	}
	return *exec, true
}

// Executions returns snapshots of all execution records.
func (s *Scheduler) Executions() []Execution {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Execution, 0, len(s.executions))
	for _, exec := range s.executions {
		out = append(out, *exec)
	}
	return out
}

package toolexec

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tandem-cli/tandem/pkg/models"
)

func echoTool(name string) Definition {
	return Definition{
		Name: name,
		Execute: func(_ context.Context, params map[string]any) (any, error) {
			return params["value"], nil
		},
	}
}

func TestCatalogRoundTrip(t *testing.T) {
	c := NewCatalog()

	if err := c.Register(echoTool("echo")); err != nil {
		t.Fatal(err)
	}

	def, ok := c.Get("echo")
	if !ok || def.Name != "echo" {
		t.Fatalf("expected registered tool back, got %+v ok=%v", def, ok)
	}

	if err := c.Unregister("echo"); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get("echo"); ok {
		t.Error("expected tool gone after unregister")
	}
}

// Scenario B: registering a second tool under an existing name overwrites
// the first without raising.
func TestCatalogOverwrite(t *testing.T) {
	c := NewCatalog()

	first := Definition{Name: "dup", Execute: func(context.Context, map[string]any) (any, error) {
		return "first", nil
	}}
	second := Definition{Name: "dup", Execute: func(context.Context, map[string]any) (any, error) {
		return "second", nil
	}}

	if err := c.Register(first); err != nil {
		t.Fatal(err)
	}
	if err := c.Register(second); err != nil {
		t.Fatalf("overwrite must not raise, got %v", err)
	}

	def, _ := c.Get("dup")
	out, _ := def.Execute(context.Background(), nil)
	if out != "second" {
		t.Errorf("expected last registration to win, got %v", out)
	}
}

func TestCatalogUnregisterUnknown(t *testing.T) {
	c := NewCatalog()
	if err := c.Unregister("ghost"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestCatalogValidation(t *testing.T) {
	c := NewCatalog()

	if err := c.Register(Definition{Name: ""}); !errors.Is(err, models.ErrValidation) {
		t.Errorf("expected validation error for empty name, got %v", err)
	}
	if err := c.Register(Definition{Name: "noop"}); !errors.Is(err, models.ErrValidation) {
		t.Errorf("expected validation error for nil execute, got %v", err)
	}
}

func TestExecuteToolNotFound(t *testing.T) {
	s := NewScheduler(NewCatalog(), Config{})

	_, err := s.ExecuteTool(context.Background(), "ghost", nil, Options{})
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestExecuteToolSuccess(t *testing.T) {
	c := NewCatalog()
	if err := c.Register(echoTool("echo")); err != nil {
		t.Fatal(err)
	}
	s := NewScheduler(c, Config{})

	result, err := s.ExecuteTool(context.Background(), "echo", map[string]any{"value": 42}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if result != 42 {
		t.Errorf("expected 42, got %v", result)
	}
}

// Scenario D: a tool with a 50ms timeout that sleeps 200ms fails near 50ms,
// not 200ms.
func TestExecuteToolTimeout(t *testing.T) {
	c := NewCatalog()
	err := c.Register(Definition{
		Name: "slow",
		Execute: func(ctx context.Context, _ map[string]any) (any, error) {
			select {
			case <-time.After(200 * time.Millisecond):
				return "done", nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	s := NewScheduler(c, Config{})

	start := time.Now()
	_, err = s.ExecuteTool(context.Background(), "slow", nil, Options{Timeout: 50 * time.Millisecond})
	elapsed := time.Since(start)

	if !errors.Is(err, models.ErrTimeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}
	if elapsed > 150*time.Millisecond {
		t.Errorf("timeout took %s, expected near 50ms", elapsed)
	}
}

func TestTimeoutPrecedence(t *testing.T) {
	tool := Definition{Name: "x", Timeout: 2 * time.Second}
	s := NewScheduler(NewCatalog(), Config{DefaultTimeout: 3 * time.Second})

	if got := s.effectiveTimeout(tool, Options{Timeout: time.Second}); got != time.Second {
		t.Errorf("options timeout should win, got %s", got)
	}
	if got := s.effectiveTimeout(tool, Options{}); got != 2*time.Second {
		t.Errorf("tool timeout should win over default, got %s", got)
	}
	if got := s.effectiveTimeout(Definition{Name: "y"}, Options{}); got != 3*time.Second {
		t.Errorf("scheduler default should apply, got %s", got)
	}

	bare := NewScheduler(NewCatalog(), Config{})
	if got := bare.effectiveTimeout(Definition{Name: "z"}, Options{}); got != fallbackTimeout {
		t.Errorf("fallback should apply, got %s", got)
	}
}

func TestSuppressErrors(t *testing.T) {
	c := NewCatalog()
	if err := c.Register(Definition{
		Name: "boom",
		Execute: func(context.Context, map[string]any) (any, error) {
			return nil, fmt.Errorf("kaput")
		},
	}); err != nil {
		t.Fatal(err)
	}
	s := NewScheduler(c, Config{})

	result, err := s.ExecuteTool(context.Background(), "boom", nil, Options{SuppressErrors: true})
	if err != nil {
		t.Fatalf("suppressed error leaked: %v", err)
	}
	if result != nil {
		t.Errorf("expected nil result, got %v", result)
	}

	// The execution record still shows the failure.
	var failed bool
	for _, exec := range s.Executions() {
		if exec.ToolName == "boom" && exec.Status == ExecFailed {
			failed = true
		}
	}
	if !failed {
		t.Error("expected failed execution record despite suppression")
	}
}

func TestWorkerPoolCapsConcurrency(t *testing.T) {
	c := NewCatalog()
	var active, peak int32
	err := c.Register(Definition{
		Name: "counting",
		Execute: func(context.Context, map[string]any) (any, error) {
			n := atomic.AddInt32(&active, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt32(&active, -1)
			return nil, nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	s := NewScheduler(c, Config{MaxConcurrentTools: 2})

	done := make(chan struct{})
	for i := 0; i < 6; i++ {
		go func() {
			_, _ = s.ExecuteTool(context.Background(), "counting", nil, Options{})
			done <- struct{}{}
		}()
	}
	for i := 0; i < 6; i++ {
		<-done
	}

	if p := atomic.LoadInt32(&peak); p > 2 {
		t.Errorf("worker pool admitted %d concurrent executions, cap is 2", p)
	}
}

func TestEachCallerGetsOwnResult(t *testing.T) {
	c := NewCatalog()
	if err := c.Register(echoTool("echo")); err != nil {
		t.Fatal(err)
	}
	s := NewScheduler(c, Config{MaxConcurrentTools: 2})

	type out struct {
		want   int
		result any
	}
	results := make(chan out, 8)
	for i := 0; i < 8; i++ {
		go func(i int) {
			r, err := s.ExecuteTool(context.Background(), "echo", map[string]any{"value": i}, Options{})
			if err != nil {
				t.Errorf("call %d: %v", i, err)
			}
			results <- out{want: i, result: r}
		}(i)
	}

	for i := 0; i < 8; i++ {
		o := <-results
		if o.result != o.want {
			t.Errorf("caller received someone else's result: want %d, got %v", o.want, o.result)
		}
	}
}

func TestExecuteToolsSettleAll(t *testing.T) {
	c := NewCatalog()
	if err := c.Register(echoTool("echo")); err != nil {
		t.Fatal(err)
	}
	if err := c.Register(Definition{
		Name: "boom",
		Execute: func(context.Context, map[string]any) (any, error) {
			return nil, fmt.Errorf("kaput")
		},
	}); err != nil {
		t.Fatal(err)
	}
	s := NewScheduler(c, Config{})

	results := s.ExecuteTools(context.Background(), []Call{
		{Name: "echo", Params: map[string]any{"value": "a"}},
		{Name: "boom"},
		{Name: "echo", Params: map[string]any{"value": "b"}},
		{Name: "ghost"},
	})

	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	if results[0].Result != "a" || results[2].Result != "b" {
		t.Error("successful calls must settle independently of failures")
	}
	if results[1].Err == nil {
		t.Error("expected boom to fail")
	}
	if !errors.Is(results[3].Err, models.ErrNotFound) {
		t.Errorf("expected NotFound for ghost, got %v", results[3].Err)
	}
}

func TestExecutionRecordTransitions(t *testing.T) {
	c := NewCatalog()
	if err := c.Register(echoTool("echo")); err != nil {
		t.Fatal(err)
	}
	s := NewScheduler(c, Config{})

	if _, err := s.ExecuteTool(context.Background(), "echo", map[string]any{"value": 1}, Options{}); err != nil {
		t.Fatal(err)
	}

	execs := s.Executions()
	if len(execs) != 1 {
		t.Fatalf("expected 1 execution record, got %d", len(execs))
	}
	exec := execs[0]
	if exec.Status != ExecCompleted {
		t.Errorf("expected completed, got %s", exec.Status)
	}
	if exec.StartedAt == nil || exec.CompletedAt == nil {
		t.Error("expected start and completion timestamps")
	}
}

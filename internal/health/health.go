// Package health aggregates component checks for the keyer daemon.
//
// A check is critical when its failure means the keyer cannot send, such
// as a stalled engine loop. Non-critical failures, like a journal that
// cannot be written, only degrade the overall status.
package health

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Status represents the health status of a component.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// DefaultTimeout bounds a check that sets no timeout of its own.
const DefaultTimeout = 2 * time.Second

// CheckResult represents the result of a health check.
type CheckResult struct {
	Status   Status        `json:"status"`
	Message  string        `json:"message,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// Check is a function that performs a health check.
type Check func(ctx context.Context) CheckResult

// Component is a named check.
type Component struct {
	Name     string
	Critical bool
	Check    Check
	Timeout  time.Duration
}

// Checker runs registered checks.
type Checker struct {
	mu         sync.RWMutex
	components map[string]*Component
	startTime  time.Time
}

// NewChecker creates an empty Checker.
func NewChecker() *Checker {
	return &Checker{
		components: make(map[string]*Component),
		startTime:  time.Now(),
	}
}

// Register adds or replaces a component.
func (c *Checker) Register(comp *Component) {
	if comp.Timeout == 0 {
		comp.Timeout = DefaultTimeout
	}
	c.mu.Lock()
	c.components[comp.Name] = comp
	c.mu.Unlock()
}

// RegisterFunc registers a check under name.
func (c *Checker) RegisterFunc(name string, critical bool, check Check) {
	c.Register(&Component{Name: name, Critical: critical, Check: check})
}

// Check runs every component concurrently. A check that panics or outlives
// its timeout is reported unhealthy.
func (c *Checker) Check(ctx context.Context) map[string]CheckResult {
	c.mu.RLock()
	components := make([]*Component, 0, len(c.components))
	for _, comp := range c.components {
		components = append(components, comp)
	}
	c.mu.RUnlock()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]CheckResult, len(components))
	)
	for _, comp := range components {
		wg.Add(1)
		go func(comp *Component) {
			defer wg.Done()
			r := run(ctx, comp)
			mu.Lock()
			results[comp.Name] = r
			mu.Unlock()
		}(comp)
	}
	wg.Wait()
	return results
}

func run(ctx context.Context, comp *Component) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, comp.Timeout)
	defer cancel()

	start := time.Now()
	done := make(chan CheckResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- CheckResult{Status: StatusUnhealthy, Message: fmt.Sprintf("check panicked: %v", r)}
			}
		}()
		done <- comp.Check(ctx)
	}()

	var result CheckResult
	select {
	case result = <-done:
	case <-ctx.Done():
		result = CheckResult{Status: StatusUnhealthy, Message: "check timed out"}
	}
	result.Duration = time.Since(start)
	return result
}

// Overall folds results into one status: any critical failure is
// unhealthy, any other failure or degradation is degraded.
func (c *Checker) Overall(results map[string]CheckResult) Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := StatusHealthy
	for name, r := range results {
		switch r.Status {
		case StatusUnhealthy:
			if comp := c.components[name]; comp != nil && comp.Critical {
				return StatusUnhealthy
			}
			status = StatusDegraded
		case StatusDegraded:
			status = StatusDegraded
		}
	}
	return status
}

// Report is the body of the health endpoint.
type Report struct {
	Status     Status                 `json:"status"`
	UptimeSec  int64                  `json:"uptime_sec"`
	Components map[string]CheckResult `json:"components,omitempty"`
}

// Report runs every check and summarizes them.
func (c *Checker) Report(ctx context.Context) Report {
	results := c.Check(ctx)
	return Report{
		Status:     c.Overall(results),
		UptimeSec:  int64(time.Since(c.startTime).Seconds()),
		Components: results,
	}
}

// Names lists registered components in order.
func (c *Checker) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.components))
	for n := range c.components {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// PingCheck reports unhealthy when ping fails.
func PingCheck(ping func(ctx context.Context) error) Check {
	return func(ctx context.Context) CheckResult {
		if err := ping(ctx); err != nil {
			return CheckResult{Status: StatusUnhealthy, Message: err.Error()}
		}
		return CheckResult{Status: StatusHealthy}
	}
}

// CounterCheck reports degraded while an error counter keeps rising. It
// compares against the value seen by the previous run, so a sink that
// failed once and recovered goes back to healthy.
func CounterCheck(what string, count func() uint64) Check {
	var (
		mu   sync.Mutex
		last uint64
	)
	return func(context.Context) CheckResult {
		n := count()
		mu.Lock()
		grew := n > last
		last = n
		mu.Unlock()
		if grew {
			return CheckResult{Status: StatusDegraded, Message: fmt.Sprintf("%d %s", n, what)}
		}
		return CheckResult{Status: StatusHealthy}
	}
}

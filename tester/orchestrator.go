package tester

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// CallRecord is the outcome of one executed plan step.
type CallRecord struct {
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
	Result    string         `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
	Success   bool           `json:"success"`
}

// EndpointResult aggregates one server endpoint's run.
type EndpointResult struct {
	ServerURL string        `json:"server_url"`
	ToolCount int           `json:"tool_count"`
	Planned   int           `json:"planned"`
	Calls     []CallRecord  `json:"calls"`
	Fatal     string        `json:"fatal,omitempty"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Succeeded reports whether every executed call succeeded and nothing fatal
// interrupted the sequence.
func (r *EndpointResult) Succeeded() bool {
	if r.Fatal != "" {
		return false
	}
	for _, c := range r.Calls {
		if !c.Success {
			return false
		}
	}
	return true
}

// Report is a whole orchestration run.
type Report struct {
	RunID     string           `json:"run_id"`
	Prompt    string           `json:"prompt"`
	StartedAt time.Time        `json:"started_at"`
	Elapsed   time.Duration    `json:"elapsed"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Endpoints []EndpointResult `json:"endpoints"`
}

// Orchestrator tests generated servers against a free-text prompt. Each
// endpoint gets one planned call sequence; endpoints run concurrently but
// calls within one endpoint's sequence run strictly in order.
type Orchestrator struct {
	planner     Planner
	logger      *zap.Logger
	timeout     time.Duration
	concurrency int
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithConcurrency caps how many endpoints are tested in parallel.
// Defaults to 4.
func WithConcurrency(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithCallTimeout bounds each individual call. Defaults to 30s.
func WithCallTimeout(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// NewOrchestrator creates an orchestrator using the given planner.
func NewOrchestrator(planner Planner, logger *zap.Logger, opts ...OrchestratorOption) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		planner:     planner,
		logger:      logger.With(zap.String("component", "tester_orchestrator")),
		timeout:     30 * time.Second,
		concurrency: 4,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run tests every endpoint against the prompt. Each endpoint rides its own
// client (and therefore its own session), so concurrent runs cannot
// interfere. An unreachable endpoint fails its own result without aborting
// the others.
func (o *Orchestrator) Run(ctx context.Context, endpoints []string, prompt string) (*Report, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("at least one endpoint is required")
	}

	report := &Report{
		RunID:     uuid.NewString(),
		Prompt:    prompt,
		StartedAt: time.Now(),
	}

	o.logger.Info("starting test run",
		zap.String("run_id", report.RunID),
		zap.Int("endpoints", len(endpoints)),
	)

	results := make([]EndpointResult, len(endpoints))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)

	for i, serverURL := range endpoints {
		g.Go(func() error {
			results[i] = o.testEndpoint(ctx, serverURL, prompt)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report.Endpoints = results
	report.Elapsed = time.Since(report.StartedAt)
	for _, r := range results {
		if r.Succeeded() {
			report.Passed++
		} else {
			report.Failed++
		}
	}

	o.logger.Info("test run finished",
		zap.String("run_id", report.RunID),
		zap.Int("passed", report.Passed),
		zap.Int("failed", report.Failed),
		zap.Duration("elapsed", report.Elapsed),
	)
	return report, nil
}

// testEndpoint discovers one endpoint's tools, plans a sequence for the
// prompt and executes it in plan order. A transport or protocol failure
// aborts the remainder, while a tool-level isError is recorded and the
// sequence continues.
func (o *Orchestrator) testEndpoint(ctx context.Context, serverURL, prompt string) EndpointResult {
	start := time.Now()
	result := EndpointResult{ServerURL: serverURL}
	defer func() { result.Elapsed = time.Since(start) }()

	client := NewClient(serverURL, o.timeout, o.logger)
	if err := client.Initialize(ctx); err != nil {
		result.Fatal = "initialize failed: " + err.Error()
		return result
	}
	tools, err := client.ListTools(ctx)
	if err != nil {
		result.Fatal = "list tools failed: " + err.Error()
		return result
	}
	result.ToolCount = len(tools)

	plan, err := o.planner.Plan(ctx, prompt, tools)
	if err != nil {
		result.Fatal = "planning failed: " + err.Error()
		return result
	}
	result.Planned = len(plan)
	if len(plan) == 0 {
		o.logger.Warn("empty plan, nothing to execute", zap.String("server", serverURL))
		return result
	}

	for _, step := range plan {
		record := CallRecord{Tool: step.Name, Arguments: step.Arguments}

		callCtx, cancel := context.WithTimeout(ctx, o.timeout)
		callResult, err := client.CallTool(callCtx, step.Name, step.Arguments)
		cancel()

		if err != nil {
			record.Error = err.Error()
			result.Calls = append(result.Calls, record)
			result.Fatal = "transport failed at " + step.Name + ": " + err.Error()
			return result
		}

		record.Success = !callResult.IsError
		if len(callResult.Content) > 0 {
			if callResult.IsError {
				record.Error = callResult.Content[0].Text
			} else {
				record.Result = callResult.Content[0].Text
			}
		}
		result.Calls = append(result.Calls, record)
	}
	return result
}

package capability

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/model"
	"github.com/hupe1980/agentloop/tool"
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsOptions configure Metrics.
type MetricsOptions struct {
	// Namespace prefixes every metric name (default "agentloop").
	Namespace string
	// Clock is used to measure model latency (defaults to time.Now).
	Clock func() time.Time
}

// Metrics records Prometheus metrics for iterations, model calls, tool calls
// and run terminations. Model latency is measured from ProcessPrompt to
// ProcessResponse, so place Metrics last to exclude the other capabilities'
// prompt processing from the measurement.
type Metrics struct {
	Base
	opts MetricsOptions

	runs         *prometheus.CounterVec
	iterations   *prometheus.CounterVec
	toolCalls    *prometheus.CounterVec
	terminations *prometheus.CounterVec
	llmLatency   *prometheus.HistogramVec
	llmTokens    *prometheus.CounterVec

	mu      sync.Mutex
	pending map[string]time.Time // run id -> prompt sent
}

var _ Capability = (*Metrics)(nil)

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer, optFns ...func(o *MetricsOptions)) (*Metrics, error) {
	opts := MetricsOptions{Namespace: "agentloop", Clock: time.Now}

	for _, fn := range optFns {
		fn(&opts)
	}

	m := &Metrics{
		opts:    opts,
		pending: make(map[string]time.Time),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Name:      "runs_total",
			Help:      "Total agent runs started.",
		}, []string{"agent"}),
		iterations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Name:      "iterations_total",
			Help:      "Total loop iterations started.",
		}, []string{"agent"}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Name:      "tool_calls_total",
			Help:      "Total tool invocations by outcome.",
		}, []string{"agent", "tool", "status"}),
		terminations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Name:      "terminations_total",
			Help:      "Total finished runs by stop reason.",
		}, []string{"agent", "reason"}),
		llmLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: opts.Namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Model call latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"agent"}),
		llmTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Name:      "llm_tokens_total",
			Help:      "Tokens reported by the model by kind.",
		}, []string{"agent", "kind"}),
	}

	for _, c := range []prometheus.Collector{m.runs, m.iterations, m.toolCalls, m.terminations, m.llmLatency, m.llmTokens} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Name implements Capability.
func (m *Metrics) Name() string { return "metrics" }

// Init implements Capability.
func (m *Metrics) Init(_ context.Context, run *core.RunState) {
	m.runs.WithLabelValues(run.AgentName).Inc()
}

// StartAgentLoop implements Capability.
func (m *Metrics) StartAgentLoop(_ context.Context, run *core.RunState) bool {
	m.iterations.WithLabelValues(run.AgentName).Inc()
	return true
}

// ProcessPrompt implements Capability.
func (m *Metrics) ProcessPrompt(_ context.Context, run *core.RunState, req model.Request) model.Request {
	m.mu.Lock()
	m.pending[run.RunID] = m.opts.Clock()
	m.mu.Unlock()

	return req
}

// ProcessResponse implements Capability.
func (m *Metrics) ProcessResponse(_ context.Context, run *core.RunState, resp model.Response) model.Response {
	m.mu.Lock()
	start, ok := m.pending[run.RunID]
	delete(m.pending, run.RunID)
	m.mu.Unlock()

	if ok {
		m.llmLatency.WithLabelValues(run.AgentName).Observe(m.opts.Clock().Sub(start).Seconds())
	}

	if resp.Usage != nil {
		m.llmTokens.WithLabelValues(run.AgentName, "prompt").Add(float64(resp.Usage.PromptTokens))
		m.llmTokens.WithLabelValues(run.AgentName, "completion").Add(float64(resp.Usage.CompletionTokens))
	}

	return resp
}

// ProcessResult implements Capability.
func (m *Metrics) ProcessResult(_ context.Context, run *core.RunState, action core.Action, result tool.Result) tool.Result {
	status := "success"
	if !result.ToolExecuted {
		status = "error"
	}

	m.toolCalls.WithLabelValues(run.AgentName, action.ToolName, status).Inc()

	return result
}

// Terminate implements Capability.
func (m *Metrics) Terminate(_ context.Context, run *core.RunState) {
	m.mu.Lock()
	delete(m.pending, run.RunID)
	m.mu.Unlock()

	m.terminations.WithLabelValues(run.AgentName, run.StopReason).Inc()
}

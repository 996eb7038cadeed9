// Package agentloop wires the agent loop from application configuration.
// Most programs load a config.Config, call NewAgent and then Run the returned
// agent. Library users that need full control build agent.New directly.
package agentloop

import (
	"fmt"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/agentloop/agent"
	"github.com/hupe1980/agentloop/capability"
	"github.com/hupe1980/agentloop/config"
	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/logging"
	"github.com/hupe1980/agentloop/model"
	"github.com/hupe1980/agentloop/model/anthropic"
	"github.com/hupe1980/agentloop/model/openai"
	"github.com/hupe1980/agentloop/tool"
	"github.com/hupe1980/agentloop/tool/agenttool"
	"github.com/hupe1980/agentloop/tool/filetool"
	"github.com/hupe1980/agentloop/tool/prompttool"
)

// Options tune NewAgent beyond what the configuration expresses.
type Options struct {
	// Model replaces the configured provider.
	Model model.Model
	// Tools are registered after the configured built-in tools.
	Tools []tool.Tool
	// Capabilities run after the configured built-in capabilities and before
	// Metrics.
	Capabilities  []capability.Capability
	AgentRegistry *core.AgentRegistry
	// Registerer receives the metrics collectors (default
	// prometheus.DefaultRegisterer).
	Registerer prometheus.Registerer
	// TracerProvider is used by the tracing capability (default global).
	TracerProvider trace.TracerProvider
	Logger         *logging.RunLogger
	Clock          func() time.Time
}

// NewModel creates the model client for a provider configuration.
func NewModel(p config.ProviderConfig) (model.Model, error) {
	switch p.Name {
	case config.ProviderOpenAI:
		return openai.NewModel(func(o *openai.Options) {
			o.APIKey = p.APIKey
			o.BaseURL = p.BaseURL
			o.Temperature = p.Temperature

			if p.Model != "" {
				o.Model = p.Model
			}

			if p.MaxTokens > 0 {
				o.MaxCompletionTokens = int64(p.MaxTokens)
			}
		}), nil
	case config.ProviderAnthropic:
		return anthropic.NewModel(func(o *anthropic.Options) {
			o.APIKey = p.APIKey
			o.BaseURL = p.BaseURL
			o.Temperature = p.Temperature

			if p.Model != "" {
				o.Model = anthropicsdk.Model(p.Model)
			}

			if p.MaxTokens > 0 {
				o.MaxTokens = int64(p.MaxTokens)
			}
		}), nil
	case config.ProviderMock:
		return model.NewMockModel(p.Model, config.ProviderMock), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", p.Name)
	}
}

// NewTools returns the built-in tools enabled by cfg.
func NewTools(cfg config.ToolsConfig) []tool.Tool {
	var tools []tool.Tool

	if cfg.Files {
		tools = append(tools, filetool.Tools(func(o *filetool.Options) { o.Root = cfg.Workspace })...)
	}

	if cfg.Delegation {
		tools = append(tools, agenttool.Tools()...)
	}

	if cfg.Prompts {
		tools = append(tools, prompttool.Tools()...)
	}

	if cfg.Terminate {
		tools = append(tools, tool.NewTerminate())
	}

	return tools
}

// NewAgent builds an agent from cfg. cfg is expected to be valid.
func NewAgent(cfg *config.Config, optFns ...func(o *Options)) (*agent.Agent, error) {
	opts := Options{Registerer: prometheus.DefaultRegisterer, Clock: time.Now}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NewLogger(cfg.LoggerConfig())
	}

	llm := opts.Model
	if llm == nil {
		var err error

		llm, err = NewModel(cfg.Provider)
		if err != nil {
			return nil, err
		}
	}

	caps, err := newCapabilities(cfg, opts)
	if err != nil {
		return nil, err
	}

	goals := make([]core.Goal, 0, len(cfg.Agent.Goals))
	for _, g := range cfg.Agent.Goals {
		goals = append(goals, core.Goal{Priority: g.Priority, Name: g.Name, Description: g.Description})
	}

	props := map[string]any{}
	if cfg.Agent.TimeZone != "" {
		props[core.PropTimeZone] = cfg.Agent.TimeZone
	}

	var lang agent.Language = agent.FunctionCallingLanguage{}
	if cfg.Agent.Language == config.LanguageJSONAction {
		lang = agent.JSONActionLanguage{}
	}

	return agent.New(cfg.Agent.Name, llm, func(o *agent.Options) {
		if cfg.Agent.Instructions != "" {
			o.Instructions = cfg.Agent.Instructions
		}

		o.Goals = goals
		o.Language = lang
		o.Tools = append(NewTools(cfg.Tools), opts.Tools...)
		o.Capabilities = caps
		o.AgentRegistry = opts.AgentRegistry
		o.Properties = props
		o.MaxIterations = cfg.Agent.MaxIterations
		o.MaxDuration = cfg.Agent.MaxDuration
		o.Stream = cfg.Agent.Stream
		o.Logger = opts.Logger
		o.Clock = opts.Clock
	})
}

// newCapabilities orders the built-ins: tracing first so its spans cover the
// other hooks, metrics last so model latency excludes prompt processing.
func newCapabilities(cfg *config.Config, opts Options) ([]capability.Capability, error) {
	c := cfg.Capabilities
	log := opts.Logger.WithComponent("capability")

	var caps []capability.Capability

	if c.Tracing {
		caps = append(caps, capability.NewTracing(func(o *capability.TracingOptions) {
			o.TracerProvider = opts.TracerProvider
		}))
	}

	if c.TimeAware {
		caps = append(caps, capability.NewTimeAware(func(o *capability.TimeAwareOptions) {
			if cfg.Agent.TimeZone != "" {
				o.DefaultTimeZone = cfg.Agent.TimeZone
			}

			o.Clock = opts.Clock
			o.Logger = log
		}))
	}

	if c.PlanFirst {
		caps = append(caps, capability.NewPlanFirst(func(o *capability.PlanFirstOptions) {
			o.Logger = log
		}))
	}

	if c.ProgressTracking {
		caps = append(caps, capability.NewProgressTracking(func(o *capability.ProgressTrackingOptions) {
			o.Frequency = c.ProgressFrequency
			o.Logger = log
		}))
	}

	caps = append(caps, opts.Capabilities...)

	if c.Metrics {
		m, err := capability.NewMetrics(opts.Registerer, func(o *capability.MetricsOptions) {
			o.Clock = opts.Clock
		})
		if err != nil {
			return nil, fmt.Errorf("metrics: %w", err)
		}

		caps = append(caps, m)
	}

	return caps, nil
}

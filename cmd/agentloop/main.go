// Command agentloop runs a configured agent from the command line.
//
// Usage:
//
//	agentloop run --config agentloop.yaml "Summarize the files in the workspace"
//	agentloop tools --config agentloop.yaml
//	agentloop validate --config agentloop.yaml
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/hupe1980/agentloop"
	"github.com/hupe1980/agentloop/config"
	"github.com/hupe1980/agentloop/logging"
)

// CLI defines the command-line interface.
type CLI struct {
	Run      RunCmd      `cmd:"" help:"Run the agent on a task."`
	Tools    ToolsCmd    `cmd:"" help:"List the tools the agent can call."`
	Validate ValidateCmd `cmd:"" help:"Validate the configuration."`
	Version  VersionCmd  `cmd:"" help:"Show version information."`

	Config    string `short:"c" help:"Path to config file." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error). Overrides the config."`
	LogFormat string `help:"Log format (json, text). Overrides the config."`
}

// load reads the configuration and applies the global flag overrides.
func (c *CLI) load() (*config.Config, error) {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return nil, err
	}

	if c.LogLevel != "" {
		cfg.Logging.Level = c.LogLevel
	}

	if c.LogFormat != "" {
		cfg.Logging.Format = c.LogFormat
	}

	return cfg, cfg.Validate()
}

// RunCmd runs one task.
type RunCmd struct {
	Task          []string `arg:"" help:"Task for the agent."`
	MaxIterations int      `name:"max-iterations" help:"Override the iteration bound."`
	Trace         bool     `help:"Print OpenTelemetry spans to stderr."`
	Verbose       bool     `short:"v" help:"Print the run's memory after the answer."`
}

// Run implements the run command.
func (c *RunCmd) Run(cli *CLI, out io.Writer) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := cli.load()
	if err != nil {
		return err
	}

	if c.MaxIterations > 0 {
		cfg.Agent.MaxIterations = c.MaxIterations
	}

	var optFns []func(o *agentloop.Options)

	if c.Trace {
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint(), stdouttrace.WithWriter(os.Stderr))
		if err != nil {
			return fmt.Errorf("trace exporter: %w", err)
		}

		tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
		defer func() { _ = tp.Shutdown(context.WithoutCancel(ctx)) }()

		cfg.Capabilities.Tracing = true
		optFns = append(optFns, func(o *agentloop.Options) { o.TracerProvider = tp })
	}

	a, err := agentloop.NewAgent(cfg, optFns...)
	if err != nil {
		return err
	}

	res, err := a.Run(ctx, strings.Join(c.Task, " "))
	if err != nil {
		return err
	}

	fmt.Fprintln(out, res.Output)

	if c.Verbose {
		fmt.Fprintf(out, "\n--- %s after %d iteration(s)\n", res.Reason, res.Iterations)

		for _, e := range res.Memory.Entries() {
			fmt.Fprintf(out, "[%s] %s\n", e.Type, e.Content)
		}
	}

	return nil
}

// ToolsCmd lists the configured tools.
type ToolsCmd struct{}

// Run implements the tools command.
func (c *ToolsCmd) Run(cli *CLI, out io.Writer) error {
	cfg, err := cli.load()
	if err != nil {
		return err
	}

	a, err := agentloop.NewAgent(cfg, func(o *agentloop.Options) {
		o.Logger = logging.NewDiscardLogger()
	})
	if err != nil {
		return err
	}

	for _, md := range a.Tools().All() {
		fmt.Fprintf(out, "%-34s %s\n", md.Name, md.Description)
	}

	return nil
}

// ValidateCmd checks the configuration.
type ValidateCmd struct{}

// Run implements the validate command.
func (c *ValidateCmd) Run(cli *CLI, out io.Writer) error {
	cfg, err := cli.load()
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "configuration is valid (provider %s, agent %s)\n", cfg.Provider.Name, cfg.Agent.Name)

	return nil
}

// VersionCmd shows version information.
type VersionCmd struct{}

// Run implements the version command.
func (c *VersionCmd) Run(out io.Writer) error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}

	fmt.Fprintf(out, "agentloop version %s\n", version)

	return nil
}

func newParser(cli *CLI, out io.Writer) (*kong.Kong, error) {
	return kong.New(cli,
		kong.Name("agentloop"),
		kong.Description("Run capability-driven tool-using agents."),
		kong.UsageOnError(),
		kong.BindTo(out, (*io.Writer)(nil)),
	)
}

func main() {
	cli := CLI{}

	parser, err := newParser(&cli, os.Stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	err = ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}

// Command relay answers a prompt with a language model that can call the
// capabilities of the configured endpoints.
//
// Usage:
//
//	OPENAI_API_KEY=sk-... relay run "what is 2+3 and 10/0?"
//	relay tools --endpoints 'config/**/*.yaml'
//
// Endpoints are read from relay.yaml unless --endpoints or RELAY_ENDPOINTS
// name other files. A .env file in the working directory is loaded first.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/agent"
	"github.com/fwojciec/relay/discovery"
	"github.com/fwojciec/relay/dispatch"
	relayexec "github.com/fwojciec/relay/exec"
	"github.com/fwojciec/relay/gateway"
	relaynats "github.com/fwojciec/relay/nats"
	"github.com/fwojciec/relay/yaml"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()
	s, err := loadSettings()
	if err != nil {
		fmt.Fprintf(os.Stderr, "relay: %v\n", err)
		os.Exit(1)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = newRootCmd(s, os.Stdin, os.Stdout, os.Stderr).ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "relay: %v\n", err)
		os.Exit(1)
	}
}

// app holds what every subcommand shares.
type app struct {
	settings Settings
	stdin    io.Reader
	stdout   io.Writer
	stderr   io.Writer
	log      *logrus.Logger
}

func newRootCmd(s Settings, stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	a := &app{settings: s, stdin: stdin, stdout: stdout, stderr: stderr}
	var logCloser io.Closer
	root := &cobra.Command{
		Use:           "relay",
		Short:         "Answer prompts with a model that calls tools on remote endpoints",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if err := a.settings.Validate(); err != nil {
				return err
			}
			a.log, logCloser = newLogger(a.settings, a.stderr)
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if logCloser != nil {
				_ = logCloser.Close()
			}
		},
	}
	f := root.PersistentFlags()
	f.StringSliceVar(&a.settings.Endpoints, "endpoints", s.Endpoints, "endpoint files or doublestar glob patterns")
	f.StringVar(&a.settings.DiscoveryPolicy, "policy", s.DiscoveryPolicy, "discovery failure policy: all-or-nothing or partial")
	f.DurationVar(&a.settings.DiscoveryTimeout, "discovery-timeout", s.DiscoveryTimeout, "timeout for discovering one endpoint")
	f.StringVar(&a.settings.LogLevel, "log-level", s.LogLevel, "trace, debug, info, warn or error")

	root.AddCommand(a.runCmd(), a.toolsCmd())
	return root
}

func (a *app) runCmd() *cobra.Command {
	var apiKey, systemPrompt string
	var quiet bool
	cmd := &cobra.Command{
		Use:   "run [prompt...]",
		Short: "Run one orchestration for the prompt (read from stdin when omitted)",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt, err := a.prompt(args)
			if err != nil {
				return err
			}
			return a.run(cmd.Context(), prompt, apiKey, systemPrompt, !quiet)
		},
	}
	f := cmd.Flags()
	f.StringVar(&a.settings.Provider, "provider", a.settings.Provider, "model provider: openai, anthropic or gemini (auto-detected from API keys)")
	f.StringVar(&a.settings.Model, "model", a.settings.Model, "model id (provider default when empty)")
	f.StringVar(&apiKey, "api-key", "", "API key (overrides the provider's environment variable)")
	f.StringVar(&systemPrompt, "system-prompt", "", "system prompt (built-in default when empty)")
	f.IntVar(&a.settings.MaxRounds, "max-rounds", a.settings.MaxRounds, "invocation batches dispatched before the answer is taken")
	f.IntVar(&a.settings.Concurrency, "concurrency", a.settings.Concurrency, "invocations run in parallel within a batch")
	f.DurationVar(&a.settings.CallTimeout, "call-timeout", a.settings.CallTimeout, "timeout for one capability call")
	f.DurationVar(&a.settings.ModelTimeout, "model-timeout", a.settings.ModelTimeout, "timeout for one model round-trip attempt")
	f.BoolVarP(&quiet, "quiet", "q", false, "print only the final answer")
	return cmd
}

func (a *app) toolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "Discover and list the capabilities of the configured endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := yaml.Load(a.settings.Endpoints...)
			if err != nil {
				return err
			}
			conn, closeConn := a.connector()
			defer closeConn()

			res, err := a.discoverer(conn).Discover(cmd.Context(), reg.Endpoints())
			if err != nil {
				return err
			}
			t := newTranscript(a.stdout, relay.DefaultTheme(), a.settings.Width, true)
			t.printCapabilities(res.Index())
			for _, f := range res.Failures {
				t.println(t.errStyle.Render(f.Error()))
			}
			return nil
		},
	}
}

// prompt joins args or, when there are none, reads stdin.
func (a *app) prompt(args []string) (string, error) {
	p := strings.Join(args, " ")
	if p == "" && a.stdin != nil {
		b, err := io.ReadAll(a.stdin)
		if err != nil {
			return "", fmt.Errorf("read prompt: %w", err)
		}
		p = string(b)
	}
	p = strings.TrimSpace(p)
	if p == "" {
		return "", fmt.Errorf("a prompt is required: %w", relay.ErrConfiguration)
	}
	return p, nil
}

func (a *app) run(ctx context.Context, prompt, apiKey, systemPrompt string, verbose bool) error {
	s := a.settings
	creds, err := resolveCredentials(s, apiKey)
	if err != nil {
		return err
	}
	provider, err := newProvider(ctx, creds, s.BaseURL)
	if err != nil {
		return err
	}
	reg, err := yaml.Load(s.Endpoints...)
	if err != nil {
		return err
	}
	conn, closeConn := a.connector()
	defer closeConn()

	gwOpts := []gateway.Option{
		gateway.WithModel(s.Model),
		gateway.WithTimeout(s.ModelTimeout),
		gateway.WithLogger(a.log),
	}
	if systemPrompt != "" {
		gwOpts = append(gwOpts, gateway.WithSystemPrompt(systemPrompt))
	}
	t := newTranscript(a.stdout, relay.DefaultTheme(), s.Width, verbose)
	o := agent.New(gateway.New(provider, creds, gwOpts...), a.discoverer(conn), reg,
		agent.WithMaxRounds(s.MaxRounds),
		agent.WithDispatchOptions(
			dispatch.WithTimeout(s.CallTimeout),
			dispatch.WithConcurrency(s.Concurrency),
		),
		agent.WithEventHandler(t.handle),
		agent.WithLogger(a.log),
	)

	res, err := o.Run(ctx, prompt)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("interrupted: %w", err)
		}
		return err
	}
	a.log.WithFields(logrus.Fields{
		"rounds":        res.Rounds,
		"input_tokens":  res.Usage.InputTokens,
		"output_tokens": res.Usage.OutputTokens,
	}).Info("run finished")
	if res.Truncated {
		a.log.WithField("max_rounds", s.MaxRounds).Warn("answer taken while the model still requested invocations")
	}
	return nil
}

// connector routes endpoints to the stdio or NATS transport. The returned
// func releases the shared NATS connections.
func (a *app) connector() (relay.Connector, func()) {
	nc := relaynats.NewConnector(relaynats.WithLogger(a.log))
	mux := relay.ConnectorMux{
		relay.TransportStdio: relayexec.NewConnector(relayexec.WithLogger(a.log)),
		relay.TransportNATS:  nc,
	}
	return mux, func() {
		if err := nc.Close(); err != nil {
			a.log.WithError(err).Warn("closing nats connections")
		}
	}
}

func (a *app) discoverer(conn relay.Connector) *discovery.Client {
	policy, _ := discovery.ParsePolicy(a.settings.DiscoveryPolicy)
	return discovery.NewClient(conn,
		discovery.WithPolicy(policy),
		discovery.WithTimeout(a.settings.DiscoveryTimeout),
		discovery.WithLogger(a.log),
	)
}

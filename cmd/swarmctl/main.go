// Command swarmctl runs a single swarm request from the command line. It
// loads settings from an optional YAML file, reads the request from a JSON
// file or stdin, executes it against the chosen provider and prints the
// rendered result.
//
// Usage:
//
//	swarmctl -provider openai -settings swarm.yaml -request request.json
//
// Provider credentials are taken from the environment (OPENAI_API_KEY,
// ANTHROPIC_API_KEY, GEMINI_API_KEY); a .env file in the working directory
// is honored.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"

	"github.com/hupe1980/agentswarm"
	"github.com/hupe1980/agentswarm/logging"
	"github.com/hupe1980/agentswarm/model"
	"github.com/hupe1980/agentswarm/model/anthropic"
	"github.com/hupe1980/agentswarm/model/google"
	"github.com/hupe1980/agentswarm/model/openai"
	"github.com/hupe1980/agentswarm/settings"
	"github.com/hupe1980/agentswarm/swarm"
)

func main() {
	var (
		settingsPath = flag.String("settings", "", "path to a YAML settings file (defaults used when empty)")
		requestPath  = flag.String("request", "", "path to a JSON request file ('-' or empty reads stdin)")
		provider     = flag.String("provider", "openai", "model provider: openai, anthropic or google")
		format       = flag.String("format", "", "output format override: markdown, json or plain")
		synthesize   = flag.Bool("synthesize", false, "use a model call to synthesize multi-agent outputs")
		verbose      = flag.Bool("verbose", false, "enable debug logging")
	)
	flag.Parse()

	if err := run(*settingsPath, *requestPath, *provider, *format, *synthesize, *verbose); err != nil {
		fmt.Fprintf(os.Stderr, "swarmctl: %v\n", err)
		os.Exit(1)
	}
}

func run(settingsPath, requestPath, provider, format string, synthesize, verbose bool) error {
	// Missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	ctx := context.Background()

	snap, err := loadSettings(settingsPath)
	if err != nil {
		return err
	}
	if format != "" {
		snap.OutputFormat = format
	}

	req, err := loadRequest(requestPath)
	if err != nil {
		return err
	}

	invoker, err := newInvoker(ctx, provider)
	if err != nil {
		return err
	}

	level := logging.LogLevelInfo
	if verbose {
		level = logging.LogLevelDebug
	}
	logger := logging.NewSlogLogger(level, "text", false)

	sw := agentswarm.New(snap, invoker, func(o *agentswarm.Options) {
		o.Logger = logger
		if synthesize {
			o.Aggregator = swarm.Synthesis{Invoker: invoker, Model: snap.DefaultModel}
		}
	})

	result, err := sw.Run(ctx, req)
	if err != nil {
		return err
	}

	fmt.Println(swarm.FormatResult(result, snap.OutputFormat, snap.TrackTokens))
	return nil
}

func loadSettings(path string) (settings.Snapshot, error) {
	if path == "" {
		return settings.Default(), nil
	}
	return settings.FromFile(path)
}

func loadRequest(path string) (swarm.Request, error) {
	var (
		data []byte
		err  error
	)

	if path == "" || path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return swarm.Request{}, fmt.Errorf("read request: %w", err)
	}

	var req swarm.Request
	if err := json.Unmarshal(data, &req); err != nil {
		return swarm.Request{}, fmt.Errorf("parse request: %w", err)
	}

	return req, nil
}

func newInvoker(ctx context.Context, provider string) (model.Invoker, error) {
	switch provider {
	case "openai":
		return openai.New(), nil
	case "anthropic":
		return anthropic.New(), nil
	case "google":
		return google.New(ctx)
	default:
		return nil, fmt.Errorf("unknown provider %q (want openai, anthropic or google)", provider)
	}
}

// Package anthropic provides a model.Invoker wrapper for the Anthropic
// Messages API.
package anthropic

import (
	"context"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/hupe1980/agentswarm/model"
)

// Options configures the Anthropic invoker (temperature, default model id,
// max tokens, API key). Extend via functional options to preserve stability.
type Options struct {
	// DefaultModel is used when the request does not carry a model id.
	DefaultModel anthropic.Model
	Temperature  float64
	MaxTokens    int64
	APIKey       string
}

// Invoker wraps the Anthropic Messages API behind the generic model.Invoker
// interface.
type Invoker struct {
	client *anthropic.Client
	opts   Options
}

// New creates a new Anthropic invoker using the official client.
func New(optFns ...func(o *Options)) *Invoker {
	opts := Options{
		DefaultModel: anthropic.ModelClaude3_5Sonnet20241022,
		Temperature:  0.7,
		MaxTokens:    4096,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := anthropic.NewClient(clientOpts...)

	return &Invoker{
		client: &client,
		opts:   opts,
	}
}

// NewFromClient creates a new Anthropic invoker from an existing client.
func NewFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Invoker {
	opts := Options{
		DefaultModel: anthropic.ModelClaude3_5Sonnet20241022,
		Temperature:  0.7,
		MaxTokens:    4096,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Invoker{
		client: client,
		opts:   opts,
	}
}

// Invoke implements model.Invoker with a single non-streaming message call.
func (i *Invoker) Invoke(ctx context.Context, req model.Request) (model.Response, error) {
	modelID := anthropic.Model(req.Model)
	if modelID == "" {
		modelID = i.opts.DefaultModel
	}

	params := anthropic.MessageNewParams{
		Model:       modelID,
		MaxTokens:   i.opts.MaxTokens,
		Temperature: anthropic.Float(i.opts.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildUserText(req))),
		},
	}

	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}

	start := time.Now()

	resp, err := i.client.Messages.New(ctx, params)
	if err != nil {
		return model.Response{}, &model.InvocationError{Model: string(modelID), Err: err}
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.AsText().Text
		}
	}

	return model.Response{
		Text: text,
		Usage: model.Usage{
			TokensIn:  int(resp.Usage.InputTokens),
			TokensOut: int(resp.Usage.OutputTokens),
			Latency:   time.Since(start),
		},
	}, nil
}

func buildUserText(req model.Request) string {
	if req.Context == "" {
		return req.UserPrompt
	}
	return fmt.Sprintf("Context from previous steps:\n%s\n\n%s", req.Context, req.UserPrompt)
}

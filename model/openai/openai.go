// Package openai provides an implementation of model.Invoker using the
// OpenAI Chat Completions API. It adapts AgentSwarm's normalized
// Request/Response structures into the SDK's message format and back.
package openai

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/agentswarm/model"
	"github.com/openai/openai-go"
)

// Options configure the OpenAI invoker. Fields mirror a subset of Chat
// Completion parameters intentionally kept minimal; extend via functional
// options without breaking callers.
type Options struct {
	// DefaultModel is used when the request does not carry a model id.
	DefaultModel        string
	Temperature         float64
	MaxCompletionTokens int64
}

// Invoker wraps the OpenAI Chat Completions API behind the generic
// model.Invoker interface. The model id is taken from each request so a
// single client serves every tier.
type Invoker struct {
	client *openai.Client
	opts   Options
}

// New creates a new OpenAI invoker using the official client.
func New(optFns ...func(o *Options)) *Invoker {
	client := openai.NewClient()
	return NewFromClient(&client, optFns...)
}

// NewFromClient creates a new OpenAI invoker from an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Invoker {
	opts := Options{
		DefaultModel:        openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Invoker{client: client, opts: opts}
}

// Invoke implements model.Invoker with a single non-streaming completion.
func (i *Invoker) Invoke(ctx context.Context, req model.Request) (model.Response, error) {
	modelID := req.Model
	if modelID == "" {
		modelID = i.opts.DefaultModel
	}

	messages := []openai.ChatCompletionMessageParamUnion{}
	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	messages = append(messages, openai.UserMessage(buildUserText(req)))

	start := time.Now()

	resp, err := i.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages:            messages,
		Model:               modelID,
		Temperature:         openai.Float(i.opts.Temperature),
		MaxCompletionTokens: openai.Int(i.opts.MaxCompletionTokens),
	})
	if err != nil {
		return model.Response{}, &model.InvocationError{Model: modelID, Err: err}
	}

	if len(resp.Choices) == 0 {
		return model.Response{}, &model.InvocationError{Model: modelID, Err: fmt.Errorf("empty completion")}
	}

	return model.Response{
		Text: resp.Choices[0].Message.Content,
		Usage: model.Usage{
			TokensIn:  int(resp.Usage.PromptTokens),
			TokensOut: int(resp.Usage.CompletionTokens),
			Latency:   time.Since(start),
		},
	}, nil
}

// buildUserText folds accumulated topology context into the user turn; the
// context block precedes the prompt so the model reads prior stage output
// before the instruction.
func buildUserText(req model.Request) string {
	if req.Context == "" {
		return req.UserPrompt
	}
	return fmt.Sprintf("Context from previous steps:\n%s\n\n%s", req.Context, req.UserPrompt)
}

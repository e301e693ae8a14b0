// Package google provides a model.Invoker wrapper for the Gemini API.
package google

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/agentswarm/model"
	"google.golang.org/genai"
)

// Options configures the Gemini invoker.
type Options struct {
	// DefaultModel is used when the request does not carry a model id.
	DefaultModel string
	APIKey       string
}

// Invoker wraps the Gemini GenerateContent API behind the generic
// model.Invoker interface.
type Invoker struct {
	client *genai.Client
	opts   Options
}

// New creates a new Gemini invoker. The client performs network setup, so
// construction takes a context and can fail.
func New(ctx context.Context, optFns ...func(o *Options)) (*Invoker, error) {
	opts := Options{
		DefaultModel: "gemini-2.0-flash",
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("google: create client: %w", err)
	}

	return &Invoker{client: client, opts: opts}, nil
}

// Invoke implements model.Invoker with a single GenerateContent call.
func (i *Invoker) Invoke(ctx context.Context, req model.Request) (model.Response, error) {
	modelID := req.Model
	if modelID == "" {
		modelID = i.opts.DefaultModel
	}

	contents := []*genai.Content{
		{Role: "user", Parts: []*genai.Part{{Text: buildUserText(req)}}},
	}

	var config *genai.GenerateContentConfig
	if req.SystemPrompt != "" {
		config = &genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: req.SystemPrompt}}},
		}
	}

	start := time.Now()

	result, err := i.client.Models.GenerateContent(ctx, modelID, contents, config)
	if err != nil {
		return model.Response{}, &model.InvocationError{Model: modelID, Err: err}
	}

	usage := model.Usage{Latency: time.Since(start)}
	if result.UsageMetadata != nil {
		usage.TokensIn = int(result.UsageMetadata.PromptTokenCount)
		usage.TokensOut = int(result.UsageMetadata.CandidatesTokenCount)
	}

	return model.Response{Text: result.Text(), Usage: usage}, nil
}

func buildUserText(req model.Request) string {
	if req.Context == "" {
		return req.UserPrompt
	}
	return fmt.Sprintf("Context from previous steps:\n%s\n\n%s", req.Context, req.UserPrompt)
}

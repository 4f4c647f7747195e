// Package anyllm routes gateway profiles to the backends of
// github.com/mozilla-ai/any-llm-go. Every profile kind other than plain
// "openai" goes through here; Mistral is the one the café runs on.
package anyllm

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/deepseek"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/llamacpp"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/MrWong99/orderbot/pkg/provider/llm"
)

type constructor func(...anyllmlib.Option) (anyllmlib.Provider, error)

// wrap erases the concrete return type of a backend constructor.
func wrap[P anyllmlib.Provider](fn func(...anyllmlib.Option) (P, error)) constructor {
	return func(opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
		return fn(opts...)
	}
}

var backends = map[string]constructor{
	"anthropic": wrap(anthropic.New),
	"deepseek":  wrap(deepseek.New),
	"gemini":    wrap(gemini.New),
	"groq":      wrap(groq.New),
	"llamacpp":  wrap(llamacpp.New),
	"mistral":   wrap(mistral.New),
	"ollama":    wrap(ollama.New),
	"openai":    wrap(anyllmoai.New),
}

// Supported lists the backend kinds accepted by New, sorted.
var Supported = func() []string {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}()

// Client answers completion requests through one any-llm-go backend.
type Client struct {
	backend anyllmlib.Provider
	kind    string
	model   string
}

// New builds a Client for kind (case-insensitive, see Supported) and model.
// Without anyllmlib.WithAPIKey the backend reads its usual environment
// variable, e.g. MISTRAL_API_KEY.
func New(kind, model string, opts ...anyllmlib.Option) (*Client, error) {
	kind = strings.ToLower(strings.TrimSpace(kind))
	if kind == "" {
		return nil, errors.New("anyllm: backend kind is required")
	}
	if model == "" {
		return nil, errors.New("anyllm: model is required")
	}
	ctor, ok := backends[kind]
	if !ok {
		return nil, fmt.Errorf("anyllm: unknown backend %q (known: %s)", kind, strings.Join(Supported, ", "))
	}
	backend, err := ctor(opts...)
	if err != nil {
		return nil, fmt.Errorf("anyllm: init %s: %w", kind, err)
	}
	return &Client{backend: backend, kind: kind, model: model}, nil
}

// Complete implements llm.Provider. JSONMode is not forwarded; the prompt
// itself pins the reply schema.
func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("anyllm: %s: empty conversation", c.kind)
	}
	resp, err := c.backend.Completion(ctx, c.params(req))
	if err != nil {
		return nil, fmt.Errorf("anyllm: %s: %w", c.kind, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("anyllm: %s: reply has no choices", c.kind)
	}

	out := &llm.CompletionResponse{
		Content: resp.Choices[0].Message.ContentString(),
		Model:   c.model,
	}
	if u := resp.Usage; u != nil {
		out.Usage = llm.Usage{
			PromptTokens:     u.PromptTokens,
			CompletionTokens: u.CompletionTokens,
			TotalTokens:      u.TotalTokens,
		}
	}
	return out, nil
}

func (c *Client) params(req llm.CompletionRequest) anyllmlib.CompletionParams {
	p := anyllmlib.CompletionParams{
		Model:    c.model,
		Messages: make([]anyllmlib.Message, len(req.Messages)),
	}
	for i, m := range req.Messages {
		p.Messages[i] = anyllmlib.Message{Role: m.Role, Content: m.Content}
	}
	if req.Temperature != 0 {
		p.Temperature = ptr(req.Temperature)
	}
	if req.MaxTokens > 0 {
		p.MaxTokens = ptr(req.MaxTokens)
	}
	return p
}

func ptr[T any](v T) *T { return &v }

var _ llm.Provider = (*Client)(nil)

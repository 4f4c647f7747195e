package config

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/MrWong99/orderbot/pkg/provider/llm"
	"github.com/MrWong99/orderbot/pkg/provider/stt"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// LLMClient is one concrete client the gateway asks for: a provider name and
// one (key, model, endpoint) combination from a profile's pools.
type LLMClient struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string

	// Timeout is the per-request HTTP timeout. Zero keeps the client default.
	Timeout time.Duration
}

// LLMFactory creates a chat-completion client.
type LLMFactory func(LLMClient) (llm.Provider, error)

// TranscriberFactory creates a transcription backend.
type TranscriberFactory func(ProviderEntry) (stt.Transcriber, error)

// Registry maps provider names to constructors. Safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	llm         map[string]LLMFactory
	transcriber map[string]TranscriberFactory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		llm:         make(map[string]LLMFactory),
		transcriber: make(map[string]TranscriberFactory),
	}
}

// RegisterLLM registers an LLM factory under name. A later registration
// with the same name replaces the earlier one.
func (r *Registry) RegisterLLM(name string, factory LLMFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llm[name] = factory
}

// RegisterTranscriber registers a transcription factory under name.
func (r *Registry) RegisterTranscriber(name string, factory TranscriberFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transcriber[name] = factory
}

// CreateLLM instantiates the client registered under c.Provider.
func (r *Registry) CreateLLM(c LLMClient) (llm.Provider, error) {
	r.mu.RLock()
	factory, ok := r.llm[c.Provider]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: llm/%q", ErrProviderNotRegistered, c.Provider)
	}
	return factory(c)
}

// CreateTranscriber instantiates the backend registered under entry.Name.
func (r *Registry) CreateTranscriber(entry ProviderEntry) (stt.Transcriber, error) {
	r.mu.RLock()
	factory, ok := r.transcriber[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: transcription/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// LLMNames returns the registered LLM provider names, sorted.
func (r *Registry) LLMNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.llm))
	for n := range r.llm {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// OptString returns opts[key] when it is a string, or "".
func OptString(opts map[string]any, key string) string {
	s, _ := opts[key].(string)
	return s
}

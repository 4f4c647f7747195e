package config_test

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/MrWong99/orderbot/internal/config"
	"github.com/MrWong99/orderbot/pkg/provider/llm"
	llmmock "github.com/MrWong99/orderbot/pkg/provider/llm/mock"
	"github.com/MrWong99/orderbot/pkg/provider/stt"
	sttmock "github.com/MrWong99/orderbot/pkg/provider/stt/mock"
)

func TestRegistry_CreateLLM(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	var got config.LLMClient
	reg.RegisterLLM("openai", func(c config.LLMClient) (llm.Provider, error) {
		got = c
		return &llmmock.Provider{}, nil
	})

	want := config.LLMClient{Provider: "openai", APIKey: "k", Model: "m", BaseURL: "https://example.test/v1"}
	p, err := reg.CreateLLM(want)
	if err != nil {
		t.Fatalf("CreateLLM: %v", err)
	}
	if p == nil {
		t.Fatal("CreateLLM returned nil provider")
	}
	if got != want {
		t.Errorf("factory got %+v, want %+v", got, want)
	}

	_, err = reg.CreateLLM(config.LLMClient{Provider: "nope"})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("CreateLLM(unknown) error = %v, want ErrProviderNotRegistered", err)
	}
}

func TestRegistry_CreateTranscriber(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	reg.RegisterTranscriber("whisper", func(e config.ProviderEntry) (stt.Transcriber, error) {
		return &sttmock.Transcriber{Text: e.Language}, nil
	})

	tr, err := reg.CreateTranscriber(config.ProviderEntry{Name: "whisper", Language: "ru"})
	if err != nil {
		t.Fatalf("CreateTranscriber: %v", err)
	}
	if text, _ := tr.Transcribe(context.Background(), stt.Audio{}); text != "ru" {
		t.Errorf("factory did not receive the entry, got %q", text)
	}

	_, err = reg.CreateTranscriber(config.ProviderEntry{Name: "deepgram"})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("CreateTranscriber(unknown) error = %v, want ErrProviderNotRegistered", err)
	}
}

func TestRegistry_OverwriteAndNames(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	first := errors.New("first")
	reg.RegisterLLM("mistral", func(config.LLMClient) (llm.Provider, error) { return nil, first })
	reg.RegisterLLM("mistral", func(config.LLMClient) (llm.Provider, error) { return &llmmock.Provider{}, nil })
	reg.RegisterLLM("groq", func(config.LLMClient) (llm.Provider, error) { return &llmmock.Provider{}, nil })

	if _, err := reg.CreateLLM(config.LLMClient{Provider: "mistral"}); err != nil {
		t.Errorf("later registration did not replace the earlier one: %v", err)
	}
	if names := reg.LLMNames(); !slices.Equal(names, []string{"groq", "mistral"}) {
		t.Errorf("LLMNames() = %v", names)
	}
}

func TestOptString(t *testing.T) {
	t.Parallel()

	opts := map[string]any{"prompt": "кофе", "n": 3}
	if got := config.OptString(opts, "prompt"); got != "кофе" {
		t.Errorf("OptString(prompt) = %q", got)
	}
	if got := config.OptString(opts, "n"); got != "" {
		t.Errorf("OptString(n) = %q, want empty", got)
	}
	if got := config.OptString(nil, "x"); got != "" {
		t.Errorf("OptString(nil) = %q, want empty", got)
	}
}

package app

import (
	"log/slog"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/orderbot/internal/config"
	"github.com/MrWong99/orderbot/pkg/provider/llm"
	"github.com/MrWong99/orderbot/pkg/provider/llm/anyllm"
	oaillm "github.com/MrWong99/orderbot/pkg/provider/llm/openai"
	"github.com/MrWong99/orderbot/pkg/provider/stt"
	oaistt "github.com/MrWong99/orderbot/pkg/provider/stt/openai"
	"github.com/MrWong99/orderbot/pkg/provider/stt/whisper"
)

// RegisterBuiltinProviders wires the provider factories that ship with the
// bot into reg.
//
// "openai" talks to any OpenAI-compatible endpoint through openai-go, which
// covers hosted OpenAI as well as Groq, OpenRouter and local servers. Every
// other LLM kind goes through any-llm-go.
func RegisterBuiltinProviders(reg *config.Registry) {
	// ── LLM ───────────────────────────────────────────────────────────────────
	reg.RegisterLLM("openai", func(c config.LLMClient) (llm.Provider, error) {
		var opts []oaillm.Option
		if c.BaseURL != "" {
			opts = append(opts, oaillm.WithBaseURL(c.BaseURL))
		}
		if c.Timeout > 0 {
			opts = append(opts, oaillm.WithTimeout(c.Timeout))
		}
		p, err := oaillm.New(c.APIKey, c.Model, opts...)
		if err != nil {
			return nil, err
		}
		return p, nil
	})

	for _, name := range anyllm.Supported {
		if name == "openai" {
			continue
		}
		reg.RegisterLLM(name, func(c config.LLMClient) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if c.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(c.APIKey))
			}
			if c.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(c.BaseURL))
			}
			p, err := anyllm.New(name, c.Model, opts...)
			if err != nil {
				return nil, err
			}
			return p, nil
		})
	}

	// ── Transcription ─────────────────────────────────────────────────────────
	reg.RegisterTranscriber("whisper", func(e config.ProviderEntry) (stt.Transcriber, error) {
		var opts []whisper.Option
		if e.Model != "" {
			opts = append(opts, whisper.WithModel(e.Model))
		}
		if e.Language != "" {
			opts = append(opts, whisper.WithLanguage(e.Language))
		}
		p, err := whisper.New(e.BaseURL, opts...)
		if err != nil {
			return nil, err
		}
		return p, nil
	})

	reg.RegisterTranscriber("openai", func(e config.ProviderEntry) (stt.Transcriber, error) {
		var opts []oaistt.Option
		if e.BaseURL != "" {
			opts = append(opts, oaistt.WithBaseURL(e.BaseURL))
		}
		if e.Model != "" {
			opts = append(opts, oaistt.WithModel(e.Model))
		}
		lang := e.Language
		if lang == "" {
			lang = config.OptString(e.Options, "language")
		}
		if lang != "" {
			opts = append(opts, oaistt.WithLanguage(lang))
		}
		p, err := oaistt.New(e.APIKey, opts...)
		if err != nil {
			return nil, err
		}
		return p, nil
	})

	slog.Debug("registered providers", "llm", reg.LLMNames())
}


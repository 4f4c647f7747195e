package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// KnownLLMProviders and KnownTranscribers list the built-in provider names.
// [Validate] warns about other names; they may be registered by the caller.
var (
	KnownLLMProviders = []string{"openai", "mistral", "anthropic", "gemini", "deepseek", "groq", "ollama", "llamacpp"}
	KnownTranscribers = []string{"whisper", "openai"}
)

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader expands environment references, decodes, applies defaults
// and validates. Unknown keys are rejected.
func LoadFromReader(r io.Reader) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	return decode(raw)
}

func decode(raw []byte) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(ExpandEnv(raw)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ExpandEnv replaces ${VAR} references with environment values. Unset
// variables expand to "". Bare $VAR is left alone so that values containing
// "$" survive.
func ExpandEnv(raw []byte) []byte {
	return envRef.ReplaceAllFunc(raw, func(m []byte) []byte {
		return []byte(os.Getenv(string(m[2 : len(m)-1])))
	})
}

// ApplyDefaults fills zero values with their defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}
	if cfg.LLM.Primary == "" && len(cfg.LLM.Profiles) > 0 {
		cfg.LLM.Primary = cfg.LLM.Profiles[0].Name
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 30 * time.Second
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 512
	}
	if cfg.Transcription.Timeout == 0 {
		cfg.Transcription.Timeout = 60 * time.Second
	}
	if cfg.Orders.PersistAttempts == 0 {
		cfg.Orders.PersistAttempts = 3
	}
	if cfg.Orders.PersistRetryDelay == 0 {
		cfg.Orders.PersistRetryDelay = 500 * time.Millisecond
	}
	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = "orderbot"
	}
}

// Location resolves Orders.Timezone. An empty zone is time.Local.
func (c *Config) Location() (*time.Location, error) {
	if c.Orders.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Orders.Timezone)
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing every failure found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	if cfg.Menu.Path == "" {
		errs = append(errs, errors.New("menu.path is required"))
	}

	if len(cfg.LLM.Profiles) == 0 {
		errs = append(errs, errors.New("llm.profiles: at least one profile is required"))
	}
	seen := make(map[string]int, len(cfg.LLM.Profiles))
	for i, p := range cfg.LLM.Profiles {
		prefix := fmt.Sprintf("llm.profiles[%d]", i)
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		} else if prev, ok := seen[p.Name]; ok {
			errs = append(errs, fmt.Errorf("%s.name %q is a duplicate of llm.profiles[%d]", prefix, p.Name, prev))
		} else {
			seen[p.Name] = i
		}
		if p.Provider == "" {
			errs = append(errs, fmt.Errorf("%s.provider is required", prefix))
		}
		if len(p.Models) == 0 {
			errs = append(errs, fmt.Errorf("%s.models: at least one model is required", prefix))
		}
		warnUnknown("llm", p.Provider, KnownLLMProviders)
	}
	if cfg.LLM.Primary != "" && len(cfg.LLM.Profiles) > 0 {
		if _, ok := seen[cfg.LLM.Primary]; !ok {
			errs = append(errs, fmt.Errorf("llm.primary %q does not name a profile", cfg.LLM.Primary))
		}
	}
	if cfg.LLM.Temperature < 0 || cfg.LLM.Temperature > 2 {
		errs = append(errs, fmt.Errorf("llm.temperature %.2f is out of range [0, 2]", cfg.LLM.Temperature))
	}
	if cfg.LLM.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("llm.max_tokens %d must not be negative", cfg.LLM.MaxTokens))
	}

	for i, p := range cfg.Transcription.Providers {
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("transcription.providers[%d].name is required", i))
		}
		warnUnknown("transcription", p.Name, KnownTranscribers)
	}

	if cfg.Orders.Timezone != "" {
		if _, err := time.LoadLocation(cfg.Orders.Timezone); err != nil {
			errs = append(errs, fmt.Errorf("orders.timezone %q: %w", cfg.Orders.Timezone, err))
		}
	}
	if cfg.Orders.PendingTTL < 0 || cfg.Orders.NoticeTTL < 0 {
		errs = append(errs, errors.New("orders: ttl values must not be negative"))
	}
	if cfg.Orders.PersistAttempts < 0 {
		errs = append(errs, fmt.Errorf("orders.persist_attempts %d must not be negative", cfg.Orders.PersistAttempts))
	}

	if cfg.Storage.PostgresDSN == "" {
		slog.Warn("storage.postgres_dsn is empty; orders are kept in memory and lost on restart")
	}

	return errors.Join(errs...)
}

func warnUnknown(kind, name string, known []string) {
	if name == "" || slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or a custom registration",
		"kind", kind,
		"name", name,
		"known", known,
	)
}

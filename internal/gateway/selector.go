package gateway

import "sync"

// Profile describes one model backend with the credential, model and
// endpoint pools it may rotate through.
type Profile struct {
	// Name identifies the profile in logs, metrics and config.
	Name string

	// Kind is the provider kind passed to the [Factory], e.g. "openai" or
	// "mistral".
	Kind string

	Keys   []string
	Models []string

	// BaseURLs may be empty, in which case the provider default is used.
	BaseURLs []string
}

// Combo is one concrete (key, model, endpoint) selection.
type Combo struct {
	Key     string
	Model   string
	BaseURL string
}

// Selector rotates round-robin through a profile's keys, models and base URLs.
// All three cursors advance together on every call to Next, each wrapping at
// its own length. Safe for concurrent use.
type Selector struct {
	mu      sync.Mutex
	keys    []string
	models  []string
	urls    []string
	k, m, u int
}

// NewSelector creates a Selector over copies of p's pools.
func NewSelector(p Profile) *Selector {
	return &Selector{
		keys:   append([]string(nil), p.Keys...),
		models: append([]string(nil), p.Models...),
		urls:   append([]string(nil), p.BaseURLs...),
	}
}

// Next returns the current combination and advances every cursor.
func (s *Selector) Next() Combo {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := Combo{
		Key:     pick(s.keys, &s.k),
		Model:   pick(s.models, &s.m),
		BaseURL: pick(s.urls, &s.u),
	}
	return c
}

func pick(pool []string, cursor *int) string {
	if len(pool) == 0 {
		return ""
	}
	v := pool[*cursor]
	*cursor = (*cursor + 1) % len(pool)
	return v
}

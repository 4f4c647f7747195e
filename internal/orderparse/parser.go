// Package orderparse turns a free-form café order utterance into a priced,
// menu-validated order.
//
// The pipeline is strictly sequential per utterance:
//
//	BuildPrompt → model call → ExtractJSON → decode + homoglyph repair → Normalize
//
// [Parser.Interpret] runs all of it and reports a tagged [Outcome] that keeps
// user-fixable rejections apart from infrastructure faults.
package orderparse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MrWong99/orderbot/internal/menu"
	"github.com/MrWong99/orderbot/internal/observe"
	"github.com/MrWong99/orderbot/internal/order"
	"github.com/MrWong99/orderbot/pkg/provider/llm"
)

// Completer sends chat messages to a language model and returns the raw reply
// text. The model gateway implements it.
type Completer interface {
	Complete(ctx context.Context, messages []llm.Message) (string, error)
}

// Option configures a Parser.
type Option func(*Parser)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Parser) { p.log = l }
}

// WithMetrics sets the metrics sink. Default: observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Parser) { p.metrics = m }
}

// Parser interprets utterances against a fixed menu. It is safe for
// concurrent use.
type Parser struct {
	model   Completer
	menu    *menu.Catalog
	log     *slog.Logger
	metrics *observe.Metrics
}

// New creates a Parser.
func New(model Completer, cat *menu.Catalog, opts ...Option) *Parser {
	p := &Parser{model: model, menu: cat}
	for _, o := range opts {
		o(p)
	}
	if p.log == nil {
		p.log = slog.Default()
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}
	return p
}

// Menu returns the catalog the parser validates against.
func (p *Parser) Menu() *menu.Catalog { return p.menu }

// Extract runs the pipeline up to and including decoding: the model's answer
// as written, before menu validation.
func (p *Parser) Extract(ctx context.Context, utterance string) (RawOrder, error) {
	reply, err := p.model.Complete(ctx, BuildPrompt(utterance, p.menu))
	if err != nil {
		return RawOrder{}, fmt.Errorf("orderparse: model: %w", err)
	}

	jsonText, err := ExtractJSON(reply)
	if err != nil {
		p.log.Warn("model reply has no usable JSON", "error", err, "reply", reply)
		return RawOrder{}, err
	}
	raw, err := DecodeReply(jsonText)
	if err != nil {
		p.log.Warn("model reply JSON does not parse", "error", err, "json", jsonText)
		return RawOrder{}, err
	}
	p.log.Debug("model reply decoded", "json", compactJSON(jsonText), "items", len(raw.Items))
	return raw, nil
}

// Parse runs the full pipeline and returns the order or the first error.
func (p *Parser) Parse(ctx context.Context, utterance string) (*order.Order, error) {
	raw, err := p.Extract(ctx, utterance)
	if err != nil {
		return nil, err
	}
	return Normalize(raw, p.menu, p.log)
}

// Interpret runs the full pipeline and classifies the result.
func (p *Parser) Interpret(ctx context.Context, utterance string) Outcome {
	start := time.Now()
	out := p.interpret(ctx, utterance)

	dropped := 0
	if out.Order != nil {
		dropped = len(out.Order.Dropped)
	}
	var noItems *NoRecognizedItemsError
	if errors.As(out.Err, &noItems) {
		dropped = len(noItems.Dropped)
	}
	p.metrics.RecordParse(ctx, out.Kind.String(), out.Reason, time.Since(start).Seconds(), dropped)

	switch out.Kind {
	case KindOK:
		p.log.Info("utterance interpreted",
			"lines", len(out.Order.Lines),
			"total", out.Order.Total(),
			"payment", out.Order.Payment,
			"dropped", len(out.Order.Dropped))
	case KindRejected:
		p.log.Info("utterance rejected", "reason", out.Reason, "error", out.Err)
	case KindFault:
		p.log.Error("utterance interpretation failed", "error", out.Err)
	}
	return out
}

func (p *Parser) interpret(ctx context.Context, utterance string) Outcome {
	if strings.TrimSpace(utterance) == "" {
		return Rejected(ReasonEmpty, nil)
	}

	o, err := p.Parse(ctx, utterance)
	if err == nil {
		return Ok(o)
	}
	var noItems *NoRecognizedItemsError
	if errors.As(err, &noItems) {
		return Rejected(ReasonNoItems, err)
	}
	var tooLarge *QuantityTooLargeError
	if errors.As(err, &tooLarge) {
		return Rejected(ReasonTooLarge, err)
	}
	return Fault(err)
}

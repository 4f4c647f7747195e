// Package app wires all order bot subsystems into a running application.
//
// The App struct owns the full lifecycle: New builds every subsystem from the
// config, Run serves until the context is cancelled, and Shutdown tears
// everything down in reverse order.
//
// For testing, inject doubles via functional options (WithStore, WithModel,
// WithTransport, ...). When an option is not provided, New creates the real
// implementation from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/orderbot/internal/config"
	"github.com/MrWong99/orderbot/internal/discord"
	"github.com/MrWong99/orderbot/internal/discord/commands"
	"github.com/MrWong99/orderbot/internal/events"
	"github.com/MrWong99/orderbot/internal/gateway"
	"github.com/MrWong99/orderbot/internal/health"
	"github.com/MrWong99/orderbot/internal/menu"
	"github.com/MrWong99/orderbot/internal/observe"
	"github.com/MrWong99/orderbot/internal/ordering"
	"github.com/MrWong99/orderbot/internal/orderparse"
	"github.com/MrWong99/orderbot/internal/report"
	"github.com/MrWong99/orderbot/internal/resilience"
	"github.com/MrWong99/orderbot/internal/session"
	"github.com/MrWong99/orderbot/internal/store"
	"github.com/MrWong99/orderbot/pkg/provider/llm"
	"github.com/MrWong99/orderbot/pkg/provider/stt"
)

// Transport is the chat connection the bot serves. [*discord.Bot] is the
// production implementation.
type Transport interface {
	Messenger() discord.Messenger
	Router() *discord.CommandRouter
	Permissions() *discord.PermissionChecker
	Connected() bool
	Run(ctx context.Context) error
	Close() error
}

var _ Transport = (*discord.Bot)(nil)

// App owns all subsystem lifetimes.
type App struct {
	cfg     *config.Config
	reg     *config.Registry
	log     *slog.Logger
	level   *slog.LevelVar
	metrics *observe.Metrics

	// Subsystems, initialised in New and torn down in Shutdown.
	catalog     *menu.Catalog
	store       store.Store
	model       orderparse.Completer
	transcriber stt.Transcriber
	sessions    *session.Manager
	expirer     *session.Expirer
	service     *ordering.Service
	transport   Transport
	events      events.Publisher
	eventsUp    func() bool
	watcher     *config.Watcher
	handler     http.Handler
	server      *http.Server

	// closers are called in reverse order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.log = l }
}

// WithLevel hands New the level variable behind the logger so that config
// reloads can change verbosity.
func WithLevel(lv *slog.LevelVar) Option {
	return func(a *App) { a.level = lv }
}

// WithMetrics sets the metric instruments. Default: observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithMenu injects a catalog instead of loading menu.path.
func WithMenu(c *menu.Catalog) Option {
	return func(a *App) { a.catalog = c }
}

// WithStore injects an order store instead of creating one from config.
func WithStore(s store.Store) Option {
	return func(a *App) { a.store = s }
}

// WithModel injects the completion backend instead of building the gateway.
func WithModel(c orderparse.Completer) Option {
	return func(a *App) { a.model = c }
}

// WithTranscriber injects a transcriber instead of creating the configured
// backends.
func WithTranscriber(t stt.Transcriber) Option {
	return func(a *App) { a.transcriber = t }
}

// WithTransport injects the chat transport instead of connecting to Discord.
func WithTransport(t Transport) Option {
	return func(a *App) { a.transport = t }
}

// WithEvents injects the publisher for confirmed-order events instead of
// connecting to events.nats_url.
func WithEvents(p events.Publisher) Option {
	return func(a *App) { a.events = p }
}

// WithWatcher makes Run poll the config file with w. The watcher's callback
// should call [App.Reload].
func WithWatcher(w *config.Watcher) Option {
	return func(a *App) { a.watcher = w }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. reg supplies the
// LLM and transcription factories named in cfg.
func New(ctx context.Context, cfg *config.Config, reg *config.Registry, opts ...Option) (*App, error) {
	a := &App{cfg: cfg, reg: reg}
	for _, o := range opts {
		o(a)
	}
	if a.log == nil {
		a.log = slog.Default()
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Menu ──────────────────────────────────────────────────────────
	if a.catalog == nil {
		c, err := menu.Load(cfg.Menu.Path)
		if err != nil {
			return nil, fmt.Errorf("app: load menu: %w", err)
		}
		a.catalog = c
	}
	a.log.Info("menu loaded", "items", len(a.catalog.Items()), "addons", len(a.catalog.Addons()))

	// ── 2. Order store ───────────────────────────────────────────────────
	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init store: %w", err)
	}

	// ── 3. Model gateway ─────────────────────────────────────────────────
	if err := a.initModel(); err != nil {
		a.shutdownPartial()
		return nil, fmt.Errorf("app: init model gateway: %w", err)
	}

	// ── 4. Transcription ─────────────────────────────────────────────────
	if err := a.initTranscription(); err != nil {
		a.shutdownPartial()
		return nil, fmt.Errorf("app: init transcription: %w", err)
	}

	// ── 5. Pending orders ────────────────────────────────────────────────
	a.initSessions()

	// ── 6. Chat transport ────────────────────────────────────────────────
	if err := a.initTransport(ctx); err != nil {
		a.shutdownPartial()
		return nil, fmt.Errorf("app: init discord: %w", err)
	}

	// ── 7. Order events ──────────────────────────────────────────────────
	if err := a.initEvents(); err != nil {
		a.shutdownPartial()
		return nil, fmt.Errorf("app: init events: %w", err)
	}

	// ── 8. Ordering service + commands ───────────────────────────────────
	if err := a.initService(); err != nil {
		a.shutdownPartial()
		return nil, fmt.Errorf("app: init ordering: %w", err)
	}

	// ── 9. Health and metrics endpoint ───────────────────────────────────
	a.initHTTP()

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initStore opens Postgres when a DSN is configured and falls back to the
// in-memory store otherwise.
func (a *App) initStore(ctx context.Context) error {
	if a.store == nil {
		sc := a.cfg.Storage
		if sc.PostgresDSN == "" {
			a.store = store.NewMemStore()
			a.log.Warn("using in-memory order store")
		} else {
			pg, err := store.NewPostgres(ctx, store.PostgresConfig{
				DSN:         sc.PostgresDSN,
				MaxConns:    sc.MaxConns,
				LockTimeout: sc.LockTimeout,
			})
			if err != nil {
				return err
			}
			a.store = pg
			a.log.Info("postgres order store connected")
		}
	}
	a.closers = append(a.closers, func() error {
		a.store.Close()
		return nil
	})
	return nil
}

func (a *App) initModel() error {
	if a.model != nil {
		return nil
	}
	gw, err := NewGateway(a.cfg.LLM, a.reg, gateway.WithLogger(a.log), gateway.WithMetrics(a.metrics))
	if err != nil {
		return err
	}
	a.model = gw
	a.log.Info("model gateway ready", "profiles", gw.Profiles())
	return nil
}

// NewGateway builds the model gateway described by lc, creating clients
// through reg.
func NewGateway(lc config.LLMConfig, reg *config.Registry, opts ...gateway.Option) (*gateway.Gateway, error) {
	if reg == nil {
		return nil, errors.New("provider registry is required")
	}
	profiles := make([]gateway.Profile, 0, len(lc.Profiles))
	for _, p := range lc.Profiles {
		profiles = append(profiles, gateway.Profile{
			Name:     p.Name,
			Kind:     p.Provider,
			Keys:     p.APIKeys,
			Models:   p.Models,
			BaseURLs: p.BaseURLs,
		})
	}
	return gateway.New(gateway.Config{
		Profiles:    profiles,
		Primary:     lc.Primary,
		Temperature: lc.Temperature,
		MaxTokens:   lc.MaxTokens,
		JSONMode:    lc.JSONMode,
		Timeout:     lc.Timeout,
		CircuitBreaker: resilience.CircuitBreakerConfig{
			MaxFailures:  lc.CircuitBreaker.MaxFailures,
			ResetTimeout: lc.CircuitBreaker.ResetTimeout,
		},
	}, llmFactory(reg, lc.Timeout), opts...)
}

func llmFactory(reg *config.Registry, timeout time.Duration) gateway.Factory {
	return func(kind, key, model, baseURL string) (llm.Provider, error) {
		return reg.CreateLLM(config.LLMClient{
			Provider: kind,
			APIKey:   key,
			Model:    model,
			BaseURL:  baseURL,
			Timeout:  timeout,
		})
	}
}

// initTranscription builds a fallback chain over the configured backends.
// Without backends voice orders are declined.
func (a *App) initTranscription() error {
	if a.transcriber != nil {
		return nil
	}
	tc := a.cfg.Transcription
	if len(tc.Providers) == 0 {
		a.log.Info("no transcription backends configured, voice orders disabled")
		return nil
	}
	if a.reg == nil {
		return errors.New("provider registry is required")
	}

	fb := resilience.NewTranscriberFallback(resilience.FallbackConfig{
		Logger: a.log,
		OnFailure: func(name string, _ error) {
			a.metrics.RecordProviderError(context.Background(), name, "stt")
		},
	})
	for _, entry := range tc.Providers {
		t, err := a.reg.CreateTranscriber(entry)
		if err != nil {
			return fmt.Errorf("create %q: %w", entry.Name, err)
		}
		fb.Add(entry.Name, timeoutTranscriber{t: t, timeout: tc.Timeout})
	}
	a.transcriber = fb
	return nil
}

// timeoutTranscriber bounds a single backend attempt so that a hung backend
// does not eat the time budget of the next one.
type timeoutTranscriber struct {
	t       stt.Transcriber
	timeout time.Duration
}

func (tt timeoutTranscriber) Transcribe(ctx context.Context, audio stt.Audio) (string, error) {
	if tt.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, tt.timeout)
		defer cancel()
	}
	return tt.t.Transcribe(ctx, audio)
}

func (a *App) initSessions() {
	oc := a.cfg.Orders
	a.sessions = session.NewManager(session.NewMemStore(), a.store,
		session.WithLogger(a.log),
		session.WithMetrics(a.metrics),
		session.WithRetry(resilience.Retry{
			MaxAttempts: oc.PersistAttempts,
			Delay:       oc.PersistRetryDelay,
			Retryable:   store.IsContention,
			Logger:      a.log,
			Name:        "add_order",
		}),
	)
	if oc.PendingTTL <= 0 {
		return
	}
	a.expirer = session.NewExpirer(a.sessions, session.ExpirerConfig{TTL: oc.PendingTTL})
	a.closers = append(a.closers, func() error {
		a.expirer.Stop()
		return nil
	})
}

func (a *App) initTransport(ctx context.Context) error {
	if a.transport == nil {
		dc := a.cfg.Discord
		if dc.Token == "" {
			return errors.New("discord.token is required")
		}
		bot, err := discord.New(ctx, discord.Config{
			Token:   dc.Token,
			GuildID: dc.GuildID,
			Access:  accessFrom(dc),
			Logger:  a.log,
		})
		if err != nil {
			return err
		}
		a.transport = bot
		a.log.Info("discord bot connected", "guild_id", dc.GuildID)
	}
	a.closers = append(a.closers, a.transport.Close)
	return nil
}

func accessFrom(dc config.DiscordConfig) discord.Access {
	return discord.Access{
		OrderRoleID:     dc.OrderRoleID,
		StaffRoleID:     dc.StaffRoleID,
		OrderChannelIDs: dc.OrderChannelIDs,
		AllowDMs:        dc.AllowDMs,
	}
}

// initEvents connects to NATS when events.nats_url is set and no publisher
// was injected.
func (a *App) initEvents() error {
	if a.events != nil || a.cfg.Events.NATSURL == "" {
		return nil
	}
	nc, err := events.Connect(a.cfg.Events.NATSURL, a.cfg.Observability.ServiceName, a.log)
	if err != nil {
		return err
	}
	a.events = nc
	a.eventsUp = nc.IsConnected
	a.closers = append(a.closers, nc.Drain)
	a.log.Info("publishing order events", "url", a.cfg.Events.NATSURL)
	return nil
}

func (a *App) initService() error {
	loc, err := a.cfg.Location()
	if err != nil {
		return err
	}
	parser := orderparse.New(a.model, a.catalog,
		orderparse.WithLogger(a.log),
		orderparse.WithMetrics(a.metrics),
	)

	cfg := ordering.Config{
		Parser:      parser,
		Transcriber: a.transcriber,
		Sessions:    a.sessions,
		History:     a.store,
		Reports:     report.New(a.store, report.WithLocation(loc), report.WithLogger(a.log)),
		Menu:        a.catalog,
		Location:    loc,
		Logger:      a.log,
	}
	var notifiers ordering.Notifiers
	if ch := a.cfg.Discord.StaffChannelID; ch != "" {
		notifiers = append(notifiers, discord.NewStaffNotifier(a.transport.Messenger(), ch))
	}
	if a.events != nil {
		notifiers = append(notifiers, events.NewNotifier(a.events, a.cfg.Events.SubjectPrefix))
	}
	switch len(notifiers) {
	case 0:
	case 1:
		cfg.Notifier = notifiers[0]
	default:
		cfg.Notifier = notifiers
	}
	svc, err := ordering.New(cfg)
	if err != nil {
		return err
	}
	a.service = svc

	perms := a.transport.Permissions()
	router := a.transport.Router()
	commands.NewOrderCommands(commands.OrderConfig{
		Service:   svc,
		Perms:     perms,
		Tracker:   discord.NewLastMessages(),
		NoticeTTL: a.cfg.Orders.NoticeTTL,
		Logger:    a.log,
	}).Register(router)
	commands.NewMenuCommands(svc).Register(router)
	commands.NewHistoryCommands(svc, perms).Register(router)
	commands.NewReportCommands(svc, perms, a.log).Register(router)
	return nil
}

// initHTTP builds the health and metrics handler. The listener is only
// started by Run, and only when server.listen_addr is set.
func (a *App) initHTTP() {
	checks := []health.Checker{
		health.Ping("storage", a.store),
		health.Ready("discord", a.transport.Connected, "gateway session is down"),
	}
	if a.eventsUp != nil {
		checks = append(checks, health.Ready("nats", a.eventsUp, "nats connection is down"))
	}
	h := health.New(checks...)
	mux := http.NewServeMux()
	h.Register(mux)
	if a.cfg.Observability.Metrics {
		mux.Handle("GET /metrics", observe.MetricsHandler())
	}
	a.handler = observe.Middleware(a.metrics, a.log)(mux)

	if addr := a.cfg.Server.ListenAddr; addr != "" {
		a.server = &http.Server{
			Addr:              addr,
			Handler:           a.handler,
			ReadHeaderTimeout: 10 * time.Second,
		}
	}
}

// shutdownPartial releases what New already opened when a later step fails.
func (a *App) shutdownPartial() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Shutdown(ctx); err != nil {
		a.log.Warn("cleanup after failed start", "err", err)
	}
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Service returns the ordering service.
func (a *App) Service() *ordering.Service { return a.service }

// Handler returns the HTTP handler serving /healthz, /readyz and, when
// enabled, /metrics.
func (a *App) Handler() http.Handler { return a.handler }

// ─── Reload ──────────────────────────────────────────────────────────────────

// Reload applies a changed config. The log level and access rules take
// effect immediately; other changes are reported as needing a restart.
func (a *App) Reload(old, next *config.Config) {
	d := config.Diff(old, next)
	if d.Empty() {
		return
	}
	if d.LogLevelChanged {
		if a.level != nil {
			a.level.Set(d.NewLogLevel.Slog())
			a.log.Info("log level changed", "level", d.NewLogLevel)
		} else {
			d.RestartRequired = append(d.RestartRequired, "server.log_level")
		}
	}
	if d.AccessChanged {
		a.transport.Permissions().SetAccess(accessFrom(next.Discord))
		a.log.Info("access rules reloaded")
	}
	if len(d.RestartRequired) > 0 {
		a.log.Warn("config changes take effect after a restart", "sections", d.RestartRequired)
	}
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves until ctx is cancelled or a subsystem fails. A cancelled ctx
// yields context.Canceled.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.transport.Run(ctx) })
	if a.expirer != nil {
		g.Go(func() error { return a.expirer.Run(ctx) })
	}
	if a.watcher != nil {
		g.Go(func() error { return a.watcher.Run(ctx) })
	}
	if a.server != nil {
		g.Go(func() error { return a.serve() })
		g.Go(func() error {
			<-ctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
			defer cancel()
			return a.server.Shutdown(sctx)
		})
	}

	a.log.Info("order bot running", "listen_addr", a.cfg.Server.ListenAddr)
	return g.Wait()
}

func (a *App) serve() error {
	var err error
	if tls := a.cfg.Server.TLS; tls != nil {
		err = a.server.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
	} else {
		err = a.server.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return fmt.Errorf("app: http server: %w", err)
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown releases all resources in reverse creation order. Only the first
// call has an effect.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	a.stopOnce.Do(func() {
		if a.watcher != nil {
			a.watcher.Stop()
		}
		for i := len(a.closers) - 1; i >= 0; i-- {
			if err := ctx.Err(); err != nil {
				errs = append(errs, fmt.Errorf("app: shutdown interrupted: %w", err))
				return
			}
			if err := a.closers[i](); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}

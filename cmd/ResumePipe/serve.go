package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/BTreeMap/ResumePipe/internal/api"
	"github.com/BTreeMap/ResumePipe/internal/cache"
	"github.com/BTreeMap/ResumePipe/internal/flow"
	"github.com/BTreeMap/ResumePipe/internal/genai"
	"github.com/BTreeMap/ResumePipe/internal/lockfile"
	"github.com/BTreeMap/ResumePipe/internal/messaging"
	"github.com/BTreeMap/ResumePipe/internal/metrics"
	"github.com/BTreeMap/ResumePipe/internal/render"
	"github.com/BTreeMap/ResumePipe/internal/store"
	"github.com/BTreeMap/ResumePipe/internal/translate"
	"github.com/BTreeMap/ResumePipe/internal/twiliowhatsapp"
	"github.com/BTreeMap/ResumePipe/internal/whatsapp"
)

func newServeCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bot and its HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cfg)
		},
	}
	addServeFlags(cmd, cfg)
	return cmd
}

func addServeFlags(cmd *cobra.Command, cfg *Config) {
	f := cmd.Flags()
	f.StringVar(&cfg.APIAddr, "addr", cfg.APIAddr, "HTTP listen address")
	f.StringVar(&cfg.PublicURL, "public-url", cfg.PublicURL, "externally reachable base URL (needed for Twilio media)")
	f.BoolVar(&cfg.TelegramPolling, "telegram-polling", cfg.TelegramPolling, "poll Telegram for updates instead of using the webhook")
	f.BoolVar(&cfg.TwilioEnabled, "twilio", cfg.TwilioEnabled, "enable the Twilio WhatsApp transport")
	f.BoolVar(&cfg.WhatsAppEnabled, "whatsapp", cfg.WhatsAppEnabled, "enable the linked-device WhatsApp transport")
	f.StringVar(&cfg.WhatsAppDSN, "whatsapp-db-dsn", cfg.WhatsAppDSN, "whatsmeow session database DSN")
	f.StringVar(&cfg.TemplatesDir, "templates-dir", cfg.TemplatesDir, "directory with a template catalog replacing the built-in one")
	f.StringVar(&cfg.GenAIProvider, "genai-provider", cfg.GenAIProvider, "text generation provider: openai, anthropic, gemini or ollama")
	f.StringVar(&cfg.GenAIModel, "genai-model", cfg.GenAIModel, "model name for the text generation provider")
	f.BoolVar(&cfg.RequireVerification, "require-verification", cfg.RequireVerification, "ask new users for an access code")
	f.DurationVar(&cfg.IdleTimeout, "idle-timeout", cfg.IdleTimeout, "end sessions after this long without a message")
}

// runServe wires every component and blocks until SIGINT or SIGTERM.
func runServe(parent context.Context, cfg *Config) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	lock, err := lockfile.AcquireLock(cfg.StateDir)
	if err != nil {
		return fmt.Errorf("failed to lock state directory: %w", err)
	}
	defer func() {
		if err := lock.Release(); err != nil {
			slog.Warn("runServe: lock release failed", "error", err)
		}
	}()

	st, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer st.Close()

	usage, saveUsage, err := openUsageLog(cfg, st)
	if err != nil {
		return err
	}
	defer saveUsage()

	recorder := metrics.NewPrometheusRecorder()

	translations := cache.NewTranslationCache(
		cache.WithPath(cfg.cachePath()),
		cache.WithMaxEntries(cfg.CacheMaxEntries),
	)
	if err := translations.Load(); err != nil {
		slog.Warn("runServe: translation cache not loaded", "error", err)
	}
	defer func() {
		if err := translations.Save(); err != nil {
			slog.Warn("runServe: translation cache not saved", "error", err)
		}
	}()

	deps, err := buildDeps(cfg, st, usage, recorder, translations)
	if err != nil {
		return err
	}
	engine, err := flow.NewEngine(deps, buildEngineOptions(*cfg)...)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}
	defer engine.Stop()

	tr, err := startTransports(ctx, cfg)
	if err != nil {
		return err
	}
	defer tr.stop()

	handler := messaging.NewResponseHandler(engine,
		messaging.WithDedup(st),
		messaging.WithMetrics(recorder),
	)
	for _, svc := range tr.services {
		engine.RegisterTransport(svc.Channel(), svc)
		handler.Register(svc)
	}
	handler.Start(ctx)

	apiOpts := []api.Option{
		api.WithAddr(cfg.APIAddr),
		api.WithAdminToken(cfg.AdminToken),
		api.WithUsageLog(usage),
		api.WithSessions(engine.Lifecycle()),
		api.WithMetricsHandler(recorder.Handler()),
	}
	if tr.telegram != nil {
		apiOpts = append(apiOpts, api.WithTelegram(tr.telegram))
	}
	if tr.twilio != nil {
		apiOpts = append(apiOpts, api.WithTwilio(tr.twilio))
	}

	slog.Info("ResumePipe started", "addr", cfg.APIAddr, "transports", len(tr.services), "state_dir", cfg.StateDir)
	runErr := api.NewServer(apiOpts...).Run(ctx)

	// stopping the services closes their Responses channels, which ends the
	// handler's consumer loops
	stop()
	tr.stop()
	handler.Wait()
	slog.Info("ResumePipe stopped")
	return runErr
}

// openUsageLog returns the JSON file log when one is configured, else the store.
func openUsageLog(cfg *Config, st store.Store) (store.UsageLog, func(), error) {
	if cfg.UsageLog == "" {
		return st, func() {}, nil
	}
	jsonLog := store.NewJSONUsageLog(cfg.UsageLog)
	if err := jsonLog.Load(); err != nil {
		return nil, nil, fmt.Errorf("failed to load usage log: %w", err)
	}
	return jsonLog, func() {
		if err := jsonLog.Save(); err != nil {
			slog.Warn("runServe: usage log not saved", "error", err)
		}
	}, nil
}

func buildDeps(cfg *Config, st store.Store, usage store.UsageLog, recorder metrics.Recorder, translations *cache.TranslationCache) (flow.Deps, error) {
	var catalog *render.Catalog
	var err error
	if cfg.TemplatesDir != "" {
		catalog, err = render.LoadCatalogDir(cfg.TemplatesDir)
	} else {
		catalog, err = render.DefaultCatalog()
	}
	if err != nil {
		return flow.Deps{}, fmt.Errorf("failed to load templates: %w", err)
	}

	renderer, err := render.NewHTMLRenderer(buildRendererOptions(*cfg, catalog)...)
	if err != nil {
		return flow.Deps{}, fmt.Errorf("failed to create renderer: %w", err)
	}

	// Without a generator the bot still works; it keeps user text as typed and
	// only offers English and the built-in Sinhala strings.
	var gen genai.Generator
	client, err := genai.NewClient(buildGenAIOptions(*cfg)...)
	if err != nil {
		slog.Warn("runServe: text generation disabled", "provider", cfg.GenAIProvider, "error", err)
	} else {
		gen = client
	}

	deps := flow.Deps{
		Renderer:  renderer,
		Catalog:   catalog,
		Assistant: genai.NewEnhancer(gen),
		Photos:    render.NewPhotoStore(cfg.photosDir()),
		Codes:     st,
		Usage:     usage,
		Metrics:   recorder,
	}

	var svc translate.Service
	if gen != nil {
		genSvc := translate.NewGenAIService(gen)
		svc = genSvc
		deps.Detector = genSvc
	}
	localizer, err := translate.NewLocalizer(svc, translations)
	if err != nil {
		return flow.Deps{}, err
	}
	deps.Localizer = localizer
	return deps, nil
}

type transports struct {
	services []messaging.Service
	telegram *messaging.TelegramService
	twilio   *messaging.TwilioService
}

func (t *transports) stop() {
	for _, svc := range t.services {
		if err := svc.Stop(); err != nil {
			slog.Warn("runServe: transport stop failed", "channel", svc.Channel(), "error", err)
		}
	}
}

// startTransports connects every configured chat transport. At least one is required.
func startTransports(ctx context.Context, cfg *Config) (*transports, error) {
	tr := &transports{}
	fail := func(err error) (*transports, error) {
		tr.stop()
		return nil, err
	}

	if cfg.TelegramToken != "" {
		bot, err := messaging.NewTelegramBot(cfg.TelegramToken)
		if err != nil {
			return fail(err)
		}
		var opts []messaging.TelegramOption
		if cfg.TelegramWebhookSecret != "" {
			opts = append(opts, messaging.WithWebhookSecret(cfg.TelegramWebhookSecret))
		}
		if cfg.TelegramPolling {
			opts = append(opts, messaging.WithPolling())
		}
		tr.telegram = messaging.NewTelegramService(bot, opts...)
		tr.services = append(tr.services, tr.telegram)
	}

	if cfg.TwilioEnabled {
		client, err := twiliowhatsapp.NewClient()
		if err != nil {
			return fail(fmt.Errorf("failed to create twilio client: %w", err))
		}
		if cfg.PublicURL == "" {
			slog.Warn("runServe: no public URL; Twilio users cannot receive PDFs and signatures cannot be checked")
		}
		tr.twilio = messaging.NewTwilioService(client, buildTwilioOptions(*cfg)...)
		tr.services = append(tr.services, tr.twilio)
	}

	if cfg.WhatsAppEnabled {
		client, err := whatsapp.NewClient(ctx, buildWhatsAppOptions(*cfg)...)
		if err != nil {
			return fail(fmt.Errorf("failed to create whatsapp client: %w", err))
		}
		tr.services = append(tr.services, messaging.NewWhatsAppService(client))
	}

	if len(tr.services) == 0 {
		return nil, fmt.Errorf("no chat transport configured: set TELEGRAM_BOT_TOKEN, TWILIO_ENABLED or WHATSAPP_ENABLED")
	}

	for _, svc := range tr.services {
		if err := svc.Start(ctx); err != nil {
			return fail(fmt.Errorf("failed to start %s transport: %w", svc.Channel(), err))
		}
	}
	return tr, nil
}

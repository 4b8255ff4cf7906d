package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/BTreeMap/ResumePipe/internal/api"
	"github.com/BTreeMap/ResumePipe/internal/flow"
	"github.com/BTreeMap/ResumePipe/internal/genai"
	"github.com/BTreeMap/ResumePipe/internal/messaging"
	"github.com/BTreeMap/ResumePipe/internal/render"
	"github.com/BTreeMap/ResumePipe/internal/util"
	"github.com/BTreeMap/ResumePipe/internal/whatsapp"
)

const (
	// DefaultStateDir is where the database, lock file, photos and PDFs live.
	DefaultStateDir = "/var/lib/resumepipe"
	// DefaultDBFileName is the SQLite file used when no DATABASE_URL is set.
	DefaultDBFileName = "resumepipe.db"
	// DefaultWhatsAppDBFileName holds the linked WhatsApp device session.
	DefaultWhatsAppDBFileName = "whatsmeow.db"
	// DefaultCacheFileName persists translated strings.
	DefaultCacheFileName = "translations.json"
	// DefaultCodeLength is the length of generated verification codes.
	DefaultCodeLength = 8
	// DefaultLogLevel is used when LOG_LEVEL is unset or invalid.
	DefaultLogLevel = "info"
)

// Config holds everything read from the environment. serve flags override it.
type Config struct {
	StateDir    string
	DatabaseURL string
	UsageLog    string
	LogLevel    string

	APIAddr    string
	AdminToken string
	PublicURL  string

	TelegramToken         string
	TelegramWebhookSecret string
	TelegramPolling       bool

	TwilioEnabled           bool
	TwilioValidateSignature bool
	TwilioMediaTTL          time.Duration

	WhatsAppEnabled bool
	WhatsAppDSN     string
	WhatsAppQRFile  string
	WhatsAppNumeric bool

	GenAIProvider    string
	GenAIAPIKey      string
	GenAIModel       string
	GenAIBaseURL     string
	GenAITemperature float64
	GenAITimeout     time.Duration

	TemplatesDir     string
	ConverterCommand string
	CacheMaxEntries  int

	IdleTimeout         time.Duration
	MaxGenerations      int
	MaxVerifications    int
	MaxLanguageWarnings int
	RequireVerification bool
	AdminIDs            []string
}

// initializeLogger installs a text handler at the named level.
func initializeLogger(level string) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(level)}))
	slog.SetDefault(logger)
}

func parseLogLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return slog.LevelInfo
	}
	return l
}

// loadEnvironmentConfig reads .env (when present) and the process environment.
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		StateDir:    util.GetEnv("RESUMEPIPE_STATE_DIR", DefaultStateDir),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		UsageLog:    os.Getenv("RESUMEPIPE_USAGE_LOG"),
		LogLevel:    util.GetEnv("LOG_LEVEL", DefaultLogLevel),

		APIAddr:    util.GetEnv("API_ADDR", api.DefaultAddr),
		AdminToken: os.Getenv("RESUMEPIPE_ADMIN_TOKEN"),
		PublicURL:  os.Getenv("RESUMEPIPE_PUBLIC_URL"),

		TelegramToken:         os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramWebhookSecret: os.Getenv("TELEGRAM_WEBHOOK_SECRET"),
		TelegramPolling:       util.ParseBoolEnv("TELEGRAM_POLLING", false),

		TwilioEnabled:           util.ParseBoolEnv("TWILIO_ENABLED", false),
		TwilioValidateSignature: util.ParseBoolEnv("TWILIO_VALIDATE_SIGNATURE", true),
		TwilioMediaTTL:          util.ParseDurationEnv("TWILIO_MEDIA_TTL", messaging.DefaultMediaTTL),

		WhatsAppEnabled: util.ParseBoolEnv("WHATSAPP_ENABLED", false),
		WhatsAppDSN:     os.Getenv("WHATSAPP_DB_DSN"),
		WhatsAppQRFile:  os.Getenv("WHATSAPP_QR_OUTPUT"),
		WhatsAppNumeric: util.ParseBoolEnv("WHATSAPP_NUMERIC_CODE", false),

		GenAIProvider:    util.GetEnv("GENAI_PROVIDER", genai.ProviderOpenAI),
		GenAIAPIKey:      os.Getenv("GENAI_API_KEY"),
		GenAIModel:       os.Getenv("GENAI_MODEL"),
		GenAIBaseURL:     os.Getenv("GENAI_BASE_URL"),
		GenAITemperature: parseFloatEnv("GENAI_TEMPERATURE", genai.DefaultTemperature),
		GenAITimeout:     util.ParseDurationEnv("GENAI_TIMEOUT", genai.DefaultTimeout),

		TemplatesDir:     os.Getenv("RESUMEPIPE_TEMPLATES_DIR"),
		ConverterCommand: util.GetEnv("RESUMEPIPE_CONVERTER", render.DefaultConverter),
		CacheMaxEntries:  util.ParseIntEnv("RESUMEPIPE_CACHE_MAX_ENTRIES", 0),

		IdleTimeout:         util.ParseDurationEnv("RESUMEPIPE_IDLE_TIMEOUT", flow.DefaultIdleTimeout),
		MaxGenerations:      util.ParseIntEnv("RESUMEPIPE_MAX_GENERATIONS", flow.DefaultMaxGenerations),
		MaxVerifications:    util.ParseIntEnv("RESUMEPIPE_MAX_VERIFICATIONS", flow.DefaultMaxVerifications),
		MaxLanguageWarnings: util.ParseIntEnv("RESUMEPIPE_MAX_LANGUAGE_WARNINGS", flow.DefaultMaxLanguageWarns),
		RequireVerification: util.ParseBoolEnv("RESUMEPIPE_REQUIRE_VERIFICATION", true),
		AdminIDs:            util.ParseListEnv("RESUMEPIPE_ADMIN_IDS"),
	}

	slog.Debug("environment variables loaded",
		"RESUMEPIPE_STATE_DIR", config.StateDir,
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"API_ADDR", config.APIAddr,
		"ADMIN_TOKEN_SET", config.AdminToken != "",
		"TELEGRAM_BOT_TOKEN_SET", config.TelegramToken != "",
		"TWILIO_ENABLED", config.TwilioEnabled,
		"WHATSAPP_ENABLED", config.WhatsAppEnabled,
		"GENAI_PROVIDER", config.GenAIProvider,
		"GENAI_API_KEY_SET", config.GenAIAPIKey != "")

	return config
}

func parseFloatEnv(key string, defaultValue float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		slog.Warn("Invalid float for env var, using default", "key", key, "value", val, "default", defaultValue)
		return defaultValue
	}
	return f
}

// resolve fills paths that depend on the state directory, after flags are parsed.
func (c *Config) resolve() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = filepath.Join(c.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", c.DatabaseURL)
	}
	if c.WhatsAppDSN == "" {
		c.WhatsAppDSN = "file:" + filepath.Join(c.StateDir, DefaultWhatsAppDBFileName) + "?_foreign_keys=on"
	}
}

func (c Config) cachePath() string { return filepath.Join(c.StateDir, DefaultCacheFileName) }
func (c Config) photosDir() string { return filepath.Join(c.StateDir, "photos") }
func (c Config) outputDir() string { return filepath.Join(c.StateDir, "output") }
func (c Config) mediaDir() string  { return filepath.Join(c.StateDir, "media") }

func buildGenAIOptions(c Config) []genai.Option {
	opts := []genai.Option{
		genai.WithProvider(c.GenAIProvider),
		genai.WithTemperature(c.GenAITemperature),
		genai.WithTimeout(c.GenAITimeout),
	}
	if c.GenAIAPIKey != "" {
		opts = append(opts, genai.WithAPIKey(c.GenAIAPIKey))
	}
	if c.GenAIModel != "" {
		opts = append(opts, genai.WithModel(c.GenAIModel))
	}
	if c.GenAIBaseURL != "" {
		opts = append(opts, genai.WithBaseURL(c.GenAIBaseURL))
	}
	return opts
}

func buildEngineOptions(c Config) []flow.Option {
	return []flow.Option{
		flow.WithIdleTimeout(c.IdleTimeout),
		flow.WithMaxGenerations(c.MaxGenerations),
		flow.WithMaxVerifications(c.MaxVerifications),
		flow.WithMaxLanguageWarnings(c.MaxLanguageWarnings),
		flow.WithRequireVerification(c.RequireVerification),
		flow.WithAdminIDs(c.AdminIDs...),
	}
}

func buildRendererOptions(c Config, catalog *render.Catalog) []render.Option {
	opts := []render.Option{
		render.WithOutputDir(c.outputDir()),
		render.WithCatalog(catalog),
	}
	if fields := strings.Fields(c.ConverterCommand); len(fields) > 0 {
		opts = append(opts, render.WithConverterCommand(fields[0], fields[1:]...))
	}
	return opts
}

func buildWhatsAppOptions(c Config) []whatsapp.Option {
	opts := []whatsapp.Option{whatsapp.WithDBDSN(c.WhatsAppDSN)}
	if c.WhatsAppQRFile != "" {
		opts = append(opts, whatsapp.WithQRCodeOutput(c.WhatsAppQRFile))
	}
	if c.WhatsAppNumeric {
		opts = append(opts, whatsapp.WithNumericCode())
	}
	return opts
}

func buildTwilioOptions(c Config) []messaging.TwilioOption {
	opts := []messaging.TwilioOption{
		messaging.WithPublicURL(c.PublicURL),
		messaging.WithMediaDir(c.mediaDir()),
		messaging.WithMediaTTL(c.TwilioMediaTTL),
	}
	// signatures cover the full public URL, so they cannot be checked without it
	if c.TwilioValidateSignature && c.PublicURL != "" {
		opts = append(opts, messaging.WithSignatureValidation())
	}
	return opts
}

package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/api"
	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/conversation"
	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/genai"
	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/intent"
	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/ratelimit"
	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/store"
	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/util"
	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/whatsapp"
)

const (
	// DefaultStateDir holds the lock file, databases and debug logs.
	DefaultStateDir = "/var/lib/yatrabot"
	// DefaultAppDBFileName is the SQLite application database in the state dir.
	DefaultAppDBFileName = "yatrabot.db"
	// DefaultWhatsAppDBFileName is the whatsmeow device database in the state dir.
	DefaultWhatsAppDBFileName = "whatsmeow.db"
	// MemoryDSN selects the in-memory store.
	MemoryDSN = "memory"

	TransportWhatsApp = "whatsapp"
	TransportTwilio   = "twilio"
	TransportNone     = "none"
)

// Config holds environment configuration.
type Config struct {
	StateDir         string
	ApplicationDBDSN string
	WhatsAppDBDSN    string
	OpenAIKey        string
	OpenAIModel      string
	AIClassifier     bool
	AIMinConfidence  float64
	GenAIDebug       bool
	APIAddr          string
	APIToken         string
	Transport        string
	TwilioWebhookURL string
	SessionTTL       time.Duration
	DailySearchLimit int
	LogLevel         string
}

// Flags holds command line flag values.
type Flags struct {
	qrOutput         *string
	numeric          *bool
	stateDir         *string
	dbDSN            *string
	waDSN            *string
	openaiKey        *string
	openaiModel      *string
	aiClassifier     *bool
	aiMinConfidence  *float64
	genaiDebug       *bool
	apiAddr          *string
	apiToken         *string
	transport        *string
	twilioWebhookURL *string
	sessionTTL       *time.Duration
	dailySearchLimit *int
}

// initializeLogger sets up structured logging at the configured level.
func initializeLogger(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig reads .env (when present) and the environment.
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("loadEnvironmentConfig: no .env file loaded", "error", err)
	}
	cfg := Config{
		StateDir:         os.Getenv("YATRA_STATE_DIR"),
		ApplicationDBDSN: os.Getenv("DATABASE_URL"),
		WhatsAppDBDSN:    os.Getenv("WHATSAPP_DB_DSN"),
		OpenAIKey:        os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:      os.Getenv("OPENAI_MODEL"),
		AIClassifier:     util.ParseBoolEnv("AI_CLASSIFIER_ENABLED", false),
		AIMinConfidence:  util.ParseFloatEnv("AI_MIN_CONFIDENCE", intent.DefaultMinAIConfidence),
		GenAIDebug:       util.ParseBoolEnv("GENAI_DEBUG", false),
		APIAddr:          os.Getenv("API_ADDR"),
		APIToken:         os.Getenv("API_TOKEN"),
		Transport:        strings.ToLower(os.Getenv("TRANSPORT")),
		TwilioWebhookURL: os.Getenv("TWILIO_WEBHOOK_URL"),
		SessionTTL:       util.ParseDurationEnv("SESSION_TTL", conversation.DefaultSessionTTL),
		DailySearchLimit: util.ParseIntEnv("DAILY_SEARCH_LIMIT", ratelimit.DefaultDailySearchLimit),
		LogLevel:         os.Getenv("LOG_LEVEL"),
	}
	if cfg.StateDir == "" {
		cfg.StateDir = DefaultStateDir
	}
	if cfg.ApplicationDBDSN == "" {
		cfg.ApplicationDBDSN = filepath.Join(cfg.StateDir, DefaultAppDBFileName)
	}
	if cfg.WhatsAppDBDSN == "" {
		cfg.WhatsAppDBDSN = filepath.Join(cfg.StateDir, DefaultWhatsAppDBFileName)
	}
	if cfg.APIAddr == "" {
		cfg.APIAddr = api.DefaultAddr
	}
	if cfg.Transport == "" {
		cfg.Transport = TransportWhatsApp
	}
	if cfg.OpenAIModel == "" {
		cfg.OpenAIModel = genai.DefaultModel
	}
	slog.Debug("loadEnvironmentConfig: loaded",
		"stateDir", cfg.StateDir,
		"appDSNType", store.DetectDSNType(cfg.ApplicationDBDSN),
		"openAIKeySet", cfg.OpenAIKey != "",
		"aiClassifier", cfg.AIClassifier,
		"transport", cfg.Transport,
		"apiAddr", cfg.APIAddr)
	return cfg
}

// parseCommandLineFlags parses args with environment values as defaults.
func parseCommandLineFlags(fs *flag.FlagSet, args []string, cfg Config) (Flags, error) {
	f := Flags{
		qrOutput:         fs.String("qr-output", "", "path to write the WhatsApp login QR code"),
		numeric:          fs.Bool("numeric-code", false, "print the raw pairing code instead of a QR code"),
		stateDir:         fs.String("state-dir", cfg.StateDir, "state directory (overrides $YATRA_STATE_DIR)"),
		dbDSN:            fs.String("db-dsn", cfg.ApplicationDBDSN, "application database DSN, a SQLite path, a Postgres URL or \"memory\" (overrides $DATABASE_URL)"),
		waDSN:            fs.String("whatsapp-db-dsn", cfg.WhatsAppDBDSN, "whatsmeow device store DSN (overrides $WHATSAPP_DB_DSN)"),
		openaiKey:        fs.String("openai-api-key", cfg.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		openaiModel:      fs.String("openai-model", cfg.OpenAIModel, "OpenAI chat model (overrides $OPENAI_MODEL)"),
		aiClassifier:     fs.Bool("ai-classifier", cfg.AIClassifier, "use the OpenAI intent classifier (overrides $AI_CLASSIFIER_ENABLED)"),
		aiMinConfidence:  fs.Float64("ai-min-confidence", cfg.AIMinConfidence, "lowest AI confidence that overrides the rules (overrides $AI_MIN_CONFIDENCE)"),
		genaiDebug:       fs.Bool("genai-debug", cfg.GenAIDebug, "write OpenAI requests to the state dir (overrides $GENAI_DEBUG)"),
		apiAddr:          fs.String("api-addr", cfg.APIAddr, "API server address (overrides $API_ADDR)"),
		apiToken:         fs.String("api-token", cfg.APIToken, "bearer token for operator endpoints (overrides $API_TOKEN)"),
		transport:        fs.String("transport", cfg.Transport, "whatsapp, twilio or none (overrides $TRANSPORT)"),
		twilioWebhookURL: fs.String("twilio-webhook-url", cfg.TwilioWebhookURL, "public webhook URL used to check Twilio signatures (overrides $TWILIO_WEBHOOK_URL)"),
		sessionTTL:       fs.Duration("session-ttl", cfg.SessionTTL, "session lifetime (overrides $SESSION_TTL)"),
		dailySearchLimit: fs.Int("daily-search-limit", cfg.DailySearchLimit, "searches per member per day (overrides $DAILY_SEARCH_LIMIT)"),
	}
	if err := fs.Parse(args); err != nil {
		return Flags{}, err
	}

	// Databases follow an overridden state dir unless set explicitly.
	if *f.stateDir != cfg.StateDir {
		if *f.dbDSN == filepath.Join(cfg.StateDir, DefaultAppDBFileName) {
			*f.dbDSN = filepath.Join(*f.stateDir, DefaultAppDBFileName)
		}
		if *f.waDSN == filepath.Join(cfg.StateDir, DefaultWhatsAppDBFileName) {
			*f.waDSN = filepath.Join(*f.stateDir, DefaultWhatsAppDBFileName)
		}
	}
	*f.transport = strings.ToLower(*f.transport)
	return f, nil
}

// buildWhatsAppOptions constructs WhatsApp client options.
func buildWhatsAppOptions(f Flags) []whatsapp.Option {
	opts := []whatsapp.Option{whatsapp.WithDBDSN(*f.waDSN)}
	if *f.qrOutput != "" {
		opts = append(opts, whatsapp.WithQRCodeOutput(*f.qrOutput))
	}
	if *f.numeric {
		opts = append(opts, whatsapp.WithNumericCode())
	}
	return opts
}

// buildStoreOptions picks the backend option for the application DSN.
func buildStoreOptions(f Flags) []store.Option {
	if *f.dbDSN == "" || *f.dbDSN == MemoryDSN {
		return nil
	}
	if store.DetectDSNType(*f.dbDSN) == "postgres" {
		return []store.Option{store.WithPostgresDSN(*f.dbDSN)}
	}
	return []store.Option{store.WithSQLiteDSN(*f.dbDSN)}
}

// buildGenAIOptions constructs OpenAI client options.
func buildGenAIOptions(f Flags) []genai.Option {
	opts := []genai.Option{genai.WithModel(*f.openaiModel)}
	if *f.openaiKey != "" {
		opts = append(opts, genai.WithAPIKey(*f.openaiKey))
	}
	if *f.genaiDebug {
		opts = append(opts, genai.WithDebugMode(true), genai.WithStateDir(*f.stateDir))
	}
	return opts
}

// buildAPIOptions constructs API server options.
func buildAPIOptions(f Flags) []api.Option {
	opts := []api.Option{api.WithAddr(*f.apiAddr), api.WithTransport(*f.transport)}
	if *f.apiToken != "" {
		opts = append(opts, api.WithAPIToken(*f.apiToken))
	}
	return opts
}

package app

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"fin_chart_bot/internal/bot"
	"fin_chart_bot/internal/config"
	"fin_chart_bot/internal/notifications"
	"fin_chart_bot/internal/store"
	"fin_chart_bot/internal/table"
	"fin_chart_bot/internal/telegram"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
)

// SetupEnvironment loads .env file and configures zerolog output and log level.
func SetupEnvironment() {
	// Load .env file if it exists
	err := godotenv.Load()

	if os.Getenv("ENV") == "production" {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = log.Output(os.Stderr)
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	levelStr := strings.ToLower(os.Getenv("LOGLEVEL"))
	level, known := parseLevel(levelStr, os.Getenv("ENV") == "production")
	zerolog.SetGlobalLevel(level)
	if !known {
		log.Warn().Msgf("Unknown LOGLEVEL '%s', defaulting to info.", levelStr)
	}

	// wait until now to report on the .env file so we have the chance to set up logging first
	if err == nil {
		log.Debug().Msg("Loaded environment variables from .env file.")
	} else {
		log.Debug().Msg("No .env file found or error loading .env file; proceeding with existing environment variables.")
	}
}

func parseLevel(levelStr string, production bool) (zerolog.Level, bool) {
	switch levelStr {
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "fatal":
		return zerolog.FatalLevel, true
	case "panic":
		return zerolog.PanicLevel, true
	case "disabled":
		return zerolog.Disabled, true
	case "":
		if production {
			return zerolog.WarnLevel, true
		}
		return zerolog.InfoLevel, true
	default:
		return zerolog.InfoLevel, false
	}
}

// GetRequiredEnv fetches a required environment variable or exits if not set.
func GetRequiredEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		log.Fatal().Msgf("%s environment variable is required", key)
	}
	return value
}

// GetEnvWithDefault fetches an environment variable with a default fallback.
func GetEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getBoolEnv(key string, defaultValue bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		log.Warn().Str("key", key).Str("value", raw).Msg("Invalid boolean, using default")
		return defaultValue
	}
	return value
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		log.Warn().Str("key", key).Str("value", raw).Msg("Invalid duration, using default")
		return defaultValue
	}
	return value
}

// LoadConfig reads the process configuration. A missing TOKEN is fatal.
func LoadConfig() Config {
	cfg := Config{
		Token:             GetRequiredEnv("TOKEN"),
		TableBackend:      strings.ToLower(GetEnvWithDefault("TABLE_BACKEND", BackendXLSX)),
		TableName:         GetEnvWithDefault("TABLE_NAME", "financials.xlsx"),
		SpreadsheetID:     os.Getenv("SPREADSHEET_ID"),
		SpreadsheetSheet:  GetEnvWithDefault("SPREADSHEET_SHEET", "Sheet1"),
		GoogleCredentials: GetEnvWithDefault("GOOGLE_CREDENTIALS", "credentials.json"),
		TableRecalculate:  getBoolEnv("TABLE_RECALCULATE", false),
		DBName:            GetEnvWithDefault("DB_NAME", "messages.db"),
		RefreshInterval:   getDurationEnv("REFRESH_INTERVAL", bot.DefaultRefreshInterval),
		NtfyEnabled:       getBoolEnv("NTFY_ENABLED", false),
		NtfyURL:           GetEnvWithDefault("NTFY_URL", "https://ntfy.sh"),
		NtfyTopic:         GetEnvWithDefault("NTFY_TOPIC", "fin-chart-bot"),
		NtfyPriority:      os.Getenv("NTFY_PRIORITY"),
	}
	if cfg.TableBackend == BackendGoogleSheets && cfg.SpreadsheetID == "" {
		log.Fatal().Msg("SPREADSHEET_ID environment variable is required for the gsheets backend")
	}

	log.Debug().
		Str("table_backend", cfg.TableBackend).
		Str("table_name", cfg.TableName).
		Str("db_name", cfg.DBName).
		Bool("recalculate", cfg.TableRecalculate).
		Dur("refresh_interval", cfg.RefreshInterval).
		Msg("Loaded configuration")
	return cfg
}

// NewTableBackend builds the spreadsheet backend selected by TABLE_BACKEND.
func NewTableBackend(ctx context.Context, cfg Config) (table.Backend, error) {
	switch cfg.TableBackend {
	case BackendXLSX, "":
		return table.NewXLSX(cfg.TableName), nil
	case BackendGoogleSheets:
		return table.NewGoogleSheets(ctx, cfg.SpreadsheetID, cfg.SpreadsheetSheet,
			option.WithCredentialsFile(cfg.GoogleCredentials))
	default:
		return nil, fmt.Errorf("unknown table backend %q", cfg.TableBackend)
	}
}

// NewTableManager wraps the configured backend in a table.Manager.
func NewTableManager(ctx context.Context, cfg Config) (*table.Manager, error) {
	backend, err := NewTableBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	mode := table.ReadCached
	if cfg.TableRecalculate {
		mode = table.ReadRecalculated
	}
	return table.NewManager(backend, table.WithReadMode(mode)), nil
}

// EnsureTable creates the spreadsheet with fixture data when it is missing.
func EnsureTable(ctx context.Context, manager *table.Manager) error {
	exists, err := manager.Exists(ctx)
	if err != nil {
		return fmt.Errorf("failed to check table: %w", err)
	}
	if exists {
		log.Debug().Msg("Table already exists")
		return nil
	}
	log.Info().Msg("Table not found, creating it with sample data")
	if err := manager.CreateWithFixtures(ctx); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

// InitializeNotificationClient creates and returns the notification client
func InitializeNotificationClient(cfg Config) *notifications.Client {
	log.Debug().
		Bool("enabled", cfg.NtfyEnabled).
		Str("base_url", cfg.NtfyURL).
		Str("topic", cfg.NtfyTopic).
		Msg("Initializing notification client")

	client := notifications.NewClient(cfg.NtfyURL, cfg.NtfyTopic, cfg.NtfyEnabled, cfg.NtfyPriority,
		config.DefaultResilienceConfig.Alert)

	if cfg.NtfyEnabled {
		log.Info().Str("topic", cfg.NtfyTopic).Msg("Notifications enabled")
	} else {
		log.Debug().Msg("Notifications disabled")
	}
	return client
}

// InitializeClients builds the table, store, Telegram and notification
// clients, exiting on any failure.
func InitializeClients(ctx context.Context, cfg Config) Clients {
	log.Debug().Msg("Initializing clients")

	manager, err := NewTableManager(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create table client")
	}
	if err := EnsureTable(ctx, manager); err != nil {
		log.Fatal().Err(err).Msg("Failed to prepare table")
	}

	st, err := store.New(ctx, cfg.DBName)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open message store")
	}

	tg, err := telegram.NewClient(cfg.Token, telegram.Options{})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create telegram client")
	}
	log.Info().Str("username", tg.UserName()).Msg("Authorized on Telegram")

	log.Debug().Msg("Clients initialized successfully")
	return Clients{
		Table:    manager,
		Store:    st,
		Telegram: tg,
		Notifier: InitializeNotificationClient(cfg),
	}
}

package app

import (
	"time"

	"fin_chart_bot/internal/notifications"
	"fin_chart_bot/internal/store"
	"fin_chart_bot/internal/table"
	"fin_chart_bot/internal/telegram"
)

const (
	BackendXLSX         = "xlsx"
	BackendGoogleSheets = "gsheets"
)

// Config is the process configuration read from the environment.
type Config struct {
	Token string

	TableBackend      string
	TableName         string
	SpreadsheetID     string
	SpreadsheetSheet  string
	GoogleCredentials string
	TableRecalculate  bool

	DBName          string
	RefreshInterval time.Duration

	NtfyEnabled  bool
	NtfyURL      string
	NtfyTopic    string
	NtfyPriority string
}

// Clients holds the long-lived collaborators built at startup.
type Clients struct {
	Table    *table.Manager
	Store    *store.Store
	Telegram *telegram.Client
	Notifier *notifications.Client
}

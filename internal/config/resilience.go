package config

import (
	"time"

	"fin_chart_bot/internal/retry"
)

type ResilienceConfig struct {
	Transport retry.Config
	SheetRead retry.Config
	Alert     retry.Config
}

var DefaultResilienceConfig = ResilienceConfig{
	Transport: retry.Config{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
		MaxDelay:   30 * time.Second,
		Timeout:    20 * time.Second,
	},
	SheetRead: retry.Config{
		MaxRetries: 3,
		BaseDelay:  2 * time.Second,
		MaxDelay:   30 * time.Second,
		Timeout:    15 * time.Second,
	},
	Alert: retry.Config{
		MaxRetries: 2,
		BaseDelay:  1 * time.Second,
		MaxDelay:   10 * time.Second,
		Timeout:    10 * time.Second,
	},
}

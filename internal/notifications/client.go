package notifications

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"fin_chart_bot/internal/retry"
	"fin_chart_bot/internal/store"

	"github.com/rs/zerolog/log"
)

const (
	circuitThreshold = 5
	circuitCooldown  = 30 * time.Second
)

// Client posts operator alerts to an ntfy topic.
type Client struct {
	httpClient *http.Client
	baseURL    string
	topic      string
	enabled    bool
	priority   string
	retry      retry.Config

	mutex       sync.Mutex
	failures    int
	lastFailure time.Time
	circuitOpen bool
	totalSent   int64
	totalFailed int64

	inflight sync.WaitGroup
}

type NotificationError struct {
	Type       string
	StatusCode int
	Underlying error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("notification failed [%s]: %v", e.Type, e.Underlying)
}

func (e *NotificationError) Unwrap() error { return e.Underlying }

func (e *NotificationError) IsRetryable() bool {
	switch e.Type {
	case "network", "server", "rate_limit":
		return true
	default:
		return false
	}
}

func NewClient(baseURL, topic string, enabled bool, priority string, retryCfg retry.Config) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		topic:      topic,
		enabled:    enabled,
		priority:   priority,
		retry:      retryCfg,
	}
}

func (c *Client) SendNotification(ctx context.Context, message string) error {
	if !c.enabled {
		log.Debug().Msg("Notifications disabled, skipping")
		return nil
	}
	if c.isCircuitOpen() {
		log.Warn().Msg("Circuit breaker open, skipping notification")
		return &NotificationError{Type: "circuit_open", Underlying: fmt.Errorf("circuit breaker is open")}
	}

	err := retry.Do(ctx, c.retry, func(ctx context.Context) error {
		err := c.post(ctx, message)
		if nerr, ok := err.(*NotificationError); ok && !nerr.IsRetryable() {
			return retry.Permanent(err)
		}
		return err
	})
	if err != nil {
		c.recordFailure()
		log.Warn().Err(err).Msg("Notification failed")
		return err
	}
	c.recordSuccess()
	return nil
}

// SendNotificationAsync sends in the background; failures are only logged.
func (c *Client) SendNotificationAsync(ctx context.Context, message string) {
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		if err := c.SendNotification(ctx, message); err != nil {
			log.Warn().Err(err).Msg("Async notification failed")
		}
	}()
}

// Wait blocks until every async notification has finished.
func (c *Client) Wait() {
	c.inflight.Wait()
}

// NotifyRefreshFailure reports a failed chart refresh without blocking the caller.
func (c *Client) NotifyRefreshFailure(ctx context.Context, view store.View, err error) {
	if !c.enabled {
		return
	}
	message := fmt.Sprintf("Chart refresh failed\nCompany: %s\nMetric: %s\nChat: %d\nError: %v",
		view.Company, view.Metric, view.ChatID, err)
	c.SendNotificationAsync(ctx, message)
}

func (c *Client) post(ctx context.Context, message string) error {
	url := fmt.Sprintf("%s/%s", c.baseURL, c.topic)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(message))
	if err != nil {
		return &NotificationError{Type: "client", Underlying: err}
	}
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("Title", "fin_chart_bot")
	if c.priority != "" {
		req.Header.Set("Priority", c.priority)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NotificationError{Type: "network", Underlying: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return &NotificationError{
			Type:       categorizeHTTPError(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Underlying: fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status),
		}
	}
	log.Debug().Int("status_code", resp.StatusCode).Msg("Notification sent")
	return nil
}

func (c *Client) isCircuitOpen() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.circuitOpen && time.Since(c.lastFailure) > circuitCooldown {
		c.circuitOpen = false
		c.failures = 0
		log.Info().Msg("Circuit breaker moving to half-open state")
	}
	return c.circuitOpen
}

func (c *Client) recordSuccess() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.totalSent++
	c.failures = 0
	c.circuitOpen = false
}

func (c *Client) recordFailure() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.totalFailed++
	c.failures++
	c.lastFailure = time.Now()
	if c.failures >= circuitThreshold && !c.circuitOpen {
		c.circuitOpen = true
		log.Warn().Int("failures", c.failures).Msg("Circuit breaker opened due to consecutive failures")
	}
}

func categorizeHTTPError(statusCode int) string {
	switch {
	case statusCode == 401 || statusCode == 403:
		return "auth"
	case statusCode == 429:
		return "rate_limit"
	case statusCode >= 400 && statusCode < 500:
		return "client"
	default:
		return "server"
	}
}

// GetMetrics returns the number of delivered and failed notifications.
func (c *Client) GetMetrics() (sent, failed int64) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.totalSent, c.totalFailed
}

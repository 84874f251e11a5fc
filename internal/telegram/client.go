package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"fin_chart_bot/internal/bot"
	"fin_chart_bot/internal/config"
	"fin_chart_bot/internal/retry"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

var (
	_ bot.Transport    = (*Client)(nil)
	_ bot.Acknowledger = (*Client)(nil)
)

// maxCallbackData is the Telegram limit for inline button data, in bytes.
const maxCallbackData = 64

// Client wraps two BotAPI values with one identity: api long-polls, sendAPI
// makes outbound calls with an HTTP timeout of retry.Timeout, since tgbotapi
// calls take no context.
type Client struct {
	api          *tgbotapi.BotAPI
	sendAPI      *tgbotapi.BotAPI
	limiter      *rate.Limiter
	retry        retry.Config
	apiCallCount int64
	apiCallMutex sync.Mutex
}

type Options struct {
	// Endpoint overrides tgbotapi.APIEndpoint, e.g. for a local Bot API server.
	Endpoint   string
	HTTPClient *http.Client
	// RequestsPerSecond caps outbound calls; zero means 25.
	RequestsPerSecond float64
	// Retry defaults to config.DefaultResilienceConfig.Transport. Its Timeout
	// bounds each outbound call; long polling keeps HTTPClient's timeout.
	Retry retry.Config
}

// NewClient authenticates the token with getMe and fails if it is rejected.
func NewClient(token string, opts Options) (*Client, error) {
	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 70 * time.Second}
	}
	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 25
	}
	retryCfg := opts.Retry
	if retryCfg.Timeout <= 0 {
		retryCfg = config.DefaultResilienceConfig.Transport
	}

	api, err := tgbotapi.NewBotAPIWithClient(token, endpoint, httpClient)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot api: %w", err)
	}
	log.Debug().Str("username", api.Self.UserName).Msg("Authorized bot")

	sendAPI := *api
	sendAPI.Client = &http.Client{
		Transport: httpClient.Transport,
		Jar:       httpClient.Jar,
		Timeout:   retryCfg.Timeout,
	}

	return &Client{
		api:     api,
		sendAPI: &sendAPI,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		retry:   retryCfg,
	}, nil
}

// IncrementAPICall safely increments the API call counter
func (c *Client) IncrementAPICall() {
	c.apiCallMutex.Lock()
	c.apiCallCount++
	c.apiCallMutex.Unlock()
}

// GetAPICallCount returns the current API call count
func (c *Client) GetAPICallCount() int64 {
	c.apiCallMutex.Lock()
	defer c.apiCallMutex.Unlock()
	return c.apiCallCount
}

func (c *Client) UserName() string {
	return c.api.Self.UserName
}

func (c *Client) SendMenu(ctx context.Context, chatID int64, text string, options []bot.Option) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if rows := keyboardRows(options); len(rows) > 0 {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	}
	_, err := c.send(ctx, "sendMessage", msg)
	return err
}

func (c *Client) SendText(ctx context.Context, chatID int64, text string) error {
	_, err := c.send(ctx, "sendMessage", tgbotapi.NewMessage(chatID, text))
	return err
}

func (c *Client) SendPhoto(ctx context.Context, chatID int64, png []byte, caption string) (bot.MessageRef, error) {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "chart.png", Bytes: png})
	photo.Caption = caption

	msg, err := c.send(ctx, "sendPhoto", photo)
	if err != nil {
		return bot.MessageRef{}, err
	}
	ref := bot.MessageRef{ChatID: chatID, MessageID: msg.MessageID}
	if msg.Chat != nil {
		ref.ChatID = msg.Chat.ID
	}
	return ref, nil
}

func (c *Client) DeleteMessage(ctx context.Context, ref bot.MessageRef) error {
	return c.request(ctx, "deleteMessage", tgbotapi.NewDeleteMessage(ref.ChatID, ref.MessageID))
}

func (c *Client) AnswerSelection(ctx context.Context, selectionID string) error {
	return c.request(ctx, "answerCallbackQuery", tgbotapi.NewCallback(selectionID, ""))
}

func (c *Client) send(ctx context.Context, method string, chattable tgbotapi.Chattable) (tgbotapi.Message, error) {
	return retry.WithRetry(ctx, c.retry, func(ctx context.Context) (tgbotapi.Message, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return tgbotapi.Message{}, err
		}
		c.IncrementAPICall()
		msg, err := c.sendAPI.Send(chattable)
		if err != nil {
			log.Debug().Err(err).Str("method", method).Msg("Telegram call failed")
			return tgbotapi.Message{}, classify(method, err)
		}
		return msg, nil
	})
}

func (c *Client) request(ctx context.Context, method string, chattable tgbotapi.Chattable) error {
	return retry.Do(ctx, c.retry, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		c.IncrementAPICall()
		if _, err := c.sendAPI.Request(chattable); err != nil {
			log.Debug().Err(err).Str("method", method).Msg("Telegram call failed")
			return classify(method, err)
		}
		return nil
	})
}

// APIError is a Telegram error response.
type APIError struct {
	Method     string
	Code       int
	Message    string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s failed [%d]: %s", e.Method, e.Code, e.Message)
}

func (e *APIError) RetryDelay() time.Duration { return e.RetryAfter }

// classify turns Telegram error responses into APIError; client errors other
// than flood control are not retried.
func classify(method string, err error) error {
	var tgErr *tgbotapi.Error
	if !errors.As(err, &tgErr) {
		return fmt.Errorf("telegram %s failed: %w", method, err)
	}
	apiErr := &APIError{
		Method:     method,
		Code:       tgErr.Code,
		Message:    tgErr.Message,
		RetryAfter: time.Duration(tgErr.RetryAfter) * time.Second,
	}
	if apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500 {
		return apiErr
	}
	return retry.Permanent(apiErr)
}

func keyboardRows(options []bot.Option) [][]tgbotapi.InlineKeyboardButton {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(options))
	for _, opt := range options {
		if len(opt.Data) > maxCallbackData {
			log.Warn().Str("label", opt.Label).Int("bytes", len(opt.Data)).Msg("Menu option data too long; skipping")
			continue
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(opt.Label, opt.Data)))
	}
	return rows
}

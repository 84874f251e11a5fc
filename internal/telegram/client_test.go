package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"fin_chart_bot/internal/bot"
	"fin_chart_bot/internal/retry"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "123:abc"

// fakeBotAPI answers Bot API methods with canned JSON bodies.
type fakeBotAPI struct {
	mu        sync.Mutex
	responses map[string]string
	calls     []string
	forms     []map[string]string
}

func (f *fakeBotAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	f.calls = append(f.calls, method)

	form := map[string]string{}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if err := r.ParseMultipartForm(1 << 20); err == nil {
			for k, v := range r.MultipartForm.Value {
				form[k] = v[0]
			}
		}
	} else if err := r.ParseForm(); err == nil {
		for k, v := range r.PostForm {
			form[k] = v[0]
		}
	}
	f.forms = append(f.forms, form)

	body, ok := f.responses[method]
	if !ok {
		body = `{"ok":true,"result":true}`
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}

func (f *fakeBotAPI) lastForm() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.forms[len(f.forms)-1]
}

func newTestClient(t *testing.T, responses map[string]string) (*Client, *fakeBotAPI) {
	t.Helper()
	api := &fakeBotAPI{responses: map[string]string{
		"getMe": `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Charts","username":"charts_bot"}}`,
	}}
	for k, v := range responses {
		api.responses[k] = v
	}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	c, err := NewClient(testToken, Options{
		Endpoint:          srv.URL + "/bot%s/%s",
		HTTPClient:        srv.Client(),
		RequestsPerSecond: 1000,
		Retry:             retry.Config{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Timeout: 5 * time.Second},
	})
	require.NoError(t, err)
	return c, api
}

func TestNewClientAuthorizes(t *testing.T) {
	c, api := newTestClient(t, nil)
	assert.Equal(t, "charts_bot", c.UserName())
	assert.Equal(t, []string{"getMe"}, api.calls)
}

func TestSendPhotoReturnsMessageRef(t *testing.T) {
	c, api := newTestClient(t, map[string]string{
		"sendPhoto": `{"ok":true,"result":{"message_id":42,"date":0,"chat":{"id":500,"type":"private"}}}`,
	})

	ref, err := c.SendPhoto(context.Background(), 500, []byte("png"), "подпись")
	require.NoError(t, err)
	assert.Equal(t, bot.MessageRef{ChatID: 500, MessageID: 42}, ref)
	assert.Equal(t, "подпись", api.lastForm()["caption"])
	assert.Equal(t, int64(1), c.GetAPICallCount())
}

func TestSendMenuBuildsInlineKeyboard(t *testing.T) {
	c, api := newTestClient(t, map[string]string{
		"sendMessage": `{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":500,"type":"private"}}}`,
	})

	err := c.SendMenu(context.Background(), 500, "Выберите компанию:", []bot.Option{
		{Label: "Ромашки", Data: "company_Ромашки"},
		{Label: "Слишком длинная", Data: "company_" + strings.Repeat("я", 40)},
	})
	require.NoError(t, err)

	form := api.lastForm()
	assert.Equal(t, "Выберите компанию:", form["text"])
	assert.Contains(t, form["reply_markup"], `"callback_data":"company_Ромашки"`)
	assert.NotContains(t, form["reply_markup"], "Слишком длинная")
}

func TestDeleteMessage(t *testing.T) {
	c, api := newTestClient(t, nil)

	require.NoError(t, c.DeleteMessage(context.Background(), bot.MessageRef{ChatID: 500, MessageID: 42}))
	assert.Equal(t, "deleteMessage", api.calls[len(api.calls)-1])
	assert.Equal(t, "42", api.lastForm()["message_id"])
}

func TestClientErrorIsNotRetried(t *testing.T) {
	c, api := newTestClient(t, map[string]string{
		"sendMessage": `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`,
	})

	err := c.SendText(context.Background(), 500, "текст")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 400, apiErr.Code)
	assert.Equal(t, []string{"getMe", "sendMessage"}, api.calls)
}

func TestServerErrorIsRetried(t *testing.T) {
	c, api := newTestClient(t, map[string]string{
		"deleteMessage": `{"ok":false,"error_code":502,"description":"Bad Gateway"}`,
	})

	err := c.DeleteMessage(context.Background(), bot.MessageRef{ChatID: 500, MessageID: 1})
	require.Error(t, err)
	assert.Equal(t, []string{"getMe", "deleteMessage", "deleteMessage", "deleteMessage"}, api.calls)
}

func TestToEvent(t *testing.T) {
	callback := tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb-9",
		From:    &tgbotapi.User{ID: 77},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 500}},
		Data:    "company_Ромашки",
	}}
	ev, ok := ToEvent(callback)
	require.True(t, ok)
	assert.Equal(t, bot.Event{Kind: bot.EventSelection, ChatID: 500, UserID: 77, Data: "company_Ромашки", SelectionID: "cb-9"}, ev)

	command := tgbotapi.Update{Message: &tgbotapi.Message{
		Text:     "/start",
		Chat:     &tgbotapi.Chat{ID: 500},
		From:     &tgbotapi.User{ID: 77},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: 6}},
	}}
	ev, ok = ToEvent(command)
	require.True(t, ok)
	assert.Equal(t, bot.Event{Kind: bot.EventCommand, ChatID: 500, UserID: 77, Command: "start"}, ev)

	_, ok = ToEvent(tgbotapi.Update{Message: &tgbotapi.Message{Text: "привет", Chat: &tgbotapi.Chat{ID: 500}}})
	assert.False(t, ok)
}

func TestSendIsBoundedByRetryTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if strings.HasSuffix(r.URL.Path, "/getMe") {
			_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"username":"charts_bot"}}`))
			return
		}
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
	}))
	defer srv.Close()

	c, err := NewClient(testToken, Options{
		Endpoint:          srv.URL + "/bot%s/%s",
		HTTPClient:        srv.Client(),
		RequestsPerSecond: 1000,
		Retry:             retry.Config{MaxRetries: 0, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Timeout: 50 * time.Millisecond},
	})
	require.NoError(t, err)

	start := time.Now()
	err = c.DeleteMessage(context.Background(), bot.MessageRef{ChatID: 500, MessageID: 1})
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

package bot

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"fin_chart_bot/internal/store"
	"fin_chart_bot/internal/table"

	"github.com/stretchr/testify/require"
)

type sentMenu struct {
	ChatID  int64
	Text    string
	Options []Option
}

type sentPhoto struct {
	ChatID  int64
	PNG     []byte
	Caption string
}

// fakeTransport records outbound calls and hands out increasing message ids.
type fakeTransport struct {
	mu           sync.Mutex
	nextID       int
	menus        []sentMenu
	photos       []sentPhoto
	texts        []string
	deleted      []MessageRef
	photoErr     error
	deleteErr    error
	acknowledged []string
}

func (f *fakeTransport) SendMenu(ctx context.Context, chatID int64, text string, options []Option) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.menus = append(f.menus, sentMenu{ChatID: chatID, Text: text, Options: options})
	return nil
}

func (f *fakeTransport) SendPhoto(ctx context.Context, chatID int64, png []byte, caption string) (MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.photoErr != nil {
		return MessageRef{}, f.photoErr
	}
	f.nextID++
	f.photos = append(f.photos, sentPhoto{ChatID: chatID, PNG: png, Caption: caption})
	return MessageRef{ChatID: chatID, MessageID: 100 + f.nextID}, nil
}

func (f *fakeTransport) SendText(ctx context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeTransport) DeleteMessage(ctx context.Context, ref MessageRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, ref)
	return f.deleteErr
}

func (f *fakeTransport) AnswerSelection(ctx context.Context, selectionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acknowledged = append(f.acknowledged, selectionID)
	return nil
}

func (f *fakeTransport) lastMenu() sentMenu {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.menus) == 0 {
		return sentMenu{}
	}
	return f.menus[len(f.menus)-1]
}

func (f *fakeTransport) textCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.texts)
}

type renderCall struct {
	Company string
	Metric  string
	Value   table.Value
}

// recordingRenderer remembers what it was asked to draw.
type recordingRenderer struct {
	calls []renderCall
	err   error
}

func (r *recordingRenderer) Render(company, metric string, v table.Value) ([]byte, error) {
	r.calls = append(r.calls, renderCall{Company: company, Metric: metric, Value: v})
	if r.err != nil {
		return nil, r.err
	}
	return []byte("png"), nil
}

type recordingAlerter struct {
	errs []error
}

func (a *recordingAlerter) NotifyRefreshFailure(ctx context.Context, view store.View, err error) {
	a.errs = append(a.errs, err)
}

var errRender = errors.New("render failed")

// newFixtures builds a fixture workbook and an empty view store in a temp dir.
func newFixtures(t *testing.T) (*table.Manager, *store.Store, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "financials.xlsx")
	tm := table.NewManager(table.NewXLSX(path))
	require.NoError(t, tm.CreateWithFixtures(context.Background()))

	views, err := store.New(context.Background(), filepath.Join(dir, "messages.db"))
	require.NoError(t, err)
	return tm, views, path
}

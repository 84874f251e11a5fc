package bot

import (
	"context"

	"fin_chart_bot/internal/store"
	"fin_chart_bot/internal/table"
)

type EventKind int

const (
	EventCommand EventKind = iota + 1
	EventSelection
)

// Event is an inbound chat action: a slash command or a menu tap.
type Event struct {
	Kind    EventKind
	ChatID  int64
	UserID  int64
	Command string // without the leading slash
	Data    string // menu option data
	// SelectionID identifies the tap for acknowledgement by the transport.
	SelectionID string
}

// Option is one selectable menu entry.
type Option struct {
	Label string
	Data  string
}

// MessageRef identifies a sent chat message.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

type Transport interface {
	SendMenu(ctx context.Context, chatID int64, text string, options []Option) error
	SendPhoto(ctx context.Context, chatID int64, png []byte, caption string) (MessageRef, error)
	SendText(ctx context.Context, chatID int64, text string) error
	DeleteMessage(ctx context.Context, ref MessageRef) error
}

// Acknowledger is implemented by transports that must confirm menu taps.
type Acknowledger interface {
	AnswerSelection(ctx context.Context, selectionID string) error
}

type Companies interface {
	CompanyNames(ctx context.Context) ([]string, error)
	CompanyValue(ctx context.Context, company, metric string) (table.Value, error)
}

type Renderer interface {
	Render(company, metric string, v table.Value) ([]byte, error)
}

type Views interface {
	Save(ctx context.Context, v store.View) error
	Latest(ctx context.Context) (store.View, bool, error)
	UpdateMessageID(ctx context.Context, chatID int64, company, metric string, messageID int) (int64, error)
}

// Alerter forwards operator-facing failures. A nil Alerter is allowed.
type Alerter interface {
	NotifyRefreshFailure(ctx context.Context, view store.View, err error)
}

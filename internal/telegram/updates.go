package telegram

import (
	"context"

	"fin_chart_bot/internal/bot"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
)

// Updates long-polls Telegram and converts updates into bot events. The
// returned channel is closed after ctx is cancelled.
func (c *Client) Updates(ctx context.Context) <-chan bot.Event {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := c.api.GetUpdatesChan(u)

	events := make(chan bot.Event)
	go func() {
		defer close(events)
		for {
			select {
			case <-ctx.Done():
				c.api.StopReceivingUpdates()
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				ev, ok := ToEvent(update)
				if !ok {
					log.Debug().Int("update_id", update.UpdateID).Msg("Skipping unsupported update")
					continue
				}
				select {
				case events <- ev:
				case <-ctx.Done():
					c.api.StopReceivingUpdates()
					return
				}
			}
		}
	}()
	return events
}

// ToEvent maps a command message or a callback query to an event.
func ToEvent(update tgbotapi.Update) (bot.Event, bool) {
	switch {
	case update.CallbackQuery != nil:
		cq := update.CallbackQuery
		if cq.Message == nil || cq.Message.Chat == nil {
			return bot.Event{}, false
		}
		ev := bot.Event{
			Kind:        bot.EventSelection,
			ChatID:      cq.Message.Chat.ID,
			Data:        cq.Data,
			SelectionID: cq.ID,
		}
		if cq.From != nil {
			ev.UserID = cq.From.ID
		}
		return ev, true
	case update.Message != nil && update.Message.IsCommand():
		msg := update.Message
		if msg.Chat == nil {
			return bot.Event{}, false
		}
		ev := bot.Event{
			Kind:    bot.EventCommand,
			ChatID:  msg.Chat.ID,
			Command: msg.Command(),
		}
		if msg.From != nil {
			ev.UserID = msg.From.ID
		}
		return ev, true
	}
	return bot.Event{}, false
}

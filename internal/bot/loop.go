package bot

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

const DefaultRefreshInterval = 60 * time.Second

// Loop drives interactive events and the refresh job from one goroutine, so a
// menu handler and a refresh never run at the same time.
type Loop struct {
	controller *Controller
	refresher  *Refresher
	ack        Acknowledger
	interval   time.Duration
}

func NewLoop(controller *Controller, refresher *Refresher, ack Acknowledger, interval time.Duration) *Loop {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Loop{controller: controller, refresher: refresher, ack: ack, interval: interval}
}

// Run refreshes immediately, then every interval, handling events in between.
// It returns when ctx is cancelled or events is closed.
func (l *Loop) Run(ctx context.Context, events <-chan Event) error {
	log.Info().Dur("interval", l.interval).Msg("Starting event loop. Refreshing immediately and then every interval...")

	l.refresh(ctx)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Event loop stopped")
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				log.Info().Msg("Event channel closed")
				return nil
			}
			l.handle(ctx, ev)
		case <-ticker.C:
			l.refresh(ctx)
		}
	}
}

func (l *Loop) handle(ctx context.Context, ev Event) {
	if ev.Kind == EventSelection && l.ack != nil && ev.SelectionID != "" {
		if err := l.ack.AnswerSelection(ctx, ev.SelectionID); err != nil {
			log.Debug().Err(err).Msg("Failed to acknowledge selection")
		}
	}
	if err := l.controller.HandleEvent(ctx, ev); err != nil {
		log.Error().Err(err).Int64("chat_id", ev.ChatID).Msg("Failed to handle event")
	}
}

func (l *Loop) refresh(ctx context.Context) {
	if err := l.refresher.RefreshOnce(ctx); err != nil {
		log.Warn().Err(err).Msg("Refresh failed")
	}
}

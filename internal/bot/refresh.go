package bot

import (
	"context"
	"fmt"

	"fin_chart_bot/internal/store"

	"github.com/rs/zerolog/log"
)

// Refresher re-renders the most recently saved view in place.
type Refresher struct {
	companies Companies
	renderer  Renderer
	views     Views
	transport Transport
	alerts    Alerter
}

func NewRefresher(companies Companies, renderer Renderer, views Views, transport Transport, alerts Alerter) *Refresher {
	return &Refresher{
		companies: companies,
		renderer:  renderer,
		views:     views,
		transport: transport,
		alerts:    alerts,
	}
}

// RefreshOnce deletes the latest chart message and sends a fresh one with the
// current value. Failures are reported to the chat and to operator alerts;
// the returned error is only for logging.
func (r *Refresher) RefreshOnce(ctx context.Context) error {
	view, ok, err := r.views.Latest(ctx)
	if err != nil {
		return fmt.Errorf("failed to read latest view: %w", err)
	}
	if !ok {
		log.Debug().Msg("No view to refresh")
		return nil
	}

	if err := r.refresh(ctx, view); err != nil {
		r.alert(ctx, view, err)
		if sendErr := r.transport.SendText(ctx, view.ChatID, textRefreshFailed(err)); sendErr != nil {
			log.Warn().Err(sendErr).Int64("chat_id", view.ChatID).Msg("Failed to report refresh error to chat")
		}
		return err
	}
	return nil
}

func (r *Refresher) refresh(ctx context.Context, view store.View) error {
	png, value, err := renderChart(ctx, r.companies, r.renderer, view.Company, view.Metric)
	if err != nil {
		logLookupFailure(err, view.Company, view.Metric)
		return err
	}

	old := MessageRef{ChatID: view.ChatID, MessageID: view.MessageID}
	if err := r.transport.DeleteMessage(ctx, old); err != nil {
		log.Warn().
			Err(err).
			Int64("chat_id", old.ChatID).
			Int("message_id", old.MessageID).
			Msg("Failed to delete previous chart")
	}

	ref, err := r.transport.SendPhoto(ctx, view.ChatID, png, caption(value))
	if err != nil {
		return fmt.Errorf("failed to send chart: %w", err)
	}

	if _, err := r.views.UpdateMessageID(ctx, view.ChatID, view.Company, view.Metric, ref.MessageID); err != nil {
		return fmt.Errorf("failed to record refreshed chart: %w", err)
	}
	log.Info().
		Int64("chat_id", view.ChatID).
		Int("message_id", ref.MessageID).
		Str("company", view.Company).
		Str("metric", view.Metric).
		Str("value", value.String()).
		Msg("Chart refreshed")
	return nil
}

func (r *Refresher) alert(ctx context.Context, view store.View, err error) {
	if r.alerts == nil {
		return
	}
	r.alerts.NotifyRefreshFailure(ctx, view, err)
}

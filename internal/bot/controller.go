package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fin_chart_bot/internal/store"
	"fin_chart_bot/internal/table"

	"github.com/rs/zerolog/log"
)

// Controller runs the menu flow: start, choose company, choose metric, chart.
type Controller struct {
	companies Companies
	renderer  Renderer
	views     Views
	transport Transport
	sessions  *Sessions
}

func NewController(companies Companies, renderer Renderer, views Views, transport Transport) *Controller {
	return &Controller{
		companies: companies,
		renderer:  renderer,
		views:     views,
		transport: transport,
		sessions:  NewSessions(),
	}
}

// HandleEvent dispatches one inbound event. Lookup and render failures are
// answered in the chat; the returned error is a transport failure.
func (c *Controller) HandleEvent(ctx context.Context, ev Event) error {
	log.Debug().
		Int64("chat_id", ev.ChatID).
		Int64("user_id", ev.UserID).
		Str("command", ev.Command).
		Str("data", ev.Data).
		Msg("Handling event")

	switch ev.Kind {
	case EventCommand:
		if ev.Command != CommandStart {
			log.Debug().Str("command", ev.Command).Msg("Ignoring unknown command")
			return nil
		}
		return c.transport.SendMenu(ctx, ev.ChatID, textWelcome, chooseCompanyMenu)
	case EventSelection:
		return c.handleSelection(ctx, ev)
	default:
		return fmt.Errorf("unknown event kind %d", ev.Kind)
	}
}

func (c *Controller) handleSelection(ctx context.Context, ev Event) error {
	if ev.Data == dataChooseCompany {
		return c.chooseCompany(ctx, ev)
	}
	if company, ok := strings.CutPrefix(ev.Data, prefixCompany); ok {
		return c.chooseMetric(ctx, ev, company)
	}
	if metric, ok := strings.CutPrefix(ev.Data, prefixColumn); ok {
		return c.showData(ctx, ev, metric)
	}
	log.Debug().Str("data", ev.Data).Msg("Ignoring unknown selection")
	return nil
}

func (c *Controller) chooseCompany(ctx context.Context, ev Event) error {
	names, err := c.companies.CompanyNames(ctx)
	if err != nil {
		log.Warn().Err(err).Int64("chat_id", ev.ChatID).Msg("Failed to list companies")
		return c.transport.SendMenu(ctx, ev.ChatID, textFetchFailed(err), chooseCompanyMenu)
	}
	options := companyMenu(names)
	if len(options) == 0 {
		return c.transport.SendText(ctx, ev.ChatID, textNoCompanies)
	}
	return c.transport.SendMenu(ctx, ev.ChatID, textChooseCompany, options)
}

func (c *Controller) chooseMetric(ctx context.Context, ev Event, company string) error {
	c.sessions.SetCompany(ev.UserID, company)
	log.Debug().Int64("user_id", ev.UserID).Str("company", company).Msg("Company chosen")
	return c.transport.SendMenu(ctx, ev.ChatID, textCompanyChosen(company), metricMenu)
}

func (c *Controller) showData(ctx context.Context, ev Event, metric string) error {
	company, ok := c.sessions.Company(ev.UserID)
	if !ok {
		return c.transport.SendMenu(ctx, ev.ChatID, textNeedCompany, chooseCompanyMenu)
	}

	png, value, err := renderChart(ctx, c.companies, c.renderer, company, metric)
	if err != nil {
		logLookupFailure(err, company, metric)
		return c.transport.SendMenu(ctx, ev.ChatID, textFetchFailed(err), chooseCompanyMenu)
	}

	ref, err := c.transport.SendPhoto(ctx, ev.ChatID, png, caption(value))
	if err != nil {
		return fmt.Errorf("failed to send chart: %w", err)
	}

	view := store.View{ChatID: ref.ChatID, MessageID: ref.MessageID, Company: company, Metric: metric}
	if err := c.views.Save(ctx, view); err != nil {
		log.Error().Err(err).Int64("chat_id", ref.ChatID).Msg("Failed to save view; chart will not be refreshed")
		return nil
	}
	log.Info().
		Int64("chat_id", ref.ChatID).
		Int("message_id", ref.MessageID).
		Str("company", company).
		Str("metric", metric).
		Str("value", value.String()).
		Msg("Chart sent")
	return nil
}

func renderChart(ctx context.Context, companies Companies, renderer Renderer, company, metric string) ([]byte, table.Value, error) {
	value, err := companies.CompanyValue(ctx, company, metric)
	if err != nil {
		return nil, table.Value{}, err
	}
	png, err := renderer.Render(company, metric, value)
	if err != nil {
		return nil, table.Value{}, err
	}
	return png, value, nil
}

func caption(v table.Value) string {
	if v.Valid {
		return ""
	}
	return textValueMissing
}

func logLookupFailure(err error, company, metric string) {
	var lookupErr *table.LookupError
	if errors.As(err, &lookupErr) {
		log.Info().
			Str("kind", lookupErr.Kind.String()).
			Str("company", company).
			Str("metric", metric).
			Msg("Lookup failed")
		return
	}
	log.Warn().Err(err).Str("company", company).Str("metric", metric).Msg("Failed to build chart")
}

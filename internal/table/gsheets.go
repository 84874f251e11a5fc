package table

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"fin_chart_bot/internal/config"
	"fin_chart_bot/internal/retry"

	"github.com/rs/zerolog/log"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// GoogleSheets is a Backend over one tab of a remote spreadsheet. Google
// recalculates formulas on write, so both read modes return the same values.
type GoogleSheets struct {
	service       *sheets.Service
	spreadsheetID string
	sheet         string
	readRetry     retry.Config
}

func NewGoogleSheets(ctx context.Context, spreadsheetID, sheet string, opts ...option.ClientOption) (*GoogleSheets, error) {
	service, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &GoogleSheets{
		service:       service,
		spreadsheetID: spreadsheetID,
		sheet:         sheet,
		readRetry:     config.DefaultResilienceConfig.SheetRead,
	}, nil
}

// ErrSpreadsheetNotFound means the spreadsheet id is unknown or not shared
// with the service account. Tabs can be added; spreadsheets are not created.
var ErrSpreadsheetNotFound = errors.New("spreadsheet not found")

// Exists reports whether the configured tab is present. A missing
// spreadsheet is reported as ErrSpreadsheetNotFound.
func (g *GoogleSheets) Exists(ctx context.Context) (bool, error) {
	resp, err := g.service.Spreadsheets.Get(g.spreadsheetID).
		Fields("sheets.properties.title").
		Context(ctx).
		Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
			return false, fmt.Errorf("%w: %s (share it with the service account)", ErrSpreadsheetNotFound, g.spreadsheetID)
		}
		return false, fmt.Errorf("failed to get spreadsheet: %w", err)
	}
	for _, s := range resp.Sheets {
		if s.Properties != nil && s.Properties.Title == g.sheet {
			return true, nil
		}
	}
	return false, nil
}

// Create adds the tab when it is missing, then replaces its contents.
func (g *GoogleSheets) Create(ctx context.Context, header []string, rows [][]interface{}) error {
	present, err := g.Exists(ctx)
	if err != nil {
		return err
	}
	if !present {
		if err := g.addTab(ctx); err != nil {
			return err
		}
	}

	_, err = g.service.Spreadsheets.Values.Clear(g.spreadsheetID, g.a1(""), &sheets.ClearValuesRequest{}).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to clear sheet: %w", err)
	}

	values := make([][]interface{}, 0, len(rows)+1)
	head := make([]interface{}, len(header))
	for i, h := range header {
		head[i] = h
	}
	values = append(values, head)
	values = append(values, rows...)

	_, err = g.service.Spreadsheets.Values.Update(g.spreadsheetID, g.a1("A1"), &sheets.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to update range: %w", err)
	}
	log.Debug().Str("spreadsheet_id", g.spreadsheetID).Int("rows", len(rows)).Msg("Sheet created")
	return nil
}

func (g *GoogleSheets) addTab(ctx context.Context) error {
	_, err := g.service.Spreadsheets.BatchUpdate(g.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: g.sheet},
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to add sheet %q: %w", g.sheet, err)
	}
	log.Info().Str("spreadsheet_id", g.spreadsheetID).Str("sheet", g.sheet).Msg("Added missing sheet")
	return nil
}

func (g *GoogleSheets) ReadValues(ctx context.Context, mode ReadMode) ([][]string, error) {
	resp, err := retry.WithRetry(ctx, g.readRetry, func(ctx context.Context) (*sheets.ValueRange, error) {
		resp, err := g.service.Spreadsheets.Values.Get(g.spreadsheetID, g.a1("")).
			ValueRenderOption("UNFORMATTED_VALUE").
			Context(ctx).
			Do()
		return resp, classifyAPIError(err)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet: %w", err)
	}

	rows := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		rows[i] = make([]string, len(row))
		for j, v := range row {
			rows[i][j] = formatCell(v)
		}
	}
	return rows, nil
}

func (g *GoogleSheets) SetFormulas(ctx context.Context, formulas map[string]string) error {
	cells := make([]string, 0, len(formulas))
	for cell := range formulas {
		cells = append(cells, cell)
	}
	sort.Strings(cells)

	data := make([]*sheets.ValueRange, 0, len(cells))
	for _, cell := range cells {
		data = append(data, &sheets.ValueRange{
			Range:  g.a1(cell),
			Values: [][]interface{}{{formulas[cell]}},
		})
	}

	_, err := g.service.Spreadsheets.Values.BatchUpdate(g.spreadsheetID, &sheets.BatchUpdateValuesRequest{
		ValueInputOption: "USER_ENTERED",
		Data:             data,
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to write formulas: %w", err)
	}
	return nil
}

// a1 builds a range in A1 notation on the configured tab; an empty cell
// addresses the whole tab.
func (g *GoogleSheets) a1(cell string) string {
	name := "'" + strings.ReplaceAll(g.sheet, "'", "''") + "'"
	if cell == "" {
		return name
	}
	return name + "!" + cell
}

func formatCell(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// classifyAPIError marks client errors other than rate limiting as permanent.
func classifyAPIError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code >= 400 && apiErr.Code < 500 && apiErr.Code != http.StatusTooManyRequests {
		return retry.Permanent(err)
	}
	return err
}

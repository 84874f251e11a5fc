package table

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Header labels. Lookups match them exactly, by scanning the header row.
const (
	ColumnName    = "Название"
	MetricIncome  = "Доход"
	MetricExpense = "Расход"
	MetricProfit  = "Прибыль"
	MetricTax     = "КПН"
)

var Header = []string{ColumnName, MetricIncome, MetricExpense, MetricProfit, MetricTax}

// Fixtures are the seed companies written by CreateWithFixtures, in insertion order.
var Fixtures = [][]interface{}{
	{"Рога и копыта", 6000000, 800000, 0, 15},
	{"Ромашки", 5000000, 700000, 0, 20},
	{"Моя оборона", 4000000, 600000, 0, 25},
}

// ReadMode selects how formula cells are read.
type ReadMode int

const (
	// ReadCached returns the last value computed by a spreadsheet engine.
	// A formula that was written but never recalculated reads back empty.
	ReadCached ReadMode = iota
	// ReadRecalculated evaluates formulas at read time.
	ReadRecalculated
)

func (m ReadMode) String() string {
	if m == ReadRecalculated {
		return "recalculated"
	}
	return "cached"
}

// Backend is a single-sheet tabular store. Every call opens and releases the
// underlying resource; nothing is held between calls.
type Backend interface {
	Exists(ctx context.Context) (bool, error)
	// Create replaces the sheet with header followed by rows.
	Create(ctx context.Context, header []string, rows [][]interface{}) error
	// ReadValues returns the whole sheet as text, header row first.
	ReadValues(ctx context.Context, mode ReadMode) ([][]string, error)
	// SetFormulas writes formula expressions (leading "=") keyed by A1 cell
	// name, without evaluating them.
	SetFormulas(ctx context.Context, formulas map[string]string) error
}

// Value is a metric cell. Valid is false when the cell is empty or not numeric.
type Value struct {
	Amount decimal.Decimal
	Valid  bool
}

func (v Value) Float64() float64 {
	f, _ := v.Amount.Float64()
	return f
}

func (v Value) String() string {
	if !v.Valid {
		return "<empty>"
	}
	return v.Amount.String()
}

type Manager struct {
	backend Backend
	mode    ReadMode
}

type Option func(*Manager)

// WithReadMode sets the read mode used by CompanyNames and CompanyValue.
func WithReadMode(mode ReadMode) Option {
	return func(m *Manager) { m.mode = mode }
}

func NewManager(backend Backend, opts ...Option) *Manager {
	m := &Manager{backend: backend, mode: ReadCached}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Exists reports whether the backing spreadsheet is present.
func (m *Manager) Exists(ctx context.Context) (bool, error) {
	return m.backend.Exists(ctx)
}

// CreateWithFixtures overwrites the spreadsheet with the header and fixture
// rows, then writes the profit formula into every empty or zero profit cell.
func (m *Manager) CreateWithFixtures(ctx context.Context) error {
	log.Debug().Int("rows", len(Fixtures)).Msg("Creating table with fixtures")
	if err := m.backend.Create(ctx, Header, Fixtures); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	rows, err := m.backend.ReadValues(ctx, ReadCached)
	if err != nil {
		return fmt.Errorf("failed to read table after create: %w", err)
	}
	formulas, err := profitFormulas(rows)
	if err != nil {
		return err
	}
	if len(formulas) == 0 {
		return nil
	}
	if err := m.backend.SetFormulas(ctx, formulas); err != nil {
		return fmt.Errorf("failed to write profit formulas: %w", err)
	}
	log.Info().Int("formulas", len(formulas)).Msg("Table created with fixtures")
	return nil
}

// CompanyNames returns every value below the name header, top to bottom,
// including empty cells.
func (m *Manager) CompanyNames(ctx context.Context) ([]string, error) {
	rows, err := m.read(ctx)
	if err != nil {
		return nil, err
	}
	nameIdx, err := findColumn(rows, ColumnName)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		names = append(names, cellAt(row, nameIdx))
	}
	log.Debug().Int("companies", len(names)).Msg("Read company names")
	return names, nil
}

// CompanyValue returns the metric cell of the first row whose name equals
// company. The metric header is resolved before any row is scanned.
func (m *Manager) CompanyValue(ctx context.Context, company, metric string) (Value, error) {
	rows, err := m.read(ctx)
	if err != nil {
		return Value{}, err
	}
	metricIdx, err := findColumn(rows, metric)
	if err != nil {
		return Value{}, err
	}
	nameIdx, err := findColumn(rows, ColumnName)
	if err != nil {
		return Value{}, err
	}

	for i, row := range rows[1:] {
		if cellAt(row, nameIdx) != company {
			continue
		}
		raw := strings.TrimSpace(cellAt(row, metricIdx))
		if raw == "" {
			log.Warn().
				Str("company", company).
				Str("metric", metric).
				Int("row", i+2).
				Str("read_mode", m.mode.String()).
				Msg("Cell has no value; formula cells need recalculation by a spreadsheet engine")
			return Value{}, nil
		}
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			log.Warn().
				Str("company", company).
				Str("metric", metric).
				Str("raw", raw).
				Msg("Cell is not numeric")
			return Value{}, nil
		}
		return Value{Amount: amount, Valid: true}, nil
	}
	return Value{}, &LookupError{Kind: KindRecordNotFound, Company: company, Column: metric}
}

func (m *Manager) read(ctx context.Context) ([][]string, error) {
	rows, err := m.backend.ReadValues(ctx, m.mode)
	if err != nil {
		return nil, fmt.Errorf("failed to read table: %w", err)
	}
	return rows, nil
}

// findColumn scans the header row for label.
func findColumn(rows [][]string, label string) (int, error) {
	if len(rows) > 0 {
		for i, cell := range rows[0] {
			if cell == label {
				return i, nil
			}
		}
	}
	return 0, &LookupError{Kind: KindColumnNotFound, Column: label}
}

func cellAt(row []string, idx int) string {
	if idx < len(row) {
		return row[idx]
	}
	return ""
}

// profitFormulas builds (Income - Expense) * (1 - Tax/100) for every data row
// with an empty or zero profit cell, using the column letters found in the header.
func profitFormulas(rows [][]string) (map[string]string, error) {
	cols := make(map[string]int, 4)
	for _, label := range []string{MetricIncome, MetricExpense, MetricProfit, MetricTax} {
		idx, err := findColumn(rows, label)
		if err != nil {
			return nil, err
		}
		cols[label] = idx
	}

	formulas := make(map[string]string)
	for i, row := range rows[1:] {
		sheetRow := i + 2
		raw := strings.TrimSpace(cellAt(row, cols[MetricProfit]))
		if raw != "" {
			if d, err := decimal.NewFromString(raw); err != nil || !d.IsZero() {
				continue
			}
		}
		ref := func(label string) string {
			name, _ := excelize.CoordinatesToCellName(cols[label]+1, sheetRow)
			return name
		}
		formulas[ref(MetricProfit)] = fmt.Sprintf("=(%s-%s)*(1-%s/100)",
			ref(MetricIncome), ref(MetricExpense), ref(MetricTax))
	}
	return formulas, nil
}

package chart

import (
	"bytes"
	"fmt"
	"math"

	"fin_chart_bot/internal/table"

	"github.com/shopspring/decimal"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	DefaultWidth  = 600
	DefaultHeight = 400
)

// Renderer draws a single-bar PNG chart for one company metric.
type Renderer struct {
	Width  int
	Height int
}

func NewRenderer() *Renderer {
	return &Renderer{Width: DefaultWidth, Height: DefaultHeight}
}

// Title is the chart heading, e.g. "Расход компании Ромашки".
func Title(company, metric string) string {
	return fmt.Sprintf("%s компании %s", cases.Title(language.Russian).String(metric), company)
}

// Render returns raw PNG bytes. An absent value is drawn as a zero-height bar.
func (r *Renderer) Render(company, metric string, v table.Value) ([]byte, error) {
	value := 0.0
	label := metric
	if v.Valid {
		value = v.Float64()
	} else {
		label = metric + " (нет данных)"
	}

	lo, hi := axisRange(value)
	graph := chart.BarChart{
		Title:    Title(company, metric),
		Width:    r.Width,
		Height:   r.Height,
		BarWidth: r.Width / 4,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: lo, Max: hi},
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return decimal.NewFromFloat(f).Round(0).String()
				}
				return ""
			},
		},
		Bars: []chart.Value{{
			Value: value,
			Label: label,
			Style: chart.Style{
				FillColor:   drawing.ColorFromHex("2563eb"),
				StrokeColor: drawing.ColorFromHex("1d4ed8"),
				StrokeWidth: 1,
			},
		}},
	}
	if value < 0 {
		graph.UseBaseValue = true
		graph.BaseValue = 0
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}
	return buf.Bytes(), nil
}

// axisRange always spans zero and never collapses to a single point, so a
// zero or absent value still renders.
func axisRange(value float64) (lo, hi float64) {
	lo, hi = math.Min(value, 0), math.Max(value, 0)
	if lo == hi {
		return 0, 1
	}
	return lo * 1.1, hi * 1.1
}

package charts

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/ivanoskov/custody_admin/internal/model"
)

// ChartGenerator рисует PNG-снимки панелей результата.
type ChartGenerator struct {
	Width  int
	Height int
}

func NewChartGenerator() *ChartGenerator {
	return &ChartGenerator{Width: 1200, Height: 600}
}

// EvacuationReport снимок отчёта о выводе средств. Подписи столбцов содержат
// значения в том виде, в каком их вернул сервер.
func (g *ChartGenerator) EvacuationReport(report model.EvacuationReport) ([]byte, error) {
	lines := report.Lines()
	if len(lines) == 0 {
		return nil, errors.New("empty report")
	}

	bars := make([]chart.Value, len(lines))
	top := 0.0
	for i, line := range lines {
		v := line.Value.Float()
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		top = math.Max(top, v)
		bars[i] = chart.Value{
			Label: fmt.Sprintf("%s: %s", line.Label, line.Value),
			Value: v,
			Style: chart.Style{
				FillColor:   barColor(i),
				StrokeColor: barColor(i),
				StrokeWidth: 1,
			},
		}
	}
	// при нулевых значениях диапазон оси не должен схлопываться
	if top < 1 {
		top = 1
	}

	title := "Evacuation report"
	if report.Rail != "" {
		title += " - " + report.Rail.Title()
	}
	if !report.CompletedAt.IsZero() {
		title += " - " + report.CompletedAt.UTC().Format("2006-01-02 15:04:05 UTC")
	}

	graph := chart.BarChart{
		Title:      title,
		Width:      g.Width,
		Height:     g.Height,
		BarWidth:   120,
		BarSpacing: 40,
		Background: chart.Style{
			Padding: chart.Box{
				Top:    60,
				Left:   20,
				Right:  20,
				Bottom: 20,
			},
			FillColor: chart.ColorWhite,
		},
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: 0, Max: top * 1.1},
			ValueFormatter: func(v interface{}) string {
				return fmt.Sprintf("%.0f", v.(float64))
			},
		},
		Bars: bars,
	}

	buffer := bytes.NewBuffer([]byte{})
	if err := graph.Render(chart.PNG, buffer); err != nil {
		return nil, fmt.Errorf("failed to render evacuation report: %w", err)
	}
	return buffer.Bytes(), nil
}

func barColor(i int) drawing.Color {
	palette := []drawing.Color{
		chart.ColorBlue,
		chart.ColorRed,
		chart.ColorGreen,
		chart.ColorOrange,
		chart.ColorYellow,
		chart.ColorLightGray,
	}
	return palette[i%len(palette)]
}

package charts

import (
	"bytes"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivanoskov/custody_admin/internal/model"
)

func TestEvacuationReportRendersPNG(t *testing.T) {
	g := NewChartGenerator()
	report := model.EvacuationReport{
		Rail:                   model.Rail9PSB,
		TotalAccountsProcessed: "12",
		TotalFailures:          "1",
		TotalAmountMoved:       "50000.00",
		TotalChargesIncurred:   "25.5",
		Skipped:                "2",
		AmountSkipped:          "10",
		CompletedAt:            time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC),
	}

	data, err := g.EvacuationReport(report)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 1200, img.Bounds().Dx())
	assert.Equal(t, 600, img.Bounds().Dy())
}

func TestEvacuationReportAllZero(t *testing.T) {
	data, err := NewChartGenerator().EvacuationReport(model.EvacuationReport{})
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

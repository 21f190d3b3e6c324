package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Title:   "Timetable X-A",
		Headers: []string{"Period", "Monday", "Tuesday"},
		Rows: [][]string{
			{"1 (07:00-07:45)", "Mathematics / T. Sari", "Biology / R. Hadi"},
			{"2 (07:45-08:30)", "", "English, Literature / A. Putri"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)
	assert.Equal(t, "Period,Monday,Tuesday\n"+
		"1 (07:00-07:45),Mathematics / T. Sari,Biology / R. Hadi\n"+
		"2 (07:45-08:30),,\"English, Literature / A. Putri\"\n", string(out))
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(sampleDataset())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestExportersRejectRaggedRows(t *testing.T) {
	data := sampleDataset()
	data.Rows = append(data.Rows, []string{"3"})

	_, err := NewCSVExporter().Render(data)
	assert.Error(t, err)
	_, err = NewPDFExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestColumnWidthsHonourMinimum(t *testing.T) {
	widths := columnWidths(Dataset{Headers: []string{"P", "A very long column heading indeed"}, Rows: [][]string{{"1", "x"}}})
	assert.Equal(t, minColWidth, widths[0])
	assert.Greater(t, widths[1], widths[0])
}

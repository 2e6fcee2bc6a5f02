package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVRender(t *testing.T) {
	out, err := NewCSVExporter().Render(Dataset{
		Headers: []string{"name", "subjects"},
		Rows:    [][]string{{"Ada Lovelace", "Math;Science"}, {"Bob, Jr."}},
	})
	require.NoError(t, err)
	assert.Equal(t, "name,subjects\nAda Lovelace,Math;Science\n\"Bob, Jr.\",\n", string(out))
}

func TestCSVRenderRejectsBadInput(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)

	_, err = NewCSVExporter().Render(Dataset{Headers: []string{"a"}, Rows: [][]string{{"1", "2"}}})
	assert.Error(t, err)
}

func TestRenderCard(t *testing.T) {
	out, err := NewPDFExporter().RenderCard(Card{
		Title:    "Élodie Martin",
		Subtitle: "Class 3 B",
		Fields:   []Field{{Label: "Email", Value: "elodie@x.com"}, {Label: "Remarks", Value: ""}},
		Footer:   "generated 2024-09-02",
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}

func TestRenderCardRequiresTitle(t *testing.T) {
	_, err := NewPDFExporter().RenderCard(Card{})
	assert.Error(t, err)
}

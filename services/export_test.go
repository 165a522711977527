package services

import (
	"testing"

	"document-portal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestComparisonWorkbook(t *testing.T) {
	buf, err := ComparisonWorkbook([]models.PageChange{
		{Page: "1", Changes: "Title changed"},
		{Page: "2", Changes: "NO CHANGE"},
	})
	require.NoError(t, err)

	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Comparison"}, f.GetSheetList())
	rows, err := f.GetRows("Comparison")
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Page", "Changes"},
		{"1", "Title changed"},
		{"2", "NO CHANGE"},
	}, rows)
}

func TestComparisonWorkbook_Empty(t *testing.T) {
	buf, err := ComparisonWorkbook(nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Comparison")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Page", "Changes"}}, rows)
}

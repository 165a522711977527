package services

import (
	"bytes"
	"fmt"

	"document-portal/internal/logger"
	"document-portal/models"

	"github.com/xuri/excelize/v2"
)

const (
	comparisonSheet = "Comparison"
	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ComparisonWorkbook renders comparison rows as an XLSX workbook.
func ComparisonWorkbook(changes []models.PageChange) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			logger.Warn("Error closing Excel file", "error", err)
		}
	}()

	index, err := f.NewSheet(comparisonSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to remove default sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	headers := []string{"Page", "Changes"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(comparisonSheet, cell, header)
	}
	if err := f.SetCellStyle(comparisonSheet, "A1", "B1", headerStyle); err != nil {
		return nil, fmt.Errorf("failed to style header: %w", err)
	}

	for i, c := range changes {
		row := i + 2
		f.SetCellValue(comparisonSheet, fmt.Sprintf("A%d", row), c.Page)
		f.SetCellValue(comparisonSheet, fmt.Sprintf("B%d", row), c.Changes)
	}

	f.SetColWidth(comparisonSheet, "A", "A", 10)
	f.SetColWidth(comparisonSheet, "B", "B", 100)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf, nil
}

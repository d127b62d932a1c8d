// Package export writes the operator report of completed applications
// as an Excel workbook.
package export

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/arxmedia/resume-screener/internal/models"
	"github.com/arxmedia/resume-screener/internal/schema"
)

// ExportCompleted generates an Excel file listing completed
// applications with their collected fields and background check notes.
func ExportCompleted(states []models.ThreadState, checks map[string]models.BackgroundCheck, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()

	if !strings.HasSuffix(strings.ToLower(outputPath), ".xlsx") {
		outputPath = outputPath + ".xlsx"
	}
	outputPath = filepath.Clean(outputPath)

	summarySheet := "Summary"
	applicantsSheet := "Applicants"

	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(applicantsSheet)

	if err := createSummarySheet(f, summarySheet, states); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}
	if err := createApplicantsSheet(f, applicantsSheet, states, checks); err != nil {
		return fmt.Errorf("failed to create applicants sheet: %w", err)
	}

	if err := f.SaveAs(outputPath); err != nil {
		// If direct save fails, try buffer write fallback
		var buf bytes.Buffer
		if writeErr := f.Write(&buf); writeErr != nil {
			return fmt.Errorf("failed to save Excel file: direct save failed (%v), buffer write also failed: %w", err, writeErr)
		}
		if fileErr := os.WriteFile(outputPath, buf.Bytes(), 0644); fileErr != nil {
			return fmt.Errorf("failed to save Excel file: direct save failed (%v), file write failed: %w", err, fileErr)
		}
	}

	return nil
}

func createSummarySheet(f *excelize.File, sheetName string, states []models.ThreadState) error {
	f.SetColWidth(sheetName, "A", "A", 30)
	f.SetColWidth(sheetName, "B", "B", 50)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "center"},
	})
	if err != nil {
		return err
	}

	labelStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	if err != nil {
		return err
	}

	row := 1
	f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), "Completed Applications Report")
	f.SetCellStyle(sheetName, fmt.Sprintf("A%d", row), fmt.Sprintf("B%d", row), headerStyle)
	f.MergeCell(sheetName, fmt.Sprintf("A%d", row), fmt.Sprintf("B%d", row))
	row += 2

	f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), "Generated:")
	f.SetCellStyle(sheetName, fmt.Sprintf("A%d", row), fmt.Sprintf("A%d", row), labelStyle)
	f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), time.Now().Format("2006-01-02 15:04:05"))
	row++

	f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), "Completed Applications:")
	f.SetCellStyle(sheetName, fmt.Sprintf("A%d", row), fmt.Sprintf("A%d", row), labelStyle)
	f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), len(states))

	return nil
}

func createApplicantsSheet(f *excelize.File, sheetName string, states []models.ThreadState, checks map[string]models.BackgroundCheck) error {
	reqs := schema.Requirements()

	f.SetColWidth(sheetName, "A", "A", 20)
	f.SetColWidth(sheetName, "B", "H", 28)
	f.SetColWidth(sheetName, "I", "J", 50)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return err
	}

	wrapStyle, _ := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})

	headers := []string{"Thread"}
	for _, req := range reqs {
		headers = append(headers, req.Name)
	}
	headers = append(headers, "Completed At", "Background Check")

	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		f.SetCellValue(sheetName, cell, header)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for i, state := range states {
		row := i + 2
		values := []string{state.ThreadID}
		for _, req := range reqs {
			values = append(values, fieldCell(state.Fields[req.Name]))
		}
		values = append(values, state.UpdatedAt.Format("2006-01-02 15:04:05"))
		if check, ok := checks[state.ThreadID]; ok {
			values = append(values, check.Summary)
		} else {
			values = append(values, "")
		}

		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return err
			}
			f.SetCellValue(sheetName, cell, value)
			f.SetCellStyle(sheetName, cell, cell, wrapStyle)
		}
	}

	if len(states) > 0 {
		last, err := excelize.CoordinatesToCellName(len(headers), len(states)+1)
		if err != nil {
			return err
		}
		f.AutoFilter(sheetName, "A1:"+last, []excelize.AutoFilterOptions{})
	}

	f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		XSplit:      0,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})

	return nil
}

// fieldCell flattens a field value for a spreadsheet cell.
func fieldCell(v models.FieldValue) string {
	switch {
	case len(v.Entries) > 0:
		lines := make([]string, 0, len(v.Entries))
		for _, e := range v.Entries {
			parts := make([]string, 0, 4)
			for _, s := range []string{e.Degree, e.Title, e.Institution, e.Company, e.Years, e.Description} {
				if s != "" {
					parts = append(parts, s)
				}
			}
			lines = append(lines, strings.Join(parts, ", "))
		}
		return strings.Join(lines, "\n")
	case v.Text != "":
		return v.Text
	case v.Present:
		return "provided"
	default:
		return ""
	}
}

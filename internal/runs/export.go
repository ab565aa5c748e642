package runs

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// Sheet is the worksheet name used for run exports.
const Sheet = "Runs"

var exportHeaders = []string{
	"Run ID",
	"Document",
	"Object Key",
	"Media Type",
	"Size (bytes)",
	"State",
	"Method",
	"Low Confidence",
	"Label",
	"Confidence",
	"Report Key",
	"Failed Stage",
	"Error Kind",
	"Error",
	"Started",
	"Completed",
}

// Workbook writes runs to an XLSX workbook with one header row and one row
// per run.
func Workbook(runs []Run) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", Sheet); err != nil {
		return nil, fmt.Errorf("name sheet: %w", err)
	}

	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(Sheet, cell, h); err != nil {
			return nil, fmt.Errorf("write header: %w", err)
		}
	}

	for i, r := range runs {
		row := i + 2
		values := []any{
			r.ID.String(),
			r.DocumentName,
			r.ObjectKey,
			r.MediaType,
			r.SizeBytes,
			string(r.State),
			deref(r.Method),
			r.LowConfidence,
			"",
			"",
			deref(r.ReportKey),
			deref(r.FailedStage),
			deref(r.ErrorKind),
			deref(r.ErrorMessage),
			r.StartedAt.UTC().Format("2006-01-02 15:04:05"),
			"",
		}
		if r.Label != nil {
			values[8] = string(*r.Label)
		}
		if r.Confidence != nil {
			values[9] = *r.Confidence
		}
		if r.CompletedAt != nil {
			values[15] = r.CompletedAt.UTC().Format("2006-01-02 15:04:05")
		}

		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(Sheet, cell, v); err != nil {
				return nil, fmt.Errorf("write row %d: %w", row, err)
			}
		}
	}

	_ = f.SetColWidth(Sheet, "A", "A", 38)
	_ = f.SetColWidth(Sheet, "B", "C", 32)
	_ = f.SetColWidth(Sheet, "N", "N", 48)
	_ = f.SetColWidth(Sheet, "O", "P", 20)

	if err := f.SetPanes(Sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("freeze header: %w", err)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

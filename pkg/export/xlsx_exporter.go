package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// XLSXContentType is the MIME type for rendered spreadsheets.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// XLSXExporter renders datasets into an Excel workbook with a single sheet.
type XLSXExporter struct{}

// NewXLSXExporter constructs an XLSX exporter.
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{}
}

// Render creates a workbook with the dataset on the named sheet.
func (e *XLSXExporter) Render(data Dataset, sheet string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("xlsx requires at least one header")
	}
	if sheet == "" {
		sheet = "Sheet1"
	}

	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if sheet != "Sheet1" {
		_ = f.DeleteSheet("Sheet1")
	}

	headerRow := make([]interface{}, len(data.Headers))
	for i, h := range data.Headers {
		headerRow[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &headerRow); err != nil {
		return nil, fmt.Errorf("write xlsx headers: %w", err)
	}

	for i, row := range data.Rows {
		record := make([]interface{}, len(data.Headers))
		for j := range data.Headers {
			if j < len(row) {
				record[j] = row[j]
			} else {
				record[j] = ""
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("resolve xlsx cell: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &record); err != nil {
			return nil, fmt.Errorf("write xlsx row: %w", err)
		}
	}

	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("render xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

// Parse reads the first sheet of a workbook into a Dataset, using the first row as
// headers. Short rows are padded with empty strings.
func Parse(raw []byte) (Dataset, error) {
	f, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return Dataset{}, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close() //nolint:errcheck

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Dataset{}, fmt.Errorf("xlsx has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return Dataset{}, fmt.Errorf("read xlsx rows: %w", err)
	}
	if len(rows) == 0 {
		return Dataset{}, fmt.Errorf("xlsx sheet is empty")
	}

	headers := rows[0]
	data := Dataset{Headers: headers, Rows: make([][]string, 0, len(rows)-1)}
	for _, row := range rows[1:] {
		record := make([]string, len(headers))
		for i := range headers {
			if i < len(row) {
				record[i] = row[i]
			}
		}
		data.Rows = append(data.Rows, record)
	}
	return data, nil
}

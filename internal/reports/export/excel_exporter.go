package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"crossing-closures/closure-portal/internal/gateway"
	"crossing-closures/closure-portal/pkg/workflows"
)

// Column is one workbook column.
type Column struct {
	Title string
	Width float64
	value func(c *gateway.Closure) interface{}
}

// ClosureColumns is the layout of the closure list workbook.
var ClosureColumns = []Column{
	{Title: "ID", Width: 8, value: func(c *gateway.Closure) interface{} { return c.ID }},
	{Title: "Crossing", Width: 24, value: func(c *gateway.Closure) interface{} { return c.CrossingName() }},
	{Title: "Start", Width: 18, value: func(c *gateway.Closure) interface{} { return c.StartDate }},
	{Title: "End", Width: 18, value: func(c *gateway.Closure) interface{} { return c.EndDate }},
	{Title: "Reason", Width: 48, value: func(c *gateway.Closure) interface{} { return c.Reason }},
	{Title: "Status", Width: 14, value: func(c *gateway.Closure) interface{} { return workflows.StatusLabel(c.Status) }},
	{Title: "Administration", Width: 16, value: func(c *gateway.Closure) interface{} { return yesNo(c.AdminApproved) }},
	{Title: "Traffic police", Width: 16, value: func(c *gateway.Closure) interface{} { return yesNo(c.GibddApproved) }},
	{Title: "Created by", Width: 22, value: func(c *gateway.Closure) interface{} {
		if c.CreatedBy == nil {
			return ""
		}
		return c.CreatedBy.FullName()
	}},
	{Title: "Created at", Width: 18, value: func(c *gateway.Closure) interface{} { return c.CreatedAt }},
}

// ExcelExporter writes closures into a single-sheet workbook.
type ExcelExporter struct {
	file    *excelize.File
	options ExcelOptions
	styles  map[string]int
}

// ExcelOptions configures Excel export behavior
type ExcelOptions struct {
	SheetName    string            `json:"sheet_name"`
	FreezeHeader bool              `json:"freeze_header"`
	AutoFilter   bool              `json:"auto_filter"`
	DateFormat   string            `json:"date_format"`
	HeaderStyle  *ExcelStyleConfig `json:"header_style,omitempty"`
	DataStyle    *ExcelStyleConfig `json:"data_style,omitempty"`
}

// ExcelStyleConfig defines style for cells
type ExcelStyleConfig struct {
	FontBold  bool   `json:"font_bold"`
	FontSize  int    `json:"font_size"`
	FontColor string `json:"font_color"`
	FillColor string `json:"fill_color"`
	Alignment string `json:"alignment"` // left, center, right
	Border    bool   `json:"border"`
	WrapText  bool   `json:"wrap_text"`
}

// DefaultExcelOptions returns default Excel export options
func DefaultExcelOptions() ExcelOptions {
	return ExcelOptions{
		SheetName:    "Closures",
		FreezeHeader: true,
		AutoFilter:   true,
		DateFormat:   "yyyy-mm-dd hh:mm",
		HeaderStyle: &ExcelStyleConfig{
			FontBold:  true,
			FontSize:  11,
			FillColor: "4472C4",
			FontColor: "FFFFFF",
			Alignment: "center",
			Border:    true,
		},
		DataStyle: &ExcelStyleConfig{
			FontSize:  11,
			Alignment: "left",
			Border:    true,
			WrapText:  true,
		},
	}
}

func NewExcelExporter(options ExcelOptions) *ExcelExporter {
	file := excelize.NewFile()
	file.SetSheetName("Sheet1", options.SheetName)

	return &ExcelExporter{
		file:    file,
		options: options,
		styles:  make(map[string]int),
	}
}

// Write lays out the header and one row per closure.
func (e *ExcelExporter) Write(closures []gateway.Closure) error {
	if err := e.writeHeader(); err != nil {
		return err
	}
	if err := e.writeRows(closures); err != nil {
		return err
	}
	return e.finish(len(closures))
}

func (e *ExcelExporter) writeHeader() error {
	sheet := e.options.SheetName

	headerStyle, err := e.style("header", e.options.HeaderStyle, "")
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for i, col := range ClosureColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := e.file.SetCellValue(sheet, cell, col.Title); err != nil {
			return err
		}
		if headerStyle > 0 {
			_ = e.file.SetCellStyle(sheet, cell, cell, headerStyle)
		}
		name, _ := excelize.ColumnNumberToName(i + 1)
		_ = e.file.SetColWidth(sheet, name, name, col.Width)
	}

	if e.options.FreezeHeader {
		return e.file.SetPanes(sheet, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		})
	}
	return nil
}

func (e *ExcelExporter) writeRows(closures []gateway.Closure) error {
	sheet := e.options.SheetName

	dataStyle, err := e.style("data", e.options.DataStyle, "")
	if err != nil {
		return fmt.Errorf("failed to create data style: %w", err)
	}
	dateStyle, err := e.style("date", e.options.DataStyle, e.options.DateFormat)
	if err != nil {
		return fmt.Errorf("failed to create date style: %w", err)
	}

	for rowIdx := range closures {
		closure := &closures[rowIdx]
		for colIdx, col := range ClosureColumns {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			val := col.value(closure)
			style := dataStyle

			if t, ok := val.(time.Time); ok {
				if t.IsZero() {
					val = ""
				} else {
					val = t.UTC()
					style = dateStyle
				}
			}
			if err := e.file.SetCellValue(sheet, cell, val); err != nil {
				return fmt.Errorf("failed to set cell %s: %w", cell, err)
			}
			if style > 0 {
				_ = e.file.SetCellStyle(sheet, cell, cell, style)
			}
		}
	}
	return nil
}

func (e *ExcelExporter) finish(rows int) error {
	if !e.options.AutoFilter || rows == 0 {
		return nil
	}
	last, _ := excelize.CoordinatesToCellName(len(ClosureColumns), rows+1)
	return e.file.AutoFilter(e.options.SheetName, "A1:"+last, nil)
}

// WriteTo writes the Excel file to a writer
func (e *ExcelExporter) WriteTo(w io.Writer) error {
	return e.file.Write(w)
}

func (e *ExcelExporter) Close() error {
	return e.file.Close()
}

// style creates the named style once. numFmt, when set, is a custom number format.
func (e *ExcelExporter) style(name string, config *ExcelStyleConfig, numFmt string) (int, error) {
	if config == nil && numFmt == "" {
		return 0, nil
	}
	if id, ok := e.styles[name]; ok {
		return id, nil
	}

	style := &excelize.Style{}
	if config != nil {
		style.Font = &excelize.Font{
			Bold:  config.FontBold,
			Size:  float64(config.FontSize),
			Color: config.FontColor,
		}
		if config.FillColor != "" {
			style.Fill = excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{config.FillColor}}
		}
		if config.Alignment != "" || config.WrapText {
			style.Alignment = &excelize.Alignment{Horizontal: config.Alignment, WrapText: config.WrapText, Vertical: "top"}
		}
		if config.Border {
			style.Border = []excelize.Border{
				{Type: "left", Color: "000000", Style: 1},
				{Type: "right", Color: "000000", Style: 1},
				{Type: "top", Color: "000000", Style: 1},
				{Type: "bottom", Color: "000000", Style: 1},
			}
		}
	}
	if numFmt != "" {
		style.CustomNumFmt = &numFmt
	}

	id, err := e.file.NewStyle(style)
	if err != nil {
		return 0, err
	}
	e.styles[name] = id
	return id, nil
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

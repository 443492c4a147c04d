package export

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"

	"crossing-closures/closure-portal/internal/gateway"
	"crossing-closures/closure-portal/pkg/security"
	"crossing-closures/closure-portal/pkg/workflows"
)

// PDFGenerator renders the printable sheet of one closure.
type PDFGenerator struct {
	pdf     *gofpdf.Fpdf
	tr      func(string) string
	options PDFOptions
}

// PDFOptions configures PDF generation
type PDFOptions struct {
	PageSize       string     `json:"page_size"` // A4, Letter, Legal
	Title          string     `json:"title"`
	DateFormat     string     `json:"date_format"`
	HeaderColor    PDFColor   `json:"header_color"`
	AlternateColor PDFColor   `json:"alternate_color"`
	FontFamily     string     `json:"font_family"`
	FontSize       float64    `json:"font_size"`
	TitleFontSize  float64    `json:"title_font_size"`
	Margins        PDFMargins `json:"margins"`
}

// PDFColor represents an RGB color
type PDFColor struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
}

// PDFMargins represents page margins
type PDFMargins struct {
	Left   float64 `json:"left"`
	Right  float64 `json:"right"`
	Top    float64 `json:"top"`
	Bottom float64 `json:"bottom"`
}

// DefaultPDFOptions returns default PDF options
func DefaultPDFOptions() PDFOptions {
	return PDFOptions{
		PageSize:       "A4",
		Title:          "Railway crossing closure",
		DateFormat:     "2006-01-02 15:04",
		HeaderColor:    PDFColor{R: 68, G: 114, B: 196},
		AlternateColor: PDFColor{R: 242, G: 242, B: 242},
		FontFamily:     "Arial",
		FontSize:       10,
		TitleFontSize:  16,
		Margins: PDFMargins{
			Left:   15,
			Right:  15,
			Top:    20,
			Bottom: 20,
		},
	}
}

func NewPDFGenerator(options PDFOptions) *PDFGenerator {
	pdf := gofpdf.New("P", "mm", options.PageSize, "")
	pdf.SetMargins(options.Margins.Left, options.Margins.Top, options.Margins.Right)
	pdf.SetAutoPageBreak(true, options.Margins.Bottom)

	g := &PDFGenerator{
		pdf:     pdf,
		tr:      pdf.UnicodeTranslatorFromDescriptor(""),
		options: options,
	}
	g.setFooter()
	return g
}

// GenerateSheet lays out the closure, its approvals, the signature and the comments.
func (g *PDFGenerator) GenerateSheet(c *gateway.Closure, generatedAt time.Time) error {
	g.pdf.SetTitle(fmt.Sprintf("%s #%d", g.options.Title, c.ID), true)
	g.pdf.AddPage()

	g.addTitle(fmt.Sprintf("%s #%d", g.options.Title, c.ID))
	g.addDate(generatedAt)
	g.pdf.Ln(6)

	creator := ""
	if c.CreatedBy != nil {
		creator = c.CreatedBy.FullName()
	}
	g.addSection("Closure", [][2]string{
		{"Crossing", c.CrossingName()},
		{"Start", g.formatTime(c.StartDate)},
		{"End", g.formatTime(c.EndDate)},
		{"Status", workflows.StatusLabel(c.Status)},
		{"Created by", creator},
		{"Reason", c.Reason},
	})

	g.addSection("Approvals", [][2]string{
		{workflows.RoleLabel(workflows.RoleAdministration), approvalText(c.AdminApproved)},
		{workflows.RoleLabel(workflows.RoleTrafficPolice), approvalText(c.GibddApproved)},
	})

	signature := [][2]string{{"Stamp", "Not signed"}}
	if c.DigitalSignature != "" {
		signature = [][2]string{{"Stamp", c.DigitalSignature}}
		if info, err := security.ParseStamp(c.DigitalSignature); err == nil {
			signature = append(signature,
				[2]string{"Signed by", info.SignerName},
				[2]string{"Signed at", g.formatTime(info.SigningTime)},
			)
		}
	}
	g.addSection("Signature", signature)

	if len(c.Comments) > 0 {
		rows := make([][]string, 0, len(c.Comments))
		for _, comment := range c.Comments {
			author := ""
			if comment.User != nil {
				author = comment.User.FullName()
			}
			rows = append(rows, []string{g.formatTime(comment.CreatedAt), author, comment.Text})
		}
		g.addTable("Comments", []string{"Date", "Author", "Text"}, []float64{32, 40, 0}, rows)
	}

	return g.pdf.Error()
}

func (g *PDFGenerator) addTitle(title string) {
	g.pdf.SetFont(g.options.FontFamily, "B", g.options.TitleFontSize)
	g.pdf.SetTextColor(0, 0, 0)
	g.pdf.CellFormat(0, 10, g.tr(title), "", 1, "C", false, 0, "")
}

func (g *PDFGenerator) addDate(at time.Time) {
	g.pdf.SetFont(g.options.FontFamily, "", g.options.FontSize-1)
	g.pdf.SetTextColor(128, 128, 128)
	g.pdf.CellFormat(0, 6, "Generated: "+at.Format(g.options.DateFormat), "", 1, "R", false, 0, "")
}

// addSection prints label/value pairs; long values wrap.
func (g *PDFGenerator) addSection(title string, items [][2]string) {
	g.addHeading(title)
	for _, item := range items {
		g.pdf.SetFont(g.options.FontFamily, "B", g.options.FontSize)
		g.pdf.CellFormat(45, 6, g.tr(item[0]+":"), "", 0, "L", false, 0, "")
		g.pdf.SetFont(g.options.FontFamily, "", g.options.FontSize)
		g.pdf.MultiCell(0, 6, g.tr(item[1]), "", "L", false)
	}
	g.pdf.Ln(4)
}

func (g *PDFGenerator) addHeading(title string) {
	g.pdf.SetFont(g.options.FontFamily, "B", g.options.FontSize+2)
	g.pdf.SetTextColor(0, 0, 0)
	g.pdf.CellFormat(0, 8, g.tr(title), "", 1, "L", false, 0, "")
	g.pdf.Ln(1)
}

// addTable prints a bordered table. A zero width takes the rest of the line.
func (g *PDFGenerator) addTable(title string, labels []string, widths []float64, rows [][]string) {
	g.addHeading(title)

	pageWidth, _ := g.pdf.GetPageSize()
	available := pageWidth - g.options.Margins.Left - g.options.Margins.Right
	used := 0.0
	for _, w := range widths {
		used += w
	}
	for i := range widths {
		if widths[i] == 0 {
			widths[i] = available - used
		}
	}

	g.pdf.SetFont(g.options.FontFamily, "B", g.options.FontSize)
	g.pdf.SetFillColor(g.options.HeaderColor.R, g.options.HeaderColor.G, g.options.HeaderColor.B)
	g.pdf.SetTextColor(255, 255, 255)
	for i, label := range labels {
		g.pdf.CellFormat(widths[i], 8, g.tr(label), "1", 0, "C", true, 0, "")
	}
	g.pdf.Ln(-1)

	g.pdf.SetFont(g.options.FontFamily, "", g.options.FontSize)
	g.pdf.SetTextColor(0, 0, 0)
	for i, row := range rows {
		if i%2 == 1 {
			g.pdf.SetFillColor(g.options.AlternateColor.R, g.options.AlternateColor.G, g.options.AlternateColor.B)
		} else {
			g.pdf.SetFillColor(255, 255, 255)
		}

		// the last column wraps, the others are cut to fit
		last := len(row) - 1
		lines := g.pdf.SplitLines([]byte(g.tr(row[last])), widths[last]-2)
		height := float64(max(len(lines), 1)) * 6
		if g.pdf.GetY()+height > g.pageBottom() {
			g.pdf.AddPage()
		}
		x, y := g.pdf.GetXY()
		for j := 0; j < last; j++ {
			g.pdf.CellFormat(widths[j], height, g.fit(row[j], widths[j]), "1", 0, "L", true, 0, "")
		}
		g.pdf.MultiCell(widths[last], 6, g.tr(row[last]), "1", "L", true)
		g.pdf.SetXY(x, y+height)
	}
}

func (g *PDFGenerator) pageBottom() float64 {
	_, height := g.pdf.GetPageSize()
	return height - g.options.Margins.Bottom
}

func (g *PDFGenerator) fit(text string, width float64) string {
	text = g.tr(text)
	for len(text) > 3 && g.pdf.GetStringWidth(text) > width-2 {
		text = text[:len(text)-4] + "..."
	}
	return text
}

func (g *PDFGenerator) formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(g.options.DateFormat)
}

func (g *PDFGenerator) setFooter() {
	g.pdf.SetFooterFunc(func() {
		g.pdf.SetY(-15)
		g.pdf.SetFont(g.options.FontFamily, "", 8)
		g.pdf.SetTextColor(128, 128, 128)
		g.pdf.CellFormat(0, 10, fmt.Sprintf("Page %d", g.pdf.PageNo()), "", 0, "C", false, 0, "")
	})
}

// WriteTo writes the PDF to a writer
func (g *PDFGenerator) WriteTo(w io.Writer) error {
	return g.pdf.Output(w)
}

// OutputToBytes returns the PDF as bytes
func (g *PDFGenerator) OutputToBytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := g.pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func approvalText(approved bool) string {
	if approved {
		return "Approved"
	}
	return "Awaiting approval"
}

package report

import (
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"github.com/user/scm_compare_go/internal/analysis"
)

const (
	inchToMm               = 25.4
	pdfPageWidthLandscape  = 11 * inchToMm // Letter landscape
	pdfPageHeightLandscape = 8.5 * inchToMm
	pdfMargin              = 0.5 * inchToMm
	pdfContentWidth        = pdfPageWidthLandscape - (2 * pdfMargin)
)

// Summary is the content of a comparison report.
type Summary struct {
	Title  string
	Window analysis.Window
	// Discrepancies are listed in order, typically from RankDiscrepancies.
	Discrepancies []analysis.Discrepancy
	// Substituted lists the zero-filled variables of each source.
	Substituted map[string][]string
	Figures     []Figure
}

// pdfStyler holds reusable styling and state for PDF generation
type pdfStyler struct {
	pdf         *gofpdf.Fpdf
	styles      map[string]func()
	lineHeight  float64
	currentY    float64 // manually tracked Y position for flowing content
	pageHeight  float64
	contentTopY float64
}

func newPDFStyler(pdf *gofpdf.Fpdf) *pdfStyler {
	s := &pdfStyler{
		pdf:         pdf,
		styles:      make(map[string]func()),
		lineHeight:  6, // mm
		pageHeight:  pdfPageHeightLandscape - pdfMargin,
		contentTopY: pdfMargin,
	}
	s.currentY = s.contentTopY
	s.defineStyles()
	return s
}

func (s *pdfStyler) defineStyles() {
	s.styles["h1"] = func() {
		s.pdf.SetFont("Arial", "B", 16)
		s.pdf.SetTextColor(0, 0, 0)
	}
	s.styles["h2"] = func() {
		s.pdf.SetFont("Arial", "B", 14)
		s.pdf.SetTextColor(0, 0, 0)
	}
	s.styles["normal"] = func() {
		s.pdf.SetFont("Arial", "", 10)
		s.pdf.SetTextColor(0, 0, 0)
	}
	s.styles["tableHeader"] = func() {
		s.pdf.SetFont("Arial", "B", 9)
		s.pdf.SetFillColor(200, 200, 200)
		s.pdf.SetTextColor(0, 0, 0)
	}
	s.styles["tableCell"] = func() {
		s.pdf.SetFont("Arial", "", 9)
		s.pdf.SetTextColor(50, 50, 50)
	}
	s.styles["tableCellMuted"] = func() { // rows without overlapping levels
		s.pdf.SetFont("Arial", "I", 9)
		s.pdf.SetTextColor(150, 150, 150)
	}
}

func (s *pdfStyler) applyStyle(styleName string) {
	if fn, ok := s.styles[styleName]; ok {
		fn()
	} else {
		s.styles["normal"]()
	}
}

func (s *pdfStyler) newPage() {
	s.pdf.AddPage()
	s.currentY = s.contentTopY
}

func (s *pdfStyler) checkAddPage(neededHeight float64) {
	if s.currentY+neededHeight > s.pageHeight {
		s.newPage()
	}
}

func (s *pdfStyler) writeParagraph(text string, styleName string, align string) {
	s.applyStyle(styleName)
	lines := len(s.pdf.SplitLines([]byte(text), pdfContentWidth))
	s.checkAddPage(float64(max(lines, 1)) * s.lineHeight)

	s.pdf.SetXY(pdfMargin, s.currentY)
	s.pdf.MultiCell(pdfContentWidth, s.lineHeight, text, "", align, false)
	s.currentY = s.pdf.GetY() + 1
}

func (s *pdfStyler) addSpacer(height float64) {
	s.currentY += height
	if s.currentY > s.pageHeight {
		s.newPage()
	}
}

// tableRow writes one row of cells across colWidths.
func (s *pdfStyler) tableRow(cells []string, colWidths []float64, styleName string, fill bool) {
	s.checkAddPage(s.lineHeight)
	s.applyStyle(styleName)
	x := pdfMargin
	for i, cell := range cells {
		s.pdf.SetXY(x, s.currentY)
		s.pdf.CellFormat(colWidths[i], s.lineHeight, cell, "1", 0, "C", fill, 0, "")
		x += colWidths[i]
	}
	s.currentY += s.lineHeight
}

// addImage places the PNG at path scaled to fit the content width and the
// remaining page height, followed by caption.
func (s *pdfStyler) addImage(path, caption string) {
	info := s.pdf.RegisterImageOptions(path, gofpdf.ImageOptions{ImageType: "PNG"})
	if s.pdf.Err() {
		return
	}
	captionHeight := 0.0
	if caption != "" {
		captionHeight = s.lineHeight + 2
	}
	width := pdfContentWidth
	height := width * info.Height() / info.Width()
	if avail := s.pageHeight - s.currentY - captionHeight; height > avail {
		height = avail
		width = height * info.Width() / info.Height()
	}

	x := pdfMargin + (pdfContentWidth-width)/2
	s.pdf.ImageOptions(path, x, s.currentY, width, height, false, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")
	s.currentY += height
	if caption != "" {
		s.addSpacer(1)
		s.writeParagraph(caption, "normal", "C")
	}
}

func formatValue(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.4g", v)
}

// BuildPDFReport writes a report of the discrepancy table followed by one
// figure per page. Only PNG figures are embedded; others are listed by path.
func BuildPDFReport(path string, summary Summary) error {
	pdf := gofpdf.New("L", "mm", "Letter", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(false, pdfMargin)
	pdf.AddPage()

	styler := newPDFStyler(pdf)

	title := summary.Title
	if title == "" {
		title = "Single-column model comparison"
	}
	styler.writeParagraph(title, "h1", "C")
	styler.addSpacer(5)
	styler.writeParagraph(fmt.Sprintf("Profiles averaged %s.", summary.Window), "normal", "L")

	sources := make([]string, 0, len(summary.Substituted))
	for src, names := range summary.Substituted {
		if len(names) > 0 {
			sources = append(sources, src)
		}
	}
	sort.Strings(sources)
	for _, src := range sources {
		styler.writeParagraph(fmt.Sprintf("Missing from %s output, drawn as zeros: %s", src, strings.Join(summary.Substituted[src], ", ")), "normal", "L")
	}
	styler.addSpacer(5)

	styler.writeParagraph("Profile discrepancies (model minus reference)", "h2", "L")
	if len(summary.Discrepancies) > 0 {
		headers := []string{"Rank", "Profile", "Levels", "Bias", "RMS", "Max |diff|"}
		colWidthsRel := []float64{0.08, 0.38, 0.1, 0.148, 0.148, 0.144}
		colWidthsAbs := make([]float64, len(colWidthsRel))
		for i, rel := range colWidthsRel {
			colWidthsAbs[i] = rel * pdfContentWidth
		}

		styler.checkAddPage(styler.lineHeight * 2)
		styler.tableRow(headers, colWidthsAbs, "tableHeader", true)
		for i, d := range summary.Discrepancies {
			row := []string{
				strconv.Itoa(i + 1),
				d.Label,
				strconv.Itoa(d.Levels),
				formatValue(d.Bias),
				formatValue(d.RMS),
				formatValue(d.MaxAbs),
			}
			style := "tableCell"
			if d.Levels == 0 {
				style = "tableCellMuted"
			}
			if styler.currentY+styler.lineHeight > styler.pageHeight {
				styler.newPage()
				styler.tableRow(headers, colWidthsAbs, "tableHeader", true)
			}
			styler.tableRow(row, colWidthsAbs, style, false)
		}
	} else {
		styler.writeParagraph("No profile comparisons available.", "normal", "L")
	}

	var skipped []string
	for _, fig := range summary.Figures {
		if !strings.EqualFold(filepath.Ext(fig.Path), ".png") {
			skipped = append(skipped, fig.Path)
			continue
		}
		styler.newPage()
		styler.writeParagraph(fig.Name, "h2", "L")
		styler.addImage(fig.Path, fig.Caption)
		if pdf.Err() {
			return fmt.Errorf("report: embedding %s: %w", fig.Path, pdf.Error())
		}
	}
	if len(skipped) > 0 {
		styler.newPage()
		styler.writeParagraph("Figures not embedded", "h2", "L")
		styler.writeParagraph(strings.Join(skipped, "\n"), "normal", "L")
	}

	return pdf.OutputFileAndClose(path)
}

package report

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/user/scm_compare_go/internal/analysis"
	"github.com/user/scm_compare_go/internal/parser"
	"gonum.org/v1/plot/vg"
)

// Formats lists the figure file formats that can be written.
var Formats = []string{"png", "pdf", "svg", "eps", "jpg", "tif"}

var (
	// modelColor is the color of model curves in comparison figures.
	modelColor = color.RGBA{R: 0x15, G: 0x7C, B: 0xC7, A: 255}
	// referenceColor is the color of reference curves in comparison figures.
	referenceColor = color.Black
	// nanColor fills heatmap cells without data.
	nanColor = color.Gray{Y: 200}
)

// Named colors used by the built-in sheets.
var (
	gray        = color.RGBA{R: 0x80, G: 0x80, B: 0x80, A: 255}
	royalBlue   = color.RGBA{R: 0x41, G: 0x69, B: 0xE1, A: 255}
	darkRed     = color.RGBA{R: 0x8B, A: 255}
	purple      = color.RGBA{R: 0x80, B: 0x80, A: 255}
	darkOrange  = color.RGBA{R: 0xFF, G: 0x8C, A: 255}
	darkGreen   = color.RGBA{G: 0x64, A: 255}
	red         = color.RGBA{R: 0xFF, A: 255}
	crimson     = color.RGBA{R: 0xDC, G: 0x14, B: 0x3C, A: 255}
	forestGreen = color.RGBA{R: 0x22, G: 0x8B, B: 0x22, A: 255}
)

// Options control where and how figures are written.
type Options struct {
	// Folder receives one file per figure.
	Folder string
	// Format is the file extension and encoding, one of Formats.
	Format string
	// Width and Height size single-panel figures. Multi-panel figures scale
	// Width and Height by their column and row counts.
	Width, Height vg.Length
	Log           logrus.FieldLogger
}

// DefaultOptions writes PNG files into folder.
func DefaultOptions(folder string) Options {
	return Options{Folder: folder, Format: "png", Width: 7 * vg.Inch, Height: 6 * vg.Inch}
}

func (o Options) logger() logrus.FieldLogger {
	if o.Log == nil {
		return logrus.StandardLogger()
	}
	return o.Log
}

func (o Options) validate() error {
	for _, f := range Formats {
		if o.Format == f {
			if o.Width <= 0 || o.Height <= 0 {
				return fmt.Errorf("report: invalid figure size %v x %v", o.Width, o.Height)
			}
			return os.MkdirAll(o.Folder, 0o755)
		}
	}
	return fmt.Errorf("report: unsupported figure format %q", o.Format)
}

func (o Options) path(figure string) string {
	return filepath.Join(o.Folder, figure+"."+o.Format)
}

// Figure is a written figure file.
type Figure struct {
	Name    string
	Path    string
	Caption string
}

// ProfileSpec pairs a model and a reference variable shown in one figure.
type ProfileSpec struct {
	Label    string
	ModelKey string
	RefKey   string
	Figure   string
}

// ProfileResult is a written profile figure with the curves drawn in it.
type ProfileResult struct {
	Figure
	Comparison *analysis.ProfileComparison
}

// ContourSpec pairs a model and a reference variable shown as time-height maps.
type ContourSpec struct {
	Label    string
	ModelKey string
	RefKey   string
	Figure   string
	// Updraft masks samples without updraft area.
	Updraft bool
	// FillFirst replaces the first model sample by the second, for fields
	// that are not initialized at time zero.
	FillFirst bool
}

// SheetCurve is one time-averaged curve in a sheet panel.
type SheetCurve struct {
	Source parser.Source
	Key    string
	// Plus is a profile added to Key before averaging.
	Plus string
	Label  string
	Color  color.Color
	Width  vg.Length
	Dashes []vg.Length
	// Scale multiplies the averaged values; zero means one.
	Scale float64
	// Weight names a reference-state profile the averaged values are
	// multiplied by level by level.
	Weight string
}

// Panel is one axis of a sheet.
type Panel struct {
	XLabel string
	Curves []SheetCurve
	Legend bool
}

// Sheet is a multi-panel figure of time-averaged profiles laid out in a
// Rows x Cols grid, filled row by row.
type Sheet struct {
	Name   string
	Title  string
	Rows   int
	Cols   int
	Panels []Panel
}

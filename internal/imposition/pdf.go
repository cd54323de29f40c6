package imposition

import (
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"
)

// PDFOptions controls the folding guide.
type PDFOptions struct {
	Title string
	// Labels overrides the text printed in a cell, keyed by page id.
	Labels map[string]string
	// FontSize is in points.
	FontSize float64
}

// WritePDF writes a one page folding guide for the sheet: the page cells with
// their labels, dashed fold lines, and the solid cut between the middle cells
// of the centre fold. Upside-down cells carry upside-down labels.
func (s Sheet) WritePDF(w io.Writer, opts PDFOptions) error {
	if err := s.Geometry.Validate(); err != nil {
		return fmt.Errorf("folding guide: %w", err)
	}
	unit := s.Geometry.Unit
	if unit != "in" && unit != "mm" && unit != "cm" && unit != "pt" {
		return fmt.Errorf("folding guide: unsupported unit %q", unit)
	}
	if opts.FontSize <= 0 {
		opts.FontSize = 14
	}

	width, height := s.Width(), s.Height()
	pw, ph := s.Geometry.PageWidth, s.Geometry.PageHeight

	// The sheet is specified portrait and turned, matching how it is printed.
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "L",
		UnitStr:        unit,
		Size:           gofpdf.SizeType{Wd: height, Ht: width},
	})
	if opts.Title != "" {
		pdf.SetTitle(opts.Title, true)
	}
	pdf.SetAuthor("zinespread", false)
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	// Cells.
	pdf.SetDrawColor(160, 160, 160)
	pdf.SetLineWidth(pdf.PointConvert(0.5))
	pdf.SetFont("Helvetica", "", opts.FontSize)
	pdf.SetTextColor(90, 90, 90)
	for _, c := range s.Cells {
		x := float64(c.Column-1) * pw
		y := float64(c.Row-1) * ph
		pdf.Rect(x, y, pw, ph, "D")

		label := string(c.Page)
		if l, ok := opts.Labels[label]; ok {
			label = l
		}
		if c.Rotated {
			pdf.TransformBegin()
			pdf.TransformRotate(180, x+pw/2, y+ph/2)
		}
		pdf.SetXY(x, y+ph/2-pdf.PointConvert(opts.FontSize)/2)
		pdf.CellFormat(pw, pdf.PointConvert(opts.FontSize), label, "", 0, "C", false, 0, "")
		if c.Rotated {
			pdf.TransformEnd()
		}
	}

	// Folds.
	pdf.SetDrawColor(0, 0, 0)
	pdf.SetDashPattern([]float64{pdf.PointConvert(4), pdf.PointConvert(3)}, 0)
	for col := 1; col < s.Columns; col++ {
		pdf.Line(float64(col)*pw, 0, float64(col)*pw, height)
	}
	for row := 1; row < s.Rows; row++ {
		pdf.Line(0, float64(row)*ph, width, float64(row)*ph)
	}

	// Cut.
	pdf.SetDashPattern([]float64{}, 0)
	pdf.SetLineWidth(pdf.PointConvert(1.5))
	if s.Rows%2 == 0 && s.Columns >= 4 {
		y := float64(s.Rows/2) * ph
		pdf.Line(pw, y, width-pw, y)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write folding guide: %w", err)
	}
	return nil
}

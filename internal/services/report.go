package services

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf/v2"

	"github.com/its-mkarmakar/Hack4Bengal-4.0/internal/domain"
)

// PageTemplate configures the chrome repeated on every report page.
type PageTemplate struct {
	Title      string
	TitleRGB   [3]int
	LogoPath   string
	FooterNote string
}

// DefaultPageTemplate is the branded Resonanze layout.
func DefaultPageTemplate(logoPath string) PageTemplate {
	return PageTemplate{
		Title:      "Resonanze Voice Analysis Report",
		TitleRGB:   [3]int{219, 48, 122},
		LogoPath:   logoPath,
		FooterNote: "Confidential Report",
	}
}

// ReportBuilder renders the diagnostic PDF: patient block, diagnosis,
// fixed eight-row measurement table, and static clinical recommendations.
type ReportBuilder struct {
	template PageTemplate
	now      func() time.Time
}

func NewReportBuilder(template PageTemplate) *ReportBuilder {
	return &ReportBuilder{template: template, now: time.Now}
}

func (b *ReportBuilder) Render(patient domain.Patient, vector domain.FeatureVector, diagnosis domain.Diagnosis, outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return &domain.RenderError{Path: outPath, Err: fmt.Errorf("ensure report directory: %w", err)}
	}
	if err := os.Remove(outPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &domain.RenderError{Path: outPath, Err: fmt.Errorf("clear stale report: %w", err)}
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(b.template.Title, false)
	pdf.SetAuthor("Resonanze", false)

	generatedAt := b.now()

	// Header and footer repeat on every page of the document.
	pdf.SetHeaderFunc(func() {
		if b.template.LogoPath != "" {
			if _, err := os.Stat(b.template.LogoPath); err == nil {
				pdf.Image(b.template.LogoPath, 10, 8, 30, 0, false, "", 0, "")
			}
		}
		pdf.SetFont("Helvetica", "B", 16)
		rgb := b.template.TitleRGB
		pdf.SetTextColor(rgb[0], rgb[1], rgb[2])
		pdf.CellFormat(0, 10, b.template.Title, "", 1, "C", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
		pdf.Ln(5)
	})
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "I", 8)
		footer := fmt.Sprintf("Generated on %s | %s",
			generatedAt.Format("Mon Jan 2 15:04:05 MST 2006"), b.template.FooterNote)
		pdf.CellFormat(0, 10, footer, "", 0, "C", false, 0, "")
	})

	pdf.AddPage()

	b.sectionTitle(pdf, "Patient Information")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 8, fmt.Sprintf("Patient Name: %s", patient.Name), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 8, fmt.Sprintf("Age: %s", patient.Age), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 8, fmt.Sprintf("Appointment ID: %s", patient.AppointmentID), "", 1, "L", false, 0, "")
	pdf.Ln(5)

	b.sectionTitle(pdf, "Diagnosis")
	pdf.SetFont("Helvetica", "", 10)
	pdf.MultiCell(0, 6, fmt.Sprintf("Predicted Condition: %s (%.2f%%)", diagnosis.Label, diagnosis.Confidence), "", "L", false)
	pdf.Ln(4)

	b.measurementTable(pdf, vector)
	pdf.Ln(4)

	b.sectionTitle(pdf, "Clinical Summary & Recommendations")
	pdf.SetFont("Helvetica", "", 10)
	pdf.MultiCell(0, 6, "The acoustic analysis suggests voice irregularities indicative of vocal pathology.", "", "L", false)
	pdf.Ln(2)
	pdf.MultiCell(0, 6, "1. Laryngoscopy for further examination\n2. Voice therapy for recovery\n3. Surgical evaluation if symptoms persist", "", "L", false)

	if err := pdf.OutputFileAndClose(outPath); err != nil {
		os.Remove(outPath)
		return &domain.RenderError{Path: outPath, Err: err}
	}
	return nil
}

func (b *ReportBuilder) sectionTitle(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, title, "", 1, "L", false, 0, "")
	pdf.Ln(2)
}

var tableColWidths = [4]float64{70, 30, 50, 20}

func (b *ReportBuilder) measurementTable(pdf *gofpdf.Fpdf, vector domain.FeatureVector) {
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(0, 8, "Acoustic Measurements", "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "B", 10)
	headers := [4]string{"Parameter", "Value", "Normal Range", "Unit"}
	for i, h := range headers {
		pdf.CellFormat(tableColWidths[i], 8, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	for _, m := range vector.Measurements() {
		pdf.CellFormat(tableColWidths[0], 8, m.Name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(tableColWidths[1], 8, fmt.Sprintf("%.2f", m.Value), "1", 0, "C", false, 0, "")
		pdf.CellFormat(tableColWidths[2], 8, fmt.Sprintf("%g - %g", m.RangeLow, m.RangeHigh), "1", 0, "C", false, 0, "")
		pdf.CellFormat(tableColWidths[3], 8, unitFor(m.Name), "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}
}

// unitFor infers the display unit from the parameter name: frequencies in
// Hz, perturbation measures in percent, everything else in seconds.
func unitFor(name string) string {
	switch {
	case strings.Contains(name, "Frequency"):
		return "Hz"
	case name == "Jitter" || name == "Shimmer":
		return "%"
	default:
		return "s"
	}
}

package exports

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
)

const pdfAttribution = "Adapted from the Business Queensland Business continuity plan – Template (CC BY 4.0)"

// ExportFilename builds the download filename: "BCP_<title>_<stamp>.<ext>".
// The title keeps only [A-Za-z0-9 _-] with spaces mapped to underscores.
func ExportFilename(title string, t time.Time, ext string) string {
	var b strings.Builder
	for _, r := range title {
		switch {
		case r == ' ':
			b.WriteByte('_')
		case r == '_' || r == '-',
			r >= 'A' && r <= 'Z',
			r >= 'a' && r <= 'z',
			r >= '0' && r <= '9':
			b.WriteRune(r)
		}
	}
	clean := b.String()
	if clean == "" {
		clean = "Plan"
	}
	return fmt.Sprintf("BCP_%s_%s.%s", clean, t.Format("20060102_150405"), ext)
}

// RenderPDF lays the gathered plan out as the template-faithful PDF.
func RenderPDF(doc *PlanDocument) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(doc.Plan.Title, true)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "I", 7)
		pdf.CellFormat(0, 10,
			pdf.UnicodeTranslatorFromDescriptor("")(pdfAttribution),
			"", 0, "C", false, 0, "")
	})
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	heading := func(text string) {
		pdf.SetFont("Helvetica", "B", 14)
		pdf.CellFormat(0, 10, tr(text), "", 1, "L", false, 0, "")
		pdf.Ln(1)
	}
	sub := func(text string) {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(0, 7, tr(text), "", 1, "L", false, 0, "")
	}
	body := func(text string) {
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, 5, tr(text), "", "L", false)
	}
	row := func(widths []float64, cells []string, bold bool) {
		style := ""
		if bold {
			style = "B"
		}
		pdf.SetFont("Helvetica", style, 9)
		for i, cell := range cells {
			pdf.CellFormat(widths[i], 6, tr(cell), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	// Title block
	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 12, tr(doc.Plan.Title), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("%s — generated %s", doc.Company.Name,
		doc.GeneratedAt.Format("2 January 2006"))), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	// 1. Plan Overview
	heading("1. Plan Overview")
	if doc.Plan.ExecutiveSummary != "" {
		sub("Executive summary")
		body(doc.Plan.ExecutiveSummary)
	}
	if len(doc.Objectives) > 0 {
		sub("Objectives")
		for _, o := range doc.Objectives {
			body("- " + o.Text)
		}
	}
	if len(doc.Distribution) > 0 {
		sub("Distribution list")
		row([]float64{70, 70, 50}, []string{"Name", "Role", "Issued"}, true)
		for _, d := range doc.Distribution {
			issued := ""
			if d.IssuedAt != nil {
				issued = d.IssuedAt.Format("2006-01-02")
			}
			row([]float64{70, 70, 50}, []string{d.Name, d.Role, issued}, false)
		}
	}
	pdf.Ln(4)

	// 2. Risk Management
	heading("2. Risk Management")
	sub("Severity legend")
	row([]float64{40, 30, 40, 80}, []string{"Band", "Rating", "Colour", "Suggested action"}, true)
	for _, b := range doc.RiskLegend {
		row([]float64{40, 30, 40, 80}, []string{
			b.Name, fmt.Sprintf("%d-%d", b.MinRating, b.MaxRating), b.Colour, b.SuggestedAction,
		}, false)
	}
	if len(doc.Risks) > 0 {
		pdf.Ln(2)
		sub("Risk register")
		row([]float64{80, 20, 20, 20, 50}, []string{"Description", "L", "I", "Rating", "Severity"}, true)
		for _, r := range doc.Risks {
			row([]float64{80, 20, 20, 20, 50}, []string{
				r.Description,
				fmt.Sprintf("%d", r.Likelihood),
				fmt.Sprintf("%d", r.Impact),
				fmt.Sprintf("%d", r.Rating),
				r.Severity,
			}, false)
		}
	}
	if len(doc.Insurance) > 0 {
		pdf.Ln(2)
		sub("Insurance")
		row([]float64{50, 50, 45, 45}, []string{"Policy type", "Insurer", "Policy no.", "Cover"}, true)
		for _, p := range doc.Insurance {
			row([]float64{50, 50, 45, 45}, []string{p.PolicyType, p.Insurer, p.PolicyNumber, p.CoverAmount}, false)
		}
	}
	if len(doc.Backups) > 0 {
		pdf.Ln(2)
		sub("Data backups")
		row([]float64{70, 50, 70}, []string{"Data", "Frequency", "Location"}, true)
		for _, b := range doc.Backups {
			row([]float64{70, 50, 70}, []string{b.DataType, b.Frequency, b.Location}, false)
		}
	}
	pdf.Ln(4)

	// 3. Business Impact Analysis
	heading("3. Business Impact Analysis")
	if len(doc.Activities) > 0 {
		row([]float64{90, 40, 60}, []string{"Critical activity", "RTO", "Notes"}, true)
		for _, a := range doc.Activities {
			row([]float64{90, 40, 60}, []string{a.Activity.Name, a.RTOLabel, a.Notes}, false)
		}
	} else {
		body("No critical activities recorded.")
	}
	pdf.Ln(4)

	// 4. Incident Response
	heading("4. Incident Response")
	if len(doc.ImmediateChecklist) > 0 {
		sub("Immediate response checklist")
		for _, item := range doc.ImmediateChecklist {
			body(fmt.Sprintf("%d. %s", item.Position, item.Text))
		}
	}
	if len(doc.Roles) > 0 {
		pdf.Ln(2)
		sub("Roles and responsibilities")
		row([]float64{60, 130}, []string{"Role", "Responsibilities"}, true)
		for _, r := range doc.Roles {
			row([]float64{60, 130}, []string{r.Title, r.Responsibilities}, false)
		}
	}
	if len(doc.Contacts) > 0 {
		pdf.Ln(2)
		sub("Key contacts")
		row([]float64{50, 45, 40, 55}, []string{"Name", "Role", "Phone", "Email"}, true)
		for _, ct := range doc.Contacts {
			row([]float64{50, 45, 40, 55}, []string{ct.Name, ct.Role, ct.Phone, ct.Email}, false)
		}
	}
	if len(doc.Events) > 0 {
		pdf.Ln(2)
		sub("Event log")
		row([]float64{50, 25, 115}, []string{"Timestamp", "Initials", "Notes"}, true)
		for _, e := range doc.Events {
			row([]float64{50, 25, 115}, []string{
				e.HappenedAt.UTC().Format(time.RFC3339), e.Initials, e.Notes,
			}, false)
		}
	}
	pdf.Ln(4)

	// 5. Recovery
	heading("5. Recovery")
	if len(doc.RecoveryActions) > 0 {
		sub("Recovery actions")
		row([]float64{100, 40, 50}, []string{"Action", "Due", "Status"}, true)
		for _, a := range doc.RecoveryActions {
			due := ""
			if a.DueDate != nil {
				due = a.DueDate.Format("2006-01-02")
			}
			status := "open"
			if a.Completed {
				status = "completed"
			} else if a.Overdue(doc.GeneratedAt) {
				status = "overdue"
			}
			row([]float64{100, 40, 50}, []string{a.Description, due, status}, false)
		}
	}
	if len(doc.RecoveryChecklist) > 0 {
		pdf.Ln(2)
		sub("Crisis recovery checklist")
		for _, item := range doc.RecoveryChecklist {
			body(fmt.Sprintf("%d. %s", item.Position, item.Text))
		}
	}
	if len(doc.Claims) > 0 {
		pdf.Ln(2)
		sub("Insurance claims")
		row([]float64{55, 45, 40, 50}, []string{"Insurer", "Claim no.", "Status", "Lodged"}, true)
		for _, cl := range doc.Claims {
			lodged := ""
			if cl.LodgedAt != nil {
				lodged = cl.LodgedAt.Format("2006-01-02")
			}
			row([]float64{55, 45, 40, 50}, []string{cl.Insurer, cl.ClaimNumber, cl.Status, lodged}, false)
		}
	}
	if len(doc.MarketChanges) > 0 {
		pdf.Ln(2)
		sub("Market assessment")
		row([]float64{63, 63, 64}, []string{"Change", "Impact", "Response"}, true)
		for _, m := range doc.MarketChanges {
			row([]float64{63, 63, 64}, []string{m.Change, m.Impact, m.Response}, false)
		}
	}
	pdf.Ln(4)

	// 6. Rehearse/Maintain/Review
	heading("6. Rehearse, Maintain and Review")
	if len(doc.Training) > 0 {
		sub("Training schedule")
		row([]float64{100, 45, 45}, []string{"Activity", "Scheduled", "Status"}, true)
		for _, ti := range doc.Training {
			scheduled := ""
			if ti.ScheduledFor != nil {
				scheduled = ti.ScheduledFor.Format("2006-01-02")
			}
			status := "planned"
			if ti.Completed {
				status = "completed"
			}
			row([]float64{100, 45, 45}, []string{ti.Activity, scheduled, status}, false)
		}
	}
	if len(doc.ReviewSchedule) > 0 {
		pdf.Ln(2)
		sub("Review schedule")
		row([]float64{100, 45, 45}, []string{"Activity", "Frequency", "Next due"}, true)
		for _, ri := range doc.ReviewSchedule {
			next := ""
			if ri.NextDue != nil {
				next = ri.NextDue.Format("2006-01-02")
			}
			row([]float64{100, 45, 45}, []string{ri.Activity, ri.Frequency, next}, false)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

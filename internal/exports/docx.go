package exports

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
	"time"
)

// Minimal WordprocessingML package. Entries are written in a fixed order
// with zeroed timestamps so identical inputs produce identical bytes.
const (
	docxContentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
		`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
		`<Default Extension="xml" ContentType="application/xml"/>` +
		`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
		`</Types>`

	docxRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
		`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
		`</Relationships>`
)

type docxWriter struct {
	body strings.Builder
}

func (w *docxWriter) paragraph(style, text string) {
	w.body.WriteString(`<w:p><w:pPr><w:pStyle w:val="` + style + `"/></w:pPr>`)
	w.body.WriteString(`<w:r><w:t xml:space="preserve">`)
	_ = xml.EscapeText(&w.body, []byte(text))
	w.body.WriteString(`</w:t></w:r></w:p>`)
}

func (w *docxWriter) heading1(text string) { w.paragraph("Heading1", text) }
func (w *docxWriter) heading2(text string) { w.paragraph("Heading2", text) }
func (w *docxWriter) text(text string)     { w.paragraph("Normal", text) }

func (w *docxWriter) table(header []string, rows [][]string) {
	w.body.WriteString(`<w:tbl><w:tblPr><w:tblStyle w:val="TableGrid"/><w:tblW w:w="0" w:type="auto"/></w:tblPr>`)
	writeRow := func(cells []string, bold bool) {
		w.body.WriteString(`<w:tr>`)
		for _, cell := range cells {
			w.body.WriteString(`<w:tc><w:tcPr/><w:p><w:r>`)
			if bold {
				w.body.WriteString(`<w:rPr><w:b/></w:rPr>`)
			}
			w.body.WriteString(`<w:t xml:space="preserve">`)
			_ = xml.EscapeText(&w.body, []byte(cell))
			w.body.WriteString(`</w:t></w:r></w:p></w:tc>`)
		}
		w.body.WriteString(`</w:tr>`)
	}
	writeRow(header, true)
	for _, cells := range rows {
		writeRow(cells, false)
	}
	w.body.WriteString(`</w:tbl><w:p/>`)
}

func (w *docxWriter) document() string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
		`<w:body>` + w.body.String() + `<w:sectPr/></w:body></w:document>`
}

// RenderDOCX lays the gathered plan out as a DOCX with the same section
// order as the PDF.
func RenderDOCX(doc *PlanDocument) ([]byte, error) {
	w := &docxWriter{}

	w.heading1(doc.Plan.Title)
	w.text(fmt.Sprintf("%s — generated %s", doc.Company.Name,
		doc.GeneratedAt.Format("2 January 2006")))

	w.heading1("1. Plan Overview")
	if doc.Plan.ExecutiveSummary != "" {
		w.heading2("Executive summary")
		w.text(doc.Plan.ExecutiveSummary)
	}
	if len(doc.Objectives) > 0 {
		w.heading2("Objectives")
		for _, o := range doc.Objectives {
			w.text("- " + o.Text)
		}
	}
	if len(doc.Distribution) > 0 {
		w.heading2("Distribution list")
		rows := make([][]string, 0, len(doc.Distribution))
		for _, d := range doc.Distribution {
			issued := ""
			if d.IssuedAt != nil {
				issued = d.IssuedAt.Format("2006-01-02")
			}
			rows = append(rows, []string{d.Name, d.Role, issued})
		}
		w.table([]string{"Name", "Role", "Issued"}, rows)
	}

	w.heading1("2. Risk Management")
	w.heading2("Severity legend")
	legend := make([][]string, 0, len(doc.RiskLegend))
	for _, b := range doc.RiskLegend {
		legend = append(legend, []string{
			b.Name, fmt.Sprintf("%d-%d", b.MinRating, b.MaxRating), b.Colour, b.SuggestedAction,
		})
	}
	w.table([]string{"Band", "Rating", "Colour", "Suggested action"}, legend)
	if len(doc.Risks) > 0 {
		w.heading2("Risk register")
		rows := make([][]string, 0, len(doc.Risks))
		for _, r := range doc.Risks {
			rows = append(rows, []string{
				r.Description,
				fmt.Sprintf("%d", r.Likelihood),
				fmt.Sprintf("%d", r.Impact),
				fmt.Sprintf("%d", r.Rating),
				r.Severity,
			})
		}
		w.table([]string{"Description", "L", "I", "Rating", "Severity"}, rows)
	}
	if len(doc.Insurance) > 0 {
		w.heading2("Insurance")
		rows := make([][]string, 0, len(doc.Insurance))
		for _, p := range doc.Insurance {
			rows = append(rows, []string{p.PolicyType, p.Insurer, p.PolicyNumber, p.CoverAmount})
		}
		w.table([]string{"Policy type", "Insurer", "Policy no.", "Cover"}, rows)
	}
	if len(doc.Backups) > 0 {
		w.heading2("Data backups")
		rows := make([][]string, 0, len(doc.Backups))
		for _, b := range doc.Backups {
			rows = append(rows, []string{b.DataType, b.Frequency, b.Location})
		}
		w.table([]string{"Data", "Frequency", "Location"}, rows)
	}

	w.heading1("3. Business Impact Analysis")
	if len(doc.Activities) > 0 {
		rows := make([][]string, 0, len(doc.Activities))
		for _, a := range doc.Activities {
			rows = append(rows, []string{a.Activity.Name, a.RTOLabel, a.Notes})
		}
		w.table([]string{"Critical activity", "RTO", "Notes"}, rows)
	} else {
		w.text("No critical activities recorded.")
	}

	w.heading1("4. Incident Response")
	if len(doc.ImmediateChecklist) > 0 {
		w.heading2("Immediate response checklist")
		for _, item := range doc.ImmediateChecklist {
			w.text(fmt.Sprintf("%d. %s", item.Position, item.Text))
		}
	}
	if len(doc.Roles) > 0 {
		w.heading2("Roles and responsibilities")
		rows := make([][]string, 0, len(doc.Roles))
		for _, r := range doc.Roles {
			rows = append(rows, []string{r.Title, r.Responsibilities})
		}
		w.table([]string{"Role", "Responsibilities"}, rows)
	}
	if len(doc.Contacts) > 0 {
		w.heading2("Key contacts")
		rows := make([][]string, 0, len(doc.Contacts))
		for _, ct := range doc.Contacts {
			rows = append(rows, []string{ct.Name, ct.Role, ct.Phone, ct.Email})
		}
		w.table([]string{"Name", "Role", "Phone", "Email"}, rows)
	}
	if len(doc.Events) > 0 {
		w.heading2("Event log")
		rows := make([][]string, 0, len(doc.Events))
		for _, e := range doc.Events {
			rows = append(rows, []string{
				e.HappenedAt.UTC().Format(time.RFC3339), e.Initials, e.Notes,
			})
		}
		w.table([]string{"Timestamp", "Initials", "Notes"}, rows)
	}

	w.heading1("5. Recovery")
	if len(doc.RecoveryActions) > 0 {
		w.heading2("Recovery actions")
		rows := make([][]string, 0, len(doc.RecoveryActions))
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
			rows = append(rows, []string{a.Description, due, status})
		}
		w.table([]string{"Action", "Due", "Status"}, rows)
	}
	if len(doc.RecoveryChecklist) > 0 {
		w.heading2("Crisis recovery checklist")
		for _, item := range doc.RecoveryChecklist {
			w.text(fmt.Sprintf("%d. %s", item.Position, item.Text))
		}
	}
	if len(doc.Claims) > 0 {
		w.heading2("Insurance claims")
		rows := make([][]string, 0, len(doc.Claims))
		for _, cl := range doc.Claims {
			lodged := ""
			if cl.LodgedAt != nil {
				lodged = cl.LodgedAt.Format("2006-01-02")
			}
			rows = append(rows, []string{cl.Insurer, cl.ClaimNumber, cl.Status, lodged})
		}
		w.table([]string{"Insurer", "Claim no.", "Status", "Lodged"}, rows)
	}
	if len(doc.MarketChanges) > 0 {
		w.heading2("Market assessment")
		rows := make([][]string, 0, len(doc.MarketChanges))
		for _, m := range doc.MarketChanges {
			rows = append(rows, []string{m.Change, m.Impact, m.Response})
		}
		w.table([]string{"Change", "Impact", "Response"}, rows)
	}

	w.heading1("6. Rehearse, Maintain and Review")
	if len(doc.Training) > 0 {
		w.heading2("Training schedule")
		rows := make([][]string, 0, len(doc.Training))
		for _, ti := range doc.Training {
			scheduled := ""
			if ti.ScheduledFor != nil {
				scheduled = ti.ScheduledFor.Format("2006-01-02")
			}
			status := "planned"
			if ti.Completed {
				status = "completed"
			}
			rows = append(rows, []string{ti.Activity, scheduled, status})
		}
		w.table([]string{"Activity", "Scheduled", "Status"}, rows)
	}
	if len(doc.ReviewSchedule) > 0 {
		w.heading2("Review schedule")
		rows := make([][]string, 0, len(doc.ReviewSchedule))
		for _, ri := range doc.ReviewSchedule {
			next := ""
			if ri.NextDue != nil {
				next = ri.NextDue.Format("2006-01-02")
			}
			rows = append(rows, []string{ri.Activity, ri.Frequency, next})
		}
		w.table([]string{"Activity", "Frequency", "Next due"}, rows)
	}

	return packDOCX(w.document())
}

func packDOCX(documentXML string) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	parts := []struct {
		name string
		data string
	}{
		{"[Content_Types].xml", docxContentTypes},
		{"_rels/.rels", docxRels},
		{"word/document.xml", documentXML},
	}
	for _, part := range parts {
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:     part.name,
			Method:   zip.Deflate,
			Modified: time.Unix(0, 0).UTC(),
		})
		if err != nil {
			return nil, err
		}
		if _, err := fw.Write([]byte(part.data)); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

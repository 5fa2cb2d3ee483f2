package render

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
)

// ReportRenderer renders the quality report as a standalone HTML document.
type ReportRenderer struct {
	tmpl *template.Template
}

// NewReportRenderer compiles the built-in report template.
func NewReportRenderer() (*ReportRenderer, error) {
	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"join": func(items []string) string { return strings.Join(items, " - ") },
	}).Parse(reportTemplate)
	if err != nil {
		return nil, fmt.Errorf("parsing report template: %w", err)
	}
	return &ReportRenderer{tmpl: tmpl}, nil
}

// Render produces the report bytes for data.
func (r *ReportRenderer) Render(_ context.Context, data ReportData) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("rendering report: %w", err)
	}
	return buf.Bytes(), nil
}

const reportTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>LLC {{.ID}}</title></head>
<body style="font-family:Segoe UI, Arial, sans-serif">
<h1>Lesson Learned Card {{.ID}}</h1>
<p><b>Date:</b> {{.CreatedAt}} &mdash; <b>Plant:</b> {{.Plant}} &mdash; <b>Editor:</b> {{.Editor}}</p>
<table border="1" cellpadding="6" cellspacing="0">
<tr><th>Category</th><td>{{.Category}}</td><th>Type</th><td>{{.LlcType}}</td></tr>
<tr><th>Customer</th><td>{{.Customer}}</td><th>Product line</th><td>{{.ProductLineLabel}}</td></tr>
<tr><th>Product family</th><td>{{.ProductFamily}}</td><th>Product type</th><td>{{.ProductType}}</td></tr>
<tr><th>Application</th><td>{{.ApplicationLabel}}</td><th>Part / machine</th><td>{{.PartOrMachineNumber}}</td></tr>
<tr><th>Quality detection</th><td>{{.QualityDetection}}</td><th>Failure mode</th><td>{{.FailureMode}}</td></tr>
</table>
<h2>Problem</h2>
<p><b>{{.ProblemShort}}</b></p>
<p>{{.ProblemDetail}}</p>
<h2>Root causes</h2>
{{range .RootCauses}}
<h3>{{.Index}}. {{.RootCause}}</h3>
<p>{{.DetailedCauseDescription}}</p>
<p><b>Solution:</b> {{.SolutionDescription}}</p>
<p><b>Conclusion:</b> {{.Conclusion}}</p>
<p><b>Process:</b> {{.Process}} &mdash; <b>Origin:</b> {{.Origin}}</p>
{{if .EvidenceName}}<p><b>Evidence:</b> {{.EvidenceName}}</p>{{end}}
{{end}}
<h2>Conclusions</h2>
<p>{{.Conclusions}}</p>
{{if .DistributionTo}}<h2>Distribution</h2><p>{{join .DistributionTo}}</p>{{end}}
</body>
</html>
`

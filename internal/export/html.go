// Copyright (c) 2026 Mesa Technologies
// testhub - PCB manufacturing test station hub
// This source code is licensed under the MIT license found in the LICENSE file.

package export

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/mesa-nmanteufel/testhub/internal/model"
)

var htmlFuncs = template.FuncMap{
	"statusClass": func(s string) string {
		if s == model.StatusPass {
			return "pass"
		}
		return "fail"
	},
}

var reportsTmpl = template.Must(template.New("reports").Funcs(htmlFuncs).Parse(`<html><head><style>
table { border-collapse: collapse; width: 100%; margin-bottom: 20px; }
th, td { border: 1px solid #dddddd; text-align: left; padding: 8px; }
tr:nth-child(even) { background-color: #f2f2f2; }
tr:hover { background-color: #d1e7dd; }
h2 { color: #333; }
h3 { color: #555; }
p { font-size: 14px; }
.pass { font-weight: bold; color: green; }
.fail { font-weight: bold; color: red; }
</style></head><body>
<h2>Test Reports</h2>
{{range .}}<h3>Report Timestamp: {{.Timestamp}}</h3>
<p>Barcode: <strong>{{.Barcode}}</strong></p>
<p>Overall Status: <strong class="{{statusClass .OverallStatus}}">{{.OverallStatus}}</strong></p>
<h4>Test Results:</h4>
<table>
<tr><th>Test Number</th><th>Description</th><th>Target Value</th><th>Lower Limit</th><th>Upper Limit</th><th>Measured Value</th><th>Conclusion</th></tr>
{{range .Results}}<tr><td>{{.TestNumber}}</td><td>{{.Description}}</td><td>{{.TargetValue}}</td><td>{{.LowerLimit}}</td><td>{{.UpperLimit}}</td><td>{{.MeasuredValue}}</td><td class="{{statusClass .Conclusion}}">{{.Conclusion}}</td></tr>
{{end}}</table>
{{end}}</body></html>
`))

var messagesTmpl = template.Must(template.New("messages").Parse(`<h3>{{.Title}}</h3>
<table border="1" style="width: 100%; border-collapse: collapse;">
<tr><th style="padding: 10px;">Timestamp</th><th style="padding: 10px;">Message</th></tr>
{{range .Rows}}<tr><td style="padding: 10px;">{{.Timestamp}}</td><td style="padding: 10px;">{{.Message}}</td></tr>
{{end}}</table>
`))

type messageRow struct {
	Timestamp string
	Message   string
}

// ReportsHTML renders a set of reports as a standalone HTML document,
// newest-first order preserved from the caller.
func ReportsHTML(reports []model.TestReport) (string, error) {
	var sb strings.Builder
	if err := reportsTmpl.Execute(&sb, reports); err != nil {
		return "", fmt.Errorf("failed to render reports: %w", err)
	}
	return sb.String(), nil
}

// RedTagHTML renders red tag messages as an HTML table fragment.
func RedTagHTML(msgs []model.RedTagMessage) (string, error) {
	if len(msgs) == 0 {
		return "<p>No red tag messages available.</p>", nil
	}
	rows := make([]messageRow, 0, len(msgs))
	for _, m := range msgs {
		rows = append(rows, messageRow{Timestamp: m.Timestamp, Message: m.Message})
	}
	return renderMessages("Red Tag Messages", rows)
}

// ProcessFlowHTML renders process flow messages as an HTML table fragment.
func ProcessFlowHTML(msgs []model.ProcessMessage) (string, error) {
	if len(msgs) == 0 {
		return "<p>No process flow information available.</p>", nil
	}
	rows := make([]messageRow, 0, len(msgs))
	for _, m := range msgs {
		rows = append(rows, messageRow{Timestamp: m.Timestamp, Message: m.Message})
	}
	return renderMessages("Process Flow Messages", rows)
}

func renderMessages(title string, rows []messageRow) (string, error) {
	var sb strings.Builder
	err := messagesTmpl.Execute(&sb, struct {
		Title string
		Rows  []messageRow
	}{title, rows})
	if err != nil {
		return "", fmt.Errorf("failed to render %s: %w", strings.ToLower(title), err)
	}
	return sb.String(), nil
}

package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strconv"
	"strings"
	"time"

	"chemtrack-backend/internal/models"
)

const footer = "Chemical Observation System"

var alertHTML = template.Must(template.New("alert").Funcs(template.FuncMap{
	"qty": formatQty,
}).Parse(`<!DOCTYPE html>
<html>
<head>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
    .container { max-width: 600px; margin: 0 auto; padding: 20px; }
    .header { background: #dc2626; color: white; padding: 20px; border-radius: 8px 8px 0 0; }
    .content { background: #f9fafb; padding: 20px; border: 1px solid #e5e7eb; border-top: none; }
    .footer { background: #1f2937; color: #9ca3af; padding: 15px; text-align: center; font-size: 12px; border-radius: 0 0 8px 8px; }
    ul { background: white; padding: 20px; border-radius: 8px; list-style: none; }
    li { padding: 10px; border-bottom: 1px solid #e5e7eb; }
    li:last-child { border-bottom: none; }
    .warning { color: #ef4444; font-weight: bold; }
  </style>
</head>
<body>
  <div class="container">
    <div class="header">
      <h1 style="margin: 0;">Low Stock Alert</h1>
      <p style="margin: 10px 0 0 0;">Chemical Inventory Management System</p>
    </div>
    <div class="content">
      <p>The following <span class="warning">{{len .Chemicals}} chemical(s)</span> are at or below their low stock threshold:</p>
      <ul>
        {{- range .Chemicals}}
        <li><strong>{{.Name}}</strong>: {{qty .CurrentStock}} {{.Unit}} <span style="color: #ef4444;">(Threshold: {{qty .LowStockThreshold}} {{.Unit}})</span></li>
        {{- end}}
      </ul>
      <p><strong>Action Required:</strong> Please restock these chemicals as soon as possible to ensure continuous operation.</p>
    </div>
    <div class="footer">
      <p>` + footer + ` | Treatment Plant Inventory Management</p>
      <p>{{.SentAt}}</p>
    </div>
  </div>
</body>
</html>
`))

// Subject is the alert subject line for n chemicals.
func Subject(n int) string {
	return fmt.Sprintf("Low Stock Alert: %d Chemical(s) Need Restocking", n)
}

// composeAlert renders the batched alert for every low chemical.
func composeAlert(chems []models.Chemical, now time.Time) (subject, text, html string, err error) {
	var tb strings.Builder
	tb.WriteString("Low Stock Alert\n\nThe following chemicals are at or below their low stock threshold:\n\n")
	for _, c := range chems {
		fmt.Fprintf(&tb, "• %s: %s %s (Threshold: %s %s)\n",
			c.Name, formatQty(c.CurrentStock), c.Unit, formatQty(c.LowStockThreshold), c.Unit)
	}
	tb.WriteString("\nPlease restock as soon as possible.\n\n---\n" + footer)

	var hb bytes.Buffer
	data := struct {
		Chemicals []models.Chemical
		SentAt    string
	}{chems, now.Format("Jan 2, 2006 15:04 MST")}
	if err := alertHTML.Execute(&hb, data); err != nil {
		return "", "", "", err
	}

	return Subject(len(chems)), tb.String(), hb.String(), nil
}

func formatQty(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

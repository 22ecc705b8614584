// Package report renders takeaways for people.
package report

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"alertlens/pkg/models"
)

const title = "Key Security Takeaways"

var page = template.Must(template.New("takeaways").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}).Parse(`<!DOCTYPE html>
<html lang='en'><head><meta charset='utf-8'>
<meta name='viewport' content='width=device-width,initial-scale=1'>
<title>Top {{len .Items}} Security Takeaways</title>
<style>
 body{margin:0;padding:2rem 1rem;font-family:-apple-system,BlinkMacSystemFont,
 'Segoe UI',Helvetica,Arial,sans-serif;line-height:1.6;background:#fff;color:#1a1a1a;}
 @media(prefers-color-scheme:dark){body{background:#121212;color:#e0e0e0;}}
 main{max-width:56rem;margin:auto;}
 h1{font-size:1.9rem;color:#0366d6;margin-bottom:1.5rem;}
 h2{font-size:1.25rem;margin:1.25rem 0 .6rem;}
 ul{padding-left:1.25rem;margin:0 0 1.2rem;}
 li{margin-bottom:.5rem;}
 strong{color:#555;}
</style></head><body><main>
<h1>{{.Title}}</h1>
{{range $i, $t := .Items}}<section class='takeaway'>
  <h2>{{inc $i}}. {{$t.Title}}</h2>
  <ul>
    <li><strong>What this means:</strong> {{$t.What}}</li>
    <li><strong>What impact:</strong> {{$t.Impact}}</li>
    <li><strong>How to mitigate:</strong> {{$t.Mitigation}}</li>
  </ul>
</section>
{{end}}</main></body></html>
`))

// Text renders takeaways as numbered plain-text blocks.
func Text(items []models.Takeaway) string {
	var b strings.Builder
	for i, t := range items {
		fmt.Fprintf(&b, "%d. %s\n", i+1, t.Title)
		fmt.Fprintf(&b, "- What this means: %s\n", t.What)
		fmt.Fprintf(&b, "- What impact: %s\n", t.Impact)
		fmt.Fprintf(&b, "- How to mitigate: %s\n", t.Mitigation)
		if i < len(items)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// HTML renders takeaways as a standalone page. All text is escaped.
func HTML(items []models.Takeaway) (string, error) {
	var buf bytes.Buffer
	data := struct {
		Title string
		Items []models.Takeaway
	}{Title: title, Items: items}
	if err := page.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render html report: %w", err)
	}
	return buf.String(), nil
}

// Render returns both renderings.
func Render(items []models.Takeaway) (plain, html string, err error) {
	html, err = HTML(items)
	if err != nil {
		return "", "", err
	}
	return Text(items), html, nil
}

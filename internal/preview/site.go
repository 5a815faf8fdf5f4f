// Package preview renders the single-page web application that a sandbox serves
// to show search results.
package preview

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	texttemplate "text/template"

	"github.com/anatolykoptev/go_jobpreview/internal/engine"
	"github.com/anatolykoptev/go_jobpreview/internal/engine/jobs"
)

// MaxCards is the number of listings embedded in the page.
const MaxCards = 10

// AppFile is the file name the generated application is uploaded as.
const AppFile = "app.py"

// DefaultPort is the port the generated application binds to when PORT is unset.
const DefaultPort = 3000

// Routes served by the generated application.
const (
	CallbackPath = "/callback"
	HealthPath   = "/healthz"
)

type card struct {
	Index int
	engine.FormattedListing
}

var pageTmpl = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Job Search Results</title>
<style>
body { font-family: Arial, sans-serif; max-width: 1000px; margin: 0 auto; padding: 20px; background-color: #f5f5f5; }
h1 { text-align: center; color: #333; }
.job-card { background-color: white; border: 1px solid #ddd; border-radius: 8px; padding: 20px; margin: 15px 0; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
.job-card h3 { margin-top: 0; color: #2c3e50; }
.job-card p { margin: 10px 0; color: #555; }
.job-card strong { color: #333; }
.btn { display: inline-block; padding: 10px 20px; background-color: #007bff; color: white; text-decoration: none; border-radius: 4px; margin-top: 10px; transition: background-color 0.3s; }
.btn:hover { background-color: #0056b3; }
</style>
</head>
<body>
<h1>Job Search Results</h1>
{{- range .}}
<div class="job-card">
<h3>{{.Index}}. {{.Title}}</h3>
<p><strong>Company:</strong> {{.Company}}</p>
<p><strong>Location:</strong> {{.Location}}</p>
<p><strong>Type:</strong> {{.EmploymentType}}</p>
<p><strong>Description:</strong> {{.Description}}</p>
<a href="{{.ApplyLink}}" target="_blank" rel="noopener" class="btn">Apply Now</a>
</div>
{{- end}}
</body>
</html>
`))

// The page is embedded as a JSON string literal, which Python parses as a plain str.
var appTmpl = texttemplate.Must(texttemplate.New("app").Parse(`from flask import Flask
import os

app = Flask(__name__)

PAGE = {{.Page}}


@app.route("{{.Callback}}")
def callback():
    return "ok", 200


@app.route("{{.Health}}")
def healthz():
    return "ok", 200


@app.route("/")
def jobs():
    return PAGE


if __name__ == "__main__":
    port = int(os.environ.get("PORT", "{{.Port}}"))
    app.run(host="0.0.0.0", port=port)
`))

// RenderPage renders the listings page for at most MaxCards listings.
// Listing fields are HTML-escaped; apply links with unsafe schemes are neutralised.
func RenderPage(listings []engine.Listing) (string, error) {
	formatted := jobs.FormatListings(listings, MaxCards)
	cards := make([]card, len(formatted))
	for i, f := range formatted {
		cards[i] = card{Index: i + 1, FormattedListing: f}
	}
	var buf bytes.Buffer
	if err := pageTmpl.Execute(&buf, cards); err != nil {
		return "", fmt.Errorf("render page: %w", err)
	}
	return buf.String(), nil
}

// Generate returns the source of the web application serving the listings page.
func Generate(listings []engine.Listing) (string, error) {
	page, err := RenderPage(listings)
	if err != nil {
		return "", err
	}
	literal, err := json.Marshal(page)
	if err != nil {
		return "", fmt.Errorf("encode page: %w", err)
	}
	var buf bytes.Buffer
	err = appTmpl.Execute(&buf, map[string]any{
		"Page":     string(literal),
		"Callback": CallbackPath,
		"Health":   HealthPath,
		"Port":     DefaultPort,
	})
	if err != nil {
		return "", fmt.Errorf("render app: %w", err)
	}
	return buf.String(), nil
}

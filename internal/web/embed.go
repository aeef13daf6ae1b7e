// Package web embeds the page, its panel partials and the browser assets.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
)

// PageTemplate is the single page that hosts the upload, chat and email
// panels. Each panel is a partial under templates/partials.
const PageTemplate = "index.html"

//go:embed static
var staticFiles embed.FS

//go:embed templates
var templateFiles embed.FS

// StaticFS serves app.js and app.css with the "static/" prefix stripped.
var StaticFS fs.FS

// Templates holds PageTemplate and the upload_panel, chat_panel and
// email_panel partials.
var Templates *template.Template

func init() {
	var err error
	if StaticFS, err = fs.Sub(staticFiles, "static"); err != nil {
		slog.Error("web: failed to create static FS", "err", err)
		panic(err)
	}
	if Templates, err = parseTemplates(templateFiles); err != nil {
		slog.Error("web: failed to parse templates", "err", err)
		panic(err)
	}
}

func parseTemplates(fsys fs.FS) (*template.Template, error) {
	tmpl, err := template.New("").ParseFS(fsys, "templates/"+PageTemplate, "templates/partials/*.html")
	if err != nil {
		return nil, err
	}
	for _, name := range []string{"upload_panel", "chat_panel", "email_panel"} {
		if tmpl.Lookup(name) == nil {
			return nil, fmt.Errorf("web: missing partial %q", name)
		}
	}
	return tmpl, nil
}

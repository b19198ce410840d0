package handlers

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"strings"

	"github.com/healthharmony/assistant/internal/domain/assessment"
	"github.com/healthharmony/assistant/internal/ports/inbound"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static/*
var staticFS embed.FS

// ParseTemplates parses the embedded page and fragment templates
func ParseTemplates() (*template.Template, error) {
	funcMap := template.FuncMap{
		"riskClass": func(level assessment.RiskLevel) string {
			return "risk-" + strings.ToLower(string(level))
		},
		"noticeClass": func(kind inbound.NoticeKind) string {
			return "toast-" + strings.ReplaceAll(string(kind), "_", "-")
		},
	}

	tmpl, err := template.New("").Funcs(funcMap).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return tmpl, nil
}

// StaticFS serves stylesheets and scripts under /static/
func StaticFS() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

package main

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
)

//go:embed templates/admin/*.tmpl templates/citizen/*.tmpl admin_static/*
var assetsFS embed.FS

// templateRenderer parses a layout plus one content template per render. In
// development the files are read from disk so edits show up without a rebuild.
type templateRenderer struct {
	env string
}

func newTemplateRenderer(env string) *templateRenderer {
	return &templateRenderer{env: env}
}

var templateFuncs = template.FuncMap{
	"fieldError": func(errs fieldErrors, field string) string {
		return errs[field]
	},
	"truncate": truncateText,
	"teamTable": func(text map[string]string, members []teamMemberView) teamTableView {
		return teamTableView{Text: text, Members: members}
	},
}

// teamTableView feeds the shared team table partial.
type teamTableView struct {
	Text    map[string]string
	Members []teamMemberView
}

func (r *templateRenderer) sourceFS() fs.FS {
	if r.env == "development" {
		return os.DirFS(".")
	}
	return assetsFS
}

func (r *templateRenderer) templatesForRender(layoutPath, contentPath string) (*template.Template, error) {
	templates, err := template.New("layout.tmpl").Funcs(templateFuncs).ParseFS(r.sourceFS(), layoutPath, contentPath)
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return templates, nil
}

func (r *templateRenderer) render(c *gin.Context, status int, layoutPath, contentPath string, data any) error {
	templates, err := r.templatesForRender(layoutPath, contentPath)
	if err != nil {
		c.String(http.StatusInternalServerError, "template error: %v", err)
		return err
	}

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(status)
	if err := templates.ExecuteTemplate(c.Writer, "layout", data); err != nil {
		if !c.Writer.Written() {
			c.String(http.StatusInternalServerError, "render failure")
		}
		return err
	}
	return nil
}

func (a *App) renderAdminTemplate(c *gin.Context, status int, contentPath string, data any) {
	if err := a.templates.render(c, status, adminLayoutPath, contentPath, data); err != nil {
		a.log.Error("render admin template failed", "template", contentPath, "error", err)
	}
}

func (a *App) renderCitizenTemplate(c *gin.Context, status int, contentPath string, data any) {
	if err := a.templates.render(c, status, citizenLayoutPath, contentPath, data); err != nil {
		a.log.Error("render citizen template failed", "template", contentPath, "error", err)
	}
}

func staticFileSystem(env string) (http.FileSystem, error) {
	if env == "development" {
		return http.Dir("admin_static"), nil
	}

	sub, err := fs.Sub(assetsFS, "admin_static")
	if err != nil {
		return nil, fmt.Errorf("static fs: %w", err)
	}
	return http.FS(sub), nil
}

func truncateText(text string, limit int) string {
	runes := []rune(strings.TrimSpace(text))
	if limit <= 0 || len(runes) <= limit {
		return string(runes)
	}
	return strings.TrimSpace(string(runes[:limit])) + "…"
}

package main

import (
	"context"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"

	"sambodhan/libs/mailer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingProvider struct {
	mu   sync.Mutex
	sent []mailer.Message
}

func (p *recordingProvider) Name() string { return "recording" }

func (p *recordingProvider) Send(ctx context.Context, msg mailer.Message) (mailer.SendResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, msg)
	return mailer.SendResult{ProviderMessageID: "msg-1"}, nil
}

const exportCSV = "id,message,status\n1,Broken streetlight,Pending\n"

func TestAdminExportCSVStreamsBackendExport(t *testing.T) {
	ta := newTestApp(t)
	var gotQuery url.Values
	ta.backend.handle("GET /api/analytics/export", func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="lalitpur.csv"`)
		_, _ = io.WriteString(w, exportCSV)
	})

	rec := ta.serve(adminRequest(t, ta.App, http.MethodGet, "/admin-dashboard/export.csv", nil, departmentAdmin()))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, exportCSV, rec.Body.String())
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=lalitpur.csv", rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "12", gotQuery.Get("municipality_id"))
	assert.NotEmpty(t, gotQuery.Get("department"))
}

func TestAdminExportCSVEncodesNonASCIIFilename(t *testing.T) {
	ta := newTestApp(t)
	ta.backend.handle("GET /api/analytics/export", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename*=UTF-8''%E0%A4%95%E0%A4%BE%E0%A4%A0%E0%A4%AE%E0%A4%BE%E0%A4%A1%E0%A5%8C%E0%A4%82.csv`)
		_, _ = io.WriteString(w, exportCSV)
	})

	rec := ta.serve(adminRequest(t, ta.App, http.MethodGet, "/admin-dashboard/export.csv", nil, municipalAdmin()))

	require.Equal(t, http.StatusOK, rec.Code)
	disposition := rec.Header().Get("Content-Disposition")
	assert.NotContains(t, disposition, `\u`)
	_, params, err := mime.ParseMediaType(disposition)
	require.NoError(t, err)
	assert.Equal(t, "काठमाडौं.csv", params["filename"])
}

func TestAttachmentDisposition(t *testing.T) {
	assert.Equal(t, "attachment; filename=report.csv", attachmentDisposition("report.csv"))
	assert.Equal(t, `attachment; filename="my report.csv"`, attachmentDisposition("my report.csv"))

	_, params, err := mime.ParseMediaType(attachmentDisposition("काठमाडौं.csv"))
	require.NoError(t, err)
	assert.Equal(t, "काठमाडौं.csv", params["filename"])
}

func TestAdminExportCSVBackendFailureRedirects(t *testing.T) {
	ta := newTestApp(t)
	ta.backend.respond("GET /api/analytics/export", http.StatusInternalServerError, `{"detail": "export unavailable"}`)

	rec := ta.serve(adminRequest(t, ta.App, http.MethodGet, "/admin-dashboard/export.csv", nil, municipalAdmin()))

	require.Equal(t, http.StatusSeeOther, rec.Code)
	path, query := redirectQuery(t, rec)
	assert.Equal(t, adminDashboardPath, path)
	assert.Equal(t, "export unavailable", query.Get("error"))
	assert.Equal(t, "7", query.Get("user_id"))
}

func TestAdminExportPDF(t *testing.T) {
	ta := newTestApp(t)
	ta.backend.respond("GET /api/analytics/summary", http.StatusOK, `{"total": 2, "by_status": {"Pending": 2}}`)

	rec := ta.serve(adminRequest(t, ta.App, http.MethodGet, "/admin-dashboard/export.pdf", nil, municipalAdmin()))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "%PDF"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "dashboard_")
}

func TestAdminExportEmailSendsAttachment(t *testing.T) {
	ta := newTestApp(t)
	provider := &recordingProvider{}
	ta.mailer = mailer.New(provider, "noreply@sambodhan.local")
	ta.backend.handle("GET /api/analytics/export", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		_, _ = io.WriteString(w, exportCSV)
	})

	rec := ta.serve(adminRequest(t, ta.App, http.MethodPost, "/admin-dashboard/export/email", url.Values{}, municipalAdmin()))

	require.Equal(t, http.StatusSeeOther, rec.Code)
	_, query := redirectQuery(t, rec)
	assert.Equal(t, "Export sent to mina@example.com.", query.Get("notice"))

	require.Len(t, provider.sent, 1)
	msg := provider.sent[0]
	assert.Equal(t, []string{"mina@example.com"}, msg.To)
	assert.Equal(t, "noreply@sambodhan.local", msg.From)
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, []byte(exportCSV), msg.Attachments[0].Content)
	assert.True(t, strings.HasPrefix(msg.Attachments[0].Filename, "analytics_export_"))
}

func TestAdminExportEmailRequiresAddress(t *testing.T) {
	ta := newTestApp(t)
	provider := &recordingProvider{}
	ta.mailer = mailer.New(provider, "noreply@sambodhan.local")
	admin := municipalAdmin()
	admin.Email = ""

	rec := ta.serve(adminRequest(t, ta.App, http.MethodPost, "/admin-dashboard/export/email", url.Values{}, admin))

	require.Equal(t, http.StatusSeeOther, rec.Code)
	_, query := redirectQuery(t, rec)
	assert.Equal(t, "Export failed.", query.Get("error"))
	assert.Empty(t, provider.sent)
	assert.Zero(t, ta.backend.called("GET /api/analytics/export"))
}

func TestAdminExportEmailWithoutMailer(t *testing.T) {
	ta := newTestApp(t)
	ta.mailer = nil

	rec := ta.serve(adminRequest(t, ta.App, http.MethodPost, "/admin-dashboard/export/email", url.Values{}, municipalAdmin()))

	require.Equal(t, http.StatusSeeOther, rec.Code)
	_, query := redirectQuery(t, rec)
	assert.Equal(t, "Export failed.", query.Get("error"))
	assert.Zero(t, ta.backend.called("GET /api/analytics/export"))
}

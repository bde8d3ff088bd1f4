package main

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"sambodhan/libs/grievanceapi"
	"sambodhan/libs/mailer"

	"github.com/gin-gonic/gin"
	"github.com/go-pdf/fpdf"
)

const maxMailedExportBytes = 10 << 20

// adminExportCSVHandler streams the backend export to the browser. Only the
// request context bounds the transfer.
func (a *App) adminExportCSVHandler(c *gin.Context) {
	admin, err := getAdminSession(c)
	if err != nil {
		redirectToAdminLogin(c)
		return
	}
	lang := a.languageFromRequest(c)
	ctx := a.backendContext(c)

	export, err := a.api.OpenExport(ctx, exportParams(&admin))
	if err != nil {
		a.log.WarnContext(ctx, "open export failed", "admin_id", admin.ID, "error", err)
		redirectAdminWithMessage(c, adminDashboardURL(&admin), "error", backendMessage(err, lang, "error_export_failed"))
		return
	}
	defer export.Body.Close()

	filename := export.Filename
	if filename == "" {
		filename = grievanceapi.DefaultExportFilename(a.clock())
	}
	contentType := export.ContentType
	if contentType == "" {
		contentType = "text/csv"
	}
	c.DataFromReader(http.StatusOK, export.ContentLength, contentType, export.Body, map[string]string{
		"Content-Disposition": attachmentDisposition(filename),
	})
}

func (a *App) adminExportPDFHandler(c *gin.Context) {
	admin, err := getAdminSession(c)
	if err != nil {
		redirectToAdminLogin(c)
		return
	}
	lang := a.languageFromRequest(c)

	d, err := a.loadDashboard(a.backendContext(c), &admin)
	if err != nil {
		redirectAdminWithMessage(c, adminDashboardPath+"/activity", "error", backendMessage(err, lang, "error_export_failed"))
		return
	}
	body, err := buildDashboardPDF(d, a.clock())
	if err != nil {
		a.log.Error("build dashboard pdf failed", "admin_id", admin.ID, "error", err)
		redirectAdminWithMessage(c, adminDashboardURL(&admin), "error", text(lang, "error_export_failed"))
		return
	}
	filename := fmt.Sprintf("dashboard_%s.pdf", a.clock().UTC().Format("2006-01-02"))
	c.Header("Content-Disposition", attachmentDisposition(filename))
	c.Data(http.StatusOK, "application/pdf", body)
}

// adminExportEmailHandler mails the CSV export to the signed-in admin.
func (a *App) adminExportEmailHandler(c *gin.Context) {
	admin, err := getAdminSession(c)
	if err != nil {
		redirectToAdminLogin(c)
		return
	}
	lang := a.languageFromRequest(c)
	target := adminDashboardURL(&admin)
	if a.mailer == nil || strings.TrimSpace(admin.Email) == "" {
		redirectAdminWithMessage(c, target, "error", text(lang, "error_export_failed"))
		return
	}

	ctx := a.backendContext(c)
	export, err := a.api.OpenExport(ctx, exportParams(&admin))
	if err != nil {
		redirectAdminWithMessage(c, target, "error", backendMessage(err, lang, "error_export_failed"))
		return
	}
	defer export.Body.Close()

	content, err := io.ReadAll(io.LimitReader(export.Body, maxMailedExportBytes+1))
	if err != nil || len(content) > maxMailedExportBytes {
		redirectAdminWithMessage(c, target, "error", text(lang, "error_export_failed"))
		return
	}
	filename := export.Filename
	if filename == "" {
		filename = grievanceapi.DefaultExportFilename(a.clock())
	}
	if _, err := a.mailer.Send(ctx, mailer.ExportMessage(admin.Email, filename, content)); err != nil {
		a.log.WarnContext(ctx, "mail export failed", "admin_id", admin.ID, "error", err)
		redirectAdminWithMessage(c, target, "error", text(lang, "error_export_failed"))
		return
	}
	redirectAdminWithMessage(c, target, "notice", fmt.Sprintf(text(lang, "notice_export_mailed"), admin.Email))
}

// attachmentDisposition encodes non-ASCII filenames as RFC 2231 filename*.
func attachmentDisposition(filename string) string {
	if value := mime.FormatMediaType("attachment", map[string]string{"filename": filename}); value != "" {
		return value
	}
	return "attachment"
}

// buildDashboardPDF renders a one-page snapshot of the loaded aggregates.
func buildDashboardPDF(d *dashboard, now time.Time) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "", 16)
	pdf.Cell(0, 10, "Sambodhan dashboard snapshot")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	if d.Admin != nil {
		pdf.Cell(0, 8, tr(fmt.Sprintf("Administrator: %s (%s)", d.Admin.Name, d.Admin.Role)))
		pdf.Ln(7)
	}
	pdf.Cell(0, 8, tr("Scope: "+scopeDescription(d.Scope)))
	pdf.Ln(7)
	pdf.Cell(0, 8, "Generated: "+now.In(displayLocation()).Format(displayTimestampLayout))
	pdf.Ln(10)

	section := func(title string) {
		pdf.Ln(2)
		pdf.SetFont("Helvetica", "B", 11)
		pdf.Cell(0, 8, title)
		pdf.Ln(8)
		pdf.SetFont("Helvetica", "", 10)
	}
	line := func(format string, args ...any) {
		pdf.Cell(0, 6, tr(fmt.Sprintf(format, args...)))
		pdf.Ln(6)
	}

	summary := d.Summary.Value
	section("Summary")
	line("Total complaints: %d", int(summary.Total))
	for _, status := range grievanceapi.Statuses {
		line("- %s: %d", status.Label(), summary.StatusCount(status))
	}

	section("Issues by department")
	if len(d.Breakdown.Value) == 0 {
		line("No data")
	}
	for _, row := range d.Breakdown.Value {
		line("- %s: %d total, %d resolved (%d%%)", row.Type, row.Total, row.Resolved, row.Rate)
	}

	section("Top hotspots")
	limit := len(d.Hotspots.Value)
	if limit > 10 {
		limit = 10
	}
	if limit == 0 {
		line("No data")
	}
	for _, hotspot := range d.Hotspots.Value[:limit] {
		line("- %s: %d", hotspot.Location, hotspot.Count)
	}

	section("Performance benchmark")
	for _, row := range benchmarkRows(d.Benchmark.Value) {
		line("- %s: %.1f (city %.1f)", row.Label, row.Yours, row.City)
	}

	section("Monthly trend")
	if len(d.Monthly.Value.Periods) == 0 {
		line("No data")
	}
	for _, period := range d.Monthly.Value.Periods {
		line("- %s: %d", period, d.Monthly.Value.Total(period))
	}

	buffer := bytes.NewBuffer(nil)
	if err := pdf.Output(buffer); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

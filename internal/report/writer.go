// Package report renders status reports to files. It defines the ReportWriter
// interface and a registry of the supported formats (Excel, HTML).
package report

import (
	"strings"
	"time"

	"infra-monitor/internal/model"
)

const defaultFilenameTemplate = "monitor_status_{{.Date}}"

// ReportWriter writes a status report in one output format.
type ReportWriter interface {
	// Write renders the report to outputPath. The format's extension is
	// appended when missing.
	Write(report *model.StatusReport, outputPath string) error

	// Format returns the format identifier, "excel" or "html".
	Format() string
}

// Extension returns the file extension written by the given format.
func Extension(format string) string {
	switch strings.ToLower(format) {
	case "excel":
		return ".xlsx"
	case "html":
		return ".html"
	default:
		return ""
	}
}

// Filename expands the filename template. {{.Date}} becomes the report date
// in tz as yyyymmdd_hhmmss.
func Filename(template string, at time.Time, tz *time.Location) string {
	if template == "" {
		template = defaultFilenameTemplate
	}
	if tz == nil {
		tz = time.UTC
	}

	date := at.In(tz).Format("20060102_150405")
	name := strings.ReplaceAll(template, "{{.Date}}", date)
	return strings.ReplaceAll(name, "{{ .Date }}", date)
}

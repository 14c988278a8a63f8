package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"infra-monitor/internal/model"
	"infra-monitor/internal/report/excel"
	"infra-monitor/internal/report/html"
)

// Registry manages report writers for different formats.
type Registry struct {
	writers map[string]ReportWriter
}

// NewRegistry creates a registry with the Excel and HTML writers.
// If timezone is nil, defaults to Asia/Shanghai.
// htmlTemplatePath is optional; when empty the embedded template is used.
func NewRegistry(timezone *time.Location, htmlTemplatePath string) *Registry {
	if timezone == nil {
		timezone, _ = time.LoadLocation("Asia/Shanghai")
	}

	r := &Registry{
		writers: make(map[string]ReportWriter),
	}
	r.Register(excel.NewWriter(timezone))
	r.Register(html.NewWriter(timezone, htmlTemplatePath))
	return r
}

// Register adds or replaces the writer for its format.
func (r *Registry) Register(w ReportWriter) {
	r.writers[strings.ToLower(w.Format())] = w
}

// Get returns a writer for the specified format.
// Format names are case-insensitive.
func (r *Registry) Get(format string) (ReportWriter, error) {
	normalized := strings.ToLower(strings.TrimSpace(format))

	writer, ok := r.writers[normalized]
	if !ok {
		return nil, fmt.Errorf("unsupported report format %q, supported formats: %s",
			format, strings.Join(r.GetAll(), ", "))
	}
	return writer, nil
}

// GetAll returns all supported format names in sorted order.
func (r *Registry) GetAll() []string {
	formats := make([]string, 0, len(r.writers))
	for format := range r.writers {
		formats = append(formats, format)
	}
	sort.Strings(formats)
	return formats
}

// Has checks if the specified format is supported.
func (r *Registry) Has(format string) bool {
	_, ok := r.writers[strings.ToLower(strings.TrimSpace(format))]
	return ok
}

// WriteAll renders the report once per format into dir, creating dir when
// needed, and returns the written paths in format order. It stops at the
// first failure.
func (r *Registry) WriteAll(report *model.StatusReport, dir, base string, formats []string) ([]string, error) {
	writers := make([]ReportWriter, 0, len(formats))
	for _, format := range formats {
		w, err := r.Get(format)
		if err != nil {
			return nil, err
		}
		writers = append(writers, w)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	paths := make([]string, 0, len(writers))
	for _, w := range writers {
		path := filepath.Join(dir, base+Extension(w.Format()))
		if err := w.Write(report, path); err != nil {
			return paths, fmt.Errorf("failed to write %s report: %w", w.Format(), err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

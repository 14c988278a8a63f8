// Package html provides HTML report generation for the monitor.
// It implements the report.ReportWriter interface to generate .html files
// with the node overview, latest metrics, alert log and galera roll-up.
package html

import (
	"embed"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"infra-monitor/internal/model"
)

//go:embed templates/*.html
var embeddedTemplates embed.FS

const timeLayout = "2006-01-02 15:04:05"

// Writer implements report.ReportWriter for HTML format.
type Writer struct {
	timezone     *time.Location
	templatePath string // 自定义模板路径（可选）
}

// TemplateData holds all data passed to the HTML template.
type TemplateData struct {
	Title       string
	GeneratedAt string
	Version     string
	Summary     model.StatusSummary
	Nodes       []*NodeData
	Alerts      []*AlertData
	Galera      *GaleraData
}

// NodeData represents a node formatted for template rendering.
type NodeData struct {
	ID          int64
	Name        string
	Type        string
	Host        string
	Active      bool
	Status      string
	StatusClass string
	LastUpdated string
	Metrics     []*MetricData
}

// MetricData represents one latest sample formatted for template rendering.
type MetricData struct {
	Type       string
	Value      string
	Meta       string
	RecordedAt string
}

// AlertData represents an alert log entry formatted for template rendering.
type AlertData struct {
	Time     string
	NodeName string
	RuleID   int64
	Value    string
	Message  string
}

// GaleraData represents the galera roll-up formatted for template rendering.
type GaleraData struct {
	Status       string
	StatusClass  string
	HealthyCount int
	ExpectedSize int
	Members      []*GaleraMemberData
}

// GaleraMemberData represents one cluster member formatted for template rendering.
type GaleraMemberData struct {
	Name          string
	Host          string
	ClusterSize   int
	ClusterStatus string
	Ready         string
	Connected     string
	LocalState    string
	FlowControl   string
	Status        string
	StatusClass   string
}

// NewWriter creates a new HTML report writer.
// If timezone is nil, it defaults to Asia/Shanghai.
// If templatePath is empty, the embedded default template will be used.
func NewWriter(timezone *time.Location, templatePath string) *Writer {
	if timezone == nil {
		timezone, _ = time.LoadLocation("Asia/Shanghai")
	}
	return &Writer{
		timezone:     timezone,
		templatePath: templatePath,
	}
}

// Format returns the format identifier for this writer.
func (w *Writer) Format() string {
	return "html"
}

// Write generates an HTML report from the status report.
func (w *Writer) Write(report *model.StatusReport, outputPath string) error {
	if report == nil {
		return fmt.Errorf("status report is nil")
	}

	if !strings.HasSuffix(strings.ToLower(outputPath), ".html") {
		outputPath = outputPath + ".html"
	}

	tmpl, err := w.loadTemplate()
	if err != nil {
		return fmt.Errorf("failed to load template: %w", err)
	}

	data := w.prepareTemplateData(report)

	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	if err := tmpl.Execute(file, data); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}
	return nil
}

// loadTemplate loads the user-defined template when it exists, otherwise the
// embedded default.
func (w *Writer) loadTemplate() (*template.Template, error) {
	if w.templatePath != "" {
		if _, err := os.Stat(w.templatePath); err == nil {
			tmpl, err := template.New(filepath.Base(w.templatePath)).ParseFiles(w.templatePath)
			if err != nil {
				return nil, fmt.Errorf("failed to parse user template: %w", err)
			}
			return tmpl, nil
		}
	}

	tmpl, err := template.New("status.html").ParseFS(embeddedTemplates, "templates/status.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse embedded template: %w", err)
	}
	return tmpl, nil
}

// prepareTemplateData converts a StatusReport to TemplateData.
func (w *Writer) prepareTemplateData(report *model.StatusReport) *TemplateData {
	nodes := make([]*NodeData, 0, len(report.Nodes))
	for _, snap := range report.Nodes {
		nodes = append(nodes, w.convertNode(snap))
	}

	data := &TemplateData{
		Title:       "基础设施监控状态报告",
		GeneratedAt: report.GeneratedAt.In(w.timezone).Format(timeLayout),
		Version:     report.Version,
		Summary:     report.Summary,
		Nodes:       nodes,
		Alerts:      w.convertAlerts(report),
	}
	if report.Galera != nil {
		data.Galera = convertGalera(report.Galera)
	}
	return data
}

func (w *Writer) convertNode(snap *model.NodeSnapshot) *NodeData {
	node := &NodeData{
		ID:          snap.Node.ID,
		Name:        snap.Node.Name,
		Type:        snap.Node.Type.DisplayName(),
		Host:        snap.Node.Host,
		Active:      snap.Node.Active,
		Status:      "正常",
		StatusClass: "status-normal",
		LastUpdated: "N/A",
		Metrics:     make([]*MetricData, 0, len(snap.Metrics)),
	}
	if snap.Node.Port > 0 {
		node.Host = fmt.Sprintf("%s:%d", snap.Node.Host, snap.Node.Port)
	}
	if snap.Stale() {
		node.Status = "无数据"
		node.StatusClass = "status-critical"
	}

	var last time.Time
	for _, sample := range snap.Metrics {
		if sample.RecordedAt.After(last) {
			last = sample.RecordedAt
		}
		node.Metrics = append(node.Metrics, &MetricData{
			Type:       sample.Type,
			Value:      model.FormatValue(sample.Value),
			Meta:       formatMetadata(sample.Metadata),
			RecordedAt: sample.RecordedAt.In(w.timezone).Format(timeLayout),
		})
	}
	if !last.IsZero() {
		node.LastUpdated = last.In(w.timezone).Format(timeLayout)
	}
	return node
}

func (w *Writer) convertAlerts(report *model.StatusReport) []*AlertData {
	alerts := make([]*AlertData, 0, len(report.AlertLogs))
	for _, entry := range report.AlertLogs {
		name := report.NodeName(entry.NodeID)
		if name == "" {
			name = fmt.Sprintf("#%d", entry.NodeID)
		}
		alerts = append(alerts, &AlertData{
			Time:     entry.CreatedAt.In(w.timezone).Format(timeLayout),
			NodeName: name,
			RuleID:   entry.AlertID,
			Value:    model.FormatValue(entry.MetricValue),
			Message:  entry.Message,
		})
	}
	return alerts
}

func convertGalera(cluster *model.GaleraCluster) *GaleraData {
	members := make([]*model.GaleraMember, len(cluster.Members))
	copy(members, cluster.Members)
	sort.SliceStable(members, func(i, j int) bool {
		return members[i].Name < members[j].Name
	})

	data := &GaleraData{
		Status:       galeraStatusText(cluster.Status),
		StatusClass:  galeraStatusClass(cluster.Status),
		HealthyCount: cluster.HealthyCount,
		ExpectedSize: cluster.ExpectedSize,
		Members:      make([]*GaleraMemberData, 0, len(members)),
	}
	for _, m := range members {
		data.Members = append(data.Members, &GaleraMemberData{
			Name:          m.Name,
			Host:          m.Host,
			ClusterSize:   m.ClusterSize,
			ClusterStatus: m.ClusterStatus,
			Ready:         boolToText(m.Ready),
			Connected:     boolToText(m.Connected),
			LocalState:    fmt.Sprintf("%d (%s)", m.LocalState, m.StateComment),
			FlowControl:   fmt.Sprintf("%.4f", m.FlowControl),
			Status:        galeraStatusText(m.Status),
			StatusClass:   galeraStatusClass(m.Status),
		})
	}
	return data
}

// Helper functions

// formatMetadata renders sample metadata as sorted key=value pairs.
func formatMetadata(meta map[string]string) string {
	if len(meta) == 0 {
		return ""
	}
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+meta[k])
	}
	return strings.Join(parts, ", ")
}

// galeraStatusText converts a galera status to Chinese text.
func galeraStatusText(status model.GaleraNodeStatus) string {
	switch status {
	case model.GaleraStatusHealthy:
		return "正常"
	case model.GaleraStatusWarning:
		return "警告"
	case model.GaleraStatusCritical:
		return "严重"
	default:
		return "未知"
	}
}

// galeraStatusClass returns the CSS class for a galera status.
func galeraStatusClass(status model.GaleraNodeStatus) string {
	switch status {
	case model.GaleraStatusHealthy:
		return "status-normal"
	case model.GaleraStatusWarning:
		return "status-warning"
	case model.GaleraStatusCritical:
		return "status-critical"
	default:
		return ""
	}
}

func boolToText(b bool) string {
	if b {
		return "是"
	}
	return "否"
}

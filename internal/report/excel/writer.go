// Package excel provides Excel report generation for the monitor.
// It implements the report.ReportWriter interface to generate .xlsx files
// with the node overview, latest metrics, alert log and galera roll-up.
package excel

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"infra-monitor/internal/model"
)

const (
	// Sheet names
	sheetSummary = "监控概览"
	sheetNodes   = "节点状态"
	sheetMetrics = "最新指标"
	sheetAlerts  = "告警日志"
	sheetGalera  = "Galera 集群"

	// Default sheet to remove
	defaultSheet = "Sheet1"

	// Colors for conditional formatting (RGB without #)
	colorWarningBg  = "FFEB9C" // Yellow background for warning
	colorWarningFg  = "9C6500" // Dark yellow text for warning
	colorCriticalBg = "FFC7CE" // Red background for critical
	colorCriticalFg = "9C0006" // Dark red text for critical
	colorHeaderBg   = "4472C4" // Blue background for header
	colorHeaderFg   = "FFFFFF" // White text for header
	colorNormalBg   = "C6EFCE" // Green background for normal
	colorNormalFg   = "006100" // Dark green text for normal

	timeLayout = "2006-01-02 15:04:05"
)

// Writer implements report.ReportWriter for Excel format.
type Writer struct {
	timezone *time.Location
}

// NewWriter creates a new Excel report writer.
// If timezone is nil, it defaults to Asia/Shanghai.
func NewWriter(timezone *time.Location) *Writer {
	if timezone == nil {
		timezone, _ = time.LoadLocation("Asia/Shanghai")
	}
	return &Writer{
		timezone: timezone,
	}
}

// Format returns the format identifier for this writer.
func (w *Writer) Format() string {
	return "excel"
}

// styles holds the cell style ids shared by all sheets.
type styles struct {
	header   int
	warning  int
	critical int
	normal   int
}

// Write generates an Excel report from the status report.
func (w *Writer) Write(report *model.StatusReport, outputPath string) error {
	if report == nil {
		return fmt.Errorf("status report is nil")
	}

	if !strings.HasSuffix(strings.ToLower(outputPath), ".xlsx") {
		outputPath = outputPath + ".xlsx"
	}

	f := excelize.NewFile()
	defer f.Close()

	st, err := w.createStyles(f)
	if err != nil {
		return fmt.Errorf("failed to create styles: %w", err)
	}

	if err := w.createSummarySheet(f, report, st); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}
	if err := w.createNodesSheet(f, report, st); err != nil {
		return fmt.Errorf("failed to create nodes sheet: %w", err)
	}
	if err := w.createMetricsSheet(f, report, st); err != nil {
		return fmt.Errorf("failed to create metrics sheet: %w", err)
	}
	if err := w.createAlertsSheet(f, report, st); err != nil {
		return fmt.Errorf("failed to create alerts sheet: %w", err)
	}
	if report.Galera != nil {
		if err := w.createGaleraSheet(f, report.Galera, st); err != nil {
			return fmt.Errorf("failed to create galera sheet: %w", err)
		}
	}

	// Sheet1 only exists on a fresh workbook
	_ = f.DeleteSheet(defaultSheet)

	if idx, err := f.GetSheetIndex(sheetSummary); err == nil {
		f.SetActiveSheet(idx)
	}

	if err := f.SaveAs(outputPath); err != nil {
		return fmt.Errorf("failed to save Excel file: %w", err)
	}
	return nil
}

// createSummarySheet creates the headline counters worksheet.
func (w *Writer) createSummarySheet(f *excelize.File, report *model.StatusReport, st styles) error {
	if _, err := f.NewSheet(sheetSummary); err != nil {
		return err
	}

	titleStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold: true,
			Size: 18,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return err
	}

	valueStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Size: 12,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return err
	}

	f.SetColWidth(sheetSummary, "A", "A", 20)
	f.SetColWidth(sheetSummary, "B", "B", 30)

	f.MergeCell(sheetSummary, "A1", "B1")
	f.SetCellValue(sheetSummary, "A1", "基础设施监控状态报告")
	f.SetCellStyle(sheetSummary, "A1", "B1", titleStyle)
	f.SetRowHeight(sheetSummary, 1, 30)

	summaryData := []struct {
		label string
		value interface{}
	}{
		{"生成时间", report.GeneratedAt.In(w.timezone).Format(timeLayout)},
		{"节点总数", report.Summary.TotalNodes},
		{"无数据节点", report.Summary.StaleNodes},
		{"启用规则", report.Summary.ActiveRules},
		{"24小时触发", report.Summary.Triggered24h},
		{"告警日志条数", report.Summary.RecentEntries},
	}
	if report.Galera != nil {
		summaryData = append(summaryData, struct {
			label string
			value interface{}
		}{"Galera 集群", fmt.Sprintf("%s (%d/%d)", galeraStatusText(report.Galera.Status), report.Galera.HealthyCount, report.Galera.ExpectedSize)})
	}
	if report.Version != "" {
		summaryData = append(summaryData, struct {
			label string
			value interface{}
		}{"工具版本", report.Version})
	}

	for i, item := range summaryData {
		row := i + 3
		f.SetCellValue(sheetSummary, fmt.Sprintf("A%d", row), item.label)
		f.SetCellValue(sheetSummary, fmt.Sprintf("B%d", row), item.value)
		f.SetCellStyle(sheetSummary, fmt.Sprintf("A%d", row), fmt.Sprintf("A%d", row), st.header)
		f.SetCellStyle(sheetSummary, fmt.Sprintf("B%d", row), fmt.Sprintf("B%d", row), valueStyle)
		f.SetRowHeight(sheetSummary, row, 22)
	}

	return nil
}

// createNodesSheet lists every node with its freshness.
func (w *Writer) createNodesSheet(f *excelize.File, report *model.StatusReport, st styles) error {
	headers := []string{"节点 ID", "节点名称", "类型", "主机地址", "端口", "启用", "状态", "最近采集时间", "指标数"}
	widths := []float64{10, 20, 16, 18, 8, 8, 10, 22, 10}
	if err := w.createTableSheet(f, sheetNodes, headers, widths, st); err != nil {
		return err
	}

	for i, snap := range report.Nodes {
		row := fmt.Sprintf("%d", i+2)
		node := snap.Node

		f.SetCellValue(sheetNodes, "A"+row, node.ID)
		f.SetCellValue(sheetNodes, "B"+row, node.Name)
		f.SetCellValue(sheetNodes, "C"+row, node.Type.DisplayName())
		f.SetCellValue(sheetNodes, "D"+row, node.Host)
		if node.Port > 0 {
			f.SetCellValue(sheetNodes, "E"+row, node.Port)
		} else {
			f.SetCellValue(sheetNodes, "E"+row, "默认")
		}
		f.SetCellValue(sheetNodes, "F"+row, boolToText(node.Active))
		f.SetCellValue(sheetNodes, "H"+row, w.lastUpdated(snap))
		f.SetCellValue(sheetNodes, "I"+row, len(snap.Metrics))

		if snap.Stale() {
			f.SetCellValue(sheetNodes, "G"+row, "无数据")
			f.SetCellStyle(sheetNodes, "G"+row, "G"+row, st.critical)
		} else {
			f.SetCellValue(sheetNodes, "G"+row, "正常")
			f.SetCellStyle(sheetNodes, "G"+row, "G"+row, st.normal)
		}
	}
	return nil
}

// createMetricsSheet writes one row per latest sample.
func (w *Writer) createMetricsSheet(f *excelize.File, report *model.StatusReport, st styles) error {
	headers := []string{"节点名称", "类型", "指标", "指标值", "附加信息", "记录时间"}
	widths := []float64{20, 16, 26, 14, 36, 22}
	if err := w.createTableSheet(f, sheetMetrics, headers, widths, st); err != nil {
		return err
	}

	row := 2
	for _, snap := range report.Nodes {
		for _, sample := range snap.Metrics {
			r := fmt.Sprintf("%d", row)
			f.SetCellValue(sheetMetrics, "A"+r, snap.Node.Name)
			f.SetCellValue(sheetMetrics, "B"+r, snap.Node.Type.DisplayName())
			f.SetCellValue(sheetMetrics, "C"+r, sample.Type)
			f.SetCellValue(sheetMetrics, "D"+r, sample.Value)
			f.SetCellValue(sheetMetrics, "E"+r, formatMetadata(sample.Metadata))
			f.SetCellValue(sheetMetrics, "F"+r, sample.RecordedAt.In(w.timezone).Format(timeLayout))
			row++
		}
	}
	return nil
}

// createAlertsSheet writes the recent alert log, newest first.
func (w *Writer) createAlertsSheet(f *excelize.File, report *model.StatusReport, st styles) error {
	headers := []string{"触发时间", "节点名称", "规则 ID", "指标值", "告警消息"}
	widths := []float64{22, 20, 10, 14, 60}
	if err := w.createTableSheet(f, sheetAlerts, headers, widths, st); err != nil {
		return err
	}

	for i, entry := range report.AlertLogs {
		row := fmt.Sprintf("%d", i+2)
		name := report.NodeName(entry.NodeID)
		if name == "" {
			name = fmt.Sprintf("#%d", entry.NodeID)
		}

		f.SetCellValue(sheetAlerts, "A"+row, entry.CreatedAt.In(w.timezone).Format(timeLayout))
		f.SetCellValue(sheetAlerts, "B"+row, name)
		f.SetCellValue(sheetAlerts, "C"+row, entry.AlertID)
		f.SetCellValue(sheetAlerts, "D"+row, model.FormatValue(entry.MetricValue))
		f.SetCellValue(sheetAlerts, "E"+row, entry.Message)
		f.SetCellStyle(sheetAlerts, "D"+row, "D"+row, st.warning)
	}
	return nil
}

// createGaleraSheet writes one row per cluster member.
func (w *Writer) createGaleraSheet(f *excelize.File, cluster *model.GaleraCluster, st styles) error {
	headers := []string{"节点名称", "主机地址", "集群规模", "集群状态", "Ready", "Connected", "Local State", "流控暂停", "状态"}
	widths := []float64{20, 18, 10, 14, 10, 12, 18, 12, 10}
	if err := w.createTableSheet(f, sheetGalera, headers, widths, st); err != nil {
		return err
	}

	members := make([]*model.GaleraMember, len(cluster.Members))
	copy(members, cluster.Members)
	sort.SliceStable(members, func(i, j int) bool {
		return members[i].Name < members[j].Name
	})

	for i, m := range members {
		row := fmt.Sprintf("%d", i+2)
		f.SetCellValue(sheetGalera, "A"+row, m.Name)
		f.SetCellValue(sheetGalera, "B"+row, m.Host)
		f.SetCellValue(sheetGalera, "C"+row, m.ClusterSize)
		f.SetCellValue(sheetGalera, "D"+row, m.ClusterStatus)
		f.SetCellValue(sheetGalera, "E"+row, boolToText(m.Ready))
		f.SetCellValue(sheetGalera, "F"+row, boolToText(m.Connected))
		f.SetCellValue(sheetGalera, "G"+row, fmt.Sprintf("%d (%s)", m.LocalState, m.StateComment))
		f.SetCellValue(sheetGalera, "H"+row, m.FlowControl)
		f.SetCellValue(sheetGalera, "I"+row, galeraStatusText(m.Status))
		if style := st.forGalera(m.Status); style > 0 {
			f.SetCellStyle(sheetGalera, "I"+row, "I"+row, style)
		}
	}
	return nil
}

// createTableSheet creates a sheet with a styled, frozen header row.
func (w *Writer) createTableSheet(f *excelize.File, sheet string, headers []string, widths []float64, st styles) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	for i, width := range widths {
		col := columnName(i + 1)
		f.SetColWidth(sheet, col, col, width)
	}

	for i, header := range headers {
		cell := fmt.Sprintf("%s1", columnName(i+1))
		f.SetCellValue(sheet, cell, header)
		f.SetCellStyle(sheet, cell, cell, st.header)
	}
	f.SetRowHeight(sheet, 1, 25)

	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		Split:       false,
		XSplit:      0,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func (w *Writer) lastUpdated(snap *model.NodeSnapshot) string {
	var last time.Time
	for _, m := range snap.Metrics {
		if m.RecordedAt.After(last) {
			last = m.RecordedAt
		}
	}
	if last.IsZero() {
		return "N/A"
	}
	return last.In(w.timezone).Format(timeLayout)
}

// Helper functions

func (w *Writer) createStyles(f *excelize.File) (styles, error) {
	var (
		st  styles
		err error
	)

	st.header, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold:  true,
			Size:  11,
			Color: colorHeaderFg,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{colorHeaderBg},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return st, err
	}

	if st.warning, err = statusStyle(f, colorWarningFg, colorWarningBg); err != nil {
		return st, err
	}
	if st.critical, err = statusStyle(f, colorCriticalFg, colorCriticalBg); err != nil {
		return st, err
	}
	if st.normal, err = statusStyle(f, colorNormalFg, colorNormalBg); err != nil {
		return st, err
	}
	return st, nil
}

func statusStyle(f *excelize.File, fg, bg string) (int, error) {
	return f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Color: fg,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{bg},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
}

func (st styles) forGalera(status model.GaleraNodeStatus) int {
	switch status {
	case model.GaleraStatusCritical:
		return st.critical
	case model.GaleraStatusWarning:
		return st.warning
	case model.GaleraStatusHealthy:
		return st.normal
	default:
		return 0
	}
}

// columnName converts a 1-based column index to Excel column name (A, B, ..., Z, AA, AB, ...).
func columnName(index int) string {
	result := ""
	for index > 0 {
		index--
		result = string(rune('A'+index%26)) + result
		index /= 26
	}
	return result
}

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

func boolToText(b bool) string {
	if b {
		return "是"
	}
	return "否"
}

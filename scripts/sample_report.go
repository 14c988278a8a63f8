//go:build ignore
// +build ignore

// This script generates sample Excel and HTML status reports for manual
// verification and prints the Excel summary sheet.
// Run with: go run scripts/sample_report.go
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/xuri/excelize/v2"

	"infra-monitor/internal/model"
	"infra-monitor/internal/report"
)

func main() {
	tz, _ := time.LoadLocation("Asia/Shanghai")
	status := createSampleData()

	registry := report.NewRegistry(tz, "")
	paths, err := registry.WriteAll(status, ".", "sample_status_report", []string{"excel", "html"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating report: %v\n", err)
		os.Exit(1)
	}
	for _, p := range paths {
		fmt.Printf("✅ Report generated: %s\n", p)
	}

	f, err := excelize.OpenFile("sample_status_report.xlsx")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading report: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	fmt.Println("\n📊 Sheets:", f.GetSheetList())
	rows, _ := f.GetRows("监控概览")
	for _, row := range rows {
		if len(row) >= 2 {
			fmt.Printf("  %-12s %s\n", row[0], row[1])
		}
	}

	fmt.Println("\nPlease open the files to verify:")
	fmt.Println("  - Time is in Asia/Shanghai timezone")
	fmt.Println("  - Stale nodes are highlighted red")
	fmt.Println("  - Galera members are coloured by status")
}

func createSampleData() *model.StatusReport {
	now := time.Now()
	recorded := now.Add(-30 * time.Second)

	nas := &model.Node{ID: 1, Name: "nas-01", Type: model.NodeTypeSynology, Host: "192.168.1.10", Active: true}
	docker := &model.Node{ID: 2, Name: "docker-01", Type: model.NodeTypeDocker, Host: "192.168.1.20", Port: 2375, Active: true}
	db1 := &model.Node{ID: 3, Name: "db-1", Type: model.NodeTypeGalera, Host: "192.168.1.31", Active: true}
	db2 := &model.Node{ID: 4, Name: "db-2", Type: model.NodeTypeGalera, Host: "192.168.1.32", Active: true}
	app := &model.Node{ID: 5, Name: "shop", Type: model.NodeTypeLaravelApp, Host: "https://shop.example.com", Active: true}

	return &model.StatusReport{
		GeneratedAt: now,
		Version:     "dev",
		Summary: model.StatusSummary{
			TotalNodes:    5,
			StaleNodes:    1,
			ActiveRules:   4,
			Triggered24h:  3,
			RecentEntries: 2,
		},
		Nodes: []*model.NodeSnapshot{
			{Node: nas, Metrics: []model.MetricSample{
				{NodeID: 1, Type: model.MetricCPU, Value: 23.5, RecordedAt: recorded},
				{NodeID: 1, Type: model.MetricDisk, Value: 81.2, Metadata: map[string]string{"volume": "volume_1"}, RecordedAt: recorded},
				{NodeID: 1, Type: model.MetricTemperature, Value: 41, RecordedAt: recorded},
			}},
			{Node: docker, Metrics: []model.MetricSample{
				{NodeID: 2, Type: model.MetricContainerCPU, Value: 80, Metadata: map[string]string{"container_name": "web"}, RecordedAt: recorded},
				{NodeID: 2, Type: model.MetricContainerStatus, Value: 1, Metadata: map[string]string{"container_name": "web"}, RecordedAt: recorded},
			}},
			{Node: db1, Metrics: []model.MetricSample{
				{NodeID: 3, Type: model.MetricClusterSize, Value: 3, RecordedAt: recorded},
				{NodeID: 3, Type: model.MetricLocalState, Value: 4, RecordedAt: recorded},
			}},
			{Node: db2, Metrics: []model.MetricSample{
				{NodeID: 4, Type: model.MetricClusterSize, Value: 3, RecordedAt: recorded},
				{NodeID: 4, Type: model.MetricLocalState, Value: 2, RecordedAt: recorded},
			}},
			{Node: app},
		},
		AlertLogs: []*model.AlertLogEntry{
			{ID: 2, AlertID: 1, NodeID: 1, MetricValue: 81.2, Message: "[nas-01] disk: 81.20 is Greater than (threshold: Greater than 80.00)", CreatedAt: recorded},
			{ID: 1, AlertID: 2, NodeID: 2, MetricValue: 80, Message: "[docker-01] container_cpu: 80.00 is Greater than or equal (threshold: Greater than or equal 75.00)", CreatedAt: now.Add(-2 * time.Hour)},
		},
		Galera: &model.GaleraCluster{
			Members: []*model.GaleraMember{
				{NodeID: 3, Name: "db-1", Host: db1.Host, ClusterSize: 3, ClusterStatus: "Primary", Ready: true, Connected: true, LocalState: 4, StateComment: "Synced", Status: model.GaleraStatusHealthy, HasData: true},
				{NodeID: 4, Name: "db-2", Host: db2.Host, ClusterSize: 3, ClusterStatus: "Primary", Ready: true, Connected: true, LocalState: 2, StateComment: "Donor/Desynced", FlowControl: 0.0312, Status: model.GaleraStatusWarning, HasData: true},
			},
			ExpectedSize: 3,
			HealthyCount: 1,
			Status:       model.GaleraStatusWarning,
		},
	}
}

// Package main is the entry point for the infrastructure monitor.
package main

import "infra-monitor/cmd/monitor/cmd"

func main() {
	cmd.Execute()
}

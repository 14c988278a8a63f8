package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"infra-monitor/internal/config"
)

var validateInventory string // Optional inventory file to validate as well

// validateCmd represents the validate command.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "验证配置文件",
	Long:  "加载并验证配置文件，检查格式、必填字段、数值范围和业务逻辑约束；可同时验证清单文件。",
	Run:   runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVarP(&validateInventory, "inventory", "i", "", "同时验证的清单文件路径")
}

// runValidate executes the validate command logic.
func runValidate(cmd *cobra.Command, args []string) {
	if err := config.LoadEnvFile(GetEnvFile()); err != nil {
		fail("加载环境变量文件失败", err)
	}

	configPath := GetConfigFile()
	if _, err := config.Load(configPath); err != nil {
		fmt.Fprintf(os.Stderr, "❌ 配置验证失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ 配置文件验证通过: %s\n", configPath)

	if validateInventory == "" {
		return
	}
	if _, err := config.LoadInventory(validateInventory); err != nil {
		fmt.Fprintf(os.Stderr, "❌ 清单验证失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ 清单文件验证通过: %s\n", validateInventory)
}

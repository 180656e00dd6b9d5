package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tandem-cli/tandem/internal/toolexec"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List registered tools",
	Run: func(cmd *cobra.Command, args []string) {
		catalog := toolexec.NewCatalog()
		registerBuiltinTools(catalog)

		color.Cyan("Built-in tools:")
		for _, tool := range catalog.List() {
			timeout := "scheduler default"
			if tool.Timeout > 0 {
				timeout = tool.Timeout.String()
			}
			fmt.Printf("  %s  timeout=%s\n", color.GreenString(tool.Name), timeout)
		}
	},
}

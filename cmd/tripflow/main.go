package main

import (
	"fmt"
	"os"

	"github.com/ignatij/tripflow/internal/cli"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tripflow",
	Short: "Plan a trip with the travel planner workflow and approve it from the terminal",
}

func main() {
	cli.SetupCLI(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

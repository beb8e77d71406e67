package main

import (
	"fmt"

	"github.com/cromshield-hub/plas-sub000/internal/version"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the cxlctl version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("cxlctl %s\n", version.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quickfin/loanvoice"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of loanvoice",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("loanvoice version %s\n", strings.TrimSpace(loanvoice.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

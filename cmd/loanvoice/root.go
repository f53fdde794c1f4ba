package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "loanvoice",
	Short: "Voice agent for loan collection calls",
	Long: `loanvoice runs WebRTC voice calls through a deterministic conversation
flow: the LLM decides what to say, the flow graph decides where the
conversation is allowed to go.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file (optional)")
}

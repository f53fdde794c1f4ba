package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quickfin/loanvoice/internal/collection"
	"github.com/quickfin/loanvoice/internal/presentation/graph"
	"github.com/quickfin/loanvoice/internal/presentation/tui"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the conversation flow visualization",
	Long:  `Outputs a Mermaid diagram (graph TD) of the collection flow.`,
	Run: func(cmd *cobra.Command, args []string) {
		g, err := collection.NewGraph(collection.DefaultBorrower)
		if err != nil {
			fmt.Printf("Error building flow: %v\n", err)
			os.Exit(1)
		}

		output := graph.GenerateMermaid(g, nil)

		if pretty, _ := cmd.Flags().GetBool("pretty"); pretty {
			render := tui.NewRenderer()
			md := "```mermaid\n" + output + "```\n"
			if rendered, err := render(md); err == nil {
				fmt.Print(rendered)
				return
			}
		}
		fmt.Print(output)
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().Bool("pretty", false, "Render through the terminal markdown viewer")
}

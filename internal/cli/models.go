package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hearthd/hearth/pkg/backend"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List known model ids",
	Run: func(cmd *cobra.Command, args []string) {
		for _, id := range backend.SupportedModels {
			marker := " "
			if id == backend.DefaultModelID {
				marker = "*"
			}
			fmt.Printf("%s %s\n", marker, id)
		}
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}

package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var statusUserID string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show memory and cache state",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusUserID, "user", "", "report stats as seen by this user id")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.cleanup()

	stats := a.service.MemoryStats(statusUserID)
	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

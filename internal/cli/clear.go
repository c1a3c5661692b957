package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	clearUserID         string
	clearConversationID string
	clearAll            bool
)

var clearCmd = &cobra.Command{
	Use:   "clear-cache",
	Short: "Evict cached agents and session handles",
	Long: `Evict cached agents and session handles. Persisted transcripts and
memory records are never deleted; the next request reloads them.`,
	RunE: runClear,
}

func init() {
	clearCmd.Flags().StringVar(&clearUserID, "user", "", "clear the cache for one user")
	clearCmd.Flags().StringVar(&clearConversationID, "conversation", "", "clear by conversation id (no-op, agents are cached per user)")
	clearCmd.Flags().BoolVar(&clearAll, "all", false, "clear every cached agent")
	rootCmd.AddCommand(clearCmd)
}

func runClear(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.cleanup()

	switch {
	case clearAll:
		a.service.ClearAllCaches()
		fmt.Println("All caches cleared.")
	case clearUserID != "":
		a.service.ClearUserCache(clearUserID)
		fmt.Printf("Cache cleared for user %s.\n", clearUserID)
	case clearConversationID != "":
		a.service.ClearConversationCache(clearConversationID)
		fmt.Println("Agents are cached per user; nothing to clear for a conversation.")
	default:
		return fmt.Errorf("specify --user, --conversation or --all")
	}
	return nil
}

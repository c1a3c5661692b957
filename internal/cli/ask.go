package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	askUserID         string
	askConversationID string
)

var askCmd = &cobra.Command{
	Use:   "ask [prompt]",
	Short: "Send one conversation turn to the assistant",
	Long: `Send a prompt as a conversation turn. Turns for the same user share
one agent, one transcript and one memory scope regardless of the
conversation id. The conversation id is printed so follow-up turns can
reuse it.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askUserID, "user", "", "caller user id (defaults to the shared default user)")
	askCmd.Flags().StringVar(&askConversationID, "conversation", "", "conversation id (minted when omitted)")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.cleanup()

	prompt := strings.Join(args, " ")
	result, err := a.service.Process(cmd.Context(), prompt, askUserID, askConversationID)
	if err != nil {
		// The conversation id survives failures so the caller can retry
		fmt.Printf("conversation: %s\n", result.ConversationID)
		return err
	}

	fmt.Println(result.Text)
	fmt.Printf("\nconversation: %s\n", result.ConversationID)
	return nil
}

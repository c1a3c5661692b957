package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	taskModelID   string
	taskImages    []string
	taskImageURLs []string
)

var taskCmd = &cobra.Command{
	Use:   "task [prompt]",
	Short: "Run a one-shot cognitive task",
	Long: `Run a single fire-and-forget prompt, optionally with image
attachments. The task uses an ephemeral agent: no transcript, no
memory, nothing cached.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTask,
}

func init() {
	taskCmd.Flags().StringVar(&taskModelID, "model", "", "model id override")
	taskCmd.Flags().StringArrayVar(&taskImages, "image", nil, "local image path (repeatable, must be under an allowed dir)")
	taskCmd.Flags().StringArrayVar(&taskImageURLs, "image-url", nil, "image URL (repeatable)")
	rootCmd.AddCommand(taskCmd)
}

func runTask(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.cleanup()

	prompt := strings.Join(args, " ")
	reply, err := a.service.CognitiveTask(cmd.Context(), prompt, taskModelID, taskImages, taskImageURLs)
	if err != nil {
		return err
	}

	fmt.Println(reply)
	return nil
}

package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/liliang-cn/ragchat/internal/domain"
	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a single question",
	Long: `Ask a single question and print the answer. The reply is exactly what
the chat would show, including error and empty-response messages.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, cleanup, err := openApp(ctx, "")
	if err != nil {
		return err
	}
	defer cleanup()

	if _, err := a.BuildIndex(ctx); err != nil && !errors.Is(err, domain.ErrEmptyCollection) {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), a.Chat.HandleMessage(ctx, strings.Join(args, " ")))
	return nil
}

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/liliang-cn/ragchat/internal/domain"
	"github.com/liliang-cn/ragchat/internal/tui"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start the interactive chat",
	Long: `Start an interactive chat over the collection. The index is built once
at startup; logs go to ragchat.log unless log.file is configured.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, cleanup, err := openApp(ctx, "ragchat.log")
	if err != nil {
		return err
	}
	defer cleanup()

	status := ""
	report, err := a.BuildIndex(ctx)
	switch {
	case err == nil:
		status = fmt.Sprintf("%s: %d documents, model %s", report.Collection, report.Count, cfg.LLM.Model)
	case errors.Is(err, domain.ErrEmptyCollection):
		status = fmt.Sprintf("%s is empty; run `ragchat ingest` first", a.Collection.Name)
	default:
		return err
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return chatLines(ctx, a.Chat, cmd.InOrStdin(), cmd.OutOrStdout())
	}

	m := tui.New(a.Chat, "ragchat", status, cfg.LLM.RequestTimeout)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		return err
	}
	return nil
}

// chatLines answers one question per input line when stdin is not a terminal
func chatLines(ctx context.Context, handler tui.MessageHandler, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fmt.Fprintln(out, handler.HandleMessage(ctx, line))
	}
	return scanner.Err()
}

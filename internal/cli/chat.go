package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"review-rag-be/internal/bootstrap"
	"review-rag-be/pkg/rag/chain"
	"review-rag-be/pkg/rag/document"
	"review-rag-be/pkg/rag/history"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	chatSession  string
	chatShowDocs bool
)

var askCmd = &cobra.Command{
	Use:   "ask QUESTION",
	Short: "Answer a single question",
	Long: `Answer one question against the loaded reviews. Pass --session to continue
an earlier conversation kept in the configured history store.

Examples:
  reviewrag ask "Which blender do people like?"
  reviewrag ask "Is it loud?" --session kitchen`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive session",
	Long: `Read questions from stdin and answer them within one session.
Type /history to print the transcript and /exit to leave.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(chatCmd)
	for _, c := range []*cobra.Command{askCmd, chatCmd} {
		c.Flags().StringVarP(&chatSession, "session", "s", "", "session id (default is a new one)")
		c.Flags().BoolVar(&chatShowDocs, "docs", false, "also print the retrieved review text")
	}
}

func sessionID() string {
	if chatSession != "" {
		return chatSession
	}
	return uuid.NewString()
}

func runAsk(cmd *cobra.Command, args []string) error {
	core, err := openCore()
	if err != nil {
		return err
	}
	defer core.Close()

	id := sessionID()
	res, err := ask(cmd.Context(), core, id, strings.Join(args, " "))
	if err != nil {
		return err
	}
	printResult(res)
	if chatSession == "" {
		color.HiBlack("session: %s", id)
	}
	return nil
}

func runChat(cmd *cobra.Command, args []string) error {
	core, err := openCore()
	if err != nil {
		return err
	}
	defer core.Close()

	id := sessionID()
	color.Cyan("Session %s. /history shows the transcript, /exit quits.", id)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		case "/history":
			if err := printHistory(cmd.Context(), core.History, id); err != nil {
				color.Red("history: %v", err)
			}
			continue
		}

		res, err := ask(cmd.Context(), core, id, line)
		if err != nil {
			// the transcript is untouched, so the user can simply retry
			color.Red("%v", err)
			continue
		}
		printResult(res)
	}
}

func ask(ctx context.Context, core *bootstrap.Core, id, question string) (*chain.Result, error) {
	if d := core.Config.Ai.Timeout; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d*2)
		defer cancel()
	}
	return core.Chain.Invoke(ctx, id, question)
}

func printResult(res *chain.Result) {
	color.Green("%s", res.Answer)
	if names := productNames(res.Documents); len(names) > 0 {
		color.HiBlack("products: %s", strings.Join(names, ", "))
	}
	if !chatShowDocs {
		return
	}
	for i, d := range res.Documents {
		color.HiBlack("  [%d] %s: %s", i+1, d.ProductName(), d.Content)
	}
}

// productNames lists the retrieved products once each, in retrieval order.
func productNames(docs []document.Document) []string {
	var names []string
	seen := make(map[string]bool)
	for _, d := range docs {
		name := d.ProductName()
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

func printHistory(ctx context.Context, store history.HistoryStore, id string) error {
	t, err := store.GetOrCreate(ctx, id)
	if err != nil {
		return err
	}
	if t.Len() == 0 {
		color.HiBlack("(empty)")
		return nil
	}
	for _, turn := range t.Turns {
		if turn.Role == history.RoleUser {
			color.Yellow("you: %s", turn.Text)
		} else {
			color.Green("bot: %s", turn.Text)
		}
	}
	return nil
}

package cli

import (
	"fmt"
	"sort"

	"review-rag-be/pkg/rag/history"
	"review-rag-be/pkg/rag/ragerr"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List stored chat sessions",
	Long: `List the session ids kept by the history store, to resume one with
"reviewrag chat --session ID". Only HISTORY_STORE=bolt keeps sessions across runs.`,
	Args: cobra.NoArgs,
	RunE: runSessions,
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
}

type sessionLister interface {
	Sessions() ([]string, error)
}

func runSessions(cmd *cobra.Command, args []string) error {
	core, err := openCore()
	if err != nil {
		return err
	}
	defer core.Close()

	ids, err := listSessions(core.History)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		color.HiBlack("(no sessions)")
		return nil
	}
	for _, id := range ids {
		fmt.Println(id)
	}
	return nil
}

func listSessions(store history.HistoryStore) ([]string, error) {
	lister, ok := store.(sessionLister)
	if !ok {
		return nil, ragerr.Errorf(ragerr.KindConfiguration, "cli.sessions", "history store %T cannot list sessions, use HISTORY_STORE=bolt", store)
	}
	ids, err := lister.Sessions()
	if err != nil {
		return nil, ragerr.New(ragerr.KindConnection, "cli.sessions", err)
	}
	sort.Strings(ids)
	return ids, nil
}

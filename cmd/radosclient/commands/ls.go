package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	lsCursor string
	lsLimit  int
)

var lsCmd = &cobra.Command{
	Use:   "ls <pool-id>",
	Short: "List objects in a pool",
	Long: `List object names in pool, one page at a time. Pass the cursor a
previous invocation printed to --cursor to fetch the next page.

Examples:
  radosclient ls 2
  radosclient ls 2 --cursor pg:3 --limit 500`,
	Args: cobra.ExactArgs(1),
	RunE: runLs,
}

func init() {
	lsCmd.Flags().StringVar(&lsCursor, "cursor", "", "resume from a cursor printed by a previous page")
	lsCmd.Flags().IntVar(&lsLimit, "limit", 1000, "maximum entries to return")
}

func runLs(cmd *cobra.Command, args []string) error {
	poolID, err := parsePoolID(args[0])
	if err != nil {
		return err
	}

	ctx := context.Background()
	clients, err := connect(ctx)
	if err != nil {
		return err
	}
	defer clients.Close()

	page, err := clients.obj.List(ctx, poolID, lsCursor, lsLimit)
	if err != nil {
		return fmt.Errorf("list: %w", err)
	}
	for _, name := range page.Entries {
		fmt.Println(name)
	}
	if page.Cursor != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "# cursor: %s\n", page.Cursor)
	}
	return nil
}

package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/marmos91/radosclient/pkg/objclient"
)

var (
	getKey       string
	getNamespace string
	getOut       string
)

var getCmd = &cobra.Command{
	Use:   "get <pool-id> <object>",
	Short: "Read an object's full contents",
	Long: `Read object's contents, writing to --out or stdout.

Examples:
  radosclient get 2 myobject --out ./payload.bin
  radosclient get 2 myobject | xxd`,
	Args: cobra.ExactArgs(2),
	RunE: runGet,
}

func init() {
	getCmd.Flags().StringVar(&getKey, "locator-key", "", "override the placement locator key")
	getCmd.Flags().StringVar(&getNamespace, "namespace", "", "object namespace")
	getCmd.Flags().StringVar(&getOut, "out", "", "output file (default: stdout)")
}

func runGet(cmd *cobra.Command, args []string) error {
	poolID, err := parsePoolID(args[0])
	if err != nil {
		return err
	}
	name := args[1]

	ctx := context.Background()
	clients, err := connect(ctx)
	if err != nil {
		return err
	}
	defer clients.Close()

	subOps := []objclient.SubOp{{Kind: objclient.SubOpRead}}
	res, err := clients.obj.Submit(ctx, poolID, name, getKey, getNamespace, subOps)
	if err != nil {
		return fmt.Errorf("submit read: %w", err)
	}
	if res.Code != 0 {
		return fmt.Errorf("read failed: code %d", res.Code)
	}
	if len(res.SubOps) == 0 {
		return fmt.Errorf("read reply carried no data")
	}

	var w io.Writer = os.Stdout
	if getOut != "" {
		f, err := os.Create(getOut)
		if err != nil {
			return fmt.Errorf("create %s: %w", getOut, err)
		}
		defer f.Close()
		w = f
	}
	if _, err := w.Write(res.SubOps[0].Data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// parsePoolID parses a decimal pool id CLI argument.
func parsePoolID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid pool id %q: %w", s, err)
	}
	return id, nil
}

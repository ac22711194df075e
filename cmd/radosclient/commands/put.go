package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/radosclient/pkg/objclient"
)

var (
	putKey       string
	putNamespace string
	putFromStdin bool
)

var putCmd = &cobra.Command{
	Use:   "put <pool-id> <object> [file]",
	Short: "Write an object, replacing its contents",
	Long: `Write file's contents as object's full value. Reads from stdin
when no file is given or --stdin is set.

Examples:
  radosclient put 2 myobject ./payload.bin
  echo hello | radosclient put 2 myobject --stdin`,
	Args: cobra.RangeArgs(2, 3),
	RunE: runPut,
}

func init() {
	putCmd.Flags().StringVar(&putKey, "locator-key", "", "override the placement locator key")
	putCmd.Flags().StringVar(&putNamespace, "namespace", "", "object namespace")
	putCmd.Flags().BoolVar(&putFromStdin, "stdin", false, "read payload from stdin")
}

func runPut(cmd *cobra.Command, args []string) error {
	poolID, err := parsePoolID(args[0])
	if err != nil {
		return err
	}
	name := args[1]

	var r io.Reader = os.Stdin
	if len(args) == 3 && !putFromStdin {
		f, err := os.Open(args[2])
		if err != nil {
			return fmt.Errorf("open %s: %w", args[2], err)
		}
		defer f.Close()
		r = f
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read payload: %w", err)
	}

	ctx := context.Background()
	clients, err := connect(ctx)
	if err != nil {
		return err
	}
	defer clients.Close()

	subOps := []objclient.SubOp{{Kind: objclient.SubOpWriteFull, Data: data}}
	res, err := clients.obj.Submit(ctx, poolID, name, putKey, putNamespace, subOps)
	if err != nil {
		return fmt.Errorf("submit write: %w", err)
	}
	if res.Code != 0 {
		return fmt.Errorf("write failed: code %d", res.Code)
	}
	fmt.Printf("wrote %d bytes to pool %d object %q (version %d)\n", len(data), poolID, name, res.Version)
	return nil
}

package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/radosclient/pkg/objclient"
)

var (
	rmKey       string
	rmNamespace string
)

var rmCmd = &cobra.Command{
	Use:   "rm <pool-id> <object>",
	Short: "Delete an object",
	Args:  cobra.ExactArgs(2),
	RunE:  runRm,
}

func init() {
	rmCmd.Flags().StringVar(&rmKey, "locator-key", "", "override the placement locator key")
	rmCmd.Flags().StringVar(&rmNamespace, "namespace", "", "object namespace")
}

func runRm(cmd *cobra.Command, args []string) error {
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

	subOps := []objclient.SubOp{{Kind: objclient.SubOpDelete}}
	res, err := clients.obj.Submit(ctx, poolID, name, rmKey, rmNamespace, subOps)
	if err != nil {
		return fmt.Errorf("submit delete: %w", err)
	}
	if res.Code != 0 {
		return fmt.Errorf("delete failed: code %d", res.Code)
	}
	fmt.Printf("removed pool %d object %q\n", poolID, name)
	return nil
}

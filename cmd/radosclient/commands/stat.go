package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/radosclient/pkg/objclient"
)

var (
	statKey       string
	statNamespace string
)

var statCmd = &cobra.Command{
	Use:   "stat <pool-id> <object>",
	Short: "Show an object's placement and version",
	Args:  cobra.ExactArgs(2),
	RunE:  runStat,
}

func init() {
	statCmd.Flags().StringVar(&statKey, "locator-key", "", "override the placement locator key")
	statCmd.Flags().StringVar(&statNamespace, "namespace", "", "object namespace")
}

func runStat(cmd *cobra.Command, args []string) error {
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

	subOps := []objclient.SubOp{{Kind: objclient.SubOpStat}}
	res, err := clients.obj.Submit(ctx, poolID, name, statKey, statNamespace, subOps)
	if err != nil {
		return fmt.Errorf("submit stat: %w", err)
	}
	if res.Code != 0 {
		return fmt.Errorf("stat failed: code %d", res.Code)
	}
	fmt.Printf("pool:    %d\n", poolID)
	fmt.Printf("object:  %s\n", name)
	fmt.Printf("version: %d\n", res.Version)
	return nil
}

package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var poolCmd = &cobra.Command{
	Use:   "pool",
	Short: "Manage pools",
}

var poolCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a pool",
	Args:  cobra.ExactArgs(1),
	RunE:  runPoolCreate,
}

var poolDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a pool",
	Args:  cobra.ExactArgs(1),
	RunE:  runPoolDelete,
}

var poolLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List pools in the current OSDMap",
	Args:  cobra.NoArgs,
	RunE:  runPoolLs,
}

func init() {
	poolCmd.AddCommand(poolCreateCmd)
	poolCmd.AddCommand(poolDeleteCmd)
	poolCmd.AddCommand(poolLsCmd)
}

func runPoolCreate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	clients, err := connect(ctx)
	if err != nil {
		return err
	}
	defer clients.Close()

	res, err := clients.obj.CreatePool(ctx, args[0])
	if err != nil {
		return fmt.Errorf("create pool: %w", err)
	}
	if res.ReplyCode != 0 {
		return fmt.Errorf("create pool failed: code %d", res.ReplyCode)
	}
	fmt.Printf("pool %q created (epoch %d)\n", args[0], res.Epoch)
	return nil
}

func runPoolDelete(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	clients, err := connect(ctx)
	if err != nil {
		return err
	}
	defer clients.Close()

	res, err := clients.obj.DeletePool(ctx, args[0])
	if err != nil {
		return fmt.Errorf("delete pool: %w", err)
	}
	if res.ReplyCode != 0 {
		return fmt.Errorf("delete pool failed: code %d", res.ReplyCode)
	}
	fmt.Printf("pool %q deleted (epoch %d)\n", args[0], res.Epoch)
	return nil
}

func runPoolLs(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	clients, err := connect(ctx)
	if err != nil {
		return err
	}
	defer clients.Close()

	for _, p := range clients.obj.ListPools() {
		fmt.Printf("%d\t%s\tsize=%d\tpg_num=%d\n", p.ID, p.Name, p.Size, p.PGCount)
	}
	return nil
}

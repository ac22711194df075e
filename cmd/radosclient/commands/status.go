package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show cluster status as seen by this client",
	Long: `Hunt the monitors, authenticate, and print a summary of the
monitor map and OSDMap this client ends up holding.

Examples:
  radosclient status
  radosclient status --config /etc/radosclient/config.yaml`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	clients, err := connect(ctx)
	if err != nil {
		return err
	}
	defer clients.Close()

	monmap := clients.mon.MonMap()
	osdmap := clients.obj.OSDMap()

	fmt.Println("Monitor map")
	if monmap != nil {
		fmt.Printf("  fsid:  %s\n", monmap.FSID)
		fmt.Printf("  epoch: %d\n", monmap.Epoch)
		fmt.Printf("  mons:  %d\n", len(monmap.Mons))
	} else {
		fmt.Println("  (none received yet)")
	}

	fmt.Println("OSDMap")
	fmt.Printf("  epoch: %d\n", osdmap.Epoch)
	fmt.Printf("  pools: %d\n", len(osdmap.Pools))
	up := 0
	for _, o := range osdmap.OSDs {
		if o.Up {
			up++
		}
	}
	fmt.Printf("  osds:  %d (%d up)\n", len(osdmap.OSDs), up)
	return nil
}

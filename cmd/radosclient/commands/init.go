package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/radosclient/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample radosclient configuration file.

By default, the configuration file is created at
$XDG_CONFIG_HOME/radosclient/config.yaml. Use --config to specify a
custom path.

Examples:
  # Initialize with default location
  radosclient init

  # Initialize with custom path
  radosclient init --config /etc/radosclient/config.yaml

  # Force overwrite an existing config
  radosclient init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	path := GetConfigFile()
	if path == "" {
		path = defaultConfigPath()
	}

	if err := config.WriteSample(path, initForce); err != nil {
		return fmt.Errorf("initialize config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", path)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit entity_name, keyring_path and mon_addrs for your cluster")
	fmt.Printf("  2. Run: radosclient status --config %s\n", path)
	return nil
}

package commands

import (
	"github.com/spf13/cobra"
	"github.com/teranos/fsasync/am"
)

// LoadConfig loads the configuration named by --config, or the normal
// cascade when the flag is unset.
func LoadConfig(cmd *cobra.Command) (*am.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		return am.LoadFromFile(path)
	}
	return am.Load()
}

package commands

import (
	"github.com/spf13/cobra"

	"github.com/TheusHen/oscore/oscore/config"
)

var (
	configPath string
	cfg        *config.Config
)

func Execute() error {
	root := &cobra.Command{
		Use:          "oscored",
		Short:        "OSCORE endpoint serving protected resources over QUIC",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg = loaded
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "oscore.yaml", "configuration file (.yaml or .toml)")

	root.AddCommand(serveCmd(), contextsCmd())
	return root.Execute()
}

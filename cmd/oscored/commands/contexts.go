package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/TheusHen/oscore/oscore/store/memory"
)

func contextsCmd() *cobra.Command {
	var showKeys bool
	cmd := &cobra.Command{
		Use:   "contexts",
		Short: "Derive the configured security contexts and print them",
		RunE: func(cmd *cobra.Command, args []string) error {
			db := memory.New()
			if err := cfg.Provision(db); err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			for _, key := range db.Keys() {
				ctx, err := db.Lookup(key)
				if err != nil {
					return err
				}
				fmt.Printf("# %s\n", key)
				if err := enc.Encode(ctx.Summary(showKeys)); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showKeys, "show-keys", false, "include master secret and derived keys")
	return cmd
}

package main

import (
	"fmt"
	"io"

	"github.com/caffeineduck/snoop/module"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed modules",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mods, err := newStore().Load()
		if err != nil {
			return err
		}
		printModules(cmd.OutOrStdout(), mods)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func printModules(w io.Writer, mods []module.Module) {
	for _, m := range mods {
		version := m.Version
		if version == "" {
			version = string(m.Kind)
		}
		fmt.Fprintf(w, "%s (%s): %s\n", m.Canonical(), version, m.Description)
	}
}

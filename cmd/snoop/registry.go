package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/caffeineduck/snoop/module"
	"github.com/spf13/cobra"
)

var installCmd = &cobra.Command{
	Use:   "install <author/name[@version]>",
	Short: "Install a module from the registry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		author, name, version, err := module.ParseName(args[0])
		if err != nil {
			return err
		}

		client := newClient()
		defer client.Close()

		dl, err := client.Download(cmd.Context(), author, name, version)
		if err != nil {
			return fmt.Errorf("download %s/%s: %w", author, name, err)
		}
		mod, err := newStore().Install(dl.Author, dl.Name, dl.Code)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "installed %s (%s)\n", mod.Canonical(), dl.Version)
		return nil
	},
}

var publishCmd = &cobra.Command{
	Use:   "publish <file>",
	Short: "Publish a module to the registry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Token == "" {
			return errors.New("publishing requires a token: set --token or SNOOP_TOKEN")
		}
		code, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		if _, err := module.ParseMetadata(string(code)); err != nil {
			return err
		}

		client := newClient()
		defer client.Close()

		resp, err := client.Publish(cmd.Context(), string(code))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "published %s/%s (%s)\n", resp.Author, resp.Name, resp.Version)
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the registry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()
		defer client.Close()

		results, err := client.Search(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		for _, r := range results {
			mark := " "
			if r.Featured {
				mark = "*"
			}
			fmt.Fprintf(w, "%s %s (%s) - %d downloads\n", mark, r.Canonical(), r.Latest, r.Downloads)
			fmt.Fprintf(w, "\t%s\n", r.Description)
		}
		return nil
	},
}

var infoCmd = &cobra.Command{
	Use:   "info <author/name>",
	Short: "Show registry details of a module",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return showInfo(cmd.Context(), cmd.OutOrStdout(), args[0])
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the account behind the configured token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()
		defer client.Close()

		who, err := client.Whoami(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s\n", who.User)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(installCmd, publishCmd, searchCmd, infoCmd, whoamiCmd)
}

func showInfo(ctx context.Context, w io.Writer, name string) error {
	author, modName, _, err := module.ParseName(name)
	if err != nil {
		return err
	}

	client := newClient()
	defer client.Close()

	info, err := client.Info(ctx, author, modName)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s/%s\n", info.Author, info.Name)
	fmt.Fprintf(w, "\t%s\n", info.Description)
	if info.Latest == nil {
		fmt.Fprintln(w, "\tno published version")
	} else {
		fmt.Fprintf(w, "\tlatest: %s\n", *info.Latest)
	}
	return nil
}

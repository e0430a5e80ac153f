package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/caffeineduck/snoop/executor"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <author/name> [arg]",
	Short: "Run an installed module",
	Long: `Run an installed module in the sandbox.

The optional argument is passed to the module's run() function. The module's
printed output is shown first, followed by its return value as JSON.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		exec, err := newExecutor()
		if err != nil {
			return err
		}
		defer exec.Close()

		var arg any
		if len(args) == 2 {
			arg = args[1]
		}
		return runModule(cmd.Context(), cmd.OutOrStdout(), exec, args[0], arg, runOptions(cmd))
	},
}

func init() {
	addRunFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().Duration("timeout", 0, "Execution timeout (default from config)")
	cmd.Flags().StringSlice("allow-host", nil, "Allow HTTP to host (repeatable)")
	cmd.Flags().Duration("http-timeout", 0, "Default per-request timeout")
	cmd.Flags().Int64("http-max-body", 0, "Max HTTP response body size")
	cmd.Flags().Int("max-sessions", 0, "Max HTTP sessions per run")
	cmd.Flags().String("nameserver", "", "DNS server for dns() lookups")
}

// runOptions merges run flags over the loaded config.
func runOptions(cmd *cobra.Command) []executor.Option {
	timeout := cfg.Timeout
	allowHosts := cfg.AllowHosts
	httpTimeout := cfg.HTTPTimeout
	maxSessions := cfg.MaxSessions
	nameserver := cfg.Nameserver

	flags := cmd.Flags()
	if flags.Changed("timeout") {
		timeout, _ = flags.GetDuration("timeout")
	}
	if flags.Changed("allow-host") {
		allowHosts, _ = flags.GetStringSlice("allow-host")
	}
	if flags.Changed("http-timeout") {
		httpTimeout, _ = flags.GetDuration("http-timeout")
	}
	if flags.Changed("max-sessions") {
		maxSessions, _ = flags.GetInt("max-sessions")
	}
	if flags.Changed("nameserver") {
		nameserver, _ = flags.GetString("nameserver")
	}
	maxBody, _ := flags.GetInt64("http-max-body")

	opts := []executor.Option{
		executor.WithTimeout(timeout),
		executor.WithHTTPTimeout(httpTimeout),
		executor.WithHTTPMaxBodySize(maxBody),
		executor.WithMaxSessions(maxSessions),
		executor.WithNameserver(nameserver),
	}
	if len(allowHosts) > 0 {
		opts = append(opts, executor.WithAllowedHosts(allowHosts))
	}
	return opts
}

func runModule(ctx context.Context, w io.Writer, exec *executor.Executor, name string, arg any, opts []executor.Option) error {
	mod, err := newStore().Get(name)
	if err != nil {
		return err
	}

	start := time.Now()
	result := exec.Run(ctx, mod, arg, opts...)
	if result.Output != "" {
		fmt.Fprint(w, result.Output)
		if !strings.HasSuffix(result.Output, "\n") {
			fmt.Fprintln(w)
		}
	}
	if result.Error != nil {
		return result.Error
	}
	if result.Value != nil {
		data, err := json.MarshalIndent(result.Value, "", "  ")
		if err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
		fmt.Fprintln(w, string(data))
	}
	logger.Sugar().Debugf("%s finished in %v", mod.Canonical(), time.Since(start))
	return nil
}

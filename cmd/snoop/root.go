package main

import (
	"context"
	"fmt"
	"os"

	"github.com/caffeineduck/snoop/executor"
	"github.com/caffeineduck/snoop/hostfunc"
	"github.com/caffeineduck/snoop/internal/config"
	"github.com/caffeineduck/snoop/internal/logging"
	"github.com/caffeineduck/snoop/module"
	"github.com/caffeineduck/snoop/registry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	v       = viper.New()
	cfgFile string
	cfg     config.Config
	logger  = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "snoop",
	Short: "Sandboxed runner for OSINT recon modules",
	Long: `snoop - Run untrusted recon modules in a sandbox.

Modules are Lua scripts or WASI binaries installed from a module registry.
They reach the network only through host functions: HTTP sessions with
per-request deadlines and DNS lookups. Failures are reported through
last_err() instead of aborting the module.`,
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
}

func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Config file (default: $XDG_CONFIG_HOME/snoop/config.yaml)")
	flags.String("modules-dir", "", "Directory of installed modules")
	flags.String("registry", "", "Module registry URL")
	flags.String("token", "", "Registry auth token")
	flags.String("log-level", "", "Log level (debug|info|warn|error)")

	_ = v.BindPFlag(config.KeyModulesDir, flags.Lookup("modules-dir"))
	_ = v.BindPFlag(config.KeyRegistry, flags.Lookup("registry"))
	_ = v.BindPFlag(config.KeyToken, flags.Lookup("token"))
	_ = v.BindPFlag(config.KeyLogLevel, flags.Lookup("log-level"))

	// Env support: SNOOP_REGISTRY, SNOOP_TOKEN, etc.
	config.Setup(v)
}

func initConfig(cmd *cobra.Command, args []string) error {
	path := cfgFile
	if path == "" {
		path = config.DefaultPath()
	}
	if err := config.ReadFile(v, path); err != nil {
		return err
	}

	c, err := config.Load(v)
	if err != nil {
		return err
	}
	cfg = c

	l, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger = l
	hostfunc.SetLogger(logger)
	return nil
}

func newStore() *module.Store {
	return module.NewStore(cfg.ModulesDir, module.WithLogger(logger))
}

func newClient() *registry.Client {
	opts := []registry.Option{registry.WithLogger(logger)}
	if cfg.Token != "" {
		opts = append(opts, registry.WithToken(cfg.Token))
	}
	return registry.New(cfg.Registry, opts...)
}

func newExecutor() (*executor.Executor, error) {
	exec, err := executor.New(hostfunc.NewRegistry(),
		executor.WithLogger(logger),
		executor.WithMemoryLimit(executor.MemoryLimit256MB),
	)
	if err != nil {
		return nil, fmt.Errorf("create executor: %w", err)
	}
	return exec, nil
}

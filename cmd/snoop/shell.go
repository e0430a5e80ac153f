package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/caffeineduck/snoop/executor"
	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive shell",
	Long: `Start an interactive shell over the installed modules.

Commands:
  list                    List installed modules
  run <module> [arg]      Run a module
  info <module>           Show registry details of a module
  help                    Show this help
  quit                    Leave the shell

Features:
  - Command history (up/down arrows)
  - History search (Ctrl+R)`,
	Args: cobra.NoArgs,
	RunE: runShell,
}

func init() {
	shellCmd.Flags().String("history", "", "History file path (default: ~/.snoop_history)")
	addRunFlags(shellCmd)
	rootCmd.AddCommand(shellCmd)
}

const shellHelp = `list                    List installed modules
run <module> [arg]      Run a module
info <module>           Show registry details of a module
help                    Show this help
quit                    Leave the shell
`

type shell struct {
	exec *executor.Executor
	opts []executor.Option
	out  io.Writer
}

// handle executes one shell line. It reports whether the shell should exit.
func (s *shell) handle(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	var err error
	switch fields[0] {
	case "quit", "exit":
		return true
	case "help":
		fmt.Fprint(s.out, shellHelp)
	case "list":
		mods, lerr := newStore().Load()
		if lerr != nil {
			err = lerr
			break
		}
		printModules(s.out, mods)
	case "run":
		if len(fields) < 2 {
			err = fmt.Errorf("usage: run <module> [arg]")
			break
		}
		var arg any
		if len(fields) > 2 {
			arg = strings.Join(fields[2:], " ")
		}
		err = runModule(ctx, s.out, s.exec, fields[1], arg, s.opts)
	case "info":
		if len(fields) != 2 {
			err = fmt.Errorf("usage: info <module>")
			break
		}
		err = showInfo(ctx, s.out, fields[1])
	default:
		err = fmt.Errorf("unknown command %q, try help", fields[0])
	}

	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
	}
	return false
}

func runShell(cmd *cobra.Command, args []string) error {
	historyFile, _ := cmd.Flags().GetString("history")
	if historyFile == "" {
		home, _ := os.UserHomeDir()
		historyFile = filepath.Join(home, ".snoop_history")
	}

	exec, err := newExecutor()
	if err != nil {
		return err
	}
	defer exec.Close()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            "[snoop]> ",
		HistoryFile:       historyFile,
		HistoryLimit:      1000,
		InterruptPrompt:   "^C",
		EOFPrompt:         "quit",
		HistorySearchFold: true,
		AutoComplete: readline.NewPrefixCompleter(
			readline.PcItem("list"),
			readline.PcItem("run"),
			readline.PcItem("info"),
			readline.PcItem("help"),
			readline.PcItem("quit"),
		),
	})
	if err != nil {
		return fmt.Errorf("initialize readline: %w", err)
	}
	defer rl.Close()

	sh := &shell{exec: exec, opts: runOptions(cmd), out: rl.Stdout()}
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		if sh.handle(cmd.Context(), line) {
			return nil
		}
	}
}

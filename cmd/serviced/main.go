// Command serviced is a unit-file service supervisor: a small, explicit
// subset of systemd's service lifecycle (start, stop, restart, enable,
// disable, status, log, list) for hosts that run without a full init
// system managing their services.
package main

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/quratoop/serviced/internal/config"
	"github.com/quratoop/serviced/internal/control"
	"github.com/quratoop/serviced/internal/supervisor"
)

var (
	flagConfigPath string
	flagDryRun     bool
	flagVerbose    bool
	flagPkill      bool
	flagLogLines   int

	logger hclog.Logger
	sup    *supervisor.Supervisor
)

func main() {
	os.Exit(run())
}

func run() int {
	lastExitCode = 1
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		return lastExitCode
	}
	return lastExitCode
}

// lastExitCode carries a command's exit code convention (status uses
// 0/3/4, not just 0/1) out past cobra.Command.Execute, which only tells
// us whether an error occurred. dispatch sets it on every successful
// RunE; it is left at 1 for cobra-level failures (bad args, unknown
// flags) that never reach dispatch.
var lastExitCode int

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "serviced",
		Short:         "Unit-file service supervisor",
		Long:          "serviced starts, stops, and tracks systemd-style .service units without a full init system.",
		SilenceUsage:  true,
		SilenceErrors: false,
		Version:       "0.1.0",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup()
		},
	}

	root.PersistentFlags().StringVar(&flagConfigPath, "config", "", "path to an optional YAML configuration overlay")
	root.PersistentFlags().BoolVar(&flagDryRun, "dry-run", false, "resolve and log actions without launching or killing processes")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug-level logging")
	root.PersistentFlags().BoolVar(&flagPkill, "pkill", false, "enable the basename-wide pkill sweep on start for this invocation")

	root.AddCommand(
		newStartCmd(),
		newStopCmd(),
		newRestartCmd(),
		newEnableCmd(),
		newDisableCmd(),
		newStatusCmd(),
		newLogCmd(),
		newListCmd(),
		newListRunningCmd(),
		newVersionCmd(),
	)

	return root
}

// setup builds the logger, configuration, and Supervisor singleton shared
// by every subcommand's RunE. It runs once per invocation, in
// PersistentPreRunE, so flags are already parsed.
func setup() error {
	level := hclog.Info
	if flagVerbose {
		level = hclog.Debug
	}
	logger = hclog.New(&hclog.LoggerOptions{
		Name:       "serviced",
		Level:      level,
		Output:     os.Stderr,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})

	cfg, err := config.Load(flagConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if flagVerbose {
		cfg.Verbose = true
	}
	if cfg.Verbose {
		logger.SetLevel(hclog.Debug)
	}
	if flagPkill {
		cfg.PkillOnStart = true
	}

	sup = supervisor.New(cfg, logger)
	sup.SetDryRun(flagDryRun)
	return nil
}

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start [name]",
		Short: "Start one service, or every enabled service if name is omitted",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			return dispatch(control.Request{Command: control.CommandStart, Name: name})
		},
	}
}

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop <name>",
		Short: "Stop a running service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return dispatch(control.Request{Command: control.CommandStop, Name: args[0]})
		},
	}
}

func newRestartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restart <name>",
		Short: "Stop then start a service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return dispatch(control.Request{Command: control.CommandRestart, Name: args[0]})
		},
	}
}

func newEnableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enable <name>",
		Short: "Mark a service to start on boot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return dispatch(control.Request{Command: control.CommandEnable, Name: args[0]})
		},
	}
}

func newDisableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disable <name>",
		Short: "Remove a service's enabled marker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return dispatch(control.Request{Command: control.CommandDisable, Name: args[0]})
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <name>",
		Short: "Print a service's active/inactive/failed status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return dispatch(control.Request{Command: control.CommandStatus, Name: args[0]})
		},
	}
}

func newLogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log <name>",
		Short: "Print the tail of a service's log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return dispatch(control.Request{Command: control.CommandLog, Name: args[0], LogLines: flagLogLines})
		},
	}
	cmd.Flags().IntVarP(&flagLogLines, "lines", "n", 50, "number of trailing log lines to print")
	return cmd
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every discovered unit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return dispatch(control.Request{Command: control.CommandList})
		},
	}
}

func newListRunningCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-running",
		Short: "List only units that are currently alive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return dispatch(control.Request{Command: control.CommandListRunning})
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the serviced version banner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lastExitCode = 0
			fmt.Println("serviced " + cmd.Root().Version)
			return nil
		},
	}
}

// dispatch runs req against the shared Supervisor, prints its output, and
// records its exit code for run() to return. Exit codes are a resolved
// outcome (0/3/4 for status, 0/1 elsewhere per the command-line table),
// not a cobra-level failure, so dispatch itself never returns an error.
func dispatch(req control.Request) error {
	resp := control.Execute(sup, req)
	lastExitCode = resp.ExitCode
	if resp.Output != "" {
		fmt.Println(resp.Output)
	}
	return nil
}

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	statusFlags := &StatusFlags{}
	clearFlags := &ServiceFlags{}
	checkFlags := &ServiceFlags{}
	validateFlags := &ValidateFlags{}

	root := createRootCommand(globalFlags)
	root.AddCommand(
		createServeCommand(globalFlags),
		createStatusCommand(statusFlags),
		createClearCommand(clearFlags),
		createCheckCommand(checkFlags),
		createValidateCommand(globalFlags, validateFlags),
	)
	return root
}

func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "vigil",
		Short: "Service health supervision daemon",
		Long: `Vigil watches external services with HTTP or command health probes and
restarts them within a bounded daily budget when they go down.

Examples:
  vigil serve --config=config.toml         # Start the supervision daemon
  vigil status                             # All service snapshots
  vigil status --name=web                  # One service
  vigil clear --name=web                   # Reset restart budget after manual fix`,
	}
	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file")
	return root
}

func createServeCommand(globalFlags *GlobalFlags) *cobra.Command {
	serveFlags := &ServeFlags{}
	cmd := &cobra.Command{
		Use:   "serve [config.toml]",
		Short: "Start the vigil supervision daemon",
		Long: `Start the daemon that probes services, enforces the restart policy and
serves the control API. All configuration is loaded from the TOML file.

Examples:
  vigil serve --config=config.toml
  vigil serve config.toml
  vigil serve config.toml --daemonize`,
		RunE: func(cmd *cobra.Command, args []string) error {
			serveFlags.ConfigPath = globalFlags.ConfigPath
			return runServeCommand(serveFlags, args)
		},
	}
	cmd.Flags().BoolVar(&serveFlags.Daemonize, "daemonize", false, "run as daemon in background")
	cmd.Flags().StringVar(&serveFlags.LogFile, "logfile", "", "redirect daemon logs to file")
	return cmd
}

func createStatusCommand(flags *StatusFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show supervision status",
		Long: `Show the supervision snapshot for one or all services.

Examples:
  vigil status
  vigil status --name=web
  vigil status --watch --interval=5s`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatusCommand(flags)
		},
	}
	cmd.Flags().StringVar(&flags.Name, "name", "", "service name (all services when empty)")
	cmd.Flags().BoolVar(&flags.Watch, "watch", false, "refresh continuously")
	cmd.Flags().DurationVar(&flags.Interval, "interval", 5*time.Second, "watch refresh interval")
	addAPIFlags(cmd, &flags.APIUrl, &flags.APITimeout)
	return cmd
}

func createClearCommand(flags *ServiceFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Reset a service's restart budget",
		Long: `Reset the restart counters for a service and lift the failed_permanently
state after the underlying problem has been fixed manually.

Examples:
  vigil clear --name=web`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClearCommand(flags)
		},
	}
	cmd.Flags().StringVar(&flags.Name, "name", "", "service name (required)")
	addAPIFlags(cmd, &flags.APIUrl, &flags.APITimeout)
	if err := cmd.MarkFlagRequired("name"); err != nil {
		panic(err)
	}
	return cmd
}

func createCheckCommand(flags *ServiceFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Probe a service immediately",
		Long: `Ask the daemon to run a health check for a service right away instead of
waiting for the next scheduled interval.

Examples:
  vigil check --name=web`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheckCommand(flags)
		},
	}
	cmd.Flags().StringVar(&flags.Name, "name", "", "service name (required)")
	addAPIFlags(cmd, &flags.APIUrl, &flags.APITimeout)
	if err := cmd.MarkFlagRequired("name"); err != nil {
		panic(err)
	}
	return cmd
}

func createValidateCommand(globalFlags *GlobalFlags, flags *ValidateFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [config.toml]",
		Short: "Validate a config file",
		Long: `Parse and validate a TOML config file without starting the daemon.

Examples:
  vigil validate config.toml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.ConfigPath = globalFlags.ConfigPath
			if len(args) > 0 {
				flags.ConfigPath = args[0]
			}
			return runValidateCommand(flags)
		},
	}
}

func addAPIFlags(cmd *cobra.Command, url *string, timeout *time.Duration) {
	cmd.Flags().StringVar(url, "api-url", "", "daemon URL (e.g. http://host:8080/api)")
	cmd.Flags().DurationVar(timeout, "api-timeout", 10*time.Second, "request timeout")
}

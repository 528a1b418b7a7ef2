package main

import (
	"context"
	"fmt"
	"os"
	"syscall"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamesainslie/mtreex/pkg/mtreex/config"
	"github.com/jamesainslie/mtreex/pkg/mtreex/logging"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "mtreex [file]",
		Short: "Read, render, generate and verify mtree manifests",
		Long: `mtreex parses BSD mtree directory manifests and renders them as XML,
JSON, YAML, tables or trees. It can also generate a manifest from a
directory, verify a directory against a manifest and browse a manifest
interactively.

With no subcommand, mtreex converts the manifest named on the command
line (or read from stdin) using the configured output format.

Examples:
  mtreex /etc/mtree/BSD.var.dist          # Pretty table
  mtreex -o xml --layout deep site.mtree  # Deep XML
  cat site.mtree | mtreex -o json         # Read stdin
  mtreex generate -k sha256 /usr/local    # Generate a manifest
  mtreex verify site.mtree /usr/local     # Compare with a tree
  mtreex browse site.mtree                # Interactive browser
  mtreex history                          # Recent runs`,
		Args:               cobra.MaximumNArgs(1),
		PersistentPreRunE:  initializeLogging,
		PersistentPostRunE: closeLogging,
		RunE:               runConvert,
		SilenceUsage:       true,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/mtreex/config.yaml)")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "minimal output")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug output")

	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	// The root command converts, so it takes the same flags as convert.
	addConvertFlags(rootCmd)
}

// initConfig reads in config file and environment variables.
func initConfig() {
	v := viper.GetViper()
	if err := config.Setup(v); err != nil {
		printVerbose("Config setup failed: %v", err)
	}
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	}
	if err := config.ReadIn(v); err != nil {
		printError("%v", err)
	}
}

// closeLogging flushes and closes the log file after a command.
func closeLogging(_ *cobra.Command, _ []string) error {
	return logging.Close()
}

// Execute runs the root command with styled help and errors. Interrupts
// cancel the command's context.
func Execute() error {
	return fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(versionString()),
		fang.WithNotifySignal(os.Interrupt, syscall.SIGTERM),
	)
}

// commandContext returns the context Execute attached to cmd, or a
// background context when cmd runs outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// getVerbose returns true if verbose mode is enabled.
func getVerbose() bool {
	return viper.GetBool("verbose")
}

// getQuiet returns true if quiet mode is enabled.
func getQuiet() bool {
	return viper.GetBool("quiet")
}

// printVerbose prints a message if verbose mode is enabled.
func printVerbose(format string, args ...interface{}) {
	if getVerbose() && !getQuiet() {
		fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", args...)
	}
}

// printInfo prints a message to stderr if quiet mode is not enabled.
// Stdout carries rendered output only.
func printInfo(format string, args ...interface{}) {
	if !getQuiet() {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}

// printError prints an error message to stderr.
func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}

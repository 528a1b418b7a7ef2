package main

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Stamped by -ldflags in release builds.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long: `Print the mtreex version, the commit and date it was built from, and
the Go toolchain and platform. Builds without release stamps fall back
to the module and VCS information recorded by the Go toolchain.`,
	Args: cobra.NoArgs,
	RunE: runVersion,
}

func init() {
	versionCmd.Flags().Bool("short", false, "print the version number only")
	rootCmd.AddCommand(versionCmd)
}

// buildInfo is the version triple, filled from debug.ReadBuildInfo where
// the linker left the defaults.
type buildInfo struct {
	Version, Commit, Date string
}

func currentBuild() buildInfo {
	b := buildInfo{Version: version, Commit: commit, Date: date}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return b
	}
	if b.Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		b.Version = info.Main.Version
	}
	for _, s := range info.Settings {
		switch {
		case s.Key == "vcs.revision" && b.Commit == "none":
			b.Commit = s.Value[:min(len(s.Value), 12)]
		case s.Key == "vcs.time" && b.Date == "unknown":
			b.Date = s.Value
		}
	}
	return b
}

// versionString is the one-line form shown by --version.
func versionString() string {
	b := currentBuild()
	if b.Commit == "none" {
		return b.Version
	}
	return fmt.Sprintf("%s (%s, %s)", b.Version, b.Commit, b.Date)
}

func runVersion(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	b := currentBuild()
	if short, _ := cmd.Flags().GetBool("short"); short {
		_, err := fmt.Fprintln(out, b.Version)
		return err
	}
	_, err := fmt.Fprintf(out, "mtreex %s\n  commit:  %s\n  built:   %s\n  go:      %s\n  os/arch: %s/%s\n",
		b.Version, b.Commit, b.Date, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	return err
}

package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/jamesainslie/mtreex/pkg/mtreex/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Show, create and edit the mtreex configuration.

Settings come from, highest precedence first:
  1. command-line flags
  2. MTREEX_ environment variables, e.g. MTREEX_OUTPUT=json
  3. MTREEX_ lines in mtreex.env next to the config file
  4. config.yaml in $XDG_CONFIG_HOME/mtreex or ~/.config/mtreex
  5. built-in defaults`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Print every setting after flags, environment and files are applied.
With --format yaml or toml the output can be saved as a config file.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open the config file in $VISUAL or $EDITOR",
	Long: `Open config.yaml in $VISUAL, then $EDITOR, then vi. A default file is
written first when none exists. --env opens mtreex.env instead.`,
	Args: cobra.NoArgs,
	RunE: runConfigEdit,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default config file",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	Long:  `Print the path of config.yaml, or of mtreex.env with --env.`,
	Args:  cobra.NoArgs,
	RunE:  runConfigPath,
}

func init() {
	configShowCmd.Flags().String("format", "text", "output format: text, yaml or toml")
	configEditCmd.Flags().Bool("env", false, "edit the env file")
	configPathCmd.Flags().Bool("env", false, "print the env file path")

	configCmd.AddCommand(configShowCmd, configEditCmd, configInitCmd, configPathCmd)
	rootCmd.AddCommand(configCmd)
}

// setting is one effective configuration value under its viper key.
type setting struct {
	key   string
	value any
}

func settings(cfg *config.Config) []setting {
	return []setting{
		{"output", cfg.Output},
		{"layout", cfg.Layout},
		{"strict", cfg.Strict},
		{"unescape_names", cfg.UnescapeNames},
		{"exclude", cfg.Exclude},
		{"generate.keywords", cfg.Generate.Keywords},
		{"generate.workers", cfg.Generate.Workers},
		{"cache.enabled", cfg.Cache.Enabled},
		{"cache.path", cfg.Cache.Path},
		{"journal.enabled", cfg.Journal.Enabled},
		{"journal.path", cfg.Journal.Path},
		{"journal.retention_days", cfg.Journal.RetentionDays},
		{"logging.level", cfg.Logging.Level},
		{"logging.path", cfg.Logging.Path},
		{"logging.format", cfg.Logging.Format},
	}
}

// envName returns the environment variable that overrides key.
func envName(key string) string {
	return config.EnvPrefix + "_" + strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))
}

// nestSettings turns dotted keys into nested maps for the yaml and toml
// encoders.
func nestSettings(list []setting) map[string]any {
	root := map[string]any{}
	for _, s := range list {
		m := root
		parts := strings.Split(s.key, ".")
		for _, p := range parts[:len(parts)-1] {
			child, ok := m[p].(map[string]any)
			if !ok {
				child = map[string]any{}
				m[p] = child
			}
			m = child
		}
		m[parts[len(parts)-1]] = s.value
	}
	return root
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	format, _ := cmd.Flags().GetString("format")
	return writeSettings(cmd.OutOrStdout(), settings(cfg), format, viper.ConfigFileUsed())
}

// writeSettings prints list in format. The text form also names the
// config file and any environment overrides in effect.
func writeSettings(out io.Writer, list []setting, format, file string) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(nestSettings(list)); err != nil {
			return err
		}
		return enc.Close()
	case "toml":
		return toml.NewEncoder(out).Encode(nestSettings(list))
	case "text", "":
	default:
		return fmt.Errorf("unknown format %q (want text, yaml or toml)", format)
	}

	if file == "" {
		file = "(none, using defaults)"
	}
	fmt.Fprintf(out, "config file: %s\n\n", file)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	var overrides []string
	for _, s := range list {
		fmt.Fprintf(tw, "%s\t%v\n", s.key, s.value)
		if name := envName(s.key); os.Getenv(name) != "" {
			overrides = append(overrides, name+"="+os.Getenv(name))
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(overrides) > 0 {
		fmt.Fprintf(out, "\nenvironment overrides:\n  %s\n", strings.Join(overrides, "\n  "))
	}
	return nil
}

// targetPath returns config.yaml, or mtreex.env when the command's --env
// flag is set.
func targetPath(cmd *cobra.Command) (string, error) {
	path, err := config.ConfigPath()
	if err != nil {
		return "", fmt.Errorf("locating config: %w", err)
	}
	if env, _ := cmd.Flags().GetBool("env"); env {
		path = filepath.Join(filepath.Dir(path), config.EnvFile)
	}
	return path, nil
}

func runConfigEdit(cmd *cobra.Command, _ []string) error {
	path, err := targetPath(cmd)
	if err != nil {
		return err
	}
	if filepath.Base(path) == config.EnvFile {
		if err := config.EnsureConfigDir(); err != nil {
			return err
		}
	} else if _, err := config.WriteDefault(); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}

	editor := firstNonEmpty(os.Getenv("VISUAL"), os.Getenv("EDITOR"), "vi")
	printVerbose("Opening %s with %s", path, editor)

	c := exec.Command(editor, path)
	c.Stdin, c.Stdout, c.Stderr = os.Stdin, os.Stdout, os.Stderr
	if err := c.Run(); err != nil {
		return fmt.Errorf("running %s: %w", editor, err)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func runConfigInit(_ *cobra.Command, _ []string) error {
	path, err := config.ConfigPath()
	if err != nil {
		return fmt.Errorf("locating config: %w", err)
	}
	if _, err := os.Stat(path); err == nil {
		printInfo("Config file already exists: %s", path)
		return nil
	}
	if _, err := config.WriteDefault(); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}
	printInfo("Created %s", path)
	return nil
}

func runConfigPath(cmd *cobra.Command, _ []string) error {
	path, err := targetPath(cmd)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		printVerbose("%s does not exist", path)
	}
	return nil
}

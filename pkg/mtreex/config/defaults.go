// Package config provides configuration management for mtreex.
package config

// Default configuration values for mtreex.
const (
	// DefaultOutput is the formatter used when none is given.
	DefaultOutput = "pretty"

	// DefaultLayout is the structured-output layout used when none is given.
	DefaultLayout = "shallow"

	// DefaultConfigDir is the default configuration directory path.
	DefaultConfigDir = "~/.config/mtreex"

	// DefaultRetentionDays is the default number of days to keep journal
	// entries.
	DefaultRetentionDays = 30

	// DefaultLogLevel is the default file log level.
	DefaultLogLevel = "info"
)

// DefaultKeywords are the keywords generate records when none are
// configured.
var DefaultKeywords = []string{
	"type", "mode", "uid", "gid", "size", "time", "link", "sha256",
}

// DefaultComponentLevels are the per-component log levels written by
// default.
var DefaultComponentLevels = map[string]string{
	"parser":  "info",
	"scanner": "info",
	"verify":  "info",
	"cache":   "warn",
	"watcher": "warn",
	"tui":     "info",
}

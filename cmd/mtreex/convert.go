package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamesainslie/mtreex/pkg/mtreex/config"
	"github.com/jamesainslie/mtreex/pkg/mtreex/filter"
	"github.com/jamesainslie/mtreex/pkg/mtreex/journal"
	"github.com/jamesainslie/mtreex/pkg/mtreex/mtree"
	"github.com/jamesainslie/mtreex/pkg/mtreex/output"
	"github.com/jamesainslie/mtreex/pkg/mtreex/watch"
)

// stdinSource names standard input as a manifest source.
const stdinSource = "-"

// ErrWatchStdin is returned when --watch is combined with stdin input.
var ErrWatchStdin = errors.New("--watch needs a manifest file, not stdin")

var convertCmd = &cobra.Command{
	Use:   "convert [file]",
	Short: "Render a manifest in another format",
	Long: `Parse an mtree manifest and render it in the selected output format.

The manifest is read from FILE, or from stdin when FILE is "-" or absent.
Filter flags select, sort and limit the entries before rendering.

Examples:
  mtreex convert -o xml site.mtree
  mtreex convert -o json --layout deep site.mtree
  mtreex convert --type file --min-size 1M --sort size site.mtree
  mtreex convert -o template --template '{{range .Entries}}{{.Path}}{{"\n"}}{{end}}' site.mtree
  mtreex convert --watch -o tree site.mtree`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConvert,
}

func init() {
	addConvertFlags(convertCmd)
	rootCmd.AddCommand(convertCmd)
}

// runConvert is the convert command handler, also used by the root command.
func runConvert(cmd *cobra.Command, args []string) error {
	if err := bindFlags(cmd, convertFlagKeys); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	f, err := buildFilter()
	if err != nil {
		return fmt.Errorf("failed to build filter: %w", err)
	}

	source := stdinSource
	if len(args) > 0 {
		source = args[0]
	}

	watchMode, _ := cmd.Flags().GetBool("watch")
	if !watchMode {
		return convertOnce(cmd.InOrStdin(), cmd.OutOrStdout(), source, f, cfg)
	}

	if source == stdinSource {
		return ErrWatchStdin
	}
	return convertWatch(cmd, source, f, cfg)
}

// convertOnce reads, renders and journals one conversion.
func convertOnce(stdin io.Reader, stdout io.Writer, source string, f *filter.Filter, cfg *config.Config) error {
	start := time.Now()

	formatter, format, err := selectFormatter()
	if err != nil {
		return err
	}

	text, err := readManifest(stdin, source)
	if err != nil {
		return err
	}

	doc, out, err := convertText(text, f, formatter)
	if err != nil {
		return err
	}
	if _, err := stdout.Write(out); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	for _, w := range doc.Warnings() {
		printVerbose("%s", w)
	}

	summary := journalSummary(doc)
	recordRun(cfg, journal.Entry{
		Operation: journal.OpConvert,
		Source:    source,
		Format:    format,
		Summary:   summary,
		Duration:  time.Since(start),
	})
	return nil
}

// convertWatch renders source, then renders again on every change until
// interrupted.
func convertWatch(cmd *cobra.Command, source string, f *filter.Filter, cfg *config.Config) error {
	path, err := config.ExpandPath(source)
	if err != nil {
		return err
	}

	render := func() {
		if err := convertOnce(cmd.InOrStdin(), cmd.OutOrStdout(), path, f, cfg); err != nil {
			printError("%v", err)
		}
	}

	w, err := watch.New()
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(path); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}

	ctx := commandContext(cmd)

	render()
	printInfo("Watching %s (Ctrl+C to stop)", path)

	w.Run(ctx, func(changed string) {
		printVerbose("%s changed", changed)
		render()
	})
	return nil
}

// readManifest returns the manifest text from a file, or from stdin for "-".
func readManifest(stdin io.Reader, source string) (string, error) {
	if source == stdinSource {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}

	path, err := config.ExpandPath(source)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read manifest: %w", err)
	}
	return string(data), nil
}

// parseManifest parses text with the configured parser options.
func parseManifest(text string) (*mtree.Document, error) {
	doc, err := newParser().Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return doc, nil
}

// convertText parses text, applies f and renders the result.
func convertText(text string, f *filter.Filter, formatter output.Formatter) (*mtree.Document, []byte, error) {
	doc, err := parseManifest(text)
	if err != nil {
		return nil, nil, err
	}
	if f != nil && !f.IsZero() {
		doc = f.Apply(doc)
	}

	var buf bytes.Buffer
	if err := formatter.Format(&buf, doc); err != nil {
		return nil, nil, fmt.Errorf("failed to format output: %w", err)
	}
	return doc, buf.Bytes(), nil
}

// selectFormatter returns the formatter named by the output setting with
// the configured layout applied.
func selectFormatter() (output.Formatter, string, error) {
	outFormat := viper.GetString("output")
	if outFormat == "" {
		outFormat = config.DefaultOutput
	}

	layout, err := output.ParseLayout(viper.GetString("layout"))
	if err != nil {
		return nil, "", err
	}

	var formatter output.Formatter
	if outFormat == "template" {
		tmplStr := viper.GetString("template")
		if tmplStr == "" {
			return nil, "", fmt.Errorf("--template is required when using -o template")
		}
		formatter = output.NewTemplateFormatter(tmplStr)
	} else {
		formatter, err = output.Get(outFormat)
		if err != nil {
			return nil, "", fmt.Errorf("unknown output format %q: available formats are %v", outFormat, output.Available())
		}
	}

	output.ApplyLayout(formatter, layout)
	return formatter, outFormat, nil
}

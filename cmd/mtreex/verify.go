package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jamesainslie/mtreex/pkg/mtreex/config"
	"github.com/jamesainslie/mtreex/pkg/mtreex/journal"
	"github.com/jamesainslie/mtreex/pkg/mtreex/verify"
)

// ErrVerifyFailed is returned when the tree does not match the manifest.
var ErrVerifyFailed = errors.New("tree does not match manifest")

var verifyCmd = &cobra.Command{
	Use:   "verify FILE DIR",
	Short: "Check a directory tree against a manifest",
	Long: `Compare every entry of the manifest FILE with the tree rooted at DIR.

Entries missing from the tree, files present in the tree but absent from
the manifest, and keyword values that differ are reported. The command
exits non-zero when anything differs.

Examples:
  mtreex verify local.mtree /usr/local
  mtreex verify -k type,mode,sha256 --skip-extra site.mtree ./build
  mtreex verify -o json site.mtree /srv > report.json`,
	Args: cobra.ExactArgs(2),
	RunE: runVerify,
}

func init() {
	f := verifyCmd.Flags()
	f.StringSliceP("keywords", "k", nil, "only compare these keywords")
	f.Bool("skip-extra", false, "do not report files missing from the manifest")
	f.Bool("no-cache", false, "hash every file, bypassing the digest cache")
	f.IntP("workers", "w", 0, "override hashing worker count (0=auto)")
	f.StringP("output", "o", "text", "report format: text, json or yaml")
	f.Bool("strict", false, "fail when two entries resolve to the same path")
	rootCmd.AddCommand(verifyCmd)
}

// runVerify is the verify command handler.
func runVerify(cmd *cobra.Command, args []string) error {
	start := time.Now()

	if err := bindFlags(cmd, map[string]string{"strict": "strict"}); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	reportFormat, _ := cmd.Flags().GetString("output")
	switch reportFormat {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("unknown report format %q: want text, json or yaml", reportFormat)
	}

	text, err := readManifest(cmd.InOrStdin(), args[0])
	if err != nil {
		return err
	}
	doc, err := parseManifest(text)
	if err != nil {
		return err
	}

	root, err := config.ExpandPath(args[1])
	if err != nil {
		return err
	}
	root, err = filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	opts := verify.Options{}
	opts.Keywords, _ = cmd.Flags().GetStringSlice("keywords")
	opts.SkipExtra, _ = cmd.Flags().GetBool("skip-extra")
	opts.Workers = cfg.Generate.Workers
	if cmd.Flags().Changed("workers") {
		opts.Workers, _ = cmd.Flags().GetInt("workers")
	}

	noCache, _ := cmd.Flags().GetBool("no-cache")
	if c := openCache(cfg, noCache); c != nil {
		defer c.Close()
		opts.Cache = c
	}

	ctx := commandContext(cmd)

	printVerbose("Verifying %s against %s", root, args[0])

	report, err := verify.New(opts).Verify(ctx, doc, root)
	if err != nil {
		return fmt.Errorf("verify failed: %w", err)
	}

	if err := writeReport(cmd.OutOrStdout(), report, reportFormat); err != nil {
		return err
	}

	summary := journalSummary(doc)
	summary.Problems = report.Problems()
	recordRun(cfg, journal.Entry{
		Operation: journal.OpVerify,
		Source:    args[0],
		Target:    root,
		Format:    reportFormat,
		Summary:   summary,
		Findings:  reportFindings(report),
		Duration:  time.Since(start),
	})

	if !report.OK() {
		return fmt.Errorf("%w: %d problems", ErrVerifyFailed, report.Problems())
	}
	return nil
}

// writeReport renders a verification report.
func writeReport(w io.Writer, r *verify.Report, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	}

	for _, p := range r.Missing {
		fmt.Fprintf(w, "missing: %s\n", p)
	}
	for _, p := range r.Extra {
		fmt.Fprintf(w, "extra: %s\n", p)
	}
	for _, m := range r.Mismatches {
		fmt.Fprintln(w, m.String())
	}
	for _, e := range r.Errors {
		fmt.Fprintf(w, "error: %s\n", e)
	}

	if r.OK() {
		fmt.Fprintf(w, "%s: %d entries checked, OK\n", r.Root, r.Checked)
		return nil
	}
	fmt.Fprintf(w, "%s: %d entries checked, %d missing, %d extra, %d changed, %d errors\n",
		r.Root, r.Checked, len(r.Missing), len(r.Extra), len(r.Mismatches), len(r.Errors))
	return nil
}

// reportFindings flattens a report into one line per finding.
func reportFindings(r *verify.Report) []string {
	findings := make([]string, 0, r.Problems())
	for _, p := range r.Missing {
		findings = append(findings, "missing: "+p)
	}
	for _, p := range r.Extra {
		findings = append(findings, "extra: "+p)
	}
	for _, m := range r.Mismatches {
		findings = append(findings, m.String())
	}
	for _, e := range r.Errors {
		findings = append(findings, "error: "+e)
	}
	return findings
}

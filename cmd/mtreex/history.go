package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jamesainslie/mtreex/pkg/mtreex/config"
	"github.com/jamesainslie/mtreex/pkg/mtreex/filter"
	"github.com/jamesainslie/mtreex/pkg/mtreex/journal"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent convert, generate and verify runs",
	Long: `List the runs recorded in the journal, newest first. Each run keeps the
manifest read, entry counts and, for verify, the first findings.

Examples:
  mtreex history --op verify --since 7d
  mtreex history --json | jq '.[0].summary'
  mtreex history show verify-20240116`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show one run by ID or unique ID prefix",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove runs older than the retention period",
	Args:  cobra.NoArgs,
	RunE:  runHistoryClean,
}

func init() {
	f := historyCmd.Flags()
	f.IntP("limit", "l", 20, "maximum number of runs to list (0 for all)")
	f.String("op", "", "only runs of this operation: convert, generate or verify")
	f.String("since", "", "only runs newer than this age, e.g. 12h, 7d, 2w")
	f.Bool("json", false, "print runs as a JSON array")
	historyCleanCmd.Flags().Int("days", 0, "retention in days (default: journal.retention_days)")

	historyCmd.AddCommand(historyShowCmd, historyCleanCmd)
	rootCmd.AddCommand(historyCmd)
}

// historyQuery builds a journal query from the history flags.
func historyQuery(cmd *cobra.Command, now time.Time) (journal.Query, error) {
	f := cmd.Flags()
	limit, _ := f.GetInt("limit")
	op, _ := f.GetString("op")
	since, _ := f.GetString("since")

	q := journal.Query{Operation: journal.Operation(op), Limit: limit}
	switch q.Operation {
	case "", journal.OpConvert, journal.OpGenerate, journal.OpVerify:
	default:
		return q, fmt.Errorf("unknown operation %q", op)
	}
	if since != "" {
		age, err := filter.ParseDuration(since)
		if err != nil {
			return q, fmt.Errorf("--since: %w", err)
		}
		q.Since = now.Add(-age)
	}
	return q, nil
}

func openConfiguredJournal() (*journal.Journal, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	j, err := openJournal(cfg)
	if err != nil {
		return nil, nil, err
	}
	return j, cfg, nil
}

func runHistory(cmd *cobra.Command, _ []string) error {
	q, err := historyQuery(cmd, time.Now())
	if err != nil {
		return err
	}
	j, _, err := openConfiguredJournal()
	if err != nil {
		return err
	}
	entries, err := j.Select(q)
	if err != nil {
		return fmt.Errorf("reading journal: %w", err)
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		return nil
	}
	fmt.Fprintln(out, historyTable(entries))
	return nil
}

var (
	historyHeaderStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	historyCellStyle   = lipgloss.NewStyle().Padding(0, 1)
	historyAlertStyle  = historyCellStyle.Foreground(lipgloss.Color("#DC3545"))
)

// problemsColumn is the PROBLEMS column, highlighted when non-zero.
const problemsColumn = 4

// historyTable lays entries out as a bordered table.
func historyTable(entries []journal.Entry) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers("ID", "WHEN", "OP", "ENTRIES", "PROBLEMS", "SIZE", "SOURCE")

	for _, e := range entries {
		t.Row(
			e.ID,
			humanize.Time(e.Timestamp),
			string(e.Operation),
			strconv.Itoa(e.Summary.Entries),
			strconv.Itoa(e.Summary.Problems),
			humanize.IBytes(uint64(max(e.Summary.Bytes, 0))),
			truncateMiddle(e.Source, 40),
		)
	}

	t.StyleFunc(func(row, col int) lipgloss.Style {
		switch {
		case row == table.HeaderRow:
			return historyHeaderStyle
		case col == problemsColumn && row < len(entries) && entries[row].Summary.Problems > 0:
			return historyAlertStyle
		}
		return historyCellStyle
	})
	return t.String()
}

// truncateMiddle shortens s to n runes by replacing its middle with "...".
func truncateMiddle(s string, n int) string {
	r := []rune(s)
	if len(r) <= n || n < 5 {
		return s
	}
	head := (n - 3) / 2
	return string(r[:head]) + "..." + string(r[len(r)-(n-3-head):])
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	j, _, err := openConfiguredJournal()
	if err != nil {
		return err
	}
	e, err := j.Get(args[0])
	if err != nil {
		return err
	}
	writeEntry(cmd.OutOrStdout(), e)
	return nil
}

// writeEntry prints one run as labelled lines followed by its findings.
func writeEntry(out io.Writer, e *journal.Entry) {
	field := func(label, value string) {
		if value != "" {
			fmt.Fprintf(out, "%-10s %s\n", label+":", value)
		}
	}
	field("ID", e.ID)
	field("When", e.Timestamp.Local().Format("2006-01-02 15:04:05 MST"))
	field("Operation", string(e.Operation))
	field("Source", e.Source)
	field("Target", e.Target)
	field("Format", e.Format)
	field("Entries", fmt.Sprintf("%d (%d dirs, %d files, %s)",
		e.Summary.Entries, e.Summary.Dirs, e.Summary.Files, humanize.IBytes(uint64(max(e.Summary.Bytes, 0)))))
	field("Problems", strconv.Itoa(e.Summary.Problems))
	field("Took", e.Duration.Round(time.Millisecond).String())

	if len(e.Findings) == 0 {
		return
	}
	fmt.Fprintln(out, "\nFindings:")
	for _, f := range e.Findings {
		fmt.Fprintln(out, "  "+f)
	}
	if more := e.Summary.Problems - len(e.Findings); more > 0 {
		fmt.Fprintf(out, "  ... and %d more\n", more)
	}
}

func runHistoryClean(cmd *cobra.Command, _ []string) error {
	j, cfg, err := openConfiguredJournal()
	if err != nil {
		return err
	}

	days, _ := cmd.Flags().GetInt("days")
	if days <= 0 {
		days = cfg.Journal.RetentionDays
	}
	if days <= 0 {
		days = config.DefaultRetentionDays
	}

	removed, err := j.Cleanup(days)
	if err != nil {
		return fmt.Errorf("cleaning journal: %w", err)
	}
	printInfo("Removed %d runs older than %d days.", removed, days)
	return nil
}

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/Ne0x1/Egyptian-Forensics-Toolkit/internal/ledger"
	"github.com/Ne0x1/Egyptian-Forensics-Toolkit/internal/stats"
)

func newLedgerCmd(stdout io.Writer) *cobra.Command {
	var (
		path      string
		outputDir string
	)

	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect the acquisition audit ledger",
	}
	cmd.PersistentFlags().StringVar(&path, "ledger", "", "ledger database (default <output-dir>/ledger.db)")
	cmd.PersistentFlags().StringVarP(&outputDir, "output-dir", "o", "forensic_output", "output directory holding ledger.db")

	open := func() (*ledger.Ledger, error) {
		p := path
		if p == "" {
			p = ledger.DefaultPath(outputDir)
		}
		// Reading must not create an empty database.
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("ledger %s: %w", filepath.Clean(p), err)
		}
		return ledger.Open(p)
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded acquisitions",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			l, err := open()
			if err != nil {
				return err
			}
			defer l.Close()

			recs, err := l.List()
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				fmt.Fprintln(stdout, "no acquisitions recorded")
				return nil
			}
			t := table.New().
				Border(lipgloss.NormalBorder()).
				Headers("ID", "STARTED", "STATUS", "SOURCE", "SIZE", "BAD", "CASE", "EXAMINER")
			for _, r := range recs {
				t.Row(
					shortID(r.ID),
					r.Started.Local().Format(time.DateTime),
					string(r.Status),
					r.Source,
					stats.FormatBytes(r.BytesWritten),
					strconv.FormatInt(r.BadSectors, 10),
					r.CaseNumber,
					r.Examiner,
				)
			}
			fmt.Fprintln(stdout, t.Render())
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one acquisition and its bad sectors",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			l, err := open()
			if err != nil {
				return err
			}
			defer l.Close()

			r, err := findRecord(l, args[0])
			if err != nil {
				return err
			}
			printRecord(stdout, r)

			sectors, err := l.BadSectors(r.ID)
			if err != nil {
				return err
			}
			if len(sectors) == 0 {
				return nil
			}
			fmt.Fprintf(stdout, "\nbad sectors (%d):\n", len(sectors))
			for _, s := range sectors {
				fmt.Fprintf(stdout, "  offset %d  %s  %s\n",
					s.Offset, stats.FormatBytes(s.Length), s.Description)
			}
			return nil
		},
	}

	cmd.AddCommand(listCmd, showCmd)
	return cmd
}

// findRecord resolves a full id or the unique record whose id starts
// with prefix.
func findRecord(l *ledger.Ledger, prefix string) (ledger.Record, error) {
	r, err := l.Get(prefix)
	if err == nil || !errors.Is(err, ledger.ErrNotFound) {
		return r, err
	}
	recs, listErr := l.List()
	if listErr != nil {
		return ledger.Record{}, listErr
	}
	var match []ledger.Record
	for _, rec := range recs {
		if prefix != "" && strings.HasPrefix(rec.ID, prefix) {
			match = append(match, rec)
		}
	}
	switch len(match) {
	case 1:
		return match[0], nil
	case 0:
		return ledger.Record{}, err
	default:
		return ledger.Record{}, fmt.Errorf("id prefix %q is ambiguous (%d matches)", prefix, len(match))
	}
}

func printRecord(w io.Writer, r ledger.Record) {
	fmt.Fprintf(w, "id:           %s\n", r.ID)
	fmt.Fprintf(w, "status:       %s\n", r.Status)
	fmt.Fprintf(w, "source:       %s\n", r.Source)
	fmt.Fprintf(w, "destination:  %s\n", r.Destination)
	fmt.Fprintf(w, "case:         %s\n", orDash(r.CaseNumber))
	fmt.Fprintf(w, "examiner:     %s\n", orDash(r.Examiner))
	fmt.Fprintf(w, "started:      %s\n", r.Started.Local().Format(time.DateTime))
	if !r.Finished.IsZero() {
		fmt.Fprintf(w, "finished:     %s\n", r.Finished.Local().Format(time.DateTime))
	}
	fmt.Fprintf(w, "bytes:        %d / %d\n", r.BytesWritten, r.TotalBytes)
	fmt.Fprintf(w, "bad sectors:  %d\n", r.BadSectors)
	if r.DigestA != "" {
		fmt.Fprintf(w, "digest:       %s\n", r.DigestA)
	}
	if r.DigestB != "" {
		fmt.Fprintf(w, "digest:       %s\n", r.DigestB)
	}
	if r.Error != "" {
		fmt.Fprintf(w, "error:        %s\n", r.Error)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

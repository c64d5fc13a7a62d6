package main

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/gonlopt/internal/store"
)

var (
	runsDataDir   string
	showTrace     bool
	keepLast      int
	olderThanDays int
	forceClean    bool
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Manage stored optimization runs",
	Long: `Manage the run store: list, inspect, delete and clean old runs.
Stored runs can seed new runs with 'gonlopt run --warm-start <id>'.`,
}

var listRunsCmd = &cobra.Command{
	Use:   "list",
	Short: "List all stored runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.NewFSStore(runsDataDir)
		if err != nil {
			return fmt.Errorf("failed to open run store: %w", err)
		}
		return listRuns(cmd.OutOrStdout(), st)
	},
}

var showRunCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a stored run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.NewFSStore(runsDataDir)
		if err != nil {
			return fmt.Errorf("failed to open run store: %w", err)
		}
		return showRun(cmd.OutOrStdout(), st, args[0], showTrace)
	},
}

var deleteRunCmd = &cobra.Command{
	Use:   "delete <run-id>",
	Short: "Delete a stored run and its trace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.NewFSStore(runsDataDir)
		if err != nil {
			return fmt.Errorf("failed to open run store: %w", err)
		}
		if err := st.DeleteRun(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", args[0])
		return nil
	},
}

var cleanRunsCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean old runs",
	Long: `Delete old runs based on a retention policy. Keep only the newest N
runs, delete runs older than N days, or both.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if keepLast == 0 && olderThanDays == 0 {
			return fmt.Errorf("must specify either --keep-last or --older-than")
		}
		st, err := store.NewFSStore(runsDataDir)
		if err != nil {
			return fmt.Errorf("failed to open run store: %w", err)
		}
		return cleanRuns(cmd.OutOrStdout(), cmd.InOrStdin(), st, keepLast, olderThanDays, forceClean)
	},
}

func init() {
	rootCmd.AddCommand(runsCmd)

	runsCmd.AddCommand(listRunsCmd)
	runsCmd.AddCommand(showRunCmd)
	runsCmd.AddCommand(deleteRunCmd)
	runsCmd.AddCommand(cleanRunsCmd)

	runsCmd.PersistentFlags().StringVar(&runsDataDir, "data-dir", "./data", "Base directory of the run store")

	showRunCmd.Flags().BoolVar(&showTrace, "trace", false, "Summarize the run's evaluation trace")

	cleanRunsCmd.Flags().IntVar(&keepLast, "keep-last", 0, "Keep only the newest N runs (0 = keep all)")
	cleanRunsCmd.Flags().IntVar(&olderThanDays, "older-than", 0, "Delete runs older than N days (0 = no age limit)")
	cleanRunsCmd.Flags().BoolVarP(&forceClean, "force", "f", false, "Skip confirmation prompt")
}

func listRuns(w io.Writer, st *store.FSStore) error {
	infos, err := st.ListRuns()
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if len(infos) == 0 {
		fmt.Fprintln(w, "No runs found.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tTIMESTAMP\tPROBLEM\tOPTIMIZER\tSTATUS\tVALUE\tEVALS\tSIZE")
	for _, info := range infos {
		sizeStr := "unknown"
		if size, err := getDirSize(filepath.Join(st.BaseDir(), "runs", info.ID)); err == nil {
			sizeStr = formatBytes(size)
		}

		optimizer := info.Optimizer
		if info.Algorithm != "" {
			optimizer += "/" + info.Algorithm
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%.6g\t%d\t%s\n",
			shortID(info.ID),
			info.Timestamp.Format("2006-01-02 15:04:05"),
			info.Problem,
			optimizer,
			info.Status,
			info.Value,
			info.Evaluations,
			sizeStr,
		)
	}
	tw.Flush()

	fmt.Fprintf(w, "\nTotal runs: %d\n", len(infos))
	return nil
}

func showRun(w io.Writer, st *store.FSStore, runID string, withTrace bool) error {
	rec, err := st.LoadRun(runID)
	if err != nil {
		return err
	}
	if err := printRecord(w, rec, false); err != nil {
		return err
	}
	fmt.Fprintf(w, "  Finished:    %s\n", rec.Timestamp.Format(time.RFC3339))

	if !withTrace {
		return nil
	}

	reader, err := store.NewTraceReader(st.BaseDir(), runID)
	if err != nil {
		fmt.Fprintln(w, "  Trace:       none")
		return nil
	}
	defer reader.Close()

	entries, err := reader.ReadAll()
	if err != nil {
		return fmt.Errorf("failed to read trace: %w", err)
	}
	if len(entries) == 0 {
		fmt.Fprintln(w, "  Trace:       empty")
		return nil
	}
	first, last := entries[0], entries[len(entries)-1]
	fmt.Fprintf(w, "  Trace:       %d entries, evaluations %d..%d, best %.6g -> %.6g\n",
		len(entries), first.Index, last.Index, first.Best, last.Best)
	return nil
}

func cleanRuns(w io.Writer, in io.Reader, st *store.FSStore, keepLast, olderThanDays int, force bool) error {
	infos, err := st.ListRuns()
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if len(infos) == 0 {
		fmt.Fprintln(w, "No runs to clean.")
		return nil
	}

	toDelete := selectRunsForDeletion(infos, keepLast, olderThanDays, time.Now())
	if len(toDelete) == 0 {
		fmt.Fprintln(w, "No runs match deletion criteria.")
		return nil
	}

	fmt.Fprintf(w, "Found %d run(s) to delete:\n", len(toDelete))
	for _, info := range toDelete {
		fmt.Fprintf(w, "  - %s (%s, %s)\n",
			shortID(info.ID),
			info.Problem,
			info.Timestamp.Format("2006-01-02 15:04:05"),
		)
	}

	if !force {
		fmt.Fprint(w, "\nProceed with deletion? [y/N]: ")
		response, _ := bufio.NewReader(in).ReadString('\n')
		response = strings.TrimSpace(response)
		if response != "y" && response != "Y" {
			fmt.Fprintln(w, "Aborted.")
			return nil
		}
	}

	deleted := 0
	failed := 0
	for _, info := range toDelete {
		if err := st.DeleteRun(info.ID); err != nil {
			slog.Error("Failed to delete run", "run_id", info.ID, "error", err)
			failed++
		} else {
			slog.Info("Deleted run", "run_id", info.ID)
			deleted++
		}
	}

	fmt.Fprintf(w, "\nDeleted %d run(s), %d failed.\n", deleted, failed)
	return nil
}

// selectRunsForDeletion applies the retention policy: runs older than
// olderThanDays and all but the newest keepLast runs are selected. The result
// is oldest first.
func selectRunsForDeletion(infos []store.RunInfo, keepLast, olderThanDays int, now time.Time) []store.RunInfo {
	sorted := make([]store.RunInfo, len(infos))
	copy(sorted, infos)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	cutoff := now.AddDate(0, 0, -olderThanDays)
	excess := 0
	if keepLast > 0 && len(sorted) > keepLast {
		excess = len(sorted) - keepLast
	}

	var toDelete []store.RunInfo
	for i, info := range sorted {
		tooOld := olderThanDays > 0 && info.Timestamp.Before(cutoff)
		if tooOld || i < excess {
			toDelete = append(toDelete, info)
		}
	}
	return toDelete
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12] + "..."
	}
	return id
}

// getDirSize calculates the total size of a directory
func getDirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}

// formatBytes formats bytes as human-readable string
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

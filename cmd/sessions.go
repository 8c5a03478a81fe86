package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/cwbudde/peakfit/internal/fit"
	"github.com/cwbudde/peakfit/internal/store"
	"github.com/spf13/cobra"
)

var (
	sessionsDataDir string
	keepLast        int
	olderThanDays   int
	forceClean      bool
	archiveOnly     bool
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage saved fit sessions",
	Long: `Manage saved fit sessions: list them, inspect one, and clean old
ones by retention policy. Sessions allow resuming fits and rebuilding
their curves and reports later.`,
}

var listSessionsCmd = &cobra.Command{
	Use:   "list",
	Short: "List all saved sessions",
	RunE:  runListSessions,
}

var showSessionCmd = &cobra.Command{
	Use:   "show [session-id]",
	Short: "Show one session in detail",
	Args:  cobra.ExactArgs(1),
	RunE:  runShowSession,
}

var cleanSessionsCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean old sessions",
	Long: `Delete old sessions based on retention policy, either keeping the
last N sessions or dropping sessions older than N days. With --archive
the matching sessions are kept and only their traces are compressed.`,
	RunE: runCleanSessions,
}

func init() {
	rootCmd.AddCommand(sessionsCmd)

	sessionsCmd.AddCommand(listSessionsCmd)
	sessionsCmd.AddCommand(showSessionCmd)
	sessionsCmd.AddCommand(cleanSessionsCmd)

	sessionsCmd.PersistentFlags().StringVar(&sessionsDataDir, "data-dir", "./data", "Session store directory")

	cleanSessionsCmd.Flags().IntVar(&keepLast, "keep-last", 0, "Keep only the last N sessions (0 = keep all)")
	cleanSessionsCmd.Flags().IntVar(&olderThanDays, "older-than", 0, "Select sessions older than N days (0 = no age limit)")
	cleanSessionsCmd.Flags().BoolVarP(&forceClean, "force", "f", false, "Skip confirmation prompt")
	cleanSessionsCmd.Flags().BoolVar(&archiveOnly, "archive", false, "Compress traces of the selected sessions instead of deleting them")
}

func runListSessions(cmd *cobra.Command, args []string) error {
	sessions, err := store.NewFSStore(sessionsDataDir)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}

	infos, err := sessions.ListSessions()
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	if len(infos) == 0 {
		fmt.Println("No sessions found.")
		return nil
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].UpdatedAt.After(infos[j].UpdatedAt)
	})

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tMODEL\tOPTIMIZER\tBEST COST\tR^2\tTRACE\tUPDATED\tSIZE")
	fmt.Fprintln(w, "-------\t-----\t---------\t---------\t---\t-----\t-------\t----")

	for _, info := range infos {
		size, err := getDirSize(filepath.Join(sessions.BaseDir(), "sessions", info.ID))
		sizeStr := "unknown"
		if err == nil {
			sizeStr = formatBytes(size)
		}

		traceState := "live"
		if info.Archived {
			traceState = "archived"
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%.6g\t%.4f\t%s\t%s\t%s\n",
			shortID(info.ID),
			info.Model,
			info.Optimizer,
			info.BestCost,
			info.RSquared,
			traceState,
			info.UpdatedAt.Format("2006-01-02 15:04:05"),
			sizeStr,
		)
	}

	w.Flush()

	fmt.Printf("\nTotal sessions: %d\n", len(infos))
	return nil
}

func runShowSession(cmd *cobra.Command, args []string) error {
	sessions, err := store.NewFSStore(sessionsDataDir)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}

	sess, err := sessions.LoadSession(args[0])
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	m, err := fit.ModelFromSession(sess)
	if err != nil {
		return fmt.Errorf("failed to rebuild model: %w", err)
	}

	fmt.Printf("Session: %s\n", sess.ID)
	fmt.Printf("Created: %s  Updated: %s\n",
		sess.CreatedAt.Format("2006-01-02 15:04:05"),
		sess.UpdatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Optimizer: %s  Data: %s (digest %016x)\n",
		sess.Config.Optimizer, sess.Config.DataPath, sess.DataDigest)
	fmt.Printf("Cost: %.6g -> %.6g  R^2: %.4f  Rounds: %d  Converged: %v\n\n",
		sess.InitialCost, sess.BestCost, sess.RSquared, sess.Rounds, sess.Converged)
	fmt.Println(m)
	return nil
}

func runCleanSessions(cmd *cobra.Command, args []string) error {
	if keepLast == 0 && olderThanDays == 0 {
		return fmt.Errorf("must specify either --keep-last or --older-than")
	}

	sessions, err := store.NewFSStore(sessionsDataDir)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}

	infos, err := sessions.ListSessions()
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	if len(infos) == 0 {
		fmt.Println("No sessions to clean.")
		return nil
	}

	selected := selectSessionsForCleanup(infos, keepLast, olderThanDays)
	if len(selected) == 0 {
		fmt.Println("No sessions match the criteria.")
		return nil
	}

	action := "delete"
	if archiveOnly {
		action = "archive the trace of"
	}
	fmt.Printf("Found %d session(s) to %s:\n", len(selected), action)
	for _, info := range selected {
		fmt.Printf("  - %s (%s, %s)\n",
			shortID(info.ID),
			info.Model,
			info.UpdatedAt.Format("2006-01-02 15:04:05"),
		)
	}

	if !forceClean {
		fmt.Print("\nProceed? [y/N]: ")
		var response string
		fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	done := 0
	failed := 0
	for _, info := range selected {
		var err error
		if archiveOnly {
			err = store.ArchiveTrace(sessions.BaseDir(), info.ID)
		} else {
			err = sessions.DeleteSession(info.ID)
		}
		if err != nil {
			slog.Error("cleanup failed", "session", info.ID, "error", err)
			failed++
		} else {
			done++
		}
	}

	if archiveOnly {
		fmt.Printf("\nArchived %d trace(s), %d failed.\n", done, failed)
	} else {
		fmt.Printf("\nDeleted %d session(s), %d failed.\n", done, failed)
	}
	return nil
}

// selectSessionsForCleanup applies the retention policy: sessions older
// than the age limit, plus the oldest beyond the keep-last count.
func selectSessionsForCleanup(infos []store.SessionInfo, keepLast, olderThanDays int) []store.SessionInfo {
	var selected []store.SessionInfo
	chosen := make(map[string]bool)

	if olderThanDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -olderThanDays)
		for _, info := range infos {
			if info.UpdatedAt.Before(cutoff) {
				selected = append(selected, info)
				chosen[info.ID] = true
			}
		}
	}

	if keepLast > 0 && len(infos) > keepLast {
		sorted := make([]store.SessionInfo, len(infos))
		copy(sorted, infos)
		sort.Slice(sorted, func(i, j int) bool {
			return sorted[i].UpdatedAt.Before(sorted[j].UpdatedAt)
		})
		for _, info := range sorted[:len(sorted)-keepLast] {
			if !chosen[info.ID] {
				selected = append(selected, info)
				chosen[info.ID] = true
			}
		}
	}

	return selected
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

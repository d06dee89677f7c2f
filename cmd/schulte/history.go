package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/schulte/internal/config"
	"github.com/verte-zerg/schulte/internal/export"
	"github.com/verte-zerg/schulte/internal/model"
	"github.com/verte-zerg/schulte/internal/stats"
	"github.com/verte-zerg/schulte/internal/statsui"
	"github.com/verte-zerg/schulte/internal/store"
)

var (
	statsSubject     string
	statsSince       string
	statsLast        int
	statsCurveWindow int
	statsCompare     string

	exportFormat  string
	exportOut     string
	exportSession string
)

func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&statsSubject, "subject", "", "subject id or name filter")
	cmd.Flags().StringVar(&statsSince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&statsLast, "last", 0, "limit to last N sessions")
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Browse test history",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
	addFilterFlags(cmd)
	cmd.Flags().IntVar(&statsCurveWindow, "curve-window", defaultCurveWindow, "moving average window for the ER trend")
	return cmd
}

func newSummaryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print a summary of test history",
		Args:  cobra.NoArgs,
		RunE:  runSummaryCmd,
	}
	addFilterFlags(cmd)
	cmd.Flags().IntVar(&statsCurveWindow, "curve-window", defaultCurveWindow, "moving average window for the ER trend")
	cmd.Flags().StringVar(&statsCompare, "compare", "", "comma-separated session ids to compare")
	return cmd
}

// buildStatsConfig merges the filter flags with the [stats] section of the config file.
func buildStatsConfig(ctx context.Context, cmd *cobra.Command, st *store.Store) (model.StatsConfig, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return model.StatsConfig{}, fmt.Errorf("failed to load config: %w", err)
	}
	if cmd.Flags().Lookup("curve-window") != nil {
		applyIntConfig(cmd, "curve-window", &statsCurveWindow, fileCfg.Stats.CurveWindow)
		if statsCurveWindow < 1 {
			return model.StatsConfig{}, fmt.Errorf("--curve-window must be >= 1")
		}
	}
	if statsLast < 0 {
		return model.StatsConfig{}, fmt.Errorf("--last must be >= 0")
	}

	cfg := model.StatsConfig{Last: statsLast, CurveWindow: statsCurveWindow}
	if statsSince != "" {
		parsed, err := time.ParseInLocation("2006-01-02", statsSince, time.Local)
		if err != nil {
			return model.StatsConfig{}, fmt.Errorf("invalid --since value: %w", err)
		}
		cfg.Since = &parsed
	}
	if statsSubject != "" {
		subj, err := resolveSubject(ctx, st, statsSubject)
		if err != nil {
			return model.StatsConfig{}, err
		}
		cfg.SubjectID = subj.ID
	}
	return cfg, nil
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	ctx := context.Background()
	cfg, err := buildStatsConfig(ctx, cmd, st)
	if err != nil {
		return err
	}
	subjects, err := st.ListSubjects(ctx)
	if err != nil {
		return fmt.Errorf("failed to list subjects: %w", err)
	}

	ui := statsui.NewModel(st, cfg, subjects)
	program := tea.NewProgram(ui, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run stats TUI: %w", err)
	}
	return nil
}

func runSummaryCmd(cmd *cobra.Command, _ []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	ctx := context.Background()
	cfg, err := buildStatsConfig(ctx, cmd, st)
	if err != nil {
		return err
	}
	report, err := stats.BuildReport(ctx, st, cfg)
	if err != nil {
		return fmt.Errorf("failed to build report: %w", err)
	}
	out := cmd.OutOrStdout()
	if err := stats.RenderSummary(out, report.Sessions, cfg.CurveWindow); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if statsCompare == "" {
		return nil
	}

	var records []model.SessionRecord
	for _, ref := range strings.Split(statsCompare, ",") {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			continue
		}
		rec, err := findSession(ctx, st, ref)
		if err != nil {
			return err
		}
		records = append(records, rec)
	}
	if err := stats.RenderComparison(out, records); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func newReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report <session-id>",
		Short: "Print one session in detail",
		Args:  cobra.ExactArgs(1),
		RunE:  runReportCmd,
	}
}

func runReportCmd(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	ctx := context.Background()
	rec, err := findSession(ctx, st, args[0])
	if err != nil {
		return err
	}
	if err := stats.RenderSessionDetail(cmd.OutOrStdout(), rec, subjectName(ctx, st, rec.SubjectID), 0, false); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export test history as CSV or YAML",
		Args:  cobra.NoArgs,
		RunE:  runExportCmd,
	}
	addFilterFlags(cmd)
	cmd.Flags().StringVar(&exportFormat, "format", "csv", "output format: csv, yaml or detail")
	cmd.Flags().StringVar(&exportOut, "out", "", "output file (default: stdout)")
	cmd.Flags().StringVar(&exportSession, "session", "", "session id (required for --format detail)")
	return cmd
}

func runExportCmd(cmd *cobra.Command, _ []string) (err error) {
	format := strings.ToLower(strings.TrimSpace(exportFormat))
	switch format {
	case "csv", "yaml", "detail":
	default:
		return fmt.Errorf("unknown --format %q (use csv, yaml or detail)", exportFormat)
	}
	if format == "detail" && exportSession == "" {
		return fmt.Errorf("--format detail requires --session")
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)
	ctx := context.Background()

	var records []model.SessionRecord
	if exportSession != "" {
		rec, err := findSession(ctx, st, exportSession)
		if err != nil {
			return err
		}
		records = []model.SessionRecord{rec}
	} else {
		cfg, err := buildStatsConfig(ctx, cmd, st)
		if err != nil {
			return err
		}
		report, err := stats.BuildReport(ctx, st, cfg)
		if err != nil {
			return fmt.Errorf("failed to build report: %w", err)
		}
		records = report.Sessions
	}

	var out io.Writer = cmd.OutOrStdout()
	if exportOut != "" {
		file, err := os.Create(exportOut)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", exportOut, err)
		}
		defer func() {
			if cerr := file.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("failed to close %s: %w", exportOut, cerr)
			}
		}()
		out = file
	}

	switch format {
	case "yaml":
		err = export.WriteYAML(out, records)
	case "detail":
		var subj model.Subject
		subj, err = st.GetSubject(ctx, records[0].SubjectID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("failed to load subject: %w", err)
		}
		err = export.WriteDetailedCSV(out, records[0], subj)
	default:
		var subjects map[string]model.Subject
		subjects, err = subjectIndex(ctx, st)
		if err != nil {
			return err
		}
		err = export.WriteSessionsCSV(out, records, subjects)
	}
	if err != nil {
		return err
	}
	if exportOut != "" {
		logErrf("Wrote %d sessions to %s\n", len(records), exportOut)
	}
	return nil
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a session",
		Args:  cobra.ExactArgs(1),
		RunE:  runDeleteCmd,
	}
}

func runDeleteCmd(_ *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	ctx := context.Background()
	rec, err := findSession(ctx, st, args[0])
	if err != nil {
		return err
	}
	if err := st.DeleteSession(ctx, rec.ID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	logErrf("Deleted session %s\n", rec.ID)
	return nil
}

// findSession loads a session by full id or by a unique id prefix.
func findSession(ctx context.Context, st *store.Store, ref string) (model.SessionRecord, error) {
	rec, err := st.GetSession(ctx, ref)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return model.SessionRecord{}, fmt.Errorf("failed to load session: %w", err)
	}
	all, err := st.ListSessions(ctx, model.StatsConfig{})
	if err != nil {
		return model.SessionRecord{}, fmt.Errorf("failed to list sessions: %w", err)
	}
	var matches []model.SessionRecord
	for _, r := range all {
		if strings.HasPrefix(r.ID, ref) {
			matches = append(matches, r)
		}
	}
	switch len(matches) {
	case 0:
		return model.SessionRecord{}, fmt.Errorf("session %q: %w", ref, store.ErrNotFound)
	case 1:
		return matches[0], nil
	default:
		return model.SessionRecord{}, fmt.Errorf("session prefix %q matches %d sessions", ref, len(matches))
	}
}

func subjectIndex(ctx context.Context, st *store.Store) (map[string]model.Subject, error) {
	subjects, err := st.ListSubjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list subjects: %w", err)
	}
	index := make(map[string]model.Subject, len(subjects))
	for _, s := range subjects {
		index[s.ID] = s
	}
	return index, nil
}

func subjectName(ctx context.Context, st *store.Store, id string) string {
	subj, err := st.GetSubject(ctx, id)
	if err != nil {
		return id
	}
	return subj.Name
}

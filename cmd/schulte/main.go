// Package main provides the CLI entrypoint for schulte.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/schulte/internal/config"
	"github.com/verte-zerg/schulte/internal/engine"
	"github.com/verte-zerg/schulte/internal/generator"
	"github.com/verte-zerg/schulte/internal/model"
	"github.com/verte-zerg/schulte/internal/store"
	"github.com/verte-zerg/schulte/internal/tui"
)

const defaultCurveWindow = 5

var (
	testSize     int
	testSequence string
	testShuffle  bool
	testSubject  string
	testSeed     int64
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	defaults := model.DefaultConfiguration()
	rootCmd := &cobra.Command{
		Use:           "schulte",
		Short:         "Schulte table attention test",
		SilenceUsage:  true,
		SilenceErrors: false,
		Args:          cobra.NoArgs,
		RunE:          runTestCmd,
	}

	rootCmd.Flags().IntVar(&testSize, "size", defaults.TableSize, "table side length (>= 3)")
	rootCmd.Flags().StringVar(&testSequence, "sequence", string(defaults.SequenceType), "number layout: ascending, descending or random")
	rootCmd.Flags().BoolVar(&testShuffle, "shuffle", defaults.ShuffleAfterEachStep, "reshuffle remaining numbers after each correct pick")
	rootCmd.Flags().StringVar(&testSubject, "subject", "", "subject id or name (default: anonymous)")
	rootCmd.Flags().Int64Var(&testSeed, "seed", 0, "random seed for reproducible tables")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newSummaryCmd())
	rootCmd.AddCommand(newReportCmd())
	rootCmd.AddCommand(newExportCmd())
	rootCmd.AddCommand(newSubjectsCmd())
	rootCmd.AddCommand(newDeleteCmd())

	return rootCmd
}

func runTestCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "subject", &testSubject, fileCfg.Test.Subject)
	applyInt64Config(cmd, "seed", &testSeed, fileCfg.Test.Seed)

	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	ctx := context.Background()
	subject, err := resolveSubject(ctx, st, testSubject)
	if err != nil {
		return err
	}

	cfg, err := resolveTestConfig(cmd, fileCfg.Test, subject)
	if err != nil {
		return err
	}

	gen := generator.New()
	if cmd.Flags().Changed("seed") || fileCfg.Test.Seed != nil {
		gen = generator.NewWithSeed(testSeed)
	}
	ui, err := tui.NewModel(engine.New(gen), st, cfg, subject)
	if err != nil {
		return err
	}
	program := tea.NewProgram(ui, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return ui.Err()
}

// resolveTestConfig layers the configuration: defaults, then the config
// file, then the subject's own configuration, then explicit flags.
func resolveTestConfig(cmd *cobra.Command, file config.TestConfig, subject model.Subject) (model.TestConfiguration, error) {
	cfg := file.Apply(model.DefaultConfiguration())
	if subject.Config != nil {
		cfg = *subject.Config
	}
	if cmd.Flags().Changed("size") {
		cfg.TableSize = testSize
	}
	if cmd.Flags().Changed("sequence") {
		seq, err := model.ParseSequenceType(testSequence)
		if err != nil {
			return model.TestConfiguration{}, fmt.Errorf("invalid --sequence: %w", err)
		}
		cfg.SequenceType = seq
	}
	if cmd.Flags().Changed("shuffle") {
		cfg.ShuffleAfterEachStep = testShuffle
	}
	if err := cfg.Validate(); err != nil {
		return model.TestConfiguration{}, err
	}
	return cfg, nil
}

// resolveSubject finds a subject by id or case-insensitive name. An empty
// reference selects the anonymous subject.
func resolveSubject(ctx context.Context, st *store.Store, ref string) (model.Subject, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return st.DefaultSubject(ctx)
	}
	subj, err := st.GetSubject(ctx, ref)
	if err == nil {
		return subj, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return model.Subject{}, fmt.Errorf("failed to load subject: %w", err)
	}
	subjects, err := st.ListSubjects(ctx)
	if err != nil {
		return model.Subject{}, fmt.Errorf("failed to list subjects: %w", err)
	}
	var matches []model.Subject
	for _, s := range subjects {
		if strings.EqualFold(s.Name, ref) {
			matches = append(matches, s)
		}
	}
	switch len(matches) {
	case 0:
		return model.Subject{}, fmt.Errorf("unknown subject %q (see: schulte subjects list)", ref)
	case 1:
		return matches[0], nil
	default:
		return model.Subject{}, fmt.Errorf("subject name %q is ambiguous; use the subject id", ref)
	}
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func defaultConfigTemplate() string {
	defaults := model.DefaultConfiguration()
	return fmt.Sprintf(`# schulte configuration
# Uncomment a value to enable it. CLI flags override config values,
# and a subject's own settings override the [test] table settings.

[test]
# table-size = %d           # Table side length (>= 3)
# sequence = %q    # ascending, descending or random
# shuffle = %t           # Reshuffle remaining numbers after each correct pick
# subject = ""              # Default subject id or name
# seed = 42                 # Fixed random seed

[stats]
# curve-window = %d         # Moving average window for the ER trend
`,
		defaults.TableSize,
		defaults.SequenceType,
		defaults.ShuffleAfterEachStep,
		defaultCurveWindow,
	)
}

func openStore() (*store.Store, error) {
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	return st, nil
}

func closeStore(st *store.Store) {
	if cerr := st.Close(); cerr != nil {
		logErrf("failed to close db: %v\n", cerr)
	}
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyInt64Config(cmd *cobra.Command, name string, target, value *int64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

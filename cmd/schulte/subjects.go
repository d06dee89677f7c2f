package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/schulte/internal/model"
	"github.com/verte-zerg/schulte/internal/store"
)

var (
	subjectNameFlag string
	subjectAge      int
	subjectGender   string
	subjectNotes    string
	subjectSize     int
	subjectSeq      string
	subjectShuffle  bool
	subjectCascade  bool
)

func newSubjectsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subjects",
		Short: "Manage test subjects",
	}
	cmd.AddCommand(newSubjectsListCmd())
	cmd.AddCommand(newSubjectsAddCmd())
	cmd.AddCommand(newSubjectsRemoveCmd())
	return cmd
}

func newSubjectsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List subjects",
		Args:  cobra.NoArgs,
		RunE:  runSubjectsListCmd,
	}
}

func runSubjectsListCmd(cmd *cobra.Command, _ []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	ctx := context.Background()
	subjects, err := st.ListSubjects(ctx)
	if err != nil {
		return fmt.Errorf("failed to list subjects: %w", err)
	}
	if len(subjects) == 0 {
		logErrln("No subjects yet. Add one with: schulte subjects add --name <name>")
		return nil
	}
	out := cmd.OutOrStdout()
	for _, s := range subjects {
		sessions, err := st.ListSessionsBySubject(ctx, s.ID)
		if err != nil {
			return fmt.Errorf("failed to list sessions: %w", err)
		}
		age := "-"
		if s.Age > 0 {
			age = strconv.Itoa(s.Age)
		}
		custom := "default"
		if s.Config != nil {
			custom = fmt.Sprintf("%dx%d %s", s.Config.TableSize, s.Config.TableSize, s.Config.SequenceType)
			if s.Config.ShuffleAfterEachStep {
				custom += " shuffle"
			}
		}
		if _, err := fmt.Fprintf(out, "%s  %-20s age %-3s %-8s sessions %-4d %s\n",
			s.ID, s.Name, age, s.Gender, len(sessions), custom); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func newSubjectsAddCmd() *cobra.Command {
	defaults := model.DefaultConfiguration()
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a subject",
		Args:  cobra.NoArgs,
		RunE:  runSubjectsAddCmd,
	}
	cmd.Flags().StringVar(&subjectNameFlag, "name", "", "subject name")
	cmd.Flags().IntVar(&subjectAge, "age", 0, "subject age")
	cmd.Flags().StringVar(&subjectGender, "gender", "", "subject gender")
	cmd.Flags().StringVar(&subjectNotes, "notes", "", "free-form notes")
	cmd.Flags().IntVar(&subjectSize, "size", defaults.TableSize, "custom table side length")
	cmd.Flags().StringVar(&subjectSeq, "sequence", string(defaults.SequenceType), "custom number layout")
	cmd.Flags().BoolVar(&subjectShuffle, "shuffle", defaults.ShuffleAfterEachStep, "custom shuffle setting")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func runSubjectsAddCmd(cmd *cobra.Command, _ []string) error {
	if subjectAge < 0 {
		return fmt.Errorf("--age must be >= 0")
	}
	subj := model.Subject{
		Name:   subjectNameFlag,
		Age:    subjectAge,
		Gender: subjectGender,
		Notes:  subjectNotes,
	}
	flags := cmd.Flags()
	if flags.Changed("size") || flags.Changed("sequence") || flags.Changed("shuffle") {
		seq, err := model.ParseSequenceType(subjectSeq)
		if err != nil {
			return fmt.Errorf("invalid --sequence: %w", err)
		}
		cfg := model.TestConfiguration{
			TableSize:            subjectSize,
			SequenceType:         seq,
			ShuffleAfterEachStep: subjectShuffle,
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		subj.Config = &cfg
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	saved, err := st.SaveSubject(context.Background(), subj)
	if err != nil {
		return fmt.Errorf("failed to save subject: %w", err)
	}
	if _, err := fmt.Fprintln(cmd.OutOrStdout(), saved.ID); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func newSubjectsRemoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove <subject-id-or-name>",
		Short: "Remove a subject",
		Args:  cobra.ExactArgs(1),
		RunE:  runSubjectsRemoveCmd,
	}
	cmd.Flags().BoolVar(&subjectCascade, "cascade", false, "also delete the subject's sessions")
	return cmd
}

func runSubjectsRemoveCmd(_ *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	ctx := context.Background()
	subj, err := resolveSubject(ctx, st, args[0])
	if err != nil {
		return err
	}
	if err := st.DeleteSubject(ctx, subj.ID, subjectCascade); err != nil {
		if errors.Is(err, store.ErrSubjectHasSessions) {
			return fmt.Errorf("%w (use --cascade to delete them)", err)
		}
		return fmt.Errorf("failed to remove subject: %w", err)
	}
	logErrf("Removed subject %s (%s)\n", subj.Name, subj.ID)
	return nil
}

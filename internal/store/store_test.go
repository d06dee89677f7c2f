package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/verte-zerg/schulte/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "nested", "schulte.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() {
		if err := st.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	})
	return st
}

func sampleSession(id, subjectID string, started time.Time) model.SessionRecord {
	return model.SessionRecord{
		ID:          id,
		SubjectID:   subjectID,
		StartedAt:   started,
		EndedAt:     started.Add(22 * time.Second),
		Config:      model.DefaultConfiguration(),
		Durations:   []float64{5, 4, 3, 6, 5},
		ErrorCounts: []int{0, 1, 0, 2, 0},
		Result: model.TestResult{
			EfficiencyRate:   4.6,
			WorkabilityIndex: 5.0 / 4.6,
			StabilityIndex:   5.5 / 4.6,
			TotalErrors:      3,
			TotalTime:        23,
		},
	}
}

func TestSaveAndGetSession(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rec := sampleSession("s1", "subj", started)

	if err := st.SaveSession(ctx, rec); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}
	got, err := st.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if !got.StartedAt.Equal(started) || !got.EndedAt.Equal(rec.EndedAt) {
		t.Fatalf("unexpected timestamps: %v %v", got.StartedAt, got.EndedAt)
	}
	if got.Config != rec.Config || got.Result != rec.Result {
		t.Fatalf("unexpected session: %+v", got)
	}
	if len(got.Durations) != 5 || got.Durations[3] != 6 || got.ErrorCounts[3] != 2 {
		t.Fatalf("unexpected tables: %v %v", got.Durations, got.ErrorCounts)
	}
}

func TestSaveSessionRejectsMismatchedTables(t *testing.T) {
	st := openTestStore(t)
	rec := sampleSession("s1", "subj", time.Now())
	rec.ErrorCounts = rec.ErrorCounts[:3]
	if err := st.SaveSession(context.Background(), rec); err == nil {
		t.Fatalf("expected error for mismatched tables")
	}
}

func TestGetSessionNotFound(t *testing.T) {
	st := openTestStore(t)
	_, err := st.GetSession(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListSessionsFilters(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, subj := range []string{"a", "b", "a", "a"} {
		rec := sampleSession(string(rune('1'+i)), subj, base.Add(time.Duration(i)*time.Hour))
		if err := st.SaveSession(ctx, rec); err != nil {
			t.Fatalf("SaveSession failed: %v", err)
		}
	}

	all, err := st.ListSessions(ctx, model.StatsConfig{})
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(all) != 4 || all[0].ID != "1" || all[3].ID != "4" {
		t.Fatalf("unexpected order: %+v", all)
	}
	for _, rec := range all {
		if len(rec.Durations) != 5 {
			t.Fatalf("session %s missing tables", rec.ID)
		}
	}

	since := base.Add(90 * time.Minute)
	filtered, err := st.ListSessions(ctx, model.StatsConfig{SubjectID: "a", Since: &since})
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(filtered) != 2 || filtered[0].ID != "3" || filtered[1].ID != "4" {
		t.Fatalf("unexpected filtered sessions: %+v", filtered)
	}

	bySubject, err := st.ListSessionsBySubject(ctx, "b")
	if err != nil {
		t.Fatalf("ListSessionsBySubject failed: %v", err)
	}
	if len(bySubject) != 1 || bySubject[0].ID != "2" {
		t.Fatalf("unexpected subject sessions: %+v", bySubject)
	}
}

func TestDeleteSession(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	if err := st.SaveSession(ctx, sampleSession("s1", "subj", time.Now())); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}
	if err := st.DeleteSession(ctx, "s1"); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	if _, err := st.GetSession(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected session to be gone, got %v", err)
	}
	if err := st.DeleteSession(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
	// Re-saving the same id must not collide with leftover table rows.
	if err := st.SaveSession(ctx, sampleSession("s1", "subj", time.Now())); err != nil {
		t.Fatalf("SaveSession after delete failed: %v", err)
	}
}

func TestSubjectRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	cfg := model.TestConfiguration{TableSize: 6, SequenceType: model.SequenceDescending, ShuffleAfterEachStep: true}
	saved, err := st.SaveSubject(ctx, model.Subject{Name: "Ann", Age: 31, Gender: "f", Config: &cfg})
	if err != nil {
		t.Fatalf("SaveSubject failed: %v", err)
	}
	if saved.ID == "" || saved.RegisteredAt.IsZero() {
		t.Fatalf("expected id and registration time, got %+v", saved)
	}

	got, err := st.GetSubject(ctx, saved.ID)
	if err != nil {
		t.Fatalf("GetSubject failed: %v", err)
	}
	if got.Name != "Ann" || got.Age != 31 || got.Config == nil || *got.Config != cfg {
		t.Fatalf("unexpected subject: %+v", got)
	}

	got.Notes = "prefers mornings"
	got.Config = nil
	if _, err := st.SaveSubject(ctx, got); err != nil {
		t.Fatalf("SaveSubject update failed: %v", err)
	}
	updated, err := st.GetSubject(ctx, saved.ID)
	if err != nil {
		t.Fatalf("GetSubject failed: %v", err)
	}
	if updated.Notes != "prefers mornings" || updated.Config != nil {
		t.Fatalf("update not applied: %+v", updated)
	}

	if _, err := st.SaveSubject(ctx, model.Subject{Name: "  "}); err == nil {
		t.Fatalf("expected error for blank name")
	}
	if _, err := st.GetSubject(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListSubjectsSortedByName(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	for _, name := range []string{"Zoe", "Bob", "Kim"} {
		if _, err := st.SaveSubject(ctx, model.Subject{Name: name}); err != nil {
			t.Fatalf("SaveSubject failed: %v", err)
		}
	}
	subjects, err := st.ListSubjects(ctx)
	if err != nil {
		t.Fatalf("ListSubjects failed: %v", err)
	}
	if len(subjects) != 3 || subjects[0].Name != "Bob" || subjects[2].Name != "Zoe" {
		t.Fatalf("unexpected subjects: %+v", subjects)
	}
}

func TestDeleteSubject(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	subj, err := st.SaveSubject(ctx, model.Subject{Name: "Ann"})
	if err != nil {
		t.Fatalf("SaveSubject failed: %v", err)
	}
	if err := st.SaveSession(ctx, sampleSession("s1", subj.ID, time.Now())); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	if err := st.DeleteSubject(ctx, subj.ID, false); !errors.Is(err, ErrSubjectHasSessions) {
		t.Fatalf("expected ErrSubjectHasSessions, got %v", err)
	}
	if _, err := st.GetSubject(ctx, subj.ID); err != nil {
		t.Fatalf("subject should survive refused delete: %v", err)
	}

	if err := st.DeleteSubject(ctx, subj.ID, true); err != nil {
		t.Fatalf("cascade delete failed: %v", err)
	}
	if _, err := st.GetSession(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected session removed, got %v", err)
	}
	if err := st.DeleteSubject(ctx, subj.ID, true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDefaultSubjectIsStable(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	first, err := st.DefaultSubject(ctx)
	if err != nil {
		t.Fatalf("DefaultSubject failed: %v", err)
	}
	second, err := st.DefaultSubject(ctx)
	if err != nil {
		t.Fatalf("DefaultSubject failed: %v", err)
	}
	if first.ID == "" || first.ID != second.ID || first.Name != AnonymousSubjectName {
		t.Fatalf("unexpected default subjects: %+v %+v", first, second)
	}
}

package stats

import (
	"context"

	"github.com/verte-zerg/schulte/internal/model"
)

// SessionLister loads sessions matching the stats filters.
type SessionLister interface {
	ListSessions(ctx context.Context, cfg model.StatsConfig) ([]model.SessionRecord, error)
}

// Report contains precomputed data for stats rendering.
type Report struct {
	Sessions      []model.SessionRecord
	Summary       Summary
	Trend         []float64
	SubjectCounts map[string]int
}

// BuildReport loads and prepares data for stats rendering.
func BuildReport(ctx context.Context, lister SessionLister, cfg model.StatsConfig) (Report, error) {
	sessions, err := lister.ListSessions(ctx, cfg)
	if err != nil {
		return Report{}, err
	}
	if cfg.Last > 0 && len(sessions) > cfg.Last {
		sessions = sessions[len(sessions)-cfg.Last:]
	}

	counts := make(map[string]int)
	for _, s := range sessions {
		counts[s.SubjectID]++
	}
	return Report{
		Sessions:      sessions,
		Summary:       Summarize(sessions),
		Trend:         ERTrend(sessions, cfg.CurveWindow),
		SubjectCounts: counts,
	}, nil
}

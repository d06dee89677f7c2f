// Package scoring converts table timings into Schulte test indices.
package scoring

import (
	"fmt"
	"math"

	"github.com/verte-zerg/schulte/internal/model"
)

// ComputeResults derives ER, BP and IN from five table durations in seconds.
//
// ER is the mean duration, BP is the first table's duration over ER and IN is
// the fourth table's duration over ER.
func ComputeResults(durations []float64, errorCounts []int) (model.TestResult, error) {
	if len(durations) != model.TableCount || len(errorCounts) != model.TableCount {
		return model.TestResult{}, fmt.Errorf("%w: exactly five timing values required (got %d durations, %d error counts)",
			model.ErrInvalidArgument, len(durations), len(errorCounts))
	}
	var totalTime float64
	for i, d := range durations {
		if math.IsNaN(d) || math.IsInf(d, 0) || d <= 0 {
			return model.TestResult{}, fmt.Errorf("%w: duration of table %d must be > 0, got %v", model.ErrInvalidArgument, i+1, d)
		}
		totalTime += d
	}
	totalErrors := 0
	for i, e := range errorCounts {
		if e < 0 {
			return model.TestResult{}, fmt.Errorf("%w: error count of table %d must be >= 0, got %d", model.ErrInvalidArgument, i+1, e)
		}
		totalErrors += e
	}

	er := totalTime / float64(model.TableCount)
	return model.TestResult{
		EfficiencyRate:   er,
		WorkabilityIndex: durations[0] / er,
		StabilityIndex:   durations[3] / er,
		TotalErrors:      totalErrors,
		TotalTime:        totalTime,
	}, nil
}

// Interpretation is a qualitative reading of a TestResult.
type Interpretation struct {
	GoodWorkability bool
	HighStability   bool
}

// Interpret reads BP and IN against the 1.0 threshold.
func Interpret(r model.TestResult) Interpretation {
	return Interpretation{
		GoodWorkability: r.WorkabilityIndex < 1.0,
		HighStability:   r.StabilityIndex < 1.0,
	}
}

// String renders the interpretation as two sentences.
func (i Interpretation) String() string {
	workability := "Warm-up needs training."
	if i.GoodWorkability {
		workability = "Good warm-up."
	}
	stability := "Attention stability decreased toward the end of the test."
	if i.HighStability {
		stability = "High attention stability."
	}
	return workability + " " + stability
}

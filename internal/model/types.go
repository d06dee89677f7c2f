// Package model defines shared data structures.
package model

import (
	"fmt"
	"strings"
	"time"
)

// TableCount is the number of tables in one test session.
const TableCount = 5

// MinTableSize is the smallest supported grid side.
const MinTableSize = 3

// SequenceType defines the order in which numbers are laid out on a table.
type SequenceType string

// Supported sequence types.
const (
	SequenceAscending  SequenceType = "ascending"
	SequenceDescending SequenceType = "descending"
	SequenceRandom     SequenceType = "random"
)

// ParseSequenceType converts user input into a SequenceType.
func ParseSequenceType(s string) (SequenceType, error) {
	switch SequenceType(strings.ToLower(strings.TrimSpace(s))) {
	case SequenceAscending, "asc":
		return SequenceAscending, nil
	case SequenceDescending, "desc":
		return SequenceDescending, nil
	case SequenceRandom, "rand":
		return SequenceRandom, nil
	default:
		return "", fmt.Errorf("%w: unknown sequence type %q", ErrInvalidConfiguration, s)
	}
}

// Valid reports whether s is one of the supported sequence types.
func (s SequenceType) Valid() bool {
	switch s {
	case SequenceAscending, SequenceDescending, SequenceRandom:
		return true
	default:
		return false
	}
}

// TestConfiguration defines the settings of one test session.
type TestConfiguration struct {
	TableSize            int
	SequenceType         SequenceType
	ShuffleAfterEachStep bool
}

// DefaultConfiguration returns the configuration used when nothing else is set.
func DefaultConfiguration() TestConfiguration {
	return TestConfiguration{
		TableSize:            5,
		SequenceType:         SequenceAscending,
		ShuffleAfterEachStep: false,
	}
}

// Cells returns the number of cells on one table.
func (c TestConfiguration) Cells() int {
	return c.TableSize * c.TableSize
}

// Validate checks the configuration before a session starts.
func (c TestConfiguration) Validate() error {
	if c.TableSize < MinTableSize {
		return fmt.Errorf("%w: table size must be >= %d, got %d", ErrInvalidConfiguration, MinTableSize, c.TableSize)
	}
	if !c.SequenceType.Valid() {
		return fmt.Errorf("%w: unknown sequence type %q", ErrInvalidConfiguration, c.SequenceType)
	}
	return nil
}

// TestResult holds the indices derived from five table timings.
type TestResult struct {
	EfficiencyRate   float64 // ER
	WorkabilityIndex float64 // BP
	StabilityIndex   float64 // IN
	TotalErrors      int
	TotalTime        float64
}

// SessionRecord captures a completed test session.
type SessionRecord struct {
	ID          string
	SubjectID   string
	StartedAt   time.Time
	EndedAt     time.Time
	Config      TestConfiguration
	Durations   []float64
	ErrorCounts []int
	Result      TestResult
}

// Subject describes a person taking the test.
type Subject struct {
	ID           string
	Name         string
	Age          int
	Gender       string
	Notes        string
	RegisteredAt time.Time
	// Config overrides the default test configuration for this subject when set.
	Config *TestConfiguration
}

// StatsConfig defines filters and options for stats output.
type StatsConfig struct {
	SubjectID   string
	Since       *time.Time
	Last        int
	CurveWindow int
}

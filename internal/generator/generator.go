// Package generator builds Schulte table sequences.
package generator

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/verte-zerg/schulte/internal/model"
)

// Generator produces table layouts from its own random source.
type Generator struct {
	rnd *rand.Rand
}

// New returns a Generator seeded with the current time.
func New() *Generator {
	return NewWithSeed(time.Now().UnixNano())
}

// NewWithSeed returns a Generator with a deterministic random source.
func NewWithSeed(seed int64) *Generator {
	return &Generator{rnd: rand.New(rand.NewSource(seed))}
}

// Generate returns the size² numbers 1..size² in the requested order.
func (g *Generator) Generate(size int, seq model.SequenceType) ([]int, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: table size must be >= 1, got %d", model.ErrInvalidConfiguration, size)
	}
	if !seq.Valid() {
		return nil, fmt.Errorf("%w: unknown sequence type %q", model.ErrInvalidConfiguration, seq)
	}
	total := size * size
	numbers := make([]int, total)
	for i := range numbers {
		numbers[i] = i + 1
	}
	switch seq {
	case model.SequenceDescending:
		for i, j := 0, total-1; i < j; i, j = i+1, j-1 {
			numbers[i], numbers[j] = numbers[j], numbers[i]
		}
	case model.SequenceRandom:
		g.shuffle(numbers)
	}
	return numbers, nil
}

// ReshuffleRemaining shuffles the numbers greater than lastFound and places them
// ahead of the found numbers, which keep their relative order.
func (g *Generator) ReshuffleRemaining(current []int, lastFound int) ([]int, error) {
	if len(current) == 0 {
		return nil, fmt.Errorf("%w: sequence is empty", model.ErrInvalidArgument)
	}
	minVal, maxVal := current[0], current[0]
	for _, n := range current[1:] {
		if n < minVal {
			minVal = n
		}
		if n > maxVal {
			maxVal = n
		}
	}
	if lastFound < minVal || lastFound > maxVal {
		return nil, fmt.Errorf("%w: last found number %d outside %d..%d", model.ErrInvalidArgument, lastFound, minVal, maxVal)
	}

	remaining := make([]int, 0, len(current))
	found := make([]int, 0, len(current))
	for _, n := range current {
		if n > lastFound {
			remaining = append(remaining, n)
		} else {
			found = append(found, n)
		}
	}
	g.shuffle(remaining)
	return append(remaining, found...), nil
}

// shuffle is a Fisher-Yates permutation.
func (g *Generator) shuffle(values []int) {
	for i := len(values) - 1; i > 0; i-- {
		j := g.rnd.Intn(i + 1)
		values[i], values[j] = values[j], values[i]
	}
}

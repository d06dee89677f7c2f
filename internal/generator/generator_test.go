package generator

import (
	"errors"
	"fmt"
	"sort"
	"testing"

	"github.com/verte-zerg/schulte/internal/model"
)

func TestGenerateRandomIsPermutation(t *testing.T) {
	gen := NewWithSeed(42)
	for size := 3; size <= 9; size++ {
		numbers, err := gen.Generate(size, model.SequenceRandom)
		if err != nil {
			t.Fatalf("Generate(%d) failed: %v", size, err)
		}
		assertPermutation(t, numbers, size*size)
	}
}

func TestGenerateOrderedIsDeterministic(t *testing.T) {
	gen := NewWithSeed(1)
	for i := 0; i < 3; i++ {
		asc, err := gen.Generate(3, model.SequenceAscending)
		if err != nil {
			t.Fatalf("ascending failed: %v", err)
		}
		desc, err := gen.Generate(3, model.SequenceDescending)
		if err != nil {
			t.Fatalf("descending failed: %v", err)
		}
		for j := 0; j < 9; j++ {
			if asc[j] != j+1 {
				t.Fatalf("ascending[%d] = %d, want %d", j, asc[j], j+1)
			}
			if desc[j] != 9-j {
				t.Fatalf("descending[%d] = %d, want %d", j, desc[j], 9-j)
			}
		}
	}
}

func TestGenerateRejectsBadInput(t *testing.T) {
	gen := NewWithSeed(1)
	if _, err := gen.Generate(0, model.SequenceAscending); !errors.Is(err, model.ErrInvalidConfiguration) {
		t.Fatalf("expected invalid configuration for size 0, got %v", err)
	}
	if _, err := gen.Generate(3, "diagonal"); !errors.Is(err, model.ErrInvalidConfiguration) {
		t.Fatalf("expected invalid configuration for sequence, got %v", err)
	}
}

func TestGenerateSeededIsReproducible(t *testing.T) {
	a, err := NewWithSeed(7).Generate(5, model.SequenceRandom)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	b, err := NewWithSeed(7).Generate(5, model.SequenceRandom)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if fmt.Sprint(a) != fmt.Sprint(b) {
		t.Fatalf("expected identical tables for identical seeds: %v vs %v", a, b)
	}
}

func TestReshuffleRemainingKeepsFoundOrder(t *testing.T) {
	gen := NewWithSeed(3)
	current := []int{7, 2, 9, 1, 5, 3, 8, 4, 6}
	lastFound := 4

	for i := 0; i < 50; i++ {
		next, err := gen.ReshuffleRemaining(current, lastFound)
		if err != nil {
			t.Fatalf("ReshuffleRemaining failed: %v", err)
		}
		assertPermutation(t, next, 9)

		// Remaining values come first, found values follow in original relative order.
		for j := 0; j < 5; j++ {
			if next[j] <= lastFound {
				t.Fatalf("expected remaining value at %d, got %d in %v", j, next[j], next)
			}
		}
		wantFound := []int{2, 1, 3, 4}
		for j, want := range wantFound {
			if next[5+j] != want {
				t.Fatalf("found values reordered: %v", next)
			}
		}
	}
}

func TestReshuffleRemainingDoesNotMutateInput(t *testing.T) {
	gen := NewWithSeed(5)
	current := []int{1, 2, 3, 4, 5, 6, 7, 8, 9}
	if _, err := gen.ReshuffleRemaining(current, 2); err != nil {
		t.Fatalf("ReshuffleRemaining failed: %v", err)
	}
	for i, n := range current {
		if n != i+1 {
			t.Fatalf("input mutated: %v", current)
		}
	}
}

func TestReshuffleRemainingIsUniform(t *testing.T) {
	gen := NewWithSeed(11)
	counts := map[string]int{}
	const runs = 6000
	for i := 0; i < runs; i++ {
		next, err := gen.ReshuffleRemaining([]int{1, 2, 3, 4}, 1)
		if err != nil {
			t.Fatalf("ReshuffleRemaining failed: %v", err)
		}
		counts[fmt.Sprint(next[:3])]++
	}
	if len(counts) != 6 {
		t.Fatalf("expected all 6 orderings, got %d: %v", len(counts), counts)
	}
	for key, c := range counts {
		if c < 800 || c > 1200 {
			t.Fatalf("ordering %s appeared %d times out of %d", key, c, runs)
		}
	}
}

func TestReshuffleRemainingRejectsOutOfRange(t *testing.T) {
	gen := NewWithSeed(1)
	current := []int{1, 2, 3, 4, 5, 6, 7, 8, 9}
	for _, last := range []int{-1, 0, 10} {
		if _, err := gen.ReshuffleRemaining(current, last); !errors.Is(err, model.ErrInvalidArgument) {
			t.Fatalf("expected invalid argument for %d, got %v", last, err)
		}
	}
	if _, err := gen.ReshuffleRemaining(nil, 1); !errors.Is(err, model.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument for empty sequence, got %v", err)
	}
}

func assertPermutation(t *testing.T, numbers []int, total int) {
	t.Helper()
	if len(numbers) != total {
		t.Fatalf("expected %d numbers, got %d", total, len(numbers))
	}
	sorted := append([]int(nil), numbers...)
	sort.Ints(sorted)
	for i, n := range sorted {
		if n != i+1 {
			t.Fatalf("not a permutation of 1..%d: %v", total, numbers)
		}
	}
}

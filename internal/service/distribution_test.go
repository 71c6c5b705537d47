package service

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func TestFisherYatesShuffleIsPermutation(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for _, n := range []int{0, 1, 2, 7, 100} {
		items := seq(n)
		FisherYatesShuffle(items, rng)
		require.Len(t, items, n)

		sorted := append([]int(nil), items...)
		sort.Ints(sorted)
		assert.Equal(t, seq(n), sorted)
	}
}

type fixedShuffler struct{}

func (fixedShuffler) Intn(n int) int { return 0 }

func TestFisherYatesShuffleSwapsFromTheEnd(t *testing.T) {
	items := []string{"a", "b", "c"}
	FisherYatesShuffle(items, fixedShuffler{})
	// i=2 swaps with 0 -> c b a, i=1 swaps with 0 -> b c a
	assert.Equal(t, []string{"b", "c", "a"}, items)
}

func finalCounts(buckets []Bucket, added map[string]int) map[string]int {
	out := make(map[string]int, len(buckets))
	for _, b := range buckets {
		out[b.ID] = b.Count + added[b.ID]
	}
	return out
}

func TestAllocateFavoursEmptyBuckets(t *testing.T) {
	buckets := []Bucket{{ID: "a", Label: "A"}, {ID: "b", Label: "B"}, {ID: "c", Label: "C", Count: 5}}

	alloc := Allocate(seq(10), buckets, rand.New(rand.NewSource(7)))
	require.Len(t, alloc.Placements, 10)
	assert.Empty(t, alloc.Unassigned)

	added := alloc.Added()
	assert.Equal(t, 5, added["a"])
	assert.Equal(t, 5, added["b"])
	assert.Zero(t, added["c"])
	assert.Equal(t, map[string]int{"a": 5, "b": 5, "c": 5}, alloc.Targets)
}

func TestAllocateSpreadsRemainderAcrossLeastLoaded(t *testing.T) {
	buckets := []Bucket{{ID: "a", Count: 2}, {ID: "b", Count: 0}, {ID: "c", Count: 1}}

	alloc := Allocate(seq(4), buckets, rand.New(rand.NewSource(1)))
	counts := finalCounts(buckets, alloc.Added())

	// total 7 over 3 buckets: target 2 each, the remainder goes to b
	assert.Equal(t, map[string]int{"a": 2, "b": 3, "c": 2}, counts)
	assert.Equal(t, map[string]int{"a": 2, "b": 3, "c": 2}, alloc.Targets)
}

func TestAllocateKeepsImbalanceWithinOne(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	for trial := 0; trial < 200; trial++ {
		k := rng.Intn(5) + 1
		buckets := make([]Bucket, k)
		for i := range buckets {
			buckets[i] = Bucket{ID: string(rune('a' + i)), Count: rng.Intn(6)}
		}
		n := rng.Intn(30) + 1

		alloc := Allocate(seq(n), buckets, rng)
		require.Len(t, alloc.Placements, n)
		require.Empty(t, alloc.Unassigned)

		counts := finalCounts(buckets, alloc.Added())
		assert.Equalf(t, alloc.Targets, counts, "trial %d buckets %v", trial, buckets)

		lo, hi := -1, -1
		for _, b := range buckets {
			if alloc.Targets[b.ID] <= b.Count {
				continue
			}
			c := counts[b.ID]
			if lo == -1 || c < lo {
				lo = c
			}
			if c > hi {
				hi = c
			}
		}
		if lo != -1 {
			assert.LessOrEqualf(t, hi-lo, 1, "trial %d buckets %v", trial, buckets)
		}
	}
}

func TestAllocateIgnoresOverloadedBuckets(t *testing.T) {
	buckets := []Bucket{{ID: "a", Count: 9}, {ID: "b"}, {ID: "c"}}

	alloc := Allocate(seq(3), buckets, fixedShuffler{})
	added := alloc.Added()
	assert.Zero(t, added["a"])
	assert.Equal(t, 2, added["b"])
	assert.Equal(t, 1, added["c"])
	assert.Equal(t, map[string]int{"a": 9, "b": 2, "c": 1}, alloc.Targets)
}

func TestAllocatePlacesEveryEntityIntoFullBuckets(t *testing.T) {
	buckets := []Bucket{{ID: "a", Count: 10}, {ID: "b", Count: 10}}

	alloc := Allocate(seq(1), buckets, fixedShuffler{})
	require.Len(t, alloc.Placements, 1)
	assert.Empty(t, alloc.Unassigned)
}

func TestAllocateWithoutBuckets(t *testing.T) {
	alloc := Allocate([]string{"x", "y"}, nil, nil)
	assert.Empty(t, alloc.Placements)
	assert.Equal(t, []string{"x", "y"}, alloc.Unassigned)
	assert.Equal(t, ReasonNoBuckets, alloc.Reason)
}

func TestAllocateWithoutEntities(t *testing.T) {
	alloc := Allocate([]string{}, []Bucket{{ID: "a"}}, nil)
	assert.Empty(t, alloc.Placements)
	assert.Empty(t, alloc.Unassigned)
	assert.Empty(t, alloc.Reason)
}

func TestAllocateDoesNotReorderInput(t *testing.T) {
	input := []int{1, 2, 3, 4, 5}
	Allocate(input, []Bucket{{ID: "a"}, {ID: "b"}}, rand.New(rand.NewSource(3)))
	assert.Equal(t, []int{1, 2, 3, 4, 5}, input)
}

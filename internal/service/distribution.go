package service

import (
	"math/rand"
	"sort"
)

// ReasonNoBuckets is reported for every entity when nothing can receive it.
const ReasonNoBuckets = "no destination buckets available for this area/house"

// Shuffler is the randomness needed by FisherYatesShuffle. *rand.Rand
// satisfies it.
type Shuffler interface {
	Intn(n int) int
}

type globalShuffler struct{}

func (globalShuffler) Intn(n int) int { return rand.Intn(n) }

// FisherYatesShuffle permutes items in place uniformly at random.
func FisherYatesShuffle[T any](items []T, rng Shuffler) {
	if rng == nil {
		rng = globalShuffler{}
	}
	for i := len(items) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		items[i], items[j] = items[j], items[i]
	}
}

// Bucket is a destination with its occupancy at allocation start.
type Bucket struct {
	ID    string
	Label string
	Count int
}

// Placement maps one entity onto a bucket.
type Placement[T any] struct {
	Item   T
	Bucket Bucket
}

// Allocation is the outcome of Allocate.
type Allocation[T any] struct {
	Placements []Placement[T]
	Unassigned []T
	Reason     string
	Targets    map[string]int
}

// Added counts the placements per bucket ID.
func (a Allocation[T]) Added() map[string]int {
	added := make(map[string]int, len(a.Targets))
	for _, placement := range a.Placements {
		added[placement.Bucket.ID]++
	}
	return added
}

// Allocate spreads entities over buckets so that final occupancy is as even
// as the starting counts allow. The entity order is shuffled first so the
// input order carries no bias. The input slices are not modified.
func Allocate[T any](entities []T, buckets []Bucket, rng Shuffler) Allocation[T] {
	if len(entities) == 0 {
		return Allocation[T]{Targets: map[string]int{}}
	}
	if len(buckets) == 0 {
		unassigned := make([]T, len(entities))
		copy(unassigned, entities)
		return Allocation[T]{Unassigned: unassigned, Reason: ReasonNoBuckets, Targets: map[string]int{}}
	}

	shuffled := make([]T, len(entities))
	copy(shuffled, entities)
	FisherYatesShuffle(shuffled, rng)

	byCount := make([]Bucket, len(buckets))
	copy(byCount, buckets)
	sort.SliceStable(byCount, func(i, j int) bool { return byCount[i].Count < byCount[j].Count })

	// Buckets already above their share cannot be evened out by adding to
	// the others; they keep their count as target and drop out, and the
	// share is recomputed over the rest.
	eligible := len(byCount)
	var target, remainder int
	for {
		total := len(shuffled)
		for _, bucket := range byCount[:eligible] {
			total += bucket.Count
		}
		target = total / eligible
		remainder = total % eligible

		last := target
		if eligible-1 < remainder {
			last++
		}
		if eligible == 1 || byCount[eligible-1].Count <= last {
			break
		}
		eligible--
	}

	targets := make(map[string]int, len(byCount))
	needed := make([]int, len(byCount))
	for i, bucket := range byCount {
		t := bucket.Count
		if i < eligible {
			t = target
			if i < remainder {
				t++
			}
		}
		targets[bucket.ID] = t
		if n := t - bucket.Count; n > 0 {
			needed[i] = n
		}
	}

	order := make([]int, len(byCount))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return needed[order[i]] > needed[order[j]] })

	placements := make([]Placement[T], 0, len(shuffled))
	idx := 0
	for _, item := range shuffled {
		placed := false
		for idx < len(order) {
			b := order[idx]
			if needed[b] > 0 {
				placements = append(placements, Placement[T]{Item: item, Bucket: byCount[b]})
				needed[b]--
				placed = true
				break
			}
			idx++
		}
		if placed {
			continue
		}

		// Every target is met; continue round-robin from the top.
		idx = 0
		for _, b := range order {
			needed[b]++
		}
		b := order[idx]
		placements = append(placements, Placement[T]{Item: item, Bucket: byCount[b]})
		needed[b]--
		idx++
	}

	return Allocation[T]{Placements: placements, Targets: targets}
}

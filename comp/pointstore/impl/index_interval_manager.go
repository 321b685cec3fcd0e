// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package pointstoreimpl

import (
	"container/heap"

	"github.com/DataDog/rcf-core/pkg/rcferrors"
)

// intHeap is a min-heap of free ids. Using a heap rather than a sorted
// slice keeps TakeIndex/ReleaseIndex both O(log n) while always returning
// the lowest free id, the tie-break spec.md calls for.
type intHeap []int

func (h intHeap) Len() int            { return len(h) }
func (h intHeap) Less(i, j int) bool  { return h[i] < h[j] }
func (h intHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *intHeap) Push(x interface{}) { *h = append(*h, x.(int)) }
func (h *intHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// IndexIntervalManager maintains a free-list over [0, capacity) and hands
// out the lowest-available id (spec.md §4.1).
type IndexIntervalManager struct {
	free     intHeap
	freeMask []bool
	capacity int
}

// NewIndexIntervalManager creates a manager where every id in
// [0, capacity) starts free.
func NewIndexIntervalManager(capacity int) *IndexIntervalManager {
	m := &IndexIntervalManager{
		freeMask: make([]bool, capacity),
		capacity: capacity,
	}
	m.free = make(intHeap, capacity)
	for i := 0; i < capacity; i++ {
		m.freeMask[i] = true
		m.free[i] = i
	}
	heap.Init(&m.free)
	return m
}

// ReconstructFromRefCounts rebuilds a manager from an occupancy array:
// positions with a zero entry are free, everything else is allocated.
func ReconstructFromRefCounts(counts []int) *IndexIntervalManager {
	m := &IndexIntervalManager{
		freeMask: make([]bool, len(counts)),
		capacity: len(counts),
	}
	for i, c := range counts {
		if c == 0 {
			m.freeMask[i] = true
			m.free = append(m.free, i)
		}
	}
	heap.Init(&m.free)
	return m
}

// TakeIndex returns the smallest free id, failing with Capacity if none
// remain.
func (m *IndexIntervalManager) TakeIndex() (int, error) {
	if len(m.free) == 0 {
		return 0, rcferrors.New(rcferrors.Capacity, "index interval manager exhausted (capacity %d)", m.capacity)
	}
	id := heap.Pop(&m.free).(int)
	m.freeMask[id] = false
	return id, nil
}

// ReleaseIndex returns id to the free set. id must currently be allocated.
func (m *IndexIntervalManager) ReleaseIndex(id int) error {
	if id < 0 || id >= m.capacity {
		return rcferrors.New(rcferrors.InvalidArgument, "index %d out of range [0,%d)", id, m.capacity)
	}
	if m.freeMask[id] {
		return rcferrors.New(rcferrors.InvalidArgument, "index %d is already free", id)
	}
	m.freeMask[id] = true
	heap.Push(&m.free, id)
	return nil
}

// ExtendCapacity grows the managed range to [0, newCap), adding the new
// ids to the free set. newCap must be >= the current capacity.
func (m *IndexIntervalManager) ExtendCapacity(newCap int) error {
	if newCap < m.capacity {
		return rcferrors.New(rcferrors.InvalidArgument, "newCap %d is less than current capacity %d", newCap, m.capacity)
	}
	for i := m.capacity; i < newCap; i++ {
		m.freeMask = append(m.freeMask, true)
		heap.Push(&m.free, i)
	}
	m.capacity = newCap
	return nil
}

// IsEmpty reports whether the free set is exhausted.
func (m *IndexIntervalManager) IsEmpty() bool { return len(m.free) == 0 }

// GetCapacity returns the current total managed range size.
func (m *IndexIntervalManager) GetCapacity() int { return m.capacity }

// Stats is a read-only snapshot used by telemetry and tests; it is not
// part of spec.md's operation list, just a direct consequence of the
// free-list already maintained.
type Stats struct {
	Capacity  int
	Free      int
	Allocated int
}

// Stats returns a snapshot of the manager's current occupancy.
func (m *IndexIntervalManager) Stats() Stats {
	free := len(m.free)
	return Stats{Capacity: m.capacity, Free: free, Allocated: m.capacity - free}
}

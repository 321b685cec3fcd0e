// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package pointstoreimpl

import "testing"

func TestIndexIntervalManager_TakeIsLowestFirst(t *testing.T) {
	m := NewIndexIntervalManager(4)
	for want := 0; want < 4; want++ {
		got, err := m.TakeIndex()
		if err != nil {
			t.Fatalf("TakeIndex: %v", err)
		}
		if got != want {
			t.Errorf("TakeIndex %d: want %d, got %d", want, want, got)
		}
	}
	if !m.IsEmpty() {
		t.Error("expected manager to be empty after taking all indices")
	}
	if _, err := m.TakeIndex(); err == nil {
		t.Error("expected error taking index from an empty manager")
	}
}

func TestIndexIntervalManager_ReleaseThenTakeReusesLowest(t *testing.T) {
	m := NewIndexIntervalManager(4)
	for i := 0; i < 4; i++ {
		if _, err := m.TakeIndex(); err != nil {
			t.Fatalf("TakeIndex: %v", err)
		}
	}
	if err := m.ReleaseIndex(2); err != nil {
		t.Fatalf("ReleaseIndex(2): %v", err)
	}
	if err := m.ReleaseIndex(0); err != nil {
		t.Fatalf("ReleaseIndex(0): %v", err)
	}
	got, err := m.TakeIndex()
	if err != nil {
		t.Fatalf("TakeIndex: %v", err)
	}
	if got != 0 {
		t.Errorf("expected lowest released id 0, got %d", got)
	}
}

func TestIndexIntervalManager_ReleaseAlreadyFreeFails(t *testing.T) {
	m := NewIndexIntervalManager(2)
	if err := m.ReleaseIndex(0); err == nil {
		t.Error("expected error releasing an id that was never taken")
	}
}

func TestIndexIntervalManager_ReleaseOutOfRangeFails(t *testing.T) {
	m := NewIndexIntervalManager(2)
	if err := m.ReleaseIndex(5); err == nil {
		t.Error("expected error releasing an out-of-range id")
	}
}

func TestIndexIntervalManager_ExtendCapacity(t *testing.T) {
	m := NewIndexIntervalManager(2)
	if _, err := m.TakeIndex(); err != nil {
		t.Fatalf("TakeIndex: %v", err)
	}
	if _, err := m.TakeIndex(); err != nil {
		t.Fatalf("TakeIndex: %v", err)
	}
	if !m.IsEmpty() {
		t.Fatal("expected manager to be empty before extending")
	}
	if err := m.ExtendCapacity(5); err != nil {
		t.Fatalf("ExtendCapacity: %v", err)
	}
	if m.GetCapacity() != 5 {
		t.Errorf("expected capacity 5, got %d", m.GetCapacity())
	}
	for want := 2; want < 5; want++ {
		got, err := m.TakeIndex()
		if err != nil {
			t.Fatalf("TakeIndex: %v", err)
		}
		if got != want {
			t.Errorf("TakeIndex: want %d, got %d", want, got)
		}
	}
}

func TestIndexIntervalManager_ExtendCapacityRejectsShrink(t *testing.T) {
	m := NewIndexIntervalManager(4)
	if err := m.ExtendCapacity(2); err == nil {
		t.Error("expected error shrinking capacity")
	}
}

func TestIndexIntervalManager_ReconstructFromRefCounts(t *testing.T) {
	counts := []int{1, 0, 3, 0, 0}
	m := ReconstructFromRefCounts(counts)
	if m.GetCapacity() != len(counts) {
		t.Fatalf("expected capacity %d, got %d", len(counts), m.GetCapacity())
	}
	stats := m.Stats()
	if stats.Free != 3 {
		t.Errorf("expected 3 free ids, got %d", stats.Free)
	}
	if stats.Allocated != 2 {
		t.Errorf("expected 2 allocated ids, got %d", stats.Allocated)
	}
	got, err := m.TakeIndex()
	if err != nil {
		t.Fatalf("TakeIndex: %v", err)
	}
	if got != 1 {
		t.Errorf("expected lowest free id 1, got %d", got)
	}
}

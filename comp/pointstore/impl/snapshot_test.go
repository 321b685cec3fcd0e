// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package pointstoreimpl

import (
	"testing"

	pointstoredef "github.com/DataDog/rcf-core/comp/pointstore/def"
)

func TestPointStore_SnapshotRoundTrip(t *testing.T) {
	s := newTestStore(t, pointstoredef.Config{BaseDimension: 3, ShingleSize: 1, Capacity: 16})

	a, err := s.Add([]float32{1, 2, 3}, 0)
	if err != nil {
		t.Fatalf("Add A: %v", err)
	}
	b, err := s.Add([]float32{4, 5, 6}, 1)
	if err != nil {
		t.Fatalf("Add B: %v", err)
	}
	if err := s.IncrementRefCount(a); err != nil {
		t.Fatalf("IncrementRefCount: %v", err)
	}

	snap := s.Snapshot()
	restored, err := NewFromSnapshot(snap)
	if err != nil {
		t.Fatalf("NewFromSnapshot: %v", err)
	}

	for _, h := range []pointstoredef.Handle{a, b} {
		want, err := s.GetNumericVector(h)
		if err != nil {
			t.Fatalf("GetNumericVector(original, %d): %v", h, err)
		}
		got, err := restored.GetNumericVector(h)
		if err != nil {
			t.Fatalf("GetNumericVector(restored, %d): %v", h, err)
		}
		for i := range want {
			if want[i] != got[i] {
				t.Errorf("handle %d coordinate %d: want %v, got %v", h, i, want[i], got[i])
			}
		}
		wantCount, err := s.RefCount(h)
		if err != nil {
			t.Fatalf("RefCount(original, %d): %v", h, err)
		}
		gotCount, err := restored.RefCount(h)
		if err != nil {
			t.Fatalf("RefCount(restored, %d): %v", h, err)
		}
		if wantCount != gotCount {
			t.Errorf("handle %d ref count: want %d, got %d", h, wantCount, gotCount)
		}
	}

	if restored.Size() != s.Size() {
		t.Errorf("size mismatch: want %d, got %d", s.Size(), restored.Size())
	}

	// A fresh handle allocated on the restored store must not collide
	// with any still-live handle.
	c, err := restored.Add([]float32{7, 8, 9}, 2)
	if err != nil {
		t.Fatalf("Add on restored store: %v", err)
	}
	if c == a || c == b {
		t.Errorf("restored store handed out a colliding handle %d", c)
	}
}

func TestNewFromSnapshot_RejectsMisalignedTables(t *testing.T) {
	snap := pointstoredef.Snapshot{
		Config:   pointstoredef.Config{BaseDimension: 2, ShingleSize: 1, Capacity: 4},
		Location: make([]int32, 2), // wrong length vs capacity 4
	}
	if _, err := NewFromSnapshot(snap); err == nil {
		t.Error("expected Misaligned error for a location table of the wrong length")
	}
}

// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package pointstoreimpl

import (
	pointstoredef "github.com/DataDog/rcf-core/comp/pointstore/def"
	"github.com/DataDog/rcf-core/pkg/rcferrors"
	"github.com/DataDog/rcf-core/pkg/rcflog"
)

// Snapshot implements pointstoredef.Snapshotter, the coordinator-state
// capture ForestStateMapper uses for spec.md §4.4's `pointStoreState`.
func (s *PointStore) Snapshot() pointstoredef.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	refCounts := make([]int, s.capacity)
	for h := 0; h < s.capacity; h++ {
		refCounts[h] = s.refCounts.get(h)
	}

	return pointstoredef.Snapshot{
		Config:             s.cfg,
		Flat:                append([]float32(nil), s.flat...),
		StartOfFreeSegment:  s.startOfFreeSegment,
		Location:            append([]int32(nil), s.location...),
		RefCounts:           refCounts,
		RotationPhase:       s.rotationPhase,
		InternalShingle:     append([]float32(nil), s.internalShingle...),
		InternalShingleSeen: s.internalShingleSeen,
	}
}

// NewFromSnapshot reconstructs a PointStore from a prior Snapshot,
// rebuilding the index interval manager from the saved reference-count
// occupancy (spec.md §4.4's mapper restore path). Fails with Misaligned
// if the saved arrays are inconsistent with the saved config.
func NewFromSnapshot(snap pointstoredef.Snapshot, opts ...Option) (*PointStore, error) {
	dimensions := snap.Config.Dimensions()
	if len(snap.Location) != snap.Config.Capacity {
		return nil, rcferrors.New(rcferrors.Misaligned, "snapshot location table length %d does not match capacity %d", len(snap.Location), snap.Config.Capacity)
	}
	if len(snap.RefCounts) != snap.Config.Capacity {
		return nil, rcferrors.New(rcferrors.Misaligned, "snapshot ref-count table length %d does not match capacity %d", len(snap.RefCounts), snap.Config.Capacity)
	}
	if snap.StartOfFreeSegment < 0 || snap.StartOfFreeSegment > len(snap.Flat) {
		return nil, rcferrors.New(rcferrors.Misaligned, "snapshot startOfFreeSegment %d out of range [0,%d]", snap.StartOfFreeSegment, len(snap.Flat))
	}
	if dimensions > 0 && len(snap.InternalShingle) != dimensions {
		return nil, rcferrors.New(rcferrors.Misaligned, "snapshot internal shingle length %d does not match dimensions %d", len(snap.InternalShingle), dimensions)
	}

	s := &PointStore{
		cfg:                 snap.Config,
		baseDimension:       snap.Config.BaseDimension,
		shingleSize:         snap.Config.ShingleSize,
		dimensions:          dimensions,
		capacity:            snap.Config.Capacity,
		flat:                append([]float32(nil), snap.Flat...),
		startOfFreeSegment:  snap.StartOfFreeSegment,
		location:            append([]int32(nil), snap.Location...),
		refCounts:           newRefCounts(snap.Config.Capacity),
		ids:                 ReconstructFromRefCounts(snap.RefCounts),
		rotationPhase:       snap.RotationPhase,
		internalShingle:     append([]float32(nil), snap.InternalShingle...),
		internalShingleSeen: snap.InternalShingleSeen,
		logger:              rcflog.Nop(),
	}
	for h, count := range snap.RefCounts {
		if count > 0 {
			s.refCounts.setForReconstruction(h, count)
		}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

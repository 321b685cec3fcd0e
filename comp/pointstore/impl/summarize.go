// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package pointstoreimpl

import (
	pointstoredef "github.com/DataDog/rcf-core/comp/pointstore/def"
)

// Centroid is one summary cluster produced by Summarize.
type Centroid struct {
	Mean   []float32
	Weight int
}

// Summarize runs a single-pass weighted running-mean assignment over the
// live points referenced by handles, bucketing each point into the
// nearest of k running centroids (Euclidean distance) and updating that
// centroid's mean incrementally. It is the thin passthrough spec.md §4.2
// calls out ("runs an iterative clustering over live points (external
// collaborator); not part of the core contract beyond passing through the
// per-handle numeric-vector accessor") — a real clustering pass belongs to
// an external collaborator, not the point store.
func (s *PointStore) Summarize(handles []pointstoredef.Handle, k int) ([]Centroid, error) {
	if k <= 0 {
		return nil, nil
	}
	centroids := make([]Centroid, 0, k)
	for _, h := range handles {
		v, err := s.GetNumericVector(h)
		if err != nil {
			return nil, err
		}
		if len(centroids) < k {
			mean := make([]float32, len(v))
			copy(mean, v)
			centroids = append(centroids, Centroid{Mean: mean, Weight: 1})
			continue
		}
		best := nearestCentroid(centroids, v)
		c := &centroids[best]
		c.Weight++
		for i := range c.Mean {
			c.Mean[i] += (v[i] - c.Mean[i]) / float32(c.Weight)
		}
	}
	return centroids, nil
}

func nearestCentroid(centroids []Centroid, v []float32) int {
	best := 0
	bestDist := squaredDistance(centroids[0].Mean, v)
	for i := 1; i < len(centroids); i++ {
		d := squaredDistance(centroids[i].Mean, v)
		if d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

func squaredDistance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i] - b[i])
		sum += d * d
	}
	return sum
}

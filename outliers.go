// Copyright (C) The Seascape RDA Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package seascape

import (
	"gonum.org/v1/gonum/stat"
)

// Candidate is a locus whose loading on a canonical axis is an outlier,
// suggestive of non-neutral variation.
type Candidate struct {
	Locus   string
	Axis    int
	Loading float64
}

// DetectOutliers flags loci whose loading lies strictly outside
// mean ± z·stddev. A constant loading vector therefore yields nothing for
// any z >= 0; z=0 flags every locus whose loading differs from the mean.
func DetectOutliers(loci []string, loadings []float64, axis int, z float64) []Candidate {
	mean, std := stat.MeanStdDev(loadings, nil)
	lo, hi := mean-z*std, mean+z*std
	var out []Candidate
	for i, l := range loadings {
		if l < lo || l > hi {
			out = append(out, Candidate{Locus: loci[i], Axis: axis, Loading: l})
		}
	}
	return out
}

// scanSignificantAxes runs the outlier rule on every axis with p < 0.05.
func scanSignificantAxes(mdl *RDAModel, axes []AxisTest, z float64) []Candidate {
	var out []Candidate
	for _, ax := range axes {
		if ax.P >= 0.05 {
			continue
		}
		loadings := make([]float64, len(mdl.Loci))
		for i := range loadings {
			loadings[i] = mdl.Loadings.At(i, ax.Axis-1)
		}
		out = append(out, DetectOutliers(mdl.Loci, loadings, ax.Axis, z)...)
	}
	return out
}

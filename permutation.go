// Copyright (C) The Seascape RDA Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package seascape

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// PermTest is one permutation-test outcome. P is
// (exceedances+1)/(permutations+1), so it can never be exactly zero.
type PermTest struct {
	Statistic    float64
	P            float64
	Permutations int
}

// TermTest is a marginal permutation test for a single predictor: the
// F drop when that term is removed from the otherwise complete model.
type TermTest struct {
	Name string
	PermTest
}

// AxisTest is a permutation test for one canonical axis: its eigenvalue
// against the eigenvalue of the same rank under permutation.
type AxisTest struct {
	Axis       int
	Eigenvalue float64
	PermTest
}

func (mdl *RDAModel) resDF() int {
	return mdl.n - mdl.m - mdl.mcond - 1
}

func (mdl *RDAModel) pseudoF(ssFit, ssResid float64) float64 {
	if ssResid <= 0 {
		ssResid = mdl.ssTotal * 1e-12
	}
	return (ssFit / float64(mdl.m)) / (ssResid / float64(mdl.resDF()))
}

// permuteRows writes a row permutation of src into dst.
func permuteRows(dst, src *mat.Dense, perm []int) {
	for i, pi := range perm {
		dst.SetRow(i, src.RawRowView(pi))
	}
}

// GlobalTest permutes the (residualized) response rows and recomputes the
// pseudo-F of the whole model. The caller owns the random source; pass a
// freshly seeded one for reproducible runs.
func (mdl *RDAModel) GlobalTest(nperm int, src rand.Source) (PermTest, error) {
	fobs := mdl.pseudoF(mdl.ssFit, mdl.ssResid)
	r := rand.New(src)
	n, p := mdl.yfit.Dims()
	yp := mat.NewDense(n, p, nil)
	exceed := 0
	for b := 0; b < nperm; b++ {
		permuteRows(yp, mdl.yfit, r.Perm(n))
		ssFit, err := fittedSS(mdl.xfit, yp)
		if err != nil {
			return PermTest{}, fmt.Errorf("global permutation %d: %w", b+1, err)
		}
		ssResid := frobSq(yp) - ssFit
		if mdl.pseudoF(ssFit, ssResid) >= fobs {
			exceed++
		}
	}
	return PermTest{
		Statistic:    fobs,
		P:            float64(exceed+1) / float64(nperm+1),
		Permutations: nperm,
	}, nil
}

// TermTests runs a marginal test per predictor, sharing one permutation
// sequence across terms so the per-term p-values are comparable.
func (mdl *RDAModel) TermTests(nperm int, src rand.Source) ([]TermTest, error) {
	reduced := make([]*mat.Dense, mdl.m)
	obs := make([]float64, mdl.m)
	df := float64(mdl.resDF())
	for j := 0; j < mdl.m; j++ {
		reduced[j] = dropCol(mdl.xfit, j)
		ssRed, err := reducedSS(reduced[j], mdl.yfit)
		if err != nil {
			return nil, err
		}
		obs[j] = (mdl.ssFit - ssRed) / (mdl.ssResid / df)
	}

	r := rand.New(src)
	n, p := mdl.yfit.Dims()
	yp := mat.NewDense(n, p, nil)
	exceed := make([]int, mdl.m)
	for b := 0; b < nperm; b++ {
		permuteRows(yp, mdl.yfit, r.Perm(n))
		ssFull, err := fittedSS(mdl.xfit, yp)
		if err != nil {
			return nil, fmt.Errorf("term permutation %d: %w", b+1, err)
		}
		ssResid := frobSq(yp) - ssFull
		if ssResid <= 0 {
			ssResid = mdl.ssTotal * 1e-12
		}
		for j := 0; j < mdl.m; j++ {
			ssRed, err := reducedSS(reduced[j], yp)
			if err != nil {
				return nil, fmt.Errorf("term permutation %d: %w", b+1, err)
			}
			if (ssFull-ssRed)/(ssResid/df) >= obs[j] {
				exceed[j]++
			}
		}
	}

	tests := make([]TermTest, mdl.m)
	for j := range tests {
		tests[j] = TermTest{
			Name: mdl.Predictors[j],
			PermTest: PermTest{
				Statistic:    obs[j],
				P:            float64(exceed[j]+1) / float64(nperm+1),
				Permutations: nperm,
			},
		}
	}
	return tests, nil
}

// AxisTests compares each canonical eigenvalue with the same-rank
// eigenvalue of permuted fits.
func (mdl *RDAModel) AxisTests(nperm int, src rand.Source) ([]AxisTest, error) {
	r := rand.New(src)
	n, p := mdl.yfit.Dims()
	yp := mat.NewDense(n, p, nil)
	exceed := make([]int, mdl.rank)
	for b := 0; b < nperm; b++ {
		permuteRows(yp, mdl.yfit, r.Perm(n))
		yhat, err := fitted(mdl.xfit, yp)
		if err != nil {
			return nil, fmt.Errorf("axis permutation %d: %w", b+1, err)
		}
		var svd mat.SVD
		if !svd.Factorize(yhat, mat.SVDThin) {
			return nil, fmt.Errorf("axis permutation %d: SVD failed", b+1)
		}
		sv := svd.Values(nil)
		for k := 0; k < mdl.rank && k < len(sv); k++ {
			if sv[k]*sv[k]/float64(n-1) >= mdl.Eigenvalues[k] {
				exceed[k]++
			}
		}
	}
	tests := make([]AxisTest, mdl.rank)
	for k := range tests {
		tests[k] = AxisTest{
			Axis:       k + 1,
			Eigenvalue: mdl.Eigenvalues[k],
			PermTest: PermTest{
				Statistic:    mdl.Eigenvalues[k],
				P:            float64(exceed[k]+1) / float64(nperm+1),
				Permutations: nperm,
			},
		}
	}
	return tests, nil
}

func dropCol(m *mat.Dense, j int) *mat.Dense {
	n, p := m.Dims()
	if p == 1 {
		return nil
	}
	out := mat.NewDense(n, p-1, nil)
	jj := 0
	for c := 0; c < p; c++ {
		if c == j {
			continue
		}
		out.SetCol(jj, mat.Col(nil, c, m))
		jj++
	}
	return out
}

// reducedSS is the explained SS of a model that may have had its only
// predictor removed.
func reducedSS(x *mat.Dense, y mat.Matrix) (float64, error) {
	if x == nil {
		return 0, nil
	}
	return fittedSS(x, y)
}

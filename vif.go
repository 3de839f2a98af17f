// Copyright (C) The Seascape RDA Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package seascape

import (
	"io"
	"log"
	"math"

	"github.com/kshedden/statmodel/glm"
	"github.com/kshedden/statmodel/statmodel"
)

// vifCeiling stands in for an infinite inflation factor (perfectly
// collinear predictor) so reports stay JSON-encodable.
const vifCeiling = math.MaxFloat64

var vifGLMConfig = &glm.Config{
	Family:    glm.NewFamily(glm.GaussianFamily),
	FitMethod: "IRLS",
	Log:       log.New(io.Discard, "", 0),
}

// VIF computes the variance inflation factor of every predictor: regress
// each column on all the others (Gaussian GLM with an intercept) and
// report 1/(1-R²). A single-predictor table has nothing to inflate.
// Values >= 10 are the caller's problem to surface; no remediation
// happens here.
func VIF(pred *Table) (map[string]float64, error) {
	out := make(map[string]float64, len(pred.Cols))
	if len(pred.Cols) < 2 {
		for _, name := range pred.Cols {
			out[name] = 1
		}
		return out, nil
	}
	n := len(pred.Rows)
	cols := make([][]statmodel.Dtype, len(pred.Cols))
	for j := range pred.Cols {
		col := make([]statmodel.Dtype, n)
		for i := 0; i < n; i++ {
			col[i] = pred.Data.At(i, j)
		}
		cols[j] = col
	}
	constants := make([]statmodel.Dtype, n)
	for i := range constants {
		constants[i] = 1
	}

	for j, name := range pred.Cols {
		data := [][]statmodel.Dtype{cols[j], constants}
		names := []string{name, "constants"}
		for k, other := range pred.Cols {
			if k == j {
				continue
			}
			data = append(data, cols[k])
			names = append(names, other)
		}
		dataset := statmodel.NewDataset(data, names)
		model, err := glm.NewGLM(dataset, name, names[1:], vifGLMConfig)
		if err != nil {
			return nil, err
		}
		result := model.Fit()
		params := result.Params()

		var ssRes, ssTot float64
		mean := 0.0
		for i := 0; i < n; i++ {
			mean += cols[j][i]
		}
		mean /= float64(n)
		for i := 0; i < n; i++ {
			fit := params[0] // constants
			for k := 1; k < len(names)-1; k++ {
				fit += params[k] * data[k+1][i]
			}
			d := cols[j][i] - fit
			ssRes += d * d
			t := cols[j][i] - mean
			ssTot += t * t
		}
		if ssTot == 0 {
			out[name] = vifCeiling
			continue
		}
		r2 := 1 - ssRes/ssTot
		if r2 >= 1 {
			out[name] = vifCeiling
		} else {
			out[name] = 1 / (1 - r2)
		}
	}
	return out, nil
}

// Copyright (C) The Seascape RDA Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package seascape

import (
	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/rand"
)

// highVIF is the conventional cutoff above which a predictor's variance
// inflation is worth a warning. Not fatal: the judgment call stays with
// whoever reads the log.
const highVIF = 10

// ModelReport collects everything the pipeline reports about one fitted
// ordination model.
type ModelReport struct {
	Predictors  []string
	Condition   []string `json:",omitempty"`
	R2          float64
	AdjR2       float64
	VIF         map[string]float64
	Global      PermTest
	Significant bool
	Terms       []TermTest
	Axes        []AxisTest
	Candidates  []Candidate `json:",omitempty"`
}

// buildModelReport runs the full diagnostic battery on a fitted model:
// VIF per predictor (warning at >= 10), then global, per-term and
// per-axis permutation tests drawing from the caller's random source.
func buildModelReport(mdl *RDAModel, nperm int, src rand.Source) (*ModelReport, error) {
	report := &ModelReport{
		Predictors: mdl.Predictors,
		Condition:  mdl.Condition,
		R2:         mdl.R2,
		AdjR2:      mdl.AdjR2,
	}

	vif, err := VIF(&Table{
		Name: "predictors",
		Rows: mdl.Sites,
		Cols: mdl.Predictors,
		Data: mdl.xfit,
	})
	if err != nil {
		return nil, err
	}
	report.VIF = vif
	for name, v := range vif {
		if v >= highVIF {
			log.Warnf("predictor %s has VIF %.1f (>= %d): collinear with the rest of the model", name, v, highVIF)
		}
	}

	if report.Global, err = mdl.GlobalTest(nperm, src); err != nil {
		return nil, err
	}
	report.Significant = report.Global.P < 0.05
	if report.Terms, err = mdl.TermTests(nperm, src); err != nil {
		return nil, err
	}
	if report.Axes, err = mdl.AxisTests(nperm, src); err != nil {
		return nil, err
	}
	return report, nil
}

// Copyright (C) The Seascape RDA Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package seascape

import (
	"gopkg.in/check.v1"
)

type outlierSuite struct{}

var _ = check.Suite(&outlierSuite{})

func (s *outlierSuite) TestDetectOutliers(c *check.C) {
	loci := []string{"l1", "l2", "l3", "l4", "l5", "l6", "l7", "l8", "l9"}
	loadings := []float64{0.0, 0.01, -0.01, 0.02, -0.02, 0.0, 0.01, -0.01, 0.8}

	cands := DetectOutliers(loci, loadings, 1, 2.5)
	c.Assert(cands, check.HasLen, 1)
	c.Check(cands[0], check.DeepEquals, Candidate{Locus: "l9", Axis: 1, Loading: 0.8})
}

func (s *outlierSuite) TestConstantLoadingsYieldNothing(c *check.C) {
	loci := []string{"l1", "l2", "l3"}
	loadings := []float64{0.5, 0.5, 0.5}
	c.Check(DetectOutliers(loci, loadings, 1, 2.5), check.IsNil)
	// even at z=0 a value equal to the mean is not outside the band
	c.Check(DetectOutliers(loci, loadings, 1, 0), check.IsNil)
}

func (s *outlierSuite) TestZeroZFlagsEverythingOffMean(c *check.C) {
	loci := []string{"l1", "l2", "l3"}
	loadings := []float64{1, 2, 3}
	cands := DetectOutliers(loci, loadings, 2, 0)
	c.Assert(cands, check.HasLen, 2)
	c.Check(cands[0].Locus, check.Equals, "l1")
	c.Check(cands[1].Locus, check.Equals, "l3")
	for _, cand := range cands {
		c.Check(cand.Axis, check.Equals, 2)
	}
}

func (s *outlierSuite) TestScanSkipsNonSignificantAxes(c *check.C) {
	resp, pred, _ := testTables()
	mdl, err := FitRDA(resp, pred, nil)
	c.Assert(err, check.IsNil)
	axes := []AxisTest{
		{Axis: 1, Eigenvalue: mdl.Eigenvalues[0], PermTest: PermTest{P: 0.9}},
		{Axis: 2, Eigenvalue: mdl.Eigenvalues[1], PermTest: PermTest{P: 0.9}},
	}
	c.Check(scanSignificantAxes(mdl, axes, 0), check.IsNil)

	axes[0].P = 0.01
	cands := scanSignificantAxes(mdl, axes, 0)
	for _, cand := range cands {
		c.Check(cand.Axis, check.Equals, 1)
	}
}

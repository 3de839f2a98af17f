// Copyright (C) The Seascape RDA Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package seascape

import (
	"math"

	"gopkg.in/check.v1"
)

type corrSuite struct{}

var _ = check.Suite(&corrSuite{})

func (s *corrSuite) TestCorrTable(c *check.C) {
	// y is a linear function of x; z is constructed orthogonal to x
	env := mkTable("env",
		[]string{"s1", "s2", "s3", "s4"},
		[]string{"x", "y", "z"},
		[]float64{
			1, 3, 1,
			2, 5, -1,
			3, 7, -1,
			4, 9, 1,
		})
	corr := CorrTable(env)
	c.Check(corr.Rows, check.DeepEquals, env.Cols)
	c.Check(corr.Cols, check.DeepEquals, env.Cols)
	for i := range corr.Rows {
		c.Check(corr.Data.At(i, i), check.Equals, 1.0)
	}
	c.Check(math.Abs(corr.Data.At(0, 1)-1) < 1e-12, check.Equals, true)
	c.Check(corr.Data.At(0, 1), check.Equals, corr.Data.At(1, 0))
	c.Check(math.Abs(corr.Data.At(0, 2)) < 1e-12, check.Equals, true)

	pairs := CorrelatedPairs(corr, 0.7)
	c.Assert(pairs, check.HasLen, 1)
	c.Check(pairs[0], check.Equals, "x~y (r=1.00)")

	c.Check(CorrelatedPairs(corr, 1.01), check.IsNil)
}

func (s *corrSuite) TestNegativeCorrelationIsReported(c *check.C) {
	env := mkTable("env",
		[]string{"s1", "s2", "s3"},
		[]string{"a", "b"},
		[]float64{
			1, 3,
			2, 2,
			3, 1,
		})
	pairs := CorrelatedPairs(CorrTable(env), 0.9)
	c.Assert(pairs, check.HasLen, 1)
	c.Check(pairs[0], check.Equals, "a~b (r=-1.00)")
}

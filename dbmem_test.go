// Copyright (C) The Seascape RDA Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package seascape

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gopkg.in/check.v1"
)

type dbmemSuite struct{}

var _ = check.Suite(&dbmemSuite{})

func coastCoords() *Table {
	// six sites along a rough south-to-north transect
	return mkTable("coords",
		[]string{"c1", "c2", "c3", "c4", "c5", "c6"},
		[]string{"lon", "lat"},
		[]float64{
			-9.0, 38.7,
			-8.7, 41.1,
			-6.2, 43.5,
			-4.5, 48.4,
			-5.1, 50.1,
			-4.0, 52.9,
		})
}

func (s *dbmemSuite) TestComputeDBMEM(c *check.C) {
	coords := coastCoords()
	mem, err := ComputeDBMEM(coords, 0)
	c.Assert(err, check.IsNil)
	c.Check(mem.Rows, check.DeepEquals, coords.Rows)
	c.Assert(len(mem.Cols) > 0, check.Equals, true)
	c.Assert(len(mem.Cols) < len(coords.Rows), check.Equals, true)
	for k, name := range mem.Cols {
		c.Check(name, check.Equals, fmt.Sprintf("MEM%d", k+1))
	}

	// Gower centering leaves eigenvectors orthogonal to the constant
	// vector, and the decomposition returns them orthonormal
	n := len(mem.Rows)
	for j := range mem.Cols {
		var sum, norm float64
		for i := 0; i < n; i++ {
			v := mem.Data.At(i, j)
			sum += v
			norm += v * v
		}
		c.Check(math.Abs(sum) < 1e-9, check.Equals, true, check.Commentf("MEM%d sum=%v", j+1, sum))
		c.Check(math.Abs(norm-1) < 1e-9, check.Equals, true)
	}
	for j := 1; j < len(mem.Cols); j++ {
		dot := mat.Dot(
			mat.NewVecDense(n, mat.Col(nil, 0, mem.Data)),
			mat.NewVecDense(n, mat.Col(nil, j, mem.Data)),
		)
		c.Check(math.Abs(dot) < 1e-9, check.Equals, true)
	}
}

func (s *dbmemSuite) TestExplicitTruncation(c *check.C) {
	// a truncation distance larger than any pairwise distance leaves the
	// distance matrix untouched; the result still holds positive axes
	mem, err := ComputeDBMEM(coastCoords(), 5000)
	c.Assert(err, check.IsNil)
	c.Check(len(mem.Cols) > 0, check.Equals, true)
}

func (s *dbmemSuite) TestComputeDBMEMErrors(c *check.C) {
	noLat := mkTable("coords", []string{"c1", "c2", "c3"}, []string{"lon"}, []float64{1, 2, 3})
	_, err := ComputeDBMEM(noLat, 0)
	c.Check(err, check.ErrorMatches, `coords: no column "lat"`)

	tiny := mkTable("coords", []string{"c1", "c2"}, []string{"lon", "lat"}, []float64{1, 1, 2, 2})
	_, err = ComputeDBMEM(tiny, 0)
	c.Check(err, check.ErrorMatches, `coords: need at least 3 sites, got 2`)
}

func (s *dbmemSuite) TestHaversine(c *check.C) {
	// one degree of longitude on the equator is about 111.2 km
	d := haversineKm(0, 0, 0, 1)
	c.Check(math.Abs(d-111.19) < 0.5, check.Equals, true, check.Commentf("d=%v", d))
	c.Check(haversineKm(50, -4, 50, -4), check.Equals, 0.0)
	// symmetric
	c.Check(haversineKm(38.7, -9.0, 52.9, -4.0), check.Equals, haversineKm(52.9, -4.0, 38.7, -9.0))
}

func (s *dbmemSuite) TestMaxMSTEdge(c *check.C) {
	// four points on a line at 0, 1, 2, 10: the MST is the chain and its
	// longest edge is the 8-unit gap
	pos := []float64{0, 1, 2, 10}
	dist := mat.NewSymDense(4, nil)
	for i := range pos {
		for j := i + 1; j < len(pos); j++ {
			dist.SetSym(i, j, math.Abs(pos[i]-pos[j]))
		}
	}
	c.Check(maxMSTEdge(dist), check.Equals, 8.0)
}

// Copyright (C) The Seascape RDA Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package seascape

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"sort"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// ComputeDBMEM derives distance-based Moran's eigenvector maps from site
// coordinates: great-circle distance matrix, truncation (at the largest
// minimum-spanning-tree edge when truncation <= 0, so the connection graph
// stays in one piece), Gower-centered principal coordinates, and the
// eigenvectors with positive eigenvalues as MEM1..MEMk.
func ComputeDBMEM(coords *Table, truncation float64) (*Table, error) {
	lon, err := coords.Column("lon")
	if err != nil {
		return nil, err
	}
	lat, err := coords.Column("lat")
	if err != nil {
		return nil, err
	}
	n := len(coords.Rows)
	if n < 3 {
		return nil, fmt.Errorf("%s: need at least 3 sites, got %d", coords.Name, n)
	}

	dist := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			dist.SetSym(i, j, haversineKm(lat[i], lon[i], lat[j], lon[j]))
		}
	}
	if truncation <= 0 {
		truncation = maxMSTEdge(dist)
	}
	log.Debugf("dbmem: truncation distance %.1f km", truncation)

	// PCNM: distances beyond the truncation are replaced by 4t, then the
	// truncated matrix goes through classical PCoA.
	a := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			d := dist.At(i, j)
			if i != j && d > truncation {
				d = 4 * truncation
			}
			a.SetSym(i, j, -0.5*d*d)
		}
	}
	gowerCenter(a)

	var es mat.EigenSym
	if !es.Factorize(a, true) {
		return nil, errors.New("dbmem: eigendecomposition failed")
	}
	vals := es.Values(nil)
	var vecs mat.Dense
	es.VectorsTo(&vecs)

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return vals[order[a]] > vals[order[b]] })

	tol := 0.0
	if vals[order[0]] > 0 {
		tol = vals[order[0]] * 1e-8
	}
	keep := []int{}
	for _, i := range order {
		if vals[i] > tol {
			keep = append(keep, i)
		}
	}
	if len(keep) == 0 {
		return nil, errors.New("dbmem: no positive eigenvalues")
	}

	out := &Table{
		Name: "mem",
		Rows: append([]string(nil), coords.Rows...),
		Data: mat.NewDense(n, len(keep), nil),
	}
	for k, i := range keep {
		out.Cols = append(out.Cols, fmt.Sprintf("MEM%d", k+1))
		out.Data.SetCol(k, mat.Col(nil, i, &vecs))
	}
	return out, nil
}

func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusKm = 6371.0
	rad := math.Pi / 180
	dlat := (lat2 - lat1) * rad
	dlon := (lon2 - lon1) * rad
	h := math.Pow(math.Sin(dlat/2), 2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Pow(math.Sin(dlon/2), 2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

// maxMSTEdge runs Prim over the dense distance matrix and returns the
// longest edge of the minimum spanning tree.
func maxMSTEdge(dist *mat.SymDense) float64 {
	n := dist.SymmetricDim()
	inTree := make([]bool, n)
	best := make([]float64, n)
	for i := range best {
		best[i] = math.Inf(1)
	}
	inTree[0] = true
	for j := 1; j < n; j++ {
		best[j] = dist.At(0, j)
	}
	maxEdge := 0.0
	for added := 1; added < n; added++ {
		next, nextDist := -1, math.Inf(1)
		for j := 0; j < n; j++ {
			if !inTree[j] && best[j] < nextDist {
				next, nextDist = j, best[j]
			}
		}
		inTree[next] = true
		maxEdge = math.Max(maxEdge, nextDist)
		for j := 0; j < n; j++ {
			if !inTree[j] {
				best[j] = math.Min(best[j], dist.At(next, j))
			}
		}
	}
	return maxEdge
}

// gowerCenter double-centers a symmetric matrix in place.
func gowerCenter(a *mat.SymDense) {
	n := a.SymmetricDim()
	rowMean := make([]float64, n)
	grand := 0.0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			rowMean[i] += a.At(i, j)
		}
		rowMean[i] /= float64(n)
		grand += rowMean[i]
	}
	grand /= float64(n)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			a.SetSym(i, j, a.At(i, j)-rowMean[i]-rowMean[j]+grand)
		}
	}
}

type dbmemcmd struct{}

func (cmd *dbmemcmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	coordsFilename := flags.String("coords", "", "site coordinate `file` with lon and lat columns")
	outputFilename := flags.String("o", "-", "output CSV `file` (sites x MEMs)")
	truncation := flags.Float64("truncation", 0, "truncation distance in `km` (0: largest minimum-spanning-tree edge)")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	} else if *coordsFilename == "" {
		err = errors.New("must specify -coords")
		return 2
	}

	coords, err := ReadTable("coords", *coordsFilename)
	if err != nil {
		return 1
	}
	mem, err := ComputeDBMEM(coords, *truncation)
	if err != nil {
		return 1
	}
	log.Infof("dbmem: %d spatial eigenvectors from %d sites", len(mem.Cols), len(mem.Rows))

	output, err := openOutput(*outputFilename, stdout)
	if err != nil {
		return 1
	}
	defer output.Close()
	err = mem.WriteCSV(output)
	if err != nil {
		return 1
	}
	err = output.Close()
	if err != nil {
		return 1
	}
	return 0
}

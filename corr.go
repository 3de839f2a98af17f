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

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// CorrTable computes the pairwise Pearson correlation matrix of a table's
// columns. Which correlated variable to drop stays a human decision: the
// pipeline takes an explicit exclusion list, this table is what the
// decision is made from.
func CorrTable(t *Table) *Table {
	p := len(t.Cols)
	out := &Table{
		Name: t.Name + " correlations",
		Rows: append([]string(nil), t.Cols...),
		Cols: append([]string(nil), t.Cols...),
		Data: mat.NewDense(p, p, nil),
	}
	cols := make([][]float64, p)
	for j := range t.Cols {
		cols[j] = mat.Col(nil, j, t.Data)
	}
	for i := 0; i < p; i++ {
		out.Data.Set(i, i, 1)
		for j := i + 1; j < p; j++ {
			r := stat.Correlation(cols[i], cols[j], nil)
			out.Data.Set(i, j, r)
			out.Data.Set(j, i, r)
		}
	}
	return out
}

// CorrelatedPairs lists column pairs with |r| >= threshold, for warning
// about collinearity that survived the exclusion list.
func CorrelatedPairs(corr *Table, threshold float64) []string {
	var pairs []string
	for i := range corr.Rows {
		for j := i + 1; j < len(corr.Cols); j++ {
			if r := corr.Data.At(i, j); math.Abs(r) >= threshold {
				pairs = append(pairs, fmt.Sprintf("%s~%s (r=%.2f)", corr.Rows[i], corr.Cols[j], r))
			}
		}
	}
	return pairs
}

type corrcmd struct{}

func (cmd *corrcmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	envFilename := flags.String("env", "", "environmental matrix `file`")
	outputFilename := flags.String("o", "-", "output CSV `file`")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	} else if *envFilename == "" {
		err = errors.New("must specify -env")
		return 2
	}

	env, err := ReadTable("env", *envFilename)
	if err != nil {
		return 1
	}
	output, err := openOutput(*outputFilename, stdout)
	if err != nil {
		return 1
	}
	defer output.Close()
	err = CorrTable(env).WriteCSV(output)
	if err != nil {
		return 1
	}
	err = output.Close()
	if err != nil {
		return 1
	}
	return 0
}

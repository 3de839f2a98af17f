// Copyright (C) The Seascape RDA Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package seascape

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// ErrNoSignificantVars means forward selection accepted nothing. The
// downstream ordination cannot be fit with zero terms, so callers must
// treat this as fatal rather than proceed with an empty model.
var ErrNoSignificantVars = errors.New("no significant variables at the requested alpha")

// SelectedVar is one accepted step of forward selection. R2Cum and
// AdjR2Cum describe the model after the variable joined it.
type SelectedVar struct {
	Name     string
	R2Cum    float64
	AdjR2Cum float64
	F        float64
	P        float64
}

// ForwardSelect greedily adds the candidate with the largest explained
// variance gain, gated by a conditional permutation test at alpha, and
// stops once a step would push the explained variance past that of the
// model holding every candidate. It returns the accepted variables in
// acceptance order.
func ForwardSelect(resp, cand *Table, alpha float64, nperm int, src rand.Source) ([]SelectedVar, error) {
	if len(cand.Cols) == 0 {
		return nil, fmt.Errorf("%s: no candidate variables", cand.Name)
	}
	if err := sameRows(resp, cand); err != nil {
		return nil, err
	}
	n := len(resp.Rows)
	if df := n - len(cand.Cols) - 1; df < 1 {
		return nil, fmt.Errorf("%s: %d candidates cannot be tested against %d sites", cand.Name, len(cand.Cols), n)
	}

	y := centerCols(resp.Data)
	ssTot := frobSq(y)
	if ssTot == 0 {
		return nil, fmt.Errorf("%s: response has no variance", resp.Name)
	}
	x, err := standardizeCols(cand)
	if err != nil {
		return nil, err
	}
	ssFull, err := fittedSS(x, y)
	if err != nil {
		return nil, err
	}

	r := rand.New(src)
	var selected []SelectedVar
	selectedIdx := []int{}
	remaining := map[int]bool{}
	for j := range cand.Cols {
		remaining[j] = true
	}
	ssOld := 0.0
	yp := mat.NewDense(n, len(resp.Cols), nil)

	for len(remaining) > 0 {
		best, ssBest := -1, 0.0
		for j := range remaining {
			ss, err := fittedSS(pickCols(x, append(selectedIdx, j)), y)
			if err != nil {
				return nil, err
			}
			if best < 0 || ss > ssBest {
				best, ssBest = j, ss
			}
		}
		mNew := len(selectedIdx) + 1
		adjNew := adjustedR2(ssBest/ssTot, n, mNew)
		if ssBest > ssFull+ssTot*1e-10 {
			// cannot explain more than the model with every candidate in it
			log.Debugf("forward selection %s: %q would exceed the full model's explained variance, stopping", cand.Name, cand.Cols[best])
			break
		}
		df := float64(n - mNew - 1)
		denom := (ssTot - ssBest) / df
		if denom <= 0 {
			denom = ssTot * 1e-12
		}
		fobs := (ssBest - ssOld) / denom

		xNew := pickCols(x, append(selectedIdx, best))
		exceed := 0
		for b := 0; b < nperm; b++ {
			permuteRows(yp, y, r.Perm(n))
			ssP, err := fittedSS(xNew, yp)
			if err != nil {
				return nil, err
			}
			var ssPOld float64
			if len(selectedIdx) > 0 {
				if ssPOld, err = fittedSS(pickCols(x, selectedIdx), yp); err != nil {
					return nil, err
				}
			}
			denomP := (ssTot - ssP) / df
			if denomP <= 0 {
				denomP = ssTot * 1e-12
			}
			if (ssP-ssPOld)/denomP >= fobs {
				exceed++
			}
		}
		p := float64(exceed+1) / float64(nperm+1)
		if p > alpha {
			log.Debugf("forward selection %s: best remaining %q p=%.4f > alpha=%.4f, stopping", cand.Name, cand.Cols[best], p, alpha)
			break
		}
		selected = append(selected, SelectedVar{
			Name:     cand.Cols[best],
			R2Cum:    ssBest / ssTot,
			AdjR2Cum: adjNew,
			F:        fobs,
			P:        p,
		})
		selectedIdx = append(selectedIdx, best)
		delete(remaining, best)
		ssOld = ssBest
	}

	if len(selected) == 0 {
		return nil, fmt.Errorf("%s: %w", cand.Name, ErrNoSignificantVars)
	}
	return selected, nil
}

// selectedNames extracts the accepted variable names in order.
func selectedNames(vars []SelectedVar) []string {
	names := make([]string, len(vars))
	for i, v := range vars {
		names[i] = v.Name
	}
	return names
}

func pickCols(m *mat.Dense, idx []int) *mat.Dense {
	n, _ := m.Dims()
	out := mat.NewDense(n, len(idx), nil)
	for j, c := range idx {
		out.SetCol(j, mat.Col(nil, c, m))
	}
	return out
}

type selectcmd struct{}

func (cmd *selectcmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	freqFilename := flags.String("freq", "", "allele frequency matrix `file` (response)")
	candFilename := flags.String("candidates", "", "candidate predictor matrix `file`")
	outputFilename := flags.String("o", "-", "output JSON `file`")
	alpha := flags.Float64("alpha", 0.01, "significance threshold for adding a variable")
	nperm := flags.Int("permutations", 999, "number of permutations per step")
	seed := flags.Uint64("seed", 123, "random seed for permutation tests")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	} else if *freqFilename == "" || *candFilename == "" {
		err = errors.New("must specify -freq and -candidates")
		return 2
	}

	resp, err := ReadTable("freq", *freqFilename)
	if err != nil {
		return 1
	}
	cand, err := ReadTable("candidates", *candFilename)
	if err != nil {
		return 1
	}
	err = AlignTables(resp, cand)
	if err != nil {
		return 1
	}
	vars, err := ForwardSelect(resp, cand, *alpha, *nperm, rand.NewSource(*seed))
	if err != nil {
		return 1
	}

	output, err := openOutput(*outputFilename, stdout)
	if err != nil {
		return 1
	}
	defer output.Close()
	enc := json.NewEncoder(output)
	enc.SetIndent("", "  ")
	err = enc.Encode(vars)
	if err != nil {
		return 1
	}
	err = output.Close()
	if err != nil {
		return 1
	}
	return 0
}

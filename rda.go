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
	"gonum.org/v1/gonum/stat"
)

var ErrNoPredictors = errors.New("rda: no predictors")

// RDAModel is a fitted redundancy analysis: the response variance
// explainable by a linear combination of the predictors, projected onto
// canonical axes ranked by eigenvalue. Read-only after FitRDA.
type RDAModel struct {
	Sites      []string
	Loci       []string
	Predictors []string
	Condition  []string

	Eigenvalues  []float64
	TotalInertia float64
	R2           float64
	AdjR2        float64

	// SiteScores is n sites x rank (U*S), Loadings is p loci x rank
	// (right singular vectors), BiplotScores is m predictors x rank
	// (correlation of each predictor with each site-score axis).
	SiteScores   *mat.Dense
	Loadings     *mat.Dense
	BiplotScores *mat.Dense

	n, m, mcond int
	rank        int
	ssTotal     float64
	ssFit       float64
	ssResid     float64
	// response and predictors actually entering the projection:
	// centered/standardized, residualized on the conditioning set for
	// the partial form. Retained for permutation tests.
	yfit *mat.Dense
	xfit *mat.Dense
	// first principal component of the unconstrained residual, for
	// plotting models with a single canonical axis.
	residScores []float64
	residProp   float64
}

// FitRDA fits an RDA of resp on pred. A non-nil cond turns it into a
// partial RDA: both resp and pred are replaced by their residuals after
// regression on the conditioning variables. All three tables must already
// be row-aligned (AlignTables).
func FitRDA(resp, pred, cond *Table) (*RDAModel, error) {
	if pred == nil || len(pred.Cols) == 0 {
		return nil, fmt.Errorf("%w (response %s)", ErrNoPredictors, resp.Name)
	}
	if err := sameRows(resp, pred); err != nil {
		return nil, err
	}
	mdl := &RDAModel{
		Sites:      append([]string(nil), resp.Rows...),
		Loci:       append([]string(nil), resp.Cols...),
		Predictors: append([]string(nil), pred.Cols...),
		n:          len(resp.Rows),
		m:          len(pred.Cols),
	}
	if cond != nil {
		if err := sameRows(resp, cond); err != nil {
			return nil, err
		}
		mdl.Condition = append([]string(nil), cond.Cols...)
		mdl.mcond = len(cond.Cols)
	}
	if df := mdl.n - mdl.m - mdl.mcond - 1; df < 1 {
		return nil, fmt.Errorf("rda: %d sites cannot support %d predictors + %d conditioning variables", mdl.n, mdl.m, mdl.mcond)
	}

	y := centerCols(resp.Data)
	mdl.ssTotal = frobSq(y)
	if mdl.ssTotal == 0 {
		return nil, fmt.Errorf("rda: response %s has no variance", resp.Name)
	}
	x, err := standardizeCols(pred)
	if err != nil {
		return nil, err
	}
	if cond != nil {
		z, err := standardizeCols(cond)
		if err != nil {
			return nil, err
		}
		if y, err = residualize(y, z); err != nil {
			return nil, err
		}
		if x, err = residualize(x, z); err != nil {
			return nil, err
		}
	}
	mdl.yfit, mdl.xfit = y, x

	yhat, err := fitted(x, y)
	if err != nil {
		return nil, err
	}
	mdl.ssFit = frobSq(yhat)
	mdl.ssResid = frobSq(y) - mdl.ssFit
	if mdl.ssResid < 0 {
		mdl.ssResid = 0
	}
	mdl.R2 = mdl.ssFit / mdl.ssTotal
	mdl.AdjR2 = adjustedR2(mdl.R2, mdl.n, mdl.m+mdl.mcond)

	var svd mat.SVD
	if !svd.Factorize(yhat, mat.SVDThin) {
		return nil, fmt.Errorf("rda: SVD of fitted response failed")
	}
	sv := svd.Values(nil)
	mdl.rank = svdRank(sv)
	if mdl.rank == 0 {
		return nil, fmt.Errorf("rda: predictors explain none of %s", resp.Name)
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	mdl.Eigenvalues = make([]float64, mdl.rank)
	mdl.SiteScores = mat.NewDense(mdl.n, mdl.rank, nil)
	mdl.Loadings = mat.NewDense(len(mdl.Loci), mdl.rank, nil)
	mdl.BiplotScores = mat.NewDense(mdl.m, mdl.rank, nil)
	for k := 0; k < mdl.rank; k++ {
		mdl.Eigenvalues[k] = sv[k] * sv[k] / float64(mdl.n-1)
		score := make([]float64, mdl.n)
		for i := range score {
			score[i] = u.At(i, k) * sv[k]
		}
		mdl.SiteScores.SetCol(k, score)
		mdl.Loadings.SetCol(k, mat.Col(nil, k, &v))
		for j := 0; j < mdl.m; j++ {
			xj := mat.Col(nil, j, x)
			if r := stat.Correlation(xj, score, nil); r == r { // skip NaN
				mdl.BiplotScores.Set(j, k, r)
			}
		}
	}
	mdl.TotalInertia = mdl.ssTotal / float64(mdl.n-1)

	var res mat.Dense
	res.Sub(y, yhat)
	if frobSq(&res) > mdl.ssTotal*1e-12 {
		var rsvd mat.SVD
		if rsvd.Factorize(&res, mat.SVDThin) {
			rv := rsvd.Values(nil)
			var ru mat.Dense
			rsvd.UTo(&ru)
			mdl.residScores = make([]float64, mdl.n)
			for i := range mdl.residScores {
				mdl.residScores[i] = ru.At(i, 0) * rv[0]
			}
			mdl.residProp = rv[0] * rv[0] / mdl.ssTotal
		}
	}
	return mdl, nil
}

// AxisProportion returns axis k's share of total inertia.
func (mdl *RDAModel) AxisProportion(k int) float64 {
	return mdl.Eigenvalues[k] * float64(mdl.n-1) / mdl.ssTotal
}

// Rank returns the number of canonical axes.
func (mdl *RDAModel) Rank() int { return mdl.rank }

func sameRows(a, b *Table) error {
	if len(a.Rows) != len(b.Rows) {
		return fmt.Errorf("%s and %s differ in row count (%d vs %d); run AlignTables first", a.Name, b.Name, len(a.Rows), len(b.Rows))
	}
	for i := range a.Rows {
		if a.Rows[i] != b.Rows[i] {
			return fmt.Errorf("%s and %s disagree at row %d (%q vs %q); run AlignTables first", a.Name, b.Name, i, a.Rows[i], b.Rows[i])
		}
	}
	return nil
}

func centerCols(src *mat.Dense) *mat.Dense {
	n, p := src.Dims()
	out := mat.NewDense(n, p, nil)
	col := make([]float64, n)
	for j := 0; j < p; j++ {
		mat.Col(col, j, src)
		mean := stat.Mean(col, nil)
		for i := range col {
			col[i] -= mean
		}
		out.SetCol(j, col)
	}
	return out
}

func standardizeCols(t *Table) (*mat.Dense, error) {
	n := len(t.Rows)
	out := mat.NewDense(n, len(t.Cols), nil)
	col := make([]float64, n)
	for j, name := range t.Cols {
		mat.Col(col, j, t.Data)
		mean, std := stat.MeanStdDev(col, nil)
		if std == 0 {
			return nil, fmt.Errorf("%s: column %q has zero variance", t.Name, name)
		}
		for i := range col {
			col[i] = (col[i] - mean) / std
		}
		out.SetCol(j, col)
	}
	return out, nil
}

// lstsq solves the least-squares problem X B = Y. An ill-conditioned
// system is tolerated (gonum reports it as a mat.Condition error with a
// usable result); a singular one is not.
func lstsq(x, y mat.Matrix) (*mat.Dense, error) {
	var b mat.Dense
	err := b.Solve(x, y)
	if err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, fmt.Errorf("least squares: %w", err)
		}
	}
	return &b, nil
}

func fitted(x, y mat.Matrix) (*mat.Dense, error) {
	b, err := lstsq(x, y)
	if err != nil {
		return nil, err
	}
	var yhat mat.Dense
	yhat.Mul(x, b)
	return &yhat, nil
}

// residualize returns m minus its projection onto the column space of z.
func residualize(m, z *mat.Dense) (*mat.Dense, error) {
	zhat, err := fitted(z, m)
	if err != nil {
		return nil, err
	}
	var res mat.Dense
	res.Sub(m, zhat)
	return &res, nil
}

// fittedSS is the explained sum of squares of regressing y on x.
func fittedSS(x, y mat.Matrix) (float64, error) {
	yhat, err := fitted(x, y)
	if err != nil {
		return 0, err
	}
	return frobSq(yhat), nil
}

func frobSq(m mat.Matrix) float64 {
	f := mat.Norm(m, 2)
	return f * f
}

// adjustedR2 applies the Ezekiel correction. m counts every degree of
// freedom spent on the model, conditioning variables included, so a
// partial model is never adjusted more leniently than the full model it
// was carved out of.
func adjustedR2(r2 float64, n, m int) float64 {
	return 1 - (1-r2)*float64(n-1)/float64(n-m-1)
}

func svdRank(sv []float64) int {
	if len(sv) == 0 || sv[0] == 0 {
		return 0
	}
	rank := 0
	for _, s := range sv {
		if s > sv[0]*1e-9 {
			rank++
		}
	}
	return rank
}

type rdacmd struct{}

func (cmd *rdacmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	freqFilename := flags.String("freq", "", "allele frequency matrix `file` (response)")
	predFilename := flags.String("predictors", "", "predictor matrix `file`")
	condFilename := flags.String("condition", "", "conditioning matrix `file` (partial RDA)")
	outputFilename := flags.String("o", "-", "output JSON `file`")
	nperm := flags.Int("permutations", 999, "number of permutations for significance tests")
	seed := flags.Uint64("seed", 123, "random seed for permutation tests")
	zcut := flags.Float64("z", 2.5, "loading outlier threshold in standard deviations (0 to skip no loci)")
	loglevel := flags.String("loglevel", "info", "logging threshold (trace, debug, info, warn, error, fatal, or panic)")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	} else if *freqFilename == "" || *predFilename == "" {
		err = errors.New("must specify -freq and -predictors")
		return 2
	}
	lvl, err := log.ParseLevel(*loglevel)
	if err != nil {
		return 2
	}
	log.SetLevel(lvl)

	resp, err := ReadTable("freq", *freqFilename)
	if err != nil {
		return 1
	}
	pred, err := ReadTable("predictors", *predFilename)
	if err != nil {
		return 1
	}
	tables := []*Table{pred}
	var cond *Table
	if *condFilename != "" {
		cond, err = ReadTable("condition", *condFilename)
		if err != nil {
			return 1
		}
		tables = append(tables, cond)
	}
	err = AlignTables(resp, tables...)
	if err != nil {
		return 1
	}

	log.Infof("fitting rda: %d sites, %d loci, %d predictors", len(resp.Rows), len(resp.Cols), len(pred.Cols))
	mdl, err := FitRDA(resp, pred, cond)
	if err != nil {
		return 1
	}
	report, err := buildModelReport(mdl, *nperm, rand.NewSource(*seed))
	if err != nil {
		return 1
	}
	report.Candidates = scanSignificantAxes(mdl, report.Axes, *zcut)

	output, err := openOutput(*outputFilename, stdout)
	if err != nil {
		return 1
	}
	defer output.Close()
	enc := json.NewEncoder(output)
	enc.SetIndent("", "  ")
	err = enc.Encode(report)
	if err != nil {
		return 1
	}
	err = output.Close()
	if err != nil {
		return 1
	}
	return 0
}

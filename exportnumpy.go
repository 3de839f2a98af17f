// Copyright (C) The Seascape RDA Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package seascape

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/kshedden/gonpy"
	log "github.com/sirupsen/logrus"
)

// exportNumpy refits an RDA and writes one of its matrices as .npy, for
// downstream work in numpy/scikit-allel. Row labels go to a separate
// plain-text file because npy files carry no annotation.
type exportNumpy struct{}

func (cmd *exportNumpy) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
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
	outputFilename := flags.String("o", "-", "output `file` (.npy)")
	labelsFilename := flags.String("labels", "", "also write row labels to `file`, one per line")
	what := flags.String("what", "loadings", "matrix to export: loadings (loci x axes) or scores (sites x axes)")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	} else if *freqFilename == "" || *predFilename == "" {
		err = errors.New("must specify -freq and -predictors")
		return 2
	} else if *what != "loadings" && *what != "scores" {
		err = fmt.Errorf("unknown -what %q", *what)
		return 2
	}

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
	mdl, err := FitRDA(resp, pred, cond)
	if err != nil {
		return 1
	}

	matrix := mdl.Loadings
	labels := mdl.Loci
	if *what == "scores" {
		matrix = mdl.SiteScores
		labels = mdl.Sites
	}
	rows, cols := matrix.Dims()
	out := make([]float64, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out[i*cols+j] = matrix.At(i, j)
		}
	}

	output, err := openOutput(*outputFilename, stdout)
	if err != nil {
		return 1
	}
	defer output.Close()
	bufw := bufio.NewWriter(output)
	npw, err := gonpy.NewWriter(nopCloser{bufw})
	if err != nil {
		return 1
	}
	npw.Shape = []int{rows, cols}
	log.Printf("writing numpy %s: %d rows, %d cols", *what, rows, cols)
	err = npw.WriteFloat64(out)
	if err != nil {
		return 1
	}
	err = bufw.Flush()
	if err != nil {
		return 1
	}
	err = output.Close()
	if err != nil {
		return 1
	}

	if *labelsFilename != "" {
		var lf io.WriteCloser
		lf, err = os.OpenFile(*labelsFilename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0777)
		if err != nil {
			return 1
		}
		defer lf.Close()
		for _, l := range labels {
			if _, err = fmt.Fprintln(lf, l); err != nil {
				return 1
			}
		}
		if err = lf.Close(); err != nil {
			return 1
		}
	}
	return 0
}

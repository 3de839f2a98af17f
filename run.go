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
	"strings"

	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/rand"
)

// runcmd is the whole pipeline: load and align the three matrices, apply
// the configured collinearity exclusions, forward-select environmental and
// spatial predictors independently, fit the full and the partial (env |
// space) RDA, flag candidate loci on significant axes, render both
// biplots, and print a JSON summary.
type runcmd struct {
	freqFilename string
	memFilename  string
	envFilename  string
	excludeEnv   string
	plotFull     string
	plotPartial  string
	alpha        float64
	zcut         float64
	corrWarn     float64
	nperm        int
	seed         uint64
}

// RunSummary is the pipeline's console/log output object.
type RunSummary struct {
	Sites              int
	Loci               int
	SiteRegions        map[string]string
	ExcludedEnv        []string    `json:",omitempty"`
	EnvCorrelatedPairs []string    `json:",omitempty"`
	EnvSelected        []SelectedVar
	SpatialSelected    []SelectedVar
	FullModel          *ModelReport
	PartialModel       *ModelReport
	Candidates         []Candidate `json:",omitempty"`
	Plots              []string
}

func (cmd *runcmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVar(&cmd.freqFilename, "freq", "", "allele frequency matrix `file`")
	flags.StringVar(&cmd.memFilename, "mem", "", "dbMEM spatial eigenvector `file`")
	flags.StringVar(&cmd.envFilename, "env", "", "environmental matrix `file`")
	flags.StringVar(&cmd.excludeEnv, "exclude", "", "comma-separated environmental `variables` to drop before selection (the manual collinearity decision)")
	flags.StringVar(&cmd.plotFull, "plot-full", "rda_biplot.png", "full-model biplot output `file`")
	flags.StringVar(&cmd.plotPartial, "plot-partial", "partial_rda_biplot.png", "partial-model biplot output `file`")
	flags.Float64Var(&cmd.alpha, "alpha", 0.01, "forward selection significance threshold")
	flags.Float64Var(&cmd.zcut, "z", 2.5, "loading outlier threshold in standard deviations")
	flags.Float64Var(&cmd.corrWarn, "corr-warn", 0.7, "warn about retained environmental pairs with |r| at or above this")
	flags.IntVar(&cmd.nperm, "permutations", 999, "number of permutations for significance tests")
	flags.Uint64Var(&cmd.seed, "seed", 123, "random seed, set once for the whole pipeline")
	outputFilename := flags.String("o", "-", "summary JSON output `file`")
	loglevel := flags.String("loglevel", "info", "logging threshold (trace, debug, info, warn, error, fatal, or panic)")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	} else if cmd.freqFilename == "" || cmd.memFilename == "" || cmd.envFilename == "" {
		err = errors.New("must specify -freq, -mem and -env")
		return 2
	}
	lvl, err := log.ParseLevel(*loglevel)
	if err != nil {
		return 2
	}
	log.SetLevel(lvl)

	summary, err := cmd.run()
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
	err = enc.Encode(summary)
	if err != nil {
		return 1
	}
	err = output.Close()
	if err != nil {
		return 1
	}
	return 0
}

func (cmd *runcmd) run() (*RunSummary, error) {
	log.Info("reading tables")
	freq, err := ReadTable("freq", cmd.freqFilename)
	if err != nil {
		return nil, err
	}
	mem, err := ReadTable("mem", cmd.memFilename)
	if err != nil {
		return nil, err
	}
	env, err := ReadTable("env", cmd.envFilename)
	if err != nil {
		return nil, err
	}
	if err = AlignTables(freq, mem, env); err != nil {
		return nil, err
	}
	log.Infof("aligned %d sites, %d loci, %d spatial + %d environmental variables",
		len(freq.Rows), len(freq.Cols), len(mem.Cols), len(env.Cols))

	regions, err := SiteRegions(freq.Rows)
	if err != nil {
		return nil, err
	}

	summary := &RunSummary{
		Sites:       len(freq.Rows),
		Loci:        len(freq.Cols),
		SiteRegions: regions,
	}

	if cmd.excludeEnv != "" {
		summary.ExcludedEnv = strings.Split(cmd.excludeEnv, ",")
		if env, err = env.Drop(summary.ExcludedEnv); err != nil {
			return nil, err
		}
		log.Infof("dropped %d environmental variables, %d remain", len(summary.ExcludedEnv), len(env.Cols))
	}
	summary.EnvCorrelatedPairs = CorrelatedPairs(CorrTable(env), cmd.corrWarn)
	for _, pair := range summary.EnvCorrelatedPairs {
		log.Warnf("retained environmental variables still correlated: %s", pair)
	}

	// One source, seeded once, drives every permutation test in order.
	src := rand.NewSource(cmd.seed)

	log.Info("forward selection: environmental variables")
	summary.EnvSelected, err = ForwardSelect(freq, env, cmd.alpha, cmd.nperm, src)
	if err != nil {
		return nil, err
	}
	log.Infof("retained %v", selectedNames(summary.EnvSelected))

	log.Info("forward selection: spatial variables")
	summary.SpatialSelected, err = ForwardSelect(freq, mem, cmd.alpha, cmd.nperm, src)
	if err != nil {
		return nil, err
	}
	log.Infof("retained %v", selectedNames(summary.SpatialSelected))

	envSel, err := env.Select(selectedNames(summary.EnvSelected))
	if err != nil {
		return nil, err
	}
	memSel, err := mem.Select(selectedNames(summary.SpatialSelected))
	if err != nil {
		return nil, err
	}
	combined, err := ConcatCols("predictors", envSel, memSel)
	if err != nil {
		return nil, err
	}

	log.Info("fitting full model")
	full, err := FitRDA(freq, combined, nil)
	if err != nil {
		return nil, err
	}
	if summary.FullModel, err = buildModelReport(full, cmd.nperm, src); err != nil {
		return nil, err
	}
	log.Infof("full model: adjusted R²=%.4f, global p=%.4f", full.AdjR2, summary.FullModel.Global.P)

	log.Info("fitting partial model (environment | space)")
	partial, err := FitRDA(freq, envSel, memSel)
	if err != nil {
		return nil, err
	}
	if summary.PartialModel, err = buildModelReport(partial, cmd.nperm, src); err != nil {
		return nil, err
	}
	log.Infof("partial model: adjusted R²=%.4f, global p=%.4f", partial.AdjR2, summary.PartialModel.Global.P)

	summary.Candidates = scanSignificantAxes(full, summary.FullModel.Axes, cmd.zcut)
	log.Infof("%d candidate loci outside mean ± %.1f sd on significant axes", len(summary.Candidates), cmd.zcut)

	if err = SaveBiplot(cmd.plotFull, "RDA of allele frequencies", full, regions,
		biplotLayout{legendTop: true, legendLeft: false}); err != nil {
		return nil, err
	}
	if err = SaveBiplot(cmd.plotPartial, "Partial RDA (environment | space)", partial, regions,
		biplotLayout{legendTop: false, legendLeft: true}); err != nil {
		return nil, err
	}
	summary.Plots = []string{cmd.plotFull, cmd.plotPartial}
	return summary, nil
}

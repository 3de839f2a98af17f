// Copyright (C) The Seascape RDA Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package seascape

import (
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// biplotLayout controls the only thing that differs between the full and
// partial biplot variants: where the legend sits.
type biplotLayout struct {
	legendTop  bool
	legendLeft bool
}

// SaveBiplot renders the first two canonical axes: one scatter per region
// in the fixed palette, predictor vectors as labeled arrows from the
// origin, adjusted R² in the title. A model with a single canonical axis
// is plotted against the first residual principal component instead. The
// image size is fixed at 8x6 inches.
func SaveBiplot(path, title string, mdl *RDAModel, regions map[string]string, layout biplotLayout) error {
	if mdl.Rank() < 1 {
		return fmt.Errorf("biplot: model has no canonical axes")
	}
	vert := func(i int) float64 { return mdl.SiteScores.At(i, 1) }
	vertLabel := ""
	if mdl.Rank() >= 2 {
		vertLabel = fmt.Sprintf("RDA2 (%.1f%%)", 100*mdl.AxisProportion(1))
	} else if mdl.residScores != nil {
		vert = func(i int) float64 { return mdl.residScores[i] }
		vertLabel = fmt.Sprintf("PC1 (%.1f%% residual)", 100*mdl.residProp)
	} else {
		return fmt.Errorf("biplot: model has 1 canonical axis and no residual variance")
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s (adjusted R² = %.3f)", title, mdl.AdjR2)
	p.X.Label.Text = fmt.Sprintf("RDA1 (%.1f%%)", 100*mdl.AxisProportion(0))
	p.Y.Label.Text = vertLabel

	var maxScore float64
	for _, region := range regionOrder {
		pts := plotter.XYs{}
		for i, site := range mdl.Sites {
			if regions[site] != region {
				continue
			}
			x, y := mdl.SiteScores.At(i, 0), vert(i)
			pts = append(pts, plotter.XY{X: x, Y: y})
			maxScore = math.Max(maxScore, math.Max(math.Abs(x), math.Abs(y)))
		}
		if len(pts) == 0 {
			continue
		}
		sc, err := plotter.NewScatter(pts)
		if err != nil {
			return err
		}
		sc.GlyphStyle.Color = regionColors[region]
		sc.GlyphStyle.Radius = vg.Points(3.5)
		sc.GlyphStyle.Shape = draw.CircleGlyph{}
		p.Add(sc)
		p.Legend.Add(region, sc)
	}

	// Predictor arrows, rescaled to sit among the site points. On the
	// residual fallback axis every predictor has a zero vertical
	// component: the residual is orthogonal to the constrained space.
	biplotY := func(j int) float64 {
		if mdl.Rank() < 2 {
			return 0
		}
		return mdl.BiplotScores.At(j, 1)
	}
	var maxBiplot float64
	for j := range mdl.Predictors {
		maxBiplot = math.Max(maxBiplot, math.Hypot(mdl.BiplotScores.At(j, 0), biplotY(j)))
	}
	scale := 1.0
	if maxBiplot > 0 {
		scale = 0.8 * maxScore / maxBiplot
	}
	labels := plotter.XYLabels{}
	for j, name := range mdl.Predictors {
		tip := plotter.XY{
			X: mdl.BiplotScores.At(j, 0) * scale,
			Y: biplotY(j) * scale,
		}
		arrow, err := plotter.NewLine(plotter.XYs{{X: 0, Y: 0}, tip})
		if err != nil {
			return err
		}
		arrow.Color = color.RGBA{A: 255}
		arrow.Width = vg.Points(1)
		p.Add(arrow)
		labels.XYs = append(labels.XYs, tip)
		labels.Labels = append(labels.Labels, name)
	}
	if len(labels.XYs) > 0 {
		lbl, err := plotter.NewLabels(labels)
		if err != nil {
			return err
		}
		p.Add(lbl)
	}

	p.Legend.Top = layout.legendTop
	p.Legend.Left = layout.legendLeft
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	return p.Save(8*vg.Inch, 6*vg.Inch, path)
}

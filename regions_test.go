// Copyright (C) The Seascape RDA Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package seascape

import (
	"gopkg.in/check.v1"
)

type regionSuite struct{}

var _ = check.Suite(&regionSuite{})

var referenceSites = []string{
	"Ale", "Ber", "Brd", "Cor", "Cro", "Eye", "Flo", "Gul", "Hel", "Her",
	"Idr16", "Idr17", "Iom", "Ios", "Jer", "Kav", "Kil", "Laz", "Loo", "Lyn",
	"Lys", "Mul", "Oos", "Ork", "Pad", "Pem", "Sar13", "Sar17", "Sbs", "She",
	"Sky", "Tar", "The", "Tor", "Tro", "Ven", "Vig",
}

func (s *regionSuite) TestReferenceSitesAllMapped(c *check.C) {
	regions, err := SiteRegions(referenceSites)
	c.Assert(err, check.IsNil)
	c.Assert(regions, check.HasLen, len(referenceSites))

	counts := map[string]int{}
	for _, region := range regions {
		counts[region]++
	}
	c.Check(counts, check.DeepEquals, map[string]int{
		RegionScandinavia: 7,
		RegionAtlantic:    22,
		RegionCentralMed:  4,
		RegionAegean:      4,
	})
}

func (s *regionSuite) TestYearSuffixIsIgnored(c *check.C) {
	for code, want := range map[string]string{
		"Sar13": RegionCentralMed,
		"Sar17": RegionCentralMed,
		"Idr16": RegionAtlantic,
		"Vig":   RegionAtlantic,
		"Tro":   RegionScandinavia,
		"The":   RegionAegean,
	} {
		region, err := SiteRegion(code)
		c.Assert(err, check.IsNil, check.Commentf("code %q", code))
		c.Check(region, check.Equals, want)
	}
}

func (s *regionSuite) TestUnknownSiteCode(c *check.C) {
	_, err := SiteRegion("Xyz42")
	c.Check(err, check.ErrorMatches, `site code "Xyz42": no region defined for prefix "Xyz"`)

	_, err = SiteRegions([]string{"Vig", "Xyz"})
	c.Check(err, check.NotNil)
}

func (s *regionSuite) TestPaletteCoversAllRegions(c *check.C) {
	c.Assert(regionOrder, check.HasLen, 4)
	seen := map[[3]uint8]bool{}
	for _, region := range regionOrder {
		col, ok := regionColors[region]
		c.Assert(ok, check.Equals, true, check.Commentf("region %q", region))
		c.Check(col.A, check.Equals, uint8(255))
		key := [3]uint8{col.R, col.G, col.B}
		c.Check(seen[key], check.Equals, false)
		seen[key] = true
	}
}

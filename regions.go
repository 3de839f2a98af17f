// Copyright (C) The Seascape RDA Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package seascape

import (
	"fmt"
	"image/color"
	"strings"
)

// Regions, in the fixed order used by legends and palettes.
const (
	RegionScandinavia = "Scandinavia"
	RegionAtlantic    = "Atlantic"
	RegionCentralMed  = "Central Mediterranean"
	RegionAegean      = "Aegean Sea"
)

var regionOrder = []string{RegionScandinavia, RegionAtlantic, RegionCentralMed, RegionAegean}

// regionColors is the fixed palette: one hex color per region.
var regionColors = map[string]color.RGBA{
	RegionScandinavia: hexColor("#377eb8"),
	RegionAtlantic:    hexColor("#4daf4a"),
	RegionCentralMed:  hexColor("#ff7f00"),
	RegionAegean:      hexColor("#e41a1c"),
}

// siteRegions maps every site-code prefix of the reference dataset to its
// region. Exhaustive by construction: SiteRegion errors on anything not
// listed here, it never guesses.
var siteRegions = map[string]string{
	"Ber": RegionScandinavia,
	"Flo": RegionScandinavia,
	"Gul": RegionScandinavia,
	"Hel": RegionScandinavia,
	"Lys": RegionScandinavia,
	"Oos": RegionScandinavia,
	"Tro": RegionScandinavia,

	"Ale": RegionAtlantic,
	"Brd": RegionAtlantic,
	"Cor": RegionAtlantic,
	"Cro": RegionAtlantic,
	"Eye": RegionAtlantic,
	"Idr": RegionAtlantic,
	"Iom": RegionAtlantic,
	"Ios": RegionAtlantic,
	"Jer": RegionAtlantic,
	"Kil": RegionAtlantic,
	"Loo": RegionAtlantic,
	"Lyn": RegionAtlantic,
	"Mul": RegionAtlantic,
	"Ork": RegionAtlantic,
	"Pad": RegionAtlantic,
	"Pem": RegionAtlantic,
	"Sbs": RegionAtlantic,
	"She": RegionAtlantic,
	"Tor": RegionAtlantic,
	"Ven": RegionAtlantic,
	"Vig": RegionAtlantic,

	"Laz": RegionCentralMed,
	"Sar": RegionCentralMed,
	"Tar": RegionCentralMed,

	"Her": RegionAegean,
	"Kav": RegionAegean,
	"Sky": RegionAegean,
	"The": RegionAegean,
}

// SiteRegion maps a site code to its region. Codes may carry a sampling
// year suffix (Sar13, Idr16); the lookup uses the leading letters only.
func SiteRegion(code string) (string, error) {
	prefix := strings.TrimRight(code, "0123456789")
	region, ok := siteRegions[prefix]
	if !ok {
		return "", fmt.Errorf("site code %q: no region defined for prefix %q", code, prefix)
	}
	return region, nil
}

// SiteRegions maps every site code, failing on the first unknown one so a
// typo cannot end up as an uncolored point on a biplot.
func SiteRegions(sites []string) (map[string]string, error) {
	out := make(map[string]string, len(sites))
	for _, code := range sites {
		region, err := SiteRegion(code)
		if err != nil {
			return nil, err
		}
		out[code] = region
	}
	return out, nil
}

func hexColor(s string) color.RGBA {
	var r, g, b uint8
	fmt.Sscanf(s, "#%02x%02x%02x", &r, &g, &b)
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

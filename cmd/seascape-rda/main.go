// Copyright (C) The Seascape RDA Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package main

import (
	seascape "github.com/grcvhon/seascape-rda-tutorial"
)

func main() {
	seascape.Main()
}

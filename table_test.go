// Copyright (C) The Seascape RDA Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package seascape

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/pgzip"
	"gopkg.in/check.v1"
)

type tableSuite struct{}

var _ = check.Suite(&tableSuite{})

func (s *tableSuite) TestReadCSV(c *check.C) {
	t, err := readTable("env", strings.NewReader(",sst,sss\nVig,17.5,35.1\nBer,9.2,33.0\n"))
	c.Assert(err, check.IsNil)
	c.Check(t.Rows, check.DeepEquals, []string{"Vig", "Ber"})
	c.Check(t.Cols, check.DeepEquals, []string{"sst", "sss"})
	c.Check(t.Data.At(1, 0), check.Equals, 9.2)
}

func (s *tableSuite) TestReadTSV(c *check.C) {
	t, err := readTable("env", strings.NewReader("\tsst\nVig\t17.5\nBer\t9.2\n"))
	c.Assert(err, check.IsNil)
	c.Check(t.Cols, check.DeepEquals, []string{"sst"})
	c.Check(t.Data.At(0, 0), check.Equals, 17.5)
}

func (s *tableSuite) TestReadGzip(c *check.C) {
	path := filepath.Join(c.MkDir(), "env.csv.gz")
	f, err := os.Create(path)
	c.Assert(err, check.IsNil)
	gz := pgzip.NewWriter(f)
	_, err = gz.Write([]byte(",sst\nVig,17.5\n"))
	c.Assert(err, check.IsNil)
	c.Assert(gz.Close(), check.IsNil)
	c.Assert(f.Close(), check.IsNil)

	t, err := ReadTable("env", path)
	c.Assert(err, check.IsNil)
	c.Check(t.Rows, check.DeepEquals, []string{"Vig"})
	c.Check(t.Data.At(0, 0), check.Equals, 17.5)
}

func (s *tableSuite) TestReadErrors(c *check.C) {
	for _, trial := range []struct{ in, errmatch string }{
		{",sst\n", `.*at least one data row.*`},
		{",sst\nVig,17.5\nVig,18.0\n", `.*duplicate row label "Vig".*`},
		{",sst\nVig,warm\n", `.*line 2.*`},
		{",sst,sss\nVig,17.5\n", `.*record on line 2: wrong number of fields.*|.*got 2 fields, header has 3.*`},
	} {
		_, err := readTable("env", strings.NewReader(trial.in))
		c.Check(err, check.ErrorMatches, trial.errmatch, check.Commentf("input %q", trial.in))
	}
}

func (s *tableSuite) TestAlignReorders(c *check.C) {
	freq, err := readTable("freq", strings.NewReader(",snp1\nVig,0.5\nBer,0.25\n"))
	c.Assert(err, check.IsNil)
	env, err := readTable("env", strings.NewReader(",sst\nBer,9.2\nVig,17.5\n"))
	c.Assert(err, check.IsNil)
	c.Assert(AlignTables(freq, env), check.IsNil)
	c.Check(env.Rows, check.DeepEquals, []string{"Vig", "Ber"})
	c.Check(env.Data.At(0, 0), check.Equals, 17.5)
	c.Check(env.Data.At(1, 0), check.Equals, 9.2)
}

func (s *tableSuite) TestAlignRejectsMismatch(c *check.C) {
	freq, err := readTable("freq", strings.NewReader(",snp1\nVig,0.5\nBer,0.25\n"))
	c.Assert(err, check.IsNil)
	env, err := readTable("env", strings.NewReader(",sst\nBer,9.2\nLaz,19.0\n"))
	c.Assert(err, check.IsNil)
	c.Check(AlignTables(freq, env), check.ErrorMatches, `env: site "Laz" not present in freq`)

	short, err := readTable("env", strings.NewReader(",sst\nBer,9.2\n"))
	c.Assert(err, check.IsNil)
	c.Check(AlignTables(freq, short), check.ErrorMatches, `env has 1 rows, freq has 2`)
}

func (s *tableSuite) TestDropAndSelect(c *check.C) {
	env, err := readTable("env", strings.NewReader(",sst,sbt,sss\nVig,17.5,15.0,35.1\nBer,9.2,8.0,33.0\n"))
	c.Assert(err, check.IsNil)

	kept, err := env.Drop([]string{"sbt"})
	c.Assert(err, check.IsNil)
	c.Check(kept.Cols, check.DeepEquals, []string{"sst", "sss"})

	_, err = env.Drop([]string{"stt"})
	c.Check(err, check.ErrorMatches, `env: no column "stt"`)

	_, err = env.Drop([]string{"sst", "sbt", "sss"})
	c.Check(err, check.ErrorMatches, `env: exclusion list removes every column`)

	sel, err := env.Select([]string{"sss", "sst"})
	c.Assert(err, check.IsNil)
	c.Check(sel.Cols, check.DeepEquals, []string{"sss", "sst"})
	c.Check(sel.Data.At(0, 0), check.Equals, 35.1)
	c.Check(sel.Data.At(0, 1), check.Equals, 17.5)
}

func (s *tableSuite) TestConcatCols(c *check.C) {
	a, err := readTable("a", strings.NewReader(",x\nVig,1\nBer,2\n"))
	c.Assert(err, check.IsNil)
	b, err := readTable("b", strings.NewReader(",y,z\nVig,3,5\nBer,4,6\n"))
	c.Assert(err, check.IsNil)
	joined, err := ConcatCols("ab", a, b)
	c.Assert(err, check.IsNil)
	c.Check(joined.Cols, check.DeepEquals, []string{"x", "y", "z"})
	c.Check(joined.Data.At(1, 2), check.Equals, 6.0)
}

func (s *tableSuite) TestWriteCSVRoundTrip(c *check.C) {
	orig, err := readTable("env", strings.NewReader(",sst,sss\nVig,17.5,35.1\nBer,9.2,33.0\n"))
	c.Assert(err, check.IsNil)
	var buf bytes.Buffer
	c.Assert(orig.WriteCSV(&buf), check.IsNil)
	back, err := readTable("env", &buf)
	c.Assert(err, check.IsNil)
	c.Check(back.Rows, check.DeepEquals, orig.Rows)
	c.Check(back.Cols, check.DeepEquals, orig.Cols)
	c.Check(back.Data.RawMatrix().Data, check.DeepEquals, orig.Data.RawMatrix().Data)
}

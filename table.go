// Copyright (C) The Seascape RDA Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package seascape

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/pgzip"
	"gonum.org/v1/gonum/mat"
)

// Table is a site-by-variable matrix read from a tabular text file. The
// first column of the file is the row label (site code), the first row is
// the header. Rows keeps file order until AlignTables reorders it.
type Table struct {
	Name string
	Rows []string
	Cols []string
	Data *mat.Dense
}

// ReadTable loads a CSV (or TSV, sniffed from the header line) matrix,
// transparently decompressing *.gz input.
func ReadTable(name, path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var rdr io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		defer gz.Close()
		rdr = gz
	}
	t, err := readTable(name, rdr)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

func readTable(name string, rdr io.Reader) (*Table, error) {
	buf, err := io.ReadAll(rdr)
	if err != nil {
		return nil, err
	}
	comma := ','
	if eol := strings.IndexByte(string(buf), '\n'); eol >= 0 && strings.ContainsRune(string(buf[:eol]), '\t') {
		comma = '\t'
	}
	cr := csv.NewReader(strings.NewReader(string(buf)))
	cr.Comma = comma
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("%s: need a header row and at least one data row", name)
	}
	hdr := records[0]
	if len(hdr) < 2 {
		return nil, fmt.Errorf("%s: need a row-label column and at least one data column", name)
	}
	t := &Table{
		Name: name,
		Cols: append([]string(nil), hdr[1:]...),
	}
	data := make([]float64, 0, (len(records)-1)*len(t.Cols))
	seen := map[string]bool{}
	for ln, rec := range records[1:] {
		if len(rec) != len(hdr) {
			return nil, fmt.Errorf("%s: line %d: got %d fields, header has %d", name, ln+2, len(rec), len(hdr))
		}
		if seen[rec[0]] {
			return nil, fmt.Errorf("%s: duplicate row label %q", name, rec[0])
		}
		seen[rec[0]] = true
		t.Rows = append(t.Rows, rec[0])
		for _, field := range rec[1:] {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("%s: line %d: %w", name, ln+2, err)
			}
			data = append(data, v)
		}
	}
	t.Data = mat.NewDense(len(t.Rows), len(t.Cols), data)
	return t, nil
}

// AlignTables verifies that every table has exactly the same row-label set
// as ref and reorders each one to ref's row order. A mismatched label set
// is an error: a silent join here corrupts every downstream fit.
func AlignTables(ref *Table, others ...*Table) error {
	want := map[string]int{}
	for i, r := range ref.Rows {
		want[r] = i
	}
	for _, t := range others {
		if len(t.Rows) != len(ref.Rows) {
			return fmt.Errorf("%s has %d rows, %s has %d", t.Name, len(t.Rows), ref.Name, len(ref.Rows))
		}
		for _, r := range t.Rows {
			if _, ok := want[r]; !ok {
				return fmt.Errorf("%s: site %q not present in %s", t.Name, r, ref.Name)
			}
		}
		reordered := mat.NewDense(len(t.Rows), len(t.Cols), nil)
		rows := make([]string, len(t.Rows))
		for i, r := range t.Rows {
			reordered.SetRow(want[r], t.Data.RawRowView(i))
			rows[want[r]] = r
		}
		t.Rows, t.Data = rows, reordered
	}
	return nil
}

// Select returns a new table containing the named columns, in the given
// order. The data matrix is shared by column copy, not aliased.
func (t *Table) Select(cols []string) (*Table, error) {
	idx := make([]int, 0, len(cols))
	for _, name := range cols {
		i := t.colIndex(name)
		if i < 0 {
			return nil, fmt.Errorf("%s: no column %q", t.Name, name)
		}
		idx = append(idx, i)
	}
	out := &Table{
		Name: t.Name,
		Rows: append([]string(nil), t.Rows...),
		Cols: append([]string(nil), cols...),
		Data: mat.NewDense(len(t.Rows), len(cols), nil),
	}
	for j, i := range idx {
		out.Data.SetCol(j, mat.Col(nil, i, t.Data))
	}
	return out, nil
}

// Drop returns a new table without the named columns. Naming a column that
// does not exist is an error, so a typo in an exclusion list cannot
// silently keep a collinear variable in the model.
func (t *Table) Drop(cols []string) (*Table, error) {
	drop := map[string]bool{}
	for _, name := range cols {
		if t.colIndex(name) < 0 {
			return nil, fmt.Errorf("%s: no column %q", t.Name, name)
		}
		drop[name] = true
	}
	keep := []string{}
	for _, name := range t.Cols {
		if !drop[name] {
			keep = append(keep, name)
		}
	}
	if len(keep) == 0 {
		return nil, fmt.Errorf("%s: exclusion list removes every column", t.Name)
	}
	return t.Select(keep)
}

// ConcatCols joins tables column-wise. All inputs must already share the
// same row order (AlignTables).
func ConcatCols(name string, tables ...*Table) (*Table, error) {
	if len(tables) == 0 {
		return nil, fmt.Errorf("%s: nothing to concatenate", name)
	}
	cols := 0
	for _, t := range tables[1:] {
		if err := sameRows(tables[0], t); err != nil {
			return nil, err
		}
	}
	for _, t := range tables {
		cols += len(t.Cols)
	}
	out := &Table{
		Name: name,
		Rows: append([]string(nil), tables[0].Rows...),
		Data: mat.NewDense(len(tables[0].Rows), cols, nil),
	}
	j := 0
	for _, t := range tables {
		for c := range t.Cols {
			out.Cols = append(out.Cols, t.Cols[c])
			out.Data.SetCol(j, mat.Col(nil, c, t.Data))
			j++
		}
	}
	return out, nil
}

func (t *Table) colIndex(name string) int {
	for i, c := range t.Cols {
		if c == name {
			return i
		}
	}
	return -1
}

// Column returns a copy of the named column.
func (t *Table) Column(name string) ([]float64, error) {
	i := t.colIndex(name)
	if i < 0 {
		return nil, fmt.Errorf("%s: no column %q", t.Name, name)
	}
	return mat.Col(nil, i, t.Data), nil
}

// WriteCSV writes the table in the same layout ReadTable accepts.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{""}, t.Cols...)); err != nil {
		return err
	}
	rec := make([]string, len(t.Cols)+1)
	for i, row := range t.Rows {
		rec[0] = row
		for j := range t.Cols {
			rec[j+1] = strconv.FormatFloat(t.Data.At(i, j), 'g', -1, 64)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

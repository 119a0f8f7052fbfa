/*
Copyright 2018 Iguazio Systems Ltd.

Licensed under the Apache License, Version 2.0 (the "License") with
an addition restriction as set forth herein. You may not use this
file except in compliance with the License. You may obtain a copy of
the License at http://www.apache.org/licenses/LICENSE-2.0.

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
implied. See the License for the specific language governing
permissions and limitations under the License.

In addition, you may not use the software for any purposes that are
illegal under applicable law, and the grant of the foregoing license
under the Apache 2.0 license is conditioned upon your compliance with
such restriction.
*/

package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nuclio/logger"
	"github.com/pkg/errors"

	"github.com/v3io/cubes"
	"github.com/v3io/cubes/backends"
)

// Backend is CSV backend
type Backend struct {
	logger logger.Logger
}

// NewBackend returns a new CSV backend
func NewBackend(logger logger.Logger) (backends.Backend, error) {
	return &Backend{logger: logger}, nil
}

// Read reads the whole file, column types are inferred from the values
func (b *Backend) Read(source *cubes.SourceConfig) (cubes.Frame, error) {
	file, err := os.Open(source.Path)
	if err != nil {
		return nil, err
	}
	defer file.Close() // nolint: errcheck

	return b.ReadFrom(file, source)
}

// ReadFrom reads CSV from r
func (b *Backend) ReadFrom(r io.Reader, source *cubes.SourceConfig) (cubes.Frame, error) {
	reader := csv.NewReader(r)
	if source.Delimiter != "" {
		delimiter, size := utf8.DecodeRuneInString(source.Delimiter)
		if size != len(source.Delimiter) {
			return nil, fmt.Errorf("bad delimiter - %q", source.Delimiter)
		}
		reader.Comma = delimiter
	}

	columnNames, err := reader.Read()
	if err != nil {
		return nil, errors.Wrap(err, "can't read header (columns)")
	}

	for i, name := range columnNames {
		columnNames[i] = strings.TrimSpace(name)
	}

	var rows [][]string
	for nRows := 0; source.Limit == 0 || nRows < source.Limit; nRows++ {
		row, err := reader.Read()
		if err != nil {
			if err == io.EOF {
				break
			}

			return nil, errors.Wrapf(err, "%s:%d can't read row", source.Path, nRows+1)
		}

		if len(row) != len(columnNames) {
			return nil, fmt.Errorf("%s:%d num columns don't match headers (%d != %d)", source.Path, nRows+1, len(row), len(columnNames))
		}

		rows = append(rows, row)
	}

	columns := make([]cubes.Column, len(columnNames))
	for c, colName := range columnNames {
		col, err := buildColumn(colName, c, rows)
		if err != nil {
			return nil, errors.Wrapf(err, "can't build column %s", colName)
		}
		columns[c] = col
	}

	b.logger.DebugWith("Read CSV", "path", source.Path, "rows", len(rows), "columns", columnNames)
	return cubes.NewFrame(columns)
}

func buildColumn(name string, c int, rows [][]string) (cubes.Column, error) {
	values := make([]interface{}, len(rows))
	dtype := cubes.UnknownType
	hasEmpty := false
	for r, row := range rows {
		cell := strings.TrimSpace(row[c])
		if cell == "" {
			hasEmpty = true
			continue
		}

		values[r] = parseValue(cell)
		dtype = unify(dtype, valueType(values[r]))
	}

	switch {
	case dtype == cubes.UnknownType:
		dtype = cubes.StringType
	case dtype == cubes.IntType && hasEmpty:
		dtype = cubes.FloatType // missing numbers are NaN
	}

	builder, err := cubes.NewSliceColumnBuilder(name, dtype, len(rows))
	if err != nil {
		return nil, err
	}

	for r, value := range values {
		switch {
		case value == nil && dtype == cubes.FloatType:
			value = math.NaN()
		case value == nil && dtype == cubes.TimeType:
			value = time.Time{}
		case value == nil && dtype == cubes.BoolType:
			value = false
		case dtype == cubes.StringType:
			value = strings.TrimSpace(rows[r][c])
		}

		if err := builder.Set(r, value); err != nil {
			return nil, errors.Wrapf(err, "row %d", r+1)
		}
	}

	return builder.Finish(), nil
}

// unify returns the type of a column holding values of type a and b
func unify(a, b cubes.DType) cubes.DType {
	switch {
	case a == cubes.UnknownType:
		return b
	case a == b:
		return a
	case a.IsNumeric() && b.IsNumeric():
		return cubes.FloatType
	}

	return cubes.StringType
}

func valueType(value interface{}) cubes.DType {
	switch value.(type) {
	case int64:
		return cubes.IntType
	case float64:
		return cubes.FloatType
	case time.Time:
		return cubes.TimeType
	case bool:
		return cubes.BoolType
	}

	return cubes.StringType
}

func parseValue(value string) interface{} {
	// Time
	t, err := time.Parse(time.RFC3339, value)
	if err == nil {
		return t
	}

	t, err = time.Parse(time.RFC3339Nano, value)
	if err == nil {
		return t
	}

	// Date
	t, err = time.Parse("2006-01-02", value)
	if err == nil {
		return t
	}

	// Int
	i, err := strconv.ParseInt(value, 10, 64)
	if err == nil {
		return i
	}

	f, err := strconv.ParseFloat(value, 64)
	if err == nil {
		return f
	}

	switch strings.ToLower(value) {
	case "true":
		return true
	case "false":
		return false
	}

	// Leave as string
	return value
}

// Write writes frame as CSV with a header line
func (b *Backend) Write(w io.Writer, frame cubes.Frame) error {
	writer := csv.NewWriter(w)
	names := frame.Names()
	if err := writer.Write(names); err != nil {
		return errors.Wrap(err, "can't write header")
	}

	columns := make([]cubes.Column, len(names))
	for c, name := range names {
		col, err := frame.Column(name)
		if err != nil {
			return errors.Wrap(err, "can't get column")
		}
		columns[c] = col
	}

	record := make([]string, len(names))
	for r := 0; r < frame.Len(); r++ {
		for c, col := range columns {
			val, err := col.ValueAt(r)
			if err != nil {
				return errors.Wrapf(err, "%s:%d can't get value", names[c], r)
			}

			record[c] = formatValue(val)
		}

		if err := writer.Write(record); err != nil {
			return errors.Wrap(err, "can't write record")
		}
	}

	writer.Flush()
	return writer.Error()
}

func formatValue(value interface{}) string {
	switch value := value.(type) {
	case float64:
		if math.IsNaN(value) {
			return ""
		}
		return strconv.FormatFloat(value, 'f', -1, 64)
	case time.Time:
		return value.Format(time.RFC3339Nano)
	}

	return fmt.Sprintf("%v", value)
}

func init() {
	if err := backends.Register("csv", NewBackend); err != nil {
		panic(err)
	}
}

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

package cubes

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/pkg/errors"
)

// frameImpl is a frame implementation
type frameImpl struct {
	columns []Column
	byName  map[string]int // name -> index in columns
}

// NewFrame returns a new Frame
func NewFrame(columns []Column) (Frame, error) {
	if err := checkEqualLen(columns); err != nil {
		return nil, err
	}

	byName := make(map[string]int)
	for i, col := range columns {
		if _, ok := byName[col.Name()]; ok {
			return nil, fmt.Errorf("duplicate column %q", col.Name())
		}
		byName[col.Name()] = i
	}

	frame := &frameImpl{
		columns: columns,
		byName:  byName,
	}

	return frame, nil
}

// NewFrameFromMap returns a new Frame from a map of name -> slice. Columns are
// ordered by names, missing names are appended in sorted order.
func NewFrameFromMap(columns map[string]interface{}, names []string) (Frame, error) {
	names = orderNames(columns, names)
	cols := make([]Column, len(names))
	for i, name := range names {
		values, ok := columns[name]
		if !ok {
			return nil, fmt.Errorf("column %q not found", name)
		}

		column, err := NewSliceColumn(name, values)
		if err != nil {
			return nil, errors.Wrapf(err, "can't create column %q", name)
		}
		cols[i] = column
	}

	return NewFrame(cols)
}

// NewFrameFromRows creates a new frame from rows. Columns are ordered by names,
// missing names are appended in sorted order.
func NewFrameFromRows(rows []map[string]interface{}, names []string) (Frame, error) {
	frameCols := make(map[string]Column)
	for rowNum, row := range rows {
		for name, value := range row {
			if value == nil {
				continue
			}

			col, ok := frameCols[name]
			if !ok {
				var err error
				col, err = newColumn(name, value)
				if err != nil {
					return nil, errors.Wrapf(err, "row %d", rowNum)
				}
				frameCols[name] = col
			}

			if err := extendCol(col, rowNum); err != nil {
				return nil, err
			}

			if err := colAppend(col, value); err != nil {
				return nil, errors.Wrapf(err, "row %d", rowNum)
			}
		}
	}

	// Extend columns missing in the last rows
	for _, col := range frameCols {
		if err := extendCol(col, len(rows)); err != nil {
			return nil, err
		}
	}

	byName := make(map[string]interface{}, len(frameCols))
	for name, col := range frameCols {
		byName[name] = col
	}

	names = orderNames(byName, names)
	columns := make([]Column, 0, len(names))
	for _, name := range names {
		col, ok := frameCols[name]
		if !ok {
			return nil, fmt.Errorf("column %q not found", name)
		}
		columns = append(columns, col)
	}

	return NewFrame(columns)
}

// Names returns the column names
func (fi *frameImpl) Names() []string {
	names := make([]string, len(fi.columns))

	for i := 0; i < len(fi.columns); i++ {
		names[i] = fi.columns[i].Name()
	}

	return names
}

// Len is the number of rows
func (fi *frameImpl) Len() int {
	if len(fi.columns) > 0 {
		return fi.columns[0].Len()
	}

	return 0
}

// Column gets a column by name
func (fi *frameImpl) Column(name string) (Column, error) {
	i, ok := fi.byName[name]
	if !ok {
		return nil, fmt.Errorf("column %q not found", name)
	}

	return fi.columns[i], nil
}

// Slice return a new Frame with is slice of the original
func (fi *frameImpl) Slice(start int, end int) (Frame, error) {
	if err := validateSlice(start, end, fi.Len()); err != nil {
		return nil, err
	}

	slices := make([]Column, len(fi.columns))
	for i, col := range fi.columns {
		slice, err := col.Slice(start, end)
		if err != nil {
			return nil, errors.Wrapf(err, "can't get slice from %q", col.Name())
		}

		slices[i] = slice
	}

	return NewFrame(slices)
}

// Take returns a new frame with a copy of the given rows
func (fi *frameImpl) Take(rows []int) (Frame, error) {
	columns := make([]Column, len(fi.columns))
	for i, col := range fi.columns {
		taker, ok := col.(colTaker)
		if !ok {
			return nil, fmt.Errorf("column %q does not support take", col.Name())
		}

		taken, err := taker.Take(rows)
		if err != nil {
			return nil, errors.Wrapf(err, "can't take rows from %q", col.Name())
		}
		columns[i] = taken
	}

	return NewFrame(columns)
}

// Set sets a single value in place
func (fi *frameImpl) Set(name string, row int, value interface{}) error {
	col, err := fi.Column(name)
	if err != nil {
		return err
	}

	setter, ok := col.(colSetter)
	if !ok {
		return fmt.Errorf("column %q does not support setting values", name)
	}

	return setter.Set(row, value)
}

// DeleteRows removes rows from all columns
func (fi *frameImpl) DeleteRows(rows []int) error {
	if len(rows) == 0 {
		return nil
	}

	rows = sortedUnique(rows)
	if rows[0] < 0 || rows[len(rows)-1] >= fi.Len() {
		return fmt.Errorf("rows out of bounds [0:%d]", fi.Len())
	}

	for _, col := range fi.columns {
		if _, ok := col.(colDeleter); !ok {
			return fmt.Errorf("column %q does not support deletion", col.Name())
		}
	}

	for _, col := range fi.columns {
		if err := col.(colDeleter).Delete(rows); err != nil {
			return errors.Wrapf(err, "can't delete rows from %q", col.Name())
		}
	}

	return nil
}

// IterRows returns iterator over rows
func (fi *frameImpl) IterRows() RowIterator {
	return newRowIterator(fi)
}

// FrameMessage is over-the-wire frame data
type FrameMessage struct {
	Columns []*SliceColumnMessage `msgpack:"columns,omitempty"`
	Error   string                `msgpack:"error,omitempty"`
}

// Marshal marshals to native type
func (fi *frameImpl) Marshal() (interface{}, error) {
	msg := &FrameMessage{
		Columns: make([]*SliceColumnMessage, len(fi.columns)),
	}

	for i, col := range fi.columns {
		marshaler, ok := col.(Marshaler)
		if !ok {
			return nil, fmt.Errorf("column %q is not Marshaler", col.Name())
		}

		colMsg, err := marshaler.Marshal()
		if err != nil {
			return nil, errors.Wrapf(err, "can't marshal %q", col.Name())
		}

		sliceMsg, ok := colMsg.(*SliceColumnMessage)
		if !ok {
			return nil, fmt.Errorf("unknown marshaled message type - %T", colMsg)
		}
		msg.Columns[i] = sliceMsg
	}

	return msg, nil
}

func validateSlice(start int, end int, size int) error {
	if start < 0 || end < 0 {
		return fmt.Errorf("negative indexing not supported")
	}

	if end < start {
		return fmt.Errorf("end < start")
	}

	if end > size {
		return fmt.Errorf("end out of bounds")
	}

	return nil
}

func checkEqualLen(columns []Column) error {
	size := -1
	for _, col := range columns {
		if size == -1 { // first column
			size = col.Len()
			continue
		}

		if colSize := col.Len(); colSize != size {
			return fmt.Errorf("%q column size mismatch (%d != %d)", col.Name(), colSize, size)
		}
	}

	return nil
}

func orderNames(columns map[string]interface{}, names []string) []string {
	seen := make(map[string]bool, len(names))
	ordered := make([]string, 0, len(columns))
	for _, name := range names {
		if !seen[name] {
			ordered = append(ordered, name)
			seen[name] = true
		}
	}

	var rest []string
	for name := range columns {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)

	return append(ordered, rest...)
}

func zeroValue(dtype DType) (interface{}, error) {
	switch dtype {
	case IntType:
		return int64(0), nil
	case FloatType:
		return math.NaN(), nil
	case StringType:
		return "", nil
	case TimeType:
		return time.Unix(0, 0), nil
	case BoolType:
		return false, nil
	}

	return nil, fmt.Errorf("unsupported data type - %s", dtype)
}

func extendCol(col Column, size int) error {
	if col.Len() >= size {
		return nil
	}

	value, err := zeroValue(col.DType())
	if err != nil {
		return err
	}

	for col.Len() < size {
		if err := colAppend(col, value); err != nil {
			return err
		}
	}

	return nil
}

func newColumn(name string, value interface{}) (Column, error) {
	var data interface{}
	switch dtypeOf(value) {
	case IntType:
		data = []int64{}
	case FloatType:
		data = []float64{}
	case StringType:
		data = []string{}
	case TimeType:
		data = []time.Time{}
	case BoolType:
		data = []bool{}
	default:
		return nil, fmt.Errorf("unsupported type %T", value)
	}

	return NewSliceColumn(name, data)
}

type colAppender interface {
	Append(value interface{}) error
}

type colSetter interface {
	Set(i int, value interface{}) error
}

type colTaker interface {
	Take(rows []int) (Column, error)
}

type colDeleter interface {
	Delete(rows []int) error
}

func colAppend(col Column, value interface{}) error {
	ca, ok := col.(colAppender)
	if !ok {
		return fmt.Errorf("column does not support appending")
	}

	return ca.Append(value)
}

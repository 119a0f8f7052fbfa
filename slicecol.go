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
)

// SliceColumn is a column with slice data
type SliceColumn struct {
	name string
	data interface{}
	size int
}

// NewSliceColumn return a new SliceColumn
func NewSliceColumn(name string, data interface{}) (*SliceColumn, error) {
	var size int

	switch typedData := data.(type) {
	case []int:
		ints := make([]int64, len(typedData))
		for i, v := range typedData {
			ints[i] = int64(v)
		}
		data, size = ints, len(ints)
	case []int64:
		size = len(typedData)
	case []float64:
		size = len(typedData)
	case []string:
		size = len(typedData)
	case []time.Time:
		size = len(typedData)
	case []bool:
		size = len(typedData)
	default:
		return nil, fmt.Errorf("unsupported data type - %T", data)
	}

	sc := &SliceColumn{
		data: data,
		name: name,
		size: size,
	}

	return sc, nil
}

// Name returns the column name
func (sc *SliceColumn) Name() string {
	return sc.name
}

// Len returns the number of elements
func (sc *SliceColumn) Len() int {
	return sc.size
}

// DType returns the data type
func (sc *SliceColumn) DType() DType {
	switch sc.data.(type) {
	case []int64:
		return IntType
	case []float64:
		return FloatType
	case []string:
		return StringType
	case []time.Time:
		return TimeType
	case []bool:
		return BoolType
	}

	return UnknownType
}

// Ints returns data as []int64
func (sc *SliceColumn) Ints() ([]int64, error) {
	typedCol, ok := sc.data.([]int64)
	if !ok {
		return nil, fmt.Errorf("wrong type (type is %s)", sc.DType())
	}

	return typedCol, nil
}

// IntAt returns int value at index i
func (sc *SliceColumn) IntAt(i int) (int64, error) {
	if err := sc.checkIndex(i); err != nil {
		return 0, err
	}

	typedCol, err := sc.Ints()
	if err != nil {
		return 0, err
	}

	return typedCol[i], nil
}

// Floats returns data as []float64
func (sc *SliceColumn) Floats() ([]float64, error) {
	typedCol, ok := sc.data.([]float64)
	if !ok {
		return nil, fmt.Errorf("wrong type (type is %s)", sc.DType())
	}

	return typedCol, nil
}

// FloatAt returns float64 value at index i
func (sc *SliceColumn) FloatAt(i int) (float64, error) {
	if err := sc.checkIndex(i); err != nil {
		return 0, err
	}

	typedCol, err := sc.Floats()
	if err != nil {
		return 0, err
	}

	return typedCol[i], nil
}

// intToFloat convert an int col to a float64 col
func (sc *SliceColumn) intToFloat() {
	ints, _ := sc.Ints()
	newData := make([]float64, sc.size)
	for i, v := range ints {
		newData[i] = float64(v)
	}
	sc.data = newData
}

// Strings returns data as []string
func (sc *SliceColumn) Strings() []string {
	typedCol, ok := sc.data.([]string)
	if ok {
		return typedCol
	}

	typedCol = make([]string, sc.Len())
	for i := 0; i < sc.Len(); i++ {
		value, _ := sc.ValueAt(i)
		if t, ok := value.(time.Time); ok {
			typedCol[i] = t.Format(time.RFC3339Nano)
			continue
		}
		typedCol[i] = fmt.Sprintf("%v", value)
	}

	return typedCol
}

// StringAt returns string value at index i
func (sc *SliceColumn) StringAt(i int) (string, error) {
	if err := sc.checkIndex(i); err != nil {
		return "", err
	}

	typedCol, ok := sc.data.([]string)
	if !ok {
		return "", fmt.Errorf("wrong type (type is %s)", sc.DType())
	}

	return typedCol[i], nil
}

// Times returns data as []time.Time
func (sc *SliceColumn) Times() ([]time.Time, error) {
	typedCol, ok := sc.data.([]time.Time)
	if !ok {
		return nil, fmt.Errorf("wrong type (type is %s)", sc.DType())
	}

	return typedCol, nil
}

// TimeAt returns time.Time value at index i
func (sc *SliceColumn) TimeAt(i int) (time.Time, error) {
	if err := sc.checkIndex(i); err != nil {
		return time.Time{}, err
	}

	typedCol, err := sc.Times()
	if err != nil {
		return time.Time{}, err
	}

	return typedCol[i], nil
}

// Bools returns data as []bool
func (sc *SliceColumn) Bools() ([]bool, error) {
	typedCol, ok := sc.data.([]bool)
	if !ok {
		return nil, fmt.Errorf("wrong type (type is %s)", sc.DType())
	}

	return typedCol, nil
}

// BoolAt returns bool value at index i
func (sc *SliceColumn) BoolAt(i int) (bool, error) {
	if err := sc.checkIndex(i); err != nil {
		return false, err
	}

	typedCol, err := sc.Bools()
	if err != nil {
		return false, err
	}

	return typedCol[i], nil
}

// ValueAt returns the value at index i
func (sc *SliceColumn) ValueAt(i int) (interface{}, error) {
	switch sc.DType() {
	case IntType:
		return sc.IntAt(i)
	case FloatType:
		return sc.FloatAt(i)
	case StringType:
		return sc.StringAt(i)
	case TimeType:
		return sc.TimeAt(i)
	case BoolType:
		return sc.BoolAt(i)
	}

	return nil, fmt.Errorf("%s: unknown dtype - %s", sc.name, sc.DType())
}

// Slice returns a Column with is slice of data
func (sc *SliceColumn) Slice(start int, end int) (Column, error) {
	if err := validateSlice(start, end, sc.Len()); err != nil {
		return nil, err
	}

	var slice interface{}
	switch typedCol := sc.data.(type) {
	case []int64:
		slice = typedCol[start:end]
	case []float64:
		slice = typedCol[start:end]
	case []string:
		slice = typedCol[start:end]
	case []time.Time:
		slice = typedCol[start:end]
	case []bool:
		slice = typedCol[start:end]
	}

	return NewSliceColumn(sc.Name(), slice)
}

// Take returns a new column holding a copy of the values at rows
func (sc *SliceColumn) Take(rows []int) (Column, error) {
	for _, row := range rows {
		if err := sc.checkIndex(row); err != nil {
			return nil, err
		}
	}

	var data interface{}
	switch typedCol := sc.data.(type) {
	case []int64:
		out := make([]int64, len(rows))
		for i, row := range rows {
			out[i] = typedCol[row]
		}
		data = out
	case []float64:
		out := make([]float64, len(rows))
		for i, row := range rows {
			out[i] = typedCol[row]
		}
		data = out
	case []string:
		out := make([]string, len(rows))
		for i, row := range rows {
			out[i] = typedCol[row]
		}
		data = out
	case []time.Time:
		out := make([]time.Time, len(rows))
		for i, row := range rows {
			out[i] = typedCol[row]
		}
		data = out
	case []bool:
		out := make([]bool, len(rows))
		for i, row := range rows {
			out[i] = typedCol[row]
		}
		data = out
	}

	return NewSliceColumn(sc.name, data)
}

// Append appends a value
func (sc *SliceColumn) Append(value interface{}) error {
	if err := sc.grow(); err != nil {
		return err
	}

	if err := sc.Set(sc.size-1, value); err != nil {
		sc.shrink()
		return err
	}

	return nil
}

// Set sets the value at index i. Setting a non-integral float in an int column
// converts the column to float.
func (sc *SliceColumn) Set(i int, value interface{}) error {
	if err := sc.checkIndex(i); err != nil {
		return err
	}

	switch typedCol := sc.data.(type) {
	case []int64:
		if ival, ok := asInt64(value); ok {
			typedCol[i] = ival
			return nil
		}

		floatVal, ok := asFloat64(value)
		if !ok {
			return sc.typeError(value)
		}
		sc.intToFloat()
		floats, _ := sc.Floats()
		floats[i] = floatVal
	case []float64:
		floatVal, ok := asFloat64(value)
		if !ok {
			return sc.typeError(value)
		}
		typedCol[i] = floatVal
	case []string:
		typedVal, ok := value.(string)
		if !ok {
			return sc.typeError(value)
		}
		typedCol[i] = typedVal
	case []time.Time:
		typedVal, ok := value.(time.Time)
		if !ok {
			return sc.typeError(value)
		}
		typedCol[i] = typedVal
	case []bool:
		typedVal, ok := value.(bool)
		if !ok {
			return sc.typeError(value)
		}
		typedCol[i] = typedVal
	default:
		return fmt.Errorf("unknown column type - %s for %s", sc.DType(), sc.name)
	}

	return nil
}

// Delete removes the values at rows
func (sc *SliceColumn) Delete(rows []int) error {
	if len(rows) == 0 {
		return nil
	}

	drop := make(map[int]bool, len(rows))
	for _, row := range rows {
		if err := sc.checkIndex(row); err != nil {
			return err
		}
		drop[row] = true
	}

	keep := make([]int, 0, sc.size-len(drop))
	for i := 0; i < sc.size; i++ {
		if !drop[i] {
			keep = append(keep, i)
		}
	}

	col, err := sc.Take(keep)
	if err != nil {
		return err
	}

	taken := col.(*SliceColumn)
	sc.data, sc.size = taken.data, taken.size
	return nil
}

func (sc *SliceColumn) grow() error {
	switch typedCol := sc.data.(type) {
	case []int64:
		sc.data = append(typedCol, 0)
	case []float64:
		sc.data = append(typedCol, math.NaN())
	case []string:
		sc.data = append(typedCol, "")
	case []time.Time:
		sc.data = append(typedCol, time.Time{})
	case []bool:
		sc.data = append(typedCol, false)
	default:
		return fmt.Errorf("unknown column type - %s for %s", sc.DType(), sc.name)
	}

	sc.size++
	return nil
}

func (sc *SliceColumn) shrink() {
	sc.size--
	switch typedCol := sc.data.(type) {
	case []int64:
		sc.data = typedCol[:sc.size]
	case []float64:
		sc.data = typedCol[:sc.size]
	case []string:
		sc.data = typedCol[:sc.size]
	case []time.Time:
		sc.data = typedCol[:sc.size]
	case []bool:
		sc.data = typedCol[:sc.size]
	}
}

func (sc *SliceColumn) checkIndex(i int) error {
	if i < 0 || i >= sc.size {
		return fmt.Errorf("%s: index %d out of bounds [0:%d]", sc.name, i, sc.size)
	}

	return nil
}

func (sc *SliceColumn) typeError(value interface{}) error {
	return fmt.Errorf("wrong type for %s(%s) - %T", sc.name, sc.DType(), value)
}

// SliceColumnMessage is SliceColumn over-the-wire message
// We encode this way and not have single `Data interface{}` since msgpack
// then will packs []int64 to int8, int16 ...
type SliceColumnMessage struct {
	Name       string    `msgpack:"name"`
	DType      string    `msgpack:"dtype"`
	IntData    []int64   `msgpack:"ints,omitempty"`
	FloatData  []float64 `msgpack:"floats,omitempty"`
	StringData []string  `msgpack:"strings,omitempty"`
	BoolData   []bool    `msgpack:"bools,omitempty"`
	// Times are sent as epoch nanoseconds
	NSTimeData []int64 `msgpack:"ns_times,omitempty"`
}

// Marshal marshals to native type
func (sc *SliceColumn) Marshal() (interface{}, error) {
	msg := &SliceColumnMessage{
		Name:  sc.Name(),
		DType: sc.DType().String(),
	}

	switch typedCol := sc.data.(type) {
	case []int64:
		msg.IntData = typedCol
	case []float64:
		msg.FloatData = typedCol
	case []string:
		msg.StringData = typedCol
	case []time.Time:
		msg.NSTimeData = make([]int64, len(typedCol))
		for i, t := range typedCol {
			msg.NSTimeData[i] = t.UnixNano()
		}
	case []bool:
		msg.BoolData = typedCol
	default:
		return nil, fmt.Errorf("can't marshal column of type %s", sc.DType())
	}

	return msg, nil
}

// sortedUnique returns a sorted copy of rows without duplicates
func sortedUnique(rows []int) []int {
	out := make([]int, len(rows))
	copy(out, rows)
	sort.Ints(out)

	n := 0
	for i, row := range out {
		if i > 0 && row == out[n-1] {
			continue
		}
		out[n] = row
		n++
	}

	return out[:n]
}

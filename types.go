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
	"time"
)

// DType is data type
type DType int

// Possible data types
const (
	UnknownType DType = iota
	IntType
	FloatType
	StringType
	TimeType
	BoolType
)

func (d DType) String() string {
	switch d {
	case IntType:
		return "int"
	case FloatType:
		return "float"
	case StringType:
		return "string"
	case TimeType:
		return "time"
	case BoolType:
		return "bool"
	}

	return "unknown"
}

// IsNumeric returns true for int and float types
func (d DType) IsNumeric() bool {
	return d == IntType || d == FloatType
}

// Column is a data column
type Column interface {
	Len() int                                 // Number of elements
	Name() string                             // Column name
	DType() DType                             // Data type (e.g. IntType, FloatType ...)
	Ints() ([]int64, error)                   // Data as []int64
	IntAt(i int) (int64, error)               // Int value at index i
	Floats() ([]float64, error)               // Data as []float64
	FloatAt(i int) (float64, error)           // Float value at index i
	Strings() []string                        // Data as []string
	StringAt(i int) (string, error)           // String value at index i
	Times() ([]time.Time, error)              // Data as []time.Time
	TimeAt(i int) (time.Time, error)          // time.Time value at index i
	Bools() ([]bool, error)                   // Data as []bool
	BoolAt(i int) (bool, error)               // bool value at index i
	ValueAt(i int) (interface{}, error)       // Value at index i, typed by DType
	Slice(start int, end int) (Column, error) // Slice of data
}

// Frame is a collection of columns.
// A Frame is shared by reference between a cube and all of its contexts, writes
// are visible immediately to every reader. Frames are not safe for concurrent use.
type Frame interface {
	Names() []string                                     // Column names
	Len() int                                            // Number of rows
	Column(name string) (Column, error)                  // Column by name
	Slice(start int, end int) (Frame, error)             // Slice of Frame
	Take(rows []int) (Frame, error)                      // Copy of the given rows
	Set(column string, row int, value interface{}) error // Set a single value in place
	DeleteRows(rows []int) error                         // Remove rows in place
	IterRows() RowIterator                               // Iterate over rows
}

// RowIterator is an iterator over frame rows
type RowIterator interface {
	Next() bool                  // Advance to next row
	Row() map[string]interface{} // Row as map of name->value
	RowNum() int                 // Current row number
	Err() error                  // Iteration error
}

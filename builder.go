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
	"time"
)

// ColumnBuilder is interface for building columns
type ColumnBuilder interface {
	Append(value interface{}) error
	At(index int) (interface{}, error)
	Set(index int, value interface{}) error
	Finish() Column
}

// NewSliceColumnBuilder return a builder for SliceColumn
func NewSliceColumnBuilder(name string, dtype DType, size int) (ColumnBuilder, error) {
	if size < 0 {
		size = 0
	}

	var data interface{}
	switch dtype {
	case IntType:
		data = make([]int64, 0, size)
	case FloatType:
		data = make([]float64, 0, size)
	case StringType:
		data = make([]string, 0, size)
	case TimeType:
		data = make([]time.Time, 0, size)
	case BoolType:
		data = make([]bool, 0, size)
	default:
		return nil, fmt.Errorf("unsupported data type - %s", dtype)
	}

	col, err := NewSliceColumn(name, data)
	if err != nil {
		return nil, err
	}

	return &sliceColumnBuilder{col: col}, nil
}

type sliceColumnBuilder struct {
	col *SliceColumn
}

func (b *sliceColumnBuilder) At(index int) (interface{}, error) {
	return b.col.ValueAt(index)
}

func (b *sliceColumnBuilder) Append(value interface{}) error {
	return b.Set(b.col.Len(), value)
}

func (b *sliceColumnBuilder) Set(index int, value interface{}) error {
	if index < 0 {
		return fmt.Errorf("%s: negative index %d", b.col.Name(), index)
	}

	size := b.col.Len()
	if err := b.resize(index + 1); err != nil {
		return err
	}

	if err := b.col.Set(index, value); err != nil {
		for b.col.Len() > size {
			b.col.shrink()
		}
		return err
	}

	return nil
}

// resize grows the column to size, gaps are zero (NaN for floats)
func (b *sliceColumnBuilder) resize(size int) error {
	for b.col.Len() < size {
		if err := b.col.grow(); err != nil {
			return err
		}
	}

	return nil
}

func (b *sliceColumnBuilder) Finish() Column {
	return b.col
}

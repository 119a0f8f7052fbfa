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
	"testing"
	"time"
)

func TestRowIterator(t *testing.T) {
	frame, err := makeFrame()
	if err != nil {
		t.Fatalf("can't create frame - %s", err)
	}

	it := frame.IterRows()
	for rowNum := 0; it.Next(); rowNum++ {
		if it.RowNum() != rowNum {
			t.Fatalf("rowNum mismatch %d != %d", rowNum, it.RowNum())
		}

		row := it.Row()
		if row == nil {
			t.Fatalf("empty row")
		}

		for name, val := range row {
			col, err := frame.Column(name)
			if err != nil {
				t.Fatalf("can't get column %q", name)
			}

			cval, err := col.ValueAt(rowNum)
			if err != nil {
				t.Fatalf("can't get %s at %d", col.DType(), rowNum)
			}

			if col.DType() == TimeType {
				if !cval.(time.Time).Equal(val.(time.Time)) {
					t.Fatalf("%s:%d bad value %v != %v", name, rowNum, val, cval)
				}
				continue
			}

			if cval != val {
				t.Fatalf("%s:%d bad value %v != %v", name, rowNum, val, cval)
			}
		}
	}

	if err := it.Err(); err != nil {
		t.Fatalf("iteration error - %s", err)
	}
}

func TestRowIteratorEmpty(t *testing.T) {
	frame, err := makeFrame()
	if err != nil {
		t.Fatal(err)
	}

	empty, err := frame.Take(nil)
	if err != nil {
		t.Fatal(err)
	}

	it := empty.IterRows()
	if it.Next() {
		t.Fatal("advanced over empty frame")
	}

	if err := it.Err(); err != nil {
		t.Fatal(err)
	}
}

func makeFrame() (Frame, error) {
	size := 1027
	now := time.Now()
	idata := make([]int64, size)
	fdata := make([]float64, size)
	sdata := make([]string, size)
	tdata := make([]time.Time, size)
	bdata := make([]bool, size)

	for i := 0; i < size; i++ {
		idata[i] = int64(i)
		fdata[i] = float64(i)
		sdata[i] = fmt.Sprintf("val%d", i)
		tdata[i] = now.Add(time.Duration(i) * time.Second)
		bdata[i] = i%2 == 0
	}

	columns := map[string]interface{}{
		"ints":    idata,
		"floats":  fdata,
		"strings": sdata,
		"times":   tdata,
		"bools":   bdata,
	}

	return NewFrameFromMap(columns, nil)
}

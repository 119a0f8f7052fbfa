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
	"bytes"
	"math"
	"testing"
	"time"
)

func TestRoundTrip(t *testing.T) {
	frame := createFrame(t)

	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	if err := enc.Encode(frame); err != nil {
		t.Fatal(err)
	}

	dec := NewDecoder(&buf)
	decoded, err := dec.Decode()
	if err != nil {
		t.Fatal(err)
	}

	if decoded.Len() != frame.Len() {
		t.Fatalf("wrong length %d != %d", decoded.Len(), frame.Len())
	}

	names, decodedNames := frame.Names(), decoded.Names()
	if len(names) != len(decodedNames) {
		t.Fatalf("wrong columns %v != %v", decodedNames, names)
	}

	for i, name := range names {
		if decodedNames[i] != name {
			t.Fatalf("wrong columns %v != %v", decodedNames, names)
		}

		col, _ := frame.Column(name)
		decodedCol, err := decoded.Column(name)
		if err != nil {
			t.Fatal(err)
		}

		if col.DType() != decodedCol.DType() {
			t.Fatalf("%s: wrong dtype %s != %s", name, decodedCol.DType(), col.DType())
		}
	}

	tcol, err := decoded.Column("tcol")
	if err != nil {
		t.Fatal(err)
	}

	ts, err := tcol.TimeAt(1)
	if err != nil {
		t.Fatal(err)
	}

	if !ts.Equal(time.Unix(1700000000, 1)) {
		t.Fatalf("bad time - %s", ts)
	}

	fcol, err := decoded.Column("fcol")
	if err != nil {
		t.Fatal(err)
	}

	f, err := fcol.FloatAt(2)
	if err != nil {
		t.Fatal(err)
	}

	if !math.IsNaN(f) {
		t.Fatalf("NaN decoded as %v", f)
	}
}

func TestDecodeError(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	if err := enc.EncodeError(&UnknownDimensionError{Dimension: "region"}); err != nil {
		t.Fatal(err)
	}

	if _, err := NewDecoder(&buf).Decode(); err == nil {
		t.Fatal("no error on error message")
	}
}

func createFrame(t *testing.T) Frame {
	var (
		columns []Column
		col     Column
		err     error
	)

	col, err = NewSliceColumn("icol", []int{1, 2, 3})
	if err != nil {
		t.Fatal(err)
	}

	columns = append(columns, col)
	col, err = NewSliceColumn("fcol", []float64{1, 2, math.NaN()})
	if err != nil {
		t.Fatal(err)
	}

	columns = append(columns, col)
	col, err = NewSliceColumn("scol", []string{"1", "2", "3"})
	if err != nil {
		t.Fatal(err)
	}

	columns = append(columns, col)
	col, err = NewSliceColumn("tcol", []time.Time{time.Unix(1700000000, 0), time.Unix(1700000000, 1), time.Unix(1700000000, 2)})
	if err != nil {
		t.Fatal(err)
	}

	columns = append(columns, col)
	col, err = NewSliceColumn("bcol", []bool{true, false, true})
	if err != nil {
		t.Fatal(err)
	}

	columns = append(columns, col)
	frame, err := NewFrame(columns)
	if err != nil {
		t.Fatal(err)
	}

	return frame
}

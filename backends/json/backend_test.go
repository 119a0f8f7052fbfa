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

package json

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/v3io/cubes"
)

func newBackend(t *testing.T) *Backend {
	logger, err := cubes.NewLogger("debug")
	require.NoError(t, err)

	backend, err := NewBackend(logger)
	require.NoError(t, err)

	return backend.(*Backend)
}

func TestReadArray(t *testing.T) {
	data := `
	[
		{"product": "Apple", "revenue": 100, "cost": 50, "day": "2024-01-01T00:00:00Z"},
		{"product": "Pear", "revenue": 150, "cost": 10.5, "day": "2024-01-02T00:00:00Z"}
	]`

	frame, err := newBackend(t).ReadFrom(strings.NewReader(data), &cubes.SourceConfig{})
	require.NoError(t, err)
	require.Equal(t, 2, frame.Len())
	require.Equal(t, []string{"cost", "day", "product", "revenue"}, frame.Names())

	expectedTypes := map[string]cubes.DType{
		"product": cubes.StringType,
		"revenue": cubes.IntType,
		"cost":    cubes.FloatType,
		"day":     cubes.TimeType,
	}

	for name, dtype := range expectedTypes {
		col, err := frame.Column(name)
		require.NoError(t, err)
		require.Equal(t, dtype, col.DType(), name)
	}
}

func TestReadLines(t *testing.T) {
	data := `{"product": "Apple", "revenue": 100}
{"product": "Pear", "revenue": 150}
{"product": "Banana", "revenue": 300}
`
	frame, err := newBackend(t).ReadFrom(strings.NewReader(data), &cubes.SourceConfig{Limit: 2})
	require.NoError(t, err)
	require.Equal(t, 2, frame.Len())

	col, err := frame.Column("product")
	require.NoError(t, err)
	require.Equal(t, []string{"Apple", "Pear"}, col.Strings())
}

func TestReadNested(t *testing.T) {
	data := `[{"product": {"name": "Apple"}}]`
	_, err := newBackend(t).ReadFrom(strings.NewReader(data), &cubes.SourceConfig{})
	require.Error(t, err)
}

func TestWrite(t *testing.T) {
	backend := newBackend(t)
	frame, err := cubes.NewFrameFromMap(map[string]interface{}{
		"product": []string{"Apple", "Pear"},
		"revenue": []int64{100, 150},
	}, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, backend.Write(&buf, frame))
	require.JSONEq(t, `[{"product": "Apple", "revenue": 100}, {"product": "Pear", "revenue": 150}]`, buf.String())

	again, err := backend.ReadFrom(&buf, &cubes.SourceConfig{})
	require.NoError(t, err)
	require.Equal(t, 2, again.Len())
}

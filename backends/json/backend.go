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
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/nuclio/logger"
	"github.com/pkg/errors"

	"github.com/v3io/cubes"
	"github.com/v3io/cubes/backends"
)

// Backend reads a JSON array of row objects, or JSON lines (one object per line)
type Backend struct {
	logger logger.Logger
}

// NewBackend returns a new JSON backend
func NewBackend(logger logger.Logger) (backends.Backend, error) {
	return &Backend{logger: logger}, nil
}

// Read reads the file at source.Path
func (b *Backend) Read(source *cubes.SourceConfig) (cubes.Frame, error) {
	file, err := os.Open(source.Path)
	if err != nil {
		return nil, err
	}
	defer file.Close() // nolint: errcheck

	return b.ReadFrom(file, source)
}

// ReadFrom reads JSON from r. Strings in RFC 3339 format become times when
// every value in the column is one.
func (b *Backend) ReadFrom(r io.Reader, source *cubes.SourceConfig) (cubes.Frame, error) {
	reader := bufio.NewReader(r)
	first, err := firstByte(reader)
	if err != nil {
		return nil, errors.Wrap(err, "can't read JSON")
	}

	dec := json.NewDecoder(reader)
	dec.UseNumber()

	var rows []map[string]interface{}
	inLimit := func() bool {
		return source.Limit == 0 || len(rows) < source.Limit
	}

	if first == '[' {
		if _, err := dec.Token(); err != nil {
			return nil, errors.Wrap(err, "can't read array start")
		}

		for dec.More() && inLimit() {
			row := make(map[string]interface{})
			if err := dec.Decode(&row); err != nil {
				return nil, errors.Wrapf(err, "can't decode row %d", len(rows)+1)
			}
			rows = append(rows, row)
		}
	} else {
		for inLimit() {
			row := make(map[string]interface{})
			if err := dec.Decode(&row); err != nil {
				if err == io.EOF {
					break
				}
				return nil, errors.Wrapf(err, "can't decode line %d", len(rows)+1)
			}
			rows = append(rows, row)
		}
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("no rows in %s", source.Path)
	}

	if err := normalizeRows(rows); err != nil {
		return nil, err
	}

	b.logger.DebugWith("Read JSON", "path", source.Path, "rows", len(rows))
	return cubes.NewFrameFromRows(rows, nil)
}

func firstByte(reader *bufio.Reader) (byte, error) {
	for {
		c, err := reader.ReadByte()
		if err != nil {
			return 0, err
		}

		switch c {
		case ' ', '\t', '\r', '\n':
			continue
		}

		return c, reader.UnreadByte()
	}
}

// normalizeRows converts json.Number to int64 or float64 and time strings to
// time.Time
func normalizeRows(rows []map[string]interface{}) error {
	floats := make(map[string]bool)
	notTimes := make(map[string]bool)
	for _, row := range rows {
		for key, value := range row {
			switch value := value.(type) {
			case json.Number:
				if _, err := value.Int64(); err != nil {
					floats[key] = true
				}
			case string:
				if _, err := time.Parse(time.RFC3339Nano, value); err != nil {
					notTimes[key] = true
				}
			default:
				notTimes[key] = true
			}
		}
	}

	for r, row := range rows {
		for key, value := range row {
			switch value := value.(type) {
			case json.Number:
				if !floats[key] {
					row[key], _ = value.Int64()
					continue
				}

				f, err := value.Float64()
				if err != nil {
					return errors.Wrapf(err, "row %d: bad number for %s", r+1, key)
				}
				row[key] = f
			case string:
				if !notTimes[key] {
					row[key], _ = time.Parse(time.RFC3339Nano, value)
				}
			case map[string]interface{}, []interface{}:
				return fmt.Errorf("row %d: nested value for %s", r+1, key)
			}
		}
	}

	return nil
}

// Write writes frame as a JSON array of row objects, NaN is null
func (b *Backend) Write(w io.Writer, frame cubes.Frame) error {
	var buf bytes.Buffer
	buf.WriteByte('[')

	it := frame.IterRows()
	for n := 0; it.Next(); n++ {
		row := it.Row()
		for key, value := range row {
			if f, ok := value.(float64); ok && math.IsNaN(f) {
				row[key] = nil
			}
		}

		data, err := json.Marshal(row)
		if err != nil {
			return errors.Wrapf(err, "can't encode row %d", it.RowNum())
		}

		if n > 0 {
			buf.WriteByte(',')
		}
		buf.Write(data)
	}

	if err := it.Err(); err != nil {
		return err
	}

	buf.WriteByte(']')
	_, err := w.Write(buf.Bytes())
	return err
}

func init() {
	if err := backends.Register("json", NewBackend); err != nil {
		panic(err)
	}
}

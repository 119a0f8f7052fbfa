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
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack"
)

// Marshaler is interface for writing native data
type Marshaler interface {
	Marshal() (interface{}, error) // Marshal to native type
}

// Encoder encodes frames
type Encoder struct {
	encoder *msgpack.Encoder
}

// NewEncoder returns a new frame encoder
func NewEncoder(writer io.Writer) *Encoder {
	return &Encoder{
		encoder: msgpack.NewEncoder(writer),
	}
}

// Encode encodes a frame
func (e *Encoder) Encode(frame Frame) error {
	marshaler, ok := frame.(Marshaler)
	if !ok {
		return fmt.Errorf("frame does not support marshalling")
	}

	data, err := marshaler.Marshal()
	if err != nil {
		return errors.Wrap(err, "can't marshal frame")
	}

	if err := e.encoder.Encode(data); err != nil {
		return errors.Wrap(err, "can't encode data")
	}

	return nil
}

// EncodeError encodes an error message
func (e *Encoder) EncodeError(err error) error {
	msg := &FrameMessage{Error: err.Error()}
	return e.encoder.Encode(msg)
}

// Decoder decodes frames
type Decoder struct {
	decoder *msgpack.Decoder
}

// NewDecoder returns a new decoder
func NewDecoder(reader io.Reader) *Decoder {
	return &Decoder{
		decoder: msgpack.NewDecoder(reader),
	}
}

// Decode decodes a frame
func (d *Decoder) Decode() (Frame, error) {
	msg := &FrameMessage{}
	if err := d.decoder.Decode(msg); err != nil {
		return nil, err
	}

	if msg.Error != "" {
		return nil, fmt.Errorf("remote error - %s", msg.Error)
	}

	columns := make([]Column, len(msg.Columns))
	for i, colMsg := range msg.Columns {
		col, err := d.decodeSliceCol(colMsg)
		if err != nil {
			return nil, errors.Wrapf(err, "column %d", i)
		}
		columns[i] = col
	}

	return NewFrame(columns)
}

func (d *Decoder) decodeSliceCol(colMsg *SliceColumnMessage) (Column, error) {
	if colMsg == nil {
		return nil, fmt.Errorf("nil column message")
	}

	var data interface{}
	switch colMsg.DType {
	case IntType.String():
		data = nonNilInts(colMsg.IntData)
	case FloatType.String():
		data = nonNilFloats(colMsg.FloatData)
	case StringType.String():
		data = nonNilStrings(colMsg.StringData)
	case BoolType.String():
		data = nonNilBools(colMsg.BoolData)
	case TimeType.String():
		times := make([]time.Time, len(colMsg.NSTimeData))
		for i, ns := range colMsg.NSTimeData {
			times[i] = d.timeFromNS(ns)
		}
		data = times
	default:
		return nil, fmt.Errorf("%s: unknown dtype %q", colMsg.Name, colMsg.DType)
	}

	col, err := NewSliceColumn(colMsg.Name, data)
	if err != nil {
		return nil, errors.Wrapf(err, "can't create column %q", colMsg.Name)
	}

	return col, nil
}

func (d *Decoder) timeFromNS(value int64) time.Time {
	return time.Unix(value/1e9, value%1e9)
}

func nonNilInts(data []int64) []int64 {
	if data == nil {
		return []int64{}
	}
	return data
}

func nonNilFloats(data []float64) []float64 {
	if data == nil {
		return []float64{}
	}
	return data
}

func nonNilStrings(data []string) []string {
	if data == nil {
		return []string{}
	}
	return data
}

func nonNilBools(data []bool) []bool {
	if data == nil {
		return []bool{}
	}
	return data
}

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

package http

// Request is a cube request. Address parts are strings, numbers, booleans,
// lists (OR-groups) or objects (dimension -> member(s)).
type Request struct {
	Address     []interface{} `json:"address,omitempty"`
	Measure     string        `json:"measure,omitempty"`
	Aggregation string        `json:"aggregation,omitempty"`
	Format      string        `json:"format,omitempty"` // rows: json, csv or msgpack

	// Batch evaluation, every address is relative to Address
	Addresses [][]interface{} `json:"addresses,omitempty"`

	// Writes
	Value      interface{} `json:"value,omitempty"`
	Operator   string      `json:"operator,omitempty"`   // update
	Allocation string      `json:"allocation,omitempty"` // set, defaults to "set"
}

// ValueReply is the reply of value and write requests, Value is nil for NaN
type ValueReply struct {
	Address     string   `json:"address"`
	Measure     string   `json:"measure,omitempty"`
	Aggregation string   `json:"aggregation"`
	Value       *float64 `json:"value"`
	Rows        int      `json:"rows"`
}

// ValuesReply is the reply of batch value requests, in request order
type ValuesReply struct {
	Address     string     `json:"address"`
	Aggregation string     `json:"aggregation"`
	Values      []*float64 `json:"values"`
}

// DimensionInfo describes a dimension
type DimensionInfo struct {
	Name    string `json:"name"`
	Column  string `json:"column"`
	Alias   string `json:"alias,omitempty"`
	DType   string `json:"dtype"`
	Members int    `json:"members"`
}

// MeasureInfo describes a measure
type MeasureInfo struct {
	Name   string `json:"name"`
	Column string `json:"column"`
	DType  string `json:"dtype"`
}

// SchemaReply is the reply of schema requests
type SchemaReply struct {
	Rows       int             `json:"rows"`
	Dimensions []DimensionInfo `json:"dimensions"`
	Measures   []MeasureInfo   `json:"measures"`
}

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
	"io/ioutil"
	"sort"

	"github.com/ghodss/yaml"
	"github.com/pkg/errors"
)

// NameKind is the kind of a schema name
type NameKind int

// Possible name kinds
const (
	UnknownName NameKind = iota
	DimensionName
	MeasureName
)

// NameRef is the result of a schema name lookup
type NameRef struct {
	Kind      NameKind
	Dimension *Dimension
	Measure   *Measure
}

// DimensionDefinition defines a dimension over a column
type DimensionDefinition struct {
	Column string `json:"column"`
	Name   string `json:"name,omitempty"` // defaults to column
	Alias  string `json:"alias,omitempty"`
}

// MeasureDefinition defines a measure over a numeric column
type MeasureDefinition struct {
	Column string `json:"column"`
	Name   string `json:"name,omitempty"` // defaults to column
}

// SchemaDefinition is an explicit schema. The first measure is the default.
type SchemaDefinition struct {
	Dimensions []DimensionDefinition `json:"dimensions,omitempty"`
	Measures   []MeasureDefinition   `json:"measures,omitempty"`
}

// NewSchemaDefinitionFromContentsOrPath parses a YAML (or JSON) schema definition
func NewSchemaDefinitionFromContentsOrPath(contents []byte, path string) (*SchemaDefinition, error) {
	if len(contents) == 0 {
		var err error
		contents, err = ioutil.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "can't read schema from %q", path)
		}
	}

	def := &SchemaDefinition{}
	if err := yaml.Unmarshal(contents, def); err != nil {
		return nil, errors.Wrap(err, "can't decode schema")
	}

	if err := def.Validate(); err != nil {
		return nil, err
	}

	return def, nil
}

// Validate checks the definition is structurally valid (without a dataset)
func (def *SchemaDefinition) Validate() error {
	if len(def.Dimensions)+len(def.Measures) == 0 {
		return &SchemaError{Reason: "empty schema definition"}
	}

	columns := make(map[string]bool)
	names := make(map[string]bool)
	var dupColumns, dupNames []string

	addName := func(name string) {
		if name == "" {
			return
		}
		if names[name] {
			dupNames = append(dupNames, name)
		}
		names[name] = true
	}

	for _, dim := range def.Dimensions {
		if dim.Column == "" {
			return &SchemaError{Reason: "dimension without a column"}
		}
		if columns[dim.Column] {
			dupColumns = append(dupColumns, dim.Column)
		}
		columns[dim.Column] = true
		addName(nameOr(dim.Name, dim.Column))
		addName(dim.Alias)
	}

	for _, measure := range def.Measures {
		if measure.Column == "" {
			return &SchemaError{Reason: "measure without a column"}
		}
		if columns[measure.Column] {
			dupColumns = append(dupColumns, measure.Column)
		}
		columns[measure.Column] = true
		addName(nameOr(measure.Name, measure.Column))
	}

	if len(dupColumns) > 0 {
		return &SchemaError{Reason: "columns used more than once", Columns: dupColumns}
	}

	if len(dupNames) > 0 {
		return &SchemaError{Reason: "duplicate names", Columns: dupNames}
	}

	return nil
}

// Schema partitions dataset columns to dimensions and measures
type Schema struct {
	dimensions []*Dimension
	measures   []*Measure

	dimensionByName map[string]*Dimension // names and aliases
	measureByName   map[string]*Measure
}

// InferSchema classifies every column, numeric columns are measures and all
// others are dimensions. Excluded columns are ignored.
func InferSchema(frame Frame, exclude ...string) (*Schema, error) {
	if frame == nil || len(frame.Names()) == 0 {
		return nil, &SchemaError{Reason: "dataset has no columns"}
	}

	if frame.Len() == 0 {
		return nil, &SchemaError{Reason: "dataset has no rows"}
	}

	excluded := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		excluded[name] = true
	}

	var unknown []string
	for name := range excluded {
		if _, err := frame.Column(name); err != nil {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, &SchemaError{Reason: "unknown excluded columns", Columns: unknown}
	}

	def := &SchemaDefinition{}
	for _, name := range frame.Names() {
		if excluded[name] {
			continue
		}

		col, err := frame.Column(name)
		if err != nil {
			return nil, err
		}

		if col.DType().IsNumeric() {
			def.Measures = append(def.Measures, MeasureDefinition{Column: name})
		} else {
			def.Dimensions = append(def.Dimensions, DimensionDefinition{Column: name})
		}
	}

	return newSchema(frame, def)
}

// NewSchemaFromDefinition builds a schema from an explicit definition. Every
// column named must exist in frame, unreferenced columns are excluded.
func NewSchemaFromDefinition(frame Frame, def *SchemaDefinition) (*Schema, error) {
	if frame == nil || len(frame.Names()) == 0 {
		return nil, &SchemaError{Reason: "dataset has no columns"}
	}

	if def == nil {
		return nil, &SchemaError{Reason: "nil schema definition"}
	}

	if err := def.Validate(); err != nil {
		return nil, err
	}

	var unknown []string
	for _, dim := range def.Dimensions {
		if _, err := frame.Column(dim.Column); err != nil {
			unknown = append(unknown, dim.Column)
		}
	}
	for _, measure := range def.Measures {
		if _, err := frame.Column(measure.Column); err != nil {
			unknown = append(unknown, measure.Column)
		}
	}

	if len(unknown) > 0 {
		return nil, &SchemaError{Reason: "unknown columns", Columns: unknown}
	}

	return newSchema(frame, def)
}

func newSchema(frame Frame, def *SchemaDefinition) (*Schema, error) {
	schema := &Schema{
		dimensionByName: make(map[string]*Dimension),
		measureByName:   make(map[string]*Measure),
	}

	for _, dimDef := range def.Dimensions {
		col, err := frame.Column(dimDef.Column)
		if err != nil {
			return nil, err
		}

		dim, err := newDimension(nameOr(dimDef.Name, dimDef.Column), dimDef.Alias, col)
		if err != nil {
			return nil, &SchemaError{Reason: err.Error(), Columns: []string{dimDef.Column}}
		}

		schema.dimensions = append(schema.dimensions, dim)
		schema.dimensionByName[dim.Name] = dim
		if dim.Alias != "" {
			schema.dimensionByName[dim.Alias] = dim
		}
	}

	var nonNumeric []string
	for _, measureDef := range def.Measures {
		col, err := frame.Column(measureDef.Column)
		if err != nil {
			return nil, err
		}

		if !col.DType().IsNumeric() {
			nonNumeric = append(nonNumeric, measureDef.Column)
			continue
		}

		measure := &Measure{
			Name:   nameOr(measureDef.Name, measureDef.Column),
			Column: measureDef.Column,
			DType:  col.DType(),
		}
		schema.measures = append(schema.measures, measure)
		schema.measureByName[measure.Name] = measure
	}

	if len(nonNumeric) > 0 {
		return nil, &SchemaError{Reason: "measures must be numeric", Columns: nonNumeric}
	}

	return schema, nil
}

// Dimensions returns the dimensions in definition order
func (s *Schema) Dimensions() []*Dimension {
	return s.dimensions
}

// Measures returns the measures in definition order
func (s *Schema) Measures() []*Measure {
	return s.measures
}

// Dimension returns a dimension by name or alias
func (s *Schema) Dimension(name string) (*Dimension, bool) {
	dim, ok := s.dimensionByName[name]
	return dim, ok
}

// Measure returns a measure by name
func (s *Schema) Measure(name string) (*Measure, bool) {
	measure, ok := s.measureByName[name]
	return measure, ok
}

// DefaultMeasure returns the first measure, nil if there are no measures
func (s *Schema) DefaultMeasure() *Measure {
	if len(s.measures) == 0 {
		return nil
	}

	return s.measures[0]
}

// ResolveName looks up a dimension (or alias) or measure by exact name
func (s *Schema) ResolveName(name string) NameRef {
	if dim, ok := s.dimensionByName[name]; ok {
		return NameRef{Kind: DimensionName, Dimension: dim}
	}

	if measure, ok := s.measureByName[name]; ok {
		return NameRef{Kind: MeasureName, Measure: measure}
	}

	return NameRef{Kind: UnknownName}
}

// Definition returns the schema as a definition
func (s *Schema) Definition() *SchemaDefinition {
	def := &SchemaDefinition{}
	for _, dim := range s.dimensions {
		def.Dimensions = append(def.Dimensions, DimensionDefinition{
			Column: dim.Column,
			Name:   dim.Name,
			Alias:  dim.Alias,
		})
	}

	for _, measure := range s.measures {
		def.Measures = append(def.Measures, MeasureDefinition{
			Column: measure.Column,
			Name:   measure.Name,
		})
	}

	return def
}

// Ambiguity is a value that resolves to more than one candidate
type Ambiguity struct {
	Member     interface{}
	Candidates []Candidate
}

func (a Ambiguity) String() string {
	err := &AmbiguousTokenError{Token: a.Member, Candidates: a.Candidates}
	return err.Error()
}

// Ambiguities lists members shared by dimensions of the same type, and
// members that are also dimension or measure names
func (s *Schema) Ambiguities() []Ambiguity {
	type entry struct {
		member     interface{}
		candidates []Candidate
	}

	entries := make(map[string]*entry)
	add := func(member interface{}, candidate Candidate) {
		id := fmt.Sprintf("%T:%v", member, member)
		e, ok := entries[id]
		if !ok {
			e = &entry{member: member}
			entries[id] = e
		}
		e.candidates = append(e.candidates, candidate)
	}

	for _, dim := range s.dimensions {
		for _, member := range dim.members {
			add(member, Candidate{Kind: MemberSelection, Name: dim.Name})
		}
	}

	for _, dim := range s.dimensions {
		if _, ok := entries["string:"+dim.Name]; ok {
			add(dim.Name, Candidate{Kind: DimensionSelection, Name: dim.Name})
		}
	}

	for _, measure := range s.measures {
		if _, ok := entries["string:"+measure.Name]; ok {
			add(measure.Name, Candidate{Kind: MeasureSelection, Name: measure.Name})
		}
	}

	var ids []string
	for id, e := range entries {
		if len(e.candidates) > 1 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	ambiguities := make([]Ambiguity, len(ids))
	for i, id := range ids {
		ambiguities[i] = Ambiguity{
			Member:     entries[id].member,
			Candidates: entries[id].candidates,
		}
	}

	return ambiguities
}

func nameOr(name, column string) string {
	if name != "" {
		return name
	}

	return column
}

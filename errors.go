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
	"sort"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrNotImplemented is returned for features that are not supported yet
	// (inserting rows on write, linked cubes)
	ErrNotImplemented = errors.New("not implemented")
	// ErrReadOnly is returned on writes to a read-only cube
	ErrReadOnly = errors.New("cube is read-only")
	// ErrNoMeasure is returned when a measure is required but the schema has none
	ErrNoMeasure = errors.New("no measure")
	// ErrForeignContext is returned when a context of another cube is used as an address
	ErrForeignContext = errors.New("context belongs to a different cube")
)

// SchemaError is an invalid dataset or schema definition
type SchemaError struct {
	Reason  string
	Columns []string // offending columns, if any
}

func (e *SchemaError) Error() string {
	if len(e.Columns) == 0 {
		return fmt.Sprintf("schema error: %s", e.Reason)
	}

	return fmt.Sprintf("schema error: %s - %s", e.Reason, strings.Join(e.Columns, ", "))
}

// UnknownDimensionError is an explicit address naming a missing dimension
type UnknownDimensionError struct {
	Dimension string
}

func (e *UnknownDimensionError) Error() string {
	return fmt.Sprintf("unknown dimension %q", e.Dimension)
}

// UnknownMemberError is an explicit address naming a missing member
type UnknownMemberError struct {
	Dimension string
	Member    interface{}
}

func (e *UnknownMemberError) Error() string {
	return fmt.Sprintf("%v is not a member of dimension %q", e.Member, e.Dimension)
}

// UnresolvedTokenError is a token that matches nothing in the schema
type UnresolvedTokenError struct {
	Token interface{}
	Cause error
}

func (e *UnresolvedTokenError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("can't resolve %v - %s", e.Token, e.Cause)
	}

	return fmt.Sprintf("can't resolve %v (check for typos and upper/lower case)", e.Token)
}

// Unwrap returns the underlying cause
func (e *UnresolvedTokenError) Unwrap() error {
	return e.Cause
}

// Candidate is one interpretation of an ambiguous token
type Candidate struct {
	Kind SelectionKind
	Name string // dimension or measure name
}

func (c Candidate) String() string {
	switch c.Kind {
	case MeasureSelection:
		return "measure " + c.Name
	case DimensionSelection:
		return "dimension " + c.Name
	}

	return "member of " + c.Name
}

// AmbiguousTokenError is a token matching more than one dimension or measure
type AmbiguousTokenError struct {
	Token      interface{}
	Candidates []Candidate
}

func (e *AmbiguousTokenError) Error() string {
	names := make([]string, len(e.Candidates))
	for i, candidate := range e.Candidates {
		names[i] = candidate.String()
	}
	sort.Strings(names)

	return fmt.Sprintf("%v is ambiguous (%s), use the \"dimension:member\" form", e.Token, strings.Join(names, ", "))
}

// EmptySelectionError is a write that matched no rows
type EmptySelectionError struct {
	Address string
	Cause   error
}

func (e *EmptySelectionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("no rows match %s - %s", e.Address, e.Cause)
	}

	return fmt.Sprintf("no rows match %s", e.Address)
}

// Unwrap returns the underlying cause
func (e *EmptySelectionError) Unwrap() error {
	return e.Cause
}

// TypeMismatchError is a write of a value that does not fit the column
type TypeMismatchError struct {
	Column string
	DType  DType
	Value  interface{}
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("can't write %v (%T) to %s column %q", e.Value, e.Value, e.DType, e.Column)
}

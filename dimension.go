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
	"strings"

	"github.com/gobwas/glob"
)

// Dimension is a filterable axis mapped to one column. The member index is
// built once when the cube is created.
type Dimension struct {
	Name   string
	Column string
	Alias  string
	DType  DType

	members []interface{}       // distinct values, first seen order
	keys    map[interface{}]int // member key -> index in members
}

func newDimension(name, alias string, col Column) (*Dimension, error) {
	dim := &Dimension{
		Name:   name,
		Column: col.Name(),
		Alias:  alias,
		DType:  col.DType(),
		keys:   make(map[interface{}]int),
	}

	for i := 0; i < col.Len(); i++ {
		value, err := col.ValueAt(i)
		if err != nil {
			return nil, err
		}

		key, ok := memberKey(value, dim.DType)
		if !ok {
			return nil, fmt.Errorf("%s:%d bad value for %s dimension - %T", dim.Column, i, dim.DType, value)
		}

		if _, ok := dim.keys[key]; ok {
			continue
		}

		dim.keys[key] = len(dim.members)
		dim.members = append(dim.members, value)
	}

	return dim, nil
}

// Members returns the distinct members in order of first appearance
func (d *Dimension) Members() []interface{} {
	members := make([]interface{}, len(d.members))
	copy(members, d.members)
	return members
}

// Len returns the number of distinct members
func (d *Dimension) Len() int {
	return len(d.members)
}

// Member returns the stored member equal to value
func (d *Dimension) Member(value interface{}) (interface{}, bool) {
	key, ok := memberKey(value, d.DType)
	if !ok {
		return nil, false
	}

	i, ok := d.keys[key]
	if !ok {
		return nil, false
	}

	return d.members[i], true
}

// Contains returns true if value is a member
func (d *Dimension) Contains(value interface{}) bool {
	_, ok := d.Member(value)
	return ok
}

// Coerce converts value to the dimension type (parsing strings)
func (d *Dimension) Coerce(value interface{}) (interface{}, error) {
	return convertTo(value, d.DType)
}

// Match returns the string members matching pattern, case-insensitive, where
// "*" matches any sequence and "?" any single character
func (d *Dimension) Match(pattern string) ([]interface{}, error) {
	if d.DType != StringType {
		return nil, nil
	}

	matcher, err := compileGlob(pattern)
	if err != nil {
		return nil, err
	}

	var matches []interface{}
	for _, member := range d.members {
		if matcher.Match(strings.ToLower(member.(string))) {
			matches = append(matches, member)
		}
	}

	return matches, nil
}

// MembersInRange returns the members m where from <= m <= to. A nil bound is open.
func (d *Dimension) MembersInRange(from, to interface{}) ([]interface{}, error) {
	var err error
	if from != nil {
		if from, err = d.Coerce(from); err != nil {
			return nil, err
		}
	}

	if to != nil {
		if to, err = d.Coerce(to); err != nil {
			return nil, err
		}
	}

	var members []interface{}
	for _, member := range d.members {
		if from != nil {
			cmp, err := compareValues(member, from)
			if err != nil {
				return nil, err
			}
			if cmp < 0 {
				continue
			}
		}

		if to != nil {
			cmp, err := compareValues(member, to)
			if err != nil {
				return nil, err
			}
			if cmp > 0 {
				continue
			}
		}

		members = append(members, member)
	}

	return members, nil
}

// hasName returns true if name is the dimension name or alias
func (d *Dimension) hasName(name string) bool {
	return name == d.Name || (d.Alias != "" && name == d.Alias)
}

// Measure is an aggregatable numeric axis mapped to one column
type Measure struct {
	Name   string
	Column string
	DType  DType
}

func compileGlob(pattern string) (glob.Glob, error) {
	var b strings.Builder
	for _, r := range strings.ToLower(pattern) {
		switch r {
		case '[', ']', '{', '}', '\\', '!':
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}

	return glob.Compile(b.String())
}

func hasGlobChars(s string) bool {
	return strings.ContainsAny(s, "*?")
}

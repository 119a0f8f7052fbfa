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
	"time"

	"github.com/pkg/errors"
)

// constraint is the set of accepted members of one dimension. Constraints are
// never modified once created, filters share them.
type constraint struct {
	dimension *Dimension
	keys      map[interface{}]bool
	members   []interface{}
}

func newConstraint(dim *Dimension, members ...[]interface{}) *constraint {
	c := &constraint{
		dimension: dim,
		keys:      make(map[interface{}]bool),
	}

	for _, group := range members {
		for _, member := range group {
			key, ok := memberKey(member, dim.DType)
			if !ok || c.keys[key] {
				continue
			}
			c.keys[key] = true
			c.members = append(c.members, member)
		}
	}

	sort.Slice(c.members, func(i, j int) bool {
		cmp, err := compareValues(c.members[i], c.members[j])
		if err != nil {
			return formatMember(c.members[i]) < formatMember(c.members[j])
		}
		return cmp < 0
	})

	return c
}

func (c *constraint) String() string {
	if len(c.members) == 1 {
		return fmt.Sprintf("%s=%s", c.dimension.Name, formatMember(c.members[0]))
	}

	parts := make([]string, len(c.members))
	for i, member := range c.members {
		parts[i] = formatMember(member)
	}

	return fmt.Sprintf("%s=(%s)", c.dimension.Name, strings.Join(parts, "|"))
}

type condition struct {
	expression string
	predicate  Predicate
}

// BoolOp combines the row selections of two filters
type BoolOp string

// Boolean operations
const (
	AndOp BoolOp = "&"
	OrOp  BoolOp = "|"
	XorOp BoolOp = "^"
	NotOp BoolOp = "!" // right is unused
)

// combination is a boolean operation over other filters, evaluated by Rows
type combination struct {
	op    BoolOp
	left  *Filter
	right *Filter
}

func (c combination) String() string {
	if c.op == NotOp {
		return fmt.Sprintf("!(%s)", c.left)
	}
	return fmt.Sprintf("(%s) %s (%s)", c.left, c.op, c.right)
}

func (c combination) match(left, right bool) bool {
	switch c.op {
	case AndOp:
		return left && right
	case OrOp:
		return left || right
	case XorOp:
		return left != right
	}
	return !left
}

// Filter is an immutable row selection. Constraints of different dimensions
// are AND-ed, members of one dimension are OR-ed. Expressions and boolean
// combinations are AND-ed with the constraints. The empty filter selects all
// rows.
type Filter struct {
	constraints  map[string]*constraint // dimension name -> constraint
	conditions   []condition
	combinations []combination
}

// NewFilter returns an empty filter
func NewFilter() *Filter {
	return &Filter{
		constraints: make(map[string]*constraint),
	}
}

func (f *Filter) clone() *Filter {
	out := &Filter{
		constraints:  make(map[string]*constraint, len(f.constraints)),
		conditions:   make([]condition, len(f.conditions)),
		combinations: make([]combination, len(f.combinations)),
	}

	for name, c := range f.constraints {
		out.constraints[name] = c
	}
	copy(out.conditions, f.conditions)
	copy(out.combinations, f.combinations)

	return out
}

// Combine returns a filter selecting the rows of f and other combined by op.
// other is ignored for NotOp.
func (f *Filter) Combine(op BoolOp, other *Filter) (*Filter, error) {
	switch op {
	case AndOp, OrOp, XorOp:
		if other == nil {
			return nil, fmt.Errorf("%s needs two filters", op)
		}
	case NotOp:
		other = nil
	default:
		return nil, fmt.Errorf("unknown boolean operation - %s", op)
	}

	out := NewFilter()
	out.combinations = []combination{{op: op, left: f, right: other}}
	return out, nil
}

// Apply returns a new filter with rt applied
func (f *Filter) Apply(rt ResolvedToken) (*Filter, error) {
	switch rt.Kind {
	case MemberSelection:
		if rt.Dimension == nil {
			return nil, fmt.Errorf("member selection without a dimension")
		}

		out := f.clone()
		current, ok := out.constraints[rt.Dimension.Name]
		if ok && !rt.Explicit {
			out.constraints[rt.Dimension.Name] = newConstraint(rt.Dimension, current.members, rt.Members)
		} else {
			out.constraints[rt.Dimension.Name] = newConstraint(rt.Dimension, rt.Members)
		}
		return out, nil
	case WildcardSelection:
		if rt.Dimension == nil {
			return f, nil
		}

		out := f.clone()
		delete(out.constraints, rt.Dimension.Name)
		return out, nil
	case ExpressionSelection:
		if rt.Predicate == nil {
			return nil, fmt.Errorf("expression %q without a predicate", rt.Expression)
		}

		out := f.clone()
		out.conditions = append(out.conditions, condition{expression: rt.Expression, predicate: rt.Predicate})
		return out, nil
	case ContextSelection:
		if rt.Context == nil {
			return nil, fmt.Errorf("context selection without a context")
		}
		return f.Merge(rt.Context.filter), nil
	case DimensionSelection, MeasureSelection:
		return f, nil
	}

	return nil, fmt.Errorf("unknown selection kind - %s", rt.Kind)
}

// Merge returns a new filter with the constraints and expressions of both
// filters. Constraints on the same dimension are OR-ed.
func (f *Filter) Merge(other *Filter) *Filter {
	if other == nil || other.IsEmpty() {
		return f
	}

	out := f.clone()
	for name, c := range other.constraints {
		if current, ok := out.constraints[name]; ok {
			out.constraints[name] = newConstraint(c.dimension, current.members, c.members)
			continue
		}
		out.constraints[name] = c
	}

	out.conditions = append(out.conditions, other.conditions...)
	out.combinations = append(out.combinations, other.combinations...)
	return out
}

// IsEmpty returns true if the filter selects all rows
func (f *Filter) IsEmpty() bool {
	return len(f.constraints) == 0 && len(f.conditions) == 0 && len(f.combinations) == 0
}

// Dimensions returns the names of the constrained dimensions, sorted
func (f *Filter) Dimensions() []string {
	names := make([]string, 0, len(f.constraints))
	for name := range f.constraints {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Members returns the accepted members of dimension, nil if unconstrained
func (f *Filter) Members(dimension string) []interface{} {
	c, ok := f.constraints[dimension]
	if !ok {
		return nil
	}

	members := make([]interface{}, len(c.members))
	copy(members, c.members)
	return members
}

// Expressions returns the expressions in the filter
func (f *Filter) Expressions() []string {
	expressions := make([]string, len(f.conditions))
	for i, cond := range f.conditions {
		expressions[i] = cond.expression
	}

	return expressions
}

// String returns a canonical representation, equal filters have equal strings
func (f *Filter) String() string {
	if f.IsEmpty() {
		return wildcard
	}

	var parts []string
	for _, name := range f.Dimensions() {
		parts = append(parts, f.constraints[name].String())
	}

	expressions := f.Expressions()
	sort.Strings(expressions)
	for _, expression := range expressions {
		parts = append(parts, "("+expression+")")
	}

	combined := make([]string, len(f.combinations))
	for i, comb := range f.combinations {
		combined[i] = "[" + comb.String() + "]"
	}
	sort.Strings(combined)
	parts = append(parts, combined...)

	return strings.Join(parts, " & ")
}

// Equal returns true if both filters select the same rows by construction
func (f *Filter) Equal(other *Filter) bool {
	return other != nil && f.String() == other.String()
}

// Rows returns the indices of the rows of frame matching the filter
func (f *Filter) Rows(frame Frame) ([]int, error) {
	size := frame.Len()
	if f.IsEmpty() {
		rows := make([]int, size)
		for i := range rows {
			rows[i] = i
		}
		return rows, nil
	}

	type dimColumn struct {
		col Column
		c   *constraint
	}

	dimCols := make([]dimColumn, 0, len(f.constraints))
	for _, name := range f.Dimensions() {
		c := f.constraints[name]
		col, err := frame.Column(c.dimension.Column)
		if err != nil {
			return nil, errors.Wrapf(err, "dimension %q", name)
		}
		dimCols = append(dimCols, dimColumn{col: col, c: c})
	}

	var predCols []Column
	seen := make(map[string]bool)
	for _, cond := range f.conditions {
		for _, name := range cond.predicate.Columns() {
			if seen[name] {
				continue
			}
			seen[name] = true

			col, err := frame.Column(name)
			if err != nil {
				return nil, errors.Wrapf(err, "expression %q", cond.expression)
			}
			predCols = append(predCols, col)
		}
	}

	masks, err := f.combinationMasks(frame)
	if err != nil {
		return nil, err
	}

	rows := []int{}
	for i := 0; i < size; i++ {
		match := true
		for _, mask := range masks {
			if !mask[i] {
				match = false
				break
			}
		}

		if !match {
			continue
		}

		for _, dc := range dimCols {
			value, err := dc.col.ValueAt(i)
			if err != nil {
				return nil, err
			}

			key, ok := memberKey(value, dc.c.dimension.DType)
			if !ok || !dc.c.keys[key] {
				match = false
				break
			}
		}

		if !match {
			continue
		}

		if len(f.conditions) > 0 {
			row, err := rowAt(predCols, i)
			if err != nil {
				return nil, err
			}

			for _, cond := range f.conditions {
				ok, err := cond.predicate.Eval(row)
				if err != nil {
					return nil, errors.Wrapf(err, "can't evaluate %q on row %d", cond.expression, i)
				}

				if !ok {
					match = false
					break
				}
			}
		}

		if match {
			rows = append(rows, i)
		}
	}

	return rows, nil
}

// combinationMasks evaluates every boolean combination to a row mask
func (f *Filter) combinationMasks(frame Frame) ([][]bool, error) {
	masks := make([][]bool, 0, len(f.combinations))
	for _, comb := range f.combinations {
		left, err := rowMask(comb.left, frame)
		if err != nil {
			return nil, errors.Wrapf(err, "can't evaluate %s", comb)
		}

		right := left
		if comb.right != nil {
			if right, err = rowMask(comb.right, frame); err != nil {
				return nil, errors.Wrapf(err, "can't evaluate %s", comb)
			}
		}

		mask := make([]bool, frame.Len())
		for i := range mask {
			mask[i] = comb.match(left[i], right[i])
		}
		masks = append(masks, mask)
	}

	return masks, nil
}

func rowMask(f *Filter, frame Frame) ([]bool, error) {
	rows, err := f.Rows(frame)
	if err != nil {
		return nil, err
	}

	mask := make([]bool, frame.Len())
	for _, row := range rows {
		mask[row] = true
	}
	return mask, nil
}

func formatMember(member interface{}) string {
	if t, ok := member.(time.Time); ok {
		return t.Format(time.RFC3339Nano)
	}

	return fmt.Sprintf("%v", member)
}

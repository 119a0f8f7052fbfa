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
	"math"
	"sync"

	"github.com/pkg/errors"
)

// Context is a lazy address into a cube: an accumulated filter, a measure and
// an aggregation. Chaining returns a new Context, the receiver is never
// modified. Values are computed on first use and cached until the cube is
// written to.
type Context struct {
	cube        *Cube
	filter      *Filter
	measure     *Measure
	aggregation Aggregation
	pending     *Dimension // dimension named by the last token, its member comes next

	cacheLock    sync.Mutex // contexts are shared between Values workers
	cache        map[Aggregation]float64
	cacheVersion uint64
}

func newContext(cube *Cube, filter *Filter, measure *Measure, aggregation Aggregation) *Context {
	return &Context{
		cube:        cube,
		filter:      filter,
		measure:     measure,
		aggregation: aggregation,
	}
}

// derive returns a child context without the cache and the pending dimension
func (c *Context) derive() *Context {
	return newContext(c.cube, c.filter, c.measure, c.aggregation)
}

// Get returns a child context narrowed by parts. Each part is converted with
// ParseToken, parts are AND-ed and their order does not matter except for a
// dimension name immediately followed by its member.
func (c *Context) Get(parts ...interface{}) (*Context, error) {
	ctx := c
	for _, part := range parts {
		token, err := ParseToken(part)
		if err != nil {
			return nil, err
		}

		if ctx, err = ctx.Resolve(token); err != nil {
			return nil, err
		}
	}

	return ctx, nil
}

// Resolve returns a child context narrowed by token
func (c *Context) Resolve(token Token) (*Context, error) {
	if token.Kind == ContextToken && token.Context != nil && token.Context.cube != c.cube {
		return nil, errors.Wrapf(ErrForeignContext, "can't use %s as an address", token)
	}

	var hint string
	explicit := false
	if c.pending != nil {
		switch token.Kind {
		case ScalarToken, OrGroupToken, WildcardToken, RangeToken:
			hint, explicit = c.pending.Name, true
		}
	}

	resolved, err := c.cube.resolver.Resolve(token, hint)
	if err != nil {
		return nil, err
	}

	child := c.derive()
	for _, rt := range resolved {
		switch rt.Kind {
		case DimensionSelection:
			child.pending = rt.Dimension
			continue
		case MeasureSelection:
			child.measure = rt.Measure
			continue
		case MemberSelection:
			rt.Explicit = rt.Explicit || explicit
		}

		if child.filter, err = child.filter.Apply(rt); err != nil {
			return nil, errors.Wrapf(err, "can't apply %s", token)
		}
	}

	c.cube.logger.DebugWith("Resolved token",
		"token", token.String(),
		"hint", hint,
		"address", child.Address())

	return child, nil
}

// Attr returns a child context for an identifier: a dimension or measure name
// or a member. Underscores also match spaces ("List_Price" is "List Price").
func (c *Context) Attr(name string) (*Context, error) {
	token, ok := c.cube.identifiers[name]
	if !ok {
		return nil, &UnresolvedTokenError{Token: name, Cause: fmt.Errorf("unknown attribute")}
	}

	return c.Resolve(token)
}

// As returns a context evaluating with agg
func (c *Context) As(agg Aggregation) *Context {
	child := c.derive()
	child.pending = c.pending
	child.aggregation = agg
	return child
}

// And returns a context selecting the rows selected by both c and other
func (c *Context) And(other *Context) (*Context, error) {
	return c.combine(AndOp, other)
}

// Or returns a context selecting the rows selected by c or other
func (c *Context) Or(other *Context) (*Context, error) {
	return c.combine(OrOp, other)
}

// Xor returns a context selecting the rows selected by exactly one of c and other
func (c *Context) Xor(other *Context) (*Context, error) {
	return c.combine(XorOp, other)
}

// Not returns a context selecting the rows c does not select
func (c *Context) Not() *Context {
	child := c.derive()
	child.filter, _ = c.filter.Combine(NotOp, nil)
	return child
}

// combine keeps the measure and aggregation of c
func (c *Context) combine(op BoolOp, other *Context) (*Context, error) {
	if other == nil {
		return nil, fmt.Errorf("%s needs two contexts", op)
	}

	if other.cube != c.cube {
		return nil, errors.Wrapf(ErrForeignContext, "can't combine %s with %s", c, other)
	}

	filter, err := c.filter.Combine(op, other.filter)
	if err != nil {
		return nil, err
	}

	child := c.derive()
	child.filter = filter
	return child, nil
}

// Cube returns the cube of the context
func (c *Context) Cube() *Cube {
	return c.cube
}

// Filter returns the accumulated filter
func (c *Context) Filter() *Filter {
	return c.filter
}

// Measure returns the active measure, nil if the cube has no measures
func (c *Context) Measure() *Measure {
	return c.measure
}

// Aggregation returns the active aggregation
func (c *Context) Aggregation() Aggregation {
	return c.aggregation
}

// Pending returns the dimension waiting for a member, nil if none
func (c *Context) Pending() *Dimension {
	return c.pending
}

// Address returns a canonical description of the context
func (c *Context) Address() string {
	address := c.filter.String()
	if c.measure != nil && c.measure != c.cube.schema.DefaultMeasure() {
		address += " @" + c.measure.Name
	}

	return address
}

func (c *Context) String() string {
	return c.Address()
}

// Mask returns the indices of the matching rows
func (c *Context) Mask() ([]int, error) {
	return c.filter.Rows(c.cube.frame)
}

// Rows returns a copy of the matching rows
func (c *Context) Rows() (Frame, error) {
	rows, err := c.Mask()
	if err != nil {
		return nil, err
	}

	return c.cube.frame.Take(rows)
}

// Len returns the number of matching rows
func (c *Context) Len() (int, error) {
	rows, err := c.Mask()
	if err != nil {
		return 0, err
	}

	return len(rows), nil
}

// Value evaluates the context with its aggregation (sum by default)
func (c *Context) Value() (float64, error) {
	return c.evaluate(c.aggregation)
}

// Sum returns the sum of the measure
func (c *Context) Sum() (float64, error) { return c.evaluate(Sum) }

// Avg returns the average of the measure
func (c *Context) Avg() (float64, error) { return c.evaluate(Avg) }

// Min returns the minimum of the measure
func (c *Context) Min() (float64, error) { return c.evaluate(Min) }

// Max returns the maximum of the measure
func (c *Context) Max() (float64, error) { return c.evaluate(Max) }

// Count returns the number of rows
func (c *Context) Count() (float64, error) { return c.evaluate(Count) }

// Median returns the median of the measure
func (c *Context) Median() (float64, error) { return c.evaluate(Median) }

// Stddev returns the population standard deviation of the measure
func (c *Context) Stddev() (float64, error) { return c.evaluate(Stddev) }

// Var returns the population variance of the measure
func (c *Context) Var() (float64, error) { return c.evaluate(Var) }

// Pof returns the sum as a fraction of the measure total
func (c *Context) Pof() (float64, error) { return c.evaluate(Pof) }

// NaNCount returns the number of NaN values
func (c *Context) NaNCount() (float64, error) { return c.evaluate(NaNCount) }

// ValueCount returns the number of non-NaN values
func (c *Context) ValueCount() (float64, error) { return c.evaluate(ValueCount) }

// ZeroCount returns the number of zero values
func (c *Context) ZeroCount() (float64, error) { return c.evaluate(ZeroCount) }

// NonZeroCount returns the number of non-zero values
func (c *Context) NonZeroCount() (float64, error) { return c.evaluate(NonZeroCount) }

func (c *Context) evaluate(agg Aggregation) (float64, error) {
	version := c.cube.version
	if value, ok := c.cached(agg, version); ok {
		return value, nil
	}

	rows, err := c.Mask()
	if err != nil {
		return 0, err
	}

	var value float64
	if c.measure == nil {
		value = float64(len(rows)) // no measures, count rows
	} else {
		values := []float64{}
		if len(rows) > 0 {
			if values, err = c.cube.measureValues(c.measure, rows); err != nil {
				return 0, err
			}
		}

		var total float64
		if agg == Pof {
			all, err := c.cube.measureValues(c.measure, nil)
			if err != nil {
				return 0, err
			}
			total = aggregate(Sum, all, 0)
		}

		value = aggregate(agg, values, total)
	}

	c.cacheLock.Lock()
	if c.cache == nil || c.cacheVersion != version {
		c.cache = make(map[Aggregation]float64)
		c.cacheVersion = version
	}
	c.cache[agg] = value
	c.cacheLock.Unlock()

	return value, nil
}

func (c *Context) cached(agg Aggregation, version uint64) (float64, bool) {
	c.cacheLock.Lock()
	defer c.cacheLock.Unlock()

	if c.cache == nil || c.cacheVersion != version {
		return 0, false
	}
	value, ok := c.cache[agg]
	return value, ok
}

// AsFloat converts a number or a context (by evaluating it) to float64
func AsFloat(value interface{}) (float64, error) {
	if ctx, ok := value.(*Context); ok {
		return ctx.Value()
	}

	if f, ok := asFloat64(value); ok {
		return f, nil
	}

	return 0, fmt.Errorf("%v (%T) is not a number", value, value)
}

// Float is Value, for use as a number
func (c *Context) Float() (float64, error) {
	return c.Value()
}

// Add returns the context value + other (a number or a context)
func (c *Context) Add(other interface{}) (float64, error) {
	return c.arithmetic(OpAdd, other)
}

// Sub returns the context value - other
func (c *Context) Sub(other interface{}) (float64, error) {
	return c.arithmetic(OpSub, other)
}

// Mul returns the context value * other
func (c *Context) Mul(other interface{}) (float64, error) {
	return c.arithmetic(OpMul, other)
}

// Div returns the context value / other
func (c *Context) Div(other interface{}) (float64, error) {
	return c.arithmetic(OpDiv, other)
}

// Mod returns the context value % other
func (c *Context) Mod(other interface{}) (float64, error) {
	return c.arithmetic(OpMod, other)
}

// Pow returns the context value ** other
func (c *Context) Pow(other interface{}) (float64, error) {
	return c.arithmetic(OpPow, other)
}

func (c *Context) arithmetic(op Operator, other interface{}) (float64, error) {
	a, err := c.Value()
	if err != nil {
		return 0, err
	}

	b, err := AsFloat(other)
	if err != nil {
		return 0, err
	}

	return op.Apply(a, b), nil
}

// Compare returns -1, 0 or 1 comparing the context value with other
func (c *Context) Compare(other interface{}) (int, error) {
	a, err := c.Value()
	if err != nil {
		return 0, err
	}

	b, err := AsFloat(other)
	if err != nil {
		return 0, err
	}

	if math.IsNaN(a) || math.IsNaN(b) {
		return 0, fmt.Errorf("can't compare NaN")
	}

	return compareFloats(a, b), nil
}

// Equal returns true if the context value equals other
func (c *Context) Equal(other interface{}) (bool, error) {
	a, err := c.Value()
	if err != nil {
		return false, err
	}

	b, err := AsFloat(other)
	if err != nil {
		return false, err
	}

	return a == b, nil
}

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

	"github.com/pkg/errors"
)

// Operator is an arithmetic operator for row-wise updates
type Operator int

// Operators
const (
	OpAdd Operator = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpPow
)

var operatorSymbols = map[Operator]string{
	OpAdd: "+",
	OpSub: "-",
	OpMul: "*",
	OpDiv: "/",
	OpMod: "%",
	OpPow: "**",
}

func (op Operator) String() string {
	if symbol, ok := operatorSymbols[op]; ok {
		return symbol
	}

	return fmt.Sprintf("operator(%d)", int(op))
}

// ParseOperator returns the operator for a symbol (+, -, *, /, %, **) or name
// (add, sub, mul, div, mod, pow)
func ParseOperator(s string) (Operator, error) {
	switch s {
	case "+", "add":
		return OpAdd, nil
	case "-", "sub":
		return OpSub, nil
	case "*", "mul":
		return OpMul, nil
	case "/", "div":
		return OpDiv, nil
	case "%", "mod":
		return OpMod, nil
	case "**", "^", "pow":
		return OpPow, nil
	}

	return OpAdd, fmt.Errorf("unknown operator - %q", s)
}

// Apply returns a op b
func (op Operator) Apply(a, b float64) float64 {
	switch op {
	case OpAdd:
		return a + b
	case OpSub:
		return a - b
	case OpMul:
		return a * b
	case OpDiv:
		return a / b
	case OpMod:
		return math.Mod(a, b)
	case OpPow:
		return math.Pow(a, b)
	}

	return math.NaN()
}

// AllocationFunction is how a written value is spread over the matching rows
type AllocationFunction int

// Allocation functions
const (
	AllocDistribute AllocationFunction = iota // scale rows so they sum to the value, keeping their proportions
	AllocSet                                  // every row is set to the value
	AllocDelta                                // the value is added to every row, NaN counts as 0
	AllocMultiply                             // every row is multiplied by the value
	AllocZero                                 // every row is set to 0
	AllocNaN                                  // every row is set to NaN
)

var allocationNames = map[AllocationFunction]string{
	AllocDistribute: "distribute",
	AllocSet:        "set",
	AllocDelta:      "delta",
	AllocMultiply:   "multiply",
	AllocZero:       "zero",
	AllocNaN:        "nan",
}

func (fn AllocationFunction) String() string {
	if name, ok := allocationNames[fn]; ok {
		return name
	}

	return fmt.Sprintf("allocation(%d)", int(fn))
}

// ParseAllocationFunction returns the allocation function by name
func ParseAllocationFunction(name string) (AllocationFunction, error) {
	for fn, fnName := range allocationNames {
		if fnName == name {
			return fn, nil
		}
	}

	return AllocSet, fmt.Errorf("unknown allocation function - %q", name)
}

// Set writes value to the active measure of every matching row. It returns a
// fresh context over the same address.
func (c *Context) Set(value interface{}) (*Context, error) {
	return c.Allocate(value, AllocSet)
}

// Update applies op with operand to every matching row individually
// (e.g. OpMul, 2 doubles every row)
func (c *Context) Update(op Operator, operand interface{}) (*Context, error) {
	b, err := c.writeOperand(operand)
	if err != nil {
		return nil, err
	}

	return c.write(fmt.Sprintf("%s %v", op, operand), func(values []float64) []float64 {
		out := make([]float64, len(values))
		for i, a := range values {
			out[i] = op.Apply(a, b)
		}
		return out
	})
}

// Allocate writes value to the matching rows using fn
func (c *Context) Allocate(value interface{}, fn AllocationFunction) (*Context, error) {
	var v float64
	switch fn {
	case AllocZero, AllocNaN:
	default:
		var err error
		if v, err = c.writeOperand(value); err != nil {
			return nil, err
		}
	}

	var allocate func([]float64) []float64
	switch fn {
	case AllocDistribute:
		allocate = func(values []float64) []float64 {
			out := make([]float64, len(values))
			current := aggregate(Sum, values, 0)
			for i, a := range values {
				if current == 0 {
					out[i] = v / float64(len(values))
					continue
				}
				if math.IsNaN(a) {
					a = 0
				}
				out[i] = a / current * v
			}
			return out
		}
	case AllocSet:
		allocate = func(values []float64) []float64 {
			return fill(len(values), v)
		}
	case AllocDelta:
		allocate = func(values []float64) []float64 {
			out := make([]float64, len(values))
			for i, a := range values {
				if math.IsNaN(a) {
					a = 0
				}
				out[i] = a + v
			}
			return out
		}
	case AllocMultiply:
		allocate = func(values []float64) []float64 {
			out := make([]float64, len(values))
			for i, a := range values {
				out[i] = a * v
			}
			return out
		}
	case AllocZero:
		allocate = func(values []float64) []float64 {
			return fill(len(values), 0)
		}
	case AllocNaN:
		allocate = func(values []float64) []float64 {
			return fill(len(values), math.NaN())
		}
	default:
		return nil, fmt.Errorf("unknown allocation function - %s", fn)
	}

	return c.write(fmt.Sprintf("%s %v", fn, value), allocate)
}

// Delete removes the matching rows from the dataset. Deleting no rows is a
// no-op unless the cube uses strict deletes.
func (c *Context) Delete() (*Context, error) {
	if c.cube.readOnly {
		return nil, ErrReadOnly
	}

	rows, err := c.Mask()
	if err != nil {
		return nil, err
	}

	if len(rows) == 0 {
		if c.cube.strictDelete {
			return nil, &EmptySelectionError{Address: c.Address()}
		}
		return c.derive(), nil
	}

	if err := c.cube.frame.DeleteRows(rows); err != nil {
		return nil, errors.Wrapf(err, "can't delete %s", c.Address())
	}

	c.cube.version++
	c.cube.logger.DebugWith("Deleted rows", "address", c.Address(), "rows", len(rows))

	return c.derive(), nil
}

func (c *Context) writeOperand(value interface{}) (float64, error) {
	if c.measure == nil {
		return 0, ErrNoMeasure
	}

	if ctx, ok := value.(*Context); ok {
		return ctx.Value()
	}

	v, ok := asFloat64(value)
	if !ok {
		return 0, &TypeMismatchError{Column: c.measure.Column, DType: c.measure.DType, Value: value}
	}

	return v, nil
}

// write replaces the measure values of the matching rows with allocate(values)
func (c *Context) write(description string, allocate func([]float64) []float64) (*Context, error) {
	if c.cube.readOnly {
		return nil, ErrReadOnly
	}

	if c.measure == nil {
		return nil, ErrNoMeasure
	}

	rows, err := c.Mask()
	if err != nil {
		return nil, err
	}

	if len(rows) == 0 {
		return nil, &EmptySelectionError{
			Address: c.Address(),
			Cause:   errors.Wrap(ErrNotImplemented, "inserting rows on write"),
		}
	}

	values, err := c.cube.measureValues(c.measure, rows)
	if err != nil {
		return nil, err
	}

	updated := allocate(values)
	for i, row := range rows {
		if err := c.cube.frame.Set(c.measure.Column, row, writeValue(updated[i])); err != nil {
			return nil, errors.Wrapf(err, "can't write row %d", row)
		}
	}

	c.cube.version++
	c.cube.logger.DebugWith("Wrote rows",
		"address", c.Address(),
		"measure", c.measure.Name,
		"write", description,
		"rows", len(rows))

	return c.derive(), nil
}

// writeValue keeps integral values as int64 so int columns stay int
func writeValue(v float64) interface{} {
	if i, ok := asInt64(v); ok && math.Abs(v) < 1<<53 {
		return i
	}

	return v
}

func fill(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}

	return out
}

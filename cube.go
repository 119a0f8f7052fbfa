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
	"time"
	"unicode"

	"github.com/nuclio/logger"
	"github.com/pkg/errors"

	"github.com/v3io/cubes/dates"
	"github.com/v3io/cubes/expr"
)

// Cube is a multidimensional view over a frame. It owns the frame, writes
// through any context modify it in place.
type Cube struct {
	frame       Frame
	schema      *Schema
	resolver    *Resolver
	identifiers map[string]Token
	ambiguities []Ambiguity
	logger      logger.Logger

	readOnly     bool
	strictDelete bool

	version uint64 // bumped on every write, invalidates context caches
}

// New returns a new cube over frame
func New(frame Frame, options ...Option) (*Cube, error) {
	opts := &cubeOptions{
		listDelimiter:    defaultListDelimiter,
		expressionParser: ExpressionParserFunc(parseExpression),
		dateResolver:     dates.NewResolver(time.Now),
	}

	for _, option := range options {
		if err := option(opts); err != nil {
			return nil, err
		}
	}

	if opts.logger == nil {
		var err error
		if opts.logger, err = NewLogger(defaultLogLevel); err != nil {
			return nil, errors.Wrap(err, "can't create logger")
		}
	}

	if frame == nil {
		return nil, &SchemaError{Reason: "nil dataset"}
	}

	var (
		schema *Schema
		err    error
	)

	if opts.schema != nil {
		schema, err = NewSchemaFromDefinition(frame, opts.schema)
	} else {
		schema, err = InferSchema(frame, opts.exclude...)
	}

	if err != nil {
		return nil, err
	}

	cube := &Cube{
		frame:        frame,
		schema:       schema,
		logger:       opts.logger,
		readOnly:     opts.readOnly,
		strictDelete: opts.strictDelete,
		ambiguities:  schema.Ambiguities(),
	}

	cube.resolver = NewResolver(schema, ResolverOptions{
		Fuzzy:            opts.fuzzy,
		ListDelimiter:    opts.listDelimiter,
		Columns:          frame.Names(),
		ExpressionParser: opts.expressionParser,
		DateResolver:     opts.dateResolver,
	})

	cube.identifiers = cube.buildIdentifiers()

	cube.logger.InfoWith("Cube created",
		"rows", frame.Len(),
		"dimensions", len(schema.Dimensions()),
		"measures", len(schema.Measures()),
		"readOnly", cube.readOnly)

	if len(cube.ambiguities) > 0 {
		examples := make([]string, 0, 3)
		for i := 0; i < len(cube.ambiguities) && i < cap(examples); i++ {
			examples = append(examples, fmt.Sprint(cube.ambiguities[i].Member))
		}

		cube.logger.WarnWith("Cube has ambiguous members, use dimension:member to address them",
			"count", len(cube.ambiguities),
			"examples", examples)
	}

	return cube, nil
}

// NewFromConfig returns a cube over frame configured by cfg
func NewFromConfig(frame Frame, cfg *Config, options ...Option) (*Cube, error) {
	return New(frame, append([]Option{WithConfig(cfg)}, options...)...)
}

func parseExpression(expression string) (Predicate, error) {
	return expr.Parse(expression)
}

// Root returns the context over the whole cube
func (c *Cube) Root() *Context {
	return newContext(c, NewFilter(), c.schema.DefaultMeasure(), Sum)
}

// Get is Root().Get(parts...)
func (c *Cube) Get(parts ...interface{}) (*Context, error) {
	return c.Root().Get(parts...)
}

// Attr is Root().Attr(name)
func (c *Cube) Attr(name string) (*Context, error) {
	return c.Root().Attr(name)
}

// Value returns the value at address
func (c *Cube) Value(parts ...interface{}) (float64, error) {
	ctx, err := c.Get(parts...)
	if err != nil {
		return 0, err
	}

	return ctx.Value()
}

// Set writes value to the rows at address
func (c *Cube) Set(value interface{}, parts ...interface{}) (*Context, error) {
	ctx, err := c.Get(parts...)
	if err != nil {
		return nil, err
	}

	return ctx.Set(value)
}

// Update applies op to every row at address
func (c *Cube) Update(op Operator, operand interface{}, parts ...interface{}) (*Context, error) {
	ctx, err := c.Get(parts...)
	if err != nil {
		return nil, err
	}

	return ctx.Update(op, operand)
}

// Allocate writes value to the rows at address using fn
func (c *Cube) Allocate(value interface{}, fn AllocationFunction, parts ...interface{}) (*Context, error) {
	ctx, err := c.Get(parts...)
	if err != nil {
		return nil, err
	}

	return ctx.Allocate(value, fn)
}

// Delete removes the rows at address
func (c *Cube) Delete(parts ...interface{}) (*Context, error) {
	ctx, err := c.Get(parts...)
	if err != nil {
		return nil, err
	}

	return ctx.Delete()
}

// Schema returns the cube schema
func (c *Cube) Schema() *Schema {
	return c.schema
}

// Frame returns the underlying frame
func (c *Cube) Frame() Frame {
	return c.frame
}

// Len returns the number of rows
func (c *Cube) Len() int {
	return c.frame.Len()
}

// ReadOnly returns true if the cube rejects writes
func (c *Cube) ReadOnly() bool {
	return c.readOnly
}

// Ambiguities returns the members found in more than one place when the cube
// was created
func (c *Cube) Ambiguities() []Ambiguity {
	return c.ambiguities
}

// Logger returns the cube logger
func (c *Cube) Logger() logger.Logger {
	return c.logger
}

// Identifiers returns the names usable with Attr
func (c *Cube) Identifiers() []string {
	names := make([]string, 0, len(c.identifiers))
	for name := range c.identifiers {
		names = append(names, name)
	}

	return names
}

// measureValues returns the measure values at rows as floats, nil rows is
// all rows
func (c *Cube) measureValues(measure *Measure, rows []int) ([]float64, error) {
	col, err := c.frame.Column(measure.Column)
	if err != nil {
		return nil, errors.Wrapf(err, "can't get measure %s", measure.Name)
	}

	if rows == nil {
		rows = make([]int, col.Len())
		for i := range rows {
			rows[i] = i
		}
	}

	values := make([]float64, len(rows))
	switch col.DType() {
	case FloatType:
		data, err := col.Floats()
		if err != nil {
			return nil, err
		}
		for i, row := range rows {
			values[i] = data[row]
		}
	case IntType:
		data, err := col.Ints()
		if err != nil {
			return nil, err
		}
		for i, row := range rows {
			values[i] = float64(data[row])
		}
	default:
		return nil, fmt.Errorf("measure %s is not numeric - %s", measure.Name, col.DType())
	}

	return values, nil
}

// buildIdentifiers maps attribute names to tokens. Dimension and measure names
// come first, then string members that are valid identifiers. Spaces are
// also reachable with underscores, exact names always win.
func (c *Cube) buildIdentifiers() map[string]Token {
	identifiers := make(map[string]Token)
	add := func(name string) {
		if name == "" {
			return
		}

		if _, ok := identifiers[name]; !ok && isIdentifier(name) {
			identifiers[name] = Scalar(name)
		}
	}

	var names []string
	for _, dim := range c.schema.Dimensions() {
		names = append(names, dim.Name)
		if dim.Alias != "" {
			names = append(names, dim.Alias)
		}
	}

	for _, measure := range c.schema.Measures() {
		names = append(names, measure.Name)
	}

	for _, dim := range c.schema.Dimensions() {
		if dim.DType != StringType {
			continue
		}

		for _, member := range dim.members {
			names = append(names, member.(string))
		}
	}

	for _, name := range names {
		add(name)
	}

	for _, name := range names {
		underscored := strings.ReplaceAll(name, " ", "_")
		if underscored == name || !isIdentifier(underscored) {
			continue
		}

		if _, ok := identifiers[underscored]; !ok {
			identifiers[underscored] = Scalar(name)
		}
	}

	return identifiers
}

func isIdentifier(name string) bool {
	if name == "" {
		return false
	}

	for i, r := range name {
		if r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}

	return true
}

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
	"context"
	"math"
	"math/rand"
	"testing"
	"testing/quick"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/v3io/cubes/batch"
	"github.com/v3io/cubes/dates"
)

func newSalesFrame(t *testing.T) Frame {
	frame, err := NewFrameFromMap(map[string]interface{}{
		"product": []string{"Apple", "Pear", "Banana", "Apple", "Pear", "Banana"},
		"channel": []string{"Online", "Online", "Online", "Retail", "Retail", "Retail"},
		"revenue": []int64{100, 150, 300, 200, 250, 350},
		"cost":    []int64{50, 100, 200, 100, 150, 150},
	}, []string{"product", "channel", "revenue", "cost"})
	require.NoError(t, err)
	return frame
}

type CubeTestSuite struct {
	suite.Suite
	cube *Cube
}

func (suite *CubeTestSuite) newCube(options ...Option) *Cube {
	logger, err := NewLogger("debug")
	suite.Require().NoError(err)

	options = append([]Option{WithLogger(logger)}, options...)
	cube, err := New(newSalesFrame(suite.T()), options...)
	suite.Require().NoError(err)
	return cube
}

func (suite *CubeTestSuite) SetupTest() {
	suite.cube = suite.newCube()
}

func (suite *CubeTestSuite) value(parts ...interface{}) float64 {
	value, err := suite.cube.Value(parts...)
	suite.Require().NoError(err)
	return value
}

func (suite *CubeTestSuite) TestSchema() {
	schema := suite.cube.Schema()
	suite.Require().Len(schema.Dimensions(), 2)
	suite.Require().Equal("product", schema.Dimensions()[0].Name)
	suite.Require().Equal([]interface{}{"Apple", "Pear", "Banana"}, schema.Dimensions()[0].Members())
	suite.Require().Len(schema.Measures(), 2)
	suite.Require().Equal("revenue", schema.DefaultMeasure().Name)
	suite.Require().Equal(6, suite.cube.Len())
	suite.Require().Empty(suite.cube.Ambiguities())
}

func (suite *CubeTestSuite) TestAddress() {
	cases := []struct {
		name     string
		parts    []interface{}
		expected float64
	}{
		{"member", []interface{}{"Online"}, 550},
		{"qualified", []interface{}{"product:Banana"}, 650},
		{"two dimensions", []interface{}{"Apple", "Online"}, 100},
		{"or-group", []interface{}{[]string{"Apple", "Banana"}, "Online"}, 400},
		{"wildcard", []interface{}{"*"}, 1350},
		{"bare wildcard", []interface{}{"Apple", "*"}, 300},
		{"dimension wildcard", []interface{}{"Apple", "product", "*"}, 1350},
		{"measure", []interface{}{"cost"}, 750},
		{"measure and member", []interface{}{"Apple", "cost"}, 150},
		{"pending dimension", []interface{}{"product", "Apple"}, 300},
		{"pending replaces", []interface{}{"Apple", "product", "Pear"}, 400},
		{"same dimension union", []interface{}{"Apple", "Pear"}, 700},
		{"list", []interface{}{"Apple, Online"}, 100},
		{"list in dimension", []interface{}{"product:Apple, Pear"}, 700},
		{"mapping", []interface{}{map[string]interface{}{
			"product": []string{"Apple", "Pear"},
			"channel": "Online",
		}}, 250},
		{"qualified token", []interface{}{Qualified("channel", "Retail")}, 800},
		{"expression", []interface{}{"revenue > 200"}, 900},
		{"expression and member", []interface{}{"Online", "cost >= 100"}, 450},
		{"in expression", []interface{}{"product in ('Apple', 'Pear')"}, 700},
		{"empty expression", []interface{}{"revenue > 1000"}, 0},
	}

	for _, tc := range cases {
		suite.Run(tc.name, func() {
			suite.Require().Equal(tc.expected, suite.value(tc.parts...))
		})
	}
}

func (suite *CubeTestSuite) TestValues() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := batch.NewPool(ctx, 16, 4)
	suite.Require().NoError(err)

	addresses := [][]interface{}{
		{"Apple"},
		{"Pear", "Online"},
		{"Banana", "cost"},
		{"*"},
	}

	values, err := suite.cube.Root().Values(pool, addresses, 4)
	suite.Require().NoError(err)
	suite.Require().Equal([]float64{300, 150, 350, 1350}, values)

	retail, err := suite.cube.Get("Retail")
	suite.Require().NoError(err)
	values, err = retail.As(Max).Values(pool, addresses, 2)
	suite.Require().NoError(err)
	suite.Require().Equal([]float64{200, 250, 150, 350}, values)

	_, err = suite.cube.Root().Values(pool, [][]interface{}{{"Apple"}, {"Cherry"}}, 2)
	var unresolved *UnresolvedTokenError
	suite.Require().True(errors.As(err, &unresolved))
}

func (suite *CubeTestSuite) TestValuesSharedBase() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := batch.NewPool(ctx, 64, 8)
	suite.Require().NoError(err)

	base, err := suite.cube.Get("product like 'P%' or channel like product")
	suite.Require().NoError(err)

	addresses := make([][]interface{}, 32)
	expected := make([]float64, len(addresses))
	for i := range addresses {
		switch i % 3 {
		case 0:
			expected[i] = 400
		case 1:
			addresses[i] = []interface{}{"*"}
			expected[i] = 400
		case 2:
			addresses[i] = []interface{}{"Online"}
			expected[i] = 150
		}
	}

	for i := 0; i < 10; i++ {
		values, err := base.Values(pool, addresses, 8)
		suite.Require().NoError(err)
		suite.Require().Equal(expected, values)
	}
}

func (suite *CubeTestSuite) TestMaskEquivalence() {
	alpha := []string{"x0", "x1", "x2", "x3"}
	beta := []string{"y0", "y1", "y2"}

	check := func(seed int64) bool {
		random := rand.New(rand.NewSource(seed))
		size := 1 + random.Intn(40)

		a := make([]string, size)
		b := make([]string, size)
		amount := make([]int64, size)
		for i := 0; i < size; i++ {
			a[i] = alpha[random.Intn(len(alpha))]
			b[i] = beta[random.Intn(len(beta))]
			amount[i] = int64(random.Intn(201) - 100)
		}

		frame, err := NewFrameFromMap(map[string]interface{}{
			"alpha":  a,
			"beta":   b,
			"amount": amount,
		}, []string{"alpha", "beta", "amount"})
		if err != nil {
			return false
		}

		cube, err := New(frame)
		if err != nil {
			return false
		}

		// members are taken from the data so every part resolves
		var parts []interface{}
		selectedA := make(map[string]bool)
		selectedB := make(map[string]bool)
		for n := 1 + random.Intn(4); n > 0; n-- {
			row := random.Intn(size)
			if random.Intn(2) == 0 {
				parts = append(parts, a[row])
				selectedA[a[row]] = true
			} else {
				parts = append(parts, b[row])
				selectedB[b[row]] = true
			}
		}

		var sum, count float64
		for i := 0; i < size; i++ {
			if len(selectedA) > 0 && !selectedA[a[i]] {
				continue
			}
			if len(selectedB) > 0 && !selectedB[b[i]] {
				continue
			}
			sum += float64(amount[i])
			count++
		}

		ctx, err := cube.Get(parts...)
		if err != nil {
			return false
		}

		value, err := ctx.Value()
		if err != nil || value != sum {
			return false
		}

		n, err := ctx.Count()
		return err == nil && n == count
	}

	suite.Require().NoError(quick.Check(check, nil))
}

func (suite *CubeTestSuite) TestBooleanContexts() {
	apple, err := suite.cube.Get("Apple")
	suite.Require().NoError(err)
	online, err := suite.cube.Get("Online")
	suite.Require().NoError(err)

	and, err := apple.And(online)
	suite.Require().NoError(err)
	or, err := apple.Or(online)
	suite.Require().NoError(err)
	xor, err := apple.Xor(online)
	suite.Require().NoError(err)
	not := apple.Not()

	cases := []struct {
		name     string
		ctx      *Context
		expected float64
	}{
		{"and", and, 100},
		{"or", or, 750},
		{"xor", xor, 650},
		{"not", not, 1050},
	}

	for _, tc := range cases {
		value, err := tc.ctx.Value()
		suite.Require().NoError(err, tc.name)
		suite.Require().Equal(tc.expected, value, tc.name)
	}

	// combined contexts keep narrowing like any other
	orCost, err := or.Get("cost")
	suite.Require().NoError(err)
	value, err := orCost.Value()
	suite.Require().NoError(err)
	suite.Require().Equal(450.0, value)

	retail, err := or.Get("Retail")
	suite.Require().NoError(err)
	value, err = retail.Value()
	suite.Require().NoError(err)
	suite.Require().Equal(200.0, value)

	suite.Require().Equal(300.0, suite.value(or, "Apple"))

	other := suite.newCube()
	foreign, err := other.Get("Online")
	suite.Require().NoError(err)
	_, err = apple.Or(foreign)
	suite.Require().True(errors.Is(err, ErrForeignContext))
}

func (suite *CubeTestSuite) TestChaining() {
	apple, err := suite.cube.Get("Apple")
	suite.Require().NoError(err)

	online, err := apple.Get("Online")
	suite.Require().NoError(err)

	value, err := online.Value()
	suite.Require().NoError(err)
	suite.Require().Equal(100.0, value)

	// parent is not modified
	value, err = apple.Value()
	suite.Require().NoError(err)
	suite.Require().Equal(300.0, value)

	attr, err := apple.Attr("Retail")
	suite.Require().NoError(err)
	value, err = attr.Value()
	suite.Require().NoError(err)
	suite.Require().Equal(200.0, value)
}

func (suite *CubeTestSuite) TestOrderIndependence() {
	parts := []interface{}{"Apple", "Online", "cost"}
	reference, err := suite.cube.Get(parts...)
	suite.Require().NoError(err)
	expected, err := reference.Value()
	suite.Require().NoError(err)
	suite.Require().Equal(50.0, expected)

	check := func(seed int64) bool {
		shuffled := make([]interface{}, len(parts))
		copy(shuffled, parts)
		rand.New(rand.NewSource(seed)).Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		ctx, err := suite.cube.Get(shuffled...)
		if err != nil {
			return false
		}

		value, err := ctx.Value()
		return err == nil && value == expected && ctx.Address() == reference.Address()
	}

	suite.Require().NoError(quick.Check(check, nil))
}

func (suite *CubeTestSuite) TestCanonicalAddress() {
	a, err := suite.cube.Get("Apple", "Online")
	suite.Require().NoError(err)
	b, err := suite.cube.Get("channel:Online", "product", "Apple")
	suite.Require().NoError(err)

	suite.Require().Equal("channel=Online & product=Apple", a.Address())
	suite.Require().True(a.Filter().Equal(b.Filter()))

	c, err := suite.cube.Get("Banana, Apple", "cost")
	suite.Require().NoError(err)
	suite.Require().Equal("product=(Apple|Banana) @cost", c.Address())

	suite.Require().Equal("*", suite.cube.Root().Address())
}

func (suite *CubeTestSuite) TestQualifiedUnion() {
	suite.Require().Equal(700.0, suite.value("product:Apple", "product:Pear"))
	suite.Require().Equal(700.0, suite.value("Apple", "product:Pear"))

	// a member following its dimension name replaces the constraint
	suite.Require().Equal(400.0, suite.value("Apple", "product", "Pear"))
}

func (suite *CubeTestSuite) TestContextToken() {
	online, err := suite.cube.Get("Online")
	suite.Require().NoError(err)

	suite.Require().Equal(100.0, suite.value("Apple", online))
	suite.Require().Equal(100.0, suite.value("Apple", FromContext(online)))

	other := suite.newCube()
	foreign, err := other.Get("Online")
	suite.Require().NoError(err)

	_, err = suite.cube.Get("Apple", foreign)
	suite.Require().Error(err)
	suite.Require().True(errors.Is(err, ErrForeignContext))
}

func (suite *CubeTestSuite) TestAggregations() {
	apple, err := suite.cube.Get("Apple")
	suite.Require().NoError(err)

	cases := []struct {
		agg      Aggregation
		expected float64
	}{
		{Sum, 300},
		{Avg, 150},
		{Min, 100},
		{Max, 200},
		{Count, 2},
		{Median, 150},
		{Stddev, 50},
		{Var, 2500},
		{Pof, 300.0 / 1350.0},
		{NaNCount, 0},
		{ValueCount, 2},
		{ZeroCount, 0},
		{NonZeroCount, 2},
	}

	for _, tc := range cases {
		suite.Run(tc.agg.String(), func() {
			value, err := apple.As(tc.agg).Value()
			suite.Require().NoError(err)
			suite.Require().InDelta(tc.expected, value, 1e-9)
		})
	}

	avg, err := apple.Avg()
	suite.Require().NoError(err)
	suite.Require().Equal(150.0, avg)
}

func (suite *CubeTestSuite) TestEmptySelection() {
	empty, err := suite.cube.Get("revenue > 1000")
	suite.Require().NoError(err)

	n, err := empty.Len()
	suite.Require().NoError(err)
	suite.Require().Equal(0, n)

	sum, err := empty.Sum()
	suite.Require().NoError(err)
	suite.Require().Equal(0.0, sum)

	count, err := empty.Count()
	suite.Require().NoError(err)
	suite.Require().Equal(0.0, count)

	avg, err := empty.Avg()
	suite.Require().NoError(err)
	suite.Require().True(math.IsNaN(avg))

	pof, err := empty.Pof()
	suite.Require().NoError(err)
	suite.Require().Equal(0.0, pof)
}

func (suite *CubeTestSuite) TestArithmetic() {
	apple, err := suite.cube.Get("Apple")
	suite.Require().NoError(err)
	pear, err := suite.cube.Get("Pear")
	suite.Require().NoError(err)

	sum, err := apple.Add(pear)
	suite.Require().NoError(err)
	suite.Require().Equal(700.0, sum)

	ratio, err := pear.Div(apple)
	suite.Require().NoError(err)
	suite.Require().InDelta(400.0/300.0, ratio, 1e-9)

	double, err := apple.Mul(2)
	suite.Require().NoError(err)
	suite.Require().Equal(600.0, double)

	cmp, err := apple.Compare(pear)
	suite.Require().NoError(err)
	suite.Require().Equal(-1, cmp)

	equal, err := apple.Equal(300)
	suite.Require().NoError(err)
	suite.Require().True(equal)
}

func (suite *CubeTestSuite) TestCacheInvalidation() {
	apple, err := suite.cube.Get("Apple")
	suite.Require().NoError(err)

	value, err := apple.Value()
	suite.Require().NoError(err)
	suite.Require().Equal(300.0, value)
	suite.Require().Equal(suite.cube.version, apple.cacheVersion)

	_, err = suite.cube.Set(10, "Apple")
	suite.Require().NoError(err)

	value, err = apple.Value()
	suite.Require().NoError(err)
	suite.Require().Equal(20.0, value)
	suite.Require().Equal(suite.cube.version, apple.cacheVersion)
}

func (suite *CubeTestSuite) TestSetSum() {
	check := func(v int16) bool {
		cube := suite.newCube()
		ctx, err := cube.Set(v, "Banana")
		if err != nil {
			return false
		}

		value, err := ctx.Value()
		return err == nil && value == 2*float64(v)
	}

	suite.Require().NoError(quick.Check(check, &quick.Config{MaxCount: 20}))
}

func (suite *CubeTestSuite) TestSetContext() {
	pear, err := suite.cube.Get("Pear", "Online")
	suite.Require().NoError(err)

	_, err = suite.cube.Set(pear, "Apple", "Online")
	suite.Require().NoError(err)
	suite.Require().Equal(150.0, suite.value("Apple", "Online"))
}

func (suite *CubeTestSuite) TestUpdate() {
	_, err := suite.cube.Update(OpMul, 2, "Online")
	suite.Require().NoError(err)
	suite.Require().Equal(1100.0, suite.value("Online"))
	suite.Require().Equal(800.0, suite.value("Retail"))

	_, err = suite.cube.Update(OpDiv, 2, "Retail")
	suite.Require().NoError(err)
	suite.Require().Equal(400.0, suite.value("Retail"))

	_, err = suite.cube.Update(OpAdd, 1, "Apple")
	suite.Require().NoError(err)
	suite.Require().Equal(201.0, suite.value("Apple", "Online"))
	suite.Require().Equal(101.0, suite.value("Apple", "Retail"))

	col, err := suite.cube.Frame().Column("revenue")
	suite.Require().NoError(err)
	suite.Require().Equal(IntType, col.DType())
}

func (suite *CubeTestSuite) TestAllocate() {
	cases := []struct {
		name     string
		fn       AllocationFunction
		value    interface{}
		apple    float64
		total    float64
		nanCount float64
	}{
		{"distribute", AllocDistribute, 600, 600, 1650, 0},
		{"set", AllocSet, 5, 10, 1060, 0},
		{"delta", AllocDelta, 10, 320, 1370, 0},
		{"multiply", AllocMultiply, 3, 900, 1950, 0},
		{"zero", AllocZero, nil, 0, 1050, 0},
		{"nan", AllocNaN, nil, 0, 1050, 2},
	}

	for _, tc := range cases {
		suite.Run(tc.name, func() {
			cube := suite.newCube()
			ctx, err := cube.Allocate(tc.value, tc.fn, "Apple")
			suite.Require().NoError(err)

			value, err := ctx.Value()
			suite.Require().NoError(err)
			suite.Require().InDelta(tc.apple, value, 1e-9)

			nans, err := ctx.NaNCount()
			suite.Require().NoError(err)
			suite.Require().Equal(tc.nanCount, nans)

			total, err := cube.Value()
			suite.Require().NoError(err)
			suite.Require().InDelta(tc.total, total, 1e-9)
		})
	}
}

func (suite *CubeTestSuite) TestDistributeProportional() {
	_, err := suite.cube.Allocate(1100, AllocDistribute, "Online")
	suite.Require().NoError(err)
	suite.Require().InDelta(1100, suite.value("Online"), 1e-9)
	suite.Require().InDelta(200, suite.value("Apple", "Online"), 1e-9)
	suite.Require().InDelta(600, suite.value("Banana", "Online"), 1e-9)
}

func (suite *CubeTestSuite) TestDistributeZeroSum() {
	_, err := suite.cube.Allocate(nil, AllocZero, "Apple")
	suite.Require().NoError(err)

	_, err = suite.cube.Allocate(10, AllocDistribute, "Apple")
	suite.Require().NoError(err)
	suite.Require().Equal(5.0, suite.value("Apple", "Online"))
	suite.Require().Equal(5.0, suite.value("Apple", "Retail"))
}

func (suite *CubeTestSuite) TestDelete() {
	ctx, err := suite.cube.Delete("Retail")
	suite.Require().NoError(err)

	value, err := ctx.Value()
	suite.Require().NoError(err)
	suite.Require().Equal(0.0, value)

	suite.Require().Equal(3, suite.cube.Len())
	suite.Require().Equal(550.0, suite.value())
	suite.Require().Equal(100.0, suite.value("Apple"))

	// no rows left, still fine
	_, err = suite.cube.Delete("Retail")
	suite.Require().NoError(err)
}

func (suite *CubeTestSuite) TestStrictDelete() {
	cube := suite.newCube(WithStrictDelete(true))
	_, err := cube.Delete("revenue > 1000")

	var emptyErr *EmptySelectionError
	suite.Require().True(errors.As(err, &emptyErr))
	suite.Require().Equal(6, cube.Len())
}

func (suite *CubeTestSuite) TestWriteEmpty() {
	_, err := suite.cube.Set(1, "revenue > 1000")

	var emptyErr *EmptySelectionError
	suite.Require().True(errors.As(err, &emptyErr))
	suite.Require().True(errors.Is(err, ErrNotImplemented))
	suite.Require().Equal(1350.0, suite.value())
}

func (suite *CubeTestSuite) TestWriteErrors() {
	_, err := suite.cube.Set("abc", "Apple")
	var typeErr *TypeMismatchError
	suite.Require().True(errors.As(err, &typeErr))

	readOnly := suite.newCube(WithReadOnly(true))
	suite.Require().True(readOnly.ReadOnly())

	_, err = readOnly.Set(1, "Apple")
	suite.Require().Equal(ErrReadOnly, errors.Cause(err))

	_, err = readOnly.Delete("Apple")
	suite.Require().Equal(ErrReadOnly, errors.Cause(err))

	value, err := readOnly.Value("Apple")
	suite.Require().NoError(err)
	suite.Require().Equal(300.0, value)
}

func (suite *CubeTestSuite) TestResolveErrors() {
	_, err := suite.cube.Get("Cherry")
	var unresolved *UnresolvedTokenError
	suite.Require().True(errors.As(err, &unresolved))

	_, err = suite.cube.Get("region:West")
	var unknownDim *UnknownDimensionError
	suite.Require().True(errors.As(err, &unknownDim))
	suite.Require().Equal("region", unknownDim.Dimension)

	_, err = suite.cube.Get("product:Cherry")
	var unknownMember *UnknownMemberError
	suite.Require().True(errors.As(err, &unknownMember))

	_, err = suite.cube.Get([]interface{}{"Apple", "Online"})
	suite.Require().True(errors.As(err, &unresolved))

	_, err = suite.cube.Get(struct{}{})
	suite.Require().True(errors.As(err, &unresolved))

	_, err = suite.cube.Attr("nope")
	suite.Require().True(errors.As(err, &unresolved))

	_, err = suite.cube.Get("unknown_column > 1")
	suite.Require().True(errors.As(err, &unresolved))
}

func (suite *CubeTestSuite) TestFuzzy() {
	cube := suite.newCube(WithFuzzy(true))

	value, err := cube.Value("apple")
	suite.Require().NoError(err)
	suite.Require().Equal(300.0, value)

	value, err = cube.Value("B*")
	suite.Require().NoError(err)
	suite.Require().Equal(650.0, value)

	_, err = cube.Get("*a*")
	var ambiguous *AmbiguousTokenError
	suite.Require().True(errors.As(err, &ambiguous))
	suite.Require().Len(ambiguous.Candidates, 2)

	_, err = suite.cube.Get("apple")
	suite.Require().Error(err)
}

func (suite *CubeTestSuite) TestListDelimiter() {
	cube := suite.newCube(WithListDelimiter(";"))

	value, err := cube.Value("Apple; Banana")
	suite.Require().NoError(err)
	suite.Require().Equal(950.0, value)

	_, err = New(newSalesFrame(suite.T()), WithListDelimiter(":"))
	suite.Require().Error(err)
}

func (suite *CubeTestSuite) TestAttr() {
	ctx, err := suite.cube.Attr("Banana")
	suite.Require().NoError(err)
	value, err := ctx.Value()
	suite.Require().NoError(err)
	suite.Require().Equal(650.0, value)

	ctx, err = suite.cube.Attr("cost")
	suite.Require().NoError(err)
	suite.Require().Equal("cost", ctx.Measure().Name)

	suite.Require().Contains(suite.cube.Identifiers(), "Apple")
	suite.Require().Contains(suite.cube.Identifiers(), "product")
}

func (suite *CubeTestSuite) TestAttrSpaces() {
	frame, err := NewFrameFromMap(map[string]interface{}{
		"store":      []string{"Main Street", "Airport"},
		"List Price": []float64{1.5, 2.5},
	}, []string{"store", "List Price"})
	suite.Require().NoError(err)

	cube, err := New(frame)
	suite.Require().NoError(err)

	ctx, err := cube.Attr("Main_Street")
	suite.Require().NoError(err)
	value, err := ctx.Value()
	suite.Require().NoError(err)
	suite.Require().Equal(1.5, value)

	ctx, err = cube.Attr("List_Price")
	suite.Require().NoError(err)
	suite.Require().Equal("List Price", ctx.Measure().Name)
}

func (suite *CubeTestSuite) TestNoMeasures() {
	frame, err := NewFrameFromMap(map[string]interface{}{
		"product": []string{"Apple", "Pear", "Apple"},
	}, nil)
	suite.Require().NoError(err)

	cube, err := New(frame)
	suite.Require().NoError(err)

	value, err := cube.Value("Apple")
	suite.Require().NoError(err)
	suite.Require().Equal(2.0, value)

	_, err = cube.Set(1, "Apple")
	suite.Require().Equal(ErrNoMeasure, errors.Cause(err))
}

func (suite *CubeTestSuite) TestAmbiguity() {
	frame, err := NewFrameFromMap(map[string]interface{}{
		"from":  []string{"A", "B"},
		"to":    []string{"B", "C"},
		"trips": []int64{1, 2},
	}, []string{"from", "to", "trips"})
	suite.Require().NoError(err)

	cube, err := New(frame)
	suite.Require().NoError(err)
	suite.Require().Len(cube.Ambiguities(), 1)
	suite.Require().Equal("B", cube.Ambiguities()[0].Member)

	_, err = cube.Get("B")
	var ambiguous *AmbiguousTokenError
	suite.Require().True(errors.As(err, &ambiguous))
	suite.Require().Len(ambiguous.Candidates, 2)

	value, err := cube.Value("from:B")
	suite.Require().NoError(err)
	suite.Require().Equal(2.0, value)

	value, err = cube.Value("to", "B")
	suite.Require().NoError(err)
	suite.Require().Equal(1.0, value)
}

func (suite *CubeTestSuite) TestSchemaErrors() {
	var schemaErr *SchemaError

	empty, err := NewFrameFromMap(map[string]interface{}{"product": []string{}}, nil)
	suite.Require().NoError(err)
	_, err = New(empty)
	suite.Require().True(errors.As(err, &schemaErr))

	_, err = New(newSalesFrame(suite.T()), WithSchema(&SchemaDefinition{
		Dimensions: []DimensionDefinition{{Column: "region"}},
	}))
	suite.Require().True(errors.As(err, &schemaErr))
	suite.Require().Equal([]string{"region"}, schemaErr.Columns)

	_, err = New(newSalesFrame(suite.T()), WithSchema(&SchemaDefinition{
		Measures: []MeasureDefinition{{Column: "product"}},
	}))
	suite.Require().True(errors.As(err, &schemaErr))

	_, err = New(newSalesFrame(suite.T()), WithExclude("region"))
	suite.Require().True(errors.As(err, &schemaErr))
}

func (suite *CubeTestSuite) TestExplicitSchema() {
	cube, err := New(newSalesFrame(suite.T()), WithSchema(&SchemaDefinition{
		Dimensions: []DimensionDefinition{{Column: "product", Alias: "p"}},
		Measures:   []MeasureDefinition{{Column: "cost", Name: "spend"}},
	}))
	suite.Require().NoError(err)

	value, err := cube.Value("p:Apple")
	suite.Require().NoError(err)
	suite.Require().Equal(150.0, value)

	// channel is not a dimension
	_, err = cube.Get("Online")
	suite.Require().Error(err)

	// but expressions can still use it
	value, err = cube.Value("channel = 'Online'")
	suite.Require().NoError(err)
	suite.Require().Equal(350.0, value)
}

func (suite *CubeTestSuite) TestIntRange() {
	frame, err := NewFrameFromMap(map[string]interface{}{
		"year":  []int64{2021, 2022, 2023},
		"sales": []float64{1, 2, 4},
	}, []string{"year", "sales"})
	suite.Require().NoError(err)

	cube, err := New(frame, WithSchema(&SchemaDefinition{
		Dimensions: []DimensionDefinition{{Column: "year"}},
		Measures:   []MeasureDefinition{{Column: "sales"}},
	}))
	suite.Require().NoError(err)

	value, err := cube.Value(Range(2022, nil))
	suite.Require().NoError(err)
	suite.Require().Equal(6.0, value)

	value, err = cube.Value(2021)
	suite.Require().NoError(err)
	suite.Require().Equal(1.0, value)

	value, err = cube.Value("year", "2023")
	suite.Require().NoError(err)
	suite.Require().Equal(4.0, value)
}

func (suite *CubeTestSuite) TestDates() {
	day := func(d int, m time.Month) time.Time {
		return time.Date(2024, m, d, 0, 0, 0, 0, time.UTC)
	}

	frame, err := NewFrameFromMap(map[string]interface{}{
		"day":    []time.Time{day(13, time.May), day(14, time.May), day(1, time.May), day(30, time.April)},
		"amount": []int64{1, 2, 4, 8},
	}, []string{"day", "amount"})
	suite.Require().NoError(err)

	now := func() time.Time { return time.Date(2024, time.May, 15, 12, 0, 0, 0, time.UTC) }
	cube, err := New(frame, WithDateResolver(dates.NewResolver(now)))
	suite.Require().NoError(err)

	cases := []struct {
		parts    []interface{}
		expected float64
	}{
		{[]interface{}{"this week"}, 3},
		{[]interface{}{"2024-05"}, 7},
		{[]interface{}{"last month"}, 8},
		{[]interface{}{"2024-05-01"}, 4},
		{[]interface{}{"day", "2024-Q2"}, 15},
		{[]interface{}{"yesterday"}, 2},
		{[]interface{}{"today"}, 0},
		{[]interface{}{QualifiedRange("day", "2024-05-01", "2024-05-13")}, 5},
	}

	for _, tc := range cases {
		value, err := cube.Value(tc.parts...)
		suite.Require().NoError(err, "%v", tc.parts)
		suite.Require().Equal(tc.expected, value, "%v", tc.parts)
	}
}

func (suite *CubeTestSuite) TestConfig() {
	cfg := &Config{Cube: CubeConfig{Fuzzy: true, ReadOnly: true}}
	suite.Require().NoError(cfg.InitDefaults())

	cube, err := NewFromConfig(newSalesFrame(suite.T()), cfg)
	suite.Require().NoError(err)
	suite.Require().True(cube.ReadOnly())

	value, err := cube.Value("banana")
	suite.Require().NoError(err)
	suite.Require().Equal(650.0, value)
}

func TestCubeTestSuite(t *testing.T) {
	suite.Run(t, new(CubeTestSuite))
}

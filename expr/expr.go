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

// Package expr evaluates relational expressions ("revenue > 100 and
// channel = 'Online'") over rows. The grammar is the SQL WHERE clause.
package expr

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"github.com/pkg/errors"
	"github.com/xwb1989/sqlparser"
)

var timeFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Expr is a parsed expression
type Expr struct {
	text    string
	where   sqlparser.Expr
	columns []string
	globs   map[string]glob.Glob
}

// Parse parses an expression. Names with spaces must be quoted with back
// ticks (`List Price` > 10).
func Parse(expression string) (*Expr, error) {
	text := strings.TrimSpace(expression)
	if text == "" {
		return nil, fmt.Errorf("empty expression")
	}

	sql := "select * from t where " + normalizeEquals(text)
	stmt, err := sqlparser.Parse(sql)
	if err != nil {
		return nil, errors.Wrapf(err, "can't parse %q", text)
	}

	sel, ok := stmt.(*sqlparser.Select)
	if !ok || sel.Where == nil {
		return nil, fmt.Errorf("%q is not an expression", text)
	}

	if sel.Limit != nil || sel.OrderBy != nil || sel.GroupBy != nil || sel.Having != nil {
		return nil, fmt.Errorf("%q is not an expression", text)
	}

	e := &Expr{
		text:  text,
		where: sel.Where.Expr,
		globs: make(map[string]glob.Glob),
	}

	names := make(map[string]bool)
	err = sqlparser.Walk(func(node sqlparser.SQLNode) (bool, error) {
		switch node := node.(type) {
		case *sqlparser.ColName:
			if !node.Qualifier.IsEmpty() {
				return false, fmt.Errorf("qualified name %s", sqlparser.String(node))
			}
			names[node.Name.String()] = true
		case *sqlparser.Subquery, *sqlparser.FuncExpr:
			return false, fmt.Errorf("unsupported %s", sqlparser.String(node))
		case *sqlparser.ComparisonExpr:
			if node.Operator != sqlparser.LikeStr && node.Operator != sqlparser.NotLikeStr {
				break
			}
			val, ok := node.Right.(*sqlparser.SQLVal)
			if !ok || val.Type != sqlparser.StrVal {
				break
			}
			pattern := string(val.Val)
			if _, found := e.globs[pattern]; found {
				break
			}
			g, err := compileLike(pattern)
			if err != nil {
				return false, err
			}
			e.globs[pattern] = g
		}
		return true, nil
	}, e.where)

	if err != nil {
		return nil, errors.Wrapf(err, "bad expression %q", text)
	}

	for name := range names {
		e.columns = append(e.columns, name)
	}
	sort.Strings(e.columns)

	return e, nil
}

// Columns returns the names the expression uses
func (e *Expr) Columns() []string {
	return e.columns
}

func (e *Expr) String() string {
	return e.text
}

// Eval evaluates the expression over row. Comparisons with null are false.
func (e *Expr) Eval(row map[string]interface{}) (bool, error) {
	return e.evalBool(e.where, row)
}

func (e *Expr) evalBool(node sqlparser.Expr, row map[string]interface{}) (bool, error) {
	switch node := node.(type) {
	case *sqlparser.AndExpr:
		left, err := e.evalBool(node.Left, row)
		if err != nil || !left {
			return false, err
		}
		return e.evalBool(node.Right, row)
	case *sqlparser.OrExpr:
		left, err := e.evalBool(node.Left, row)
		if err != nil || left {
			return left, err
		}
		return e.evalBool(node.Right, row)
	case *sqlparser.NotExpr:
		value, err := e.evalBool(node.Expr, row)
		return !value, err
	case *sqlparser.ParenExpr:
		return e.evalBool(node.Expr, row)
	case *sqlparser.ComparisonExpr:
		return e.evalComparison(node, row)
	case *sqlparser.RangeCond:
		return e.evalRange(node, row)
	case *sqlparser.IsExpr:
		return e.evalIs(node, row)
	}

	value, err := e.evalValue(node, row)
	if err != nil {
		return false, err
	}

	return truthy(value), nil
}

func (e *Expr) evalComparison(node *sqlparser.ComparisonExpr, row map[string]interface{}) (bool, error) {
	left, err := e.evalValue(node.Left, row)
	if err != nil {
		return false, err
	}

	switch node.Operator {
	case sqlparser.InStr, sqlparser.NotInStr:
		tuple, ok := node.Right.(sqlparser.ValTuple)
		if !ok {
			return false, fmt.Errorf("%s needs a value list", node.Operator)
		}

		found := false
		for _, item := range tuple {
			right, err := e.evalValue(item, row)
			if err != nil {
				return false, err
			}

			cmp, ok, err := compare(left, right)
			if err != nil {
				return false, err
			}
			if ok && cmp == 0 {
				found = true
				break
			}
		}

		if left == nil {
			return false, nil
		}
		return found == (node.Operator == sqlparser.InStr), nil
	case sqlparser.LikeStr, sqlparser.NotLikeStr:
		right, err := e.evalValue(node.Right, row)
		if err != nil {
			return false, err
		}

		if left == nil || right == nil {
			return false, nil
		}

		matched, err := e.like(fmt.Sprint(left), fmt.Sprint(right))
		if err != nil {
			return false, err
		}
		return matched == (node.Operator == sqlparser.LikeStr), nil
	}

	right, err := e.evalValue(node.Right, row)
	if err != nil {
		return false, err
	}

	if node.Operator == sqlparser.NullSafeEqualStr {
		if left == nil || right == nil {
			return left == nil && right == nil, nil
		}
	}

	cmp, ok, err := compare(left, right)
	if err != nil || !ok {
		return false, err
	}

	switch node.Operator {
	case sqlparser.EqualStr, sqlparser.NullSafeEqualStr:
		return cmp == 0, nil
	case sqlparser.NotEqualStr:
		return cmp != 0, nil
	case sqlparser.LessThanStr:
		return cmp < 0, nil
	case sqlparser.LessEqualStr:
		return cmp <= 0, nil
	case sqlparser.GreaterThanStr:
		return cmp > 0, nil
	case sqlparser.GreaterEqualStr:
		return cmp >= 0, nil
	}

	return false, fmt.Errorf("unsupported operator - %s", node.Operator)
}

func (e *Expr) evalRange(node *sqlparser.RangeCond, row map[string]interface{}) (bool, error) {
	values := make([]interface{}, 3)
	for i, operand := range []sqlparser.Expr{node.Left, node.From, node.To} {
		value, err := e.evalValue(operand, row)
		if err != nil {
			return false, err
		}
		values[i] = value
	}

	lower, ok, err := compare(values[0], values[1])
	if err != nil || !ok {
		return false, err
	}

	upper, ok, err := compare(values[0], values[2])
	if err != nil || !ok {
		return false, err
	}

	between := lower >= 0 && upper <= 0
	return between == (node.Operator == sqlparser.BetweenStr), nil
}

func (e *Expr) evalIs(node *sqlparser.IsExpr, row map[string]interface{}) (bool, error) {
	value, err := e.evalValue(node.Expr, row)
	if err != nil {
		return false, err
	}

	switch node.Operator {
	case sqlparser.IsNullStr:
		return isNull(value), nil
	case sqlparser.IsNotNullStr:
		return !isNull(value), nil
	case sqlparser.IsTrueStr:
		return truthy(value), nil
	case sqlparser.IsNotTrueStr:
		return !truthy(value), nil
	case sqlparser.IsFalseStr:
		return !isNull(value) && !truthy(value), nil
	case sqlparser.IsNotFalseStr:
		return isNull(value) || truthy(value), nil
	}

	return false, fmt.Errorf("unsupported operator - %s", node.Operator)
}

func (e *Expr) evalValue(node sqlparser.Expr, row map[string]interface{}) (interface{}, error) {
	switch node := node.(type) {
	case *sqlparser.SQLVal:
		return sqlValue(node)
	case sqlparser.BoolVal:
		return bool(node), nil
	case *sqlparser.NullVal:
		return nil, nil
	case *sqlparser.ColName:
		name := node.Name.String()
		value, ok := row[name]
		if !ok {
			return nil, fmt.Errorf("unknown name - %s", name)
		}
		return value, nil
	case *sqlparser.ParenExpr:
		return e.evalValue(node.Expr, row)
	case *sqlparser.UnaryExpr:
		value, err := e.evalValue(node.Expr, row)
		if err != nil || value == nil {
			return nil, err
		}

		switch node.Operator {
		case sqlparser.UPlusStr:
			return value, nil
		case sqlparser.UMinusStr:
			f, ok := toFloat(value)
			if !ok {
				return nil, fmt.Errorf("can't negate %v", value)
			}
			return -f, nil
		case sqlparser.BangStr:
			return !truthy(value), nil
		}
		return nil, fmt.Errorf("unsupported operator - %s", node.Operator)
	case *sqlparser.BinaryExpr:
		return e.evalArithmetic(node, row)
	case *sqlparser.AndExpr, *sqlparser.OrExpr, *sqlparser.NotExpr,
		*sqlparser.ComparisonExpr, *sqlparser.RangeCond, *sqlparser.IsExpr:
		return e.evalBool(node, row)
	}

	return nil, fmt.Errorf("unsupported expression - %s", sqlparser.String(node))
}

func (e *Expr) evalArithmetic(node *sqlparser.BinaryExpr, row map[string]interface{}) (interface{}, error) {
	left, err := e.evalValue(node.Left, row)
	if err != nil {
		return nil, err
	}

	right, err := e.evalValue(node.Right, row)
	if err != nil {
		return nil, err
	}

	if left == nil || right == nil {
		return nil, nil
	}

	a, ok := toFloat(left)
	if !ok {
		return nil, fmt.Errorf("%v is not a number", left)
	}

	b, ok := toFloat(right)
	if !ok {
		return nil, fmt.Errorf("%v is not a number", right)
	}

	switch node.Operator {
	case sqlparser.PlusStr:
		return a + b, nil
	case sqlparser.MinusStr:
		return a - b, nil
	case sqlparser.MultStr:
		return a * b, nil
	case sqlparser.DivStr:
		return a / b, nil
	case sqlparser.ModStr:
		return math.Mod(a, b), nil
	}

	return nil, fmt.Errorf("unsupported operator - %s", node.Operator)
}

// like matches SQL patterns (% and _) using a glob. Literal patterns are
// compiled by Parse, e.globs is read only after that.
func (e *Expr) like(value, pattern string) (bool, error) {
	g, ok := e.globs[pattern]
	if !ok {
		var err error
		if g, err = compileLike(pattern); err != nil {
			return false, err
		}
	}

	return g.Match(value), nil
}

func compileLike(pattern string) (glob.Glob, error) {
	var sb strings.Builder
	for _, r := range pattern {
		switch r {
		case '%':
			sb.WriteRune('*')
		case '_':
			sb.WriteRune('?')
		case '*', '?', '[', ']', '{', '}', '\\', '!':
			sb.WriteRune('\\')
			sb.WriteRune(r)
		default:
			sb.WriteRune(r)
		}
	}

	g, err := glob.Compile(sb.String())
	if err != nil {
		return nil, errors.Wrapf(err, "bad pattern %q", pattern)
	}
	return g, nil
}

// normalizeEquals maps == to = outside of quoted literals and names
func normalizeEquals(text string) string {
	var sb strings.Builder
	var quote rune
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"' || r == '`':
			quote = r
		case r == '=' && i+1 < len(runes) && runes[i+1] == '=':
			i++
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func sqlValue(val *sqlparser.SQLVal) (interface{}, error) {
	text := string(val.Val)
	switch val.Type {
	case sqlparser.StrVal:
		return text, nil
	case sqlparser.IntVal:
		i, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return strconv.ParseFloat(text, 64)
		}
		return i, nil
	case sqlparser.FloatVal:
		return strconv.ParseFloat(text, 64)
	}

	return nil, fmt.Errorf("unsupported value - %s", sqlparser.String(val))
}

// compare returns the order of a and b, ok is false if either is null
func compare(a, b interface{}) (int, bool, error) {
	if isNull(a) || isNull(b) {
		return 0, false, nil
	}

	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		if !ok {
			if s, isString := b.(string); isString {
				var err error
				if fb, err = strconv.ParseFloat(s, 64); err != nil {
					return 0, false, fmt.Errorf("can't compare %v with %q", a, s)
				}
			} else {
				return 0, false, fmt.Errorf("can't compare %v with %v", a, b)
			}
		}
		return compareFloats(fa, fb), true, nil
	}

	switch a := a.(type) {
	case string:
		switch b := b.(type) {
		case string:
			return strings.Compare(a, b), true, nil
		case time.Time, bool:
			cmp, ok, err := compare(b, a)
			return -cmp, ok, err
		}
		if _, ok := toFloat(b); ok {
			cmp, ok, err := compare(b, a)
			return -cmp, ok, err
		}
	case time.Time:
		var tb time.Time
		switch b := b.(type) {
		case time.Time:
			tb = b
		case string:
			var err error
			if tb, err = parseTime(b); err != nil {
				return 0, false, err
			}
		default:
			return 0, false, fmt.Errorf("can't compare time with %v", b)
		}
		switch {
		case a.Before(tb):
			return -1, true, nil
		case a.After(tb):
			return 1, true, nil
		}
		return 0, true, nil
	case bool:
		var bb bool
		switch b := b.(type) {
		case bool:
			bb = b
		case string:
			bb = strings.EqualFold(b, "true")
		default:
			return 0, false, fmt.Errorf("can't compare bool with %v", b)
		}
		switch {
		case a == bb:
			return 0, true, nil
		case !a:
			return -1, true, nil
		}
		return 1, true, nil
	}

	return 0, false, fmt.Errorf("can't compare %v (%T) with %v (%T)", a, a, b, b)
}

func compareFloats(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}

	return 0
}

func toFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	}

	return 0, false
}

func isNull(value interface{}) bool {
	if value == nil {
		return true
	}

	f, ok := value.(float64)
	return ok && math.IsNaN(f)
}

func truthy(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case time.Time:
		return !v.IsZero()
	}

	f, ok := toFloat(value)
	return ok && f != 0 && !math.IsNaN(f)
}

func parseTime(s string) (time.Time, error) {
	for _, format := range timeFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("bad time - %q", s)
}

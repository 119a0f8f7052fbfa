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
	"time"
)

// Predicate is a condition over a row (column name -> value)
type Predicate interface {
	Eval(row map[string]interface{}) (bool, error)
	Columns() []string // names the predicate reads
}

// ExpressionParser parses relational expressions such as "revenue > 100"
type ExpressionParser interface {
	Parse(expression string) (Predicate, error)
}

// ExpressionParserFunc is a function ExpressionParser
type ExpressionParserFunc func(expression string) (Predicate, error)

// Parse calls f
func (f ExpressionParserFunc) Parse(expression string) (Predicate, error) {
	return f(expression)
}

// DateResolver converts date keywords ("yesterday", "last month", "2024-Q1")
// to an inclusive time range
type DateResolver interface {
	ResolveDate(text string) (from time.Time, to time.Time, ok bool)
}

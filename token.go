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
)

// TokenKind is the kind of an address token
type TokenKind int

// Token kinds
const (
	ScalarToken     TokenKind = iota // string, number, bool or time
	OrGroupToken                     // members of one dimension
	QualifiedToken                   // dimension:member
	MappingToken                     // dimension -> member(s)
	WildcardToken                    // "*"
	RangeToken                       // from..to within one dimension
	ExpressionToken                  // relational expression, "revenue > 100"
	ContextToken                     // another context used as an address
)

func (k TokenKind) String() string {
	switch k {
	case ScalarToken:
		return "scalar"
	case OrGroupToken:
		return "or-group"
	case QualifiedToken:
		return "qualified"
	case MappingToken:
		return "mapping"
	case WildcardToken:
		return "wildcard"
	case RangeToken:
		return "range"
	case ExpressionToken:
		return "expression"
	case ContextToken:
		return "context"
	}

	return "unknown"
}

// wildcard is the all members token
const wildcard = "*"

// MappingEntry is one dimension of a mapping token
type MappingEntry struct {
	Dimension string
	Members   []interface{}
}

// Token is a single address part
type Token struct {
	Kind       TokenKind
	Value      interface{}    // ScalarToken, QualifiedToken
	Items      []interface{}  // OrGroupToken
	Dimension  string         // QualifiedToken, RangeToken (optional)
	Entries    []MappingEntry // MappingToken, sorted by dimension
	From, To   interface{}    // RangeToken, nil is open
	Expression string         // ExpressionToken
	Context    *Context       // ContextToken
}

// Scalar returns a scalar token
func Scalar(value interface{}) Token {
	if s, ok := value.(string); ok && s == wildcard {
		return Wildcard()
	}

	return Token{Kind: ScalarToken, Value: value}
}

// OrGroup returns a token selecting any of values in one dimension
func OrGroup(values ...interface{}) Token {
	return Token{Kind: OrGroupToken, Items: values}
}

// Qualified returns a token for member of dimension
func Qualified(dimension string, member interface{}) Token {
	return Token{Kind: QualifiedToken, Dimension: dimension, Value: member}
}

// Mapping returns a token from dimension -> member or members
func Mapping(entries map[string]interface{}) Token {
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	tok := Token{Kind: MappingToken}
	for _, name := range names {
		tok.Entries = append(tok.Entries, MappingEntry{
			Dimension: name,
			Members:   toList(entries[name]),
		})
	}

	return tok
}

// Wildcard returns the all members token
func Wildcard() Token {
	return Token{Kind: WildcardToken}
}

// Range returns a token selecting members between from and to (inclusive)
func Range(from, to interface{}) Token {
	return Token{Kind: RangeToken, From: from, To: to}
}

// QualifiedRange returns a range token within dimension
func QualifiedRange(dimension string, from, to interface{}) Token {
	return Token{Kind: RangeToken, Dimension: dimension, From: from, To: to}
}

// Expression returns a relational expression token
func Expression(expression string) Token {
	return Token{Kind: ExpressionToken, Expression: expression}
}

// FromContext returns a token using the filter of ctx
func FromContext(ctx *Context) Token {
	return Token{Kind: ContextToken, Context: ctx}
}

// ParseToken converts a Go value to a token. Strings, numbers, bools and times
// are scalars, slices are or-groups and maps are mappings.
func ParseToken(value interface{}) (Token, error) {
	switch v := value.(type) {
	case Token:
		return v, nil
	case *Token:
		if v == nil {
			break
		}
		return *v, nil
	case *Context:
		if v == nil {
			break
		}
		return FromContext(v), nil
	case string, bool, time.Time,
		int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return Scalar(v), nil
	case []interface{}:
		return OrGroup(v...), nil
	case []string, []int, []int64, []float64, []bool, []time.Time:
		return OrGroup(toList(v)...), nil
	case map[string]interface{}:
		return Mapping(v), nil
	case map[string]string:
		entries := make(map[string]interface{}, len(v))
		for key, member := range v {
			entries[key] = member
		}
		return Mapping(entries), nil
	case map[string][]string:
		entries := make(map[string]interface{}, len(v))
		for key, members := range v {
			entries[key] = members
		}
		return Mapping(entries), nil
	}

	return Token{}, &UnresolvedTokenError{Token: value, Cause: fmt.Errorf("unsupported token type %T", value)}
}

func (t Token) String() string {
	switch t.Kind {
	case ScalarToken:
		return fmt.Sprintf("%v", t.Value)
	case OrGroupToken:
		return fmt.Sprintf("%v", t.Items)
	case QualifiedToken:
		return fmt.Sprintf("%s:%v", t.Dimension, t.Value)
	case MappingToken:
		parts := make([]string, len(t.Entries))
		for i, entry := range t.Entries {
			parts[i] = fmt.Sprintf("%s:%v", entry.Dimension, entry.Members)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case WildcardToken:
		return wildcard
	case RangeToken:
		if t.Dimension != "" {
			return fmt.Sprintf("%s:%v..%v", t.Dimension, t.From, t.To)
		}
		return fmt.Sprintf("%v..%v", t.From, t.To)
	case ExpressionToken:
		return t.Expression
	case ContextToken:
		if t.Context == nil {
			return "<nil context>"
		}
		return "(" + t.Context.Address() + ")"
	}

	return "<unknown token>"
}

// toList converts a value or a slice of values to []interface{}
func toList(value interface{}) []interface{} {
	switch v := value.(type) {
	case []interface{}:
		return v
	case []string:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = item
		}
		return out
	case []int:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = item
		}
		return out
	case []int64:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = item
		}
		return out
	case []float64:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = item
		}
		return out
	case []bool:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = item
		}
		return out
	case []time.Time:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = item
		}
		return out
	}

	return []interface{}{value}
}

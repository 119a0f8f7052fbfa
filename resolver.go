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

	"github.com/pkg/errors"
)

// SelectionKind is what a resolved token selects
type SelectionKind int

// Selection kinds
const (
	MemberSelection SelectionKind = iota
	DimensionSelection
	MeasureSelection
	WildcardSelection
	ExpressionSelection
	ContextSelection
)

func (k SelectionKind) String() string {
	switch k {
	case MemberSelection:
		return "member"
	case DimensionSelection:
		return "dimension"
	case MeasureSelection:
		return "measure"
	case WildcardSelection:
		return "wildcard"
	case ExpressionSelection:
		return "expression"
	case ContextSelection:
		return "context"
	}

	return "unknown"
}

// ResolvedToken is a classified token
type ResolvedToken struct {
	Kind       SelectionKind
	Dimension  *Dimension  // member, dimension and (optional) wildcard selections
	Members    []interface{} // member selection, may be empty (e.g. a date range with no data)
	Measure    *Measure
	Expression string
	Predicate  Predicate
	Context    *Context
	// Explicit member selections replace the dimension constraint instead of
	// adding to it
	Explicit bool
}

// ResolverOptions are the resolver options
type ResolverOptions struct {
	Fuzzy            bool
	ListDelimiter    string
	Columns          []string // dataset columns usable in expressions
	ExpressionParser ExpressionParser
	DateResolver     DateResolver
}

// Resolver classifies address tokens against a schema
type Resolver struct {
	schema  *Schema
	options ResolverOptions
	columns map[string]bool
}

// NewResolver returns a new resolver
func NewResolver(schema *Schema, options ResolverOptions) *Resolver {
	columns := make(map[string]bool, len(options.Columns))
	for _, name := range options.Columns {
		columns[name] = true
	}

	return &Resolver{
		schema:  schema,
		options: options,
		columns: columns,
	}
}

// Resolve classifies token. When hint is not empty the token is looked up in
// that dimension only.
func (r *Resolver) Resolve(token Token, hint string) ([]ResolvedToken, error) {
	var dim *Dimension
	if hint != "" {
		var ok bool
		if dim, ok = r.schema.Dimension(hint); !ok {
			return nil, &UnknownDimensionError{Dimension: hint}
		}
	}

	switch token.Kind {
	case ScalarToken:
		if dim != nil {
			return r.one(r.resolveMember(dim, token.Value))
		}
		return r.resolveScalar(token.Value)
	case OrGroupToken:
		return r.one(r.resolveOrGroup(token, dim))
	case QualifiedToken:
		qualified, ok := r.schema.Dimension(token.Dimension)
		if !ok {
			return nil, &UnknownDimensionError{Dimension: token.Dimension}
		}
		return r.one(r.resolveMember(qualified, token.Value))
	case MappingToken:
		resolved := make([]ResolvedToken, 0, len(token.Entries))
		for _, entry := range token.Entries {
			entryDim, ok := r.schema.Dimension(entry.Dimension)
			if !ok {
				return nil, &UnknownDimensionError{Dimension: entry.Dimension}
			}

			rt, err := r.resolveMembers(entryDim, entry.Members)
			if err != nil {
				return nil, err
			}
			resolved = append(resolved, rt)
		}
		return resolved, nil
	case WildcardToken:
		return []ResolvedToken{{Kind: WildcardSelection, Dimension: dim}}, nil
	case RangeToken:
		return r.one(r.resolveRange(token, dim))
	case ExpressionToken:
		return r.one(r.resolveExpression(token.Expression))
	case ContextToken:
		if token.Context == nil {
			return nil, &UnresolvedTokenError{Token: token, Cause: fmt.Errorf("nil context")}
		}
		return []ResolvedToken{{Kind: ContextSelection, Context: token.Context}}, nil
	}

	return nil, &UnresolvedTokenError{Token: token, Cause: fmt.Errorf("unknown token kind %d", token.Kind)}
}

func (r *Resolver) one(rt ResolvedToken, err error) ([]ResolvedToken, error) {
	if err != nil {
		return nil, err
	}

	return []ResolvedToken{rt}, nil
}

// resolveScalar resolves a token without a dimension hint
func (r *Resolver) resolveScalar(value interface{}) ([]ResolvedToken, error) {
	s, ok := value.(string)
	if !ok {
		return r.one(r.resolveTyped(value))
	}

	if s == wildcard {
		return []ResolvedToken{{Kind: WildcardSelection}}, nil
	}

	candidates := r.exactCandidates(s)
	switch len(candidates) {
	case 0:
	case 1:
		return candidates, nil
	default:
		return nil, ambiguous(s, candidates)
	}

	if i := strings.Index(s, ":"); i > 0 {
		name := strings.TrimSpace(s[:i])
		if dim, ok := r.schema.Dimension(name); ok {
			return r.one(r.resolveMember(dim, strings.TrimSpace(s[i+1:])))
		}

		if looksLikeName(name) {
			return nil, &UnknownDimensionError{Dimension: name}
		}
	}

	// "product in ('A', 'B')" is an expression, not a list
	isExpression := looksLikeExpression(s) && strings.ContainsAny(s, "<>=()")
	if r.options.ListDelimiter != "" && strings.Contains(s, r.options.ListDelimiter) && !isExpression {
		var resolved []ResolvedToken
		for _, part := range strings.Split(s, r.options.ListDelimiter) {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}

			rts, err := r.resolveScalar(part)
			if err != nil {
				return nil, err
			}
			resolved = append(resolved, rts...)
		}
		return resolved, nil
	}

	if r.options.Fuzzy {
		candidates, err := r.fuzzyCandidates(s)
		if err != nil {
			return nil, &UnresolvedTokenError{Token: s, Cause: err}
		}

		switch len(candidates) {
		case 0:
		case 1:
			return candidates, nil
		default:
			return nil, ambiguous(s, candidates)
		}
	}

	if looksLikeExpression(s) && r.options.ExpressionParser != nil {
		return r.one(r.resolveExpression(s))
	}

	if rt, ok, err := r.resolveDate(s); ok || err != nil {
		return r.one(rt, err)
	}

	return nil, &UnresolvedTokenError{Token: s}
}

// exactCandidates returns all exact interpretations of s
func (r *Resolver) exactCandidates(s string) []ResolvedToken {
	var candidates []ResolvedToken
	for _, dim := range r.schema.Dimensions() {
		if dim.DType != StringType {
			continue
		}

		if member, ok := dim.Member(s); ok {
			candidates = append(candidates, ResolvedToken{
				Kind:      MemberSelection,
				Dimension: dim,
				Members:   []interface{}{member},
			})
		}
	}

	if measure, ok := r.schema.Measure(s); ok {
		candidates = append(candidates, ResolvedToken{Kind: MeasureSelection, Measure: measure})
	}

	if dim, ok := r.schema.Dimension(s); ok {
		candidates = append(candidates, ResolvedToken{Kind: DimensionSelection, Dimension: dim})
	}

	return candidates
}

// fuzzyCandidates matches s case-insensitive and as a glob. Several members of
// one dimension are a single candidate.
func (r *Resolver) fuzzyCandidates(s string) ([]ResolvedToken, error) {
	var candidates []ResolvedToken
	for _, dim := range r.schema.Dimensions() {
		members, err := dim.Match(s)
		if err != nil {
			return nil, err
		}

		if len(members) > 0 {
			candidates = append(candidates, ResolvedToken{
				Kind:      MemberSelection,
				Dimension: dim,
				Members:   members,
			})
		}
	}

	for _, measure := range r.schema.Measures() {
		if strings.EqualFold(measure.Name, s) {
			candidates = append(candidates, ResolvedToken{Kind: MeasureSelection, Measure: measure})
		}
	}

	for _, dim := range r.schema.Dimensions() {
		if strings.EqualFold(dim.Name, s) || (dim.Alias != "" && strings.EqualFold(dim.Alias, s)) {
			candidates = append(candidates, ResolvedToken{Kind: DimensionSelection, Dimension: dim})
		}
	}

	return candidates, nil
}

// resolveTyped resolves a non-string scalar against dimensions of its type
func (r *Resolver) resolveTyped(value interface{}) (ResolvedToken, error) {
	dtype := dtypeOf(value)
	if dtype == UnknownType {
		return ResolvedToken{}, &UnresolvedTokenError{Token: value, Cause: fmt.Errorf("unsupported type %T", value)}
	}

	var candidates []ResolvedToken
	for _, dim := range r.schema.Dimensions() {
		if !compatible(dtype, dim.DType) {
			continue
		}

		if member, ok := dim.Member(value); ok {
			candidates = append(candidates, ResolvedToken{
				Kind:      MemberSelection,
				Dimension: dim,
				Members:   []interface{}{member},
			})
		}
	}

	switch len(candidates) {
	case 0:
		return ResolvedToken{}, &UnresolvedTokenError{Token: value}
	case 1:
		return candidates[0], nil
	}

	return ResolvedToken{}, ambiguous(value, candidates)
}

// resolveMember resolves value as a member of dim
func (r *Resolver) resolveMember(dim *Dimension, value interface{}) (ResolvedToken, error) {
	s, isString := value.(string)
	if !isString {
		member, ok := dim.Member(value)
		if !ok {
			return ResolvedToken{}, &UnknownMemberError{Dimension: dim.Name, Member: value}
		}
		return memberSelection(dim, member), nil
	}

	if s == wildcard {
		return ResolvedToken{Kind: WildcardSelection, Dimension: dim}, nil
	}

	if coerced, err := dim.Coerce(s); err == nil {
		if member, ok := dim.Member(coerced); ok {
			return memberSelection(dim, member), nil
		}
	}

	if i := strings.Index(s, ":"); i > 0 && dim.hasName(strings.TrimSpace(s[:i])) {
		return r.resolveMember(dim, strings.TrimSpace(s[i+1:]))
	}

	if r.options.ListDelimiter != "" && strings.Contains(s, r.options.ListDelimiter) {
		var parts []interface{}
		for _, part := range strings.Split(s, r.options.ListDelimiter) {
			if part = strings.TrimSpace(part); part != "" {
				parts = append(parts, part)
			}
		}
		return r.resolveMembers(dim, parts)
	}

	if r.options.Fuzzy && dim.DType == StringType {
		members, err := dim.Match(s)
		if err != nil {
			return ResolvedToken{}, &UnresolvedTokenError{Token: s, Cause: err}
		}

		if len(members) > 0 {
			return ResolvedToken{Kind: MemberSelection, Dimension: dim, Members: members}, nil
		}
	}

	if dim.DType == TimeType && r.options.DateResolver != nil {
		if from, to, ok := r.options.DateResolver.ResolveDate(s); ok {
			return r.membersInRange(dim, from, to)
		}
	}

	return ResolvedToken{}, &UnknownMemberError{Dimension: dim.Name, Member: s}
}

// resolveMembers resolves values as members of dim, the result is their union
func (r *Resolver) resolveMembers(dim *Dimension, values []interface{}) (ResolvedToken, error) {
	if len(values) == 0 {
		return ResolvedToken{}, &UnresolvedTokenError{Token: values, Cause: fmt.Errorf("empty member list for %q", dim.Name)}
	}

	union := ResolvedToken{Kind: MemberSelection, Dimension: dim}
	for _, value := range values {
		rt, err := r.resolveMember(dim, value)
		if err != nil {
			return ResolvedToken{}, err
		}

		if rt.Kind == WildcardSelection {
			return rt, nil
		}
		union.Members = append(union.Members, rt.Members...)
	}

	return union, nil
}

// resolveOrGroup resolves a group of members that must belong to a single dimension
func (r *Resolver) resolveOrGroup(token Token, dim *Dimension) (ResolvedToken, error) {
	if len(token.Items) == 0 {
		return ResolvedToken{}, &UnresolvedTokenError{Token: token, Cause: fmt.Errorf("empty or-group")}
	}

	if dim != nil {
		return r.resolveMembers(dim, token.Items)
	}

	var common []*Dimension
	for i, item := range token.Items {
		dims, err := r.memberDimensions(item)
		if err != nil {
			return ResolvedToken{}, err
		}

		if len(dims) == 0 {
			return ResolvedToken{}, &UnresolvedTokenError{Token: item}
		}

		if i == 0 {
			common = dims
			continue
		}
		common = intersectDimensions(common, dims)
	}

	switch len(common) {
	case 0:
		return ResolvedToken{}, &UnresolvedTokenError{
			Token: token,
			Cause: fmt.Errorf("members of an or-group must belong to a single dimension"),
		}
	case 1:
		return r.resolveMembers(common[0], token.Items)
	}

	candidates := make([]ResolvedToken, len(common))
	for i, candidate := range common {
		candidates[i] = ResolvedToken{Kind: MemberSelection, Dimension: candidate}
	}

	return ResolvedToken{}, ambiguous(token, candidates)
}

// memberDimensions returns the dimensions value can be a member of
func (r *Resolver) memberDimensions(value interface{}) ([]*Dimension, error) {
	var dims []*Dimension
	s, isString := value.(string)
	if isString {
		if s == wildcard {
			return r.schema.Dimensions(), nil
		}

		if i := strings.Index(s, ":"); i > 0 {
			if dim, ok := r.schema.Dimension(strings.TrimSpace(s[:i])); ok {
				if _, err := r.resolveMember(dim, strings.TrimSpace(s[i+1:])); err != nil {
					return nil, err
				}
				return []*Dimension{dim}, nil
			}
		}
	}

	for _, dim := range r.schema.Dimensions() {
		if !isString && !compatible(dtypeOf(value), dim.DType) {
			continue
		}

		if isString && dim.DType != StringType {
			continue
		}

		if dim.Contains(value) {
			dims = append(dims, dim)
			continue
		}

		if isString && r.options.Fuzzy {
			members, err := dim.Match(s)
			if err != nil {
				return nil, &UnresolvedTokenError{Token: s, Cause: err}
			}
			if len(members) > 0 {
				dims = append(dims, dim)
			}
		}
	}

	return dims, nil
}

// resolveRange resolves a from..to token
func (r *Resolver) resolveRange(token Token, dim *Dimension) (ResolvedToken, error) {
	if token.From == nil && token.To == nil {
		return ResolvedToken{}, &UnresolvedTokenError{Token: token, Cause: fmt.Errorf("open range on both ends")}
	}

	if dim == nil && token.Dimension != "" {
		var ok bool
		if dim, ok = r.schema.Dimension(token.Dimension); !ok {
			return ResolvedToken{}, &UnknownDimensionError{Dimension: token.Dimension}
		}
	}

	if dim == nil {
		var err error
		if dim, err = r.rangeDimension(token); err != nil {
			return ResolvedToken{}, err
		}
	}

	return r.membersInRange(dim, token.From, token.To)
}

// rangeDimension finds the single dimension a range applies to, preferring
// dimensions where the bounds are members
func (r *Resolver) rangeDimension(token Token) (*Dimension, error) {
	bound := token.From
	if bound == nil {
		bound = token.To
	}

	var typed, containing []*Dimension
	for _, dim := range r.schema.Dimensions() {
		if !compatible(dtypeOf(bound), dim.DType) {
			continue
		}

		typed = append(typed, dim)
		if (token.From != nil && dim.Contains(token.From)) || (token.To != nil && dim.Contains(token.To)) {
			containing = append(containing, dim)
		}
	}

	dims := containing
	if len(dims) == 0 {
		dims = typed
	}

	switch len(dims) {
	case 0:
		return nil, &UnresolvedTokenError{Token: token}
	case 1:
		return dims[0], nil
	}

	candidates := make([]ResolvedToken, len(dims))
	for i, dim := range dims {
		candidates[i] = ResolvedToken{Kind: MemberSelection, Dimension: dim}
	}

	return nil, ambiguous(token, candidates)
}

func (r *Resolver) membersInRange(dim *Dimension, from, to interface{}) (ResolvedToken, error) {
	members, err := dim.MembersInRange(from, to)
	if err != nil {
		return ResolvedToken{}, &UnresolvedTokenError{Token: fmt.Sprintf("%v..%v", from, to), Cause: err}
	}

	return ResolvedToken{Kind: MemberSelection, Dimension: dim, Members: members}, nil
}

// resolveDate tries the date keyword collaborator on the time dimensions
func (r *Resolver) resolveDate(s string) (ResolvedToken, bool, error) {
	if r.options.DateResolver == nil {
		return ResolvedToken{}, false, nil
	}

	var timeDims []*Dimension
	for _, dim := range r.schema.Dimensions() {
		if dim.DType == TimeType {
			timeDims = append(timeDims, dim)
		}
	}

	if len(timeDims) == 0 {
		return ResolvedToken{}, false, nil
	}

	from, to, ok := r.options.DateResolver.ResolveDate(s)
	if !ok {
		return ResolvedToken{}, false, nil
	}

	if len(timeDims) == 1 {
		rt, err := r.membersInRange(timeDims[0], from, to)
		return rt, true, err
	}

	var candidates []ResolvedToken
	for _, dim := range timeDims {
		rt, err := r.membersInRange(dim, from, to)
		if err != nil {
			return ResolvedToken{}, true, err
		}

		if len(rt.Members) > 0 {
			candidates = append(candidates, rt)
		}
	}

	switch len(candidates) {
	case 0:
		return ResolvedToken{}, true, &UnresolvedTokenError{
			Token: s,
			Cause: fmt.Errorf("no data in %s - %s", from.Format(time.RFC3339), to.Format(time.RFC3339)),
		}
	case 1:
		return candidates[0], true, nil
	}

	return ResolvedToken{}, true, ambiguous(s, candidates)
}

// resolveExpression parses a relational expression
func (r *Resolver) resolveExpression(expression string) (ResolvedToken, error) {
	if r.options.ExpressionParser == nil {
		return ResolvedToken{}, &UnresolvedTokenError{Token: expression, Cause: ErrNotImplemented}
	}

	predicate, err := r.options.ExpressionParser.Parse(expression)
	if err != nil {
		return ResolvedToken{}, &UnresolvedTokenError{Token: expression, Cause: errors.Wrap(err, "bad expression")}
	}

	renames := make(map[string]string)
	for _, name := range predicate.Columns() {
		switch ref := r.schema.ResolveName(name); ref.Kind {
		case DimensionName:
			renames[name] = ref.Dimension.Column
		case MeasureName:
			renames[name] = ref.Measure.Column
		default:
			if !r.columns[name] {
				return ResolvedToken{}, &UnresolvedTokenError{
					Token: expression,
					Cause: fmt.Errorf("unknown name %q", name),
				}
			}
			renames[name] = name
		}
	}

	return ResolvedToken{
		Kind:       ExpressionSelection,
		Expression: strings.TrimSpace(expression),
		Predicate:  &schemaPredicate{predicate: predicate, renames: renames},
	}, nil
}

// schemaPredicate lets expressions use dimension and measure names
type schemaPredicate struct {
	predicate Predicate
	renames   map[string]string // expression name -> column
}

func (p *schemaPredicate) Eval(row map[string]interface{}) (bool, error) {
	named := make(map[string]interface{}, len(p.renames))
	for name, column := range p.renames {
		named[name] = row[column]
	}

	return p.predicate.Eval(named)
}

func (p *schemaPredicate) Columns() []string {
	columns := make([]string, 0, len(p.renames))
	for _, column := range p.renames {
		columns = append(columns, column)
	}

	return columns
}

func memberSelection(dim *Dimension, member interface{}) ResolvedToken {
	return ResolvedToken{
		Kind:      MemberSelection,
		Dimension: dim,
		Members:   []interface{}{member},
	}
}

func ambiguous(token interface{}, resolved []ResolvedToken) error {
	candidates := make([]Candidate, len(resolved))
	for i, rt := range resolved {
		candidates[i] = Candidate{Kind: rt.Kind}
		switch rt.Kind {
		case MeasureSelection:
			candidates[i].Name = rt.Measure.Name
		default:
			candidates[i].Name = rt.Dimension.Name
		}
	}

	return &AmbiguousTokenError{Token: token, Candidates: candidates}
}

// compatible returns true if a value of type value can be a member of a
// dimension of type dim
func compatible(value, dim DType) bool {
	if value.IsNumeric() {
		return dim.IsNumeric()
	}

	return value == dim
}

func intersectDimensions(a, b []*Dimension) []*Dimension {
	var out []*Dimension
	for _, dim := range a {
		for _, other := range b {
			if dim == other {
				out = append(out, dim)
				break
			}
		}
	}

	return out
}

// looksLikeName returns true if s can be a dimension name in "name:member"
func looksLikeName(s string) bool {
	if s == "" || unicode.IsDigit(rune(s[0])) {
		return false
	}

	return !strings.ContainsAny(s, " \t<>=!()'\"")
}

var expressionKeywords = []string{" and ", " or ", " in ", " between ", " like ", " is ", "not "}

// looksLikeExpression returns true if s looks like a relational expression
func looksLikeExpression(s string) bool {
	if strings.ContainsAny(s, "<>=") {
		return true
	}

	lower := strings.ToLower(s)
	for _, keyword := range expressionKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}

	return false
}

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
	"strconv"
	"strings"
	"time"
)

var (
	timeFormats = []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02",
	}

	trueKeywords = map[string]bool{
		"true":    true,
		"t":       true,
		"1":       true,
		"yes":     true,
		"y":       true,
		"on":      true,
		"active":  true,
		"enabled": true,
		"ok":      true,
		"done":    true,
	}
)

// ParseBool returns true for one of the boolean keywords (true, t, 1, yes, y,
// on, active, enabled, ok, done), case-insensitive. Any other string is false.
func ParseBool(s string) bool {
	return trueKeywords[strings.ToLower(strings.TrimSpace(s))]
}

// ParseTime parses a timestamp or a date
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("can't parse %q as time", s)
}

// dtypeOf returns the DType a Go value maps to
func dtypeOf(value interface{}) DType {
	switch value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return IntType
	case float32, float64:
		return FloatType
	case string:
		return StringType
	case time.Time:
		return TimeType
	case bool:
		return BoolType
	}

	return UnknownType
}

func asInt64(value interface{}) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint:
		return int64(v), true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		return int64(v), true
	case float32:
		if isIntegral(float64(v)) {
			return int64(v), true
		}
	case float64:
		if isIntegral(v) {
			return int64(v), true
		}
	}

	return 0, false
}

func asFloat64(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	}

	if i, ok := asInt64(value); ok {
		return float64(i), true
	}

	return 0, false
}

func isIntegral(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0) && f == math.Trunc(f)
}

// convertTo converts value to the Go type used for dtype, parsing strings
func convertTo(value interface{}, dtype DType) (interface{}, error) {
	s, isString := value.(string)
	if isString {
		s = strings.TrimSpace(s)
	}

	switch dtype {
	case IntType:
		if isString {
			i, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, err
			}
			return i, nil
		}
		if i, ok := asInt64(value); ok {
			return i, nil
		}
	case FloatType:
		if isString {
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, err
			}
			return f, nil
		}
		if f, ok := asFloat64(value); ok {
			return f, nil
		}
	case StringType:
		if isString {
			return value.(string), nil
		}
	case TimeType:
		if isString {
			return ParseTime(s)
		}
		if t, ok := value.(time.Time); ok {
			return t, nil
		}
	case BoolType:
		if isString {
			return ParseBool(s), nil
		}
		if b, ok := value.(bool); ok {
			return b, nil
		}
	}

	return nil, fmt.Errorf("can't convert %v (%T) to %s", value, value, dtype)
}

// nanKey is the key of all NaN members, NaN is not equal to itself
type nanKey struct{}

// memberKey returns a comparable map key for a value of the given dtype
func memberKey(value interface{}, dtype DType) (interface{}, bool) {
	switch dtype {
	case IntType:
		i, ok := asInt64(value)
		return i, ok
	case FloatType:
		f, ok := asFloat64(value)
		if ok && math.IsNaN(f) {
			return nanKey{}, true
		}
		return f, ok
	case StringType:
		s, ok := value.(string)
		return s, ok
	case TimeType:
		t, ok := value.(time.Time)
		if !ok {
			return nil, false
		}
		return t.UnixNano(), true
	case BoolType:
		b, ok := value.(bool)
		return b, ok
	}

	return nil, false
}

// compareValues compares two values of compatible types, -1, 0 or 1
func compareValues(a, b interface{}) (int, error) {
	if af, ok := asFloat64(a); ok {
		bf, ok := asFloat64(b)
		if !ok {
			return 0, fmt.Errorf("can't compare %T with %T", a, b)
		}
		return compareFloats(af, bf), nil
	}

	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, fmt.Errorf("can't compare %T with %T", a, b)
		}
		return strings.Compare(av, bv), nil
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 0, fmt.Errorf("can't compare %T with %T", a, b)
		}
		switch {
		case av.Before(bv):
			return -1, nil
		case av.After(bv):
			return 1, nil
		}
		return 0, nil
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, fmt.Errorf("can't compare %T with %T", a, b)
		}
		switch {
		case av == bv:
			return 0, nil
		case !av:
			return -1, nil
		}
		return 1, nil
	}

	return 0, fmt.Errorf("unsupported type for comparison - %T", a)
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

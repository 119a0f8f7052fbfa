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
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Aggregation is an aggregation function over the values of a measure
type Aggregation int

// Aggregations. NaN values are skipped by all but the counting functions.
const (
	Sum          Aggregation = iota // sum, 0 for no rows
	Avg                             // mean
	Min                             // minimum
	Max                             // maximum
	Count                           // number of rows
	Median                          // median
	Stddev                          // population standard deviation
	Var                             // population variance
	Pof                             // sum as a fraction of the measure total
	NaNCount                        // number of NaN values
	ValueCount                      // number of non-NaN values
	ZeroCount                       // number of zero values
	NonZeroCount                    // number of non-zero values
)

var aggregationNames = map[Aggregation]string{
	Sum:          "sum",
	Avg:          "avg",
	Min:          "min",
	Max:          "max",
	Count:        "count",
	Median:       "median",
	Stddev:       "stddev",
	Var:          "var",
	Pof:          "pof",
	NaNCount:     "nan",
	ValueCount:   "an",
	ZeroCount:    "zero",
	NonZeroCount: "nzero",
}

func (a Aggregation) String() string {
	if name, ok := aggregationNames[a]; ok {
		return name
	}

	return fmt.Sprintf("aggregation(%d)", int(a))
}

// ParseAggregation returns the aggregation by name
func ParseAggregation(name string) (Aggregation, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "", "total":
		return Sum, nil
	case "mean", "average":
		return Avg, nil
	case "std":
		return Stddev, nil
	case "variance":
		return Var, nil
	}

	for agg, aggName := range aggregationNames {
		if aggName == name {
			return agg, nil
		}
	}

	return Sum, fmt.Errorf("unknown aggregation - %q", name)
}

// isCount returns true for aggregations that count rows
func (a Aggregation) isCount() bool {
	switch a {
	case Count, NaNCount, ValueCount, ZeroCount, NonZeroCount:
		return true
	}

	return false
}

// zeroOnEmpty returns true for aggregations that are 0 on empty selections,
// the others are NaN
func (a Aggregation) zeroOnEmpty() bool {
	return a == Sum || a == Pof || a.isCount()
}

// aggregate applies agg to values. total is the measure total, used by Pof.
func aggregate(agg Aggregation, values []float64, total float64) float64 {
	if len(values) == 0 {
		if agg.zeroOnEmpty() {
			return 0
		}
		return math.NaN()
	}

	switch agg {
	case Count:
		return float64(len(values))
	case NaNCount:
		return float64(countIf(values, math.IsNaN))
	case ValueCount:
		return float64(countIf(values, func(v float64) bool { return !math.IsNaN(v) }))
	case ZeroCount:
		return float64(countIf(values, func(v float64) bool { return v == 0 }))
	case NonZeroCount:
		return float64(countIf(values, func(v float64) bool { return v != 0 && !math.IsNaN(v) }))
	}

	valid := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			valid = append(valid, v)
		}
	}

	if len(valid) == 0 {
		if agg.zeroOnEmpty() {
			return 0
		}
		return math.NaN()
	}

	switch agg {
	case Sum:
		return floats.Sum(valid)
	case Avg:
		return stat.Mean(valid, nil)
	case Min:
		return floats.Min(valid)
	case Max:
		return floats.Max(valid)
	case Median:
		// stat.Quantile picks a sample, the median of an even count is the
		// mean of the two middle values
		sort.Float64s(valid)
		mid := len(valid) / 2
		if len(valid)%2 == 1 {
			return valid[mid]
		}
		return (valid[mid-1] + valid[mid]) / 2
	case Var:
		_, variance := stat.PopMeanVariance(valid, nil)
		return variance
	case Stddev:
		_, variance := stat.PopMeanVariance(valid, nil)
		return math.Sqrt(variance)
	case Pof:
		if total == 0 {
			return math.NaN()
		}
		return floats.Sum(valid) / total
	}

	return math.NaN()
}

func countIf(values []float64, pred func(float64) bool) int {
	n := 0
	for _, v := range values {
		if pred(v) {
			n++
		}
	}

	return n
}

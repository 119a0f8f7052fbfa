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

// Package dates resolves date keywords ("today", "last month", "2024-Q1") to
// time ranges. Other relative phrases ("3 days ago", "last friday") resolve to
// the day they name.
package dates

import (
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

var (
	yearRe    = regexp.MustCompile(`^(\d{4})$`)
	monthRe   = regexp.MustCompile(`^(\d{4})-(\d{1,2})$`)
	dayRe     = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})$`)
	quarterRe = regexp.MustCompile(`^(\d{4})-?q([1-4])$`)
	relRe     = regexp.MustCompile(`^(this|last|next|previous|current)\s+(day|week|month|quarter|year)$`)
)

// Resolver resolves date keywords relative to Now
type Resolver struct {
	now func() time.Time

	phrasesLock sync.Mutex
	phrases     *when.Parser
}

// NewResolver returns a new resolver, now is called on every resolution
func NewResolver(now func() time.Time) *Resolver {
	if now == nil {
		now = time.Now
	}

	phrases := when.New(nil)
	phrases.Add(en.All...)
	phrases.Add(common.All...)

	return &Resolver{
		now:     now,
		phrases: phrases,
	}
}

// ResolveDate returns the inclusive range [from, to] text refers to. ok is
// false if text is not a date keyword.
func (r *Resolver) ResolveDate(text string) (from, to time.Time, ok bool) {
	text = strings.ToLower(strings.Join(strings.Fields(text), " "))
	now := r.now()

	switch text {
	case "today":
		return r.period(now, "day", 0)
	case "yesterday":
		return r.period(now, "day", -1)
	case "tomorrow":
		return r.period(now, "day", 1)
	}

	if match := relRe.FindStringSubmatch(text); match != nil {
		offset := 0
		switch match[1] {
		case "last", "previous":
			offset = -1
		case "next":
			offset = 1
		}
		return r.period(now, match[2], offset)
	}

	loc := now.Location()

	if match := yearRe.FindStringSubmatch(text); match != nil {
		year := atoi(match[1])
		start := time.Date(year, time.January, 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(1, 0, 0).Add(-time.Nanosecond), true
	}

	if match := quarterRe.FindStringSubmatch(text); match != nil {
		year, quarter := atoi(match[1]), atoi(match[2])
		start := time.Date(year, time.Month(3*(quarter-1)+1), 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(0, 3, 0).Add(-time.Nanosecond), true
	}

	if match := monthRe.FindStringSubmatch(text); match != nil {
		year, month := atoi(match[1]), atoi(match[2])
		if month < 1 || month > 12 {
			return time.Time{}, time.Time{}, false
		}
		start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(0, 1, 0).Add(-time.Nanosecond), true
	}

	if match := dayRe.FindStringSubmatch(text); match != nil {
		year, month, day := atoi(match[1]), atoi(match[2]), atoi(match[3])
		start := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
		// time.Date normalizes 2021-02-30, reject it
		if start.Month() != time.Month(month) || start.Day() != day {
			return time.Time{}, time.Time{}, false
		}
		return start, start.AddDate(0, 0, 1).Add(-time.Nanosecond), true
	}

	return r.resolvePhrase(text, now)
}

// resolvePhrase resolves a phrase the whole of which names a point in time to
// the day containing it
func (r *Resolver) resolvePhrase(text string, now time.Time) (time.Time, time.Time, bool) {
	if text == "" {
		return time.Time{}, time.Time{}, false
	}

	r.phrasesLock.Lock()
	result, err := r.phrases.Parse(text, now)
	r.phrasesLock.Unlock()

	if err != nil || result == nil || strings.TrimSpace(strings.ToLower(result.Text)) != text {
		return time.Time{}, time.Time{}, false
	}

	return r.period(result.Time.In(now.Location()), "day", 0)
}

// period returns the unit period containing now, shifted by offset periods
func (r *Resolver) period(now time.Time, unit string, offset int) (time.Time, time.Time, bool) {
	loc := now.Location()
	year, month, day := now.Date()

	var start, end time.Time
	switch unit {
	case "day":
		start = time.Date(year, month, day+offset, 0, 0, 0, 0, loc)
		end = start.AddDate(0, 0, 1)
	case "week":
		// weeks start on Monday
		weekday := (int(now.Weekday()) + 6) % 7
		start = time.Date(year, month, day-weekday+7*offset, 0, 0, 0, 0, loc)
		end = start.AddDate(0, 0, 7)
	case "month":
		start = time.Date(year, month+time.Month(offset), 1, 0, 0, 0, 0, loc)
		end = start.AddDate(0, 1, 0)
	case "quarter":
		first := time.Month(3*((int(month)-1)/3) + 1)
		start = time.Date(year, first+time.Month(3*offset), 1, 0, 0, 0, 0, loc)
		end = start.AddDate(0, 3, 0)
	case "year":
		start = time.Date(year+offset, time.January, 1, 0, 0, 0, 0, loc)
		end = start.AddDate(1, 0, 0)
	default:
		return time.Time{}, time.Time{}, false
	}

	return start, end.Add(-time.Nanosecond), true
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

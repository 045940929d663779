package models

import (
	"sort"
	"strings"
	"time"
)

// PriceKeyPrefix prefixes every month-keyed price field in a stored
// document, e.g. "pris 2024-06-01".
const PriceKeyPrefix = "pris "

const monthLayout = "2006-01-02"

// Month identifies one price observation month, always the first day of
// the month in YYYY-MM-01 form. The zero-padded layout makes lexicographic
// and chronological ordering coincide.
type Month string

// MonthOf truncates t to its observation month.
func MonthOf(t time.Time) Month {
	return Month(time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).Format(monthLayout))
}

// Key returns the document field name for this month's price.
func (m Month) Key() string {
	return PriceKeyPrefix + string(m)
}

// ParsePriceKey reports whether field is a month-keyed price field and, if
// so, which month it refers to.
func ParsePriceKey(field string) (Month, bool) {
	rest, ok := strings.CutPrefix(field, PriceKeyPrefix)
	if !ok {
		return "", false
	}
	if _, err := time.Parse(monthLayout, rest); err != nil {
		return "", false
	}
	return Month(rest), true
}

// PriceSeries maps observation months to prices. Absent observations are
// simply missing keys; a stored 0 means the vendor reported no price.
type PriceSeries map[Month]float64

// Months returns the observation months in chronological order.
func (s PriceSeries) Months() []Month {
	months := make([]Month, 0, len(s))
	for m := range s {
		months = append(months, m)
	}
	sort.Slice(months, func(i, j int) bool { return months[i] < months[j] })
	return months
}

// Latest returns the two most recent observations. ok is false when the
// series is empty; previous is nil when only one observation exists.
func (s PriceSeries) Latest() (latest float64, previous *float64, ok bool) {
	months := s.Months()
	if len(months) == 0 {
		return 0, nil, false
	}
	latest = s[months[len(months)-1]]
	if len(months) > 1 {
		value := s[months[len(months)-2]]
		previous = &value
	}
	return latest, previous, true
}

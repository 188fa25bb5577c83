package transformer

import (
	"strconv"
	"strings"
	"time"
)

// DateLayouts are tried in order by ParseDate. The register publishes
// dd/mm/yyyy; ISO dates and timestamps appear in derived extracts.
var DateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseDate interprets s as a calendar date. It returns nil for empty,
// unparseable or non-existent dates (e.g. 2021-02-30). The result carries no
// time component: midnight UTC of the parsed calendar day.
func ParseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range DateLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		return &d
	}
	return nil
}

// ParseInt parses s as a base-10 integer, returning nil when s is empty or
// not a number.
func ParseInt(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &i
}

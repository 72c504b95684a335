package model

import (
	"sort"
	"strconv"
	"strings"
)

// Filter is the user's current selection: which local authorities, route
// classifications, subgroups, and survey year the statistics and
// renderers should cover. Zero values mean "no restriction".
type Filter struct {
	Authorities []string `json:"authorities,omitempty"`
	Routes      []string `json:"routes,omitempty"`
	Subgroups   []string `json:"subgroups,omitempty"`
	Year        int      `json:"year,omitempty"`
}

// IsZero reports whether the filter places no restriction at all.
func (f Filter) IsZero() bool {
	return len(f.Authorities) == 0 && len(f.Routes) == 0 &&
		len(f.Subgroups) == 0 && f.Year == 0
}

// Key returns a canonical string form of the filter, stable under
// reordering of the slice fields. It is used as a cache-key component,
// so two filters selecting the same data must produce the same key.
func (f Filter) Key() string {
	var b strings.Builder
	b.WriteString("la=")
	b.WriteString(joinSorted(f.Authorities))
	b.WriteString(";rt=")
	b.WriteString(joinSorted(f.Routes))
	b.WriteString(";sg=")
	b.WriteString(joinSorted(f.Subgroups))
	b.WriteString(";yr=")
	b.WriteString(strconv.Itoa(f.Year))
	return b.String()
}

func joinSorted(values []string) string {
	if len(values) == 0 {
		return ""
	}
	sorted := make([]string, len(values))
	copy(sorted, values)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

// WithYear returns a copy of the filter pinned to the given survey year.
func (f Filter) WithYear(year int) Filter {
	out := f
	out.Year = year
	return out
}

package model

import (
	"net/url"
	"slices"
	"strings"
)

// FilterSpec selects questions by year, type, keyword and free-text search.
type FilterSpec struct {
	Years   []string `json:"years,omitempty"`
	Types   []string `json:"types,omitempty"`
	Keyword string   `json:"keyword,omitempty"`
	Search  string   `json:"search,omitempty"`
}

// Normalize returns a canonical copy: trimmed, deduplicated, sorted.
func (f FilterSpec) Normalize() FilterSpec {
	return FilterSpec{
		Years:   canonicalList(f.Years),
		Types:   canonicalList(f.Types),
		Keyword: strings.TrimSpace(f.Keyword),
		Search:  strings.TrimSpace(f.Search),
	}
}

// Equal reports whether two filter sets select the same questions.
func (f FilterSpec) Equal(o FilterSpec) bool {
	a, b := f.Normalize(), o.Normalize()
	return slices.Equal(a.Years, b.Years) &&
		slices.Equal(a.Types, b.Types) &&
		a.Keyword == b.Keyword &&
		a.Search == b.Search
}

// IsEmpty reports whether no filter is set.
func (f FilterSpec) IsEmpty() bool {
	n := f.Normalize()
	return len(n.Years) == 0 && len(n.Types) == 0 && n.Keyword == "" && n.Search == ""
}

// HasSearch reports whether an explicit free-text search is set.
func (f FilterSpec) HasSearch() bool {
	return strings.TrimSpace(f.Search) != ""
}

// Values encodes the filter as URL query values.
func (f FilterSpec) Values() url.Values {
	n := f.Normalize()
	v := url.Values{}
	for _, y := range n.Years {
		v.Add("year", y)
	}
	for _, t := range n.Types {
		v.Add("type", t)
	}
	if n.Keyword != "" {
		v.Set("keyword", n.Keyword)
	}
	if n.Search != "" {
		v.Set("search", n.Search)
	}
	return v
}

// FilterFromValues decodes a filter from URL query values. Comma-separated
// year and type lists are accepted as well as repeated keys.
func FilterFromValues(v url.Values) FilterSpec {
	return FilterSpec{
		Years:   splitValues(v["year"]),
		Types:   splitValues(v["type"]),
		Keyword: v.Get("keyword"),
		Search:  v.Get("search"),
	}.Normalize()
}

func splitValues(in []string) []string {
	var out []string
	for _, s := range in {
		out = append(out, strings.Split(s, ",")...)
	}
	return out
}

func canonicalList(in []string) []string {
	var out []string
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

package catalog

import (
	"net/url"
	"strconv"
	"strings"
)

// Filter narrows /api/movies. Zero fields are omitted from the query.
type Filter struct {
	Genre    string
	Actor    string
	Director string
	Year     int
	MinYear  int
	MaxYear  int
	Status   string
	Skip     int
	Limit    int
}

// HasFilters reports whether any field that overrides free-text search is set.
// Status and paging do not count.
func (f Filter) HasFilters() bool {
	return strings.TrimSpace(f.Genre) != "" ||
		strings.TrimSpace(f.Actor) != "" ||
		strings.TrimSpace(f.Director) != "" ||
		f.Year != 0 || f.MinYear != 0 || f.MaxYear != 0
}

// Values returns the non-empty fields as query values
func (f Filter) Values() url.Values {
	v := url.Values{}
	setString(v, "genre", f.Genre)
	setString(v, "actor", f.Actor)
	setString(v, "director", f.Director)
	setString(v, "status", f.Status)
	setInt(v, "year", f.Year)
	setInt(v, "min_year", f.MinYear)
	setInt(v, "max_year", f.MaxYear)
	setInt(v, "skip", f.Skip)
	setInt(v, "limit", f.Limit)
	return v
}

// Query is the address state of the movies page
type Query struct {
	Q string
	Filter
}

// ParseQuery reads a Query from URL values. Malformed numbers are ignored.
func ParseQuery(v url.Values) Query {
	return Query{
		Q: v.Get("q"),
		Filter: Filter{
			Genre:    strings.TrimSpace(v.Get("genre")),
			Actor:    strings.TrimSpace(v.Get("actor")),
			Director: strings.TrimSpace(v.Get("director")),
			Status:   strings.TrimSpace(v.Get("status")),
			Year:     atoi(v.Get("year")),
			MinYear:  atoi(v.Get("min_year")),
			MaxYear:  atoi(v.Get("max_year")),
			Skip:     atoi(v.Get("skip")),
			Limit:    atoi(v.Get("limit")),
		},
	}
}

// Values returns the query with q dropped whenever a filter is set
func (q Query) Values() url.Values {
	v := q.Filter.Values()
	if !q.HasFilters() {
		setString(v, "q", q.Q)
	}
	return v
}

// Encode returns the raw query string, keys sorted
func (q Query) Encode() string {
	return q.Values().Encode()
}

// buildQuery renders "?k=v&..." or "" when nothing is set
func buildQuery(v url.Values) string {
	encoded := v.Encode()
	if encoded == "" {
		return ""
	}
	return "?" + encoded
}

func setString(v url.Values, key, value string) {
	if value = strings.TrimSpace(value); value != "" {
		v.Set(key, value)
	}
}

func setInt(v url.Values, key string, value int) {
	if value != 0 {
		v.Set(key, strconv.Itoa(value))
	}
}

func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

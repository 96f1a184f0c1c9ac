package hardcover

import (
	"fmt"
	"strconv"
)

// The API's payload shapes drift between schema revisions: the author
// name has lived under contributions[].author.name, cached_contributors,
// and author_names depending on the query used. Rather than chase a
// fixed schema, each field is extracted by an ordered list of candidate
// paths evaluated against the generic JSON tree, first hit wins.

// Rule names a field and the candidate paths that may hold it,
// in priority order.
type Rule struct {
	Name  string
	Paths [][]string
}

// Extraction rules for book payloads.
var (
	authorRule = Rule{Name: "author", Paths: [][]string{
		{"contributions", "author", "name"},
		{"cached_contributors", "author", "name"},
		{"cached_contributors", "name"},
		{"author_names"},
	}}
	genreRule = Rule{Name: "genre", Paths: [][]string{
		{"cached_tags", "Genre", "tag"},
		{"cached_tags", "genre", "tag"},
		{"taggings", "tag", "tag"},
	}}
	isbnRule = Rule{Name: "isbn", Paths: [][]string{
		{"editions", "isbn_13"},
		{"editions", "isbn_10"},
		{"default_physical_edition", "isbn_13"},
	}}
	coverRule = Rule{Name: "cover", Paths: [][]string{
		{"image", "url"},
		{"cached_image", "url"},
		{"cover_url"},
	}}
	descriptionRule = Rule{Name: "description", Paths: [][]string{
		{"description"},
		{"description_html"},
	}}
	ratingRule = Rule{Name: "rating", Paths: [][]string{
		{"rating"},
		{"cached_rating"},
	}}
)

// lookup walks node along path, fanning out across arrays, and returns
// every terminal value found. Pure function over the generic value tree.
func lookup(node any, path []string) []any {
	if len(path) == 0 {
		if node == nil {
			return nil
		}
		return []any{node}
	}

	switch v := node.(type) {
	case map[string]any:
		child, ok := v[path[0]]
		if !ok {
			return nil
		}
		return lookup(child, path[1:])
	case []any:
		var out []any
		for _, item := range v {
			out = append(out, lookup(item, path)...)
		}
		return out
	default:
		return nil
	}
}

// ExtractString returns the first non-empty string the rule's paths
// yield, or "".
func ExtractString(node map[string]any, rule Rule) string {
	for _, path := range rule.Paths {
		for _, v := range lookup(node, path) {
			if s := stringify(v); s != "" {
				return s
			}
		}
	}
	return ""
}

// ExtractStrings returns all non-empty strings from the first path that
// yields any, deduplicated and in encounter order.
func ExtractStrings(node map[string]any, rule Rule) []string {
	for _, path := range rule.Paths {
		var out []string
		seen := make(map[string]struct{})
		for _, v := range lookup(node, path) {
			s := stringify(v)
			if s == "" {
				continue
			}
			if _, dup := seen[s]; dup {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

// ExtractFloat returns the first numeric value the rule's paths yield.
func ExtractFloat(node map[string]any, rule Rule) float64 {
	for _, path := range rule.Paths {
		for _, v := range lookup(node, path) {
			switch n := v.(type) {
			case float64:
				return n
			case string:
				if f, err := strconv.ParseFloat(n, 64); err == nil {
					return f
				}
			}
		}
	}
	return 0
}

// stringify renders scalar JSON values as strings. Numeric ids come back
// as float64 from the generic decoder.
func stringify(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		if s == float64(int64(s)) {
			return strconv.FormatInt(int64(s), 10)
		}
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

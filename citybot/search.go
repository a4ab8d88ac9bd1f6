package citybot

import (
	"net/url"
	"strings"
)

// componentUnescaper turns url.QueryEscape output into encodeURIComponent output.
var componentUnescaper = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// SearchURL builds the search link for query restricted to city.
func SearchURL(base, query, city string) string {
	q := componentUnescaper.Replace(url.QueryEscape(query + " in " + city))
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "q=" + q
}

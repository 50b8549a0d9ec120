package indexpipeline

import (
	"net/url"
	"regexp"
	"strings"
)

var nonWordRun = regexp.MustCompile(`[^a-z0-9]+`)

// URLTokens splits a normalized URL's host and path into lowercase
// word tokens for the search vector's URL field. The pipeline only
// tokenizes; it never assigns field weights, leaving that to whatever
// builds the combined tsvector from the separately addressable
// title/snippet/url-tokens/text columns at query time.
func URLTokens(normalizedURL string) string {
	u, err := url.Parse(normalizedURL)
	if err != nil {
		return normalizeTokens(normalizedURL)
	}
	return normalizeTokens(u.Host + " " + u.Path)
}

func normalizeTokens(s string) string {
	lower := strings.ToLower(s)
	tokens := nonWordRun.Split(lower, -1)
	var kept []string
	for _, tok := range tokens {
		if tok != "" {
			kept = append(kept, tok)
		}
	}
	return strings.Join(kept, " ")
}

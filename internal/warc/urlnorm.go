package warc

import (
	"net/url"
	"sort"
	"strings"
)

// trackingParamPrefixes are query parameters stripped during
// normalization because they vary per-visit without changing the
// page's actual content (campaign/analytics tags).
var trackingParamPrefixes = []string{"utm_", "fbclid", "gclid", "msclkid"}

// paginationAndSessionParams are additionally dropped only when
// computing normalized_url_group: two captures that differ solely by
// page number or session id are still "the same page" for grouping
// purposes, even though normalized_url keeps them distinct.
var paginationAndSessionParams = map[string]bool{
	"page": true, "p": true, "pg": true,
	"sid": true, "session": true, "sessionid": true, "phpsessid": true,
	"jsessionid": true,
}

// Normalize produces normalized_url (lowercase host, fragment dropped,
// tracking params stripped, remaining params sorted) and
// normalized_url_group (normalized_url with pagination/session params
// additionally dropped), the key used to group captures of "the same
// page" across time.
func Normalize(rawURL string) (normalized, group string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", err
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(stripDefaultPort(u))
	u.Fragment = ""

	if u.Path == "" {
		u.Path = "/"
	} else if len(u.Path) > 1 && strings.HasSuffix(u.Path, "/") {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}

	base := u.Scheme + "://" + u.Host + u.Path

	normalizedQuery := filterQuery(u.RawQuery, nil)
	groupQuery := filterQuery(u.RawQuery, paginationAndSessionParams)

	normalized = base
	if normalizedQuery != "" {
		normalized += "?" + normalizedQuery
	}
	group = base
	if groupQuery != "" {
		group += "?" + groupQuery
	}

	return normalized, group, nil
}

func stripDefaultPort(u *url.URL) string {
	host := u.Host
	switch {
	case u.Scheme == "http" && strings.HasSuffix(host, ":80"):
		return strings.TrimSuffix(host, ":80")
	case u.Scheme == "https" && strings.HasSuffix(host, ":443"):
		return strings.TrimSuffix(host, ":443")
	default:
		return host
	}
}

func filterQuery(rawQuery string, extraDrop map[string]bool) string {
	if rawQuery == "" {
		return ""
	}
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return ""
	}
	for key := range values {
		lower := strings.ToLower(key)
		if extraDrop[lower] {
			delete(values, key)
			continue
		}
		for _, prefix := range trackingParamPrefixes {
			if strings.HasPrefix(lower, prefix) {
				delete(values, key)
				break
			}
		}
	}
	if len(values) == 0 {
		return ""
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		sort.Strings(values[k])
		for j, v := range values[k] {
			if i > 0 || j > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}

package links

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

var trackingParams = map[string]bool{
	"fbclid":    true,
	"gclid":     true,
	"yclid":     true,
	"ysclid":    true,
	"dclid":     true,
	"gbraid":    true,
	"wbraid":    true,
	"msclkid":   true,
	"mc_cid":    true,
	"mc_eid":    true,
	"_openstat": true,
	"igshid":    true,
	"spm":       true,
}

// IsTrackingParam reports whether a query parameter only carries campaign tracking.
func IsTrackingParam(name string) bool {
	name = strings.ToLower(name)
	return strings.HasPrefix(name, "utm_") || trackingParams[name]
}

// CanonicalLink is the dedup key of an item: scheme and host lowercased, default
// port and fragment dropped, tracking parameters removed. Remaining parameters
// keep their original order and encoding.
func CanonicalLink(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("link is empty")
	}
	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("failed to parse link: %w", err)
	}
	if u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("link is not an absolute http(s) URL: %s", raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if port := u.Port(); (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		u.Host = u.Hostname()
	}
	u.Fragment = ""
	u.RawFragment = ""
	u.RawQuery = stripTracking(u.RawQuery)
	u.ForceQuery = false

	return u.String(), nil
}

func stripTracking(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}

	kept := make([]string, 0)
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		name, _, _ := strings.Cut(pair, "=")
		if unescaped, err := url.QueryUnescape(name); err == nil {
			name = unescaped
		}
		if IsTrackingParam(name) {
			continue
		}
		kept = append(kept, pair)
	}
	return strings.Join(kept, "&")
}

// Hostname returns the lowercased host of raw without port and leading "www.".
func Hostname(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") && !strings.HasPrefix(raw, "//") {
		raw = "//" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}

	host := u.Hostname()
	if host == "" {
		return ""
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	return strings.TrimPrefix(host, "www.")
}

// MatchDomain looks host up in table, walking up parent domains so that an entry
// for "site.ru" also covers "news.site.ru". Table keys are normalized the same way
// as Hostname.
func MatchDomain[V any](host string, table map[string]V) (V, bool) {
	var zero V
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	if host == "" || len(table) == 0 {
		return zero, false
	}

	for candidate := host; candidate != ""; {
		if v, ok := table[candidate]; ok {
			return v, true
		}
		_, rest, found := strings.Cut(candidate, ".")
		if !found || !strings.Contains(rest, ".") {
			break
		}
		candidate = rest
	}

	return zero, false
}

// NormalizeDomainKeys rewrites table keys through Hostname so configuration may
// use "www.site.ru" or "https://site.ru".
func NormalizeDomainKeys[V any](table map[string]V) map[string]V {
	out := make(map[string]V, len(table))
	for key, value := range table {
		if host := Hostname(key); host != "" {
			out[host] = value
		}
	}
	return out
}

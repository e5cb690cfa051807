package knowledge

import (
	"net/url"
	"strings"
)

var trackingParamPrefixes = []string{"utm_"}
var trackingParamExact = map[string]bool{"ref": true, "fbclid": true, "gclid": true}

// normalizeURL strips the fragment, tracking query parameters, and a
// trailing slash so the same page reached through different link
// decorations resolves to one knowledge source.
func normalizeURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	u.Fragment = ""

	if u.RawQuery != "" {
		q := u.Query()
		for key := range q {
			lower := strings.ToLower(key)
			if trackingParamExact[lower] || hasTrackingPrefix(lower) {
				q.Del(key)
			}
		}
		u.RawQuery = q.Encode()
	}

	u.Path = strings.TrimSuffix(u.Path, "/")
	if u.Path == "" {
		u.Path = "/"
	}

	return u.String(), nil
}

func hasTrackingPrefix(key string) bool {
	for _, p := range trackingParamPrefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

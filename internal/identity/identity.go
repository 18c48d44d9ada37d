// Package identity produces the canonical comparison keys used for
// cross-backend duplicate detection: normalized links, normalized
// titles, and the sync hash that stands in for a native article id on
// the crawl backend.
package identity

import (
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"strings"
)

// Query parameters that carry tracking state rather than identity.
var trackingParams = map[string]bool{
	"fbclid":      true,
	"gclid":       true,
	"dclid":       true,
	"msclkid":     true,
	"igshid":      true,
	"mc_cid":      true,
	"mc_eid":      true,
	"ref":         true,
	"ref_src":     true,
	"referrer":    true,
	"source":      true,
	"spm":         true,
	"_hsenc":      true,
	"_hsmi":       true,
	"yclid":       true,
	"cmpid":       true,
	"ncid":        true,
	"ocid":        true,
	"s_cid":       true,
	"share_token": true,
}

var indexSuffixes = []string{"index.html", "index.htm", "index.php"}

// NormalizeLink canonicalizes an article link for identity comparison.
// Unparsable or schemeless input is returned unchanged, so a broken
// link still compares equal to itself on the next sync. The function is
// idempotent: normalizing an already normalized link is a no-op.
func NormalizeLink(link string) string {
	if strings.TrimSpace(link) == "" {
		return link
	}

	u, err := url.Parse(link)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return link
	}

	u.Fragment = ""
	u.RawFragment = ""

	if u.RawQuery != "" {
		q := u.Query()
		for key := range q {
			if trackingParams[strings.ToLower(key)] || strings.HasPrefix(strings.ToLower(key), "utm_") {
				q.Del(key)
			}
		}
		u.RawQuery = q.Encode()
	}

	host := strings.ToLower(u.Host)
	host = strings.TrimPrefix(host, "m.")
	u.Host = host

	path := u.Path
	for _, suffix := range indexSuffixes {
		if strings.HasSuffix(path, "/"+suffix) {
			path = path[:len(path)-len(suffix)]
			break
		}
	}
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	u.Path = path

	return u.String()
}

// NormalizeTitle canonicalizes an article title for identity
// comparison: surrounding whitespace trimmed, internal whitespace runs
// collapsed to single spaces, result upper-cased.
func NormalizeTitle(title string) string {
	return strings.ToUpper(strings.Join(strings.Fields(title), " "))
}

// SyncHash derives a stable digest from an article title and its feed
// URL. The crawl backend has no native article ids, so this digest is
// its primary dedup key and survives in the read history table.
func SyncHash(title, feedURL string) string {
	if title == "" && feedURL == "" {
		return ""
	}
	sum := md5.Sum([]byte(NormalizeTitle(title) + "\n" + feedURL))
	return hex.EncodeToString(sum[:])
}

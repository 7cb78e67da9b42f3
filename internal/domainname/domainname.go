// Package domainname holds the pure string transforms applied to customer
// domains: normalization, www/bare variants, apex detection and folding into
// a registrable base domain.
//
// Apex detection and base-domain folding are heuristics. IsApex counts dots,
// so hosts such as "foo.co.uk" are reported as non-apex. BaseDomain consults
// a short table of multi-label TLDs, not the public suffix list.
package domainname

import (
	"net/url"
	"strings"
)

// multiLabelTLDs are the two-label public suffixes BaseDomain knows about.
var multiLabelTLDs = map[string]struct{}{
	"co.uk": {}, "org.uk": {}, "ac.uk": {}, "gov.uk": {},
	"co.in": {}, "net.in": {}, "org.in": {}, "firm.in": {}, "gen.in": {}, "ind.in": {},
	"com.au": {}, "net.au": {}, "org.au": {},
}

// Normalize lowercases s and strips surrounding space, a leading http:// or
// https:// scheme, trailing slashes and a trailing dot.
func Normalize(s string) string {
	d := strings.ToLower(strings.TrimSpace(s))
	switch {
	case strings.HasPrefix(d, "https://"):
		d = d[len("https://"):]
	case strings.HasPrefix(d, "http://"):
		d = d[len("http://"):]
	}
	d = strings.TrimRight(d, "/")
	d = strings.TrimSuffix(d, ".")
	return d
}

// Clean reduces a URL or bare host to its lowercase host, dropping scheme,
// path, query and any trailing dot. Ports are kept.
func Clean(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if !strings.Contains(s, "://") {
		s = "http://" + s
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return Normalize(strings.SplitN(Normalize(s), "/", 2)[0])
	}
	return strings.TrimSuffix(strings.ToLower(u.Host), ".")
}

// Variants returns the bare and www. forms of s, bare first, deduplicated.
func Variants(s string) []string {
	d := Normalize(s)
	if d == "" {
		return nil
	}
	bare := strings.TrimPrefix(d, "www.")
	www := "www." + bare
	if bare == www {
		return []string{bare}
	}
	return []string{bare, www}
}

// IsApex reports whether s has exactly one dot after normalization.
// foo.co.uk is a known false negative.
func IsApex(s string) bool {
	return strings.Count(Normalize(s), ".") == 1
}

// IsLocalhost reports whether host is exactly "localhost".
// Subdomains of localhost are foldable and do not count.
func IsLocalhost(host string) bool {
	return strings.ToLower(host) == "localhost"
}

// BaseDomain approximates the registrable domain of host: the rightmost two
// labels, or three when the rightmost two form a known multi-label TLD.
// Any *.localhost host folds to "localhost".
func BaseDomain(host string) string {
	h := strings.ToLower(strings.Trim(strings.TrimSpace(host), "."))
	if h == "" || IsLocalhost(h) {
		return h
	}
	if strings.HasSuffix(h, ".localhost") {
		return "localhost"
	}
	labels := strings.Split(h, ".")
	if len(labels) <= 2 {
		return h
	}
	last2 := strings.Join(labels[len(labels)-2:], ".")
	if _, ok := multiLabelTLDs[last2]; ok {
		return strings.Join(labels[len(labels)-3:], ".")
	}
	return last2
}

// HostnameFor returns the hostname registered with Cloudflare for s. Apex
// domains are served from their www. form.
func HostnameFor(s string) string {
	d := Normalize(s)
	if IsApex(d) {
		return "www." + d
	}
	return d
}

// Valid reports whether s looks like a hostname after normalization:
// non-empty, at least one dot, no spaces or path separators.
func Valid(s string) bool {
	d := Normalize(s)
	if d == "" || !strings.Contains(d, ".") {
		return false
	}
	if strings.ContainsAny(d, " /\\?#@") {
		return false
	}
	for _, label := range strings.Split(d, ".") {
		if label == "" || len(label) > 63 {
			return false
		}
	}
	return true
}

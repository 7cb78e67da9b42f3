package auth0

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/tbourn/go-domain-mapper/internal/domainname"
)

const callbackPath = "/api/auth/callback"

type pathCategory int

const (
	categoryRoot pathCategory = iota
	categoryCallback
	categoryOther
)

func categorize(p string) pathCategory {
	p = strings.TrimSpace(p)
	if p == "" || p == "/" {
		return categoryRoot
	}
	switch strings.TrimRight(p, "/") {
	case callbackPath, "/callback":
		return categoryCallback
	}
	return categoryOther
}

type parsedURL struct {
	scheme string
	host   string
	port   int
	path   string
}

// parse splits raw into scheme, lowercased host, numeric port and path.
// ok is false when raw has no scheme or host.
func parse(raw string) (parsedURL, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return parsedURL{}, false
	}
	p := parsedURL{scheme: strings.ToLower(u.Scheme), host: strings.ToLower(u.Host), path: u.Path}
	if h, ps, found := strings.Cut(p.host, ":"); found && !strings.Contains(ps, ":") {
		if n, err := strconv.Atoi(ps); err == nil {
			p.host, p.port = h, n
		}
	}
	return p, true
}

func portSuffix(port int) string {
	if port == 0 {
		return ""
	}
	return ":" + strconv.Itoa(port)
}

type wildcardKey struct {
	base     string
	category pathCategory
	port     int
}

// lessKey orders wildcards by base, then callback before root, then port.
func lessKey(a, b wildcardKey) bool {
	if a.base != b.base {
		return a.base < b.base
	}
	if a.category != b.category {
		return a.category == categoryCallback
	}
	return a.port < b.port
}

// preferScheme records scheme for k, letting https win over anything else.
func preferScheme(m map[wildcardKey]string, k wildcardKey, scheme string) {
	if cur, ok := m[k]; !ok || (cur != "https" && scheme == "https") {
		m[k] = scheme
	}
}

func sortedKeys(m map[wildcardKey]string) []wildcardKey {
	keys := make([]wildcardKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return lessKey(keys[i], keys[j]) })
	return keys
}

// CanonicalizeCallbacks folds subdomain callback URLs that share a base
// domain, path category and port into one wildcard entry, preferring https.
// Apex URLs are normalized; plain localhost and unrecognized paths are kept
// as given. Output order is apex, wildcards, then exact entries.
func CanonicalizeCallbacks(callbacks []string) []string {
	var apex, exact []string
	wild := map[wildcardKey]string{}

	for _, raw := range callbacks {
		p, ok := parse(raw)
		if !ok || domainname.IsLocalhost(p.host) {
			exact = append(exact, raw)
			continue
		}
		base := domainname.BaseDomain(p.host)
		cat := categorize(p.path)

		if p.host == base {
			var norm string
			switch cat {
			case categoryRoot:
				norm = fmt.Sprintf("%s://%s%s/", p.scheme, base, portSuffix(p.port))
			case categoryCallback:
				norm = fmt.Sprintf("%s://%s%s%s", p.scheme, base, portSuffix(p.port), callbackPath)
			default:
				norm = fmt.Sprintf("%s://%s%s%s", p.scheme, p.host, portSuffix(p.port), p.path)
			}
			apex = append(apex, norm)
			continue
		}
		if cat == categoryOther {
			exact = append(exact, raw)
			continue
		}
		preferScheme(wild, wildcardKey{base: base, category: cat, port: p.port}, p.scheme)
	}

	wildcards := make([]string, 0, len(wild))
	for _, k := range sortedKeys(wild) {
		u := fmt.Sprintf("%s://*.%s%s", wild[k], k.base, portSuffix(k.port))
		if k.category == categoryCallback {
			u += callbackPath
		}
		wildcards = append(wildcards, u)
	}
	return uniq(apex, wildcards, exact)
}

// CanonicalizeSimpleURLs does the same folding for logout URLs and web
// origins. Entries carrying a path are kept exact.
func CanonicalizeSimpleURLs(urls []string) []string {
	var apex, exact []string
	wild := map[wildcardKey]string{}

	for _, raw := range urls {
		p, ok := parse(raw)
		if !ok || domainname.IsLocalhost(p.host) || (p.path != "" && p.path != "/") {
			exact = append(exact, raw)
			continue
		}
		base := domainname.BaseDomain(p.host)
		if p.host == base {
			apex = append(apex, fmt.Sprintf("%s://%s%s", p.scheme, base, portSuffix(p.port)))
			continue
		}
		preferScheme(wild, wildcardKey{base: base, port: p.port}, p.scheme)
	}

	wildcards := make([]string, 0, len(wild))
	for _, k := range sortedKeys(wild) {
		wildcards = append(wildcards, fmt.Sprintf("%s://*.%s%s", wild[k], k.base, portSuffix(k.port)))
	}
	return uniq(apex, wildcards, exact)
}

// DeriveLogoutAndOrigins builds sorted logout URLs (origin + /login) and
// web origins from a callback list.
func DeriveLogoutAndOrigins(callbacks []string) (logout, origins []string) {
	logoutSet, originSet := map[string]struct{}{}, map[string]struct{}{}
	for _, raw := range callbacks {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			continue
		}
		origin := u.Scheme + "://" + u.Host
		logoutSet[origin+"/login"] = struct{}{}
		originSet[origin] = struct{}{}
	}
	return sortedSet(logoutSet), sortedSet(originSet)
}

func sortedSet(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// uniq concatenates lists, keeping the first occurrence of each entry.
func uniq(lists ...[]string) []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, l := range lists {
		for _, s := range l {
			if _, dup := seen[s]; dup {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

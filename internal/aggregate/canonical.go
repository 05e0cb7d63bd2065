package aggregate

import (
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

// CanonicalHost canonicalizes a hostname for identity comparison:
// lowercase, trailing dot removed, IDNA (punycode) normalized so that
// unicode and ASCII spellings of the same name collide.
func CanonicalHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	host = strings.TrimSuffix(host, ".")
	if host == "" {
		return ""
	}
	if ascii, err := idna.Lookup.ToASCII(host); err == nil {
		return ascii
	}
	return host
}

// CanonicalURL canonicalizes a URL by scheme, host and path. The
// trailing slash is normalized and the query string is excluded from
// identity. The second return value is the raw query, retained by the
// caller as an attribute.
func CanonicalURL(raw string) (string, string) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		// Not parseable as an absolute URL; fall back to a trimmed
		// lowercase form so identical raw strings still collide.
		s := strings.ToLower(strings.TrimSpace(raw))
		return strings.TrimSuffix(s, "/"), ""
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme == "" {
		scheme = "http"
	}
	host := CanonicalHost(u.Hostname())
	if port := u.Port(); port != "" && !isDefaultPort(scheme, port) {
		host += ":" + port
	}

	path := u.EscapedPath()
	path = strings.TrimSuffix(path, "/")
	if path == "" {
		path = "/"
	}

	return scheme + "://" + host + path, u.RawQuery
}

func isDefaultPort(scheme, port string) bool {
	return (scheme == "http" && port == "80") || (scheme == "https" && port == "443")
}

// PortKey builds the identity key for an open port: the
// (host, port, protocol) triple.
func PortKey(host, port, protocol string) string {
	if protocol == "" {
		protocol = "tcp"
	}
	return CanonicalHost(host) + ":" + port + "/" + strings.ToLower(protocol)
}

// VulnKey builds the identity key for a vulnerability: the
// (target, vulnerability type, evidence location) triple.
func VulnKey(target, vulnType, location string) string {
	return CanonicalHost(target) + "|" + strings.ToLower(strings.TrimSpace(vulnType)) + "|" + strings.TrimSpace(location)
}

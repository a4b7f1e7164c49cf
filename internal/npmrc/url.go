package npmrc

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"
)

const (
	zeroWidthNoBreakSpace = '\uFEFF' // BOM
	zeroWidthSpace        = '\u200B'
	noBreakSpace          = '\u00A0'
)

// sanitize removes whitespace, including the invisible kinds that sneak in
// when URLs are copied from web pages, from a registry URL. Case is left
// alone since registry paths are case sensitive.
func sanitize(registryURL string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == zeroWidthNoBreakSpace || r == zeroWidthSpace || r == noBreakSpace {
			return -1 // Remove the character
		}
		return r
	}, registryURL)
}

// NormalizeRegistry returns the registry URL with exactly one trailing slash,
// which is how npm itself treats registry URLs. The empty string is returned
// unchanged.
func NormalizeRegistry(registry string) string {
	registry = sanitize(registry)
	if registry == "" {
		return registry
	}
	return strings.TrimRight(registry, "/") + "/"
}

// Nerf returns the scheme-independent comparison key of a registry URL, also
// known as its "nerf dart": "//" followed by the lowercase host (including any
// port) and the path with exactly one trailing slash. Credentials, query and
// fragment are dropped. It is also the prefix npm expects on credential keys
// in .npmrc files, e.g. "//registry.example.com/feed/:_authToken".
func Nerf(registryURL string) (string, error) {
	u, err := url.Parse(sanitize(registryURL))
	if err != nil {
		return "", fmt.Errorf("error parsing registry URL %q: %w", registryURL, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("registry URL %q has no host", registryURL)
	}
	return "//" + strings.ToLower(u.Host) + strings.TrimRight(u.EscapedPath(), "/") + "/", nil
}

// SameRegistry returns true if both URLs have the same nerf key. A URL that
// cannot be parsed is never the same as anything.
func SameRegistry(a, b string) bool {
	nerfA, err := Nerf(a)
	if err != nil {
		return false
	}
	nerfB, err := Nerf(b)
	if err != nil {
		return false
	}
	return nerfA == nerfB
}

// Host returns the lowercase host (including any port) of a registry URL or
// the empty string if it cannot be determined.
func Host(registryURL string) string {
	u, err := url.Parse(sanitize(registryURL))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}

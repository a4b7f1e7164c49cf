package npmrc

import "strings"

// LineKind classifies a line of an .npmrc file.
type LineKind int

const (
	// LineKindBlank is an empty or whitespace-only line.
	LineKindBlank LineKind = iota
	// LineKindComment is a line starting with '#' or ';'.
	LineKindComment
	// LineKindDeclaration assigns a registry, either the default one
	// ("registry=...") or one for a scope ("@scope:registry=...").
	LineKindDeclaration
	// LineKindCredential carries a setting for a specific registry, keyed by
	// the registry's nerf dart ("//host/path/:_authToken=...").
	LineKindCredential
	// LineKindOther is any other setting. It is passed through unmodified.
	LineKindOther
)

// String returns a human-readable name for the LineKind.
func (k LineKind) String() string {
	switch k {
	case LineKindBlank:
		return "blank"
	case LineKindComment:
		return "comment"
	case LineKindDeclaration:
		return "declaration"
	case LineKindCredential:
		return "credential"
	default:
		return "other"
	}
}

// Line is a single classified line of an .npmrc file.
type Line struct {
	Kind LineKind
	Text string
}

// ParseLine classifies a line of text. Classification looks at the key of a
// key=value pair only, so a value that happens to contain "registry=" does
// not turn a credential into a declaration.
func ParseLine(text string) Line {
	trimmed := strings.TrimSpace(text)
	switch {
	case trimmed == "":
		return Line{Kind: LineKindBlank, Text: text}
	case strings.HasPrefix(trimmed, "#"), strings.HasPrefix(trimmed, ";"):
		return Line{Kind: LineKindComment, Text: text}
	}
	key, _, found := strings.Cut(trimmed, "=")
	if !found {
		return Line{Kind: LineKindOther, Text: text}
	}
	key = unquote(strings.TrimSpace(key))
	switch {
	case credentialRegistry(key) != "":
		return Line{Kind: LineKindCredential, Text: text}
	case isRegistryKey(key):
		return Line{Kind: LineKindDeclaration, Text: text}
	default:
		return Line{Kind: LineKindOther, Text: text}
	}
}

// Key returns the trimmed and unquoted key of a key=value line or the empty
// string if the line has no key.
func (l Line) Key() string {
	key, _, found := strings.Cut(strings.TrimSpace(l.Text), "=")
	if !found {
		return ""
	}
	return unquote(strings.TrimSpace(key))
}

// Value returns the trimmed and unquoted value of a key=value line.
func (l Line) Value() string {
	_, value, _ := strings.Cut(strings.TrimSpace(l.Text), "=")
	return unquote(strings.TrimSpace(value))
}

// CredentialRegistry returns the registry part of a credential line's key with
// its host lowercased and any scheme dropped, e.g.
// "//registry.example.com/feed/" for the keys
// "//Registry.Example.com/feed/:_authToken" and
// "https://registry.example.com/feed/:_authToken". It returns the empty string
// for other kinds of lines.
func (l Line) CredentialRegistry() string {
	if l.Kind != LineKindCredential {
		return ""
	}
	return credentialRegistry(l.Key())
}

// credentialRegistry returns the normalized registry part of key if key is the
// key of a per-registry setting and the empty string otherwise.
func credentialRegistry(key string) string {
	if scheme, rest, found := strings.Cut(key, "://"); found && isScheme(scheme) {
		key = "//" + rest
	}
	if !strings.HasPrefix(key, "//") {
		return ""
	}
	idx := strings.LastIndex(key, ":")
	if idx <= len("//") {
		return ""
	}
	registry, setting := key[:idx], key[idx+1:]
	// A port without a setting, as in "//host:8080", is not a setting key.
	if setting == "" || strings.ContainsAny(setting, "/") || isPort(setting) {
		return ""
	}
	hostEnd := strings.Index(registry[2:], "/")
	if hostEnd < 0 {
		return "//" + strings.ToLower(registry[2:])
	}
	hostEnd += 2
	return "//" + strings.ToLower(registry[2:hostEnd]) + registry[hostEnd:]
}

// RegistryMatches returns true if registry, as returned by CredentialRegistry,
// is the registry with the given nerf key or one below it. A missing trailing
// slash on either side does not matter.
func RegistryMatches(registry, nerf string) bool {
	if registry == "" || nerf == "" {
		return false
	}
	registry = strings.TrimSuffix(registry, "/")
	nerf = strings.TrimSuffix(nerf, "/")
	return registry == nerf || strings.HasPrefix(registry, nerf+"/")
}

func isScheme(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range strings.ToLower(s) {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '+' && r != '-' && r != '.' {
			return false
		}
	}
	return true
}

func isPort(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func isRegistryKey(key string) bool {
	key = strings.ToLower(key)
	if key == "registry" {
		return true
	}
	scope, suffix, found := strings.Cut(key, ":")
	return found && scope != "" && suffix == "registry"
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

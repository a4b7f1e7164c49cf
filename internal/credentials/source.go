package credentials

import (
	"strings"

	"github.com/akuity/npmauth/internal/npmrc"
)

// Origin identifies where a Source came from.
type Origin int

const (
	// OriginExplicit sources come from service connections named in the task
	// inputs. They are usually registries outside of the organization.
	OriginExplicit Origin = iota
	// OriginDiscovered sources are the organization's own registries, found
	// through its packaging location service.
	OriginDiscovered
	// OriginFederated sources are obtained by exchanging a workload identity
	// for a short-lived token.
	OriginFederated
)

func (o Origin) String() string {
	switch o {
	case OriginExplicit:
		return "Explicit"
	case OriginDiscovered:
		return "Discovered"
	case OriginFederated:
		return "Federated"
	default:
		return "Unknown"
	}
}

// Source is a registry together with the .npmrc line(s) that authenticate
// against it.
type Source struct {
	// URL is the registry URL, normalized to end with a slash.
	URL string
	// AuthLine holds one or more newline-separated .npmrc lines, each keyed by
	// the nerf key of URL.
	AuthLine string
	Origin   Origin
}

// Lines returns the individual lines of AuthLine.
func (s Source) Lines() []string {
	var lines []string
	for _, line := range strings.Split(s.AuthLine, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// Nerf returns the nerf key of the Source's URL.
func (s Source) Nerf() (string, error) {
	return npmrc.Nerf(s.URL)
}

// TokenSource returns a Source authenticating with a bearer token.
func TokenSource(registryURL, token string, origin Origin) (Source, error) {
	registryURL = npmrc.NormalizeRegistry(registryURL)
	nerf, err := npmrc.Nerf(registryURL)
	if err != nil {
		return Source{}, err
	}
	return Source{
		URL:      registryURL,
		AuthLine: nerf + ":_authToken=" + token,
		Origin:   origin,
	}, nil
}

// Pools holds the sources of the standard mode.
type Pools struct {
	Explicit   []Source
	Discovered []Source
}

// Match returns the Source for the registry at registryURL. Explicit sources
// take precedence over discovered ones.
func (p Pools) Match(registryURL string) (Source, bool) {
	for _, pool := range [][]Source{p.Explicit, p.Discovered} {
		for _, s := range pool {
			if npmrc.SameRegistry(s.URL, registryURL) {
				return s, true
			}
		}
	}
	return Source{}, false
}

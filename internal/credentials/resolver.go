package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/akuity/npmauth/internal/npmrc"
	"github.com/akuity/npmauth/pkg/logging"
)

// ErrMissingFeedURLOrServiceConnection is returned when only one of the two
// inputs of the federated mode is supplied.
var ErrMissingFeedURLOrServiceConnection = errors.New(
	"both a feed URL and a workload identity service connection must be " +
		"provided to authenticate with a workload identity",
)

// Mode is how credential sources are resolved for an invocation.
type Mode int

const (
	// ModeStandard resolves explicit and discovered sources and matches them
	// against the registries declared in the .npmrc file.
	ModeStandard Mode = iota
	// ModeFederated resolves a single source for one feed by exchanging a
	// workload identity.
	ModeFederated
)

func (m Mode) String() string {
	if m == ModeFederated {
		return "Federated"
	}
	return "Standard"
}

// SelectMode returns ModeFederated if both federated inputs are set and
// ModeStandard if neither is. Anything in between is an error.
func SelectMode(feedURL, connection string) (Mode, error) {
	switch {
	case feedURL != "" && connection != "":
		return ModeFederated, nil
	case feedURL != "" || connection != "":
		return ModeStandard, ErrMissingFeedURLOrServiceConnection
	default:
		return ModeStandard, nil
	}
}

// ExplicitResolver resolves service connections into explicit sources.
type ExplicitResolver interface {
	Resolve(ctx context.Context, ids []string) ([]Source, error)
}

// PackagingLocator returns the base URIs of the organization's packaging
// service.
type PackagingLocator interface {
	PackagingURIs(ctx context.Context) ([]string, error)
}

// FederatedResolver resolves the source of a feed by exchanging the workload
// identity of a service connection.
type FederatedResolver interface {
	Resolve(ctx context.Context, feedURL, connection string) (Source, error)
}

// Resolver produces the credential sources of an invocation.
type Resolver struct {
	explicit    ExplicitResolver
	locator     PackagingLocator
	federated   FederatedResolver
	accessToken string
}

// NewResolver returns a *Resolver. accessToken is the job access token used
// to authenticate against discovered registries.
func NewResolver(
	explicit ExplicitResolver,
	locator PackagingLocator,
	federated FederatedResolver,
	accessToken string,
) *Resolver {
	return &Resolver{
		explicit:    explicit,
		locator:     locator,
		federated:   federated,
		accessToken: accessToken,
	}
}

// Federated resolves the single source of the federated mode.
func (r *Resolver) Federated(
	ctx context.Context,
	feedURL string,
	connection string,
) (Source, error) {
	if r.federated == nil {
		return Source{}, errors.New("federated authentication is not configured")
	}
	src, err := r.federated.Resolve(ctx, npmrc.NormalizeRegistry(feedURL), connection)
	if err != nil {
		return Source{}, fmt.Errorf(
			"error obtaining credentials for %s using service connection %s: %w",
			feedURL, connection, err,
		)
	}
	src.Origin = OriginFederated
	return src, nil
}

// Standard resolves the explicit sources for the service connections with the
// given IDs and the discovered sources for those of the directives that point
// at the organization's packaging service. Failure to reach the packaging
// service is an error; it does not mean there are no such registries.
func (r *Resolver) Standard(
	ctx context.Context,
	endpointIDs []string,
	directives []npmrc.Directive,
) (Pools, error) {
	logger := logging.LoggerFromContext(ctx)
	var pools Pools

	if len(endpointIDs) > 0 {
		if r.explicit == nil {
			return pools, errors.New("service connections are not configured")
		}
		explicit, err := r.explicit.Resolve(ctx, endpointIDs)
		if err != nil {
			return pools, fmt.Errorf("error resolving service connections: %w", err)
		}
		for i := range explicit {
			explicit[i].Origin = OriginExplicit
		}
		pools.Explicit = explicit
	}

	if r.locator == nil {
		return pools, errors.New("packaging location service is not configured")
	}
	uris, err := r.locator.PackagingURIs(ctx)
	if err != nil {
		return pools, fmt.Errorf("error getting packaging URIs: %w", err)
	}
	// Registries are matched against the organization's packaging URIs, not
	// just their hosts, so feeds of other organizations on the shared
	// pkgs.dev.azure.com host never receive the job access token.
	orgs := make([]string, 0, len(uris))
	for _, uri := range uris {
		if nerf, err := npmrc.Nerf(uri); err == nil {
			orgs = append(orgs, strings.ToLower(nerf))
		}
	}
	logger.Debug("discovered packaging URIs", "uris", uris)

	seen := map[string]struct{}{}
	for _, d := range directives {
		src, err := TokenSource(d.URL, r.accessToken, OriginDiscovered)
		if err != nil {
			// The directive isn't a usable URL. The merge leaves it alone.
			logger.Debug("skipping unparsable registry", "registry", d.URL)
			continue
		}
		nerf, _ := src.Nerf()
		if !inOrganization(nerf, orgs) {
			continue
		}
		if _, ok := seen[nerf]; ok {
			continue
		}
		seen[nerf] = struct{}{}
		pools.Discovered = append(pools.Discovered, src)
	}
	return pools, nil
}

// inOrganization returns true if the registry with the given nerf key is one
// of the organization's packaging URIs or below one. Organization names are
// case-insensitive.
func inOrganization(nerf string, orgs []string) bool {
	nerf = strings.ToLower(nerf)
	for _, org := range orgs {
		if npmrc.RegistryMatches(nerf, org) {
			return true
		}
	}
	return false
}

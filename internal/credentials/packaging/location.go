package packaging

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/microsoft/azure-devops-go-api/azuredevops/v7"
	"github.com/microsoft/azure-devops-go-api/azuredevops/v7/location"

	"github.com/akuity/npmauth/pkg/logging"
)

// AreaID is the ID of the packaging resource area of Azure DevOps.
var AreaID = uuid.MustParse("7ab4e64e-c4d8-4f50-ae73-5ef2e21642a5")

const (
	modernPackagingHost = "pkgs.dev.azure.com"
	legacyPackagingHost = ".pkgs.visualstudio.com"
)

type resourceAreaClient interface {
	GetResourceArea(
		context.Context,
		location.GetResourceAreaArgs,
	) (*location.ResourceAreaInfo, error)
}

// Locator looks up the packaging service of an organization through the
// location service of its collection.
type Locator struct {
	collectionURI string
	accessToken   string

	// newClientFn is overridable for testing purposes
	newClientFn func(ctx context.Context, collectionURI, accessToken string) resourceAreaClient
}

// NewLocator returns a *Locator for the collection at collectionURI that
// authenticates with the job access token.
func NewLocator(collectionURI, accessToken string) *Locator {
	return &Locator{
		collectionURI: collectionURI,
		accessToken:   accessToken,
		newClientFn:   newClient,
	}
}

func newClient(ctx context.Context, collectionURI, accessToken string) resourceAreaClient {
	conn := azuredevops.NewPatConnection(collectionURI, accessToken)
	// The job access token is a bearer token, not a PAT
	conn.AuthorizationString = "Bearer " + accessToken
	conn.SuppressFedAuthRedirect = true
	return location.NewClient(ctx, conn)
}

// PackagingURIs returns the base URIs the organization's packaging service is
// reachable at. Hosted organizations are reachable under both the
// pkgs.dev.azure.com and the <org>.pkgs.visualstudio.com host and both are
// returned.
func (l *Locator) PackagingURIs(ctx context.Context) ([]string, error) {
	logger := logging.LoggerFromContext(ctx)
	if l.collectionURI == "" {
		return nil, errors.New("collection URI is not set")
	}
	client := l.newClientFn(ctx, l.collectionURI, l.accessToken)
	area, err := client.GetResourceArea(
		ctx,
		location.GetResourceAreaArgs{AreaId: &AreaID},
	)
	if err != nil {
		return nil, fmt.Errorf(
			"error getting packaging resource area of %s: %w", l.collectionURI, err,
		)
	}
	if area == nil || area.LocationUrl == nil || *area.LocationUrl == "" {
		return nil, fmt.Errorf("packaging resource area of %s has no location", l.collectionURI)
	}
	uris := withAliases(*area.LocationUrl)
	logger.Debug("found packaging service", "collection", l.collectionURI, "uris", uris)
	return uris, nil
}

// withAliases returns locationURL followed by the other hosted form of the
// same organization's packaging URI, if it has one.
func withAliases(locationURL string) []string {
	uris := []string{locationURL}
	u, err := url.Parse(locationURL)
	if err != nil {
		return uris
	}
	host := strings.ToLower(u.Hostname())
	switch {
	case host == modernPackagingHost:
		org, _, _ := strings.Cut(strings.Trim(u.Path, "/"), "/")
		if org == "" {
			return uris
		}
		uris = append(uris, fmt.Sprintf("%s://%s%s/", u.Scheme, org, legacyPackagingHost))
	case strings.HasSuffix(host, legacyPackagingHost):
		org := strings.TrimSuffix(host, legacyPackagingHost)
		if org == "" {
			return uris
		}
		uris = append(uris, fmt.Sprintf("%s://%s/%s/", u.Scheme, modernPackagingHost, org))
	}
	return uris
}

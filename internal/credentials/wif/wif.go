package wif

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/cloud"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/hashicorp/go-cleanhttp"

	"github.com/akuity/npmauth/internal/credentials"
	"github.com/akuity/npmauth/pkg/logging"
)

const (
	// azureDevOpsScope is the scope of tokens accepted by Azure Artifacts.
	azureDevOpsScope = "499b84ac-1321-427f-aa17-267ca6975798/.default"

	servicePrincipalIDParam = "serviceprincipalid"
)

var (
	// ErrNoTenant is returned when the tenant of a feed cannot be determined.
	ErrNoTenant = errors.New("unable to determine the tenant of the feed")
	// ErrNoToken is returned when the token exchange does not yield a token.
	ErrNoToken = errors.New("token exchange returned no token")
	// ErrOIDCTokenExpired is returned when the OIDC token issued for a service
	// connection has already expired.
	ErrOIDCTokenExpired = errors.New("OIDC token expired")
)

// ParameterReader reads authorization parameters of service connections.
type ParameterReader interface {
	Parameter(id, name string) (string, error)
}

// Provider obtains short-lived tokens for Azure Artifacts feeds by exchanging
// the workload identity of a service connection.
type Provider struct {
	httpClient     *http.Client
	endpoints      ParameterReader
	oidcRequestURI string
	accessToken    string
	authorityHost  string

	getTenantFn    func(ctx context.Context, feedURL string) (string, error)
	getOIDCTokenFn func(ctx context.Context, connection string) (string, error)
	exchangeFn     func(
		ctx context.Context,
		tenant string,
		clientID string,
		getAssertion func(context.Context) (string, error),
	) (azcore.AccessToken, error)
}

// NewProvider returns a *Provider. oidcRequestURI and accessToken are the
// job's OIDC request endpoint and access token. authorityHost is the
// Microsoft Entra authority tokens are exchanged with.
func NewProvider(
	endpoints ParameterReader,
	oidcRequestURI string,
	accessToken string,
	authorityHost string,
) *Provider {
	p := &Provider{
		httpClient:     cleanhttp.DefaultClient(),
		endpoints:      endpoints,
		oidcRequestURI: oidcRequestURI,
		accessToken:    accessToken,
		authorityHost:  authorityHost,
	}
	p.getTenantFn = p.getTenant
	p.getOIDCTokenFn = p.getOIDCToken
	p.exchangeFn = p.exchange
	return p
}

// Resolve returns the federated credential source for the feed at feedURL
// using the service connection named connection.
func (p *Provider) Resolve(
	ctx context.Context,
	feedURL string,
	connection string,
) (credentials.Source, error) {
	logger := logging.LoggerFromContext(ctx).WithValues(
		"feed", feedURL,
		"serviceConnection", connection,
	)

	tenant, err := p.getTenantFn(ctx, feedURL)
	if err != nil {
		return credentials.Source{}, err
	}
	logger = logger.WithValues("tenant", tenant)

	clientID, err := p.endpoints.Parameter(connection, servicePrincipalIDParam)
	if err != nil {
		return credentials.Source{}, fmt.Errorf(
			"error reading service connection %s: %w", connection, err,
		)
	}
	if clientID == "" {
		return credentials.Source{}, fmt.Errorf(
			"service connection %s has no service principal ID", connection,
		)
	}

	token, err := p.exchangeFn(
		ctx,
		tenant,
		clientID,
		func(ctx context.Context) (string, error) {
			return p.getOIDCTokenFn(ctx, connection)
		},
	)
	if err != nil {
		return credentials.Source{}, fmt.Errorf("error exchanging workload identity: %w", err)
	}
	if token.Token == "" {
		return credentials.Source{}, ErrNoToken
	}
	logger.Debug("obtained access token", "expiresOn", token.ExpiresOn)

	return credentials.TokenSource(feedURL, token.Token, credentials.OriginFederated)
}

// exchange trades the assertion returned by getAssertion for an access token
// to Azure DevOps issued by tenant.
func (p *Provider) exchange(
	ctx context.Context,
	tenant string,
	clientID string,
	getAssertion func(context.Context) (string, error),
) (azcore.AccessToken, error) {
	cred, err := azidentity.NewClientAssertionCredential(
		tenant,
		clientID,
		getAssertion,
		&azidentity.ClientAssertionCredentialOptions{
			ClientOptions: azcore.ClientOptions{
				Cloud: cloud.Configuration{
					ActiveDirectoryAuthorityHost: p.authorityHost,
				},
				Transport: p.httpClient,
			},
		},
	)
	if err != nil {
		return azcore.AccessToken{}, fmt.Errorf("error creating client assertion credential: %w", err)
	}
	return cred.GetToken(ctx, policy.TokenRequestOptions{
		Scopes: []string{azureDevOpsScope},
	})
}

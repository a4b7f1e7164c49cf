package wif

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/akuity/npmauth/pkg/logging"
)

// TenantHeader is the response header Azure DevOps uses to announce the
// tenant that owns a resource.
const TenantHeader = "X-VSS-ResourceTenant"

// getTenant returns the tenant that owns the feed at feedURL. The tenant is
// announced on unauthenticated responses, so the request carries no
// credentials.
func (p *Provider) getTenant(ctx context.Context, feedURL string) (string, error) {
	logger := logging.LoggerFromContext(ctx).WithValues("feed", feedURL)

	resp, err := p.unauthenticatedRequest(ctx, http.MethodHead, feedURL)
	if err != nil {
		return "", err
	}
	if resp.StatusCode == http.StatusMethodNotAllowed {
		logger.Debug("HEAD not allowed; retrying with GET")
		if resp, err = p.unauthenticatedRequest(ctx, http.MethodGet, feedURL); err != nil {
			return "", err
		}
	}

	tenant := resp.Header.Get(TenantHeader)
	if tenant == "" {
		return "", fmt.Errorf("%w %s: response has no %s header", ErrNoTenant, feedURL, TenantHeader)
	}
	id, err := uuid.Parse(tenant)
	if err != nil {
		return "", fmt.Errorf("%w %s: %q is not a tenant ID", ErrNoTenant, feedURL, tenant)
	}
	if id == uuid.Nil {
		return "", fmt.Errorf("%w %s: tenant is unset", ErrNoTenant, feedURL)
	}
	logger.Debug("resolved feed tenant", "tenant", id.String())
	return id.String(), nil
}

func (p *Provider) unauthenticatedRequest(
	ctx context.Context,
	method string,
	url string,
) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request for %s: %w", url, err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrNoTenant, url, err)
	}
	// Only headers are of interest
	_ = resp.Body.Close()
	return resp, nil
}

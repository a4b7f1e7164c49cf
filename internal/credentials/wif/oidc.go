package wif

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"

	intio "github.com/akuity/npmauth/internal/io"
	"github.com/akuity/npmauth/pkg/logging"
)

const oidcAPIVersion = "7.1"

type oidcTokenResponse struct {
	OIDCToken string `json:"oidcToken"`
}

// getOIDCToken requests an ID token for the service connection from the
// job's OIDC endpoint. The ID token is the assertion presented to Entra.
func (p *Provider) getOIDCToken(ctx context.Context, connection string) (string, error) {
	logger := logging.LoggerFromContext(ctx).WithValues("serviceConnection", connection)

	if p.oidcRequestURI == "" {
		return "", fmt.Errorf("OIDC request URI is not set")
	}
	u, err := url.Parse(p.oidcRequestURI)
	if err != nil {
		return "", fmt.Errorf("error parsing OIDC request URI: %w", err)
	}
	q := u.Query()
	q.Set("api-version", oidcAPIVersion)
	q.Set("serviceConnectionId", connection)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("error creating OIDC token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.accessToken)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("error requesting OIDC token: %w", err)
	}
	body, err := intio.LimitRead(resp.Body, intio.MaxResponseBytes)
	if err != nil {
		return "", fmt.Errorf("error reading OIDC token response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf(
			"OIDC token request for service connection %s failed with status %d",
			connection, resp.StatusCode,
		)
	}
	res := oidcTokenResponse{}
	if err = json.Unmarshal(body, &res); err != nil {
		return "", fmt.Errorf("error unmarshaling OIDC token response: %w", err)
	}
	if res.OIDCToken == "" {
		return "", fmt.Errorf("OIDC token response for service connection %s has no token", connection)
	}

	claims, err := unverifiedClaims(res.OIDCToken)
	if err != nil {
		logger.Debug("OIDC token is not a readable JWT", "error", err.Error())
		return res.OIDCToken, nil
	}
	logger.Debug(
		"obtained OIDC token",
		"subject", claims.Subject,
		"issuer", claims.Issuer,
		"expiresAt", claims.ExpiresAt,
	)
	// Entra would reject it with a far less helpful error
	if claims.ExpiresAt != nil && !claims.ExpiresAt.After(time.Now()) {
		return "", fmt.Errorf(
			"%w: OIDC token for service connection %s expired at %s",
			ErrOIDCTokenExpired, connection, claims.ExpiresAt.UTC().Format(time.RFC3339),
		)
	}
	return res.OIDCToken, nil
}

// unverifiedClaims reads the registered claims of a JWT without verifying
// it. Entra verifies the token.
func unverifiedClaims(token string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser(jwt.WithoutClaimsValidation()).
		ParseUnverified(token, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

package endpoint

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/akuity/npmauth/internal/credentials"
	"github.com/akuity/npmauth/internal/npmrc"
	"github.com/akuity/npmauth/pkg/logging"
)

// Authorization schemes of service connections to npm registries.
const (
	SchemeToken            = "Token"
	SchemeUsernamePassword = "UsernamePassword"
)

const (
	urlVarPrefix       = "ENDPOINT_URL_"
	authVarPrefix      = "ENDPOINT_AUTH_"
	authParamVarPrefix = "ENDPOINT_AUTH_PARAMETER_"
)

// Endpoint is a service connection as exposed to the task by the build agent.
type Endpoint struct {
	ID         string
	URL        string
	Scheme     string
	Parameters map[string]string
}

// Parameter returns the named authorization parameter. Names are matched case
// insensitively.
func (e Endpoint) Parameter(name string) string {
	if v, ok := e.Parameters[name]; ok {
		return v
	}
	for k, v := range e.Parameters {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

type authorization struct {
	Scheme     string            `json:"scheme"`
	Parameters map[string]string `json:"parameters"`
}

// Reader reads service connections from the environment prepared by the build
// agent.
type Reader struct {
	getenv func(string) string
}

// NewReader returns a *Reader backed by the process environment.
func NewReader() *Reader {
	return NewReaderWithEnv(os.Getenv)
}

// NewReaderWithEnv returns a *Reader that looks variables up with getenv.
func NewReaderWithEnv(getenv func(string) string) *Reader {
	return &Reader{getenv: getenv}
}

// lookup returns the value of the variable prefix+id. The agent publishes
// endpoint variables with the ID as is, but some agents uppercase the whole
// name.
func (r *Reader) lookup(prefix, id string) string {
	if v := r.getenv(prefix + id); v != "" {
		return v
	}
	return r.getenv(strings.ToUpper(prefix + id))
}

// Get returns the service connection with the given ID.
func (r *Reader) Get(id string) (Endpoint, error) {
	e := Endpoint{ID: id}
	if e.URL = strings.TrimSpace(r.lookup(urlVarPrefix, id)); e.URL == "" {
		return e, fmt.Errorf("service connection %s has no URL", id)
	}
	authJSON := r.lookup(authVarPrefix, id)
	if authJSON == "" {
		return e, fmt.Errorf("service connection %s has no authorization", id)
	}
	auth := authorization{}
	if err := json.Unmarshal([]byte(authJSON), &auth); err != nil {
		return e, fmt.Errorf(
			"error unmarshaling authorization of service connection %s: %w", id, err,
		)
	}
	e.Scheme = auth.Scheme
	e.Parameters = auth.Parameters
	if e.Parameters == nil {
		e.Parameters = map[string]string{}
	}
	return e, nil
}

// Parameter returns the named authorization parameter of the service
// connection with the given ID. The dedicated variable the agent publishes for
// the parameter is consulted before the authorization object.
func (r *Reader) Parameter(id, name string) (string, error) {
	if v := r.lookup(authParamVarPrefix, id+"_"+name); v != "" {
		return v, nil
	}
	authJSON := r.lookup(authVarPrefix, id)
	if authJSON == "" {
		return "", fmt.Errorf("service connection %s has no authorization", id)
	}
	auth := authorization{}
	if err := json.Unmarshal([]byte(authJSON), &auth); err != nil {
		return "", fmt.Errorf(
			"error unmarshaling authorization of service connection %s: %w", id, err,
		)
	}
	return Endpoint{Parameters: auth.Parameters}.Parameter(name), nil
}

// Source returns the explicit credential source for the service connection
// with the given ID.
func (r *Reader) Source(id string) (credentials.Source, error) {
	e, err := r.Get(id)
	if err != nil {
		return credentials.Source{}, err
	}
	return SourceFor(e)
}

// SourceFor builds the credential source of a service connection.
func SourceFor(e Endpoint) (credentials.Source, error) {
	registryURL := npmrc.NormalizeRegistry(e.URL)
	nerf, err := npmrc.Nerf(registryURL)
	if err != nil {
		return credentials.Source{}, fmt.Errorf("service connection %s: %w", e.ID, err)
	}
	src := credentials.Source{
		URL:    registryURL,
		Origin: credentials.OriginExplicit,
	}
	switch {
	case strings.EqualFold(e.Scheme, SchemeToken):
		token := e.Parameter("apitoken")
		if token == "" {
			return src, fmt.Errorf("service connection %s has no API token", e.ID)
		}
		src.AuthLine = nerf + ":_authToken=" + token
	case strings.EqualFold(e.Scheme, SchemeUsernamePassword):
		username := e.Parameter("username")
		password := base64.StdEncoding.EncodeToString([]byte(e.Parameter("password")))
		// npm wants an email to publish. Registries other than npmjs ignore it.
		src.AuthLine = strings.Join(
			[]string{
				nerf + ":username=" + username,
				nerf + ":_password=" + password,
				nerf + ":email=" + username,
				nerf + ":always-auth=true",
			},
			"\n",
		)
	default:
		return src, fmt.Errorf(
			"service connection %s uses unsupported authorization scheme %q",
			e.ID, e.Scheme,
		)
	}
	return src, nil
}

// Resolve resolves the explicit credential sources for the service
// connections with the given IDs concurrently. The result has the order of
// ids.
func (r *Reader) Resolve(ctx context.Context, ids []string) ([]credentials.Source, error) {
	logger := logging.LoggerFromContext(ctx)
	sources := make([]credentials.Source, len(ids))
	g, ctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			src, err := r.Source(id)
			if err != nil {
				return err
			}
			logger.Debug("resolved service connection", "id", id, "registry", src.URL)
			sources[i] = src
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sources, nil
}

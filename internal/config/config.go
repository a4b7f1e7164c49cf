package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// Inputs are the task inputs of the authenticate step. The build agent exposes
// each input as an INPUT_<NAME> environment variable.
type Inputs struct {
	// WorkingFile is the path of the .npmrc file to authenticate.
	WorkingFile string `envconfig:"INPUT_WORKINGFILE"`
	// CustomEndpoints are the IDs of service connections for registries
	// outside of the organization.
	CustomEndpoints []string `envconfig:"INPUT_CUSTOMENDPOINT"`
	// FeedURL, together with WorkloadIdentityServiceConnection, selects the
	// federated mode.
	FeedURL                           string `envconfig:"INPUT_FEEDURL"`
	WorkloadIdentityServiceConnection string `envconfig:"INPUT_WORKLOADIDENTITYSERVICECONNECTION"`
}

// Agent holds the predefined variables of the build agent the task relies on.
type Agent struct {
	BuildDirectory string `envconfig:"AGENT_BUILDDIRECTORY"`
	TempDirectory  string `envconfig:"AGENT_TEMPDIRECTORY"`
	// CollectionURI is the URI of the organization, used to discover its
	// packaging service.
	CollectionURI string `envconfig:"SYSTEM_TEAMFOUNDATIONCOLLECTIONURI"`
	// AccessToken is the job access token. It authenticates against the
	// organization's own feeds and requests OIDC tokens.
	AccessToken    string `envconfig:"SYSTEM_ACCESSTOKEN"`
	OIDCRequestURI string `envconfig:"SYSTEM_OIDCREQUESTURI"`
	// AuthorityHost is the Microsoft Entra authority used for the federated
	// token exchange.
	AuthorityHost string `envconfig:"AZURE_AUTHORITY_HOST" default:"https://login.microsoftonline.com/"`
}

// Config is the complete configuration of the authenticate step.
type Config struct {
	Inputs
	Agent
}

// FromEnv loads a Config from environment variables.
func FromEnv() (Config, error) {
	cfg := Config{}
	if err := envconfig.Process("", &cfg.Inputs); err != nil {
		return cfg, fmt.Errorf("error processing task inputs: %w", err)
	}
	if err := envconfig.Process("", &cfg.Agent); err != nil {
		return cfg, fmt.Errorf("error processing agent variables: %w", err)
	}
	cfg.CustomEndpoints = normalizeList(cfg.CustomEndpoints)
	return cfg, nil
}

// normalizeList trims entries of a delimited input and drops empty ones.
func normalizeList(items []string) []string {
	var res []string
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			res = append(res, item)
		}
	}
	return res
}
